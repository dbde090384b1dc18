package mount

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/openastro/ada"
	"github.com/openastro/ada/coords"
	"github.com/openastro/ada/property"
	"github.com/shimmeringbee/logwrap"
)

// Apply dispatches a client proposed update to the handler for its
// property. The device core has already taken the property's in flight
// slot; handlers run with the module lock held and publish the outcome
// whether they succeed or fail.
func (m *Mount) Apply(ctx context.Context, name string, u property.Update) (bool, error) {
	m.m.Lock()
	defer m.m.Unlock()

	switch name {
	case PropEquatorialCoords:
		return true, m.applyCoords(ctx, u)
	case PropCoordSet:
		return true, m.stage(name, u)
	case PropPark:
		return true, m.applyPark(ctx, u)
	case PropParkPosition:
		return true, m.applyParkPosition(u)
	case PropAbort:
		return true, m.applyAbort(ctx, u)
	case PropTrackState:
		return true, m.applyTrackState(ctx, u)
	case PropTrackMode:
		return true, m.applyTrackMode(ctx, u)
	case PropTrackRate:
		return true, m.applyTrackRate(ctx, u)
	case PropSlewRate:
		return true, m.applySlewRate(ctx, u)
	case PropMotionNS:
		return true, m.applyMotion(ctx, PropMotionNS, u)
	case PropMotionWE:
		return true, m.applyMotion(ctx, PropMotionWE, u)
	case PropHome:
		return true, m.applyHome(ctx, u)
	case PropGuideRate:
		return true, m.applyGuideRate(ctx, u)
	case PropStopAfterPark:
		return true, m.applyStopAfterPark(u)
	case PropTime:
		return true, m.applyTime(ctx, u)
	case PropGeographic:
		return true, m.applyGeographic(ctx, u)
	case PropGuideNS:
		return true, m.guider.apply(ctx, PropGuideNS, u)
	case PropGuideWE:
		return true, m.guider.apply(ctx, PropGuideWE, u)
	default:
		return false, nil
	}
}

// stage validates and applies an update that carries no device command.
func (m *Mount) stage(name string, u property.Update) error {
	return m.dev.Properties().Mutate(name, func(p *property.Property) error {
		if err := p.Stage(u); err != nil {
			p.State = property.Alert
			return err
		}

		p.State = property.OK
		return nil
	})
}

// applyCoords runs the coordinate pipeline: validate, stage, command. Which
// command depends on the staged coord set mode: SYNC aligns the model
// without moving, TRACK and SLEW start a goto.
func (m *Mount) applyCoords(ctx context.Context, u property.Update) error {
	if m.state == Parked || m.state == Parking {
		m.alert(PropEquatorialCoords)
		return &InvalidStateError{Op: "slew", State: m.state}
	}

	var ra, dec float64
	err := m.dev.Properties().Mutate(PropEquatorialCoords, func(p *property.Property) error {
		if err := p.Stage(u); err != nil {
			p.State = property.Alert
			return err
		}

		ra = p.Number("RA").Value
		dec = p.Number("DEC").Value
		p.State = property.Busy

		return nil
	})
	if err != nil {
		return err
	}

	mode := "TRACK"
	if snap, ok := m.dev.Properties().Snapshot(PropCoordSet); ok {
		mode = snap.OnSwitch()
	}

	if mode == "SYNC" {
		return m.sync(ctx, ra, dec)
	}

	return m.goTo(ctx, ra, dec)
}

func (m *Mount) sync(ctx context.Context, ra, dec float64) error {
	if err := m.driver.SetTarget(ctx, ra, dec); err != nil {
		m.alert(PropEquatorialCoords)
		return err
	}

	if err := m.driver.Sync(ctx); err != nil {
		m.alert(PropEquatorialCoords)
		return err
	}

	m.logger.LogInfo(ctx, "Synced.", logwrap.Datum("ra", ra), logwrap.Datum("dec", dec))
	m.prevRA = nil
	m.prevDec = nil

	return m.dev.Properties().Mutate(PropEquatorialCoords, func(p *property.Property) error {
		p.State = property.OK
		return nil
	})
}

func (m *Mount) goTo(ctx context.Context, ra, dec float64) error {
	if err := m.driver.SetTarget(ctx, ra, dec); err != nil {
		m.alert(PropEquatorialCoords)
		return err
	}

	if err := m.driver.Slew(ctx); err != nil {
		m.alert(PropEquatorialCoords)
		return err
	}

	m.slewDirty = true
	m.setState(ctx, Slewing)
	m.confirmMoving(ctx)

	m.logger.LogInfo(ctx, "Slewing.", logwrap.Datum("ra", ra), logwrap.Datum("dec", dec))

	return nil
}

// confirmMoving polls status a bounded number of times waiting for the
// instrument to report it is actually moving. A slew short enough to finish
// inside the window never confirms; that is fine, the regular poll observes
// the stop and completes the transition.
func (m *Mount) confirmMoving(ctx context.Context) {
	for attempt := 0; attempt < slewConfirmAttempts; attempt++ {
		st, err := m.driver.Status(ctx)
		if err == nil && (st.System == SystemSlewing || st.System == SystemMeridianFlipping) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(slewConfirmDelay):
		}
	}

	m.logger.LogWarn(ctx, "Slew accepted but movement not confirmed.")
}

func (m *Mount) applyPark(ctx context.Context, u property.Update) error {
	target := ""
	for name, on := range u.Switches {
		if on {
			target = name
		}
	}

	switch target {
	case "PARK":
		return m.park(ctx)
	case "UNPARK":
		return m.unpark(ctx)
	default:
		m.alert(PropPark)
		return errors.New("park update selects no member")
	}
}

func (m *Mount) park(ctx context.Context) error {
	switch m.state {
	case Parked:
		// Already parked, publish and send nothing.
		m.publishParkState(property.OK)
		return nil
	case Parking:
		m.publishParkState(property.Busy)
		return nil
	}

	if err := m.driver.Abort(ctx); err != nil {
		m.alert(PropPark)
		return err
	}
	m.guider.cancelAll()

	if m.dev.Capabilities().Has(ada.CanParkNatively) {
		if err := m.driver.Park(ctx); err != nil {
			m.alert(PropPark)
			return err
		}
	} else {
		if err := m.parkBySlew(ctx); err != nil {
			m.alert(PropPark)
			return err
		}
	}

	m.setState(ctx, Parking)
	m.publishParkState(property.Busy)

	return nil
}

// parkBySlew emulates a park on firmware without a native park command:
// the stored Az/Alt park position is converted to the equatorial frame for
// the current sidereal time and slewed to. slewDirty marks the slew so the
// poll loop can tell its completion apart from an already stopped mount.
func (m *Mount) parkBySlew(ctx context.Context) error {
	az, alt := m.loadParkPosition()
	lst := coords.LocalSiderealTime(time.Now().UTC(), m.longitude)
	ra, dec := coords.HorizontalToEquatorial(az, alt, m.latitude, lst)

	m.logger.LogInfo(ctx, "Parking by slew.",
		logwrap.Datum("az", az), logwrap.Datum("alt", alt),
		logwrap.Datum("ra", ra), logwrap.Datum("dec", dec))

	if err := m.driver.SetTarget(ctx, ra, dec); err != nil {
		return err
	}

	if err := m.driver.Slew(ctx); err != nil {
		return err
	}

	m.slewDirty = true
	m.confirmMoving(ctx)

	return nil
}

func (m *Mount) unpark(ctx context.Context) error {
	if m.state != Parked {
		m.publishParkState(property.OK)
		return nil
	}

	if m.dev.Capabilities().Has(ada.CanUnparkNatively) {
		if err := m.driver.Unpark(ctx); err != nil {
			m.alert(PropPark)
			return err
		}
	}

	m.dev.SetParked(false)
	m.setState(ctx, Idle)
	m.publishParkState(property.OK)

	m.dev.Properties().Mutate(PropEquatorialCoords, func(p *property.Property) error {
		p.State = property.OK
		return nil
	})

	return nil
}

func (m *Mount) applyParkPosition(u property.Update) error {
	err := m.stage(PropParkPosition, u)
	if err != nil {
		return err
	}

	if snap, ok := m.dev.Properties().Snapshot(PropParkPosition); ok {
		m.section.Set(parkAzKey, snap.Number("PARK_AZ").Value)
		m.section.Set(parkAltKey, snap.Number("PARK_ALT").Value)
	}

	return nil
}

func (m *Mount) applyAbort(ctx context.Context, _ property.Update) error {
	if err := m.driver.Abort(ctx); err != nil {
		m.alert(PropAbort)
		return err
	}

	m.guider.cancelAll()
	m.slewDirty = false

	wasParking := m.state == Parking
	if m.state == Slewing || m.state == Parking || m.state == Homing {
		m.setState(ctx, Idle)
	}

	if wasParking {
		m.publishParkState(property.Idle)
	}

	m.dev.Properties().Mutate(PropEquatorialCoords, func(p *property.Property) error {
		p.State = property.Idle
		return nil
	})

	// Momentary switch, published released.
	return m.dev.Properties().Mutate(PropAbort, func(p *property.Property) error {
		p.Reset()
		p.State = property.OK
		return nil
	})
}

func (m *Mount) applyTrackState(ctx context.Context, u property.Update) error {
	enable := u.Switches["TRACK_ON"]

	if enable && m.state == Parked {
		m.alert(PropTrackState)
		return &InvalidStateError{Op: "track", State: m.state}
	}

	if err := m.driver.SetTrackEnabled(ctx, enable); err != nil {
		m.alert(PropTrackState)
		return err
	}

	return m.dev.Properties().Mutate(PropTrackState, func(p *property.Property) error {
		if err := p.Stage(u); err != nil {
			p.State = property.Alert
			return err
		}

		if enable {
			p.State = property.Busy
		} else {
			p.State = property.Idle
		}

		return nil
	})
}

var trackModeMembers = map[string]TrackMode{
	"TRACK_SIDEREAL": TrackSidereal,
	"TRACK_LUNAR":    TrackLunar,
	"TRACK_SOLAR":    TrackSolar,
	"TRACK_KING":     TrackKing,
	"TRACK_CUSTOM":   TrackCustom,
}

func (m *Mount) applyTrackMode(ctx context.Context, u property.Update) error {
	for name, on := range u.Switches {
		if !on {
			continue
		}

		mode, ok := trackModeMembers[name]
		if !ok {
			m.alert(PropTrackMode)
			return errors.New("unknown track mode " + name)
		}

		// Re-selecting the mode the device already reports needs no
		// command.
		if m.prev != nil && m.prev.TrackMode == mode {
			continue
		}

		if err := m.driver.SetTrackMode(ctx, mode); err != nil {
			m.alert(PropTrackMode)
			return err
		}
	}

	return m.stage(PropTrackMode, u)
}

func (m *Mount) applyTrackRate(ctx context.Context, u property.Update) error {
	rate, ok := u.Numbers["TRACK_RATE_RA"]
	if !ok {
		m.alert(PropTrackRate)
		return errors.New("track rate update carries no rate")
	}

	if err := m.driver.SetTrackRate(ctx, rate); err != nil {
		m.alert(PropTrackRate)
		return err
	}

	return m.stage(PropTrackRate, u)
}

func (m *Mount) applySlewRate(ctx context.Context, u property.Update) error {
	var index = -1
	err := m.dev.Properties().With(PropSlewRate, func(p *property.Property) error {
		if err := p.Validate(u); err != nil {
			return err
		}

		for i := range p.Switches {
			if u.Switches[p.Switches[i].Name] {
				index = i
			}
		}

		return nil
	})
	if err != nil || index < 0 {
		m.alert(PropSlewRate)
		if err == nil {
			err = errors.New("slew rate update selects no member")
		}
		return err
	}

	if err := m.driver.SetSlewRate(ctx, index); err != nil {
		m.alert(PropSlewRate)
		return err
	}

	return m.stage(PropSlewRate, u)
}

var motionDirections = map[string]Direction{
	"MOTION_NORTH": North,
	"MOTION_SOUTH": South,
	"MOTION_WEST":  West,
	"MOTION_EAST":  East,
}

// applyMotion starts or stops manual motion. Member on starts movement in
// that direction, member off stops it. Rejected outright while parked.
func (m *Mount) applyMotion(ctx context.Context, name string, u property.Update) error {
	if m.state == Parked || m.state == Parking {
		m.alert(name)
		return &InvalidStateError{Op: "move", State: m.state}
	}

	for member, on := range u.Switches {
		dir, ok := motionDirections[member]
		if !ok {
			m.alert(name)
			return errors.New("unknown motion member " + member)
		}

		var err error
		if on {
			err = m.driver.StartMotion(ctx, dir)
		} else {
			err = m.driver.StopMotion(ctx, dir)
		}
		if err != nil {
			m.alert(name)
			return err
		}
	}

	return m.dev.Properties().Mutate(name, func(p *property.Property) error {
		if err := p.Stage(u); err != nil {
			p.State = property.Alert
			return err
		}

		if p.OnSwitch() != "" {
			p.State = property.Busy
		} else {
			p.State = property.OK
		}

		return nil
	})
}

func (m *Mount) applyHome(ctx context.Context, u property.Update) error {
	target := ""
	for name, on := range u.Switches {
		if on {
			target = name
		}
	}

	if m.state == Parked || m.state == Parking {
		m.alert(PropHome)
		return &InvalidStateError{Op: "home", State: m.state}
	}

	var err error
	busy := false

	switch target {
	case "FIND":
		err = m.driver.FindHome(ctx)
		busy = true
	case "GO":
		err = m.driver.GotoHome(ctx)
		busy = true
	case "SET":
		err = m.driver.SetCurrentHome(ctx)
	default:
		err = errors.New("home update selects no member")
	}

	if err != nil {
		m.alert(PropHome)
		return err
	}

	if busy {
		m.setState(ctx, Homing)
	}

	return m.dev.Properties().Mutate(PropHome, func(p *property.Property) error {
		p.Reset()
		if busy {
			p.State = property.Busy
		} else {
			p.State = property.OK
		}

		return nil
	})
}

func (m *Mount) applyGuideRate(ctx context.Context, u property.Update) error {
	var ra, dec float64
	err := m.dev.Properties().With(PropGuideRate, func(p *property.Property) error {
		if err := p.Validate(u); err != nil {
			return err
		}

		ra = p.Number("RA_GUIDE_RATE").Value
		dec = p.Number("DEC_GUIDE_RATE").Value

		return nil
	})
	if err != nil {
		m.alert(PropGuideRate)
		return err
	}

	if v, ok := u.Numbers["RA_GUIDE_RATE"]; ok {
		ra = v
	}
	if v, ok := u.Numbers["DEC_GUIDE_RATE"]; ok {
		dec = v
	}

	if err := m.driver.SetGuideRate(ctx, ra, dec); err != nil {
		m.alert(PropGuideRate)
		return err
	}

	return m.stage(PropGuideRate, u)
}

// utcTimeFormat is the wire format of the UTC member.
const utcTimeFormat = "2006-01-02T15:04:05"

func (m *Mount) applyTime(ctx context.Context, u property.Update) error {
	raw, ok := u.Texts["UTC"]
	if !ok {
		m.alert(PropTime)
		return errors.New("time update carries no UTC value")
	}

	utc, err := time.Parse(utcTimeFormat, raw)
	if err != nil {
		m.alert(PropTime)
		return fmt.Errorf("parse UTC value: %w", err)
	}

	offset := 0.0
	if o, ok := u.Texts["OFFSET"]; ok {
		offset, err = strconv.ParseFloat(o, 64)
		if err != nil {
			m.alert(PropTime)
			return fmt.Errorf("parse UTC offset: %w", err)
		}
	}

	if err := m.driver.SetTime(ctx, utc, time.Duration(offset*float64(time.Hour))); err != nil {
		m.alert(PropTime)
		return err
	}

	m.logger.LogInfo(ctx, "Time and date updated.", logwrap.Datum("utc", raw), logwrap.Datum("offset", offset))

	return m.stage(PropTime, u)
}

// applyGeographic writes the site coordinates and refreshes the cached
// location the park fallback converts against.
func (m *Mount) applyGeographic(ctx context.Context, u property.Update) error {
	var lat, lon float64
	err := m.dev.Properties().With(PropGeographic, func(p *property.Property) error {
		if err := p.Validate(u); err != nil {
			return err
		}

		lat = p.Number("LAT").Value
		lon = p.Number("LONG").Value

		return nil
	})
	if err != nil {
		m.alert(PropGeographic)
		return err
	}

	if v, ok := u.Numbers["LAT"]; ok {
		lat = v
	}
	if v, ok := u.Numbers["LONG"]; ok {
		lon = v
	}

	// The wire convention is signed longitude, east positive.
	signedLon := lon
	if signedLon > 180 {
		signedLon -= 360
	}

	if err := m.driver.SetLocation(ctx, lat, signedLon); err != nil {
		m.alert(PropGeographic)
		return err
	}

	m.latitude = lat
	m.longitude = signedLon

	m.logger.LogInfo(ctx, "Site location updated.", logwrap.Datum("latitude", lat), logwrap.Datum("longitude", signedLon))

	return m.stage(PropGeographic, u)
}

func (m *Mount) applyStopAfterPark(u property.Update) error {
	err := m.stage(PropStopAfterPark, u)
	if err != nil {
		return err
	}

	if snap, ok := m.dev.Properties().Snapshot(PropStopAfterPark); ok {
		m.section.Set(stopAfterParkKey, snap.OnSwitch() == "ON")
	}

	return nil
}

// alert publishes the named property in the Alert state without touching
// its values. Failed reconciliations are always observable.
func (m *Mount) alert(name string) {
	m.dev.Properties().Mutate(name, func(p *property.Property) error {
		p.State = property.Alert
		return nil
	})
}
