package mount

import (
	"context"
	"fmt"

	"github.com/openastro/ada"
	"github.com/openastro/ada/property"
	"github.com/openastro/ada/rules"
	"github.com/shimmeringbee/logwrap"
)

// Connect performs the mount handshake: driver probe, rule overrides,
// startup state and property definition. The session state starts Parked
// when the persisted park flag says the mount was left parked.
func (m *Mount) Connect(pctx context.Context) error {
	ctx, end := m.logger.Segment(pctx, "Mount handshake.")
	defer end()

	fw, caps, err := m.driver.Handshake(ctx)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	m.m.Lock()
	defer m.m.Unlock()

	m.firmware = fw
	m.logger.LogInfo(ctx, "Mount identified.", logwrap.Datum("model", fw.Model), logwrap.Datum("firmware", fw.MainBoard))

	caps = m.applyRules(ctx, fw, caps)
	m.dev.AddCapabilities(ada.CanSlew, ada.CanSync, ada.CanAbort, ada.CanPark)
	m.dev.AddCapabilities(caps.List()...)

	st, err := m.driver.Status(ctx)
	if err != nil {
		return fmt.Errorf("initial status: %w", err)
	}

	m.latitude = st.Latitude
	m.longitude = st.Longitude

	if m.dev.Capabilities().Has(ada.HasPierSide) {
		if _, err := m.driver.PierSide(ctx); err != nil {
			m.logger.LogWarn(ctx, "Pier side probe failed, hiding pier side.", logwrap.Err(err))
			m.dev.RemoveCapabilities(ada.HasPierSide)
		}
	}

	m.prev = nil
	m.prevPier = nil
	m.prevRA = nil
	m.prevDec = nil
	m.slewDirty = false

	if m.dev.Parked() {
		m.state = Parked
	} else {
		m.state = Idle
	}

	m.defineProperties(ctx, fw, st)

	return nil
}

func (m *Mount) Disconnect(ctx context.Context) error {
	m.m.Lock()
	defer m.m.Unlock()

	m.guider.cancelAll()

	for _, name := range []string{
		PropEquatorialCoords, PropCoordSet, PropPark, PropParkPosition,
		PropAbort, PropTrackState, PropTrackMode, PropTrackRate,
		PropSlewRate, PropMotionNS, PropMotionWE, PropPierSide, PropHome,
		PropStopAfterPark, PropGuideRate, PropFirmware, PropGPSStatus,
		PropTimeSource, PropHemisphere, PropGuideNS, PropGuideWE,
		PropTime, PropGeographic,
	} {
		m.dev.Properties().Withdraw(name)
	}

	return nil
}

// applyRules runs the model rule tree over the probed capability set,
// granting what a model is known to support despite its probe and denying
// what it misreports.
func (m *Mount) applyRules(ctx context.Context, fw FirmwareInfo, caps ada.CapabilitySet) ada.CapabilitySet {
	if m.engine == nil {
		return caps
	}

	out, err := m.engine.Execute(rules.Input{Model: fw.Model, Board: fw.MainBoard, Firmware: fw.Controller})
	if err != nil {
		m.logger.LogWarn(ctx, "Rule execution failed, using probed capabilities.", logwrap.Err(err))
		return caps
	}

	for name, granted := range out.Capabilities {
		c, ok := ada.CapabilityByName(name)
		if !ok {
			m.logger.LogWarn(ctx, "Rule names unknown capability.", logwrap.Datum("capability", name))
			continue
		}

		if granted {
			caps = caps.With(c)
		} else {
			caps = caps.Without(c)
		}
	}

	return caps
}

func (m *Mount) defineProperties(ctx context.Context, fw FirmwareInfo, st Status) {
	caps := m.dev.Capabilities()
	store := m.dev.Properties()

	store.Define(property.NewTextSet(PropFirmware, "Firmware", property.ReadOnly,
		property.Text{Name: "MODEL", Label: "Model", Value: fw.Model},
		property.Text{Name: "BOARD", Label: "Main board", Value: fw.MainBoard},
		property.Text{Name: "CONTROLLER", Label: "Controller", Value: fw.Controller},
		property.Text{Name: "RA_MOTOR", Label: "RA motor", Value: fw.RA},
		property.Text{Name: "DEC_MOTOR", Label: "Dec motor", Value: fw.Dec},
	))

	store.Define(property.NewNumberSet(PropEquatorialCoords, "Eq. coordinates", property.ReadWrite,
		property.Number{Name: "RA", Label: "RA (hh)", Min: 0, Max: 24, Step: 0, Value: 0},
		property.Number{Name: "DEC", Label: "Dec (dd)", Min: -90, Max: 90, Step: 0, Value: 0},
	))

	store.Define(property.NewSwitchSet(PropCoordSet, "On coord set", property.ReadWrite, property.OneOfMany,
		property.Switch{Name: "TRACK", Label: "Track", On: true},
		property.Switch{Name: "SLEW", Label: "Slew"},
		property.Switch{Name: "SYNC", Label: "Sync"},
	))

	park := property.NewSwitchSet(PropPark, "Parking", property.ReadWrite, property.OneOfMany,
		property.Switch{Name: "PARK", Label: "Park", On: m.state == Parked},
		property.Switch{Name: "UNPARK", Label: "Unpark", On: m.state != Parked},
	)
	if m.state == Parked {
		park.State = property.OK
	}
	store.Define(park)

	az, alt := m.loadParkPosition()
	store.Define(property.NewNumberSet(PropParkPosition, "Park position", property.ReadWrite,
		property.Number{Name: "PARK_AZ", Label: "Azimuth (deg)", Min: 0, Max: 360, Step: 0.01, Value: az},
		property.Number{Name: "PARK_ALT", Label: "Altitude (deg)", Min: -90, Max: 90, Step: 0.01, Value: alt},
	))

	store.Define(property.NewSwitchSet(PropAbort, "Abort motion", property.ReadWrite, property.AtMostOne,
		property.Switch{Name: "ABORT", Label: "Abort"},
	))

	store.Define(property.NewSwitchSet(PropMotionNS, "Motion N/S", property.ReadWrite, property.AtMostOne,
		property.Switch{Name: "MOTION_NORTH", Label: "North"},
		property.Switch{Name: "MOTION_SOUTH", Label: "South"},
	))

	store.Define(property.NewSwitchSet(PropMotionWE, "Motion W/E", property.ReadWrite, property.AtMostOne,
		property.Switch{Name: "MOTION_WEST", Label: "West"},
		property.Switch{Name: "MOTION_EAST", Label: "East"},
	))

	slewRate := property.NewSwitchSet(PropSlewRate, "Slew rate", property.ReadWrite, property.OneOfMany,
		property.Switch{Name: "1X", Label: "1x"},
		property.Switch{Name: "8X", Label: "8x"},
		property.Switch{Name: "64X", Label: "64x"},
		property.Switch{Name: "256X", Label: "256x"},
		property.Switch{Name: "MAX", Label: "Max"},
	)
	if st.SlewRate >= 0 && st.SlewRate < len(slewRate.Switches) {
		slewRate.Switches[st.SlewRate].On = true
	}
	store.Define(slewRate)

	if caps.Has(ada.CanControlTrack) {
		track := property.NewSwitchSet(PropTrackState, "Tracking", property.ReadWrite, property.OneOfMany,
			property.Switch{Name: "TRACK_ON", Label: "On", On: st.System == SystemTracking},
			property.Switch{Name: "TRACK_OFF", Label: "Off", On: st.System != SystemTracking},
		)
		store.Define(track)
	}

	if caps.Has(ada.CanTrackMode) {
		mode := property.NewSwitchSet(PropTrackMode, "Track mode", property.ReadWrite, property.OneOfMany,
			property.Switch{Name: "TRACK_SIDEREAL", Label: "Sidereal"},
			property.Switch{Name: "TRACK_LUNAR", Label: "Lunar"},
			property.Switch{Name: "TRACK_SOLAR", Label: "Solar"},
			property.Switch{Name: "TRACK_KING", Label: "King"},
			property.Switch{Name: "TRACK_CUSTOM", Label: "Custom"},
		)
		if int(st.TrackMode) < len(mode.Switches) {
			mode.Switches[int(st.TrackMode)].On = true
		}
		store.Define(mode)
	}

	if caps.Has(ada.CanTrackRate) {
		store.Define(property.NewNumberSet(PropTrackRate, "Track rate", property.ReadWrite,
			property.Number{Name: "TRACK_RATE_RA", Label: "RA (arcsec/s)", Min: TrackRateSidereal - 0.01, Max: TrackRateSidereal + 0.01, Step: 0.0001, Value: TrackRateSidereal},
		))
	}

	if caps.Has(ada.CanGuide) {
		store.Define(property.NewNumberSet(PropGuideNS, "Guide N/S", property.ReadWrite,
			property.Number{Name: "TIMED_GUIDE_N", Label: "North (ms)", Min: 0, Max: 60000, Step: 1},
			property.Number{Name: "TIMED_GUIDE_S", Label: "South (ms)", Min: 0, Max: 60000, Step: 1},
		))
		store.Define(property.NewNumberSet(PropGuideWE, "Guide W/E", property.ReadWrite,
			property.Number{Name: "TIMED_GUIDE_W", Label: "West (ms)", Min: 0, Max: 60000, Step: 1},
			property.Number{Name: "TIMED_GUIDE_E", Label: "East (ms)", Min: 0, Max: 60000, Step: 1},
		))
	}

	if caps.Has(ada.CanGuideRate) {
		raRate, decRate := 0.5, 0.5
		if r, d, err := m.driver.GuideRate(ctx); err == nil {
			raRate, decRate = r, d
		} else {
			m.logger.LogWarn(ctx, "Guide rate read failed, using defaults.", logwrap.Err(err))
		}

		store.Define(property.NewNumberSet(PropGuideRate, "Guide rate", property.ReadWrite,
			property.Number{Name: "RA_GUIDE_RATE", Label: "RA (x sidereal)", Min: 0.01, Max: 0.9, Step: 0.01, Value: raRate},
			property.Number{Name: "DEC_GUIDE_RATE", Label: "Dec (x sidereal)", Min: 0.1, Max: 0.99, Step: 0.01, Value: decRate},
		))
	}

	if caps.Has(ada.CanFindHome) || caps.Has(ada.CanGoHome) || caps.Has(ada.CanSetHome) {
		var members []property.Switch
		if caps.Has(ada.CanFindHome) {
			members = append(members, property.Switch{Name: "FIND", Label: "Find home"})
		}
		if caps.Has(ada.CanSetHome) {
			members = append(members, property.Switch{Name: "SET", Label: "Set current as home"})
		}
		if caps.Has(ada.CanGoHome) {
			members = append(members, property.Switch{Name: "GO", Label: "Go home"})
		}
		store.Define(property.NewSwitchSet(PropHome, "Home", property.ReadWrite, property.AtMostOne, members...))
	}

	if caps.Has(ada.HasPierSide) {
		store.Define(property.NewSwitchSet(PropPierSide, "Pier side", property.ReadOnly, property.OneOfMany,
			property.Switch{Name: "PIER_EAST", Label: "East"},
			property.Switch{Name: "PIER_WEST", Label: "West"},
		))
	}

	store.Define(property.NewTextSet(PropTime, "UTC time", property.ReadWrite,
		property.Text{Name: "UTC", Label: "UTC (ISO 8601)"},
		property.Text{Name: "OFFSET", Label: "UTC offset (hours)"},
	))

	lon := st.Longitude
	if lon < 0 {
		lon += 360
	}
	store.Define(property.NewNumberSet(PropGeographic, "Site location", property.ReadWrite,
		property.Number{Name: "LAT", Label: "Latitude (deg)", Min: -90, Max: 90, Step: 0.0001, Value: st.Latitude},
		property.Number{Name: "LONG", Label: "Longitude (deg)", Min: 0, Max: 360, Step: 0.0001, Value: lon},
		property.Number{Name: "ELEV", Label: "Elevation (m)", Min: -200, Max: 10000, Step: 1},
	))

	stopAfterPark, _ := m.section.Bool(stopAfterParkKey, true)
	store.Define(property.NewSwitchSet(PropStopAfterPark, "Stop after park", property.ReadWrite, property.OneOfMany,
		property.Switch{Name: "ON", Label: "On", On: stopAfterPark},
		property.Switch{Name: "OFF", Label: "Off", On: !stopAfterPark},
	))

	store.Define(property.NewSwitchSet(PropGPSStatus, "GPS", property.ReadOnly, property.OneOfMany,
		property.Switch{Name: "GPS_OFF", Label: "Off", On: st.GPS == GPSOff},
		property.Switch{Name: "GPS_ON", Label: "On", On: st.GPS == GPSOn},
		property.Switch{Name: "GPS_DATA_OK", Label: "Data OK", On: st.GPS == GPSDataOK},
	))

	store.Define(property.NewSwitchSet(PropTimeSource, "Time source", property.ReadOnly, property.OneOfMany,
		property.Switch{Name: "RS232", Label: "RS232", On: st.TimeSource == TimeRS232},
		property.Switch{Name: "CONTROLLER", Label: "Controller", On: st.TimeSource == TimeController},
		property.Switch{Name: "GPS", Label: "GPS", On: st.TimeSource == TimeGPS},
	))

	store.Define(property.NewSwitchSet(PropHemisphere, "Hemisphere", property.ReadOnly, property.OneOfMany,
		property.Switch{Name: "SOUTH", Label: "South", On: st.Hemisphere == HemisphereSouth},
		property.Switch{Name: "NORTH", Label: "North", On: st.Hemisphere == HemisphereNorth},
	))
}

const stopAfterParkKey = "StopAfterPark"

// loadParkPosition returns the persisted park position, defaulting to the
// celestial pole for the site hemisphere.
func (m *Mount) loadParkPosition() (az, alt float64) {
	defaultAz := 0.0
	defaultAlt := m.latitude
	if m.latitude < 0 {
		defaultAz = 180.0
		defaultAlt = -m.latitude
	}

	az, _ = m.section.Float(parkAzKey, defaultAz)
	alt, _ = m.section.Float(parkAltKey, defaultAlt)

	return az, alt
}
