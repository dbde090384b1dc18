package mount

import (
	"context"
	"math"

	"github.com/openastro/ada"
	"github.com/openastro/ada/property"
	"github.com/shimmeringbee/logwrap"
)

// coordEpsilon suppresses republication of coordinates that only moved by
// reporting noise.
const coordEpsilon = 1e-6

// Poll reads one status snapshot and advances the session state machine.
// Publication is edge triggered: a field that has not changed since the
// previous poll is not republished, and the first poll after connect
// publishes everything because there is no previous snapshot to compare
// against.
func (m *Mount) Poll(ctx context.Context) error {
	m.m.Lock()
	defer m.m.Unlock()

	st, err := m.driver.Status(ctx)
	if err != nil {
		return err
	}

	m.advanceState(ctx, st)
	m.publishStatusEdges(ctx, st)
	m.prev = &st

	if err := m.pollCoords(ctx); err != nil {
		return err
	}

	return m.pollPierSide(ctx)
}

// advanceState interprets the raw system status in the context of the
// current session state.
func (m *Mount) advanceState(ctx context.Context, st Status) {
	switch m.state {
	case Slewing:
		if st.System != SystemSlewing && st.System != SystemMeridianFlipping {
			m.logger.LogInfo(ctx, "Slew complete.")
			m.completeSlew(ctx, st)
		}

	case Parking:
		if st.System == SystemParked || (m.slewDirty && st.System != SystemSlewing) {
			m.completePark(ctx)
		}

	case Homing:
		if st.System == SystemAtHome || st.System == SystemStopped {
			m.logger.LogInfo(ctx, "Home search complete.")
			m.setState(ctx, Idle)
		}

	case Parked:
		// A handset initiated unpark shows up as the device leaving its
		// parked status.
		if st.System != SystemParked && st.System != SystemStopped {
			m.logger.LogInfo(ctx, "Device left parked state externally.")
			m.dev.SetParked(false)
			m.setState(ctx, Idle)
			m.publishParkState(property.Idle)
		}

	default:
		switch st.System {
		case SystemTracking, SystemGuiding:
			m.setState(ctx, Tracking)
		case SystemSlewing, SystemMeridianFlipping:
			m.setState(ctx, Slewing)
		case SystemParked:
			m.setState(ctx, Parked)
		default:
			m.setState(ctx, Idle)
		}
	}
}

func (m *Mount) completeSlew(ctx context.Context, st Status) {
	m.slewDirty = false

	if st.System == SystemTracking || st.System == SystemGuiding {
		m.setState(ctx, Tracking)
	} else {
		m.setState(ctx, Idle)
	}

	m.dev.Properties().Mutate(PropEquatorialCoords, func(p *property.Property) error {
		p.State = property.OK
		return nil
	})
}

func (m *Mount) completePark(ctx context.Context) {
	m.slewDirty = false
	m.dev.SetParked(true)
	m.setState(ctx, Parked)

	if stop, _ := m.section.Bool(stopAfterParkKey, true); stop {
		if err := m.driver.SetTrackEnabled(ctx, false); err != nil {
			m.logger.LogWarn(ctx, "Failed to stop tracking after park.", logwrap.Err(err))
		}
	}

	m.logger.LogInfo(ctx, "Park complete.")
	m.publishParkState(property.OK)

	m.dev.Properties().Mutate(PropEquatorialCoords, func(p *property.Property) error {
		p.State = property.Idle
		return nil
	})
}

func (m *Mount) publishParkState(state property.State) {
	m.dev.Properties().Mutate(PropPark, func(p *property.Property) error {
		if m.state == Parked || m.state == Parking {
			p.SetOn("PARK")
		} else {
			p.SetOn("UNPARK")
		}
		p.State = state

		return nil
	})
}

// publishStatusEdges republishes the read only status properties whose value
// moved since the previous snapshot.
func (m *Mount) publishStatusEdges(ctx context.Context, st Status) {
	prev := m.prev
	store := m.dev.Properties()

	if prev == nil || prev.GPS != st.GPS {
		store.Mutate(PropGPSStatus, func(p *property.Property) error {
			return p.SetOn([]string{"GPS_OFF", "GPS_ON", "GPS_DATA_OK"}[st.GPS])
		})
	}

	if prev == nil || prev.TimeSource != st.TimeSource {
		store.Mutate(PropTimeSource, func(p *property.Property) error {
			return p.SetOn([]string{"RS232", "CONTROLLER", "GPS"}[st.TimeSource])
		})
	}

	if prev == nil || prev.Hemisphere != st.Hemisphere {
		store.Mutate(PropHemisphere, func(p *property.Property) error {
			return p.SetOn([]string{"SOUTH", "NORTH"}[st.Hemisphere])
		})
	}

	if prev == nil || prev.SlewRate != st.SlewRate {
		store.Mutate(PropSlewRate, func(p *property.Property) error {
			if st.SlewRate < 0 || st.SlewRate >= len(p.Switches) {
				return nil
			}

			return p.SetOn(p.Switches[st.SlewRate].Name)
		})
	}

	if m.dev.Capabilities().Has(ada.CanTrackMode) && (prev == nil || prev.TrackMode != st.TrackMode) {
		store.Mutate(PropTrackMode, func(p *property.Property) error {
			if int(st.TrackMode) >= len(p.Switches) {
				return nil
			}

			return p.SetOn(p.Switches[int(st.TrackMode)].Name)
		})
	}

	if prev == nil || prev.Latitude != st.Latitude || prev.Longitude != st.Longitude {
		m.latitude = st.Latitude
		m.longitude = st.Longitude

		lon := st.Longitude
		if lon < 0 {
			lon += 360
		}

		store.Mutate(PropGeographic, func(p *property.Property) error {
			p.Number("LAT").Value = st.Latitude
			p.Number("LONG").Value = lon

			return nil
		})
	}

	tracking := st.System == SystemTracking || st.System == SystemGuiding
	prevTracking := prev != nil && (prev.System == SystemTracking || prev.System == SystemGuiding)

	if m.dev.Capabilities().Has(ada.CanControlTrack) && (prev == nil || tracking != prevTracking) {
		store.Mutate(PropTrackState, func(p *property.Property) error {
			if tracking {
				p.State = property.Busy
				return p.SetOn("TRACK_ON")
			}

			p.State = property.Idle
			return p.SetOn("TRACK_OFF")
		})
	}
}

func (m *Mount) pollCoords(ctx context.Context) error {
	ra, dec, err := m.driver.Coords(ctx)
	if err != nil {
		return err
	}

	if m.prevRA != nil && math.Abs(*m.prevRA-ra) < coordEpsilon && math.Abs(*m.prevDec-dec) < coordEpsilon {
		return nil
	}

	m.prevRA = &ra
	m.prevDec = &dec

	return m.dev.Properties().Mutate(PropEquatorialCoords, func(p *property.Property) error {
		p.Number("RA").Value = ra
		p.Number("DEC").Value = dec

		return nil
	})
}

func (m *Mount) pollPierSide(ctx context.Context) error {
	if !m.dev.Capabilities().Has(ada.HasPierSide) {
		return nil
	}

	side, err := m.driver.PierSide(ctx)
	if err != nil {
		return err
	}

	if m.prevPier != nil && *m.prevPier == side {
		return nil
	}

	m.prevPier = &side

	return m.dev.Properties().Mutate(PropPierSide, func(p *property.Property) error {
		switch side {
		case PierEast:
			return p.SetOn("PIER_EAST")
		case PierWest:
			return p.SetOn("PIER_WEST")
		default:
			p.Reset()
			return nil
		}
	})
}
