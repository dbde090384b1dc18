package mount

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openastro/ada"
	"github.com/openastro/ada/property"
	"github.com/openastro/ada/rules"
	"github.com/shimmeringbee/persistence/impl/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	stoppedStatus = Status{System: SystemStopped, SlewRate: 2, TimeSource: TimeController, Hemisphere: HemisphereNorth, Latitude: 40, Longitude: -3}
	slewingStatus = Status{System: SystemSlewing, SlewRate: 2, TimeSource: TimeController, Hemisphere: HemisphereNorth, Latitude: 40, Longitude: -3}
	trackedStatus = Status{System: SystemTracking, SlewRate: 2, TimeSource: TimeController, Hemisphere: HemisphereNorth, Latitude: 40, Longitude: -3}
	parkedStatus  = Status{System: SystemParked, SlewRate: 2, TimeSource: TimeController, Hemisphere: HemisphereNorth, Latitude: 40, Longitude: -3}
)

// connectedMount wires a mount over a mocked driver and connects it. The
// helper only books the one status read Connect performs; tests book their
// own reads for polls.
func connectedMount(t *testing.T, caps ada.CapabilitySet, parked bool) (*ada.Device, *Mount, *mockDriver) {
	t.Helper()

	md := &mockDriver{}
	md.On("Handshake", mock.Anything).Return(FirmwareInfo{Model: "CEM60", MainBoard: "161028"}, caps, nil)
	md.On("Status", mock.Anything).Return(stoppedStatus, nil).Once()

	d := ada.New("scope", nil, memory.New())
	d.SetPollInterval(time.Hour)
	if parked {
		d.SetParked(true)
	}

	m := New(md, nil)
	d.AttachModule(m)

	require.NoError(t, d.Connect(context.Background()))
	t.Cleanup(func() { _ = d.Disconnect(context.Background()) })

	drainEvents(d)

	return d, m, md
}

func drainEvents(d *ada.Device) []any {
	var events []any

	for {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		e, err := d.ReadEvent(ctx)
		cancel()

		if err != nil {
			return events
		}

		events = append(events, e)
	}
}

func snapshot(t *testing.T, d *ada.Device, name string) *property.Property {
	t.Helper()

	p, ok := d.Properties().Snapshot(name)
	require.True(t, ok, "property %s not defined", name)

	return &p
}

func TestConnect(t *testing.T) {
	t.Run("core properties are defined and base capabilities granted", func(t *testing.T) {
		d, m, _ := connectedMount(t, 0, false)

		for _, name := range []string{PropEquatorialCoords, PropCoordSet, PropPark, PropParkPosition, PropAbort, PropMotionNS, PropMotionWE, PropSlewRate, PropStopAfterPark, PropFirmware, PropGPSStatus, PropTimeSource, PropHemisphere, PropTime, PropGeographic} {
			assert.True(t, d.Properties().Has(name), name)
		}

		assert.True(t, d.Capabilities().Has(ada.CanSlew))
		assert.True(t, d.Capabilities().Has(ada.CanPark))
		assert.False(t, d.Properties().Has(PropGuideNS))
		assert.Equal(t, Idle, m.State())
	})

	t.Run("capability gated properties follow the probed set", func(t *testing.T) {
		d, _, _ := connectedMount(t, ada.NewCapabilitySet(ada.CanGuide, ada.CanControlTrack, ada.CanTrackMode), false)

		assert.True(t, d.Properties().Has(PropGuideNS))
		assert.True(t, d.Properties().Has(PropGuideWE))
		assert.True(t, d.Properties().Has(PropTrackState))
		assert.True(t, d.Properties().Has(PropTrackMode))
		assert.False(t, d.Properties().Has(PropTrackRate))
	})

	t.Run("a mount shut down parked starts its session parked", func(t *testing.T) {
		d, m, _ := connectedMount(t, 0, true)

		assert.Equal(t, Parked, m.State())

		park := snapshot(t, d, PropPark)
		assert.Equal(t, "PARK", park.OnSwitch())
		assert.Equal(t, property.OK, park.State)
	})

	t.Run("a failed handshake aborts the device connect", func(t *testing.T) {
		md := &mockDriver{}
		md.On("Handshake", mock.Anything).Return(FirmwareInfo{}, ada.CapabilitySet(0), errors.New("silence"))

		d := ada.New("scope", nil, memory.New())
		d.AttachModule(New(md, nil))

		err := d.Connect(context.Background())

		var handshake *ada.HandshakeError
		require.ErrorAs(t, err, &handshake)
		assert.False(t, d.Connected())
	})

	t.Run("rules refine the probed capability set", func(t *testing.T) {
		engine, err := rules.Compile(rules.DefaultRules())
		require.NoError(t, err)

		md := &mockDriver{}
		md.On("Handshake", mock.Anything).Return(FirmwareInfo{Model: "CEM60", MainBoard: "161028"}, ada.CapabilitySet(0), nil)
		md.On("Status", mock.Anything).Return(stoppedStatus, nil).Once()

		d := ada.New("scope", nil, memory.New())
		d.SetPollInterval(time.Hour)
		d.AttachModule(New(md, engine))

		require.NoError(t, d.Connect(context.Background()))
		defer d.Disconnect(context.Background())

		assert.True(t, d.Capabilities().Has(ada.CanFindHome))
		assert.True(t, d.Properties().Has(PropHome))
	})
}

func TestGoto(t *testing.T) {
	t.Run("a coordinate update stages, commands and goes busy, and the poll completes it", func(t *testing.T) {
		d, m, md := connectedMount(t, 0, false)

		md.On("SetTarget", mock.Anything, 5.5, 22.0).Return(nil)
		md.On("Slew", mock.Anything).Return(nil)
		md.On("Status", mock.Anything).Return(slewingStatus, nil).Times(2)
		md.On("Status", mock.Anything).Return(trackedStatus, nil)
		md.On("Coords", mock.Anything).Return(5.5, 22.0, nil)

		err := d.Apply(context.Background(), PropEquatorialCoords, property.Update{
			Numbers: map[string]float64{"RA": 5.5, "DEC": 22},
		})
		require.NoError(t, err)

		assert.Equal(t, Slewing, m.State())
		assert.Equal(t, property.Busy, snapshot(t, d, PropEquatorialCoords).State)

		// Still moving on the first poll.
		require.NoError(t, m.Poll(context.Background()))
		assert.Equal(t, Slewing, m.State())

		// Stopped and tracking on the second.
		require.NoError(t, m.Poll(context.Background()))
		assert.Equal(t, Tracking, m.State())
		assert.Equal(t, property.OK, snapshot(t, d, PropEquatorialCoords).State)
	})

	t.Run("out of range coordinates never reach the driver", func(t *testing.T) {
		d, _, md := connectedMount(t, 0, false)

		err := d.Apply(context.Background(), PropEquatorialCoords, property.Update{
			Numbers: map[string]float64{"RA": 25, "DEC": 22},
		})

		assert.Error(t, err)
		assert.Equal(t, property.Alert, snapshot(t, d, PropEquatorialCoords).State)
		md.AssertNotCalled(t, "SetTarget", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("a slew is rejected while parked", func(t *testing.T) {
		d, _, md := connectedMount(t, 0, true)

		err := d.Apply(context.Background(), PropEquatorialCoords, property.Update{
			Numbers: map[string]float64{"RA": 5.5, "DEC": 22},
		})

		var invalid *InvalidStateError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, Parked, invalid.State)
		md.AssertNotCalled(t, "SetTarget", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("with the coord set staged to sync the update aligns without moving", func(t *testing.T) {
		d, m, md := connectedMount(t, 0, false)

		require.NoError(t, d.Apply(context.Background(), PropCoordSet, property.SwitchOn("SYNC")))

		md.On("SetTarget", mock.Anything, 5.5, 22.0).Return(nil)
		md.On("Sync", mock.Anything).Return(nil)

		err := d.Apply(context.Background(), PropEquatorialCoords, property.Update{
			Numbers: map[string]float64{"RA": 5.5, "DEC": 22},
		})
		require.NoError(t, err)

		assert.Equal(t, Idle, m.State())
		assert.Equal(t, property.OK, snapshot(t, d, PropEquatorialCoords).State)
		md.AssertNotCalled(t, "Slew", mock.Anything)
	})
}

func TestPark(t *testing.T) {
	t.Run("a native park commands the firmware and completes on the poll", func(t *testing.T) {
		d, m, md := connectedMount(t, ada.NewCapabilitySet(ada.CanParkNatively, ada.CanUnparkNatively), false)

		md.On("Abort", mock.Anything).Return(nil)
		md.On("Park", mock.Anything).Return(nil)
		md.On("Status", mock.Anything).Return(parkedStatus, nil)
		md.On("Coords", mock.Anything).Return(1.0, 2.0, nil)
		md.On("SetTrackEnabled", mock.Anything, false).Return(nil)

		require.NoError(t, d.Apply(context.Background(), PropPark, property.SwitchOn("PARK")))

		assert.Equal(t, Parking, m.State())
		assert.Equal(t, property.Busy, snapshot(t, d, PropPark).State)

		require.NoError(t, m.Poll(context.Background()))

		assert.Equal(t, Parked, m.State())
		assert.True(t, d.Parked())
		assert.Equal(t, property.OK, snapshot(t, d, PropPark).State)
		md.AssertCalled(t, "SetTrackEnabled", mock.Anything, false)
	})

	t.Run("without a native park the stored position is converted and slewed to", func(t *testing.T) {
		d, m, md := connectedMount(t, 0, false)

		md.On("Abort", mock.Anything).Return(nil)
		md.On("SetTarget", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		md.On("Slew", mock.Anything).Return(nil)
		md.On("Status", mock.Anything).Return(slewingStatus, nil).Times(2)
		md.On("Status", mock.Anything).Return(stoppedStatus, nil)
		md.On("Coords", mock.Anything).Return(1.0, 2.0, nil)
		md.On("SetTrackEnabled", mock.Anything, false).Return(nil)

		require.NoError(t, d.Apply(context.Background(), PropPark, property.SwitchOn("PARK")))
		assert.Equal(t, Parking, m.State())
		md.AssertCalled(t, "SetTarget", mock.Anything, mock.Anything, mock.Anything)
		md.AssertNotCalled(t, "Park", mock.Anything)

		// First poll still sees the park slew running.
		require.NoError(t, m.Poll(context.Background()))
		assert.Equal(t, Parking, m.State())

		// The slew stopping completes the emulated park.
		require.NoError(t, m.Poll(context.Background()))
		assert.Equal(t, Parked, m.State())
		assert.True(t, d.Parked())
	})

	t.Run("parking an already parked mount sends nothing and reports success", func(t *testing.T) {
		d, _, md := connectedMount(t, ada.NewCapabilitySet(ada.CanParkNatively), true)

		require.NoError(t, d.Apply(context.Background(), PropPark, property.SwitchOn("PARK")))

		assert.Equal(t, property.OK, snapshot(t, d, PropPark).State)
		md.AssertNotCalled(t, "Park", mock.Anything)
		md.AssertNotCalled(t, "Abort", mock.Anything)
	})

	t.Run("unparking clears the persisted flag", func(t *testing.T) {
		d, m, md := connectedMount(t, ada.NewCapabilitySet(ada.CanParkNatively, ada.CanUnparkNatively), true)

		md.On("Unpark", mock.Anything).Return(nil)

		require.NoError(t, d.Apply(context.Background(), PropPark, property.SwitchOn("UNPARK")))

		assert.Equal(t, Idle, m.State())
		assert.False(t, d.Parked())

		park := snapshot(t, d, PropPark)
		assert.Equal(t, "UNPARK", park.OnSwitch())
		assert.Equal(t, property.OK, park.State)
	})

	t.Run("a failed unpark keeps the mount parked and raises the alert", func(t *testing.T) {
		d, m, md := connectedMount(t, ada.NewCapabilitySet(ada.CanParkNatively, ada.CanUnparkNatively), true)

		md.On("Unpark", mock.Anything).Return(errors.New("refused"))

		err := d.Apply(context.Background(), PropPark, property.SwitchOn("UNPARK"))

		assert.Error(t, err)
		assert.Equal(t, Parked, m.State())
		assert.True(t, d.Parked())
		assert.Equal(t, property.Alert, snapshot(t, d, PropPark).State)
	})
}

func TestMotion(t *testing.T) {
	t.Run("manual motion while parked is rejected before any command", func(t *testing.T) {
		d, _, md := connectedMount(t, 0, true)

		err := d.Apply(context.Background(), PropMotionNS, property.SwitchOn("MOTION_NORTH"))

		var invalid *InvalidStateError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, property.Alert, snapshot(t, d, PropMotionNS).State)
		md.AssertNotCalled(t, "StartMotion", mock.Anything, mock.Anything)
	})

	t.Run("a member on starts motion and a member off stops it", func(t *testing.T) {
		d, _, md := connectedMount(t, 0, false)

		md.On("StartMotion", mock.Anything, North).Return(nil)
		md.On("StopMotion", mock.Anything, North).Return(nil)

		require.NoError(t, d.Apply(context.Background(), PropMotionNS, property.SwitchOn("MOTION_NORTH")))
		assert.Equal(t, property.Busy, snapshot(t, d, PropMotionNS).State)

		require.NoError(t, d.Apply(context.Background(), PropMotionNS, property.Update{
			Switches: map[string]bool{"MOTION_NORTH": false},
		}))
		assert.Equal(t, property.OK, snapshot(t, d, PropMotionNS).State)
	})
}

func TestAbort(t *testing.T) {
	t.Run("abort stops the device and returns the session to idle", func(t *testing.T) {
		d, m, md := connectedMount(t, 0, false)

		md.On("SetTarget", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		md.On("Slew", mock.Anything).Return(nil)
		md.On("Status", mock.Anything).Return(slewingStatus, nil)
		md.On("Abort", mock.Anything).Return(nil)

		require.NoError(t, d.Apply(context.Background(), PropEquatorialCoords, property.Update{
			Numbers: map[string]float64{"RA": 5.5, "DEC": 22},
		}))
		require.Equal(t, Slewing, m.State())

		require.NoError(t, d.Apply(context.Background(), PropAbort, property.SwitchOn("ABORT")))

		assert.Equal(t, Idle, m.State())
		assert.Equal(t, property.Idle, snapshot(t, d, PropEquatorialCoords).State)

		abort := snapshot(t, d, PropAbort)
		assert.Equal(t, "", abort.OnSwitch())
		assert.Equal(t, property.OK, abort.State)
	})
}

func TestGuide(t *testing.T) {
	caps := ada.NewCapabilitySet(ada.CanGuide)

	t.Run("a pulse zeroes the opposite member, goes busy and completes idle", func(t *testing.T) {
		d, _, md := connectedMount(t, caps, false)

		md.On("Guide", mock.Anything, North, 20*time.Millisecond).Return(nil)

		require.NoError(t, d.Apply(context.Background(), PropGuideNS, property.Num("TIMED_GUIDE_N", 20)))

		p := snapshot(t, d, PropGuideNS)
		assert.Equal(t, property.Busy, p.State)
		assert.Equal(t, 20.0, p.Number("TIMED_GUIDE_N").Value)
		assert.Equal(t, 0.0, p.Number("TIMED_GUIDE_S").Value)

		assert.Eventually(t, func() bool {
			return snapshot(t, d, PropGuideNS).State == property.Idle
		}, time.Second, 5*time.Millisecond)

		assert.Equal(t, 0.0, snapshot(t, d, PropGuideNS).Number("TIMED_GUIDE_N").Value)
	})

	t.Run("a pulse on both members of one axis is rejected", func(t *testing.T) {
		d, _, md := connectedMount(t, caps, false)

		err := d.Apply(context.Background(), PropGuideNS, property.Update{
			Numbers: map[string]float64{"TIMED_GUIDE_N": 10, "TIMED_GUIDE_S": 10},
		})

		assert.Error(t, err)
		md.AssertNotCalled(t, "Guide", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("pulses are rejected while slewing", func(t *testing.T) {
		d, m, md := connectedMount(t, caps, false)

		md.On("SetTarget", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		md.On("Slew", mock.Anything).Return(nil)
		md.On("Status", mock.Anything).Return(slewingStatus, nil)

		require.NoError(t, d.Apply(context.Background(), PropEquatorialCoords, property.Update{
			Numbers: map[string]float64{"RA": 5.5, "DEC": 22},
		}))
		require.Equal(t, Slewing, m.State())

		err := d.Apply(context.Background(), PropGuideNS, property.Num("TIMED_GUIDE_N", 100))

		var invalid *InvalidStateError
		require.ErrorAs(t, err, &invalid)
		md.AssertNotCalled(t, "Guide", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("a slew starting mid pulse cancels the completion timer", func(t *testing.T) {
		d, _, md := connectedMount(t, caps, false)

		md.On("Guide", mock.Anything, West, time.Minute).Return(nil)
		md.On("SetTarget", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		md.On("Slew", mock.Anything).Return(nil)
		md.On("Status", mock.Anything).Return(slewingStatus, nil)

		require.NoError(t, d.Apply(context.Background(), PropGuideWE, property.Num("TIMED_GUIDE_W", 60000)))
		require.Equal(t, property.Busy, snapshot(t, d, PropGuideWE).State)

		require.NoError(t, d.Apply(context.Background(), PropEquatorialCoords, property.Update{
			Numbers: map[string]float64{"RA": 5.5, "DEC": 22},
		}))

		assert.Equal(t, property.Idle, snapshot(t, d, PropGuideWE).State)
		assert.Equal(t, 0.0, snapshot(t, d, PropGuideWE).Number("TIMED_GUIDE_W").Value)
	})
}

func TestTracking(t *testing.T) {
	t.Run("enabling tracking while parked is rejected", func(t *testing.T) {
		d, _, md := connectedMount(t, ada.NewCapabilitySet(ada.CanControlTrack), true)

		err := d.Apply(context.Background(), PropTrackState, property.SwitchOn("TRACK_ON"))

		var invalid *InvalidStateError
		require.ErrorAs(t, err, &invalid)
		md.AssertNotCalled(t, "SetTrackEnabled", mock.Anything, mock.Anything)
	})

	t.Run("a track mode selection reaches the driver", func(t *testing.T) {
		d, _, md := connectedMount(t, ada.NewCapabilitySet(ada.CanTrackMode), false)

		md.On("SetTrackMode", mock.Anything, TrackLunar).Return(nil)

		require.NoError(t, d.Apply(context.Background(), PropTrackMode, property.SwitchOn("TRACK_LUNAR")))
		assert.Equal(t, "TRACK_LUNAR", snapshot(t, d, PropTrackMode).OnSwitch())
	})

	t.Run("re-selecting the reported track mode sends no command", func(t *testing.T) {
		d, m, md := connectedMount(t, ada.NewCapabilitySet(ada.CanTrackMode), false)

		md.On("Status", mock.Anything).Return(stoppedStatus, nil)
		md.On("Coords", mock.Anything).Return(5.5, 22.0, nil)
		require.NoError(t, m.Poll(context.Background()))

		require.NoError(t, d.Apply(context.Background(), PropTrackMode, property.SwitchOn("TRACK_SIDEREAL")))

		assert.Equal(t, property.OK, snapshot(t, d, PropTrackMode).State)
		assert.Equal(t, "TRACK_SIDEREAL", snapshot(t, d, PropTrackMode).OnSwitch())
		md.AssertNotCalled(t, "SetTrackMode", mock.Anything, mock.Anything)
	})
}

func TestTimeAndSite(t *testing.T) {
	t.Run("a time update reaches the driver with its offset", func(t *testing.T) {
		d, _, md := connectedMount(t, 0, false)

		want := time.Date(2016, 8, 10, 22, 30, 15, 0, time.UTC)
		md.On("SetTime", mock.Anything, want, 2*time.Hour).Return(nil)

		u := property.Update{Texts: map[string]string{"UTC": "2016-08-10T22:30:15", "OFFSET": "2"}}
		require.NoError(t, d.Apply(context.Background(), PropTime, u))

		assert.Equal(t, property.OK, snapshot(t, d, PropTime).State)
	})

	t.Run("a malformed UTC value never reaches the driver", func(t *testing.T) {
		d, _, md := connectedMount(t, 0, false)

		u := property.Update{Texts: map[string]string{"UTC": "not a timestamp"}}
		err := d.Apply(context.Background(), PropTime, u)

		assert.Error(t, err)
		assert.Equal(t, property.Alert, snapshot(t, d, PropTime).State)
		md.AssertNotCalled(t, "SetTime", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("a site update is sent signed and feeds the park fallback", func(t *testing.T) {
		d, m, md := connectedMount(t, 0, false)

		md.On("SetLocation", mock.Anything, 40.5, -2.5).Return(nil)

		u := property.Update{Numbers: map[string]float64{"LAT": 40.5, "LONG": 357.5}}
		require.NoError(t, d.Apply(context.Background(), PropGeographic, u))

		geo := snapshot(t, d, PropGeographic)
		assert.Equal(t, 357.5, geo.Number("LONG").Value)
		assert.Equal(t, 40.5, m.latitude)
		assert.Equal(t, -2.5, m.longitude)
	})

	t.Run("a site change in the status republishes the location", func(t *testing.T) {
		d, m, md := connectedMount(t, 0, false)

		md.On("Status", mock.Anything).Return(stoppedStatus, nil).Once()
		md.On("Coords", mock.Anything).Return(5.5, 22.0, nil)
		require.NoError(t, m.Poll(context.Background()))
		drainEvents(d)

		moved := stoppedStatus
		moved.Latitude = 41
		md.On("Status", mock.Anything).Return(moved, nil)
		require.NoError(t, m.Poll(context.Background()))

		assert.Equal(t, 41.0, snapshot(t, d, PropGeographic).Number("LAT").Value)
		assert.Equal(t, 41.0, m.latitude)
	})
}

func TestEdgeDetection(t *testing.T) {
	t.Run("identical polls publish nothing", func(t *testing.T) {
		d, m, md := connectedMount(t, ada.NewCapabilitySet(ada.CanControlTrack, ada.CanTrackMode), false)

		md.On("Status", mock.Anything).Return(stoppedStatus, nil)
		md.On("Coords", mock.Anything).Return(5.5, 22.0, nil)

		require.NoError(t, m.Poll(context.Background()))
		first := drainEvents(d)
		assert.NotEmpty(t, first)

		require.NoError(t, m.Poll(context.Background()))
		assert.Empty(t, drainEvents(d))
	})

	t.Run("a changed field republishes only its property", func(t *testing.T) {
		d, m, md := connectedMount(t, 0, false)

		md.On("Status", mock.Anything).Return(stoppedStatus, nil).Once()
		md.On("Coords", mock.Anything).Return(5.5, 22.0, nil)

		require.NoError(t, m.Poll(context.Background()))
		drainEvents(d)

		gpsFixed := stoppedStatus
		gpsFixed.GPS = GPSDataOK
		md.On("Status", mock.Anything).Return(gpsFixed, nil)

		require.NoError(t, m.Poll(context.Background()))

		events := drainEvents(d)
		require.Len(t, events, 1)

		updated, ok := events[0].(ada.PropertyUpdated)
		require.True(t, ok)
		assert.Equal(t, PropGPSStatus, updated.Property.Name)
		assert.Equal(t, "GPS_DATA_OK", updated.Property.OnSwitch())
	})
}

func TestStopAfterPark(t *testing.T) {
	t.Run("disabling the option leaves tracking running after a park", func(t *testing.T) {
		d, m, md := connectedMount(t, ada.NewCapabilitySet(ada.CanParkNatively), false)

		require.NoError(t, d.Apply(context.Background(), PropStopAfterPark, property.SwitchOn("OFF")))

		md.On("Abort", mock.Anything).Return(nil)
		md.On("Park", mock.Anything).Return(nil)
		md.On("Status", mock.Anything).Return(parkedStatus, nil)
		md.On("Coords", mock.Anything).Return(1.0, 2.0, nil)

		require.NoError(t, d.Apply(context.Background(), PropPark, property.SwitchOn("PARK")))
		require.NoError(t, m.Poll(context.Background()))

		assert.Equal(t, Parked, m.State())
		md.AssertNotCalled(t, "SetTrackEnabled", mock.Anything, mock.Anything)
	})
}
