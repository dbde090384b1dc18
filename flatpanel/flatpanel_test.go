package flatpanel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openastro/ada"
	"github.com/openastro/ada/property"
	"github.com/shimmeringbee/persistence/impl/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDriver struct {
	mock.Mock
}

func (m *mockDriver) Handshake(ctx context.Context) (string, ada.CapabilitySet, error) {
	args := m.Called(ctx)
	return args.String(0), args.Get(1).(ada.CapabilitySet), args.Error(2)
}

func (m *mockDriver) Status(ctx context.Context) (Status, error) {
	args := m.Called(ctx)
	return args.Get(0).(Status), args.Error(1)
}

func (m *mockDriver) Open(ctx context.Context) error  { return m.Called(ctx).Error(0) }
func (m *mockDriver) Close(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *mockDriver) SetLight(ctx context.Context, on bool) error {
	return m.Called(ctx, on).Error(0)
}

func (m *mockDriver) SetBrightness(ctx context.Context, level int) error {
	return m.Called(ctx, level).Error(0)
}

func (m *mockDriver) MaxBrightness() int { return 4096 }

func (m *mockDriver) SetHeaterMode(ctx context.Context, mode HeaterMode) error {
	return m.Called(ctx, mode).Error(0)
}

var _ Driver = (*mockDriver)(nil)

var fullCaps = ada.NewCapabilitySet(ada.HasDustCap, ada.HasLightBox, ada.HasDimmableLight, ada.HasHeater)

var restingStatus = Status{Cover: CoverClosed, Motor: MotorStopped, Brightness: 0, HeaterMode: HeaterOff, HeaterTemp: -100}

func connectedPanel(t *testing.T, caps ada.CapabilitySet, st Status) (*ada.Device, *Panel, *mockDriver) {
	t.Helper()

	md := &mockDriver{}
	md.On("Handshake", mock.Anything).Return("DeepSkyDad.FP2.v1.2", caps, nil)
	md.On("Status", mock.Anything).Return(st, nil).Once()

	d := ada.New("panel", nil, memory.New())
	d.SetPollInterval(time.Hour)

	f := New(md)
	d.AttachModule(f)

	require.NoError(t, d.Connect(context.Background()))
	t.Cleanup(func() { _ = d.Disconnect(context.Background()) })

	drainEvents(d)

	return d, f, md
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

func TestPanelConnect(t *testing.T) {
	t.Run("properties follow the probed feature set", func(t *testing.T) {
		d, _, _ := connectedPanel(t, fullCaps, restingStatus)

		for _, name := range []string{PropCoverPark, PropLight, PropBrightness, PropHeaterMode, PropFirmware} {
			assert.True(t, d.Properties().Has(name), name)
		}
	})

	t.Run("a light only panel defines no cover or heater", func(t *testing.T) {
		d, _, _ := connectedPanel(t, ada.NewCapabilitySet(ada.HasLightBox, ada.HasDimmableLight), restingStatus)

		assert.False(t, d.Properties().Has(PropCoverPark))
		assert.False(t, d.Properties().Has(PropHeaterMode))
		assert.True(t, d.Properties().Has(PropLight))
	})
}

func TestCover(t *testing.T) {
	t.Run("an unpark goes busy and completes when the poll sees the cover open", func(t *testing.T) {
		d, f, md := connectedPanel(t, fullCaps, restingStatus)

		md.On("Open", mock.Anything).Return(nil)
		md.On("Status", mock.Anything).Return(Status{Cover: CoverMoving, Motor: MotorRunning, HeaterTemp: -100}, nil).Once()
		md.On("Status", mock.Anything).Return(Status{Cover: CoverOpen, Motor: MotorStopped, HeaterTemp: -100}, nil)

		// First poll primes the previous snapshot for the short circuit check.
		require.NoError(t, f.Poll(context.Background()))

		require.NoError(t, d.Apply(context.Background(), PropCoverPark, property.SwitchOn("UNPARK")))
		assert.Equal(t, property.Busy, snapshot(t, d, PropCoverPark).State)

		require.NoError(t, f.Poll(context.Background()))

		cover := snapshot(t, d, PropCoverPark)
		assert.Equal(t, property.OK, cover.State)
		assert.Equal(t, "UNPARK", cover.OnSwitch())
	})

	t.Run("re-requesting the held position sends no command", func(t *testing.T) {
		d, f, md := connectedPanel(t, fullCaps, restingStatus)

		md.On("Status", mock.Anything).Return(restingStatus, nil)
		require.NoError(t, f.Poll(context.Background()))

		require.NoError(t, d.Apply(context.Background(), PropCoverPark, property.SwitchOn("PARK")))

		assert.Equal(t, property.OK, snapshot(t, d, PropCoverPark).State)
		md.AssertNotCalled(t, "Close", mock.Anything)
	})

	t.Run("a cover stopping short of its target raises the alert", func(t *testing.T) {
		d, f, md := connectedPanel(t, fullCaps, restingStatus)

		md.On("Status", mock.Anything).Return(restingStatus, nil).Once()
		md.On("Open", mock.Anything).Return(nil)
		md.On("Status", mock.Anything).Return(Status{Cover: CoverUnknown, Motor: MotorStopped, HeaterTemp: -100}, nil)

		require.NoError(t, f.Poll(context.Background()))
		require.NoError(t, d.Apply(context.Background(), PropCoverPark, property.SwitchOn("UNPARK")))

		require.NoError(t, f.Poll(context.Background()))

		assert.Equal(t, property.Alert, snapshot(t, d, PropCoverPark).State)
	})

	t.Run("a refused drive command raises the alert and surfaces the error", func(t *testing.T) {
		d, _, md := connectedPanel(t, fullCaps, restingStatus)

		md.On("Open", mock.Anything).Return(errors.New("jammed"))

		err := d.Apply(context.Background(), PropCoverPark, property.SwitchOn("UNPARK"))

		assert.Error(t, err)
		assert.Equal(t, property.Alert, snapshot(t, d, PropCoverPark).State)
	})
}

func TestLight(t *testing.T) {
	t.Run("switching and dimming reach the driver", func(t *testing.T) {
		d, _, md := connectedPanel(t, fullCaps, restingStatus)

		md.On("SetLight", mock.Anything, true).Return(nil)
		md.On("SetBrightness", mock.Anything, 1024).Return(nil)

		require.NoError(t, d.Apply(context.Background(), PropLight, property.SwitchOn("LIGHT_ON")))
		assert.Equal(t, "LIGHT_ON", snapshot(t, d, PropLight).OnSwitch())

		require.NoError(t, d.Apply(context.Background(), PropBrightness, property.Num("BRIGHTNESS", 1024)))
		assert.Equal(t, 1024.0, snapshot(t, d, PropBrightness).Number("BRIGHTNESS").Value)
	})

	t.Run("brightness outside the panel's range never reaches the driver", func(t *testing.T) {
		d, _, md := connectedPanel(t, fullCaps, restingStatus)

		err := d.Apply(context.Background(), PropBrightness, property.Num("BRIGHTNESS", 5000))

		assert.Error(t, err)
		md.AssertNotCalled(t, "SetBrightness", mock.Anything, mock.Anything)
	})

	t.Run("re-selecting the held light state sends no command", func(t *testing.T) {
		d, f, md := connectedPanel(t, fullCaps, restingStatus)

		md.On("Status", mock.Anything).Return(restingStatus, nil)
		require.NoError(t, f.Poll(context.Background()))

		require.NoError(t, d.Apply(context.Background(), PropLight, property.SwitchOn("LIGHT_OFF")))

		assert.Equal(t, property.OK, snapshot(t, d, PropLight).State)
		md.AssertNotCalled(t, "SetLight", mock.Anything, mock.Anything)
	})
}

func TestHeater(t *testing.T) {
	t.Run("selecting the mode the device already reports sends no command", func(t *testing.T) {
		d, f, md := connectedPanel(t, fullCaps, restingStatus)

		warm := restingStatus
		warm.HeaterMode = HeaterOn
		md.On("Status", mock.Anything).Return(warm, nil)
		require.NoError(t, f.Poll(context.Background()))

		require.NoError(t, d.Apply(context.Background(), PropHeaterMode, property.SwitchOn("ON")))

		assert.Equal(t, property.OK, snapshot(t, d, PropHeaterMode).State)
		md.AssertNotCalled(t, "SetHeaterMode", mock.Anything, mock.Anything)
	})

	t.Run("a different mode is commanded", func(t *testing.T) {
		d, f, md := connectedPanel(t, fullCaps, restingStatus)

		md.On("Status", mock.Anything).Return(restingStatus, nil)
		require.NoError(t, f.Poll(context.Background()))

		md.On("SetHeaterMode", mock.Anything, HeaterOnIfActive).Return(nil)

		require.NoError(t, d.Apply(context.Background(), PropHeaterMode, property.SwitchOn("ON2")))
		assert.Equal(t, "ON2", snapshot(t, d, PropHeaterMode).OnSwitch())
	})

	t.Run("the temperature property appears when a sensor attaches and disappears when it detaches", func(t *testing.T) {
		d, f, md := connectedPanel(t, fullCaps, restingStatus)

		attached := restingStatus
		attached.HeaterTemp = 12.5
		md.On("Status", mock.Anything).Return(attached, nil).Once()
		md.On("Status", mock.Anything).Return(restingStatus, nil)

		require.NoError(t, f.Poll(context.Background()))
		require.True(t, d.Properties().Has(PropHeaterTemp))
		assert.Equal(t, 12.5, snapshot(t, d, PropHeaterTemp).Number("TEMPERATURE").Value)

		require.NoError(t, f.Poll(context.Background()))
		assert.False(t, d.Properties().Has(PropHeaterTemp))
	})
}

func TestPanelEdgeDetection(t *testing.T) {
	t.Run("identical polls publish nothing", func(t *testing.T) {
		d, f, md := connectedPanel(t, fullCaps, restingStatus)

		md.On("Status", mock.Anything).Return(restingStatus, nil)

		require.NoError(t, f.Poll(context.Background()))
		assert.NotEmpty(t, drainEvents(d))

		require.NoError(t, f.Poll(context.Background()))
		assert.Empty(t, drainEvents(d))
	})
}
