// Package flatpanel implements the dust cap / flat field light capability
// module: motorised cover park and unpark, light switching with dimmable
// brightness, and dew heater control. The instrument vocabulary sits behind
// the Driver interface.
package flatpanel

import (
	"context"
	"sync"

	"github.com/openastro/ada"
	"github.com/openastro/ada/property"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/persistence"
)

type CoverState int

const (
	CoverUnknown CoverState = iota
	CoverOpen
	CoverClosed
	CoverMoving
)

func (c CoverState) String() string {
	return [...]string{"Unknown", "Open", "Closed", "Moving"}[c]
}

type MotorState int

const (
	MotorStopped MotorState = iota
	MotorRunning
)

// HeaterMode is the dew heater operating mode. HeaterOnIfActive runs the
// heater only while the flap is open or the light is lit.
type HeaterMode int

const (
	HeaterOff HeaterMode = iota
	HeaterOn
	HeaterOnIfActive
)

// heaterDisconnectedBelow is the temperature floor under which the heater
// reports no sensor attached.
const heaterDisconnectedBelow = -40.0

// Status is one decoded panel status snapshot.
type Status struct {
	Cover      CoverState
	Motor      MotorState
	LightOn    bool
	Brightness int
	HeaterMode HeaterMode
	HeaterTemp float64
}

// Driver is the command vocabulary of one flat panel protocol.
type Driver interface {
	// Handshake pings the device, reads its firmware name and probes which
	// of the cover, light and heater features this model carries.
	Handshake(ctx context.Context) (firmware string, caps ada.CapabilitySet, err error)

	Status(ctx context.Context) (Status, error)

	Open(ctx context.Context) error
	Close(ctx context.Context) error

	SetLight(ctx context.Context, on bool) error
	SetBrightness(ctx context.Context, level int) error
	MaxBrightness() int

	SetHeaterMode(ctx context.Context, mode HeaterMode) error
}

const (
	PropCoverPark  = "CAP_PARK"
	PropLight      = "FLAT_LIGHT_CONTROL"
	PropBrightness = "FLAT_LIGHT_INTENSITY"
	PropHeaterMode = "HEATER_MODE"
	PropHeaterTemp = "HEATER_TEMPERATURE"
	PropFirmware   = "PANEL_FIRMWARE"
)

// Panel is the flat panel module.
type Panel struct {
	driver Driver

	dev     *ada.Device
	section persistence.Section
	logger  *logwrap.Logger

	m            sync.Mutex
	prev         *Status
	pendingCover string
	heaterOnline bool
}

func New(driver Driver) *Panel {
	return &Panel{driver: driver}
}

func (f *Panel) Name() string {
	return "flatpanel"
}

func (f *Panel) Init(d *ada.Device, s persistence.Section) {
	f.dev = d
	f.section = s
	f.logger = d.Logger()
}

func (f *Panel) Connect(pctx context.Context) error {
	ctx, end := f.logger.Segment(pctx, "Flat panel handshake.")
	defer end()

	firmware, caps, err := f.driver.Handshake(ctx)
	if err != nil {
		return err
	}

	f.m.Lock()
	defer f.m.Unlock()

	f.dev.AddCapabilities(caps.List()...)
	f.logger.LogInfo(ctx, "Flat panel identified.", logwrap.Datum("firmware", firmware), logwrap.Datum("capabilities", f.dev.Capabilities().String()))

	st, err := f.driver.Status(ctx)
	if err != nil {
		return err
	}

	f.prev = nil
	f.pendingCover = ""
	f.heaterOnline = false

	f.defineProperties(firmware, st)

	return nil
}

func (f *Panel) Disconnect(context.Context) error {
	f.m.Lock()
	defer f.m.Unlock()

	for _, name := range []string{
		PropCoverPark, PropLight, PropBrightness, PropHeaterMode,
		PropHeaterTemp, PropFirmware,
	} {
		f.dev.Properties().Withdraw(name)
	}

	return nil
}

func (f *Panel) defineProperties(firmware string, st Status) {
	caps := f.dev.Capabilities()
	store := f.dev.Properties()

	store.Define(property.NewTextSet(PropFirmware, "Firmware", property.ReadOnly,
		property.Text{Name: "VERSION", Label: "Version", Value: firmware},
	))

	if caps.Has(ada.HasDustCap) {
		cover := property.NewSwitchSet(PropCoverPark, "Dust cover", property.ReadWrite, property.OneOfMany,
			property.Switch{Name: "PARK", Label: "Park", On: st.Cover == CoverClosed},
			property.Switch{Name: "UNPARK", Label: "Unpark", On: st.Cover == CoverOpen},
		)
		if st.Cover == CoverMoving {
			cover.State = property.Busy
		} else if st.Cover != CoverUnknown {
			cover.State = property.OK
		}
		store.Define(cover)
	}

	if caps.Has(ada.HasLightBox) {
		store.Define(property.NewSwitchSet(PropLight, "Flat light", property.ReadWrite, property.OneOfMany,
			property.Switch{Name: "LIGHT_ON", Label: "On", On: st.LightOn},
			property.Switch{Name: "LIGHT_OFF", Label: "Off", On: !st.LightOn},
		))
	}

	if caps.Has(ada.HasDimmableLight) {
		store.Define(property.NewNumberSet(PropBrightness, "Brightness", property.ReadWrite,
			property.Number{Name: "BRIGHTNESS", Label: "Level", Min: 0, Max: float64(f.driver.MaxBrightness()), Step: 1, Value: float64(st.Brightness)},
		))
	}

	if caps.Has(ada.HasHeater) {
		mode := property.NewSwitchSet(PropHeaterMode, "Heater mode", property.ReadWrite, property.OneOfMany,
			property.Switch{Name: "OFF", Label: "Off"},
			property.Switch{Name: "ON", Label: "On"},
			property.Switch{Name: "ON2", Label: "On if flap open/LED active"},
		)
		if int(st.HeaterMode) < len(mode.Switches) {
			mode.Switches[int(st.HeaterMode)].On = true
		}
		store.Define(mode)
	}
}

var _ ada.Module = (*Panel)(nil)
