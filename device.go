// Package ada is a device abstraction for serial controlled astronomical
// instruments. A Device composes capability modules (mount, guider, dust
// cap, light box) over an exclusively owned transport, reconciles client
// property updates against device state, and drives per-module state
// machines forward on a periodic status poll.
package ada

import (
	"context"
	"sync"
	"time"

	"github.com/openastro/ada/property"
	"github.com/openastro/ada/transport"
	"github.com/shimmeringbee/callbacks"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"github.com/shimmeringbee/persistence"
	"golang.org/x/sync/semaphore"
)

const DefaultPollInterval = 1 * time.Second

// Module is one capability of a device, composed by explicit delegation.
// Incoming property updates are offered to each attached module in order
// until one claims them.
type Module interface {
	Name() string
	// Init wires the module to its owning device and persistence section.
	// Called once, before Connect.
	Init(d *Device, s persistence.Section)
	// Connect performs the module's part of the handshake and defines its
	// properties. An error aborts the whole connection setup.
	Connect(ctx context.Context) error
	// Disconnect withdraws the module's properties.
	Disconnect(ctx context.Context) error
	// Apply offers a client proposed property update. It returns false when
	// the property does not belong to this module.
	Apply(ctx context.Context, name string, u property.Update) (bool, error)
	// Poll is invoked on every tick of the device poller.
	Poll(ctx context.Context) error
}

// Device is one instrument instance. It exclusively owns its transport, and
// is constructed and owned by the process entry point; there is no ambient
// global.
type Device struct {
	name      string
	transport transport.Transport
	section   persistence.Section
	logger    logwrap.Logger

	store     *property.Store
	modules   []Module
	callbacks callbacks.AdderCaller
	poller    *poller
	events    chan any

	capLock sync.RWMutex
	caps    CapabilitySet

	inflightLock sync.Mutex
	inflight     map[string]*semaphore.Weighted

	connected bool
}

func New(name string, t transport.Transport, s persistence.Section) *Device {
	d := &Device{
		name:      name,
		transport: t,
		section:   s,
		logger:    logwrap.New(discard.Discard()),
		callbacks: callbacks.Create(),
		events:    make(chan any, 100),
		inflight:  make(map[string]*semaphore.Weighted),
	}

	d.store = property.NewStore(d)
	d.poller = &poller{device: d, interval: DefaultPollInterval}

	return d
}

func (d *Device) Name() string {
	return d.name
}

func (d *Device) Transport() transport.Transport {
	return d.transport
}

func (d *Device) Properties() *property.Store {
	return d.store
}

func (d *Device) Section() persistence.Section {
	return d.section
}

func (d *Device) Logger() *logwrap.Logger {
	return &d.logger
}

func (d *Device) Callbacks() callbacks.AdderCaller {
	return d.callbacks
}

func (d *Device) Connected() bool {
	return d.connected
}

// AttachModule adds a module to the end of the dispatch order. Modules must
// be attached before Connect.
func (d *Device) AttachModule(m Module) {
	section := d.section.Section("module", m.Name())
	m.Init(d, section)
	d.modules = append(d.modules, m)
}

// Capabilities returns the session capability set.
func (d *Device) Capabilities() CapabilitySet {
	d.capLock.RLock()
	defer d.capLock.RUnlock()

	return d.caps
}

// AddCapabilities is called by modules during their handshake as probes
// succeed. The set is frozen once Connect returns.
func (d *Device) AddCapabilities(caps ...Capability) {
	d.capLock.Lock()
	defer d.capLock.Unlock()

	d.caps = d.caps.With(caps...)
}

// RemoveCapabilities narrows the session set, used by the rules engine when
// a model is known to misreport a probe.
func (d *Device) RemoveCapabilities(caps ...Capability) {
	d.capLock.Lock()
	defer d.capLock.Unlock()

	d.caps = d.caps.Without(caps...)
}

// Connect runs every module's handshake in attach order, then starts the
// status poller. Any module failure tears down the ones already connected
// and reports a HandshakeError: a device that fails its handshake never
// reports ready.
func (d *Device) Connect(pctx context.Context) error {
	ctx, end := d.logger.Segment(pctx, "Connecting device.", logwrap.Datum("device", d.name))
	defer end()

	d.capLock.Lock()
	d.caps = 0
	d.capLock.Unlock()

	for i, m := range d.modules {
		if err := m.Connect(ctx); err != nil {
			d.logger.LogError(ctx, "Module handshake failed.", logwrap.Datum("module", m.Name()), logwrap.Err(err))

			for j := i - 1; j >= 0; j-- {
				_ = d.modules[j].Disconnect(ctx)
			}

			return &HandshakeError{Module: m.Name(), Err: err}
		}

		d.logger.LogInfo(ctx, "Module connected.", logwrap.Datum("module", m.Name()))
	}

	d.connected = true
	d.poller.Start()
	d.sendEvent(DeviceConnected{Device: d})

	return nil
}

// Disconnect stops polling, withdraws module properties in reverse attach
// order and clears the session capability set.
func (d *Device) Disconnect(pctx context.Context) error {
	ctx, end := d.logger.Segment(pctx, "Disconnecting device.", logwrap.Datum("device", d.name))
	defer end()

	d.poller.Stop()

	for i := len(d.modules) - 1; i >= 0; i-- {
		if err := d.modules[i].Disconnect(ctx); err != nil {
			d.logger.LogWarn(ctx, "Module disconnect reported error.", logwrap.Datum("module", d.modules[i].Name()), logwrap.Err(err))
		}
	}

	d.capLock.Lock()
	d.caps = 0
	d.capLock.Unlock()

	d.connected = false
	d.sendEvent(DeviceDisconnected{Device: d})

	return nil
}

func (d *Device) pollModules(ctx context.Context) {
	for _, m := range d.modules {
		if err := m.Poll(ctx); err != nil {
			d.logger.LogWarn(ctx, "Module poll failed.", logwrap.Datum("module", m.Name()), logwrap.Err(err))
		}
	}
}

// SetPollInterval changes the current polling period. Takes effect from the
// next tick.
func (d *Device) SetPollInterval(interval time.Duration) {
	d.poller.SetInterval(interval)
}
