package ada

import (
	"context"
	"errors"

	"github.com/openastro/ada/property"
)

// Events published to clients of the device, readable via Device.ReadEvent.

type DeviceConnected struct {
	Device *Device
}

type DeviceDisconnected struct {
	Device *Device
}

type PropertyDefined struct {
	Device   *Device
	Property property.Property
}

type PropertyUpdated struct {
	Device   *Device
	Property property.Property
}

type PropertyWithdrawn struct {
	Device *Device
	Name   string
}

func (d *Device) sendEvent(event any) {
	select {
	case d.events <- event:
	default:
		d.logger.LogWarn(context.Background(), "Event channel buffer full, dropping event.")
	}
}

// ReadEvent blocks until an event is available or the context expires.
func (d *Device) ReadEvent(ctx context.Context) (any, error) {
	select {
	case event := <-d.events:
		return event, nil
	case <-ctx.Done():
		return nil, errors.New("context expired")
	}
}

// property.Sink implementation forwarding store publications as events.

func (d *Device) PropertyDefined(p property.Property) {
	d.sendEvent(PropertyDefined{Device: d, Property: p})
}

func (d *Device) PropertyUpdated(p property.Property) {
	d.sendEvent(PropertyUpdated{Device: d, Property: p})
}

func (d *Device) PropertyWithdrawn(name string) {
	d.sendEvent(PropertyWithdrawn{Device: d, Name: name})
}

var _ property.Sink = (*Device)(nil)

// SessionStateChanged is raised on the internal callback chain whenever a
// module's discrete session state moves. Other modules subscribe to it, for
// example the guider cancels an active pulse when a slew begins.
type SessionStateChanged struct {
	Module string
	From   string
	To     string
}
