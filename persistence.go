package ada

import (
	"github.com/shimmeringbee/persistence"
)

const parkedKey = "Parked"

// SectionForModule exposes the persistence subtree a module was initialised
// with, for callers that need to inspect durable state out of band.
func (d *Device) SectionForModule(name string) persistence.Section {
	return d.section.Section("module", name)
}

// Parked reports the persisted park flag for the device. Loaded at startup
// so a mount that was shut down parked starts its session in the Parked
// state.
func (d *Device) Parked() bool {
	v, _ := d.section.Bool(parkedKey)
	return v
}

// SetParked stores the park flag durably. Called by the mount module when a
// park sequence completes or an unpark succeeds.
func (d *Device) SetParked(parked bool) {
	d.section.Set(parkedKey, parked)
}
