package ada

import (
	"context"

	"github.com/openastro/ada/property"
	"github.com/shimmeringbee/logwrap"
	"golang.org/x/sync/semaphore"
)

// Apply is the reconciliation entry point: it validates and dispatches a
// client proposed property update to the owning module, which stages the
// values, issues the implied device commands and publishes the outcome.
//
// At most one reconciliation may be in flight per property. A second
// request for the same property while one is pending is rejected with
// ErrPropertyBusy rather than queued; the property state it observes on the
// next publication tells the client what happened.
func (d *Device) Apply(ctx context.Context, name string, u property.Update) error {
	if !d.store.Has(name) {
		return ErrUnknownProperty
	}

	sem := d.semaphoreFor(name)
	if !sem.TryAcquire(1) {
		d.logger.LogDebug(ctx, "Rejected concurrent reconciliation.", logwrap.Datum("property", name))
		return ErrPropertyBusy
	}
	defer sem.Release(1)

	for _, m := range d.modules {
		handled, err := m.Apply(ctx, name, u)
		if handled {
			return err
		}
	}

	return ErrUnknownProperty
}

func (d *Device) semaphoreFor(name string) *semaphore.Weighted {
	d.inflightLock.Lock()
	defer d.inflightLock.Unlock()

	sem, ok := d.inflight[name]
	if !ok {
		sem = semaphore.NewWeighted(1)
		d.inflight[name] = sem
	}

	return sem
}
