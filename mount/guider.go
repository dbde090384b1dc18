package mount

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/openastro/ada"
	"github.com/openastro/ada/property"
	"github.com/shimmeringbee/logwrap"
)

// guider implements the timed pulse sub-protocol. A pulse request names a
// duration on one axis member; issuing it zeroes the opposite member, marks
// the axis property Busy, and a completion timer republishes it Idle once
// the pulse has elapsed. A slew or park starting mid pulse cancels it.
type guider struct {
	mount *Mount

	mu     sync.Mutex
	timers map[string]*time.Timer
}

var guideMembers = map[string][2]string{
	PropGuideNS: {"TIMED_GUIDE_N", "TIMED_GUIDE_S"},
	PropGuideWE: {"TIMED_GUIDE_W", "TIMED_GUIDE_E"},
}

var guideDirections = map[string]Direction{
	"TIMED_GUIDE_N": North,
	"TIMED_GUIDE_S": South,
	"TIMED_GUIDE_W": West,
	"TIMED_GUIDE_E": East,
}

func newGuider(m *Mount) *guider {
	g := &guider{
		mount:  m,
		timers: map[string]*time.Timer{},
	}

	m.dev.Callbacks().Add(g.sessionStateChanged)

	return g
}

// sessionStateChanged cancels in flight pulses when the mount starts any
// motion that supersedes guiding.
func (g *guider) sessionStateChanged(_ context.Context, e ada.SessionStateChanged) error {
	switch e.To {
	case Slewing.String(), Parking.String(), Parked.String(), Homing.String():
		g.cancelAll()
	}

	return nil
}

// apply handles a pulse request on one axis. Called with the mount lock
// held.
func (g *guider) apply(ctx context.Context, name string, u property.Update) error {
	m := g.mount

	if !m.dev.Capabilities().Has(ada.CanGuide) {
		m.alert(name)
		return ada.ErrCapabilityUnsupported
	}

	switch m.state {
	case Slewing, Parking, Parked, Homing:
		m.alert(name)
		return &InvalidStateError{Op: "guide", State: m.state}
	}

	members := guideMembers[name]

	member, duration, err := pickPulse(members, u)
	if err != nil {
		m.alert(name)
		return err
	}

	g.cancel(name)

	if duration == 0 {
		return m.dev.Properties().Mutate(name, func(p *property.Property) error {
			p.Number(members[0]).Value = 0
			p.Number(members[1]).Value = 0
			p.State = property.Idle

			return nil
		})
	}

	if err := m.driver.Guide(ctx, guideDirections[member], duration); err != nil {
		m.alert(name)
		return err
	}

	m.logger.LogDebug(ctx, "Guide pulse started.", logwrap.Datum("member", member), logwrap.Datum("ms", duration.Milliseconds()))

	err = m.dev.Properties().Mutate(name, func(p *property.Property) error {
		p.Number(members[0]).Value = 0
		p.Number(members[1]).Value = 0
		p.Number(member).Value = float64(duration.Milliseconds())
		p.State = property.Busy

		return nil
	})
	if err != nil {
		return err
	}

	g.schedule(name, members, duration)

	return nil
}

// pickPulse resolves which member of the axis pair is being pulsed. A
// request naming both members nonzero is rejected; a nonzero member
// implicitly zeroes its opposite.
func pickPulse(members [2]string, u property.Update) (string, time.Duration, error) {
	a := u.Numbers[members[0]]
	b := u.Numbers[members[1]]

	if a != 0 && b != 0 {
		return "", 0, errors.New("pulse requested in both directions of one axis")
	}

	if b != 0 {
		return members[1], time.Duration(b) * time.Millisecond, nil
	}

	return members[0], time.Duration(a) * time.Millisecond, nil
}

func (g *guider) schedule(name string, members [2]string, duration time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.timers[name] = time.AfterFunc(duration, func() {
		g.mu.Lock()
		delete(g.timers, name)
		g.mu.Unlock()

		g.mount.dev.Properties().Mutate(name, func(p *property.Property) error {
			p.Number(members[0]).Value = 0
			p.Number(members[1]).Value = 0
			p.State = property.Idle

			return nil
		})
	})
}

func (g *guider) cancel(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if t, ok := g.timers[name]; ok {
		t.Stop()
		delete(g.timers, name)
	}
}

// cancelAll stops every pending completion timer and publishes the axis
// properties Idle.
func (g *guider) cancelAll() {
	g.mu.Lock()
	cancelled := make([]string, 0, len(g.timers))
	for name, t := range g.timers {
		t.Stop()
		cancelled = append(cancelled, name)
		delete(g.timers, name)
	}
	g.mu.Unlock()

	for _, name := range cancelled {
		members := guideMembers[name]

		g.mount.dev.Properties().Mutate(name, func(p *property.Property) error {
			p.Number(members[0]).Value = 0
			p.Number(members[1]).Value = 0
			p.State = property.Idle

			return nil
		})
	}
}
