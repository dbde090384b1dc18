package property

import (
	"fmt"
	"sync"
)

// Sink receives publication snapshots. The device core fans these out to
// connected clients; tests capture them directly.
type Sink interface {
	PropertyDefined(Property)
	PropertyUpdated(Property)
	PropertyWithdrawn(name string)
}

// Store owns every property of one device. All access is serialised through
// its lock, which makes it the synchronisation point between the polling
// loop and externally triggered reconciliation.
type Store struct {
	m     sync.Mutex
	props map[string]*Property
	order []string
	sink  Sink
}

func NewStore(sink Sink) *Store {
	return &Store{
		props: make(map[string]*Property),
		sink:  sink,
	}
}

// Define registers the property and announces it. Defining an already
// registered name replaces it, which is how reconnects refresh members.
func (s *Store) Define(p *Property) {
	s.m.Lock()

	if _, exists := s.props[p.Name]; !exists {
		s.order = append(s.order, p.Name)
	}
	s.props[p.Name] = p
	snapshot := p.Clone()

	s.m.Unlock()

	s.sink.PropertyDefined(snapshot)
}

// Withdraw removes the property from client view. The property itself is
// retained so a reconnect can re-define it with its last values.
func (s *Store) Withdraw(name string) {
	s.m.Lock()

	_, exists := s.props[name]
	if exists {
		delete(s.props, name)
		for i, n := range s.order {
			if n == name {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}

	s.m.Unlock()

	if exists {
		s.sink.PropertyWithdrawn(name)
	}
}

// Has reports whether the named property is currently defined.
func (s *Store) Has(name string) bool {
	s.m.Lock()
	defer s.m.Unlock()

	_, ok := s.props[name]
	return ok
}

// Snapshot returns a copy of the named property.
func (s *Store) Snapshot(name string) (Property, bool) {
	s.m.Lock()
	defer s.m.Unlock()

	p, ok := s.props[name]
	if !ok {
		return Property{}, false
	}

	return p.Clone(), true
}

// With runs fn against the named property under the store lock, without
// publishing. Used for staging.
func (s *Store) With(name string, fn func(*Property) error) error {
	s.m.Lock()
	defer s.m.Unlock()

	p, ok := s.props[name]
	if !ok {
		return fmt.Errorf("property %s not defined", name)
	}

	return fn(p)
}

// Mutate runs fn against the named property under the store lock, then
// publishes the result whether or not fn succeeded. This is the publication
// rule of the reconciliation engine: clients always observe the outcome.
func (s *Store) Mutate(name string, fn func(*Property) error) error {
	s.m.Lock()

	p, ok := s.props[name]
	if !ok {
		s.m.Unlock()
		return fmt.Errorf("property %s not defined", name)
	}

	err := fn(p)
	snapshot := p.Clone()

	s.m.Unlock()

	s.sink.PropertyUpdated(snapshot)

	return err
}

// Publish re-announces the current values of the named property.
func (s *Store) Publish(name string) {
	s.m.Lock()
	p, ok := s.props[name]
	if !ok {
		s.m.Unlock()
		return
	}
	snapshot := p.Clone()
	s.m.Unlock()

	s.sink.PropertyUpdated(snapshot)
}

// Names returns the defined property names in definition order.
func (s *Store) Names() []string {
	s.m.Lock()
	defer s.m.Unlock()

	return append([]string(nil), s.order...)
}
