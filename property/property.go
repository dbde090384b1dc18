// Package property implements the typed, named value groups a driver
// publishes to its clients: switch sets, number sets and text sets, each
// carrying a validity state. The Store is the synchronisation point between
// the polling loop and client initiated reconciliation.
package property

import "fmt"

type State int

const (
	Idle State = iota
	OK
	Busy
	Alert
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case OK:
		return "Ok"
	case Busy:
		return "Busy"
	case Alert:
		return "Alert"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Perm int

const (
	ReadOnly Perm = iota
	ReadWrite
)

type Kind int

const (
	SwitchSet Kind = iota
	NumberSet
	TextSet
)

// SwitchRule constrains how many members of a switch set may be on.
type SwitchRule int

const (
	AnyOfMany SwitchRule = iota
	AtMostOne
	OneOfMany
)

type Switch struct {
	Name  string
	Label string
	On    bool
}

type Number struct {
	Name  string
	Label string
	Min   float64
	Max   float64
	Step  float64
	Value float64
}

type Text struct {
	Name  string
	Label string
	Value string
}

// Property is one named value group. Members are ordered; lookups are by
// member name. Mutation goes through the owning Store's lock.
type Property struct {
	Name  string
	Label string
	Group string
	Kind  Kind
	Perm  Perm
	Rule  SwitchRule
	State State

	Switches []Switch
	Numbers  []Number
	Texts    []Text
}

func NewSwitchSet(name, label string, perm Perm, rule SwitchRule, members ...Switch) *Property {
	return &Property{Name: name, Label: label, Kind: SwitchSet, Perm: perm, Rule: rule, Switches: members}
}

func NewNumberSet(name, label string, perm Perm, members ...Number) *Property {
	return &Property{Name: name, Label: label, Kind: NumberSet, Perm: perm, Numbers: members}
}

func NewTextSet(name, label string, perm Perm, members ...Text) *Property {
	return &Property{Name: name, Label: label, Kind: TextSet, Perm: perm, Texts: members}
}

func (p *Property) Switch(name string) *Switch {
	for i := range p.Switches {
		if p.Switches[i].Name == name {
			return &p.Switches[i]
		}
	}

	return nil
}

func (p *Property) Number(name string) *Number {
	for i := range p.Numbers {
		if p.Numbers[i].Name == name {
			return &p.Numbers[i]
		}
	}

	return nil
}

func (p *Property) Text(name string) *Text {
	for i := range p.Texts {
		if p.Texts[i].Name == name {
			return &p.Texts[i]
		}
	}

	return nil
}

// OnSwitch returns the name of the first on member, or "".
func (p *Property) OnSwitch() string {
	for i := range p.Switches {
		if p.Switches[i].On {
			return p.Switches[i].Name
		}
	}

	return ""
}

// Reset turns every switch member off.
func (p *Property) Reset() {
	for i := range p.Switches {
		p.Switches[i].On = false
	}
}

// SetOn turns the named member on, clearing the others when the rule allows
// at most one active member.
func (p *Property) SetOn(name string) error {
	target := p.Switch(name)
	if target == nil {
		return fmt.Errorf("property %s: no switch member %s", p.Name, name)
	}

	if p.Rule != AnyOfMany {
		p.Reset()
	}

	target.On = true

	return nil
}

// SetNumber assigns a member value after a bounds check.
func (p *Property) SetNumber(name string, v float64) error {
	n := p.Number(name)
	if n == nil {
		return fmt.Errorf("property %s: no number member %s", p.Name, name)
	}

	if v < n.Min || v > n.Max {
		return fmt.Errorf("property %s: member %s value %g outside [%g, %g]", p.Name, name, v, n.Min, n.Max)
	}

	n.Value = v

	return nil
}

// SetText assigns a member value.
func (p *Property) SetText(name, v string) error {
	t := p.Text(name)
	if t == nil {
		return fmt.Errorf("property %s: no text member %s", p.Name, name)
	}

	t.Value = v

	return nil
}

// Clone returns a deep copy used for publication snapshots.
func (p *Property) Clone() Property {
	c := *p
	c.Switches = append([]Switch(nil), p.Switches...)
	c.Numbers = append([]Number(nil), p.Numbers...)
	c.Texts = append([]Text(nil), p.Texts...)

	return c
}
