package property

import "fmt"

// Update carries a client proposed change to one property. Only the members
// named in the maps are touched, the remainder keep their staged values.
type Update struct {
	Switches map[string]bool
	Numbers  map[string]float64
	Texts    map[string]string
}

// SwitchOn proposes turning exactly one member on.
func SwitchOn(member string) Update {
	return Update{Switches: map[string]bool{member: true}}
}

// Num proposes one number member value.
func Num(member string, v float64) Update {
	return Update{Numbers: map[string]float64{member: v}}
}

// Validate checks the update against member existence, bounds and the
// property's permission, without mutating anything.
func (p *Property) Validate(u Update) error {
	if p.Perm == ReadOnly {
		return fmt.Errorf("property %s is read only", p.Name)
	}

	for name := range u.Switches {
		if p.Switch(name) == nil {
			return fmt.Errorf("property %s: no switch member %s", p.Name, name)
		}
	}

	for name, v := range u.Numbers {
		n := p.Number(name)
		if n == nil {
			return fmt.Errorf("property %s: no number member %s", p.Name, name)
		}

		if v < n.Min || v > n.Max {
			return fmt.Errorf("property %s: member %s value %g outside [%g, %g]", p.Name, name, v, n.Min, n.Max)
		}
	}

	for name := range u.Texts {
		if p.Text(name) == nil {
			return fmt.Errorf("property %s: no text member %s", p.Name, name)
		}
	}

	return nil
}

// Stage writes the update into the member values without publishing. Switch
// rules are honoured: staging an on member under AtMostOne or OneOfMany
// clears its siblings.
func (p *Property) Stage(u Update) error {
	if err := p.Validate(u); err != nil {
		return err
	}

	for name, on := range u.Switches {
		if on {
			if err := p.SetOn(name); err != nil {
				return err
			}
		} else {
			p.Switch(name).On = false
		}
	}

	for name, v := range u.Numbers {
		p.Number(name).Value = v
	}

	for name, v := range u.Texts {
		p.Text(name).Value = v
	}

	return nil
}
