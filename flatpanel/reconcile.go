package flatpanel

import (
	"context"
	"errors"

	"github.com/openastro/ada"
	"github.com/openastro/ada/property"
	"github.com/shimmeringbee/logwrap"
)

// Apply dispatches a client update. Cover motion completes asynchronously
// on a later poll; everything else completes within the call.
func (f *Panel) Apply(ctx context.Context, name string, u property.Update) (bool, error) {
	f.m.Lock()
	defer f.m.Unlock()

	switch name {
	case PropCoverPark:
		return true, f.applyCover(ctx, u)
	case PropLight:
		return true, f.applyLight(ctx, u)
	case PropBrightness:
		return true, f.applyBrightness(ctx, u)
	case PropHeaterMode:
		return true, f.applyHeaterMode(ctx, u)
	default:
		return false, nil
	}
}

func (f *Panel) applyCover(ctx context.Context, u property.Update) error {
	if !f.dev.Capabilities().Has(ada.HasDustCap) {
		return ada.ErrCapabilityUnsupported
	}

	target := ""
	for member, on := range u.Switches {
		if on {
			target = member
		}
	}

	// Re-requesting the position the cover already holds is answered
	// without a command.
	if f.prev != nil {
		if (target == "PARK" && f.prev.Cover == CoverClosed) ||
			(target == "UNPARK" && f.prev.Cover == CoverOpen) {
			return f.publishCover(property.OK, target)
		}
	}

	var err error
	switch target {
	case "PARK":
		err = f.driver.Close(ctx)
	case "UNPARK":
		err = f.driver.Open(ctx)
	default:
		err = errors.New("cover update selects no member")
	}

	if err != nil {
		f.alert(PropCoverPark)
		return err
	}

	f.pendingCover = target
	f.logger.LogInfo(ctx, "Cover moving.", logwrap.Datum("target", target))

	return f.publishCover(property.Busy, target)
}

func (f *Panel) publishCover(state property.State, member string) error {
	return f.dev.Properties().Mutate(PropCoverPark, func(p *property.Property) error {
		if member != "" {
			p.SetOn(member)
		}
		p.State = state

		return nil
	})
}

func (f *Panel) applyLight(ctx context.Context, u property.Update) error {
	if !f.dev.Capabilities().Has(ada.HasLightBox) {
		return ada.ErrCapabilityUnsupported
	}

	on := u.Switches["LIGHT_ON"]

	// Re-selecting the state the light already holds needs no command.
	if f.prev == nil || f.prev.LightOn != on {
		if err := f.driver.SetLight(ctx, on); err != nil {
			f.alert(PropLight)
			return err
		}
	}

	return f.dev.Properties().Mutate(PropLight, func(p *property.Property) error {
		if err := p.Stage(u); err != nil {
			p.State = property.Alert
			return err
		}

		p.State = property.OK
		return nil
	})
}

func (f *Panel) applyBrightness(ctx context.Context, u property.Update) error {
	if !f.dev.Capabilities().Has(ada.HasDimmableLight) {
		return ada.ErrCapabilityUnsupported
	}

	level, ok := u.Numbers["BRIGHTNESS"]
	if !ok {
		f.alert(PropBrightness)
		return errors.New("brightness update carries no level")
	}

	err := f.dev.Properties().With(PropBrightness, func(p *property.Property) error {
		return p.Validate(u)
	})
	if err != nil {
		f.alert(PropBrightness)
		return err
	}

	if err := f.driver.SetBrightness(ctx, int(level)); err != nil {
		f.alert(PropBrightness)
		return err
	}

	return f.dev.Properties().Mutate(PropBrightness, func(p *property.Property) error {
		p.Number("BRIGHTNESS").Value = level
		p.State = property.OK

		return nil
	})
}

var heaterModeMembers = map[string]HeaterMode{
	"OFF": HeaterOff,
	"ON":  HeaterOn,
	"ON2": HeaterOnIfActive,
}

// applyHeaterMode commands the heater, short circuiting when the requested
// mode is the one the device already reports: the reply is republished OK
// and no command is sent.
func (f *Panel) applyHeaterMode(ctx context.Context, u property.Update) error {
	if !f.dev.Capabilities().Has(ada.HasHeater) {
		return ada.ErrCapabilityUnsupported
	}

	target := ""
	for member, on := range u.Switches {
		if on {
			target = member
		}
	}

	mode, ok := heaterModeMembers[target]
	if !ok {
		f.alert(PropHeaterMode)
		return errors.New("heater update selects no known mode")
	}

	if f.prev != nil && f.prev.HeaterMode == mode {
		return f.dev.Properties().Mutate(PropHeaterMode, func(p *property.Property) error {
			p.SetOn(target)
			p.State = property.OK

			return nil
		})
	}

	if err := f.driver.SetHeaterMode(ctx, mode); err != nil {
		f.alert(PropHeaterMode)
		return err
	}

	return f.dev.Properties().Mutate(PropHeaterMode, func(p *property.Property) error {
		if err := p.Stage(u); err != nil {
			p.State = property.Alert
			return err
		}

		p.State = property.OK
		return nil
	})
}

// Poll reads one status snapshot, resolves pending cover motion and
// republishes whatever changed since the previous snapshot.
func (f *Panel) Poll(ctx context.Context) error {
	f.m.Lock()
	defer f.m.Unlock()

	st, err := f.driver.Status(ctx)
	if err != nil {
		return err
	}

	resolved := f.resolveCover(ctx, st)
	f.publishEdges(ctx, st, resolved)
	f.prev = &st

	return nil
}

// resolveCover reports whether it published the cover property, so the
// edge pass does not immediately repaint it.
func (f *Panel) resolveCover(ctx context.Context, st Status) bool {
	if f.pendingCover == "" {
		return false
	}

	want := CoverClosed
	if f.pendingCover == "UNPARK" {
		want = CoverOpen
	}

	switch {
	case st.Cover == want:
		f.logger.LogInfo(ctx, "Cover motion complete.", logwrap.Datum("cover", st.Cover.String()))
		f.publishCover(property.OK, f.pendingCover)
		f.pendingCover = ""
		return true

	case st.Motor == MotorStopped && st.Cover != CoverMoving:
		// Motor stopped somewhere other than the target.
		f.logger.LogWarn(ctx, "Cover stopped short of target.", logwrap.Datum("cover", st.Cover.String()))
		f.publishCover(property.Alert, "")
		f.pendingCover = ""
		return true
	}

	return false
}

func (f *Panel) publishEdges(ctx context.Context, st Status, coverResolved bool) {
	prev := f.prev
	caps := f.dev.Capabilities()
	store := f.dev.Properties()

	if caps.Has(ada.HasDustCap) && !coverResolved && f.pendingCover == "" && (prev == nil || prev.Cover != st.Cover) {
		member := ""
		state := property.Idle
		switch st.Cover {
		case CoverClosed:
			member, state = "PARK", property.OK
		case CoverOpen:
			member, state = "UNPARK", property.OK
		case CoverMoving:
			state = property.Busy
		}
		f.publishCover(state, member)
	}

	if caps.Has(ada.HasLightBox) && (prev == nil || prev.LightOn != st.LightOn) {
		store.Mutate(PropLight, func(p *property.Property) error {
			if st.LightOn {
				return p.SetOn("LIGHT_ON")
			}

			return p.SetOn("LIGHT_OFF")
		})
	}

	if caps.Has(ada.HasDimmableLight) && (prev == nil || prev.Brightness != st.Brightness) {
		store.Mutate(PropBrightness, func(p *property.Property) error {
			p.Number("BRIGHTNESS").Value = float64(st.Brightness)
			return nil
		})
	}

	if caps.Has(ada.HasHeater) {
		f.publishHeater(ctx, prev, st)
	}
}

// publishHeater tracks the heater sensor coming and going: the temperature
// property only exists while a sensor is attached, and attachment itself is
// an edge derived from the reported temperature.
func (f *Panel) publishHeater(ctx context.Context, prev *Status, st Status) {
	store := f.dev.Properties()
	online := st.HeaterTemp > heaterDisconnectedBelow

	if online != f.heaterOnline {
		f.heaterOnline = online

		if online {
			f.logger.LogInfo(ctx, "Heater sensor attached.")
			store.Define(property.NewNumberSet(PropHeaterTemp, "Heater temperature", property.ReadOnly,
				property.Number{Name: "TEMPERATURE", Label: "Temperature (C)", Min: -40, Max: 100, Step: 0.1, Value: st.HeaterTemp},
			))
		} else {
			f.logger.LogInfo(ctx, "Heater sensor detached.")
			store.Withdraw(PropHeaterTemp)
		}
	} else if online && (prev == nil || prev.HeaterTemp != st.HeaterTemp) {
		store.Mutate(PropHeaterTemp, func(p *property.Property) error {
			p.Number("TEMPERATURE").Value = st.HeaterTemp
			return nil
		})
	}

	if prev == nil || prev.HeaterMode != st.HeaterMode {
		store.Mutate(PropHeaterMode, func(p *property.Property) error {
			if int(st.HeaterMode) >= len(p.Switches) {
				return nil
			}

			return p.SetOn(p.Switches[int(st.HeaterMode)].Name)
		})
	}
}

// alert publishes the named property in the Alert state, values untouched.
func (f *Panel) alert(name string) {
	f.dev.Properties().Mutate(name, func(p *property.Property) error {
		p.State = property.Alert
		return nil
	})
}
