// Package dsdfp implements the flat panel driver for DeepSkyDad flat
// field panels. Commands travel as "[CMD]" frames answered by
// parenthesised values; the FP1 is a bare light panel while the FP2 adds a
// motorised dust cover and a dew heater, detected from the firmware name.
package dsdfp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openastro/ada"
	"github.com/openastro/ada/flatpanel"
	"github.com/openastro/ada/transport"
	"github.com/openastro/ada/wire"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/retry"
)

const (
	responseTimeout = 1 * time.Second
	pingRetries     = 3

	maxBrightness = 4096

	// The FP1 reports its flap position as a servo angle: 0 is open, this
	// is closed. The close command carries the same angle.
	flapClosedAngle = 270
)

// RefusedError reports a setter the panel answered with something other
// than "(OK)".
type RefusedError struct {
	Command string
	Reply   string
}

func (e *RefusedError) Error() string {
	return fmt.Sprintf("dsdfp: command %s not acknowledged: %s", e.Command, e.Reply)
}

// Driver speaks the DeepSkyDad protocol over one exclusively owned
// transport.
type Driver struct {
	ex     *wire.Exchanger
	logger *logwrap.Logger

	// fp2 switches the cover status vocabulary; set during Handshake.
	fp2 bool
}

func New(t transport.Transport, logger *logwrap.Logger) *Driver {
	return &Driver{
		ex: &wire.Exchanger{
			Transport: t,
			Term:      ')',
			Timeout:   responseTimeout,
			Logger:    logger,
		},
		logger: logger,
	}
}

// Handshake pings the panel until it answers, then reads the firmware name
// to decide which features this model carries.
func (d *Driver) Handshake(ctx context.Context) (string, ada.CapabilitySet, error) {
	err := retry.Retry(ctx, responseTimeout*2, pingRetries, func(ctx context.Context) error {
		res, err := d.ex.Exchange(ctx, wire.Bracket("GPOS"))
		if err != nil {
			return err
		}

		if _, err := wire.ParenInt(res); err != nil {
			return d.ex.NoteMismatch(&wire.MismatchError{Command: "[GPOS]", Raw: res})
		}

		return nil
	})
	if err != nil {
		return "", 0, err
	}

	res, err := d.ex.Exchange(ctx, wire.Bracket("GFRM"))
	if err != nil {
		return "", 0, err
	}

	firmware, err := wire.ParenString(res)
	if err != nil {
		return "", 0, d.ex.NoteMismatch(&wire.MismatchError{Command: "[GFRM]", Raw: res})
	}

	d.fp2 = strings.Contains(firmware, "DeepSkyDad.FP2")

	caps := ada.NewCapabilitySet(ada.HasLightBox, ada.HasDimmableLight)
	if d.fp2 {
		caps = caps.With(ada.HasDustCap, ada.HasHeater)
	}

	d.logger.LogInfo(ctx, "Flat panel firmware read.", logwrap.Datum("firmware", firmware))

	return firmware, caps, nil
}

// queryInt runs one "[CMD]" -> "(n)" exchange.
func (d *Driver) queryInt(ctx context.Context, cmd string) (int, error) {
	res, err := d.ex.Exchange(ctx, wire.Bracket(cmd))
	if err != nil {
		return 0, err
	}

	v, err := wire.ParenInt(res)
	if err != nil {
		return 0, d.ex.NoteMismatch(&wire.MismatchError{Command: "[" + cmd + "]", Raw: res})
	}

	return v, nil
}

// command runs a setter, which acknowledges with "(OK)".
func (d *Driver) command(ctx context.Context, cmd string) error {
	res, err := d.ex.Exchange(ctx, wire.Bracket(cmd))
	if err != nil {
		return err
	}

	v, err := wire.ParenString(res)
	if err != nil {
		return d.ex.NoteMismatch(&wire.MismatchError{Command: "[" + cmd + "]", Raw: res})
	}

	if v != "OK" {
		return &RefusedError{Command: "[" + cmd + "]", Reply: string(res)}
	}

	return nil
}

func (d *Driver) Status(ctx context.Context) (flatpanel.Status, error) {
	var st flatpanel.Status

	moving, err := d.queryInt(ctx, "GMOV")
	if err != nil {
		return st, err
	}
	if moving == 1 {
		st.Motor = flatpanel.MotorRunning
	}

	light, err := d.queryInt(ctx, "GLON")
	if err != nil {
		return st, err
	}
	st.LightOn = light == 1

	st.Cover, err = d.coverState(ctx)
	if err != nil {
		return st, err
	}
	if st.Motor == flatpanel.MotorRunning {
		st.Cover = flatpanel.CoverMoving
	}

	temp, err := d.queryInt(ctx, "GHTT")
	if err != nil {
		return st, err
	}
	st.HeaterTemp = float64(temp) / 100

	mode, err := d.queryInt(ctx, "GHTM")
	if err != nil {
		return st, err
	}
	st.HeaterMode = flatpanel.HeaterMode(mode)

	brightness, err := d.queryInt(ctx, "GLBR")
	if err != nil {
		return st, err
	}
	st.Brightness = brightness

	return st, nil
}

// coverState reads the cover position. The FP2 answers its open state query
// with 0 closed / 1 open; the FP1 has no such query and reports the flap
// servo angle instead, 0 open / 270 closed.
func (d *Driver) coverState(ctx context.Context) (flatpanel.CoverState, error) {
	if d.fp2 {
		ops, err := d.queryInt(ctx, "GOPS")
		if err != nil {
			return flatpanel.CoverUnknown, err
		}

		switch ops {
		case 0:
			return flatpanel.CoverClosed, nil
		case 1:
			return flatpanel.CoverOpen, nil
		default:
			return flatpanel.CoverUnknown, nil
		}
	}

	pos, err := d.queryInt(ctx, "GPOS")
	if err != nil {
		return flatpanel.CoverUnknown, err
	}

	switch pos {
	case 0:
		return flatpanel.CoverOpen, nil
	case flapClosedAngle:
		return flatpanel.CoverClosed, nil
	default:
		return flatpanel.CoverUnknown, nil
	}
}

// Open targets the open angle and starts the motor.
func (d *Driver) Open(ctx context.Context) error {
	if err := d.command(ctx, "STRG0"); err != nil {
		return err
	}

	return d.command(ctx, "SMOV")
}

// Close targets the closed angle and starts the motor.
func (d *Driver) Close(ctx context.Context) error {
	if err := d.command(ctx, fmt.Sprintf("STRG%d", flapClosedAngle)); err != nil {
		return err
	}

	return d.command(ctx, "SMOV")
}

func (d *Driver) SetLight(ctx context.Context, on bool) error {
	if on {
		return d.command(ctx, "SLON1")
	}

	return d.command(ctx, "SLON0")
}

func (d *Driver) SetBrightness(ctx context.Context, level int) error {
	if level < 0 {
		level = 0
	}
	if level > maxBrightness {
		level = maxBrightness
	}

	return d.command(ctx, fmt.Sprintf("SLBR%04d", level))
}

func (d *Driver) MaxBrightness() int {
	return maxBrightness
}

func (d *Driver) SetHeaterMode(ctx context.Context, mode flatpanel.HeaterMode) error {
	return d.command(ctx, fmt.Sprintf("SHTM%d", int(mode)))
}

var _ flatpanel.Driver = (*Driver)(nil)
