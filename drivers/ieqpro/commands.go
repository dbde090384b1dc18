package ieqpro

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/openastro/ada/mount"
	"github.com/openastro/ada/wire"
)

// Angle units on the wire: both axes travel as integer hundredths of an
// arcsecond.
const centiArcsecPerDegree = 360000

// RefusedError reports a command the mount answered with '0': understood
// but not accepted, a slew below the horizon for example.
type RefusedError struct {
	Command string
}

func (e *RefusedError) Error() string {
	return fmt.Sprintf("ieqpro: mount refused %s", e.Command)
}

// ack sends a command expecting the single byte '1' acknowledgement.
func (d *Driver) ack(ctx context.Context, cmd string) error {
	res, err := d.ex.ExchangeN(ctx, wire.ColonHash(cmd), 1)
	if err != nil {
		return err
	}

	ok, err := wire.Boolean(res)
	if err != nil {
		return d.ex.NoteMismatch(&wire.MismatchError{Command: ":" + cmd + "#", Raw: res})
	}

	if !ok {
		return &RefusedError{Command: ":" + cmd + "#"}
	}

	return nil
}

func (d *Driver) SetTarget(ctx context.Context, ra, dec float64) error {
	raUnits := int(math.Round(ra * 15 * centiArcsecPerDegree))
	decUnits := int(math.Round(dec * centiArcsecPerDegree))

	if err := d.ack(ctx, fmt.Sprintf("Sr%08d", raUnits)); err != nil {
		return fmt.Errorf("set target ra: %w", err)
	}

	if err := d.ack(ctx, fmt.Sprintf("Sd%+09d", decUnits)); err != nil {
		return fmt.Errorf("set target dec: %w", err)
	}

	return nil
}

func (d *Driver) Coords(ctx context.Context) (float64, float64, error) {
	res, err := d.ex.Exchange(ctx, wire.ColonHash("GEC"))
	if err != nil {
		return 0, 0, err
	}

	field, err := wire.HashField(res)
	if err != nil || len(field) != 17 {
		return 0, 0, d.ex.NoteMismatch(&wire.MismatchError{Command: ":GEC#", Raw: res})
	}

	decUnits, err := wire.FixedInt(res, 0, 9)
	if err != nil {
		return 0, 0, d.ex.NoteMismatch(err)
	}

	raUnits, err := wire.FixedInt(res, 9, 8)
	if err != nil {
		return 0, 0, d.ex.NoteMismatch(err)
	}

	ra := float64(raUnits) / centiArcsecPerDegree / 15
	dec := float64(decUnits) / centiArcsecPerDegree

	return ra, dec, nil
}

func (d *Driver) Slew(ctx context.Context) error {
	return d.ack(ctx, "MS")
}

func (d *Driver) Sync(ctx context.Context) error {
	return d.ack(ctx, "CM")
}

func (d *Driver) Abort(ctx context.Context) error {
	return d.ack(ctx, "Q")
}

func (d *Driver) Park(ctx context.Context) error {
	return d.ack(ctx, "MP1")
}

func (d *Driver) Unpark(ctx context.Context) error {
	return d.ack(ctx, "MP0")
}

func (d *Driver) SetParkPosition(ctx context.Context, az, alt float64) error {
	azUnits := int(math.Round(az * centiArcsecPerDegree))
	altUnits := int(math.Round(alt * centiArcsecPerDegree))

	if err := d.ack(ctx, fmt.Sprintf("SPA%08d", azUnits)); err != nil {
		return fmt.Errorf("set park azimuth: %w", err)
	}

	if err := d.ack(ctx, fmt.Sprintf("SPH%+09d", altUnits)); err != nil {
		return fmt.Errorf("set park altitude: %w", err)
	}

	return nil
}

var motionCommands = map[mount.Direction]string{
	mount.North: "mn",
	mount.South: "ms",
	mount.East:  "me",
	mount.West:  "mw",
}

// StartMotion begins manual movement. The command carries no reply.
func (d *Driver) StartMotion(ctx context.Context, dir mount.Direction) error {
	return d.ex.Send(ctx, wire.ColonHash(motionCommands[dir]))
}

// StopMotion stops movement on the axis of the given direction: the mount
// only distinguishes the declination and right ascension axes.
func (d *Driver) StopMotion(ctx context.Context, dir mount.Direction) error {
	cmd := "qD"
	if dir == mount.East || dir == mount.West {
		cmd = "qR"
	}

	return d.ack(ctx, cmd)
}

var guideCommands = map[mount.Direction]string{
	mount.North: "Mn",
	mount.South: "Ms",
	mount.East:  "Me",
	mount.West:  "Mw",
}

// Guide fires one timed pulse. Fire and forget on the wire, completion is
// tracked by the caller's timer.
func (d *Driver) Guide(ctx context.Context, dir mount.Direction, duration time.Duration) error {
	ms := duration.Milliseconds()
	if ms > 99999 {
		ms = 99999
	}

	return d.ex.Send(ctx, wire.ColonHashf("%s%05d", guideCommands[dir], ms))
}

func (d *Driver) GuideRate(ctx context.Context) (float64, float64, error) {
	res, err := d.ex.Exchange(ctx, wire.ColonHash("AG"))
	if err != nil {
		return 0, 0, err
	}

	ra, dec, err := parseGuideRate(res)
	if err != nil {
		return 0, 0, d.ex.NoteMismatch(&wire.MismatchError{Command: ":AG#", Raw: res})
	}

	return ra, dec, nil
}

// parseGuideRate decodes "rrdd#", both axis rates in hundredths of
// sidereal.
func parseGuideRate(raw []byte) (float64, float64, error) {
	field, err := wire.HashField(raw)
	if err != nil || len(field) != 4 {
		return 0, 0, &wire.ParseError{Expected: "rrdd#", Raw: raw}
	}

	ra, err := wire.FixedInt(raw, 0, 2)
	if err != nil {
		return 0, 0, err
	}

	dec, err := wire.FixedInt(raw, 2, 2)
	if err != nil {
		return 0, 0, err
	}

	return float64(ra) / 100, float64(dec) / 100, nil
}

func (d *Driver) SetGuideRate(ctx context.Context, ra, dec float64) error {
	return d.ack(ctx, fmt.Sprintf("RG%02d%02d", int(math.Round(ra*100)), int(math.Round(dec*100))))
}

func (d *Driver) SetTrackMode(ctx context.Context, mode mount.TrackMode) error {
	return d.ack(ctx, fmt.Sprintf("RT%d", int(mode)))
}

func (d *Driver) SetTrackEnabled(ctx context.Context, enabled bool) error {
	if enabled {
		return d.ack(ctx, "ST1")
	}

	return d.ack(ctx, "ST0")
}

// SetTrackRate commands a custom rate as ten thousandths of sidereal.
func (d *Driver) SetTrackRate(ctx context.Context, raOffset float64) error {
	n := int(math.Round(raOffset / mount.TrackRateSidereal * 10000))
	return d.ack(ctx, fmt.Sprintf("RR%05d", n))
}

// slewRateCodes maps the five client visible rates to the protocol's nine
// step scale.
var slewRateCodes = [...]int{1, 4, 6, 8, 9}

func (d *Driver) SetSlewRate(ctx context.Context, index int) error {
	if index < 0 || index >= len(slewRateCodes) {
		return fmt.Errorf("ieqpro: slew rate index %d out of range", index)
	}

	return d.ack(ctx, fmt.Sprintf("SR%d", slewRateCodes[index]))
}

// SetTime writes the local time, local date and UTC offset. The firmware
// keeps a local clock, so the offset is applied before writing.
func (d *Driver) SetTime(ctx context.Context, utc time.Time, offset time.Duration) error {
	local := utc.UTC().Add(offset)

	if err := d.ack(ctx, fmt.Sprintf("SL%02d:%02d:%02d", local.Hour(), local.Minute(), local.Second())); err != nil {
		return fmt.Errorf("set local time: %w", err)
	}

	if err := d.ack(ctx, fmt.Sprintf("SC%02d:%02d:%02d", local.Year()%100, int(local.Month()), local.Day())); err != nil {
		return fmt.Errorf("set local date: %w", err)
	}

	if err := d.ack(ctx, fmt.Sprintf("SG%+04d", int(offset.Minutes()))); err != nil {
		return fmt.Errorf("set utc offset: %w", err)
	}

	return nil
}

// SetLocation writes the site coordinates as signed arcseconds, longitude
// east positive.
func (d *Driver) SetLocation(ctx context.Context, lat, lon float64) error {
	if err := d.ack(ctx, fmt.Sprintf("Sg%+07d", int(math.Round(lon*3600)))); err != nil {
		return fmt.Errorf("set longitude: %w", err)
	}

	if err := d.ack(ctx, fmt.Sprintf("St%+07d", int(math.Round(lat*3600)))); err != nil {
		return fmt.Errorf("set latitude: %w", err)
	}

	return nil
}

// PierSide is not reported by this protocol family.
func (d *Driver) PierSide(context.Context) (mount.PierSide, error) {
	return mount.PierUnknown, fmt.Errorf("ieqpro: pier side not reported")
}

func (d *Driver) FindHome(ctx context.Context) error {
	return d.ack(ctx, "MSH")
}

func (d *Driver) GotoHome(ctx context.Context) error {
	return d.ack(ctx, "MH")
}

func (d *Driver) SetCurrentHome(ctx context.Context) error {
	return d.ack(ctx, "SZP")
}
