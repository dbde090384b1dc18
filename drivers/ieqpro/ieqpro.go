// Package ieqpro implements the mount driver for iOptron mounts speaking
// the ":CMD#" protocol: iEQ Pro, CEM and GEM families. Known fragile
// protocol assumptions, fixed offsets in the status string and single byte
// acknowledgements, are confined to this package.
package ieqpro

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openastro/ada"
	"github.com/openastro/ada/mount"
	"github.com/openastro/ada/transport"
	"github.com/openastro/ada/wire"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/retry"
)

const (
	responseTimeout  = 1 * time.Second
	handshakeRetries = 2
)

// Driver speaks the iOptron protocol over one exclusively owned transport.
type Driver struct {
	ex     *wire.Exchanger
	logger *logwrap.Logger

	model string
}

func New(t transport.Transport, logger *logwrap.Logger) *Driver {
	return &Driver{
		ex: &wire.Exchanger{
			Transport: t,
			Term:      '#',
			Timeout:   responseTimeout,
			Logger:    logger,
		},
		logger: logger,
	}
}

var models = map[string]string{
	"0010": "Cube II EQ",
	"0026": "CEM26",
	"0027": "CEM26-EC",
	"0040": "CEM40",
	"0041": "CEM40-EC",
	"0043": "GEM45",
	"0045": "iEQ45 Pro",
	"0046": "iEQ45 Pro AA",
	"0060": "CEM60",
	"0061": "CEM60-EC",
	"0120": "CEM120",
	"0121": "CEM120-EC",
	"0122": "CEM120-EC2",
}

// nativePark lists the model codes whose firmware carries the MP1/MP0 park
// commands. Everything else parks by slewing to the stored position.
var nativePark = map[string]bool{
	"0040": true, "0041": true, "0043": true,
	"0045": true, "0046": true,
	"0060": true, "0061": true,
	"0120": true, "0121": true, "0122": true,
}

// homeCapable lists the model codes able to search for their mechanical
// home index. The rule set refines this per firmware revision.
var homeCapable = map[string]bool{
	"0026": true, "0027": true,
	"0040": true, "0041": true, "0043": true,
	"0060": true, "0061": true,
	"0120": true, "0121": true, "0122": true,
}

// Handshake identifies the mount and probes its optional commands. The
// identification is retried, serial links routinely eat the first exchange
// after a port open.
func (d *Driver) Handshake(ctx context.Context) (mount.FirmwareInfo, ada.CapabilitySet, error) {
	var code string

	err := retry.Retry(ctx, responseTimeout*2, handshakeRetries+1, func(ctx context.Context) error {
		res, err := d.ex.ExchangeN(ctx, wire.ColonHash("MountInfo"), 4)
		if err != nil {
			return err
		}

		if len(res) != 4 {
			return d.ex.NoteMismatch(&wire.MismatchError{Command: ":MountInfo#", Raw: res})
		}

		code = string(res)

		return nil
	})
	if err != nil {
		return mount.FirmwareInfo{}, 0, fmt.Errorf("identify: %w", err)
	}

	name, known := models[code]
	if !known {
		return mount.FirmwareInfo{}, 0, fmt.Errorf("unrecognised mount model code %q", code)
	}

	d.model = name
	d.logger.LogInfo(ctx, "Mount model identified.", logwrap.Datum("code", code), logwrap.Datum("model", name))

	fw, err := d.readFirmware(ctx)
	if err != nil {
		return mount.FirmwareInfo{}, 0, err
	}
	fw.Model = name

	caps := ada.NewCapabilitySet(ada.CanGuide, ada.CanControlTrack, ada.CanTrackMode, ada.CanTrackRate)

	if nativePark[code] {
		caps = caps.With(ada.CanParkNatively, ada.CanUnparkNatively)
	}

	if homeCapable[code] {
		caps = caps.With(ada.CanFindHome, ada.CanGoHome, ada.CanSetHome)
	}

	supported, err := d.probeGuideRate(ctx)
	if err != nil {
		return mount.FirmwareInfo{}, 0, err
	}
	if supported {
		caps = caps.With(ada.CanGuideRate)
	}

	return fw, caps, nil
}

// readFirmware reads the two firmware blocks: main board and hand
// controller from FW1, RA and Dec motor boards from FW2. Each reply is two
// six character date stamps terminated by '#'.
func (d *Driver) readFirmware(ctx context.Context) (mount.FirmwareInfo, error) {
	var fw mount.FirmwareInfo

	res, err := d.ex.Exchange(ctx, wire.ColonHash("FW1"))
	if err != nil {
		return fw, fmt.Errorf("firmware FW1: %w", err)
	}

	main, controller, err := splitFirmware(res)
	if err != nil {
		return fw, d.ex.NoteMismatch(err)
	}
	fw.MainBoard, fw.Controller = main, controller

	res, err = d.ex.Exchange(ctx, wire.ColonHash("FW2"))
	if err != nil {
		return fw, fmt.Errorf("firmware FW2: %w", err)
	}

	ra, dec, err := splitFirmware(res)
	if err != nil {
		return fw, d.ex.NoteMismatch(err)
	}
	fw.RA, fw.Dec = ra, dec

	return fw, nil
}

func splitFirmware(raw []byte) (string, string, error) {
	field, err := wire.HashField(raw)
	if err != nil {
		return "", "", err
	}

	if len(field) != 12 {
		return "", "", &wire.ParseError{Expected: "12 character firmware block", Raw: raw}
	}

	return field[:6], field[6:], nil
}

// probeGuideRate checks whether the firmware answers the guide rate query.
// A refusal or a silent timeout means the command set predates it; a hard
// transport fault aborts the handshake.
func (d *Driver) probeGuideRate(ctx context.Context) (bool, error) {
	res, err := d.ex.Exchange(ctx, wire.ColonHash("AG"))
	if err != nil {
		var timeout *transport.TimeoutError
		if errors.As(err, &timeout) {
			d.logger.LogDebug(ctx, "Guide rate query unanswered, treating as unsupported.")
			return false, nil
		}

		return false, err
	}

	if len(res) == 1 && res[0] == '0' {
		return false, nil
	}

	if _, _, err := parseGuideRate(res); err != nil {
		return false, d.ex.NoteMismatch(&wire.MismatchError{Command: ":AG#", Raw: res})
	}

	return true, nil
}

var _ mount.Driver = (*Driver)(nil)
