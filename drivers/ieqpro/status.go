package ieqpro

import (
	"context"

	"github.com/openastro/ada/mount"
	"github.com/openastro/ada/wire"
)

// Status reads and decodes the ":GLS#" status string. The reply is a fixed
// nineteen character field: signed longitude in arcseconds, latitude plus
// ninety degrees in arcseconds, then single digit GPS, system, track mode,
// slew rate, time source and hemisphere fields.
func (d *Driver) Status(ctx context.Context) (mount.Status, error) {
	var st mount.Status

	res, err := d.ex.Exchange(ctx, wire.ColonHash("GLS"))
	if err != nil {
		return st, err
	}

	field, err := wire.HashField(res)
	if err != nil || len(field) != 19 {
		return st, d.ex.NoteMismatch(&wire.MismatchError{Command: ":GLS#", Raw: res})
	}

	lonUnits, err := wire.FixedInt(res, 0, 7)
	if err != nil {
		return st, d.ex.NoteMismatch(err)
	}

	latUnits, err := wire.FixedInt(res, 7, 6)
	if err != nil {
		return st, d.ex.NoteMismatch(err)
	}

	st.Longitude = float64(lonUnits) / 3600
	st.Latitude = float64(latUnits)/3600 - 90

	st.GPS = decodeGPS(field[13])
	st.System = decodeSystem(field[14])
	st.TrackMode = decodeTrackMode(field[15])
	st.SlewRate = decodeSlewRate(field[16])
	st.TimeSource = decodeTimeSource(field[17])
	st.Hemisphere = decodeHemisphere(field[18])

	return st, nil
}

func decodeGPS(c byte) mount.GPSStatus {
	switch c {
	case '1':
		return mount.GPSOn
	case '2':
		return mount.GPSDataOK
	default:
		return mount.GPSOff
	}
}

func decodeSystem(c byte) mount.SystemStatus {
	switch c {
	case '1', '5':
		// '5' is tracking with periodic error correction engaged.
		return mount.SystemTracking
	case '2':
		return mount.SystemSlewing
	case '3':
		return mount.SystemGuiding
	case '4':
		return mount.SystemMeridianFlipping
	case '6':
		return mount.SystemParked
	case '7':
		return mount.SystemAtHome
	default:
		return mount.SystemStopped
	}
}

func decodeTrackMode(c byte) mount.TrackMode {
	switch c {
	case '1':
		return mount.TrackLunar
	case '2':
		return mount.TrackSolar
	case '3':
		return mount.TrackKing
	case '4':
		return mount.TrackCustom
	default:
		return mount.TrackSidereal
	}
}

// decodeSlewRate collapses the protocol's nine step scale onto the five
// client visible rates.
func decodeSlewRate(c byte) int {
	digit := int(c - '0')
	index := 0

	for i, code := range slewRateCodes {
		if code <= digit {
			index = i
		}
	}

	return index
}

func decodeTimeSource(c byte) mount.TimeSource {
	switch c {
	case '2':
		return mount.TimeController
	case '3':
		return mount.TimeGPS
	default:
		return mount.TimeRS232
	}
}

func decodeHemisphere(c byte) mount.Hemisphere {
	if c == '1' {
		return mount.HemisphereNorth
	}

	return mount.HemisphereSouth
}
