// Package coords provides the small set of pure astronomical transforms the
// drivers need: Julian date, local sidereal time, and conversion between
// equatorial (RA hours / Dec degrees) and horizontal (Az / Alt degrees,
// azimuth measured from north through east) coordinates.
package coords

import (
	"math"
	"time"
)

const degToRad = math.Pi / 180

// JulianDate converts a wall clock instant to a Julian date.
func JulianDate(t time.Time) float64 {
	return float64(t.UnixMilli())/86400000.0 + 2440587.5
}

// GreenwichSiderealTime returns GMST in hours for the given instant.
func GreenwichSiderealTime(t time.Time) float64 {
	d := JulianDate(t) - 2451545.0
	return Range24(18.697374558 + 24.06570982441908*d)
}

// LocalSiderealTime returns LST in hours for an east positive longitude in
// degrees.
func LocalSiderealTime(t time.Time, longitude float64) float64 {
	return Range24(GreenwichSiderealTime(t) + longitude/15.0)
}

// EquatorialToHorizontal converts RA (hours) and Dec (degrees) at the given
// site latitude (degrees) and local sidereal time (hours).
func EquatorialToHorizontal(ra, dec, latitude, lst float64) (az, alt float64) {
	ha := (lst - ra) * 15 * degToRad
	decR := dec * degToRad
	latR := latitude * degToRad

	sinAlt := math.Sin(latR)*math.Sin(decR) + math.Cos(latR)*math.Cos(decR)*math.Cos(ha)
	alt = math.Asin(sinAlt) / degToRad

	// Azimuth from south, westward positive, then rebased to north/east.
	azS := math.Atan2(math.Sin(ha), math.Cos(ha)*math.Sin(latR)-math.Tan(decR)*math.Cos(latR)) / degToRad
	az = Range360(azS + 180)

	return az, alt
}

// HorizontalToEquatorial converts Az/Alt (degrees) at the given site
// latitude (degrees) and local sidereal time (hours) back to RA (hours) and
// Dec (degrees).
func HorizontalToEquatorial(az, alt, latitude, lst float64) (ra, dec float64) {
	azS := (az - 180) * degToRad
	altR := alt * degToRad
	latR := latitude * degToRad

	sinDec := math.Sin(latR)*math.Sin(altR) - math.Cos(latR)*math.Cos(altR)*math.Cos(azS)
	dec = math.Asin(sinDec) / degToRad

	ha := math.Atan2(math.Sin(azS), math.Cos(azS)*math.Sin(latR)+math.Tan(altR)*math.Cos(latR)) / degToRad
	ra = Range24(lst - ha/15.0)

	return ra, dec
}

// Range24 wraps hours into [0, 24).
func Range24(h float64) float64 {
	h = math.Mod(h, 24)
	if h < 0 {
		h += 24
	}

	return h
}

// Range360 wraps degrees into [0, 360).
func Range360(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}

	return d
}
