package sampler

import (
	"math"
	"time"
)

const (
	feetPerMeter = 3.28084
	lbsPerKg     = 2.204622
	ktsPerMs     = 1.943844
	metersPerNm  = 1852.0

	// Fuel mass to volume, lbs per gallon at standard temperature.
	avgasLbsPerGal = 6.0
	jetALbsPerGal  = 6.7
)

func metersToFeet(v float32) float32 { return v * feetPerMeter }
func kgToLbs(v float32) float32 { return v * lbsPerKg }
func msToKnots(v float32) float32 { return v * ktsPerMs }
func pascalToMbar(v float32) float32 { return v / 100 }
func nmToMeters(v float32) float32 { return v * metersPerNm }

// ratioToPercent converts a 0..1 ratio into a clamped percentage.
func ratioToPercent(v float32) uint8 {
	p := v * 100
	switch {
	case math.IsNaN(float64(p)) || p <= 0:
		return 0
	case p >= 100:
		return 100
	default:
		return uint8(p)
	}
}

func roundUint16(v float32) uint16 {
	r := math.Round(float64(v))
	if r <= 0 || math.IsNaN(r) {
		return 0
	}
	if r > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(r)
}

// DecodeTransponder reads the decimal digits of code as an octal squawk,
// e.g. 7000 becomes 0o7000. It returns -1 when code is not a valid squawk.
func DecodeTransponder(code int) int16 {
	if code < 0 || code > 7777 {
		return -1
	}
	var out, mul int
	for mul = 1; code > 0; code /= 10 {
		d := code % 10
		if d > 7 {
			return -1
		}
		out += d * mul
		mul *= 8
	}
	return int16(out)
}

func inRange(lo, hi, v float32) bool { return v >= lo && v <= hi }

// simTimes builds local and zulu time from the simulator's day of year and
// seconds since midnight. The simulator has no year, so year is supplied.
// The zone offset is snapped to the half hour and kept within the range
// used on Earth.
func simTimes(year, dayOfYear int, localSec, zuluSec float32) (local, zulu time.Time) {
	day := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, dayOfYear)

	offset := time.Duration(float64(localSec-zuluSec) * float64(time.Second)).Round(30 * time.Minute)
	switch {
	case offset > 14*time.Hour:
		offset -= 24 * time.Hour
	case offset < -12*time.Hour:
		offset += 24 * time.Hour
	}

	zone := time.FixedZone("", int(offset/time.Second))
	local = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, zone).
		Add(time.Duration(float64(localSec) * float64(time.Second)))
	return local, local.UTC()
}
