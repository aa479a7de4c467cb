// Package calibration implements the numeric remaps applied to raw adapter
// samples: stick notch correction, trigger min/max remap, per-connection
// center-drift capture, and the ESS stick-inversion lookup used by
// N64-emulation titles.
package calibration

import (
	"errors"
	"math"
)

// ErrBadCalibration is returned when a calibration's geometry or range is
// unusable: a degenerate notch triangle, or trigger min >= max.
var ErrBadCalibration = errors.New("calibration: bad calibration")

// Point is an 8-bit analog coordinate pair, as read straight off the wire.
type Point struct {
	X uint8
	Y uint8
}

func clampToByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}

func solve3x3(m [3][3]float64, rhs [3]float64) ([3]float64, error) {
	det := m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
	if math.Abs(det) < 1e-9 {
		return [3]float64{}, ErrBadCalibration
	}

	cramer := func(col int) float64 {
		a := m
		for r := 0; r < 3; r++ {
			a[r][col] = rhs[r]
		}
		d := a[0][0]*(a[1][1]*a[2][2]-a[1][2]*a[2][1]) -
			a[0][1]*(a[1][0]*a[2][2]-a[1][2]*a[2][0]) +
			a[0][2]*(a[1][0]*a[2][1]-a[1][1]*a[2][0])
		return d / det
	}

	return [3]float64{cramer(0), cramer(1), cramer(2)}, nil
}
