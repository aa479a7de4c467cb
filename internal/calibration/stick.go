package calibration

import "math"

// StickCalibration holds the eight user-captured notch points around a
// stick's octagonal gate (at 45-degree steps, starting at +y and proceeding
// clockwise) plus the captured center.
type StickCalibration struct {
	Notches [8]Point
	Center  Point
}

const sectorWidth = math.Pi / 4

// canonicalRadius is the wire radius a properly centered, full-deflection
// stick reports; canonical notch positions sit on the circle of this radius.
const canonicalRadius = 0x7F

// Sector returns the index in [0,8) of the 45-degree angular slice that
// contains the point p relative to center, with index 0 centered on the
// +y axis and indices increasing clockwise.
func Sector(center, p Point) int {
	dx := float64(p.X) - float64(center.X)
	dy := float64(p.Y) - float64(center.Y)
	theta := math.Atan2(dx, dy)
	if theta < 0 {
		theta += 2 * math.Pi
	}
	idx := int(math.Round(theta/sectorWidth)) % 8
	if idx < 0 {
		idx += 8
	}
	return idx
}

// PointAtAngle returns the point at the given clockwise-from-+y angle
// (radians) and radius around center.
func PointAtAngle(center Point, radius float64, theta float64) Point {
	x := float64(center.X) + radius*math.Sin(theta)
	y := float64(center.Y) + radius*math.Cos(theta)
	return Point{X: clampToByte(x), Y: clampToByte(y)}
}

// canonicalCenter is the STICK_RANGE rest position every properly
// calibrated stick should report: 0x80, 0x80.
var canonicalCenter = Point{X: 0x80, Y: 0x80}

func canonicalNotch(idx int) Point {
	return PointAtAngle(canonicalCenter, canonicalRadius, float64(idx)*sectorWidth)
}

// Remap applies the affine transform that maps this calibration's captured
// center and the two notches bracketing p's sector onto their canonical
// positions, then applies that same transform to p. p's sector here is the
// 45-degree slice between notch idx and notch idx+1 (not Sector's
// notch-centered slice). It fails with ErrBadCalibration if the three
// captured points are collinear (degenerate).
func (s StickCalibration) Remap(p Point) (Point, error) {
	dx := float64(p.X) - float64(s.Center.X)
	dy := float64(p.Y) - float64(s.Center.Y)
	theta := math.Atan2(dx, dy)
	if theta < 0 {
		theta += 2 * math.Pi
	}
	idx := int(math.Floor(theta/sectorWidth)) % 8
	left := s.Notches[idx]
	right := s.Notches[(idx+1)%8]

	canonLeft := canonicalNotch(idx)
	canonRight := canonicalNotch((idx + 1) % 8)

	m := [3][3]float64{
		{float64(s.Center.X), float64(s.Center.Y), 1},
		{float64(left.X), float64(left.Y), 1},
		{float64(right.X), float64(right.Y), 1},
	}

	xCoef, err := solve3x3(m, [3]float64{float64(canonicalCenter.X), float64(canonLeft.X), float64(canonRight.X)})
	if err != nil {
		return Point{}, err
	}
	yCoef, err := solve3x3(m, [3]float64{float64(canonicalCenter.Y), float64(canonLeft.Y), float64(canonRight.Y)})
	if err != nil {
		return Point{}, err
	}

	px, py := float64(p.X), float64(p.Y)
	outX := xCoef[0]*px + xCoef[1]*py + xCoef[2]
	outY := yCoef[0]*px + yCoef[1]*py + yCoef[2]

	return Point{X: clampToByte(outX), Y: clampToByte(outY)}, nil
}
