package mapping

import (
	"math"

	"github.com/sticks-io/gcfeeder/internal/gcinput"
)

// ScaleEpsilon is the smallest |scale-1| at which AnalogScaling is worth
// appending to a pipeline; below it the transform is indistinguishable
// from identity.
const ScaleEpsilon = 1e-10

// AnalogScaling rescales both sticks about center by a fixed factor,
// saturating at the 8-bit wire range.
type AnalogScaling struct {
	Scale float64
}

func (a *AnalogScaling) Name() string { return "analog_scaling" }

func (a *AnalogScaling) Apply(in gcinput.Message) gcinput.Message {
	if in == nil {
		return nil
	}
	out := *in
	out.MainStick = scaleStick(in.MainStick, a.Scale)
	out.CStick = scaleStick(in.CStick, a.Scale)
	return &out
}

func scaleStick(s gcinput.Stick, scale float64) gcinput.Stick {
	center := float64(gcinput.StickRangeDefault.Center)
	return gcinput.Stick{
		X: saturateByte(center + (float64(s.X)-center)*scale),
		Y: saturateByte(center + (float64(s.Y)-center)*scale),
	}
}

func saturateByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}
