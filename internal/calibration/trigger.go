package calibration

import "math"

// TriggerCalibration remaps a trigger's raw min/max rest-to-full-press
// range onto the full 0x00..0xFF wire range.
type TriggerCalibration struct {
	Min uint8
	Max uint8
}

// Validate reports ErrBadCalibration when Min is not strictly less than Max.
func (t TriggerCalibration) Validate() error {
	if t.Min >= t.Max {
		return ErrBadCalibration
	}
	return nil
}

// Remap affinely maps in from [Min,Max] onto [0x00,0xFF], clipping values
// outside the captured range before scaling.
func (t TriggerCalibration) Remap(in uint8) (uint8, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	frac := (float64(in) - float64(t.Min)) / (float64(t.Max) - float64(t.Min))
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	return uint8(math.Round(frac * 255)), nil
}
