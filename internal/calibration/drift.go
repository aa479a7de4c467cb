package calibration

// DriftData is the per-connection center offset captured from the first
// sample seen after a controller (re)connects: how far off-center the
// sticks rested and how far from zero the triggers rested.
type DriftData struct {
	MainDX, MainDY       int16
	CDX, CDY             int16
	TriggerLeft          int16
	TriggerRight         int16
}

// CaptureDelta returns the signed offset (rest - sample) that, applied to
// every later sample, pulls it back to the expected rest value.
func CaptureDelta(rest, sample uint8) int16 {
	return int16(rest) - int16(sample)
}

// ApplyDelta adds a captured delta to a later sample, saturating at the
// 8-bit wire range instead of wrapping.
func ApplyDelta(v uint8, delta int16) uint8 {
	sum := int32(v) + int32(delta)
	if sum < 0 {
		return 0
	}
	if sum > 255 {
		return 255
	}
	return uint8(sum)
}
