package mapping

import (
	"sync"

	"github.com/sticks-io/gcfeeder/internal/calibration"
	"github.com/sticks-io/gcfeeder/internal/gcinput"
)

// CenterCalibration captures per-connection stick/trigger drift from the
// first sample seen after a disconnect and applies it to every later
// sample, so a controller that rests slightly off-center still reports a
// true center. The captured offset is cleared on the next disconnect.
type CenterCalibration struct {
	mu       sync.Mutex
	hasDrift bool
	drift    calibration.DriftData
}

// NewCenterCalibration constructs an empty (no drift captured) layer.
func NewCenterCalibration() *CenterCalibration {
	return &CenterCalibration{}
}

func (c *CenterCalibration) Name() string { return "center_calibration" }

func (c *CenterCalibration) Apply(in gcinput.Message) gcinput.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	if in == nil {
		c.hasDrift = false
		return nil
	}

	if !c.hasDrift {
		center := gcinput.StickRangeDefault.Center
		triggerMin := gcinput.TriggerRangeDefault.Min
		c.drift = calibration.DriftData{
			MainDX:       calibration.CaptureDelta(center, in.MainStick.X),
			MainDY:       calibration.CaptureDelta(center, in.MainStick.Y),
			CDX:          calibration.CaptureDelta(center, in.CStick.X),
			CDY:          calibration.CaptureDelta(center, in.CStick.Y),
			TriggerLeft:  calibration.CaptureDelta(triggerMin, in.LeftTrigger),
			TriggerRight: calibration.CaptureDelta(triggerMin, in.RightTrigger),
		}
		c.hasDrift = true
	}

	out := *in
	out.MainStick.X = calibration.ApplyDelta(in.MainStick.X, c.drift.MainDX)
	out.MainStick.Y = calibration.ApplyDelta(in.MainStick.Y, c.drift.MainDY)
	out.CStick.X = calibration.ApplyDelta(in.CStick.X, c.drift.CDX)
	out.CStick.Y = calibration.ApplyDelta(in.CStick.Y, c.drift.CDY)
	out.LeftTrigger = calibration.ApplyDelta(in.LeftTrigger, c.drift.TriggerLeft)
	out.RightTrigger = calibration.ApplyDelta(in.RightTrigger, c.drift.TriggerRight)
	return &out
}
