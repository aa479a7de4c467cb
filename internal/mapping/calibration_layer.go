package mapping

import (
	"log/slog"
	"sync"

	"github.com/sticks-io/gcfeeder/internal/calibration"
	"github.com/sticks-io/gcfeeder/internal/gcinput"
)

// Calibration applies the user-captured stick/trigger remaps. Any
// sub-calibration that fails validation is disabled for the remainder of
// the session after a single warning; the others keep running.
type Calibration struct {
	mu sync.Mutex

	MainStick    *calibration.StickCalibration
	CStick       *calibration.StickCalibration
	LeftTrigger  *calibration.TriggerCalibration
	RightTrigger *calibration.TriggerCalibration

	logger *slog.Logger

	badMainStick    bool
	badCStick       bool
	badLeftTrigger  bool
	badRightTrigger bool
}

// NewCalibration constructs a Calibration layer. Any of the four
// sub-calibrations may be nil to leave that axis unmodified.
func NewCalibration(main, c *calibration.StickCalibration, left, right *calibration.TriggerCalibration, logger *slog.Logger) *Calibration {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calibration{MainStick: main, CStick: c, LeftTrigger: left, RightTrigger: right, logger: logger}
}

func (c *Calibration) Name() string { return "calibration" }

func (c *Calibration) Apply(in gcinput.Message) gcinput.Message {
	if in == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	out := *in

	if c.MainStick != nil && !c.badMainStick {
		if p, err := c.MainStick.Remap(calibration.Point{X: in.MainStick.X, Y: in.MainStick.Y}); err == nil {
			out.MainStick = gcinput.Stick{X: p.X, Y: p.Y}
		} else {
			c.badMainStick = true
			c.logger.Warn("main stick calibration disabled for session", "error", err)
		}
	}
	if c.CStick != nil && !c.badCStick {
		if p, err := c.CStick.Remap(calibration.Point{X: in.CStick.X, Y: in.CStick.Y}); err == nil {
			out.CStick = gcinput.Stick{X: p.X, Y: p.Y}
		} else {
			c.badCStick = true
			c.logger.Warn("c stick calibration disabled for session", "error", err)
		}
	}
	if c.LeftTrigger != nil && !c.badLeftTrigger {
		if v, err := c.LeftTrigger.Remap(in.LeftTrigger); err == nil {
			out.LeftTrigger = v
		} else {
			c.badLeftTrigger = true
			c.logger.Warn("left trigger calibration disabled for session", "error", err)
		}
	}
	if c.RightTrigger != nil && !c.badRightTrigger {
		if v, err := c.RightTrigger.Remap(in.RightTrigger); err == nil {
			out.RightTrigger = v
		} else {
			c.badRightTrigger = true
			c.logger.Warn("right trigger calibration disabled for session", "error", err)
		}
	}

	return &out
}
