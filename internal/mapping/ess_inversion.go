package mapping

import (
	"github.com/sticks-io/gcfeeder/internal/calibration"
	"github.com/sticks-io/gcfeeder/internal/gcinput"
)

// EssInversion remaps the main stick only, giving N64-era titles the
// control feel their original controller's octagonal gate produced.
type EssInversion struct {
	Variant calibration.EssVariant
}

func (e *EssInversion) Name() string { return "ess_inversion" }

func (e *EssInversion) Apply(in gcinput.Message) gcinput.Message {
	if in == nil {
		return nil
	}
	out := *in
	out.MainStick.X, out.MainStick.Y = calibration.InvertMainStick(e.Variant, in.MainStick.X, in.MainStick.Y)
	return &out
}
