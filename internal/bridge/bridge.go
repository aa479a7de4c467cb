// Package bridge defines the virtual-gamepad sink contract that feeders
// drive, plus the XInput-style encoding helpers shared by backends that
// present themselves as an Xbox 360 controller.
package bridge

import (
	"github.com/sticks-io/gcfeeder/internal/gcinput"
	"github.com/sticks-io/gcfeeder/internal/rumble"
)

// Bridge is the abstract virtual-gamepad sink. One implementation exists
// per host backend (USB/IP Xbox 360 pad, Linux uinput, ...).
type Bridge interface {
	// DriverName is a human-readable identifier for logs and diagnostics.
	DriverName() string

	// Feed mirrors i onto the virtual device, attaching it first if
	// necessary. A nil i means the GameCube controller this bridge tracks
	// has disconnected; the virtual device should unplug.
	Feed(i gcinput.Message) error

	// RumbleState reports the bridge's current desired rumble level,
	// after pattern slicing.
	RumbleState() gcinput.Rumble

	// NotifyRumbleConsumed advances the rumble pattern by one phase slot.
	// Called every feeder tick regardless of whether rumble is enabled,
	// so the pattern stays in lockstep with the feed rate.
	NotifyRumbleConsumed()

	// Close tears down the virtual device.
	Close() error
}

// TriggerMode selects how the GC analog trigger bytes and L/R digital
// buttons combine into the virtual pad's trigger axes.
type TriggerMode int

const (
	// TriggerAnalog passes the trigger byte through; L/R face buttons go unused.
	TriggerAnalog TriggerMode = iota
	// TriggerDigital derives the trigger byte from the L/R buttons alone (0x00/0xFF).
	TriggerDigital
	// TriggerCombination is the max of the analog and digital values.
	TriggerCombination
	// TriggerStickClick passes the analog value through and also raises the
	// thumbstick-click bits from the L/R buttons.
	TriggerStickClick
)

func (m TriggerMode) String() string {
	switch m {
	case TriggerAnalog:
		return "analog"
	case TriggerDigital:
		return "digital"
	case TriggerCombination:
		return "combination"
	case TriggerStickClick:
		return "stick_click"
	default:
		return "unknown"
	}
}

// Button word bit positions, fixed by the wire format every backend targets.
const (
	BtnUp uint16 = 1 << iota
	BtnDown
	BtnLeft
	BtnRight
	BtnStart
	btnBackUnused
	BtnLThumb
	BtnRThumb
	btnLShoulderUnused
	BtnRShoulder // GC's Z button
	btnUnused10
	btnUnused11
	BtnA
	BtnB
	BtnX
	BtnY
)

// PackButtons encodes GC buttons into the 16-bit packed button word shared
// by every XInput-shaped backend. mode only matters for the thumb-click
// bits (StickClick mode raises them from the L/R shoulder buttons).
func PackButtons(b gcinput.Buttons, mode TriggerMode) uint16 {
	var w uint16
	if b.Up {
		w |= BtnUp
	}
	if b.Down {
		w |= BtnDown
	}
	if b.Left {
		w |= BtnLeft
	}
	if b.Right {
		w |= BtnRight
	}
	if b.Start {
		w |= BtnStart
	}
	if b.Z {
		w |= BtnRShoulder
	}
	if b.A {
		w |= BtnA
	}
	if b.B {
		w |= BtnB
	}
	if b.X {
		w |= BtnX
	}
	if b.Y {
		w |= BtnY
	}
	if mode == TriggerStickClick {
		if b.L {
			w |= BtnLThumb
		}
		if b.R {
			w |= BtnRThumb
		}
	}
	return w
}

// PackTrigger derives the virtual pad's 8-bit trigger byte per mode.
func PackTrigger(analog uint8, pressed bool, mode TriggerMode) uint8 {
	switch mode {
	case TriggerDigital:
		if pressed {
			return 0xFF
		}
		return 0x00
	case TriggerCombination:
		if pressed && analog < 0xFF {
			return 0xFF
		}
		return analog
	default: // TriggerAnalog, TriggerStickClick
		return analog
	}
}

// ScaleAxis maps an 8-bit GC stick axis (centered at 0x80, radius 0x7F)
// onto the signed 16-bit full range, rounding away from zero.
func ScaleAxis(v uint8) int16 {
	const center = 128.0
	const radius = 127.0
	const fullScale = 32767.0

	f := (float64(v) - center) / radius * fullScale
	if f >= 0 {
		return int16(ceilF(f))
	}
	return -int16(ceilF(-f))
}

func ceilF(f float64) float64 {
	i := float64(int64(f))
	if f > i {
		return i + 1
	}
	return i
}

// PatternRumbler is a Bridge's own pattern generator. Each Bridge instance
// carries one; ViGEm-style host rumble callbacks fire on a background
// thread owned by the virtual-device client library, and rumble.Generator
// is already safe for that concurrent use, so no process-wide singleton is
// needed or wanted.
type PatternRumbler struct {
	gen rumble.Generator
}

// UpdateStrength feeds a new host-reported rumble strength (0..255, the max
// of the small and large motor bytes) into the pattern generator.
func (p *PatternRumbler) UpdateStrength(strength uint8) {
	p.gen.UpdateStrength(strength)
}

// Peek returns the current pattern slot without advancing the phase.
func (p *PatternRumbler) Peek() bool {
	return p.gen.PeekRumble()
}

// Poll returns the current pattern slot and advances the phase.
func (p *PatternRumbler) Poll() bool {
	return p.gen.PollRumble()
}

// State converts the current peeked slot into a gcinput.Rumble level.
func (p *PatternRumbler) State() gcinput.Rumble {
	if p.Peek() {
		return gcinput.RumbleOn
	}
	return gcinput.RumbleOff
}
