// Package rumble converts an 8-bit force-feedback strength into a 6-slot
// boolean duty-cycle pattern, since the adapter's rumble motors are simple
// on/off actuators with no native strength control.
package rumble

import "sync"

// Pattern is one 6-tick boolean duty cycle.
type Pattern [6]bool

func buildPattern(duty int) Pattern {
	var p Pattern
	for i := 0; i < 6; i++ {
		p[i] = (i*duty)%6 < duty
	}
	return p
}

// patterns holds the seven fixed duty cycles: 0/6 through 6/6.
var patterns = func() [7]Pattern {
	var out [7]Pattern
	for d := 0; d <= 6; d++ {
		out[d] = buildPattern(d)
	}
	return out
}()

// Generator tracks the currently selected pattern and phase within it.
// Safe for concurrent use: the feeder's owning thread calls PollRumble while
// other goroutines may call UpdateStrength.
type Generator struct {
	mu    sync.Mutex
	index int
	phase int
}

// UpdateStrength selects a new duty-cycle pattern for strength s and resets
// phase to its first slot.
func (g *Generator) UpdateStrength(s uint8) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s == 0 {
		g.index = 0
	} else {
		g.index = 1 + (int(s-1)*6)/255
	}
	g.phase = 0
}

// PeekRumble returns the current slot's value without advancing phase.
func (g *Generator) PeekRumble() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return patterns[g.index][g.phase]
}

// PollRumble returns the current slot's value and advances phase modulo 6.
func (g *Generator) PollRumble() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	v := patterns[g.index][g.phase]
	g.phase = (g.phase + 1) % 6
	return v
}
