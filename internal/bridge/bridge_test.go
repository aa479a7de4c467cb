package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sticks-io/gcfeeder/internal/gcinput"
)

func TestScaleAxisEndpointsAndCenter(t *testing.T) {
	assert.Equal(t, int16(0), ScaleAxis(0x80))
	assert.Equal(t, int16(32767), ScaleAxis(0xFF))
	assert.Equal(t, int16(-32767), ScaleAxis(0x01))
}

func TestScaleAxisRoundsAwayFromZero(t *testing.T) {
	// 0x81 is one notch above center: (1/127)*32767 = 258.0079..., ceil -> 259
	assert.Equal(t, int16(259), ScaleAxis(0x81))
	// 0x7F is one notch below center on the negative side.
	assert.Equal(t, int16(-259), ScaleAxis(0x7F))
}

func TestPackButtonsFixedPositions(t *testing.T) {
	b := gcinput.Buttons{A: true, Z: true, Start: true}
	w := PackButtons(b, TriggerAnalog)
	assert.Equal(t, BtnA|BtnRShoulder|BtnStart, w)
}

func TestPackButtonsStickClickRaisesThumbBits(t *testing.T) {
	b := gcinput.Buttons{L: true, R: true}
	assert.Equal(t, BtnLThumb|BtnRThumb, PackButtons(b, TriggerStickClick))
	assert.Equal(t, uint16(0), PackButtons(b, TriggerAnalog))
}

func TestPackTriggerModes(t *testing.T) {
	assert.Equal(t, uint8(0x80), PackTrigger(0x80, false, TriggerAnalog))
	assert.Equal(t, uint8(0x00), PackTrigger(0x80, false, TriggerDigital))
	assert.Equal(t, uint8(0xFF), PackTrigger(0x80, true, TriggerDigital))
	assert.Equal(t, uint8(0xFF), PackTrigger(0x10, true, TriggerCombination))
	assert.Equal(t, uint8(0x10), PackTrigger(0x10, false, TriggerCombination))
	assert.Equal(t, uint8(0x80), PackTrigger(0x80, true, TriggerStickClick))
}

func TestPatternRumblerTracksStrength(t *testing.T) {
	var p PatternRumbler
	p.UpdateStrength(0)
	assert.Equal(t, gcinput.RumbleOff, p.State())
	p.UpdateStrength(255)
	assert.Equal(t, gcinput.RumbleOn, p.State())
}
