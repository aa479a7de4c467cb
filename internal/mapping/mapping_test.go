package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sticks-io/gcfeeder/internal/gcinput"
)

func TestAnalogScalingIdentityAtScaleOne(t *testing.T) {
	l := &AnalogScaling{Scale: 1}
	in := &gcinput.Input{MainStick: gcinput.Stick{X: 0x60, Y: 0xA0}, CStick: gcinput.Stick{X: 0x10, Y: 0xF0}}
	out := l.Apply(in)
	require.NotNil(t, out)
	assert.Equal(t, in.MainStick, out.MainStick)
	assert.Equal(t, in.CStick, out.CStick)
}

func TestAnalogScalingPropagatesNil(t *testing.T) {
	l := &AnalogScaling{Scale: 1.5}
	assert.Nil(t, l.Apply(nil))
}

func TestAnalogScalingIdentityAtCenterRegardlessOfScale(t *testing.T) {
	l := &AnalogScaling{Scale: 1.5}
	in := &gcinput.Input{MainStick: gcinput.Stick{X: 0x80, Y: 0x80}, CStick: gcinput.Stick{X: 0x80, Y: 0x80}}
	out := l.Apply(in)
	assert.Equal(t, uint8(0x80), out.MainStick.X)
	assert.Equal(t, uint8(0x80), out.MainStick.Y)
}

func TestCenterCalibrationCapturesAndClears(t *testing.T) {
	c := NewCenterCalibration()

	first := &gcinput.Input{MainStick: gcinput.Stick{X: 0x70, Y: 0x90}, CStick: gcinput.Stick{X: 0x80, Y: 0x80}}
	out := c.Apply(first)
	require.NotNil(t, out)
	assert.Equal(t, uint8(0x80), out.MainStick.X)
	assert.Equal(t, uint8(0x80), out.MainStick.Y)

	second := &gcinput.Input{MainStick: gcinput.Stick{X: 0x70, Y: 0x90}, CStick: gcinput.Stick{X: 0x80, Y: 0x80}}
	out2 := c.Apply(second)
	assert.Equal(t, uint8(0x80), out2.MainStick.X)
	assert.Equal(t, uint8(0x80), out2.MainStick.Y)

	assert.Nil(t, c.Apply(nil))

	third := &gcinput.Input{MainStick: gcinput.Stick{X: 0x70, Y: 0x90}}
	out3 := c.Apply(third)
	// drift recaptured after disconnect: first post-None sample snaps again
	assert.Equal(t, uint8(0x80), out3.MainStick.X)
}

func TestPipelineAppliesLayersInOrder(t *testing.T) {
	p := NewPipeline(NewCenterCalibration(), &AnalogScaling{Scale: 1})
	out := p.Apply(&gcinput.Input{MainStick: gcinput.Stick{X: 0x70, Y: 0x90}})
	require.NotNil(t, out)
	assert.Equal(t, uint8(0x80), out.MainStick.X)
}

func TestEssInversionOnlyTouchesMainStick(t *testing.T) {
	l := &EssInversion{}
	in := &gcinput.Input{
		MainStick: gcinput.Stick{X: 0xA0, Y: 0x80},
		CStick:    gcinput.Stick{X: 0x42, Y: 0x99},
		Buttons:   gcinput.Buttons{A: true},
	}
	out := l.Apply(in)
	require.NotNil(t, out)
	assert.Equal(t, in.CStick, out.CStick)
	assert.Equal(t, in.Buttons, out.Buttons)
}
