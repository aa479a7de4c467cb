package rumble

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrengthZeroAlwaysFalse(t *testing.T) {
	g := &Generator{}
	g.UpdateStrength(0)
	for i := 0; i < 12; i++ {
		assert.False(t, g.PollRumble())
	}
}

func TestStrengthMaxAlwaysTrue(t *testing.T) {
	g := &Generator{}
	g.UpdateStrength(255)
	for i := 0; i < 12; i++ {
		assert.True(t, g.PollRumble())
	}
}

func TestStrength128SelectsPattern3(t *testing.T) {
	g := &Generator{}
	g.UpdateStrength(128)
	want := []bool{true, false, true, false, true, false}
	for i, w := range want {
		got := g.PollRumble()
		assert.Equal(t, w, got, "slot %d", i)
	}
}

func TestPeekDoesNotAdvance(t *testing.T) {
	g := &Generator{}
	g.UpdateStrength(128)
	a := g.PeekRumble()
	b := g.PeekRumble()
	assert.Equal(t, a, b)
}

func TestDutyCycleFractionMatchesIndexOverSix(t *testing.T) {
	for s := 1; s <= 255; s++ {
		g := &Generator{}
		g.UpdateStrength(uint8(s))
		trueCount := 0
		for i := 0; i < 6; i++ {
			if g.PollRumble() {
				trueCount++
			}
		}
		wantIndex := 1 + ((s - 1) * 6 / 255)
		assert.Equal(t, wantIndex, trueCount, "strength %d", s)
	}
}
