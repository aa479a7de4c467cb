package avgtimer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEWMARejectsInvalidAlpha(t *testing.T) {
	_, err := NewEWMA(-0.1)
	assert.ErrorIs(t, err, ErrInvalidAlpha)
	_, err = NewEWMA(1.1)
	assert.ErrorIs(t, err, ErrInvalidAlpha)
}

func TestEWMAFirstLapSeedsMean(t *testing.T) {
	tm, err := NewEWMA(0.5)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	mean := tm.Lap()
	assert.True(t, mean > 0)
	assert.Equal(t, mean, tm.ReadAvg())
}

func TestWindowedDropsOldSamples(t *testing.T) {
	tm := NewWindowed(20 * time.Millisecond)
	tm.Lap()
	time.Sleep(30 * time.Millisecond)
	mean := tm.Lap()
	// only the most recent (~30ms) sample should remain in a 20ms window
	assert.True(t, mean >= 25*time.Millisecond)
}

func TestReadDoesNotAdvanceEpoch(t *testing.T) {
	tm := NewWindowed(time.Second)
	time.Sleep(5 * time.Millisecond)
	first := tm.Read()
	time.Sleep(5 * time.Millisecond)
	second := tm.Read()
	assert.True(t, second > first)
}
