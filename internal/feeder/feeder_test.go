package feeder

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sticks-io/gcfeeder/internal/bridge"
	"github.com/sticks-io/gcfeeder/internal/gcinput"
	"github.com/sticks-io/gcfeeder/internal/recent"
)

// fakeListener replays a fixed script of messages, one per RecvTimeout
// call, then reports Disconnected.
type fakeListener struct {
	mu      sync.Mutex
	script  []gcinput.Message
	pos     int
	rumbles []gcinput.Rumble
}

func (f *fakeListener) RecvTimeout(time.Duration) (gcinput.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pos >= len(f.script) {
		return nil, recent.ErrDisconnected
	}
	v := f.script[f.pos]
	f.pos++
	return v, nil
}

func (f *fakeListener) SetRumble(r gcinput.Rumble) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rumbles = append(f.rumbles, r)
}

func (f *fakeListener) ResetRumble() {}

// fakeBridge records every Feed call's argument in order.
type fakeBridge struct {
	mu   sync.Mutex
	fed  []gcinput.Message
	fail bool
}

func (b *fakeBridge) DriverName() string { return "fake" }

func (b *fakeBridge) Feed(i gcinput.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("fake: feed failed")
	}
	b.fed = append(b.fed, i)
	return nil
}

func (b *fakeBridge) RumbleState() gcinput.Rumble { return gcinput.RumbleOff }
func (b *fakeBridge) NotifyRumbleConsumed()       {}
func (b *fakeBridge) Close() error                { return nil }

func (b *fakeBridge) feedLog() []gcinput.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]gcinput.Message{}, b.fed...)
}

var _ bridge.Bridge = (*fakeBridge)(nil)

func TestFeederDeliversScriptInOrderAndTerminatesOnDisconnect(t *testing.T) {
	x := &gcinput.Input{MainStick: gcinput.Stick{X: 0x90, Y: 0x80}}
	y := &gcinput.Input{MainStick: gcinput.Stick{X: 0x20, Y: 0x80}}
	listener := &fakeListener{script: []gcinput.Message{nil, nil, x, x, nil, y}}
	br := &fakeBridge{}

	f := New(Options{
		Port:     gcinput.PortOne,
		Listener: listener,
		NewBridge: func() (bridge.Bridge, error) {
			return br, nil
		},
	})

	var records []Record
	var mu sync.Mutex
	f.OnRecord(func(r Record) {
		mu.Lock()
		defer mu.Unlock()
		records = append(records, r)
	})

	done := make(chan struct{})
	go func() {
		f.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("feeder did not terminate on listener disconnect")
	}

	// The bridge receives the layered forms: the internal CenterCalibration
	// layer captures x (and later y) as the first sample after a None and
	// pulls it back to center, so every delivered main stick is centered.
	centered := gcinput.Stick{X: 0x80, Y: 0x80}
	fed := br.feedLog()
	require.Len(t, fed, 6)
	assert.Nil(t, fed[0])
	assert.Nil(t, fed[1])
	require.NotNil(t, fed[2])
	assert.Equal(t, centered, fed[2].MainStick)
	require.NotNil(t, fed[3])
	assert.Equal(t, centered, fed[3].MainStick)
	assert.Nil(t, fed[4])
	require.NotNil(t, fed[5])
	assert.Equal(t, centered, fed[5].MainStick)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, records, 6)
	for i, rec := range records {
		assert.Equal(t, fed[i], rec.Layered)
	}
}

func TestFeederRebuildsBridgeAfterFeedError(t *testing.T) {
	x := &gcinput.Input{}
	listener := &fakeListener{script: []gcinput.Message{x, x}}

	calls := 0
	var mu sync.Mutex
	var built []*fakeBridge

	f := New(Options{
		Port:     gcinput.PortOne,
		Listener: listener,
		NewBridge: func() (bridge.Bridge, error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			b := &fakeBridge{fail: calls == 1}
			built = append(built, b)
			return b, nil
		},
	})

	done := make(chan struct{})
	go func() {
		f.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("feeder did not terminate on listener disconnect")
	}

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(built), 2)
	assert.Empty(t, built[0].feedLog(), "first bridge's only feed attempt failed")
	assert.NotEmpty(t, built[len(built)-1].feedLog(), "a later bridge received the retried input")
}
