package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sticks-io/gcfeeder/internal/adapter"
	"github.com/sticks-io/gcfeeder/internal/gcinput"
)

// fakeTransport feeds a fixed 37-byte payload on every read and records
// every rumble write, standing in for the physical adapter.
type fakeTransport struct {
	mu     sync.Mutex
	writes [][]byte
}

func (f *fakeTransport) ControlWrite(reqType, request uint8, value, index uint16, data []byte) error {
	return nil
}

func (f *fakeTransport) Read(buf []byte) (int, error) {
	payload := make([]byte, 37)
	payload[0] = 0x21
	payload[1] = 0x10 // port 0 plugged, wired
	payload[2] = 0x01 // A pressed
	payload[4] = 0x80
	payload[5] = 0x80
	payload[6] = 0x80
	payload[7] = 0x80
	n := copy(buf, payload)
	return n, nil
}

func (f *fakeTransport) Write(data []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.writes = append(f.writes, cp)
	return len(data), nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) lastWrite() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return nil
	}
	return f.writes[len(f.writes)-1]
}

func newTestPoller(t *testing.T) (*Poller, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{}
	opener := func() (*adapter.Session, error) {
		return adapter.Open(ft)
	}
	p := New(opener, nil)
	return p, ft
}

func TestPollerFansOutInputToListener(t *testing.T) {
	p, _ := newTestPoller(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := p.AddListener(gcinput.PortOne)
	go p.Run(ctx)
	defer func() {
		p.Stop()
		<-p.Done()
	}()

	msg, err := l.RecvTimeout(time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.True(t, msg.Buttons.A)
}

func TestPollerUnpluggedPortDeliversNil(t *testing.T) {
	p, _ := newTestPoller(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := p.AddListener(gcinput.PortTwo)
	go p.Run(ctx)
	defer func() {
		p.Stop()
		<-p.Done()
	}()

	msg, err := l.RecvTimeout(time.Second)
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestPollerAggregatesListenerRumble(t *testing.T) {
	p, ft := newTestPoller(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l1 := p.AddListener(gcinput.PortOne)
	l2 := p.AddListener(gcinput.PortThree)
	l1.SetRumble(gcinput.RumbleOn)
	l2.SetRumble(gcinput.RumbleOn)

	go p.Run(ctx)
	defer func() {
		p.Stop()
		<-p.Done()
	}()

	require.Eventually(t, func() bool {
		w := ft.lastWrite()
		return len(w) == 5 && w[1] == 1 && w[3] == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPollerConnectedBecomesTrue(t *testing.T) {
	p, _ := newTestPoller(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go p.Run(ctx)
	defer func() {
		p.Stop()
		<-p.Done()
	}()

	require.Eventually(t, p.Connected, time.Second, 5*time.Millisecond)
}

func TestPollerStopJoins(t *testing.T) {
	p, _ := newTestPoller(t)
	ctx := context.Background()
	go p.Run(ctx)

	p.Stop()
	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
