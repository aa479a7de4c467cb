// Package poller owns the single USB adapter session and multiplexes its
// per-port input stream to any number of listeners, while aggregating
// listener-set rumble commands into one write per iteration.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sticks-io/gcfeeder/internal/adapter"
	"github.com/sticks-io/gcfeeder/internal/avgtimer"
	"github.com/sticks-io/gcfeeder/internal/gcinput"
	"github.com/sticks-io/gcfeeder/internal/recent"
)

// ReconnectBackoff is the pause between a failed (re)open attempt and the
// next one.
const ReconnectBackoff = 8 * time.Millisecond

// Opener constructs a fresh adapter session, e.g. adapter.OpenUSB.
type Opener func() (*adapter.Session, error)

// Poller is a long-lived background entity: one goroutine reads inputs and
// writes rumble in lock-step, sharing the adapter session exclusively.
type Poller struct {
	open   Opener
	logger *slog.Logger

	mu      sync.Mutex
	senders []portSender
	rumble  [gcinput.NumPorts]atomic.Int32

	connected atomic.Bool
	loopTimer *avgtimer.Timer

	stop chan struct{}
	done chan struct{}
}

type portSender struct {
	port gcinput.Port
	tx   recent.Sender[gcinput.Message]
}

// New constructs a Poller that will use open to (re)acquire the adapter.
func New(open Opener, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		open:      open,
		logger:    logger,
		loopTimer: avgtimer.NewWindowed(time.Second),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Listener is a per-port handle into the poller's broadcast: receive the
// latest InputMessage, and set or clear this port's desired rumble state.
type Listener struct {
	port   gcinput.Port
	rx     recent.Receiver[gcinput.Message]
	rumble *atomic.Int32
}

// Port returns the port this listener was created for.
func (l *Listener) Port() gcinput.Port { return l.port }

// Recv blocks until an input message is available or the poller stops.
func (l *Listener) Recv() (gcinput.Message, error) { return l.rx.Recv() }

// RecvTimeout waits at most d for an input message.
func (l *Listener) RecvTimeout(d time.Duration) (gcinput.Message, error) {
	return l.rx.RecvTimeout(d)
}

// TryRecv returns immediately with whatever is queued.
func (l *Listener) TryRecv() (gcinput.Message, error) { return l.rx.TryRecv() }

// SetRumble writes this port's desired rumble state for the poller's next
// aggregated write.
func (l *Listener) SetRumble(r gcinput.Rumble) { l.rumble.Store(int32(r)) }

// ResetRumble clears this port's desired rumble state to Off.
func (l *Listener) ResetRumble() { l.rumble.Store(int32(gcinput.RumbleOff)) }

// AddListener registers a new listener for port and returns its handle.
func (p *Poller) AddListener(port gcinput.Port) *Listener {
	ch := recent.New[gcinput.Message]()
	tx, rx := ch.Split()

	p.mu.Lock()
	p.senders = append(p.senders, portSender{port: port, tx: tx})
	p.mu.Unlock()

	return &Listener{port: port, rx: rx, rumble: &p.rumble[port]}
}

// Connected reports whether the adapter session is currently open.
func (p *Poller) Connected() bool { return p.connected.Load() }

// AvgLoopTime returns the poller's most recently computed loop duration.
func (p *Poller) AvgLoopTime() time.Duration { return p.loopTimer.ReadAvg() }

// Run drives the poll loop until ctx is canceled or Stop is called. It is
// meant to be run on its own goroutine; Run blocks until the loop exits.
func (p *Poller) Run(ctx context.Context) {
	defer close(p.done)
	defer func() {
		// Disconnect every listener so a blocked Recv returns ErrDisconnected.
		p.mu.Lock()
		for _, s := range p.senders {
			s.tx.Close()
		}
		p.senders = nil
		p.mu.Unlock()
	}()

	var sess *adapter.Session
	defer func() {
		if sess != nil {
			_ = sess.Close()
		}
	}()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		if sess == nil {
			p.connected.Store(false)
			s, err := p.open()
			if err != nil {
				p.logger.Debug("adapter open failed, retrying", "error", err)
				sleepOrStop(ReconnectBackoff, p.stop, ctx)
				continue
			}
			sess = s
			p.connected.Store(true)
		}

		p.loopTimer.Reset()

		var wg sync.WaitGroup
		wg.Add(2)
		var readErr, writeErr error
		go func() {
			defer wg.Done()
			readErr = p.doRead(sess)
		}()
		go func() {
			defer wg.Done()
			writeErr = p.doWrite(sess)
		}()
		wg.Wait()

		p.loopTimer.Lap()

		if isFatal(readErr) || isFatal(writeErr) {
			p.logger.Warn("adapter session error, reopening", "read_error", readErr, "write_error", writeErr)
			_ = sess.Close()
			sess = nil
			sleepOrStop(ReconnectBackoff, p.stop, ctx)
		}
	}
}

func sleepOrStop(d time.Duration, stop <-chan struct{}, ctx context.Context) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-stop:
	case <-ctx.Done():
	}
}

func isFatal(err error) bool {
	return err != nil && !errors.Is(err, adapter.ErrTimeout)
}

func (p *Poller) doRead(sess *adapter.Session) error {
	inputs, err := sess.ReadInputs()
	if err != nil {
		if errors.Is(err, adapter.ErrTimeout) {
			return nil
		}
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	live := p.senders[:0]
	for _, s := range p.senders {
		if err := s.tx.Send(inputs[s.port]); err != nil {
			continue
		}
		live = append(live, s)
	}
	p.senders = live
	return nil
}

func (p *Poller) doWrite(sess *adapter.Session) error {
	var states [gcinput.NumPorts]gcinput.Rumble
	for i := range states {
		states[i] = gcinput.Rumble(p.rumble[i].Load())
	}
	if err := sess.WriteRumble(states); err != nil {
		if errors.Is(err, adapter.ErrTimeout) {
			return nil
		}
		return err
	}
	return nil
}

// Stop latches the stop flag; callers should then wait on Done.
func (p *Poller) Stop() {
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
}

// Done is closed once Run has returned.
func (p *Poller) Done() <-chan struct{} { return p.done }
