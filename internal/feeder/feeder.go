// Package feeder runs the per-port worker that pulls inputs from a
// poller.Listener, folds them through the internal and user layer
// pipelines, pushes the result to a bridge, and publishes a Record of the
// tick to any registered observers. One Feeder owns exactly one bridge and
// one listener; neither is shared with another Feeder.
package feeder

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sticks-io/gcfeeder/internal/avgtimer"
	"github.com/sticks-io/gcfeeder/internal/bridge"
	"github.com/sticks-io/gcfeeder/internal/gcinput"
	"github.com/sticks-io/gcfeeder/internal/mapping"
	"github.com/sticks-io/gcfeeder/internal/recent"
)

// InputTimeout bounds how long one tick waits for the listener before
// looping again with no record produced.
const InputTimeout = 8 * time.Millisecond

// Listener is the subset of poller.Listener a Feeder needs. Satisfied by
// *poller.Listener; named here so tests can supply a fake.
type Listener interface {
	RecvTimeout(d time.Duration) (gcinput.Message, error)
	SetRumble(r gcinput.Rumble)
	ResetRumble()
}

// BridgeFactory constructs a fresh Bridge, called whenever the Feeder needs
// to (re)build one: on first run, and after the previous bridge errored.
type BridgeFactory func() (bridge.Bridge, error)

// Record is one end-to-end tick: the input as seen after the internal
// layers (before user layers), the input as delivered to the bridge, and
// how long the feed itself took.
type Record struct {
	Raw     gcinput.Message
	Layered gcinput.Message
	Feed    time.Duration
}

// Feeder owns one bridge and one listener and runs a dedicated goroutine
// folding every tick through the layer pipelines.
type Feeder struct {
	port      gcinput.Port
	listener  Listener
	newBridge BridgeFactory
	internal  *mapping.Pipeline
	user      *mapping.Pipeline
	logger    *slog.Logger

	feedTimer *avgtimer.Timer

	mu        sync.Mutex
	callbacks []func(Record)
	recorders []recordSender

	captureMu sync.Mutex
	capture   captureSender

	rumbleEnabled bool

	stop chan struct{}
	done chan struct{}
}

// recordSender is the subset of recent.Sender[Record] a Feeder needs to
// publish to, kept generic-free here so the package has no hard dependency
// on the recent package's type parameter at the exported surface.
type recordSender interface {
	Send(Record) error
}

// captureSender receives the pre-user-layer input while a calibration
// wizard is capturing notch/trigger samples.
type captureSender interface {
	TrySend(gcinput.Message) error
}

// Options configures a new Feeder.
type Options struct {
	Port          gcinput.Port
	Listener      Listener
	NewBridge     BridgeFactory
	UserLayers    []mapping.Layer
	RumbleEnabled bool
	Logger        *slog.Logger
}

// New constructs a Feeder. The internal pipeline always begins with
// CenterCalibration, per the fixed construction policy; callers only
// supply the user-configured layers (AnalogScaling/EssInversion/
// Calibration, in that order, each appended only when its profile setting
// warrants it).
func New(opts Options) *Feeder {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Feeder{
		port:          opts.Port,
		listener:      opts.Listener,
		newBridge:     opts.NewBridge,
		internal:      mapping.NewPipeline(mapping.NewCenterCalibration()),
		user:          mapping.NewPipeline(opts.UserLayers...),
		rumbleEnabled: opts.RumbleEnabled,
		logger:        logger,
		feedTimer:     avgtimer.NewWindowed(time.Second),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// OnRecord registers a callback invoked, concurrently with any other
// registered observer, after every successful feed. Must be called before
// Run starts consuming, or while holding no assumption about ordering with
// an in-flight tick.
func (f *Feeder) OnRecord(cb func(Record)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks = append(f.callbacks, cb)
}

// AddRecordSender registers a Record sender (e.g. a recent.Sender[Record])
// that receives every successful tick's Record until it disconnects, at
// which point the Feeder prunes it.
func (f *Feeder) AddRecordSender(s recordSender) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorders = append(f.recorders, s)
}

// SetCaptureSender registers the pre-user-layer input sink a calibration
// wizard reads from while capturing notch/trigger samples. While
// registered, the bridge is fed the neutral (centered) Input instead of the
// real layered one, so the physical controller doesn't fight the on-screen
// wizard. Passing nil clears the registration.
func (f *Feeder) SetCaptureSender(s captureSender) {
	f.captureMu.Lock()
	defer f.captureMu.Unlock()
	f.capture = s
}

// AvgFeedTime returns the Feeder's most recently computed feed-time mean.
func (f *Feeder) AvgFeedTime() time.Duration { return f.feedTimer.ReadAvg() }

// Port returns the port this Feeder serves.
func (f *Feeder) Port() gcinput.Port { return f.port }

// Run drives the feed loop until Stop is called or the listener
// disconnects. Meant to run on its own goroutine; blocks until exit.
func (f *Feeder) Run() {
	defer close(f.done)

	var br bridge.Bridge
	defer func() {
		if br != nil {
			_ = br.Close()
		}
	}()

	for {
		select {
		case <-f.stop:
			return
		default:
		}

		if br == nil {
			b, err := f.newBridge()
			if err != nil {
				f.logger.Debug("bridge build failed, retrying", "port", f.port, "error", err)
				f.feedTimer.Reset()
				if sleepOrStop(InputTimeout, f.stop) {
					return
				}
				continue
			}
			br = b
		}

		if f.rumbleEnabled {
			f.listener.SetRumble(br.RumbleState())
		}
		br.NotifyRumbleConsumed()

		raw, err := f.listener.RecvTimeout(InputTimeout)
		if err != nil {
			if isDisconnect(err) {
				return
			}
			// Timeout: nothing arrived this tick, no record produced.
			continue
		}

		afterInternal := f.internal.Apply(raw)

		f.captureMu.Lock()
		capTx := f.capture
		f.captureMu.Unlock()

		layered := f.user.Apply(afterInternal)
		if capTx != nil {
			if err := capTx.TrySend(afterInternal); err != nil {
				f.captureMu.Lock()
				if f.capture == capTx {
					f.capture = nil
				}
				f.captureMu.Unlock()
			} else {
				neutral := gcinput.Default()
				layered = &neutral
			}
		}

		f.feedTimer.Reset()
		feedErr := br.Feed(layered)
		feedDur := f.feedTimer.Lap()

		if feedErr != nil {
			f.logger.Debug("bridge feed failed, rebuilding", "port", f.port, "error", feedErr)
			_ = br.Close()
			br = nil
			continue
		}

		f.publish(Record{Raw: afterInternal, Layered: layered, Feed: feedDur})
	}
}

func (f *Feeder) publish(rec Record) {
	f.mu.Lock()
	callbacks := append([]func(Record){}, f.callbacks...)
	recorders := append([]recordSender{}, f.recorders...)
	f.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(len(callbacks))
	for _, cb := range callbacks {
		go func(cb func(Record)) {
			defer wg.Done()
			cb(rec)
		}(cb)
	}

	live := make([]recordSender, 0, len(recorders))
	var liveMu sync.Mutex
	wg.Add(len(recorders))
	for _, r := range recorders {
		go func(r recordSender) {
			defer wg.Done()
			if err := r.Send(rec); err == nil {
				liveMu.Lock()
				live = append(live, r)
				liveMu.Unlock()
			}
		}(r)
	}
	wg.Wait()

	f.mu.Lock()
	f.recorders = live
	f.mu.Unlock()
}

func isDisconnect(err error) bool {
	// Only the listener's own disconnect sentinel terminates the loop;
	// every other error (timeout) just skips this tick.
	return errors.Is(err, recent.ErrDisconnected)
}

// Stop latches the stop flag; callers should then wait on Done.
func (f *Feeder) Stop() {
	select {
	case <-f.stop:
	default:
		close(f.stop)
	}
}

// Done is closed once Run has returned.
func (f *Feeder) Done() <-chan struct{} { return f.done }

func sleepOrStop(d time.Duration, stop <-chan struct{}) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return false
	case <-stop:
		return true
	}
}
