package xbox360

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/sticks-io/gcfeeder/internal/bridge"
	"github.com/sticks-io/gcfeeder/internal/gcinput"
	internallog "github.com/sticks-io/gcfeeder/internal/log"
	"github.com/sticks-io/gcfeeder/internal/virtualbus"
)

// Config selects the USB/IP listen address and trigger behavior for a
// Bridge instance.
type Config struct {
	// Addr is the loopback TCP address the USB/IP host (the kernel
	// vhci_hcd client) connects to. Empty means "127.0.0.1:0" (an
	// ephemeral port), appropriate when a single gcfeeder process hosts
	// several ports each on their own bus.
	Addr        string
	TriggerMode bridge.TriggerMode

	// RawLog, if non-nil, receives a hex-dump trace of every USB/IP
	// packet this bridge's server exchanges. Defaults to a no-op.
	RawLog internallog.RawLogger
}

// Bridge presents one GameCube port as a virtual wired Xbox 360 controller
// over a loopback USB/IP connection. Each instance owns its own
// VirtualBus/server/device triple and its own PatternRumbler; nothing here
// is process-global.
type Bridge struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	bus     *virtualbus.VirtualBus
	dev     *device
	srv     *server
	rumbler bridge.PatternRumbler
}

// New constructs a Bridge. The virtual device is not created until the
// first Feed call with a non-nil input, per the Bridge contract.
func New(cfg Config, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	if cfg.RawLog == nil {
		cfg.RawLog = noopRawLogger{}
	}
	return &Bridge{cfg: cfg, logger: logger}
}

func (b *Bridge) DriverName() string { return "xbox360-usbip" }

// Feed attaches the virtual device on first use and mirrors i onto it. A
// nil i unplugs the device; the next non-nil Feed recreates it.
func (b *Bridge) Feed(i gcinput.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i == nil {
		return b.teardownLocked()
	}
	if b.srv == nil {
		if err := b.attachLocked(); err != nil {
			return err
		}
	}

	state := inputState{
		Buttons: bridge.PackButtons(i.Buttons, b.cfg.TriggerMode),
		LT:      bridge.PackTrigger(i.LeftTrigger, i.Buttons.L, b.cfg.TriggerMode),
		RT:      bridge.PackTrigger(i.RightTrigger, i.Buttons.R, b.cfg.TriggerMode),
		LX:      bridge.ScaleAxis(i.MainStick.X),
		LY:      bridge.ScaleAxis(i.MainStick.Y),
		RX:      bridge.ScaleAxis(i.CStick.X),
		RY:      bridge.ScaleAxis(i.CStick.Y),
	}
	b.dev.update(state)
	return nil
}

func (b *Bridge) attachLocked() error {
	bus := virtualbus.New()
	dev := newDevice()
	dev.setRumbleCallback(func(r rumbleReport) {
		large, small := r.Left, r.Right
		max := large
		if small > max {
			max = small
		}
		b.rumbler.UpdateStrength(max)
	})
	if _, err := bus.Add(dev); err != nil {
		_ = bus.Close()
		return fmt.Errorf("xbox360: register device: %w", err)
	}
	srv, err := newServer(b.cfg.Addr, bus, dev, b.logger, b.cfg.RawLog)
	if err != nil {
		_ = bus.Close()
		return fmt.Errorf("xbox360: start usbip listener: %w", err)
	}
	b.bus = bus
	b.dev = dev
	b.srv = srv
	b.logger.Info("xbox360 virtual pad listening", "addr", srv.Addr())
	return nil
}

func (b *Bridge) teardownLocked() error {
	if b.srv == nil {
		return nil
	}
	err := b.srv.Close()
	_ = b.bus.Close()
	b.srv, b.bus, b.dev = nil, nil, nil
	return err
}

// RumbleState reports the current pattern slot as a gcinput.Rumble level.
func (b *Bridge) RumbleState() gcinput.Rumble { return b.rumbler.State() }

// NotifyRumbleConsumed advances the rumble pattern by one phase slot.
func (b *Bridge) NotifyRumbleConsumed() { b.rumbler.Poll() }

// Close tears down the virtual device and the USB/IP listener.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.teardownLocked()
}

// noopRawLogger discards raw packet traffic; callers that want a hex dump
// of the USB/IP stream supply an internallog.NewRaw(w) instead.
type noopRawLogger struct{}

func (noopRawLogger) Log(bool, []byte) {}

var _ internallog.RawLogger = noopRawLogger{}
var _ bridge.Bridge = (*Bridge)(nil)
