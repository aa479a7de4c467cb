// Package uinput implements a Bridge backend that presents a GameCube port
// as a native Linux joypad through /dev/uinput, needing no USB/IP client
// and no ViGEm-equivalent host service. The device layout and ioctl
// sequence follow the kernel's uinput uapi (struct uinput_user_dev, the
// UI_SET_*BIT/UI_DEV_CREATE/UI_DEV_DESTROY ioctls), the same event-table
// shape other_examples/linux-input-uapi.go documents for evdev.
package uinput

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/sticks-io/gcfeeder/internal/bridge"
	"github.com/sticks-io/gcfeeder/internal/gcinput"
)

// Kernel uinput ioctl requests (linux/uinput.h). UI_SET_EVBIT and friends
// are _IOW('U', n, int); UI_DEV_CREATE/UI_DEV_DESTROY are bare _IO('U', n).
const (
	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565
	uiSetAbsBit  = 0x40045567
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502
)

// Linux input event types/codes (linux/input-event-codes.h) this backend
// needs. Only the subset a GameCube pad's twelve buttons, two sticks and
// two triggers require.
const (
	evSyn = 0x00
	evKey = 0x01
	evAbs = 0x03

	synReport = 0

	btnSouth = 0x130 // A
	btnEast  = 0x131 // B
	btnNorth = 0x133 // Y
	btnWest  = 0x134 // X
	btnTL    = 0x136 // L
	btnTR    = 0x137 // R
	btnTL2   = 0x138 // Z (second left shoulder slot)
	btnStart = 0x13b

	btnDpadUp    = 0x220
	btnDpadDown  = 0x221
	btnDpadLeft  = 0x222
	btnDpadRight = 0x223

	absX  = 0x00 // main stick X
	absY  = 0x01 // main stick Y
	absZ  = 0x02 // left trigger
	absRX = 0x03 // c stick X
	absRY = 0x04 // c stick Y
	absRZ = 0x05 // right trigger

	absCnt = 64

	uinputMaxNameSize = 80
)

// Config selects the trigger-combination mode; uinput has no notion of
// the ViGEm trigger-mode profile distinction beyond how the analog/digital
// byte is derived, which bridge.PackTrigger already implements generically.
type Config struct {
	TriggerMode bridge.TriggerMode
}

// Bridge presents one GameCube port as a /dev/uinput joypad.
//
// Rumble is not wired for this backend: the original implementation this
// was grounded on (original_source's uinput.rs) never implements force
// feedback for uinput either, reporting a constant Rumble::Off and a
// no-op notify. A real implementation would need the uinput FF
// upload/erase ioctl handshake (UI_BEGIN_FF_UPLOAD/UI_END_FF_UPLOAD), which
// has no reference in this pack to ground against; see DESIGN.md.
type Bridge struct {
	cfg Config
	f   *os.File
}

// New creates and registers the virtual device with the kernel. The device
// persists for the lifetime of the Bridge; Feed with a nil Input does not
// tear it down (uinput has no concept of hot-unplug the way a USB/IP
// virtual bus does), it simply stops updating axis/button state.
func New(cfg Config) (*Bridge, error) {
	f, err := os.OpenFile("/dev/uinput", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("uinput: open /dev/uinput: %w", err)
	}

	b := &Bridge{cfg: cfg, f: f}
	if err := b.setup(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return b, nil
}

func ioctlInt(fd uintptr, req uint, val int) error {
	return unix.IoctlSetInt(int(fd), req, val)
}

func (b *Bridge) setup() error {
	fd := b.f.Fd()

	if err := ioctlInt(fd, uiSetEvBit, evKey); err != nil {
		return fmt.Errorf("uinput: set EV_KEY: %w", err)
	}
	if err := ioctlInt(fd, uiSetEvBit, evAbs); err != nil {
		return fmt.Errorf("uinput: set EV_ABS: %w", err)
	}

	keys := []int{
		btnSouth, btnEast, btnNorth, btnWest,
		btnTL, btnTR, btnTL2, btnStart,
		btnDpadUp, btnDpadDown, btnDpadLeft, btnDpadRight,
	}
	for _, k := range keys {
		if err := ioctlInt(fd, uiSetKeyBit, k); err != nil {
			return fmt.Errorf("uinput: set keybit %#x: %w", k, err)
		}
	}

	axes := []int{absX, absY, absZ, absRX, absRY, absRZ}
	for _, a := range axes {
		if err := ioctlInt(fd, uiSetAbsBit, a); err != nil {
			return fmt.Errorf("uinput: set absbit %#x: %w", a, err)
		}
	}

	dev := newUserDev("gcfeeder virtual pad")
	for _, a := range axes {
		dev.AbsMax[a] = 0xFFFF
	}

	if err := binary.Write(b.f, binary.NativeEndian, &dev); err != nil {
		return fmt.Errorf("uinput: write device descriptor: %w", err)
	}

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, uiDevCreate, 0); errno != 0 {
		return fmt.Errorf("uinput: UI_DEV_CREATE: %w", errno)
	}
	return nil
}

// userDev mirrors struct uinput_user_dev. Field sizes and order must match
// the kernel layout exactly since it is written raw over the fd.
type userDev struct {
	Name        [uinputMaxNameSize]byte
	Bustype     uint16
	Vendor      uint16
	Product     uint16
	Version     uint16
	FFEffectMax uint32
	AbsMax      [absCnt]int32
	AbsMin      [absCnt]int32
	AbsFuzz     [absCnt]int32
	AbsFlat     [absCnt]int32
}

func newUserDev(name string) userDev {
	var d userDev
	copy(d.Name[:], name)
	d.Bustype = 0x06 // BUS_VIRTUAL
	d.Vendor = 0x045E
	d.Product = 0x028E
	d.Version = 1
	return d
}

// inputEvent mirrors struct input_event as written to /dev/uinput.
type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

func (b *Bridge) emit(typ, code uint16, value int32) error {
	ev := inputEvent{Type: typ, Code: code, Value: value}
	return binary.Write(b.f, binary.NativeEndian, &ev)
}

func (b *Bridge) DriverName() string { return "uinput" }

// Feed writes one event per axis/button followed by a SYN_REPORT. A nil i
// is treated as "no change this tick": the kernel and any listening
// userspace program keep the last reported state, matching how a real
// joypad behaves when its controller momentarily drops a sample.
func (b *Bridge) Feed(i gcinput.Message) error {
	if i == nil {
		return nil
	}

	events := []struct {
		code  uint16
		value int32
	}{
		{absX, int32(i.MainStick.X) << 8},
		{absY, int32(i.MainStick.Y) << 8},
		{absRX, int32(i.CStick.X) << 8},
		{absRY, int32(i.CStick.Y) << 8},
		{absZ, int32(bridge.PackTrigger(i.LeftTrigger, i.Buttons.L, b.cfg.TriggerMode))},
		{absRZ, int32(bridge.PackTrigger(i.RightTrigger, i.Buttons.R, b.cfg.TriggerMode))},
	}
	for _, e := range events {
		if err := b.emit(evAbs, e.code, e.value); err != nil {
			return fmt.Errorf("uinput: write abs event: %w", err)
		}
	}

	keys := []struct {
		code    uint16
		pressed bool
	}{
		{btnSouth, i.Buttons.A},
		{btnEast, i.Buttons.B},
		{btnWest, i.Buttons.X},
		{btnNorth, i.Buttons.Y},
		{btnTL, i.Buttons.L},
		{btnTR, i.Buttons.R},
		{btnTL2, i.Buttons.Z},
		{btnStart, i.Buttons.Start},
		{btnDpadUp, i.Buttons.Up},
		{btnDpadDown, i.Buttons.Down},
		{btnDpadLeft, i.Buttons.Left},
		{btnDpadRight, i.Buttons.Right},
	}
	for _, k := range keys {
		v := int32(0)
		if k.pressed {
			v = 1
		}
		if err := b.emit(evKey, k.code, v); err != nil {
			return fmt.Errorf("uinput: write key event: %w", err)
		}
	}

	if err := b.emit(evSyn, synReport, 0); err != nil {
		return fmt.Errorf("uinput: write syn: %w", err)
	}
	return nil
}

// RumbleState always reports Off; see the Bridge doc comment.
func (b *Bridge) RumbleState() gcinput.Rumble { return gcinput.RumbleOff }

// NotifyRumbleConsumed is a no-op; see the Bridge doc comment.
func (b *Bridge) NotifyRumbleConsumed() {}

// Close destroys the virtual device and releases the uinput fd.
func (b *Bridge) Close() error {
	fd := b.f.Fd()
	_, _, _ = unix.Syscall(unix.SYS_IOCTL, fd, uiDevDestroy, 0)
	return b.f.Close()
}

var _ bridge.Bridge = (*Bridge)(nil)
