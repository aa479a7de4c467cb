// Package adapter owns the one USB session against the physical 4-port
// GameCube controller adapter: device acquisition, payload parsing, and
// rumble writing. It never talks to more than one device at a time and
// never discovers anything beyond the single documented VID/PID pair.
package adapter

import (
	"errors"
	"fmt"

	"github.com/sticks-io/gcfeeder/internal/gcinput"
)

// VendorID and ProductID identify the adapter on the USB bus.
const (
	VendorID  = 0x057E
	ProductID = 0x0337
)

// Interface0 is the single claimed interface.
const Interface0 = 0

// payloadSize is the fixed length of one input interrupt transfer.
const payloadSize = 37

// hidDescriptorByte is the expected payload[0] marker for a valid read.
const hidDescriptorByte = 0x21

var (
	// ErrNoDevice is returned when no device matches VendorID/ProductID.
	ErrNoDevice = errors.New("adapter: no matching device found")
	// ErrInvalidPayload is returned when an input read's size or header
	// does not match the documented wire format.
	ErrInvalidPayload = errors.New("adapter: invalid input payload")
	// ErrTimeout is returned when a USB operation exceeds its 16ms budget.
	// Timeouts are recoverable: the poller simply continues.
	ErrTimeout = errors.New("adapter: usb operation timed out")
)

// Transport is the USB I/O surface a Session needs. Production code backs
// it with gousb (see gousb_transport.go); tests back it with an in-memory
// fake so the protocol logic is exercised without real hardware.
type Transport interface {
	// ControlWrite issues a control transfer to the device.
	ControlWrite(reqType, request uint8, value, index uint16, data []byte) error
	// Read performs one interrupt read from the adapter's IN endpoint.
	Read(buf []byte) (int, error)
	// Write performs one interrupt write to the adapter's OUT endpoint.
	Write(data []byte) (int, error)
	// Close releases the underlying device handle.
	Close() error
}

// Session is one opened, initialized adapter connection.
type Session struct {
	t Transport
}

// Open runs the adapter's on-connect quirk sequence over an already-claimed
// transport and returns a ready Session: a control write (0x21, 11, 0x0001)
// followed by a single interrupt byte 0x13 to the OUT endpoint.
func Open(t Transport) (*Session, error) {
	if err := t.ControlWrite(0x21, 11, 0x0001, 0, nil); err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("adapter: init control write: %w", err)
	}
	if _, err := t.Write([]byte{0x13}); err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("adapter: init interrupt write: %w", err)
	}
	return &Session{t: t}, nil
}

// OpenUSB opens the first matching adapter found on the USB bus via gousb
// and runs the init sequence.
func OpenUSB() (*Session, error) {
	t, err := openGousbTransport()
	if err != nil {
		return nil, err
	}
	return Open(t)
}

// ReadInputs performs one interrupt read and parses all four ports. A port
// slot is nil when that physical controller is unplugged.
func (s *Session) ReadInputs() ([gcinput.NumPorts]*gcinput.Input, error) {
	var out [gcinput.NumPorts]*gcinput.Input

	var buf [payloadSize]byte
	n, err := s.t.Read(buf[:])
	if err != nil {
		return out, fmt.Errorf("adapter: read inputs: %w", err)
	}
	if n != payloadSize || buf[0] != hidDescriptorByte {
		return out, ErrInvalidPayload
	}

	for port := 0; port < gcinput.NumPorts; port++ {
		off := 1 + 9*port
		if buf[off]>>4 == 0 {
			continue
		}
		b1, b2 := buf[off+1], buf[off+2]
		out[port] = &gcinput.Input{
			Buttons: gcinput.Buttons{
				A:     b1&0x01 != 0,
				B:     b1&0x02 != 0,
				X:     b1&0x04 != 0,
				Y:     b1&0x08 != 0,
				Left:  b1&0x10 != 0,
				Right: b1&0x20 != 0,
				Down:  b1&0x40 != 0,
				Up:    b1&0x80 != 0,
				Start: b2&0x01 != 0,
				Z:     b2&0x02 != 0,
				R:     b2&0x04 != 0,
				L:     b2&0x08 != 0,
			},
			MainStick:    gcinput.Stick{X: buf[off+3], Y: buf[off+4]},
			CStick:       gcinput.Stick{X: buf[off+5], Y: buf[off+6]},
			LeftTrigger:  buf[off+7],
			RightTrigger: buf[off+8],
		}
	}
	return out, nil
}

// WriteRumble sends one 5-byte rumble packet reflecting all four ports'
// desired state in a single transfer.
func (s *Session) WriteRumble(states [gcinput.NumPorts]gcinput.Rumble) error {
	buf := [5]byte{0x11}
	for i, st := range states {
		buf[1+i] = st.Byte()
	}
	if _, err := s.t.Write(buf[:]); err != nil {
		return fmt.Errorf("adapter: write rumble: %w", err)
	}
	return nil
}

// ResetRumble silences all four motors. Errors are the caller's to decide
// whether to ignore; Close always treats this as best-effort.
func (s *Session) ResetRumble() error {
	return s.WriteRumble([gcinput.NumPorts]gcinput.Rumble{})
}

// Close silences the motors best-effort and releases the transport.
func (s *Session) Close() error {
	_ = s.ResetRumble()
	return s.t.Close()
}
