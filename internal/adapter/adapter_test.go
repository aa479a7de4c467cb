package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sticks-io/gcfeeder/internal/gcinput"
)

// fakeTransport is an in-memory stand-in for the physical USB adapter,
// letting the protocol parsing and rumble-write logic be exercised without
// real hardware.
type fakeTransport struct {
	controlWrites [][]byte
	reads         [][]byte
	readIdx       int
	writes        [][]byte
	closed        bool
}

func (f *fakeTransport) ControlWrite(reqType, request uint8, value, index uint16, data []byte) error {
	f.controlWrites = append(f.controlWrites, append([]byte{reqType, request}, data...))
	return nil
}

func (f *fakeTransport) Read(buf []byte) (int, error) {
	if f.readIdx >= len(f.reads) {
		return 0, assertErr("no more queued reads")
	}
	n := copy(buf, f.reads[f.readIdx])
	f.readIdx++
	return n, nil
}

func (f *fakeTransport) Write(data []byte) (int, error) {
	cp := make([]byte, len(data))
	copy(cp, data)
	f.writes = append(f.writes, cp)
	return len(data), nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }
func assertErr(s string) error    { return simpleErr(s) }

func buildPayload(ports [4]bool) []byte {
	buf := make([]byte, payloadSize)
	buf[0] = hidDescriptorByte
	for p := 0; p < 4; p++ {
		off := 1 + 9*p
		if ports[p] {
			buf[off] = 0x10 // wired, nonzero high nibble
			buf[off+1] = 0x01 | 0x08 // A + Y
			buf[off+2] = 0x01        // Start
			buf[off+3] = 0x90        // main_x
			buf[off+4] = 0x70        // main_y
			buf[off+5] = 0x80        // c_x
			buf[off+6] = 0x80        // c_y
			buf[off+7] = 0x20        // trigger_l
			buf[off+8] = 0x00        // trigger_r
		}
	}
	return buf
}

func TestOpenIssuesQuirkSequence(t *testing.T) {
	ft := &fakeTransport{}
	s, err := Open(ft)
	require.NoError(t, err)
	require.NotNil(t, s)

	require.Len(t, ft.controlWrites, 1)
	require.Len(t, ft.writes, 1)
	assert.Equal(t, []byte{0x13}, ft.writes[0])
}

func TestReadInputsParsesPluggedAndUnplugged(t *testing.T) {
	ft := &fakeTransport{reads: [][]byte{buildPayload([4]bool{true, false, true, false})}}
	s, err := Open(ft)
	require.NoError(t, err)

	inputs, err := s.ReadInputs()
	require.NoError(t, err)

	require.NotNil(t, inputs[0])
	assert.Nil(t, inputs[1])
	require.NotNil(t, inputs[2])
	assert.Nil(t, inputs[3])

	in0 := inputs[0]
	assert.True(t, in0.Buttons.A)
	assert.True(t, in0.Buttons.Y)
	assert.False(t, in0.Buttons.B)
	assert.True(t, in0.Buttons.Start)
	assert.Equal(t, uint8(0x90), in0.MainStick.X)
	assert.Equal(t, uint8(0x70), in0.MainStick.Y)
	assert.Equal(t, uint8(0x20), in0.LeftTrigger)
}

func TestReadInputsRejectsWrongHeader(t *testing.T) {
	bad := make([]byte, payloadSize)
	bad[0] = 0x00
	ft := &fakeTransport{reads: [][]byte{bad}}
	s, err := Open(ft)
	require.NoError(t, err)

	_, err = s.ReadInputs()
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestReadInputsRejectsWrongSize(t *testing.T) {
	ft := &fakeTransport{reads: [][]byte{{0x21, 0x00}}}
	s, err := Open(ft)
	require.NoError(t, err)

	_, err = s.ReadInputs()
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestWriteRumbleEncodesAllFourPorts(t *testing.T) {
	ft := &fakeTransport{}
	s, err := Open(ft)
	require.NoError(t, err)

	err = s.WriteRumble([gcinput.NumPorts]gcinput.Rumble{gcinput.RumbleOn, gcinput.RumbleOff, gcinput.RumbleOn, gcinput.RumbleOff})
	require.NoError(t, err)

	last := ft.writes[len(ft.writes)-1]
	assert.Equal(t, []byte{0x11, 1, 0, 1, 0}, last)
}

func TestCloseResetsRumble(t *testing.T) {
	ft := &fakeTransport{}
	s, err := Open(ft)
	require.NoError(t, err)

	err = s.WriteRumble([gcinput.NumPorts]gcinput.Rumble{gcinput.RumbleOn, gcinput.RumbleOn, gcinput.RumbleOn, gcinput.RumbleOn})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.True(t, ft.closed)

	last := ft.writes[len(ft.writes)-1]
	assert.Equal(t, []byte{0x11, 0, 0, 0, 0}, last)
}
