package xbox360

import "encoding/binary"

// inputState mirrors the wired Xbox 360 controller's XInput-shaped report
// fields: a 16-bit (of a nominally 32-bit) button mask, two 8-bit triggers,
// and four signed 16-bit stick axes.
type inputState struct {
	Buttons    uint16
	LT, RT     uint8
	LX, LY     int16
	RX, RY     int16
}

// buildReport encodes the state into the 20-byte Xbox 360 wired USB input
// report.
//
//	 0: 0x00        - Report ID
//	 1: 0x14        - payload size (20 bytes)
//	 2-3: Buttons (little-endian)
//	 4: LT (0-255)
//	 5: RT (0-255)
//	 6-7:   LX (little-endian int16)
//	 8-9:   LY (little-endian int16)
//	10-11: RX (little-endian int16)
//	12-13: RY (little-endian int16)
//	14-19: reserved, zero
func (s inputState) buildReport() []byte {
	b := make([]byte, 20)
	b[0] = 0x00
	b[1] = 0x14
	binary.LittleEndian.PutUint16(b[2:4], s.Buttons)
	b[4] = s.LT
	b[5] = s.RT
	binary.LittleEndian.PutUint16(b[6:8], uint16(s.LX))
	binary.LittleEndian.PutUint16(b[8:10], uint16(s.LY))
	binary.LittleEndian.PutUint16(b[10:12], uint16(s.RX))
	binary.LittleEndian.PutUint16(b[12:14], uint16(s.RY))
	return b
}

// rumbleReport is the host->device output report carrying the two motor
// strengths. Layout: [0]=ReportID(0x00), [1]=len(0x08), [2]=reserved,
// [3]=left/large motor, [4]=right/small motor, [5:8]=reserved.
type rumbleReport struct {
	Left, Right uint8
}

// parseRumbleReport extracts motor strengths from a host output report, or
// ok=false if out isn't a rumble report this device recognizes (e.g. an LED
// command, which wired Xbox 360 controllers also accept on the same pipe).
func parseRumbleReport(out []byte) (r rumbleReport, ok bool) {
	if len(out) < 8 || out[0] != 0x00 || out[1] != 0x08 {
		return rumbleReport{}, false
	}
	return rumbleReport{Left: out[3], Right: out[4]}, true
}
