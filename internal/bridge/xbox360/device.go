// Package xbox360 implements a virtual Xbox 360 wired-USB controller,
// served over USB/IP so the host's existing xpad/xinput driver stack
// attaches to it exactly as it would a real pad.
package xbox360

import (
	"sync"
	"sync/atomic"

	"github.com/sticks-io/gcfeeder/internal/usb"
	"github.com/sticks-io/gcfeeder/internal/usbip"
)

// device is the USB/IP-facing half of the bridge: it answers descriptor and
// interrupt transfers and holds the latest state to report on the next IN
// poll from the host.
type device struct {
	tick       uint64
	state      inputState
	stateMu    sync.Mutex
	rumbleFunc func(rumbleReport)
	descriptor usb.Descriptor
}

func newDevice() *device {
	return &device{descriptor: defaultDescriptor}
}

// setRumbleCallback registers the callback invoked whenever the host sends
// a rumble output report.
func (d *device) setRumbleCallback(f func(rumbleReport)) {
	d.rumbleFunc = f
}

// update replaces the state reported on the next input poll.
func (d *device) update(s inputState) {
	d.stateMu.Lock()
	d.state = s
	d.stateMu.Unlock()
}

// HandleTransfer implements usb.Device for the two interrupt endpoints the
// wired Xbox 360 controller uses: EP1 IN for input reports, EP1 OUT for
// rumble/LED output reports.
func (d *device) HandleTransfer(ep uint32, dir uint32, out []byte) []byte {
	if dir == usbip.DirIn {
		if ep != 1 {
			return nil
		}
		atomic.AddUint64(&d.tick, 1)
		d.stateMu.Lock()
		st := d.state
		d.stateMu.Unlock()
		return st.buildReport()
	}
	if dir == usbip.DirOut && ep == 1 {
		if r, ok := parseRumbleReport(out); ok && d.rumbleFunc != nil {
			d.rumbleFunc(r)
		}
	}
	return nil
}

func (d *device) GetDescriptor() *usb.Descriptor {
	return &d.descriptor
}

// defaultDescriptor reproduces a genuine wired Xbox 360 controller's
// descriptor tree (VID/PID 0x045e/0x028e, vendor class ff/5d) so host
// drivers recognize it without extra udev rules.
var defaultDescriptor = usb.Descriptor{
	Device: usb.DeviceDescriptor{
		BcdUSB:             0x0200,
		BDeviceClass:       0xff,
		BDeviceSubClass:    0xff,
		BDeviceProtocol:    0xff,
		BMaxPacketSize0:    0x08,
		IDVendor:           0x045e,
		IDProduct:          0x028e,
		BcdDevice:          0x0114,
		IManufacturer:      0x01,
		IProduct:           0x02,
		ISerialNumber:      0x03,
		BNumConfigurations: 0x01,
		Speed:              2, // full speed
	},
	Interfaces: []usb.InterfaceConfig{
		{ // interface 0: ff/5d/01, input + output interrupt endpoints
			Descriptor: usb.InterfaceDescriptor{
				BInterfaceNumber:   0x00,
				BAlternateSetting:  0x00,
				BNumEndpoints:      0x02,
				BInterfaceClass:    0xff,
				BInterfaceSubClass: 0x5d,
				BInterfaceProtocol: 0x01,
				IInterface:         0x00,
			},
			ClassDescriptors: []usb.ClassDescriptor{
				{DescriptorType: 0x21, Data: []byte{0x00, 0x01, 0x01, 0x25, 0x81, 0x14, 0x00, 0x00, 0x00, 0x00, 0x13, 0x01, 0x08, 0x00, 0x00}},
			},
			Endpoints: []usb.EndpointDescriptor{
				{BEndpointAddress: 0x81, BMAttributes: 0x03, WMaxPacketSize: 0x0020, BInterval: 0x04},
				{BEndpointAddress: 0x01, BMAttributes: 0x03, WMaxPacketSize: 0x0020, BInterval: 0x08},
			},
		},
		{ // interface 1: ff/5d/03, headset passthrough endpoints (unused, present for driver match)
			Descriptor: usb.InterfaceDescriptor{
				BInterfaceNumber:   0x01,
				BAlternateSetting:  0x00,
				BNumEndpoints:      0x04,
				BInterfaceClass:    0xff,
				BInterfaceSubClass: 0x5d,
				BInterfaceProtocol: 0x03,
				IInterface:         0x00,
			},
			ClassDescriptors: []usb.ClassDescriptor{
				{DescriptorType: 0x21, Data: []byte{0x00, 0x01, 0x01, 0x01, 0x82, 0x40, 0x01, 0x02, 0x20, 0x16, 0x83, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x16, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}},
			},
			Endpoints: []usb.EndpointDescriptor{
				{BEndpointAddress: 0x82, BMAttributes: 0x03, WMaxPacketSize: 0x0020, BInterval: 0x02},
				{BEndpointAddress: 0x02, BMAttributes: 0x03, WMaxPacketSize: 0x0020, BInterval: 0x04},
				{BEndpointAddress: 0x83, BMAttributes: 0x03, WMaxPacketSize: 0x0020, BInterval: 0x40},
				{BEndpointAddress: 0x03, BMAttributes: 0x03, WMaxPacketSize: 0x0020, BInterval: 0x10},
			},
		},
		{ // interface 2: ff/5d/02, one endpoint (unused)
			Descriptor: usb.InterfaceDescriptor{
				BInterfaceNumber:   0x02,
				BAlternateSetting:  0x00,
				BNumEndpoints:      0x01,
				BInterfaceClass:    0xff,
				BInterfaceSubClass: 0x5d,
				BInterfaceProtocol: 0x02,
				IInterface:         0x00,
			},
			ClassDescriptors: []usb.ClassDescriptor{
				{DescriptorType: 0x21, Data: []byte{0x00, 0x01, 0x01, 0x22, 0x84, 0x07, 0x00}},
			},
			Endpoints: []usb.EndpointDescriptor{
				{BEndpointAddress: 0x84, BMAttributes: 0x03, WMaxPacketSize: 0x0020, BInterval: 0x10},
			},
		},
		{ // interface 3: ff/fd/13, vendor-specific, no endpoints
			Descriptor: usb.InterfaceDescriptor{
				BInterfaceNumber:   0x03,
				BAlternateSetting:  0x00,
				BNumEndpoints:      0x00,
				BInterfaceClass:    0xff,
				BInterfaceSubClass: 0xfd,
				BInterfaceProtocol: 0x13,
				IInterface:         0x04,
			},
			ClassDescriptors: []usb.ClassDescriptor{
				{DescriptorType: 0x41, Data: []byte{0x00, 0x01, 0x01, 0x03}},
			},
		},
	},
	Strings: map[uint8]string{
		0: string(rune(0x0409)), // LangID: en-US (0x0409), one UTF-16 unit
		1: "©Microsoft Corporation",
		2: "gcfeeder virtual pad",
		3: "296013F",
	},
}
