// Package usb contains the minimal virtual-device contract and USB
// descriptor builders shared by gcfeeder's bridge backends. It has no
// knowledge of GameCube input or any particular pad layout; it only knows
// how to describe and transfer bytes the way a real USB device would.
package usb

import (
	"bytes"
	"encoding/binary"
)

// Device is the minimal interface a virtual device must implement. It only
// handles non-EP0 (interrupt) transfers; EP0 control transfers are served
// generically from the Descriptor by the USB/IP server.
type Device interface {
	// HandleTransfer processes a non-EP0 transfer. ep is the endpoint
	// number (without direction), dir is DirIn or DirOut. For IN transfers
	// the return value is the payload to send; for OUT, the device
	// consumes out and returns nil.
	HandleTransfer(ep uint32, dir uint32, out []byte) []byte
	GetDescriptor() *Descriptor
}

// ControlDevice is implemented by devices that need to answer
// non-standard (class/vendor) EP0 control requests, such as a rumble
// "set output report" sent via SET_REPORT. handled is false when the
// device does not answer the request. The xbox360 bridge's USB/IP server
// does not call HandleControl; it answers EP0 only from the Descriptor.
type ControlDevice interface {
	HandleControl(bmRequestType, bRequest uint8, wValue, wIndex, wLength uint16, out []byte) (resp []byte, handled bool)
}

// USB descriptor type constants.
const (
	DeviceDescType    = 0x01
	ConfigDescType    = 0x02
	InterfaceDescType = 0x04
	EndpointDescType  = 0x05
	HIDDescType       = 0x21
	ReportDescType    = 0x22
)

// Descriptor lengths in bytes (fixed values from the USB spec).
const (
	DeviceDescLen    = 18
	ConfigDescLen    = 9
	InterfaceDescLen = 9
	EndpointDescLen  = 7
	HIDDescLen       = 9
)

// Descriptor holds all static descriptor/config data for a device.
type Descriptor struct {
	Device     DeviceDescriptor
	Interfaces []InterfaceConfig
	Strings    map[uint8]string
}

// InterfaceConfig holds all descriptors for a single interface.
type InterfaceConfig struct {
	Descriptor       InterfaceDescriptor
	Endpoints        []EndpointDescriptor
	HID              HIDReportBuilder // optional HID class + report descriptor source
	ClassDescriptors []ClassDescriptor
}

// HIDReportBuilder produces the HID (0x21) and report (0x22) descriptor
// bytes for an interface that speaks the HID class.
type HIDReportBuilder interface {
	DescriptorBytes() ([]byte, error)
	ReportBytes() ([]byte, error)
}

// ClassDescriptor is an arbitrary vendor/class descriptor returned verbatim
// for GET_DESCRIPTOR requests matching DescriptorType.
type ClassDescriptor struct {
	DescriptorType uint8
	Data           []byte
}

func (c ClassDescriptor) Bytes() []byte { return c.Data }

// EncodeStringDescriptor converts a UTF-8 string into a USB string
// descriptor (bLength, bDescriptorType=0x03, UTF-16LE payload).
func EncodeStringDescriptor(s string) []byte {
	runes := []rune(s)
	buf := make([]byte, 2+len(runes)*2)
	buf[0] = uint8(len(buf))
	buf[1] = 0x03
	for i, r := range runes {
		buf[2+i*2] = uint8(r)
		buf[2+i*2+1] = uint8(r >> 8)
	}
	return buf
}

// DeviceDescriptor is the standard 18-byte USB device descriptor, minus the
// bLength/bDescriptorType fields which Bytes() fills in.
type DeviceDescriptor struct {
	BcdUSB             uint16
	BDeviceClass       uint8
	BDeviceSubClass    uint8
	BDeviceProtocol    uint8
	BMaxPacketSize0    uint8
	IDVendor           uint16
	IDProduct          uint16
	BcdDevice          uint16
	IManufacturer      uint8
	IProduct           uint8
	ISerialNumber      uint8
	BNumConfigurations uint8
	Speed              uint32 // 1=low, 2=full, 3=high, 4=super
}

// Bytes returns the binary representation of the device descriptor.
func (d Descriptor) Bytes() []byte {
	var b bytes.Buffer
	b.WriteByte(DeviceDescLen)
	b.WriteByte(DeviceDescType)
	_ = binary.Write(&b, binary.LittleEndian, d.Device.BcdUSB)
	b.WriteByte(d.Device.BDeviceClass)
	b.WriteByte(d.Device.BDeviceSubClass)
	b.WriteByte(d.Device.BDeviceProtocol)
	b.WriteByte(d.Device.BMaxPacketSize0)
	_ = binary.Write(&b, binary.LittleEndian, d.Device.IDVendor)
	_ = binary.Write(&b, binary.LittleEndian, d.Device.IDProduct)
	_ = binary.Write(&b, binary.LittleEndian, d.Device.BcdDevice)
	b.WriteByte(d.Device.IManufacturer)
	b.WriteByte(d.Device.IProduct)
	b.WriteByte(d.Device.ISerialNumber)
	b.WriteByte(d.Device.BNumConfigurations)
	return b.Bytes()
}

// ConfigHeader is the 9-byte USB configuration descriptor header.
type ConfigHeader struct {
	WTotalLength        uint16 // patched in after the full descriptor is built
	BNumInterfaces      uint8
	BConfigurationValue uint8
	IConfiguration      uint8
	BMAttributes        uint8
	BMaxPower           uint8
}

func (h ConfigHeader) Write(b *bytes.Buffer) {
	b.WriteByte(ConfigDescLen)
	b.WriteByte(ConfigDescType)
	_ = binary.Write(b, binary.LittleEndian, h.WTotalLength)
	b.WriteByte(h.BNumInterfaces)
	b.WriteByte(h.BConfigurationValue)
	b.WriteByte(h.IConfiguration)
	b.WriteByte(h.BMAttributes)
	b.WriteByte(h.BMaxPower)
}

// InterfaceDescriptor is the 9-byte descriptor for one interface altsetting.
type InterfaceDescriptor struct {
	BInterfaceNumber   uint8
	BAlternateSetting  uint8
	BNumEndpoints      uint8
	BInterfaceClass    uint8
	BInterfaceSubClass uint8
	BInterfaceProtocol uint8
	IInterface         uint8
}

func (i InterfaceDescriptor) Write(b *bytes.Buffer) {
	b.WriteByte(InterfaceDescLen)
	b.WriteByte(InterfaceDescType)
	b.WriteByte(i.BInterfaceNumber)
	b.WriteByte(i.BAlternateSetting)
	b.WriteByte(i.BNumEndpoints)
	b.WriteByte(i.BInterfaceClass)
	b.WriteByte(i.BInterfaceSubClass)
	b.WriteByte(i.BInterfaceProtocol)
	b.WriteByte(i.IInterface)
}

// EndpointDescriptor is the 7-byte descriptor for one endpoint.
type EndpointDescriptor struct {
	BEndpointAddress uint8
	BMAttributes     uint8
	WMaxPacketSize   uint16
	BInterval        uint8
}

func (e EndpointDescriptor) Write(b *bytes.Buffer) {
	b.WriteByte(EndpointDescLen)
	b.WriteByte(EndpointDescType)
	b.WriteByte(e.BEndpointAddress)
	b.WriteByte(e.BMAttributes)
	_ = binary.Write(b, binary.LittleEndian, e.WMaxPacketSize)
	b.WriteByte(e.BInterval)
}
