package xbox360

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"syscall"

	internallog "github.com/sticks-io/gcfeeder/internal/log"
	"github.com/sticks-io/gcfeeder/internal/usb"
	"github.com/sticks-io/gcfeeder/internal/usbip"
	"github.com/sticks-io/gcfeeder/internal/virtualbus"
)

// USB standard request/descriptor constants needed to answer EP0 control
// transfers generically from a usb.Descriptor.
const (
	usbReqSetAddress       = 0x05
	usbReqGetDescriptor    = 0x06
	usbReqSetConfiguration = 0x09
	usbReqGetConfiguration = 0x08

	usbReqTypeStandardToDevice    = 0x00
	usbReqTypeStandardToInterface = 0x81
	usbReqTypeStandardFromDevice  = 0x80

	usbConfigValueDefault   = 1
	usbConfigAttrBusPowered = 0x80
	usbConfigMaxPower100mA  = 50 // 2mA units

	urbHdrSize          = 0x30
	urbHdrOffsetCommand = 0x00
	urbHdrOffsetSeqnum  = 0x04
	urbHdrOffsetDevid   = 0x08
	urbHdrOffsetDir     = 0x0c
	urbHdrOffsetEp      = 0x10
	urbHdrOffsetUnlink  = 0x14
	urbHdrOffsetFlags   = 0x14
	urbHdrOffsetLength  = 0x18
	urbHdrOffsetSetup   = 0x28

	headerPeekSize = 8
	busIDSize      = 32
	errConnReset   = -104 // -ECONNRESET
)

// server is a single-device USB/IP listener: exactly one virtual pad, owned
// by one bridge instance, for the lifetime of that bridge. It deliberately
// skips the multi-bus registry and idle-bus cleanup machinery a
// general-purpose USB/IP host would need, since a gcfeeder bridge never
// shares a bus with another device.
type server struct {
	logger    *slog.Logger
	rawLogger internallog.RawLogger
	bus       *virtualbus.VirtualBus
	dev       *device

	ln     net.Listener
	ready  chan struct{}
	closed chan struct{}
}

func newServer(addr string, bus *virtualbus.VirtualBus, dev *device, logger *slog.Logger, rawLogger internallog.RawLogger) (*server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("xbox360: listen: %w", err)
	}
	s := &server{
		logger:    logger,
		rawLogger: rawLogger,
		bus:       bus,
		dev:       dev,
		ln:        ln,
		ready:     make(chan struct{}),
		closed:    make(chan struct{}),
	}
	close(s.ready)
	go s.serve()
	return s, nil
}

func (s *server) Addr() string { return s.ln.Addr().String() }

func (s *server) Close() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return s.ln.Close()
}

func (s *server) serve() {
	for {
		c, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if isClientDisconnect(err) {
				continue
			}
			s.logger.Error("xbox360: accept", "error", err)
			continue
		}
		if tc, ok := c.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}
		go s.handleConn(c)
	}
}

func (s *server) handleConn(conn net.Conn) {
	defer conn.Close()
	conn = &logConn{Conn: conn, s: s}

	var hdr [headerPeekSize]byte
	if err := usbip.ReadExactly(conn, hdr[:]); err != nil {
		return
	}
	ver := binary.BigEndian.Uint16(hdr[0:2])
	code := binary.BigEndian.Uint16(hdr[2:4])
	if ver != usbip.Version {
		return
	}

	switch code {
	case usbip.OpReqDevlist:
		_ = s.handleDevList(conn)
	case usbip.OpReqImport:
		if err := s.handleImport(conn); err == nil {
			s.handleUrbStream(conn)
		}
	}
}

func (s *server) handleDevList(conn net.Conn) error {
	var buf bytes.Buffer
	rep := usbip.MgmtHeader{Version: usbip.Version, Command: usbip.OpRepDevlist}
	_ = rep.Write(&buf)
	metas := s.bus.GetAllDeviceMetas()
	_ = (&usbip.DevListReplyHeader{NDevices: uint32(len(metas))}).Write(&buf)
	for _, m := range metas {
		exp := s.exportedDevice(m)
		_ = exp.WriteDevlist(&buf)
	}
	_, err := conn.Write(buf.Bytes())
	return err
}

func (s *server) handleImport(conn net.Conn) error {
	var rest [busIDSize]byte
	if err := usbip.ReadExactly(conn, rest[:]); err != nil {
		return err
	}
	var buf bytes.Buffer
	rep := usbip.MgmtHeader{Version: usbip.Version, Command: usbip.OpRepImport}
	_ = rep.Write(&buf)
	metas := s.bus.GetAllDeviceMetas()
	if len(metas) == 0 {
		return fmt.Errorf("xbox360: no device to import")
	}
	exp := s.exportedDevice(metas[0])
	_ = exp.WriteImport(&buf)
	_, err := conn.Write(buf.Bytes())
	return err
}

func (s *server) exportedDevice(m virtualbus.DeviceMeta) usbip.ExportedDevice {
	desc := m.Dev.GetDescriptor()
	exp := usbip.ExportedDevice{
		ExportMeta:          m.Meta,
		Speed:               desc.Device.Speed,
		IDVendor:            desc.Device.IDVendor,
		IDProduct:           desc.Device.IDProduct,
		BcdDevice:           desc.Device.BcdDevice,
		BDeviceClass:        desc.Device.BDeviceClass,
		BDeviceSubClass:     desc.Device.BDeviceSubClass,
		BDeviceProtocol:     desc.Device.BDeviceProtocol,
		BConfigurationValue: usbConfigValueDefault,
		BNumConfigurations:  desc.Device.BNumConfigurations,
		BNumInterfaces:      uint8(len(desc.Interfaces)),
	}
	for _, iface := range desc.Interfaces {
		exp.Interfaces = append(exp.Interfaces, usbip.InterfaceDesc{
			Class:    iface.Descriptor.BInterfaceClass,
			SubClass: iface.Descriptor.BInterfaceSubClass,
			Protocol: iface.Descriptor.BInterfaceProtocol,
		})
	}
	return exp
}

func (s *server) handleUrbStream(conn net.Conn) {
	ctx := s.bus.GetDeviceContext(s.dev)
	if ctx == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closed:
			return
		default:
		}

		var hdr [urbHdrSize]byte
		if err := usbip.ReadExactly(conn, hdr[:]); err != nil {
			return
		}
		cmd := binary.BigEndian.Uint32(hdr[urbHdrOffsetCommand : urbHdrOffsetCommand+4])
		seq := binary.BigEndian.Uint32(hdr[urbHdrOffsetSeqnum : urbHdrOffsetSeqnum+4])
		dir := binary.BigEndian.Uint32(hdr[urbHdrOffsetDir : urbHdrOffsetDir+4])
		ep := binary.BigEndian.Uint32(hdr[urbHdrOffsetEp : urbHdrOffsetEp+4])

		if cmd == usbip.CmdUnlinkCode {
			ret := usbip.RetUnlink{Basic: usbip.HeaderBasic{Command: usbip.RetUnlinkCode, Seqnum: seq}, Status: errConnReset}
			_ = ret.Write(conn)
			continue
		}
		if cmd != usbip.CmdSubmitCode {
			return
		}

		xferLen := binary.BigEndian.Uint32(hdr[urbHdrOffsetLength : urbHdrOffsetLength+4])
		setup := hdr[urbHdrOffsetSetup:urbHdrSize]

		var outPayload []byte
		if dir == usbip.DirOut && xferLen > 0 {
			outPayload = make([]byte, xferLen)
			if err := usbip.ReadExactly(conn, outPayload); err != nil {
				return
			}
		}

		respData := s.processSubmit(ep, dir, setup, outPayload)
		actualLen := uint32(len(respData))
		if dir == usbip.DirOut {
			actualLen = uint32(len(outPayload))
		}

		ret := usbip.RetSubmit{
			Basic:        usbip.HeaderBasic{Command: usbip.RetSubmitCode, Seqnum: seq},
			ActualLength: actualLen,
		}
		var out bytes.Buffer
		if err := ret.Write(&out); err != nil {
			return
		}
		if _, err := conn.Write(out.Bytes()); err != nil {
			return
		}
		if len(respData) > 0 {
			if _, err := conn.Write(respData); err != nil {
				return
			}
		}
	}
}

func (s *server) processSubmit(ep uint32, dir uint32, setup []byte, out []byte) []byte {
	if ep != 0 {
		return s.dev.HandleTransfer(ep, dir, out)
	}
	if len(setup) != 8 {
		return nil
	}
	bm := setup[0]
	breq := setup[1]
	wValue := binary.LittleEndian.Uint16(setup[2:4])
	wIndex := binary.LittleEndian.Uint16(setup[4:6])
	wLength := binary.LittleEndian.Uint16(setup[6:8])

	switch {
	case breq == usbReqSetAddress && bm == usbReqTypeStandardToDevice:
		return nil
	case breq == usbReqSetConfiguration && bm == usbReqTypeStandardToDevice:
		return nil
	case breq == usbReqGetConfiguration && bm == usbReqTypeStandardFromDevice:
		return []byte{0x01}
	}

	desc := s.dev.GetDescriptor()

	if breq == usbReqGetDescriptor && bm == usbReqTypeStandardFromDevice {
		dtype := uint8(wValue >> 8)
		dindex := uint8(wValue & 0xff)
		var data []byte
		switch dtype {
		case usb.DeviceDescType:
			data = desc.Bytes()
		case usb.ConfigDescType:
			data = s.buildConfigDescriptor(desc)
		case 0x03: // string
			if str, ok := desc.Strings[dindex]; ok {
				data = usb.EncodeStringDescriptor(str)
			}
		}
		return truncate(data, wLength)
	}

	if breq == usbReqGetDescriptor && bm == usbReqTypeStandardToInterface {
		iface := uint8(wIndex & 0xff)
		if int(iface) >= len(desc.Interfaces) {
			return nil
		}
		var data []byte
		for _, cd := range desc.Interfaces[iface].ClassDescriptors {
			if cd.DescriptorType == uint8(wValue>>8) {
				data = cd.Bytes()
				break
			}
		}
		return truncate(data, wLength)
	}

	return nil
}

func truncate(data []byte, wLength uint16) []byte {
	if len(data) == 0 {
		return nil
	}
	if int(wLength) < len(data) {
		return data[:wLength]
	}
	return data
}

func (s *server) buildConfigDescriptor(desc *usb.Descriptor) []byte {
	var b bytes.Buffer
	h := usb.ConfigHeader{
		BNumInterfaces:      uint8(len(desc.Interfaces)),
		BConfigurationValue: usbConfigValueDefault,
		BMAttributes:        usbConfigAttrBusPowered,
		BMaxPower:           usbConfigMaxPower100mA,
	}
	h.Write(&b)
	for _, iface := range desc.Interfaces {
		iface.Descriptor.Write(&b)
		for _, cd := range iface.ClassDescriptors {
			b.Write(cd.Bytes())
		}
		for _, ep := range iface.Endpoints {
			ep.Write(&b)
		}
	}
	data := b.Bytes()
	binary.LittleEndian.PutUint16(data[2:4], uint16(len(data)))
	return data
}

type logConn struct {
	net.Conn
	s *server
}

func (lc *logConn) Read(p []byte) (int, error) {
	n, err := lc.Conn.Read(p)
	if n > 0 && lc.s.rawLogger != nil {
		lc.s.rawLogger.Log(true, p[:n])
	}
	return n, err
}

func (lc *logConn) Write(p []byte) (int, error) {
	n, err := lc.Conn.Write(p)
	if n > 0 && lc.s.rawLogger != nil {
		lc.s.rawLogger.Log(false, p[:n])
	}
	return n, err
}

// isClientDisconnect reports whether err is an ordinary client hangup
// rather than a real transport failure worth logging loudly.
func isClientDisconnect(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errno, ok := opErr.Err.(syscall.Errno); ok {
			if errno == syscall.ECONNRESET || errno == syscall.EPIPE {
				return true
			}
		}
	}
	e := strings.ToLower(err.Error())
	return strings.Contains(e, "connection reset by peer") || strings.Contains(e, "forcibly closed")
}
