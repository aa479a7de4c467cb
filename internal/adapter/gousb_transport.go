package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
)

// usbTimeout bounds every adapter I/O operation, per the documented 16ms
// per-operation budget: a slow or wedged adapter must not stall the poller.
const usbTimeout = 16 * time.Millisecond

// gousbTransport implements Transport against a real adapter via gousb.
type gousbTransport struct {
	ctx   *gousb.Context
	dev   *gousb.Device
	cfg   *gousb.Config
	intf  *gousb.Interface
	inEP  *gousb.InEndpoint
	outEP *gousb.OutEndpoint
}

func openGousbTransport() (Transport, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(VendorID), gousb.ID(ProductID))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("adapter: open device: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, ErrNoDevice
	}

	// gousb detaches a kernel driver owning the interface automatically
	// on claim when this is set; a platform without kernel-driver detach
	// support reports ErrorNotSupported, which is tolerated.
	if err := dev.SetAutoDetach(true); err != nil && !errors.Is(err, gousb.ErrorNotSupported) {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("adapter: set auto detach: %w", err)
	}

	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("adapter: claim config: %w", err)
	}

	intf, err := cfg.Interface(Interface0, 0)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("adapter: claim interface: %w", err)
	}

	var inEP *gousb.InEndpoint
	var outEP *gousb.OutEndpoint
	for _, epDesc := range intf.Setting.Endpoints {
		if epDesc.Direction == gousb.EndpointDirectionIn && inEP == nil {
			inEP, err = intf.InEndpoint(epDesc.Number)
			if err != nil {
				intf.Close()
				cfg.Close()
				dev.Close()
				ctx.Close()
				return nil, fmt.Errorf("adapter: open in endpoint: %w", err)
			}
		}
		if epDesc.Direction == gousb.EndpointDirectionOut && outEP == nil {
			outEP, err = intf.OutEndpoint(epDesc.Number)
			if err != nil {
				intf.Close()
				cfg.Close()
				dev.Close()
				ctx.Close()
				return nil, fmt.Errorf("adapter: open out endpoint: %w", err)
			}
		}
	}
	if inEP == nil || outEP == nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("adapter: device exposes no usable in/out endpoint pair")
	}

	return &gousbTransport{ctx: ctx, dev: dev, cfg: cfg, intf: intf, inEP: inEP, outEP: outEP}, nil
}

// withDeadline runs op against a context bounded by usbTimeout, the same
// pattern guiperry-HASHER's ReadPacket uses around gousb's *Context methods
// (context.WithTimeout + ReadContext) rather than racing a bare goroutine
// against time.After.
func withDeadline(op func(context.Context) (int, error)) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), usbTimeout)
	defer cancel()
	n, err := op(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return n, fmt.Errorf("%w: exceeded %s", ErrTimeout, usbTimeout)
		}
		return n, err
	}
	return n, nil
}

func (g *gousbTransport) ControlWrite(reqType, request uint8, value, index uint16, data []byte) error {
	_, err := withDeadline(func(ctx context.Context) (int, error) {
		return g.dev.ControlContext(ctx, reqType, request, value, index, data)
	})
	return err
}

func (g *gousbTransport) Read(buf []byte) (int, error) {
	return withDeadline(func(ctx context.Context) (int, error) {
		return g.inEP.ReadContext(ctx, buf)
	})
}

func (g *gousbTransport) Write(data []byte) (int, error) {
	return withDeadline(func(ctx context.Context) (int, error) {
		return g.outEP.WriteContext(ctx, data)
	})
}

func (g *gousbTransport) Close() error {
	g.intf.Close()
	g.cfg.Close()
	err := g.dev.Close()
	g.ctx.Close()
	return err
}
