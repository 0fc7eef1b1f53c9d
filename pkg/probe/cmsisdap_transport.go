package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
)

// Raspberry Pi Debug Probe, the default CMSIS-DAP v2 device.
const (
	VendorIDRaspberryPi = 0x2E8A
	ProductIDCMSISDAP   = 0x000C
)

const (
	DefaultPacketSize = 64
	DefaultTimeout    = 5 * time.Second
)

// errNoDAPInterface is returned for devices without a bulk vendor interface,
// i.e. CMSIS-DAP v1 (HID) probes.
var errNoDAPInterface = errors.New("no CMSIS-DAP v2 bulk interface")

// packetTransport is the command/response channel to a CMSIS-DAP probe.
type packetTransport interface {
	WriteRead(cmd []byte) ([]byte, error)
	GetPacketSize() int
	Close() error
}

// USBTransport exchanges CMSIS-DAP packets over the bulk endpoints of a
// v2 probe.
type USBTransport struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface

	out *gousb.OutEndpoint
	in  *gousb.InEndpoint

	packetSize int
	timeout    time.Duration
	resp       []byte
}

// NewUSBTransport opens the probe matching sel. With no serial in sel the
// first matching device is used.
func NewUSBTransport(sel Selector) (*USBTransport, error) {
	t := &USBTransport{
		ctx:        gousb.NewContext(),
		packetSize: DefaultPacketSize,
		timeout:    DefaultTimeout,
	}

	if err := t.open(sel); err != nil {
		t.Close()
		return nil, err
	}
	t.resp = make([]byte, t.packetSize)
	return t, nil
}

func (t *USBTransport) open(sel Selector) error {
	devs, err := t.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return uint16(desc.Vendor) == sel.VendorID && uint16(desc.Product) == sel.ProductID
	})
	for _, d := range devs {
		if t.dev == nil && serialMatches(d, sel.Serial) {
			t.dev = d
			continue
		}
		d.Close()
	}
	if t.dev == nil {
		if err != nil {
			return fmt.Errorf("USB error: %w", err)
		}
		return fmt.Errorf("%w: %s", ErrProbeNotFound, sel)
	}

	// Not every platform can detach kernel drivers.
	_ = t.dev.SetAutoDetach(true)

	cfgNum, err := t.dev.ActiveConfigNum()
	if err != nil {
		cfgNum = 1
	}
	if t.cfg, err = t.dev.Config(cfgNum); err != nil {
		return fmt.Errorf("select USB configuration %d: %w", cfgNum, err)
	}

	num, outDesc, inDesc, err := findDAPInterface(t.cfg.Desc)
	if err != nil {
		return fmt.Errorf("%s: %w", sel, err)
	}
	if t.intf, err = t.cfg.Interface(num, 0); err != nil {
		return fmt.Errorf("claim interface %d: %w", num, err)
	}
	if t.out, err = t.intf.OutEndpoint(outDesc.Number); err != nil {
		return fmt.Errorf("open OUT endpoint: %w", err)
	}
	if t.in, err = t.intf.InEndpoint(inDesc.Number); err != nil {
		return fmt.Errorf("open IN endpoint: %w", err)
	}
	if inDesc.MaxPacketSize > 0 {
		t.packetSize = inDesc.MaxPacketSize
	}
	return nil
}

func serialMatches(d *gousb.Device, serial string) bool {
	if serial == "" {
		return true
	}
	got, err := d.SerialNumber()
	return err == nil && got == serial
}

// findDAPInterface returns the first vendor-class interface that has both
// a bulk OUT and a bulk IN endpoint. Extra endpoints, such as an SWO
// stream, are ignored.
func findDAPInterface(cfg gousb.ConfigDesc) (int, gousb.EndpointDesc, gousb.EndpointDesc, error) {
	for _, intf := range cfg.Interfaces {
		if len(intf.AltSettings) == 0 {
			continue
		}
		alt := intf.AltSettings[0]
		if alt.Class != gousb.ClassVendorSpec {
			continue
		}

		var out, in *gousb.EndpointDesc
		for addr := range alt.Endpoints {
			ep := alt.Endpoints[addr]
			if ep.TransferType != gousb.TransferTypeBulk {
				continue
			}
			switch {
			case ep.Direction == gousb.EndpointDirectionOut && (out == nil || ep.Number < out.Number):
				out = &ep
			case ep.Direction == gousb.EndpointDirectionIn && (in == nil || ep.Number < in.Number):
				in = &ep
			}
		}
		if out != nil && in != nil {
			return intf.Number, *out, *in, nil
		}
	}
	return 0, gousb.EndpointDesc{}, gousb.EndpointDesc{}, errNoDAPInterface
}

// WriteRead sends one command packet and returns the response packet. The
// returned slice is reused by the next call.
func (t *USBTransport) WriteRead(cmd []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	if _, err := t.out.WriteContext(ctx, cmd); err != nil {
		return nil, fmt.Errorf("USB write failed: %w", err)
	}
	n, err := t.in.ReadContext(ctx, t.resp)
	if err != nil {
		return nil, fmt.Errorf("USB read failed: %w", err)
	}
	if n == 0 || t.resp[0] != cmd[0] {
		return nil, fmt.Errorf("response does not echo command 0x%02X", cmd[0])
	}
	return t.resp[:n], nil
}

// GetPacketSize returns the bulk IN packet size.
func (t *USBTransport) GetPacketSize() int {
	return t.packetSize
}

// Close releases the interface, configuration, device and context.
func (t *USBTransport) Close() error {
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	if t.cfg != nil {
		t.cfg.Close()
		t.cfg = nil
	}
	if t.dev != nil {
		t.dev.Close()
		t.dev = nil
	}
	if t.ctx != nil {
		t.ctx.Close()
		t.ctx = nil
	}
	return nil
}
