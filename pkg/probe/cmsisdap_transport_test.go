package probe

import (
	"errors"
	"testing"

	"github.com/google/gousb"
)

func bulk(num int, dir gousb.EndpointDirection, size int) gousb.EndpointDesc {
	addr := gousb.EndpointAddress(num)
	if dir == gousb.EndpointDirectionIn {
		addr |= 0x80
	}
	return gousb.EndpointDesc{
		Address:       addr,
		Number:        num,
		Direction:     dir,
		MaxPacketSize: size,
		TransferType:  gousb.TransferTypeBulk,
	}
}

func iface(num int, class gousb.Class, eps ...gousb.EndpointDesc) gousb.InterfaceDesc {
	m := make(map[gousb.EndpointAddress]gousb.EndpointDesc, len(eps))
	for _, ep := range eps {
		m[ep.Address] = ep
	}
	return gousb.InterfaceDesc{
		Number:      num,
		AltSettings: []gousb.InterfaceSetting{{Number: num, Class: class, Endpoints: m}},
	}
}

func TestFindDAPInterface(t *testing.T) {
	in, out := gousb.EndpointDirectionIn, gousb.EndpointDirectionOut

	tests := []struct {
		name     string
		cfg      gousb.ConfigDesc
		wantIntf int
		wantOut  int
		wantIn   int
		wantErr  bool
	}{
		{
			name: "debug probe with CDC and SWO",
			cfg: gousb.ConfigDesc{Interfaces: []gousb.InterfaceDesc{
				iface(0, gousb.ClassVendorSpec, bulk(4, out, 64), bulk(5, in, 64), bulk(6, in, 64)),
				iface(1, gousb.ClassComm),
				iface(2, gousb.ClassData, bulk(2, out, 64), bulk(3, in, 64)),
			}},
			wantIntf: 0, wantOut: 4, wantIn: 5,
		},
		{
			name: "vendor interface after HID",
			cfg: gousb.ConfigDesc{Interfaces: []gousb.InterfaceDesc{
				iface(0, gousb.ClassHID),
				iface(1, gousb.ClassVendorSpec, bulk(1, out, 512), bulk(2, in, 512)),
			}},
			wantIntf: 1, wantOut: 1, wantIn: 2,
		},
		{
			name: "HID only probe",
			cfg: gousb.ConfigDesc{Interfaces: []gousb.InterfaceDesc{
				iface(0, gousb.ClassHID),
			}},
			wantErr: true,
		},
		{
			name: "vendor interface without IN endpoint",
			cfg: gousb.ConfigDesc{Interfaces: []gousb.InterfaceDesc{
				iface(0, gousb.ClassVendorSpec, bulk(1, out, 64)),
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			num, gotOut, gotIn, err := findDAPInterface(tt.cfg)
			if tt.wantErr {
				if !errors.Is(err, errNoDAPInterface) {
					t.Fatalf("findDAPInterface() error = %v, want errNoDAPInterface", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("findDAPInterface() error = %v", err)
			}
			if num != tt.wantIntf || gotOut.Number != tt.wantOut || gotIn.Number != tt.wantIn {
				t.Errorf("findDAPInterface() = intf %d out %d in %d, want %d/%d/%d",
					num, gotOut.Number, gotIn.Number, tt.wantIntf, tt.wantOut, tt.wantIn)
			}
		})
	}
}

// Integration test - only runs with real hardware
func TestUSBTransportIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	transport, err := NewUSBTransport(Selector{VendorID: VendorIDRaspberryPi, ProductID: ProductIDCMSISDAP})
	if err != nil {
		t.Skipf("No CMSIS-DAP hardware found: %v", err)
	}
	defer transport.Close()

	if size := transport.GetPacketSize(); size < DefaultPacketSize {
		t.Errorf("packet size %d below %d", size, DefaultPacketSize)
	}

	resp, err := transport.WriteRead([]byte{CmdInfo, InfoVendorID})
	if err != nil {
		t.Fatalf("WriteRead() error = %v", err)
	}
	if len(resp) < 2 {
		t.Fatalf("response too short: % X", resp)
	}
}
