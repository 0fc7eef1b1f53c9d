package probe

import (
	"context"
	"fmt"

	"github.com/google/gousb"
)

// ProbeKind categorizes probe families.
type ProbeKind string

const (
	ProbeKindCMSISDAP ProbeKind = "cmsis-dap"
	ProbeKindUnknown  ProbeKind = "unknown"
)

// ProbeListing describes a detected probe.
type ProbeListing struct {
	Kind        ProbeKind
	Description string
	VendorID    uint16
	ProductID   uint16
	Serial      string
}

// Label returns a user-friendly description for the probe.
func (l ProbeListing) Label() string {
	if l.Description != "" {
		return l.Description
	}
	if l.Kind != "" {
		return fmt.Sprintf("%s (%04X:%04X)", string(l.Kind), l.VendorID, l.ProductID)
	}
	return fmt.Sprintf("Probe %04X:%04X", l.VendorID, l.ProductID)
}

// Selector returns the selector that opens exactly this probe.
func (l ProbeListing) Selector() Selector {
	return Selector{VendorID: l.VendorID, ProductID: l.ProductID, Serial: l.Serial}
}

// DiscoverProbes enumerates connected USB devices that match known
// CMSIS-DAP VID/PID pairs and reads their serial numbers.
func DiscoverProbes(ctx context.Context) ([]ProbeListing, error) {
	usb := gousb.NewContext()
	defer usb.Close()

	devs, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		_, ok := classifyUSBDevice(desc)
		return ok
	})

	var results []ProbeListing
	for _, dev := range devs {
		info, _ := classifyUSBDevice(dev.Desc)
		if serial, serr := dev.SerialNumber(); serr == nil {
			info.Serial = serial
		}
		results = append(results, info)
		dev.Close()
	}

	if err != nil && err != gousb.ErrorAccess {
		return results, err
	}
	return results, ctx.Err()
}

func classifyUSBDevice(desc *gousb.DeviceDesc) (ProbeListing, bool) {
	for _, known := range knownCMSISDAPVIDPIDs {
		if uint16(desc.Vendor) == known.VendorID && uint16(desc.Product) == known.ProductID {
			return ProbeListing{
				Kind:        ProbeKindCMSISDAP,
				Description: known.Description,
				VendorID:    known.VendorID,
				ProductID:   known.ProductID,
			}, true
		}
	}
	return ProbeListing{}, false
}

type knownUSBDevice struct {
	VendorID    uint16
	ProductID   uint16
	Description string
}

var knownCMSISDAPVIDPIDs = []knownUSBDevice{
	{VendorID: VendorIDRaspberryPi, ProductID: ProductIDCMSISDAP, Description: "Raspberry Pi Debug Probe"},
	{VendorID: 0x0d28, ProductID: 0x0204, Description: "DAPLink CMSIS-DAP"},
	{VendorID: 0x1366, ProductID: 0x0101, Description: "SEGGER J-Link CMSIS-DAP"},
	{VendorID: 0x03eb, ProductID: 0x2175, Description: "Microchip nEDBG CMSIS-DAP"},
	{VendorID: 0x1fc9, ProductID: 0x0143, Description: "NXP MCU-Link CMSIS-DAP"},
}
