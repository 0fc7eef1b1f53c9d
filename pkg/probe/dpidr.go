package probe

import "fmt"

// DPIDR is the identification register of an ADIv5 SW-DP.
type DPIDR struct {
	Raw      uint32
	Revision uint8  // [31:28]
	PartNo   uint8  // [27:20]
	Min      bool   // [16], MINDP: no transaction counter or pushed ops
	Version  uint8  // [15:12], DP architecture version
	Designer uint16 // [11:1], JEP106 continuation code in [11:8], identity in [7:1]
}

// ParseDPIDR splits a raw DPIDR value into its fields.
func ParseDPIDR(raw uint32) DPIDR {
	return DPIDR{
		Raw:      raw,
		Revision: uint8(raw >> 28),
		PartNo:   uint8(raw >> 20),
		Min:      raw&(1<<16) != 0,
		Version:  uint8((raw >> 12) & 0xF),
		Designer: uint16((raw >> 1) & 0x7FF),
	}
}

// designers maps JEP106 codes, bank in the high bits, to names.
var designers = map[uint16]string{
	0x020: "STMicroelectronics",
	0x23B: "ARM",
	0x144: "Nordic Semiconductor",
	0x01F: "Atmel",
	0x029: "Microchip",
	0x015: "NXP",
}

// DesignerName returns the JEP106 designer name, or the code in hex when
// it is not known.
func (id DPIDR) DesignerName() string {
	if name, ok := designers[id.Designer]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (0x%03X)", id.Designer)
}

func (id DPIDR) String() string {
	return fmt.Sprintf("0x%08X (%s, DPv%d, part 0x%02X, rev %d)",
		id.Raw, id.DesignerName(), id.Version, id.PartNo, id.Revision)
}
