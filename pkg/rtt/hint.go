package rtt

import "fmt"

// Hint tells Attach where to look for the control block. The zero value is
// Unknown, which requests a RAM scan.
type Hint struct {
	addr  uint32
	exact bool
}

// Unknown is the hint that carries no address.
var Unknown = Hint{}

// ExactAddress returns a hint pinning the control block to addr.
func ExactAddress(addr uint32) Hint {
	return Hint{addr: addr, exact: true}
}

// Address returns the hinted address and whether there is one.
func (h Hint) Address() (uint32, bool) {
	return h.addr, h.exact
}

func (h Hint) String() string {
	if !h.exact {
		return "Unknown"
	}
	return fmt.Sprintf("ExactAddress(0x%08X)", h.addr)
}
