package probe

import (
	"errors"
	"fmt"
)

// ProbeInfo describes capabilities reported by a debug probe.
type ProbeInfo struct {
	Name         string
	Vendor       string
	Model        string
	SerialNumber string
	Firmware     string
	MinFrequency int // Hertz
	MaxFrequency int // Hertz
}

// AttachOptions controls how a session is established.
type AttachOptions struct {
	// UnderReset holds the target's nRESET line low while the debug port
	// is brought up, then releases it.
	UnderReset bool
	// SpeedHz is the SWD clock. Zero selects DefaultSpeedHz.
	SpeedHz int
}

// DefaultSpeedHz is the SWD clock used when AttachOptions.SpeedHz is zero.
const DefaultSpeedHz = 1_000_000

// Probe is an opened debug probe.
type Probe interface {
	Info() (ProbeInfo, error)
	Attach(target Target, opts AttachOptions) (Session, error)
	Close() error
}

// Session is an attached debug connection to one target.
type Session interface {
	Target() Target
	// Core returns the handle for core index. Only single-core access is
	// supported; any index other than 0 yields ErrCoreIndex.
	Core(index int) (Core, error)
	Close() error
}

// Core is the memory access surface of an attached core. Implementations
// are not safe for concurrent use.
type Core interface {
	// ReadMemory fills buf with target memory starting at addr. Unaligned
	// addresses and lengths are allowed.
	ReadMemory(addr uint32, buf []byte) error
	// WriteWord32 writes one 32-bit word. addr must be 4-byte aligned.
	WriteWord32(addr, value uint32) error
}

var (
	// ErrProbeNotFound is returned when no connected probe matches a selector.
	ErrProbeNotFound = errors.New("probe: no matching probe found")
	// ErrCoreIndex is returned by Session.Core for an out-of-range index.
	ErrCoreIndex = errors.New("probe: core index out of range")
	// ErrUnaligned is returned for word accesses that are not 4-byte aligned.
	ErrUnaligned = errors.New("probe: unaligned word access")
)

// Open opens the CMSIS-DAP probe identified by sel.
func Open(sel Selector) (Probe, error) {
	p, err := NewCMSISDAPProbe(sel)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func checkCoreIndex(index int) error {
	if index != 0 {
		return fmt.Errorf("%w: %d", ErrCoreIndex, index)
	}
	return nil
}
