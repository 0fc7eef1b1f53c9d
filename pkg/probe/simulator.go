package probe

import (
	"errors"
	"fmt"
)

// ErrBusFault is returned by SimCore for accesses outside its regions.
var ErrBusFault = errors.New("probe: bus fault")

// SimCore is an in-memory Core backed by the RAM regions of a Target. It is
// useful for unit tests and for exercising the RTT stack without hardware.
type SimCore struct {
	regions []MemoryRegion
	mem     [][]byte

	// OnRead, when set, is consulted before every ReadMemory. A non-nil
	// error is returned to the caller instead of performing the read.
	OnRead func(addr uint32, n int) error

	reads  int
	writes int
}

// NewSimCore allocates zeroed backing memory for each region.
func NewSimCore(regions ...MemoryRegion) *SimCore {
	c := &SimCore{regions: regions, mem: make([][]byte, len(regions))}
	for i, r := range regions {
		c.mem[i] = make([]byte, r.Size)
	}
	return c
}

// Counts reports how many ReadMemory and WriteWord32 calls were made.
func (c *SimCore) Counts() (reads, writes int) {
	return c.reads, c.writes
}

func (c *SimCore) ReadMemory(addr uint32, buf []byte) error {
	c.reads++
	if c.OnRead != nil {
		if err := c.OnRead(addr, len(buf)); err != nil {
			return err
		}
	}
	mem, err := c.slice(addr, len(buf))
	if err != nil {
		return err
	}
	copy(buf, mem)
	return nil
}

func (c *SimCore) WriteWord32(addr, value uint32) error {
	if addr%4 != 0 {
		return fmt.Errorf("%w: 0x%08X", ErrUnaligned, addr)
	}
	c.writes++
	return c.WriteMemory(addr, []byte{byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24)})
}

// WriteMemory stores data at addr, as the firmware running on the target
// would.
func (c *SimCore) WriteMemory(addr uint32, data []byte) error {
	mem, err := c.slice(addr, len(data))
	if err != nil {
		return err
	}
	copy(mem, data)
	return nil
}

func (c *SimCore) slice(addr uint32, n int) ([]byte, error) {
	for i, r := range c.regions {
		if r.Contains(addr, n) {
			off := addr - r.Start
			return c.mem[i][off : off+uint32(n)], nil
		}
	}
	return nil, fmt.Errorf("%w: %d bytes at 0x%08X", ErrBusFault, n, addr)
}

// SimDPIDR is the debug port identity reported by simulated sessions, that
// of an ARM SW-DP v1.
const SimDPIDR = 0x2BA01477

// SimProbe is a Probe whose single session exposes Core.
type SimProbe struct {
	Core      *SimCore
	InfoData  ProbeInfo
	AttachErr error

	attached AttachOptions
	closed   bool
}

// NewSimProbe wraps core in a probe.
func NewSimProbe(core *SimCore) *SimProbe {
	return &SimProbe{Core: core, InfoData: ProbeInfo{Name: "Simulator"}}
}

// LastAttach returns the options of the most recent Attach call.
func (p *SimProbe) LastAttach() AttachOptions { return p.attached }

// Closed reports whether Close was called.
func (p *SimProbe) Closed() bool { return p.closed }

func (p *SimProbe) Info() (ProbeInfo, error) { return p.InfoData, nil }

func (p *SimProbe) Attach(target Target, opts AttachOptions) (Session, error) {
	if p.AttachErr != nil {
		return nil, p.AttachErr
	}
	p.attached = opts
	return &simSession{core: p.Core, target: target}, nil
}

func (p *SimProbe) Close() error {
	p.closed = true
	return nil
}

type simSession struct {
	core   *SimCore
	target Target
}

func (s *simSession) Target() Target { return s.target }

func (s *simSession) DPIDR() DPIDR { return ParseDPIDR(SimDPIDR) }

func (s *simSession) Core(index int) (Core, error) {
	if err := checkCoreIndex(index); err != nil {
		return nil, err
	}
	return s.core, nil
}

func (s *simSession) Close() error { return nil }
