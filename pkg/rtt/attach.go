package rtt

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/OpenTraceLab/OpenTraceRTT/pkg/probe"
)

// scanChunk is how much RAM one scan read covers.
const scanChunk = 64 * 1024

// ControlBlock is a validated RTT control block in target memory.
type ControlBlock struct {
	Address uint32
	MaxUp   uint32
	MaxDown uint32
}

// Attach finds and validates the control block. With an exact hint only
// that address is checked; otherwise every region in ram is scanned for
// the signature and exactly one valid control block must be present.
func Attach(core probe.Core, ram []probe.MemoryRegion, hint Hint) (*ControlBlock, error) {
	if addr, ok := hint.Address(); ok {
		cb, err := readControlBlock(core, addr)
		if err != nil {
			return nil, fmt.Errorf("%w at 0x%08X: %w", ErrNoControlBlock, addr, err)
		}
		return cb, nil
	}
	return scan(core, ram)
}

func scan(core probe.Core, ram []probe.MemoryRegion) (*ControlBlock, error) {
	var (
		found    []*ControlBlock
		rejected []string
	)

	for _, region := range ram {
		for off := uint64(0); off < uint64(region.Size); off += scanChunk {
			start := uint64(region.Start) + off
			// Overlap chunks so a signature straddling a boundary is seen.
			n := uint64(scanChunk + signatureSize - 1)
			if rest := region.End() - start; n > rest {
				n = rest
			}

			buf := make([]byte, n)
			if err := core.ReadMemory(uint32(start), buf); err != nil {
				return nil, fmt.Errorf("scan %s at 0x%08X: %w", region.Name, start, err)
			}

			for idx := 0; ; idx++ {
				i := bytes.Index(buf[idx:], signaturePattern)
				if i < 0 {
					break
				}
				idx += i
				if idx >= scanChunk {
					break
				}
				addr := uint32(start) + uint32(idx)
				cb, err := readControlBlock(core, addr)
				if err != nil {
					rejected = append(rejected, fmt.Sprintf("0x%08X: %v", addr, err))
					continue
				}
				found = append(found, cb)
			}
		}
	}

	switch len(found) {
	case 0:
		if len(rejected) > 0 {
			return nil, fmt.Errorf("%w (rejected candidates: %s)", ErrNoControlBlock, strings.Join(rejected, "; "))
		}
		return nil, fmt.Errorf("%w in %d RAM region(s)", ErrNoControlBlock, len(ram))
	case 1:
		return found[0], nil
	default:
		addrs := make([]string, len(found))
		for i, cb := range found {
			addrs[i] = fmt.Sprintf("0x%08X", cb.Address)
		}
		return nil, fmt.Errorf("%w at %s", ErrMultipleControlBlocks, strings.Join(addrs, ", "))
	}
}

func readControlBlock(core probe.Core, addr uint32) (*ControlBlock, error) {
	raw := make([]byte, headerSize)
	if err := core.ReadMemory(addr, raw); err != nil {
		return nil, err
	}
	h, err := parseHeader(raw)
	if err != nil {
		return nil, err
	}
	return &ControlBlock{Address: addr, MaxUp: h.MaxUp, MaxDown: h.MaxDown}, nil
}

// UpChannel validates and returns the up channel with the given index.
func (cb *ControlBlock) UpChannel(core probe.Core, index int) (*UpChannel, error) {
	if index < 0 || uint32(index) >= cb.MaxUp {
		return nil, fmt.Errorf("%w: index %d, control block has %d", ErrNoChannel, index, cb.MaxUp)
	}

	descAddr := cb.Address + headerSize + uint32(index)*descriptorSize
	raw := make([]byte, descriptorSize)
	if err := core.ReadMemory(descAddr, raw); err != nil {
		return nil, fmt.Errorf("read up channel %d descriptor: %w", index, err)
	}
	d := parseDescriptor(raw)
	if err := d.validate(); err != nil {
		return nil, fmt.Errorf("up channel %d: %w", index, err)
	}

	return &UpChannel{
		number:     index,
		descAddr:   descAddr,
		bufferAddr: d.BufferAddr,
		size:       d.Size,
		flags:      d.Flags,
		name:       readName(core, d.NameAddr),
	}, nil
}

// readName reads a NUL-terminated channel name; unreadable names are empty.
func readName(core probe.Core, addr uint32) string {
	if addr == 0 {
		return ""
	}
	buf := make([]byte, maxNameLength)
	if err := core.ReadMemory(addr, buf); err != nil {
		return ""
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf)
}
