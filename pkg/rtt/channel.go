package rtt

import (
	"encoding/binary"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceRTT/pkg/probe"
)

// UpChannel is a target-to-host ring buffer. It must only be read by one
// reader at a time.
type UpChannel struct {
	number     int
	descAddr   uint32
	bufferAddr uint32
	size       uint32
	flags      uint32
	name       string
}

// Number returns the channel index.
func (c *UpChannel) Number() int { return c.number }

// Name returns the channel name published by the firmware, if any.
func (c *UpChannel) Name() string { return c.name }

// BufferSize returns the ring buffer size in bytes.
func (c *UpChannel) BufferSize() uint32 { return c.size }

// Read copies up to len(buf) pending bytes out of the ring buffer and
// advances the target's read offset past them. It makes a single attempt
// and returns 0 when the buffer is empty.
func (c *UpChannel) Read(core probe.Core, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	var offs [8]byte
	if err := core.ReadMemory(c.descAddr+writeOffsetField, offs[:]); err != nil {
		return 0, fmt.Errorf("read channel offsets: %w", err)
	}
	wr := binary.LittleEndian.Uint32(offs[0:])
	rd := binary.LittleEndian.Uint32(offs[4:])
	if wr >= c.size || rd >= c.size {
		return 0, fmt.Errorf("%w: offsets wr=%d rd=%d for size %d", ErrCorruptChannel, wr, rd, c.size)
	}

	total := 0
	for total < len(buf) && rd != wr {
		avail := c.size - rd
		if wr > rd {
			avail = wr - rd
		}
		n := len(buf) - total
		if uint32(n) > avail {
			n = int(avail)
		}

		if err := core.ReadMemory(c.bufferAddr+rd, buf[total:total+n]); err != nil {
			return 0, fmt.Errorf("read channel buffer: %w", err)
		}
		total += n
		rd = (rd + uint32(n)) % c.size
	}

	if total > 0 {
		if err := core.WriteWord32(c.descAddr+readOffsetField, rd); err != nil {
			return 0, fmt.Errorf("update read offset: %w", err)
		}
	}
	return total, nil
}
