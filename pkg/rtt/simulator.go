package rtt

import (
	"encoding/binary"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceRTT/pkg/probe"
)

// SimFirmware plays the target side of RTT on a probe.SimCore: it lays out
// a control block with one up channel and writes into it the way
// SEGGER_RTT_Write does in non-blocking trim mode.
type SimFirmware struct {
	core       *probe.SimCore
	Address    uint32
	descAddr   uint32
	bufferAddr uint32
	size       uint32
}

// NewSimFirmware writes a control block at cbAddr whose up channel 0 uses
// size bytes at bufferAddr. The channel name is stored right after the
// buffer.
func NewSimFirmware(core *probe.SimCore, cbAddr, bufferAddr, size uint32, name string) (*SimFirmware, error) {
	cb := make([]byte, headerSize+2*descriptorSize)
	copy(cb, signaturePattern)
	binary.LittleEndian.PutUint32(cb[16:], 1)
	binary.LittleEndian.PutUint32(cb[20:], 1)

	nameAddr := bufferAddr + size
	up := cb[headerSize:]
	binary.LittleEndian.PutUint32(up[0:], nameAddr)
	binary.LittleEndian.PutUint32(up[4:], bufferAddr)
	binary.LittleEndian.PutUint32(up[8:], size)

	if err := core.WriteMemory(cbAddr, cb); err != nil {
		return nil, fmt.Errorf("write control block: %w", err)
	}
	if err := core.WriteMemory(nameAddr, append([]byte(name), 0)); err != nil {
		return nil, fmt.Errorf("write channel name: %w", err)
	}

	return &SimFirmware{
		core:       core,
		Address:    cbAddr,
		descAddr:   cbAddr + headerSize,
		bufferAddr: bufferAddr,
		size:       size,
	}, nil
}

// Write appends as much of p as fits in the ring buffer and returns the
// number of bytes stored.
func (f *SimFirmware) Write(p []byte) (int, error) {
	var offs [8]byte
	if err := f.core.ReadMemory(f.descAddr+writeOffsetField, offs[:]); err != nil {
		return 0, err
	}
	wr := binary.LittleEndian.Uint32(offs[0:])
	rd := binary.LittleEndian.Uint32(offs[4:])

	free := (rd + f.size - wr - 1) % f.size
	n := uint32(len(p))
	if n > free {
		n = free
	}

	for i := uint32(0); i < n; {
		chunk := n - i
		if room := f.size - wr; chunk > room {
			chunk = room
		}
		if err := f.core.WriteMemory(f.bufferAddr+wr, p[i:i+chunk]); err != nil {
			return int(i), err
		}
		i += chunk
		wr = (wr + chunk) % f.size
	}

	var word [4]byte
	binary.LittleEndian.PutUint32(word[:], wr)
	if err := f.core.WriteMemory(f.descAddr+writeOffsetField, word[:]); err != nil {
		return 0, err
	}
	return int(n), nil
}
