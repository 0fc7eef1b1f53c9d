package rtt

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// SymbolName is the firmware symbol of the control block.
	SymbolName = "_SEGGER_RTT"

	// Signature is the identifier at the start of the control block.
	Signature = "SEGGER RTT"

	signatureSize  = 16
	headerSize     = signatureSize + 8
	descriptorSize = 24

	// maxBuffers bounds the buffer counts accepted from target memory.
	maxBuffers = 255

	maxNameLength = 32
)

var (
	// ErrNoControlBlock is returned when neither the hint nor a RAM scan
	// produced a valid control block.
	ErrNoControlBlock = errors.New("no valid RTT control block found")
	// ErrMultipleControlBlocks is returned when a scan finds more than one
	// valid control block.
	ErrMultipleControlBlocks = errors.New("multiple RTT control blocks found")
	// ErrNoChannel is returned for an up-channel index the control block
	// does not declare or that is not configured.
	ErrNoChannel = errors.New("RTT up channel not available")
	// ErrCorruptChannel is returned when a channel's offsets are outside its
	// buffer, which means the descriptor was overwritten.
	ErrCorruptChannel = errors.New("RTT channel descriptor corrupt")
)

// signaturePattern is the full NUL-padded identifier.
var signaturePattern = func() []byte {
	b := make([]byte, signatureSize)
	copy(b, Signature)
	return b
}()

// descriptor mirrors one ring buffer descriptor in target memory.
type descriptor struct {
	NameAddr    uint32
	BufferAddr  uint32
	Size        uint32
	WriteOffset uint32
	ReadOffset  uint32
	Flags       uint32
}

// Offsets of the descriptor fields, relative to the descriptor address.
const (
	writeOffsetField = 12
	readOffsetField  = 16
)

func parseDescriptor(b []byte) descriptor {
	return descriptor{
		NameAddr:    binary.LittleEndian.Uint32(b[0:]),
		BufferAddr:  binary.LittleEndian.Uint32(b[4:]),
		Size:        binary.LittleEndian.Uint32(b[8:]),
		WriteOffset: binary.LittleEndian.Uint32(b[12:]),
		ReadOffset:  binary.LittleEndian.Uint32(b[16:]),
		Flags:       binary.LittleEndian.Uint32(b[20:]),
	}
}

func (d descriptor) validate() error {
	if d.BufferAddr == 0 || d.Size == 0 {
		return fmt.Errorf("%w: buffer not configured", ErrNoChannel)
	}
	if d.WriteOffset >= d.Size || d.ReadOffset >= d.Size {
		return fmt.Errorf("%w: offsets wr=%d rd=%d for size %d",
			ErrCorruptChannel, d.WriteOffset, d.ReadOffset, d.Size)
	}
	return nil
}

// header is the fixed part of the control block.
type header struct {
	MaxUp   uint32
	MaxDown uint32
}

// parseHeader checks the signature and buffer counts of a raw header.
func parseHeader(b []byte) (header, error) {
	if len(b) < headerSize {
		return header{}, fmt.Errorf("control block header truncated")
	}
	for i := range signaturePattern {
		if b[i] != signaturePattern[i] {
			return header{}, fmt.Errorf("control block signature mismatch")
		}
	}
	h := header{
		MaxUp:   binary.LittleEndian.Uint32(b[16:]),
		MaxDown: binary.LittleEndian.Uint32(b[20:]),
	}
	if h.MaxUp == 0 || h.MaxUp > maxBuffers || h.MaxDown > maxBuffers {
		return header{}, fmt.Errorf("implausible buffer counts up=%d down=%d", h.MaxUp, h.MaxDown)
	}
	return h, nil
}
