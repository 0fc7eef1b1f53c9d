// Package rtt implements the host side of SEGGER Real Time Transfer: it
// finds the RTT control block in target RAM and drains up-channels through
// a probe.Core.
//
// # Control Block Layout
//
// The control block is a fixed structure placed in RAM by the firmware:
//
//	offset  size  field
//	0       16    signature "SEGGER RTT", NUL padded
//	16      4     number of up buffers
//	20      4     number of down buffers
//	24      24*n  up buffer descriptors
//	...     24*m  down buffer descriptors
//
// Each buffer descriptor holds, as little-endian 32-bit words, the name
// pointer, buffer pointer, buffer size, write offset, read offset and flags.
// The target advances the write offset of an up buffer; the host consumes
// bytes and advances the read offset.
//
// # Locating the Control Block
//
// Locate resolves the _SEGGER_RTT symbol of a firmware ELF image to an
// exact address. When no image is available, or resolution fails, Attach
// falls back to scanning the target's RAM regions for the signature.
package rtt
