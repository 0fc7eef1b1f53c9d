package rtt

import (
	"debug/elf"
	"errors"
	"fmt"
	"log/slog"
	"math"
)

var (
	// ErrSymbolNotFound is returned when the image has no _SEGGER_RTT symbol.
	ErrSymbolNotFound = errors.New("no " + SymbolName + " symbol found")
	// ErrAddressRange is returned when the symbol is not at a 32-bit address.
	ErrAddressRange = errors.New(SymbolName + " symbol is not located at a 32-bit address")
)

// ResolveSymbol reads the ELF image at path and returns the link address of
// the control block symbol.
func ResolveSymbol(path string) (uint32, error) {
	f, err := elf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read firmware ELF file: %w", err)
	}
	defer f.Close()

	syms, err := f.Symbols()
	if err != nil {
		if errors.Is(err, elf.ErrNoSymbols) {
			return 0, ErrSymbolNotFound
		}
		return 0, fmt.Errorf("failed to parse firmware ELF file: %w", err)
	}

	for _, sym := range syms {
		if sym.Name != SymbolName {
			continue
		}
		if sym.Value > math.MaxUint32 {
			return 0, fmt.Errorf("%w: 0x%X", ErrAddressRange, sym.Value)
		}
		return uint32(sym.Value), nil
	}
	return 0, ErrSymbolNotFound
}

// Locate turns an optional firmware image into a Hint. Every resolution
// failure is logged once and yields Unknown so the caller can fall back to
// scanning RAM.
func Locate(path string, logger *slog.Logger) Hint {
	if path == "" {
		return Unknown
	}

	addr, err := ResolveSymbol(path)
	if err != nil {
		logger.Warn("failed to get RTT region from ELF", "elf", path, "err", err)
		return Unknown
	}

	logger.Debug("resolved RTT control block from ELF", "elf", path, "addr", fmt.Sprintf("0x%08X", addr))
	return ExactAddress(addr)
}
