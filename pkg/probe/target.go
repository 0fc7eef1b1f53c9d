package probe

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// RegionKind classifies a memory region.
type RegionKind uint8

const (
	RegionRAM RegionKind = iota
	RegionFlash
)

func (k RegionKind) String() string {
	switch k {
	case RegionRAM:
		return "ram"
	case RegionFlash:
		return "flash"
	default:
		return fmt.Sprintf("RegionKind(%d)", uint8(k))
	}
}

// MemoryRegion is one contiguous range of a target's memory map.
type MemoryRegion struct {
	Name  string
	Kind  RegionKind
	Start uint32
	Size  uint32
}

// End returns the first address past the region.
func (r MemoryRegion) End() uint64 {
	return uint64(r.Start) + uint64(r.Size)
}

// Contains reports whether [addr, addr+n) lies entirely inside the region.
func (r MemoryRegion) Contains(addr uint32, n int) bool {
	return addr >= r.Start && uint64(addr)+uint64(n) <= r.End()
}

// Target describes a chip: its core and memory map.
type Target struct {
	Name   string // "nRF52840_xxAA"
	Family string // "nRF52"
	Core   string // "Cortex-M4"
	Memory []MemoryRegion
}

// RAM returns the target's RAM regions in memory map order.
func (t Target) RAM() []MemoryRegion {
	var ram []MemoryRegion
	for _, r := range t.Memory {
		if r.Kind == RegionRAM {
			ram = append(ram, r)
		}
	}
	return ram
}

// ErrTargetNotFound is returned by LookupTarget for unknown chip names.
var ErrTargetNotFound = errors.New("chip not found")

// targets is the in-memory chip database, keyed by lower-case name.
var targets = make(map[string]Target)

func register(t Target) {
	targets[strings.ToLower(t.Name)] = t
}

// LookupTarget finds a chip by name, ignoring case.
func LookupTarget(name string) (Target, error) {
	if t, ok := targets[strings.ToLower(strings.TrimSpace(name))]; ok {
		return t, nil
	}
	return Target{}, fmt.Errorf("%w: %q", ErrTargetNotFound, name)
}

// Targets returns every known chip sorted by name.
func Targets() []Target {
	all := make([]Target, 0, len(targets))
	for _, t := range targets {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

func ram(name string, start, size uint32) MemoryRegion {
	return MemoryRegion{Name: name, Kind: RegionRAM, Start: start, Size: size}
}

func flash(start, size uint32) MemoryRegion {
	return MemoryRegion{Name: "FLASH", Kind: RegionFlash, Start: start, Size: size}
}

const kib = 1024

func init() {
	// Nordic
	register(Target{Name: "nRF52832_xxAA", Family: "nRF52", Core: "Cortex-M4",
		Memory: []MemoryRegion{flash(0x00000000, 512*kib), ram("RAM", 0x20000000, 64*kib)}})
	register(Target{Name: "nRF52833_xxAA", Family: "nRF52", Core: "Cortex-M4",
		Memory: []MemoryRegion{flash(0x00000000, 512*kib), ram("RAM", 0x20000000, 128*kib)}})
	register(Target{Name: "nRF52840_xxAA", Family: "nRF52", Core: "Cortex-M4",
		Memory: []MemoryRegion{flash(0x00000000, 1024*kib), ram("RAM", 0x20000000, 256*kib)}})
	register(Target{Name: "nRF5340_xxAA", Family: "nRF53", Core: "Cortex-M33",
		Memory: []MemoryRegion{flash(0x00000000, 1024*kib), ram("RAM", 0x20000000, 512*kib)}})

	// ST
	register(Target{Name: "STM32F103C8", Family: "STM32F1", Core: "Cortex-M3",
		Memory: []MemoryRegion{flash(0x08000000, 64*kib), ram("SRAM", 0x20000000, 20*kib)}})
	register(Target{Name: "STM32F303VCTx", Family: "STM32F3", Core: "Cortex-M4",
		Memory: []MemoryRegion{flash(0x08000000, 256*kib), ram("CCMRAM", 0x10000000, 8*kib), ram("SRAM", 0x20000000, 40*kib)}})
	register(Target{Name: "STM32F407VGTx", Family: "STM32F4", Core: "Cortex-M4",
		Memory: []MemoryRegion{flash(0x08000000, 1024*kib), ram("CCMRAM", 0x10000000, 64*kib), ram("SRAM", 0x20000000, 128*kib)}})
	register(Target{Name: "STM32F411RETx", Family: "STM32F4", Core: "Cortex-M4",
		Memory: []MemoryRegion{flash(0x08000000, 512*kib), ram("SRAM", 0x20000000, 128*kib)}})
	register(Target{Name: "STM32L476RGTx", Family: "STM32L4", Core: "Cortex-M4",
		Memory: []MemoryRegion{flash(0x08000000, 1024*kib), ram("SRAM2", 0x10000000, 32*kib), ram("SRAM1", 0x20000000, 96*kib)}})

	// Raspberry Pi
	register(Target{Name: "RP2040", Family: "RP2040", Core: "Cortex-M0+",
		Memory: []MemoryRegion{flash(0x10000000, 2048*kib), ram("SRAM", 0x20000000, 264*kib)}})

	// Microchip
	register(Target{Name: "ATSAMD21G18A", Family: "SAMD21", Core: "Cortex-M0+",
		Memory: []MemoryRegion{flash(0x00000000, 256*kib), ram("SRAM", 0x20000000, 32*kib)}})
}
