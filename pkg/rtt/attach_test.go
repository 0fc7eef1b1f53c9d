package rtt

import (
	"errors"
	"testing"

	"github.com/OpenTraceLab/OpenTraceRTT/pkg/probe"
)

var testRAM = []probe.MemoryRegion{
	{Name: "RAM", Kind: probe.RegionRAM, Start: 0x20000000, Size: 0x20000},
}

func newTestCore(t *testing.T) *probe.SimCore {
	t.Helper()
	return probe.NewSimCore(testRAM...)
}

func newTestFirmware(t *testing.T, core *probe.SimCore, cbAddr, bufAddr, size uint32) *SimFirmware {
	t.Helper()
	fw, err := NewSimFirmware(core, cbAddr, bufAddr, size, "Terminal")
	if err != nil {
		t.Fatalf("NewSimFirmware() error = %v", err)
	}
	return fw
}

func TestAttachExactHint(t *testing.T) {
	core := newTestCore(t)
	newTestFirmware(t, core, 0x20001000, 0x20002000, 256)

	cb, err := Attach(core, testRAM, ExactAddress(0x20001000))
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if cb.Address != 0x20001000 || cb.MaxUp != 1 || cb.MaxDown != 1 {
		t.Fatalf("Attach() = %+v", cb)
	}

	// Only the header is read; no scan happens.
	if reads, _ := core.Counts(); reads != 1 {
		t.Errorf("reads = %d, want 1", reads)
	}
}

func TestAttachExactHintMismatch(t *testing.T) {
	core := newTestCore(t)
	newTestFirmware(t, core, 0x20001000, 0x20002000, 256)

	tests := []struct {
		name string
		addr uint32
	}{
		{"wrong address", 0x20001100},
		{"unmapped address", 0x30000000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Attach(core, testRAM, ExactAddress(tt.addr))
			if !errors.Is(err, ErrNoControlBlock) {
				t.Fatalf("Attach() error = %v, want ErrNoControlBlock", err)
			}
		})
	}
}

func TestAttachScan(t *testing.T) {
	tests := []struct {
		name   string
		cbAddr uint32
	}{
		{"start of RAM", 0x20000000},
		{"middle of RAM", 0x20004020},
		{"straddling chunk boundary", 0x20000000 + scanChunk - 8},
		{"second chunk", 0x20018000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core := newTestCore(t)
			newTestFirmware(t, core, tt.cbAddr, 0x2001C000, 256)

			cb, err := Attach(core, testRAM, Unknown)
			if err != nil {
				t.Fatalf("Attach() error = %v", err)
			}
			if cb.Address != tt.cbAddr {
				t.Errorf("Address = 0x%08X, want 0x%08X", cb.Address, tt.cbAddr)
			}
		})
	}
}

func TestAttachScanFailures(t *testing.T) {
	t.Run("empty RAM", func(t *testing.T) {
		_, err := Attach(newTestCore(t), testRAM, Unknown)
		if !errors.Is(err, ErrNoControlBlock) {
			t.Fatalf("Attach() error = %v, want ErrNoControlBlock", err)
		}
	})

	t.Run("signature with implausible header", func(t *testing.T) {
		core := newTestCore(t)
		// Signature only, MaxUp stays zero.
		if err := core.WriteMemory(0x20000100, signaturePattern); err != nil {
			t.Fatal(err)
		}
		_, err := Attach(core, testRAM, Unknown)
		if !errors.Is(err, ErrNoControlBlock) {
			t.Fatalf("Attach() error = %v, want ErrNoControlBlock", err)
		}
	})

	t.Run("two control blocks", func(t *testing.T) {
		core := newTestCore(t)
		newTestFirmware(t, core, 0x20001000, 0x20002000, 256)
		newTestFirmware(t, core, 0x20003000, 0x20004000, 256)
		_, err := Attach(core, testRAM, Unknown)
		if !errors.Is(err, ErrMultipleControlBlocks) {
			t.Fatalf("Attach() error = %v, want ErrMultipleControlBlocks", err)
		}
	})

	t.Run("read fault", func(t *testing.T) {
		core := newTestCore(t)
		core.OnRead = func(uint32, int) error { return probe.ErrBusFault }
		_, err := Attach(core, testRAM, Unknown)
		if !errors.Is(err, probe.ErrBusFault) {
			t.Fatalf("Attach() error = %v, want ErrBusFault", err)
		}
	})
}

func TestUpChannel(t *testing.T) {
	core := newTestCore(t)
	newTestFirmware(t, core, 0x20001000, 0x20002000, 256)

	cb, err := Attach(core, testRAM, ExactAddress(0x20001000))
	if err != nil {
		t.Fatal(err)
	}

	ch, err := cb.UpChannel(core, 0)
	if err != nil {
		t.Fatalf("UpChannel(0) error = %v", err)
	}
	if ch.Number() != 0 || ch.Name() != "Terminal" || ch.BufferSize() != 256 {
		t.Errorf("channel = %d %q %d", ch.Number(), ch.Name(), ch.BufferSize())
	}

	if _, err := cb.UpChannel(core, 1); !errors.Is(err, ErrNoChannel) {
		t.Errorf("UpChannel(1) error = %v, want ErrNoChannel", err)
	}
	if _, err := cb.UpChannel(core, -1); !errors.Is(err, ErrNoChannel) {
		t.Errorf("UpChannel(-1) error = %v, want ErrNoChannel", err)
	}
}

func TestUpChannelNotConfigured(t *testing.T) {
	core := newTestCore(t)
	newTestFirmware(t, core, 0x20001000, 0x20002000, 256)
	// Clear the buffer size of up channel 0.
	if err := core.WriteWord32(0x20001000+headerSize+8, 0); err != nil {
		t.Fatal(err)
	}

	cb, err := Attach(core, testRAM, ExactAddress(0x20001000))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cb.UpChannel(core, 0); !errors.Is(err, ErrNoChannel) {
		t.Fatalf("UpChannel(0) error = %v, want ErrNoChannel", err)
	}
}
