package probe

import (
	"bytes"
	"errors"
	"testing"
)

func TestSimCoreReadWrite(t *testing.T) {
	core := NewSimCore(MemoryRegion{Name: "RAM", Kind: RegionRAM, Start: 0x20000000, Size: 0x1000})

	if err := core.WriteMemory(0x20000010, []byte("hello")); err != nil {
		t.Fatalf("WriteMemory() error = %v", err)
	}
	buf := make([]byte, 5)
	if err := core.ReadMemory(0x20000010, buf); err != nil {
		t.Fatalf("ReadMemory() error = %v", err)
	}
	if !bytes.Equal(buf, []byte("hello")) {
		t.Errorf("ReadMemory() = %q", buf)
	}

	if err := core.WriteWord32(0x20000020, 0x11223344); err != nil {
		t.Fatalf("WriteWord32() error = %v", err)
	}
	word := make([]byte, 4)
	_ = core.ReadMemory(0x20000020, word)
	if !bytes.Equal(word, []byte{0x44, 0x33, 0x22, 0x11}) {
		t.Errorf("word bytes = % X", word)
	}

	if err := core.ReadMemory(0x20000FFE, make([]byte, 4)); !errors.Is(err, ErrBusFault) {
		t.Errorf("out-of-region read error = %v, want ErrBusFault", err)
	}
	if reads, writes := core.Counts(); reads != 3 || writes != 1 {
		t.Errorf("Counts() = %d reads / %d writes, want 3/1", reads, writes)
	}
}

func TestSimCoreOnRead(t *testing.T) {
	core := NewSimCore(MemoryRegion{Start: 0x20000000, Size: 0x100})
	boom := errors.New("probe unplugged")
	core.OnRead = func(uint32, int) error { return boom }

	if err := core.ReadMemory(0x20000000, make([]byte, 4)); !errors.Is(err, boom) {
		t.Fatalf("ReadMemory() error = %v, want hook error", err)
	}
}

func TestSimProbeSession(t *testing.T) {
	core := NewSimCore(MemoryRegion{Start: 0x20000000, Size: 0x100})
	p := NewSimProbe(core)

	session, err := p.Attach(Target{Name: "sim"}, AttachOptions{UnderReset: true})
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if !p.LastAttach().UnderReset {
		t.Error("attach options not recorded")
	}
	if session.Target().Name != "sim" {
		t.Errorf("Target() = %+v", session.Target())
	}
	if c, err := session.Core(0); err != nil || c != Core(core) {
		t.Errorf("Core(0) = %v, %v", c, err)
	}
	if _, err := session.Core(2); !errors.Is(err, ErrCoreIndex) {
		t.Errorf("Core(2) error = %v, want ErrCoreIndex", err)
	}

	p.AttachErr = errors.New("target not responding")
	if _, err := p.Attach(Target{}, AttachOptions{}); err == nil {
		t.Error("expected attach error")
	}
}
