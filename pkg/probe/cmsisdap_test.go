package probe

import (
	"encoding/binary"
	"errors"
	"testing"
)

// fakeDAP emulates a CMSIS-DAP firmware attached to a target whose memory
// word at address a holds patternWord(a) unless overwritten.
type fakeDAP struct {
	packetSize int

	written map[uint32]uint32
	tar     uint32
	csw     uint32
	ctrl    uint32
	pins    []byte

	commands  []byte
	oversize  bool
	faultAddr uint32
}

func newFakeDAP(packetSize int) *fakeDAP {
	return &fakeDAP{packetSize: packetSize, written: make(map[uint32]uint32), faultAddr: 0xFFFFFFFF}
}

func patternWord(a uint32) uint32 { return a ^ 0xA5A5A5A5 }

func patternByte(a uint32) byte { return byte(patternWord(a&^3) >> (8 * (a & 3))) }

func (f *fakeDAP) GetPacketSize() int { return f.packetSize }
func (f *fakeDAP) Close() error       { return nil }

func (f *fakeDAP) WriteRead(cmd []byte) ([]byte, error) {
	f.commands = append(f.commands, cmd[0])
	switch cmd[0] {
	case CmdInfo:
		s := "Fake DAP"
		return append([]byte{CmdInfo, byte(len(s))}, s...), nil
	case CmdConnect:
		return []byte{CmdConnect, cmd[1]}, nil
	case CmdDisconnect, CmdSWJClock, CmdTransferConfigure, CmdSWDConfigure, CmdSWJSequence:
		return []byte{cmd[0], StatusOK}, nil
	case CmdSWJPins:
		f.pins = append(f.pins, cmd[1])
		return []byte{CmdSWJPins, cmd[1]}, nil
	case CmdTransfer:
		return f.transfer(cmd), nil
	case CmdTransferBlock:
		return f.block(cmd), nil
	}
	return []byte{cmd[0], StatusError}, nil
}

func (f *fakeDAP) transfer(cmd []byte) []byte {
	count := int(cmd[2])
	resp := []byte{CmdTransfer, byte(count), AckOK}
	off := 3
	for i := 0; i < count; i++ {
		req := cmd[off]
		off++
		ap, read, addr := req&0x01 != 0, req&0x02 != 0, req&0x0C
		if read {
			v, ok := f.read(ap, addr)
			if !ok {
				resp[1], resp[2] = byte(i), AckFault
				return resp
			}
			resp = binary.LittleEndian.AppendUint32(resp, v)
			continue
		}
		f.write(ap, addr, binary.LittleEndian.Uint32(cmd[off:]))
		off += 4
	}
	return resp
}

func (f *fakeDAP) block(cmd []byte) []byte {
	count := int(binary.LittleEndian.Uint16(cmd[2:]))
	if 4+4*count > f.packetSize {
		f.oversize = true
	}
	req := cmd[4]
	resp := []byte{CmdTransferBlock, 0, 0, AckOK}
	for i := 0; i < count; i++ {
		v, ok := f.read(req&0x01 != 0, req&0x0C)
		if !ok {
			binary.LittleEndian.PutUint16(resp[1:], uint16(i))
			resp[3] = AckFault
			return resp
		}
		resp = binary.LittleEndian.AppendUint32(resp, v)
	}
	binary.LittleEndian.PutUint16(resp[1:], uint16(count))
	return resp
}

func (f *fakeDAP) advance() {
	// Auto-increment wraps inside the 1 KiB TAR window like real MEM-APs.
	f.tar = f.tar&^0x3FF | (f.tar+4)&0x3FF
}

func (f *fakeDAP) read(ap bool, addr byte) (uint32, bool) {
	if !ap {
		switch addr {
		case dpIDR:
			return 0x2BA01477, true
		case dpCtrlStat:
			return f.ctrl | (f.ctrl&(ctrlCDBGPWRUPREQ|ctrlCSYSPWRUPREQ))<<1, true
		}
		return 0, true
	}
	switch addr {
	case apCSW:
		return f.csw, true
	case apTAR:
		return f.tar, true
	case apDRW:
		a := f.tar
		if a == f.faultAddr {
			return 0, false
		}
		f.advance()
		if v, ok := f.written[a]; ok {
			return v, true
		}
		return patternWord(a), true
	}
	return 0, true
}

func (f *fakeDAP) write(ap bool, addr byte, v uint32) {
	if !ap {
		if addr == dpCtrlStat {
			f.ctrl = v
		}
		return
	}
	switch addr {
	case apCSW:
		f.csw = v
	case apTAR:
		f.tar = v
	case apDRW:
		f.written[f.tar] = v
		f.advance()
	}
}

func attachFakeSession(t *testing.T, dap *fakeDAP, opts AttachOptions) Session {
	t.Helper()
	p, err := newCMSISDAPProbe(dap)
	if err != nil {
		t.Fatalf("newCMSISDAPProbe() error = %v", err)
	}
	session, err := p.Attach(Target{Name: "fake"}, opts)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	return session
}

func attachFake(t *testing.T, dap *fakeDAP, opts AttachOptions) Core {
	t.Helper()
	core, err := attachFakeSession(t, dap, opts).Core(0)
	if err != nil {
		t.Fatalf("Core(0) error = %v", err)
	}
	return core
}

func TestCMSISDAPProbe_ValidateInterface(t *testing.T) {
	var _ Probe = (*CMSISDAPProbe)(nil)
	var _ Core = (*dapCore)(nil)
}

func TestCMSISDAPProbe_Attach(t *testing.T) {
	dap := newFakeDAP(64)
	attachFake(t, dap, AttachOptions{})

	if dap.csw != cswWord32 {
		t.Errorf("CSW = 0x%08X, want 0x%08X", dap.csw, cswWord32)
	}
	if dap.ctrl&(ctrlCDBGPWRUPREQ|ctrlCSYSPWRUPREQ) == 0 {
		t.Errorf("debug power-up not requested, CTRL/STAT = 0x%08X", dap.ctrl)
	}
	if len(dap.pins) != 0 {
		t.Errorf("unexpected SWJ pin changes without reset: %v", dap.pins)
	}
	if dap.commands[0] != CmdInfo {
		t.Errorf("first command = 0x%02X, want DAP_Info", dap.commands[0])
	}
}

func TestCMSISDAPProbe_AttachReportsDPIDR(t *testing.T) {
	session := attachFakeSession(t, newFakeDAP(64), AttachOptions{})
	ident, ok := session.(interface{ DPIDR() DPIDR })
	if !ok {
		t.Fatal("session does not report DPIDR")
	}
	if id := ident.DPIDR(); id.Raw != 0x2BA01477 || id.DesignerName() != "ARM" {
		t.Errorf("DPIDR() = %v", id)
	}
}

func TestCMSISDAPProbe_AttachUnderReset(t *testing.T) {
	dap := newFakeDAP(64)
	attachFake(t, dap, AttachOptions{UnderReset: true})

	if len(dap.pins) != 2 || dap.pins[0] != 0 || dap.pins[1] != PinNRESET {
		t.Fatalf("SWJ pins = %v, want [assert, release]", dap.pins)
	}
}

func TestCMSISDAPProbe_AttachRejectsSpeed(t *testing.T) {
	p, err := newCMSISDAPProbe(newFakeDAP(64))
	if err != nil {
		t.Fatalf("newCMSISDAPProbe() error = %v", err)
	}
	if _, err := p.Attach(Target{}, AttachOptions{SpeedHz: 100_000_000}); err == nil {
		t.Fatal("expected error for out-of-range speed")
	}
}

func TestDAPCore_ReadMemory(t *testing.T) {
	tests := []struct {
		name       string
		packetSize int
		addr       uint32
		length     int
	}{
		{"aligned single word", 64, 0x20000000, 4},
		{"unaligned start and end", 64, 0x20000001, 6},
		{"crosses TAR wrap", 64, 0x200003F1, 100},
		{"large read", 512, 0x20000010, 5000},
		{"one byte", 64, 0x20000403, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dap := newFakeDAP(tt.packetSize)
			core := attachFake(t, dap, AttachOptions{})

			buf := make([]byte, tt.length)
			if err := core.ReadMemory(tt.addr, buf); err != nil {
				t.Fatalf("ReadMemory() error = %v", err)
			}
			for i, b := range buf {
				if want := patternByte(tt.addr + uint32(i)); b != want {
					t.Fatalf("byte %d (0x%08X) = 0x%02X, want 0x%02X", i, tt.addr+uint32(i), b, want)
				}
			}
			if dap.oversize {
				t.Errorf("block transfer exceeded packet size %d", tt.packetSize)
			}
		})
	}
}

func TestDAPCore_ReadMemoryFault(t *testing.T) {
	dap := newFakeDAP(64)
	dap.faultAddr = 0x20000008
	core := attachFake(t, dap, AttachOptions{})

	err := core.ReadMemory(0x20000000, make([]byte, 16))
	var ackErr *AckError
	if !errors.As(err, &ackErr) || ackErr.Ack != AckFault {
		t.Fatalf("ReadMemory() error = %v, want FAULT AckError", err)
	}
}

func TestDAPCore_WriteWord32(t *testing.T) {
	dap := newFakeDAP(64)
	core := attachFake(t, dap, AttachOptions{})

	if err := core.WriteWord32(0x20000100, 0xDEADBEEF); err != nil {
		t.Fatalf("WriteWord32() error = %v", err)
	}
	if got := dap.written[0x20000100]; got != 0xDEADBEEF {
		t.Fatalf("written word = 0x%08X, want 0xDEADBEEF", got)
	}

	buf := make([]byte, 4)
	if err := core.ReadMemory(0x20000100, buf); err != nil {
		t.Fatalf("ReadMemory() error = %v", err)
	}
	if got := binary.LittleEndian.Uint32(buf); got != 0xDEADBEEF {
		t.Fatalf("read back 0x%08X, want 0xDEADBEEF", got)
	}

	if err := core.WriteWord32(0x20000101, 1); !errors.Is(err, ErrUnaligned) {
		t.Fatalf("unaligned WriteWord32() error = %v, want ErrUnaligned", err)
	}
}

func TestDAPSession_CoreIndex(t *testing.T) {
	p, err := newCMSISDAPProbe(newFakeDAP(64))
	if err != nil {
		t.Fatalf("newCMSISDAPProbe() error = %v", err)
	}
	session, err := p.Attach(Target{}, AttachOptions{})
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if _, err := session.Core(1); !errors.Is(err, ErrCoreIndex) {
		t.Fatalf("Core(1) error = %v, want ErrCoreIndex", err)
	}
}

// Integration test - requires real CMSIS-DAP hardware
func TestCMSISDAPProbe_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	p, err := NewCMSISDAPProbe(Selector{VendorID: VendorIDRaspberryPi, ProductID: ProductIDCMSISDAP})
	if err != nil {
		t.Skipf("No CMSIS-DAP hardware found: %v", err)
	}
	defer p.Close()

	info, err := p.Info()
	if err != nil {
		t.Fatalf("Info() failed: %v", err)
	}
	t.Logf("Probe: %s %s (serial %s, firmware %s)", info.Vendor, info.Model, info.SerialNumber, info.Firmware)
}
