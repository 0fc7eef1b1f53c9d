package probe

import (
	"fmt"
	"sync"
)

// ARM ADIv5 debug port registers (A[3:2]).
const (
	dpIDR      = 0x00 // read
	dpAbort    = 0x00 // write
	dpCtrlStat = 0x04
	dpSelect   = 0x08
	dpRdBuff   = 0x0C
)

// MEM-AP registers, bank 0.
const (
	apCSW = 0x00
	apTAR = 0x04
	apDRW = 0x0C
)

const (
	ctrlCDBGPWRUPREQ = 1 << 28
	ctrlCDBGPWRUPACK = 1 << 29
	ctrlCSYSPWRUPREQ = 1 << 30
	ctrlCSYSPWRUPACK = 1 << 31

	// abortClearAll clears STKCMPCLR, STKERRCLR, WDERRCLR and ORUNERRCLR.
	abortClearAll = 0x1E

	// cswWord32 selects 32-bit accesses with single auto-increment and the
	// HPROT/master-type bits Cortex-M debuggers conventionally use.
	cswWord32 = 0x23000012

	// tarWrap is the auto-increment boundary; TAR must be rewritten when a
	// block crosses it.
	tarWrap = 0x400

	powerUpPolls = 100
)

// CMSISDAPProbe implements Probe for CMSIS-DAP v2 probes in SWD mode.
type CMSISDAPProbe struct {
	transport packetTransport
	protocol  *CMSISDAPProtocol

	info      ProbeInfo
	dpidr     DPIDR
	connected bool

	mu sync.Mutex
}

// NewCMSISDAPProbe opens the USB device matching sel and queries its info.
func NewCMSISDAPProbe(sel Selector) (*CMSISDAPProbe, error) {
	transport, err := NewUSBTransport(sel)
	if err != nil {
		return nil, fmt.Errorf("failed to open USB device: %w", err)
	}

	p, err := newCMSISDAPProbe(transport)
	if err != nil {
		transport.Close()
		return nil, err
	}
	return p, nil
}

func newCMSISDAPProbe(transport packetTransport) (*CMSISDAPProbe, error) {
	p := &CMSISDAPProbe{
		transport: transport,
		protocol:  NewCMSISDAPProtocol(transport.GetPacketSize()),
	}
	if err := p.queryInfo(); err != nil {
		return nil, fmt.Errorf("failed to query device info: %w", err)
	}
	return p, nil
}

// queryInfo retrieves device information from the probe
func (p *CMSISDAPProbe) queryInfo() error {
	resp, err := p.transport.WriteRead(p.protocol.EncodeInfo(InfoVendorID))
	if err != nil {
		return err
	}
	vendor, _ := p.protocol.DecodeInfo(resp)

	info := func(id byte) string {
		resp, err := p.transport.WriteRead(p.protocol.EncodeInfo(id))
		if err != nil {
			return ""
		}
		s, _ := p.protocol.DecodeInfo(resp)
		return s
	}

	p.info = ProbeInfo{
		Name:         "CMSIS-DAP Probe",
		Vendor:       vendor,
		Model:        info(InfoProductID),
		SerialNumber: info(InfoSerialNum),
		Firmware:     info(InfoFirmwareVer),
		MinFrequency: 1000,
		MaxFrequency: 10_000_000,
	}
	return nil
}

// Info returns probe capabilities
func (p *CMSISDAPProbe) Info() (ProbeInfo, error) {
	return p.info, nil
}

// Attach brings up the SWD debug port, powers the debug domain and
// configures MEM-AP 0 for word access.
func (p *CMSISDAPProbe) Attach(target Target, opts AttachOptions) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	speed := opts.SpeedHz
	if speed == 0 {
		speed = DefaultSpeedHz
	}
	if speed < p.info.MinFrequency || speed > p.info.MaxFrequency {
		return nil, fmt.Errorf("frequency %d Hz out of range [%d, %d]",
			speed, p.info.MinFrequency, p.info.MaxFrequency)
	}

	if opts.UnderReset {
		if err := p.setReset(true); err != nil {
			return nil, fmt.Errorf("assert reset: %w", err)
		}
	}

	if err := p.connectSWD(speed); err != nil {
		return nil, err
	}
	if err := p.powerUp(); err != nil {
		return nil, err
	}
	if err := p.transfer(TransferRequest{AP: true, Addr: apCSW, Data: cswWord32}); err != nil {
		return nil, fmt.Errorf("configure MEM-AP: %w", err)
	}

	if opts.UnderReset {
		if err := p.setReset(false); err != nil {
			return nil, fmt.Errorf("release reset: %w", err)
		}
	}

	return &dapSession{probe: p, target: target}, nil
}

func (p *CMSISDAPProbe) connectSWD(speed int) error {
	resp, err := p.transport.WriteRead(p.protocol.EncodeConnect(PortSWD))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	port, err := p.protocol.DecodeConnect(resp)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if port != PortSWD {
		return fmt.Errorf("failed to connect to SWD (got port %d)", port)
	}
	p.connected = true

	if err := p.roundTrip(p.protocol.EncodeSetClock(uint32(speed)), p.protocol.DecodeSetClock); err != nil {
		return fmt.Errorf("set speed failed: %w", err)
	}
	if err := p.roundTrip(p.protocol.EncodeTransferConfigure(0, 64, 0), p.protocol.DecodeTransferConfigure); err != nil {
		return err
	}
	if err := p.roundTrip(p.protocol.EncodeSWDConfigure(0), p.protocol.DecodeSWDConfigure); err != nil {
		return err
	}

	// Line reset, JTAG-to-SWD select (0xE79E, LSB first), line reset, idle.
	ones := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	sequences := []struct {
		bits int
		data []byte
	}{
		{56, ones},
		{16, []byte{0x9E, 0xE7}},
		{56, ones},
		{8, []byte{0x00}},
	}
	for _, seq := range sequences {
		if err := p.roundTrip(p.protocol.EncodeSWJSequence(seq.bits, seq.data), p.protocol.DecodeSWJSequence); err != nil {
			return fmt.Errorf("SWD line reset: %w", err)
		}
	}

	ids, err := p.transferRead(TransferRequest{Read: true, Addr: dpIDR})
	if err != nil {
		return fmt.Errorf("read DPIDR: %w", err)
	}
	if ids[0] == 0 {
		return fmt.Errorf("read DPIDR: no debug port responded")
	}
	p.dpidr = ParseDPIDR(ids[0])
	return nil
}

func (p *CMSISDAPProbe) powerUp() error {
	err := p.transfer(
		TransferRequest{Addr: dpAbort, Data: abortClearAll},
		TransferRequest{Addr: dpSelect, Data: 0},
		TransferRequest{Addr: dpCtrlStat, Data: ctrlCSYSPWRUPREQ | ctrlCDBGPWRUPREQ},
	)
	if err != nil {
		return fmt.Errorf("power up debug domain: %w", err)
	}

	const acks = ctrlCSYSPWRUPACK | ctrlCDBGPWRUPACK
	for i := 0; i < powerUpPolls; i++ {
		vals, err := p.transferRead(TransferRequest{Read: true, Addr: dpCtrlStat})
		if err != nil {
			return fmt.Errorf("power up debug domain: %w", err)
		}
		if vals[0]&acks == acks {
			return nil
		}
	}
	return fmt.Errorf("power up debug domain: no acknowledge from target")
}

func (p *CMSISDAPProbe) setReset(asserted bool) error {
	var out byte = PinNRESET
	if asserted {
		out = 0
	}
	resp, err := p.transport.WriteRead(p.protocol.EncodeSWJPins(out, PinNRESET, 0))
	if err != nil {
		return err
	}
	_, err = p.protocol.DecodeSWJPins(resp)
	return err
}

func (p *CMSISDAPProbe) roundTrip(cmd []byte, decode func([]byte) error) error {
	resp, err := p.transport.WriteRead(cmd)
	if err != nil {
		return err
	}
	return decode(resp)
}

func (p *CMSISDAPProbe) transfer(reqs ...TransferRequest) error {
	_, err := p.transferRead(reqs...)
	return err
}

func (p *CMSISDAPProbe) transferRead(reqs ...TransferRequest) ([]uint32, error) {
	resp, err := p.transport.WriteRead(p.protocol.EncodeTransfer(0, reqs))
	if err != nil {
		return nil, err
	}
	return p.protocol.DecodeTransfer(resp, reqs)
}

// readWords reads count words starting at the word-aligned address addr.
func (p *CMSISDAPProbe) readWords(addr uint32, count int) ([]uint32, error) {
	words := make([]uint32, 0, count)
	maxBlock := p.protocol.MaxBlockWords()

	for len(words) < count {
		cur := addr + uint32(4*len(words))
		n := count - len(words)
		if toWrap := int(tarWrap-cur%tarWrap) / 4; n > toWrap {
			n = toWrap
		}
		if n > maxBlock {
			n = maxBlock
		}

		if err := p.transfer(TransferRequest{AP: true, Addr: apTAR, Data: cur}); err != nil {
			return nil, fmt.Errorf("set TAR 0x%08X: %w", cur, err)
		}
		resp, err := p.transport.WriteRead(p.protocol.EncodeTransferBlockRead(0, n, true, apDRW))
		if err != nil {
			return nil, fmt.Errorf("read 0x%08X: %w", cur, err)
		}
		block, err := p.protocol.DecodeTransferBlockRead(resp, n)
		if err != nil {
			return nil, fmt.Errorf("read 0x%08X: %w", cur, err)
		}
		words = append(words, block...)
	}
	return words, nil
}

// Close disconnects and releases resources
func (p *CMSISDAPProbe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected {
		_, _ = p.transport.WriteRead(p.protocol.EncodeDisconnect())
		p.connected = false
	}

	return p.transport.Close()
}

type dapSession struct {
	probe  *CMSISDAPProbe
	target Target
}

func (s *dapSession) Target() Target { return s.target }

// DPIDR returns the identification of the debug port read while attaching.
func (s *dapSession) DPIDR() DPIDR { return s.probe.dpidr }

func (s *dapSession) Core(index int) (Core, error) {
	if err := checkCoreIndex(index); err != nil {
		return nil, err
	}
	return &dapCore{probe: s.probe}, nil
}

func (s *dapSession) Close() error { return nil }

// dapCore accesses target memory through MEM-AP 0.
type dapCore struct {
	probe *CMSISDAPProbe
}

func (c *dapCore) ReadMemory(addr uint32, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}

	c.probe.mu.Lock()
	defer c.probe.mu.Unlock()

	start := addr &^ 3
	end := (uint64(addr) + uint64(len(buf)) + 3) &^ 3
	if end > 1<<32 {
		return fmt.Errorf("read of %d bytes at 0x%08X exceeds the address space", len(buf), addr)
	}
	words, err := c.probe.readWords(start, int((end-uint64(start))/4))
	if err != nil {
		return err
	}

	raw := make([]byte, 4*len(words))
	for i, w := range words {
		raw[4*i] = byte(w)
		raw[4*i+1] = byte(w >> 8)
		raw[4*i+2] = byte(w >> 16)
		raw[4*i+3] = byte(w >> 24)
	}
	copy(buf, raw[addr-start:])
	return nil
}

func (c *dapCore) WriteWord32(addr, value uint32) error {
	if addr%4 != 0 {
		return fmt.Errorf("%w: 0x%08X", ErrUnaligned, addr)
	}

	c.probe.mu.Lock()
	defer c.probe.mu.Unlock()

	// RDBUFF read completes the posted write and surfaces its ack.
	_, err := c.probe.transferRead(
		TransferRequest{AP: true, Addr: apTAR, Data: addr},
		TransferRequest{AP: true, Addr: apDRW, Data: value},
		TransferRequest{Read: true, Addr: dpRdBuff},
	)
	if err != nil {
		return fmt.Errorf("write 0x%08X: %w", addr, err)
	}
	return nil
}
