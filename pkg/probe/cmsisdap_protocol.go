package probe

import (
	"encoding/binary"
	"fmt"
)

// CMSIS-DAP Command IDs
const (
	CmdInfo              = 0x00
	CmdHostStatus        = 0x01
	CmdConnect           = 0x02
	CmdDisconnect        = 0x03
	CmdTransferConfigure = 0x04
	CmdTransfer          = 0x05
	CmdTransferBlock     = 0x06
	CmdResetTarget       = 0x0A
	CmdSWJPins           = 0x10
	CmdSWJClock          = 0x11
	CmdSWJSequence       = 0x12
	CmdSWDConfigure      = 0x13
)

// DAP_Info Info IDs
const (
	InfoVendorID     = 0x01
	InfoProductID    = 0x02
	InfoSerialNum    = 0x03
	InfoFirmwareVer  = 0x04
	InfoCapabilities = 0xF0
	InfoPacketCount  = 0xFE
	InfoPacketSize   = 0xFF
)

// Connection ports
const (
	PortDefault = 0
	PortSWD     = 1
	PortJTAG    = 2
)

// Status codes
const (
	StatusOK    = 0x00
	StatusError = 0xFF
)

// Transfer acknowledge values reported by DAP_Transfer and DAP_TransferBlock.
const (
	AckOK    = 0x01
	AckWait  = 0x02
	AckFault = 0x04
	// AckProtocolError is set when the SWD parity check failed.
	AckProtocolError = 0x08
)

// SWJ pin bits for DAP_SWJ_Pins.
const (
	PinSWCLK  = 1 << 0
	PinSWDIO  = 1 << 1
	PinNTRST  = 1 << 5
	PinNRESET = 1 << 7
)

// TransferRequest is one DP or AP register access inside a DAP_Transfer.
type TransferRequest struct {
	AP   bool   // access port (true) or debug port (false)
	Read bool   // read (true) or write (false)
	Addr byte   // register address, only A[3:2] are significant
	Data uint32 // write value, ignored for reads
}

// requestByte packs the request into the DAP_Transfer request format.
func (r TransferRequest) requestByte() byte {
	b := r.Addr & 0x0C
	if r.AP {
		b |= 0x01
	}
	if r.Read {
		b |= 0x02
	}
	return b
}

// AckError reports a transfer that the target did not acknowledge with OK.
type AckError struct {
	Command byte
	Ack     byte
}

func (e *AckError) Error() string {
	switch {
	case e.Ack&AckProtocolError != 0:
		return fmt.Sprintf("cmsis-dap: command 0x%02X: SWD protocol error", e.Command)
	case e.Ack&0x07 == AckWait:
		return fmt.Sprintf("cmsis-dap: command 0x%02X: target responded WAIT", e.Command)
	case e.Ack&0x07 == AckFault:
		return fmt.Sprintf("cmsis-dap: command 0x%02X: target responded FAULT", e.Command)
	default:
		return fmt.Sprintf("cmsis-dap: command 0x%02X: unexpected ack 0x%02X", e.Command, e.Ack)
	}
}

// CMSISDAPProtocol handles encoding/decoding of CMSIS-DAP commands
type CMSISDAPProtocol struct {
	PacketSize int
}

// NewCMSISDAPProtocol creates a new protocol handler
func NewCMSISDAPProtocol(packetSize int) *CMSISDAPProtocol {
	return &CMSISDAPProtocol{
		PacketSize: packetSize,
	}
}

// MaxBlockWords returns how many 32-bit words fit in one DAP_TransferBlock
// response (header is command, 16-bit count, ack).
func (p *CMSISDAPProtocol) MaxBlockWords() int {
	n := (p.PacketSize - 4) / 4
	if n < 1 {
		return 1
	}
	return n
}

// EncodeInfo builds a DAP_Info command
func (p *CMSISDAPProtocol) EncodeInfo(infoID byte) []byte {
	return []byte{CmdInfo, infoID}
}

// DecodeInfo parses a DAP_Info response
func (p *CMSISDAPProtocol) DecodeInfo(resp []byte) (string, error) {
	if len(resp) < 2 {
		return "", fmt.Errorf("response too short")
	}
	if resp[0] != CmdInfo {
		return "", fmt.Errorf("invalid command ID: 0x%02X", resp[0])
	}

	length := int(resp[1])
	if len(resp) < 2+length {
		return "", fmt.Errorf("incomplete info string")
	}

	// Info strings are NUL terminated on most firmwares.
	s := resp[2 : 2+length]
	for i, c := range s {
		if c == 0 {
			s = s[:i]
			break
		}
	}
	return string(s), nil
}

// EncodeConnect builds a DAP_Connect command
func (p *CMSISDAPProtocol) EncodeConnect(port byte) []byte {
	return []byte{CmdConnect, port}
}

// DecodeConnect parses a DAP_Connect response
func (p *CMSISDAPProtocol) DecodeConnect(resp []byte) (byte, error) {
	if len(resp) < 2 {
		return 0, fmt.Errorf("response too short")
	}
	if resp[0] != CmdConnect {
		return 0, fmt.Errorf("invalid command ID")
	}
	if resp[1] == 0 {
		return 0, fmt.Errorf("connection failed")
	}
	return resp[1], nil
}

// EncodeDisconnect builds a DAP_Disconnect command
func (p *CMSISDAPProtocol) EncodeDisconnect() []byte {
	return []byte{CmdDisconnect}
}

// DecodeDisconnect parses a DAP_Disconnect response
func (p *CMSISDAPProtocol) DecodeDisconnect(resp []byte) error {
	return decodeStatus(resp, CmdDisconnect, "disconnect")
}

// EncodeSetClock builds a DAP_SWJ_Clock command
func (p *CMSISDAPProtocol) EncodeSetClock(hz uint32) []byte {
	cmd := make([]byte, 5)
	cmd[0] = CmdSWJClock
	binary.LittleEndian.PutUint32(cmd[1:], hz)
	return cmd
}

// DecodeSetClock parses response
func (p *CMSISDAPProtocol) DecodeSetClock(resp []byte) error {
	return decodeStatus(resp, CmdSWJClock, "set clock")
}

// EncodeTransferConfigure builds a DAP_TransferConfigure command
func (p *CMSISDAPProtocol) EncodeTransferConfigure(idleCycles byte, waitRetry, matchRetry uint16) []byte {
	cmd := make([]byte, 6)
	cmd[0] = CmdTransferConfigure
	cmd[1] = idleCycles
	binary.LittleEndian.PutUint16(cmd[2:], waitRetry)
	binary.LittleEndian.PutUint16(cmd[4:], matchRetry)
	return cmd
}

// DecodeTransferConfigure parses response
func (p *CMSISDAPProtocol) DecodeTransferConfigure(resp []byte) error {
	return decodeStatus(resp, CmdTransferConfigure, "transfer configure")
}

// EncodeSWDConfigure builds a DAP_SWD_Configure command
func (p *CMSISDAPProtocol) EncodeSWDConfigure(config byte) []byte {
	return []byte{CmdSWDConfigure, config}
}

// DecodeSWDConfigure parses response
func (p *CMSISDAPProtocol) DecodeSWDConfigure(resp []byte) error {
	return decodeStatus(resp, CmdSWDConfigure, "swd configure")
}

// EncodeSWJSequence builds a DAP_SWJ_Sequence command clocking out bits
// LSB first on SWDIO/TMS. A bit count of 256 is encoded as zero.
func (p *CMSISDAPProtocol) EncodeSWJSequence(bits int, data []byte) []byte {
	cmd := make([]byte, 2+(bits+7)/8)
	cmd[0] = CmdSWJSequence
	cmd[1] = byte(bits & 0xFF)
	copy(cmd[2:], data)
	return cmd
}

// DecodeSWJSequence parses response
func (p *CMSISDAPProtocol) DecodeSWJSequence(resp []byte) error {
	return decodeStatus(resp, CmdSWJSequence, "swj sequence")
}

// EncodeSWJPins builds a DAP_SWJ_Pins command
func (p *CMSISDAPProtocol) EncodeSWJPins(output, selectMask byte, waitMicros uint32) []byte {
	cmd := make([]byte, 7)
	cmd[0] = CmdSWJPins
	cmd[1] = output
	cmd[2] = selectMask
	binary.LittleEndian.PutUint32(cmd[3:], waitMicros)
	return cmd
}

// DecodeSWJPins parses response and returns the pin input state
func (p *CMSISDAPProtocol) DecodeSWJPins(resp []byte) (byte, error) {
	if len(resp) < 2 {
		return 0, fmt.Errorf("response too short")
	}
	if resp[0] != CmdSWJPins {
		return 0, fmt.Errorf("invalid command ID")
	}
	return resp[1], nil
}

// EncodeTransfer builds a DAP_Transfer command
func (p *CMSISDAPProtocol) EncodeTransfer(dapIndex byte, reqs []TransferRequest) []byte {
	cmd := make([]byte, 3, 3+5*len(reqs))
	cmd[0] = CmdTransfer
	cmd[1] = dapIndex
	cmd[2] = byte(len(reqs))
	for _, r := range reqs {
		cmd = append(cmd, r.requestByte())
		if !r.Read {
			cmd = binary.LittleEndian.AppendUint32(cmd, r.Data)
		}
	}
	return cmd
}

// DecodeTransfer parses a DAP_Transfer response and returns one value per
// read request, in request order.
func (p *CMSISDAPProtocol) DecodeTransfer(resp []byte, reqs []TransferRequest) ([]uint32, error) {
	if len(resp) < 3 {
		return nil, fmt.Errorf("response too short")
	}
	if resp[0] != CmdTransfer {
		return nil, fmt.Errorf("invalid command ID")
	}
	if ack := resp[2]; ack != AckOK {
		return nil, &AckError{Command: CmdTransfer, Ack: ack}
	}
	if int(resp[1]) != len(reqs) {
		return nil, fmt.Errorf("transfer executed %d of %d requests", resp[1], len(reqs))
	}

	values := make([]uint32, 0, len(reqs))
	offset := 3
	for _, r := range reqs {
		if !r.Read {
			continue
		}
		if offset+4 > len(resp) {
			return nil, fmt.Errorf("incomplete transfer data")
		}
		values = append(values, binary.LittleEndian.Uint32(resp[offset:]))
		offset += 4
	}
	return values, nil
}

// EncodeTransferBlockRead builds a DAP_TransferBlock reading count words
// from a single register.
func (p *CMSISDAPProtocol) EncodeTransferBlockRead(dapIndex byte, count int, ap bool, addr byte) []byte {
	cmd := make([]byte, 5)
	cmd[0] = CmdTransferBlock
	cmd[1] = dapIndex
	binary.LittleEndian.PutUint16(cmd[2:], uint16(count))
	cmd[4] = TransferRequest{AP: ap, Read: true, Addr: addr}.requestByte()
	return cmd
}

// DecodeTransferBlockRead parses response and returns the words read
func (p *CMSISDAPProtocol) DecodeTransferBlockRead(resp []byte, count int) ([]uint32, error) {
	if len(resp) < 4 {
		return nil, fmt.Errorf("response too short")
	}
	if resp[0] != CmdTransferBlock {
		return nil, fmt.Errorf("invalid command ID")
	}
	if ack := resp[3]; ack != AckOK {
		return nil, &AckError{Command: CmdTransferBlock, Ack: ack}
	}
	if done := int(binary.LittleEndian.Uint16(resp[1:])); done != count {
		return nil, fmt.Errorf("block transfer executed %d of %d words", done, count)
	}
	if len(resp) < 4+4*count {
		return nil, fmt.Errorf("incomplete block data")
	}

	words := make([]uint32, count)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(resp[4+4*i:])
	}
	return words, nil
}

// EncodeResetTarget builds a DAP_ResetTarget command
func (p *CMSISDAPProtocol) EncodeResetTarget() []byte {
	return []byte{CmdResetTarget}
}

// DecodeResetTarget parses response
func (p *CMSISDAPProtocol) DecodeResetTarget(resp []byte) error {
	return decodeStatus(resp, CmdResetTarget, "reset target")
}

func decodeStatus(resp []byte, cmd byte, what string) error {
	if len(resp) < 2 {
		return fmt.Errorf("response too short")
	}
	if resp[0] != cmd {
		return fmt.Errorf("invalid command ID")
	}
	if resp[1] != StatusOK {
		return fmt.Errorf("%s failed", what)
	}
	return nil
}
