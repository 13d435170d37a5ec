package solax

import (
	"fmt"

	"github.com/pvbus/pvbus/internal/checksum"
)

// Frame layout:
//
//	[0xAA, 0x55, source, 0, 0, length_or_target, group, code, payload..., sumHi, sumLo]
//
// The trailer is the 16-bit additive sum of every preceding byte, appended
// big-endian.
const (
	preamble0 = 0xAA
	preamble1 = 0x55

	minFrameLen = 5

	offsetGroup   = 6
	offsetCode    = 7
	offsetPayload = 9
)

// Control groups discriminate the message category.
const (
	GroupRegister = 0x10
	GroupRead     = 0x11
	GroupWrite    = 0x12
	GroupExecute  = 0x13
)

// Control codes under GroupRegister.
const (
	CodeDiscoveryReply   = 0x80
	CodeAddressConfirmed = 0x81
	CodeRemoveConfirmed  = 0x82
)

// Control codes under GroupRead.
const (
	CodeLiveData = 0x82
	CodeIdentity = 0x83
	CodeConfig   = 0x84
)

// serialNumberLen is the length of the serial number carried in a discovery
// reply, starting at the payload offset.
const serialNumberLen = 14

func appendTrailer(frame []byte) []byte {
	sum := checksum.Sum16(frame)
	return append(frame, byte(sum>>8), byte(sum))
}

// BroadcastRequest frames the discovery broadcast that asks an unregistered
// inverter to announce itself.
func BroadcastRequest() []byte {
	return appendTrailer([]byte{0xAA, 0x55, 0x01, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00})
}

// RegisterRequest frames the address assignment. The serial number is copied
// verbatim from the discovery reply's payload.
func RegisterRequest(discoveryReply []byte, address byte) []byte {
	frame := make([]byte, 0, 9+serialNumberLen+1+2)
	frame = append(frame, 0xAA, 0x55, 0x00, 0x00, 0x00, 0x00, 0x10, 0x01, 0x0F)
	frame = append(frame, discoveryReply[offsetPayload:offsetPayload+serialNumberLen]...)
	frame = append(frame, address)
	return appendTrailer(frame)
}

// LiveDataRequest frames the steady-state telemetry query.
func LiveDataRequest() []byte {
	return appendTrailer([]byte{0xAA, 0x55, 0x01, 0x00, 0x00, 0x0A, 0x11, 0x02, 0x00})
}

// IdentityRequest frames the device identification query.
func IdentityRequest() []byte {
	return appendTrailer([]byte{0xAA, 0x55, 0x01, 0x00, 0x00, 0x0A, 0x11, 0x03, 0x00})
}

// ConfigRequest frames the configuration record query.
func ConfigRequest() []byte {
	return appendTrailer([]byte{0xAA, 0x55, 0x01, 0x00, 0x00, 0x0A, 0x11, 0x04, 0x00})
}

// ValidateFrame checks preamble and checksum trailer. It distinguishes the
// two failure classes so the engine can discard the exchange with the right
// error kind.
func ValidateFrame(frame []byte) error {
	if len(frame) < minFrameLen {
		return fmt.Errorf("%w: %d bytes", ErrFraming, len(frame))
	}
	if frame[0] != preamble0 || frame[1] != preamble1 {
		return fmt.Errorf("%w: bad preamble %02x %02x", ErrFraming, frame[0], frame[1])
	}
	sum := checksum.Sum16(frame[:len(frame)-2])
	hi, lo := frame[len(frame)-2], frame[len(frame)-1]
	if hi != byte(sum>>8) || lo != byte(sum) {
		return fmt.Errorf("%w: computed %04x, received %02x%02x", ErrChecksum, sum, hi, lo)
	}
	return nil
}
