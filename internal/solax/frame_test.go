package solax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestTrailers(t *testing.T) {
	// trailer values confirmed against captured bus traffic
	tests := []struct {
		name  string
		frame []byte
		hi    byte
		lo    byte
	}{
		{"broadcast", BroadcastRequest(), 0x01, 0x10},
		{"live data", LiveDataRequest(), 0x01, 0x1D},
		{"identity", IdentityRequest(), 0x01, 0x1E},
		{"config", ConfigRequest(), 0x01, 0x1F},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Len(t, tt.frame, 11)
			assert.Equal(t, tt.hi, tt.frame[9])
			assert.Equal(t, tt.lo, tt.frame[10])
		})
	}
}

func TestBuiltFramesValidate(t *testing.T) {
	reply := discoveryReply("SWXXXXXXXXXXXX")
	frames := [][]byte{
		BroadcastRequest(),
		LiveDataRequest(),
		IdentityRequest(),
		ConfigRequest(),
		RegisterRequest(reply, DefaultAddress),
	}
	for i, frame := range frames {
		assert.NoError(t, ValidateFrame(frame), "frame %d", i)
	}
}

func TestValidateFrameRejectsMutation(t *testing.T) {
	frame := LiveDataRequest()
	for i := 2; i < len(frame)-2; i++ {
		mutated := make([]byte, len(frame))
		copy(mutated, frame)
		mutated[i] ^= 0x01
		assert.ErrorIs(t, ValidateFrame(mutated), ErrChecksum, "mutated byte %d went undetected", i)
	}
}

func TestValidateFrameRejectsBadPreamble(t *testing.T) {
	frame := LiveDataRequest()
	frame[0] = 0xAB
	assert.ErrorIs(t, ValidateFrame(frame), ErrFraming)

	frame = LiveDataRequest()
	frame[1] = 0x56
	assert.ErrorIs(t, ValidateFrame(frame), ErrFraming)
}

func TestValidateFrameRejectsShortFrame(t *testing.T) {
	assert.ErrorIs(t, ValidateFrame([]byte{0xAA, 0x55, 0x01}), ErrFraming)
}

func TestRegisterRequestCarriesSerialAndAddress(t *testing.T) {
	serial := "X1AIR123456789"
	frame := RegisterRequest(discoveryReply(serial), 0x0A)

	require.Len(t, frame, 9+14+1+2)
	assert.Equal(t, []byte{0xAA, 0x55, 0x00, 0x00, 0x00, 0x00, 0x10, 0x01, 0x0F}, frame[:9])
	assert.Equal(t, serial, string(frame[9:23]))
	assert.Equal(t, byte(0x0A), frame[23])
	assert.NoError(t, ValidateFrame(frame))
}
