package aurora

import "github.com/pvbus/pvbus/internal/checksum"

// Function selects the request family. The poll cycle only uses FunctionMeasure
// and FunctionCumulatedEnergy; the rest of the family is kept so ad-hoc
// requests can be framed the same way.
type Function byte

const (
	FunctionState                Function = 50
	FunctionPartNumber           Function = 52
	FunctionVersion              Function = 58
	FunctionMeasure              Function = 59
	FunctionSerialNumber         Function = 63
	FunctionManufactureDate      Function = 65
	FunctionFlags                Function = 67
	FunctionCumulatedFloatEnergy Function = 68
	FunctionTimeDate             Function = 70
	FunctionFirmware             Function = 72
	FunctionCumulatedEnergy      Function = 78
	FunctionAlarms               Function = 86
)

const (
	requestLen  = 10
	responseLen = 8
)

// BuildRequest frames one 10-byte request. The CRC covers the first 8 bytes
// (the four zero-padding bytes included) and is appended little-endian.
func BuildRequest(address byte, function Function, command byte, global bool) []byte {
	frame := make([]byte, requestLen)
	frame[0] = address
	frame[1] = byte(function)
	frame[2] = command
	if global {
		frame[3] = 1
	}
	crc := checksum.Frame16(frame[:requestLen-2])
	frame[8] = byte(crc)
	frame[9] = byte(crc >> 8)
	return frame
}

// VerifyRequest reports whether a 10-byte request frame carries a valid CRC
// trailer.
func VerifyRequest(frame []byte) bool {
	if len(frame) != requestLen {
		return false
	}
	crc := checksum.Frame16(frame[:requestLen-2])
	return frame[8] == byte(crc) && frame[9] == byte(crc>>8)
}
