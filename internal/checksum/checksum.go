// Package checksum implements the two frame checksums used on the RS485 bus.
package checksum

import "github.com/sigurn/crc16"

// frameTable drives the Aurora frame CRC: reflected CRC-16, polynomial 0x1021
// (0x8408 in LSB-first form), initial register 0xFFFF, output inverted.
var frameTable = crc16.MakeTable(crc16.Params{
	Poly:   0x1021,
	Init:   0xFFFF,
	RefIn:  true,
	RefOut: true,
	XorOut: 0xFFFF,
	Check:  0x906E,
	Name:   "CRC-16/X-25",
})

// Frame16 returns the Aurora frame CRC over data. The caller appends it
// little-endian.
func Frame16(data []byte) uint16 {
	return crc16.Checksum(data, frameTable)
}

// Sum16 returns the plain unsigned 16-bit sum of every byte in data. The Solax
// framing appends it big-endian.
func Sum16(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return sum
}
