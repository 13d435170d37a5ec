// Package transport provides the half-duplex serial channel shared by both
// protocol engines. Only one engine may use the bus at a time; exclusion is
// enforced by the polling scheduler, not here.
package transport

import (
	"errors"
	"time"
)

// ErrTimeout is returned when fewer bytes than requested arrive within the
// read deadline.
var ErrTimeout = errors.New("transport: read timeout")

// Port is the contract both protocol engines consume: blocking write, blocking
// read with a deadline, and a receive-buffer flush before each exchange.
type Port interface {
	// Flush discards any bytes pending in the receive buffer.
	Flush() error

	// Write sends the full buffer to the bus.
	Write(data []byte) error

	// Read returns exactly count bytes, or the bytes received so far together
	// with ErrTimeout once the deadline expires.
	Read(count int, timeout time.Duration) ([]byte, error)
}
