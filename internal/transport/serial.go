package transport

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goburrow/serial"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// readSlice is the blocking window of a single low-level read. Per-call
// deadlines are built by looping reads of this length, so it bounds how far a
// Read can overshoot its timeout.
const readSlice = 20 * time.Millisecond

// SerialPort implements Port over an RS485 serial device.
type SerialPort struct {
	port   io.ReadWriteCloser
	logger zerolog.Logger
}

// OpenSerial opens the RS485 device at the given baud rate (8N1 framing).
func OpenSerial(device string, baudRate int) (*SerialPort, error) {
	port, err := serial.Open(&serial.Config{
		Address:  device,
		BaudRate: baudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  readSlice,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial device %s: %w", device, err)
	}
	return newSerialPort(port), nil
}

// newSerialPort wraps an already-open device; split out so tests can inject a
// fake stream.
func newSerialPort(port io.ReadWriteCloser) *SerialPort {
	return &SerialPort{
		port:   port,
		logger: log.With().Str("component", "transport").Logger(),
	}
}

// Write sends the whole buffer to the bus.
func (s *SerialPort) Write(data []byte) error {
	written := 0
	for written < len(data) {
		n, err := s.port.Write(data[written:])
		if err != nil {
			return fmt.Errorf("serial write failed after %d bytes: %w", written, err)
		}
		written += n
	}
	return nil
}

// Read returns exactly count bytes or whatever arrived plus ErrTimeout.
func (s *SerialPort) Read(count int, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 0, count)
	chunk := make([]byte, count)

	for len(buf) < count {
		n, err := s.port.Read(chunk[:count-len(buf)])
		buf = append(buf, chunk[:n]...)
		if err != nil && !errors.Is(err, serial.ErrTimeout) {
			return buf, fmt.Errorf("serial read failed: %w", err)
		}
		if len(buf) == count {
			break
		}
		if time.Now().After(deadline) {
			s.logger.Debug().
				Int("wanted", count).
				Int("got", len(buf)).
				Dur("timeout", timeout).
				Msg("Read deadline expired")
			return buf, ErrTimeout
		}
	}
	return buf, nil
}

// Flush drains whatever is pending in the receive buffer.
func (s *SerialPort) Flush() error {
	chunk := make([]byte, 64)
	discarded := 0
	for {
		n, err := s.port.Read(chunk)
		discarded += n
		if err != nil {
			if errors.Is(err, serial.ErrTimeout) {
				break
			}
			return fmt.Errorf("serial flush failed: %w", err)
		}
		if n == 0 {
			break
		}
	}
	if discarded > 0 {
		s.logger.Debug().Int("bytes", discarded).Msg("Flushed stale receive data")
	}
	return nil
}

// Close releases the underlying device.
func (s *SerialPort) Close() error {
	return s.port.Close()
}
