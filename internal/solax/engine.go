package solax

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/pvbus/pvbus/internal/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Exchange failure classes. Framing and checksum failures discard the
// exchange; a handshake failure leaves the device status where the handshake
// got to.
var (
	ErrFraming   = errors.New("framing error")
	ErrChecksum  = errors.New("checksum mismatch")
	ErrProtocol  = errors.New("unrecognized control code")
	ErrHandshake = errors.New("insufficient handshake")
)

// Engine drives request/response exchanges with a Solax X1 Air inverter over
// the shared serial port. Like the Aurora engine, exclusive bus access during
// an exchange is the scheduler's responsibility.
type Engine struct {
	port        transport.Port
	timeout     time.Duration
	settleDelay time.Duration
	logger      zerolog.Logger
}

// NewEngine creates a protocol engine. timeout bounds each response read;
// settleDelay is the pause between consecutive handshake queries, which the
// device needs to not drop requests.
func NewEngine(port transport.Port, timeout, settleDelay time.Duration) *Engine {
	return &Engine{
		port:        port,
		timeout:     timeout,
		settleDelay: settleDelay,
		logger:      log.With().Str("component", "solax").Logger(),
	}
}

// readFrame accumulates response bytes one at a time until the bus goes
// quiet or a second frame's preamble shows up mid-buffer. Two frames can
// arrive back-to-back in one exchange; the stray leading 0xAA of the second
// frame is dropped and accumulation stops at the boundary.
func (e *Engine) readFrame() ([]byte, error) {
	var frame []byte
	deadline := time.Now().Add(e.timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		b, err := e.port.Read(1, remaining)
		if errors.Is(err, transport.ErrTimeout) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(frame) > 5 && b[0] == 0x55 && frame[len(frame)-1] == 0xAA {
			frame = frame[:len(frame)-1]
			break
		}
		frame = append(frame, b[0])
	}
	if len(frame) < minFrameLen {
		return frame, fmt.Errorf("%d bytes received: %w", len(frame), transport.ErrTimeout)
	}
	return frame, nil
}

// exchange runs one request/response cycle and dispatches the validated
// response by control group and code, updating the device's records in place.
// The raw response frame is returned so callers can pick fields out of
// registration replies. Status is not touched here; the handshake and the
// steady-state poll apply different status policies to the same failures.
func (e *Engine) exchange(inv *Inverter, request []byte) ([]byte, error) {
	if err := e.port.Flush(); err != nil {
		return nil, fmt.Errorf("flush before request: %w", err)
	}

	e.logger.Debug().Str("tx", hex.EncodeToString(request)).Msg("Request")
	if err := e.port.Write(request); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	response, err := e.readFrame()
	if err != nil {
		return nil, err
	}
	e.logger.Debug().Str("rx", hex.EncodeToString(response)).Msg("Response")

	if err := ValidateFrame(response); err != nil {
		if errors.Is(err, ErrFraming) {
			// stale bytes can trail a bad frame
			_ = e.port.Flush()
		}
		return nil, err
	}

	switch response[offsetGroup] {
	case GroupRegister:
		switch response[offsetCode] {
		case CodeDiscoveryReply, CodeAddressConfirmed, CodeRemoveConfirmed:
			return response, nil
		}
	case GroupRead:
		switch response[offsetCode] {
		case CodeLiveData:
			live, err := DecodeLiveData(response)
			if err != nil {
				return nil, err
			}
			inv.live = live
			return response, nil
		case CodeIdentity:
			id, err := DecodeIdentity(response)
			if err != nil {
				return nil, err
			}
			inv.identity = id
			return response, nil
		case CodeConfig:
			cfg, err := DecodeConfig(response)
			if err != nil {
				return nil, err
			}
			inv.config = cfg
			return response, nil
		}
	}
	return nil, fmt.Errorf("%w: group %02x code %02x", ErrProtocol,
		response[offsetGroup], response[offsetCode])
}

// InitInverter runs the registration handshake: discovery broadcast, address
// assignment, then the three confirmatory queries with a settle delay between
// each. All three queries must succeed to reach Online; otherwise the status
// stays wherever the handshake got to.
func (e *Engine) InitInverter(inv *Inverter) error {
	reply, err := e.exchange(inv, BroadcastRequest())
	if err == nil && len(reply) < offsetPayload+serialNumberLen {
		err = fmt.Errorf("%w: discovery reply truncated at %d bytes", ErrProtocol, len(reply))
	}
	if err != nil {
		inv.status = StatusUnregistered
		e.logger.Warn().Err(err).Msg("Discovery broadcast unanswered")
	} else {
		inv.serial = string(reply[offsetPayload : offsetPayload+serialNumberLen])
		e.logger.Info().Str("serial", inv.serial).Msg("Inverter discovered")
		if _, err := e.exchange(inv, RegisterRequest(reply, inv.address)); err == nil {
			inv.status = StatusRegistered
		} else {
			e.logger.Warn().Err(err).Msg("Address assignment not confirmed")
		}
	}

	confirmed := 0
	for _, request := range [][]byte{ConfigRequest(), IdentityRequest(), LiveDataRequest()} {
		time.Sleep(e.settleDelay)
		if _, err := e.exchange(inv, request); err == nil {
			confirmed++
		} else {
			e.logger.Warn().Err(err).Msg("Handshake query failed")
		}
	}

	if confirmed != 3 {
		return fmt.Errorf("%w: %d of 3 queries confirmed", ErrHandshake, confirmed)
	}
	inv.status = StatusOnline
	return nil
}

// PollData runs the steady-state live-data query.
func (e *Engine) PollData(inv *Inverter) error {
	if _, err := e.exchange(inv, LiveDataRequest()); err != nil {
		inv.status = StatusOffline
		return fmt.Errorf("live data query: %w", err)
	}
	inv.status = StatusOnline
	return nil
}
