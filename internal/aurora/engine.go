// Package aurora implements the Aurora/ABB RS485 protocol: fixed 10-byte
// requests, 8-byte responses carrying a transmission-state byte and a
// big-endian payload, and the availability-gated poll cycle.
package aurora

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/pvbus/pvbus/internal/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Engine drives request/response exchanges for every Aurora device on the
// bus. It must be the only user of the transport while an exchange runs; the
// scheduler guarantees that.
type Engine struct {
	port    transport.Port
	timeout time.Duration
	logger  zerolog.Logger
}

// NewEngine creates a protocol engine over the shared serial port. timeout
// bounds the blocking read of each 8-byte response.
func NewEngine(port transport.Port, timeout time.Duration) *Engine {
	return &Engine{
		port:    port,
		timeout: timeout,
		logger:  log.With().Str("component", "aurora").Logger(),
	}
}

// request runs one exchange: flush stale receive data, write the framed
// request, read exactly 8 response bytes, and check the transmission state.
func (e *Engine) request(address byte, function Function, command byte, global bool) ([]byte, error) {
	if err := e.port.Flush(); err != nil {
		return nil, fmt.Errorf("flush before request: %w", err)
	}

	frame := BuildRequest(address, function, command, global)
	e.logger.Debug().
		Uint8("address", address).
		Str("tx", hex.EncodeToString(frame)).
		Msg("Request")

	if err := e.port.Write(frame); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	response, err := e.port.Read(responseLen, e.timeout)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	e.logger.Debug().
		Uint8("address", address).
		Str("rx", hex.EncodeToString(response)).
		Msg("Response")

	if state := ParseTransmissionState(response[0]); state != StateOK {
		return nil, &TransmissionError{State: state}
	}
	return response, nil
}

// decodeFloat reads the measurement payload: an IEEE 754 float at bytes 2-5,
// big-endian.
func decodeFloat(response []byte) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(response[2:6]))
}

// decodeEnergy reads an energy payload: a signed 32-bit integer at bytes 2-5,
// big-endian, in Wh, scaled to kWh.
func decodeEnergy(response []byte) float64 {
	raw := int32(binary.BigEndian.Uint32(response[2:6]))
	return float64(raw) * 0.001
}

// InitInverter checks that the inverter is communicating and producing. Only a
// strictly positive grid voltage moves the device Online; everything else,
// including a clean zero reading, leaves it Offline.
func (e *Engine) InitInverter(inv *Inverter) error {
	response, err := e.request(inv.address, FunctionMeasure, byte(MeasureGridVoltage), false)
	if err != nil {
		inv.status = Offline
		return fmt.Errorf("availability check for inverter %d: %w", inv.address, err)
	}

	if v := decodeFloat(response); v > 0 {
		inv.status = Online
		inv.lastContact = time.Now()
		return nil
	}

	inv.status = Offline
	return fmt.Errorf("inverter %d reports no grid voltage", inv.address)
}

// PollData issues the fixed measurement sequence. The first failed request
// aborts the remaining batch for this cycle; there is no per-request retry.
func (e *Engine) PollData(inv *Inverter) error {
	for _, code := range PollSequence {
		response, err := e.request(inv.address, FunctionMeasure, byte(code), false)
		if err != nil {
			inv.status = Offline
			return fmt.Errorf("measurement %d on inverter %d: %w", code, inv.address, err)
		}
		if !inv.measurements.Update(code, decodeFloat(response)) {
			e.logger.Warn().
				Uint8("code", byte(code)).
				Msg("Measurement code not supported")
		}
		inv.lastContact = time.Now()
	}
	return nil
}

// RequestEnergyTotals refreshes the six cumulative-energy counters.
func (e *Engine) RequestEnergyTotals(inv *Inverter) error {
	for _, period := range energySequence {
		response, err := e.request(inv.address, FunctionCumulatedEnergy, byte(period), false)
		if err != nil {
			inv.status = Offline
			return fmt.Errorf("energy counter %d on inverter %d: %w", period, inv.address, err)
		}
		inv.energy.set(period, decodeEnergy(response))
		inv.lastContact = time.Now()
	}
	return nil
}

// PollInverter runs one full poll: availability check, measurement batch,
// energy counters. Last contact is stamped once more when the whole sequence
// succeeds.
func (e *Engine) PollInverter(inv *Inverter) error {
	if err := e.InitInverter(inv); err != nil {
		return err
	}
	if err := e.PollData(inv); err != nil {
		return err
	}
	if err := e.RequestEnergyTotals(inv); err != nil {
		return err
	}
	inv.lastContact = time.Now()
	return nil
}
