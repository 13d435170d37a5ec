package aurora

import "fmt"

// TransmissionState is the response status byte of an exchange. Anything other
// than StateOK fails the containing request.
type TransmissionState byte

const (
	StateOK                 TransmissionState = 0
	StateNotImplemented     TransmissionState = 51
	StateVariableNotExist   TransmissionState = 52
	StateValueOutOfRange    TransmissionState = 53
	StateEEPROMError        TransmissionState = 54
	StateNotServiceMode     TransmissionState = 55
	StateInternalMicroError TransmissionState = 56
	StateNotExecuted        TransmissionState = 57
	StateRetry              TransmissionState = 58
	StateUnknown            TransmissionState = 0xFF
)

// ParseTransmissionState maps a raw status byte onto the closed enumeration;
// unrecognized codes collapse to StateUnknown.
func ParseTransmissionState(code byte) TransmissionState {
	switch TransmissionState(code) {
	case StateOK, StateNotImplemented, StateVariableNotExist, StateValueOutOfRange,
		StateEEPROMError, StateNotServiceMode, StateInternalMicroError,
		StateNotExecuted, StateRetry:
		return TransmissionState(code)
	default:
		return StateUnknown
	}
}

// String returns the state name.
func (s TransmissionState) String() string {
	switch s {
	case StateOK:
		return "ok"
	case StateNotImplemented:
		return "command_not_implemented"
	case StateVariableNotExist:
		return "variable_does_not_exist"
	case StateValueOutOfRange:
		return "value_out_of_range"
	case StateEEPROMError:
		return "eeprom_not_accessible"
	case StateNotServiceMode:
		return "not_in_service_mode"
	case StateInternalMicroError:
		return "internal_micro_error"
	case StateNotExecuted:
		return "command_not_executed"
	case StateRetry:
		return "variable_not_available_retry"
	default:
		return "unknown"
	}
}

// TransmissionError carries the non-OK state a response reported.
type TransmissionError struct {
	State TransmissionState
}

func (e *TransmissionError) Error() string {
	return fmt.Sprintf("inverter reported transmission state %s", e.State)
}
