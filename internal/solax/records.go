package solax

import (
	"encoding/binary"
	"fmt"
)

// RunMode is the inverter operating state reported in the live-data record.
type RunMode uint16

const (
	RunModeWait RunMode = iota
	RunModeCheck
	RunModeNormal
	RunModeFault
	RunModePermanentFault
	RunModeUpdate
)

func (m RunMode) String() string {
	switch m {
	case RunModeWait:
		return "Wait"
	case RunModeCheck:
		return "Check"
	case RunModeNormal:
		return "Normal"
	case RunModeFault:
		return "Fault"
	case RunModePermanentFault:
		return "PermanentFault"
	case RunModeUpdate:
		return "UpdateMode"
	default:
		return "Unknown"
	}
}

// ErrorCode is the fault class reported in the live-data record.
type ErrorCode uint32

const (
	ErrorNone ErrorCode = iota
	ErrorMainsLost
	ErrorGridVolt
	ErrorGridFreq
	ErrorPvVolt
	ErrorIsolation
	ErrorTemperatureOver
	ErrorFan
	ErrorOtherDevice
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorNone:
		return "None"
	case ErrorMainsLost:
		return "MainsLostFault"
	case ErrorGridVolt:
		return "GridVoltFault"
	case ErrorGridFreq:
		return "GridFreqFault"
	case ErrorPvVolt:
		return "PvVoltFault"
	case ErrorIsolation:
		return "IsolationFault"
	case ErrorTemperatureOver:
		return "TemperatureOverFault"
	case ErrorFan:
		return "FanFault"
	case ErrorOtherDevice:
		return "OtherDeviceFault"
	default:
		return "Unknown"
	}
}

// SafetyStandard is the grid code configured on the inverter. The numbering
// follows the configuration record; values outside the table render Unknown.
type SafetyStandard uint16

var safetyNames = []string{
	"VDE0126",
	"VDE4105",
	"AS4777",
	"G98",
	"C10_11",
	"TOR",
	"EN50438_NL",
	"Denmark2019_W",
	"CEB",
	"Cyprus2019",
	"cNRS097_2_1",
	"VDE0126_Greece",
	"UTE_C15_712_Fr",
	"IEC61727",
	"G99",
	"CQC",
	"VDE0126_Greece_is",
	"C15_712_Fr_island_50",
	"C15_712_Fr_island_60",
	"Guyana",
	"MEA_Thailand",
	"PEA_Thailand",
	"cNewZealand",
	"cIreland",
	"cCE10_21",
	"cRD1699",
	"EN50438_Sweden",
	"EN50549_PL",
	"Czech_PPDS",
	"EN50438_Norway",
	"EN50438_Portug",
	"cCQC_WideRange",
	"BRAZIL",
	"EN50438_CEZ",
	"IEC_Chile",
	"Sri_Lanka",
	"BRAZIL_240",
	"EN50549_SK",
	"EN50549_EU",
	"G98_NI",
	"Denmark2019_E",
}

func (s SafetyStandard) String() string {
	if int(s) < len(safetyNames) {
		return safetyNames[s]
	}
	return "Unknown"
}

// LiveData is the steady-state telemetry record. All scalar fields are raw
// register values; scaling to physical units is left to consumers.
type LiveData struct {
	Temperature  uint16
	EnergyToday  uint16
	DC1Voltage   uint16
	DC2Voltage   uint16
	DC1Current   uint16
	DC2Current   uint16
	Current      uint16
	Voltage      uint16
	Frequency    uint16
	ActivePower  uint16
	ImportActive uint32
	RuntimeTotal uint32
	RunMode      RunMode
	ErrorCode    ErrorCode
}

const liveDataMinLen = 61

// DecodeLiveData extracts the telemetry record from a validated frame. The
// byte offsets are fixed by the device and are counted from the frame start,
// not the payload start.
func DecodeLiveData(frame []byte) (LiveData, error) {
	if len(frame) < liveDataMinLen {
		return LiveData{}, fmt.Errorf("%w: live-data frame truncated at %d bytes", ErrProtocol, len(frame))
	}
	be := binary.BigEndian
	return LiveData{
		Temperature:  be.Uint16(frame[9:]),
		EnergyToday:  be.Uint16(frame[11:]),
		DC1Voltage:   be.Uint16(frame[13:]),
		DC2Voltage:   be.Uint16(frame[15:]),
		DC1Current:   be.Uint16(frame[17:]),
		DC2Current:   be.Uint16(frame[19:]),
		Current:      be.Uint16(frame[21:]),
		Voltage:      be.Uint16(frame[23:]),
		Frequency:    be.Uint16(frame[25:]),
		ActivePower:  be.Uint16(frame[27:]),
		ImportActive: be.Uint32(frame[31:]),
		RuntimeTotal: be.Uint32(frame[35:]),
		RunMode:      RunMode(be.Uint16(frame[39:])),
		ErrorCode:    ErrorCode(be.Uint32(frame[55:])),
	}, nil
}

// Identity is the device identification record. The text fields come off the
// wire as fixed-width ASCII and are kept verbatim.
type Identity struct {
	Phases          byte
	BusPower        string
	FirmwareVersion string
	ModuleName      string
	FactoryName     string
	SerialNumber    string
	RatedBusVoltage string
}

const identityMinLen = 68

// DecodeIdentity extracts the identification record from a validated frame.
func DecodeIdentity(frame []byte) (Identity, error) {
	if len(frame) < identityMinLen {
		return Identity{}, fmt.Errorf("%w: identity frame truncated at %d bytes", ErrProtocol, len(frame))
	}
	return Identity{
		Phases:          frame[9],
		BusPower:        string(frame[10:15]),
		FirmwareVersion: string(frame[16:20]),
		ModuleName:      string(frame[21:34]),
		FactoryName:     string(frame[35:48]),
		SerialNumber:    string(frame[49:62]),
		RatedBusVoltage: string(frame[63:66]),
	}, nil
}

// Config is the inverter configuration record: grid protection limits, the
// configured safety standard, and power management setpoints. The offsets are
// derived from observed frames; treat them as authoritative.
type Config struct {
	VpvStart            uint16
	TimeStart           uint16
	VacMinProtect       uint16
	VacMaxProtect       uint16
	FacMinProtect       uint16
	FacMaxProtect       uint16
	DciLimits           uint16
	Grid10MinAvgProtect uint16
	VacMinSlowProtect   uint16
	VacMaxSlowProtect   uint16
	FacMinSlowProtect   uint16
	FacMaxSlowProtect   uint16
	Safety              SafetyStandard

	PowerFactorMode byte
	PowerFactorData byte
	UpperLimit      byte
	LowerLimit      byte
	PowerLow        byte
	PowerUp         byte

	QPowerSet                 uint16
	FreqSetPoint              uint16
	FreqDroopRate             uint16
	QuVupRate                 uint16
	QuVlowRate                uint16
	PowerLimitsPercent        uint16
	Wgra                      uint16
	Wv2                       uint16
	Wv3                       uint16
	Wv4                       uint16
	QuRangeV1                 uint16
	QuRangeV4                 uint16
	VoltPowerLimit            uint16
	PowerManagerEnable        uint16
	GlobalSearchMPPTStart     uint16
	FreqProtectRestrictive    uint16
	QuDelayTimer              uint16
	FreqActivePowerDelayTimer uint16
}

const configMinLen = 79

// DecodeConfig extracts the configuration record from a validated frame.
func DecodeConfig(frame []byte) (Config, error) {
	if len(frame) < configMinLen {
		return Config{}, fmt.Errorf("%w: config frame truncated at %d bytes", ErrProtocol, len(frame))
	}
	be := binary.BigEndian
	return Config{
		VpvStart:            be.Uint16(frame[9:]),
		TimeStart:           be.Uint16(frame[11:]),
		VacMinProtect:       be.Uint16(frame[13:]),
		VacMaxProtect:       be.Uint16(frame[15:]),
		FacMinProtect:       be.Uint16(frame[17:]),
		FacMaxProtect:       be.Uint16(frame[19:]),
		DciLimits:           be.Uint16(frame[21:]),
		Grid10MinAvgProtect: be.Uint16(frame[23:]),
		VacMinSlowProtect:   be.Uint16(frame[25:]),
		VacMaxSlowProtect:   be.Uint16(frame[27:]),
		FacMinSlowProtect:   be.Uint16(frame[29:]),
		FacMaxSlowProtect:   be.Uint16(frame[31:]),
		Safety:              SafetyStandard(be.Uint16(frame[33:])),

		PowerFactorMode: frame[35],
		PowerFactorData: frame[36],
		UpperLimit:      frame[37],
		LowerLimit:      frame[38],
		PowerLow:        frame[39],
		PowerUp:         frame[40],

		QPowerSet:                 be.Uint16(frame[41:]),
		FreqSetPoint:              be.Uint16(frame[43:]),
		FreqDroopRate:             be.Uint16(frame[45:]),
		QuVupRate:                 be.Uint16(frame[47:]),
		QuVlowRate:                be.Uint16(frame[49:]),
		PowerLimitsPercent:        be.Uint16(frame[51:]),
		Wgra:                      be.Uint16(frame[53:]),
		Wv2:                       be.Uint16(frame[55:]),
		Wv3:                       be.Uint16(frame[57:]),
		Wv4:                       be.Uint16(frame[59:]),
		QuRangeV1:                 be.Uint16(frame[61:]),
		QuRangeV4:                 be.Uint16(frame[63:]),
		VoltPowerLimit:            be.Uint16(frame[65:]),
		PowerManagerEnable:        be.Uint16(frame[67:]),
		GlobalSearchMPPTStart:     be.Uint16(frame[69:]),
		FreqProtectRestrictive:    be.Uint16(frame[71:]),
		QuDelayTimer:              be.Uint16(frame[73:]),
		FreqActivePowerDelayTimer: be.Uint16(frame[75:]),
	}, nil
}
