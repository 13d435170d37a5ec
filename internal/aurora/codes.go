package aurora

// MeasureCode selects which physical quantity a measurement request targets.
type MeasureCode byte

const (
	MeasureGridVoltage         MeasureCode = 1
	MeasureGridCurrent         MeasureCode = 2
	MeasureGridPower           MeasureCode = 3
	MeasureFrequency           MeasureCode = 4
	MeasureBusVoltage          MeasureCode = 5
	MeasureLeakageCurrentDC    MeasureCode = 6
	MeasureLeakageCurrent      MeasureCode = 7
	MeasureInput1Power         MeasureCode = 8
	MeasureInput2Power         MeasureCode = 9
	MeasureInverterTemperature MeasureCode = 21
	MeasureBoosterTemperature  MeasureCode = 22
	MeasureInput1Voltage       MeasureCode = 23
	MeasureInput1Current       MeasureCode = 25
	MeasureInput2Voltage       MeasureCode = 26
	MeasureInput2Current       MeasureCode = 27
	MeasureIsolationResistance MeasureCode = 30
	MeasureBusVoltageDCDC      MeasureCode = 31
	MeasureAverageGridVoltage  MeasureCode = 32
	MeasureBusVoltageMid       MeasureCode = 33
	MeasurePowerPeak           MeasureCode = 34
	MeasurePowerPeakToday      MeasureCode = 35
	MeasureHeatsinkTemperature MeasureCode = 49
)

// measureNames maps the supported codes to their telemetry field names.
// Codes outside this map are ignored by MeasurementSet.Update.
var measureNames = map[MeasureCode]string{
	MeasureGridVoltage:         "grid",
	MeasureGridCurrent:         "current",
	MeasureGridPower:           "gridpower",
	MeasureFrequency:           "frequency",
	MeasureBusVoltage:          "vbulk",
	MeasureLeakageCurrentDC:    "ileakdc",
	MeasureLeakageCurrent:      "ileak",
	MeasureInput1Power:         "pin1",
	MeasureInput2Power:         "pin2",
	MeasureInverterTemperature: "invertertemperature",
	MeasureBoosterTemperature:  "boostertemperature",
	MeasureInput1Voltage:       "input1voltage",
	MeasureInput1Current:       "input1current",
	MeasureInput2Voltage:       "input2voltage",
	MeasureInput2Current:       "input2current",
	MeasureIsolationResistance: "isolationresistance",
	MeasureBusVoltageDCDC:      "vbulkdcdc",
	MeasureAverageGridVoltage:  "averagegridvoltage",
	MeasureBusVoltageMid:       "vbulkmid",
	MeasurePowerPeak:           "powerpeak",
	MeasurePowerPeakToday:      "powerpeaktoday",
	MeasureHeatsinkTemperature: "heatsinktemperature",
}

// milliwattCodes lists the power-denominated codes whose raw value arrives in
// milliwatts and is stored scaled by 0.001.
var milliwattCodes = map[MeasureCode]bool{
	MeasureGridPower:      true,
	MeasureInput1Power:    true,
	MeasureInput2Power:    true,
	MeasurePowerPeak:      true,
	MeasurePowerPeakToday: true,
}

// PollSequence is the fixed request order of one measurement poll. The bus is
// half-duplex, so requests are issued strictly in this order, one outstanding
// exchange at a time.
var PollSequence = []MeasureCode{
	MeasureGridVoltage,
	MeasureGridCurrent,
	MeasureGridPower,
	MeasureFrequency,
	MeasureBusVoltage,
	MeasureLeakageCurrent,
	MeasureLeakageCurrentDC,
	MeasureInput1Power,
	MeasureInput2Power,
	MeasureInverterTemperature,
	MeasureBoosterTemperature,
	MeasureInput1Current,
	MeasureInput1Voltage,
	MeasureInput2Current,
	MeasureInput2Voltage,
	MeasurePowerPeak,
	MeasurePowerPeakToday,
}

// MeasurementSet holds the decoded measurements keyed by code. Only supported
// codes are ever written; everything else keeps its zero default.
type MeasurementSet map[MeasureCode]float64

// Update stores the decoded value for code, applying the milliwatt scaling
// where the wire unit requires it. It reports whether the code is supported.
func (m MeasurementSet) Update(code MeasureCode, raw float32) bool {
	if _, ok := measureNames[code]; !ok {
		return false
	}
	value := float64(raw)
	if milliwattCodes[code] {
		value *= 0.001
	}
	m[code] = value
	return true
}

// Name returns the telemetry field name for a supported code.
func (c MeasureCode) Name() (string, bool) {
	name, ok := measureNames[c]
	return name, ok
}
