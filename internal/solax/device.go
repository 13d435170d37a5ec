package solax

import (
	"fmt"
	"strconv"

	"github.com/pvbus/pvbus/internal/domain"
)

// DefaultAddress is the bus address assigned during registration.
const DefaultAddress byte = 0x0A

// Inverter is the per-device model: assigned address, handshake status, the
// serial number learned during discovery, and the three decoded records.
// Instances are owned by the scheduler's device collection and mutated only
// during a poll pass.
type Inverter struct {
	engine   *Engine
	address  byte
	status   Status
	serial   string
	live     LiveData
	identity Identity
	config   Config
}

// NewInverter creates a device model bound to the shared protocol engine.
func NewInverter(engine *Engine, address byte) *Inverter {
	return &Inverter{
		engine:  engine,
		address: address,
		status:  StatusOffline,
	}
}

// Address returns the address assigned to the device at registration.
func (i *Inverter) Address() byte {
	return i.address
}

// Status returns the current handshake status as text.
func (i *Inverter) Status() string {
	return i.status.String()
}

// Serial returns the serial number learned during discovery, empty before the
// first successful broadcast.
func (i *Inverter) Serial() string {
	return i.serial
}

// Live returns the latest decoded telemetry record.
func (i *Inverter) Live() LiveData {
	return i.live
}

// Identity returns the latest decoded identification record.
func (i *Inverter) Identity() Identity {
	return i.identity
}

// Config returns the latest decoded configuration record.
func (i *Inverter) Config() Config {
	return i.config
}

// Poll runs one cycle for this device: the registration handshake until the
// device reaches Online, the plain live-data query afterwards.
func (i *Inverter) Poll() error {
	if i.status != StatusOnline {
		return i.engine.InitInverter(i)
	}
	return i.engine.PollData(i)
}

// Flatten renders the device snapshot as telemetry pairs under
// {prefix}/{address}/{field}. All three records plus status are always
// rendered, stale or not.
func (i *Inverter) Flatten(topicPrefix string) []domain.Pair {
	base := fmt.Sprintf("%s/%d", topicPrefix, i.address)

	pairs := make([]domain.Pair, 0, 60)
	u16 := func(field string, v uint16) {
		pairs = append(pairs, domain.Pair{Topic: base + "/" + field, Payload: strconv.FormatUint(uint64(v), 10)})
	}
	u32 := func(field string, v uint32) {
		pairs = append(pairs, domain.Pair{Topic: base + "/" + field, Payload: strconv.FormatUint(uint64(v), 10)})
	}
	text := func(field, v string) {
		pairs = append(pairs, domain.Pair{Topic: base + "/" + field, Payload: v})
	}

	u16("temperature", i.live.Temperature)
	u16("energy_today", i.live.EnergyToday)
	u16("dc1_voltage", i.live.DC1Voltage)
	u16("dc2_voltage", i.live.DC2Voltage)
	u16("dc1_current", i.live.DC1Current)
	u16("dc2_current", i.live.DC2Current)
	u16("current", i.live.Current)
	u16("voltage", i.live.Voltage)
	u16("frequency", i.live.Frequency)
	u16("active_power", i.live.ActivePower)
	u32("import_active", i.live.ImportActive)
	u32("runtime_total", i.live.RuntimeTotal)
	text("run_mode", i.live.RunMode.String())
	text("error_code", i.live.ErrorCode.String())

	u16("phases", uint16(i.identity.Phases))
	text("bus_power", i.identity.BusPower)
	text("firmware_version", i.identity.FirmwareVersion)
	text("module_name", i.identity.ModuleName)
	text("factory_name", i.identity.FactoryName)
	text("serial_number", i.identity.SerialNumber)
	text("rated_bus_voltage", i.identity.RatedBusVoltage)

	u16("vpv_start", i.config.VpvStart)
	u16("time_start", i.config.TimeStart)
	u16("vac_min_protect", i.config.VacMinProtect)
	u16("vac_max_protect", i.config.VacMaxProtect)
	u16("fac_min_protect", i.config.FacMinProtect)
	u16("fac_max_protect", i.config.FacMaxProtect)
	u16("dci_limits", i.config.DciLimits)
	u16("grid_10min_avg_protect", i.config.Grid10MinAvgProtect)
	u16("vac_min_slow_protect", i.config.VacMinSlowProtect)
	u16("vac_max_slow_protect", i.config.VacMaxSlowProtect)
	u16("fac_min_slow_protect", i.config.FacMinSlowProtect)
	u16("fac_max_slow_protect", i.config.FacMaxSlowProtect)
	text("safety", i.config.Safety.String())
	u16("power_limits_percent", i.config.PowerLimitsPercent)
	u16("power_manager_enable", i.config.PowerManagerEnable)

	text("status", i.status.String())
	return pairs
}
