package aurora

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/pvbus/pvbus/internal/domain"
)

// Availability is the two-state Aurora availability model. Online is reached
// only after a successful, strictly-positive grid-voltage measurement.
type Availability int

const (
	Offline Availability = iota
	Online
)

func (a Availability) String() string {
	if a == Online {
		return "Online"
	}
	return "Offline"
}

// EnergyPeriod identifies one cumulative-energy counter. The wire codes are
// not contiguous; code 2 does not exist on this device family.
type EnergyPeriod byte

const (
	EnergyDay        EnergyPeriod = 0
	EnergyWeek       EnergyPeriod = 1
	EnergyMonth      EnergyPeriod = 3
	EnergyYear       EnergyPeriod = 4
	EnergyTotal      EnergyPeriod = 5
	EnergySinceReset EnergyPeriod = 6
)

// energySequence is the fixed request order of one energy poll.
var energySequence = []EnergyPeriod{
	EnergyDay,
	EnergyWeek,
	EnergyMonth,
	EnergyYear,
	EnergyTotal,
	EnergySinceReset,
}

// EnergyTotals holds the six cumulative-energy counters in kWh. Each is
// overwritten wholesale by the latest successful decode.
type EnergyTotals struct {
	Day        float64
	Week       float64
	Month      float64
	Year       float64
	Total      float64
	SinceReset float64
}

func (e *EnergyTotals) set(period EnergyPeriod, value float64) {
	switch period {
	case EnergyDay:
		e.Day = value
	case EnergyWeek:
		e.Week = value
	case EnergyMonth:
		e.Month = value
	case EnergyYear:
		e.Year = value
	case EnergyTotal:
		e.Total = value
	case EnergySinceReset:
		e.SinceReset = value
	}
}

// Inverter is the per-device model: bus address, availability, latest
// measurement set, and cumulative energy counters. Instances are owned by the
// scheduler's device collection and mutated only during a poll pass.
type Inverter struct {
	engine       *Engine
	address      byte
	status       Availability
	measurements MeasurementSet
	energy       EnergyTotals
	lastContact  time.Time
}

// NewInverter creates a device model bound to the shared protocol engine. The
// bus address is immutable for the device's lifetime.
func NewInverter(engine *Engine, address byte) *Inverter {
	return &Inverter{
		engine:       engine,
		address:      address,
		status:       Offline,
		measurements: make(MeasurementSet),
	}
}

// Address returns the device's bus address.
func (i *Inverter) Address() byte {
	return i.address
}

// Status returns the current availability as text.
func (i *Inverter) Status() string {
	return i.status.String()
}

// Energy returns the current cumulative-energy counters.
func (i *Inverter) Energy() EnergyTotals {
	return i.energy
}

// Measurement returns the latest decoded value for a code, if one has been
// stored.
func (i *Inverter) Measurement(code MeasureCode) (float64, bool) {
	v, ok := i.measurements[code]
	return v, ok
}

// Poll runs the full availability-gated poll sequence for this device.
func (i *Inverter) Poll() error {
	return i.engine.PollInverter(i)
}

// Flatten renders the device snapshot as telemetry pairs under
// {prefix}/{address}/{field}. Values are always rendered, stale or not.
func (i *Inverter) Flatten(topicPrefix string) []domain.Pair {
	base := fmt.Sprintf("%s/%d", topicPrefix, i.address)

	codes := make([]MeasureCode, 0, len(i.measurements))
	for code := range i.measurements {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(a, b int) bool { return codes[a] < codes[b] })

	pairs := make([]domain.Pair, 0, len(codes)+7)
	for _, code := range codes {
		name, _ := code.Name()
		pairs = append(pairs, domain.Pair{
			Topic:   base + "/" + name,
			Payload: formatValue(i.measurements[code]),
		})
	}

	pairs = append(pairs,
		domain.Pair{Topic: base + "/day", Payload: formatValue(i.energy.Day)},
		domain.Pair{Topic: base + "/week", Payload: formatValue(i.energy.Week)},
		domain.Pair{Topic: base + "/month", Payload: formatValue(i.energy.Month)},
		domain.Pair{Topic: base + "/year", Payload: formatValue(i.energy.Year)},
		domain.Pair{Topic: base + "/total", Payload: formatValue(i.energy.Total)},
		domain.Pair{Topic: base + "/since_reset", Payload: formatValue(i.energy.SinceReset)},
		domain.Pair{Topic: base + "/status", Payload: i.status.String()},
	)
	return pairs
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
