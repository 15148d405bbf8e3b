// Package reading defines the battery reading wire format shared by the
// pipeline and the sensor simulator.
package reading

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sanspareilsmyn/batterylens/internal/estimator"
)

// ThermalLevel is the ordered thermal severity reported by the sensor. It is
// pass-through display data; the estimator never consumes it.
type ThermalLevel int

const (
	ThermalNominal ThermalLevel = iota
	ThermalFair
	ThermalSerious
	ThermalCritical
)

// ParseThermalLevel maps a wire string onto a ThermalLevel. Unrecognized
// values report ok=false and default to nominal.
func ParseThermalLevel(s string) (ThermalLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nominal", "":
		return ThermalNominal, true
	case "fair":
		return ThermalFair, true
	case "serious":
		return ThermalSerious, true
	case "critical":
		return ThermalCritical, true
	default:
		return ThermalNominal, false
	}
}

func (l ThermalLevel) String() string {
	switch l {
	case ThermalFair:
		return "fair"
	case ThermalSerious:
		return "serious"
	case ThermalCritical:
		return "critical"
	default:
		return "nominal"
	}
}

// BatteryReading is one decoded sensor reading. Level is a fraction in [0,1].
type BatteryReading struct {
	DeviceID  string
	Timestamp time.Time
	Level     float64
	State     estimator.ChargeState
	LowPower  bool
	Thermal   ThermalLevel
}

// wireReading is the JSON shape on the topic. Level is a pointer so a missing
// field is distinguishable from a literal zero.
type wireReading struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	Level     *float64  `json:"level"`
	State     string    `json:"state"`
	LowPower  bool      `json:"low_power,omitempty"`
	Thermal   string    `json:"thermal,omitempty"`
}

// ParseJSON decodes and validates one reading payload. Readings that fail
// validation never reach the estimator; the pipeline logs and drops them.
func ParseJSON(data []byte) (BatteryReading, error) {
	var w wireReading
	if err := json.Unmarshal(data, &w); err != nil {
		return BatteryReading{}, fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	if w.DeviceID == "" {
		return BatteryReading{}, ErrMissingDeviceID
	}
	if w.Timestamp.IsZero() {
		return BatteryReading{}, ErrMissingTimestamp
	}
	if w.Level == nil {
		return BatteryReading{}, ErrMissingLevel
	}
	level := *w.Level
	if math.IsNaN(level) || math.IsInf(level, 0) || level < 0 || level > 1 {
		return BatteryReading{}, fmt.Errorf("%w: %v", ErrLevelOutOfRange, level)
	}

	thermal, _ := ParseThermalLevel(w.Thermal)
	return BatteryReading{
		DeviceID:  w.DeviceID,
		Timestamp: w.Timestamp,
		Level:     level,
		State:     estimator.ParseChargeState(w.State),
		LowPower:  w.LowPower,
		Thermal:   thermal,
	}, nil
}

// EncodeJSON renders a reading in the wire shape accepted by ParseJSON.
func EncodeJSON(r BatteryReading) ([]byte, error) {
	level := r.Level
	w := wireReading{
		DeviceID:  r.DeviceID,
		Timestamp: r.Timestamp,
		Level:     &level,
		State:     r.State.String(),
		LowPower:  r.LowPower,
		Thermal:   r.Thermal.String(),
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMarshalFailed, err)
	}
	return data, nil
}
