package battery

import "fmt"

// Action is the result of classifying a battery reading.
type Action int

// Actions
const (
	Normal Action = iota
	Critical
)

// String implements fmt.Stringer.
func (a Action) String() string {
	switch a {
	case Normal:
		return "normal"
	case Critical:
		return "critical"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// DefaultCriticalPercent is the threshold below which battery is critical.
const DefaultCriticalPercent uint8 = 5

// Calibration converts a raw mean into a voltage:
// voltage = raw / FullScale * ReferenceVoltage - Offset.
type Calibration struct {
	FullScale        float64 `yaml:"full_scale"`
	ReferenceVoltage float64 `yaml:"reference_voltage"`
	Offset           float64 `yaml:"offset"`
}

// DefaultCalibration matches rescaled readings in 0..4095 from a 3.3V
// reference.
var DefaultCalibration = Calibration{
	FullScale:        4095,
	ReferenceVoltage: 3.3,
}

// Voltage converts raw mean to voltage.
func (c Calibration) Voltage(raw float64) float64 {
	if c.FullScale == 0 {
		return 0
	}
	return raw/c.FullScale*c.ReferenceVoltage - c.Offset
}

// Reading is an evaluated battery mean.
type Reading struct {
	Mean    float64
	Voltage float64
	Percent uint8
	Action  Action
}

// Monitor classifies battery readings. It keeps no state between
// evaluations.
type Monitor struct {
	Calibration     Calibration
	Curve           Curve
	CriticalPercent uint8
}

// NewMonitor creates a Monitor with the default LiPo curve.
func NewMonitor(calib Calibration) *Monitor {
	return &Monitor{
		Calibration:     calib,
		Curve:           LiPoCurve,
		CriticalPercent: DefaultCriticalPercent,
	}
}

// PercentFor maps raw mean to percentage.
func (m *Monitor) PercentFor(meanRaw float64) uint8 {
	return m.Curve.Percent(m.Calibration.Voltage(meanRaw))
}

// Evaluate classifies the raw mean.
func (m *Monitor) Evaluate(meanRaw float64) Reading {
	r := Reading{Mean: meanRaw, Voltage: m.Calibration.Voltage(meanRaw)}
	r.Percent = m.Curve.Percent(r.Voltage)
	if r.Percent < m.CriticalPercent {
		r.Action = Critical
	}
	return r
}
