// Package battery converts battery-sense readings into a charge percentage
// and classifies low-battery conditions.
package battery

import (
	"errors"
	"fmt"
)

// Breakpoint maps a cell voltage to a charge percentage.
type Breakpoint struct {
	Voltage float64 `yaml:"v"`
	Percent uint8   `yaml:"p"`
}

// Curve is a calibration table sorted by voltage.
type Curve []Breakpoint

// LiPoCurve is the discharge curve of a single-cell LiPo battery.
var LiPoCurve = Curve{
	{3.27, 0}, {3.61, 5}, {3.69, 10}, {3.71, 15}, {3.73, 20},
	{3.75, 25}, {3.77, 30}, {3.79, 35}, {3.80, 40}, {3.82, 45},
	{3.84, 50}, {3.85, 55}, {3.87, 60}, {3.91, 65}, {3.95, 70},
	{3.98, 75}, {4.02, 80}, {4.08, 85}, {4.11, 90}, {4.15, 95},
	{4.20, 100},
}

// ErrEmptyCurve indicates a curve without breakpoints.
var ErrEmptyCurve = errors.New("empty battery curve")

// CurveError reports a breakpoint breaking monotonicity.
type CurveError struct {
	Index int
}

// Error implements error.
func (e *CurveError) Error() string {
	return fmt.Sprintf("battery curve not monotonic at breakpoint %d", e.Index)
}

// Validate checks the voltages are strictly increasing and percentages
// never decrease.
func (c Curve) Validate() error {
	if len(c) == 0 {
		return ErrEmptyCurve
	}
	for i := 1; i < len(c); i++ {
		if c[i].Voltage <= c[i-1].Voltage || c[i].Percent < c[i-1].Percent || c[i].Percent > 100 {
			return &CurveError{Index: i}
		}
	}
	return nil
}

// Percent maps a voltage to percentage.
// Below the first breakpoint the first percentage is used, above the
// last one the result is 100.
func (c Curve) Percent(v float64) uint8 {
	if len(c) == 0 {
		return 0
	}
	if v <= c[0].Voltage {
		return c[0].Percent
	}
	last := c[len(c)-1]
	if v >= last.Voltage {
		return 100
	}
	for i := 1; i < len(c); i++ {
		if v < c[i].Voltage {
			p := Interpolate(v, c[i-1].Voltage, c[i].Voltage, float64(c[i-1].Percent), float64(c[i].Percent))
			return uint8(p)
		}
	}
	return 100
}

// Interpolate linearly maps x in [x1, x2] onto [y1, y2].
func Interpolate(x, x1, x2, y1, y2 float64) float64 {
	if x2 == x1 {
		return y1
	}
	return y1 + (x-x1)*(y2-y1)/(x2-x1)
}
