// Package adc defines the contract of the analog converter driver and the
// sample data it produces.
package adc

import "errors"

// Reading is one converted sample of a logical channel.
type Reading struct {
	Channel int
	Raw     uint16
}

// Frame is the converter's atomic batch of readings for one sampling
// instant across all configured channels.
type Frame struct {
	Readings []Reading
}

// Converter is the continuous-mode converter driver.
type Converter interface {
	// Start begins continuous conversion.
	Start() error
	// Stop halts conversion. Frames already buffered may still be read.
	Stop() error
	// ReadAvailableFrame returns the next buffered frame without blocking.
	ReadAvailableFrame() (Frame, bool)
	// OnFrameReady registers the frame-ready signal. The callback is invoked
	// from the driver's context and must return immediately.
	OnFrameReady(func())
}

// Config describes how the converter is set up.
type Config struct {
	// Channels is the total number of converted channels, including
	// the battery-sense channel.
	Channels int `yaml:"channels"`
	// Resolution is the conversion width in bits.
	Resolution uint `yaml:"resolution"`
	// BaseRate is the per-channel sampling rate in Hz.
	BaseRate float64 `yaml:"base_rate"`
	// BatchSize is the number of frames per frame-ready signal.
	BatchSize int `yaml:"batch_size"`
}

// Defaults
const (
	DefaultResolution   uint    = 12
	DefaultBaseRate     float64 = 250
	DefaultConverterMax uint16  = 3329
	CanonicalMax        uint16  = 4095
)

// ErrNotConfigured indicates a converter setup error.
var ErrNotConfigured = errors.New("converter not configured")

// SampleRate is the aggregated conversion rate over all channels.
func (c Config) SampleRate() float64 {
	return c.BaseRate * float64(c.Channels)
}

// MaxRaw is the largest raw code the converter can produce.
func (c Config) MaxRaw() uint16 {
	if c.Resolution == 0 || c.Resolution >= 16 {
		return 0xffff
	}
	return uint16(1)<<c.Resolution - 1
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Channels <= 0 || c.BaseRate <= 0 || c.BatchSize <= 0 {
		return ErrNotConfigured
	}
	return nil
}

// Scale maps a raw code into [0, canonicalMax] by linear scaling
// raw * canonicalMax / converterMax. Results above canonicalMax are clamped.
func Scale(raw, converterMax, canonicalMax uint16) uint16 {
	if converterMax == 0 {
		return 0
	}
	v := uint32(raw) * uint32(canonicalMax) / uint32(converterMax)
	if v > uint32(canonicalMax) {
		return canonicalMax
	}
	return uint16(v)
}
