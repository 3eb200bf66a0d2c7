// Package framer turns converter frames into fixed-size wire packets.
package framer

import (
	"errors"
	"fmt"

	"github.com/robotalks/npg.go/pkg/adc"
)

// SequenceMode selects how the leading sequence byte of each sample advances.
type SequenceMode string

// Sequence modes
const (
	// SequencePacket stamps every sample of a packet with the packet
	// sequence number, which advances once per sealed packet.
	SequencePacket SequenceMode = "packet"
	// SequenceSample advances the counter on every sample.
	SequenceSample SequenceMode = "sample"
)

// Valid checks the mode is known.
func (m SequenceMode) Valid() bool {
	return m == SequencePacket || m == SequenceSample
}

// Defaults
const (
	DefaultDataChannels     = 3
	DefaultSamplesPerPacket = 25
	DefaultSenseDivider     = 2
	DefaultMTU              = 256
	DefaultOverhead         = 3
)

// Layout describes the channel layout of frames and packets.
type Layout struct {
	// DataChannels are channels 0..DataChannels-1, encoded into packets.
	DataChannels int `yaml:"data_channels"`
	// Battery enables the battery-sense channel at index DataChannels.
	Battery          bool         `yaml:"battery"`
	SamplesPerPacket int          `yaml:"samples_per_packet"`
	ConverterMax     uint16       `yaml:"converter_max"`
	MaxRaw           uint16       `yaml:"max_raw"`
	SenseDivider     float64      `yaml:"sense_divider"`
	Sequence         SequenceMode `yaml:"sequence"`
	MTU              int          `yaml:"mtu"`
	Overhead         int          `yaml:"overhead"`
}

// DefaultLayout is 3 data channels plus battery, 25 samples per packet.
var DefaultLayout = Layout{
	DataChannels:     DefaultDataChannels,
	Battery:          true,
	SamplesPerPacket: DefaultSamplesPerPacket,
	ConverterMax:     adc.DefaultConverterMax,
	MaxRaw:           adc.Config{Resolution: adc.DefaultResolution}.MaxRaw(),
	SenseDivider:     DefaultSenseDivider,
	Sequence:         SequencePacket,
	MTU:              DefaultMTU,
	Overhead:         DefaultOverhead,
}

// ErrPacketTooLarge indicates the layout doesn't fit into the link MTU.
var ErrPacketTooLarge = errors.New("packet exceeds link MTU")

// Channels is the number of readings expected in every frame.
func (l Layout) Channels() int {
	if l.Battery {
		return l.DataChannels + 1
	}
	return l.DataChannels
}

// BatteryChannel returns the battery channel index or -1.
func (l Layout) BatteryChannel() int {
	if l.Battery {
		return l.DataChannels
	}
	return -1
}

// SampleSize is the encoded size of one sample.
func (l Layout) SampleSize() int {
	return 1 + 2*l.DataChannels
}

// PacketSize is the encoded size of a packet.
func (l Layout) PacketSize() int {
	return l.SamplesPerPacket * l.SampleSize()
}

// Validate checks the layout.
func (l Layout) Validate() error {
	if l.DataChannels <= 0 {
		return fmt.Errorf("invalid data channels %d", l.DataChannels)
	}
	if l.SamplesPerPacket <= 0 {
		return fmt.Errorf("invalid samples per packet %d", l.SamplesPerPacket)
	}
	if l.ConverterMax == 0 {
		return errors.New("converter max must not be zero")
	}
	if l.Battery && l.SenseDivider <= 0 {
		return fmt.Errorf("invalid sense divider %v", l.SenseDivider)
	}
	if !l.Sequence.Valid() {
		return fmt.Errorf("invalid sequence mode %q", l.Sequence)
	}
	if limit := l.MTU - l.Overhead; l.PacketSize() > limit {
		return fmt.Errorf("%w: %d > %d", ErrPacketTooLarge, l.PacketSize(), limit)
	}
	return nil
}
