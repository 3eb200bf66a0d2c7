// Package sim provides a simulated converter producing deterministic
// biosignal-like waveforms and a discharging battery channel.
package sim

import (
	"math"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/npg.go/pkg/adc"
)

// Config defines the simulated converter.
type Config struct {
	ADC          adc.Config `yaml:"adc"`
	ConverterMax uint16     `yaml:"converter_max"`
	// Amplitude is the fraction of ConverterMax swung by data channels.
	Amplitude float64 `yaml:"amplitude"`
	// Battery enables the battery channel as the last ADC channel.
	Battery          bool    `yaml:"battery"`
	BatteryVolts     float64 `yaml:"battery_volts"`
	DrainPerSecond   float64 `yaml:"drain_per_second"`
	SenseDivider     float64 `yaml:"sense_divider"`
	ReferenceVoltage float64 `yaml:"reference_voltage"`
	RingSize         int     `yaml:"ring_size"`
}

// Defaults
const (
	DefaultAmplitude    = 0.4
	DefaultBatteryVolts = 4.1
	DefaultRingSize     = 1024
)

// DefaultConfig simulates 3 data channels and a battery at 250Hz.
var DefaultConfig = Config{
	ADC: adc.Config{
		Channels:   4,
		Resolution: adc.DefaultResolution,
		BaseRate:   adc.DefaultBaseRate,
		BatchSize:  5,
	},
	ConverterMax:     adc.DefaultConverterMax,
	Amplitude:        DefaultAmplitude,
	Battery:          true,
	BatteryVolts:     DefaultBatteryVolts,
	SenseDivider:     2,
	ReferenceVoltage: 3.3,
	RingSize:         DefaultRingSize,
}

// Converter implements adc.Converter by synthesizing frames at the
// configured rate.
type Converter struct {
	config Config

	lock     sync.Mutex
	ring     *ring
	ready    func()
	stopCh   chan struct{}
	doneCh   chan struct{}
	index    uint64
	overruns uint64
}

// New creates a Converter.
func New(conf Config) (*Converter, error) {
	if err := conf.ADC.Validate(); err != nil {
		return nil, err
	}
	if conf.ConverterMax == 0 {
		conf.ConverterMax = adc.DefaultConverterMax
	}
	if conf.RingSize <= 0 {
		conf.RingSize = DefaultRingSize
	}
	return &Converter{config: conf, ring: newRing(conf.RingSize)}, nil
}

// Config returns the configuration.
func (c *Converter) Config() Config {
	return c.config
}

// OnFrameReady implements adc.Converter.
func (c *Converter) OnFrameReady(fn func()) {
	c.lock.Lock()
	c.ready = fn
	c.lock.Unlock()
}

// Start implements adc.Converter.
func (c *Converter) Start() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.stopCh != nil {
		return nil
	}
	c.ring.reset()
	c.stopCh, c.doneCh = make(chan struct{}), make(chan struct{})
	go c.run(c.stopCh, c.doneCh)
	return nil
}

// Stop implements adc.Converter.
func (c *Converter) Stop() error {
	c.lock.Lock()
	stopCh, doneCh := c.stopCh, c.doneCh
	c.stopCh, c.doneCh = nil, nil
	c.lock.Unlock()
	if stopCh != nil {
		close(stopCh)
		<-doneCh
	}
	return nil
}

// ReadAvailableFrame implements adc.Converter.
func (c *Converter) ReadAvailableFrame() (adc.Frame, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.ring.pop()
}

// Overruns returns the number of frames overwritten before being read.
func (c *Converter) Overruns() uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.overruns
}

// Generate synthesizes n frames immediately and signals frame ready.
func (c *Converter) Generate(n int) {
	c.lock.Lock()
	for i := 0; i < n; i++ {
		if c.ring.push(c.frameAt(c.index)) {
			c.overruns++
		}
		c.index++
	}
	ready := c.ready
	c.lock.Unlock()
	if ready != nil {
		ready()
	}
}

func (c *Converter) run(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	interval := time.Duration(float64(time.Second) * float64(c.config.ADC.BatchSize) / c.config.ADC.BaseRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	started := time.Now()
	var produced uint64
	for {
		select {
		case <-stopCh:
			return
		case now := <-ticker.C:
			due := uint64(now.Sub(started).Seconds() * c.config.ADC.BaseRate)
			if due > produced {
				c.Generate(int(due - produced))
				produced = due
			}
			glog.V(5).Infof("sim: %d frames produced", produced)
		}
	}
}

// frameAt synthesizes the frame for the sample index.
func (c *Converter) frameAt(index uint64) adc.Frame {
	t := float64(index) / c.config.ADC.BaseRate
	channels := c.config.ADC.Channels
	frame := adc.Frame{Readings: make([]adc.Reading, channels)}
	dataChannels := channels
	if c.config.Battery {
		dataChannels--
		frame.Readings[dataChannels] = adc.Reading{Channel: dataChannels, Raw: c.batteryRaw(t)}
	}
	mid := float64(c.config.ConverterMax) / 2
	for n := 0; n < dataChannels; n++ {
		freq := float64(n + 1)
		v := mid + mid*c.config.Amplitude*math.Sin(2*math.Pi*freq*t+float64(n)*math.Pi/4)
		frame.Readings[n] = adc.Reading{Channel: n, Raw: c.clamp(v)}
	}
	return frame
}

// BatteryVoltage is the simulated cell voltage at t seconds of sampling.
func (c *Converter) BatteryVoltage(t float64) float64 {
	v := c.config.BatteryVolts - c.config.DrainPerSecond*t
	if v < 0 {
		return 0
	}
	return v
}

func (c *Converter) batteryRaw(t float64) uint16 {
	scale := c.config.SenseDivider * c.config.ReferenceVoltage
	if scale <= 0 {
		return 0
	}
	return c.clamp(c.BatteryVoltage(t) / scale * float64(c.config.ConverterMax))
}

func (c *Converter) clamp(v float64) uint16 {
	hi := float64(c.config.ADC.MaxRaw())
	if v < 0 {
		return 0
	}
	if v > hi {
		return uint16(hi)
	}
	return uint16(math.Round(v))
}
