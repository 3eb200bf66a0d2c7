// Package device assembles the sensor core with its collaborators.
package device

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/npg.go/pkg/adc"
	"github.com/robotalks/npg.go/pkg/battery"
	"github.com/robotalks/npg.go/pkg/command"
	"github.com/robotalks/npg.go/pkg/env"
	"github.com/robotalks/npg.go/pkg/framer"
	"github.com/robotalks/npg.go/pkg/indicator"
	"github.com/robotalks/npg.go/pkg/sim"
	"github.com/robotalks/npg.go/pkg/transport"
	"github.com/robotalks/npg.go/pkg/transport/mqtt"
	"github.com/robotalks/npg.go/pkg/transport/serial"
	"github.com/robotalks/npg.go/pkg/transport/websocket"
)

// Config defines a device.
type Config struct {
	ID       string `yaml:"id"`
	Identity string `yaml:"identity"`

	// LinkURL selects the link by scheme, e.g.
	// mqtt://host:1883/npg/, ws://:8080/link, serial:///dev/ttyUSB0?baud=115200
	LinkURL string `yaml:"link"`
	// MetricsAddr enables the prometheus endpoint when not empty.
	MetricsAddr string `yaml:"metrics"`

	Layout          framer.Layout       `yaml:"layout"`
	Calibration     battery.Calibration `yaml:"battery"`
	CriticalPercent uint8               `yaml:"critical_percent"`
	MatchMode       command.MatchMode   `yaml:"match_mode"`
	Sim             sim.Config          `yaml:"sim"`
	IdleInterval    time.Duration       `yaml:"idle_interval"`
	StatusInterval  time.Duration       `yaml:"status_interval"`
}

// DefaultStatusInterval is the period of status publishing.
const DefaultStatusInterval = 5 * time.Second

var defaultConfig = Config{
	Identity:        command.DefaultIdentity,
	LinkURL:         "mqtt://localhost:1883/npg/",
	Layout:          framer.DefaultLayout,
	Calibration:     battery.DefaultCalibration,
	CriticalPercent: battery.DefaultCriticalPercent,
	MatchMode:       command.MatchPrefix,
	Sim:             sim.DefaultConfig,
	IdleInterval:    framer.DefaultIdleInterval,
	StatusInterval:  DefaultStatusInterval,
}

func init() {
	if val := os.Getenv("NPG_MQTT_URL"); val != "" {
		defaultConfig.LinkURL = val
	}
	if val := os.Getenv("NPG_LINK"); val != "" {
		defaultConfig.LinkURL = val
	}
	if val := os.Getenv("NPG_ID"); val != "" {
		defaultConfig.ID = val
	} else {
		defaultConfig.ID = env.DeviceID()
	}
}

// SetupFlags sets command line flags. Flags after -config override values
// loaded from the file.
func SetupFlags() {
	flag.Func("config", "YAML config file", func(path string) error {
		return defaultConfig.LoadFile(path)
	})
	flag.StringVar(&defaultConfig.ID, "id", defaultConfig.ID, "Device ID")
	flag.StringVar(&defaultConfig.Identity, "identity", defaultConfig.Identity, "Reply to WHORU")
	flag.StringVar(&defaultConfig.LinkURL, "link", defaultConfig.LinkURL, "Link URL (mqtt://, ws://, serial://)")
	flag.StringVar(&defaultConfig.MetricsAddr, "metrics", defaultConfig.MetricsAddr, "Metrics listen address")
	flag.IntVar(&defaultConfig.Layout.DataChannels, "channels", defaultConfig.Layout.DataChannels, "Data channels")
	flag.IntVar(&defaultConfig.Layout.SamplesPerPacket, "samples", defaultConfig.Layout.SamplesPerPacket, "Samples per packet")
	flag.Func("sequence", "Sequence byte mode: packet or sample", func(val string) error {
		mode := framer.SequenceMode(val)
		if !mode.Valid() {
			return fmt.Errorf("invalid sequence mode %q", val)
		}
		defaultConfig.Layout.Sequence = mode
		return nil
	})
	flag.Func("match", "Command matching: prefix or exact", func(val string) (err error) {
		defaultConfig.MatchMode, err = command.ParseMatchMode(val)
		return
	})
	flag.DurationVar(&defaultConfig.IdleInterval, "idle-interval", defaultConfig.IdleInterval, "State polling interval when idle")
	flag.DurationVar(&defaultConfig.StatusInterval, "status-interval", defaultConfig.StatusInterval, "Status publishing interval")
	flag.Float64Var(&defaultConfig.Sim.BatteryVolts, "sim-battery", defaultConfig.Sim.BatteryVolts, "Simulated battery voltage")
	flag.Float64Var(&defaultConfig.Sim.DrainPerSecond, "sim-drain", defaultConfig.Sim.DrainPerSecond, "Simulated battery drain in volts per second")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// LoadFile merges a YAML file into the config.
func (c *Config) LoadFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(content, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.ID == "" {
		return errors.New("device id must be specified")
	}
	if err := c.Layout.Validate(); err != nil {
		return err
	}
	if !c.MatchMode.Valid() {
		return fmt.Errorf("invalid match mode %q", c.MatchMode)
	}
	if c.Layout.Battery && c.Calibration.FullScale <= 0 {
		return fmt.Errorf("invalid battery full scale %v", c.Calibration.FullScale)
	}
	return nil
}

// Monitor creates the battery monitor.
func (c *Config) Monitor() *battery.Monitor {
	m := battery.NewMonitor(c.Calibration)
	m.CriticalPercent = c.CriticalPercent
	return m
}

// SimConfig derives the simulated converter from the layout so both agree
// on channels, converter range and battery sensing.
func (c *Config) SimConfig() sim.Config {
	conf := c.Sim
	conf.ADC.Channels = c.Layout.Channels()
	if conf.ADC.Resolution == 0 {
		conf.ADC.Resolution = adc.DefaultResolution
	}
	conf.ConverterMax = c.Layout.ConverterMax
	conf.Battery = c.Layout.Battery
	conf.SenseDivider = c.Layout.SenseDivider
	conf.ReferenceVoltage = c.Calibration.ReferenceVoltage
	return conf
}

// Meta describes the device for discovery.
func (c *Config) Meta() mqtt.Meta {
	return mqtt.Meta{
		ID:               c.ID,
		Identity:         c.Identity,
		DataChannels:     c.Layout.DataChannels,
		SamplesPerPacket: c.Layout.SamplesPerPacket,
		SampleRate:       c.Sim.ADC.BaseRate,
		Sequence:         string(c.Layout.Sequence),
	}
}

// NewLink creates the link selected by LinkURL. The returned indicator is
// non-nil when the link publishes indicator changes.
func (c *Config) NewLink() (transport.Link, indicator.Indicator, error) {
	u, err := url.Parse(c.LinkURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid link URL: %v", err)
	}
	switch u.Scheme {
	case "mqtt", "mqtts", "tcp", "ssl":
		link, err := mqtt.NewLink(c.LinkURL, c.Meta())
		if err != nil {
			return nil, nil, err
		}
		return link, link.Indicator(), nil
	case "ws":
		link := websocket.New(u.Host)
		if u.Path != "" && u.Path != "/" {
			link.Path = u.Path
		}
		return link, nil, nil
	case "serial":
		link, err := serial.Open(c.LinkURL)
		if err != nil {
			return nil, nil, err
		}
		return link, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown link URL scheme: %q", u.Scheme)
	}
}

// NewDevice creates a Device with a simulated converter and the
// configured link.
func (c *Config) NewDevice() (*Device, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	conv, err := sim.New(c.SimConfig())
	if err != nil {
		return nil, fmt.Errorf("create converter error: %v", err)
	}
	link, linkInd, err := c.NewLink()
	if err != nil {
		return nil, fmt.Errorf("create link error: %v", err)
	}
	ind := indicator.Multi{indicator.Log{}}
	if linkInd != nil {
		ind = append(ind, linkInd)
	}
	return New(c, conv, link, ind)
}

// MustNewDevice creates a Device and fails on error.
func (c *Config) MustNewDevice() *Device {
	dev, err := c.NewDevice()
	if err != nil {
		log.Fatalln(err)
	}
	return dev
}
