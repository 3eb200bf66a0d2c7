// Package connector provides host-side options to reach devices.
package connector

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"

	"github.com/robotalks/npg.go/pkg/env"
	"github.com/robotalks/npg.go/pkg/transport/mqtt"
)

// Config provides common options to setup Connectors.
type Config struct {
	// DeviceID is the device to connect.
	DeviceID string
	// Name identifies this host to the device.
	Name string

	// BrokerURL specifies the MQTT broker.
	// e.g. mqtt://host:port/topic-prefix
	BrokerURL string
}

var defaultConfig = Config{
	BrokerURL: "mqtt://localhost:1883/npg/",
}

func init() {
	if val := os.Getenv("NPG_ID"); val != "" {
		defaultConfig.DeviceID = val
	}
	if val := os.Getenv("NPG_MQTT_URL"); val != "" {
		defaultConfig.BrokerURL = val
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		defaultConfig.Name = host
	} else {
		defaultConfig.Name = env.DeviceID()
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.DeviceID, "id", defaultConfig.DeviceID, "Device ID to connect.")
	flag.StringVar(&defaultConfig.Name, "name", defaultConfig.Name, "Peer name announced to the device.")
	flag.StringVar(&defaultConfig.BrokerURL, "mqtt", defaultConfig.BrokerURL, "MQTT broker URL.")
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

// ErrNoDevice indicates no device id is specified.
var ErrNoDevice = errors.New("device id must be specified")

// NewConnector creates a Connector using current config.
func (c *Config) NewConnector() (*mqtt.Connector, error) {
	return mqtt.NewConnector(c.BrokerURL, c.Name)
}

// MustNewConnector creates a Connector and fails on error.
func (c *Config) MustNewConnector() *mqtt.Connector {
	conn, err := c.NewConnector()
	if err != nil {
		log.Fatalln(err)
	}
	return conn
}

// Connect dials the configured device and attaches as its peer.
func (c *Config) Connect() (*mqtt.Peer, error) {
	return c.ConnectTo(c.DeviceID)
}

// ConnectTo dials device id and attaches as its peer.
func (c *Config) ConnectTo(id string) (*mqtt.Peer, error) {
	if id == "" {
		return nil, ErrNoDevice
	}
	connector, err := c.NewConnector()
	if err != nil {
		return nil, err
	}
	peer, err := connector.Dial(id)
	if err != nil {
		return nil, err
	}
	if err := peer.Attach(); err != nil {
		peer.Close()
		return nil, err
	}
	return peer, nil
}

// MustConnect connects the device or fails.
func (c *Config) MustConnect() *mqtt.Peer {
	peer, err := c.Connect()
	if err != nil {
		log.Fatalln(err)
	}
	return peer
}

// Discover lists devices.
func (c *Config) Discover(ctx context.Context) ([]mqtt.Meta, error) {
	connector, err := c.NewConnector()
	if err != nil {
		return nil, err
	}
	return connector.Discover(ctx)
}
