// Package serial opens a stream link on a serial port.
package serial

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/tarm/serial"

	"github.com/robotalks/npg.go/pkg/transport/stream"
)

// DefaultBaud is used when the URL doesn't specify one.
const DefaultBaud = 115200

// Config is parsed from serial:///dev/ttyUSB0?baud=115200.
type Config struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration
}

// ParseURL parses a serial link URL.
func ParseURL(linkURL string) (*Config, error) {
	u, err := url.Parse(linkURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "serial" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	conf := &Config{Port: u.Path, Baud: DefaultBaud}
	if conf.Port == "" {
		conf.Port = u.Opaque
	}
	if conf.Port == "" {
		return nil, fmt.Errorf("serial port missing in %q", linkURL)
	}
	q := u.Query()
	if baud := q.Get("baud"); baud != "" {
		if conf.Baud, err = strconv.Atoi(baud); err != nil || conf.Baud <= 0 {
			return nil, fmt.Errorf("invalid baud %q", baud)
		}
	}
	if timeout := q.Get("read-timeout"); timeout != "" {
		if conf.ReadTimeout, err = time.ParseDuration(timeout); err != nil {
			return nil, err
		}
	}
	return conf, nil
}

// Open opens the port and wraps it as a stream Link.
func (c *Config) Open() (*stream.Link, error) {
	port, err := serial.OpenPort(&serial.Config{Name: c.Port, Baud: c.Baud, ReadTimeout: c.ReadTimeout})
	if err != nil {
		return nil, err
	}
	return stream.New(port), nil
}

// Open parses the URL and opens the link.
func Open(linkURL string) (*stream.Link, error) {
	conf, err := ParseURL(linkURL)
	if err != nil {
		return nil, err
	}
	return conf.Open()
}
