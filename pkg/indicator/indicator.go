// Package indicator drives the status pixels of the device.
package indicator

import (
	"fmt"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/npg.go/pkg/framework"
)

// Color is a hue in degrees at full saturation.
type Color uint16

// Colors
const (
	Blue    Color = 0
	Cyan    Color = 60
	Green   Color = 120
	Yellow  Color = 180
	Red     Color = 240
	Magenta Color = 300
)

var colorNames = map[Color]string{
	Blue:    "blue",
	Cyan:    "cyan",
	Green:   "green",
	Yellow:  "yellow",
	Red:     "red",
	Magenta: "magenta",
}

// String implements fmt.Stringer.
func (c Color) String() string {
	if name, ok := colorNames[c]; ok {
		return name
	}
	return fmt.Sprintf("hue(%d)", uint16(c))
}

// RGB converts the color at brightness (0-100) to RGB.
func (c Color) RGB(brightness uint8) (r, g, b uint8) {
	return HSV(uint32(c), 100, uint32(brightness))
}

// HSV converts hue (degrees), saturation and value (0-100) to RGB.
func HSV(h, s, v uint32) (r, g, b uint8) {
	h %= 360
	hi := uint32(float32(v) * 2.55)
	lo := uint32(float32(hi) * float32(100-s) / 100)
	diff := h % 60
	adj := (hi - lo) * diff / 60
	switch h / 60 {
	case 0:
		return uint8(hi), uint8(lo + adj), uint8(lo)
	case 1:
		return uint8(hi - adj), uint8(hi), uint8(lo)
	case 2:
		return uint8(lo), uint8(hi), uint8(lo + adj)
	case 3:
		return uint8(lo), uint8(hi - adj), uint8(hi)
	case 4:
		return uint8(lo + adj), uint8(lo), uint8(hi)
	}
	return uint8(hi), uint8(lo), uint8(hi - adj)
}

// Pixels is the number of status pixels.
const Pixels = 6

// Status is the pixel used for link and streaming status.
const Status = 0

// DefaultBrightness is used for all status updates.
const DefaultBrightness uint8 = 10

// Indicator is the status indicator collaborator.
type Indicator interface {
	Set(id int, c Color, brightness uint8) error
}

// PixelError indicates an invalid pixel id.
type PixelError struct {
	ID int
}

// Error implements error.
func (e *PixelError) Error() string {
	return fmt.Sprintf("pixel %d out of range 0-%d", e.ID, Pixels-1)
}

// CheckPixel validates a pixel id.
func CheckPixel(id int) error {
	if id < 0 || id >= Pixels {
		return &PixelError{ID: id}
	}
	return nil
}

// Log is an Indicator which only logs.
type Log struct{}

// Set implements Indicator.
func (Log) Set(id int, c Color, brightness uint8) error {
	if err := CheckPixel(id); err != nil {
		return err
	}
	glog.V(1).Infof("indicator %d: %s@%d", id, c, brightness)
	return nil
}

// Strip keeps the pixel buffer as sent to the LED strip, 3 bytes per pixel
// in G, B, R order.
type Strip struct {
	lock   sync.Mutex
	pixels [Pixels * 3]byte
}

// Set implements Indicator.
func (s *Strip) Set(id int, c Color, brightness uint8) error {
	if err := CheckPixel(id); err != nil {
		return err
	}
	r, g, b := c.RGB(brightness)
	s.lock.Lock()
	s.pixels[id*3], s.pixels[id*3+1], s.pixels[id*3+2] = g, b, r
	s.lock.Unlock()
	return nil
}

// Bytes returns a copy of the pixel buffer.
func (s *Strip) Bytes() []byte {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]byte(nil), s.pixels[:]...)
}

// Multi fans out to multiple indicators.
type Multi []Indicator

// Set implements Indicator.
func (m Multi) Set(id int, c Color, brightness uint8) error {
	var errs fx.AggregatedError
	for _, ind := range m {
		errs.Add(ind.Set(id, c, brightness))
	}
	return errs.Aggregate()
}

// Request sets a pixel and only logs a failure.
func Request(ind Indicator, id int, c Color, brightness uint8) {
	if ind == nil {
		return
	}
	if err := ind.Set(id, c, brightness); err != nil {
		glog.Warningf("indicator %d set %s error: %v", id, c, err)
	}
}
