package mqtt

import (
	"time"

	"github.com/robotalks/npg.go/pkg/indicator"
	"github.com/robotalks/npg.go/pkg/msgs"
)

// Indicator publishes pixel changes as msgs.Indicator.
type Indicator struct {
	Queue   *Queue
	ID      string
	Timeout time.Duration
}

// Set implements indicator.Indicator.
func (i *Indicator) Set(id int, c indicator.Color, brightness uint8) error {
	if err := indicator.CheckPixel(id); err != nil {
		return err
	}
	r, g, b := c.RGB(brightness)
	payload, err := msgs.Encode(&msgs.Indicator{
		Pixel:      uint32(id),
		Hue:        uint32(c),
		Brightness: uint32(brightness),
		Rgb:        []byte{r, g, b},
	})
	if err != nil {
		return err
	}
	return Wait(i.Queue.Pub(Topic(i.ID, TopicIndicator), payload), i.Timeout)
}
