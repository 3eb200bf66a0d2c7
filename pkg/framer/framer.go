package framer

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/robotalks/npg.go/pkg/adc"
	"github.com/robotalks/npg.go/pkg/battery"
)

// ErrMalformedFrame indicates a frame not matching the layout.
var ErrMalformedFrame = errors.New("malformed frame")

// Framer accumulates frames into packets. It's owned by a single
// goroutine and is not safe for concurrent use.
type Framer struct {
	layout  Layout
	monitor *battery.Monitor

	buf     []byte
	samples int
	seq     byte
	seen    []bool
	batSum  float64
	batN    int
}

// New creates a Framer. monitor is required when the layout has a
// battery channel.
func New(layout Layout, monitor *battery.Monitor) (*Framer, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if layout.Battery && monitor == nil {
		return nil, errors.New("battery monitor required")
	}
	f := &Framer{
		layout:  layout,
		monitor: monitor,
		seen:    make([]bool, layout.Channels()),
	}
	f.buf = make([]byte, 0, layout.PacketSize())
	return f, nil
}

// Layout returns the packet layout.
func (f *Framer) Layout() Layout {
	return f.layout
}

// Pending returns the number of samples in the open packet.
func (f *Framer) Pending() int {
	return f.samples
}

// Reset discards the open packet. The sequence counter is kept.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.samples = 0
	f.batSum, f.batN = 0, 0
}

func (f *Framer) validate(frame adc.Frame) error {
	if len(frame.Readings) != len(f.seen) {
		return fmt.Errorf("%w: %d readings, expect %d", ErrMalformedFrame, len(frame.Readings), len(f.seen))
	}
	for n := range f.seen {
		f.seen[n] = false
	}
	maxRaw := f.layout.MaxRaw
	if maxRaw == 0 {
		maxRaw = 0xffff
	}
	for _, r := range frame.Readings {
		if r.Channel < 0 || r.Channel >= len(f.seen) {
			return fmt.Errorf("%w: channel %d out of range", ErrMalformedFrame, r.Channel)
		}
		if f.seen[r.Channel] {
			return fmt.Errorf("%w: duplicated channel %d", ErrMalformedFrame, r.Channel)
		}
		if r.Raw > maxRaw {
			return fmt.Errorf("%w: channel %d raw %d exceeds %d", ErrMalformedFrame, r.Channel, r.Raw, maxRaw)
		}
		f.seen[r.Channel] = true
	}
	return nil
}

// OnFrameReady appends a frame. It returns the sealed packet once
// SamplesPerPacket frames are accumulated. A malformed frame is rejected
// without touching the open packet.
func (f *Framer) OnFrameReady(frame adc.Frame) (*Packet, error) {
	if err := f.validate(frame); err != nil {
		return nil, err
	}
	off := len(f.buf)
	f.buf = f.buf[:off+f.layout.SampleSize()]
	sample := f.buf[off:]
	sample[0] = f.seq
	if f.layout.Sequence == SequenceSample {
		f.seq++
	}
	batCh := f.layout.BatteryChannel()
	for _, r := range frame.Readings {
		scaled := adc.Scale(r.Raw, f.layout.ConverterMax, adc.CanonicalMax)
		if r.Channel == batCh {
			f.batSum += float64(scaled) * f.layout.SenseDivider
			f.batN++
			continue
		}
		binary.BigEndian.PutUint16(sample[1+r.Channel*2:], scaled)
	}
	if f.samples++; f.samples < f.layout.SamplesPerPacket {
		return nil, nil
	}
	return f.seal(), nil
}

func (f *Framer) seal() *Packet {
	pkt := &Packet{layout: f.layout, data: f.buf}
	if f.batN > 0 {
		r := f.monitor.Evaluate(f.batSum / float64(f.batN))
		pkt.Battery = &r
	}
	if f.layout.Sequence == SequencePacket {
		f.seq++
	}
	f.buf = make([]byte, 0, f.layout.PacketSize())
	f.samples = 0
	f.batSum, f.batN = 0, 0
	return pkt
}
