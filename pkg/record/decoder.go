// Package record decodes data notifications on the host and records the
// samples.
package record

import (
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/npg.go/pkg/framer"
)

// Sample is a decoded sample.
type Sample struct {
	Seq    uint8
	Values []uint16
}

// Batch is a packet worth of samples received at once.
type Batch struct {
	Received time.Time
	Samples  []Sample
	// Missing is the number of samples lost right before this batch.
	Missing int
}

// Time is the back-dated acquisition time of sample k at rate Hz, assuming
// the last sample of the batch was acquired when it was received.
func (b *Batch) Time(k int, rate float64) time.Time {
	if rate <= 0 {
		return b.Received
	}
	back := float64(len(b.Samples)-1-k) * float64(time.Second) / rate
	return b.Received.Add(-time.Duration(back))
}

// Stats counts decoded data.
type Stats struct {
	Samples uint64
	Batches uint64
	Missing uint64
}

// Decoder reassembles notifications into samples. Notifications may split
// samples at any byte.
type Decoder struct {
	DataChannels     int
	SamplesPerPacket int
	Sequence         framer.SequenceMode

	pending []byte
	samples []Sample
	missing int
	last    int
	stats   Stats
}

// NewDecoder creates a Decoder matching a device layout.
func NewDecoder(layout framer.Layout) *Decoder {
	return &Decoder{
		DataChannels:     layout.DataChannels,
		SamplesPerPacket: layout.SamplesPerPacket,
		Sequence:         layout.Sequence,
		last:             -1,
	}
}

func (d *Decoder) sampleSize() int {
	return 1 + 2*d.DataChannels
}

// Feed decodes a notification received at t and returns completed batches.
func (d *Decoder) Feed(data []byte, t time.Time) []*Batch {
	d.pending = append(d.pending, data...)
	size := d.sampleSize()
	var batches []*Batch
	for len(d.pending) >= size {
		seq, values := framer.DecodeSample(d.pending[:size])
		d.pending = d.pending[size:]
		d.add(Sample{Seq: seq, Values: values})
		if len(d.samples) >= d.SamplesPerPacket {
			batches = append(batches, d.cut(t))
		}
	}
	if len(d.pending) == 0 {
		d.pending = nil
	}
	return batches
}

// Flush returns the complete samples not yet forming a full batch, or nil.
// Partial sample bytes are discarded.
func (d *Decoder) Flush(t time.Time) *Batch {
	d.pending = nil
	if len(d.samples) == 0 {
		return nil
	}
	return d.cut(t)
}

// Stats returns the counters.
func (d *Decoder) Stats() Stats {
	return d.stats
}

func (d *Decoder) add(s Sample) {
	switch d.Sequence {
	case framer.SequenceSample:
		d.check(s.Seq, 1)
	default:
		if len(d.samples) == 0 {
			d.check(s.Seq, d.SamplesPerPacket)
		} else if s.Seq != d.samples[0].Seq {
			glog.Warningf("sequence %d inside packet %d", s.Seq, d.samples[0].Seq)
		}
	}
	d.samples = append(d.samples, s)
	d.stats.Samples++
}

// check compares seq against the expected next value, each missing step
// accounting for unit samples.
func (d *Decoder) check(seq uint8, unit int) {
	if d.last >= 0 {
		expected := uint8(d.last + 1)
		if missed := int(seq - expected); missed > 0 {
			glog.Warningf("missing %d samples (expected sequence %d, got %d)", missed*unit, expected, seq)
			d.missing += missed * unit
			d.stats.Missing += uint64(missed * unit)
		}
	}
	d.last = int(seq)
}

func (d *Decoder) cut(t time.Time) *Batch {
	b := &Batch{Received: t, Samples: d.samples, Missing: d.missing}
	d.samples, d.missing = nil, 0
	d.stats.Batches++
	return b
}
