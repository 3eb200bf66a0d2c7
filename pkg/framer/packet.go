package framer

import (
	"encoding/binary"
	"io"

	"github.com/robotalks/npg.go/pkg/battery"
)

// Packet is a sealed, immutable group of samples.
type Packet struct {
	layout Layout
	data   []byte
	// Battery is the evaluation of the battery mean over this packet,
	// nil when the layout has no battery channel.
	Battery *battery.Reading
}

// Len returns the encoded size.
func (p *Packet) Len() int {
	return len(p.data)
}

// Seq is the sequence byte of the first sample.
func (p *Packet) Seq() byte {
	return p.data[0]
}

// Samples returns the number of samples.
func (p *Packet) Samples() int {
	return len(p.data) / p.layout.SampleSize()
}

// Sample decodes the i-th sample.
func (p *Packet) Sample(i int) (seq byte, values []uint16) {
	return DecodeSample(p.data[i*p.layout.SampleSize() : (i+1)*p.layout.SampleSize()])
}

// Bytes returns a copy of the encoded packet.
func (p *Packet) Bytes() []byte {
	return append([]byte(nil), p.data...)
}

// WriteTo implements io.WriterTo.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.data)
	return int64(n), err
}

// DecodeSample splits an encoded sample into the sequence byte and
// big-endian channel values.
func DecodeSample(b []byte) (seq byte, values []uint16) {
	if len(b) == 0 {
		return 0, nil
	}
	seq, b = b[0], b[1:]
	values = make([]uint16, len(b)/2)
	for n := range values {
		values[n] = binary.BigEndian.Uint16(b[n*2:])
	}
	return
}
