package framer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/npg.go/pkg/adc"
	"github.com/robotalks/npg.go/pkg/battery"
)

func makeFrame(data []uint16, bat ...uint16) adc.Frame {
	var f adc.Frame
	for n, raw := range data {
		f.Readings = append(f.Readings, adc.Reading{Channel: n, Raw: raw})
	}
	for _, raw := range bat {
		f.Readings = append(f.Readings, adc.Reading{Channel: len(data), Raw: raw})
	}
	return f
}

func newFramer(t *testing.T, layout Layout) *Framer {
	f, err := New(layout, battery.NewMonitor(battery.DefaultCalibration))
	require.NoError(t, err)
	return f
}

func TestLayout(t *testing.T) {
	require.NoError(t, DefaultLayout.Validate())
	require.Equal(t, 4, DefaultLayout.Channels())
	require.Equal(t, 3, DefaultLayout.BatteryChannel())
	require.Equal(t, 7, DefaultLayout.SampleSize())
	require.Equal(t, 175, DefaultLayout.PacketSize())
	require.Equal(t, uint16(4095), DefaultLayout.MaxRaw)

	layout := DefaultLayout
	layout.SamplesPerPacket = 37
	err := layout.Validate()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrPacketTooLarge))

	layout = DefaultLayout
	layout.Sequence = "frame"
	require.Error(t, layout.Validate())

	_, err = New(DefaultLayout, nil)
	require.Error(t, err)
}

func TestMidScalePacket(t *testing.T) {
	f := newFramer(t, DefaultLayout)
	frame := makeFrame([]uint16{2048, 2048, 2048}, 2048)
	for i := 0; i < 24; i++ {
		pkt, err := f.OnFrameReady(frame)
		require.NoError(t, err)
		require.Nil(t, pkt)
	}
	pkt, err := f.OnFrameReady(frame)
	require.NoError(t, err)
	require.NotNil(t, pkt)
	require.Equal(t, 175, pkt.Len())
	require.Equal(t, 25, pkt.Samples())
	expect := uint16(2048 * 4095 / 3329)
	require.Equal(t, uint16(2519), expect)
	for i := 0; i < pkt.Samples(); i++ {
		seq, values := pkt.Sample(i)
		require.Equal(t, byte(0), seq)
		require.Equal(t, []uint16{expect, expect, expect}, values)
	}
	b := pkt.Bytes()
	require.Equal(t, []byte{0, 0x09, 0xd7, 0x09, 0xd7, 0x09, 0xd7}, b[:7])
	require.NotNil(t, pkt.Battery)
	require.Equal(t, float64(expect)*DefaultSenseDivider, pkt.Battery.Mean)
	require.Equal(t, battery.Normal, pkt.Battery.Action)
	require.Equal(t, 0, f.Pending())
}

func TestPacketImmutable(t *testing.T) {
	layout := DefaultLayout
	layout.SamplesPerPacket = 1
	f := newFramer(t, layout)
	pkt, err := f.OnFrameReady(makeFrame([]uint16{1, 2, 3}, 2000))
	require.NoError(t, err)
	b := pkt.Bytes()
	b[1] = 0xff
	require.NotEqual(t, b, pkt.Bytes())
	_, err = f.OnFrameReady(makeFrame([]uint16{4, 5, 6}, 2000))
	require.NoError(t, err)
	_, values := pkt.Sample(0)
	require.Equal(t, []uint16{1, 2, 3}, values)
}

func TestSequenceWrap(t *testing.T) {
	layout := DefaultLayout
	layout.Battery = false
	layout.SamplesPerPacket = 2
	f := newFramer(t, layout)
	frame := makeFrame([]uint16{1, 2, 3})
	var seqs []byte
	for len(seqs) < 258 {
		pkt, err := f.OnFrameReady(frame)
		require.NoError(t, err)
		if pkt != nil {
			require.Equal(t, 14, pkt.Len())
			require.Nil(t, pkt.Battery)
			s0, _ := pkt.Sample(0)
			s1, _ := pkt.Sample(1)
			require.Equal(t, s0, s1)
			seqs = append(seqs, pkt.Seq())
		}
	}
	for n := 1; n < len(seqs); n++ {
		require.Equal(t, seqs[n-1]+1, seqs[n])
	}
	require.Equal(t, byte(255), seqs[255])
	require.Equal(t, byte(0), seqs[256])
}

func TestSampleSequence(t *testing.T) {
	layout := DefaultLayout
	layout.Sequence = SequenceSample
	f := newFramer(t, layout)
	frame := makeFrame([]uint16{0, 0, 0}, 3000)
	var expect byte
	for p := 0; p < 12; p++ {
		var pkt *Packet
		for pkt == nil {
			var err error
			pkt, err = f.OnFrameReady(frame)
			require.NoError(t, err)
		}
		for i := 0; i < pkt.Samples(); i++ {
			seq, _ := pkt.Sample(i)
			require.Equal(t, expect, seq)
			expect++
		}
	}
}

func TestMalformedFrames(t *testing.T) {
	testCases := []struct {
		name  string
		frame adc.Frame
	}{
		{"missing battery", makeFrame([]uint16{1, 2, 3})},
		{"extra reading", makeFrame([]uint16{1, 2, 3, 4}, 5)},
		{"out of range", adc.Frame{Readings: []adc.Reading{{Channel: 0, Raw: 1}, {Channel: 1, Raw: 1}, {Channel: 2, Raw: 1}, {Channel: 4, Raw: 1}}}},
		{"negative channel", adc.Frame{Readings: []adc.Reading{{Channel: 0, Raw: 1}, {Channel: 1, Raw: 1}, {Channel: 2, Raw: 1}, {Channel: -1, Raw: 1}}}},
		{"duplicated", adc.Frame{Readings: []adc.Reading{{Channel: 0, Raw: 1}, {Channel: 1, Raw: 1}, {Channel: 1, Raw: 1}, {Channel: 3, Raw: 1}}}},
		{"raw overflow", makeFrame([]uint16{1, 4096, 3}, 5)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFramer(t, DefaultLayout)
			_, err := f.OnFrameReady(makeFrame([]uint16{1, 2, 3}, 2000))
			require.NoError(t, err)
			pkt, err := f.OnFrameReady(tc.frame)
			require.Nil(t, pkt)
			require.True(t, errors.Is(err, ErrMalformedFrame))
			require.Equal(t, 1, f.Pending())
		})
	}
}

func TestReadingOrder(t *testing.T) {
	layout := DefaultLayout
	layout.SamplesPerPacket = 1
	f := newFramer(t, layout)
	pkt, err := f.OnFrameReady(adc.Frame{Readings: []adc.Reading{{Channel: 3, Raw: 2000}, {Channel: 2, Raw: 30}, {Channel: 0, Raw: 10}, {Channel: 1, Raw: 20}}})
	require.NoError(t, err)
	_, values := pkt.Sample(0)
	require.Equal(t, []uint16{
		adc.Scale(10, adc.DefaultConverterMax, adc.CanonicalMax),
		adc.Scale(20, adc.DefaultConverterMax, adc.CanonicalMax),
		adc.Scale(30, adc.DefaultConverterMax, adc.CanonicalMax),
	}, values)
}

func TestResetKeepsSequence(t *testing.T) {
	layout := DefaultLayout
	layout.SamplesPerPacket = 2
	f := newFramer(t, layout)
	frame := makeFrame([]uint16{1, 2, 3}, 2000)
	f.OnFrameReady(frame)
	pkt, _ := f.OnFrameReady(frame)
	require.Equal(t, byte(0), pkt.Seq())
	f.OnFrameReady(frame)
	require.Equal(t, 1, f.Pending())
	f.Reset()
	require.Equal(t, 0, f.Pending())
	f.OnFrameReady(frame)
	pkt, _ = f.OnFrameReady(frame)
	require.NotNil(t, pkt)
	require.Equal(t, byte(1), pkt.Seq())
}
