package record

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/npg.go/pkg/framer"
)

func testLayout(mode framer.SequenceMode) framer.Layout {
	layout := framer.DefaultLayout
	layout.SamplesPerPacket = 2
	layout.Sequence = mode
	return layout
}

func sample(seq byte, v uint16) []byte {
	return []byte{seq, byte(v >> 8), byte(v), 0, 1, 0, 2}
}

func concat(parts ...[]byte) []byte {
	var b []byte
	for _, p := range parts {
		b = append(b, p...)
	}
	return b
}

func TestDecoderReassembles(t *testing.T) {
	d := NewDecoder(testLayout(framer.SequencePacket))
	now := time.Unix(100, 0)
	data := concat(sample(7, 0x0102), sample(7, 0x0304))

	require.Empty(t, d.Feed(data[:3], now))
	require.Empty(t, d.Feed(data[3:9], now))
	batches := d.Feed(data[9:], now)
	require.Len(t, batches, 1)
	b := batches[0]
	require.Len(t, b.Samples, 2)
	require.Equal(t, Sample{Seq: 7, Values: []uint16{0x0102, 1, 2}}, b.Samples[0])
	require.Equal(t, uint16(0x0304), b.Samples[1].Values[0])
	require.Zero(t, b.Missing)
	require.Equal(t, Stats{Samples: 2, Batches: 1}, d.Stats())
}

func TestDecoderGaps(t *testing.T) {
	testCases := []struct {
		name    string
		mode    framer.SequenceMode
		seqs    []byte
		missing []int
	}{
		{"packet continuous", framer.SequencePacket, []byte{1, 1, 2, 2}, []int{0, 0}},
		{"packet gap", framer.SequencePacket, []byte{1, 1, 4, 4}, []int{0, 4}},
		{"packet wrap", framer.SequencePacket, []byte{255, 255, 0, 0}, []int{0, 0}},
		{"packet gap across wrap", framer.SequencePacket, []byte{254, 254, 1, 1}, []int{0, 4}},
		{"sample continuous", framer.SequenceSample, []byte{10, 11, 12, 13}, []int{0, 0}},
		{"sample gap", framer.SequenceSample, []byte{10, 11, 15, 16}, []int{0, 3}},
		{"sample wrap", framer.SequenceSample, []byte{254, 255, 0, 1}, []int{0, 0}},
		{"sample gap across wrap", framer.SequenceSample, []byte{254, 255, 2, 3}, []int{0, 2}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDecoder(testLayout(tc.mode))
			var missing []int
			var total int
			for _, seq := range tc.seqs {
				for _, b := range d.Feed(sample(seq, 0), time.Now()) {
					missing = append(missing, b.Missing)
					total += b.Missing
				}
			}
			require.Equal(t, tc.missing, missing)
			require.Equal(t, uint64(total), d.Stats().Missing)
		})
	}
}

func TestDecoderFlush(t *testing.T) {
	d := NewDecoder(testLayout(framer.SequenceSample))
	now := time.Now()
	require.Nil(t, d.Flush(now))
	data := concat(sample(0, 1), sample(1, 2), sample(2, 3), sample(3, 4))
	require.Len(t, d.Feed(data[:len(data)-2], now), 1)
	b := d.Flush(now)
	require.NotNil(t, b)
	require.Len(t, b.Samples, 1)
	require.Equal(t, uint8(2), b.Samples[0].Seq)
	require.Nil(t, d.Flush(now))
	require.Equal(t, uint64(3), d.Stats().Samples)
}

func TestBatchTime(t *testing.T) {
	recv := time.Unix(10, 0)
	b := &Batch{Received: recv, Samples: make([]Sample, 3)}
	require.Equal(t, recv, b.Time(2, 250))
	require.Equal(t, recv.Add(-8*time.Millisecond), b.Time(0, 250))
	require.Equal(t, recv, b.Time(0, 0))
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	s := NewCSV(&buf, 3, 250)
	b := &Batch{
		Received: time.Unix(10, 0),
		Samples: []Sample{
			{Seq: 1, Values: []uint16{100, 200, 300}},
			{Seq: 2, Values: []uint16{101, 201, 301}},
		},
	}
	require.NoError(t, s.Write(context.Background(), b))
	require.NoError(t, s.Write(context.Background(), &Batch{Received: time.Unix(11, 0), Samples: b.Samples[:1]}))
	require.NoError(t, s.Close())
	require.Equal(t, strings.Join([]string{
		"timestamp_unix,counter,ch0,ch1,ch2",
		"9.996000,1,100,200,300",
		"10.000000,2,101,201,301",
		"11.000000,1,100,200,300",
		"",
	}, "\n"), buf.String())
}

type pointRecorder struct {
	points []*write.Point
}

func (r *pointRecorder) WritePoint(_ context.Context, points ...*write.Point) error {
	r.points = append(r.points, points...)
	return nil
}

func TestInflux(t *testing.T) {
	var rec pointRecorder
	s := NewInfluxWith(&rec, "dev1", 250)
	b := &Batch{
		Received: time.Unix(10, 0),
		Samples: []Sample{
			{Seq: 1, Values: []uint16{100, 200}},
			{Seq: 2, Values: []uint16{101, 201}},
		},
	}
	require.NoError(t, s.Write(context.Background(), b))
	require.NoError(t, s.Write(context.Background(), &Batch{}))
	require.Len(t, rec.points, 2)
	p := rec.points[0]
	require.Equal(t, DefaultMeasurement, p.Name())
	require.Equal(t, time.Unix(10, 0).Add(-4*time.Millisecond), p.Time())
	require.Len(t, p.TagList(), 1)
	require.Equal(t, "device", p.TagList()[0].Key)
	require.Equal(t, "dev1", p.TagList()[0].Value)
	require.Len(t, p.FieldList(), 3)
	line := write.PointToLineProtocol(rec.points[1], time.Nanosecond)
	require.True(t, strings.HasPrefix(line, "npg,device=dev1 "), line)
	for _, field := range []string{"ch0=101i", "ch1=201i", "counter=2i", " 10000000000"} {
		require.Contains(t, line, field)
	}
	require.NoError(t, s.Close())
}

func TestMulti(t *testing.T) {
	var rec pointRecorder
	var buf bytes.Buffer
	m := Multi{NewInfluxWith(&rec, "d", 250), NewCSV(&buf, 1, 250)}
	b := &Batch{Received: time.Unix(1, 0), Samples: []Sample{{Seq: 0, Values: []uint16{5}}}}
	require.NoError(t, m.Write(context.Background(), b))
	require.NoError(t, m.Close())
	require.Len(t, rec.points, 1)
	require.Contains(t, buf.String(), "1.000000,0,5")
}
