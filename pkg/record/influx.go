package record

import (
	"context"
	"strconv"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// DefaultMeasurement is the InfluxDB measurement of samples.
const DefaultMeasurement = "npg"

// PointWriter writes points, e.g. api.WriteAPIBlocking.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxConfig locates the InfluxDB bucket.
type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// Influx writes one point per sample tagged with the device id.
type Influx struct {
	Writer      PointWriter
	Measurement string
	Device      string
	Rate        float64

	closer func()
}

// NewInflux creates an Influx sink on a new client.
func NewInflux(conf InfluxConfig, device string, rate float64) *Influx {
	client := influxdb2.NewClient(conf.URL, conf.Token)
	s := NewInfluxWith(client.WriteAPIBlocking(conf.Org, conf.Bucket), device, rate)
	s.closer = client.Close
	return s
}

// NewInfluxWith creates an Influx sink on a PointWriter.
func NewInfluxWith(w PointWriter, device string, rate float64) *Influx {
	return &Influx{Writer: w, Measurement: DefaultMeasurement, Device: device, Rate: rate}
}

// Points converts a batch into points.
func (s *Influx) Points(b *Batch) []*write.Point {
	points := make([]*write.Point, 0, len(b.Samples))
	for k, sample := range b.Samples {
		fields := map[string]interface{}{"counter": int64(sample.Seq)}
		for n, v := range sample.Values {
			fields["ch"+strconv.Itoa(n)] = int64(v)
		}
		points = append(points, influxdb2.NewPoint(
			s.Measurement,
			map[string]string{"device": s.Device},
			fields,
			b.Time(k, s.Rate),
		))
	}
	return points
}

// Write implements Sink.
func (s *Influx) Write(ctx context.Context, b *Batch) error {
	if len(b.Samples) == 0 {
		return nil
	}
	return s.Writer.WritePoint(ctx, s.Points(b)...)
}

// Close implements Sink.
func (s *Influx) Close() error {
	if s.closer != nil {
		s.closer()
	}
	return nil
}
