package record

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	fx "github.com/robotalks/npg.go/pkg/framework"
)

// Sink records batches.
type Sink interface {
	Write(ctx context.Context, b *Batch) error
	Close() error
}

// Multi fans batches out to multiple sinks.
type Multi []Sink

// Write implements Sink.
func (m Multi) Write(ctx context.Context, b *Batch) error {
	var errs fx.AggregatedError
	for _, s := range m {
		errs.Add(s.Write(ctx, b))
	}
	return errs.Aggregate()
}

// Close implements Sink.
func (m Multi) Close() error {
	var errs fx.AggregatedError
	for _, s := range m {
		errs.Add(s.Close())
	}
	return errs.Aggregate()
}

type syncer interface {
	Sync() error
}

// CSV writes one row per sample: timestamp_unix,counter,ch0..chN.
// Rows are flushed after every batch.
type CSV struct {
	Rate     float64
	Channels int

	out    io.Writer
	writer *csv.Writer
	header bool
}

// NewCSV creates a CSV sink on w.
func NewCSV(w io.Writer, channels int, rate float64) *CSV {
	return &CSV{Rate: rate, Channels: channels, out: w, writer: csv.NewWriter(w)}
}

// CreateCSV creates the file and its parent directories.
func CreateCSV(path string, channels int, rate float64) (*CSV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return NewCSV(f, channels, rate), nil
}

// Write implements Sink.
func (s *CSV) Write(_ context.Context, b *Batch) error {
	if !s.header {
		row := []string{"timestamp_unix", "counter"}
		for n := 0; n < s.Channels; n++ {
			row = append(row, "ch"+strconv.Itoa(n))
		}
		if err := s.writer.Write(row); err != nil {
			return err
		}
		s.header = true
	}
	for k, sample := range b.Samples {
		ts := b.Time(k, s.Rate)
		row := []string{
			strconv.FormatFloat(float64(ts.UnixNano())/1e9, 'f', 6, 64),
			strconv.Itoa(int(sample.Seq)),
		}
		for _, v := range sample.Values {
			row = append(row, strconv.Itoa(int(v)))
		}
		if err := s.writer.Write(row); err != nil {
			return err
		}
	}
	return s.flush()
}

func (s *CSV) flush() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return err
	}
	if f, ok := s.out.(syncer); ok {
		return f.Sync()
	}
	return nil
}

// Close implements Sink.
func (s *CSV) Close() error {
	err := s.flush()
	if c, ok := s.out.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
