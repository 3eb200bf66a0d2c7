package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/robotalks/npg.go/pkg/adc"
	env "github.com/robotalks/npg.go/pkg/env/connector"
	"github.com/robotalks/npg.go/pkg/framer"
	fx "github.com/robotalks/npg.go/pkg/framework"
	"github.com/robotalks/npg.go/pkg/msgs"
	"github.com/robotalks/npg.go/pkg/record"
)

var (
	csvPath  string
	influx   record.InfluxConfig
	duration time.Duration
	start    bool
)

func init() {
	env.SetupFlags()
	flag.StringVar(&csvPath, "csv", csvPath, "Record samples into CSV file.")
	flag.StringVar(&influx.URL, "influx-url", influx.URL, "Record samples into InfluxDB at URL.")
	flag.StringVar(&influx.Token, "influx-token", influx.Token, "InfluxDB token.")
	flag.StringVar(&influx.Org, "influx-org", influx.Org, "InfluxDB organization.")
	flag.StringVar(&influx.Bucket, "influx-bucket", influx.Bucket, "InfluxDB bucket.")
	flag.DurationVar(&duration, "duration", duration, "Stop after duration, 0 for no limit.")
	flag.BoolVar(&start, "start", start, "Send START after connected and STOP on exit.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	conf := env.NewConfig()
	layout, rate := discoverLayout(conf)

	var sinks record.Multi
	if csvPath != "" {
		s, err := record.CreateCSV(csvPath, layout.DataChannels, rate)
		if err != nil {
			log.Fatalln(err)
		}
		sinks = append(sinks, s)
	}
	if influx.URL != "" {
		sinks = append(sinks, record.NewInflux(influx, conf.DeviceID, rate))
	}

	peer := conf.MustConnect()
	batches := make(chan *record.Batch, 64)
	decoder := record.NewDecoder(layout)
	peer.OnData(func(data []byte) {
		log.Printf("data: %d bytes", len(data))
		for _, b := range decoder.Feed(data, time.Now()) {
			select {
			case batches <- b:
			default:
				log.Printf("recorder behind, batch of %d samples dropped", len(b.Samples))
			}
		}
	})
	peer.OnStatus(func(s *msgs.Status) {
		log.Printf("status: %s", s.String())
	})
	peer.OnIndicator(func(ind *msgs.Indicator) {
		log.Printf("indicator: %s", ind.String())
	})

	ctx := context.Background()
	if duration > 0 {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}
	if start {
		command(peer.Command, "START")
	}

	began := time.Now()
	var streamed time.Time
	err := fx.NewRunnerWith(ctx).HandleSignals().Go(fx.RunFunc(func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case b := <-batches:
				if streamed.IsZero() {
					streamed = b.Received
				}
				write(ctx, sinks, b)
			}
		}
	})).Wait()
	if err != nil && err != context.DeadlineExceeded {
		log.Println(err)
	}

	if start {
		command(peer.Command, "STOP")
	}
	if err := peer.Close(); err != nil {
		log.Printf("close: %v", err)
	}
	for len(batches) > 0 {
		write(context.Background(), sinks, <-batches)
	}
	if b := decoder.Flush(time.Now()); b != nil {
		write(context.Background(), sinks, b)
	}
	if err := sinks.Close(); err != nil {
		log.Printf("close sinks: %v", err)
	}

	stats := decoder.Stats()
	log.Printf("elapsed %s, samples %d, batches %d, missing %d", time.Since(began).Round(time.Millisecond), stats.Samples, stats.Batches, stats.Missing)
	if !streamed.IsZero() {
		if secs := time.Since(streamed).Seconds(); secs > 0 {
			log.Printf("effective rate %.1f samples/s", float64(stats.Samples)/secs)
		}
	}
}

func discoverLayout(conf *env.Config) (framer.Layout, float64) {
	layout, rate := framer.DefaultLayout, adc.DefaultBaseRate
	metas, err := conf.Discover(context.Background())
	if err != nil {
		log.Printf("discover: %v", err)
	}
	for _, meta := range metas {
		if meta.ID != conf.DeviceID {
			continue
		}
		if meta.DataChannels > 0 {
			layout.DataChannels = meta.DataChannels
		}
		if meta.SamplesPerPacket > 0 {
			layout.SamplesPerPacket = meta.SamplesPerPacket
		}
		if meta.SampleRate > 0 {
			rate = meta.SampleRate
		}
		if mode := framer.SequenceMode(meta.Sequence); mode.Valid() {
			layout.Sequence = mode
		}
		log.Printf("device %s: %d channels, %d samples/packet, %s sequence", meta.ID, layout.DataChannels, layout.SamplesPerPacket, layout.Sequence)
	}
	return layout, rate
}

func command(fn func(context.Context, string) (string, error), cmd string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reply, err := fn(ctx, cmd)
	if err != nil {
		log.Printf("%s: %v", cmd, err)
		return
	}
	log.Printf("%s: %s", cmd, reply)
}

func write(ctx context.Context, sinks record.Multi, b *record.Batch) {
	last := b.Samples[len(b.Samples)-1]
	if b.Missing > 0 {
		log.Printf("WARNING: %d samples missing before counter %d", b.Missing, b.Samples[0].Seq)
	}
	log.Printf("batch: %d samples, last counter %d", len(b.Samples), last.Seq)
	if err := sinks.Write(ctx, b); err != nil {
		log.Printf("record error: %v", err)
	}
}
