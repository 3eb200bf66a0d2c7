// Package metrics exports device counters to prometheus.
package metrics

import (
	"context"
	"net/http"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robotalks/npg.go/pkg/framer"
	fx "github.com/robotalks/npg.go/pkg/framework"
	"github.com/robotalks/npg.go/pkg/stream"
)

// Namespace of all metrics.
const Namespace = "npg"

// Source provides the values exported.
type Source interface {
	Stats() framer.Stats
	State() stream.State
}

// Metrics holds the collectors of a device.
type Metrics struct {
	Commands   *prometheus.CounterVec
	LinkEvents *prometheus.CounterVec

	collectors []prometheus.Collector
}

// New creates the collectors over src.
func New(src Source) *Metrics {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "commands_total",
			Help:      "Control commands handled by command.",
		}, []string{"command"}),
		LinkEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "link_events_total",
			Help:      "Link connect and disconnect events.",
		}, []string{"event"}),
	}
	counter := func(name, help string, fn func(framer.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(fn(src.Stats())) })
	}
	m.collectors = []prometheus.Collector{
		m.Commands,
		m.LinkEvents,
		counter("frames_read_total", "Frames read from the converter.", func(s framer.Stats) uint64 { return s.FramesRead }),
		counter("frames_dropped_total", "Malformed frames dropped.", func(s framer.Stats) uint64 { return s.FramesDropped }),
		counter("packets_sealed_total", "Packets sealed by the framer.", func(s framer.Stats) uint64 { return s.PacketsSealed }),
		counter("packets_sent_total", "Packets notified to the peer.", func(s framer.Stats) uint64 { return s.PacketsSent }),
		counter("notify_errors_total", "Failed packet notifications.", func(s framer.Stats) uint64 { return s.NotifyErrors }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "battery_percent",
			Help:      "Battery charge of the last sealed packet.",
		}, func() float64 { return float64(src.Stats().BatteryPercent) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "stream_state",
			Help:      "Streaming state: 0 idle, 1 streaming, 2 fault.",
		}, func() float64 { return float64(src.State()) }),
	}
	return m
}

// Register registers all collectors.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Server serves the metrics endpoint.
type Server struct {
	Addr     string
	Gatherer prometheus.Gatherer
}

// Name implements Named.
func (s *Server) Name() string {
	return "metrics"
}

// Handler returns the http handler.
func (s *Server) Handler() http.Handler {
	if s.Gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{})
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Handler())
	server := &http.Server{Addr: s.Addr, Handler: mux}
	glog.Infof("metrics on %s/metrics", s.Addr)
	return fx.RunWithContextCloser(ctx, server, server.ListenAndServe)
}
