package device

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/robotalks/npg.go/pkg/adc"
	"github.com/robotalks/npg.go/pkg/command"
	"github.com/robotalks/npg.go/pkg/framer"
	fx "github.com/robotalks/npg.go/pkg/framework"
	"github.com/robotalks/npg.go/pkg/indicator"
	"github.com/robotalks/npg.go/pkg/metrics"
	"github.com/robotalks/npg.go/pkg/msgs"
	"github.com/robotalks/npg.go/pkg/stream"
	"github.com/robotalks/npg.go/pkg/transport"
)

// StatusPublisher is implemented by links able to publish device status.
type StatusPublisher interface {
	PublishStatus(*msgs.Status) error
}

// Device wires the sensor core to a converter, a link and an indicator.
// It handles link events on behalf of the core.
type Device struct {
	Config     *Config
	Controller *stream.Controller
	Commands   *command.Handler
	Indicator  indicator.Indicator
	Converter  adc.Converter
	Framer     *framer.Framer
	Pump       *framer.Pump
	Link       transport.Link
	Metrics    *metrics.Metrics
	Registry   *prometheus.Registry

	statusWaker *fx.Waker
}

// New assembles a Device from collaborators.
func New(conf *Config, conv adc.Converter, link transport.Link, ind indicator.Indicator) (*Device, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	f, err := framer.New(conf.Layout, conf.Monitor())
	if err != nil {
		return nil, err
	}
	d := &Device{
		Config:      conf,
		Controller:  stream.NewController(),
		Indicator:   ind,
		Converter:   conv,
		Framer:      f,
		Link:        link,
		Registry:    prometheus.NewRegistry(),
		statusWaker: fx.NewWaker(),
	}
	d.Commands = command.NewHandler(d.Controller, ind)
	d.Commands.Identity = conf.Identity
	d.Commands.Mode = conf.MatchMode
	d.Pump = framer.NewPump(conv, f, d.Controller, link)
	if conf.IdleInterval > 0 {
		d.Pump.IdleInterval = conf.IdleInterval
	}
	d.Metrics = metrics.New(d)
	if err := d.Metrics.Register(d.Registry); err != nil {
		return nil, err
	}
	d.Controller.Observe(d.onTransition)
	link.Attach(d)
	return d, nil
}

// Stats implements metrics.Source.
func (d *Device) Stats() framer.Stats {
	return d.Pump.Stats()
}

// State implements metrics.Source.
func (d *Device) State() stream.State {
	return d.Controller.Current()
}

// Connected implements transport.Handler.
func (d *Device) Connected(peer string) {
	glog.Infof("connected: %s", peer)
	d.Metrics.LinkEvents.WithLabelValues("connect").Inc()
	d.Controller.Dispatch(stream.Connect{Peer: peer})
	indicator.Request(d.Indicator, indicator.Status, indicator.Green, indicator.DefaultBrightness)
	d.statusWaker.Wake()
}

// Disconnected implements transport.Handler.
func (d *Device) Disconnected(peer string, reason error) {
	glog.Infof("disconnected: %s (%v)", peer, reason)
	d.Metrics.LinkEvents.WithLabelValues("disconnect").Inc()
	d.Controller.Dispatch(stream.Disconnect{Peer: peer, Reason: reason})
	indicator.Request(d.Indicator, indicator.Status, indicator.Red, indicator.DefaultBrightness)
}

// ControlWrite implements transport.Handler.
func (d *Device) ControlWrite(data []byte) []byte {
	d.Metrics.Commands.WithLabelValues(command.Parse(data, d.Commands.Mode).String()).Inc()
	return d.Commands.Handle(data)
}

// ControlRead implements transport.Handler.
func (d *Device) ControlRead() []byte {
	return d.Commands.Read()
}

// Status builds the current status message.
func (d *Device) Status() *msgs.Status {
	state := d.Controller.Current()
	stats := d.Pump.Stats()
	return &msgs.Status{
		State:          state.String(),
		Streaming:      state == stream.Streaming,
		BatteryPercent: uint32(stats.BatteryPercent),
		PacketsSent:    stats.PacketsSent,
		FramesDropped:  stats.FramesDropped,
		Timestamp:      time.Now().UnixNano(),
	}
}

func (d *Device) onTransition(t stream.Transition) {
	if !t.Changed() {
		return
	}
	if t.To == stream.Fault {
		glog.Errorf("battery critical, streaming disabled")
		indicator.Request(d.Indicator, indicator.Status, indicator.Yellow, indicator.DefaultBrightness)
	}
	if _, stopped := t.Event.(stream.Stop); stopped && t.From == stream.Streaming {
		indicator.Request(d.Indicator, indicator.Status, indicator.Green, indicator.DefaultBrightness)
	}
	d.statusWaker.Wake()
}

// Runnables returns everything to run for the device.
func (d *Device) Runnables() []fx.Runnable {
	runners := []fx.Runnable{
		fx.NamedRun("link", d.Link),
		d.Pump,
	}
	if pub, ok := d.Link.(StatusPublisher); ok {
		runners = append(runners, &statusReporter{device: d, publisher: pub})
	}
	if d.Config.MetricsAddr != "" {
		runners = append(runners, &metrics.Server{Addr: d.Config.MetricsAddr, Gatherer: d.Registry})
	}
	return runners
}

// Run runs the device until ctx is done or any part fails.
func (d *Device) Run(ctx context.Context) error {
	return fx.NewRunnerWith(ctx).Go(d.Runnables()...).Wait()
}

type statusReporter struct {
	device    *Device
	publisher StatusPublisher
}

func (r *statusReporter) Name() string {
	return "status"
}

func (r *statusReporter) Run(ctx context.Context) error {
	interval := r.device.Config.StatusInterval
	if interval <= 0 {
		interval = DefaultStatusInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-r.device.statusWaker.C():
		}
		r.publish()
	}
}

func (r *statusReporter) publish() {
	if err := r.publisher.PublishStatus(r.device.Status()); err != nil {
		glog.V(2).Infof("publish status error: %v", err)
	}
}
