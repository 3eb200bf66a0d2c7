package framer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/npg.go/pkg/adc"
	"github.com/robotalks/npg.go/pkg/battery"
	fx "github.com/robotalks/npg.go/pkg/framework"
	"github.com/robotalks/npg.go/pkg/stream"
	"github.com/robotalks/npg.go/pkg/transport"
)

// DefaultIdleInterval is the state polling interval when not streaming.
const DefaultIdleInterval = 100 * time.Millisecond

// Stats is a snapshot of Pump counters.
type Stats struct {
	FramesRead     uint64
	FramesDropped  uint64
	PacketsSealed  uint64
	PacketsSent    uint64
	NotifyErrors   uint64
	BatteryPercent uint8
}

type counters struct {
	framesRead     uint64
	framesDropped  uint64
	packetsSealed  uint64
	packetsSent    uint64
	notifyErrors   uint64
	batteryPercent uint32
}

// Pump is the single consumer moving frames from the converter through
// the Framer to the Notifier.
type Pump struct {
	Converter    adc.Converter
	Framer       *Framer
	Controller   *stream.Controller
	Notifier     transport.Notifier
	IdleInterval time.Duration

	waker    *fx.Waker
	sessions uint64
	counters counters
}

// NewPump creates a Pump and registers it for frame-ready signals and
// state changes.
func NewPump(conv adc.Converter, framer *Framer, ctl *stream.Controller, notifier transport.Notifier) *Pump {
	if conv == nil || framer == nil || ctl == nil || notifier == nil {
		panic("pump requires converter, framer, controller and notifier")
	}
	p := &Pump{
		Converter:    conv,
		Framer:       framer,
		Controller:   ctl,
		Notifier:     notifier,
		IdleInterval: DefaultIdleInterval,
		waker:        fx.NewWaker(),
	}
	conv.OnFrameReady(p.Wake)
	ctl.Observe(func(t stream.Transition) {
		if t.From == stream.Streaming {
			atomic.AddUint64(&p.sessions, 1)
		}
		p.Wake()
	})
	return p
}

// Name implements Named.
func (p *Pump) Name() string {
	return "pump"
}

// Wake signals frames are available.
func (p *Pump) Wake() {
	p.waker.Wake()
}

// Stats returns a snapshot of counters.
func (p *Pump) Stats() Stats {
	return Stats{
		FramesRead:     atomic.LoadUint64(&p.counters.framesRead),
		FramesDropped:  atomic.LoadUint64(&p.counters.framesDropped),
		PacketsSealed:  atomic.LoadUint64(&p.counters.packetsSealed),
		PacketsSent:    atomic.LoadUint64(&p.counters.packetsSent),
		NotifyErrors:   atomic.LoadUint64(&p.counters.notifyErrors),
		BatteryPercent: uint8(atomic.LoadUint32(&p.counters.batteryPercent)),
	}
}

// Run implements Runnable.
func (p *Pump) Run(ctx context.Context) error {
	interval := p.IdleInterval
	if interval <= 0 {
		interval = DefaultIdleInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var (
		running bool
		session uint64
	)
	defer func() {
		if running {
			p.halt()
		}
	}()
	for {
		// Leaving Streaming ends the session even when a new one has
		// already started before this check.
		current := atomic.LoadUint64(&p.sessions)
		streaming := p.Controller.Streaming()
		if running && (current != session || !streaming) {
			p.halt()
			running = false
		}
		session = current
		if streaming && !running {
			running = p.resume()
		}
		if running {
			p.drain(session)
			if p.Controller.Streaming() {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-p.waker.C():
				}
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.waker.C():
		case <-ticker.C:
		}
	}
}

func (p *Pump) resume() bool {
	if err := p.Converter.Start(); err != nil {
		glog.Errorf("converter start error: %v", err)
		p.Controller.Stop()
		return false
	}
	glog.V(1).Info("acquisition started")
	return true
}

func (p *Pump) halt() {
	if err := p.Converter.Stop(); err != nil {
		glog.Warningf("converter stop error: %v", err)
	}
	var stale int
	for _, ok := p.Converter.ReadAvailableFrame(); ok; _, ok = p.Converter.ReadAvailableFrame() {
		stale++
	}
	p.Framer.Reset()
	glog.V(1).Infof("acquisition stopped, %d buffered frames discarded", stale)
}

func (p *Pump) drain(session uint64) {
	for p.Controller.Streaming() && atomic.LoadUint64(&p.sessions) == session {
		frame, ok := p.Converter.ReadAvailableFrame()
		if !ok {
			return
		}
		atomic.AddUint64(&p.counters.framesRead, 1)
		pkt, err := p.Framer.OnFrameReady(frame)
		if err != nil {
			atomic.AddUint64(&p.counters.framesDropped, 1)
			glog.V(2).Infof("frame dropped: %v", err)
			continue
		}
		if pkt == nil {
			continue
		}
		atomic.AddUint64(&p.counters.packetsSealed, 1)
		if !p.checkBattery(pkt.Battery) {
			return
		}
		if err := p.Notifier.Notify(transport.Data, pkt.Bytes()); err != nil {
			atomic.AddUint64(&p.counters.notifyErrors, 1)
			glog.V(2).Infof("notify packet %d error: %v", pkt.Seq(), err)
			continue
		}
		atomic.AddUint64(&p.counters.packetsSent, 1)
	}
}

func (p *Pump) checkBattery(r *battery.Reading) bool {
	if r == nil {
		return true
	}
	atomic.StoreUint32(&p.counters.batteryPercent, uint32(r.Percent))
	if r.Action != battery.Critical {
		return true
	}
	glog.Warningf("battery critical: %.2fV %d%%, shutting down streaming", r.Voltage, r.Percent)
	p.Controller.Dispatch(stream.BatteryCritical{Percent: r.Percent})
	return false
}
