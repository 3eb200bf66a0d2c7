package framer

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/npg.go/pkg/adc"
	"github.com/robotalks/npg.go/pkg/battery"
	"github.com/robotalks/npg.go/pkg/stream"
	"github.com/robotalks/npg.go/pkg/transport"
)

type fakeConverter struct {
	lock    sync.Mutex
	frames  []adc.Frame
	ready   func()
	running bool
	starts  int
	stops   int
}

func (c *fakeConverter) Start() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.running = true
	c.starts++
	return nil
}

func (c *fakeConverter) Stop() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.running = false
	c.stops++
	return nil
}

func (c *fakeConverter) ReadAvailableFrame() (adc.Frame, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if len(c.frames) == 0 {
		return adc.Frame{}, false
	}
	f := c.frames[0]
	c.frames = c.frames[1:]
	return f, true
}

func (c *fakeConverter) OnFrameReady(fn func()) {
	c.lock.Lock()
	c.ready = fn
	c.lock.Unlock()
}

func (c *fakeConverter) push(frames ...adc.Frame) {
	c.lock.Lock()
	c.frames = append(c.frames, frames...)
	ready := c.ready
	c.lock.Unlock()
	if ready != nil {
		ready()
	}
}

func (c *fakeConverter) counts() (starts, stops int) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.starts, c.stops
}

func (c *fakeConverter) isRunning() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.running
}

func repeatFrame(n int, frame adc.Frame) []adc.Frame {
	frames := make([]adc.Frame, n)
	for i := range frames {
		frames[i] = frame
	}
	return frames
}

type pumpFixture struct {
	conv *fakeConverter
	ctl  *stream.Controller
	rec  *transport.Recorder
	pump *Pump

	cancel func()
	done   chan error
}

func startPump(t *testing.T) *pumpFixture {
	return startPumpWith(t, 10*time.Millisecond)
}

func startPumpWith(t *testing.T, idle time.Duration) *pumpFixture {
	f, err := New(DefaultLayout, battery.NewMonitor(battery.DefaultCalibration))
	require.NoError(t, err)
	fx := &pumpFixture{
		conv: &fakeConverter{},
		ctl:  stream.NewController(),
		rec:  transport.NewRecorder(16),
		done: make(chan error, 1),
	}
	fx.pump = NewPump(fx.conv, f, fx.ctl, fx.rec)
	fx.pump.IdleInterval = idle
	ctx, cancel := context.WithCancel(context.Background())
	fx.cancel = cancel
	go func() { fx.done <- fx.pump.Run(ctx) }()
	return fx
}

func (fx *pumpFixture) stop(t *testing.T) {
	fx.cancel()
	select {
	case err := <-fx.done:
		require.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("pump didn't stop")
	}
}

func TestPumpStreamsPackets(t *testing.T) {
	fx := startPump(t)
	defer fx.stop(t)

	require.NoError(t, fx.ctl.TryStart())
	require.Eventually(t, fx.conv.isRunning, time.Second, time.Millisecond)
	fx.conv.push(repeatFrame(50, makeFrame([]uint16{2048, 100, 4095}, 4000))...)
	for i := 0; i < 2; i++ {
		select {
		case n := <-fx.rec.C:
			require.Equal(t, transport.Data, n.Channel)
			require.Len(t, n.Data, 175)
			require.Equal(t, byte(i), n.Data[0])
		case <-time.After(time.Second):
			t.Fatal("packet not notified")
		}
	}
	stats := fx.pump.Stats()
	require.Equal(t, uint64(50), stats.FramesRead)
	require.Equal(t, uint64(2), stats.PacketsSent)
	require.Equal(t, uint8(100), stats.BatteryPercent)

	require.True(t, fx.ctl.Stop())
	require.Eventually(t, func() bool { return !fx.conv.isRunning() }, time.Second, time.Millisecond)
}

func TestPumpRestartSeparatesSessions(t *testing.T) {
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(1))
	fx := startPump(t)
	defer fx.stop(t)

	require.NoError(t, fx.ctl.TryStart())
	require.Eventually(t, fx.conv.isRunning, time.Second, time.Millisecond)
	fx.conv.push(repeatFrame(10, makeFrame([]uint16{100, 100, 100}, 4000))...)
	require.Eventually(t, func() bool { return fx.pump.Stats().FramesRead == 10 }, time.Second, time.Millisecond)

	require.True(t, fx.ctl.Stop())
	require.NoError(t, fx.ctl.TryStart())
	require.Eventually(t, func() bool {
		starts, stops := fx.conv.counts()
		return starts == 2 && stops == 1
	}, time.Second, time.Millisecond)
	fx.conv.push(repeatFrame(25, makeFrame([]uint16{200, 200, 200}, 4000))...)

	select {
	case n := <-fx.rec.C:
		require.Equal(t, transport.Data, n.Channel)
		require.Len(t, n.Data, 175)
		for k := 0; k < 25; k++ {
			_, values := DecodeSample(n.Data[k*7 : (k+1)*7])
			require.Equal(t, []uint16{246, 246, 246}, values, "sample %d", k)
		}
	case <-time.After(time.Second):
		t.Fatal("packet not notified")
	}
	starts, stops := fx.conv.counts()
	require.Equal(t, 2, starts)
	require.Equal(t, 1, stops)
}

func TestPumpIdleIntervalFallback(t *testing.T) {
	fx := startPumpWith(t, 0)
	defer fx.stop(t)

	require.NoError(t, fx.ctl.TryStart())
	require.Eventually(t, fx.conv.isRunning, time.Second, time.Millisecond)
	require.True(t, fx.ctl.Stop())
	require.Eventually(t, func() bool { return !fx.conv.isRunning() }, time.Second, time.Millisecond)
}

func TestPumpDropsMalformedAndFailedNotify(t *testing.T) {
	fx := startPump(t)
	defer fx.stop(t)

	fx.rec.FailWith(errors.New("link down"))
	require.NoError(t, fx.ctl.TryStart())
	frames := repeatFrame(25, makeFrame([]uint16{1, 2, 3}, 3000))
	frames = append(frames, makeFrame([]uint16{1, 2, 3}))
	fx.conv.push(frames...)
	require.Eventually(t, func() bool {
		s := fx.pump.Stats()
		return s.FramesRead == 26 && s.NotifyErrors == 1
	}, time.Second, time.Millisecond)
	stats := fx.pump.Stats()
	require.Equal(t, uint64(1), stats.FramesDropped)
	require.Equal(t, uint64(1), stats.PacketsSealed)
	require.Equal(t, uint64(0), stats.PacketsSent)
	require.Equal(t, stream.Streaming, fx.ctl.Current())
}

func TestPumpCriticalBattery(t *testing.T) {
	fx := startPump(t)
	defer fx.stop(t)

	require.NoError(t, fx.ctl.TryStart())
	fx.conv.push(repeatFrame(30, makeFrame([]uint16{1, 2, 3}, 0))...)
	require.Eventually(t, func() bool { return fx.ctl.Current() == stream.Fault }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return !fx.conv.isRunning() }, time.Second, time.Millisecond)
	require.Empty(t, fx.rec.Notifications(transport.Data))
	stats := fx.pump.Stats()
	require.Equal(t, uint64(1), stats.PacketsSealed)
	require.Equal(t, uint64(0), stats.PacketsSent)
	require.Equal(t, uint8(0), stats.BatteryPercent)
	require.Equal(t, stream.ErrFaulted, fx.ctl.TryStart())
}

func TestPumpRequiresCollaborators(t *testing.T) {
	f, err := New(DefaultLayout, battery.NewMonitor(battery.DefaultCalibration))
	require.NoError(t, err)
	require.Panics(t, func() {
		NewPump(nil, f, stream.NewController(), transport.NewRecorder(1))
	})
	require.Panics(t, func() {
		NewPump(&fakeConverter{}, f, stream.NewController(), nil)
	})
}
