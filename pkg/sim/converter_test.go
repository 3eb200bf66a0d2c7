package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/npg.go/pkg/adc"
	"github.com/robotalks/npg.go/pkg/battery"
	"github.com/robotalks/npg.go/pkg/framer"
)

func TestGenerate(t *testing.T) {
	c, err := New(DefaultConfig)
	require.NoError(t, err)
	var signals int
	c.OnFrameReady(func() { signals++ })
	c.Generate(10)
	require.Equal(t, 1, signals)
	var frames []adc.Frame
	for {
		f, ok := c.ReadAvailableFrame()
		if !ok {
			break
		}
		frames = append(frames, f)
	}
	require.Len(t, frames, 10)
	for _, f := range frames {
		require.Len(t, f.Readings, 4)
		for n, r := range f.Readings {
			require.Equal(t, n, r.Channel)
			require.True(t, r.Raw <= DefaultConfig.ConverterMax)
		}
	}
}

func TestRingOverrun(t *testing.T) {
	conf := DefaultConfig
	conf.RingSize = 4
	c, err := New(conf)
	require.NoError(t, err)
	c.Generate(6)
	require.Equal(t, uint64(2), c.Overruns())
	n := 0
	for {
		if _, ok := c.ReadAvailableFrame(); !ok {
			break
		}
		n++
	}
	require.Equal(t, 4, n)
}

func TestBatteryThroughFramer(t *testing.T) {
	testCases := []struct {
		name    string
		volts   float64
		percent uint8
		action  battery.Action
	}{
		{"full", 4.2, 99, battery.Normal},
		{"nominal", 3.85, 54, battery.Normal},
		{"empty", 3.3, 0, battery.Critical},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conf := DefaultConfig
			conf.BatteryVolts = tc.volts
			c, err := New(conf)
			require.NoError(t, err)
			layout := framer.DefaultLayout
			layout.SamplesPerPacket = 1
			f, err := framer.New(layout, battery.NewMonitor(battery.Calibration{
				FullScale:        float64(adc.CanonicalMax),
				ReferenceVoltage: conf.ReferenceVoltage,
			}))
			require.NoError(t, err)
			c.Generate(1)
			frame, ok := c.ReadAvailableFrame()
			require.True(t, ok)
			pkt, err := f.OnFrameReady(frame)
			require.NoError(t, err)
			require.InDelta(t, tc.volts, pkt.Battery.Voltage, 0.01)
			require.InDelta(t, float64(tc.percent), float64(pkt.Battery.Percent), 2)
			require.Equal(t, tc.action, pkt.Battery.Action)
		})
	}
}

func TestDrain(t *testing.T) {
	conf := DefaultConfig
	conf.DrainPerSecond = 0.5
	c, err := New(conf)
	require.NoError(t, err)
	require.InDelta(t, 4.1, c.BatteryVoltage(0), 1e-9)
	require.InDelta(t, 3.6, c.BatteryVoltage(1), 1e-9)
	require.Equal(t, float64(0), c.BatteryVoltage(100))
}

func TestStartStop(t *testing.T) {
	conf := DefaultConfig
	conf.ADC.BaseRate = 1000
	c, err := New(conf)
	require.NoError(t, err)
	ready := make(chan struct{}, 1)
	c.OnFrameReady(func() {
		select {
		case ready <- struct{}{}:
		default:
		}
	})
	require.NoError(t, c.Start())
	require.NoError(t, c.Start())
	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("no frame produced")
	}
	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())
	_, ok := c.ReadAvailableFrame()
	require.True(t, ok)
}
