package adc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScale(t *testing.T) {
	testCases := []struct {
		name   string
		raw    uint16
		expect uint16
	}{
		{"zero", 0, 0},
		{"mid scale", 2048, 2519},
		{"converter max", 3329, 4095},
		{"above converter max clamps", 4095, 4095},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, Scale(tc.raw, DefaultConverterMax, CanonicalMax))
		})
	}
	require.Equal(t, uint16(0), Scale(100, 0, CanonicalMax))
}

func TestConfig(t *testing.T) {
	c := Config{Channels: 4, Resolution: 12, BaseRate: 250, BatchSize: 25}
	require.NoError(t, c.Validate())
	require.Equal(t, float64(1000), c.SampleRate())
	require.Equal(t, uint16(4095), c.MaxRaw())
	c.Resolution = 16
	require.Equal(t, uint16(0xffff), c.MaxRaw())
	require.Equal(t, ErrNotConfigured, Config{}.Validate())
}
