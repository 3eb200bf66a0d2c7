package msgs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusEncoding(t *testing.T) {
	s := &Status{State: "streaming", Streaming: true, BatteryPercent: 87, PacketsSent: 1000, Timestamp: 1700000000}
	b, err := Encode(s)
	require.NoError(t, err)
	decoded, err := DecodeStatus(b)
	require.NoError(t, err)
	require.Equal(t, s, decoded)
}

func TestIndicatorWire(t *testing.T) {
	b, err := Encode(&Indicator{Pixel: 1, Hue: 240, Brightness: 10})
	require.NoError(t, err)
	require.Equal(t, []byte{0x08, 0x01, 0x10, 0xf0, 0x01, 0x18, 0x0a}, b)
	_, err = DecodeIndicator([]byte{0x08})
	require.Error(t, err)
}
