// Package transport defines the contract between the sensor core and the
// link carrying its data and control channels.
package transport

import (
	"context"
	"errors"
	"fmt"
)

// ChannelID identifies a logical channel on the link.
type ChannelID byte

// Channels
const (
	Data    ChannelID = 1
	Control ChannelID = 2
)

// String implements fmt.Stringer.
func (c ChannelID) String() string {
	switch c {
	case Data:
		return "data"
	case Control:
		return "control"
	}
	return fmt.Sprintf("channel(%d)", byte(c))
}

// Notifier pushes bytes to the connected peer. When no peer is connected,
// Notify is a no-op and returns nil. Implementations must not retain data.
type Notifier interface {
	Notify(ch ChannelID, data []byte) error
}

// NotifyFunc is the func form of Notifier.
type NotifyFunc func(ChannelID, []byte) error

// Notify implements Notifier.
func (f NotifyFunc) Notify(ch ChannelID, data []byte) error {
	return f(ch, data)
}

// Handler receives link events.
type Handler interface {
	Connected(peer string)
	Disconnected(peer string, reason error)
	// ControlWrite handles bytes written to the control channel and returns
	// the response to be notified on the control channel.
	ControlWrite(data []byte) []byte
	// ControlRead returns the current value of the control channel.
	ControlRead() []byte
}

// Link is a transport carrying both channels.
type Link interface {
	Notifier
	Attach(Handler)
	Run(context.Context) error
}

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

var (
	// ErrNoPeer is returned by operations requiring a connected peer.
	ErrNoPeer = errors.New("no peer connected")
	// ErrUnknownChannel indicates a ChannelID not carried by the link.
	ErrUnknownChannel = errors.New("unknown channel")
)

// NopHandler ignores all link events.
type NopHandler struct{}

// Connected implements Handler.
func (NopHandler) Connected(string) {}

// Disconnected implements Handler.
func (NopHandler) Disconnected(string, error) {}

// ControlWrite implements Handler.
func (NopHandler) ControlWrite([]byte) []byte { return nil }

// ControlRead implements Handler.
func (NopHandler) ControlRead() []byte { return nil }
