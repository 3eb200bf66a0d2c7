package stream

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/npg.go/pkg/framework"
	"github.com/robotalks/npg.go/pkg/transport"
)

// Opcodes leading every packet.
const (
	OpConnect    byte = 0x10
	OpDisconnect byte = 0x11
	OpWrite      byte = 0x12
	OpRead       byte = 0x13
	OpNotify     byte = 0x20
	OpReadReply  byte = 0x21
)

// OpcodeError reports an unknown opcode.
type OpcodeError struct {
	Op byte
}

// Error implements error.
func (e *OpcodeError) Error() string {
	return fmt.Sprintf("unknown opcode 0x%02x", e.Op)
}

// Link implements transport.Link on a packet stream.
type Link struct {
	ReadWriter transport.PacketReadWriter
	Closer     io.Closer

	sendLock sync.Mutex
	lock     sync.RWMutex
	handler  transport.Handler
	peer     string
}

// New creates a Link on a byte stream. If s is an io.Closer, it's closed
// when the Link stops.
func New(s io.ReadWriter) *Link {
	l := &Link{ReadWriter: NewReadWriter(s), handler: transport.NopHandler{}}
	if closer, ok := s.(io.Closer); ok {
		l.Closer = closer
	}
	return l
}

// Attach implements transport.Link.
func (l *Link) Attach(h transport.Handler) {
	l.lock.Lock()
	l.handler = h
	l.lock.Unlock()
}

// Peer returns the connected peer.
func (l *Link) Peer() string {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.peer
}

// Notify implements transport.Notifier.
func (l *Link) Notify(ch transport.ChannelID, data []byte) error {
	if ch != transport.Data && ch != transport.Control {
		return transport.ErrUnknownChannel
	}
	if l.Peer() == "" {
		return nil
	}
	pkt := make([]byte, 2+len(data))
	pkt[0], pkt[1] = OpNotify, byte(ch)
	copy(pkt[2:], data)
	return l.send(pkt)
}

func (l *Link) send(pkt []byte) error {
	l.sendLock.Lock()
	defer l.sendLock.Unlock()
	return l.ReadWriter.WritePacket(pkt)
}

// Run implements Runnable.
func (l *Link) Run(ctx context.Context) error {
	if l.Closer == nil {
		return l.receive()
	}
	return fx.RunWithContextCloser(ctx, l.Closer, l.receive)
}

func (l *Link) receive() (err error) {
	defer func() { l.dropPeer(err) }()
	for {
		pkt, err := l.ReadWriter.ReadPacket()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if len(pkt) == 0 {
			continue
		}
		if err := l.process(pkt[0], pkt[1:]); err != nil {
			glog.Warningf("stream link: %v", err)
		}
	}
}

func (l *Link) process(op byte, payload []byte) error {
	l.lock.RLock()
	h := l.handler
	l.lock.RUnlock()
	switch op {
	case OpConnect:
		peer := string(payload)
		if peer == "" {
			peer = "stream"
		}
		l.lock.Lock()
		prev := l.peer
		l.peer = peer
		l.lock.Unlock()
		if prev != peer {
			h.Connected(peer)
		}
	case OpDisconnect:
		l.dropPeer(nil)
	case OpWrite:
		if resp := h.ControlWrite(payload); resp != nil {
			return l.Notify(transport.Control, resp)
		}
	case OpRead:
		return l.send(append([]byte{OpReadReply}, h.ControlRead()...))
	default:
		return &OpcodeError{Op: op}
	}
	return nil
}

func (l *Link) dropPeer(reason error) {
	l.lock.Lock()
	peer, h := l.peer, l.handler
	l.peer = ""
	l.lock.Unlock()
	if peer != "" {
		h.Disconnected(peer, reason)
	}
}
