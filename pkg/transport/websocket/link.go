// Package websocket carries the sensor link over a WebSocket connection.
// Binary messages carry data packets and text messages carry control.
package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/npg.go/pkg/framework"
	"github.com/robotalks/npg.go/pkg/transport"
)

// ReadRequest is the text message requesting a control read.
const ReadRequest = "?"

// DefaultPath is where the link is served.
const DefaultPath = "/link"

// Message is a WebSocket message tagged with its frame type.
type Message struct {
	Text bool
	Data []byte
}

// Codec preserves the frame type of messages.
var Codec = websocket.Codec{Marshal: marshal, Unmarshal: unmarshal}

func marshal(v interface{}) ([]byte, byte, error) {
	msg, ok := v.(*Message)
	if !ok {
		return nil, 0, websocket.ErrNotSupported
	}
	if msg.Text {
		return msg.Data, websocket.TextFrame, nil
	}
	return msg.Data, websocket.BinaryFrame, nil
}

func unmarshal(data []byte, payloadType byte, v interface{}) error {
	msg, ok := v.(*Message)
	if !ok {
		return websocket.ErrNotSupported
	}
	msg.Text, msg.Data = payloadType == websocket.TextFrame, data
	return nil
}

// ErrBusy is sent to a second peer when one is already connected.
var ErrBusy = errors.New("link busy")

// Link implements transport.Link serving a single WebSocket peer.
type Link struct {
	Addr string
	Path string

	lock     sync.RWMutex
	sendLock sync.Mutex
	handler  transport.Handler
	conn     *websocket.Conn
}

// New creates a Link listening on addr.
func New(addr string) *Link {
	return &Link{Addr: addr, Path: DefaultPath, handler: transport.NopHandler{}}
}

// Attach implements transport.Link.
func (l *Link) Attach(h transport.Handler) {
	l.lock.Lock()
	l.handler = h
	l.lock.Unlock()
}

// Handler returns the http.Handler accepting peers.
func (l *Link) Handler() http.Handler {
	return websocket.Handler(l.serve)
}

// Notify implements transport.Notifier.
func (l *Link) Notify(ch transport.ChannelID, data []byte) error {
	var msg Message
	switch ch {
	case transport.Data:
	case transport.Control:
		msg.Text = true
	default:
		return transport.ErrUnknownChannel
	}
	l.lock.RLock()
	conn := l.conn
	l.lock.RUnlock()
	if conn == nil {
		return nil
	}
	msg.Data = data
	l.sendLock.Lock()
	defer l.sendLock.Unlock()
	return Codec.Send(conn, &msg)
}

// Run implements Runnable.
func (l *Link) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(l.Path, l.Handler())
	server := &http.Server{Addr: l.Addr, Handler: mux}
	glog.Infof("websocket link on %s%s", l.Addr, l.Path)
	return fx.RunWithContextCloser(ctx, server, server.ListenAndServe)
}

func (l *Link) serve(conn *websocket.Conn) {
	defer conn.Close()
	l.lock.Lock()
	if l.conn != nil {
		l.lock.Unlock()
		Codec.Send(conn, &Message{Text: true, Data: []byte(ErrBusy.Error())})
		return
	}
	l.conn = conn
	h := l.handler
	l.lock.Unlock()

	peer := conn.Request().RemoteAddr
	glog.Infof("peer %s connected", peer)
	h.Connected(peer)
	err := l.receive(conn, h)
	l.lock.Lock()
	l.conn = nil
	l.lock.Unlock()
	glog.Infof("peer %s disconnected: %v", peer, err)
	h.Disconnected(peer, err)
}

func (l *Link) receive(conn *websocket.Conn, h transport.Handler) error {
	for {
		var msg Message
		if err := Codec.Receive(conn, &msg); err != nil {
			return err
		}
		if !msg.Text {
			glog.V(2).Infof("binary message ignored: %d bytes", len(msg.Data))
			continue
		}
		var reply []byte
		if string(msg.Data) == ReadRequest {
			reply = h.ControlRead()
		} else {
			reply = h.ControlWrite(msg.Data)
		}
		if reply == nil {
			continue
		}
		if err := l.Notify(transport.Control, reply); err != nil {
			return err
		}
	}
}
