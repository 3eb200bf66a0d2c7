package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/npg.go/pkg/msgs"
	"github.com/robotalks/npg.go/pkg/transport"
)

// Topic suffixes under <prefix><id>/.
const (
	TopicData         = "data"
	TopicControl      = "ctl"
	TopicControlWrite = "ctl/write"
	TopicControlRead  = "ctl/read"
	TopicControlValue = "ctl/value"
	TopicLink         = "link"
	TopicStatus       = "status"
	TopicIndicator    = "indicator"
	TopicMeta         = "meta"
)

// Topic builds a device topic.
func Topic(id, suffix string) string {
	return id + "/" + suffix
}

// Link verbs published on the link topic, followed by the peer name.
const (
	VerbConnect    = "connect"
	VerbDisconnect = "disconnect"
)

// ErrConnectionLost is the disconnect reason when the broker goes away.
var ErrConnectionLost = errors.New("broker connection lost")

// Meta is the retained discovery document of a device.
type Meta struct {
	ID               string  `json:"id"`
	Identity         string  `json:"identity"`
	DataChannels     int     `json:"data_channels"`
	SamplesPerPacket int     `json:"samples_per_packet"`
	SampleRate       float64 `json:"sample_rate"`
	Sequence         string  `json:"sequence"`
}

type linkEventKind int

const (
	evLink linkEventKind = iota
	evWrite
	evRead
)

type linkEvent struct {
	kind    linkEventKind
	payload []byte
}

// Link implements transport.Link over MQTT topics of one device.
type Link struct {
	Queue          *Queue
	Meta           Meta
	PublishTimeout time.Duration

	events  chan linkEvent
	lock    sync.RWMutex
	handler transport.Handler
	peer    string
}

// NewLink creates a Link from broker URL.
func NewLink(brokerURL string, meta Meta) (*Link, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+Topic(meta.ID, TopicMeta), nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("npg:" + meta.ID)
	}
	return NewLinkWithQueue(NewQueue(opts, topicPrefix), meta), nil
}

// NewLinkWithQueue creates a Link on an existing Queue.
func NewLinkWithQueue(q *Queue, meta Meta) *Link {
	l := &Link{
		Queue:          q,
		Meta:           meta,
		PublishTimeout: DefaultPublishTimeout,
		events:         make(chan linkEvent, 16),
		handler:        transport.NopHandler{},
	}
	q.OnConnect = func(*Queue, error) { l.publishMeta() }
	q.OnDisconnect = func(*Queue, error) { l.dropPeer(ErrConnectionLost) }
	return l
}

// Attach implements transport.Link.
func (l *Link) Attach(h transport.Handler) {
	l.lock.Lock()
	l.handler = h
	l.lock.Unlock()
}

// Peer returns the connected peer, empty if none.
func (l *Link) Peer() string {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.peer
}

// Notify implements transport.Notifier.
func (l *Link) Notify(ch transport.ChannelID, data []byte) error {
	var suffix string
	switch ch {
	case transport.Data:
		suffix = TopicData
	case transport.Control:
		suffix = TopicControl
	default:
		return transport.ErrUnknownChannel
	}
	if l.Peer() == "" {
		return nil
	}
	payload := append([]byte(nil), data...)
	return Wait(l.Queue.Pub(Topic(l.Meta.ID, suffix), payload), l.PublishTimeout)
}

// PublishStatus publishes retained status.
func (l *Link) PublishStatus(status *msgs.Status) error {
	payload, err := msgs.Encode(status)
	if err != nil {
		return err
	}
	return Wait(l.Queue.PubWith(Topic(l.Meta.ID, TopicStatus), payload, 1, true), l.PublishTimeout)
}

// Indicator returns an Indicator publishing on this device.
func (l *Link) Indicator() *Indicator {
	return &Indicator{Queue: l.Queue, ID: l.Meta.ID, Timeout: l.PublishTimeout}
}

// Run implements Runnable.
func (l *Link) Run(ctx context.Context) error {
	id := l.Meta.ID
	subs := []*Subscription{
		l.Queue.Sub(Topic(id, TopicLink), l.enqueue(evLink)),
		l.Queue.Sub(Topic(id, TopicControlWrite), l.enqueue(evWrite)),
		l.Queue.Sub(Topic(id, TopicControlRead), l.enqueue(evRead)),
	}
	defer func() {
		for _, sub := range subs {
			sub.Close()
		}
		l.Queue.Close()
	}()
	if err := Wait(l.Queue.Connect(), 0); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			l.dropPeer(ctx.Err())
			if err := Wait(l.Queue.PubWith(Topic(id, TopicMeta), nil, 1, true), l.PublishTimeout); err != nil {
				glog.Warningf("clear meta error: %v", err)
			}
			return ctx.Err()
		case ev := <-l.events:
			l.process(ev)
		}
	}
}

func (l *Link) enqueue(kind linkEventKind) Handler {
	return func(_ string, payload []byte) {
		l.events <- linkEvent{kind: kind, payload: payload}
	}
}

func (l *Link) currentHandler() transport.Handler {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.handler
}

func (l *Link) process(ev linkEvent) {
	h := l.currentHandler()
	switch ev.kind {
	case evLink:
		verb, peer := ParseLinkPayload(ev.payload)
		switch verb {
		case VerbConnect:
			l.lock.Lock()
			prev := l.peer
			l.peer = peer
			l.lock.Unlock()
			if prev != peer {
				glog.Infof("peer %q connected", peer)
				h.Connected(peer)
			}
		case VerbDisconnect:
			l.lock.Lock()
			matched := l.peer != "" && (peer == "" || peer == l.peer)
			if matched {
				peer, l.peer = l.peer, ""
			}
			l.lock.Unlock()
			if matched {
				glog.Infof("peer %q disconnected", peer)
				h.Disconnected(peer, nil)
			}
		default:
			glog.Warningf("invalid link payload %q", ev.payload)
		}
	case evWrite:
		if resp := h.ControlWrite(ev.payload); resp != nil {
			if err := l.Notify(transport.Control, resp); err != nil {
				glog.Warningf("control notify error: %v", err)
			}
		}
	case evRead:
		err := Wait(l.Queue.Pub(Topic(l.Meta.ID, TopicControlValue), h.ControlRead()), l.PublishTimeout)
		if err != nil {
			glog.Warningf("control read reply error: %v", err)
		}
	}
}

func (l *Link) dropPeer(reason error) {
	l.lock.Lock()
	peer := l.peer
	l.peer = ""
	h := l.handler
	l.lock.Unlock()
	if peer != "" {
		glog.Infof("peer %q dropped: %v", peer, reason)
		h.Disconnected(peer, reason)
	}
}

func (l *Link) publishMeta() {
	payload, err := json.Marshal(&l.Meta)
	if err != nil {
		glog.Errorf("encode meta error: %v", err)
		return
	}
	l.Queue.PubWith(Topic(l.Meta.ID, TopicMeta), payload, 1, true)
}

// ParseLinkPayload splits "<verb> [peer]".
func ParseLinkPayload(payload []byte) (verb, peer string) {
	fields := strings.Fields(string(payload))
	if len(fields) == 0 {
		return "", ""
	}
	verb = strings.ToLower(fields[0])
	if len(fields) > 1 {
		peer = fields[1]
	} else if verb == VerbConnect {
		peer = "peer"
	}
	return
}

// LinkPayload formats a link payload.
func LinkPayload(verb, peer string) []byte {
	return []byte(verb + " " + peer)
}
