package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/npg.go/pkg/msgs"
)

// Connector discovers and connects devices from the host side.
type Connector struct {
	BrokerURL       string
	Name            string
	DiscoverTimeout time.Duration
	ReplyTimeout    time.Duration
}

// Defaults
const (
	DefaultDiscoverTimeout = 500 * time.Millisecond
	DefaultReplyTimeout    = 2 * time.Second
)

// ErrNoReply indicates the device didn't respond in time.
var ErrNoReply = errors.New("no reply")

// NewConnector creates a Connector.
func NewConnector(brokerURL, name string) (*Connector, error) {
	if _, _, err := ClientOptionsFromURL(brokerURL); err != nil {
		return nil, err
	}
	return &Connector{
		BrokerURL:       brokerURL,
		Name:            name,
		DiscoverTimeout: DefaultDiscoverTimeout,
		ReplyTimeout:    DefaultReplyTimeout,
	}, nil
}

// Discover lists devices with retained meta.
func (c *Connector) Discover(ctx context.Context) (res []Meta, err error) {
	opts, topicPrefix, err := ClientOptionsFromURL(c.BrokerURL)
	if err != nil {
		return nil, err
	}
	q := NewQueue(opts, topicPrefix)
	resCh := make(chan Meta, 16)
	q.Sub("+/"+TopicMeta, func(topic string, payload []byte) {
		var meta Meta
		if len(payload) == 0 {
			return
		}
		if err := json.Unmarshal(payload, &meta); err != nil {
			glog.Warningf("invalid meta on %q: %v", topic, err)
			return
		}
		if meta.ID == "" {
			meta.ID = strings.SplitN(topic, "/", 2)[0]
		}
		select {
		case resCh <- meta:
		case <-time.After(time.Second):
		}
	})
	if err = Wait(q.Connect(), 0); err != nil {
		return nil, err
	}
	defer q.Close()

	dur := c.DiscoverTimeout
	if dur == 0 {
		dur = DefaultDiscoverTimeout
	}
	timeout := time.After(dur)
	for {
		select {
		case meta := <-resCh:
			res = append(res, meta)
		case <-timeout:
			return
		case <-ctx.Done():
			err = ctx.Err()
			return
		}
	}
}

// Dial opens a Peer session to device id. The link is not attached until
// Attach is called.
func (c *Connector) Dial(id string) (*Peer, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(c.BrokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+Topic(id, TopicLink), LinkPayload(VerbDisconnect, c.Name), 1, false)
	p := &Peer{
		Queue:        NewQueue(opts, topicPrefix),
		ID:           id,
		Name:         c.Name,
		ReplyTimeout: c.ReplyTimeout,
		ctlCh:        make(chan []byte, 4),
		valueCh:      make(chan []byte, 1),
	}
	p.subs = append(p.subs,
		p.Queue.Sub(Topic(id, TopicControl), chanHandler(p.ctlCh)),
		p.Queue.Sub(Topic(id, TopicControlValue), chanHandler(p.valueCh)))
	if err := Wait(p.Queue.Connect(), 0); err != nil {
		return nil, err
	}
	return p, nil
}

func chanHandler(ch chan []byte) Handler {
	return func(_ string, payload []byte) {
		select {
		case ch <- payload:
		default:
			glog.Warningf("reply dropped: %q", payload)
		}
	}
}

// Peer is the host side of a device link.
type Peer struct {
	Queue        *Queue
	ID           string
	Name         string
	ReplyTimeout time.Duration

	ctlCh   chan []byte
	valueCh chan []byte
	subs    []*Subscription
}

// Attach announces the peer to the device.
func (p *Peer) Attach() error {
	return Wait(p.Queue.PubWith(Topic(p.ID, TopicLink), LinkPayload(VerbConnect, p.Name), 1, false), p.ReplyTimeout)
}

// Detach disconnects the peer from the device.
func (p *Peer) Detach() error {
	return Wait(p.Queue.PubWith(Topic(p.ID, TopicLink), LinkPayload(VerbDisconnect, p.Name), 1, false), p.ReplyTimeout)
}

// Command writes a control command and waits for the response.
func (p *Peer) Command(ctx context.Context, cmd string) (string, error) {
	drain(p.ctlCh)
	if err := Wait(p.Queue.Pub(Topic(p.ID, TopicControlWrite), []byte(cmd)), p.ReplyTimeout); err != nil {
		return "", err
	}
	return p.await(ctx, p.ctlCh)
}

// Read reads the control value.
func (p *Peer) Read(ctx context.Context) (string, error) {
	drain(p.valueCh)
	if err := Wait(p.Queue.Pub(Topic(p.ID, TopicControlRead), nil), p.ReplyTimeout); err != nil {
		return "", err
	}
	return p.await(ctx, p.valueCh)
}

// OnData subscribes data packets.
func (p *Peer) OnData(fn func([]byte)) {
	p.subs = append(p.subs, p.Queue.Sub(Topic(p.ID, TopicData), func(_ string, payload []byte) {
		fn(payload)
	}))
}

// OnStatus subscribes status updates.
func (p *Peer) OnStatus(fn func(*msgs.Status)) {
	p.subs = append(p.subs, p.Queue.Sub(Topic(p.ID, TopicStatus), func(_ string, payload []byte) {
		if len(payload) == 0 {
			return
		}
		status, err := msgs.DecodeStatus(payload)
		if err != nil {
			glog.Warningf("invalid status: %v", err)
			return
		}
		fn(status)
	}))
}

// OnIndicator subscribes indicator changes.
func (p *Peer) OnIndicator(fn func(*msgs.Indicator)) {
	p.subs = append(p.subs, p.Queue.Sub(Topic(p.ID, TopicIndicator), func(_ string, payload []byte) {
		if ind, err := msgs.DecodeIndicator(payload); err == nil {
			fn(ind)
		}
	}))
}

// Close detaches and disconnects.
func (p *Peer) Close() error {
	err := p.Detach()
	for _, sub := range p.subs {
		sub.Close()
	}
	p.Queue.Close()
	return err
}

func (p *Peer) await(ctx context.Context, ch <-chan []byte) (string, error) {
	timeout := p.ReplyTimeout
	if timeout <= 0 {
		timeout = DefaultReplyTimeout
	}
	select {
	case reply := <-ch:
		return string(reply), nil
	case <-time.After(timeout):
		return "", ErrNoReply
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func drain(ch chan []byte) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
