package stream

import (
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
)

// Transition is the result of dispatching an Event.
type Transition struct {
	From  State
	To    State
	Event Event
}

// Changed indicates the state actually changed.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Observer is notified after a state change is committed.
type Observer func(Transition)

// Controller owns the streaming state. State reads are lock-free and
// every transition is a single compare-and-swap, so a reader always sees
// either the old or the new state.
type Controller struct {
	state     int32
	observers []Observer
	obsLock   sync.RWMutex
}

// NewController creates a Controller in Idle.
func NewController() *Controller {
	return &Controller{}
}

// Current returns a snapshot of the state.
func (c *Controller) Current() State {
	return State(atomic.LoadInt32(&c.state))
}

// Observe registers an observer.
func (c *Controller) Observe(fn Observer) {
	c.obsLock.Lock()
	c.observers = append(c.observers, fn)
	c.obsLock.Unlock()
}

// Dispatch applies an event.
func (c *Controller) Dispatch(ev Event) (Transition, error) {
	for {
		from := c.Current()
		to, err := next(from, ev)
		t := Transition{From: from, To: to, Event: ev}
		if err != nil || to == from {
			return t, err
		}
		if atomic.CompareAndSwapInt32(&c.state, int32(from), int32(to)) {
			glog.V(1).Infof("stream state %s -> %s", from, to)
			c.notify(t)
			return t, nil
		}
	}
}

// TryStart enters Streaming.
func (c *Controller) TryStart() error {
	_, err := c.Dispatch(Start{})
	return err
}

// Stop leaves Streaming. It returns true if the state changed.
func (c *Controller) Stop() bool {
	t, _ := c.Dispatch(Stop{})
	return t.Changed()
}

// Streaming indicates acquisition is allowed.
func (c *Controller) Streaming() bool {
	return c.Current() == Streaming
}

func (c *Controller) notify(t Transition) {
	c.obsLock.RLock()
	observers := c.observers
	c.obsLock.RUnlock()
	for _, fn := range observers {
		fn(t)
	}
}
