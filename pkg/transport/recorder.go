package transport

import "sync"

// Notification is a recorded Notify call.
type Notification struct {
	Channel ChannelID
	Data    []byte
}

// Recorder is an in-memory Notifier. It optionally forwards each
// notification on C, dropping when C is full.
type Recorder struct {
	C chan Notification

	lock  sync.Mutex
	items []Notification
	err   error
}

// NewRecorder creates a Recorder with a buffered chan.
func NewRecorder(size int) *Recorder {
	return &Recorder{C: make(chan Notification, size)}
}

// Notify implements Notifier.
func (r *Recorder) Notify(ch ChannelID, data []byte) error {
	n := Notification{Channel: ch, Data: append([]byte(nil), data...)}
	r.lock.Lock()
	err := r.err
	if err == nil {
		r.items = append(r.items, n)
	}
	r.lock.Unlock()
	if err != nil {
		return err
	}
	if r.C != nil {
		select {
		case r.C <- n:
		default:
		}
	}
	return nil
}

// FailWith makes subsequent Notify calls fail.
func (r *Recorder) FailWith(err error) {
	r.lock.Lock()
	r.err = err
	r.lock.Unlock()
}

// Notifications returns recorded notifications on a channel.
func (r *Recorder) Notifications(ch ChannelID) []Notification {
	r.lock.Lock()
	defer r.lock.Unlock()
	var result []Notification
	for _, n := range r.items {
		if n.Channel == ch {
			result = append(result, n)
		}
	}
	return result
}
