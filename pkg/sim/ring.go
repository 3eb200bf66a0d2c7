package sim

import "github.com/robotalks/npg.go/pkg/adc"

// ring is a bounded FIFO of frames. Pushing into a full ring overwrites
// the oldest frame.
type ring struct {
	frames     []adc.Frame
	head, tail int
	count      int
}

func newRing(capacity int) *ring {
	return &ring{frames: make([]adc.Frame, capacity)}
}

func (r *ring) push(f adc.Frame) (overwritten bool) {
	if r.count == len(r.frames) {
		r.head = (r.head + 1) % len(r.frames)
		r.count--
		overwritten = true
	}
	r.frames[r.tail] = f
	r.tail = (r.tail + 1) % len(r.frames)
	r.count++
	return
}

func (r *ring) pop() (adc.Frame, bool) {
	if r.count == 0 {
		return adc.Frame{}, false
	}
	f := r.frames[r.head]
	r.frames[r.head] = adc.Frame{}
	r.head = (r.head + 1) % len(r.frames)
	r.count--
	return f, true
}

func (r *ring) reset() {
	for r.count > 0 {
		r.pop()
	}
	r.head, r.tail = 0, 0
}
