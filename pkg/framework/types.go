package framework

import "context"

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Waker is a single-slot wake-up signal. Multiple Wake calls before
// the receiver drains C coalesce into one wake-up.
type Waker struct {
	ch chan struct{}
}

// NewWaker creates a Waker.
func NewWaker() *Waker {
	return &Waker{ch: make(chan struct{}, 1)}
}

// Wake signals the receiver. It never blocks and never allocates,
// so it is safe to call from a driver callback.
func (w *Waker) Wake() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// C returns the chan to wait on.
func (w *Waker) C() <-chan struct{} {
	return w.ch
}
