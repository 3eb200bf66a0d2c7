// Package stream owns the streaming state machine which gates acquisition
// and transport.
package stream

import (
	"errors"
	"fmt"
)

// State is the streaming state.
type State int32

// States
const (
	Idle State = iota
	Streaming
	Fault
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	case Fault:
		return "fault"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Status is the control-surface view of the state.
func (s State) Status() string {
	if s == Streaming {
		return "RUNNING"
	}
	return "STOPPED"
}

// Description describes the state for command responses.
func (s State) Description() string {
	if s == Fault {
		return "LOW BATTERY"
	}
	return s.Status()
}

var (
	// ErrBusy indicates streaming is already active.
	ErrBusy = errors.New("already streaming")
	// ErrFaulted indicates the controller is locked out by a fault.
	ErrFaulted = errors.New("faulted: low battery")
)
