package stream

// Event drives a state transition.
type Event interface {
	kind() eventKind
}

type eventKind int

const (
	evStart eventKind = iota
	evStop
	evConnect
	evDisconnect
	evBatteryCritical
)

// Start is the START command.
type Start struct{}

// Stop is the STOP command.
type Stop struct{}

// Connect is a link connection.
type Connect struct {
	Peer string
}

// Disconnect is a link disconnection.
type Disconnect struct {
	Peer   string
	Reason error
}

// BatteryCritical is reported by the battery monitor.
type BatteryCritical struct {
	Percent uint8
}

func (Start) kind() eventKind           { return evStart }
func (Stop) kind() eventKind            { return evStop }
func (Connect) kind() eventKind         { return evConnect }
func (Disconnect) kind() eventKind      { return evDisconnect }
func (BatteryCritical) kind() eventKind { return evBatteryCritical }

type transition struct {
	to  State
	err error
}

// transitions is the complete state machine. Missing entries keep the
// current state without error.
var transitions = map[State]map[eventKind]transition{
	Idle: {
		evStart:           {to: Streaming},
		evBatteryCritical: {to: Fault},
	},
	Streaming: {
		evStart:           {to: Streaming, err: ErrBusy},
		evStop:            {to: Idle},
		evDisconnect:      {to: Idle},
		evBatteryCritical: {to: Fault},
	},
	Fault: {
		evStart: {to: Fault, err: ErrFaulted},
	},
}

func next(from State, ev Event) (State, error) {
	if t, ok := transitions[from][ev.kind()]; ok {
		return t.to, t.err
	}
	return from, nil
}
