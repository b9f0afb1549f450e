package engine

import "fmt"

// State is the engine-level playback state reported by StateChanged events.
type State int

const (
	StateStopped State = iota
	StateBuffering
	StatePaused
	StatePlaying
)

// String returns a human-readable string representation of the state
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateBuffering:
		return "buffering"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EventType tags the variant carried by an Event.
type EventType int

const (
	EventOther EventType = iota
	EventEndOfStream
	EventError
	EventBuffering
	EventStateChanged
)

// String returns a human-readable string representation of the event type
func (t EventType) String() string {
	switch t {
	case EventEndOfStream:
		return "end-of-stream"
	case EventError:
		return "error"
	case EventBuffering:
		return "buffering"
	case EventStateChanged:
		return "state-changed"
	default:
		return "other"
	}
}

// Event is one lifecycle message from the engine bus.
type Event struct {
	Type EventType
	// State is set for EventStateChanged.
	State State
	// Percent is set for EventBuffering (0-100).
	Percent int
	// Err is set for EventError.
	Err error
	// Name describes EventOther messages (e.g. "async-done").
	Name string
}

func (e Event) String() string {
	switch e.Type {
	case EventError:
		return fmt.Sprintf("error(%v)", e.Err)
	case EventBuffering:
		return fmt.Sprintf("buffering(%d%%)", e.Percent)
	case EventStateChanged:
		return fmt.Sprintf("state-changed(%s)", e.State)
	case EventOther:
		if e.Name != "" {
			return "other(" + e.Name + ")"
		}
	}
	return e.Type.String()
}
