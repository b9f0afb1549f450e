package mediaplayer

import (
	"time"

	"github.com/e7canasta/orion-media-player/caps"
	"github.com/e7canasta/orion-media-player/internal/engine"
	"github.com/e7canasta/orion-media-player/internal/renderer"
)

// FrameFunc receives one decoded BGRA frame. data is valid only during the call;
// the call runs on a GStreamer streaming thread and must not block.
type FrameFunc = renderer.FrameFunc

// PlaybackState is the player state as last observed by the message loop.
type PlaybackState int

const (
	StateStopped PlaybackState = iota
	StateBuffering
	StatePaused
	StatePlaying
	// StateError is entered when the message loop observes an error event.
	StateError
)

// String returns a human-readable string representation of the state
func (s PlaybackState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateBuffering:
		return "buffering"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

func fromEngineState(s engine.State) PlaybackState {
	switch s {
	case engine.StateBuffering:
		return StateBuffering
	case engine.StatePaused:
		return StatePaused
	case engine.StatePlaying:
		return StatePlaying
	default:
		return StateStopped
	}
}

// EventType tags the variant carried by an Event.
type EventType = engine.EventType

const (
	EventOther        = engine.EventOther
	EventEndOfStream  = engine.EventEndOfStream
	EventError        = engine.EventError
	EventBuffering    = engine.EventBuffering
	EventStateChanged = engine.EventStateChanged
)

// Event is one lifecycle event observed by the message loop.
type Event struct {
	Type EventType
	// State is set for EventStateChanged.
	State PlaybackState
	// Percent is set for EventBuffering (0-100).
	Percent int
	// Err is set for EventError.
	Err error
}

// Stats represents player statistics
type Stats struct {
	SessionID string
	State     PlaybackState
	Format    caps.FormatDescriptor
	Volume    float64

	FramesDelivered uint64
	FramesSkipped   uint64 // empty or zero-sized samples
	FramesFailed    uint64 // samples without a usable format
	BytesDelivered  uint64

	// Delivered frame rate over the last framestats.DefaultWindow frames.
	FPSMean   float64
	FPSStdDev float64
	FPSStable bool

	// Errors counts error events per category.
	Errors    map[string]uint64
	LastError string

	Uptime time.Duration
}
