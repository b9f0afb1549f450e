package renderer

import (
	"errors"
	"sync/atomic"
)

// FrameFunc receives one decoded BGRA frame.
//
// data is only valid for the duration of the call (the engine owns the memory);
// copy anything needed afterwards. The call happens synchronously on an engine
// streaming thread and must not block.
type FrameFunc func(data []byte, width, height int)

// Flow is the outcome of handling one sample, mapped onto the engine's flow return.
type Flow int

const (
	// FlowOK keeps the stream running (also returned for skipped samples)
	FlowOK Flow = iota
	// FlowNotNegotiated: the sample's format could not be resolved
	FlowNotNegotiated
	// FlowEOS requests end of stream (no sample could be pulled)
	FlowEOS
)

// String returns a human-readable string representation of the flow
func (f Flow) String() string {
	switch f {
	case FlowOK:
		return "ok"
	case FlowNotNegotiated:
		return "not-negotiated"
	case FlowEOS:
		return "eos"
	default:
		return "unknown"
	}
}

// Sample is one pulled unit of decoded video.
type Sample interface {
	// Dimensions resolves width and height from the sample's own format descriptor.
	Dimensions() (width, height int, err error)
	// Map returns the bytes of the sample's buffer and a release function that must
	// be called once the bytes are no longer used.
	Map() (data []byte, release func())
}

// ErrorPoster reports a resource error on the pipeline bus.
type ErrorPoster interface {
	PostResourceError(text, debug string)
}

// ErrNoFormat is returned by Sample.Dimensions when the sample carries no usable caps.
var ErrNoFormat = errors.New("renderer: sample has no video format")

// SampleCounters tracks sample handling outcomes. Safe for concurrent use.
type SampleCounters struct {
	Delivered  atomic.Uint64
	Skipped    atomic.Uint64
	Failed     atomic.Uint64
	BytesTotal atomic.Uint64
}

// HandleSample runs the frame-extraction policy for one sample:
//
//  1. No sample (pull failed) → FlowEOS
//  2. Format unresolvable → resource error posted, FlowNotNegotiated
//  3. Empty data or zero width/height → skipped silently, FlowOK
//  4. Otherwise fn(data, width, height) on the calling thread, FlowOK
//
// New-sample and preroll delivery both route through here.
func HandleSample(sample Sample, poster ErrorPoster, fn FrameFunc, counters *SampleCounters) Flow {
	if sample == nil {
		return FlowEOS
	}

	width, height, err := sample.Dimensions()
	if err != nil {
		if poster != nil {
			poster.PostResourceError("Failed to get video info from sample", err.Error())
		}
		if counters != nil {
			counters.Failed.Add(1)
		}
		return FlowNotNegotiated
	}

	data, release := sample.Map()
	if release != nil {
		defer release()
	}

	if len(data) == 0 || width <= 0 || height <= 0 {
		if counters != nil {
			counters.Skipped.Add(1)
		}
		return FlowOK
	}

	if fn != nil {
		fn(data, width, height)
	}
	if counters != nil {
		counters.Delivered.Add(1)
		counters.BytesTotal.Add(uint64(len(data)))
	}

	return FlowOK
}
