// Package engine wraps the GStreamer playback engine behind the small surface the
// player needs: transport, volume, URI and an ordered event bus.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Engine is the playback engine driven by a player session.
//
// Transport methods never block on the pipeline reaching the requested state;
// failures are reported as EventError on the Bus.
type Engine interface {
	SetURI(uri string)
	Play()
	Pause()
	Stop()
	Seek(position time.Duration)
	SetVolume(volume float64)
	Volume() float64
	Bus() Bus
	// Close releases the engine. The engine must not be used afterwards.
	Close() error
}

// Bus is the single-consumer event stream of an engine.
type Bus interface {
	// Pop blocks until the next event, ctx is done, or the bus is flushing.
	Pop(ctx context.Context) (Event, error)
	// SetFlushing(true) drops queued events and discards any posted later.
	SetFlushing(flushing bool)
}

// ErrFlushing is returned by Pop once the bus has been set to flushing.
var ErrFlushing = errors.New("engine: bus is flushing")

// Queue is an unbounded, ordered Bus implementation.
//
// Producers (the native bus watcher, transport calls) never block on Post;
// lifecycle events such as end-of-stream must not be dropped.
type Queue struct {
	mu       sync.Mutex
	events   []Event
	flushing bool
	notify   chan struct{}
}

// NewQueue creates an empty, non-flushing queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Post appends an event. Discarded while flushing.
func (q *Queue) Post(ev Event) {
	q.mu.Lock()
	if q.flushing {
		q.mu.Unlock()
		return
	}
	q.events = append(q.events, ev)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop implements Bus.
func (q *Queue) Pop(ctx context.Context) (Event, error) {
	for {
		q.mu.Lock()
		if q.flushing {
			q.mu.Unlock()
			return Event{}, ErrFlushing
		}
		if len(q.events) > 0 {
			ev := q.events[0]
			q.events[0] = Event{}
			q.events = q.events[1:]
			q.mu.Unlock()
			return ev, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-q.notify:
		}
	}
}

// SetFlushing implements Bus.
func (q *Queue) SetFlushing(flushing bool) {
	q.mu.Lock()
	q.flushing = flushing
	if flushing {
		q.events = nil
	}
	q.mu.Unlock()

	// Wake a blocked Pop so it observes the flag.
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Flushing reports whether the queue discards events.
func (q *Queue) Flushing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.flushing
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
