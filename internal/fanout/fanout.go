// Package fanout distributes copied video frames from the player's frame callback
// to multiple consumers without ever blocking the streaming thread.
//
// Drop frames, never queue: a consumer that cannot keep up loses frames rather than
// delaying the pipeline. Two policies are offered:
//
//   - Subscribe (drop-new): frames go to a caller-owned channel; when it is full
//     the new frame is dropped.
//   - SubscribeLatest (drop-old): the consumer always sees the most recent frame;
//     older unread frames are overwritten.
//
// Basic usage:
//
//	fo := fanout.New()
//	defer fo.Close()
//
//	ch := make(chan fanout.Frame, 4)
//	fo.Subscribe("saver", ch)
//	player.OnFrame(fo.FrameFunc())
package fanout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	ErrClosed             = errors.New("fanout: closed")
	ErrSubscriberExists   = errors.New("fanout: subscriber already exists")
	ErrSubscriberNotFound = errors.New("fanout: subscriber not found")
	ErrNilChannel         = errors.New("fanout: nil channel provided")
)

// Frame is one BGRA frame owned by Go memory (safe to keep after the callback).
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Data      []byte
	// TraceID correlates one frame across consumers (logs, saved files, msgpack stream).
	TraceID string
}

// SubscriberStats tracks per-subscriber delivery.
type SubscriberStats struct {
	Sent    uint64
	Dropped uint64
}

// Stats is a snapshot of distribution counters.
// Every publish counts exactly once per subscriber, as Sent or Dropped.
type Stats struct {
	TotalPublished uint64
	TotalSent      uint64
	TotalDropped   uint64
	Subscribers    map[string]SubscriberStats
}

type dropPolicy int

const (
	dropNew dropPolicy = iota
	dropOld
)

type subscriber struct {
	policy  dropPolicy
	ch      chan<- Frame
	latest  *Latest
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// Fanout distributes frames to subscribers. Safe for concurrent use.
type Fanout struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool

	seq       atomic.Uint64
	published atomic.Uint64
}

// New creates an empty Fanout.
func New() *Fanout {
	return &Fanout{subscribers: make(map[string]*subscriber)}
}

// Subscribe registers ch with the drop-new policy.
func (f *Fanout) Subscribe(id string, ch chan<- Frame) error {
	if ch == nil {
		return ErrNilChannel
	}
	return f.add(id, &subscriber{policy: dropNew, ch: ch})
}

// SubscribeLatest registers a drop-old subscriber and returns its receiver.
func (f *Fanout) SubscribeLatest(id string) (*Latest, error) {
	l := newLatest()
	if err := f.add(id, &subscriber{policy: dropOld, latest: l}); err != nil {
		return nil, err
	}
	return l, nil
}

func (f *Fanout) add(id string, s *subscriber) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	if _, exists := f.subscribers[id]; exists {
		return ErrSubscriberExists
	}
	f.subscribers[id] = s
	return nil
}

// Unsubscribe removes a subscriber. A drop-old receiver is closed.
func (f *Fanout) Unsubscribe(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, exists := f.subscribers[id]
	if !exists {
		return ErrSubscriberNotFound
	}
	if s.latest != nil {
		s.latest.close()
	}
	delete(f.subscribers, id)
	return nil
}

// Publish hands frame to every subscriber without blocking. No-op once closed.
func (f *Fanout) Publish(frame Frame) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return
	}
	f.published.Add(1)

	for _, s := range f.subscribers {
		switch s.policy {
		case dropNew:
			select {
			case s.ch <- frame:
				s.sent.Add(1)
			default:
				s.dropped.Add(1)
			}
		case dropOld:
			// An overwrite drops the unread frame it replaces.
			if s.latest.set(frame) {
				s.dropped.Add(1)
			} else {
				s.sent.Add(1)
			}
		}
	}
}

// FrameFunc returns a frame callback that copies each frame, stamps it with a
// sequence number, timestamp and trace ID, and publishes it. The copy is what
// makes the data safe to use after the callback returns.
func (f *Fanout) FrameFunc() func(data []byte, width, height int) {
	return func(data []byte, width, height int) {
		buf := make([]byte, len(data))
		copy(buf, data)
		f.Publish(Frame{
			Seq:       f.seq.Add(1),
			Timestamp: time.Now(),
			Width:     width,
			Height:    height,
			Data:      buf,
			TraceID:   uuid.NewString(),
		})
	}
}

// Stats returns a snapshot of the counters.
func (f *Fanout) Stats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := Stats{
		TotalPublished: f.published.Load(),
		Subscribers:    make(map[string]SubscriberStats, len(f.subscribers)),
	}
	for id, s := range f.subscribers {
		st := SubscriberStats{Sent: s.sent.Load(), Dropped: s.dropped.Load()}
		out.Subscribers[id] = st
		out.TotalSent += st.Sent
		out.TotalDropped += st.Dropped
	}
	return out
}

// Close detaches all subscribers. Drop-new channels are left to their owners;
// drop-old receivers are closed. Idempotent.
func (f *Fanout) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for _, s := range f.subscribers {
		if s.latest != nil {
			s.latest.close()
		}
	}
	f.subscribers = nil
}

// Latest holds the most recent unread frame of a drop-old subscriber.
type Latest struct {
	mu     sync.Mutex
	frame  *Frame
	closed bool
	notify chan struct{}
}

func newLatest() *Latest {
	return &Latest{notify: make(chan struct{}, 1)}
}

// set stores frame and reports whether an unread frame was overwritten.
func (l *Latest) set(frame Frame) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	overwritten := l.frame != nil
	l.frame = &frame
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
	return overwritten
}

// Receive blocks until a frame is available, ctx is done or the subscriber is
// removed. The returned frame is consumed.
func (l *Latest) Receive(ctx context.Context) (Frame, error) {
	for {
		if fr, ok, closed := l.take(); ok {
			return fr, nil
		} else if closed {
			return Frame{}, ErrClosed
		}

		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-l.notify:
		}
	}
}

// TryReceive consumes the pending frame, if any, without blocking.
func (l *Latest) TryReceive() (Frame, bool) {
	fr, ok, _ := l.take()
	return fr, ok
}

func (l *Latest) take() (Frame, bool, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.frame == nil {
		return Frame{}, false, l.closed
	}
	fr := *l.frame
	l.frame = nil
	return fr, true, false
}

func (l *Latest) close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
}
