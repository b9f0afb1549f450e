package mediaplayer

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/e7canasta/orion-media-player/caps"
	"github.com/e7canasta/orion-media-player/internal/engine"
	"github.com/e7canasta/orion-media-player/internal/framestats"
	"github.com/e7canasta/orion-media-player/internal/renderer"
)

// maxSeekSeconds keeps the seek position representable as a time.Duration.
const maxSeekSeconds = uint64(math.MaxInt64 / int64(time.Second))

// videoSink is the part of the renderer the player drives after construction.
type videoSink interface {
	Format() caps.FormatDescriptor
	UpdateFormat(mutate func(caps.FormatDescriptor) caps.FormatDescriptor) caps.FormatDescriptor
	SetFrameHandler(fn renderer.FrameFunc)
	Counters() *renderer.SampleCounters
}

// session is shared by every Player handle cloned from the same New call.
type session struct {
	id      string
	engine  engine.Engine
	sink    videoSink
	window  *framestats.Window
	started time.Time

	refs      atomic.Int32
	closeOnce sync.Once
	closeErr  error

	mu        sync.RWMutex
	state     PlaybackState
	errCounts map[string]uint64
	lastErr   error
	observers []func(Event)
}

// Player is a handle to a playback session. Handles are safe for concurrent use;
// see Clone and Close for ownership.
type Player struct {
	s      *session
	closed atomic.Bool
}

// Init initializes GStreamer once per process and checks that playbin is available.
// New calls it; calling it earlier surfaces ErrInit before any other work.
func Init() error {
	return engine.Init()
}

// New builds the renderer and a playbin rendering into it. Any failure aborts
// construction; no partially built player is returned.
func New() (*Player, error) {
	if err := Init(); err != nil {
		return nil, err
	}

	r, err := renderer.New()
	if err != nil {
		return nil, err
	}

	pb, err := engine.NewPlaybin(r)
	if err != nil {
		return nil, err
	}

	return newPlayer(pb, r), nil
}

func newPlayer(e engine.Engine, sink videoSink) *Player {
	s := &session{
		id:        uuid.NewString(),
		engine:    e,
		sink:      sink,
		window:    framestats.NewWindow(framestats.DefaultWindow),
		started:   time.Now(),
		errCounts: make(map[string]uint64),
	}
	s.refs.Store(1)

	slog.Info("mediaplayer: session created", "session_id", s.id)
	return &Player{s: s}
}

// Clone returns another handle to the same session.
func (p *Player) Clone() *Player {
	p.s.refs.Add(1)
	return &Player{s: p.s}
}

// Close releases this handle. Closing the last handle sets the engine to NULL,
// flushes its bus and stops the bus watcher. Idempotent per handle.
func (p *Player) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	if p.s.refs.Add(-1) > 0 {
		return nil
	}
	return p.s.release()
}

func (s *session) release() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.engine.Close()
		s.engine.Bus().SetFlushing(true)
		slog.Info("mediaplayer: session released", "session_id", s.id, "uptime", time.Since(s.started))
	})
	return s.closeErr
}

// SessionID returns the session's unique ID, shared by all clones.
func (p *Player) SessionID() string {
	return p.s.id
}

// SetFPS constrains the delivered frame rate. fps >= 1 is truncated to a whole
// number of frames per second, 0 < fps < 1 becomes 1/round(1/fps) and fps <= 0
// removes the constraint.
func (p *Player) SetFPS(fps float64) {
	var f caps.Fraction
	if fps > 0 {
		f = caps.FractionFromFPS(fps)
	}
	d := p.s.sink.UpdateFormat(func(d caps.FormatDescriptor) caps.FormatDescriptor {
		return d.WithFramerate(f)
	})
	slog.Debug("mediaplayer: fps updated", "fps", fps, "caps", d.String())
}

// SetResolution constrains the delivered frame size. A non-positive width or
// height removes the constraint.
func (p *Player) SetResolution(width, height int) {
	d := p.s.sink.UpdateFormat(func(d caps.FormatDescriptor) caps.FormatDescriptor {
		return d.WithResolution(width, height)
	})
	slog.Debug("mediaplayer: resolution updated", "width", width, "height", height, "caps", d.String())
}

// Format returns the current format constraints.
func (p *Player) Format() caps.FormatDescriptor {
	return p.s.sink.Format()
}

// SetVolume applies a linear volume (1.0 = unity). Negative or NaN values are
// rejected with KindInvalidVolume and leave the engine untouched. No upper bound is
// enforced here; the engine clamps.
func (p *Player) SetVolume(volume float64) error {
	if volume < 0 || math.IsNaN(volume) {
		return &Error{Kind: KindInvalidVolume, Volume: volume}
	}
	p.s.engine.SetVolume(volume)
	return nil
}

// Volume returns the engine's current volume.
func (p *Player) Volume() float64 {
	return p.s.engine.Volume()
}

// OnFrame registers fn for every decoded frame, replacing any previous callback.
// A nil fn stops delivery while frame statistics keep counting.
func (p *Player) OnFrame(fn FrameFunc) {
	window := p.s.window
	p.s.sink.SetFrameHandler(func(data []byte, width, height int) {
		window.Record(time.Now())
		if fn != nil {
			fn(data, width, height)
		}
	})
}

// OnEvent registers fn to observe every event the message loop handles. Observers
// run on the message loop goroutine, in registration order, and must not block.
func (p *Player) OnEvent(fn func(Event)) {
	if fn == nil {
		return
	}
	p.s.mu.Lock()
	p.s.observers = append(p.s.observers, fn)
	p.s.mu.Unlock()
}

// Play opens urls[0] and starts playback. An empty list fails with KindMissingURL
// without touching the engine. Further URLs are ignored: there are no playlists.
func (p *Player) Play(urls []string) error {
	if len(urls) == 0 {
		return &Error{Kind: KindMissingURL}
	}
	if len(urls) > 1 {
		slog.Debug("mediaplayer: only the first url is played", "ignored", len(urls)-1)
	}

	p.s.window.Reset()
	p.s.engine.SetURI(urls[0])
	p.s.engine.Play()

	slog.Info("mediaplayer: play", "session_id", p.s.id, "url", urls[0])
	return nil
}

// Resume requests PLAYING for the current URI, keeping the position.
func (p *Player) Resume() {
	p.s.engine.Play()
}

// Pause requests PAUSED. Failures arrive through the message loop.
func (p *Player) Pause() {
	p.s.engine.Pause()
}

// Stop requests a stop. The message loop observes StateChanged(Stopped) and returns.
func (p *Player) Stop() {
	p.s.engine.Stop()
}

// Seek jumps to an absolute position in whole seconds. Failures arrive through the
// message loop.
func (p *Player) Seek(seconds uint64) {
	if seconds > maxSeekSeconds {
		seconds = maxSeekSeconds
	}
	p.s.engine.Seek(time.Duration(seconds) * time.Second)
}

// State returns the state last observed by the message loop.
func (p *Player) State() PlaybackState {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	return p.s.state
}

// Stats returns a snapshot of the session statistics.
func (p *Player) Stats() Stats {
	s := p.s
	counters := s.sink.Counters()
	fps := s.window.Snapshot(time.Now())

	s.mu.RLock()
	errs := make(map[string]uint64, len(s.errCounts))
	for k, v := range s.errCounts {
		errs[k] = v
	}
	state := s.state
	var lastErr string
	if s.lastErr != nil {
		lastErr = s.lastErr.Error()
	}
	s.mu.RUnlock()

	return Stats{
		SessionID:       s.id,
		State:           state,
		Format:          s.sink.Format(),
		Volume:          s.engine.Volume(),
		FramesDelivered: counters.Delivered.Load(),
		FramesSkipped:   counters.Skipped.Load(),
		FramesFailed:    counters.Failed.Load(),
		BytesDelivered:  counters.BytesTotal.Load(),
		FPSMean:         fps.Mean,
		FPSStdDev:       fps.StdDev,
		FPSStable:       fps.Stable,
		Errors:          errs,
		LastError:       lastErr,
		Uptime:          time.Since(s.started),
	}
}
