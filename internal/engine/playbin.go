package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
)

// VideoRenderer produces the video sink element playbin renders into.
// Any type implementing it can be plugged into NewPlaybin.
type VideoRenderer interface {
	CreateVideoSink(p *Playbin) (*gst.Element, error)
}

// busPollInterval bounds how long the watcher blocks on the native bus, so Close is
// observed promptly.
const busPollInterval = 50 * time.Millisecond

var (
	initOnce sync.Once
	initErr  error
)

// Init initializes GStreamer once per process and verifies that playbin is available.
// Safe to call multiple times; later calls return the first result.
func Init() error {
	initOnce.Do(func() {
		slog.Info("mediaplayer: gst.Init()")
		gst.Init(nil)

		check, err := gst.NewElement("playbin")
		if err != nil {
			initErr = NewError(KindInit, "playbin", err)
			return
		}
		check.SetState(gst.StateNull)
	})
	return initErr
}

// Playbin implements Engine on top of GStreamer's playbin element.
type Playbin struct {
	playbin *gst.Element
	name    string
	queue   *Queue

	mu      sync.Mutex
	tracker stateTracker
	volume  float64

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewPlaybin builds a playbin rendering video into renderer's sink and starts the
// bus watcher. Init must have succeeded.
func NewPlaybin(renderer VideoRenderer) (*Playbin, error) {
	elem, err := gst.NewElement("playbin")
	if err != nil {
		return nil, NewError(KindElementCreate, "playbin", err)
	}

	p := &Playbin{
		playbin: elem,
		name:    elem.GetName(),
		queue:   NewQueue(),
		volume:  1.0,
	}

	if renderer != nil {
		sink, err := renderer.CreateVideoSink(p)
		if err != nil {
			return nil, err
		}
		if err := elem.SetProperty("video-sink", sink); err != nil {
			return nil, NewError(KindBinAdd, "playbin.video-sink", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.watch(ctx)

	slog.Debug("mediaplayer: playbin created", "name", p.name)

	return p, nil
}

// Name returns the playbin element name.
func (p *Playbin) Name() string {
	return p.name
}

// SetURI implements Engine. A running pipeline is moved to READY first, since
// playbin only picks up a new URI on its next start.
func (p *Playbin) SetURI(uri string) {
	p.mu.Lock()
	running := p.tracker.target != StateStopped
	p.mu.Unlock()

	if running {
		if err := p.playbin.SetState(gst.StateReady); err != nil {
			p.postError(NewError(KindStateChange, "READY", err))
			return
		}
	}

	if err := p.playbin.SetProperty("uri", uri); err != nil {
		p.postError(NewError(KindPlayback, "playbin.uri", err))
		return
	}
	slog.Debug("mediaplayer: uri set", "uri", uri)
}

// Play implements Engine.
func (p *Playbin) Play() {
	p.transition(StatePlaying, gst.StatePlaying)
}

// Pause implements Engine.
func (p *Playbin) Pause() {
	p.transition(StatePaused, gst.StatePaused)
}

// Stop implements Engine. The pipeline goes to READY and Stopped is reported.
func (p *Playbin) Stop() {
	p.transition(StateStopped, gst.StateReady)
}

// transition records the target before touching the pipeline, so state-changed
// messages racing in from the watcher are judged against the new target.
func (p *Playbin) transition(target State, gstState gst.State) {
	p.mu.Lock()
	events := p.tracker.request(target)
	p.mu.Unlock()

	if err := p.playbin.SetState(gstState); err != nil {
		p.postError(NewError(KindStateChange, fmt.Sprintf("%v", gstState), err))
		return
	}

	for _, ev := range events {
		p.queue.Post(ev)
	}
}

// Seek implements Engine with a flushing, key-unit aligned seek.
func (p *Playbin) Seek(position time.Duration) {
	ok := p.playbin.SeekSimple(int64(position), gst.FormatTime, gst.SeekFlagFlush|gst.SeekFlagKeyUnit)
	if !ok {
		p.postError(NewError(KindPlayback, "seek", fmt.Errorf("failed to seek to %s", position)))
		return
	}
	slog.Debug("mediaplayer: seek requested", "position", position)
}

// SetVolume implements Engine. Range checks are the caller's concern; playbin clamps
// to its own maximum.
func (p *Playbin) SetVolume(volume float64) {
	if err := p.playbin.SetProperty("volume", volume); err != nil {
		p.postError(NewError(KindPlayback, "playbin.volume", err))
		return
	}
	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()
}

// Volume implements Engine.
func (p *Playbin) Volume() float64 {
	if v, err := p.playbin.GetProperty("volume"); err == nil {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Bus implements Engine.
func (p *Playbin) Bus() Bus {
	return p.queue
}

// Close implements Engine: stops the watcher, sets the pipeline to NULL and flushes
// the bus. Idempotent.
func (p *Playbin) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.cancel()
		<-p.done

		if serr := p.playbin.SetState(gst.StateNull); serr != nil {
			err = NewError(KindStateChange, "NULL", serr)
		}
		p.queue.SetFlushing(true)
		slog.Debug("mediaplayer: playbin closed", "name", p.name)
	})
	return err
}

func (p *Playbin) postError(err *Error) {
	slog.Warn("mediaplayer: engine call failed", "error", err)
	p.queue.Post(Event{Type: EventError, Err: err})
}

// watch polls the native bus and translates messages into events.
func (p *Playbin) watch(ctx context.Context) {
	defer close(p.done)

	bus := p.playbin.GetBus()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg := bus.TimedPop(busPollInterval)
		if msg == nil {
			continue
		}
		p.handleMessage(msg)
	}
}

func (p *Playbin) handleMessage(msg *gst.Message) {
	switch msg.Type() {
	case gst.MessageEOS:
		p.queue.Post(Event{Type: EventEndOfStream})

	case gst.MessageError:
		gerr := msg.ParseError()
		if gerr == nil {
			p.queue.Post(Event{Type: EventError, Err: &Error{
				Kind: KindMessageParse,
				Op:   msg.Source(),
				Err:  errors.New("error message without GError"),
				Raw:  describe(msg),
			}})
			return
		}
		perr := PlaybackError(msg.Source(), gerr.Error(), gerr.DebugString())
		slog.Error("mediaplayer: pipeline error",
			"source", msg.Source(),
			"error", gerr.Error(),
			"debug", gerr.DebugString(),
			"category", perr.Category.String(),
		)
		p.queue.Post(Event{Type: EventError, Err: perr})

	case gst.MessageWarning:
		if gerr := msg.ParseWarning(); gerr != nil {
			slog.Warn("mediaplayer: pipeline warning", "source", msg.Source(), "warning", gerr.Error())
		}
		p.queue.Post(Event{Type: EventOther, Name: msg.TypeName()})

	case gst.MessageBuffering:
		percent := msg.ParseBuffering()

		p.mu.Lock()
		events, action := p.tracker.buffer(percent)
		p.mu.Unlock()

		switch action {
		case actionPause:
			if err := p.playbin.SetState(gst.StatePaused); err != nil {
				p.postError(NewError(KindStateChange, "PAUSED", err))
			}
		case actionResume:
			if err := p.playbin.SetState(gst.StatePlaying); err != nil {
				p.postError(NewError(KindStateChange, "PLAYING", err))
			}
		}
		for _, ev := range events {
			p.queue.Post(ev)
		}

	case gst.MessageStateChanged:
		if msg.Source() != p.name {
			return
		}
		_, newState := msg.ParseStateChanged()

		p.mu.Lock()
		events := p.tracker.pipeline(mapState(newState))
		p.mu.Unlock()

		for _, ev := range events {
			p.queue.Post(ev)
		}

	default:
		p.queue.Post(Event{Type: EventOther, Name: msg.TypeName()})
	}
}

func mapState(s gst.State) State {
	switch s {
	case gst.StatePlaying:
		return StatePlaying
	case gst.StatePaused:
		return StatePaused
	default:
		return StateStopped
	}
}

func describe(msg *gst.Message) string {
	return fmt.Sprintf("%s from %s", msg.TypeName(), msg.Source())
}
