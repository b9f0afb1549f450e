package mediaplayer

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/e7canasta/orion-media-player/internal/engine"
)

// MessageLoop consumes bus events until the session ends:
//
//   - EndOfStream → nil
//   - Error → the event's error
//   - StateChanged(Stopped) → nil
//   - ctx done → ctx.Err()
//
// Buffering is logged as a warning; other events are ignored. On every exit path
// the engine is stopped and its bus set to flushing, after which no further events
// are delivered. Run at most one loop per session.
func (p *Player) MessageLoop(ctx context.Context) error {
	s := p.s
	bus := s.engine.Bus()

	defer func() {
		s.engine.Stop()
		bus.SetFlushing(true)
		slog.Debug("mediaplayer: message loop finished", "session_id", s.id)
	}()

	for {
		ev, err := bus.Pop(ctx)
		if err != nil {
			if errors.Is(err, engine.ErrFlushing) {
				return nil
			}
			return err
		}

		if done, result := s.handle(ev); done {
			return result
		}
	}
}

// handle applies one event and reports whether the loop ends, with its result.
func (s *session) handle(ev engine.Event) (bool, error) {
	switch ev.Type {
	case engine.EventEndOfStream:
		slog.Info("mediaplayer: end of stream", "session_id", s.id)
		s.notify(Event{Type: EventEndOfStream})
		return true, nil

	case engine.EventError:
		err := ev.Err
		if err == nil {
			err = &Error{
				Kind: KindMessageParse,
				Err:  errors.New("error event without cause"),
				Raw:  ev.String(),
			}
		}
		s.recordError(err)
		slog.Error("mediaplayer: playback error", "session_id", s.id, "error", err)
		s.notify(Event{Type: EventError, State: StateError, Err: err})
		return true, err

	case engine.EventBuffering:
		slog.Warn("mediaplayer: buffering", "session_id", s.id, "percent", ev.Percent)
		s.notify(Event{Type: EventBuffering, Percent: ev.Percent})
		return false, nil

	case engine.EventStateChanged:
		state := fromEngineState(ev.State)
		s.setState(state)
		slog.Debug("mediaplayer: state changed", "session_id", s.id, "state", state.String())
		s.notify(Event{Type: EventStateChanged, State: state})
		return state == StateStopped, nil

	default:
		return false, nil
	}
}

func (s *session) setState(state PlaybackState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *session) recordError(err error) {
	category := ErrCategoryUnknown
	var perr *Error
	if errors.As(err, &perr) {
		category = perr.Category
	}

	s.mu.Lock()
	s.state = StateError
	s.lastErr = err
	s.errCounts[category.String()]++
	s.mu.Unlock()
}

func (s *session) notify(ev Event) {
	s.mu.RLock()
	observers := s.observers
	s.mu.RUnlock()

	for _, fn := range observers {
		fn(ev)
	}
}

// Run drives MessageLoop and work concurrently without abandoning either.
//
// If the loop ends first (end of stream, Stop, error), work's context is cancelled,
// work is awaited and the loop's result is returned. If work fails first, playback
// is stopped, the loop is awaited and work's error is returned. If work succeeds
// first, the loop is awaited and its result returned.
func (p *Player) Run(ctx context.Context, work func(ctx context.Context) error) error {
	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()
	workCtx, cancelWork := context.WithCancel(ctx)
	defer cancelWork()

	loopDone := make(chan error, 1)
	workDone := make(chan error, 1)

	var g errgroup.Group
	g.Go(func() error {
		loopDone <- p.MessageLoop(loopCtx)
		return nil
	})
	g.Go(func() error {
		workDone <- work(workCtx)
		return nil
	})
	defer g.Wait()

	select {
	case err := <-loopDone:
		cancelWork()
		if werr := <-workDone; werr != nil && !errors.Is(werr, context.Canceled) {
			slog.Warn("mediaplayer: work failed after playback ended", "error", werr)
		}
		return err

	case werr := <-workDone:
		if werr != nil {
			p.Stop()
			// Stop on an already stopped engine posts nothing; do not wait forever.
			cancelLoop()
			<-loopDone
			return werr
		}
		return <-loopDone
	}
}
