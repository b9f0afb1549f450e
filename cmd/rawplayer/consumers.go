package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/e7canasta/orion-media-player/internal/fanout"
)

var errDrainTimeout = errors.New("frame consumers did not drain in time")

// consumerFunc reads frames from ch until it is closed.
type consumerFunc func(ctx context.Context, ch <-chan fanout.Frame) error

// consumers runs the frame consumers fed by one fan-out and drains them on exit.
type consumers struct {
	fo       *fanout.Fanout
	buffer   int
	g        errgroup.Group
	channels []chan fanout.Frame
	closers  []io.Closer
}

func newConsumers(fo *fanout.Fanout, buffer int) *consumers {
	return &consumers{fo: fo, buffer: buffer}
}

// add subscribes a drop-new channel under id and starts run on it.
func (c *consumers) add(id string, run consumerFunc) error {
	ch := make(chan fanout.Frame, c.buffer)
	if err := c.fo.Subscribe(id, ch); err != nil {
		return fmt.Errorf("subscribe %s: %w", id, err)
	}
	c.channels = append(c.channels, ch)
	// Consumers drain until their channel is closed, even after an interrupt.
	c.g.Go(func() error { return run(context.Background(), ch) })
	return nil
}

// closeAfter registers a closer released once every consumer has returned.
func (c *consumers) closeAfter(cl io.Closer) {
	c.closers = append(c.closers, cl)
}

// drain detaches the fan-out, closes every channel and waits up to timeout for
// the consumers. On timeout the closers are left open: a consumer may still use them.
func (c *consumers) drain(timeout time.Duration) error {
	c.fo.Close()
	for _, ch := range c.channels {
		close(ch)
	}
	c.channels = nil

	done := make(chan error, 1)
	go func() { done <- c.g.Wait() }()

	select {
	case err := <-done:
		for _, cl := range c.closers {
			if cerr := cl.Close(); cerr != nil {
				slog.Warn("rawplayer close failed", "error", cerr)
			}
		}
		return err
	case <-time.After(timeout):
		return fmt.Errorf("%w (%s)", errDrainTimeout, timeout)
	}
}
