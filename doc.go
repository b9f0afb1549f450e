// Package mediaplayer provides a programmatic media player built on GStreamer.
//
// A Player decodes any source playbin can open (files, HTTP, RTSP, ...) and hands
// every decoded video frame to the application as dense BGRA bytes, at a resolution
// and frame rate the application chooses and can change during playback. Lifecycle
// events (end of stream, errors, buffering, state changes) are consumed by a message
// loop whose result is the outcome of the session.
//
// # Quick Start
//
//	if err := mediaplayer.Init(); err != nil {
//	    log.Fatal(err)
//	}
//
//	player, err := mediaplayer.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer player.Close()
//
//	player.SetFPS(10)
//	player.SetResolution(320, 180)
//	player.OnFrame(func(data []byte, width, height int) {
//	    // data is width*height*4 BGRA bytes, valid only during this call
//	})
//
//	if err := player.Play([]string{"file:///tmp/sample.mp4"}); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Blocks until end of stream, Stop, an error or ctx cancellation.
//	if err := player.MessageLoop(ctx); err != nil {
//	    log.Printf("playback failed: %v", err)
//	}
//
// # Pipeline
//
//	playbin ──video-sink──▶ [renderer bin]
//	                         ghost sink → videorate → capsfilter → appsink → OnFrame
//
// The capsfilter fixes the pixel format to BGRA and carries the optional
// width/height and framerate constraints set by SetResolution and SetFPS. The
// appsink drops frames under backpressure (at most 10 queued), so a slow callback
// loses frames instead of stalling decoding.
//
// # Frame Callback Contract
//
//   - Runs synchronously on a GStreamer streaming thread; it must not block.
//   - data is owned by GStreamer and only valid during the call; copy to keep it.
//   - Never called with empty data or a zero width/height.
//   - The same callback serves prerolled and steady-state frames.
//
// # Message Loop
//
// MessageLoop consumes bus events in order:
//
//   - EndOfStream: returns nil
//   - Error: returns the error (an *Error of KindPlayback, KindStateChange, ...)
//   - Buffering: logged as a warning
//   - StateChanged: tracked in State(); Stopped returns nil
//
// On every exit path the player is stopped and its bus is set to flushing, so no
// further events are delivered. The loop is single-consumer: run at most one per
// session. Run composes the loop with application work and never abandons either.
//
// # Sessions
//
// Clone returns another handle to the same session; any handle may configure or
// drive playback. The engine is released when the last handle is closed.
//
// # Errors
//
// Every error returned by this package is an *Error. Match the failing operation
// with errors.Is against ErrInit, ErrElementCreate, ErrBinAdd, ErrElementLink,
// ErrElementSync, ErrStateChange, ErrMessageParse, ErrPlayback, ErrMissingURL and
// ErrInvalidVolume; use errors.As for the details.
package mediaplayer
