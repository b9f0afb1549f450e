package framesink

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/e7canasta/orion-media-player/caps"
	"github.com/e7canasta/orion-media-player/internal/fanout"
)

// MaxMessageSize rejects length prefixes beyond any plausible frame (8K BGRA is ~130 MiB).
const MaxMessageSize = 256 << 20

// ErrMessageTooLarge is returned by Reader when a length prefix exceeds MaxMessageSize.
var ErrMessageTooLarge = errors.New("framesink: message exceeds maximum size")

// wireFrame is the msgpack body of one stream message.
type wireFrame struct {
	Seq       uint64 `msgpack:"seq"`
	Timestamp string `msgpack:"timestamp"`
	Width     int    `msgpack:"width"`
	Height    int    `msgpack:"height"`
	Format    string `msgpack:"format"`
	TraceID   string `msgpack:"trace_id"`
	SessionID string `msgpack:"session_id"`
	Data      []byte `msgpack:"frame_data"`
}

// Writer encodes frames as [4-byte big-endian length][msgpack body] messages.
// Safe for concurrent use; each message is written with a single Write call.
type Writer struct {
	mu        sync.Mutex
	w         io.Writer
	sessionID string
	written   uint64
}

// NewWriter writes to w, stamping every message with sessionID.
func NewWriter(w io.Writer, sessionID string) *Writer {
	return &Writer{w: w, sessionID: sessionID}
}

// WriteFrame encodes and writes one frame.
func (sw *Writer) WriteFrame(frame fanout.Frame) error {
	body, err := msgpack.Marshal(&wireFrame{
		Seq:       frame.Seq,
		Timestamp: frame.Timestamp.Format(time.RFC3339Nano),
		Width:     frame.Width,
		Height:    frame.Height,
		Format:    caps.PixelFormat,
		TraceID:   frame.TraceID,
		SessionID: sw.sessionID,
		Data:      frame.Data,
	})
	if err != nil {
		return fmt.Errorf("framesink: failed to marshal msgpack frame: %w", err)
	}

	msg := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(msg, uint32(len(body)))
	copy(msg[4:], body)

	sw.mu.Lock()
	defer sw.mu.Unlock()
	if _, err := sw.w.Write(msg); err != nil {
		return fmt.Errorf("framesink: failed to write frame: %w", err)
	}
	sw.written++
	return nil
}

// Written returns the number of messages written.
func (sw *Writer) Written() uint64 {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.written
}

// Run writes every frame received on ch until ctx is done or ch is closed.
// A write failure ends the loop: the consumer on the other side is gone.
func (sw *Writer) Run(ctx context.Context, ch <-chan fanout.Frame) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-ch:
			if !ok {
				return nil
			}
			if err := sw.WriteFrame(frame); err != nil {
				slog.Error("mediaplayer: frame stream closed", "seq", frame.Seq, "error", err)
				return err
			}
		}
	}
}

// Reader decodes messages produced by Writer.
type Reader struct {
	r       *bufio.Reader
	lenBuf  [4]byte
	Session string
}

// NewReader reads from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadFrame returns the next frame. io.EOF is returned at a clean message boundary;
// a truncated message yields io.ErrUnexpectedEOF.
func (sr *Reader) ReadFrame() (fanout.Frame, error) {
	if _, err := io.ReadFull(sr.r, sr.lenBuf[:]); err != nil {
		return fanout.Frame{}, err
	}

	n := binary.BigEndian.Uint32(sr.lenBuf[:])
	if n > MaxMessageSize {
		return fanout.Frame{}, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, n)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(sr.r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return fanout.Frame{}, err
	}

	var wf wireFrame
	if err := msgpack.Unmarshal(body, &wf); err != nil {
		return fanout.Frame{}, fmt.Errorf("framesink: failed to unmarshal msgpack frame: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, wf.Timestamp)
	if err != nil {
		return fanout.Frame{}, fmt.Errorf("framesink: bad timestamp %q: %w", wf.Timestamp, err)
	}
	sr.Session = wf.SessionID

	return fanout.Frame{
		Seq:       wf.Seq,
		Timestamp: ts,
		Width:     wf.Width,
		Height:    wf.Height,
		Data:      wf.Data,
		TraceID:   wf.TraceID,
	}, nil
}
