package framesink

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/e7canasta/orion-media-player/internal/fanout"
)

// solidBGRA returns a w×h frame of one BGRA color.
func solidBGRA(w, h int, b, g, r, a byte) []byte {
	data := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		data[i*4+0], data[i*4+1], data[i*4+2], data[i*4+3] = b, g, r, a
	}
	return data
}

func testFrame(seq uint64, w, h int) fanout.Frame {
	return fanout.Frame{
		Seq:       seq,
		Timestamp: time.Date(2025, 11, 5, 23, 45, 17, 123000000, time.UTC),
		Width:     w,
		Height:    h,
		Data:      solidBGRA(w, h, 10, 20, 30, 255),
		TraceID:   "trace-1",
	}
}

func TestBGRAToRGBA(t *testing.T) {
	img, err := BGRAToRGBA(solidBGRA(2, 2, 10, 20, 30, 255), 2, 2)
	if err != nil {
		t.Fatalf("BGRAToRGBA failed: %v", err)
	}
	r, g, b, a := img.Pix[0], img.Pix[1], img.Pix[2], img.Pix[3]
	if r != 30 || g != 20 || b != 10 || a != 255 {
		t.Errorf("pixel = (%d,%d,%d,%d), want (30,20,10,255)", r, g, b, a)
	}

	if _, err := BGRAToRGBA(make([]byte, 3), 2, 2); err == nil {
		t.Error("expected error for short buffer")
	}
	if _, err := BGRAToRGBA(nil, 0, 2); err == nil {
		t.Error("expected error for zero width")
	}
}

func TestThumbnail(t *testing.T) {
	img, _ := BGRAToRGBA(solidBGRA(320, 180, 0, 0, 255, 255), 320, 180)
	thumb := Thumbnail(img, 32)

	if b := thumb.Bounds(); b.Dx() != 32 || b.Dy() != 18 {
		t.Errorf("thumbnail size = %dx%d, want 32x18", b.Dx(), b.Dy())
	}

	tiny := Thumbnail(img, 1)
	if tiny.Bounds().Dy() != 1 {
		t.Errorf("thumbnail height should be at least 1, got %d", tiny.Bounds().Dy())
	}
}

func TestSaver_PNGAndJPEG(t *testing.T) {
	for _, format := range []string{"png", "jpeg"} {
		t.Run(format, func(t *testing.T) {
			dir := t.TempDir()
			s, err := NewSaver(dir, format, 90, 0)
			if err != nil {
				t.Fatalf("NewSaver failed: %v", err)
			}

			path, err := s.SaveFrame(testFrame(42, 8, 4))
			if err != nil {
				t.Fatalf("SaveFrame failed: %v", err)
			}
			wantName := "frame_000042_20251105_234517.123." + format
			if filepath.Base(path) != wantName {
				t.Errorf("file name = %q, want %q", filepath.Base(path), wantName)
			}

			f, err := os.Open(path)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer f.Close()

			if format == "png" {
				img, err := png.Decode(f)
				if err != nil {
					t.Fatalf("png decode: %v", err)
				}
				if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 4 {
					t.Errorf("decoded size %v", b)
				}
			} else if _, err := jpeg.Decode(f); err != nil {
				t.Fatalf("jpeg decode: %v", err)
			}

			if saved, dropped := s.Stats(); saved != 1 || dropped != 0 {
				t.Errorf("stats saved=%d dropped=%d", saved, dropped)
			}
		})
	}
}

func TestSaver_Thumbnails(t *testing.T) {
	s, err := NewSaver(t.TempDir(), "png", 0, 4)
	if err != nil {
		t.Fatalf("NewSaver failed: %v", err)
	}

	path, err := s.SaveFrame(testFrame(1, 16, 8))
	if err != nil {
		t.Fatalf("SaveFrame failed: %v", err)
	}
	f, _ := os.Open(path)
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("png decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 2 {
		t.Errorf("thumbnail size %dx%d, want 4x2", b.Dx(), b.Dy())
	}
}

func TestSaver_Errors(t *testing.T) {
	if _, err := NewSaver(t.TempDir(), "gif", 90, 0); err == nil {
		t.Error("expected error for unsupported format")
	}

	s, _ := NewSaver(t.TempDir(), "png", 90, 0)
	bad := testFrame(1, 4, 4)
	bad.Data = bad.Data[:10]
	if _, err := s.SaveFrame(bad); err == nil {
		t.Error("expected error for truncated frame")
	}
	if _, dropped := s.Stats(); dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestSaver_FailedEncodeLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSaver(dir, "png", 90, 0)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "empty.png")
	if err := s.writeImage(path, image.NewRGBA(image.Rect(0, 0, 0, 0))); err == nil {
		t.Fatal("expected encode error for a 0x0 image")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("partial file left behind: stat err = %v", err)
	}

	missing := filepath.Join(dir, "gone", "frame.png")
	if err := s.writeImage(missing, image.NewRGBA(image.Rect(0, 0, 2, 2))); err == nil {
		t.Error("expected create error for a missing directory")
	}

	ok := filepath.Join(dir, "ok.png")
	if err := s.writeImage(ok, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("writeImage: %v", err)
	}
	if _, err := os.Stat(ok); err != nil {
		t.Errorf("expected %s to exist: %v", ok, err)
	}
}

func TestSaver_RunStopsOnClose(t *testing.T) {
	s, _ := NewSaver(t.TempDir(), "png", 90, 0)
	ch := make(chan fanout.Frame, 2)
	ch <- testFrame(1, 2, 2)
	ch <- testFrame(2, 2, 2)
	close(ch)

	if err := s.Run(context.Background(), ch); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if saved, _ := s.Stats(); saved != 2 {
		t.Errorf("saved = %d, want 2", saved)
	}
}

func TestStream_WriteRead(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, "session-1")

	for seq := uint64(1); seq <= 3; seq++ {
		if err := w.WriteFrame(testFrame(seq, 2, 1)); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	if w.Written() != 3 {
		t.Errorf("Written = %d, want 3", w.Written())
	}

	// First message: 4-byte big-endian length then exactly that many bytes.
	raw := buf.Bytes()
	n := binary.BigEndian.Uint32(raw[:4])
	if int(n) > len(raw)-4 {
		t.Fatalf("length prefix %d exceeds stream", n)
	}

	r := NewReader(&buf)
	for seq := uint64(1); seq <= 3; seq++ {
		fr, err := r.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame #%d: %v", seq, err)
		}
		if fr.Seq != seq || fr.Width != 2 || fr.Height != 1 || fr.TraceID != "trace-1" {
			t.Errorf("frame #%d = %+v", seq, fr)
		}
		if !bytes.Equal(fr.Data, solidBGRA(2, 1, 10, 20, 30, 255)) {
			t.Errorf("frame #%d data mismatch", seq)
		}
		if !fr.Timestamp.Equal(testFrame(seq, 2, 1).Timestamp) {
			t.Errorf("timestamp = %v", fr.Timestamp)
		}
	}
	if r.Session != "session-1" {
		t.Errorf("Session = %q", r.Session)
	}

	if _, err := r.ReadFrame(); !errors.Is(err, io.EOF) {
		t.Errorf("at end: got %v, want io.EOF", err)
	}
}

func TestStream_ReaderRejectsBadInput(t *testing.T) {
	var huge [4]byte
	binary.BigEndian.PutUint32(huge[:], MaxMessageSize+1)
	if _, err := NewReader(bytes.NewReader(huge[:])).ReadFrame(); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("huge prefix: got %v", err)
	}

	var truncated bytes.Buffer
	NewWriter(&truncated, "s").WriteFrame(testFrame(1, 2, 2))
	cut := truncated.Bytes()[:truncated.Len()-3]
	if _, err := NewReader(bytes.NewReader(cut)).ReadFrame(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("truncated body: got %v", err)
	}

	garbage := []byte{0, 0, 0, 2, 0xc1, 0xc1}
	if _, err := NewReader(bytes.NewReader(garbage)).ReadFrame(); err == nil || !strings.Contains(err.Error(), "unmarshal") {
		t.Errorf("garbage body: got %v", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestStream_RunEndsOnWriteError(t *testing.T) {
	ch := make(chan fanout.Frame, 1)
	ch <- testFrame(1, 1, 1)

	err := NewWriter(failingWriter{}, "s").Run(context.Background(), ch)
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("Run = %v, want ErrClosedPipe", err)
	}
}
