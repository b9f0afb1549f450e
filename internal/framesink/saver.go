// Package framesink contains consumers for copied frames: an image saver writing
// PNG/JPEG files and a length-prefixed msgpack stream for external analysers.
package framesink

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/image/draw"

	"github.com/e7canasta/orion-media-player/internal/fanout"
)

// Saver writes frames to disk as PNG or JPEG.
//
// Thread-safe: SaveFrame can be called from multiple goroutines.
type Saver struct {
	outputDir   string
	format      string
	jpegQuality int
	// maxWidth > 0 downscales wider frames before encoding, keeping aspect ratio.
	maxWidth int

	saved   atomic.Uint64
	dropped atomic.Uint64
}

// NewSaver creates the output directory and validates the format ("png" or "jpeg").
// jpegQuality is clamped to 1-100; maxWidth <= 0 disables thumbnailing.
func NewSaver(outputDir, format string, jpegQuality, maxWidth int) (*Saver, error) {
	if format != "png" && format != "jpeg" {
		return nil, fmt.Errorf("framesink: unsupported format %q (must be png or jpeg)", format)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("framesink: failed to create output directory: %w", err)
	}
	if jpegQuality < 1 {
		jpegQuality = 1
	} else if jpegQuality > 100 {
		jpegQuality = 100
	}

	return &Saver{
		outputDir:   outputDir,
		format:      format,
		jpegQuality: jpegQuality,
		maxWidth:    maxWidth,
	}, nil
}

// SaveFrame encodes frame to frame_{seq:06d}_{timestamp}.{ext} and returns the path.
func (s *Saver) SaveFrame(frame fanout.Frame) (string, error) {
	img, err := BGRAToRGBA(frame.Data, frame.Width, frame.Height)
	if err != nil {
		s.dropped.Add(1)
		return "", err
	}

	var out image.Image = img
	if s.maxWidth > 0 && frame.Width > s.maxWidth {
		out = Thumbnail(img, s.maxWidth)
	}

	name := fmt.Sprintf("frame_%06d_%s.%s", frame.Seq, frame.Timestamp.Format("20060102_150405.000"), s.format)
	path := filepath.Join(s.outputDir, name)

	if err := s.writeImage(path, out); err != nil {
		s.dropped.Add(1)
		return "", err
	}

	s.saved.Add(1)
	return path, nil
}

// writeImage encodes img to path. A file that could not be fully written is removed.
func (s *Saver) writeImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("framesink: failed to create file: %w", err)
	}

	switch s.format {
	case "png":
		err = png.Encode(f, img)
	case "jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: s.jpegQuality})
	}
	if err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("framesink: %s encode failed: %w", s.format, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("framesink: failed to close file: %w", err)
	}
	return nil
}

// Run saves every frame received on ch until ctx is done or ch is closed.
// Failures are logged and counted; they do not stop the loop.
func (s *Saver) Run(ctx context.Context, ch <-chan fanout.Frame) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-ch:
			if !ok {
				return nil
			}
			path, err := s.SaveFrame(frame)
			if err != nil {
				slog.Warn("mediaplayer: frame save failed", "seq", frame.Seq, "trace_id", frame.TraceID, "error", err)
				continue
			}
			slog.Debug("mediaplayer: frame saved", "seq", frame.Seq, "path", path)
		}
	}
}

// Stats returns saved and dropped counts.
func (s *Saver) Stats() (saved, dropped uint64) {
	return s.saved.Load(), s.dropped.Load()
}

// BGRAToRGBA converts packed BGRA bytes (4 bytes/pixel) to an image.RGBA.
func BGRAToRGBA(data []byte, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("framesink: invalid dimensions %dx%d", width, height)
	}
	if want := width * height * 4; len(data) < want {
		return nil, fmt.Errorf("framesink: invalid BGRA data size: got %d, expected %d", len(data), want)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		p := i * 4
		img.Pix[p+0] = data[p+2]
		img.Pix[p+1] = data[p+1]
		img.Pix[p+2] = data[p+0]
		img.Pix[p+3] = data[p+3]
	}
	return img, nil
}

// Thumbnail scales img down to maxWidth, keeping the aspect ratio (height >= 1).
func Thumbnail(img image.Image, maxWidth int) *image.RGBA {
	b := img.Bounds()
	h := b.Dy() * maxWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
