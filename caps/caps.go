// Package caps builds the format descriptors (GStreamer caps) negotiated by the player.
//
// FormatDescriptor is the player's own video target: BGRA frames with optional
// resolution and framerate constraints. It is a value type; every mutation returns a
// new descriptor so a reader never observes a half-updated one.
//
// The Any* helpers describe permissive "accept anything" filters for applications that
// plug their own negotiation filter instead of the BGRA path.
package caps

import (
	"fmt"
	"math"
	"strings"
)

// PixelFormat is the only raw format delivered to frame callbacks.
// BGRA is dense (4 bytes per pixel, no row padding at even widths) and needs no
// conversion in the callback.
const PixelFormat = "BGRA"

const maxInt = "2147483647"

// Fraction is a rational framerate (Num/Den frames per second).
type Fraction struct {
	Num int
	Den int
}

// IsZero reports whether the fraction is unset.
func (f Fraction) IsZero() bool {
	return f.Num == 0 && f.Den == 0
}

// Float returns the fraction as frames per second (0 when Den is 0).
func (f Fraction) Float() float64 {
	if f.Den == 0 {
		return 0
	}
	return float64(f.Num) / float64(f.Den)
}

// String renders "N/D".
func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}

// FractionFromFPS converts a frames-per-second value into a caps framerate.
//
//   - fps >= 1.0: framerate = fps/1 (e.g., 5.0 → 5/1, 29.97 → 29/1)
//   - 0 < fps < 1.0: framerate = 1/(1/fps) (e.g., 0.5 → 1/2)
//   - fps <= 0 or NaN: 0/1 (variable framerate)
func FractionFromFPS(fps float64) Fraction {
	if math.IsNaN(fps) || fps <= 0 {
		return Fraction{Num: 0, Den: 1}
	}
	if fps < 1.0 {
		return Fraction{Num: 1, Den: int(math.Round(1.0 / fps))}
	}
	if fps > math.MaxInt32 {
		return Fraction{Num: math.MaxInt32, Den: 1}
	}
	return Fraction{Num: int(fps), Den: 1}
}

// FormatDescriptor is the desired output of the renderer's format filter.
// Zero Width/Height/Framerate leave that field unconstrained.
type FormatDescriptor struct {
	Framerate Fraction
	Width     int
	Height    int
}

// WithFramerate returns a copy with only the framerate replaced.
func (d FormatDescriptor) WithFramerate(f Fraction) FormatDescriptor {
	d.Framerate = f
	return d
}

// WithResolution returns a copy with only width and height replaced.
// A non-positive width or height clears the resolution constraint.
func (d FormatDescriptor) WithResolution(width, height int) FormatDescriptor {
	if width <= 0 || height <= 0 {
		width, height = 0, 0
	}
	d.Width = width
	d.Height = height
	return d
}

// HasResolution reports whether both dimensions are constrained.
func (d FormatDescriptor) HasResolution() bool {
	return d.Width > 0 && d.Height > 0
}

// String renders the descriptor as a GStreamer caps string.
//
// Format: "video/x-raw,format=BGRA[,width=(int)W,height=(int)H][,framerate=(fraction)N/D]"
func (d FormatDescriptor) String() string {
	var b strings.Builder
	b.WriteString("video/x-raw,format=")
	b.WriteString(PixelFormat)
	if d.HasResolution() {
		fmt.Fprintf(&b, ",width=(int)%d,height=(int)%d", d.Width, d.Height)
	}
	if !d.Framerate.IsZero() {
		fmt.Fprintf(&b, ",framerate=(fraction)%s", d.Framerate)
	}
	return b.String()
}

// AnyVideo describes raw video with any memory features and any geometry.
func AnyVideo() string {
	return "video/x-raw(ANY), width=(int)[ 1, " + maxInt + " ], height=(int)[ 1, " + maxInt +
		" ], framerate=(fraction)[ 0/1, " + maxInt + "/1 ]"
}

// AnyAudio describes raw audio with any memory features, rate and channel count.
func AnyAudio() string {
	return "audio/x-raw(ANY), rate=(int)[ 1, " + maxInt + " ], channels=(int)[ 1, " + maxInt + " ]"
}

// AnyVideoAudio is AnyVideo followed by AnyAudio (either is accepted).
func AnyVideoAudio() string {
	return AnyVideo() + "; " + AnyAudio()
}
