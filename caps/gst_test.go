package caps

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/tinyzimmer/go-gst/gst"
)

// requireGStreamer skips unless MEDIAPLAYER_TEST_GST is set, then initializes GStreamer.
func requireGStreamer(t *testing.T) {
	t.Helper()
	if os.Getenv("MEDIAPLAYER_TEST_GST") == "" {
		t.Skip("set MEDIAPLAYER_TEST_GST=1 to run tests against GStreamer")
	}
	gst.Init(nil)
}

func TestAnyCaps_Parse(t *testing.T) {
	requireGStreamer(t)

	tests := []struct {
		name   string
		caps   *gst.Caps
		size   int
		prefix string
	}{
		{"video", AnyVideoCaps(), 1, "video/x-raw(ANY)"},
		{"audio", AnyAudioCaps(), 1, "audio/x-raw(ANY)"},
		{"video+audio", AnyVideoAudioCaps(), 2, "video/x-raw(ANY)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.caps == nil || tt.caps.IsEmpty() {
				t.Fatal("caps did not parse")
			}
			if got := tt.caps.GetSize(); got != tt.size {
				t.Errorf("GetSize() = %d, want %d", got, tt.size)
			}
			if s := tt.caps.String(); !strings.HasPrefix(s, tt.prefix) {
				t.Errorf("String() = %q, want prefix %q", s, tt.prefix)
			}
		})
	}
}

func TestFormatDescriptor_Caps(t *testing.T) {
	requireGStreamer(t)

	d := FormatDescriptor{}.WithResolution(320, 180).WithFramerate(Fraction{Num: 10, Den: 1})
	c := d.Caps()
	if c == nil || c.GetSize() != 1 {
		t.Fatalf("Caps() = %v", c)
	}

	st := c.GetStructureAt(0)
	if st.Name() != "video/x-raw" {
		t.Errorf("structure name = %q", st.Name())
	}
	if v, err := st.GetValue("width"); err != nil || fmt.Sprint(v) != "320" {
		t.Errorf("width = %v (%v), want 320", v, err)
	}
	if v, err := st.GetValue("format"); err != nil || fmt.Sprint(v) != PixelFormat {
		t.Errorf("format = %v (%v), want %s", v, err, PixelFormat)
	}
}
