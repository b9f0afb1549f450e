package renderer

import (
	"errors"
	"testing"
)

type fakeSample struct {
	width, height int
	dimErr        error
	data          []byte

	released int
}

func (s *fakeSample) Dimensions() (int, int, error) {
	return s.width, s.height, s.dimErr
}

func (s *fakeSample) Map() ([]byte, func()) {
	return s.data, func() { s.released++ }
}

type recordingPoster struct {
	texts  []string
	debugs []string
}

func (p *recordingPoster) PostResourceError(text, debug string) {
	p.texts = append(p.texts, text)
	p.debugs = append(p.debugs, debug)
}

func TestHandleSample_DeliversFrame(t *testing.T) {
	sample := &fakeSample{width: 4, height: 2, data: make([]byte, 4*2*4)}
	poster := &recordingPoster{}
	var counters SampleCounters

	var gotLen, gotW, gotH, calls int
	fn := func(data []byte, width, height int) {
		calls++
		gotLen, gotW, gotH = len(data), width, height
		if sample.released != 0 {
			t.Error("buffer released before the callback returned")
		}
	}

	flow := HandleSample(sample, poster, fn, &counters)

	if flow != FlowOK {
		t.Fatalf("flow = %v, want ok", flow)
	}
	if calls != 1 {
		t.Fatalf("callback called %d times, want 1", calls)
	}
	if gotLen != 32 || gotW != 4 || gotH != 2 {
		t.Errorf("callback got len=%d %dx%d, want len=32 4x2", gotLen, gotW, gotH)
	}
	if sample.released != 1 {
		t.Errorf("buffer released %d times, want 1", sample.released)
	}
	if counters.Delivered.Load() != 1 || counters.BytesTotal.Load() != 32 {
		t.Errorf("counters delivered=%d bytes=%d", counters.Delivered.Load(), counters.BytesTotal.Load())
	}
	if len(poster.texts) != 0 {
		t.Errorf("unexpected posted errors %v", poster.texts)
	}
}

func TestHandleSample_NoSampleIsEOS(t *testing.T) {
	called := false
	flow := HandleSample(nil, nil, func([]byte, int, int) { called = true }, nil)

	if flow != FlowEOS {
		t.Errorf("flow = %v, want eos", flow)
	}
	if called {
		t.Error("callback must not run without a sample")
	}
}

func TestHandleSample_FormatFailurePostsError(t *testing.T) {
	sample := &fakeSample{dimErr: ErrNoFormat, data: []byte{1, 2, 3, 4}}
	poster := &recordingPoster{}
	var counters SampleCounters
	called := false

	flow := HandleSample(sample, poster, func([]byte, int, int) { called = true }, &counters)

	if flow != FlowNotNegotiated {
		t.Errorf("flow = %v, want not-negotiated", flow)
	}
	if called {
		t.Error("callback must not run when the format is unknown")
	}
	if len(poster.texts) != 1 || poster.texts[0] != "Failed to get video info from sample" {
		t.Errorf("posted %v", poster.texts)
	}
	if !errors.Is(sample.dimErr, ErrNoFormat) || poster.debugs[0] != ErrNoFormat.Error() {
		t.Errorf("debug = %q", poster.debugs[0])
	}
	if counters.Failed.Load() != 1 {
		t.Errorf("failed = %d, want 1", counters.Failed.Load())
	}
	if sample.released != 0 {
		t.Error("buffer should not be mapped when the format is unknown")
	}
}

func TestHandleSample_SkipsDegenerateFrames(t *testing.T) {
	tests := []struct {
		name   string
		sample *fakeSample
	}{
		{"empty buffer", &fakeSample{width: 4, height: 4}},
		{"zero width", &fakeSample{width: 0, height: 4, data: []byte{1}}},
		{"zero height", &fakeSample{width: 4, height: 0, data: []byte{1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var counters SampleCounters
			called := false

			flow := HandleSample(tt.sample, &recordingPoster{}, func([]byte, int, int) { called = true }, &counters)

			if flow != FlowOK {
				t.Errorf("flow = %v, want ok", flow)
			}
			if called {
				t.Error("callback must not run for degenerate frames")
			}
			if counters.Skipped.Load() != 1 {
				t.Errorf("skipped = %d, want 1", counters.Skipped.Load())
			}
			if tt.sample.released != 1 {
				t.Errorf("released = %d, want 1", tt.sample.released)
			}
		})
	}
}

func TestHandleSample_NilCallbackStillCounts(t *testing.T) {
	var counters SampleCounters
	sample := &fakeSample{width: 1, height: 1, data: []byte{0, 0, 0, 255}}

	if flow := HandleSample(sample, nil, nil, &counters); flow != FlowOK {
		t.Errorf("flow = %v, want ok", flow)
	}
	if counters.Delivered.Load() != 1 {
		t.Errorf("delivered = %d, want 1", counters.Delivered.Load())
	}
}

func TestFlow_String(t *testing.T) {
	tests := map[Flow]string{
		FlowOK:            "ok",
		FlowNotNegotiated: "not-negotiated",
		FlowEOS:           "eos",
		Flow(42):          "unknown",
	}
	for f, want := range tests {
		if got := f.String(); got != want {
			t.Errorf("Flow(%d).String() = %q, want %q", int(f), got, want)
		}
	}
}
