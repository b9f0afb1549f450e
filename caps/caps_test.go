package caps

import (
	"math"
	"strings"
	"testing"
)

func TestFractionFromFPS(t *testing.T) {
	tests := []struct {
		name string
		fps  float64
		want Fraction
	}{
		{"integer", 10, Fraction{10, 1}},
		{"fractional above one truncates", 29.97, Fraction{29, 1}},
		{"half hertz", 0.5, Fraction{1, 2}},
		{"tenth hertz", 0.1, Fraction{1, 10}},
		{"zero is variable", 0, Fraction{0, 1}},
		{"negative is variable", -3, Fraction{0, 1}},
		{"nan is variable", math.NaN(), Fraction{0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FractionFromFPS(tt.fps); got != tt.want {
				t.Errorf("FractionFromFPS(%v) = %v, want %v", tt.fps, got, tt.want)
			}
		})
	}
}

func TestFormatDescriptor_String(t *testing.T) {
	tests := []struct {
		name string
		desc FormatDescriptor
		want string
	}{
		{
			name: "unconstrained",
			desc: FormatDescriptor{},
			want: "video/x-raw,format=BGRA",
		},
		{
			name: "resolution only",
			desc: FormatDescriptor{Width: 320, Height: 180},
			want: "video/x-raw,format=BGRA,width=(int)320,height=(int)180",
		},
		{
			name: "framerate only",
			desc: FormatDescriptor{Framerate: Fraction{10, 1}},
			want: "video/x-raw,format=BGRA,framerate=(fraction)10/1",
		},
		{
			name: "full",
			desc: FormatDescriptor{Framerate: Fraction{1, 2}, Width: 32, Height: 18},
			want: "video/x-raw,format=BGRA,width=(int)32,height=(int)18,framerate=(fraction)1/2",
		},
		{
			name: "half resolution is ignored",
			desc: FormatDescriptor{Width: 320},
			want: "video/x-raw,format=BGRA",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.desc.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatDescriptor_WithersCopy(t *testing.T) {
	base := FormatDescriptor{Framerate: Fraction{10, 1}, Width: 320, Height: 180}

	fps := base.WithFramerate(Fraction{3, 1})
	if base.Framerate != (Fraction{10, 1}) {
		t.Fatalf("WithFramerate mutated receiver: %+v", base)
	}
	if fps.Width != 320 || fps.Height != 180 || fps.Framerate != (Fraction{3, 1}) {
		t.Errorf("WithFramerate touched other fields: %+v", fps)
	}

	res := base.WithResolution(32, 18)
	if base.Width != 320 || base.Height != 180 {
		t.Fatalf("WithResolution mutated receiver: %+v", base)
	}
	if res.Framerate != (Fraction{10, 1}) || res.Width != 32 || res.Height != 18 {
		t.Errorf("WithResolution touched other fields: %+v", res)
	}

	cleared := base.WithResolution(0, 180)
	if cleared.HasResolution() || cleared.Width != 0 || cleared.Height != 0 {
		t.Errorf("non-positive dimension should clear resolution: %+v", cleared)
	}
}

func TestAnyHelpers(t *testing.T) {
	if !strings.HasPrefix(AnyVideo(), "video/x-raw(ANY)") {
		t.Errorf("AnyVideo() = %q", AnyVideo())
	}
	if !strings.HasPrefix(AnyAudio(), "audio/x-raw(ANY)") {
		t.Errorf("AnyAudio() = %q", AnyAudio())
	}

	both := AnyVideoAudio()
	parts := strings.Split(both, "; ")
	if len(parts) != 2 || parts[0] != AnyVideo() || parts[1] != AnyAudio() {
		t.Errorf("AnyVideoAudio() = %q, want video then audio structure", both)
	}
}
