// Package renderer implements the player's video sink: a three-stage segment
// (videorate → capsfilter → appsink) packaged as one bin that playbin renders into.
//
// Segment:
//
//	ghost "sink" → videorate → capsfilter(BGRA [+ width/height] [+ framerate]) → appsink
//
// videorate normalizes frame timing, the capsfilter enforces the target format and
// the appsink hands every new or prerolled sample to HandleSample.
package renderer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/orion-media-player/caps"
	"github.com/e7canasta/orion-media-player/internal/engine"
)

// MaxBuffers bounds the appsink queue. 1 second of 1080p BGRA at 30 fps is
// ~8 MiB*30 = 240 MiB; 10 buffers keep it at ~80 MiB (a third of a second).
const MaxBuffers = 10

// Renderer owns the three stage elements. It implements engine.VideoRenderer.
type Renderer struct {
	videorate  *gst.Element
	capsfilter *gst.Element
	appsink    *app.Sink

	binMu sync.Mutex
	bin   *gst.Bin

	// fmtMu serializes read-modify-write of the capsfilter descriptor.
	fmtMu  sync.Mutex
	format caps.FormatDescriptor

	counters SampleCounters
}

var _ engine.VideoRenderer = (*Renderer)(nil)

// New creates the three stage elements. The appsink drops under backpressure
// (never blocks the decode thread), keeps at most MaxBuffers samples and does not
// wait for EOS on teardown.
func New() (*Renderer, error) {
	videorate, err := gst.NewElement("videorate")
	if err != nil {
		return nil, engine.NewError(engine.KindElementCreate, "videorate", err)
	}

	format := caps.FormatDescriptor{}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, engine.NewError(engine.KindElementCreate, "capsfilter", err)
	}
	if err := capsfilter.SetProperty("caps", format.Caps()); err != nil {
		return nil, engine.NewError(engine.KindElementCreate, "capsfilter.caps", err)
	}

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, engine.NewError(engine.KindElementCreate, "appsink", err)
	}
	appsink.SetDrop(true)
	appsink.SetMaxBuffers(MaxBuffers)
	appsink.SetWaitOnEOS(false)
	appsink.SetCaps(format.Caps())

	return &Renderer{
		videorate:  videorate,
		capsfilter: capsfilter,
		appsink:    appsink,
		format:     format,
	}, nil
}

// CreateVideoSink builds the segment bin, links the stages in order, syncs each with
// its parent and exposes a ghost "sink" pad bound to videorate's sink pad.
// The bin is built once; later calls return it again.
func (r *Renderer) CreateVideoSink(p *engine.Playbin) (*gst.Element, error) {
	r.binMu.Lock()
	defer r.binMu.Unlock()

	if r.bin != nil {
		return r.bin.Element, nil
	}

	if p != nil {
		slog.Debug("mediaplayer: create_video_sink", "playbin", p.Name())
	}

	bin := gst.NewBin("renderer")
	elements := []*gst.Element{r.videorate, r.capsfilter, r.appsink.Element}

	if err := bin.AddMany(elements...); err != nil {
		return nil, engine.NewError(engine.KindBinAdd, "renderer", err)
	}

	if err := gst.ElementLinkMany(elements...); err != nil {
		return nil, engine.NewError(engine.KindElementLink, "videorate→capsfilter→appsink", err)
	}

	for _, el := range elements {
		if !el.SyncStateWithParent() {
			return nil, engine.NewError(engine.KindElementSync, el.GetName(),
				errors.New("failed to sync state with parent"))
		}
	}

	target := r.videorate.GetStaticPad("sink")
	if target == nil {
		return nil, engine.NewError(engine.KindElementLink, "videorate.sink",
			errors.New("videorate has no sink pad"))
	}
	ghost := gst.NewGhostPad("sink", target)
	if ghost == nil || !bin.AddPad(ghost.Pad) {
		return nil, engine.NewError(engine.KindBinAdd, "renderer.sink",
			errors.New("failed to add ghost pad"))
	}

	r.bin = bin
	return bin.Element, nil
}

// CapsFilter exposes the format-filter stage.
func (r *Renderer) CapsFilter() *gst.Element {
	return r.capsfilter
}

// VideoRate exposes the rate-converter stage.
func (r *Renderer) VideoRate() *gst.Element {
	return r.videorate
}

// AppSink exposes the frame-extraction stage.
func (r *Renderer) AppSink() *app.Sink {
	return r.appsink
}

// Counters returns the sample handling counters.
func (r *Renderer) Counters() *SampleCounters {
	return &r.counters
}

// Format returns the descriptor currently set on the capsfilter.
func (r *Renderer) Format() caps.FormatDescriptor {
	r.fmtMu.Lock()
	defer r.fmtMu.Unlock()
	return r.format
}

// UpdateFormat replaces the capsfilter descriptor with mutate(current) in one
// property write. Concurrent updates are serialized, so neither is lost and no
// reader sees a partial descriptor. Renegotiation failures surface later on the bus.
func (r *Renderer) UpdateFormat(mutate func(caps.FormatDescriptor) caps.FormatDescriptor) caps.FormatDescriptor {
	r.fmtMu.Lock()
	defer r.fmtMu.Unlock()

	next := mutate(r.format)
	slog.Debug("mediaplayer: updating capsfilter", "old", r.format.String(), "new", next.String())

	if err := r.capsfilter.SetProperty("caps", next.Caps()); err != nil {
		slog.Warn("mediaplayer: capsfilter update rejected", "caps", next.String(), "error", err)
		return r.format
	}
	r.format = next
	return next
}

// SetFrameHandler installs fn on both the new-sample and new-preroll paths,
// replacing any previous handler.
func (r *Renderer) SetFrameHandler(fn FrameFunc) {
	r.appsink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			return flowReturn(HandleSample(wrapSample(sink.PullSample()), sinkPoster{sink}, fn, &r.counters))
		},
		NewPrerollFunc: func(sink *app.Sink) gst.FlowReturn {
			return flowReturn(HandleSample(wrapSample(sink.PullPreroll()), sinkPoster{sink}, fn, &r.counters))
		},
	})
}

func flowReturn(f Flow) gst.FlowReturn {
	switch f {
	case FlowNotNegotiated:
		return gst.FlowNotNegotiated
	case FlowEOS:
		return gst.FlowEOS
	default:
		return gst.FlowOK
	}
}

type sinkPoster struct {
	sink *app.Sink
}

func (p sinkPoster) PostResourceError(text, debug string) {
	p.sink.ErrorMessage(gst.DomainResource, gst.ResourceErrorFailed, text, debug)
}

type gstSample struct {
	sample *gst.Sample
}

func wrapSample(s *gst.Sample) Sample {
	if s == nil {
		return nil
	}
	return gstSample{sample: s}
}

func (s gstSample) Dimensions() (int, int, error) {
	c := s.sample.GetCaps()
	if c == nil {
		return 0, 0, ErrNoFormat
	}
	st := c.GetStructureAt(0)
	if st == nil {
		return 0, 0, ErrNoFormat
	}
	if st.Name() != "video/x-raw" {
		return 0, 0, fmt.Errorf("%w: %s", ErrNoFormat, st.Name())
	}

	width, err := intField(st, "width")
	if err != nil {
		return 0, 0, err
	}
	height, err := intField(st, "height")
	if err != nil {
		return 0, 0, err
	}
	return width, height, nil
}

func (s gstSample) Map() ([]byte, func()) {
	buffer := s.sample.GetBuffer()
	if buffer == nil {
		return nil, nil
	}
	mapInfo := buffer.Map(gst.MapRead)
	if mapInfo == nil {
		return nil, nil
	}
	return mapInfo.Bytes(), func() { buffer.Unmap() }
}

func intField(st *gst.Structure, name string) (int, error) {
	v, err := st.GetValue(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrNoFormat, name, err)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint:
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: %s has type %T", ErrNoFormat, name, v)
	}
}
