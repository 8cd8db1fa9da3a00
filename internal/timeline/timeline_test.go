package timeline_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"dubsync/internal/dub"
	"dubsync/internal/media/ffmpeg"
	"dubsync/internal/services"
	"dubsync/internal/timeline"
)

type fakeRenderer struct {
	specs    []ffmpeg.ClipSpec
	fail     map[int]error
	failOnce map[int]error
}

func (r *fakeRenderer) RenderClip(_ context.Context, spec ffmpeg.ClipSpec) error {
	r.specs = append(r.specs, spec)
	for idx, err := range r.failOnce {
		if spec.OutputPath == clipPath(idx) {
			delete(r.failOnce, idx)
			return err
		}
	}
	for idx, err := range r.fail {
		if spec.OutputPath == clipPath(idx) {
			return err
		}
	}
	return nil
}

type failure struct {
	index int
	drift float64
	err   error
}

type fakeSink struct {
	ready  []timeline.Placement
	failed []failure
}

func (s *fakeSink) SegmentReady(_ context.Context, p timeline.Placement) error {
	s.ready = append(s.ready, p)
	return nil
}

func (s *fakeSink) SegmentFailed(_ context.Context, seg dub.DubSegment, drift float64, err error) error {
	s.failed = append(s.failed, failure{index: seg.Index, drift: drift, err: err})
	return nil
}

func clipPath(i int) string { return fmt.Sprintf("/out/seg_%04d.mp4", i) }

func segment(i int, start, end float64) dub.DubSegment {
	return dub.DubSegment{Index: i, StartMS: start, EndMS: end}
}

func outcome(seg dub.DubSegment, strategy dub.Strategy, freeze float64) timeline.Outcome {
	return timeline.Outcome{
		Segment:   seg,
		Decision:  dub.SyncDecision{SegmentIndex: seg.Index, Strategy: strategy, SpeedFactor: 1, FreezeMS: freeze},
		AudioPath: fmt.Sprintf("/work/seg_%04d.wav", seg.Index),
	}
}

func newAssembler(r *fakeRenderer, s *fakeSink, drift *timeline.Drift) *timeline.Assembler {
	return timeline.NewAssembler(r, s, drift, timeline.Options{SourcePath: "/src.mp4", ClipPath: clipPath})
}

func TestAssemblerCarriesDriftForward(t *testing.T) {
	r := &fakeRenderer{}
	s := &fakeSink{}
	a := newAssembler(r, s, timeline.NewDrift(0))

	segs := []dub.DubSegment{segment(0, 0, 2000), segment(1, 2000, 5000), segment(2, 5000, 6000)}
	outcomes := []timeline.Outcome{
		outcome(segs[0], dub.StrategyFreezeExtend, 500),
		outcome(segs[1], dub.StrategyFreezeExtend, 250),
		outcome(segs[2], dub.StrategyPad, 0),
	}
	futures := make([]<-chan timeline.Outcome, len(outcomes))
	for i, o := range outcomes {
		ch := make(chan timeline.Outcome, 1)
		ch <- o
		futures[i] = ch
	}

	clips := a.Run(context.Background(), futures)
	if len(clips) != 3 {
		t.Fatalf("expected 3 clips, got %d", len(clips))
	}
	wantStart := []float64{0, 2500, 5750}
	wantDrift := []float64{0, 500, 750}
	wantDuration := []float64{2500, 3250, 1000}
	for i, clip := range clips {
		if clip.SegmentIndex != i || clip.OutputStartMS != wantStart[i] || clip.DriftBeforeMS != wantDrift[i] || clip.DurationMS != wantDuration[i] {
			t.Fatalf("clip %d: unexpected %+v", i, clip)
		}
		// Source extraction is always at the original slot.
		if r.specs[i].SourceStartMS != segs[i].StartMS || r.specs[i].SlotMS != segs[i].SlotMS() {
			t.Fatalf("clip %d: unexpected source window %+v", i, r.specs[i])
		}
	}
	if a.Drift().TotalMS() != 750 {
		t.Fatalf("expected total drift 750, got %v", a.Drift().TotalMS())
	}
	// Each clip starts where the previous one ended.
	for i := 1; i < len(clips); i++ {
		prevEnd := clips[i-1].OutputStartMS + clips[i-1].DurationMS
		if clips[i].OutputStartMS != prevEnd {
			t.Fatalf("gap between clip %d and %d: %v vs %v", i-1, i, prevEnd, clips[i].OutputStartMS)
		}
	}
}

func TestAssemblerWaitsForEarlierSegments(t *testing.T) {
	r := &fakeRenderer{}
	s := &fakeSink{}
	a := newAssembler(r, s, timeline.NewDrift(0))

	first := make(chan timeline.Outcome, 1)
	second := make(chan timeline.Outcome, 1)
	second <- outcome(segment(1, 1000, 2000), dub.StrategyPad, 0)

	done := make(chan []dub.RenderedClip)
	go func() {
		done <- a.Run(context.Background(), []<-chan timeline.Outcome{first, second})
	}()
	first <- outcome(segment(0, 0, 1000), dub.StrategyFreezeExtend, 100)

	clips := <-done
	if len(s.ready) != 2 || s.ready[0].Segment.Index != 0 || s.ready[1].Segment.Index != 1 {
		t.Fatalf("expected ready in index order, got %+v", s.ready)
	}
	if clips[1].OutputStartMS != 1100 {
		t.Fatalf("expected segment 1 shifted by drift, got %v", clips[1].OutputStartMS)
	}
}

func TestAssemblerRecordsFailuresWithoutAdvancingDrift(t *testing.T) {
	renderErr := services.Wrap(services.ErrAssembly, "ffmpeg", "render-clip", "", errors.New("exit 1"))
	r := &fakeRenderer{fail: map[int]error{1: renderErr}}
	s := &fakeSink{}
	a := newAssembler(r, s, timeline.NewDrift(0))
	ctx := context.Background()

	upstream := outcome(segment(0, 0, 1000), dub.StrategyPad, 0)
	upstream.Err = services.Wrap(services.ErrUpstream, "tts", "speech", "", nil)
	if _, ok := a.Assemble(ctx, upstream); ok {
		t.Fatal("expected upstream failure")
	}
	if _, ok := a.Assemble(ctx, outcome(segment(1, 1000, 2000), dub.StrategyFreezeExtend, 400)); ok {
		t.Fatal("expected render failure")
	}
	clip, ok := a.Assemble(ctx, outcome(segment(2, 2000, 3000), dub.StrategyPad, 0))
	if !ok {
		t.Fatal("expected segment 2 ready")
	}
	if clip.OutputStartMS != 2000 || a.Drift().TotalMS() != 0 {
		t.Fatalf("failed freeze must not add drift: start %v drift %v", clip.OutputStartMS, a.Drift().TotalMS())
	}
	if len(s.failed) != 2 || !errors.Is(s.failed[0].err, services.ErrUpstream) || !errors.Is(s.failed[1].err, services.ErrAssembly) {
		t.Fatalf("unexpected failures: %+v", s.failed)
	}

	if _, ok := a.Assemble(ctx, timeline.Outcome{Segment: segment(3, 3000, 4000), Skipped: true}); ok {
		t.Fatal("skipped outcome must not become ready")
	}
	if len(s.failed) != 2 {
		t.Fatal("skipped outcome must not be recorded")
	}
}

func TestAssemblerRetriesTransientRenderFailures(t *testing.T) {
	renderer := &fakeRenderer{
		failOnce: map[int]error{0: services.Wrap(services.ErrAssembly, "ffmpeg", "render-clip", "broken pipe", nil)},
		fail:     map[int]error{1: services.Wrap(services.ErrValidation, "ffmpeg", "render-clip", "bad source", nil)},
	}
	sink := &fakeSink{}
	var retried []int
	a := timeline.NewAssembler(renderer, sink, timeline.NewDrift(0), timeline.Options{
		SourcePath: "/src.mp4",
		ClipPath:   clipPath,
		Retry:      services.RetryPolicy{Retries: 1, BaseDelay: time.Millisecond},
		OnRetry:    func(attempt int, _ error) { retried = append(retried, attempt) },
	})

	if _, ok := a.Assemble(context.Background(), outcome(segment(0, 0, 1000), dub.StrategyPad, 0)); !ok {
		t.Fatalf("expected segment 0 ready after a retried render, failures: %+v", sink.failed)
	}
	if _, ok := a.Assemble(context.Background(), outcome(segment(1, 1000, 2000), dub.StrategyPad, 0)); ok {
		t.Fatal("expected segment 1 to fail")
	}
	if len(renderer.specs) != 3 {
		t.Fatalf("expected 2 renders for segment 0 and 1 for segment 1, got %d", len(renderer.specs))
	}
	if len(retried) != 1 || len(sink.failed) != 1 || sink.failed[0].index != 1 {
		t.Fatalf("unexpected retries %v / failures %+v", retried, sink.failed)
	}
}

func TestDriftCeiling(t *testing.T) {
	r := &fakeRenderer{}
	s := &fakeSink{}
	a := newAssembler(r, s, timeline.NewDrift(1000))
	ctx := context.Background()

	if _, ok := a.Assemble(ctx, outcome(segment(0, 0, 1000), dub.StrategyFreezeExtend, 800)); !ok {
		t.Fatal("expected first freeze under ceiling")
	}
	if _, ok := a.Assemble(ctx, outcome(segment(1, 1000, 2000), dub.StrategyFreezeExtend, 300)); ok {
		t.Fatal("expected freeze over ceiling to fail")
	}
	if len(s.failed) != 1 || !errors.Is(s.failed[0].err, services.ErrDriftCeiling) || s.failed[0].drift != 800 {
		t.Fatalf("unexpected failure record: %+v", s.failed)
	}
	if len(r.specs) != 1 {
		t.Fatalf("segment over the ceiling must not be rendered, got %d renders", len(r.specs))
	}
	if a.Drift().TotalMS() != 800 {
		t.Fatalf("drift must not advance, got %v", a.Drift().TotalMS())
	}
}

func TestResumeDriftSeparatesOffsetAndTotal(t *testing.T) {
	d := timeline.ResumeDrift(200, 900, 1000)
	if got := d.Place(segment(4, 3000, 4000)); got != 3200 {
		t.Fatalf("expected placement 3200, got %v", got)
	}
	if err := d.Admit(150); !errors.Is(err, services.ErrDriftCeiling) {
		t.Fatalf("expected ceiling against job total, got %v", err)
	}
	if err := d.Admit(100); err != nil {
		t.Fatalf("expected 100ms to fit, got %v", err)
	}
}

func TestWriteSRT(t *testing.T) {
	cues := []timeline.Cue{
		timeline.CueFor(3_723_456, 0, 1000, "second"),
		timeline.CueFor(0, 250, 2000, "first  line"),
		{StartMS: 10, EndMS: 10, Text: "empty range"},
		{StartMS: 20, EndMS: 30, Text: "   "},
	}
	var buf bytes.Buffer
	if err := timeline.WriteSRT(&buf, cues); err != nil {
		t.Fatalf("WriteSRT failed: %v", err)
	}
	want := "1\n00:00:00,250 --> 00:00:02,000\nfirst line\n\n" +
		"2\n01:02:03,456 --> 01:02:04,456\nsecond\n\n"
	if buf.String() != want {
		t.Fatalf("unexpected SRT:\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestWriteSRTSplitsLongLines(t *testing.T) {
	text := "this subtitle line is deliberately long enough to need a split"
	var buf bytes.Buffer
	if err := timeline.WriteSRT(&buf, []timeline.Cue{{StartMS: 0, EndMS: 1000, Text: text}}); err != nil {
		t.Fatalf("WriteSRT failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected two text lines, got %q", buf.String())
	}
	if lines[2]+" "+lines[3] != text {
		t.Fatalf("split lost text: %q", lines[2:])
	}
}
