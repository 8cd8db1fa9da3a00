package timeline

import (
	"context"
	"fmt"
	"log/slog"

	"dubsync/internal/dub"
	"dubsync/internal/logging"
	"dubsync/internal/media/ffmpeg"
	"dubsync/internal/services"
)

// Outcome is what a segment worker delivers to the assembler.
type Outcome struct {
	Segment  dub.DubSegment
	Audio    dub.SynthesizedAudio
	Decision dub.SyncDecision
	// AudioPath is the shaped audio to mux. Empty renders the source audio.
	AudioPath string
	// Skipped marks a segment the worker never claimed, typically because
	// the job was cancelled first. Nothing is recorded for it.
	Skipped bool
	Err     error
}

// Placement is a rendered segment ready to be recorded.
type Placement struct {
	Segment  dub.DubSegment
	Audio    dub.SynthesizedAudio
	Decision dub.SyncDecision
	Clip     dub.RenderedClip
}

// Renderer produces one clip file.
type Renderer interface {
	RenderClip(ctx context.Context, spec ffmpeg.ClipSpec) error
}

// Sink records assembly results.
type Sink interface {
	SegmentReady(ctx context.Context, p Placement) error
	SegmentFailed(ctx context.Context, seg dub.DubSegment, driftBeforeMS float64, err error) error
}

// Options configures an Assembler. Retry bounds repeated clip renders after
// retryable failures; the zero value renders once.
type Options struct {
	SourcePath string
	ClipPath   func(index int) string
	Logger     *slog.Logger
	Retry      services.RetryPolicy
	OnRetry    func(attempt int, err error)
}

// Assembler renders and records segments one at a time in index order.
type Assembler struct {
	renderer Renderer
	sink     Sink
	drift    *Drift
	opts     Options
	logger   *slog.Logger
}

// NewAssembler returns an Assembler that owns drift.
func NewAssembler(renderer Renderer, sink Sink, drift *Drift, opts Options) *Assembler {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Assembler{
		renderer: renderer,
		sink:     sink,
		drift:    drift,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "timeline"),
	}
}

// Drift exposes the accumulator for reporting.
func (a *Assembler) Drift() *Drift { return a.drift }

// Run drains futures in order. Every future must receive exactly one
// Outcome; Run blocks on a later segment until all earlier ones are placed.
// It returns the clips that became ready.
func (a *Assembler) Run(ctx context.Context, futures []<-chan Outcome) []dub.RenderedClip {
	var clips []dub.RenderedClip
	for _, future := range futures {
		outcome := <-future
		clip, ok := a.Assemble(ctx, outcome)
		if ok {
			clips = append(clips, clip)
		}
	}
	return clips
}

// Assemble places a single outcome. It reports whether the segment became
// ready; failures are recorded through the sink.
func (a *Assembler) Assemble(ctx context.Context, o Outcome) (dub.RenderedClip, bool) {
	if o.Skipped {
		return dub.RenderedClip{}, false
	}
	seg := o.Segment
	ctx = services.WithSegmentIndex(ctx, seg.Index)
	logger := logging.WithContext(ctx, a.logger)
	driftBefore := a.drift.OffsetMS()

	fail := func(err error) (dub.RenderedClip, bool) {
		logger.Warn("segment failed",
			logging.String("error_kind", services.Kind(err)),
			logging.Millis("drift_before_ms", driftBefore),
			logging.Error(err),
		)
		if recErr := a.sink.SegmentFailed(ctx, seg, driftBefore, err); recErr != nil {
			logger.Error("record segment failure", logging.Error(recErr))
		}
		return dub.RenderedClip{}, false
	}

	if o.Err != nil {
		return fail(o.Err)
	}
	freeze := o.Decision.FreezeMS
	if err := a.drift.Admit(freeze); err != nil {
		return fail(err)
	}

	spec := ffmpeg.ClipSpec{
		SourceVideo:   a.opts.SourcePath,
		SourceStartMS: seg.StartMS,
		SlotMS:        seg.SlotMS(),
		AudioPath:     o.AudioPath,
		FreezeMS:      freeze,
		OutputPath:    a.opts.ClipPath(seg.Index),
	}
	if _, err := services.Retry(ctx, a.opts.Retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.renderer.RenderClip(ctx, spec)
	}, a.opts.OnRetry); err != nil {
		return fail(err)
	}

	clip := dub.RenderedClip{
		SegmentIndex:  seg.Index,
		VideoRef:      spec.OutputPath,
		AudioRef:      o.AudioPath,
		DurationMS:    spec.DurationMS(),
		OutputStartMS: a.drift.Place(seg),
		DriftBeforeMS: driftBefore,
	}
	if err := a.sink.SegmentReady(ctx, Placement{Segment: seg, Audio: o.Audio, Decision: o.Decision, Clip: clip}); err != nil {
		return fail(fmt.Errorf("record ready segment: %w", err))
	}
	a.drift.Commit(freeze)

	logger.Info("segment ready",
		logging.String("strategy", o.Decision.Strategy.String()),
		logging.Millis("output_start_ms", clip.OutputStartMS),
		logging.Millis("duration_ms", clip.DurationMS),
		logging.Millis("drift_ms", a.drift.TotalMS()),
	)
	return clip, true
}
