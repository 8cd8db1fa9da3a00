package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"dubsync/internal/dub"
	"dubsync/internal/jobs"
	"dubsync/internal/logging"
	"dubsync/internal/media/ffmpeg"
	"dubsync/internal/services"
	"dubsync/internal/syncer"
	"dubsync/internal/timeline"
)

// minCondenseReduction is the smallest relative shortening worth a
// condense request.
const minCondenseReduction = 0.10

// work claims one segment and prepares its audio. It always returns exactly
// one Outcome for the assembler. Segments reached after the run was aborted
// are left unclaimed.
func (e *Engine) work(ctx context.Context, job *jobs.Job, seg dub.DubSegment, logger *slog.Logger) timeline.Outcome {
	ctx = services.WithSegmentIndex(ctx, seg.Index)
	logger = logging.WithContext(ctx, logger)

	if ctx.Err() != nil {
		return timeline.Outcome{Segment: seg, Skipped: true}
	}
	if err := e.store.Claim(context.WithoutCancel(ctx), job.ID, seg.Index); err != nil {
		if !errors.Is(err, jobs.ErrInvalidTransition) {
			logger.Error("claim segment failed", logging.Error(err))
		}
		return timeline.Outcome{Segment: seg, Skipped: true}
	}

	if !job.Mode.Synthesizes() {
		return timeline.Outcome{
			Segment:  seg,
			Decision: dub.SyncDecision{SegmentIndex: seg.Index},
		}
	}

	outcome, err := services.Retry(ctx, e.retry, func(ctx context.Context) (timeline.Outcome, error) {
		return e.prepareAudio(ctx, job, seg, logger)
	}, e.onRetry(logger, "prepare-audio"))
	if err != nil {
		return timeline.Outcome{Segment: seg, Err: err}
	}
	return outcome
}

// prepareAudio synthesizes, trims, reconciles, and shapes one segment's
// audio so it lasts exactly its output duration.
func (e *Engine) prepareAudio(ctx context.Context, job *jobs.Job, seg dub.DubSegment, logger *slog.Logger) (timeline.Outcome, error) {
	dir := filepath.Join(e.cfg.JobStagingDir(job.ID), "segments")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return timeline.Outcome{}, services.Wrap(services.ErrAssembly, "segment", "staging", dir, err)
	}
	path := func(suffix string) string {
		return filepath.Join(dir, fmt.Sprintf("seg_%04d_%s.wav", seg.Index, suffix))
	}

	profile := e.deps.Voices.ForSegment(seg)
	text := e.condense(ctx, job, seg, logger)

	if err := e.limiter.Wait(ctx); err != nil {
		return timeline.Outcome{}, services.Wrap(services.ErrCancelled, "segment", "rate-limit", "", err)
	}
	rawPath := path("tts")
	if err := e.deps.Synthesizer.Synthesize(services.WithStage(ctx, "synthesize"), text, profile, rawPath); err != nil {
		return timeline.Outcome{}, err
	}
	normPath := path("norm")
	if err := e.deps.Media.Normalize(ctx, rawPath, normPath); err != nil {
		return timeline.Outcome{}, err
	}
	trimmed, err := e.deps.Trimmer.Trim(services.WithStage(ctx, "trim"), normPath, path("trim"))
	if err != nil {
		return timeline.Outcome{}, err
	}

	decision, err := syncer.Decide(seg.Index, seg.SlotMS(), trimmed.TrimmedDurationMS, e.policy)
	if err != nil {
		return timeline.Outcome{}, err
	}
	shapedPath := path("sync")
	if err := e.deps.Media.ShapeAudio(ctx, trimmed.Path, shapedPath, shapeSpec(seg, decision)); err != nil {
		return timeline.Outcome{}, err
	}

	logger.Debug("segment audio prepared",
		logging.String("voice_id", profile.VoiceID),
		logging.Millis("slot_ms", seg.SlotMS()),
		logging.Millis("raw_ms", trimmed.RawDurationMS),
		logging.Millis("trimmed_ms", trimmed.TrimmedDurationMS),
		logging.String("strategy", decision.Strategy.String()),
		logging.Float64("speed_factor", decision.SpeedFactor),
	)
	return timeline.Outcome{
		Segment: seg,
		Audio: dub.SynthesizedAudio{
			SegmentIndex:      seg.Index,
			RawDurationMS:     trimmed.RawDurationMS,
			TrimmedDurationMS: trimmed.TrimmedDurationMS,
			AudioRef:          shapedPath,
		},
		Decision:  decision,
		AudioPath: shapedPath,
	}, nil
}

// shapeSpec fits reconciled audio to the clip. PAD places leading silence
// before speech up to the segment's speech offset and pads the rest at the
// end; SPEEDUP fills the slot; FREEZE_EXTEND fills the slot plus the freeze.
func shapeSpec(seg dub.DubSegment, d dub.SyncDecision) ffmpeg.ShapeSpec {
	spec := ffmpeg.ShapeSpec{
		Speed:      d.SpeedFactor,
		DurationMS: d.AudioDurationMS(seg.SlotMS()),
	}
	if d.Strategy == dub.StrategyPad {
		spec.DelayMS = min(seg.SpeechOffsetMS, d.PadMS)
	}
	return spec
}

// condense asks the condenser for a shorter translation when the estimated
// speaking time clearly overruns the slot. Failures keep the original text.
func (e *Engine) condense(ctx context.Context, job *jobs.Job, seg dub.DubSegment, logger *slog.Logger) string {
	text := seg.TranslatedText
	if e.deps.Condenser == nil {
		return text
	}
	if !needsCondense(text, seg.SlotMS(), e.cfg.Sync.CondenseRatio, e.cfg.Sync.CharsPerSecond) {
		return text
	}
	shorter, err := e.deps.Condenser.Condense(services.WithStage(ctx, "condense"), text, job.TargetLang, seg.SlotMS())
	if err != nil {
		logger.Warn("condense failed, using full translation", logging.Error(err))
		return text
	}
	logger.Info("translation condensed",
		logging.Int("runes_before", utf8.RuneCountInString(text)),
		logging.Int("runes_after", utf8.RuneCountInString(shorter)),
	)
	return shorter
}

// needsCondense estimates speaking time as runes / charsPerSecond and
// reports whether it exceeds ratio times the slot by a worthwhile margin.
func needsCondense(text string, slotMS, ratio, charsPerSecond float64) bool {
	if ratio <= 0 || charsPerSecond <= 0 || slotMS <= 0 {
		return false
	}
	estimateMS := float64(utf8.RuneCountInString(text)) / charsPerSecond * 1000
	if estimateMS <= slotMS*ratio {
		return false
	}
	return 1-slotMS/estimateMS >= minCondenseReduction
}
