package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"dubsync/internal/batcher"
	"dubsync/internal/dub"
	"dubsync/internal/jobs"
	"dubsync/internal/logging"
	"dubsync/internal/media/chunk"
	"dubsync/internal/media/ffmpeg"
	"dubsync/internal/services"
)

// chunkSilenceMS is the shortest pause a transcription chunk may be cut at.
const chunkSilenceMS = 500

// ingest probes, transcribes, enriches, and batches the job's source, then
// registers the resulting segments.
func (e *Engine) ingest(ctx context.Context, job *jobs.Job, logger *slog.Logger) error {
	staging := e.cfg.JobStagingDir(job.ID)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "ingest", "staging", staging, err)
	}

	ctx = services.WithStage(ctx, "probe")
	durationMS, err := e.deps.Prober.DurationMS(ctx, job.SourcePath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "ingest", "probe", job.SourcePath, err)
	}

	audioPath := filepath.Join(staging, "source.mp3")
	ctx = services.WithStage(ctx, "extract")
	if err := e.deps.Media.ExtractAudio(ctx, job.SourcePath, audioPath); err != nil {
		return err
	}

	ctx = services.WithStage(ctx, "transcribe")
	spans, err := e.transcribe(ctx, staging, audioPath, durationMS, logger)
	if err != nil {
		return err
	}
	logging.WithContext(ctx, logger).Info("transcribed source",
		logging.Int("spans", len(spans)),
		logging.Millis("duration_ms", durationMS),
	)

	ctx = services.WithStage(ctx, "enrich")
	enriched, err := e.enrich(ctx, spans, job.TargetLang, logger)
	if err != nil {
		return err
	}

	segments, err := batcher.Batch(enriched, durationMS, batcher.Policy{
		MergeGapMS:    float64(e.cfg.Sync.MergeGapMS),
		MaxSegmentMS:  float64(e.cfg.Sync.MaxSegmentMS),
		MinConfidence: e.cfg.Sync.MinConfidence,
		Logger:        logging.WithContext(ctx, logger),
	})
	if err != nil {
		return err
	}
	if err := e.store.RegisterSegments(ctx, job.ID, durationMS, segments); err != nil {
		return fmt.Errorf("register segments: %w", err)
	}
	logging.WithContext(ctx, logger).Info("segments registered",
		logging.Int("spans", len(enriched)),
		logging.Int("segments", len(segments)),
	)
	return nil
}

// transcribe sends audio that fits one chunk as is. Longer audio is cut at
// silences, the chunks are transcribed on the worker pool, and span times
// are shifted back onto the source timeline.
func (e *Engine) transcribe(ctx context.Context, staging, audioPath string, durationMS float64, logger *slog.Logger) ([]dub.TranscriptSpan, error) {
	maxChunkMS := e.cfg.TranscribeChunkMS()
	if durationMS <= maxChunkMS {
		return services.Retry(ctx, e.retry, func(ctx context.Context) ([]dub.TranscriptSpan, error) {
			return e.deps.Transcriber.Transcribe(ctx, audioPath)
		}, e.onRetry(logger, "transcribe"))
	}

	silences, err := e.deps.Media.DetectSilence(ctx, audioPath, e.cfg.Sync.SilenceNoiseDB, chunkSilenceMS, durationMS)
	if err != nil {
		return nil, err
	}
	chunks := chunk.Plan(silences, durationMS, maxChunkMS)
	logging.WithContext(ctx, logger).Info("transcribing in chunks",
		logging.Int("chunks", len(chunks)),
		logging.Int("silences", len(silences)),
	)

	results := make([][]dub.TranscriptSpan, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, e.cfg.Workers.Concurrency))
	for i, c := range chunks {
		g.Go(func() error {
			path := filepath.Join(staging, fmt.Sprintf("chunk_%03d.mp3", i))
			if err := e.deps.Media.ExtractRange(gctx, audioPath, path, c); err != nil {
				return err
			}
			spans, err := services.Retry(gctx, e.retry, func(ctx context.Context) ([]dub.TranscriptSpan, error) {
				return e.deps.Transcriber.Transcribe(ctx, path)
			}, e.onRetry(logger, "transcribe"))
			if err != nil {
				return err
			}
			results[i] = shiftSpans(spans, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []dub.TranscriptSpan
	for _, spans := range results {
		all = append(all, spans...)
	}
	return all, nil
}

// shiftSpans moves chunk-relative spans onto the source timeline. Ends are
// held to the chunk; a span starting past it is noise from the encoder tail.
func shiftSpans(spans []dub.TranscriptSpan, c ffmpeg.Interval) []dub.TranscriptSpan {
	out := make([]dub.TranscriptSpan, 0, len(spans))
	for _, s := range spans {
		s.StartMS += c.StartMS
		s.EndMS = min(s.EndMS+c.StartMS, c.EndMS)
		if s.StartMS >= c.EndMS {
			continue
		}
		out = append(out, s)
	}
	return out
}

// enrich runs the enricher over fixed-size batches of spans on the worker
// pool so no single reply outgrows the model's output limit. Results keep
// span order.
func (e *Engine) enrich(ctx context.Context, spans []dub.TranscriptSpan, targetLang string, logger *slog.Logger) ([]dub.EnrichedSpan, error) {
	size := max(1, e.cfg.OpenAI.EnrichBatchSize)
	out := make([]dub.EnrichedSpan, len(spans))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, e.cfg.Workers.Concurrency))
	for lo := 0; lo < len(spans); lo += size {
		hi := min(lo+size, len(spans))
		g.Go(func() error {
			got, err := services.Retry(gctx, e.retry, func(ctx context.Context) ([]dub.EnrichedSpan, error) {
				return e.deps.Enricher.Enrich(ctx, spans[lo:hi], targetLang)
			}, e.onRetry(logger, "enrich"))
			if err != nil {
				return err
			}
			if len(got) != hi-lo {
				return services.Wrap(services.ErrUpstream, "enrich", "batch",
					fmt.Sprintf("spans %d-%d: expected %d results, got %d", lo, hi-1, hi-lo, len(got)), nil)
			}
			copy(out[lo:hi], got)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) onRetry(logger *slog.Logger, op string) func(int, error) {
	return func(attempt int, err error) {
		logger.Warn("retrying after failure",
			logging.String("operation", op),
			logging.Int("attempt", attempt),
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
		)
	}
}
