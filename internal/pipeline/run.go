package pipeline

import (
	"cmp"
	"context"
	"log/slog"
	"path/filepath"
	"slices"

	"golang.org/x/sync/errgroup"

	"dubsync/internal/jobs"
	"dubsync/internal/logging"
	"dubsync/internal/services"
	"dubsync/internal/timeline"
)

// execute ingests a new job and processes all of its segments.
func (e *Engine) execute(ctx context.Context, job *jobs.Job) {
	logger, closeLog := e.jobLogger(ctx, job.ID)
	defer closeLog()
	logger.Info("job started",
		logging.String("source", job.SourcePath),
		logging.String("mode", job.Mode.String()),
		logging.String("target_lang", job.TargetLang),
	)

	if err := e.ingest(ctx, job, logger); err != nil {
		e.failIngest(ctx, job, err, logger)
		return
	}
	segs, err := e.store.SegmentsByStatus(context.WithoutCancel(ctx), job.ID, jobs.SegmentPending)
	if err != nil {
		logger.Error("load segments failed", logging.Error(err))
		return
	}

	futures, wait := e.dispatch(ctx, job, segs, logger)
	asm := e.assembler(job, timeline.NewDrift(e.ceilingMS()), logger)
	clips := asm.Run(ctx, futures)
	wait()
	logger.Info("segments assembled",
		logging.Int("ready", len(clips)),
		logging.Int("segments", len(segs)),
		logging.Millis("drift_ms", asm.Drift().TotalMS()),
	)
	e.finalize(ctx, job.ID, logger)
}

// resume reprocesses retried segments. Each one is placed with the drift
// committed by the ready segments ahead of it at the time it is assembled.
func (e *Engine) resume(ctx context.Context, job *jobs.Job, indices []int) {
	logger, closeLog := e.jobLogger(ctx, job.ID)
	defer closeLog()
	store := context.WithoutCancel(ctx)

	segs := make([]*jobs.Segment, 0, len(indices))
	for _, idx := range indices {
		seg, err := e.store.Segment(store, job.ID, idx)
		if err != nil {
			logger.Error("load retried segment failed", logging.Int(logging.FieldSegmentIndex, idx), logging.Error(err))
			continue
		}
		segs = append(segs, seg)
	}
	sortSegments(segs)
	logger.Info("retrying segments", logging.Int("segments", len(segs)))

	futures, wait := e.dispatch(ctx, job, segs, logger)
	for _, future := range futures {
		outcome := <-future
		if outcome.Skipped {
			continue
		}
		drift, err := e.resumeDrift(store, job.ID, outcome.Segment.Index)
		if err != nil {
			logger.Error("resume drift failed", logging.Int(logging.FieldSegmentIndex, outcome.Segment.Index), logging.Error(err))
			if recErr := e.store.MarkFailed(store, job.ID, outcome.Segment.Index, jobs.Failure{Err: err}); recErr != nil {
				logger.Error("record segment failure", logging.Error(recErr))
			}
			continue
		}
		e.assembler(job, drift, logger).Assemble(ctx, outcome)
	}
	wait()
	e.finalize(ctx, job.ID, logger)
}

func (e *Engine) resumeDrift(ctx context.Context, jobID string, index int) (*timeline.Drift, error) {
	before, err := e.store.DriftBefore(ctx, jobID, index)
	if err != nil {
		return nil, err
	}
	current, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return timeline.ResumeDrift(before, current.DriftMS, e.ceilingMS()), nil
}

// dispatch runs one worker per segment on a bounded pool. Futures are
// returned in the order of segs; wait blocks until every worker is done.
func (e *Engine) dispatch(ctx context.Context, job *jobs.Job, segs []*jobs.Segment, logger *slog.Logger) ([]<-chan timeline.Outcome, func()) {
	futures := make([]<-chan timeline.Outcome, len(segs))
	chans := make([]chan timeline.Outcome, len(segs))
	for i := range segs {
		ch := make(chan timeline.Outcome, 1)
		chans[i], futures[i] = ch, ch
	}

	var g errgroup.Group
	g.SetLimit(max(1, e.cfg.Workers.Concurrency))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i, seg := range segs {
			g.Go(func() error {
				chans[i] <- e.work(ctx, job, seg.DubSegment, logger)
				return nil
			})
		}
		_ = g.Wait()
	}()
	return futures, func() { <-done }
}

func (e *Engine) assembler(job *jobs.Job, drift *timeline.Drift, logger *slog.Logger) *timeline.Assembler {
	dir := e.cfg.JobDir(job.ID)
	sink := &storeSink{store: e.store, jobID: job.ID, baseURL: e.cfg.Paths.PublicBaseURL, shutdown: e.baseCtx}
	return timeline.NewAssembler(e.deps.Media, sink, drift, timeline.Options{
		SourcePath: job.SourcePath,
		ClipPath:   func(index int) string { return filepath.Join(dir, ClipName(index)) },
		Logger:     logger,
		Retry:      e.retry,
		OnRetry:    e.onRetry(logger, "render-clip"),
	})
}

func (e *Engine) ceilingMS() float64 {
	return float64(e.cfg.Sync.MaxTotalDriftMS)
}

func (e *Engine) failIngest(ctx context.Context, job *jobs.Job, cause error, logger *slog.Logger) {
	store := context.WithoutCancel(ctx)
	current, err := e.store.GetJob(store, job.ID)
	if err == nil && current.Lifecycle == jobs.LifecycleCancelled {
		logger.Info("ingestion cancelled")
		e.notify(store, current, logger)
		return
	}
	logger.Error("ingestion failed",
		logging.String("error_kind", services.Kind(cause)),
		logging.Alert("ingest_failed"),
		logging.Error(cause),
	)
	if err := e.store.FailJob(store, job.ID, cause); err != nil {
		logger.Error("record job failure", logging.Error(err))
		return
	}
	if current, err = e.store.GetJob(store, job.ID); err == nil {
		e.notify(store, current, logger)
	}
}

// segmentCue returns the subtitle cue for a ready segment.
func segmentCue(seg *jobs.Segment) timeline.Cue {
	text := seg.TranslatedText
	if text == "" {
		text = seg.SourceText
	}
	return timeline.CueFor(seg.OutputStartMS, seg.SpeechOffsetMS, seg.ClipDurationMS, text)
}

func sortSegments(segs []*jobs.Segment) {
	slices.SortFunc(segs, func(a, b *jobs.Segment) int { return cmp.Compare(a.Index, b.Index) })
}
