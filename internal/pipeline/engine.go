package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/time/rate"

	"dubsync/internal/config"
	"dubsync/internal/dub"
	"dubsync/internal/jobs"
	"dubsync/internal/language"
	"dubsync/internal/logging"
	"dubsync/internal/notifications"
	"dubsync/internal/services"
	"dubsync/internal/syncer"
)

// ErrJobBusy is returned when a job already has a run in progress.
var ErrJobBusy = errors.New("job is already running")

// Request describes a job to create.
type Request struct {
	SourcePath string
	Mode       dub.Mode
	TargetLang string
}

// Engine runs jobs against a store.
type Engine struct {
	cfg     *config.Config
	store   *jobs.Store
	deps    Deps
	logger  *slog.Logger
	limiter *rate.Limiter
	policy  syncer.Policy
	retry   services.RetryPolicy

	baseCtx  context.Context
	shutdown context.CancelFunc

	mu   sync.Mutex
	runs map[string]context.CancelFunc
	wg   sync.WaitGroup
}

// New constructs an Engine. Background runs started by Submit and Retry
// live until Shutdown.
func New(cfg *config.Config, store *jobs.Store, deps Deps, logger *slog.Logger) (*Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewService(cfg)
	}
	policy := syncer.Policy{SpeedCap: cfg.Sync.SpeedCap}
	if policy.SpeedCap == 0 {
		policy = syncer.DefaultPolicy()
	}
	rpm := cfg.Workers.TTSRequestsPerMinute
	limit := rate.Inf
	if rpm > 0 {
		limit = rate.Limit(float64(rpm) / 60.0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:     cfg,
		store:   store,
		deps:    deps,
		logger:  logging.NewComponentLogger(logger, "pipeline"),
		limiter: rate.NewLimiter(limit, 1),
		policy:  policy,
		retry: services.RetryPolicy{
			Retries:   cfg.Workers.RetryAttempts,
			BaseDelay: cfg.RetryBaseDelay(),
			MaxDelay:  cfg.RetryMaxDelay(),
		},
		baseCtx:  ctx,
		shutdown: cancel,
		runs:     make(map[string]context.CancelFunc),
	}, nil
}

// Store exposes the job store.
func (e *Engine) Store() *jobs.Store { return e.store }

// Submit creates a job and processes it in the background.
func (e *Engine) Submit(ctx context.Context, req Request) (*jobs.Job, error) {
	job, err := e.create(ctx, req)
	if err != nil {
		return nil, err
	}
	runCtx, err := e.acquire(job.ID)
	if err != nil {
		return nil, err
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.release(job.ID)
		e.execute(runCtx, job)
	}()
	return job, nil
}

// Run creates a job and processes it before returning its final state.
// Cancelling ctx cancels the job.
func (e *Engine) Run(ctx context.Context, req Request) (*jobs.Job, error) {
	job, err := e.create(ctx, req)
	if err != nil {
		return nil, err
	}
	runCtx, err := e.acquire(job.ID)
	if err != nil {
		return nil, err
	}
	defer e.release(job.ID)

	stop := context.AfterFunc(ctx, func() {
		if _, err := e.Cancel(context.WithoutCancel(ctx), job.ID); err != nil {
			e.logger.Warn("cancel on interrupt failed", logging.String(logging.FieldJobID, job.ID), logging.Error(err))
		}
	})
	defer stop()

	e.execute(runCtx, job)
	return e.store.GetJob(context.WithoutCancel(ctx), job.ID)
}

func (e *Engine) create(ctx context.Context, req Request) (*jobs.Job, error) {
	lang, err := language.Normalize(req.TargetLang)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "create", "", err)
	}
	return e.store.CreateJob(ctx, req.SourcePath, req.Mode, lang)
}

// Cancel marks the job's pending segments cancelled and aborts in-flight
// work. Ready segments stay playable. It returns the number of segments
// cancelled directly.
func (e *Engine) Cancel(ctx context.Context, jobID string) (int, error) {
	n, err := e.store.CancelJob(ctx, jobID)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	cancel := e.runs[jobID]
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	e.logger.Info("job cancelled",
		logging.String(logging.FieldJobID, jobID),
		logging.Int("pending_cancelled", n),
		logging.Bool("run_aborted", cancel != nil),
	)
	return n, nil
}

// Retry resets failed segments to pending and reprocesses them in the
// background. With no indices every failed segment of the job is retried.
// It returns the indices that were reset.
func (e *Engine) Retry(ctx context.Context, jobID string, indices ...int) ([]int, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		failed, err := e.store.SegmentsByStatus(ctx, jobID, jobs.SegmentFailed)
		if err != nil {
			return nil, err
		}
		for _, seg := range failed {
			indices = append(indices, seg.Index)
		}
	}
	if len(indices) == 0 {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "retry", "job "+jobID+" has no failed segments", nil)
	}

	runCtx, err := e.acquire(jobID)
	if err != nil {
		return nil, err
	}
	reset := make([]int, 0, len(indices))
	for _, idx := range indices {
		if err := e.store.RetrySegment(ctx, jobID, idx); err != nil {
			if len(reset) == 0 {
				e.release(jobID)
				return nil, err
			}
			e.logger.Warn("segment not retried",
				logging.String(logging.FieldJobID, jobID),
				logging.Int(logging.FieldSegmentIndex, idx),
				logging.Error(err),
			)
			continue
		}
		reset = append(reset, idx)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.release(jobID)
		e.resume(runCtx, job, reset)
	}()
	return reset, nil
}

// Running reports whether a run is active for jobID.
func (e *Engine) Running(jobID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.runs[jobID]
	return ok
}

// Active returns the IDs of jobs with a run in progress, sorted.
func (e *Engine) Active() []string {
	e.mu.Lock()
	ids := make([]string, 0, len(e.runs))
	for id := range e.runs {
		ids = append(ids, id)
	}
	e.mu.Unlock()
	slices.Sort(ids)
	return ids
}

// Shutdown aborts background runs and waits for them to finish recording.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.shutdown()
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pipeline shutdown: %w", ctx.Err())
	}
}

// Wait blocks until all background runs have finished.
func (e *Engine) Wait() { e.wg.Wait() }

func (e *Engine) acquire(jobID string) (context.Context, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.runs[jobID]; busy {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrJobBusy)
	}
	ctx, cancel := context.WithCancel(services.WithJobID(e.baseCtx, jobID))
	e.runs[jobID] = cancel
	return ctx, nil
}

func (e *Engine) release(jobID string) {
	e.mu.Lock()
	cancel := e.runs[jobID]
	delete(e.runs, jobID)
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// jobLogger tees the engine logger into the job's output directory.
func (e *Engine) jobLogger(ctx context.Context, jobID string) (*slog.Logger, func()) {
	logger, closeFn, err := logging.JobLogger(e.logger, e.cfg.JobDir(jobID))
	if err != nil {
		e.logger.Warn("job log unavailable", logging.String(logging.FieldJobID, jobID), logging.Error(err))
		return logging.WithContext(ctx, e.logger), func() {}
	}
	return logging.WithContext(ctx, logger), func() { _ = closeFn() }
}
