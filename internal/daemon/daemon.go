package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"dubsync/internal/config"
	"dubsync/internal/deps"
	"dubsync/internal/jobs"
	"dubsync/internal/logging"
	"dubsync/internal/pipeline"
	"dubsync/internal/preflight"
	"dubsync/internal/staging"
)

const (
	shutdownGrace = 30 * time.Second
	sweepInterval = time.Hour
)

// Daemon owns the engine and the API server and enforces single-instance
// execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *jobs.Store
	engine *pipeline.Engine
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	StartedAt     time.Time
	LockFilePath  string
	ActiveJobs    []string
	SegmentCounts jobs.SegmentCounts
	Dependencies  []deps.Status
	Checks        []preflight.Result
	Database      *jobs.DatabaseHealth
}

// New constructs a daemon around an engine.
func New(cfg *config.Config, engine *pipeline.Engine, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || engine == nil {
		return nil, errors.New("daemon requires config and pipeline engine")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    engine.Store(),
		engine:   engine,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, recovers interrupted work, and starts the
// API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another dubsync daemon instance is already running")
	}

	reset, err := d.store.ResetInterrupted(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("recover interrupted segments: %w", err)
	}
	if reset > 0 {
		d.logger.Warn("interrupted segments marked failed",
			logging.Int64("segments", reset),
			logging.String(logging.FieldEventType, "recovery"),
			logging.Alert("retry_required"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel
	d.sweepStaging(runCtx)
	go d.sweepLoop(runCtx)
	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("dubsync daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops the API server, aborts in-flight runs, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := d.engine.Shutdown(ctx); err != nil {
		d.logger.Warn("engine shutdown incomplete", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("dubsync daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Addr returns the API listen address, or "" when the API is disabled.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		StartedAt:    d.startedAt,
		LockFilePath: d.lockPath,
		ActiveJobs:   d.engine.Active(),
		Dependencies: preflight.CheckSystemDeps(d.cfg),
		Checks:       preflight.RunAll(ctx, d.cfg, false),
	}
	if counts, err := d.store.Stats(ctx); err != nil {
		d.logger.Warn("segment stats unavailable", logging.Error(err))
	} else {
		status.SegmentCounts = counts
	}
	if health, err := d.store.CheckHealth(ctx); err != nil {
		d.logger.Warn("database health check failed", logging.Error(err))
	} else {
		status.Database = &health
	}
	return status
}

func (d *Daemon) sweepLoop(ctx context.Context) {
	if d.cfg.StagingRetention() <= 0 {
		return
	}
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweepStaging(ctx)
		}
	}
}

// sweepStaging removes scratch directories of jobs idle past the retention
// window. Jobs with an active run are never swept.
func (d *Daemon) sweepStaging(ctx context.Context) {
	active := make(map[string]struct{})
	for _, id := range d.engine.Active() {
		active[id] = struct{}{}
	}
	result := staging.Sweep(ctx, d.cfg.Paths.StagingDir, d.cfg.StagingRetention(), active, d.logger)
	if len(result.Removed) > 0 || len(result.Errors) > 0 {
		d.logger.Info("staging sweep complete",
			logging.Int("removed", len(result.Removed)),
			logging.Int("errors", len(result.Errors)),
		)
	}
}
