package main

import (
	"fmt"
	"log/slog"

	"dubsync/internal/config"
	"dubsync/internal/jobs"
	"dubsync/internal/logging"
	"dubsync/internal/pipeline"
)

// openRuntime builds the run logger, job store, and engine shared by
// serve and run. The returned close func releases the store.
func openRuntime(cfg *config.Config, runName string) (*slog.Logger, *pipeline.Engine, func(), error) {
	if err := cfg.RequireOpenAI(); err != nil {
		return nil, nil, nil, err
	}
	logger, logPath, err := logging.NewFromConfig(cfg, runName)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "dubsync-*.log", Exclude: []string{logPath}},
	)

	store, err := jobs.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return nil, nil, nil, err
	}
	deps, err := pipeline.NewDeps(cfg)
	if err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("wire collaborators: %w", err)
	}
	engine, err := pipeline.New(cfg, store, deps, logger)
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}
	return logger, engine, func() { _ = store.Close() }, nil
}
