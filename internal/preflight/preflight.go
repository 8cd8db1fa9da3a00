package preflight

import (
	"context"

	"dubsync/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll checks the working directories and, when probeAPI is set, the
// collaborator API.
func RunAll(ctx context.Context, cfg *config.Config, probeAPI bool) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if probeAPI {
		results = append(results, CheckOpenAI(ctx, cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey))
	}
	return results
}
