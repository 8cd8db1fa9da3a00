// Package staging sweeps per-job scratch directories.
package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dubsync/internal/logging"
)

// Result contains the outcome of a sweep.
type Result struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// Sweep removes job staging directories under stagingDir whose contents
// have not changed for maxAge. Directories named in active are kept
// regardless of age. A non-positive maxAge disables the sweep.
func Sweep(ctx context.Context, stagingDir string, maxAge time.Duration, active map[string]struct{}, logger *slog.Logger) Result {
	result := Result{}

	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" || maxAge <= 0 {
		return result
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if !entry.IsDir() {
			continue
		}
		if _, busy := active[entry.Name()]; busy {
			continue
		}

		dirPath := filepath.Join(stagingDir, entry.Name())
		latest, err := lastModified(dirPath)
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			continue
		}
		if !latest.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			logger.Warn("failed to remove stale staging directory",
				logging.String("path", dirPath),
				logging.Error(err),
				logging.String(logging.FieldEventType, "staging_cleanup_failed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dirPath)
		logger.Info("removed stale staging directory",
			logging.String(logging.FieldJobID, entry.Name()),
			logging.Duration("age", time.Since(latest)),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}
	return result
}

// lastModified returns the newest modification time within dir.
func lastModified(dir string) (time.Time, error) {
	var latest time.Time
	err := filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // best effort
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	return latest, err
}
