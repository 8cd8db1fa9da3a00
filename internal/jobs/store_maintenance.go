package jobs

import (
	"context"
	"fmt"
	"os"
)

// InterruptedReason is recorded on work found in flight at startup.
const InterruptedReason = "interrupted by daemon restart"

// Stats counts segments per status across all jobs.
func (s *Store) Stats(ctx context.Context) (SegmentCounts, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM segments GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("segment stats: %w", err)
	}
	defer rows.Close()

	stats := SegmentCounts{}
	for rows.Next() {
		var status SegmentStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// ResetInterrupted fails segments left pending or processing and jobs left
// ingesting by a previous process. Failed segments can then be retried
// explicitly.
func (s *Store) ResetInterrupted(ctx context.Context) (int64, error) {
	ts := now()
	res, err := s.execWithRetry(ctx,
		`UPDATE segments SET status = ?, error_kind = ?, error_message = ?, updated_at = ? WHERE status IN (?, ?)`,
		string(SegmentFailed), "interrupted", InterruptedReason, ts, string(SegmentPending), string(SegmentProcessing),
	)
	if err != nil {
		return 0, fmt.Errorf("reset in-flight segments: %w", err)
	}
	segments, _ := res.RowsAffected()
	if _, err := s.execWithRetry(ctx,
		`UPDATE jobs SET lifecycle = ?, error_message = ?, updated_at = ? WHERE lifecycle = ?`,
		string(LifecycleError), InterruptedReason, ts, string(LifecycleIngesting),
	); err != nil {
		return segments, fmt.Errorf("reset ingesting jobs: %w", err)
	}
	return segments, nil
}

// DatabaseHealth reports basic database diagnostics.
type DatabaseHealth struct {
	DBPath        string
	DatabaseSize  int64
	SchemaVersion int
	IntegrityOK   bool
	IntegrityMsg  string
	JobCount      int
}

// CheckHealth inspects the database file and runs an integrity check.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	ctx = ensureContext(ctx)
	health := DatabaseHealth{DBPath: s.path}
	if info, err := os.Stat(s.path); err == nil {
		health.DatabaseSize = info.Size()
	}
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&health.SchemaVersion); err != nil {
		return health, fmt.Errorf("read schema version: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&health.IntegrityMsg); err != nil {
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityOK = health.IntegrityMsg == "ok"
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM jobs").Scan(&health.JobCount); err != nil {
		return health, fmt.Errorf("count jobs: %w", err)
	}
	return health, nil
}
