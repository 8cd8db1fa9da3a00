package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"dubsync/internal/dub"
	"dubsync/internal/services"
)

// CreateJob registers a job in the ingesting state and returns it with a
// freshly assigned ID.
func (s *Store) CreateJob(ctx context.Context, sourcePath string, mode dub.Mode, targetLang string) (*Job, error) {
	sourcePath = strings.TrimSpace(sourcePath)
	if sourcePath == "" {
		return nil, services.Wrap(services.ErrValidation, "jobs", "create", "source path is required", nil)
	}
	if _, err := dub.ParseMode(mode.String()); err != nil {
		return nil, services.Wrap(services.ErrValidation, "jobs", "create", "", err)
	}

	ts := now()
	id := uuid.NewString()
	_, err := s.execWithRetry(ctx,
		`INSERT INTO jobs (id, source_path, mode, target_lang, lifecycle, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, sourcePath, mode.String(), targetLang, string(LifecycleIngesting), ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.GetJob(ctx, id)
}

// RegisterSegments stores the batched segments as pending and activates the
// job. It may only be called once per job.
func (s *Store) RegisterSegments(ctx context.Context, jobID string, durationMS float64, segments []dub.DubSegment) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		ts := now()
		res, err := tx.ExecContext(ctx,
			`UPDATE jobs SET lifecycle = ?, total_segments = ?, duration_ms = ?, updated_at = ?
			 WHERE id = ? AND lifecycle = ?`,
			string(LifecycleActive), len(segments), durationMS, ts, jobID, string(LifecycleIngesting),
		)
		if err != nil {
			return fmt.Errorf("activate job: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("activate job %s: %w", jobID, ErrInvalidTransition)
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO segments (
			job_id, segment_index, start_ms, end_ms, speech_offset_ms,
			source_text, translated_text, speaker_slot, gender, emotion_tag,
			status, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare segment insert: %w", err)
		}
		defer stmt.Close()
		for _, seg := range segments {
			if _, err := stmt.ExecContext(ctx,
				jobID, seg.Index, seg.StartMS, seg.EndMS, seg.SpeechOffsetMS,
				nullableString(seg.SourceText), nullableString(seg.TranslatedText),
				seg.SpeakerSlot, nullableString(string(seg.Gender)), nullableString(seg.EmotionTag),
				string(SegmentPending), ts,
			); err != nil {
				return fmt.Errorf("insert segment %d: %w", seg.Index, err)
			}
		}
		return nil
	})
}

// FailJob marks a job whose ingestion could not complete.
func (s *Store) FailJob(ctx context.Context, jobID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := s.execWithRetry(ctx,
		`UPDATE jobs SET lifecycle = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(LifecycleError), nullableString(msg), now(), jobID,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// SetOutputs records job-level artifacts. Empty values leave the existing
// column untouched.
func (s *Store) SetOutputs(ctx context.Context, jobID, finalPath, subtitlePath string) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE jobs SET
			final_path = COALESCE(?, final_path),
			subtitle_path = COALESCE(?, subtitle_path),
			updated_at = ?
		 WHERE id = ?`,
		nullableString(finalPath), nullableString(subtitlePath), now(), jobID,
	)
	if err != nil {
		return fmt.Errorf("set job outputs: %w", err)
	}
	return nil
}

// GetJob fetches a job with its derived status.
func (s *Store) GetJob(ctx context.Context, jobID string) (*Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "jobs", "get", "job "+jobID, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	counts, err := s.segmentCounts(ctx, jobID)
	if err != nil {
		return nil, err
	}
	s.derive(job, counts)
	return job, nil
}

// ListJobs returns jobs newest first. A non-positive limit returns all.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	ctx = ensureContext(ctx)
	query := "SELECT " + jobColumns + " FROM jobs ORDER BY created_at DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	countsByJob, err := s.countsByJob(ctx)
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		s.derive(job, countsByJob[job.ID])
	}
	return jobs, nil
}

func (s *Store) derive(job *Job, counts SegmentCounts) {
	if counts == nil {
		counts = SegmentCounts{}
	}
	job.Counts = counts
	job.Status = DeriveStatus(job.Lifecycle, counts, s.policy)
}

func (s *Store) segmentCounts(ctx context.Context, jobID string) (SegmentCounts, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(1) FROM segments WHERE job_id = ? GROUP BY status`, jobID)
	if err != nil {
		return nil, fmt.Errorf("segment counts: %w", err)
	}
	defer rows.Close()
	counts := SegmentCounts{}
	for rows.Next() {
		var status SegmentStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (s *Store) countsByJob(ctx context.Context) (map[string]SegmentCounts, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, status, COUNT(1) FROM segments GROUP BY job_id, status`)
	if err != nil {
		return nil, fmt.Errorf("segment counts: %w", err)
	}
	defer rows.Close()
	out := make(map[string]SegmentCounts)
	for rows.Next() {
		var (
			jobID  string
			status SegmentStatus
			n      int
		)
		if err := rows.Scan(&jobID, &status, &n); err != nil {
			return nil, err
		}
		if out[jobID] == nil {
			out[jobID] = SegmentCounts{}
		}
		out[jobID][status] = n
	}
	return out, rows.Err()
}

// Segments lists every segment of a job in index order.
func (s *Store) Segments(ctx context.Context, jobID string) ([]*Segment, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+segmentColumns+" FROM segments WHERE job_id = ? ORDER BY segment_index", jobID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()
	var segments []*Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// SegmentsByStatus lists a job's segments in the given statuses, in index order.
func (s *Store) SegmentsByStatus(ctx context.Context, jobID string, statuses ...SegmentStatus) ([]*Segment, error) {
	if len(statuses) == 0 {
		return s.Segments(ctx, jobID)
	}
	ctx = ensureContext(ctx)
	args := []any{jobID}
	for _, st := range statuses {
		args = append(args, string(st))
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+segmentColumns+" FROM segments WHERE job_id = ? AND status IN ("+makePlaceholders(len(statuses))+") ORDER BY segment_index",
		args...)
	if err != nil {
		return nil, fmt.Errorf("list segments by status: %w", err)
	}
	defer rows.Close()
	var segments []*Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// Segment fetches one segment record.
func (s *Store) Segment(ctx context.Context, jobID string, index int) (*Segment, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+segmentColumns+" FROM segments WHERE job_id = ? AND segment_index = ?", jobID, index)
	seg, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "jobs", "segment", fmt.Sprintf("job %s segment %d", jobID, index), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get segment: %w", err)
	}
	return seg, nil
}

// DriftBefore returns the freeze time committed by ready segments ahead of
// index, which is the drift a segment at index must be placed with.
func (s *Store) DriftBefore(ctx context.Context, jobID string, index int) (float64, error) {
	ctx = ensureContext(ctx)
	var drift float64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(freeze_ms), 0) FROM segments
		 WHERE job_id = ? AND segment_index < ? AND status = ?`,
		jobID, index, string(SegmentReady),
	).Scan(&drift)
	if err != nil {
		return 0, fmt.Errorf("drift before: %w", err)
	}
	return drift, nil
}
