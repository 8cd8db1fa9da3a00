package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"dubsync/internal/dub"
	"dubsync/internal/services"
)

// ErrInvalidTransition is returned when a segment is not in a status the
// requested transition may start from.
var ErrInvalidTransition = errors.New("invalid status transition")

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// transition moves one segment from any of the from statuses to to, applying
// the extra assignments in set. Zero affected rows means either the segment
// does not exist or it is in a status the transition may not start from.
func transition(ctx context.Context, db execer, jobID string, index int, from []SegmentStatus, to SegmentStatus, set string, setArgs ...any) error {
	assignments := "status = ?, updated_at = ?"
	if set != "" {
		assignments += ", " + set
	}
	args := []any{string(to), now()}
	args = append(args, setArgs...)
	args = append(args, jobID, index)
	for _, st := range from {
		args = append(args, string(st))
	}
	res, err := db.ExecContext(ctx,
		"UPDATE segments SET "+assignments+
			" WHERE job_id = ? AND segment_index = ? AND status IN ("+makePlaceholders(len(from))+")",
		args...,
	)
	if err != nil {
		return fmt.Errorf("update segment %d: %w", index, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var current string
	err = db.QueryRowContext(ctx,
		"SELECT status FROM segments WHERE job_id = ? AND segment_index = ?", jobID, index,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return services.Wrap(services.ErrNotFound, "jobs", "transition", fmt.Sprintf("job %s segment %d", jobID, index), nil)
	}
	if err != nil {
		return fmt.Errorf("read segment %d status: %w", index, err)
	}
	return fmt.Errorf("segment %d %s -> %s (allowed from %s): %w",
		index, current, to, joinStatuses(from), ErrInvalidTransition)
}

func joinStatuses(statuses []SegmentStatus) string {
	parts := make([]string, len(statuses))
	for i, st := range statuses {
		parts[i] = string(st)
	}
	return strings.Join(parts, "|")
}

// Claim moves a pending segment to processing for the calling worker and
// counts the attempt.
func (s *Store) Claim(ctx context.Context, jobID string, index int) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		return transition(ctx, s.db, jobID, index,
			[]SegmentStatus{SegmentPending}, SegmentProcessing,
			"attempts = attempts + 1, error_kind = NULL, error_message = NULL")
	})
}

// MarkReady records a rendered segment. Committing a freeze shifts every
// later segment that already has a timeline placement, and adds the freeze
// to the job's total drift.
func (s *Store) MarkReady(ctx context.Context, jobID string, index int, r Rendered) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		d := r.Decision
		if err := transition(ctx, tx, jobID, index,
			[]SegmentStatus{SegmentProcessing}, SegmentReady,
			`media_url = ?, clip_path = ?, strategy = ?, speed_factor = ?, pad_ms = ?, freeze_ms = ?,
			 raw_audio_ms = ?, trimmed_audio_ms = ?, drift_before_ms = ?, output_start_ms = ?,
			 clip_duration_ms = ?, error_kind = NULL, error_message = NULL`,
			nullableString(r.MediaURL), nullableString(r.ClipPath), strategyValue(d.Strategy),
			d.SpeedFactor, d.PadMS, d.FreezeMS,
			r.RawAudioMS, r.TrimmedAudioMS, r.Clip.DriftBeforeMS, r.Clip.OutputStartMS,
			r.Clip.DurationMS,
		); err != nil {
			return err
		}
		if d.FreezeMS <= 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE segments SET drift_before_ms = drift_before_ms + ?, output_start_ms = output_start_ms + ?
			 WHERE job_id = ? AND segment_index > ? AND drift_before_ms IS NOT NULL`,
			d.FreezeMS, d.FreezeMS, jobID, index,
		); err != nil {
			return fmt.Errorf("shift later segments: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE jobs SET drift_ms = drift_ms + ?, updated_at = ? WHERE id = ?`,
			d.FreezeMS, now(), jobID,
		); err != nil {
			return fmt.Errorf("advance job drift: %w", err)
		}
		return nil
	})
}

// MarkFailed records a segment failure. Cancellation errors produce the
// cancelled status; a cancelled segment may also come straight from pending.
func (s *Store) MarkFailed(ctx context.Context, jobID string, index int, f Failure) error {
	ctx = ensureContext(ctx)
	to := FailureStatus(f.Err)
	from := []SegmentStatus{SegmentProcessing}
	if to == SegmentCancelled {
		from = append(from, SegmentPending)
	}
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	set := "error_kind = ?, error_message = ?"
	args := []any{nullableString(services.Kind(f.Err)), nullableString(msg)}
	if f.Placed {
		set += ", drift_before_ms = ?, output_start_ms = start_ms + ?"
		args = append(args, f.DriftBeforeMS, f.DriftBeforeMS)
	}
	return retryOnBusy(ctx, func() error {
		return transition(ctx, s.db, jobID, index, from, to, set, args...)
	})
}

// RetrySegment returns a failed segment to pending so it can be processed
// again. A cancelled job is reactivated.
func (s *Store) RetrySegment(ctx context.Context, jobID string, index int) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := transition(ctx, tx, jobID, index,
			[]SegmentStatus{SegmentFailed}, SegmentPending,
			"error_kind = NULL, error_message = NULL"); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE jobs SET lifecycle = ?, updated_at = ? WHERE id = ? AND lifecycle = ?`,
			string(LifecycleActive), now(), jobID, string(LifecycleCancelled),
		); err != nil {
			return fmt.Errorf("reactivate job: %w", err)
		}
		return nil
	})
}

// CancelJob marks the job cancelled and every pending segment cancelled.
// Ready segments are untouched; processing segments are left to their
// worker, which records the cancellation when its context ends. It returns
// the number of segments cancelled.
func (s *Store) CancelJob(ctx context.Context, jobID string) (int, error) {
	var cancelled int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE jobs SET lifecycle = ?, updated_at = ? WHERE id = ? AND lifecycle IN (?, ?)`,
			string(LifecycleCancelled), now(), jobID, string(LifecycleIngesting), string(LifecycleActive),
		)
		if err != nil {
			return fmt.Errorf("cancel job: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			if _, err := s.lifecycle(ctx, tx, jobID); err != nil {
				return err
			}
		}
		res, err = tx.ExecContext(ctx,
			`UPDATE segments SET status = ?, error_kind = ?, error_message = ?, updated_at = ?
			 WHERE job_id = ? AND status = ?`,
			string(SegmentCancelled), "cancelled", "cancelled by request", now(), jobID, string(SegmentPending),
		)
		if err != nil {
			return fmt.Errorf("cancel pending segments: %w", err)
		}
		cancelled, _ = res.RowsAffected()
		return nil
	})
	return int(cancelled), err
}

func (s *Store) lifecycle(ctx context.Context, db execer, jobID string) (Lifecycle, error) {
	var lc string
	err := db.QueryRowContext(ctx, "SELECT lifecycle FROM jobs WHERE id = ?", jobID).Scan(&lc)
	if errors.Is(err, sql.ErrNoRows) {
		return "", services.Wrap(services.ErrNotFound, "jobs", "lifecycle", "job "+jobID, nil)
	}
	if err != nil {
		return "", fmt.Errorf("read job lifecycle: %w", err)
	}
	return Lifecycle(lc), nil
}

func strategyValue(strategy dub.Strategy) any {
	if strategy == 0 {
		return nil
	}
	return strategy.String()
}
