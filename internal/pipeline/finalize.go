package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"

	"dubsync/internal/jobs"
	"dubsync/internal/logging"
	"dubsync/internal/notifications"
	"dubsync/internal/timeline"
)

const (
	subtitleFile = "subtitles.srt"
	finalFile    = "final.mp4"
)

// finalize writes job-level outputs once a run has drained and publishes the
// job's outcome.
func (e *Engine) finalize(ctx context.Context, jobID string, logger *slog.Logger) {
	store := context.WithoutCancel(ctx)
	job, err := e.store.GetJob(store, jobID)
	if err != nil {
		logger.Error("reload job failed", logging.Error(err))
		return
	}
	segs, err := e.store.Segments(store, jobID)
	if err != nil {
		logger.Error("load segments failed", logging.Error(err))
		return
	}

	var cues []timeline.Cue
	var clips []string
	for _, seg := range segs {
		if seg.Status != jobs.SegmentReady {
			continue
		}
		cues = append(cues, segmentCue(seg))
		clips = append(clips, seg.ClipPath)
	}

	var subtitlePath, finalPath string
	if job.Mode.EmitsSubtitles() && len(cues) > 0 {
		path := filepath.Join(e.cfg.JobDir(jobID), subtitleFile)
		if err := timeline.WriteSRTFile(path, cues); err != nil {
			logger.Error("write subtitles failed", logging.Error(err))
		} else {
			subtitlePath = path
		}
	}
	if job.Status == jobs.JobCompleted && e.cfg.Jobs.ConcatOnComplete && len(clips) > 0 {
		path := filepath.Join(e.cfg.JobDir(jobID), finalFile)
		if err := e.deps.Media.Concat(ctx, clips, path); err != nil {
			logger.Error("concat failed", logging.Error(err))
		} else {
			finalPath = path
		}
	}
	if subtitlePath != "" || finalPath != "" {
		if err := e.store.SetOutputs(store, jobID, finalPath, subtitlePath); err != nil {
			logger.Error("record outputs failed", logging.Error(err))
		}
	}

	logger.Info("job finished",
		logging.String("status", string(job.Status)),
		logging.Int("ready", job.Counts[jobs.SegmentReady]),
		logging.Int("failed", job.Counts[jobs.SegmentFailed]),
		logging.Int("cancelled", job.Counts[jobs.SegmentCancelled]),
		logging.Millis("drift_ms", job.DriftMS),
		logging.String("final_path", finalPath),
		logging.String("subtitle_path", subtitlePath),
	)
	e.notify(store, job, logger)
}

func (e *Engine) notify(ctx context.Context, job *jobs.Job, logger *slog.Logger) {
	source := filepath.Base(job.SourcePath)
	var event notifications.Event
	payload := notifications.Payload{"source": source, "job_id": job.ID}
	switch job.Status {
	case jobs.JobCompleted:
		event = notifications.EventJobCompleted
		payload["segments"] = job.TotalSegments
	case jobs.JobCompletedWithFailures:
		event = notifications.EventJobCompletedWithFailures
		payload["ready"] = job.Counts[jobs.SegmentReady]
		payload["failed"] = job.Counts[jobs.SegmentFailed]
	case jobs.JobFailed:
		event = notifications.EventJobFailed
		payload["context"] = "dubbing " + source
		payload["error"] = e.failureDetail(ctx, job)
	case jobs.JobCancelled:
		event = notifications.EventJobCancelled
	default:
		return
	}
	if err := e.deps.Notifier.Publish(ctx, event, payload); err != nil {
		logger.Warn("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}

func (e *Engine) failureDetail(ctx context.Context, job *jobs.Job) string {
	if job.ErrorMessage != "" {
		return job.ErrorMessage
	}
	failed, err := e.store.SegmentsByStatus(ctx, job.ID, jobs.SegmentFailed)
	if err != nil || len(failed) == 0 {
		return "segment failed"
	}
	return failed[0].ErrorMessage
}
