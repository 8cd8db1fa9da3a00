package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"dubsync/internal/dub"
	"dubsync/internal/jobs"
	"dubsync/internal/services"
	"dubsync/internal/timeline"
)

// storeSink records assembler results in the job store. Writes use a
// context detached from cancellation so a cancelled segment is still
// recorded as such. Cancellation caused by engine shutdown is recorded as
// a retryable failure instead.
type storeSink struct {
	store    *jobs.Store
	jobID    string
	baseURL  string
	shutdown context.Context
}

var _ timeline.Sink = (*storeSink)(nil)

func (s *storeSink) SegmentReady(ctx context.Context, p timeline.Placement) error {
	return s.store.MarkReady(context.WithoutCancel(ctx), s.jobID, p.Segment.Index, jobs.Rendered{
		Decision:       p.Decision,
		RawAudioMS:     p.Audio.RawDurationMS,
		TrimmedAudioMS: p.Audio.TrimmedDurationMS,
		Clip:           p.Clip,
		ClipPath:       p.Clip.VideoRef,
		MediaURL:       MediaURL(s.baseURL, s.jobID, filepath.Base(p.Clip.VideoRef)),
	})
}

func (s *storeSink) SegmentFailed(ctx context.Context, seg dub.DubSegment, driftBeforeMS float64, err error) error {
	if s.shutdown != nil && s.shutdown.Err() != nil && services.IsCancelled(err) {
		err = services.Wrap(services.ErrTransient, "pipeline", "shutdown", jobs.InterruptedReason, nil)
	}
	return s.store.MarkFailed(context.WithoutCancel(ctx), s.jobID, seg.Index, jobs.Failure{
		Err:           err,
		DriftBeforeMS: driftBeforeMS,
		Placed:        true,
	})
}

// MediaURL returns where a job's file is served. An empty base yields a
// path relative to the API root.
func MediaURL(baseURL, jobID, file string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/media/" + jobID + "/" + file
}

// ClipName is the file name of a segment's rendered clip.
func ClipName(index int) string {
	return fmt.Sprintf("seg_%04d.mp4", index)
}
