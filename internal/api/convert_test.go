package api_test

import (
	"testing"
	"time"

	"dubsync/internal/api"
	"dubsync/internal/dub"
	"dubsync/internal/jobs"
)

func TestFromJob(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job := &jobs.Job{
		Job: dub.Job{
			ID:            "abc",
			SourcePath:    "/in/movie.mp4",
			Mode:          dub.ModeDubbing,
			TargetLang:    "es",
			TotalSegments: 3,
			CreatedAt:     created,
		},
		Status:       jobs.JobInProgress,
		DriftMS:      120,
		SubtitlePath: "/out/abc/subtitles.srt",
		Counts:       jobs.SegmentCounts{jobs.SegmentReady: 1, jobs.SegmentPending: 2},
	}

	dto := api.FromJob(job, func(file string) string { return "http://h/media/abc/" + file })
	if dto.ID != "abc" || dto.Status != "in_progress" || dto.Mode != "dubbing" {
		t.Fatalf("unexpected dto: %+v", dto)
	}
	if dto.SubtitleURL != "http://h/media/abc/subtitles.srt" {
		t.Fatalf("subtitle url = %q", dto.SubtitleURL)
	}
	if dto.FinalURL != "" {
		t.Fatalf("final url should be empty, got %q", dto.FinalURL)
	}
	if dto.Counts["ready"] != 1 || dto.Counts["pending"] != 2 {
		t.Fatalf("counts = %v", dto.Counts)
	}
	if dto.CreatedAt != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("created_at = %q", dto.CreatedAt)
	}
}

func TestFromSegmentHidesMediaUntilReady(t *testing.T) {
	seg := &jobs.Segment{
		DubSegment: dub.DubSegment{Index: 2, StartMS: 1000, EndMS: 4000},
		Status:     jobs.SegmentProcessing,
		MediaURL:   "http://h/media/j/seg_0002.mp4",
	}
	if dto := api.FromSegment(seg); dto.MediaURL != "" {
		t.Fatalf("processing segment exposed media url %q", dto.MediaURL)
	}

	seg.Status = jobs.SegmentReady
	seg.Strategy = dub.StrategySpeedup
	seg.SpeedFactor = 1.1
	seg.Placed = true
	seg.OutputStartMS = 1250
	seg.DriftBeforeMS = 250
	dto := api.FromSegment(seg)
	if dto.MediaURL == "" || dto.Strategy != dub.StrategySpeedup.String() || dto.SpeedFactor != 1.1 {
		t.Fatalf("unexpected ready dto: %+v", dto)
	}
	if dto.OutputStartMS != 1250 || dto.DriftBeforeMS != 250 {
		t.Fatalf("placement not carried: %+v", dto)
	}
}
