package testsupport

import (
	"context"
	"testing"

	"dubsync/internal/config"
	"dubsync/internal/dub"
	"dubsync/internal/jobs"
)

// MustOpenStore opens a jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Segments builds n back-to-back segments of slotMS each.
func Segments(n int, slotMS float64) []dub.DubSegment {
	segments := make([]dub.DubSegment, n)
	for i := range segments {
		start := float64(i) * slotMS
		segments[i] = dub.DubSegment{
			Index:          i,
			StartMS:        start,
			EndMS:          start + slotMS,
			SourceText:     "hello there",
			TranslatedText: "مرحبا",
			SpeakerSlot:    i % 2,
			Gender:         dub.GenderMale,
			EmotionTag:     "neutral",
		}
	}
	return segments
}

// NewActiveJob creates a job with the given segments registered as pending.
func NewActiveJob(t testing.TB, store *jobs.Store, segments []dub.DubSegment) *jobs.Job {
	t.Helper()

	ctx := context.Background()
	job, err := store.CreateJob(ctx, "/media/source.mp4", dub.ModeDubbing, "ar")
	if err != nil {
		t.Fatalf("store.CreateJob: %v", err)
	}
	duration := 0.0
	if n := len(segments); n > 0 {
		duration = segments[n-1].EndMS
	}
	if err := store.RegisterSegments(ctx, job.ID, duration, segments); err != nil {
		t.Fatalf("store.RegisterSegments: %v", err)
	}
	job, err = store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("store.GetJob: %v", err)
	}
	return job
}
