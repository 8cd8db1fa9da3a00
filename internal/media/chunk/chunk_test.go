package chunk_test

import (
	"testing"

	"dubsync/internal/media/chunk"
	"dubsync/internal/media/ffmpeg"
)

func TestPlanShortAudioIsOneChunk(t *testing.T) {
	got := chunk.Plan(nil, 60_000, 300_000)
	if len(got) != 1 || got[0].StartMS != 0 || got[0].EndMS != 60_000 {
		t.Fatalf("expected single chunk, got %+v", got)
	}
	if got := chunk.Plan(nil, 0, 300_000); got != nil {
		t.Fatalf("expected no chunks for empty audio, got %+v", got)
	}
}

func TestPlanCutsAtLatestFittingSilence(t *testing.T) {
	silences := []ffmpeg.Interval{
		{StartMS: 1000, EndMS: 1400},  // mid 1200
		{StartMS: 3000, EndMS: 3600},  // mid 3300
		{StartMS: 4200, EndMS: 4400},  // mid 4300, past the first limit
		{StartMS: 7000, EndMS: 7400},  // mid 7200
		{StartMS: 9990, EndMS: 10000}, // trailing
	}
	got := chunk.Plan(silences, 10_000, 4000)
	want := []ffmpeg.Interval{
		{StartMS: 0, EndMS: 3300},
		{StartMS: 3300, EndMS: 7200},
		{StartMS: 7200, EndMS: 10_000},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d chunks, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunk %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestPlanHardCutsWithoutSilence(t *testing.T) {
	got := chunk.Plan(nil, 10_000, 4000)
	if len(got) != 3 || got[0].EndMS != 4000 || got[1].EndMS != 8000 || got[2].EndMS != 10_000 {
		t.Fatalf("unexpected hard cuts: %+v", got)
	}
}

func TestPlanChunksTileAndRespectLimit(t *testing.T) {
	silences := make([]ffmpeg.Interval, 0, 50)
	for i := 1; i < 50; i++ {
		at := float64(i) * 1730
		silences = append(silences, ffmpeg.Interval{StartMS: at, EndMS: at + 300})
	}
	const total, limit = 90_000.0, 7000.0
	got := chunk.Plan(silences, total, limit)
	prev := 0.0
	for i, c := range got {
		if c.StartMS != prev {
			t.Fatalf("chunk %d starts at %v, expected %v", i, c.StartMS, prev)
		}
		if c.DurationMS() <= 0 || c.DurationMS() > limit {
			t.Fatalf("chunk %d has length %v", i, c.DurationMS())
		}
		prev = c.EndMS
	}
	if prev != total {
		t.Fatalf("chunks end at %v, expected %v", prev, total)
	}
}
