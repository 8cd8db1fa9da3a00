package trimmer_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"

	"dubsync/internal/media/ffmpeg"
	"dubsync/internal/services"
	"dubsync/internal/trimmer"
)

func iv(a, b float64) ffmpeg.Interval { return ffmpeg.Interval{StartMS: a, EndMS: b} }

func TestPlanKeepGuardsSpeechBoundaries(t *testing.T) {
	silences := []ffmpeg.Interval{
		iv(0, 300),     // leading: cut to 250
		iv(1000, 1150), // short: kept
		iv(2000, 2600), // internal: cut 2050..2550
		iv(3700, 4000), // trailing: cut 3750..4000
	}
	keep := trimmer.PlanKeep(silences, 4000, trimmer.DefaultPolicy())
	want := []ffmpeg.Interval{iv(250, 2050), iv(2550, 3750)}
	if len(keep) != len(want) {
		t.Fatalf("expected %v, got %v", want, keep)
	}
	for i := range want {
		if keep[i] != want[i] {
			t.Fatalf("keep[%d] = %v, want %v", i, keep[i], want[i])
		}
	}
	if got := trimmer.TotalMS(keep); got != 3000 {
		t.Fatalf("expected 3000ms kept, got %v", got)
	}
}

func TestPlanKeepExactlyThresholdIsNotTrimmed(t *testing.T) {
	keep := trimmer.PlanKeep([]ffmpeg.Interval{iv(500, 700)}, 1000, trimmer.DefaultPolicy())
	if len(keep) != 1 || keep[0] != iv(0, 1000) {
		t.Fatalf("expected untouched audio, got %v", keep)
	}
}

// speechRegions returns the complement of silences: the synthetic words.
func speechRegions(silences []ffmpeg.Interval, total float64) []ffmpeg.Interval {
	var out []ffmpeg.Interval
	cursor := 0.0
	for _, s := range silences {
		if s.StartMS > cursor {
			out = append(out, iv(cursor, s.StartMS))
		}
		cursor = s.EndMS
	}
	if cursor < total {
		out = append(out, iv(cursor, total))
	}
	return out
}

func TestPlanKeepPropertiesOnSyntheticAudio(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	policy := trimmer.DefaultPolicy()
	for round := 0; round < 2000; round++ {
		var silences []ffmpeg.Interval
		cursor := 0.0
		if rng.Intn(2) == 0 {
			d := 10 + rng.Float64()*600
			silences = append(silences, iv(0, d))
			cursor = d
		}
		for i := 0; i < 1+rng.Intn(6); i++ {
			cursor += 20 + rng.Float64()*800 // word
			d := 10 + rng.Float64()*900
			silences = append(silences, iv(cursor, cursor+d))
			cursor += d
		}
		total := cursor + rng.Float64()*500
		if rng.Intn(3) == 0 {
			total = cursor
		}

		keep := trimmer.PlanKeep(silences, total, policy)
		kept := trimmer.TotalMS(keep)
		if kept > total+1e-9 {
			t.Fatalf("round %d: kept %v exceeds raw %v", round, kept, total)
		}
		for _, word := range speechRegions(silences, total) {
			guarded := iv(math.Max(0, word.StartMS-policy.GuardMS), math.Min(total, word.EndMS+policy.GuardMS))
			if !covered(keep, guarded) {
				t.Fatalf("round %d: word %v with guard %v not fully kept in %v (silences %v)", round, word, guarded, keep, silences)
			}
		}
	}
}

func covered(keep []ffmpeg.Interval, target ffmpeg.Interval) bool {
	for _, k := range keep {
		if k.StartMS <= target.StartMS+1e-9 && k.EndMS >= target.EndMS-1e-9 {
			return true
		}
	}
	return false
}

type fakeProber struct{ ms float64 }

func (f fakeProber) DurationMS(context.Context, string) (float64, error) { return f.ms, nil }

func TestTrimRunsDetectionAndSelection(t *testing.T) {
	var calls []string
	runner := ffmpeg.RunnerFunc(func(_ context.Context, args []string) (string, error) {
		joined := strings.Join(args, " ")
		calls = append(calls, joined)
		if strings.Contains(joined, "silencedetect") {
			return "silence_start: 0\nsilence_end: 0.5\nsilence_start: 1.5\nsilence_end: 2.0\n", nil
		}
		return "", nil
	})
	tr := trimmer.New(ffmpeg.New(runner, "", ""), fakeProber{ms: 2000}, trimmer.DefaultPolicy())
	res, err := tr.Trim(context.Background(), "raw.wav", "trimmed.wav")
	if err != nil {
		t.Fatalf("Trim failed: %v", err)
	}
	if res.RawDurationMS != 2000 || res.TrimmedDurationMS != 1100 {
		t.Fatalf("unexpected durations: %+v", res)
	}
	if len(calls) != 2 || !strings.Contains(calls[1], fmt.Sprintf("between(t,%s,%s)", "0.450", "1.550")) {
		t.Fatalf("unexpected ffmpeg calls: %v", calls)
	}
	if !strings.HasSuffix(calls[1], "trimmed.wav") {
		t.Fatalf("expected new output artifact, got %s", calls[1])
	}
}

func TestTrimAllSilenceIsUpstreamFailure(t *testing.T) {
	runner := ffmpeg.RunnerFunc(func(_ context.Context, args []string) (string, error) {
		return "silence_start: 0\n", nil
	})
	tr := trimmer.New(ffmpeg.New(runner, "", ""), fakeProber{ms: 1000}, trimmer.DefaultPolicy())
	_, err := tr.Trim(context.Background(), "raw.wav", "out.wav")
	if !errors.Is(err, services.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}
