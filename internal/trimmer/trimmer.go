// Package trimmer removes non-speech padding from synthesized audio before
// timing decisions are made.
//
// Silence runs longer than MinSilenceMS are cut, but GuardMS of audio is
// kept on each side that touches speech so word onsets and codas survive.
// Runs at the very start or end of the stream have no neighbouring word on
// the outer side and are cut up to the stream edge.
package trimmer

import (
	"context"
	"fmt"
	"math"

	"dubsync/internal/media/ffmpeg"
	"dubsync/internal/services"
)

// Policy holds the trimming thresholds.
type Policy struct {
	MinSilenceMS float64
	GuardMS      float64
	NoiseDB      float64
}

// DefaultPolicy returns the standard trimming thresholds.
func DefaultPolicy() Policy {
	return Policy{MinSilenceMS: 200, GuardMS: 50, NoiseDB: -35}
}

// PlanKeep returns the intervals of [0, totalMS] that survive trimming,
// given the detected silence runs.
func PlanKeep(silences []ffmpeg.Interval, totalMS float64, policy Policy) []ffmpeg.Interval {
	if totalMS <= 0 {
		return nil
	}
	cuts := make([]ffmpeg.Interval, 0, len(silences))
	for _, s := range silences {
		start := math.Max(0, s.StartMS)
		end := math.Min(totalMS, s.EndMS)
		if end-start <= policy.MinSilenceMS {
			continue
		}
		cutStart, cutEnd := start, end
		if start > 0 {
			cutStart += policy.GuardMS
		}
		if end < totalMS {
			cutEnd -= policy.GuardMS
		}
		if cutEnd <= cutStart {
			continue
		}
		if n := len(cuts); n > 0 && cutStart <= cuts[n-1].EndMS {
			cuts[n-1].EndMS = math.Max(cuts[n-1].EndMS, cutEnd)
			continue
		}
		cuts = append(cuts, ffmpeg.Interval{StartMS: cutStart, EndMS: cutEnd})
	}

	keep := make([]ffmpeg.Interval, 0, len(cuts)+1)
	cursor := 0.0
	for _, c := range cuts {
		if c.StartMS > cursor {
			keep = append(keep, ffmpeg.Interval{StartMS: cursor, EndMS: c.StartMS})
		}
		cursor = math.Max(cursor, c.EndMS)
	}
	if cursor < totalMS {
		keep = append(keep, ffmpeg.Interval{StartMS: cursor, EndMS: totalMS})
	}
	return keep
}

// TotalMS sums interval lengths.
func TotalMS(intervals []ffmpeg.Interval) float64 {
	total := 0.0
	for _, iv := range intervals {
		total += iv.DurationMS()
	}
	return total
}

// DurationProber measures media files.
type DurationProber interface {
	DurationMS(ctx context.Context, path string) (float64, error)
}

// Result describes a trimmed audio artifact.
type Result struct {
	Path              string
	RawDurationMS     float64
	TrimmedDurationMS float64
	Kept              []ffmpeg.Interval
}

// Trimmer runs silence detection and removal through ffmpeg.
type Trimmer struct {
	tool   *ffmpeg.Tool
	prober DurationProber
	policy Policy
}

// New returns a Trimmer.
func New(tool *ffmpeg.Tool, prober DurationProber, policy Policy) *Trimmer {
	return &Trimmer{tool: tool, prober: prober, policy: policy}
}

// Trim writes the trimmed version of input to output. The input file is not
// modified.
func (t *Trimmer) Trim(ctx context.Context, input, output string) (Result, error) {
	raw, err := t.prober.DurationMS(ctx, input)
	if err != nil {
		return Result{}, services.Wrap(services.ErrAssembly, "trim", "probe", input, err)
	}
	silences, err := t.tool.DetectSilence(ctx, input, t.policy.NoiseDB, t.policy.MinSilenceMS, raw)
	if err != nil {
		return Result{}, err
	}
	keep := PlanKeep(silences, raw, t.policy)
	if len(keep) == 0 {
		return Result{}, services.Wrap(services.ErrUpstream, "trim", "plan", fmt.Sprintf("%s contains no speech", input), nil)
	}
	if err := t.tool.KeepIntervals(ctx, input, output, keep); err != nil {
		return Result{}, err
	}
	trimmed := math.Min(TotalMS(keep), raw)
	return Result{
		Path:              output,
		RawDurationMS:     raw,
		TrimmedDurationMS: trimmed,
		Kept:              keep,
	}, nil
}
