package ffmpeg

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Interval is a half-open time range in milliseconds.
type Interval struct {
	StartMS float64
	EndMS   float64
}

// DurationMS returns the interval length.
func (i Interval) DurationMS() float64 { return i.EndMS - i.StartMS }

var (
	silenceStartRe = regexp.MustCompile(`silence_start:\s*(-?[\d.]+)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*(-?[\d.]+)`)
)

// DetectSilence runs silencedetect over input and returns the silent runs
// at least minSilenceMS long. totalMS closes a trailing run that ffmpeg
// leaves open at end of stream.
func (t *Tool) DetectSilence(ctx context.Context, input string, noiseDB, minSilenceMS, totalMS float64) ([]Interval, error) {
	args := []string{
		"-i", input,
		"-af", fmt.Sprintf("silencedetect=noise=%.1fdB:d=%s", noiseDB, seconds(minSilenceMS)),
		"-f", "null", "-",
	}
	stderr, err := t.run(ctx, "silencedetect", args)
	if err != nil {
		return nil, err
	}
	return ParseSilenceOutput(stderr, totalMS), nil
}

// ParseSilenceOutput extracts silence runs from silencedetect stderr:
//
//	[silencedetect @ 0x...] silence_start: 1.234
//	[silencedetect @ 0x...] silence_end: 2.345 | silence_duration: 1.111
func ParseSilenceOutput(output string, totalMS float64) []Interval {
	var (
		runs    []Interval
		start   float64
		hasOpen bool
	)
	for _, line := range strings.Split(output, "\n") {
		if m := silenceStartRe.FindStringSubmatch(line); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				start = max(0, secondsToMS(v))
				hasOpen = true
			}
			continue
		}
		if m := silenceEndRe.FindStringSubmatch(line); m != nil && hasOpen {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				end := secondsToMS(v)
				if totalMS > 0 {
					end = min(end, totalMS)
				}
				if end > start {
					runs = append(runs, Interval{StartMS: start, EndMS: end})
				}
			}
			hasOpen = false
		}
	}
	if hasOpen && totalMS > start {
		runs = append(runs, Interval{StartMS: start, EndMS: totalMS})
	}
	sort.Slice(runs, func(a, b int) bool { return runs[a].StartMS < runs[b].StartMS })
	return runs
}

func secondsToMS(v float64) float64 {
	return math.Round(v*1e6) / 1e3
}
