// Package chunk plans how long source audio is split for transcription.
//
// Cuts land on the midpoint of a detected silence so no word is split, and
// every chunk stays within the configured length so uploads stay under the
// transcription size limit.
package chunk

import (
	"sort"

	"dubsync/internal/media/ffmpeg"
)

// Plan splits [0, totalMS] into consecutive chunks no longer than maxChunkMS.
// Each chunk ends at the midpoint of the latest silence that still fits; a
// stretch with no such silence is cut hard at maxChunkMS. A non-positive
// maxChunkMS, or audio that already fits, yields a single chunk.
func Plan(silences []ffmpeg.Interval, totalMS, maxChunkMS float64) []ffmpeg.Interval {
	if totalMS <= 0 {
		return nil
	}
	if maxChunkMS <= 0 || totalMS <= maxChunkMS {
		return []ffmpeg.Interval{{StartMS: 0, EndMS: totalMS}}
	}

	mids := make([]float64, 0, len(silences))
	for _, s := range silences {
		mid := s.StartMS + s.DurationMS()/2
		if mid > 0 && mid < totalMS {
			mids = append(mids, mid)
		}
	}
	sort.Float64s(mids)

	var chunks []ffmpeg.Interval
	start := 0.0
	for totalMS-start > maxChunkMS {
		limit := start + maxChunkMS
		cut := limit
		if j := sort.Search(len(mids), func(k int) bool { return mids[k] > limit }) - 1; j >= 0 && mids[j] > start {
			cut = mids[j]
		}
		chunks = append(chunks, ffmpeg.Interval{StartMS: start, EndMS: cut})
		start = cut
	}
	return append(chunks, ffmpeg.Interval{StartMS: start, EndMS: totalMS})
}
