// Package batcher merges transcript spans into flow-preserving dubbing segments.
package batcher

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"

	"dubsync/internal/dub"
	"dubsync/internal/logging"
	"dubsync/internal/services"
)

// Policy holds the batching thresholds. MaxSegmentMS bounds the speech a
// segment merges; the silence after its last span still belongs to its slot.
// Logger receives dropped-span notices and may be nil.
type Policy struct {
	MergeGapMS    float64
	MaxSegmentMS  float64
	MinConfidence float64
	Logger        *slog.Logger
}

var (
	bracketed   = regexp.MustCompile(`\[[^\]]*\]`)
	parenthesed = regexp.MustCompile(`\([^)]*\)`)
	starred     = regexp.MustCompile(`\*[^*]*\*`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// CleanText strips transcription hallucination markers such as [Music],
// (laughs), and *applause*.
func CleanText(text string) string {
	text = bracketed.ReplaceAllString(text, " ")
	text = parenthesed.ReplaceAllString(text, " ")
	text = starred.ReplaceAllString(text, " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

type group struct {
	spans []dub.EnrichedSpan
}

func (g *group) start() float64 { return g.spans[0].StartMS }
func (g *group) end() float64   { return g.spans[len(g.spans)-1].EndMS }

// Batch merges spans into segments. Spans are merged while the gap to the
// next span is below MergeGapMS, the speaker slot is unchanged, and the
// merged speech stays within MaxSegmentMS. Spans are never split.
//
// The resulting segments tile [0, mediaDurationMS]: leading silence becomes
// the first segment's speech offset and every inter-segment gap is absorbed
// by the preceding segment. A mediaDurationMS of 0 ends the last segment at
// its last span.
//
// Span ends past mediaDurationMS are clamped to it. Spans that are empty,
// zero-length, or fully overlapped are dropped. Only a span starting more
// than one merge gap past the media end is an error.
func Batch(spans []dub.EnrichedSpan, mediaDurationMS float64, policy Policy) ([]dub.DubSegment, error) {
	logger := policy.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	kept, err := filterSpans(spans, mediaDurationMS, policy, logger)
	if err != nil {
		return nil, err
	}
	if len(kept) == 0 {
		return nil, nil
	}

	groups := make([]*group, 0, len(kept))
	current := &group{spans: []dub.EnrichedSpan{kept[0]}}
	for _, span := range kept[1:] {
		gap := span.StartMS - current.end()
		sameSpeaker := span.SpeakerSlot == current.spans[0].SpeakerSlot
		fits := policy.MaxSegmentMS <= 0 || span.EndMS-current.start() <= policy.MaxSegmentMS
		if gap < policy.MergeGapMS && sameSpeaker && fits {
			current.spans = append(current.spans, span)
			continue
		}
		groups = append(groups, current)
		current = &group{spans: []dub.EnrichedSpan{span}}
	}
	groups = append(groups, current)

	timelineEnd := math.Max(mediaDurationMS, groups[len(groups)-1].end())
	segments := make([]dub.DubSegment, len(groups))
	for i, g := range groups {
		slotStart := g.start()
		if i == 0 {
			slotStart = 0
		}
		slotEnd := timelineEnd
		if i+1 < len(groups) {
			slotEnd = groups[i+1].start()
		}
		segments[i] = buildSegment(i, slotStart, slotEnd, g)
	}
	return segments, nil
}

func filterSpans(spans []dub.EnrichedSpan, mediaDurationMS float64, policy Policy, logger *slog.Logger) ([]dub.EnrichedSpan, error) {
	drop := func(span dub.EnrichedSpan, reason string) {
		logger.Debug("transcript span dropped",
			logging.Millis("start_ms", span.StartMS),
			logging.Millis("end_ms", span.EndMS),
			logging.String("reason", reason),
		)
	}

	kept := make([]dub.EnrichedSpan, 0, len(spans))
	for i, span := range spans {
		if math.IsNaN(span.StartMS) || math.IsNaN(span.EndMS) || math.IsInf(span.StartMS, 0) || math.IsInf(span.EndMS, 0) {
			drop(span, "non-finite timing")
			continue
		}
		if mediaDurationMS > 0 {
			if span.StartMS > mediaDurationMS+policy.MergeGapMS {
				return nil, services.Wrap(services.ErrValidation, "batch", "filter",
					fmt.Sprintf("span %d starts at %.1fms, past media end %.1fms", i, span.StartMS, mediaDurationMS), nil)
			}
			span.EndMS = math.Min(span.EndMS, mediaDurationMS)
		}
		span.StartMS = math.Max(span.StartMS, 0)
		if span.EndMS <= span.StartMS {
			drop(span, "zero length")
			continue
		}
		if span.Confidence < policy.MinConfidence {
			drop(span, "low confidence")
			continue
		}
		span.Text = CleanText(span.Text)
		if span.Text == "" {
			drop(span, "no speech text")
			continue
		}
		span.TranslatedText = strings.TrimSpace(span.TranslatedText)
		kept = append(kept, span)
	}

	sort.SliceStable(kept, func(a, b int) bool { return kept[a].StartMS < kept[b].StartMS })
	out := kept[:0]
	for _, span := range kept {
		if n := len(out); n > 0 && span.StartMS < out[n-1].EndMS {
			span.StartMS = out[n-1].EndMS
			if span.EndMS <= span.StartMS {
				drop(span, "overlapped by previous span")
				continue
			}
		}
		out = append(out, span)
	}
	return out, nil
}

func buildSegment(index int, slotStart, slotEnd float64, g *group) dub.DubSegment {
	source := make([]string, 0, len(g.spans))
	translated := make([]string, 0, len(g.spans))
	for _, span := range g.spans {
		source = append(source, span.Text)
		if span.TranslatedText != "" {
			translated = append(translated, span.TranslatedText)
		}
	}
	first := g.spans[0]
	return dub.DubSegment{
		Index:          index,
		StartMS:        slotStart,
		EndMS:          slotEnd,
		SpeechOffsetMS: g.start() - slotStart,
		SourceText:     strings.Join(source, " "),
		TranslatedText: strings.Join(translated, " "),
		SpeakerSlot:    first.SpeakerSlot,
		Gender:         first.Gender,
		EmotionTag:     first.EmotionTag,
	}
}
