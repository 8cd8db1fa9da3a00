package batcher_test

import (
	"errors"
	"testing"

	"dubsync/internal/batcher"
	"dubsync/internal/dub"
	"dubsync/internal/services"
)

func span(start, end float64, text string, slot int) dub.EnrichedSpan {
	return dub.EnrichedSpan{
		TranscriptSpan: dub.TranscriptSpan{StartMS: start, EndMS: end, Text: text, Confidence: 0.9},
		Enrichment:     dub.Enrichment{TranslatedText: "t:" + text, SpeakerSlot: slot, Gender: dub.GenderMale, EmotionTag: "neutral"},
	}
}

var defaultPolicy = batcher.Policy{MergeGapMS: 750, MaxSegmentMS: 15000}

func TestBatchMergesCloseSpansFromSameSpeaker(t *testing.T) {
	spans := []dub.EnrichedSpan{
		span(1000, 2000, "hello", 0),
		span(2500, 3000, "there", 0),  // gap 500 -> merge
		span(3750, 4500, "friend", 0), // gap 750 -> split
		span(4600, 5000, "yes", 1),    // speaker change -> split
	}
	segments, err := batcher.Batch(spans, 6000, defaultPolicy)
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d: %+v", len(segments), segments)
	}
	if segments[0].SourceText != "hello there" || segments[0].TranslatedText != "t:hello t:there" {
		t.Fatalf("unexpected merged text: %+v", segments[0])
	}
	if segments[0].StartMS != 0 || segments[0].SpeechOffsetMS != 1000 {
		t.Fatalf("expected first segment to absorb leading silence, got %+v", segments[0])
	}
	if segments[0].EndMS != 3750 || segments[1].StartMS != 3750 {
		t.Fatalf("expected gap absorbed by preceding segment, got %+v / %+v", segments[0], segments[1])
	}
	if segments[2].EndMS != 6000 || segments[2].SpeakerSlot != 1 {
		t.Fatalf("expected last segment to run to media end, got %+v", segments[2])
	}
}

func TestBatchIndexesAreContiguousAndSlotsTile(t *testing.T) {
	spans := make([]dub.EnrichedSpan, 0, 20)
	for i := 0; i < 20; i++ {
		start := float64(i) * 1500
		spans = append(spans, span(start, start+600, "word", i%2))
	}
	segments, err := batcher.Batch(spans, 31000, defaultPolicy)
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	prevEnd := 0.0
	for i, seg := range segments {
		if seg.Index != i {
			t.Fatalf("segment %d has index %d", i, seg.Index)
		}
		if seg.StartMS != prevEnd {
			t.Fatalf("segment %d starts at %v, expected %v", i, seg.StartMS, prevEnd)
		}
		if seg.SlotMS() <= 0 {
			t.Fatalf("segment %d has empty slot", i)
		}
		prevEnd = seg.EndMS
	}
	if prevEnd != 31000 {
		t.Fatalf("expected tiling to end at media duration, got %v", prevEnd)
	}
}

func TestBatchRespectsMaxSegmentDuration(t *testing.T) {
	spans := []dub.EnrichedSpan{
		span(0, 4000, "one", 0),
		span(4100, 8000, "two", 0),
		span(8100, 12000, "three", 0),
	}
	segments, err := batcher.Batch(spans, 0, batcher.Policy{MergeGapMS: 750, MaxSegmentMS: 9000})
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected ceiling to force a split, got %d segments", len(segments))
	}
	if segments[0].SourceText != "one two" || segments[1].SourceText != "three" {
		t.Fatalf("unexpected grouping: %+v", segments)
	}
	if segments[1].EndMS != 12000 {
		t.Fatalf("expected last segment to end at last span without media duration, got %v", segments[1].EndMS)
	}
}

func TestBatchDropsNoiseAndLowConfidence(t *testing.T) {
	low := span(2000, 2500, "mumble", 0)
	low.Confidence = 0.1
	spans := []dub.EnrichedSpan{
		span(0, 1000, "[Music]", 0),
		low,
		span(3000, 4000, "(laughs) real words *applause*", 0),
	}
	segments, err := batcher.Batch(spans, 5000, batcher.Policy{MergeGapMS: 750, MaxSegmentMS: 15000, MinConfidence: 0.5})
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected a single segment, got %+v", segments)
	}
	if segments[0].SourceText != "real words" {
		t.Fatalf("expected cleaned text, got %q", segments[0].SourceText)
	}
	if segments[0].SpeechOffsetMS != 3000 {
		t.Fatalf("expected dropped spans to become leading silence, got %v", segments[0].SpeechOffsetMS)
	}
}

func TestBatchClampsSpansOvershootingMediaEnd(t *testing.T) {
	spans := []dub.EnrichedSpan{
		span(0, 2000, "first", 0),
		span(3000, 60020, "second", 0),
		span(60100, 60400, "encoder tail", 0),
	}
	segments, err := batcher.Batch(spans, 60000, defaultPolicy)
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %+v", segments)
	}
	if segments[1].EndMS != 60000 || segments[1].SourceText != "second" {
		t.Fatalf("expected last segment clamped to media end, got %+v", segments[1])
	}
}

func TestBatchDropsZeroLengthAndOverlappedSpans(t *testing.T) {
	spans := []dub.EnrichedSpan{
		span(0, 2000, "one", 0),
		span(2000, 2000, "blip", 0),
		span(1000, 1800, "echo", 0),
		span(3000, 5000, "two", 0),
		span(4000, 3500, "backwards", 0),
	}
	segments, err := batcher.Batch(spans, 6000, defaultPolicy)
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %+v", segments)
	}
	if segments[0].SourceText != "one" || segments[1].SourceText != "two" {
		t.Fatalf("unexpected segments: %+v", segments)
	}
	if segments[0].EndMS != 3000 || segments[1].EndMS != 6000 {
		t.Fatalf("expected slots to tile the media, got %+v", segments)
	}
}

func TestBatchRejectsSpanStartingPastMediaEnd(t *testing.T) {
	spans := []dub.EnrichedSpan{span(0, 1000, "ok", 0), span(61000, 62000, "late", 0)}
	_, err := batcher.Batch(spans, 60000, defaultPolicy)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBatchKeepsSingleCharacterUtterances(t *testing.T) {
	spans := []dub.EnrichedSpan{
		span(0, 400, "是", 0),
		span(2000, 2300, "I", 1),
	}
	segments, err := batcher.Batch(spans, 3000, defaultPolicy)
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	if len(segments) != 2 || segments[0].SourceText != "是" || segments[1].SourceText != "I" {
		t.Fatalf("expected both utterances kept, got %+v", segments)
	}
}

func TestBatchMaxSegmentBoundsSpeechNotTrailingSilence(t *testing.T) {
	spans := []dub.EnrichedSpan{
		span(0, 1000, "short", 0),
		span(1500, 15000, "long", 0),
	}
	segments, err := batcher.Batch(spans, 40000, defaultPolicy)
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected a single segment, got %+v", segments)
	}
	seg := segments[0]
	if seg.SlotMS() != 40000 {
		t.Fatalf("expected trailing silence absorbed into the slot, got %v", seg.SlotMS())
	}
	if speech := 15000 - (seg.StartMS + seg.SpeechOffsetMS); speech > defaultPolicy.MaxSegmentMS {
		t.Fatalf("merged speech %v exceeds ceiling", speech)
	}
}

func TestBatchEmptyInput(t *testing.T) {
	segments, err := batcher.Batch(nil, 1000, defaultPolicy)
	if err != nil || len(segments) != 0 {
		t.Fatalf("expected no segments, got %v, %v", segments, err)
	}
}
