package dub

import (
	"fmt"
	"math"
	"time"
)

// TranscriptSpan is one timed span produced by the transcription collaborator.
type TranscriptSpan struct {
	StartMS    float64
	EndMS      float64
	Text       string
	Confidence float64
}

// DurationMS returns the span length.
func (s TranscriptSpan) DurationMS() float64 { return s.EndMS - s.StartMS }

// Enrichment carries the translation, diarization, and emotion output for one span.
type Enrichment struct {
	TranslatedText string
	SpeakerSlot    int
	Gender         Gender
	EmotionTag     string
}

// EnrichedSpan pairs a transcript span with its enrichment.
type EnrichedSpan struct {
	TranscriptSpan
	Enrichment
}

// DubSegment is a contiguous slot of source media dubbed as one unit.
// StartMS/EndMS cover the slot on the original timeline; SpeechOffsetMS is
// where speech begins inside the slot.
type DubSegment struct {
	Index          int
	StartMS        float64
	EndMS          float64
	SpeechOffsetMS float64
	SourceText     string
	TranslatedText string
	SpeakerSlot    int
	Gender         Gender
	EmotionTag     string
}

// SlotMS returns the original slot duration.
func (s DubSegment) SlotMS() float64 { return s.EndMS - s.StartMS }

// VoiceProfile is one entry of the fixed voice pool.
type VoiceProfile struct {
	VoiceID     string
	Locale      string
	Gender      Gender
	SpeakerSlot int
}

// SynthesizedAudio describes the synthesizer output for a segment after trimming.
type SynthesizedAudio struct {
	SegmentIndex      int
	RawDurationMS     float64
	TrimmedDurationMS float64
	AudioRef          string
}

// SyncDecision is the reconciler's verdict for one segment.
type SyncDecision struct {
	SegmentIndex int
	Strategy     Strategy
	SpeedFactor  float64
	PadMS        float64
	FreezeMS     float64
}

// AudioDurationMS returns how long the corrected audio plays.
func (d SyncDecision) AudioDurationMS(slotMS float64) float64 {
	return slotMS + d.FreezeMS
}

// RenderedClip is the muxed output for one segment.
type RenderedClip struct {
	SegmentIndex  int
	VideoRef      string
	AudioRef      string
	DurationMS    float64
	OutputStartMS float64
	DriftBeforeMS float64
}

// Job is a dubbing request over one source video.
type Job struct {
	ID            string
	SourcePath    string
	Mode          Mode
	TargetLang    string
	TotalSegments int
	DurationMS    float64
	CreatedAt     time.Time
}

// Ms converts float milliseconds to a duration, rounding to the nearest microsecond.
func Ms(ms float64) time.Duration {
	return time.Duration(math.Round(ms*1000)) * time.Microsecond
}

// Seconds formats milliseconds as seconds for media tool arguments.
func Seconds(ms float64) string {
	return fmt.Sprintf("%.3f", ms/1000)
}
