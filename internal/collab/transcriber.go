package collab

import (
	"context"
	"math"

	openai "github.com/sashabaranov/go-openai"

	"dubsync/internal/dub"
	"dubsync/internal/services"
)

type audioTranscriber interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

var _ audioTranscriber = (*openai.Client)(nil)

// Transcriber produces timed transcript spans from an audio file.
type Transcriber struct {
	client audioTranscriber
	model  string
}

// NewTranscriber returns a Transcriber using model (e.g. whisper-1).
func NewTranscriber(client *openai.Client, model string) *Transcriber {
	return &Transcriber{client: client, model: model}
}

// Transcribe requests verbose JSON so each segment carries timing and a
// no-speech probability; confidence is reported as 1 - no_speech_prob.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) ([]dub.TranscriptSpan, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, classify(ctx, "transcribe", "create-transcription", err)
	}
	if len(resp.Segments) == 0 && resp.Text != "" {
		return nil, services.Wrap(services.ErrUpstream, "transcribe", "parse", "response has text but no timed segments", nil)
	}
	spans := make([]dub.TranscriptSpan, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		spans = append(spans, dub.TranscriptSpan{
			StartMS:    roundMS(seg.Start * 1000),
			EndMS:      roundMS(seg.End * 1000),
			Text:       seg.Text,
			Confidence: math.Max(0, math.Min(1, 1-seg.NoSpeechProb)),
		})
	}
	return spans, nil
}

func roundMS(ms float64) float64 {
	return math.Round(ms*1000) / 1000
}
