package collab

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"dubsync/internal/dub"
	"dubsync/internal/services"
)

type speechCreator interface {
	CreateSpeech(ctx context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error)
}

var _ speechCreator = (*openai.Client)(nil)

// Synthesizer renders translated text to speech.
type Synthesizer struct {
	client speechCreator
	model  string
}

// NewSynthesizer returns a Synthesizer using model (e.g. tts-1).
func NewSynthesizer(client *openai.Client, model string) *Synthesizer {
	return &Synthesizer{client: client, model: model}
}

// Synthesize writes WAV speech for text in voice to outPath. The emotion tag
// is not sent to the API; the voice pool carries the character instead.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, voice dub.VoiceProfile, outPath string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return services.Wrap(services.ErrValidation, "tts", "create-speech", "empty text", nil)
	}
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice.VoiceID),
		ResponseFormat: openai.SpeechResponseFormatWav,
		Speed:          1.0,
	})
	if err != nil {
		return classify(ctx, "tts", "create-speech", err)
	}
	defer resp.Close()

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("tts: create output dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("tts: create output: %w", err)
	}
	n, copyErr := io.Copy(f, resp)
	closeErr := f.Close()
	if copyErr != nil {
		return classify(ctx, "tts", "read-audio", copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("tts: close output: %w", closeErr)
	}
	if n == 0 {
		return services.Wrap(services.ErrUpstream, "tts", "read-audio", "empty audio body", nil)
	}
	return nil
}
