package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	openai "github.com/sashabaranov/go-openai"

	"dubsync/internal/dub"
	"dubsync/internal/language"
	"dubsync/internal/services"
)

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

var _ chatCompleter = (*openai.Client)(nil)

const enrichPrompt = `You prepare transcript segments for dubbing into %s.
For every input segment:
- translate "text" into natural, concise %s that can be spoken in about the same time as the original;
- assign "speaker" as a zero-based integer, consistent for the same voice across segments;
- give "gender" as "male" or "female" judged from the speaker;
- give "emotion" as one lowercase word (neutral, happy, sad, angry, excited, ...).
Interjections and noise stay very short.
Reply with a JSON object: {"segments":[{"id":0,"translation":"...","speaker":0,"gender":"male","emotion":"neutral"}]}`

// Enricher translates spans and tags speaker, gender, and emotion in one
// chat completion.
type Enricher struct {
	client chatCompleter
	model  string
}

// NewEnricher returns an Enricher using model.
func NewEnricher(client *openai.Client, model string) *Enricher {
	return &Enricher{client: client, model: model}
}

type enrichInput struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type enrichOutput struct {
	Segments []enrichItem `json:"segments"`
}

type enrichItem struct {
	ID          int             `json:"id"`
	Translation string          `json:"translation"`
	Speaker     json.RawMessage `json:"speaker"`
	Gender      string          `json:"gender"`
	Emotion     string          `json:"emotion"`
}

// Enrich returns one EnrichedSpan per input span, in input order. Spans the
// model skipped keep their source text, speaker 0, and a neutral tag.
func (e *Enricher) Enrich(ctx context.Context, spans []dub.TranscriptSpan, targetLang string) ([]dub.EnrichedSpan, error) {
	if len(spans) == 0 {
		return nil, nil
	}
	inputs := make([]enrichInput, len(spans))
	for i, s := range spans {
		inputs[i] = enrichInput{ID: i, Start: msToSeconds(s.StartMS), End: msToSeconds(s.EndMS), Text: s.Text}
	}
	payload, err := json.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("encode enrichment input: %w", err)
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(enrichPrompt, language.Label(targetLang), language.DisplayName(targetLang))},
			{Role: openai.ChatMessageRoleUser, Content: string(payload)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0,
	})
	if err != nil {
		return nil, classify(ctx, "enrich", "chat-completion", err)
	}
	if len(resp.Choices) == 0 {
		return nil, services.Wrap(services.ErrUpstream, "enrich", "parse", "no choices in response", nil)
	}
	var out enrichOutput
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		return nil, services.Wrap(services.ErrUpstream, "enrich", "parse", "malformed JSON reply", err)
	}

	byID := make(map[int]enrichItem, len(out.Segments))
	for _, item := range out.Segments {
		byID[item.ID] = item
	}
	enriched := make([]dub.EnrichedSpan, len(spans))
	for i, span := range spans {
		en := dub.Enrichment{TranslatedText: span.Text, Gender: dub.GenderMale, EmotionTag: "neutral"}
		if item, ok := byID[i]; ok {
			if text := strings.TrimSpace(item.Translation); text != "" {
				en.TranslatedText = text
			}
			en.SpeakerSlot = parseSpeaker(item.Speaker)
			if g, err := dub.ParseGender(item.Gender); err == nil {
				en.Gender = g
			}
			if tag := strings.ToLower(strings.TrimSpace(item.Emotion)); tag != "" {
				en.EmotionTag = tag
			}
		}
		enriched[i] = dub.EnrichedSpan{TranscriptSpan: span, Enrichment: en}
	}
	return enriched, nil
}

// parseSpeaker accepts an integer, a numeric string, or a label such as
// "Speaker B" (letters map to 0, 1, 2, ...).
func parseSpeaker(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var label string
	if err := json.Unmarshal(raw, &label); err != nil {
		return 0
	}
	label = strings.TrimSpace(label)
	if v, err := strconv.Atoi(label); err == nil {
		return v
	}
	fields := strings.Fields(label)
	if len(fields) == 0 {
		return 0
	}
	last := fields[len(fields)-1]
	if v, err := strconv.Atoi(last); err == nil {
		return v
	}
	if r := []rune(last); len(r) == 1 && unicode.IsLetter(r[0]) {
		return int(unicode.ToUpper(r[0]) - 'A')
	}
	return 0
}
