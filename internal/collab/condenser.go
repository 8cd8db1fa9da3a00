package collab

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"dubsync/internal/language"
	"dubsync/internal/services"
)

const condensePrompt = `The following %s text is too long for its video segment.
Rewrite it so it can be spoken in about %.1f seconds while keeping the core meaning.
Use concise vocabulary. Reply with only the shortened text.`

// Condenser asks the chat model for a shorter translation.
type Condenser struct {
	client chatCompleter
	model  string
}

// NewCondenser returns a Condenser using model.
func NewCondenser(client *openai.Client, model string) *Condenser {
	return &Condenser{client: client, model: model}
}

// Condense returns text rewritten to fit targetMS of speech.
func (c *Condenser) Condense(ctx context.Context, text, targetLang string, targetMS float64) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(condensePrompt, language.Label(targetLang), msToSeconds(targetMS))},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", classify(ctx, "condense", "chat-completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", services.Wrap(services.ErrUpstream, "condense", "parse", "no choices in response", nil)
	}
	out := strings.Trim(strings.TrimSpace(resp.Choices[0].Message.Content), `"`)
	if out == "" {
		return "", services.Wrap(services.ErrUpstream, "condense", "parse", "empty reply", nil)
	}
	return out, nil
}
