package collab

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"dubsync/internal/config"
	"dubsync/internal/services"
)

// NewClient builds an OpenAI client from configuration.
func NewClient(cfg *config.Config) (*openai.Client, error) {
	if err := cfg.RequireOpenAI(); err != nil {
		return nil, err
	}
	clientCfg := openai.DefaultConfig(cfg.OpenAI.APIKey)
	if base := strings.TrimSpace(cfg.OpenAI.BaseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.OpenAITimeout()}
	return openai.NewClientWithConfig(clientCfg), nil
}

// classify tags an OpenAI error with the matching services marker.
func classify(ctx context.Context, stage, op string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return services.Wrap(services.ErrCancelled, stage, op, "", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, stage, op, "", err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, stage, op, "credentials rejected", err)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return services.Wrap(services.ErrTimeout, stage, op, "", err)
		case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
			return services.Wrap(services.ErrValidation, stage, op, "request rejected", err)
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusUnauthorized {
		return services.Wrap(services.ErrConfiguration, stage, op, "credentials rejected", err)
	}
	return services.Wrap(services.ErrUpstream, stage, op, "", err)
}

func msToSeconds(ms float64) float64 {
	return ms / float64(time.Second/time.Millisecond)
}
