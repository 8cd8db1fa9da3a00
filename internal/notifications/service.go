package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dubsync/internal/config"
)

const userAgent = "dubsync/0.1"

// Event names a notification kind.
type Event string

const (
	EventJobCompleted             Event = "job_completed"
	EventJobCompletedWithFailures Event = "job_completed_with_failures"
	EventJobFailed                Event = "job_failed"
	EventJobCancelled             Event = "job_cancelled"
	EventError                    Event = "error"
	EventTest                     Event = "test"
)

// Payload carries event fields. Values are rendered with %v.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	if !strings.Contains(topic, "://") {
		topic = "https://ntfy.sh/" + strings.TrimPrefix(topic, "/")
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:      topic,
		client:        &http.Client{Timeout: timeout},
		jobCompletion: cfg.Notifications.JobCompletion,
		errors:        cfg.Notifications.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint      string
	client        *http.Client
	jobCompletion bool
	errors        bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, p Payload) (message, bool) {
	switch event {
	case EventJobCompleted:
		if !n.jobCompletion {
			return message{}, false
		}
		return message{
			title: "dubsync - Job Complete",
			body:  fmt.Sprintf("✅ %s dubbed: %s segments", p.str("source"), p.str("segments")),
			tags:  []string{"dubsync", "job", "completed"},
		}, true
	case EventJobCompletedWithFailures:
		if !n.jobCompletion {
			return message{}, false
		}
		return message{
			title: "dubsync - Job Complete (with failures)",
			body:  fmt.Sprintf("⚠️ %s: %s ready, %s failed", p.str("source"), p.str("ready"), p.str("failed")),
			tags:  []string{"dubsync", "job", "partial"},
		}, true
	case EventJobFailed, EventError:
		if !n.errors {
			return message{}, false
		}
		var b strings.Builder
		b.WriteString("❌ Error")
		if label := p.str("context"); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		if detail := p.str("error"); detail != "" {
			b.WriteString(detail)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "dubsync - Error",
			body:     b.String(),
			tags:     []string{"dubsync", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "dubsync - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"dubsync", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (p Payload) str(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	if err, ok := v.(error); ok {
		return strings.TrimSpace(err.Error())
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
