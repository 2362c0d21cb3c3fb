package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"matte/internal/config"
)

const userAgent = "Matte-Go/0.1.0"

// Event identifies a batch milestone worth notifying about.
type Event string

const (
	// EventBatchStarted fires when a batch begins. Suppressed by the ntfy
	// notifier; watch mode would turn it into noise.
	EventBatchStarted Event = "batch_started"
	// EventBatchCompleted fires when a batch runs to the end of its items.
	EventBatchCompleted Event = "batch_completed"
	// EventBatchInterrupted fires when a batch stops early on cancellation.
	EventBatchInterrupted Event = "batch_interrupted"
	// EventError fires for fatal configuration failures.
	EventError Event = "error"
	// EventTest verifies the notification path end to end.
	EventTest Event = "test"
)

// Payload carries preformatted fields for message rendering.
type Payload map[string]string

// Service is the notification surface exposed to commands.
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

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

// Publish renders the event and posts it. Events without a rendering are
// suppressed without error.
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func render(event Event, payload Payload) (message, bool) {
	get := func(key, fallback string) string {
		if value, ok := payload[key]; ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
		return fallback
	}

	switch event {
	case EventBatchCompleted:
		succeeded := get("succeeded", "0")
		failed := get("failed", "0")
		duration := get("duration", "0s")
		if failed == "0" {
			return message{
				title: "Matte - Batch Complete",
				body:  fmt.Sprintf("✅ Batch complete: %s images processed in %s", succeeded, duration),
				tags:  []string{"matte", "batch", "completed"},
			}, true
		}
		return message{
			title:    "Matte - Batch Complete (with errors)",
			body:     fmt.Sprintf("Batch complete: %s succeeded, %s failed in %s", succeeded, failed, duration),
			tags:     []string{"matte", "batch", "completed"},
			priority: "high",
		}, true
	case EventBatchInterrupted:
		return message{
			title: "Matte - Batch Interrupted",
			body: fmt.Sprintf("Batch stopped early: %s of %s items finished",
				get("finished", "0"), get("total", "0")),
			tags: []string{"matte", "batch", "interrupted"},
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := get("context", ""); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		builder.WriteString(get("error", "unknown"))
		return message{
			title:    "Matte - Error",
			body:     builder.String(),
			tags:     []string{"matte", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Matte - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"matte", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
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
