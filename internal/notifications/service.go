package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"deckhand/internal/config"
)

const userAgent = "Deckhand-Go/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventConnected    Event = "connected"
	EventDisconnected Event = "disconnected"
	EventCueFired     Event = "cue_fired"
	EventStopIssued   Event = "stop_issued"
	EventFormatReady  Event = "format_ready"
	EventFormatDone   Event = "format_done"
	EventError        Event = "error"
	EventTest         Event = "test"
)

// Payload carries the event's fields.
type Payload map[string]string

// Service defines the notification surface exposed to daemon components.
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
		enabled: map[Event]bool{
			EventConnected:    cfg.Notifications.Connection,
			EventDisconnected: cfg.Notifications.Connection,
			EventCueFired:     cfg.Notifications.Cue,
			EventStopIssued:   cfg.Notifications.Cue,
			EventFormatReady:  cfg.Notifications.Format,
			EventFormatDone:   cfg.Notifications.Format,
			EventError:        cfg.Notifications.Errors,
			EventTest:         true,
		},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, fields Payload) error {
	if !n.enabled[event] {
		return nil
	}
	data, ok := render(event, fields)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func render(event Event, fields Payload) (payload, bool) {
	device := field(fields, "device", "deck")
	switch event {
	case EventConnected:
		model := field(fields, "model", "unknown model")
		return payload{
			title:   "Deckhand - Connected",
			message: fmt.Sprintf("🎛️ Connected to %s (%s)", device, model),
			tags:    []string{"deckhand", "connection", "up"},
		}, true
	case EventDisconnected:
		message := fmt.Sprintf("🔌 Lost connection to %s", device)
		if reason := strings.TrimSpace(fields["error"]); reason != "" {
			message += ": " + reason
		}
		return payload{
			title:    "Deckhand - Disconnected",
			message:  message,
			tags:     []string{"deckhand", "connection", "down"},
			priority: "high",
		}, true
	case EventCueFired:
		return payload{
			title:   "Deckhand - Cue Fired",
			message: fmt.Sprintf("🎬 Fade fired on %s, out point %s", device, field(fields, "outPoint", "--:--:--:--")),
			tags:    []string{"deckhand", "cue", "fade"},
		}, true
	case EventStopIssued:
		message := fmt.Sprintf("⏹️ Stopped %s at out point %s", device, field(fields, "outPoint", "--:--:--:--"))
		data := payload{
			title:   "Deckhand - Stopped",
			message: message,
			tags:    []string{"deckhand", "cue", "stop"},
		}
		if reason := strings.TrimSpace(fields["error"]); reason != "" {
			data.title = "Deckhand - Stop Failed"
			data.message = fmt.Sprintf("❌ Automatic stop on %s failed: %s", device, reason)
			data.priority = "high"
		}
		return data, true
	case EventFormatReady:
		return payload{
			title:    "Deckhand - Format Ready",
			message:  fmt.Sprintf("⚠️ Format of %s prepared (%s), confirm to erase", device, field(fields, "filesystem", "exFAT")),
			tags:     []string{"deckhand", "format", "prepared"},
			priority: "high",
		}, true
	case EventFormatDone:
		return payload{
			title:   "Deckhand - Formatted",
			message: fmt.Sprintf("💾 Format of %s confirmed", device),
			tags:    []string{"deckhand", "format", "completed"},
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := strings.TrimSpace(fields["context"]); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		builder.WriteString(field(fields, "error", "unknown"))
		return payload{
			title:    "Deckhand - Error",
			message:  builder.String(),
			tags:     []string{"deckhand", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "Deckhand - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"deckhand", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func field(fields Payload, key, fallback string) string {
	if v := strings.TrimSpace(fields[key]); v != "" {
		return v
	}
	return fallback
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
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
