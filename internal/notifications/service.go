package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"meetwatch/internal/config"
)

const userAgent = "meetwatch/0.1"

// Event identifies a notification template.
type Event string

const (
	EventJoined       Event = "joined"
	EventWaiting      Event = "waiting"
	EventMention      Event = "mention"
	EventQuestion     Event = "question"
	EventSessionEnded Event = "session_ended"
	EventError        Event = "error"
	EventTest         Event = "test"
)

// Payload carries template values keyed by name.
type Payload map[string]any

// Service publishes meeting events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService returns an ntfy-backed service, or a no-op when no topic is
// configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		mentionsOnly: cfg.Notifications.MentionsOnly,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	mentionsOnly bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n.mentionsOnly && event != EventMention && event != EventQuestion && event != EventTest {
		return nil
	}
	msg, ok := render(event, payload)
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}
	return n.send(ctx, msg)
}

func render(event Event, payload Payload) (message, bool) {
	session := payload.text("session")
	switch event {
	case EventJoined:
		return message{
			title: "meetwatch - Joined",
			body:  fmt.Sprintf("Joined %s, transcribing", session),
			tags:  []string{"meetwatch", "joined"},
		}, true
	case EventWaiting:
		return message{
			title: "meetwatch - Waiting",
			body:  fmt.Sprintf("Asked to join %s, not admitted yet", session),
			tags:  []string{"meetwatch", "waiting"},
		}, true
	case EventMention:
		return message{
			title:    "meetwatch - Mentioned",
			body:     fmt.Sprintf("%s: %s", session, payload.text("text")),
			tags:     []string{"meetwatch", "mention"},
			priority: "high",
		}, true
	case EventQuestion:
		return message{
			title:    "meetwatch - Question",
			body:     fmt.Sprintf("%s: %s", session, payload.text("text")),
			tags:     []string{"meetwatch", "question"},
			priority: "high",
		}, true
	case EventSessionEnded:
		return message{
			title: "meetwatch - Session Ended",
			body:  fmt.Sprintf("%s ended after %s (%d lines, %d mentions)", session, payload.text("duration"), payload.number("lines"), payload.number("mentions")),
			tags:  []string{"meetwatch", "ended"},
		}, true
	case EventError:
		return message{
			title:    "meetwatch - Error",
			body:     fmt.Sprintf("Error with %s: %s", payload.text("context"), payload.text("error")),
			tags:     []string{"meetwatch", "error"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title: "meetwatch - Test",
			body:  "Notifications are working",
			tags:  []string{"meetwatch", "test"},
		}, true
	}
	return message{}, false
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
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
	if msg.priority != "" {
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

func (p Payload) text(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	default:
		return fmt.Sprint(v)
	}
}

func (p Payload) number(key string) int {
	if p == nil {
		return 0
	}
	if v, ok := p[key].(int); ok {
		return v
	}
	return 0
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
