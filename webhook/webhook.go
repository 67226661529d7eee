// Package webhook posts signed batch lifecycle events.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Event types.
const (
	EventCompleted   = "batch.completed"
	EventAborted     = "batch.aborted"
	EventInterrupted = "batch.interrupted"
)

// SignatureHeader carries "sha256=<hex HMAC of the body>".
const SignatureHeader = "X-Postpulse-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"`
	Output    string `json:"output"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// EventType maps a final batch state to its event type.
func EventType(state string) string {
	switch state {
	case "aborted":
		return EventAborted
	case "interrupted":
		return EventInterrupted
	default:
		return EventCompleted
	}
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Notifier delivers events to one endpoint.
type Notifier struct {
	url    string
	secret string
	client *http.Client

	// delays precede each attempt; the first is normally zero.
	delays []time.Duration
}

// NewNotifier returns a notifier for url, or nil when url is empty. A nil
// Notifier drops every event.
func NewNotifier(url, secret string) *Notifier {
	if url == "" {
		return nil
	}
	return &Notifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		delays: []time.Duration{0, 1 * time.Second, 5 * time.Second},
	}
}

// Deliver sends a webhook event once.
// The request body is signed with HMAC-SHA256 if the secret is non-empty.
func (n *Notifier) Deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Postpulse-Webhook/1.0")
	if n.secret != "" {
		req.Header.Set(SignatureHeader, Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Notify delivers event, retrying on failure. It blocks so the event goes
// out before the process exits.
func (n *Notifier) Notify(ctx context.Context, event *Event) error {
	if n == nil {
		return nil
	}
	var err error
	for attempt, delay := range n.delays {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err = n.Deliver(ctx, event); err == nil {
			slog.Info("webhook delivered",
				"url", n.url,
				"event", event.Type,
				"attempt", attempt+1,
			)
			return nil
		}
		slog.Warn("webhook delivery failed",
			"url", n.url,
			"event", event.Type,
			"attempt", attempt+1,
			"error", err,
		)
	}
	slog.Error("webhook delivery exhausted all retries", "url", n.url, "event", event.Type)
	return err
}
