// Package notify delivers escalation messages to humans.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/siphio/piv-warden/internal/ports/secondary"
)

const defaultTimeout = 10 * time.Second

// WebhookNotifier implements secondary.Notifier by POSTing a JSON
// payload to a webhook URL. The payload shape matches the common
// incoming-webhook convention, so Slack-style endpoints work unchanged.
type WebhookNotifier struct {
	httpClient *http.Client
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier() *WebhookNotifier {
	return &WebhookNotifier{
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

type webhookPayload struct {
	Text string `json:"text"`
}

// Send posts text to the destination URL.
func (n *WebhookNotifier) Send(ctx context.Context, destination, text string) error {
	if destination == "" {
		return fmt.Errorf("no webhook destination configured")
	}

	body, err := json.Marshal(webhookPayload{Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Ensure WebhookNotifier implements the interface
var _ secondary.Notifier = (*WebhookNotifier)(nil)
