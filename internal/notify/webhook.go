package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookNotifier posts the message as JSON to an arbitrary URL.
type WebhookNotifier struct {
	URL    string
	Token  string
	Client *http.Client
}

// NewWebhookNotifier creates a new WebhookNotifier.
func NewWebhookNotifier(url, token string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:    url,
		Token:  token,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookNotifier) Name() string { return ChannelWebhook }

// Send posts {"title": ..., "body": ...} to the configured URL.
func (w *WebhookNotifier) Send(ctx context.Context, msg Message) error {
	if w.URL == "" {
		return fmt.Errorf("webhook URL is not configured")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.Token != "" {
		req.Header.Set("Authorization", "Bearer "+w.Token)
	}

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(ChannelWebhook, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return nil
}
