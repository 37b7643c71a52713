// Package relay forwards snapshots to an external edge relay so remote
// viewers can read them, and provides a minimal in-process relay endpoint.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"agentwatch/internal/model"
)

// Publisher posts every snapshot to the relay URL. Delivery is fire and
// forget: the response and any error are discarded after a debug log, and
// a failed post is never retried. The next cycle's snapshot supersedes it.
type Publisher struct {
	url    string
	token  string
	client *http.Client
	logger *slog.Logger
}

// NewPublisher returns nil when url is empty, so callers can treat a nil
// publisher as "relay disabled".
func NewPublisher(url, token string, logger *slog.Logger) *Publisher {
	if url == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

// Publish sends snap in the background and returns immediately.
func (p *Publisher) Publish(ctx context.Context, snap model.Snapshot) {
	if p == nil {
		return
	}
	body, err := json.Marshal(snap)
	if err != nil {
		p.logger.Debug("relay encode failed", "error", err)
		return
	}
	go p.post(context.WithoutCancel(ctx), body)
}

func (p *Publisher) post(ctx context.Context, body []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		p.logger.Debug("relay request failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("relay post failed", "url", p.url, "error", err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		p.logger.Debug("relay rejected snapshot", "url", p.url, "status", resp.StatusCode)
	}
}
