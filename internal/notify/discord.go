package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	awerrors "agentwatch/internal/errors"
)

// Discord rejects embeds whose fields exceed these lengths.
const (
	discordTitleLimit       = 256
	discordDescriptionLimit = 4096
	discordEmbedColor       = 0xE67E22
)

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

type discordPayload struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

// DiscordNotifier posts alerts to a Discord webhook as a single embed.
type DiscordNotifier struct {
	WebhookURL string
	Client     *http.Client
	now        func() time.Time
}

// NewDiscordNotifier creates a new DiscordNotifier.
func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{
		WebhookURL: webhookURL,
		Client:     &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

func (n *DiscordNotifier) Name() string { return ChannelDiscord }

// Send posts the message to the configured Discord webhook.
func (n *DiscordNotifier) Send(ctx context.Context, msg Message) error {
	if n.WebhookURL == "" {
		return fmt.Errorf("discord webhook URL is not configured")
	}

	body, err := json.Marshal(discordPayload{
		Username: "agentwatch",
		Embeds: []discordEmbed{{
			Title:       awerrors.Truncate(msg.Title, discordTitleLimit),
			Description: awerrors.Truncate(msg.Body, discordDescriptionLimit),
			Color:       discordEmbedColor,
			Timestamp:   n.now().UTC().Format(time.RFC3339),
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send discord notification: %w", err)
	}
	defer resp.Body.Close()

	// webhooks answer 204 unless ?wait=true is set
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(ChannelDiscord, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return nil
}
