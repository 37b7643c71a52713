package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/slack-go/slack"
)

// slackPoster is the subset of the Slack API client used for bot delivery.
type slackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier sends notifications to Slack, through the bot API when a
// token is configured and through an incoming webhook otherwise.
type SlackNotifier struct {
	WebhookURL string
	ChannelID  string
	Client     *http.Client

	api slackPoster
}

// NewSlackNotifier creates a new SlackNotifier.
func NewSlackNotifier(s SlackSettings) *SlackNotifier {
	n := &SlackNotifier{
		WebhookURL: s.WebhookURL,
		ChannelID:  s.Channel,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
	if s.Token != "" {
		n.api = slack.New(s.Token)
	}
	if n.ChannelID == "" {
		n.ChannelID = "#general"
	}
	return n
}

func (s *SlackNotifier) Name() string { return ChannelSlack }

// Send delivers the message to Slack.
func (s *SlackNotifier) Send(ctx context.Context, msg Message) error {
	text := fmt.Sprintf("*%s*\n%s", msg.Title, msg.Body)

	if s.api != nil {
		_, _, err := s.api.PostMessageContext(ctx, s.ChannelID, slack.MsgOptionText(text, false))
		if err != nil {
			return fmt.Errorf("failed to send slack notification: %w", err)
		}
		return nil
	}

	if s.WebhookURL == "" {
		return fmt.Errorf("slack webhook URL is not configured")
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.WebhookURL, client, &slack.WebhookMessage{Text: text}); err != nil {
		return fmt.Errorf("failed to send slack notification: %w", err)
	}
	return nil
}
