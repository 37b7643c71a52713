// Package notify delivers alert messages to external channels.
package notify

import (
	"context"
	"fmt"
	"sort"
)

// Channel names recognised in alert rules.
const (
	ChannelEmail   = "email"
	ChannelSMS     = "sms"
	ChannelWebhook = "webhook"
	ChannelSlack   = "slack"
	ChannelDiscord = "discord"
)

// KnownChannels lists every channel name a rule may reference.
var KnownChannels = []string{ChannelEmail, ChannelSMS, ChannelWebhook, ChannelSlack, ChannelDiscord}

// Message is the generic payload every channel receives.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Text renders the message as a single plain-text string.
func (m Message) Text() string {
	if m.Body == "" {
		return m.Title
	}
	return m.Title + ": " + m.Body
}

// Channel delivers a message to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Settings holds credentials for every channel. A channel is built only when
// its required fields are present.
type Settings struct {
	Webhook WebhookSettings `mapstructure:"webhook"`
	Slack   SlackSettings   `mapstructure:"slack"`
	Discord DiscordSettings `mapstructure:"discord"`
	Email   EmailSettings   `mapstructure:"email"`
	SMS     SMSSettings     `mapstructure:"sms"`
}

type WebhookSettings struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

type SlackSettings struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Token      string `mapstructure:"token"`
	Channel    string `mapstructure:"channel"`
}

type DiscordSettings struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

type EmailSettings struct {
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

type SMSSettings struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	From       string `mapstructure:"from"`
	To         string `mapstructure:"to"`
	BaseURL    string `mapstructure:"base_url"`
}

// BuildChannels constructs every channel whose settings are complete.
func BuildChannels(s Settings) map[string]Channel {
	channels := make(map[string]Channel)

	if s.Webhook.URL != "" {
		channels[ChannelWebhook] = NewWebhookNotifier(s.Webhook.URL, s.Webhook.Token)
	}
	if s.Slack.Token != "" || s.Slack.WebhookURL != "" {
		channels[ChannelSlack] = NewSlackNotifier(s.Slack)
	}
	if s.Discord.WebhookURL != "" {
		channels[ChannelDiscord] = NewDiscordNotifier(s.Discord.WebhookURL)
	}
	if s.Email.Host != "" && s.Email.From != "" && len(s.Email.To) > 0 {
		channels[ChannelEmail] = NewEmailNotifier(s.Email)
	}
	if s.SMS.AccountSID != "" && s.SMS.AuthToken != "" && s.SMS.From != "" && s.SMS.To != "" {
		channels[ChannelSMS] = NewSMSNotifier(s.SMS)
	}

	return channels
}

// Names returns the sorted names of the given channels.
func Names(channels map[string]Channel) []string {
	names := make([]string, 0, len(channels))
	for name := range channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsKnown reports whether name is a recognised channel.
func IsKnown(name string) bool {
	for _, c := range KnownChannels {
		if c == name {
			return true
		}
	}
	return false
}

func statusError(channel string, code int, status string) error {
	return fmt.Errorf("%s notification failed with status: %d %s", channel, code, status)
}
