package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTwilioBaseURL = "https://api.twilio.com"

// SMSNotifier sends text messages through the Twilio REST API.
type SMSNotifier struct {
	settings SMSSettings
	Client   *http.Client
}

// NewSMSNotifier creates a new SMSNotifier.
func NewSMSNotifier(s SMSSettings) *SMSNotifier {
	if s.BaseURL == "" {
		s.BaseURL = defaultTwilioBaseURL
	}
	return &SMSNotifier{
		settings: s,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *SMSNotifier) Name() string { return ChannelSMS }

// Send posts the message text to the Messages resource of the account.
func (n *SMSNotifier) Send(ctx context.Context, msg Message) error {
	s := n.settings
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(s.BaseURL, "/"), url.PathEscape(s.AccountSID))

	form := url.Values{}
	form.Set("To", s.To)
	form.Set("From", s.From)
	form.Set("Body", msg.Text())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create sms request: %w", err)
	}
	req.SetBasicAuth(s.AccountSID, s.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send sms notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(ChannelSMS, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return nil
}
