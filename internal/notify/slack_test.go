package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSlackPoster struct {
	channel string
	calls   int
	err     error
}

func (m *mockSlackPoster) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	m.calls++
	m.channel = channelID
	return channelID, "1234.5678", m.err
}

func TestSlackNotifier_Webhook(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewSlackNotifier(SlackSettings{WebhookURL: server.URL})
	err := n.Send(context.Background(), Message{Title: "Agent completed", Body: "builder finished"})
	require.NoError(t, err)
	assert.Equal(t, "*Agent completed*\nbuilder finished", received["text"])
}

func TestSlackNotifier_WebhookError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := NewSlackNotifier(SlackSettings{WebhookURL: server.URL})
	assert.Error(t, n.Send(context.Background(), Message{Title: "x"}))
}

func TestSlackNotifier_MissingURL(t *testing.T) {
	n := NewSlackNotifier(SlackSettings{})
	assert.Error(t, n.Send(context.Background(), Message{Title: "x"}))
}

func TestSlackNotifier_Bot(t *testing.T) {
	n := NewSlackNotifier(SlackSettings{Channel: "#alerts"})
	mock := &mockSlackPoster{}
	n.api = mock

	require.NoError(t, n.Send(context.Background(), Message{Title: "x"}))
	assert.Equal(t, 1, mock.calls)
	assert.Equal(t, "#alerts", mock.channel)

	mock.err = errors.New("channel_not_found")
	assert.Error(t, n.Send(context.Background(), Message{Title: "x"}))
}

func TestSlackNotifier_DefaultChannel(t *testing.T) {
	n := NewSlackNotifier(SlackSettings{Token: "xoxb-test"})
	assert.Equal(t, "#general", n.ChannelID)
	assert.NotNil(t, n.api)
}
