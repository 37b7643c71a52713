package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMSNotifier_Send(t *testing.T) {
	var path, user, pass, body, to string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		user, pass, _ = r.BasicAuth()
		assert.NoError(t, r.ParseForm())
		body = r.PostForm.Get("Body")
		to = r.PostForm.Get("To")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	n := NewSMSNotifier(SMSSettings{
		AccountSID: "AC123",
		AuthToken:  "tok",
		From:       "+15550000000",
		To:         "+15551111111",
		BaseURL:    server.URL,
	})
	require.NoError(t, n.Send(context.Background(), Message{Title: "Agent completed", Body: "builder"}))

	assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", path)
	assert.Equal(t, "AC123", user)
	assert.Equal(t, "tok", pass)
	assert.Equal(t, "Agent completed: builder", body)
	assert.Equal(t, "+15551111111", to)
}

func TestSMSNotifier_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	n := NewSMSNotifier(SMSSettings{AccountSID: "AC1", BaseURL: server.URL})
	assert.Error(t, n.Send(context.Background(), Message{Title: "x"}))
}
