package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"agentwatch/internal/db"
	"agentwatch/internal/model"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCmd(t *testing.T) {
	isolate(t)
	out, err := executeCommand(rootCmd, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "agentwatch version "+version)
	assert.Contains(t, out, "Go Version:")
}

func TestStateCmd(t *testing.T) {
	isolate(t)
	snap := model.Snapshot{
		Agents: []model.Agent{{ID: "claude-s1", Name: "claude: fix-login", Status: model.StatusRunning,
			Location: model.LocationLocal, Tokens: 1200, Elapsed: "3m 0s", Task: "Fix login"}},
		Providers: []model.ProviderHealth{{ID: "claudelog", State: model.HealthConnected, AgentCount: 1, Message: "Connected, 1 session"}},
		Stats:     model.Stats{Total: 1, Active: 1, TotalTokens: 1200, EstimatedCost: 0.0036},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/state", r.URL.Path)
		json.NewEncoder(w).Encode(snap)
	}))
	defer srv.Close()

	out, err := executeCommand(rootCmd, "state", "--url", srv.URL+"/")
	require.NoError(t, err)
	assert.Contains(t, out, "claude: fix-login")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "Connected, 1 session")
	assert.Contains(t, out, "1 agents, 1 active, 0 done, 0 errors, 1200 tokens, $0.00 estimated")
}

func TestStateCmd_ServerError(t *testing.T) {
	isolate(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := executeCommand(rootCmd, "state", "--url", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestConversationCmd(t *testing.T) {
	isolate(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/agents/claude-s1/conversation", r.URL.Path)
		json.NewEncoder(w).Encode(conversationResponse{
			AgentID: "claude-s1",
			Turns: []model.ConversationTurn{
				{Role: "user", Content: "fix the login test"},
				{Role: "assistant", Content: "Fixed it."},
			},
		})
	}))
	defer srv.Close()

	out, err := executeCommand(rootCmd, "conversation", "claude-s1", "--url", srv.URL, "--style", "notty")
	require.NoError(t, err)
	assert.Contains(t, out, "fix the login test")
	assert.Contains(t, out, "Fixed it.")
}

func TestConversationCmd_RequiresID(t *testing.T) {
	isolate(t)
	_, err := executeCommand(rootCmd, "conversation")
	assert.Error(t, err)
}

func routeErrorsToWebhook(url string) {
	viper.Set("channels.webhook.url", url)
	viper.Set("alerts.rules", []map[string]any{
		{"event": "agent_error", "enabled": true, "channels": []string{"webhook"}},
	})
}

func TestAlertsTestCmd(t *testing.T) {
	isolate(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	routeErrorsToWebhook(srv.URL)

	out, err := executeCommand(rootCmd, "alerts", "test", "agent_error")
	require.NoError(t, err)
	assert.Contains(t, out, "OK    webhook")
	assert.Equal(t, int32(1), hits.Load())
}

func TestAlertsTestCmd_Failures(t *testing.T) {
	isolate(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	routeErrorsToWebhook(srv.URL)

	out, err := executeCommand(rootCmd, "alerts", "test", "agent_error")
	require.Error(t, err)
	assert.Contains(t, out, "FAIL  webhook")
	assert.Contains(t, err.Error(), "1 of 1 channels failed")
}

func TestAlertsTestCmd_Validation(t *testing.T) {
	isolate(t)

	_, err := executeCommand(rootCmd, "alerts", "test", "agent_exploded")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event")

	// default rules route nowhere
	_, err = executeCommand(rootCmd, "alerts", "test", "agent_completed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no channels are routed")

	out, err := executeCommand(rootCmd, "alerts", "test", "agent_completed", "--channel", "discord")
	require.Error(t, err)
	assert.Contains(t, out, `FAIL  discord: channel "discord" is not configured`)
}

func TestAlertsHistoryCmd(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "history.db")

	store, err := db.NewStore(db.StoreConfig{Type: "sqlite", ConnectionString: path})
	require.NoError(t, err)
	require.NoError(t, store.RecordAlert(context.Background(), model.AlertRecord{
		ID: "a1", Event: "agent_error", Entity: "claude-s1", Title: "claude: fix-login failed",
		Channels: []string{"slack", "webhook"}, Failed: []string{"slack"}, FiredAt: time.Now(),
	}))
	require.NoError(t, store.Close())

	viper.Set("history.type", "sqlite")
	viper.Set("history.dsn", path)

	out, err := executeCommand(rootCmd, "alerts", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "claude: fix-login failed")
	assert.Contains(t, out, "slack,webhook")

	out, err = executeCommand(rootCmd, "alerts", "history", "--since", "2020-01-01")
	require.NoError(t, err)
	assert.Contains(t, out, "claude: fix-login failed")
}

func TestAlertsHistoryCmd_Since(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "history.db")

	store, err := db.NewStore(db.StoreConfig{Type: "sqlite", ConnectionString: path})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.RecordAlert(ctx, model.AlertRecord{ID: "old", Event: "agent_error", Title: "old failure", FiredAt: time.Now().Add(-72 * time.Hour)}))
	require.NoError(t, store.RecordAlert(ctx, model.AlertRecord{ID: "new", Event: "agent_error", Title: "new failure", FiredAt: time.Now().Add(-time.Hour)}))
	require.NoError(t, store.Close())

	viper.Set("history.dsn", path)

	out, err := executeCommand(rootCmd, "alerts", "history", "--since", "1d")
	require.NoError(t, err)
	assert.Contains(t, out, "new failure")
	assert.NotContains(t, out, "old failure")
	assert.Contains(t, out, "1h ago")

	_, err = executeCommand(rootCmd, "alerts", "history", "--since", "soon")
	assert.Error(t, err)
}

func TestAlertsHistoryCmd_EmptyAndDisabled(t *testing.T) {
	dir := isolate(t)
	viper.Set("history.dsn", filepath.Join(dir, "empty.db"))

	out, err := executeCommand(rootCmd, "alerts", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No alerts have fired yet.")

	viper.Set("history.type", "none")
	out, err = executeCommand(rootCmd, "alerts", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "Alert history is disabled")
}

func TestSourcesCmd(t *testing.T) {
	dir := isolate(t)
	procRoot := filepath.Join(dir, "proc")
	require.NoError(t, os.MkdirAll(filepath.Join(procRoot, "4242"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(procRoot, "4242", "cmdline"), []byte("claude\x00--resume\x00"), 0644))
	logRoot := filepath.Join(dir, "projects")
	require.NoError(t, os.MkdirAll(logRoot, 0755))

	viper.Set("sources.group", "local")
	viper.Set("sources.procscan.proc_root", procRoot)
	viper.Set("sources.claudelog.root", logRoot)

	out, err := executeCommand(rootCmd, "sources")
	require.NoError(t, err)
	assert.Contains(t, out, "procscan")
	assert.Contains(t, out, "Connected, 1 session")
	assert.Contains(t, out, "Connected, no active sessions")
	assert.Contains(t, out, "1 agents found")
	assert.NotContains(t, out, "Errors:")
}

func TestSourcesCmd_ReportsErrors(t *testing.T) {
	dir := isolate(t)
	viper.Set("sources.group", "local")
	viper.Set("sources.procscan.enabled", false)
	viper.Set("sources.claudelog.root", filepath.Join(dir, "missing"))

	out, err := executeCommand(rootCmd, "sources")
	require.NoError(t, err)
	assert.Contains(t, out, "Errors:")
	assert.Contains(t, out, "claudelog: claudelog: stat ")
	assert.Contains(t, out, "no such file or directory")
	assert.Contains(t, out, "0 agents found")
}

func TestInvalidConfigExits(t *testing.T) {
	isolate(t)
	viper.Set("port", 70000)

	exited := false
	oldExit := exit
	exit = func(code int) { exited = code != 0 }
	defer func() { exit = oldExit }()

	initConfig()
	assert.True(t, exited)
}
