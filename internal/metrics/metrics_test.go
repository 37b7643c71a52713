package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agentwatch/internal/model"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()
	a.CyclesTotal.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.CyclesTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CyclesTotal))
}

func TestObserveCycle(t *testing.T) {
	m := NewMetrics()
	snap := model.Snapshot{
		Agents: []model.Agent{
			{ID: "a", Status: model.StatusRunning},
			{ID: "b", Status: model.StatusRunning},
			{ID: "c", Status: model.StatusDone},
		},
		Stats: model.Stats{TotalTokens: 1500},
		Providers: []model.ProviderHealth{
			{ID: "claude", State: model.HealthConnected},
			{ID: "docker", State: model.HealthUnavailable},
		},
	}

	m.ObserveCycle(250*time.Millisecond, snap)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AgentsByStatus.WithLabelValues("running")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AgentsByStatus.WithLabelValues("done")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.AgentsByStatus.WithLabelValues("error")))
	assert.Equal(t, 1500.0, testutil.ToFloat64(m.TokensTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderHealth.WithLabelValues("claude", "connected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ProviderHealth.WithLabelValues("docker", "unavailable")))
}

func TestObserveCycle_ProviderStateReplaced(t *testing.T) {
	m := NewMetrics()
	m.ObserveCycle(time.Millisecond, model.Snapshot{Providers: []model.ProviderHealth{{ID: "p", State: model.HealthChecking}}})
	m.ObserveCycle(time.Millisecond, model.Snapshot{Providers: []model.ProviderHealth{{ID: "p", State: model.HealthConnected}}})

	assert.Equal(t, 1, testutil.CollectAndCount(m.ProviderHealth))
}

func TestAlertCounters(t *testing.T) {
	m := NewMetrics()
	m.AlertFired("agent_completed")
	m.AlertFired("agent_completed")
	m.AlertSuppressed("agent_completed", "cooldown")
	m.ChannelFailed("slack")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AlertsFired.WithLabelValues("agent_completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsSuppressed.WithLabelValues("agent_completed", "cooldown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChannelFailures.WithLabelValues("slack")))
}

func TestRequestTrackingMiddleware(t *testing.T) {
	m := NewMetrics()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	ts := httptest.NewServer(m.RequestTrackingMiddleware("/agents/{id}/conversation", handler))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/agents/abc/conversation")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/agents/{id}/conversation", "404")))
}

func TestHandler(t *testing.T) {
	m := NewMetrics()
	m.CyclesTotal.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "agentwatch_cycles_total 1"))
	assert.Contains(t, body, "go_goroutines")
}
