package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"agentwatch/internal/model"
	"agentwatch/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	name  string
	err   error
	delay time.Duration
	panic bool

	mu   sync.Mutex
	sent []notify.Message
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(ctx context.Context, msg notify.Message) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panic {
		panic("channel bug")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.err
}

func (f *fakeChannel) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type memRecorder struct {
	records []model.AlertRecord
}

func (m *memRecorder) RecordAlert(ctx context.Context, rec model.AlertRecord) error {
	m.records = append(m.records, rec)
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func allRules(channels ...string) func() Settings {
	return func() Settings {
		s := Settings{Enabled: true}
		for _, ev := range AllEvents {
			s.Rules = append(s.Rules, Rule{Event: ev, Enabled: true, Channels: channels})
		}
		return s
	}
}

func agent(id string, status model.Status) model.Agent {
	return model.Agent{ID: id, Name: id, Status: status, Source: "test"}
}

func newTestEngine(t *testing.T, settings func() Settings) (*Engine, *fakeChannel, *clock) {
	t.Helper()
	ch := &fakeChannel{name: notify.ChannelWebhook}
	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	e := NewEngine(map[string]notify.Channel{ch.name: ch}, settings, WithClock(clk.now))
	return e, ch, clk
}

func TestEngine_CompletedFiresOnceWithinCooldown(t *testing.T) {
	e, ch, clk := newTestEngine(t, allRules(notify.ChannelWebhook))
	ctx := context.Background()

	e.Check(ctx, []model.Agent{agent("x", model.StatusRunning)}, nil)
	require.Equal(t, 1, ch.count(), "agent started")

	e.Check(ctx, []model.Agent{agent("x", model.StatusDone)}, nil)
	require.Equal(t, 2, ch.count())
	assert.Equal(t, "Agent completed", ch.sent[1].Title)
	assert.Equal(t, "x completed (test)", ch.sent[1].Body)

	clk.t = clk.t.Add(10 * time.Second)
	e.Check(ctx, []model.Agent{agent("x", model.StatusRunning)}, nil)
	e.Check(ctx, []model.Agent{agent("x", model.StatusDone)}, nil)
	assert.Equal(t, 2, ch.count(), "repeat inside cooldown must be dropped")

	clk.t = clk.t.Add(DefaultCooldown)
	e.Check(ctx, []model.Agent{agent("x", model.StatusRunning)}, nil)
	e.Check(ctx, []model.Agent{agent("x", model.StatusDone)}, nil)
	assert.Equal(t, 3, ch.count())
}

func TestEngine_Transitions(t *testing.T) {
	tests := []struct {
		name   string
		prev   model.Status
		cur    model.Status
		expect string
	}{
		{"running to done", model.StatusRunning, model.StatusDone, "Agent completed"},
		{"running to error", model.StatusRunning, model.StatusError, "Agent error"},
		{"error to done", model.StatusError, model.StatusDone, "Agent completed"},
		{"running to paused", model.StatusRunning, model.StatusPaused, ""},
		{"done to running", model.StatusDone, model.StatusRunning, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ch, _ := newTestEngine(t, allRules(notify.ChannelWebhook))
			e.mu.Lock()
			e.prevStatus["x"] = tt.prev
			e.mu.Unlock()

			e.Check(context.Background(), []model.Agent{agent("x", tt.cur)}, nil)
			if tt.expect == "" {
				assert.Equal(t, 0, ch.count())
				return
			}
			require.Equal(t, 1, ch.count())
			assert.Equal(t, tt.expect, ch.sent[0].Title)
		})
	}
}

func TestEngine_StartedOnlyForNewActiveAgents(t *testing.T) {
	e, ch, _ := newTestEngine(t, allRules(notify.ChannelWebhook))
	e.Check(context.Background(), []model.Agent{
		agent("a", model.StatusRunning),
		agent("b", model.StatusThinking),
		agent("c", model.StatusDone),
		agent("d", model.StatusQueued),
	}, nil)
	assert.Equal(t, 2, ch.count())
}

func TestEngine_ProviderDegraded(t *testing.T) {
	e, ch, _ := newTestEngine(t, allRules(notify.ChannelWebhook))
	ctx := context.Background()
	h := model.ProviderHealth{ID: "p", Name: "Claude", State: model.HealthConnected}

	e.Check(ctx, nil, []model.ProviderHealth{h})
	assert.Equal(t, 0, ch.count())

	h.State = model.HealthDegraded
	h.Message = "Unexpected error"
	e.Check(ctx, nil, []model.ProviderHealth{h})
	require.Equal(t, 1, ch.count())
	assert.Equal(t, "Claude is degraded: Unexpected error", ch.sent[0].Body)

	e.Check(ctx, nil, []model.ProviderHealth{h})
	assert.Equal(t, 1, ch.count(), "degraded to degraded is not a transition")
}

func TestEngine_ProviderDegradedOnFirstObservationIsIgnored(t *testing.T) {
	e, ch, _ := newTestEngine(t, allRules(notify.ChannelWebhook))
	e.Check(context.Background(), nil, []model.ProviderHealth{{ID: "p", State: model.HealthDegraded}})
	assert.Equal(t, 0, ch.count())
}

func TestEngine_Gating(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
	}{
		{"globally disabled", Settings{Enabled: false, Rules: []Rule{{Event: EventAgentStarted, Enabled: true, Channels: []string{"webhook"}}}}},
		{"no rule", Settings{Enabled: true}},
		{"rule disabled", Settings{Enabled: true, Rules: []Rule{{Event: EventAgentStarted, Enabled: false, Channels: []string{"webhook"}}}}},
		{"no channels", Settings{Enabled: true, Rules: []Rule{{Event: EventAgentStarted, Enabled: true}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := tt.settings
			e, ch, _ := newTestEngine(t, func() Settings { return settings })
			e.Check(context.Background(), []model.Agent{agent("x", model.StatusRunning)}, nil)
			assert.Equal(t, 0, ch.count())

			e.mu.Lock()
			assert.Empty(t, e.cooldowns, "cooldown is only recorded when firing")
			e.mu.Unlock()
		})
	}
}

func TestEngine_SettingsReadEveryCheck(t *testing.T) {
	enabled := false
	e, ch, _ := newTestEngine(t, func() Settings {
		s := allRules(notify.ChannelWebhook)()
		s.Enabled = enabled
		return s
	})

	e.Check(context.Background(), []model.Agent{agent("a", model.StatusRunning)}, nil)
	enabled = true
	e.Check(context.Background(), []model.Agent{agent("a", model.StatusRunning), agent("b", model.StatusRunning)}, nil)
	assert.Equal(t, 1, ch.count())
}

func TestEngine_DispatchIsolatesChannelFailures(t *testing.T) {
	ok := &fakeChannel{name: "webhook", delay: 20 * time.Millisecond}
	bad := &fakeChannel{name: "sms", err: errors.New("twilio down")}
	boom := &fakeChannel{name: "email", panic: true}
	rec := &memRecorder{}

	e := NewEngine(map[string]notify.Channel{"webhook": ok, "sms": bad, "email": boom},
		allRules("sms", "email", "webhook", "slack"), WithRecorder(rec))

	assert.NotPanics(t, func() {
		e.Check(context.Background(), []model.Agent{agent("x", model.StatusRunning)}, nil)
	})
	assert.Equal(t, 1, ok.count())
	assert.Equal(t, 1, bad.count())

	require.Len(t, rec.records, 1)
	assert.Equal(t, "agent_started", rec.records[0].Event)
	assert.Equal(t, []string{"email", "slack", "sms"}, rec.records[0].Failed)
}

func TestEngine_DispatchConcurrent(t *testing.T) {
	a := &fakeChannel{name: "a", delay: 100 * time.Millisecond}
	b := &fakeChannel{name: "b", delay: 100 * time.Millisecond}
	e := NewEngine(map[string]notify.Channel{"a": a, "b": b}, allRules())

	start := time.Now()
	failures := e.Dispatch(context.Background(), []string{"a", "b"}, notify.Message{Title: "t"})
	assert.Empty(t, failures)
	assert.Less(t, time.Since(start), 190*time.Millisecond)
}

// stuckChannel ignores ctx and returns only when released.
type stuckChannel struct {
	name    string
	release chan struct{}
}

func (s *stuckChannel) Name() string { return s.name }

func (s *stuckChannel) Send(ctx context.Context, msg notify.Message) error {
	<-s.release
	return nil
}

func TestEngine_DispatchAbandonsStuckChannel(t *testing.T) {
	stuck := &stuckChannel{name: "email", release: make(chan struct{})}
	t.Cleanup(func() { close(stuck.release) })
	ok := &fakeChannel{name: "webhook"}
	rec := &memRecorder{}

	e := NewEngine(map[string]notify.Channel{"email": stuck, "webhook": ok},
		allRules("email", "webhook"), WithSendTimeout(50*time.Millisecond), WithRecorder(rec))

	start := time.Now()
	e.Check(context.Background(), []model.Agent{agent("x", model.StatusRunning)}, nil)
	assert.Less(t, time.Since(start), 2*time.Second)

	assert.Equal(t, 1, ok.count())
	require.Len(t, rec.records, 1)
	assert.Equal(t, []string{"email"}, rec.records[0].Failed)

	failures := e.Dispatch(context.Background(), []string{"email"}, notify.Message{Title: "t"})
	require.Contains(t, failures, "email")
	assert.ErrorIs(t, failures["email"], context.DeadlineExceeded)
}

type countingObserver struct {
	fired, suppressed, failed int
}

func (c *countingObserver) AlertFired(string)              { c.fired++ }
func (c *countingObserver) AlertSuppressed(string, string) { c.suppressed++ }
func (c *countingObserver) ChannelFailed(string)           { c.failed++ }

func TestEngine_Observer(t *testing.T) {
	obs := &countingObserver{}
	ch := &fakeChannel{name: "webhook"}
	e := NewEngine(map[string]notify.Channel{"webhook": ch}, allRules("webhook"), WithObserver(obs))

	e.Check(context.Background(), []model.Agent{agent("x", model.StatusRunning)}, nil)
	assert.True(t, e.Fire(context.Background(), Event{Kind: EventAgentError, Entity: "x"}))
	assert.False(t, e.Fire(context.Background(), Event{Kind: EventAgentError, Entity: "x"}))

	assert.Equal(t, 2, obs.fired)
	assert.Equal(t, 1, obs.suppressed)
}

func TestEngine_GC(t *testing.T) {
	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	ch := &fakeChannel{name: "webhook"}
	e := NewEngine(map[string]notify.Channel{"webhook": ch}, allRules("webhook"),
		WithClock(clk.now), WithStateTTL(time.Hour))

	e.Check(context.Background(), []model.Agent{agent("x", model.StatusRunning)}, nil)
	clk.t = clk.t.Add(2 * time.Hour)
	e.Check(context.Background(), nil, nil)

	e.mu.Lock()
	defer e.mu.Unlock()
	assert.Empty(t, e.cooldowns)
	assert.Empty(t, e.prevStatus)
}

func TestEngine_CheckRecoversPanics(t *testing.T) {
	e := NewEngine(nil, func() Settings { panic("bad config") })
	assert.NotPanics(t, func() {
		e.Check(context.Background(), []model.Agent{agent("x", model.StatusRunning)}, nil)
	})
}
