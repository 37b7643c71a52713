// Package alert turns state transitions into notifications, with per-event
// cooldown and best-effort delivery to every configured channel.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"agentwatch/internal/model"
	"agentwatch/internal/notify"

	"github.com/google/uuid"
)

// DefaultCooldown is the minimum time between two firings of the same event
// for the same entity.
const DefaultCooldown = 60 * time.Second

// DefaultSendTimeout bounds one channel delivery. A channel still running
// after it is reported failed and no longer waited for.
const DefaultSendTimeout = 15 * time.Second

// Recorder persists fired alerts.
type Recorder interface {
	RecordAlert(ctx context.Context, rec model.AlertRecord) error
}

// Observer records alert metrics.
type Observer interface {
	AlertFired(event string)
	AlertSuppressed(event, reason string)
	ChannelFailed(channel string)
}

type cooldownKey struct {
	event  EventKind
	entity string
}

// Engine diffs each cycle's state against the previous one and fires alerts.
// It owns its own previous-state maps, independent of the aggregator.
type Engine struct {
	channels    map[string]notify.Channel
	settings    func() Settings
	cooldown    time.Duration
	sendTimeout time.Duration
	stateTTL    time.Duration
	now         func() time.Time
	logger      *slog.Logger
	recorder    Recorder
	observer    Observer

	mu         sync.Mutex
	prevStatus map[string]model.Status
	prevHealth map[string]model.HealthState
	lastSeen   map[string]time.Time
	cooldowns  map[cooldownKey]time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithCooldown sets the minimum gap between firings per event and entity.
func WithCooldown(d time.Duration) Option {
	return func(e *Engine) { e.cooldown = d }
}

// WithSendTimeout bounds each channel delivery. Non-positive values keep
// the default.
func WithSendTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.sendTimeout = d
		}
	}
}

// WithStateTTL evicts previous-status entries for agents not seen for d.
func WithStateTTL(d time.Duration) Option {
	return func(e *Engine) { e.stateTTL = d }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRecorder persists every fired alert.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithObserver reports alert delivery outcomes.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// NewEngine creates an Engine. settings is called once per check so rule
// changes take effect on the next cycle.
func NewEngine(channels map[string]notify.Channel, settings func() Settings, opts ...Option) *Engine {
	e := &Engine{
		channels:    channels,
		settings:    settings,
		cooldown:    DefaultCooldown,
		sendTimeout: DefaultSendTimeout,
		now:         time.Now,
		logger:      slog.Default(),
		prevStatus:  make(map[string]model.Status),
		prevHealth:  make(map[string]model.HealthState),
		lastSeen:    make(map[string]time.Time),
		cooldowns:   make(map[cooldownKey]time.Time),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Check detects alertable transitions in the given state and fires the
// resulting alerts. It never panics and never returns an error.
func (e *Engine) Check(ctx context.Context, agents []model.Agent, providers []model.ProviderHealth) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("alert check failed", "panic", r)
		}
	}()

	for _, ev := range e.detect(agents, providers) {
		e.Fire(ctx, ev)
	}
}

func (e *Engine) detect(agents []model.Agent, providers []model.ProviderHealth) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	var events []Event

	for _, ag := range agents {
		name := ag.Name
		if name == "" {
			name = ag.ID
		}
		prev, seen := e.prevStatus[ag.ID]
		e.prevStatus[ag.ID] = ag.Status
		e.lastSeen[ag.ID] = now

		switch {
		case !seen:
			if ag.Status.Active() {
				events = append(events, Event{
					Kind:   EventAgentStarted,
					Entity: name,
					Title:  "Agent started",
					Body:   describe(name, ag, "started"),
				})
			}
		case prev == ag.Status:
		case ag.Status == model.StatusDone:
			events = append(events, Event{
				Kind:   EventAgentCompleted,
				Entity: name,
				Title:  "Agent completed",
				Body:   describe(name, ag, "completed"),
			})
		case ag.Status == model.StatusError:
			events = append(events, Event{
				Kind:   EventAgentError,
				Entity: name,
				Title:  "Agent error",
				Body:   describe(name, ag, "reported an error"),
			})
		}
	}

	for _, h := range providers {
		prev, seen := e.prevHealth[h.ID]
		e.prevHealth[h.ID] = h.State
		if seen && prev != model.HealthDegraded && h.State == model.HealthDegraded {
			events = append(events, Event{
				Kind:   EventProviderDegraded,
				Entity: h.Name,
				Title:  "Provider degraded",
				Body:   fmt.Sprintf("%s is degraded: %s", h.Name, h.Message),
			})
		}
	}

	e.gcLocked(now)
	return events
}

func describe(name string, ag model.Agent, verb string) string {
	body := fmt.Sprintf("%s %s", name, verb)
	if ag.Task != "" {
		body += ": " + ag.Task
	}
	if ag.Source != "" {
		body += fmt.Sprintf(" (%s)", ag.Source)
	}
	return body
}

// gcLocked drops cooldown entries that can no longer suppress anything and
// previous-status entries for long-gone agents.
func (e *Engine) gcLocked(now time.Time) {
	for k, fired := range e.cooldowns {
		if now.Sub(fired) >= e.cooldown {
			delete(e.cooldowns, k)
		}
	}
	if e.stateTTL <= 0 {
		return
	}
	for id, seen := range e.lastSeen {
		if now.Sub(seen) >= e.stateTTL {
			delete(e.lastSeen, id)
			delete(e.prevStatus, id)
		}
	}
}

// Fire delivers ev if alerting is enabled, its rule is enabled with at least
// one channel, and the (event, entity) pair is outside its cooldown. It
// reports whether the alert was dispatched.
func (e *Engine) Fire(ctx context.Context, ev Event) bool {
	settings := e.settings()
	if !settings.Enabled {
		e.suppressed(ev, "disabled")
		return false
	}
	rule, ok := settings.Rule(ev.Kind)
	if !ok || !rule.Enabled || len(rule.Channels) == 0 {
		e.suppressed(ev, "no_rule")
		return false
	}

	now := e.now()
	key := cooldownKey{event: ev.Kind, entity: ev.Entity}

	e.mu.Lock()
	if last, ok := e.cooldowns[key]; ok && now.Sub(last) < e.cooldown {
		e.mu.Unlock()
		e.suppressed(ev, "cooldown")
		return false
	}
	e.cooldowns[key] = now
	e.mu.Unlock()

	failures := e.Dispatch(ctx, rule.Channels, notify.Message{Title: ev.Title, Body: ev.Body})

	if e.observer != nil {
		e.observer.AlertFired(string(ev.Kind))
	}
	e.logger.Info("alert fired", "event", ev.Kind, "entity", ev.Entity, "channels", rule.Channels)

	if e.recorder != nil {
		rec := model.AlertRecord{
			ID:       uuid.NewString(),
			Event:    string(ev.Kind),
			Entity:   ev.Entity,
			Title:    ev.Title,
			Body:     ev.Body,
			Channels: rule.Channels,
			FiredAt:  now,
		}
		for name := range failures {
			rec.Failed = append(rec.Failed, name)
		}
		sort.Strings(rec.Failed)
		if err := e.recorder.RecordAlert(ctx, rec); err != nil {
			e.logger.Warn("failed to record alert", "event", ev.Kind, "error", err)
		}
	}
	return true
}

func (e *Engine) suppressed(ev Event, reason string) {
	if e.observer != nil {
		e.observer.AlertSuppressed(string(ev.Kind), reason)
	}
	e.logger.Debug("alert suppressed", "event", ev.Kind, "entity", ev.Entity, "reason", reason)
}

// Dispatch sends msg to every named channel concurrently and waits for all
// of them, each for at most the send timeout. One channel's failure never
// prevents another's attempt; failures are returned per channel name and are
// otherwise only logged.
func (e *Engine) Dispatch(ctx context.Context, names []string, msg notify.Message) map[string]error {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failures = make(map[string]error)
	)
	fail := func(name string, err error) {
		mu.Lock()
		failures[name] = err
		mu.Unlock()
		if e.observer != nil {
			e.observer.ChannelFailed(name)
		}
		e.logger.Warn("alert delivery failed", "channel", name, "error", err)
	}

	for _, name := range names {
		ch, ok := e.channels[name]
		if !ok {
			fail(name, fmt.Errorf("channel %q is not configured", name))
			continue
		}
		wg.Add(1)
		go func(name string, ch notify.Channel) {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, e.sendTimeout)
			defer cancel()

			// buffered so a late Send can finish after we stop waiting
			done := make(chan error, 1)
			go func() {
				defer func() {
					if r := recover(); r != nil {
						done <- fmt.Errorf("panic: %v", r)
					}
				}()
				done <- ch.Send(sendCtx, msg)
			}()

			select {
			case err := <-done:
				if err != nil {
					fail(name, err)
				}
			case <-sendCtx.Done():
				fail(name, fmt.Errorf("delivery abandoned: %w", sendCtx.Err()))
			}
		}(name, ch)
	}
	wg.Wait()
	return failures
}
