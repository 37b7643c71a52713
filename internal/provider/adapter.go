package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	apperrors "agentwatch/internal/errors"
	"agentwatch/internal/model"
)

const maxErrorSummary = 120

// Adapter wraps a Source with uniform failure capture, classification and
// health reporting. Refresh never returns an error and never panics.
type Adapter struct {
	src      Source
	fidelity Fidelity
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.RWMutex
	health    model.ProviderHealth
	agents    []model.Agent
	activity  []model.ActivityEvent
	lastError error
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTimeout bounds each Fetch call.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.timeout = d }
}

// WithLogger sets the logger used for refresh failures.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// NewAdapter creates an adapter in the checking state.
func NewAdapter(src Source, opts ...Option) *Adapter {
	a := &Adapter{
		src:    src,
		logger: slog.Default(),
		now:    time.Now,
	}
	if fs, ok := src.(FidelitySource); ok {
		a.fidelity = fs.Fidelity()
	}
	for _, opt := range opts {
		opt(a)
	}
	a.health = model.ProviderHealth{
		ID:      src.ID(),
		Name:    src.Name(),
		State:   model.HealthChecking,
		Message: "Checking " + src.Name() + "...",
	}
	return a
}

func (a *Adapter) ID() string   { return a.src.ID() }
func (a *Adapter) Name() string { return a.src.Name() }

// Fidelity returns the declared fidelity of the wrapped source.
func (a *Adapter) Fidelity() Fidelity { return a.fidelity }

// Health returns the current health record.
func (a *Adapter) Health() model.ProviderHealth {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.health
}

// Agents returns a copy of the agents produced by the last refresh.
func (a *Adapter) Agents() []model.Agent {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]model.Agent, len(a.agents))
	for i, ag := range a.agents {
		out[i] = ag.Clone()
	}
	return out
}

// Activity returns a copy of the activity produced by the last refresh.
func (a *Adapter) Activity() []model.ActivityEvent {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]model.ActivityEvent(nil), a.activity...)
}

// LastError returns the error of the last failed refresh, or nil.
func (a *Adapter) LastError() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastError
}

// Refresh fetches from the source and updates health. Failures clear the
// adapter's agents and activity.
func (a *Adapter) Refresh(ctx context.Context) {
	a.mu.Lock()
	a.health.LastChecked = a.now()
	a.mu.Unlock()

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	res, err := a.fetch(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()

	if err != nil {
		a.agents = nil
		a.activity = nil
		a.lastError = err
		a.health.AgentCount = 0
		a.applyFailure(err)
		a.logger.Warn("source refresh failed",
			"source", a.src.ID(),
			"kind", apperrors.Classify(err).String(),
			"error", err)
		return
	}

	agents := make([]model.Agent, 0, len(res.Agents))
	for _, ag := range res.Agents {
		if ag.ID == "" {
			continue
		}
		if ag.Source == "" {
			ag.Source = a.src.ID()
		}
		agents = append(agents, ag)
	}
	a.agents = agents
	a.activity = res.Activity
	a.lastError = nil
	a.health.State = model.HealthConnected
	a.health.AgentCount = len(agents)
	a.health.Message = connectedMessage(len(agents))
}

func (a *Adapter) fetch(ctx context.Context) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.Other(a.src.ID(), "fetch", fmt.Errorf("panic: %v", r))
		}
	}()
	return a.src.Fetch(ctx)
}

func (a *Adapter) applyFailure(err error) {
	switch apperrors.Classify(err) {
	case apperrors.KindAPIShape:
		a.health.State = model.HealthDegraded
		a.health.Message = fmt.Sprintf("API changed: %s. The %s adapter needs updating.",
			apperrors.Truncate(err.Error(), maxErrorSummary), a.src.Name())
	case apperrors.KindUnavailable:
		a.health.State = model.HealthUnavailable
		a.health.Message = a.src.Name() + " is not available on this system"
	default:
		a.health.State = model.HealthDegraded
		a.health.Message = "Unexpected error while reading " + a.src.Name()
	}
}

func connectedMessage(n int) string {
	switch n {
	case 0:
		return "Connected, no active sessions"
	case 1:
		return "Connected, 1 session"
	default:
		return fmt.Sprintf("Connected, %d sessions", n)
	}
}

// Conversation loads an agent's conversation history. It returns nil when the
// source does not support history or has none; failures are logged, not
// returned.
func (a *Adapter) Conversation(ctx context.Context, agentID string) []model.ConversationTurn {
	cs, ok := a.src.(ConversationSource)
	if !ok {
		return nil
	}
	turns, err := cs.Conversation(ctx, agentID)
	if err != nil {
		a.logger.Debug("conversation lookup failed", "source", a.src.ID(), "agent", agentID, "error", err)
		return nil
	}
	return turns
}

// Locations returns the source's agent -> history location table, if any.
func (a *Adapter) Locations() map[string]string {
	li, ok := a.src.(LocationIndex)
	if !ok {
		return nil
	}
	return li.Locations()
}
