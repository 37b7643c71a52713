// Package aggregator runs one monitoring cycle: it fans out to every source
// adapter, reconciles their records into a single snapshot and derives
// activity from state transitions.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"agentwatch/internal/model"
	"agentwatch/internal/provider"

	"github.com/google/uuid"
)

const (
	// DefaultActivityLimit is how many activity events are retained.
	DefaultActivityLimit = 50
	// DefaultCostPerMillion is the estimated USD cost per million tokens.
	DefaultCostPerMillion = 3.0
)

// AlertChecker inspects each cycle's aggregated state.
type AlertChecker interface {
	Check(ctx context.Context, agents []model.Agent, providers []model.ProviderHealth)
}

// Publisher receives every published snapshot.
type Publisher interface {
	Publish(snap model.Snapshot)
}

// Relay forwards snapshots to an external service, best effort.
type Relay interface {
	Publish(ctx context.Context, snap model.Snapshot)
}

// Observer records cycle metrics.
type Observer interface {
	ObserveCycle(d time.Duration, snap model.Snapshot)
}

// Config tunes reconciliation and retention.
type Config struct {
	CostPerMillion float64
	ActivityLimit  int
	// Retention keeps agents that stopped being reported in the snapshot,
	// unchanged, for this long after they were last observed. Zero drops
	// them on the first cycle they are missing, so a failed source's agents
	// vanish instead of persisting as stale records.
	Retention time.Duration
	// StateTTL evicts first-seen and previous-status entries for identities
	// not observed for this long. Zero disables eviction.
	StateTTL time.Duration
}

// Aggregator owns the snapshot-building state. All of it is guarded by mu;
// concurrent cycles may overlap during fan-out but never during merge.
type Aggregator struct {
	adapters  []*provider.Adapter
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
	alerts    AlertChecker
	publisher Publisher
	relay     Relay
	observer  Observer

	mu         sync.Mutex
	firstSeen  map[string]time.Time
	lastSeen   map[string]time.Time
	prevStatus map[string]model.Status
	prevHealth map[string]model.HealthState
	retained   map[string]model.Agent
	lookup     map[string]string
	activity   []model.ActivityEvent
	seenEvents map[string]struct{}
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithConfig replaces the default Config.
func WithConfig(cfg Config) Option {
	return func(a *Aggregator) { a.cfg = cfg }
}

// WithLogger sets the aggregator's logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithAlerts sets the checker invoked after every cycle.
func WithAlerts(c AlertChecker) Option {
	return func(a *Aggregator) { a.alerts = c }
}

// WithPublisher sets where snapshots are published.
func WithPublisher(p Publisher) Option {
	return func(a *Aggregator) { a.publisher = p }
}

// WithRelay forwards every snapshot to an external relay.
func WithRelay(r Relay) Option {
	return func(a *Aggregator) { a.relay = r }
}

// WithObserver records cycle duration and snapshot metrics.
func WithObserver(o Observer) Option {
	return func(a *Aggregator) { a.observer = o }
}

// New creates an Aggregator over adapters, in registration order. Earlier
// adapters win identity collisions.
func New(adapters []*provider.Adapter, opts ...Option) *Aggregator {
	a := &Aggregator{
		adapters: adapters,
		cfg: Config{
			CostPerMillion: DefaultCostPerMillion,
			ActivityLimit:  DefaultActivityLimit,
		},
		logger:     slog.Default(),
		now:        time.Now,
		firstSeen:  make(map[string]time.Time),
		lastSeen:   make(map[string]time.Time),
		prevStatus: make(map[string]model.Status),
		prevHealth: make(map[string]model.HealthState),
		retained:   make(map[string]model.Agent),
		lookup:     make(map[string]string),
		seenEvents: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.cfg.ActivityLimit <= 0 {
		a.cfg.ActivityLimit = DefaultActivityLimit
	}
	return a
}

// Adapters returns the registered adapters in registration order.
func (a *Aggregator) Adapters() []*provider.Adapter {
	return a.adapters
}

// RunCycle refreshes every adapter concurrently, reconciles the results and
// publishes a snapshot. It always produces a snapshot, even when every
// source fails.
func (a *Aggregator) RunCycle(ctx context.Context) model.Snapshot {
	start := time.Now()

	var wg sync.WaitGroup
	for _, ad := range a.adapters {
		wg.Add(1)
		go func(ad *provider.Adapter) {
			defer wg.Done()
			ad.Refresh(ctx)
		}(ad)
	}
	wg.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()

	snap := a.build()

	// consumers get the snapshot before any alert delivery is attempted
	if a.publisher != nil {
		a.publisher.Publish(snap)
	}
	if a.relay != nil {
		a.relay.Publish(ctx, snap)
	}

	a.checkAlerts(ctx, snap)
	if a.observer != nil {
		a.observer.ObserveCycle(time.Since(start), snap)
	}
	return snap
}

func (a *Aggregator) checkAlerts(ctx context.Context, snap model.Snapshot) {
	if a.alerts == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("alert check failed", "panic", r)
		}
	}()
	a.alerts.Check(ctx, snap.Agents, snap.Providers)
}

// build runs the reconciliation steps over the adapters' settled output.
// Callers hold mu.
func (a *Aggregator) build() model.Snapshot {
	now := a.now()

	merged, order := a.merge()
	a.enrich(merged, &order)
	a.propagateConversations(merged, order)

	var events []model.ActivityEvent

	fresh := make([]model.Agent, 0, len(order))
	for _, id := range order {
		ag, ok := merged[id]
		if !ok {
			continue
		}
		a.anchor(&ag, now)
		events = append(events, a.statusActivity(ag, now)...)
		a.retained[id] = ag.Clone()
		fresh = append(fresh, ag)
	}

	providers := make([]model.ProviderHealth, 0, len(a.adapters))
	for _, ad := range a.adapters {
		h := ad.Health()
		events = append(events, a.healthActivity(h, now)...)
		providers = append(providers, h)
	}

	counts := make(map[string]int)
	for _, ag := range fresh {
		counts[ag.Source]++
	}
	for i := range providers {
		providers[i].AgentCount = counts[providers[i].ID]
	}

	agents := append(fresh, a.stale(merged, now)...)
	sort.SliceStable(agents, func(i, j int) bool {
		if agents[i].StartTime.Equal(agents[j].StartTime) {
			return agents[i].ID < agents[j].ID
		}
		return agents[i].StartTime.After(agents[j].StartTime)
	})

	a.gc(now)

	for _, ad := range a.adapters {
		events = append(events, ad.Activity()...)
	}
	a.appendActivity(events)
	activity := make([]model.ActivityEvent, len(a.activity))
	copy(activity, a.activity)

	return model.Snapshot{
		Agents:      agents,
		Activity:    activity,
		Stats:       computeStats(agents, a.cfg.CostPerMillion),
		Providers:   providers,
		GeneratedAt: now,
	}
}

// merge builds the identity map. The first adapter to report an identity
// wins.
func (a *Aggregator) merge() (map[string]model.Agent, []string) {
	merged := make(map[string]model.Agent)
	var order []string
	for _, ad := range a.adapters {
		for _, ag := range ad.Agents() {
			if _, dup := merged[ag.ID]; dup {
				continue
			}
			merged[ag.ID] = ag
			order = append(order, ag.ID)
		}
	}
	return merged, order
}

func (a *Aggregator) fidelityOf(sourceID string) provider.Fidelity {
	for _, ad := range a.adapters {
		if ad.ID() == sourceID {
			return ad.Fidelity()
		}
	}
	return provider.FidelityStandard
}

// propagateConversations marks chat-capable agents as having history when
// any source exposes a location table, and registers a lookup entry for them.
func (a *Aggregator) propagateConversations(merged map[string]model.Agent, order []string) {
	available := false
	for _, ad := range a.adapters {
		if len(ad.Locations()) > 0 {
			available = true
			break
		}
	}
	if !available {
		return
	}
	for _, id := range order {
		ag, ok := merged[id]
		if !ok || ag.HasConversation || !ag.Type.ChatCapable() {
			continue
		}
		ag.HasConversation = true
		merged[id] = ag
		if _, ok := a.lookup[id]; !ok {
			a.lookup[id] = id
		}
	}
}

// anchor pins an identity's start time to its first observation.
func (a *Aggregator) anchor(ag *model.Agent, now time.Time) {
	first, ok := a.firstSeen[ag.ID]
	if !ok {
		first = now
		if !ag.StartTime.IsZero() && !ag.StartTime.After(now) {
			first = ag.StartTime
		}
		a.firstSeen[ag.ID] = first
	}
	ag.StartTime = first
	ag.Elapsed = model.FormatElapsed(now.Sub(first))
	a.lastSeen[ag.ID] = now
}

func (a *Aggregator) statusActivity(ag model.Agent, now time.Time) []model.ActivityEvent {
	prev, seen := a.prevStatus[ag.ID]
	a.prevStatus[ag.ID] = ag.Status

	switch {
	case !seen:
		return []model.ActivityEvent{newEvent(displayName(ag),
			fmt.Sprintf("Detected %s (%s)", displayName(ag), ag.Source),
			model.ActivityStart, now)}
	case prev != ag.Status:
		return []model.ActivityEvent{newEvent(displayName(ag),
			fmt.Sprintf("%s status changed: %s → %s", displayName(ag), prev, ag.Status),
			activityTypeFor(ag.Status), now)}
	}
	return nil
}

func (a *Aggregator) healthActivity(h model.ProviderHealth, now time.Time) []model.ActivityEvent {
	prev, seen := a.prevHealth[h.ID]
	a.prevHealth[h.ID] = h.State
	if !seen || prev == h.State {
		return nil
	}

	typ := model.ActivityInfo
	if h.State == model.HealthDegraded || h.State == model.HealthUnavailable {
		typ = model.ActivityError
	}
	desc := fmt.Sprintf("%s: %s → %s", h.Name, prev, h.State)
	if h.Message != "" {
		desc += " (" + h.Message + ")"
	}
	return []model.ActivityEvent{newEvent(h.Name, desc, typ, now)}
}

// stale returns previously published agents missing from this cycle that
// are still inside the retention window. Expired ones are forgotten.
func (a *Aggregator) stale(merged map[string]model.Agent, now time.Time) []model.Agent {
	shadowed := a.shadowed(merged)
	var out []model.Agent
	for id, ag := range a.retained {
		if _, ok := merged[id]; ok {
			continue
		}
		if !shadowed[id] && a.cfg.Retention > 0 && now.Sub(a.lastSeen[id]) < a.cfg.Retention {
			out = append(out, ag.Clone())
			continue
		}
		delete(a.retained, id)
	}
	return out
}

// shadowed returns retained identities that describe a session already
// reported this cycle under its other identity: rich records folded into a
// present thin record, and thin records whose rich counterpart is present.
func (a *Aggregator) shadowed(merged map[string]model.Agent) map[string]bool {
	out := make(map[string]bool)
	for tid, rid := range a.lookup {
		if tid == rid {
			continue
		}
		if _, ok := merged[tid]; ok {
			out[rid] = true
		}
		if _, ok := merged[rid]; ok {
			out[tid] = true
		}
	}
	return out
}

// gc evicts per-identity state for identities not observed within StateTTL.
func (a *Aggregator) gc(now time.Time) {
	if a.cfg.StateTTL <= 0 {
		return
	}
	for id, seen := range a.lastSeen {
		if now.Sub(seen) < a.cfg.StateTTL {
			continue
		}
		if _, ok := a.retained[id]; ok {
			continue
		}
		delete(a.lastSeen, id)
		delete(a.firstSeen, id)
		delete(a.prevStatus, id)
		delete(a.lookup, id)
	}
}

func (a *Aggregator) appendActivity(events []model.ActivityEvent) {
	for _, ev := range events {
		key := ev.ID
		if key == "" {
			key = ev.Origin + "|" + ev.Description + "|" + ev.Timestamp.String()
			ev.ID = uuid.NewString()
		}
		if _, dup := a.seenEvents[key]; dup {
			continue
		}
		a.seenEvents[key] = struct{}{}
		a.activity = append(a.activity, ev)
	}

	sort.SliceStable(a.activity, func(i, j int) bool {
		return a.activity[i].Timestamp.After(a.activity[j].Timestamp)
	})
	if len(a.activity) > a.cfg.ActivityLimit {
		a.activity = a.activity[:a.cfg.ActivityLimit]
	}

	// Bound the dedupe set to what can still collide with a retained event.
	if len(a.seenEvents) > 4*a.cfg.ActivityLimit {
		keep := make(map[string]struct{}, len(a.activity))
		for _, ev := range a.activity {
			keep[ev.ID] = struct{}{}
			keep[ev.Origin+"|"+ev.Description+"|"+ev.Timestamp.String()] = struct{}{}
		}
		a.seenEvents = keep
	}
}

// Conversation returns the history of an agent from the first adapter, in
// registration order, that has any. No history is an empty slice, not an
// error.
func (a *Aggregator) Conversation(ctx context.Context, agentID string) []model.ConversationTurn {
	a.mu.Lock()
	target, ok := a.lookup[agentID]
	a.mu.Unlock()
	if !ok {
		target = agentID
	}

	ids := []string{target}
	if target != agentID {
		ids = append(ids, agentID)
	}
	for _, id := range ids {
		for _, ad := range a.adapters {
			if turns := ad.Conversation(ctx, id); len(turns) > 0 {
				return turns
			}
		}
	}
	return []model.ConversationTurn{}
}

func computeStats(agents []model.Agent, costPerMillion float64) model.Stats {
	var st model.Stats
	for _, ag := range agents {
		st.Total++
		switch {
		case ag.Status.Active():
			st.Active++
		case ag.Status == model.StatusDone:
			st.Completed++
		case ag.Status == model.StatusError:
			st.Errored++
		}
		st.TotalTokens += ag.Tokens
	}
	st.EstimatedCost = float64(st.TotalTokens) / 1_000_000.0 * costPerMillion
	return st
}

func activityTypeFor(s model.Status) model.ActivityType {
	switch s {
	case model.StatusDone:
		return model.ActivityComplete
	case model.StatusError:
		return model.ActivityError
	case model.StatusThinking:
		return model.ActivityThinking
	case model.StatusRunning:
		return model.ActivityStart
	default:
		return model.ActivityInfo
	}
}

func displayName(ag model.Agent) string {
	if ag.Name != "" {
		return ag.Name
	}
	return ag.ID
}

func newEvent(origin, desc string, typ model.ActivityType, ts time.Time) model.ActivityEvent {
	return model.ActivityEvent{
		ID:          uuid.NewString(),
		Origin:      origin,
		Description: desc,
		Type:        typ,
		Timestamp:   ts,
	}
}
