// Package provider wraps heterogeneous, unreliable data sources behind one
// fault-isolated adapter contract.
package provider

import (
	"context"

	"agentwatch/internal/model"
)

// Source is any origin of agent records. Fetch may fail arbitrarily; the
// Adapter converts failures into health updates. Sources should return typed
// errors from agentwatch/internal/errors so failures classify without
// inspecting message text.
type Source interface {
	ID() string
	Name() string
	Fetch(ctx context.Context) (Result, error)
}

// Result is what one successful Fetch produced.
type Result struct {
	Agents   []model.Agent
	Activity []model.ActivityEvent
}

// ConversationSource is implemented by sources that can load the full
// conversation of an agent on demand. An empty result is not a failure.
type ConversationSource interface {
	Conversation(ctx context.Context, agentID string) ([]model.ConversationTurn, error)
}

// LocationIndex is implemented by sources that know where each agent's
// history lives (agent id -> location, e.g. a log path).
type LocationIndex interface {
	Locations() map[string]string
}

// Fidelity describes how complete a source's records are.
type Fidelity int

const (
	FidelityStandard Fidelity = iota
	// FidelityThin sources report the existence of a session with few fields.
	FidelityThin
	// FidelityRich sources report actions, previews and files.
	FidelityRich
)

// FidelitySource is implemented by sources that are not FidelityStandard.
type FidelitySource interface {
	Fidelity() Fidelity
}
