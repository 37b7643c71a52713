package model

import "time"

// HealthState describes a source's current reachability.
type HealthState string

const (
	HealthConnected   HealthState = "connected"
	HealthDegraded    HealthState = "degraded"
	HealthUnavailable HealthState = "unavailable"
	HealthChecking    HealthState = "checking"
)

// ProviderHealth is the health record of one registered source.
type ProviderHealth struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	State       HealthState `json:"state"`
	Message     string      `json:"message"`
	LastChecked time.Time   `json:"lastChecked"`
	AgentCount  int         `json:"agentCount"`
}
