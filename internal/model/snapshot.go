package model

import (
	"fmt"
	"time"
)

// ActivityType categorizes an activity event.
type ActivityType string

const (
	ActivityToolUse  ActivityType = "tool_use"
	ActivityFileEdit ActivityType = "file_edit"
	ActivityCommand  ActivityType = "command"
	ActivityThinking ActivityType = "thinking"
	ActivityComplete ActivityType = "complete"
	ActivityError    ActivityType = "error"
	ActivityStart    ActivityType = "start"
	ActivityInfo     ActivityType = "info"
)

// ActivityEvent is an append-only record of something observed.
type ActivityEvent struct {
	ID          string       `json:"id"`
	Origin      string       `json:"origin"`
	Description string       `json:"description"`
	Type        ActivityType `json:"type"`
	Timestamp   time.Time    `json:"timestamp"`
}

// Stats summarizes the aggregated agents.
type Stats struct {
	Total         int     `json:"total"`
	Active        int     `json:"active"`
	Completed     int     `json:"completed"`
	Errored       int     `json:"errored"`
	TotalTokens   int64   `json:"totalTokens"`
	EstimatedCost float64 `json:"estimatedCost"`
}

// Snapshot is the complete aggregated state published once per cycle.
type Snapshot struct {
	Agents      []Agent          `json:"agents"`
	Activity    []ActivityEvent  `json:"activity"`
	Stats       Stats            `json:"stats"`
	Providers   []ProviderHealth `json:"providers"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

// FormatElapsed renders a duration using coarse fixed thresholds.
func FormatElapsed(d time.Duration) string {
	switch {
	case d < time.Second:
		return "0s"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d/time.Second))
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d/time.Minute), int((d%time.Minute)/time.Second))
	default:
		return fmt.Sprintf("%dh %dm", int(d/time.Hour), int((d%time.Hour)/time.Minute))
	}
}
