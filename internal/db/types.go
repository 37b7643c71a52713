// Package db persists the history of fired alerts.
package db

import (
	"context"
	"encoding/json"

	"agentwatch/internal/model"
)

// DefaultHistoryLimit caps history queries that pass a non-positive limit.
const DefaultHistoryLimit = 50

// Store interface defines the methods for persistent storage
type Store interface {
	RecordAlert(ctx context.Context, rec model.AlertRecord) error
	RecentAlerts(ctx context.Context, limit int) ([]model.AlertRecord, error)
	Close() error
}

func encodeList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(list)
	return string(b)
}

func decodeList(s string) []string {
	var list []string
	if err := json.Unmarshal([]byte(s), &list); err != nil || len(list) == 0 {
		return nil
	}
	return list
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}
