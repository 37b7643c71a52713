package db

import (
	"context"
	"database/sql"
	"fmt"

	"agentwatch/internal/model"
	"agentwatch/internal/telemetry"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store and applies migrations
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS alert_history (
		id TEXT PRIMARY KEY,
		event TEXT NOT NULL,
		entity TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		channels TEXT NOT NULL DEFAULT '[]',
		failed TEXT NOT NULL DEFAULT '[]',
		fired_at TIMESTAMPTZ NOT NULL
	)`); err != nil {
		return err
	}

	// Performance index; older servers without IF NOT EXISTS support just skip it
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_alert_history_fired ON alert_history(fired_at DESC)`); err != nil {
		telemetry.LogDebug("alert history index creation skipped", "error", err)
	}
	return nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// RecordAlert saves one fired alert.
func (s *PostgresStore) RecordAlert(ctx context.Context, rec model.AlertRecord) error {
	query := `INSERT INTO alert_history (id, event, entity, title, body, channels, failed, fired_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Event, rec.Entity, rec.Title, rec.Body,
		encodeList(rec.Channels), encodeList(rec.Failed), rec.FiredAt)
	if err != nil {
		return fmt.Errorf("failed to record alert: %w", err)
	}
	return nil
}

// RecentAlerts returns the most recent alerts, newest first.
func (s *PostgresStore) RecentAlerts(ctx context.Context, limit int) ([]model.AlertRecord, error) {
	query := `SELECT id, event, entity, title, body, channels, failed, fired_at
		FROM alert_history ORDER BY fired_at DESC LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.AlertRecord
	for rows.Next() {
		var (
			rec              model.AlertRecord
			channels, failed string
		)
		if err := rows.Scan(&rec.ID, &rec.Event, &rec.Entity, &rec.Title, &rec.Body, &channels, &failed, &rec.FiredAt); err != nil {
			return nil, err
		}
		rec.Channels = decodeList(channels)
		rec.Failed = decodeList(failed)
		results = append(results, rec)
	}
	return results, rows.Err()
}
