package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"agentwatch/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store and applies migrations
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// serialize writers; concurrent alert dispatches record in parallel
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	queries := []string{`
	CREATE TABLE IF NOT EXISTS alert_history (
		id TEXT PRIMARY KEY,
		event TEXT NOT NULL,
		entity TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		channels TEXT NOT NULL DEFAULT '[]',
		failed TEXT NOT NULL DEFAULT '[]',
		fired_at INTEGER NOT NULL
	);`,
		`CREATE INDEX IF NOT EXISTS idx_alert_history_fired ON alert_history(fired_at DESC);`,
	}
	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordAlert saves one fired alert.
func (s *SQLiteStore) RecordAlert(ctx context.Context, rec model.AlertRecord) error {
	query := `INSERT INTO alert_history (id, event, entity, title, body, channels, failed, fired_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Event, rec.Entity, rec.Title, rec.Body,
		encodeList(rec.Channels), encodeList(rec.Failed), rec.FiredAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record alert: %w", err)
	}
	return nil
}

// RecentAlerts returns the most recent alerts, newest first.
func (s *SQLiteStore) RecentAlerts(ctx context.Context, limit int) ([]model.AlertRecord, error) {
	query := `SELECT id, event, entity, title, body, channels, failed, fired_at
		FROM alert_history ORDER BY fired_at DESC LIMIT ?`
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
			firedAt          int64
		)
		if err := rows.Scan(&rec.ID, &rec.Event, &rec.Entity, &rec.Title, &rec.Body, &channels, &failed, &firedAt); err != nil {
			return nil, err
		}
		rec.Channels = decodeList(channels)
		rec.Failed = decodeList(failed)
		rec.FiredAt = time.Unix(0, firedAt).UTC()
		results = append(results, rec)
	}
	return results, rows.Err()
}
