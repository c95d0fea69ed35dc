package db

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema creates the tables the service needs when they do not exist.
// Statements are idempotent so startup is safe against an already-migrated
// database.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS content_documents (
			page_id TEXT PRIMARY KEY,
			doc JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			page_id TEXT NOT NULL,
			part_id TEXT,
			kind TEXT NOT NULL,
			detail JSONB NOT NULL DEFAULT '{}'::jsonb,
			occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_page_kind ON events (page_id, kind)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events (session_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
