package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Store loads and saves content documents. Documents are stored as the raw
// JSON trees the authoring pipeline produces; the engine never persists a
// re-encoded form, so a fetched document round-trips byte-comparably through
// decode/encode.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the decoded document tree, or ErrNotFound. Callers needing the
// loading/not-found/loaded tri-state keep "loading" on their side; the store
// only distinguishes found from not found from failure.
func (s *Store) Get(ctx context.Context, pageID string) (*Node, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT doc
		FROM content_documents
		WHERE page_id = $1
	`, pageID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load content document: %w", err)
	}
	return Decode(raw)
}

// Put upserts a document after checking it decodes. Used by editor tooling.
func (s *Store) Put(ctx context.Context, pageID string, raw json.RawMessage) error {
	if _, err := Decode(raw); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO content_documents (page_id, doc, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (page_id)
		DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()
	`, pageID, []byte(raw))
	if err != nil {
		return fmt.Errorf("upsert content document: %w", err)
	}
	return nil
}

// ListIDs returns document ids updated since a cutoff, newest first. Zero
// cutoff lists everything.
func (s *Store) ListIDs(ctx context.Context, since time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT page_id
		FROM content_documents
		WHERE updated_at >= $1
		ORDER BY updated_at DESC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list content documents: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan content document id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content documents: %w", err)
	}
	return ids, nil
}
