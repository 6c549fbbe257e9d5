package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// OutboxStore persists notification handoff records.
type OutboxStore struct {
	db *sql.DB
}

// NewOutboxStore creates a SQLite-backed outbox store.
func NewOutboxStore(db *sql.DB) *OutboxStore {
	return &OutboxStore{db: db}
}

func (s *OutboxStore) Append(ctx context.Context, id, kind string, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO notification_outbox (id, kind, payload) VALUES (?, ?, ?)",
		id, kind, string(payload),
	)
	if err != nil {
		return fmt.Errorf("append outbox record %s: %w", id, err)
	}
	return nil
}
