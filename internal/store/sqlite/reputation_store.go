package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/haulcommand/signal-engine/internal/reputation"
	"github.com/haulcommand/signal-engine/internal/signal"
)

// ReputationStore is the append-only points ledger.
type ReputationStore struct {
	db *sql.DB
}

// NewReputationStore creates a SQLite-backed reputation store.
func NewReputationStore(db *sql.DB) *ReputationStore {
	return &ReputationStore{db: db}
}

// Append inserts one ledger entry. Entries are never updated or deleted.
func (s *ReputationStore) Append(ctx context.Context, ev reputation.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reputation_events (id, entity_id, kind, points, occurred_at)
		VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.EntityID, string(ev.Kind), ev.Points, ev.OccurredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append reputation event %s: %w", ev.ID, err)
	}
	return nil
}

// Events returns the full ledger for an entity in insertion order.
func (s *ReputationStore) Events(ctx context.Context, entityID signal.EntityID) ([]reputation.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_id, kind, points, occurred_at
		FROM reputation_events WHERE entity_id = ? ORDER BY occurred_at ASC`,
		string(entityID),
	)
	if err != nil {
		return nil, fmt.Errorf("load reputation ledger for %s: %w", entityID, err)
	}
	defer rows.Close()

	var out []reputation.Event
	for rows.Next() {
		var ev reputation.Event
		var kind string
		if err := rows.Scan(&ev.ID, &ev.EntityID, &kind, &ev.Points, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan reputation event: %w", err)
		}
		ev.Kind = reputation.EventKind(kind)
		out = append(out, ev)
	}
	return out, rows.Err()
}
