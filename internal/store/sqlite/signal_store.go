package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/haulcommand/signal-engine/internal/signal"
)

// SignalStore reads raw signal values into immutable snapshots.
type SignalStore struct {
	db *sql.DB
}

// NewSignalStore creates a SQLite-backed signal store.
func NewSignalStore(db *sql.DB) *SignalStore {
	return &SignalStore{db: db}
}

// GetSnapshot assembles a fresh snapshot from the signal values recorded for
// the entity under the given scorer kind. Missing fields are left absent so
// the scorer can reject the snapshot with a typed input error.
func (s *SignalStore) GetSnapshot(ctx context.Context, entityID signal.EntityID, scorer string) (signal.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, value, is_flag FROM signal_values WHERE entity_id = ? AND scorer = ?",
		string(entityID), scorer,
	)
	if err != nil {
		return signal.Snapshot{}, fmt.Errorf("query signal values for %s/%s: %w", entityID, scorer, err)
	}
	defer rows.Close()

	snap := signal.Snapshot{
		EntityID: entityID,
		Scorer:   scorer,
		TakenAt:  time.Now().UTC(),
		Values:   make(map[string]float64),
		Flags:    make(map[string]bool),
	}
	for rows.Next() {
		var name string
		var value float64
		var isFlag bool
		if err := rows.Scan(&name, &value, &isFlag); err != nil {
			return signal.Snapshot{}, fmt.Errorf("scan signal value: %w", err)
		}
		if isFlag {
			snap.Flags[name] = value != 0
		} else {
			snap.Values[name] = value
		}
	}
	return snap, rows.Err()
}

// SetValue upserts one raw numeric signal. Used by the ingest path and by
// tests to seed state.
func (s *SignalStore) SetValue(ctx context.Context, entityID signal.EntityID, scorer, name string, value float64) error {
	return s.set(ctx, entityID, scorer, name, value, false)
}

// SetFlag upserts one raw boolean signal.
func (s *SignalStore) SetFlag(ctx context.Context, entityID signal.EntityID, scorer, name string, flag bool) error {
	v := 0.0
	if flag {
		v = 1
	}
	return s.set(ctx, entityID, scorer, name, v, true)
}

func (s *SignalStore) set(ctx context.Context, entityID signal.EntityID, scorer, name string, value float64, isFlag bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signal_values (entity_id, scorer, name, value, is_flag, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id, scorer, name)
		DO UPDATE SET value = excluded.value, is_flag = excluded.is_flag, updated_at = excluded.updated_at`,
		string(entityID), scorer, name, value, isFlag, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert signal value %s/%s/%s: %w", entityID, scorer, name, err)
	}
	return nil
}
