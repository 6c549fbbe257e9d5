package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RunStore persists scheduler last-run timestamps.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a SQLite-backed run store.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// LastRun returns the stored timestamp for name; the zero time when the run
// has never happened.
func (s *RunStore) LastRun(ctx context.Context, name string) (time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT last_run_at FROM scheduler_runs WHERE name = ?", name,
	).Scan(&t)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("load last run for %s: %w", name, err)
	}
	return t, nil
}

func (s *RunStore) SetLastRun(ctx context.Context, name string, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduler_runs (name, last_run_at) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET last_run_at = excluded.last_run_at`,
		name, t.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record last run for %s: %w", name, err)
	}
	return nil
}
