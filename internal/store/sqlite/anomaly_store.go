package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/haulcommand/signal-engine/internal/signal"
)

// AnomalyStore records anomalous recompute deltas for manual audit.
type AnomalyStore struct {
	db *sql.DB
}

// NewAnomalyStore creates a SQLite-backed anomaly store.
func NewAnomalyStore(db *sql.DB) *AnomalyStore {
	return &AnomalyStore{db: db}
}

func (s *AnomalyStore) Insert(ctx context.Context, flag signal.AnomalyFlag) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO anomaly_flags (id, entity_id, scorer, prev_score, new_score, delta, window, raised_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		flag.ID, string(flag.EntityID), flag.Scorer, flag.PrevScore, flag.NewScore,
		flag.Delta, flag.Window, flag.RaisedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert anomaly flag %s: %w", flag.ID, err)
	}
	return nil
}

func (s *AnomalyStore) List(ctx context.Context, limit int) ([]signal.AnomalyFlag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_id, scorer, prev_score, new_score, delta, window, raised_at
		FROM anomaly_flags ORDER BY raised_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list anomaly flags: %w", err)
	}
	defer rows.Close()

	var out []signal.AnomalyFlag
	for rows.Next() {
		var f signal.AnomalyFlag
		var entity string
		if err := rows.Scan(&f.ID, &entity, &f.Scorer, &f.PrevScore, &f.NewScore, &f.Delta, &f.Window, &f.RaisedAt); err != nil {
			return nil, fmt.Errorf("scan anomaly flag: %w", err)
		}
		f.EntityID = signal.EntityID(entity)
		out = append(out, f)
	}
	return out, rows.Err()
}
