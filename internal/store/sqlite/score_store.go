package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/haulcommand/signal-engine/internal/signal"
)

// ScoreStore persists scorer results keyed by (entity_id, scorer, window).
type ScoreStore struct {
	db *sql.DB
}

// NewScoreStore creates a SQLite-backed score store.
func NewScoreStore(db *sql.DB) *ScoreStore {
	return &ScoreStore{db: db}
}

// Upsert overwrites the result row for the same (entity, scorer, window).
func (s *ScoreStore) Upsert(ctx context.Context, res signal.Result) error {
	breakdown, err := json.Marshal(res.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}
	signals, err := json.Marshal(emptySlice(res.Signals))
	if err != nil {
		return fmt.Errorf("marshal signals: %w", err)
	}
	badges, err := json.Marshal(emptySlice(res.Badges))
	if err != nil {
		return fmt.Errorf("marshal badges: %w", err)
	}
	snapshot, err := json.Marshal(res.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO score_results (entity_id, scorer, window, score, band, breakdown, signals, badges, snapshot, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id, scorer, window) DO UPDATE SET
			score = excluded.score,
			band = excluded.band,
			breakdown = excluded.breakdown,
			signals = excluded.signals,
			badges = excluded.badges,
			snapshot = excluded.snapshot,
			computed_at = excluded.computed_at`,
		string(res.EntityID), res.Scorer, res.Window, res.Score, res.Band,
		string(breakdown), string(signals), string(badges), string(snapshot), res.ComputedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert score result %s/%s/%s: %w", res.EntityID, res.Scorer, res.Window, err)
	}
	return nil
}

// GetPrevious returns the most recent result for (entityID, scorer), or nil
// when the entity has never been scored.
func (s *ScoreStore) GetPrevious(ctx context.Context, entityID signal.EntityID, scorer string) (*signal.Result, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT entity_id, scorer, window, score, band, breakdown, signals, badges, snapshot, computed_at
		FROM score_results
		WHERE entity_id = ? AND scorer = ?
		ORDER BY computed_at DESC
		LIMIT 1`,
		string(entityID), scorer,
	)

	var res signal.Result
	var entity, breakdown, signals, badges, snapshot string
	var computedAt time.Time
	err := row.Scan(&entity, &res.Scorer, &res.Window, &res.Score, &res.Band,
		&breakdown, &signals, &badges, &snapshot, &computedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load previous result %s/%s: %w", entityID, scorer, err)
	}

	res.EntityID = signal.EntityID(entity)
	res.ComputedAt = computedAt
	if err := json.Unmarshal([]byte(breakdown), &res.Breakdown); err != nil {
		return nil, fmt.Errorf("unmarshal breakdown: %w", err)
	}
	if err := json.Unmarshal([]byte(signals), &res.Signals); err != nil {
		return nil, fmt.Errorf("unmarshal signals: %w", err)
	}
	if err := json.Unmarshal([]byte(badges), &res.Badges); err != nil {
		return nil, fmt.Errorf("unmarshal badges: %w", err)
	}
	if err := json.Unmarshal([]byte(snapshot), &res.Snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &res, nil
}

// ListDue returns up to limit entities with signal values for scorer,
// never-scored first, then oldest-computed-first.
func (s *ScoreStore) ListDue(ctx context.Context, scorer string, limit int) ([]signal.EntityID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sv.entity_id
		FROM (SELECT DISTINCT entity_id FROM signal_values WHERE scorer = ?) sv
		LEFT JOIN (
			SELECT entity_id, MAX(computed_at) AS last_at
			FROM score_results WHERE scorer = ? GROUP BY entity_id
		) sr ON sr.entity_id = sv.entity_id
		ORDER BY sr.last_at IS NOT NULL, sr.last_at ASC
		LIMIT ?`,
		scorer, scorer, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list due entities for %s: %w", scorer, err)
	}
	defer rows.Close()

	var out []signal.EntityID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan due entity: %w", err)
		}
		out = append(out, signal.EntityID(id))
	}
	return out, rows.Err()
}

func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
