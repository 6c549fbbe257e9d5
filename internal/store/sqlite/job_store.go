package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/haulcommand/signal-engine/internal/signal"
	"github.com/haulcommand/signal-engine/internal/store"
)

// JobStore is the durable enrichment queue. Claims are conditional updates
// guarded by RowsAffected, so two concurrent sweeps can never both win the
// same job.
type JobStore struct {
	db *sql.DB
}

// NewJobStore creates a SQLite-backed job store.
func NewJobStore(db *sql.DB) *JobStore {
	return &JobStore{db: db}
}

// Enqueue inserts a pending job and marks the owning entity as awaiting
// enrichment.
func (s *JobStore) Enqueue(ctx context.Context, job signal.EnrichmentJob) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enqueue tx: %w", err)
	}
	defer tx.Rollback()

	createdAt := job.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	nextAttempt := job.NextAttemptAt
	if nextAttempt.IsZero() {
		nextAttempt = createdAt
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO enrichment_jobs (id, entity_id, kind, query, priority, attempts, next_attempt_at, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'pending', ?)`,
		job.ID, string(job.EntityID), string(job.Kind), job.Query, job.Priority,
		job.Attempts, nextAttempt.UTC(), createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert enrichment job %s: %w", job.ID, err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE entities SET enrich_status = 'pending' WHERE id = ?", string(job.EntityID),
	); err != nil {
		return fmt.Errorf("mark entity %s pending: %w", job.EntityID, err)
	}
	return tx.Commit()
}

// ClaimDue claims up to limit due pending jobs for token. Ordering is
// priority (high first) then age. A job stays invisible to other claimants
// until its lease expires.
func (s *JobStore) ClaimDue(ctx context.Context, now time.Time, limit int, token string, lease time.Duration) ([]signal.EnrichmentJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM enrichment_jobs
		WHERE status = 'pending'
		  AND next_attempt_at <= ?
		  AND (claim_expires_at IS NULL OR claim_expires_at <= ?)
		ORDER BY priority DESC, created_at ASC
		LIMIT ?`,
		now.UTC(), now.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query due jobs: %w", err)
	}
	var candidates []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan due job id: %w", err)
		}
		candidates = append(candidates, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	expires := now.Add(lease).UTC()
	var claimed []signal.EnrichmentJob
	for _, id := range candidates {
		res, err := s.db.ExecContext(ctx, `
			UPDATE enrichment_jobs
			SET claim_token = ?, claim_expires_at = ?
			WHERE id = ? AND status = 'pending'
			  AND next_attempt_at <= ?
			  AND (claim_expires_at IS NULL OR claim_expires_at <= ?)`,
			token, expires, id, now.UTC(), now.UTC(),
		)
		if err != nil {
			return nil, fmt.Errorf("claim job %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim job %s rows: %w", id, err)
		}
		if n == 0 {
			// Lost the race to another sweep.
			continue
		}
		job, err := s.get(ctx, id)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, job)
	}
	return claimed, nil
}

// Complete writes the enrichment onto the owning entity and deletes the job
// in one transaction.
func (s *JobStore) Complete(ctx context.Context, job signal.EnrichmentJob, enr store.Enrichment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin complete tx: %w", err)
	}
	defer tx.Rollback()

	switch job.Kind {
	case signal.JobGeocode:
		_, err = tx.ExecContext(ctx, `
			UPDATE entities
			SET lat = ?, lng = ?, geo_label = ?, enrich_status = 'done', enrich_error = NULL
			WHERE id = ?`,
			enr.Lat, enr.Lng, enr.Label, string(job.EntityID),
		)
	case signal.JobPolyline:
		_, err = tx.ExecContext(ctx, `
			UPDATE entities
			SET polyline = ?, enrich_status = 'done', enrich_error = NULL
			WHERE id = ?`,
			enr.Polyline, string(job.EntityID),
		)
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
	if err != nil {
		return fmt.Errorf("write enrichment for %s: %w", job.EntityID, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM enrichment_jobs WHERE id = ?", job.ID); err != nil {
		return fmt.Errorf("delete completed job %s: %w", job.ID, err)
	}
	return tx.Commit()
}

// Fail releases the claim, bumps attempts, schedules the next attempt, and
// records the reason on the entity without blocking future retries.
func (s *JobStore) Fail(ctx context.Context, jobID string, attempts int, nextAttempt time.Time, reason string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin fail tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE enrichment_jobs
		SET attempts = ?, next_attempt_at = ?, last_error = ?,
		    claim_token = NULL, claim_expires_at = NULL
		WHERE id = ?`,
		attempts, nextAttempt.UTC(), reason, jobID,
	)
	if err != nil {
		return fmt.Errorf("record job failure %s: %w", jobID, err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE entities SET enrich_error = ?
		WHERE id = (SELECT entity_id FROM enrichment_jobs WHERE id = ?)`,
		reason, jobID,
	)
	if err != nil {
		return fmt.Errorf("record entity failure reason for job %s: %w", jobID, err)
	}
	return tx.Commit()
}

// DeadLetter moves the job out of the normal sweep and marks the entity
// enrichment as failed. Dead letters are only revived via Requeue.
func (s *JobStore) DeadLetter(ctx context.Context, jobID string, reason string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin dead-letter tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE enrichment_jobs
		SET status = 'dead_letter', last_error = ?,
		    claim_token = NULL, claim_expires_at = NULL
		WHERE id = ?`,
		reason, jobID,
	)
	if err != nil {
		return fmt.Errorf("dead-letter job %s: %w", jobID, err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE entities SET enrich_status = 'failed', enrich_error = ?
		WHERE id = (SELECT entity_id FROM enrichment_jobs WHERE id = ?)`,
		reason, jobID,
	)
	if err != nil {
		return fmt.Errorf("mark entity failed for job %s: %w", jobID, err)
	}
	return tx.Commit()
}

// Requeue resets a dead-lettered job for another round of attempts. Only the
// administrative path calls this.
func (s *JobStore) Requeue(ctx context.Context, jobID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin requeue tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE enrichment_jobs
		SET status = 'pending', attempts = 0, next_attempt_at = ?, last_error = NULL
		WHERE id = ? AND status = 'dead_letter'`,
		time.Now().UTC(), jobID,
	)
	if err != nil {
		return fmt.Errorf("requeue job %s: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("requeue job %s rows: %w", jobID, err)
	}
	if n == 0 {
		return fmt.Errorf("job %s is not dead-lettered", jobID)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE entities SET enrich_status = 'pending', enrich_error = NULL
		WHERE id = (SELECT entity_id FROM enrichment_jobs WHERE id = ?)`,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("reset entity for job %s: %w", jobID, err)
	}
	return tx.Commit()
}

// ListDeadLetters returns dead-lettered jobs, oldest first.
func (s *JobStore) ListDeadLetters(ctx context.Context, limit int) ([]signal.EnrichmentJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_id, kind, query, priority, attempts, next_attempt_at, status, COALESCE(last_error, ''), created_at
		FROM enrichment_jobs WHERE status = 'dead_letter'
		ORDER BY created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var out []signal.EnrichmentJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// CountByStatus reports queue depth for metrics.
func (s *JobStore) CountByStatus(ctx context.Context) (pending, deadLettered int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN status = 'pending' THEN 1 END),
			COUNT(CASE WHEN status = 'dead_letter' THEN 1 END)
		FROM enrichment_jobs`).Scan(&pending, &deadLettered)
	if err != nil {
		return 0, 0, fmt.Errorf("count jobs: %w", err)
	}
	return pending, deadLettered, nil
}

func (s *JobStore) get(ctx context.Context, id string) (signal.EnrichmentJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, entity_id, kind, query, priority, attempts, next_attempt_at, status, COALESCE(last_error, ''), created_at
		FROM enrichment_jobs WHERE id = ?`, id)
	return scanJob(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (signal.EnrichmentJob, error) {
	var job signal.EnrichmentJob
	var entity, kind, status string
	err := r.Scan(&job.ID, &entity, &kind, &job.Query, &job.Priority, &job.Attempts,
		&job.NextAttemptAt, &status, &job.LastError, &job.CreatedAt)
	if err != nil {
		return signal.EnrichmentJob{}, fmt.Errorf("scan enrichment job: %w", err)
	}
	job.EntityID = signal.EntityID(entity)
	job.Kind = signal.JobKind(kind)
	job.Status = signal.JobStatus(status)
	return job, nil
}
