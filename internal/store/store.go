// Package store defines the narrow repository interfaces the engine depends
// on. The engine never issues raw queries itself; scorers and workers
// receive these at construction so tests can substitute fakes.
package store

import (
	"context"
	"time"

	"github.com/haulcommand/signal-engine/internal/reputation"
	"github.com/haulcommand/signal-engine/internal/signal"
)

// SignalStore reads the raw event counters and entity state scorers consume.
type SignalStore interface {
	// GetSnapshot assembles a fresh snapshot of the raw signal values
	// recorded for entityID under the given scorer kind.
	GetSnapshot(ctx context.Context, entityID signal.EntityID, scorer string) (signal.Snapshot, error)
}

// ScoreStore persists scorer outputs keyed by (entity_id, scorer, window).
type ScoreStore interface {
	// Upsert overwrites any prior result for the same key. Re-running on the
	// same window produces the same row, never a duplicate.
	Upsert(ctx context.Context, res signal.Result) error
	// GetPrevious returns the most recent result for (entityID, scorer), or
	// nil when the entity has never been scored.
	GetPrevious(ctx context.Context, entityID signal.EntityID, scorer string) (*signal.Result, error)
	// ListDue returns up to limit entity IDs needing recompute for scorer,
	// oldest-computed-first with never-scored entities first.
	ListDue(ctx context.Context, scorer string, limit int) ([]signal.EntityID, error)
}

// AnomalyStore records statistically surprising recompute deltas for manual
// audit.
type AnomalyStore interface {
	Insert(ctx context.Context, flag signal.AnomalyFlag) error
	List(ctx context.Context, limit int) ([]signal.AnomalyFlag, error)
}

// ReputationStore is the append-only points ledger.
type ReputationStore interface {
	Append(ctx context.Context, ev reputation.Event) error
	Events(ctx context.Context, entityID signal.EntityID) ([]reputation.Event, error)
}

// Enrichment is the provider result written back onto the owning entity when
// a job completes.
type Enrichment struct {
	Lat      float64
	Lng      float64
	Label    string
	Polyline string
}

// JobStore is the durable enrichment queue. Only the worker pool mutates job
// state; claims are exclusive so concurrent sweeps never double-process a
// job.
type JobStore interface {
	Enqueue(ctx context.Context, job signal.EnrichmentJob) error
	// ClaimDue atomically claims up to limit due pending jobs (ordered by
	// priority then age) under token for the lease duration. A claimed job
	// is invisible to other claimants until the lease expires.
	ClaimDue(ctx context.Context, now time.Time, limit int, token string, lease time.Duration) ([]signal.EnrichmentJob, error)
	// Complete writes the enrichment onto the owning entity and deletes the
	// job in one transaction.
	Complete(ctx context.Context, job signal.EnrichmentJob, enr Enrichment) error
	// Fail releases the claim, increments attempts, schedules the next
	// attempt, and records a terse failure reason on the entity.
	Fail(ctx context.Context, jobID string, attempts int, nextAttempt time.Time, reason string) error
	// DeadLetter moves the job out of the normal sweep and marks the entity
	// enrichment as failed.
	DeadLetter(ctx context.Context, jobID string, reason string) error
	// Requeue resets a dead-lettered job for another round of attempts. This
	// is the manual/administrative path; the sweep never does it.
	Requeue(ctx context.Context, jobID string) error
	ListDeadLetters(ctx context.Context, limit int) ([]signal.EnrichmentJob, error)
	CountByStatus(ctx context.Context) (pending, deadLettered int, err error)
}

// RunStore keeps the scheduler's only long-lived state: last run timestamps,
// durable so restarts are safe.
type RunStore interface {
	LastRun(ctx context.Context, name string) (time.Time, error)
	SetLastRun(ctx context.Context, name string, t time.Time) error
}

// OutboxStore persists handoff event records for the external notification
// subsystem to consume.
type OutboxStore interface {
	Append(ctx context.Context, id, kind string, payload []byte) error
}
