// Package signal holds the domain types shared by every scorer and worker:
// snapshots in, score results out, plus the enrichment job and anomaly
// records the scheduler and worker persist.
package signal

import "time"

// EntityID identifies any scored subject: an operator, a broker, a corridor,
// a load, a review. Scorers never assume entity shape beyond the snapshot
// fields they declare.
type EntityID string

// Snapshot is an immutable bag of inputs for one scorer invocation on one
// entity. It is produced fresh for every run and never mutated.
type Snapshot struct {
	EntityID EntityID          `json:"entity_id"`
	Scorer   string            `json:"scorer"`
	TakenAt  time.Time         `json:"taken_at"`
	Values   map[string]float64 `json:"values"`
	Flags    map[string]bool   `json:"flags"`
}

// Value returns a numeric input, with ok=false when it is absent.
func (s Snapshot) Value(name string) (float64, bool) {
	v, ok := s.Values[name]
	return v, ok
}

// Flag returns a boolean input; absent flags read as false.
func (s Snapshot) Flag(name string) bool {
	return s.Flags[name]
}

// Result is the output of a scorer run: a bounded numeric score, a
// qualitative band, a weighted breakdown for explainability, and the
// snapshot it was computed from. Persisted keyed by
// (entity_id, scorer, window); recomputation overwrites, never appends.
type Result struct {
	EntityID   EntityID           `json:"entity_id"`
	Scorer     string             `json:"scorer"`
	Window     string             `json:"window"`
	Score      float64            `json:"score"`
	Band       string             `json:"band"`
	Breakdown  map[string]float64 `json:"breakdown"`
	Signals    []string           `json:"signals,omitempty"`
	Badges     []string           `json:"badges,omitempty"`
	Snapshot   Snapshot           `json:"snapshot"`
	ComputedAt time.Time          `json:"computed_at"`
}

// AnomalyFlag is raised when a recomputed score deviates from its prior value
// by more than the configured threshold. It references both results and is
// surfaced for manual audit, never auto-corrected.
type AnomalyFlag struct {
	ID        string    `json:"id"`
	EntityID  EntityID  `json:"entity_id"`
	Scorer    string    `json:"scorer"`
	PrevScore float64   `json:"prev_score"`
	NewScore  float64   `json:"new_score"`
	Delta     float64   `json:"delta"`
	Window    string    `json:"window"`
	RaisedAt  time.Time `json:"raised_at"`
}

// JobKind selects which provider call an enrichment job performs.
type JobKind string

const (
	JobGeocode  JobKind = "geocode"
	JobPolyline JobKind = "polyline"
)

// JobStatus is the durable state of an enrichment job. A successful job is
// deleted rather than marked done; dead-lettered jobs are excluded from the
// normal sweep and only requeued through the admin path.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobDeadLetter JobStatus = "dead_letter"
)

// EnrichmentJob is a queued unit of external-API work needed to complete an
// entity's derived data (coordinates, route polyline).
type EnrichmentJob struct {
	ID            string    `json:"id"`
	EntityID      EntityID  `json:"entity_id"`
	Kind          JobKind   `json:"kind"`
	Query         string    `json:"query"`
	Priority      int       `json:"priority"`
	Attempts      int       `json:"attempts"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
	Status        JobStatus `json:"status"`
	LastError     string    `json:"last_error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Window buckets t into the recompute window for the given cadence. Re-runs
// inside one cadence interval map to the same key, which is what makes the
// scheduler's upsert idempotent.
func Window(t time.Time, cadence time.Duration) string {
	if cadence <= 0 {
		cadence = time.Minute
	}
	return t.UTC().Truncate(cadence).Format(time.RFC3339)
}
