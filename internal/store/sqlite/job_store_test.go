package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/haulcommand/signal-engine/internal/signal"
	"github.com/haulcommand/signal-engine/internal/store"
	"github.com/haulcommand/signal-engine/internal/store/sqlite"
)

func seedJob(t *testing.T, jobs *sqlite.JobStore, id, entityID string, kind signal.JobKind) signal.EnrichmentJob {
	t.Helper()
	job := signal.EnrichmentJob{
		ID:       id,
		EntityID: signal.EntityID(entityID),
		Kind:     kind,
		Query:    "1200 Main St, Houston, TX",
	}
	if err := jobs.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("enqueue %s: %v", id, err)
	}
	return job
}

func TestJobStoreExclusiveClaim(t *testing.T) {
	db := setupTestDB(t)
	jobs := sqlite.NewJobStore(db)
	ctx := context.Background()
	seedEntity(t, db, "load-1", "load")
	seedJob(t, jobs, "job-1", "load-1", signal.JobGeocode)

	now := time.Now().UTC()
	first, err := jobs.ClaimDue(ctx, now, 10, "worker-a", 5*time.Minute)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	second, err := jobs.ClaimDue(ctx, now, 10, "worker-b", 5*time.Minute)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("worker-a claimed %d jobs, want 1", len(first))
	}
	if len(second) != 0 {
		t.Fatalf("worker-b stole a claimed job: %v", second)
	}

	// After the lease expires the job is claimable again.
	later := now.Add(10 * time.Minute)
	third, err := jobs.ClaimDue(ctx, later, 10, "worker-b", 5*time.Minute)
	if err != nil {
		t.Fatalf("post-lease claim: %v", err)
	}
	if len(third) != 1 {
		t.Fatalf("expired lease not reclaimable, got %d jobs", len(third))
	}
}

func TestJobStoreCompleteDeletesAndWritesBack(t *testing.T) {
	db := setupTestDB(t)
	jobs := sqlite.NewJobStore(db)
	ctx := context.Background()
	seedEntity(t, db, "load-2", "load")
	job := seedJob(t, jobs, "job-2", "load-2", signal.JobGeocode)

	err := jobs.Complete(ctx, job, store.Enrichment{Lat: 29.7604, Lng: -95.3698, Label: "Houston, TX"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM enrichment_jobs").Scan(&count); err != nil {
		t.Fatalf("count jobs: %v", err)
	}
	if count != 0 {
		t.Fatalf("completed job not deleted, %d rows remain", count)
	}

	var lat, lng float64
	var status string
	err = db.QueryRow("SELECT lat, lng, enrich_status FROM entities WHERE id = 'load-2'").Scan(&lat, &lng, &status)
	if err != nil {
		t.Fatalf("read entity: %v", err)
	}
	if lat != 29.7604 || lng != -95.3698 || status != "done" {
		t.Fatalf("write-back wrong: lat=%v lng=%v status=%s", lat, lng, status)
	}
}

func TestJobStoreFailReleasesClaimAndRecordsReason(t *testing.T) {
	db := setupTestDB(t)
	jobs := sqlite.NewJobStore(db)
	ctx := context.Background()
	seedEntity(t, db, "load-3", "load")
	seedJob(t, jobs, "job-3", "load-3", signal.JobGeocode)

	now := time.Now().UTC()
	claimed, err := jobs.ClaimDue(ctx, now, 1, "worker-a", 5*time.Minute)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("claim: %v (%d)", err, len(claimed))
	}

	next := now.Add(2 * time.Hour)
	if err := jobs.Fail(ctx, "job-3", 1, next, "transient: upstream timeout"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	// Not due yet: claim at now finds nothing.
	none, err := jobs.ClaimDue(ctx, now, 10, "worker-b", 5*time.Minute)
	if err != nil {
		t.Fatalf("claim after fail: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("backed-off job claimable early: %v", none)
	}

	// Due after the backoff window.
	due, err := jobs.ClaimDue(ctx, next.Add(time.Second), 10, "worker-b", 5*time.Minute)
	if err != nil {
		t.Fatalf("claim after backoff: %v", err)
	}
	if len(due) != 1 || due[0].Attempts != 1 {
		t.Fatalf("job not rescheduled correctly: %+v", due)
	}

	var reason string
	if err := db.QueryRow("SELECT enrich_error FROM entities WHERE id = 'load-3'").Scan(&reason); err != nil {
		t.Fatalf("read entity reason: %v", err)
	}
	if reason != "transient: upstream timeout" {
		t.Fatalf("failure reason not recorded on entity: %q", reason)
	}
}

func TestJobStoreDeadLetterExcludedAndRequeueable(t *testing.T) {
	db := setupTestDB(t)
	jobs := sqlite.NewJobStore(db)
	ctx := context.Background()
	seedEntity(t, db, "load-4", "load")
	seedJob(t, jobs, "job-4", "load-4", signal.JobPolyline)

	if err := jobs.DeadLetter(ctx, "job-4", "invalid: unroutable pair"); err != nil {
		t.Fatalf("DeadLetter: %v", err)
	}

	claimed, err := jobs.ClaimDue(ctx, time.Now().UTC().Add(time.Hour), 10, "worker-a", time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 0 {
		t.Fatalf("dead-lettered job claimed by sweep: %v", claimed)
	}

	var status string
	if err := db.QueryRow("SELECT enrich_status FROM entities WHERE id = 'load-4'").Scan(&status); err != nil {
		t.Fatalf("read entity: %v", err)
	}
	if status != "failed" {
		t.Fatalf("entity status = %s, want failed", status)
	}

	dead, err := jobs.ListDeadLetters(ctx, 10)
	if err != nil || len(dead) != 1 {
		t.Fatalf("ListDeadLetters: %v (%d)", err, len(dead))
	}

	if err := jobs.Requeue(ctx, "job-4"); err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	claimed, err = jobs.ClaimDue(ctx, time.Now().UTC().Add(time.Second), 10, "worker-a", time.Minute)
	if err != nil {
		t.Fatalf("claim after requeue: %v", err)
	}
	if len(claimed) != 1 || claimed[0].Attempts != 0 {
		t.Fatalf("requeued job not claimable fresh: %+v", claimed)
	}

	// Requeue is only valid for dead letters.
	if err := jobs.Requeue(ctx, "job-4"); err == nil {
		t.Fatal("requeue of a pending job must fail")
	}
}

func TestJobStorePriorityThenAgeOrdering(t *testing.T) {
	db := setupTestDB(t)
	jobs := sqlite.NewJobStore(db)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, seed := range []struct {
		id       string
		priority int
		age      time.Duration
	}{
		{"job-low-old", 0, 0},
		{"job-high-new", 5, 30 * time.Minute},
		{"job-high-old", 5, 10 * time.Minute},
	} {
		seedEntity(t, db, seed.id+"-entity", "load")
		job := signal.EnrichmentJob{
			ID:        seed.id,
			EntityID:  signal.EntityID(seed.id + "-entity"),
			Kind:      signal.JobGeocode,
			Query:     "q",
			Priority:  seed.priority,
			CreatedAt: base.Add(seed.age),
		}
		if err := jobs.Enqueue(ctx, job); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	claimed, err := jobs.ClaimDue(ctx, time.Now().UTC(), 3, "w", time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	var got []string
	for _, j := range claimed {
		got = append(got, j.ID)
	}
	want := []string{"job-high-old", "job-high-new", "job-low-old"}
	if len(got) != len(want) {
		t.Fatalf("claimed %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
