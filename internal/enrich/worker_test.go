package enrich_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/haulcommand/signal-engine/internal/enrich"
	"github.com/haulcommand/signal-engine/internal/signal"
	"github.com/haulcommand/signal-engine/internal/store"
)

// fakeJobStore is an in-memory queue recording the resolution calls the
// worker makes.
type fakeJobStore struct {
	mu       sync.Mutex
	jobs     map[string]signal.EnrichmentJob
	failed   map[string]failCall
	dead     map[string]string
	enriched map[string]store.Enrichment
}

type failCall struct {
	attempts int
	next     time.Time
	reason   string
}

func newFakeJobStore(jobs ...signal.EnrichmentJob) *fakeJobStore {
	s := &fakeJobStore{
		jobs:     map[string]signal.EnrichmentJob{},
		failed:   map[string]failCall{},
		dead:     map[string]string{},
		enriched: map[string]store.Enrichment{},
	}
	for _, j := range jobs {
		if j.Status == "" {
			j.Status = signal.JobPending
		}
		s.jobs[j.ID] = j
	}
	return s
}

func (s *fakeJobStore) Enqueue(_ context.Context, job signal.EnrichmentJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *fakeJobStore) ClaimDue(_ context.Context, now time.Time, limit int, _ string, _ time.Duration) ([]signal.EnrichmentJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []signal.EnrichmentJob
	for _, j := range s.jobs {
		if j.Status != signal.JobPending || j.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, j)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeJobStore) Complete(_ context.Context, job signal.EnrichmentJob, enr store.Enrichment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, job.ID)
	s.enriched[string(job.EntityID)] = enr
	return nil
}

func (s *fakeJobStore) Fail(_ context.Context, jobID string, attempts int, next time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[jobID]
	j.Attempts = attempts
	j.NextAttemptAt = next
	j.LastError = reason
	s.jobs[jobID] = j
	s.failed[jobID] = failCall{attempts: attempts, next: next, reason: reason}
	return nil
}

func (s *fakeJobStore) DeadLetter(_ context.Context, jobID string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[jobID]
	j.Status = signal.JobDeadLetter
	s.jobs[jobID] = j
	s.dead[jobID] = reason
	return nil
}

func (s *fakeJobStore) Requeue(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[jobID]
	j.Status = signal.JobPending
	j.Attempts = 0
	s.jobs[jobID] = j
	return nil
}

func (s *fakeJobStore) ListDeadLetters(context.Context, int) ([]signal.EnrichmentJob, error) {
	return nil, nil
}

func (s *fakeJobStore) CountByStatus(context.Context) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending, dead int
	for _, j := range s.jobs {
		switch j.Status {
		case signal.JobPending:
			pending++
		case signal.JobDeadLetter:
			dead++
		}
	}
	return pending, dead, nil
}

// scriptedProvider resolves queries via a fixed table; unknown queries error.
type scriptedProvider struct {
	places map[string]enrich.Place
	routes map[string]string
	errs   map[string]error
}

func (p *scriptedProvider) Geocode(_ context.Context, query string) (enrich.Place, error) {
	if err, ok := p.errs[query]; ok {
		return enrich.Place{}, err
	}
	if place, ok := p.places[query]; ok {
		return place, nil
	}
	return enrich.Place{}, fmt.Errorf("%w: %q", signal.ErrProviderNoResult, query)
}

func (p *scriptedProvider) GetRoutePolyline(_ context.Context, origin, destination string) (string, error) {
	key := origin + "|" + destination
	if err, ok := p.errs[key]; ok {
		return "", err
	}
	if poly, ok := p.routes[key]; ok {
		return poly, nil
	}
	return "", fmt.Errorf("%w: %s -> %s", signal.ErrProviderNoResult, origin, destination)
}

func testWorker(jobs store.JobStore, provider enrich.RouteProvider, cfg enrich.Config) *enrich.Worker {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return enrich.NewWorker(jobs, provider, log, cfg)
}

func TestSweepCompletesGeocodeJob(t *testing.T) {
	jobs := newFakeJobStore(signal.EnrichmentJob{
		ID: "j1", EntityID: "load-1", Kind: signal.JobGeocode, Query: "Houston, TX",
	})
	provider := &scriptedProvider{places: map[string]enrich.Place{
		"Houston, TX": {Lat: 29.76, Lng: -95.37, Label: "Houston, Harris County, TX"},
	}}

	sum, err := testWorker(jobs, provider, enrich.Config{}).Sweep(context.Background(), 0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if sum.Claimed != 1 || sum.Completed != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	enr, ok := jobs.enriched["load-1"]
	if !ok || enr.Lat != 29.76 || enr.Lng != -95.37 {
		t.Fatalf("enrichment not written back: %+v", enr)
	}
	if _, still := jobs.jobs["j1"]; still {
		t.Fatal("completed job not removed")
	}
}

func TestSweepCompletesPolylineJob(t *testing.T) {
	jobs := newFakeJobStore(signal.EnrichmentJob{
		ID: "j2", EntityID: "load-2", Kind: signal.JobPolyline,
		Query: enrich.RouteQuery("-95.37,29.76", "-97.74,30.27"),
	})
	provider := &scriptedProvider{routes: map[string]string{
		"-95.37,29.76|-97.74,30.27": "_p~iF~ps|U_ulLnnqC",
	}}

	sum, err := testWorker(jobs, provider, enrich.Config{}).Sweep(context.Background(), 0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if sum.Completed != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if jobs.enriched["load-2"].Polyline != "_p~iF~ps|U_ulLnnqC" {
		t.Fatalf("polyline not written back: %+v", jobs.enriched["load-2"])
	}
}

func TestSweepBacksOffTransientFailure(t *testing.T) {
	jobs := newFakeJobStore(signal.EnrichmentJob{
		ID: "j3", EntityID: "load-3", Kind: signal.JobGeocode, Query: "flaky",
	})
	provider := &scriptedProvider{errs: map[string]error{
		"flaky": fmt.Errorf("%w: status 503", signal.ErrProviderTransient),
	}}

	before := time.Now().UTC()
	sum, err := testWorker(jobs, provider, enrich.Config{}).Sweep(context.Background(), 0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if sum.Retried != 1 || sum.DeadLettered != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	call, ok := jobs.failed["j3"]
	if !ok {
		t.Fatal("Fail not called")
	}
	if call.attempts != 1 {
		t.Fatalf("attempts = %d, want 1", call.attempts)
	}
	// First retry lands ~2h out.
	if d := call.next.Sub(before); d < 2*time.Hour || d > 2*time.Hour+time.Minute {
		t.Fatalf("next attempt delta = %v, want ~2h", d)
	}
	if !strings.HasPrefix(call.reason, "transient:") {
		t.Fatalf("reason = %q, want transient prefix", call.reason)
	}
}

func TestSweepFlagsInvalidQueryDistinctly(t *testing.T) {
	jobs := newFakeJobStore(signal.EnrichmentJob{
		ID: "j4", EntityID: "load-4", Kind: signal.JobGeocode, Query: "garbage",
	})
	provider := &scriptedProvider{errs: map[string]error{
		"garbage": fmt.Errorf("%w: status 400", signal.ErrProviderPermanent),
	}}

	if _, err := testWorker(jobs, provider, enrich.Config{}).Sweep(context.Background(), 0); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	call := jobs.failed["j4"]
	if !strings.HasPrefix(call.reason, "invalid:") {
		t.Fatalf("reason = %q, want invalid prefix", call.reason)
	}
}

func TestSweepRecordsNoResult(t *testing.T) {
	jobs := newFakeJobStore(signal.EnrichmentJob{
		ID: "j5", EntityID: "load-5", Kind: signal.JobGeocode, Query: "nowhere",
	})

	if _, err := testWorker(jobs, &scriptedProvider{}, enrich.Config{}).Sweep(context.Background(), 0); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	call := jobs.failed["j5"]
	if !strings.HasPrefix(call.reason, "no result:") {
		t.Fatalf("reason = %q, want no-result prefix", call.reason)
	}
}

func TestSweepDeadLettersPastAttemptCap(t *testing.T) {
	jobs := newFakeJobStore(signal.EnrichmentJob{
		ID: "j6", EntityID: "load-6", Kind: signal.JobGeocode, Query: "flaky", Attempts: 6,
	})
	provider := &scriptedProvider{errs: map[string]error{
		"flaky": fmt.Errorf("%w: status 503", signal.ErrProviderTransient),
	}}

	sum, err := testWorker(jobs, provider, enrich.Config{MaxAttempts: 6}).Sweep(context.Background(), 0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if sum.DeadLettered != 1 || sum.Retried != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if _, ok := jobs.dead["j6"]; !ok {
		t.Fatal("job not dead-lettered")
	}
	if jobs.jobs["j6"].Status != signal.JobDeadLetter {
		t.Fatalf("status = %s", jobs.jobs["j6"].Status)
	}
}

func TestSweepFinalAttemptGetsSaturatedBackoff(t *testing.T) {
	// A job failing its last budgeted attempt is still retried, at the
	// fully saturated 48h rung; only the failure after that dead-letters.
	jobs := newFakeJobStore(signal.EnrichmentJob{
		ID: "j8", EntityID: "load-8", Kind: signal.JobGeocode, Query: "flaky", Attempts: 5,
	})
	provider := &scriptedProvider{errs: map[string]error{
		"flaky": fmt.Errorf("%w: status 503", signal.ErrProviderTransient),
	}}

	before := time.Now().UTC()
	sum, err := testWorker(jobs, provider, enrich.Config{MaxAttempts: 6}).Sweep(context.Background(), 0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if sum.Retried != 1 || sum.DeadLettered != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	call, ok := jobs.failed["j8"]
	if !ok {
		t.Fatal("Fail not called")
	}
	if call.attempts != 6 {
		t.Fatalf("attempts = %d, want 6", call.attempts)
	}
	if call.next.Before(before.Add(48*time.Hour)) || call.next.After(before.Add(48*time.Hour+time.Minute)) {
		t.Fatalf("next attempt %v, want ~48h out", call.next)
	}
}

func TestSweepMalformedRouteQueryIsInvalid(t *testing.T) {
	jobs := newFakeJobStore(signal.EnrichmentJob{
		ID: "j7", EntityID: "load-7", Kind: signal.JobPolyline, Query: "missing-separator",
	})

	if _, err := testWorker(jobs, &scriptedProvider{}, enrich.Config{}).Sweep(context.Background(), 0); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	call := jobs.failed["j7"]
	if !strings.HasPrefix(call.reason, "invalid:") {
		t.Fatalf("reason = %q, want invalid prefix", call.reason)
	}
}

func TestSweepIsolatesFailuresAcrossBatch(t *testing.T) {
	jobs := newFakeJobStore(
		signal.EnrichmentJob{ID: "ok", EntityID: "load-ok", Kind: signal.JobGeocode, Query: "Houston, TX"},
		signal.EnrichmentJob{ID: "bad", EntityID: "load-bad", Kind: signal.JobGeocode, Query: "flaky"},
	)
	provider := &scriptedProvider{
		places: map[string]enrich.Place{"Houston, TX": {Lat: 29.76, Lng: -95.37}},
		errs:   map[string]error{"flaky": fmt.Errorf("%w: status 502", signal.ErrProviderTransient)},
	}

	sum, err := testWorker(jobs, provider, enrich.Config{Concurrency: 2}).Sweep(context.Background(), 0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if sum.Claimed != 2 || sum.Completed != 1 || sum.Retried != 1 {
		t.Fatalf("summary = %+v", sum)
	}
}
