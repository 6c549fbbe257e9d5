package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haulcommand/signal-engine/internal/metrics"
	"github.com/haulcommand/signal-engine/internal/signal"
	"github.com/haulcommand/signal-engine/internal/store"
)

// Config tunes one worker. Zero values fall back to defaults.
type Config struct {
	BatchSize   int
	Concurrency int
	Lease       time.Duration
	JobTimeout  time.Duration
	MaxAttempts int
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 25
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.Lease <= 0 {
		c.Lease = 2 * time.Minute
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 8 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 6
	}
	return c
}

// Summary reports what one sweep did.
type Summary struct {
	Claimed      int `json:"claimed"`
	Completed    int `json:"completed"`
	Retried      int `json:"retried"`
	DeadLettered int `json:"dead_lettered"`
	StoreErrors  int `json:"store_errors"`
}

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeRetried
	outcomeDeadLettered
	outcomeStoreError
)

// Worker drains due enrichment jobs. Claims are exclusive per sweep token,
// so several workers can sweep the same queue concurrently.
type Worker struct {
	jobs     store.JobStore
	provider RouteProvider
	log      *slog.Logger
	cfg      Config
}

func NewWorker(jobs store.JobStore, provider RouteProvider, log *slog.Logger, cfg Config) *Worker {
	return &Worker{
		jobs:     jobs,
		provider: provider,
		log:      log.With(slog.String("component", "enrich-worker")),
		cfg:      cfg.withDefaults(),
	}
}

// Sweep claims up to limit due jobs (the configured BatchSize when limit is
// zero) and processes them with bounded concurrency. Individual job failures
// become backoff state; Sweep itself only returns an error when nothing could
// be claimed because the store is unreachable.
func (w *Worker) Sweep(ctx context.Context, limit int) (Summary, error) {
	if limit <= 0 {
		limit = w.cfg.BatchSize
	}
	token := uuid.NewString()
	now := time.Now().UTC()

	claimed, err := w.jobs.ClaimDue(ctx, now, limit, token, w.cfg.Lease)
	if err != nil {
		return Summary{}, fmt.Errorf("claim due jobs: %w", err)
	}
	sum := Summary{Claimed: len(claimed)}
	if len(claimed) == 0 {
		w.refreshBacklog(ctx)
		return sum, nil
	}

	outcomes := make(chan outcome, len(claimed))
	queue := make(chan signal.EnrichmentJob)
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				outcomes <- w.process(ctx, job)
			}
		}()
	}
	for _, job := range claimed {
		queue <- job
	}
	close(queue)
	wg.Wait()
	close(outcomes)

	for o := range outcomes {
		switch o {
		case outcomeCompleted:
			sum.Completed++
		case outcomeRetried:
			sum.Retried++
		case outcomeDeadLettered:
			sum.DeadLettered++
		case outcomeStoreError:
			sum.StoreErrors++
		}
	}
	w.refreshBacklog(ctx)
	w.log.Info("sweep finished",
		slog.Int("claimed", sum.Claimed),
		slog.Int("completed", sum.Completed),
		slog.Int("retried", sum.Retried),
		slog.Int("dead_lettered", sum.DeadLettered))
	return sum, nil
}

// process runs one job under its own deadline and resolves it. The provider
// call uses a child context; resolution uses the parent so a timed-out call
// can still be recorded.
func (w *Worker) process(ctx context.Context, job signal.EnrichmentJob) outcome {
	callCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	var enr store.Enrichment
	var err error
	switch job.Kind {
	case signal.JobGeocode:
		var place Place
		place, err = w.provider.Geocode(callCtx, job.Query)
		enr = store.Enrichment{Lat: place.Lat, Lng: place.Lng, Label: place.Label}
	case signal.JobPolyline:
		origin, dest, ok := SplitRouteQuery(job.Query)
		if !ok {
			err = fmt.Errorf("%w: malformed route query %q", signal.ErrProviderPermanent, job.Query)
		} else {
			enr.Polyline, err = w.provider.GetRoutePolyline(callCtx, origin, dest)
		}
	default:
		return w.deadLetter(ctx, job, fmt.Sprintf("unknown job kind %q", job.Kind))
	}

	if err == nil {
		if cerr := w.jobs.Complete(ctx, job, enr); cerr != nil {
			w.log.Error("write back enrichment",
				slog.String("job_id", job.ID),
				slog.Any("error", cerr))
			return outcomeStoreError
		}
		metrics.JobsProcessed.WithLabelValues(string(job.Kind), "completed").Inc()
		return outcomeCompleted
	}
	return w.fail(ctx, job, err)
}

// fail converts a provider error into backoff state, dead-lettering once the
// attempt count exceeds the cap. A job at the cap still gets its final,
// fully saturated backoff rung before the next failure retires it. Timeouts
// count as transient.
func (w *Worker) fail(ctx context.Context, job signal.EnrichmentJob, provErr error) outcome {
	reason := failureReason(provErr)
	attempts := job.Attempts + 1
	if attempts > w.cfg.MaxAttempts {
		return w.deadLetter(ctx, job, reason)
	}
	next := time.Now().UTC().Add(Backoff(attempts))
	if err := w.jobs.Fail(ctx, job.ID, attempts, next, reason); err != nil {
		w.log.Error("record job failure",
			slog.String("job_id", job.ID),
			slog.Any("error", err))
		return outcomeStoreError
	}
	w.log.Warn("job backed off",
		slog.String("job_id", job.ID),
		slog.Int("attempts", attempts),
		slog.Time("next_attempt_at", next),
		slog.String("reason", reason))
	metrics.JobsProcessed.WithLabelValues(string(job.Kind), "retried").Inc()
	return outcomeRetried
}

func (w *Worker) deadLetter(ctx context.Context, job signal.EnrichmentJob, reason string) outcome {
	if err := w.jobs.DeadLetter(ctx, job.ID, reason); err != nil {
		w.log.Error("dead-letter job",
			slog.String("job_id", job.ID),
			slog.Any("error", err))
		return outcomeStoreError
	}
	w.log.Error("job dead-lettered",
		slog.String("job_id", job.ID),
		slog.String("entity_id", string(job.EntityID)),
		slog.String("reason", reason))
	metrics.JobsProcessed.WithLabelValues(string(job.Kind), "dead_lettered").Inc()
	return outcomeDeadLettered
}

// failureReason renders a terse, taxonomy-prefixed reason for storage on the
// job and entity. Permanent rejections are flagged "invalid:" so operators
// can spot bad queries without reading provider logs.
func failureReason(err error) string {
	switch {
	case errors.Is(err, signal.ErrProviderPermanent):
		return "invalid: " + err.Error()
	case errors.Is(err, signal.ErrProviderNoResult):
		return "no result: " + err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "transient: provider call timed out"
	default:
		return "transient: " + err.Error()
	}
}

func (w *Worker) refreshBacklog(ctx context.Context) {
	pending, dead, err := w.jobs.CountByStatus(ctx)
	if err != nil {
		w.log.Warn("count queue depth", slog.Any("error", err))
		return
	}
	metrics.JobBacklog.Set(float64(pending))
	metrics.DeadLetters.Set(float64(dead))
}
