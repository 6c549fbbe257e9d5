// Package scheduler drives the recompute loop: it pages due entities per
// scorer, feeds each a fresh snapshot, persists results idempotently keyed by
// recompute window, and compares every new score against the previous one to
// flag anomalies. Entity failures never abort a run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haulcommand/signal-engine/internal/metrics"
	"github.com/haulcommand/signal-engine/internal/notify"
	"github.com/haulcommand/signal-engine/internal/scorer"
	"github.com/haulcommand/signal-engine/internal/scorer/fraud"
	"github.com/haulcommand/signal-engine/internal/scorer/scarcity"
	"github.com/haulcommand/signal-engine/internal/signal"
	"github.com/haulcommand/signal-engine/internal/store"
)

// ScorerConfig carries the per-scorer knobs the loop needs.
type ScorerConfig struct {
	// Cadence buckets results into recompute windows; re-runs inside one
	// window overwrite the same row.
	Cadence time.Duration
	// AnomalyThreshold is the absolute score delta beyond which a recompute
	// is flagged for audit. Zero disables anomaly comparison.
	AnomalyThreshold float64
	// BatchSize is the default page size when the caller passes none.
	BatchSize int
}

func (c ScorerConfig) withDefaults() ScorerConfig {
	if c.Cadence <= 0 {
		c.Cadence = 15 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	return c
}

// Summary reports one run.
type Summary struct {
	Scorer           string `json:"scorer"`
	Processed        int    `json:"processed"`
	Succeeded        int    `json:"succeeded"`
	Failed           int    `json:"failed"`
	AnomaliesFlagged int    `json:"anomalies_flagged"`
}

// Scheduler resolves scorer names against the registry and runs recompute
// batches over the stores.
type Scheduler struct {
	registry  *scorer.Registry
	signals   store.SignalStore
	scores    store.ScoreStore
	anomalies store.AnomalyStore
	runs      store.RunStore
	notifier  *notify.Notifier
	log       *slog.Logger

	mu      sync.RWMutex
	configs map[string]ScorerConfig
}

func New(
	registry *scorer.Registry,
	signals store.SignalStore,
	scores store.ScoreStore,
	anomalies store.AnomalyStore,
	runs store.RunStore,
	notifier *notify.Notifier,
	log *slog.Logger,
	configs map[string]ScorerConfig,
) *Scheduler {
	return &Scheduler{
		registry:  registry,
		signals:   signals,
		scores:    scores,
		anomalies: anomalies,
		runs:      runs,
		notifier:  notifier,
		log:       log.With(slog.String("component", "scheduler")),
		configs:   configs,
	}
}

// SetConfigs swaps the per-scorer knobs, typically on a config hot reload.
// Runs already in flight keep the config they started with.
func (s *Scheduler) SetConfigs(configs map[string]ScorerConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs = configs
}

func (s *Scheduler) configFor(name string) ScorerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.configs[name].withDefaults()
}

// Run recomputes up to batchSize due entities for the named scorer. A
// batchSize of zero uses the configured default. Only resolution and paging
// errors are fatal; per-entity failures are logged and counted.
func (s *Scheduler) Run(ctx context.Context, scorerName string, batchSize int) (Summary, error) {
	sc, err := s.registry.Get(scorerName)
	if err != nil {
		return Summary{}, err
	}
	cfg := s.configFor(scorerName)
	if batchSize <= 0 {
		batchSize = cfg.BatchSize
	}

	start := time.Now()
	metrics.RunsStarted.WithLabelValues(scorerName).Inc()

	due, err := s.scores.ListDue(ctx, scorerName, batchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("list due entities for %s: %w", scorerName, err)
	}

	sum := Summary{Scorer: scorerName, Processed: len(due)}
	window := signal.Window(start, cfg.Cadence)
	for _, entityID := range due {
		if err := s.recompute(ctx, sc, entityID, window, cfg, &sum); err != nil {
			sum.Failed++
			metrics.EntitiesScored.WithLabelValues(scorerName, "failed").Inc()
			s.log.Warn("entity recompute failed",
				slog.String("scorer", scorerName),
				slog.String("entity_id", string(entityID)),
				slog.Any("error", err))
			continue
		}
		sum.Succeeded++
		metrics.EntitiesScored.WithLabelValues(scorerName, "ok").Inc()
	}

	if err := s.runs.SetLastRun(ctx, scorerName, start.UTC()); err != nil {
		s.log.Warn("record last run", slog.String("scorer", scorerName), slog.Any("error", err))
	}
	metrics.RunDuration.WithLabelValues(scorerName).Observe(float64(time.Since(start).Milliseconds()))
	s.log.Info("run finished",
		slog.String("scorer", scorerName),
		slog.Int("processed", sum.Processed),
		slog.Int("succeeded", sum.Succeeded),
		slog.Int("failed", sum.Failed),
		slog.Int("anomalies", sum.AnomaliesFlagged))
	return sum, nil
}

func (s *Scheduler) recompute(
	ctx context.Context,
	sc scorer.Scorer,
	entityID signal.EntityID,
	window string,
	cfg ScorerConfig,
	sum *Summary,
) error {
	snap, err := s.signals.GetSnapshot(ctx, entityID, sc.Name())
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	res, err := sc.Score(snap)
	if err != nil {
		if errors.Is(err, signal.ErrMissingInput) {
			return fmt.Errorf("skipped: %w", err)
		}
		return err
	}
	res.Window = window

	// Previous result must be read before the upsert overwrites this window.
	prev, err := s.scores.GetPrevious(ctx, entityID, sc.Name())
	if err != nil {
		return fmt.Errorf("previous result: %w", err)
	}
	if err := s.scores.Upsert(ctx, res); err != nil {
		return fmt.Errorf("upsert result: %w", err)
	}

	if prev != nil && cfg.AnomalyThreshold > 0 {
		delta := res.Score - prev.Score
		if math.Abs(delta) > cfg.AnomalyThreshold {
			s.flagAnomaly(ctx, *prev, res, delta)
			sum.AnomaliesFlagged++
		}
	}
	s.emitHandoffs(ctx, res)
	return nil
}

// flagAnomaly records a surprising delta for audit. The new score still
// stands; the flag is a signal to look, not an automatic rollback.
func (s *Scheduler) flagAnomaly(ctx context.Context, prev, res signal.Result, delta float64) {
	flag := signal.AnomalyFlag{
		ID:        uuid.NewString(),
		EntityID:  res.EntityID,
		Scorer:    res.Scorer,
		PrevScore: prev.Score,
		NewScore:  res.Score,
		Delta:     delta,
		Window:    res.Window,
		RaisedAt:  time.Now().UTC(),
	}
	if err := s.anomalies.Insert(ctx, flag); err != nil {
		s.log.Error("record anomaly flag",
			slog.String("scorer", res.Scorer),
			slog.String("entity_id", string(res.EntityID)),
			slog.Any("error", err))
		return
	}
	metrics.AnomaliesFlagged.WithLabelValues(res.Scorer).Inc()
	s.log.Warn("anomalous score delta",
		slog.String("scorer", res.Scorer),
		slog.String("entity_id", string(res.EntityID)),
		slog.Float64("prev", prev.Score),
		slog.Float64("new", res.Score),
		slog.Float64("delta", delta))
	if s.notifier != nil {
		s.notifier.Publish(ctx, notify.Event{
			Kind:     notify.KindAnomaly,
			EntityID: res.EntityID,
			Scorer:   res.Scorer,
			Payload: map[string]any{
				"prev_score": prev.Score,
				"new_score":  res.Score,
				"delta":      delta,
				"window":     res.Window,
			},
		})
	}
}

// emitHandoffs publishes kind-specific downstream events for results that
// demand action outside the engine.
func (s *Scheduler) emitHandoffs(ctx context.Context, res signal.Result) {
	if s.notifier == nil {
		return
	}
	switch {
	case res.Scorer == fraud.Name && res.Band == fraud.ActionAutoHold:
		s.notifier.Publish(ctx, notify.Event{
			Kind:     notify.KindFraudHold,
			EntityID: res.EntityID,
			Scorer:   res.Scorer,
			Payload: map[string]any{
				"score":   res.Score,
				"signals": res.Signals,
				"window":  res.Window,
			},
		})
	case res.Scorer == scarcity.Name && res.Band == "critical":
		s.notifier.Publish(ctx, notify.Event{
			Kind:     notify.KindSurgeAlert,
			EntityID: res.EntityID,
			Scorer:   res.Scorer,
			Payload: map[string]any{
				"index":  res.Score,
				"window": res.Window,
			},
		})
	}
}
