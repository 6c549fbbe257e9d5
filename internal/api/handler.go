// Package api exposes the engine's trigger surface: manual recompute runs,
// enrichment sweeps, anomaly and dead-letter inspection, and the usual
// health/metrics endpoints. There is no end-user surface here; callers are
// operators and internal services.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/google/uuid"

	"github.com/haulcommand/signal-engine/internal/enrich"
	"github.com/haulcommand/signal-engine/internal/notify"
	"github.com/haulcommand/signal-engine/internal/reputation"
	"github.com/haulcommand/signal-engine/internal/scheduler"
	"github.com/haulcommand/signal-engine/internal/scorer"
	"github.com/haulcommand/signal-engine/internal/signal"
	"github.com/haulcommand/signal-engine/internal/store"
)

const maxListLimit = 500

// Pinger reports whether the durable store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	sched      *scheduler.Scheduler
	worker     *enrich.Worker
	registry   *scorer.Registry
	jobs       store.JobStore
	anomalies  store.AnomalyStore
	reputation store.ReputationStore
	notifier   *notify.Notifier
	db         Pinger
	log        *slog.Logger
	mux        *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(
	sched *scheduler.Scheduler,
	worker *enrich.Worker,
	registry *scorer.Registry,
	jobs store.JobStore,
	anomalies store.AnomalyStore,
	reputationStore store.ReputationStore,
	notifier *notify.Notifier,
	db Pinger,
	log *slog.Logger,
) http.Handler {
	h := &Handler{
		sched:      sched,
		worker:     worker,
		registry:   registry,
		jobs:       jobs,
		anomalies:  anomalies,
		reputation: reputationStore,
		notifier:   notifier,
		db:         db,
		log:        log.With(slog.String("component", "api")),
		mux:        http.NewServeMux(),
	}

	h.mux.HandleFunc("GET /v1/scorers", h.listScorers)
	h.mux.HandleFunc("POST /v1/run/{scorer}", h.runScorer)
	h.mux.HandleFunc("POST /v1/enrich/sweep", h.sweep)
	h.mux.HandleFunc("GET /v1/anomalies", h.listAnomalies)
	h.mux.HandleFunc("GET /v1/deadletters", h.listDeadLetters)
	h.mux.HandleFunc("POST /v1/deadletters/{id}/requeue", h.requeueDeadLetter)
	h.mux.HandleFunc("GET /v1/reputation/{entity}", h.getReputation)
	h.mux.HandleFunc("POST /v1/reputation/{entity}/events", h.appendReputationEvent)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return h.loggingMiddleware(h.mux)
}

// GET /v1/scorers — registered scorer names.
func (h *Handler) listScorers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"scorers": h.registry.Names()})
}

// POST /v1/run/{scorer} — trigger a synchronous recompute batch.
func (h *Handler) runScorer(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("scorer")
	batchSize, err := parseOptionalInt(r, "batch_size")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sum, err := h.sched.Run(r.Context(), name, batchSize)
	if err != nil {
		if _, regErr := h.registry.Get(name); regErr != nil {
			writeError(w, http.StatusNotFound, regErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// POST /v1/enrich/sweep — drain due enrichment jobs once. An optional limit
// overrides the worker's configured batch size for this sweep.
func (h *Handler) sweep(w http.ResponseWriter, r *http.Request) {
	limit, err := parseOptionalInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sum, err := h.worker.Sweep(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// GET /v1/anomalies — recent anomaly flags for audit.
func (h *Handler) listAnomalies(w http.ResponseWriter, r *http.Request) {
	limit, err := parseOptionalInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if limit <= 0 || limit > maxListLimit {
		limit = 100
	}
	flags, err := h.anomalies.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"anomalies": flags})
}

// GET /v1/deadletters — jobs that exhausted their retry budget.
func (h *Handler) listDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit, err := parseOptionalInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if limit <= 0 || limit > maxListLimit {
		limit = 100
	}
	jobs, err := h.jobs.ListDeadLetters(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dead_letters": jobs})
}

// POST /v1/deadletters/{id}/requeue — manual revival of a dead letter.
func (h *Handler) requeueDeadLetter(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.jobs.Requeue(r.Context(), id); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requeued": id})
}

// GET /v1/reputation/{entity} — running total and current tier, recomputed
// from the full ledger.
func (h *Handler) getReputation(w http.ResponseWriter, r *http.Request) {
	entityID := signal.EntityID(r.PathValue("entity"))
	events, err := h.reputation.Events(r.Context(), entityID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total := reputation.Total(events)
	tier := reputation.RankFor(total)
	writeJSON(w, http.StatusOK, map[string]any{
		"entity_id": entityID,
		"total":     total,
		"tier":      tier,
		"events":    len(events),
	})
}

// POST /v1/reputation/{entity}/events — append one ledger event. The point
// delta comes from the fixed table; unknown kinds are rejected.
func (h *Handler) appendReputationEvent(w http.ResponseWriter, r *http.Request) {
	entityID := r.PathValue("entity")
	var body struct {
		Kind reputation.EventKind `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	points, err := reputation.Delta(body.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	before, err := h.reputation.Events(r.Context(), signal.EntityID(entityID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	prevTier := reputation.RankFor(reputation.Total(before))

	ev := reputation.Event{
		ID:         uuid.NewString(),
		EntityID:   entityID,
		Kind:       body.Kind,
		Points:     points,
		OccurredAt: time.Now().UTC(),
	}
	if err := h.reputation.Append(r.Context(), ev); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total := reputation.Total(append(before, ev))
	tier := reputation.RankFor(total)
	if tier.Name != prevTier.Name && h.notifier != nil {
		h.notifier.Publish(r.Context(), notify.Event{
			Kind:     notify.KindTierPromotion,
			EntityID: signal.EntityID(entityID),
			Payload: map[string]any{
				"from":  prevTier.Name,
				"to":    tier.Name,
				"total": total,
				"boost": tier.Boost,
			},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"event": ev,
		"total": total,
		"tier":  tier,
	})
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 until the store answers a ping.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "store unreachable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		h.log.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path))
	})
}

// parseOptionalInt reads an integer from the query string or, for POSTs, a
// JSON body field of the same name. Absent values return zero.
func parseOptionalInt(r *http.Request, name string) (int, error) {
	if raw := r.URL.Query().Get(name); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %q", name, raw)
		}
		return v, nil
	}
	if r.Method != http.MethodPost || r.Body == nil {
		return 0, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil || len(body) == 0 {
		return 0, nil
	}
	var fields map[string]int
	if err := json.Unmarshal(body, &fields); err != nil {
		return 0, nil
	}
	return fields[name], nil
}
