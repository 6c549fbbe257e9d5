package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/haulcommand/signal-engine/internal/api"
	"github.com/haulcommand/signal-engine/internal/config"
	"github.com/haulcommand/signal-engine/internal/enrich"
	"github.com/haulcommand/signal-engine/internal/notify"
	"github.com/haulcommand/signal-engine/internal/scheduler"
	"github.com/haulcommand/signal-engine/internal/scorer"
	"github.com/haulcommand/signal-engine/internal/scorer/fraud"
	"github.com/haulcommand/signal-engine/internal/scorer/liquidity"
	"github.com/haulcommand/signal-engine/internal/scorer/loadrank"
	"github.com/haulcommand/signal-engine/internal/scorer/scarcity"
	"github.com/haulcommand/signal-engine/internal/store/sqlite"
)

func main() {
	cfgPath := flag.String("config", "configs/engine.yaml", "Path to engine YAML config")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}

	// ── Durable store ─────────────────────────────────────────────────────────
	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.Database.Path, "err", err)
		os.Exit(1)
	}
	defer db.Close()

	signals := sqlite.NewSignalStore(db)
	scores := sqlite.NewScoreStore(db)
	anomalies := sqlite.NewAnomalyStore(db)
	runs := sqlite.NewRunStore(db)
	jobs := sqlite.NewJobStore(db)
	outbox := sqlite.NewOutboxStore(db)
	reputations := sqlite.NewReputationStore(db)

	// ── Scorer registry ───────────────────────────────────────────────────────
	registry := scorer.NewRegistry()
	registry.Register(scarcity.New(cfg.Thresholds.Scarcity))
	registry.Register(loadrank.New(cfg.Thresholds.LoadRank))
	registry.Register(fraud.New(cfg.Thresholds.Fraud))
	registry.Register(liquidity.New(cfg.Thresholds.Liquidity))

	// ── Notification handoff ──────────────────────────────────────────────────
	var emitter notify.Emitter
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaEmitter := notify.NewKafkaEmitter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kafkaEmitter.Close()
		emitter = kafkaEmitter
		slog.Info("kafka handoff enabled", "topic", cfg.Kafka.Topic)
	} else {
		emitter = notify.NewLogEmitter(logger)
	}
	notifier := notify.New(outbox, emitter, logger)

	// ── Scheduler ─────────────────────────────────────────────────────────────
	scorerConfigs := schedulerConfigs(cfg)
	sched := scheduler.New(registry, signals, scores, anomalies, runs, notifier, logger, scorerConfigs)

	// ── Enrichment worker ─────────────────────────────────────────────────────
	providerTimeout := time.Duration(cfg.Provider.TimeoutMs) * time.Millisecond
	provider := enrich.NewNominatimProvider(
		cfg.Provider.GeocodeURL,
		cfg.Provider.RouteURL,
		cfg.Provider.UserAgent,
		&http.Client{Timeout: providerTimeout},
	)
	worker := enrich.NewWorker(jobs, provider, logger, enrich.Config{
		BatchSize:   cfg.Worker.BatchSize,
		Concurrency: cfg.Worker.Concurrency,
		Lease:       time.Duration(cfg.Worker.LeaseSec) * time.Second,
		JobTimeout:  providerTimeout,
		MaxAttempts: cfg.Worker.MaxAttempts,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Recompute cadence loops ───────────────────────────────────────────────
	for name, sc := range scorerConfigs {
		go func(name string, sc scheduler.ScorerConfig) {
			ticker := time.NewTicker(sc.Cadence)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if _, err := sched.Run(ctx, name, 0); err != nil {
						slog.Error("scheduled run failed", "scorer", name, "err", err)
					}
				case <-ctx.Done():
					return
				}
			}
		}(name, sc)
	}

	// ── Sweep loop ────────────────────────────────────────────────────────────
	go func() {
		interval := time.Duration(cfg.Worker.SweepIntervalMin) * time.Minute
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := worker.Sweep(ctx, 0); err != nil {
					slog.Error("scheduled sweep failed", "err", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.EngineConfig) {
		if err := config.Validate(newCfg); err != nil {
			slog.Warn("hot-reload skipped: config invalid", "err", err)
			return
		}
		sched.SetConfigs(schedulerConfigs(newCfg))
		// Cadence loop intervals, formula thresholds and store wiring are
		// fixed at startup.
		slog.Info("config reloaded; anomaly thresholds and batch sizes applied live")
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.New(sched, worker, registry, jobs, anomalies, reputations, notifier, db, logger)
	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	cancel() // stop cadence and sweep loops
	slog.Info("goodbye")
}

// schedulerConfigs maps the YAML scorer blocks onto scheduler knobs.
func schedulerConfigs(cfg *config.EngineConfig) map[string]scheduler.ScorerConfig {
	out := make(map[string]scheduler.ScorerConfig, len(cfg.Scorers))
	for name, sc := range cfg.Scorers {
		out[name] = scheduler.ScorerConfig{
			Cadence:          time.Duration(sc.CadenceMin) * time.Minute,
			AnomalyThreshold: sc.AnomalyThreshold,
			BatchSize:        sc.BatchSize,
		}
	}
	return out
}
