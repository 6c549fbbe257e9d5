package config

import (
	"fmt"
	"strings"
)

// Validate checks the config for:
//   - Required fields (version, database path)
//   - Sane scorer settings (positive cadence, non-negative threshold)
//   - Formula threshold sanity (positive horizons, ordered fraud actions)
//   - Consistent worker and Kafka settings
func Validate(cfg *EngineConfig) error {
	var errs []string

	if cfg.Version == "" {
		errs = append(errs, "version is required")
	}
	if cfg.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	for name, sc := range cfg.Scorers {
		if name == "" {
			errs = append(errs, "scorers: empty scorer name")
			continue
		}
		if sc.CadenceMin < 0 {
			errs = append(errs, fmt.Sprintf("scorers.%s: cadence_min must not be negative", name))
		}
		if sc.AnomalyThreshold < 0 {
			errs = append(errs, fmt.Sprintf("scorers.%s: anomaly_threshold must not be negative", name))
		}
		if sc.BatchSize < 0 {
			errs = append(errs, fmt.Sprintf("scorers.%s: batch_size must not be negative", name))
		}
	}

	if cfg.Thresholds.Scarcity.LatencyTargetMin <= 0 {
		errs = append(errs, "thresholds.scarcity: latency_target_min must be positive")
	}
	if cfg.Thresholds.LoadRank.FreshnessWindowMin <= 0 {
		errs = append(errs, "thresholds.load_rank: freshness_window_min must be positive")
	}
	fr := cfg.Thresholds.Fraud
	if fr.AutoHoldThreshold < fr.ShadowReduceThreshold || fr.ShadowReduceThreshold < fr.FlagThreshold {
		errs = append(errs, "thresholds.review_fraud: action thresholds must be ordered auto_hold >= shadow_reduce >= flag")
	}
	if fr.VelocityCap <= 0 {
		errs = append(errs, "thresholds.review_fraud: velocity_cap must be positive")
	}

	if cfg.Worker.MaxAttempts < 1 {
		errs = append(errs, "worker.max_attempts must be at least 1")
	}
	if cfg.Worker.Concurrency < 1 {
		errs = append(errs, "worker.concurrency must be at least 1")
	}
	if cfg.Worker.LeaseSec < 1 {
		errs = append(errs, "worker.lease_sec must be at least 1")
	}

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Topic == "" {
		errs = append(errs, "kafka.topic is required when brokers are set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
