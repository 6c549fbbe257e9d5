package config

import (
	"github.com/haulcommand/signal-engine/internal/scorer/fraud"
	"github.com/haulcommand/signal-engine/internal/scorer/liquidity"
	"github.com/haulcommand/signal-engine/internal/scorer/loadrank"
	"github.com/haulcommand/signal-engine/internal/scorer/scarcity"
)

// EngineConfig is the top-level YAML structure.
type EngineConfig struct {
	Version    string                `yaml:"version"`
	Server     ServerConf            `yaml:"server"`
	Database   DatabaseConf          `yaml:"database"`
	Scorers    map[string]ScorerConf `yaml:"scorers"`
	Thresholds ThresholdsConf        `yaml:"thresholds"`
	Worker     WorkerConf            `yaml:"worker"`
	Provider   ProviderConf          `yaml:"provider"`
	Kafka      KafkaConf             `yaml:"kafka"`
}

// ServerConf holds the HTTP trigger surface settings.
type ServerConf struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DatabaseConf points at the SQLite file backing all stores.
type DatabaseConf struct {
	Path string `yaml:"path"`
}

// ScorerConf tunes one scorer's recompute loop.
type ScorerConf struct {
	CadenceMin       int     `yaml:"cadence_min"`
	AnomalyThreshold float64 `yaml:"anomaly_threshold"`
	BatchSize        int     `yaml:"batch_size"`
}

// ThresholdsConf carries the scorer formula knobs, keyed by scorer name.
// A block left empty falls back to that scorer's canonical defaults.
type ThresholdsConf struct {
	Scarcity  scarcity.Config  `yaml:"scarcity"`
	LoadRank  loadrank.Config  `yaml:"load_rank"`
	Fraud     fraud.Config     `yaml:"review_fraud"`
	Liquidity liquidity.Config `yaml:"corridor_liquidity"`
}

// WorkerConf tunes the enrichment sweep.
type WorkerConf struct {
	BatchSize        int `yaml:"batch_size"`
	Concurrency      int `yaml:"concurrency"`
	LeaseSec         int `yaml:"lease_sec"`
	MaxAttempts      int `yaml:"max_attempts"`
	SweepIntervalMin int `yaml:"sweep_interval_min"`
}

// ProviderConf configures the external geocoding/routing endpoints.
type ProviderConf struct {
	GeocodeURL string `yaml:"geocode_url"`
	RouteURL   string `yaml:"route_url"`
	UserAgent  string `yaml:"user_agent"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

// KafkaConf configures the handoff topic. Empty brokers means handoffs stay
// in the outbox and the structured log only.
type KafkaConf struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}
