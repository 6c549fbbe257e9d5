package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/haulcommand/signal-engine/internal/scorer/fraud"
	"github.com/haulcommand/signal-engine/internal/scorer/liquidity"
	"github.com/haulcommand/signal-engine/internal/scorer/loadrank"
	"github.com/haulcommand/signal-engine/internal/scorer/scarcity"
)

// Loader reads a YAML config file and watches it for changes.
type Loader struct {
	path     string
	mu       sync.RWMutex
	current  *EngineConfig
	onChange []func(*EngineConfig)
	watcher  *fsnotify.Watcher
}

// NewLoader creates a Loader and performs the initial load.
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path}
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

// Config returns the current (latest) configuration.
func (l *Loader) Config() *EngineConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the config reloads.
func (l *Loader) OnChange(fn func(*EngineConfig)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that hot-reloads the config on file changes.
// Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", l.path, err)
	}
	l.watcher = w

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					cfg, err := l.load()
					if err != nil {
						// Log and continue with old config.
						continue
					}
					l.mu.Lock()
					l.current = cfg
					callbacks := make([]func(*EngineConfig), len(l.onChange))
					copy(callbacks, l.onChange)
					l.mu.Unlock()
					for _, fn := range callbacks {
						fn(cfg)
					}
				}
			case <-w.Errors:
				// Ignore watcher errors.
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}

// Reload forces an immediate re-read of the config file.
func (l *Loader) Reload() (*EngineConfig, error) {
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(*EngineConfig), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
	return cfg, nil
}

func (l *Loader) load() (*EngineConfig, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", l.path, err)
	}
	var cfg EngineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", l.path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *EngineConfig) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "signal.db"
	}
	if cfg.Worker.BatchSize == 0 {
		cfg.Worker.BatchSize = 25
	}
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = 4
	}
	if cfg.Worker.LeaseSec == 0 {
		cfg.Worker.LeaseSec = 120
	}
	if cfg.Worker.MaxAttempts == 0 {
		cfg.Worker.MaxAttempts = 6
	}
	if cfg.Worker.SweepIntervalMin == 0 {
		cfg.Worker.SweepIntervalMin = 5
	}
	if cfg.Provider.TimeoutMs == 0 {
		cfg.Provider.TimeoutMs = 8000
	}
	for name, sc := range cfg.Scorers {
		if sc.CadenceMin == 0 {
			sc.CadenceMin = 15
		}
		if sc.BatchSize == 0 {
			sc.BatchSize = 50
		}
		cfg.Scorers[name] = sc
	}
	// Threshold blocks default as a unit: an omitted block means the
	// canonical formula, a present block is taken whole.
	if cfg.Thresholds.Scarcity == (scarcity.Config{}) {
		cfg.Thresholds.Scarcity = scarcity.DefaultConfig()
	}
	if cfg.Thresholds.LoadRank == (loadrank.Config{}) {
		cfg.Thresholds.LoadRank = loadrank.DefaultConfig()
	}
	if cfg.Thresholds.Fraud == (fraud.Config{}) {
		cfg.Thresholds.Fraud = fraud.DefaultConfig()
	}
	if cfg.Thresholds.Liquidity == (liquidity.Config{}) {
		cfg.Thresholds.Liquidity = liquidity.DefaultConfig()
	}
}
