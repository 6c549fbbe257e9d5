// Package scorer defines the Scorer contract and the registry the scheduler
// resolves scorer names against.
package scorer

import (
	"github.com/haulcommand/signal-engine/internal/signal"
)

// Scorer converts one snapshot into one bounded, deterministic result.
// Implementations are pure: identical snapshots always yield identical
// results, and all blocking I/O stays outside the scorer.
type Scorer interface {
	// Name returns the string key this scorer is registered under.
	Name() string
	// Score computes a result from the snapshot. A snapshot missing a
	// required field returns signal.ErrMissingInput.
	Score(snap signal.Snapshot) (signal.Result, error)
}
