// Package loadrank computes the 0-1000 composite desirability score for a
// posted load plus its qualitative badges. Brand-new unproven loads are
// tagged EMERGING instead of being left indistinguishable from genuinely
// bad ones.
package loadrank

import (
	"math"
	"time"

	"github.com/haulcommand/signal-engine/internal/signal"
)

// Name is the registry key for this scorer.
const Name = "load_rank"

// Snapshot value keys. Reliability, fill speed, density and confidence are
// 0-100; minutes_since_posted is wall-clock age.
const (
	KeyReliability = "broker_reliability"
	KeyFillSpeed   = "fill_speed"
	KeyDensity     = "lane_density"
	KeyConfidence  = "corridor_confidence"
	KeyAgeMinutes  = "minutes_since_posted"
)

// Badge names. Non-exclusive except EMERGING, which replaces the implied
// "low quality" reading of a low composite.
const (
	BadgeFastFill = "FAST-FILL"
	BadgeHotLane  = "HOT LANE"
	BadgeNew      = "NEW"
	BadgeEmerging = "EMERGING"
)

// Config centralizes the rank weights and badge thresholds.
type Config struct {
	WeightReliability float64 `yaml:"weight_reliability"`
	WeightFillSpeed   float64 `yaml:"weight_fill_speed"`
	WeightDensity     float64 `yaml:"weight_density"`
	WeightConfidence  float64 `yaml:"weight_confidence"`
	WeightFreshness   float64 `yaml:"weight_freshness"`

	// FreshnessWindowMin is the linear decay horizon: freshness is 1.0 at
	// age zero and 0.0 at this many minutes.
	FreshnessWindowMin float64 `yaml:"freshness_window_min"`

	FastFillThreshold float64 `yaml:"fast_fill_threshold"`
	HotLaneThreshold  float64 `yaml:"hot_lane_threshold"`
	NewThreshold      float64 `yaml:"new_threshold"`

	// EmergingMaxComposite / EmergingMinReliability gate the EMERGING
	// override for fresh, unproven loads.
	EmergingMaxComposite   float64 `yaml:"emerging_max_composite"`
	EmergingMinReliability float64 `yaml:"emerging_min_reliability"`
}

// DefaultConfig returns the canonical weights 0.35/0.25/0.20/0.10/0.10 over
// a 12-hour freshness window.
func DefaultConfig() Config {
	return Config{
		WeightReliability:      0.35,
		WeightFillSpeed:        0.25,
		WeightDensity:          0.20,
		WeightConfidence:       0.10,
		WeightFreshness:        0.10,
		FreshnessWindowMin:     720,
		FastFillThreshold:      0.75,
		HotLaneThreshold:       0.8,
		NewThreshold:           0.9,
		EmergingMaxComposite:   300,
		EmergingMinReliability: 0.1,
	}
}

// Inputs are the typed ranking signals for one load.
type Inputs struct {
	BrokerReliability  float64 // 0-100
	FillSpeed          float64 // 0-100
	LaneDensity        float64 // 0-100
	CorridorConfidence float64 // 0-100
	MinutesSincePosted float64
}

// InputsFromSnapshot validates and extracts the required fields.
func InputsFromSnapshot(snap signal.Snapshot) (Inputs, error) {
	var in Inputs
	required := []struct {
		key string
		dst *float64
	}{
		{KeyReliability, &in.BrokerReliability},
		{KeyFillSpeed, &in.FillSpeed},
		{KeyDensity, &in.LaneDensity},
		{KeyConfidence, &in.CorridorConfidence},
		{KeyAgeMinutes, &in.MinutesSincePosted},
	}
	for _, f := range required {
		v, ok := snap.Value(f.key)
		if !ok {
			return Inputs{}, signal.MissingInput(f.key)
		}
		*f.dst = v
	}
	return in, nil
}

// Outcome is the full rank computation for one load.
type Outcome struct {
	Composite  int
	Badges     []string
	Components map[string]float64
}

// Calculate is the pure ranking function.
func Calculate(in Inputs, cfg Config) Outcome {
	reliability := clamp01(in.BrokerReliability / 100)
	fillSpeed := clamp01(in.FillSpeed / 100)
	density := clamp01(in.LaneDensity / 100)
	confidence := clamp01(in.CorridorConfidence / 100)
	freshness := Freshness(in.MinutesSincePosted, cfg.FreshnessWindowMin)

	composite := int(math.Round(1000 * (reliability*cfg.WeightReliability +
		fillSpeed*cfg.WeightFillSpeed +
		density*cfg.WeightDensity +
		confidence*cfg.WeightConfidence +
		freshness*cfg.WeightFreshness)))
	if composite < 0 {
		composite = 0
	}
	if composite > 1000 {
		composite = 1000
	}

	var badges []string
	if fillSpeed > cfg.FastFillThreshold {
		badges = append(badges, BadgeFastFill)
	}
	if density > cfg.HotLaneThreshold {
		badges = append(badges, BadgeHotLane)
	}
	if freshness > cfg.NewThreshold {
		badges = append(badges, BadgeNew)
	}
	if float64(composite) < cfg.EmergingMaxComposite &&
		freshness > cfg.NewThreshold &&
		reliability > cfg.EmergingMinReliability {
		badges = append(badges, BadgeEmerging)
	}

	return Outcome{
		Composite: composite,
		Badges:    badges,
		Components: map[string]float64{
			"reliability": reliability,
			"fill_speed":  fillSpeed,
			"density":     density,
			"confidence":  confidence,
			"freshness":   freshness,
		},
	}
}

// Freshness decays linearly from 1.0 at age zero to 0.0 at windowMin,
// floored at zero.
func Freshness(ageMin, windowMin float64) float64 {
	if windowMin <= 0 {
		return 0
	}
	return clamp01(1 - ageMin/windowMin)
}

// Scorer adapts Calculate to the scorer.Scorer interface.
type Scorer struct {
	cfg Config
}

// New creates a load rank scorer with the given thresholds.
func New(cfg Config) *Scorer { return &Scorer{cfg: cfg} }

func (s *Scorer) Name() string { return Name }

func (s *Scorer) Score(snap signal.Snapshot) (signal.Result, error) {
	in, err := InputsFromSnapshot(snap)
	if err != nil {
		return signal.Result{}, err
	}
	out := Calculate(in, s.cfg)
	return signal.Result{
		EntityID:   snap.EntityID,
		Scorer:     Name,
		Score:      float64(out.Composite),
		Band:       band(out.Composite),
		Breakdown:  out.Components,
		Badges:     out.Badges,
		Snapshot:   snap,
		ComputedAt: time.Now().UTC(),
	}, nil
}

func band(composite int) string {
	switch {
	case composite >= 750:
		return "prime"
	case composite >= 500:
		return "solid"
	case composite >= 300:
		return "fair"
	default:
		return "weak"
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
