// Package liquidity grades how easily a corridor absorbs new loads: high
// supply, moderate demand, fast fills and healthy acceptance all read as
// liquid. Higher is better for both operators (more work) and brokers
// (easier fills).
package liquidity

import (
	"math"
	"time"

	"github.com/haulcommand/signal-engine/internal/signal"
)

// Name is the registry key for this scorer.
const Name = "corridor_liquidity"

// Snapshot value keys.
const (
	KeySupplyPct   = "supply_pct"      // 0-100, escort availability vs corridor norm
	KeyDemandScore = "demand_score"    // 0-100
	KeyFillTimeMin = "median_fill_min" // median minutes to fill, lower is better
	KeyAcceptRate  = "accept_rate"     // 0-1
)

// Config centralizes the component weights and the fill-speed bonus cap.
type Config struct {
	WeightSupply   float64 `yaml:"weight_supply"`
	WeightDemand   float64 `yaml:"weight_demand"`
	WeightFill     float64 `yaml:"weight_fill"`
	WeightAccept   float64 `yaml:"weight_accept"`
	FillBonusCap   float64 `yaml:"fill_bonus_cap"`
	FillBonusBase  float64 `yaml:"fill_bonus_base"`
}

// DefaultConfig returns the canonical 0.45/0.20/0.25/0.10 split with the
// fill bonus capped at 40 below a 100-minute base.
func DefaultConfig() Config {
	return Config{
		WeightSupply:  0.45,
		WeightDemand:  0.20,
		WeightFill:    0.25,
		WeightAccept:  0.10,
		FillBonusCap:  40,
		FillBonusBase: 100,
	}
}

// Inputs are the typed liquidity signals for one corridor.
type Inputs struct {
	SupplyPct     float64 // 0-100
	DemandScore   float64 // 0-100
	MedianFillMin float64
	AcceptRate    float64 // 0-1
}

// InputsFromSnapshot validates and extracts the required fields. Accept rate
// is optional and defaults to 0.75, fill time to 60 minutes, matching what
// corridors without history report.
func InputsFromSnapshot(snap signal.Snapshot) (Inputs, error) {
	in := Inputs{MedianFillMin: 60, AcceptRate: 0.75}
	supply, ok := snap.Value(KeySupplyPct)
	if !ok {
		return Inputs{}, signal.MissingInput(KeySupplyPct)
	}
	demand, ok := snap.Value(KeyDemandScore)
	if !ok {
		return Inputs{}, signal.MissingInput(KeyDemandScore)
	}
	in.SupplyPct = supply
	in.DemandScore = demand
	if v, ok := snap.Value(KeyFillTimeMin); ok {
		in.MedianFillMin = v
	}
	if v, ok := snap.Value(KeyAcceptRate); ok {
		in.AcceptRate = v
	}
	return in, nil
}

// Outcome is the liquidity grade for one corridor.
type Outcome struct {
	Score      int
	Grade      string
	Label      string
	Components map[string]float64
}

// Calculate is the pure grading function.
func Calculate(in Inputs, cfg Config) Outcome {
	supplyComponent := in.SupplyPct * cfg.WeightSupply
	demandComponent := (100 - in.DemandScore) * cfg.WeightDemand
	fillBonus := clamp(cfg.FillBonusBase-in.MedianFillMin, 0, cfg.FillBonusCap) * cfg.WeightFill
	acceptBonus := clamp(in.AcceptRate, 0, 1) * 100 * cfg.WeightAccept

	score := int(clamp(math.Round(supplyComponent+demandComponent+fillBonus+acceptBonus), 0, 100))
	grade, label := Grade(score)

	return Outcome{
		Score: score,
		Grade: grade,
		Label: label,
		Components: map[string]float64{
			"supply": supplyComponent,
			"demand": demandComponent,
			"fill":   fillBonus,
			"accept": acceptBonus,
		},
	}
}

// Grade maps a liquidity score to its letter grade and label.
func Grade(score int) (grade, label string) {
	switch {
	case score >= 75:
		return "A", "Liquid"
	case score >= 60:
		return "B", "Active"
	case score >= 45:
		return "C", "Balanced"
	case score >= 30:
		return "D", "Thin"
	default:
		return "F", "Critical"
	}
}

// Scorer adapts Calculate to the scorer.Scorer interface.
type Scorer struct {
	cfg Config
}

// New creates a liquidity scorer with the given weights.
func New(cfg Config) *Scorer { return &Scorer{cfg: cfg} }

func (s *Scorer) Name() string { return Name }

func (s *Scorer) Score(snap signal.Snapshot) (signal.Result, error) {
	in, err := InputsFromSnapshot(snap)
	if err != nil {
		return signal.Result{}, err
	}
	out := Calculate(in, s.cfg)
	breakdown := out.Components
	return signal.Result{
		EntityID:   snap.EntityID,
		Scorer:     Name,
		Score:      float64(out.Score),
		Band:       out.Grade,
		Breakdown:  breakdown,
		Snapshot:   snap,
		ComputedAt: time.Now().UTC(),
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
