// Package scarcity converts corridor supply/demand/latency/weather/event
// inputs into a 0-100 scarcity index, a stepped surge multiplier, and an
// alert band. Every sub-pressure is independently clamped to its cap before
// summing, so no single signal can dominate beyond its weight.
package scarcity

import (
	"math"
	"time"

	"github.com/haulcommand/signal-engine/internal/signal"
)

// Name is the registry key for this scorer.
const Name = "scarcity"

// Snapshot value keys.
const (
	KeySupply   = "supply_active_escorts"
	KeyDemand   = "demand_open_loads"
	KeyLatency  = "avg_response_latency_min"
	KeyFillRate = "historical_fill_rate"
	KeySeasonal = "seasonal_baseline"
	KeyWeather  = "weather_risk"
	KeyEvent    = "event_spike"
)

// Config holds the tunable thresholds. The pressure caps are the fixed
// weights of the canonical formula; the latency target is the response-time
// SLA minutes under which latency pressure is zero.
type Config struct {
	SupplyDemandCap  float64 `yaml:"supply_demand_cap"`
	LatencyCap       float64 `yaml:"latency_cap"`
	FillCap          float64 `yaml:"fill_cap"`
	WeatherCap       float64 `yaml:"weather_cap"`
	EventCap         float64 `yaml:"event_cap"`
	LatencyTargetMin float64 `yaml:"latency_target_min"`
}

// DefaultConfig returns the canonical weights: 40/20/20/10/10 with a
// 15-minute response target.
func DefaultConfig() Config {
	return Config{
		SupplyDemandCap:  40,
		LatencyCap:       20,
		FillCap:          20,
		WeatherCap:       10,
		EventCap:         10,
		LatencyTargetMin: 15,
	}
}

// Inputs are the typed scarcity signals for one corridor/time bucket.
type Inputs struct {
	SupplyActiveEscorts   float64
	DemandOpenLoads       float64
	AvgResponseLatencyMin float64
	HistoricalFillRate    float64 // 0-1
	SeasonalBaseline      float64 // 0-1, informational
	WeatherRisk           float64 // 0-1
	EventSpike            float64 // 0-1
}

// InputsFromSnapshot validates and extracts the required fields.
// Seasonal baseline is optional and defaults to zero.
func InputsFromSnapshot(snap signal.Snapshot) (Inputs, error) {
	var in Inputs
	required := []struct {
		key string
		dst *float64
	}{
		{KeySupply, &in.SupplyActiveEscorts},
		{KeyDemand, &in.DemandOpenLoads},
		{KeyLatency, &in.AvgResponseLatencyMin},
		{KeyFillRate, &in.HistoricalFillRate},
		{KeyWeather, &in.WeatherRisk},
		{KeyEvent, &in.EventSpike},
	}
	for _, f := range required {
		v, ok := snap.Value(f.key)
		if !ok {
			return Inputs{}, signal.MissingInput(f.key)
		}
		*f.dst = v
	}
	in.SeasonalBaseline, _ = snap.Value(KeySeasonal)
	return in, nil
}

// Outcome is the full scarcity computation for one corridor.
type Outcome struct {
	Index           int
	SurgeMultiplier float64
	AlertLevel      string
	Pressures       map[string]float64
}

// Calculate is the pure scoring function. Identical inputs always produce
// identical outcomes.
func Calculate(in Inputs, cfg Config) Outcome {
	supplyPressure := clamp(in.DemandOpenLoads/math.Max(in.SupplyActiveEscorts, 1)*cfg.SupplyDemandCap, 0, cfg.SupplyDemandCap)
	latencyPressure := clamp(math.Max(0, in.AvgResponseLatencyMin-cfg.LatencyTargetMin)/cfg.LatencyTargetMin*cfg.LatencyCap, 0, cfg.LatencyCap)
	fillPressure := clamp((1-in.HistoricalFillRate)*cfg.FillCap, 0, cfg.FillCap)
	weatherPressure := clamp(in.WeatherRisk*cfg.WeatherCap, 0, cfg.WeatherCap)
	eventPressure := clamp(in.EventSpike*cfg.EventCap, 0, cfg.EventCap)

	sum := supplyPressure + latencyPressure + fillPressure + weatherPressure + eventPressure
	index := int(clamp(math.Round(sum), 0, 100))

	return Outcome{
		Index:           index,
		SurgeMultiplier: SurgeMultiplier(index),
		AlertLevel:      AlertLevel(index),
		Pressures: map[string]float64{
			"supply_demand": supplyPressure,
			"latency":       latencyPressure,
			"fill":          fillPressure,
			"weather":       weatherPressure,
			"event":         eventPressure,
			// Recorded for audit; carries no weight in the sum.
			"seasonal_baseline": in.SeasonalBaseline,
		},
	}
}

// SurgeMultiplier is a monotonic step function of the scarcity index.
func SurgeMultiplier(index int) float64 {
	switch {
	case index < 30:
		return 1.0
	case index < 50:
		return 1.15
	case index < 70:
		return 1.35
	case index < 85:
		return 1.75
	case index < 95:
		return 2.25
	default:
		return 3.5
	}
}

// AlertLevel bands the index: critical >=85, high >=70, elevated >=50.
func AlertLevel(index int) string {
	switch {
	case index >= 85:
		return "critical"
	case index >= 70:
		return "high"
	case index >= 50:
		return "elevated"
	default:
		return "normal"
	}
}

// Scorer adapts Calculate to the scorer.Scorer interface.
type Scorer struct {
	cfg Config
}

// New creates a scarcity scorer with the given thresholds.
func New(cfg Config) *Scorer { return &Scorer{cfg: cfg} }

func (s *Scorer) Name() string { return Name }

func (s *Scorer) Score(snap signal.Snapshot) (signal.Result, error) {
	in, err := InputsFromSnapshot(snap)
	if err != nil {
		return signal.Result{}, err
	}
	out := Calculate(in, s.cfg)
	breakdown := out.Pressures
	breakdown["surge_multiplier"] = out.SurgeMultiplier
	return signal.Result{
		EntityID:   snap.EntityID,
		Scorer:     Name,
		Score:      float64(out.Index),
		Band:       out.AlertLevel,
		Breakdown:  breakdown,
		Snapshot:   snap,
		ComputedAt: time.Now().UTC(),
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
