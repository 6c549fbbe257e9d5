// Package fraud scores the probability that a review is inauthentic or
// manipulated, and maps the probability to a moderation action tier. No
// action is ever returned without the human-readable list of signals that
// produced it.
package fraud

import (
	"fmt"
	"math"
	"time"

	"github.com/haulcommand/signal-engine/internal/signal"
)

// Name is the registry key for this scorer.
const Name = "review_fraud"

// Snapshot value keys.
const (
	KeyReviewsToday    = "reviewer_reviews_today"
	KeyTotalReviews    = "reviewer_total_reviews"
	KeyAccountAgeDays  = "reviewer_account_age_days"
	KeyTrustScore      = "reviewer_trust_score" // 0-1
	KeyTextSimilarity  = "text_similarity"      // 0-1
	KeyRepeatedPhrase  = "repeated_phrase_score" // 0-1
	KeyGraphDensity    = "social_graph_density"  // 0-1
	FlagSentimentEdge  = "sentiment_extremity"
	FlagSharedIP       = "shared_ip_with_provider"
	FlagDeviceMatch    = "device_fingerprint_match"
	FlagBurstPattern   = "burst_pattern"
	FlagOffHours       = "off_hours"
)

// Actions, from most to least severe.
const (
	ActionAutoHold     = "auto_hold"     // hidden pending moderation
	ActionShadowReduce = "shadow_reduce" // counted but down-weighted
	ActionFlag         = "flag"          // surfaced to moderators, still visible
	ActionPass         = "pass"
)

// Config centralizes the sub-score weights, thresholds, and shaping knobs.
type Config struct {
	WeightVelocity float64 `yaml:"weight_velocity"`
	WeightNewness  float64 `yaml:"weight_newness"`
	WeightText     float64 `yaml:"weight_text"`
	WeightNetwork  float64 `yaml:"weight_network"`
	WeightBurst    float64 `yaml:"weight_burst"`

	// VelocityCap is the reviews-per-day count at which the velocity
	// sub-score saturates. NewAccountDays is the age under which an account
	// still reads as new.
	VelocityCap    float64 `yaml:"velocity_cap"`
	NewAccountDays float64 `yaml:"new_account_days"`

	// LowTrustAmplifier scales the weighted sum up for untrusted reviewers
	// before the final clamp: sum * (1 + (1-trust)*amplifier).
	LowTrustAmplifier float64 `yaml:"low_trust_amplifier"`

	AutoHoldThreshold     float64 `yaml:"auto_hold_threshold"`
	ShadowReduceThreshold float64 `yaml:"shadow_reduce_threshold"`
	FlagThreshold         float64 `yaml:"flag_threshold"`
}

// DefaultConfig returns the canonical weights 0.20/0.15/0.20/0.25/0.20 and
// action thresholds 0.85/0.65/0.45.
func DefaultConfig() Config {
	return Config{
		WeightVelocity:        0.20,
		WeightNewness:         0.15,
		WeightText:            0.20,
		WeightNetwork:         0.25,
		WeightBurst:           0.20,
		VelocityCap:           5,
		NewAccountDays:        30,
		LowTrustAmplifier:     0.35,
		AutoHoldThreshold:     0.85,
		ShadowReduceThreshold: 0.65,
		FlagThreshold:         0.45,
	}
}

// Inputs are the typed behavioral, linguistic, network and temporal signals
// about one review and its reviewer.
type Inputs struct {
	ReviewerReviewsToday    float64
	ReviewerTotalReviews    float64
	ReviewerAccountAgeDays  float64
	ReviewerTrustScore      float64 // 0-1
	TextSimilarity          float64 // 0-1
	SentimentExtremity      bool
	RepeatedPhraseScore     float64 // 0-1
	SharedIPWithProvider    bool
	DeviceFingerprintMatch  bool
	SocialGraphDensity      float64 // 0-1
	BurstPatternDetected    bool
	OffHoursDetected        bool
}

// InputsFromSnapshot extracts the fraud signals. All fields are optional and
// default to zero/false: absence of evidence is not evidence.
func InputsFromSnapshot(snap signal.Snapshot) Inputs {
	v := func(k string) float64 { f, _ := snap.Value(k); return f }
	return Inputs{
		ReviewerReviewsToday:   v(KeyReviewsToday),
		ReviewerTotalReviews:   v(KeyTotalReviews),
		ReviewerAccountAgeDays: v(KeyAccountAgeDays),
		ReviewerTrustScore:     v(KeyTrustScore),
		TextSimilarity:         v(KeyTextSimilarity),
		SentimentExtremity:     snap.Flag(FlagSentimentEdge),
		RepeatedPhraseScore:    v(KeyRepeatedPhrase),
		SharedIPWithProvider:   snap.Flag(FlagSharedIP),
		DeviceFingerprintMatch: snap.Flag(FlagDeviceMatch),
		SocialGraphDensity:     v(KeyGraphDensity),
		BurstPatternDetected:   snap.Flag(FlagBurstPattern),
		OffHoursDetected:       snap.Flag(FlagOffHours),
	}
}

// Outcome is the full fraud computation for one review.
type Outcome struct {
	FraudScore float64
	Action     string
	SubScores  map[string]float64
	Signals    []string
}

// Calculate is the pure scoring function: five independently clamped
// sub-scores combined with fixed weights, amplified for untrusted reviewers,
// clamped to [0,1].
func Calculate(in Inputs, cfg Config) Outcome {
	var signals []string
	note := func(format string, args ...any) {
		signals = append(signals, fmt.Sprintf(format, args...))
	}

	velocity := 0.0
	if in.ReviewerReviewsToday > 0 {
		velocity = clamp01(0.6*clamp01(in.ReviewerReviewsToday/cfg.VelocityCap) +
			0.4*clamp01(in.ReviewerReviewsToday/math.Max(in.ReviewerTotalReviews, 1)))
		note("review velocity: %.0f reviews today against %.0f lifetime", in.ReviewerReviewsToday, in.ReviewerTotalReviews)
	}

	// Age zero means the signal was never observed, not a zero-day account.
	newness := 0.0
	if in.ReviewerAccountAgeDays > 0 && in.ReviewerAccountAgeDays < cfg.NewAccountDays {
		newness = clamp01((cfg.NewAccountDays - in.ReviewerAccountAgeDays) / cfg.NewAccountDays)
		note("account age: %.0f days (new under %.0f)", in.ReviewerAccountAgeDays, cfg.NewAccountDays)
	}

	text := clamp01(0.5*clamp01(in.TextSimilarity) + 0.3*clamp01(in.RepeatedPhraseScore) + boolVal(in.SentimentExtremity, 0.2))
	if in.TextSimilarity > 0 {
		note("text similarity to other reviews: %.2f", in.TextSimilarity)
	}
	if in.RepeatedPhraseScore > 0 {
		note("repeated phrasing score: %.2f", in.RepeatedPhraseScore)
	}
	if in.SentimentExtremity {
		note("sentiment extremity detected")
	}

	network := clamp01(boolVal(in.SharedIPWithProvider, 0.7) + boolVal(in.DeviceFingerprintMatch, 0.6) + 0.4*clamp01(in.SocialGraphDensity))
	if in.SharedIPWithProvider {
		note("shared IP with reviewed party")
	}
	if in.DeviceFingerprintMatch {
		note("device fingerprint matches reviewed party")
	}
	if in.SocialGraphDensity > 0 {
		note("social graph density with reviewed party: %.2f", in.SocialGraphDensity)
	}

	burst := clamp01(boolVal(in.BurstPatternDetected, 0.85) + boolVal(in.OffHoursDetected, 0.3))
	if in.BurstPatternDetected {
		note("burst posting pattern detected")
	}
	if in.OffHoursDetected {
		note("off-hours posting pattern")
	}

	sum := velocity*cfg.WeightVelocity +
		newness*cfg.WeightNewness +
		text*cfg.WeightText +
		network*cfg.WeightNetwork +
		burst*cfg.WeightBurst

	// Untrusted reviewers amplify the weighted sum; the clamp keeps the
	// probability in bounds.
	amplifier := 1 + (1-clamp01(in.ReviewerTrustScore))*cfg.LowTrustAmplifier
	score := clamp01(sum * amplifier)
	if sum > 0 && in.ReviewerTrustScore < 1 {
		note("low reviewer trust (%.2f) amplified weighted sum", in.ReviewerTrustScore)
	}

	return Outcome{
		FraudScore: score,
		Action:     action(score, cfg),
		SubScores: map[string]float64{
			"velocity": velocity,
			"newness":  newness,
			"text":     text,
			"network":  network,
			"burst":    burst,
		},
		Signals: signals,
	}
}

func action(score float64, cfg Config) string {
	switch {
	case score >= cfg.AutoHoldThreshold:
		return ActionAutoHold
	case score >= cfg.ShadowReduceThreshold:
		return ActionShadowReduce
	case score >= cfg.FlagThreshold:
		return ActionFlag
	default:
		return ActionPass
	}
}

// Scorer adapts Calculate to the scorer.Scorer interface.
type Scorer struct {
	cfg Config
}

// New creates a fraud scorer with the given thresholds.
func New(cfg Config) *Scorer { return &Scorer{cfg: cfg} }

func (s *Scorer) Name() string { return Name }

func (s *Scorer) Score(snap signal.Snapshot) (signal.Result, error) {
	out := Calculate(InputsFromSnapshot(snap), s.cfg)
	breakdown := out.SubScores
	return signal.Result{
		EntityID:   snap.EntityID,
		Scorer:     Name,
		Score:      out.FraudScore,
		Band:       out.Action,
		Breakdown:  breakdown,
		Signals:    out.Signals,
		Snapshot:   snap,
		ComputedAt: time.Now().UTC(),
	}, nil
}

func boolVal(b bool, v float64) float64 {
	if b {
		return v
	}
	return 0
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
