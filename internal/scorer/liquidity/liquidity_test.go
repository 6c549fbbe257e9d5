package liquidity_test

import (
	"testing"

	"github.com/haulcommand/signal-engine/internal/scorer/liquidity"
	"github.com/haulcommand/signal-engine/internal/signal"
)

func TestGradeBands(t *testing.T) {
	tests := []struct {
		score     int
		wantGrade string
		wantLabel string
	}{
		{90, "A", "Liquid"},
		{75, "A", "Liquid"},
		{60, "B", "Active"},
		{45, "C", "Balanced"},
		{30, "D", "Thin"},
		{10, "F", "Critical"},
	}
	for _, tc := range tests {
		grade, label := liquidity.Grade(tc.score)
		if grade != tc.wantGrade || label != tc.wantLabel {
			t.Errorf("Grade(%d) = %s/%s, want %s/%s", tc.score, grade, label, tc.wantGrade, tc.wantLabel)
		}
	}
}

func TestCalculate(t *testing.T) {
	cfg := liquidity.DefaultConfig()

	// Deep supply, moderate demand, fast fills: 90*.45 + 50*.20 + 40*.25 +
	// 0.9*100*.10 = 40.5 + 10 + 10 + 9 = 69.5 -> 70, grade B.
	out := liquidity.Calculate(liquidity.Inputs{
		SupplyPct:     90,
		DemandScore:   50,
		MedianFillMin: 30,
		AcceptRate:    0.9,
	}, cfg)
	if out.Score != 70 {
		t.Errorf("score = %d, want 70", out.Score)
	}
	if out.Grade != "B" {
		t.Errorf("grade = %s, want B", out.Grade)
	}

	// Starved corridor: no supply, peak demand, slow fills.
	starved := liquidity.Calculate(liquidity.Inputs{
		SupplyPct:     0,
		DemandScore:   100,
		MedianFillMin: 240,
		AcceptRate:    0,
	}, cfg)
	if starved.Score != 0 {
		t.Errorf("starved score = %d, want 0", starved.Score)
	}
	if starved.Grade != "F" {
		t.Errorf("starved grade = %s, want F", starved.Grade)
	}
}

func TestInputDefaults(t *testing.T) {
	snap := signal.Snapshot{
		EntityID: "corridor:US-59_TX",
		Scorer:   liquidity.Name,
		Values: map[string]float64{
			liquidity.KeySupplyPct:   60,
			liquidity.KeyDemandScore: 40,
		},
	}
	in, err := liquidity.InputsFromSnapshot(snap)
	if err != nil {
		t.Fatalf("InputsFromSnapshot: %v", err)
	}
	if in.MedianFillMin != 60 || in.AcceptRate != 0.75 {
		t.Errorf("defaults not applied: %+v", in)
	}

	if _, err := liquidity.InputsFromSnapshot(signal.Snapshot{Values: map[string]float64{liquidity.KeySupplyPct: 10}}); err == nil {
		t.Error("expected missing-input error for absent demand score")
	}
}
