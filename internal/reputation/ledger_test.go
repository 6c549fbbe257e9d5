package reputation_test

import (
	"testing"

	"github.com/haulcommand/signal-engine/internal/reputation"
)

func TestDeltaTable(t *testing.T) {
	tests := []struct {
		kind reputation.EventKind
		want int
	}{
		{reputation.SafeJob, 100},
		{reputation.NoShow, -800},
		{reputation.UnicornVerification, 1000},
		{reputation.ComplianceViolation, -500},
	}
	for _, tc := range tests {
		got, err := reputation.Delta(tc.kind)
		if err != nil {
			t.Fatalf("Delta(%s): %v", tc.kind, err)
		}
		if got != tc.want {
			t.Errorf("Delta(%s) = %d, want %d", tc.kind, got, tc.want)
		}
	}

	if _, err := reputation.Delta("free_points"); err == nil {
		t.Error("unknown event kind must be rejected")
	}
}

func TestRankLadder(t *testing.T) {
	tests := []struct {
		total     int
		wantName  string
		wantBoost int
	}{
		{0, "Yard Walker", 0},
		{499, "Yard Walker", 0},
		{600, "Flag Rookie", 1},
		{1500, "Corridor Scout", 2},
		{29999, "Interstate Legend", 8},
		{30000, "Unicorn Hauler", 10},
		{125000, "Unicorn Hauler", 10},
	}
	for _, tc := range tests {
		tier := reputation.RankFor(tc.total)
		if tier.Name != tc.wantName || tier.Boost != tc.wantBoost {
			t.Errorf("RankFor(%d) = %s/%d, want %s/%d", tc.total, tier.Name, tier.Boost, tc.wantName, tc.wantBoost)
		}
	}
}

func TestRankMonotonicOverLadder(t *testing.T) {
	prevBoost := -1
	prevMin := -1
	for _, tier := range reputation.Tiers() {
		if tier.MinTotal <= prevMin {
			t.Fatalf("tier floors not strictly increasing at %s", tier.Name)
		}
		if tier.Boost < prevBoost {
			t.Fatalf("boost decreased at %s", tier.Name)
		}
		prevMin = tier.MinTotal
		prevBoost = tier.Boost
	}
}

func TestTotalIsAFold(t *testing.T) {
	events := []reputation.Event{
		{Kind: reputation.SafeJob, Points: 100},
		{Kind: reputation.SafeJob, Points: 100},
		{Kind: reputation.FiveStarBonus, Points: 150},
		{Kind: reputation.ReferralVerified, Points: 300},
		{Kind: reputation.NoShow, Points: -800},
	}
	// 650 earned minus 800 for the no_show. The fold stays negative; only
	// rank mapping floors it, so the bottom tier still applies.
	if got := reputation.Total(events); got != -150 {
		t.Errorf("Total = %d, want -150", got)
	}
	if tier := reputation.RankFor(reputation.Total(events)); tier.Name != "Yard Walker" {
		t.Errorf("rank = %s, want Yard Walker", tier.Name)
	}

	// A no_show that keeps the total above a tier floor must not drop rank.
	rich := []reputation.Event{
		{Kind: reputation.UnicornVerification, Points: 1000},
		{Kind: reputation.NoShow, Points: -800},
		{Kind: reputation.ReferralVerified, Points: 300},
		{Kind: reputation.SafeJob, Points: 100},
	}
	total := reputation.Total(rich)
	if total != 600 {
		t.Fatalf("Total = %d, want 600", total)
	}
	if tier := reputation.RankFor(total); tier.Name != "Flag Rookie" {
		t.Errorf("rank = %s, want Flag Rookie", tier.Name)
	}
}
