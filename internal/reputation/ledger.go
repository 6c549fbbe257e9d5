// Package reputation maps discrete lifecycle events to fixed point deltas
// and point totals to a rank tier with a matching-priority boost. The ledger
// is append-only; totals are always recomputed as a fold over all deltas and
// rank is always derived from the total, never patched incrementally.
package reputation

import (
	"fmt"
	"time"
)

// EventKind identifies a reputation-bearing lifecycle event.
type EventKind string

const (
	SafeJob              EventKind = "safe_job"
	FiveStarBonus        EventKind = "five_star_bonus"
	ZeroCancelStreak     EventKind = "zero_cancel_streak"
	ReferralVerified     EventKind = "referral_verified"
	StorePurchase        EventKind = "store_purchase"
	UnicornVerification  EventKind = "unicorn_verification"
	LateCancel           EventKind = "late_cancel"
	ComplianceViolation  EventKind = "compliance_violation"
	NoShow               EventKind = "no_show"
)

// pointTable is the fixed event-kind to delta lookup.
var pointTable = map[EventKind]int{
	SafeJob:             100,
	FiveStarBonus:       150,
	ZeroCancelStreak:    250,
	ReferralVerified:    300,
	StorePurchase:       50,
	UnicornVerification: 1000,
	LateCancel:          -300,
	ComplianceViolation: -500,
	NoShow:              -800,
}

// Delta returns the fixed point delta for kind. Unknown kinds are rejected
// so a typo in an ingest path cannot silently mint points.
func Delta(kind EventKind) (int, error) {
	d, ok := pointTable[kind]
	if !ok {
		return 0, fmt.Errorf("unknown reputation event kind %q", kind)
	}
	return d, nil
}

// Event is one append-only ledger entry.
type Event struct {
	ID         string    `json:"id"`
	EntityID   string    `json:"entity_id"`
	Kind       EventKind `json:"kind"`
	Points     int       `json:"points"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Total folds all deltas. The fold is pure and can go negative; flooring
// happens in RankFor so the ledger total always matches the event history.
func Total(events []Event) int {
	total := 0
	for _, e := range events {
		total += e.Points
	}
	return total
}

// Tier is one rung of the rank ladder.
type Tier struct {
	Name     string `json:"name"`
	MinTotal int    `json:"min_total"`
	Boost    int    `json:"boost"` // matching-priority boost
}

// tiers is the monotonic rank ladder, lowest first.
var tiers = []Tier{
	{"Yard Walker", 0, 0},
	{"Flag Rookie", 500, 1},
	{"Corridor Scout", 1500, 2},
	{"Lane Runner", 3000, 3},
	{"Pole Setter", 5000, 4},
	{"Route Captain", 8000, 5},
	{"Corridor Chief", 12000, 6},
	{"Convoy Commander", 17000, 7},
	{"Interstate Legend", 23000, 8},
	{"Unicorn Hauler", 30000, 10},
}

// Tiers returns the full ladder, lowest first.
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// RankFor maps a running total to its tier. The mapping is a monotonic step
// function: a single negative event only lowers rank if it drags the total
// under the current tier floor.
func RankFor(total int) Tier {
	if total < 0 {
		total = 0
	}
	current := tiers[0]
	for _, t := range tiers {
		if total >= t.MinTotal {
			current = t
		}
	}
	return current
}
