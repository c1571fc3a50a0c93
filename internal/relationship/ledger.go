// Package relationship tracks symmetric affinity between pairs of entities.
// Affinity ranges from -1.0 (enemies) to 1.0 (inseparable). Unseen pairs are
// strangers at 0.
package relationship

import (
	"encoding/json"
	"sort"

	"github.com/talgya/critterlife/internal/spatial"
)

// Thresholds for movement bias and dialogue scaling.
const (
	ApproachThreshold = 0.3
	AvoidThreshold    = -0.3

	FriendlyDelta = 0.05
	QuarrelDelta  = -0.12
)

// Pair is an unordered entity pair. Build it with Key so (a, b) and (b, a) collide.
type Pair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// Key returns the canonical pair for a and b.
func Key(a, b string) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// Ledger is the sparse affinity map. The zero value is not usable; use New.
type Ledger map[Pair]float64

// New returns an empty ledger.
func New() Ledger {
	return Ledger{}
}

// GetAffinity returns the affinity between a and b regardless of order.
func GetAffinity(l Ledger, a, b string) float64 {
	if l == nil || a == b {
		return 0
	}
	return l[Key(a, b)]
}

// Adjust returns a copy of the ledger with delta applied to the pair, clamped to [-1, 1].
// Self-pairs are ignored.
func Adjust(l Ledger, a, b string, delta float64) Ledger {
	out := l.Clone()
	if a == b {
		return out
	}
	k := Key(a, b)
	out[k] = spatial.Clamp(out[k]+delta, -1, 1)
	return out
}

// Clone returns an independent copy.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// ShouldApproach reports whether affinity is warm enough to seek the other out.
func ShouldApproach(affinity float64) bool {
	return affinity > ApproachThreshold
}

// ShouldAvoid reports whether affinity is cold enough to steer away.
func ShouldAvoid(affinity float64) bool {
	return affinity < AvoidThreshold
}

// DialogueMultiplier scales conversation trigger probability by affinity.
func DialogueMultiplier(affinity float64) float64 {
	if ShouldAvoid(affinity) {
		return 0.25
	}
	if affinity < 0 {
		return 1
	}
	return 1 + affinity
}

// Describe labels an affinity for prompts.
func Describe(affinity float64) string {
	switch {
	case affinity >= 0.7:
		return "close friend"
	case affinity > ApproachThreshold:
		return "friend"
	case affinity > 0.05:
		return "acquaintance"
	case affinity >= -0.05:
		return "stranger"
	case affinity >= AvoidThreshold:
		return "uneasy acquaintance"
	case affinity > -0.7:
		return "rival"
	default:
		return "enemy"
	}
}

// Entry is a single ledger row, used for serialization and listing.
type Entry struct {
	A        string  `json:"a"`
	B        string  `json:"b"`
	Affinity float64 `json:"affinity"`
}

// Of returns every pair involving id, strongest bond first.
func Of(l Ledger, id string) []Entry {
	var out []Entry
	for k, v := range l {
		switch id {
		case k.A:
			out = append(out, Entry{A: k.A, B: k.B, Affinity: v})
		case k.B:
			out = append(out, Entry{A: k.B, B: k.A, Affinity: v})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := abs(out[i].Affinity), abs(out[j].Affinity)
		if ai != aj {
			return ai > aj
		}
		return out[i].B < out[j].B
	})
	return out
}

// Entries returns all rows in canonical order.
func (l Ledger) Entries() []Entry {
	out := make([]Entry, 0, len(l))
	for k, v := range l {
		out = append(out, Entry{A: k.A, B: k.B, Affinity: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// MarshalJSON encodes the ledger as a list of entries (map keys must be strings).
func (l Ledger) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Entries())
}

// UnmarshalJSON decodes a list of entries.
func (l *Ledger) UnmarshalJSON(b []byte) error {
	var entries []Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		return err
	}
	out := make(Ledger, len(entries))
	for _, e := range entries {
		if e.A == e.B {
			continue
		}
		out[Key(e.A, e.B)] = spatial.Clamp(e.Affinity, -1, 1)
	}
	*l = out
	return nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
