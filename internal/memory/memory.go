// Package memory is the per-entity memory stream: notable experiences that
// feed dialogue and thought prompts. Retention is bounded; the newest few
// memories always survive and the rest compete on importance.
package memory

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/critterlife/internal/spatial"
)

// Retention limits.
const (
	MaxMemories     = 50
	ProtectedRecent = 5
)

// Type classifies a memory.
type Type string

const (
	Dialogue    Type = "dialogue"
	Observation Type = "observation"
	Event       Type = "event"
	Quarrel     Type = "quarrel"
)

// Memory records a notable experience in an entity's life.
type Memory struct {
	ID              string    `json:"id"`
	Content         string    `json:"content"`
	Timestamp       time.Time `json:"timestamp"`
	Importance      float64   `json:"importance"`      // 0.0–1.0
	EmotionalWeight float64   `json:"emotionalWeight"` // signed; negative for painful memories
	Entities        []string  `json:"entities,omitempty"`
	Type            Type      `json:"type"`
}

// New builds a memory with a fresh id.
func New(content string, typ Type, importance float64, at time.Time, entities ...string) Memory {
	return Memory{
		ID:         uuid.NewString(),
		Content:    content,
		Timestamp:  at,
		Importance: spatial.Clamp01(importance),
		Entities:   entities,
		Type:       typ,
	}
}

// Involves reports whether id is one of the memory's entities.
func (m Memory) Involves(id string) bool {
	for _, e := range m.Entities {
		if e == id {
			return true
		}
	}
	return false
}

// Add appends m and prunes to MaxMemories. The input slice is not modified.
func Add(list []Memory, m Memory) []Memory {
	out := make([]Memory, 0, len(list)+1)
	out = append(out, list...)
	out = append(out, m)
	return Prune(out, MaxMemories)
}

// Prune bounds the list to max entries. The ProtectedRecent newest memories
// are always kept; the remaining slots go to the most important of the rest,
// newer first on ties. The result is in chronological order.
func Prune(list []Memory, max int) []Memory {
	chrono := chronological(list)
	if len(chrono) <= max {
		return chrono
	}
	protect := ProtectedRecent
	if protect > max {
		protect = max
	}

	split := len(chrono) - protect
	older := make([]int, split)
	for i := range older {
		older[i] = i
	}
	sort.SliceStable(older, func(a, b int) bool {
		ma, mb := chrono[older[a]], chrono[older[b]]
		if ma.Importance != mb.Importance {
			return ma.Importance > mb.Importance
		}
		return older[a] > older[b]
	})
	keep := make([]bool, len(chrono))
	for _, i := range older[:max-protect] {
		keep[i] = true
	}
	for i := split; i < len(chrono); i++ {
		keep[i] = true
	}

	out := make([]Memory, 0, max)
	for i, m := range chrono {
		if keep[i] {
			out = append(out, m)
		}
	}
	return out
}

func chronological(list []Memory) []Memory {
	out := make([]Memory, len(list))
	copy(out, list)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Recent returns the newest n memories, newest first.
func Recent(list []Memory, n int) []Memory {
	chrono := chronological(list)
	if n > len(chrono) {
		n = len(chrono)
	}
	out := make([]Memory, 0, n)
	for i := len(chrono) - 1; i >= len(chrono)-n; i-- {
		out = append(out, chrono[i])
	}
	return out
}

// Weights tune relevance scoring.
type Weights struct {
	Recency    float64
	Importance float64
	Overlap    float64
	HalfLife   time.Duration
}

// DefaultWeights favour importance, then recency, then shared entities.
func DefaultWeights() Weights {
	return Weights{Recency: 0.35, Importance: 0.45, Overlap: 0.2, HalfLife: 300 * time.Second}
}

// Score rates how useful m is for a prompt about entities at time now.
func Score(m Memory, now time.Time, entities []string, w Weights) float64 {
	age := now.Sub(m.Timestamp).Seconds()
	if age < 0 {
		age = 0
	}
	recency := 1.0
	if w.HalfLife > 0 {
		recency = math.Pow(0.5, age/w.HalfLife.Seconds())
	}

	overlap := 0.0
	if len(entities) > 0 {
		hits := 0
		for _, e := range entities {
			if m.Involves(e) {
				hits++
			}
		}
		overlap = float64(hits) / float64(len(entities))
	}
	return w.Recency*recency + w.Importance*m.Importance + w.Overlap*overlap
}

// Relevant returns the top k memories by Score, best first.
func Relevant(list []Memory, now time.Time, entities []string, k int) []Memory {
	if k <= 0 || len(list) == 0 {
		return nil
	}
	w := DefaultWeights()
	type scored struct {
		m Memory
		s float64
	}
	all := make([]scored, len(list))
	for i, m := range list {
		all[i] = scored{m, Score(m, now, entities, w)}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].s != all[j].s {
			return all[i].s > all[j].s
		}
		return all[i].m.Timestamp.After(all[j].m.Timestamp)
	})
	if k > len(all) {
		k = len(all)
	}
	out := make([]Memory, k)
	for i := range out {
		out[i] = all[i].m
	}
	return out
}

// Describe renders memories as prompt lines with relative ages.
func Describe(list []Memory, now time.Time) string {
	if len(list) == 0 {
		return "You have no particular memories yet."
	}
	var b strings.Builder
	for i, m := range list {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- (")
		b.WriteString(humanize.RelTime(m.Timestamp, now, "ago", "from now"))
		b.WriteString(") ")
		b.WriteString(m.Content)
	}
	return b.String()
}
