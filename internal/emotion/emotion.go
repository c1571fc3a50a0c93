// Package emotion models an entity's affect vector. Emotion is hidden state:
// other subsystems only see it through projections (dialogue tone, movement
// speed), never the raw vector.
package emotion

import (
	"fmt"
	"sort"
	"strings"

	"github.com/talgya/critterlife/internal/spatial"
)

// Affect names one dimension of the emotion vector.
type Affect string

const (
	Joy        Affect = "joy"
	Curiosity  Affect = "curiosity"
	Fear       Affect = "fear"
	Sadness    Affect = "sadness"
	Anger      Affect = "anger"
	Loneliness Affect = "loneliness"
)

// Affects lists every affect in a stable order.
var Affects = []Affect{Joy, Curiosity, Fear, Sadness, Anger, Loneliness}

// State is the affect vector, each value in [0, 1].
type State struct {
	Joy        float64 `json:"joy"`
	Curiosity  float64 `json:"curiosity"`
	Fear       float64 `json:"fear"`
	Sadness    float64 `json:"sadness"`
	Anger      float64 `json:"anger"`
	Loneliness float64 `json:"loneliness"`
}

// Baseline is the resting vector every affect decays toward.
func Baseline() State {
	return State{
		Joy:        0.5,
		Curiosity:  0.6,
		Fear:       0.1,
		Sadness:    0.1,
		Anger:      0.05,
		Loneliness: 0.3,
	}
}

// DecayPerSecond is how far each affect moves toward baseline per second.
const DecayPerSecond = 0.02

// DefaultIntensity scales event deltas when callers have no better value.
const DefaultIntensity = 0.3

// Get returns one affect.
func (s State) Get(a Affect) float64 {
	switch a {
	case Joy:
		return s.Joy
	case Curiosity:
		return s.Curiosity
	case Fear:
		return s.Fear
	case Sadness:
		return s.Sadness
	case Anger:
		return s.Anger
	case Loneliness:
		return s.Loneliness
	}
	return 0
}

func (s *State) set(a Affect, v float64) {
	v = spatial.Clamp01(v)
	switch a {
	case Joy:
		s.Joy = v
	case Curiosity:
		s.Curiosity = v
	case Fear:
		s.Fear = v
	case Sadness:
		s.Sadness = v
	case Anger:
		s.Anger = v
	case Loneliness:
		s.Loneliness = v
	}
}

// Decay moves every affect toward baseline by DecayPerSecond*dt without overshooting.
func Decay(s State, dt float64) State {
	if dt <= 0 {
		return clamp(s)
	}
	base := Baseline()
	step := DecayPerSecond * dt
	for _, a := range Affects {
		cur := s.Get(a)
		target := base.Get(a)
		switch {
		case cur > target:
			cur -= step
			if cur < target {
				cur = target
			}
		case cur < target:
			cur += step
			if cur > target {
				cur = target
			}
		}
		s.set(a, cur)
	}
	return s
}

// ApplyEvent adds the event's delta table scaled by intensity and re-clamps.
// Unknown events leave the state unchanged.
func ApplyEvent(s State, event Event, intensity float64) State {
	deltas, ok := eventTable[event]
	if !ok {
		return clamp(s)
	}
	for a, d := range deltas {
		s.set(a, s.Get(a)+d*intensity)
	}
	return s
}

func clamp(s State) State {
	for _, a := range Affects {
		s.set(a, s.Get(a))
	}
	return s
}

// Dominant returns the affect furthest above its baseline, and by how much.
func (s State) Dominant() (Affect, float64) {
	base := Baseline()
	best, bestExcess := Joy, -1.0
	for _, a := range Affects {
		excess := s.Get(a) - base.Get(a)
		if excess > bestExcess {
			best, bestExcess = a, excess
		}
	}
	return best, bestExcess
}

var adjectives = map[Affect]string{
	Joy:        "joyful",
	Curiosity:  "curious",
	Fear:       "afraid",
	Sadness:    "sad",
	Anger:      "irritated",
	Loneliness: "lonely",
}

// ToDialogueContext renders the vector as a tone hint for generated dialogue.
func ToDialogueContext(s State) string {
	type ranked struct {
		a Affect
		v float64
	}
	var strong []ranked
	for _, a := range Affects {
		if v := s.Get(a); v >= 0.55 {
			strong = append(strong, ranked{a, v})
		}
	}
	if len(strong) == 0 {
		return "You feel calm and neutral."
	}
	sort.Slice(strong, func(i, j int) bool {
		if strong[i].v != strong[j].v {
			return strong[i].v > strong[j].v
		}
		return strong[i].a < strong[j].a
	})
	if len(strong) > 3 {
		strong = strong[:3]
	}
	words := make([]string, 0, len(strong))
	for _, r := range strong {
		words = append(words, fmt.Sprintf("%s%s", intensifier(r.v), adjectives[r.a]))
	}
	return "You feel " + joinWords(words) + "."
}

func intensifier(v float64) string {
	switch {
	case v >= 0.85:
		return "very "
	case v >= 0.7:
		return "quite "
	default:
		return ""
	}
}

func joinWords(w []string) string {
	switch len(w) {
	case 1:
		return w[0]
	case 2:
		return w[0] + " and " + w[1]
	default:
		return strings.Join(w[:len(w)-1], ", ") + " and " + w[len(w)-1]
	}
}

// ToSpeedMultiplier maps emotion into a movement speed factor in [0.5, 1.8].
// Fear makes entities hurry, sadness slows them.
func ToSpeedMultiplier(s State) float64 {
	m := 1 + 0.6*s.Fear + 0.2*s.Joy + 0.1*s.Curiosity - 0.3*s.Sadness
	return spatial.Clamp(m, 0.5, 1.8)
}
