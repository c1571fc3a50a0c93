package lifecycle

import (
	"github.com/talgya/critterlife/internal/entropy"
	"github.com/talgya/critterlife/internal/needs"
	"github.com/talgya/critterlife/internal/spatial"
)

// Reproduction tuning.
const (
	PopulationCap          = 8
	EmergencyPopulation    = 2
	MinReproductionAge     = 10.0
	ReproductionCooldown   = 180
	NormalReproduceChance  = 0.01
	EmergencyReproduceRate = 0.05
	TraitMutation          = 0.08
)

type thresholds struct {
	hunger, energy, comfort float64
	allowSick               bool
	chance                  float64
}

var (
	normalThresholds    = thresholds{hunger: 0.5, energy: 0.4, comfort: 0.3, chance: NormalReproduceChance}
	emergencyThresholds = thresholds{hunger: 0.25, energy: 0.2, comfort: -1, allowSick: true, chance: EmergencyReproduceRate}
)

// Eligible reports whether the entity meets the deterministic preconditions
// for reproduction. Under a population emergency (aliveCount ≤ 2) sick entities
// qualify and need thresholds relax.
func Eligible(s State, n needs.State, aliveCount int) bool {
	t := normalThresholds
	if aliveCount <= EmergencyPopulation {
		t = emergencyThresholds
	}
	if s.ReproductionCooldown > 0 || s.Age < MinReproductionAge {
		return false
	}
	switch s.HealthStatus {
	case Healthy:
	case Sick:
		if !t.allowSick {
			return false
		}
	default:
		return false
	}
	return n.Hunger > t.hunger && n.Energy > t.energy && n.Comfort > t.comfort
}

// CheckReproduction runs the per-step Bernoulli trial on top of Eligible.
func CheckReproduction(s State, n needs.State, aliveCount int, src entropy.Source) bool {
	if aliveCount >= PopulationCap {
		return false
	}
	if !Eligible(s, n, aliveCount) {
		return false
	}
	p := normalThresholds.chance
	if aliveCount <= EmergencyPopulation {
		p = emergencyThresholds.chance
	}
	return entropy.Chance(entropy.Or(src), p)
}

// Traits is the heritable encoding: colour and temperament, each in [0, 1].
type Traits struct {
	Hue         float64 `json:"hue"`
	Size        float64 `json:"size"`
	Speed       float64 `json:"speed"`
	Sociability float64 `json:"sociability"`
	Bravery     float64 `json:"bravery"`
}

// RandomTraits rolls a founder's traits.
func RandomTraits(src entropy.Source) Traits {
	src = entropy.Or(src)
	return Traits{
		Hue:         src.Float64(),
		Size:        entropy.Range(src, 0.3, 0.7),
		Speed:       entropy.Range(src, 0.3, 0.7),
		Sociability: src.Float64(),
		Bravery:     src.Float64(),
	}
}

// Mutate returns a copy of t with every trait nudged by up to ±TraitMutation.
// Hue wraps around the colour wheel; the rest clamp.
func Mutate(t Traits, src entropy.Source) Traits {
	src = entropy.Or(src)
	jitter := func() float64 { return entropy.Range(src, -TraitMutation, TraitMutation) }

	hue := t.Hue + jitter()
	for hue < 0 {
		hue++
	}
	for hue >= 1 {
		hue--
	}
	return Traits{
		Hue:         hue,
		Size:        spatial.Clamp01(t.Size + jitter()),
		Speed:       spatial.Clamp01(t.Speed + jitter()),
		Sociability: spatial.Clamp01(t.Sociability + jitter()),
		Bravery:     spatial.Clamp01(t.Bravery + jitter()),
	}
}

// Offspring is the result of a successful reproduction.
type Offspring struct {
	Parent State
	Child  State
	Traits Traits
}

// Reproduce produces the child lifecycle and traits and resets the parent's cooldown.
func Reproduce(parent State, parentTraits Traits, src entropy.Source) Offspring {
	src = entropy.Or(src)
	child := New(src, parent.Generation+1)
	parent.ReproductionCooldown = ReproductionCooldown
	return Offspring{
		Parent: parent,
		Child:  child,
		Traits: Mutate(parentTraits, src),
	}
}
