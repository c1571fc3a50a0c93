// Package needs implements physiological needs: decay over time and
// satisfaction from resources. All values range from 0.0 (completely unmet)
// to 1.0 (fully satisfied) and are clamped on every transform.
package needs

import (
	"fmt"
	"strings"

	"github.com/talgya/critterlife/internal/spatial"
)

// Role selects the decay profile.
type Role uint8

const (
	RoleCritter Role = iota
	RoleRobot
	RoleAnimal
)

// Kind names a single need.
type Kind string

const (
	Hunger  Kind = "hunger"
	Energy  Kind = "energy"
	Comfort Kind = "comfort"
)

// State tracks the fulfillment level of each need.
type State struct {
	Hunger  float64 `json:"hunger"`  // Satiation; 0 = starving
	Energy  float64 `json:"energy"`  // 0 = exhausted
	Comfort float64 `json:"comfort"` // 0 = miserable
}

// Full returns a fully satisfied state.
func Full() State {
	return State{Hunger: 1, Energy: 1, Comfort: 1}
}

// Per-second decay rates for critters. Night multiplies energy and comfort.
const (
	CritterHungerDecay  = 0.004
	CritterEnergyDecay  = 0.003
	CritterComfortDecay = 0.002

	NightEnergyMultiplier  = 1.6
	NightComfortMultiplier = 1.3

	RobotComfortDecay = 0.001

	AnimalHungerDecay = 0.003
	AnimalEnergyDecay = 0.002
)

// Decay returns the state after deltaSeconds of time passing.
// Robot energy is not decayed here; it mirrors RobotStatus.Battery.
func Decay(s State, deltaSeconds float64, role Role, isNight bool) State {
	if deltaSeconds <= 0 {
		return clamp(s)
	}

	switch role {
	case RoleRobot:
		s.Comfort -= RobotComfortDecay * deltaSeconds
	case RoleAnimal:
		s.Hunger -= AnimalHungerDecay * deltaSeconds
		energy := AnimalEnergyDecay
		if isNight {
			energy *= NightEnergyMultiplier
		}
		s.Energy -= energy * deltaSeconds
	default:
		energy := CritterEnergyDecay
		comfort := CritterComfortDecay
		if isNight {
			energy *= NightEnergyMultiplier
			comfort *= NightComfortMultiplier
		}
		s.Hunger -= CritterHungerDecay * deltaSeconds
		s.Energy -= energy * deltaSeconds
		s.Comfort -= comfort * deltaSeconds
	}
	return clamp(s)
}

// Satisfy raises one need by amount. Negative amounts drain it.
// Unknown kinds leave the state unchanged.
func Satisfy(s State, kind Kind, amount float64) State {
	switch kind {
	case Hunger:
		s.Hunger += amount
	case Energy:
		s.Energy += amount
	case Comfort:
		s.Comfort += amount
	}
	return clamp(s)
}

// Get returns the level of one need.
func (s State) Get(kind Kind) float64 {
	switch kind {
	case Hunger:
		return s.Hunger
	case Energy:
		return s.Energy
	case Comfort:
		return s.Comfort
	}
	return 0
}

// Lowest returns the most urgent need and its level.
func (s State) Lowest() (Kind, float64) {
	kind, level := Hunger, s.Hunger
	if s.Energy < level {
		kind, level = Energy, s.Energy
	}
	if s.Comfort < level {
		kind, level = Comfort, s.Comfort
	}
	return kind, level
}

// Overall returns a weighted average of all needs, hunger weighted heaviest.
func (s State) Overall() float64 {
	return (s.Hunger*3 + s.Energy*2 + s.Comfort*1) / 6
}

func clamp(s State) State {
	s.Hunger = spatial.Clamp01(s.Hunger)
	s.Energy = spatial.Clamp01(s.Energy)
	s.Comfort = spatial.Clamp01(s.Comfort)
	return s
}

// Desires is the urge vector derived from needs: 1 means a desperate want.
type Desires struct {
	Hunger  float64 `json:"hunger"`
	Energy  float64 `json:"energy"`
	Comfort float64 `json:"comfort"`
	Social  float64 `json:"social"`
}

// ToDesires projects needs (plus loneliness from the emotion vector) into desires.
func ToDesires(s State, loneliness float64) Desires {
	return Desires{
		Hunger:  1 - s.Hunger,
		Energy:  1 - s.Energy,
		Comfort: 1 - s.Comfort,
		Social:  spatial.Clamp01(loneliness),
	}
}

// Describe renders needs as a short phrase for prompt context.
func Describe(s State) string {
	var parts []string
	parts = append(parts, level("hunger", s.Hunger, "starving", "hungry", "peckish", "full"))
	parts = append(parts, level("energy", s.Energy, "exhausted", "tired", "rested", "energetic"))
	parts = append(parts, level("comfort", s.Comfort, "miserable", "uncomfortable", "okay", "cozy"))
	return strings.Join(parts, ", ")
}

func level(name string, v float64, words ...string) string {
	var w string
	switch {
	case v < 0.15:
		w = words[0]
	case v < 0.4:
		w = words[1]
	case v < 0.75:
		w = words[2]
	default:
		w = words[3]
	}
	return fmt.Sprintf("%s (%s %.0f%%)", w, name, v*100)
}
