// Package wildlife drives the meadow's wild animals. Each animal runs an
// explicit behavior state machine; Next is the only way to move between
// behaviors.
package wildlife

import (
	"fmt"

	"github.com/talgya/critterlife/internal/entropy"
)

// Species of wild animal.
type Species string

const (
	Deer   Species = "deer"
	Rabbit Species = "rabbit"
	Fox    Species = "fox"
	Wolf   Species = "wolf"
)

// AllSpecies lists species in spawn-weight order.
var AllSpecies = []Species{Rabbit, Deer, Fox, Wolf}

// Spec is the static profile of a species.
type Spec struct {
	Speed       float64 // units per second while moving
	SightRange  float64
	FleeRange   float64 // threats closer than this trigger flight
	Predator    bool
	Prey        []Species
	Hunts       bool // also stalks critters
	Threats     []Species
	SpawnWeight float64
}

var specs = map[Species]Spec{
	Deer:   {Speed: 3, SightRange: 18, FleeRange: 10, Threats: []Species{Wolf}, SpawnWeight: 0.3},
	Rabbit: {Speed: 4, SightRange: 12, FleeRange: 7, Threats: []Species{Fox, Wolf}, SpawnWeight: 0.4},
	Fox:    {Speed: 3.5, SightRange: 14, FleeRange: 8, Predator: true, Prey: []Species{Rabbit}, Threats: []Species{Wolf}, SpawnWeight: 0.2},
	Wolf:   {Speed: 3.2, SightRange: 20, Predator: true, Prey: []Species{Deer, Rabbit}, Hunts: true, SpawnWeight: 0.1},
}

// SpecOf returns the species profile.
func SpecOf(s Species) (Spec, bool) {
	sp, ok := specs[s]
	return sp, ok
}

// IsThreat reports whether other frightens s.
func IsThreat(s, other Species) bool {
	for _, t := range specs[s].Threats {
		if t == other {
			return true
		}
	}
	return false
}

// IsPrey reports whether s hunts other.
func IsPrey(s, other Species) bool {
	for _, p := range specs[s].Prey {
		if p == other {
			return true
		}
	}
	return false
}

// ThreatensCritters reports whether critters should flee from s.
func ThreatensCritters(s Species) bool {
	return specs[s].Hunts
}

// RollSpecies picks a species by spawn weight.
func RollSpecies(src entropy.Source) Species {
	r := entropy.Or(src).Float64()
	acc := 0.0
	for _, s := range AllSpecies {
		acc += specs[s].SpawnWeight
		if r < acc {
			return s
		}
	}
	return Rabbit
}

// Behavior is the animal's current state.
type Behavior uint8

const (
	Grazing Behavior = iota
	Wandering
	Alert
	Fleeing
	Stalking
	Resting
)

var behaviorNames = [...]string{"grazing", "wandering", "alert", "fleeing", "stalking", "resting"}

func (b Behavior) String() string {
	if int(b) < len(behaviorNames) {
		return behaviorNames[b]
	}
	return fmt.Sprintf("Behavior(%d)", uint8(b))
}

// MarshalText encodes the behavior as its name.
func (b Behavior) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText decodes a behavior name.
func (b *Behavior) UnmarshalText(t []byte) error {
	for i, n := range behaviorNames {
		if n == string(t) {
			*b = Behavior(i)
			return nil
		}
	}
	return fmt.Errorf("unknown behavior %q", string(t))
}

// transitions lists the legal successors of each behavior.
var transitions = map[Behavior][]Behavior{
	Grazing:   {Wandering, Alert, Stalking, Resting},
	Wandering: {Grazing, Alert, Stalking, Resting},
	Alert:     {Grazing, Fleeing},
	Fleeing:   {Alert},
	Stalking:  {Wandering, Resting},
	Resting:   {Grazing, Alert},
}

// CanTransition reports whether from → to is legal. Staying is always legal.
func CanTransition(from, to Behavior) bool {
	if from == to {
		return true
	}
	for _, b := range transitions[from] {
		if b == to {
			return true
		}
	}
	return false
}

// State is one animal's runtime state.
type State struct {
	Species  Species  `json:"species"`
	Behavior Behavior `json:"behavior"`
	Since    float64  `json:"since"` // clock time the behavior started
	TargetID string   `json:"targetId,omitempty"`
}

// New creates an animal grazing at now.
func New(s Species, now float64) State {
	return State{Species: s, Behavior: Grazing, Since: now}
}

// Perception is what the animal senses this step. Distances are negative
// when nothing is sensed.
type Perception struct {
	ThreatID   string
	ThreatDist float64
	PreyID     string
	PreyDist   float64
	Energy     float64
	IsNight    bool
}

func (p Perception) threatWithin(r float64) bool {
	return p.ThreatID != "" && p.ThreatDist >= 0 && p.ThreatDist <= r
}

func (p Perception) preyWithin(r float64) bool {
	return p.PreyID != "" && p.PreyDist >= 0 && p.PreyDist <= r
}

// Behavior timing in seconds.
const (
	GrazeTime   = 20.0
	WanderTime  = 15.0
	AlertCalm   = 5.0
	FleeMinTime = 6.0
	TiredBelow  = 0.2
	RestedAbove = 0.8
)

// Next is the behavior transition function.
func Next(s State, p Perception, now float64, src entropy.Source) State {
	src = entropy.Or(src)
	spec := specs[s.Species]
	in := now - s.Since
	to := func(b Behavior, target string) State {
		if b == s.Behavior && target == s.TargetID {
			return s
		}
		return State{Species: s.Species, Behavior: b, Since: now, TargetID: target}
	}
	hungryHunter := spec.Predator && p.Energy > TiredBelow+0.1 && p.preyWithin(spec.SightRange)

	switch s.Behavior {
	case Grazing:
		switch {
		case p.threatWithin(spec.SightRange):
			return to(Alert, p.ThreatID)
		case hungryHunter:
			return to(Stalking, p.PreyID)
		case p.Energy < TiredBelow || p.IsNight:
			return to(Resting, "")
		case in >= GrazeTime && entropy.Chance(src, 0.5):
			return to(Wandering, "")
		}
	case Wandering:
		switch {
		case p.threatWithin(spec.SightRange):
			return to(Alert, p.ThreatID)
		case hungryHunter:
			return to(Stalking, p.PreyID)
		case p.Energy < TiredBelow:
			return to(Resting, "")
		case in >= WanderTime:
			return to(Grazing, "")
		}
	case Alert:
		switch {
		case p.threatWithin(spec.FleeRange):
			return to(Fleeing, p.ThreatID)
		case !p.threatWithin(spec.SightRange) && in >= AlertCalm:
			return to(Grazing, "")
		}
	case Fleeing:
		if !p.threatWithin(spec.SightRange) && in >= FleeMinTime {
			return to(Alert, "")
		}
	case Stalking:
		switch {
		case p.Energy < TiredBelow:
			return to(Resting, "")
		case !p.preyWithin(spec.SightRange):
			return to(Wandering, "")
		case p.PreyID != s.TargetID:
			return to(Stalking, p.PreyID)
		}
	case Resting:
		switch {
		case !spec.Predator && p.threatWithin(spec.SightRange):
			return to(Alert, p.ThreatID)
		case p.Energy > RestedAbove && !p.IsNight:
			return to(Grazing, "")
		}
	}
	return s
}

// Moving reports whether the behavior involves locomotion, and at what
// fraction of the species' speed.
func Moving(b Behavior) (bool, float64) {
	switch b {
	case Wandering:
		return true, 0.4
	case Fleeing:
		return true, 1
	case Stalking:
		return true, 0.7
	}
	return false, 0
}
