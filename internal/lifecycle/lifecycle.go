// Package lifecycle ages entities and moves them through the health state
// machine: healthy ⇄ sick, healthy/sick → dying → dead. Every transition is
// evaluated once per fixed simulation step (one second).
package lifecycle

import (
	"fmt"

	"github.com/talgya/critterlife/internal/entropy"
	"github.com/talgya/critterlife/internal/needs"
	"github.com/talgya/critterlife/internal/spatial"
)

// HealthStatus is the health state machine's state.
type HealthStatus uint8

const (
	Healthy HealthStatus = iota
	Sick
	Dying
	Dead
)

var statusNames = [...]string{"healthy", "sick", "dying", "dead"}

func (h HealthStatus) String() string {
	if int(h) < len(statusNames) {
		return statusNames[h]
	}
	return fmt.Sprintf("HealthStatus(%d)", uint8(h))
}

// MarshalText encodes the status as its name.
func (h HealthStatus) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText decodes a status name.
func (h *HealthStatus) UnmarshalText(b []byte) error {
	for i, n := range statusNames {
		if n == string(b) {
			*h = HealthStatus(i)
			return nil
		}
	}
	return fmt.Errorf("unknown health status %q", string(b))
}

// Alive reports whether the status is anything but dead.
func (h HealthStatus) Alive() bool {
	return h != Dead
}

// CanTransition reports whether from → to is a legal edge of the state machine.
// Staying in place is always legal.
func CanTransition(from, to HealthStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case Healthy:
		return to == Sick || to == Dying || to == Dead
	case Sick:
		return to == Healthy || to == Dying || to == Dead
	case Dying:
		return to == Dead
	case Dead:
		return false
	}
	return false
}

// State is one entity's lifecycle record.
type State struct {
	Age                  float64      `json:"age"`    // Wall minutes lived; one unit per 60 steps
	MaxAge               float64      `json:"maxAge"` // Natural lifespan
	Health               float64      `json:"health"`
	HealthStatus         HealthStatus `json:"healthStatus"`
	SicknessDuration     float64      `json:"sicknessDuration"`     // Steps of sickness remaining
	ReproductionCooldown float64      `json:"reproductionCooldown"` // Steps until eligible again
	Generation           int          `json:"generation"`
	DeathCause           string       `json:"deathCause,omitempty"`
}

// Tuning constants. Rates are per step.
const (
	StepSeconds = 1.0

	MinMaxAge = 60.0
	MaxMaxAge = 120.0

	BaseSicknessChance   = 0.0002
	HungrySicknessChance = 0.002
	HungrySicknessBelow  = 0.15

	MinSickSteps = 30
	MaxSickSteps = 90

	SickDrain            = 0.004
	SickRecoveryHunger   = 0.6
	SickRecoveryRegen    = 0.002
	RecoveryHealthBonus  = 0.2
	HealthyRegen         = 0.001
	StarvationBelow      = 0.05
	StarvationDrain      = 0.01
	DyingDrain           = 0.005
	DyingBelow           = 0.2
	InitialCooldownSteps = 60
)

// New creates a fresh lifecycle at spawn with a randomized lifespan.
func New(src entropy.Source, generation int) State {
	src = entropy.Or(src)
	return State{
		MaxAge:               entropy.Range(src, MinMaxAge, MaxMaxAge),
		Health:               1,
		HealthStatus:         Healthy,
		ReproductionCooldown: InitialCooldownSteps,
		Generation:           generation,
	}
}

// Tick advances the lifecycle by one fixed step given the entity's current needs.
func Tick(s State, n needs.State, src entropy.Source) State {
	if s.HealthStatus == Dead {
		return s
	}
	src = entropy.Or(src)

	s.Age += StepSeconds / 60
	if s.ReproductionCooldown > 0 {
		s.ReproductionCooldown--
		if s.ReproductionCooldown < 0 {
			s.ReproductionCooldown = 0
		}
	}

	if s.Age >= s.MaxAge {
		return kill(s, "old age")
	}
	if s.Health <= 0 {
		return settle(s, n)
	}

	if n.Hunger < StarvationBelow {
		s.Health -= StarvationDrain
	}

	switch s.HealthStatus {
	case Healthy:
		p := BaseSicknessChance
		if n.Hunger < HungrySicknessBelow {
			p = HungrySicknessChance
		}
		if entropy.Chance(src, p) {
			s.HealthStatus = Sick
			s.SicknessDuration = float64(MinSickSteps + src.Intn(MaxSickSteps-MinSickSteps+1))
		} else if n.Hunger > 0.5 && n.Energy > 0.3 {
			s.Health += HealthyRegen
		}
	case Sick:
		if n.Hunger > SickRecoveryHunger {
			s.Health += SickRecoveryRegen
		} else {
			s.Health -= SickDrain
		}
		s.SicknessDuration--
		if s.SicknessDuration <= 0 {
			s.SicknessDuration = 0
			s.HealthStatus = Healthy
			s.Health += RecoveryHealthBonus
		}
	case Dying:
		s.Health -= DyingDrain
	}

	s.Health = spatial.Clamp01(s.Health)
	return settle(s, n)
}

// settle applies the health-driven overrides that hold at any time.
func settle(s State, n needs.State) State {
	if s.Health <= 0 {
		cause := "illness"
		if n.Hunger < StarvationBelow {
			cause = "starvation"
		}
		return kill(s, cause)
	}
	if s.Health < DyingBelow && s.HealthStatus != Dead {
		s.HealthStatus = Dying
		s.SicknessDuration = 0
	}
	return s
}

// Damage applies external harm (hazards, predators) and re-settles the state.
func Damage(s State, amount float64, cause string) State {
	if s.HealthStatus == Dead || amount <= 0 {
		return s
	}
	s.Health = spatial.Clamp01(s.Health - amount)
	if s.Health <= 0 {
		return kill(s, cause)
	}
	return settle(s, needs.Full())
}

func kill(s State, cause string) State {
	s.Health = 0
	s.HealthStatus = Dead
	s.SicknessDuration = 0
	if s.DeathCause == "" {
		s.DeathCause = cause
	}
	return s
}

// Describe renders the lifecycle for prompt context.
func Describe(s State) string {
	stage := "young"
	switch frac := s.Age / s.MaxAge; {
	case frac > 0.8:
		stage = "elderly"
	case frac > 0.35:
		stage = "grown"
	}
	return fmt.Sprintf("%s, %s (health %.0f%%, generation %d)", stage, s.HealthStatus, s.Health*100, s.Generation)
}
