package lifecycle

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/critterlife/internal/entropy"
	"github.com/talgya/critterlife/internal/needs"
)

func healthyAdult() State {
	return State{Age: 20, MaxAge: 100, Health: 1, HealthStatus: Healthy, Generation: 1}
}

func TestNewRollsLifespan(t *testing.T) {
	src := entropy.NewSeeded(7)
	for i := 0; i < 100; i++ {
		s := New(src, 0)
		assert.GreaterOrEqual(t, s.MaxAge, MinMaxAge)
		assert.Less(t, s.MaxAge, MaxMaxAge)
		assert.Equal(t, Healthy, s.HealthStatus)
		assert.Equal(t, 1.0, s.Health)
	}
}

func TestZeroHealthIsDead(t *testing.T) {
	s := healthyAdult()
	s.Health = 0
	out := Tick(s, needs.Full(), &entropy.Script{Values: []float64{0.99}})
	assert.Equal(t, Dead, out.HealthStatus)
	assert.Less(t, out.Age, out.MaxAge)
}

func TestSickDrainToDeath(t *testing.T) {
	s := healthyAdult()
	s.HealthStatus = Sick
	s.Health = 0.003
	s.SicknessDuration = 40
	out := Tick(s, needs.State{Hunger: 0.3, Energy: 0.5, Comfort: 0.5}, nil)
	assert.Equal(t, Dead, out.HealthStatus)
	assert.Equal(t, "illness", out.DeathCause)
}

func TestLowHealthForcesDying(t *testing.T) {
	s := healthyAdult()
	s.Health = 0.15
	out := Tick(s, needs.Full(), &entropy.Script{Values: []float64{0.99}})
	assert.Equal(t, Dying, out.HealthStatus)

	// Dying never recovers.
	out.Health = 0.9
	out = Tick(out, needs.Full(), &entropy.Script{Values: []float64{0.99}})
	assert.Equal(t, Dying, out.HealthStatus)
}

func TestOldAge(t *testing.T) {
	s := healthyAdult()
	s.Age = s.MaxAge - 0.001
	out := Tick(s, needs.Full(), nil)
	assert.Equal(t, Dead, out.HealthStatus)
	assert.Equal(t, "old age", out.DeathCause)
}

func TestAgeIsMonotonic(t *testing.T) {
	s := healthyAdult()
	src := entropy.NewSeeded(3)
	prev := s.Age
	for i := 0; i < 500 && s.HealthStatus.Alive(); i++ {
		s = Tick(s, needs.Full(), src)
		assert.Greater(t, s.Age, prev)
		prev = s.Age
	}
}

func TestSicknessRecovery(t *testing.T) {
	s := healthyAdult()
	s.HealthStatus = Sick
	s.Health = 0.5
	s.SicknessDuration = 1
	out := Tick(s, needs.Full(), nil)
	assert.Equal(t, Healthy, out.HealthStatus)
	assert.InDelta(t, 0.5+SickRecoveryRegen+RecoveryHealthBonus, out.Health, 1e-9)
}

// With hunger at 0.10 the per-step onset probability is 0.002. Over 100k
// independent single-step trials the expected count is 200 (sd ≈ 14).
func TestHungrySicknessOnsetRate(t *testing.T) {
	src := entropy.NewSeeded(42)
	hungry := needs.State{Hunger: 0.10, Energy: 0.8, Comfort: 0.8}

	const trials = 100_000
	sick := 0
	for i := 0; i < trials; i++ {
		if Tick(healthyAdult(), hungry, src).HealthStatus == Sick {
			sick++
		}
	}
	assert.InDelta(t, 200, sick, 60, "onset count %d outside expected band", sick)
}

func TestSatedSicknessOnsetIsRare(t *testing.T) {
	src := entropy.NewSeeded(43)
	const trials = 100_000
	sick := 0
	for i := 0; i < trials; i++ {
		if Tick(healthyAdult(), needs.Full(), src).HealthStatus == Sick {
			sick++
		}
	}
	assert.InDelta(t, 20, sick, 18)
}

func TestDamage(t *testing.T) {
	s := healthyAdult()
	s = Damage(s, 0.85, "storm")
	assert.Equal(t, Dying, s.HealthStatus)
	s = Damage(s, 1, "storm")
	assert.Equal(t, Dead, s.HealthStatus)
	assert.Equal(t, "storm", s.DeathCause)
}

func TestTransitions(t *testing.T) {
	assert.True(t, CanTransition(Healthy, Sick))
	assert.True(t, CanTransition(Sick, Healthy))
	assert.False(t, CanTransition(Dying, Healthy))
	assert.False(t, CanTransition(Dead, Healthy))
	assert.True(t, CanTransition(Dead, Dead))
}

func TestStatusJSON(t *testing.T) {
	raw, err := json.Marshal(State{HealthStatus: Sick})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"healthStatus":"sick"`)

	var back State
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, Sick, back.HealthStatus)
	assert.Error(t, json.Unmarshal([]byte(`{"healthStatus":"zombie"}`), &back))
}
