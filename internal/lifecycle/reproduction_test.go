package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/critterlife/internal/entropy"
	"github.com/talgya/critterlife/internal/needs"
)

func TestEmergencyAcceptsSick(t *testing.T) {
	s := healthyAdult()
	s.HealthStatus = Sick
	n := needs.State{Hunger: 0.4, Energy: 0.3, Comfort: 0.1}

	assert.False(t, Eligible(s, n, 5), "normal population rejects sick and hungry")
	assert.True(t, Eligible(s, n, 2), "emergency accepts sick")

	always := &entropy.Script{Values: []float64{0}}
	assert.True(t, CheckReproduction(s, n, 1, always))
	assert.False(t, CheckReproduction(s, n, 4, always))
}

func TestEmergencyRejectsDyingAndDead(t *testing.T) {
	n := needs.Full()
	always := &entropy.Script{Values: []float64{0}}
	for _, st := range []HealthStatus{Dying, Dead} {
		s := healthyAdult()
		s.HealthStatus = st
		assert.False(t, CheckReproduction(s, n, 1, always), st.String())
	}
}

func TestReproductionGates(t *testing.T) {
	always := &entropy.Script{Values: []float64{0}}
	never := &entropy.Script{Values: []float64{0.999}}
	n := needs.Full()

	s := healthyAdult()
	assert.True(t, CheckReproduction(s, n, 4, always))
	assert.False(t, CheckReproduction(s, n, 4, never), "Bernoulli trial can fail")
	assert.False(t, CheckReproduction(s, n, PopulationCap, always), "cap")

	s.ReproductionCooldown = 1
	assert.False(t, CheckReproduction(s, n, 4, always), "cooldown")

	s = healthyAdult()
	s.Age = MinReproductionAge - 1
	assert.False(t, CheckReproduction(s, n, 4, always), "too young")
}

func TestReproduce(t *testing.T) {
	src := entropy.NewSeeded(11)
	parent := healthyAdult()
	parent.Generation = 2
	traits := Traits{Hue: 0.99, Size: 1, Speed: 0.5, Sociability: 0, Bravery: 0.5}

	out := Reproduce(parent, traits, src)
	assert.Equal(t, 3, out.Child.Generation)
	assert.Equal(t, float64(ReproductionCooldown), out.Parent.ReproductionCooldown)
	assert.Equal(t, Healthy, out.Child.HealthStatus)

	for _, v := range []float64{out.Traits.Hue, out.Traits.Size, out.Traits.Speed, out.Traits.Sociability, out.Traits.Bravery} {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.InDelta(t, traits.Speed, out.Traits.Speed, TraitMutation)
}
