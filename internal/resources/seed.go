package resources

import (
	"math"

	"github.com/google/uuid"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/critterlife/internal/entropy"
	"github.com/talgya/critterlife/internal/spatial"
)

// SeedConfig controls initial node placement.
type SeedConfig struct {
	Seed     int64
	HalfSize float64 // meadow spans [-HalfSize, HalfSize] on X and Z
	Count    int
}

// DefaultSeedConfig matches the default meadow.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{Seed: 1, HalfSize: 40, Count: 24}
}

// Seed scatters nodes over the meadow. Two normalized noise layers decide
// placement: fertility picks the type and quality, roughness adds danger.
// One charging pad always sits next to the origin for the robot.
func Seed(cfg SeedConfig, src entropy.Source) []Node {
	src = entropy.Or(src)
	if cfg.Count <= 0 {
		cfg.Count = DefaultSeedConfig().Count
	}
	if cfg.HalfSize <= 0 {
		cfg.HalfSize = DefaultSeedConfig().HalfSize
	}

	fertility := opensimplex.NewNormalized(cfg.Seed)
	roughness := opensimplex.NewNormalized(cfg.Seed + 1)

	nodes := []Node{newNode(ChargingPad, spatial.Vec3{X: 2, Z: 2}, 1, 0)}
	for len(nodes) < cfg.Count {
		x := entropy.Range(src, -cfg.HalfSize, cfg.HalfSize)
		z := entropy.Range(src, -cfg.HalfSize, cfg.HalfSize)

		fert := octaveNoise(fertility, x, z, 3, 0.05, 0.5)
		rough := octaveNoise(roughness, x, z, 2, 0.08, 0.5)

		t := pickType(fert, rough, src)
		quality := spatial.Clamp(0.4+fert*0.6, 0.2, 1)
		n := newNode(t, spatial.Vec3{X: x, Z: z}, quality, rough)
		nodes = append(nodes, n)
	}
	return nodes
}

func newNode(t Type, pos spatial.Vec3, quality, rough float64) Node {
	spec := Catalog[t]
	danger := spec.DangerLevel
	if danger > 0 {
		danger = spatial.Clamp01(danger + rough*0.1)
	}
	return Node{
		ID:           uuid.NewString(),
		Type:         t,
		Category:     spec.Category,
		Position:     pos,
		Radius:       spec.Radius,
		Capacity:     spec.MaxCapacity,
		MaxCapacity:  spec.MaxCapacity,
		RegenRate:    spec.RegenRate,
		Quality:      quality,
		DangerLevel:  danger,
		RequiresTool: spec.RequiresTool,
		RobotOnly:    spec.RobotOnly,
	}
}

func pickType(fert, rough float64, src entropy.Source) Type {
	switch {
	case rough > 0.7:
		if src.Intn(2) == 0 {
			return Crystal
		}
		return Driftwood
	case fert > 0.6:
		return BerryBush
	case fert > 0.45:
		if src.Intn(3) == 0 {
			return Mushroom
		}
		return FlowerPatch
	case fert < 0.3:
		return WaterPool
	}
	return FlowerPatch
}

// octaveNoise layers several noise frequencies into one value in [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total, amplitude, maxVal := 0.0, 1.0, 0.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return math.Max(0, math.Min(1, total/maxVal))
}
