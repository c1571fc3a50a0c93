package environment

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/talgya/critterlife/internal/spatial"
)

// BuildingKind is a structure that shelters entities from hazards.
type BuildingKind string

const (
	Shelter  BuildingKind = "shelter"
	Campfire BuildingKind = "campfire"
	Burrow   BuildingKind = "burrow"
)

// Building is a placed structure.
type Building struct {
	ID         string       `json:"id"`
	Kind       BuildingKind `json:"kind"`
	Position   spatial.Vec3 `json:"position"`
	Radius     float64      `json:"radius"`
	Protection float64      `json:"protection"` // fraction of hazard damage absorbed
}

// NewBuilding creates a building with the kind's default radius and protection.
func NewBuilding(kind BuildingKind, pos spatial.Vec3) (Building, error) {
	b := Building{ID: uuid.NewString(), Kind: kind, Position: pos}
	switch kind {
	case Shelter:
		b.Radius, b.Protection = 4, 0.8
	case Burrow:
		b.Radius, b.Protection = 2, 0.6
	case Campfire:
		b.Radius, b.Protection = 3, 0.3
	default:
		return Building{}, fmt.Errorf("unknown building kind %q", kind)
	}
	return b, nil
}

// Covers reports whether pos is inside the building's radius.
func (b Building) Covers(pos spatial.Vec3) bool {
	return spatial.Distance2D(b.Position, pos) <= b.Radius
}

// ProtectionAt returns the best protection any building offers at pos.
func ProtectionAt(buildings []Building, pos spatial.Vec3) float64 {
	best := 0.0
	for _, b := range buildings {
		if b.Covers(pos) && b.Protection > best {
			best = b.Protection
		}
	}
	return spatial.Clamp01(best)
}

// DamageAt is the hazard damage an entity at pos takes over dt seconds.
func DamageAt(e Event, now float64, pos spatial.Vec3, buildings []Building, dt float64) float64 {
	if !e.Active(now) || dt <= 0 {
		return 0
	}
	return e.Effects.DamagePerSecond * dt * (1 - ProtectionAt(buildings, pos))
}
