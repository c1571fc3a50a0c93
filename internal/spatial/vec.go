// Package spatial holds the small amount of geometry the simulation needs.
// The ground plane is X/Z; Y is height and ignored for proximity.
package spatial

import "math"

// Vec3 is a position in scene units.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Distance2D returns the ground-plane distance between a and b.
func Distance2D(a, b Vec3) float64 {
	dx := a.X - b.X
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dz*dz)
}

// DistanceXZ returns the ground-plane distance from p to (x, z).
func DistanceXZ(p Vec3, x, z float64) float64 {
	dx := p.X - x
	dz := p.Z - z
	return math.Sqrt(dx*dx + dz*dz)
}

// Clamp01 clamps v to [0, 1].
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Clamp clamps v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
