// Package resources models the gatherable nodes scattered over the meadow.
// Nodes deplete when gathered and regenerate linearly up to their maximum
// capacity. Every transform here is pure: it returns a new slice.
package resources

import (
	"errors"
	"sort"

	"github.com/talgya/critterlife/internal/entropy"
	"github.com/talgya/critterlife/internal/needs"
	"github.com/talgya/critterlife/internal/spatial"
)

// Type identifies a kind of resource node.
type Type string

const (
	BerryBush   Type = "berry_bush"
	Mushroom    Type = "mushroom"
	WaterPool   Type = "water_pool"
	Crystal     Type = "crystal"
	ChargingPad Type = "charging_pad"
	FlowerPatch Type = "flower_patch"
	Driftwood   Type = "driftwood"
)

// Category is the need a resource satisfies.
type Category string

const (
	Food     Category = "food"
	Comfort  Category = "comfort"
	Energy   Category = "energy"
	Material Category = "material"
)

// MinAvailable is the capacity below which a node counts as depleted.
const MinAvailable = 0.05

// GatherYield is the fraction of quality gathered per attempt.
const GatherYield = 0.25

var (
	ErrDepleted     = errors.New("resource depleted")
	ErrToolRequired = errors.New("resource requires a tool")
	ErrRobotOnly    = errors.New("resource usable by the robot only")
)

// Spec is the static definition of a resource type.
type Spec struct {
	Type         Type
	Category     Category
	Radius       float64
	MaxCapacity  float64
	RegenRate    float64 // capacity per second
	DangerLevel  float64
	RequiresTool bool
	RobotOnly    bool
}

// Catalog lists every resource type.
var Catalog = map[Type]Spec{
	BerryBush:   {Type: BerryBush, Category: Food, Radius: 1.5, MaxCapacity: 1, RegenRate: 0.01},
	Mushroom:    {Type: Mushroom, Category: Food, Radius: 1, MaxCapacity: 0.6, RegenRate: 0.006, DangerLevel: 0.1},
	WaterPool:   {Type: WaterPool, Category: Comfort, Radius: 3, MaxCapacity: 1, RegenRate: 0.02},
	Crystal:     {Type: Crystal, Category: Energy, Radius: 1, MaxCapacity: 0.8, RegenRate: 0.002, RequiresTool: true},
	ChargingPad: {Type: ChargingPad, Category: Energy, Radius: 2, MaxCapacity: 1, RegenRate: 0.05, RobotOnly: true},
	FlowerPatch: {Type: FlowerPatch, Category: Comfort, Radius: 2, MaxCapacity: 1, RegenRate: 0.008},
	Driftwood:   {Type: Driftwood, Category: Material, Radius: 1.5, MaxCapacity: 0.5, RegenRate: 0.001},
}

// Node is a single resource instance in the world.
type Node struct {
	ID           string       `json:"id"`
	Type         Type         `json:"type"`
	Category     Category     `json:"category"`
	Position     spatial.Vec3 `json:"position"`
	Radius       float64      `json:"radius"`
	Capacity     float64      `json:"capacity"`
	MaxCapacity  float64      `json:"maxCapacity"`
	RegenRate    float64      `json:"regenRate"`
	Quality      float64      `json:"quality"`
	DangerLevel  float64      `json:"dangerLevel"`
	RequiresTool bool         `json:"requiresTool"`
	RobotOnly    bool         `json:"robotOnly,omitempty"`
}

// Available reports whether the node can be gathered from.
func (n Node) Available() bool {
	return n.Capacity >= MinAvailable
}

// NeedKind maps the node's category onto the need it satisfies.
// Material nodes satisfy nothing directly.
func (n Node) NeedKind() (needs.Kind, bool) {
	switch n.Category {
	case Food:
		return needs.Hunger, true
	case Comfort:
		return needs.Comfort, true
	case Energy:
		return needs.Energy, true
	}
	return "", false
}

// Nearby is a node paired with its distance from the query point.
type Nearby struct {
	Node     Node
	Distance float64
}

// GetNearby returns available nodes within rng of (x, z), nearest first.
// When types is non-empty only those types are returned.
func GetNearby(nodes []Node, x, z, rng float64, types ...Type) []Nearby {
	var out []Nearby
	for _, n := range nodes {
		if !n.Available() {
			continue
		}
		if len(types) > 0 && !hasType(types, n.Type) {
			continue
		}
		d := spatial.DistanceXZ(n.Position, x, z)
		if d > rng {
			continue
		}
		out = append(out, Nearby{Node: n, Distance: d})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Distance < out[j].Distance
	})
	return out
}

// NearestOfCategory returns the closest available node of the category
// that the gatherer can actually use, if any.
func NearestOfCategory(nodes []Node, x, z, rng float64, cat Category, robot, hasTool bool) (Node, bool) {
	for _, nb := range GetNearby(nodes, x, z, rng) {
		if nb.Node.Category != cat {
			continue
		}
		if nb.Node.RobotOnly && !robot {
			continue
		}
		if nb.Node.RequiresTool && !hasTool {
			continue
		}
		return nb.Node, true
	}
	return Node{}, false
}

func hasType(types []Type, t Type) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

// Find returns the node with id.
func Find(nodes []Node, id string) (Node, bool) {
	for _, n := range nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Consume removes up to amount capacity from the node with id and returns
// the new slice and the amount actually taken.
func Consume(nodes []Node, id string, amount float64) ([]Node, float64) {
	out := make([]Node, len(nodes))
	copy(out, nodes)
	if amount <= 0 {
		return out, 0
	}
	for i := range out {
		if out[i].ID != id {
			continue
		}
		taken := amount
		if taken > out[i].Capacity {
			taken = out[i].Capacity
		}
		out[i].Capacity -= taken
		return out, taken
	}
	return out, 0
}

// Regenerate advances every node by dt seconds, never exceeding MaxCapacity.
func Regenerate(nodes []Node, dt float64) []Node {
	out := make([]Node, len(nodes))
	copy(out, nodes)
	if dt <= 0 {
		return out
	}
	for i := range out {
		out[i].Capacity = spatial.Clamp(out[i].Capacity+out[i].RegenRate*dt, 0, out[i].MaxCapacity)
	}
	return out
}

// GatherResult is the outcome of one gather attempt.
type GatherResult struct {
	Success bool    `json:"success"`
	Amount  float64 `json:"amount"`
	Injured bool    `json:"injured"` // danger roll hit
	Reason  error   `json:"-"`
}

// AttemptGather checks access and rolls danger. The danger roll happens on
// every attempt whether or not the gather succeeds. The caller applies the
// amount with Consume.
func AttemptGather(n Node, hasTool, isRobot bool, src entropy.Source) GatherResult {
	src = entropy.Or(src)
	res := GatherResult{Injured: entropy.Chance(src, n.DangerLevel)}
	switch {
	case !n.Available():
		res.Reason = ErrDepleted
	case n.RequiresTool && !hasTool:
		res.Reason = ErrToolRequired
	case n.RobotOnly && !isRobot:
		res.Reason = ErrRobotOnly
	default:
		res.Success = true
		res.Amount = n.Capacity
		if y := GatherYield * n.Quality; y < res.Amount {
			res.Amount = y
		}
	}
	return res
}

// SatisfyFrom applies a successful gather to needs. Gathered amount satisfies
// the node's need at double weight.
func SatisfyFrom(s needs.State, n Node, amount float64) needs.State {
	k, ok := n.NeedKind()
	if !ok || amount <= 0 {
		return s
	}
	return needs.Satisfy(s, k, amount*2)
}
