// Package activity chooses what an entity does next. Select is a pure
// function of the entity's inner state and its surroundings.
package activity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/talgya/critterlife/internal/emotion"
	"github.com/talgya/critterlife/internal/entropy"
	"github.com/talgya/critterlife/internal/environment"
	"github.com/talgya/critterlife/internal/needs"
	"github.com/talgya/critterlife/internal/relationship"
	"github.com/talgya/critterlife/internal/resources"
	"github.com/talgya/critterlife/internal/spatial"
)

// Kind is a behavioral activity.
type Kind uint8

const (
	Idle Kind = iota
	Explore
	Forage
	Rest
	Socialize
	Flee
	Patrol
	SeekResource
)

var kindNames = [...]string{"idle", "explore", "forage", "rest", "socialize", "flee", "patrol", "seek_resource"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// MarshalText encodes the kind as its name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	v, ok := ParseKind(string(b))
	if !ok {
		return fmt.Errorf("unknown activity %q", string(b))
	}
	*k = v
	return nil
}

// ParseKind decodes an activity name, tolerating case and surrounding space.
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range kindNames {
		if n == s {
			return Kind(i), true
		}
	}
	return Idle, false
}

// Names lists every activity name, used to constrain generated actions.
func Names() []string {
	out := make([]string, len(kindNames))
	copy(out, kindNames[:])
	return out
}

// durations holds [min, max) seconds per kind.
var durations = map[Kind][2]float64{
	Idle:         {5, 10},
	Explore:      {15, 30},
	Forage:       {10, 20},
	Rest:         {20, 40},
	Socialize:    {10, 20},
	Flee:         {6, 10},
	Patrol:       {20, 30},
	SeekResource: {15, 25},
}

// Duration rolls a duration for k.
func Duration(k Kind, src entropy.Source) float64 {
	r := durations[k]
	return entropy.Range(entropy.Or(src), r[0], r[1])
}

// State is an entity's current activity.
type State struct {
	Current          Kind    `json:"current"`
	StartedAt        float64 `json:"startedAt"`
	Duration         float64 `json:"duration"`
	TargetEntityID   string  `json:"targetEntityId,omitempty"`
	TargetResourceID string  `json:"targetResourceId,omitempty"`
	Reason           string  `json:"reason,omitempty"`
}

// Expired reports whether the activity has run its duration by now.
func (s State) Expired(now float64) bool {
	return now >= s.StartedAt+s.Duration
}

// Selection thresholds.
const (
	FleeFear          = 0.75
	PredatorRange     = 6.0
	UrgentHunger      = 0.6
	UrgentEnergy      = 0.7
	UrgentComfort     = 0.7
	SocialUrge        = 0.5
	SocialRange       = 12.0
	ResourceRange     = 40.0
	StrangerCuriosity = 0.6
)

// Nearby is another entity seen from the selecting entity.
type Nearby struct {
	ID         string
	Distance   float64
	IsPredator bool
}

// Input is everything Select looks at.
type Input struct {
	Now           float64
	SelfID        string
	Role          needs.Role
	Emotion       emotion.State
	Hour          float64
	Weather       environment.Weather
	Relationships relationship.Ledger
	Nearby        []Nearby
	Desires       needs.Desires
	Intent        string // suggested by the thinking loop; may be empty or invalid
	Position      spatial.Vec3
	Resources     []resources.Node
	HasTool       bool // may gather from tool-gated nodes
}

// Select picks the next activity. Priority: flee, a valid suggested intent,
// an urgent need, social contact, then a weighted roll.
func Select(in Input, src entropy.Source) State {
	src = entropy.Or(src)
	start := func(k Kind, reason string) State {
		return State{Current: k, StartedAt: in.Now, Duration: Duration(k, src), Reason: reason}
	}

	if threat, ok := nearestPredator(in.Nearby); ok {
		s := start(Flee, "predator nearby")
		s.TargetEntityID = threat
		return s
	}
	if in.Emotion.Fear > FleeFear {
		return start(Flee, "frightened")
	}

	if k, ok := ParseKind(in.Intent); ok && allowed(k, in.Role) {
		if s, ok := bind(start(k, "own idea"), in); ok {
			return s
		}
	}

	if s, ok := urgent(in, start); ok {
		return s
	}

	if in.Desires.Social > SocialUrge {
		if id, ok := socialTarget(in); ok {
			s := start(Socialize, "lonely")
			s.TargetEntityID = id
			return s
		}
	}

	k := weighted(in, src)
	s, ok := bind(start(k, "whim"), in)
	if !ok {
		return start(Idle, "whim")
	}
	return s
}

func allowed(k Kind, role needs.Role) bool {
	return k != Patrol || role == needs.RoleRobot
}

// bind attaches targets required by the kind. Returns false when a required
// target does not exist.
func bind(s State, in Input) (State, bool) {
	switch s.Current {
	case SeekResource:
		cat := neededCategory(in)
		n, ok := resources.NearestOfCategory(in.Resources, in.Position.X, in.Position.Z, ResourceRange, cat, in.Role == needs.RoleRobot, in.HasTool)
		if !ok {
			return s, false
		}
		s.TargetResourceID = n.ID
	case Socialize:
		id, ok := socialTarget(in)
		if !ok {
			return s, false
		}
		s.TargetEntityID = id
	}
	return s, true
}

// neededCategory maps the strongest desire onto a resource category.
func neededCategory(in Input) resources.Category {
	d := in.Desires
	switch {
	case d.Energy >= d.Hunger && d.Energy >= d.Comfort:
		return resources.Energy
	case d.Comfort > d.Hunger:
		return resources.Comfort
	}
	if in.Role == needs.RoleRobot {
		return resources.Energy
	}
	return resources.Food
}

func urgent(in Input, start func(Kind, string) State) (State, bool) {
	d := in.Desires
	type need struct {
		urge     float64
		cat      resources.Category
		fallback Kind
		reason   string
	}
	var list []need
	if d.Hunger > UrgentHunger && in.Role != needs.RoleRobot {
		list = append(list, need{d.Hunger, resources.Food, Forage, "hungry"})
	}
	if d.Energy > UrgentEnergy {
		list = append(list, need{d.Energy, resources.Energy, Rest, "tired"})
	}
	if d.Comfort > UrgentComfort {
		list = append(list, need{d.Comfort, resources.Comfort, Rest, "uncomfortable"})
	}
	if len(list) == 0 {
		return State{}, false
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].urge > list[j].urge })
	top := list[0]

	robot := in.Role == needs.RoleRobot
	if n, ok := resources.NearestOfCategory(in.Resources, in.Position.X, in.Position.Z, ResourceRange, top.cat, robot, in.HasTool); ok {
		if top.cat != resources.Energy || robot {
			s := start(SeekResource, top.reason)
			s.TargetResourceID = n.ID
			return s, true
		}
	}
	return start(top.fallback, top.reason), true
}

func nearestPredator(nearby []Nearby) (string, bool) {
	best, id := PredatorRange, ""
	for _, n := range nearby {
		if n.IsPredator && n.Distance <= best {
			best, id = n.Distance, n.ID
		}
	}
	return id, id != ""
}

// socialTarget picks the warmest non-avoided, non-predator neighbour in range.
func socialTarget(in Input) (string, bool) {
	bestID, bestScore := "", -2.0
	for _, n := range in.Nearby {
		if n.IsPredator || n.ID == in.SelfID || n.Distance > SocialRange {
			continue
		}
		aff := relationship.GetAffinity(in.Relationships, in.SelfID, n.ID)
		if relationship.ShouldAvoid(aff) {
			continue
		}
		score := aff - n.Distance/100
		if aff == 0 && in.Emotion.Curiosity > StrangerCuriosity {
			score += 0.2
		}
		if score > bestScore {
			bestID, bestScore = n.ID, score
		}
	}
	return bestID, bestID != ""
}

func weighted(in Input, src entropy.Source) Kind {
	night := environment.IsNight(in.Hour)
	wet := in.Weather == environment.Rainy || in.Weather == environment.Snowy

	explore := 1 + 2*in.Emotion.Curiosity
	if wet {
		explore *= 0.5
	}
	if night {
		explore *= 0.4
	}
	rest := 0.5 + in.Desires.Energy
	if night {
		rest += 1.5
	}
	idle := 1.0
	if in.Weather == environment.Sunny {
		idle += 0.5 * in.Emotion.Joy
	}

	type option struct {
		k Kind
		w float64
	}
	opts := []option{
		{Idle, idle},
		{Explore, explore},
		{Rest, rest},
	}
	if in.Role != needs.RoleRobot {
		opts = append(opts, option{Forage, 0.3 + in.Desires.Hunger})
	} else {
		opts = append(opts, option{Patrol, 1})
	}
	if len(in.Nearby) > 0 {
		opts = append(opts, option{Socialize, 0.3 + in.Desires.Social})
	}

	total := 0.0
	for _, o := range opts {
		total += o.w
	}
	r := src.Float64() * total
	for _, o := range opts {
		r -= o.w
		if r < 0 {
			return o.k
		}
	}
	return Idle
}
