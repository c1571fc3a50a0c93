package environment

import (
	"fmt"

	"github.com/talgya/critterlife/internal/entropy"
)

// HazardType names a weather event.
type HazardType uint8

const (
	Storm HazardType = iota
	Blizzard
	Heatwave
	Drought
	Calm
)

var hazardNames = [...]string{"storm", "blizzard", "heatwave", "drought", "calm"}

func (h HazardType) String() string {
	if int(h) < len(hazardNames) {
		return hazardNames[h]
	}
	return fmt.Sprintf("HazardType(%d)", uint8(h))
}

// MarshalText encodes the hazard as its name.
func (h HazardType) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText decodes a hazard name.
func (h *HazardType) UnmarshalText(b []byte) error {
	for i, n := range hazardNames {
		if n == string(b) {
			*h = HazardType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown hazard %q", string(b))
}

// Effects are the continuous consequences of an active hazard.
type Effects struct {
	TemperatureChange   float64 `json:"temperatureChange"`
	DamagePerSecond     float64 `json:"damagePerSecond"`
	MovementPenalty     float64 `json:"movementPenalty"`
	VisibilityReduction float64 `json:"visibilityReduction"`
	ResourceSpawnBlock  bool    `json:"resourceSpawnBlock"`
}

// Warning is announced TimeBeforeStart seconds ahead of the hazard.
type Warning struct {
	Message         string  `json:"message"`
	TimeBeforeStart float64 `json:"timeBeforeStart"`
}

// Event is a scheduled or running hazard. Times are cycle clock seconds.
type Event struct {
	Type      HazardType `json:"type"`
	Duration  float64    `json:"duration"`
	StartTime float64    `json:"startTime"`
	Effects   Effects    `json:"effects"`
	Warning   Warning    `json:"warning"`
	Started   bool       `json:"started"`
}

// Active reports whether the event is in effect at clock time now.
func (e Event) Active(now float64) bool {
	return e.StartTime <= now && now < e.StartTime+e.Duration
}

// Expired reports whether the event has run its full course.
func (e Event) Expired(now float64) bool {
	return now >= e.StartTime+e.Duration
}

// hazardDef is the template and trigger rule for one hazard type.
type hazardDef struct {
	typ      HazardType
	chance   float64
	duration float64
	effects  Effects
	warning  Warning
	when     func(s State) bool
}

var hazardDefs = []hazardDef{
	{
		typ: Storm, chance: 0.15, duration: 45,
		effects: Effects{TemperatureChange: -3, DamagePerSecond: 0.006, MovementPenalty: 0.3, VisibilityReduction: 0.4},
		warning: Warning{Message: "Dark clouds are gathering. A storm is coming!", TimeBeforeStart: 10},
		when:    func(s State) bool { return s.Weather == Rainy },
	},
	{
		typ: Blizzard, chance: 0.12, duration: 60,
		effects: Effects{TemperatureChange: -8, DamagePerSecond: 0.008, MovementPenalty: 0.5, VisibilityReduction: 0.6, ResourceSpawnBlock: true},
		warning: Warning{Message: "The wind is picking up snow. A blizzard approaches!", TimeBeforeStart: 15},
		when:    func(s State) bool { return s.Weather == Snowy && s.Temperature < 0 },
	},
	{
		typ: Heatwave, chance: 0.10, duration: 90,
		effects: Effects{TemperatureChange: 8, DamagePerSecond: 0.003, MovementPenalty: 0.2, VisibilityReduction: 0.1},
		warning: Warning{Message: "The air is shimmering. A heatwave is building.", TimeBeforeStart: 20},
		when:    func(s State) bool { return s.Weather == Sunny && s.Season == Summer && s.Temperature > 24 },
	},
	{
		typ: Drought, chance: 0.05, duration: 120,
		effects: Effects{TemperatureChange: 4, DamagePerSecond: 0.001, MovementPenalty: 0.1, ResourceSpawnBlock: true},
		warning: Warning{Message: "The ground is cracking. A drought is setting in.", TimeBeforeStart: 30},
		when: func(s State) bool {
			return (s.Season == Summer || s.Season == Autumn) && s.Day%5 == 3
		},
	},
	{
		typ: Calm, chance: 0.05, duration: 60,
		warning: Warning{Message: "A peaceful stillness settles over the meadow.", TimeBeforeStart: 5},
		when:    func(s State) bool { return s.Weather == Sunny || s.Weather == Cloudy },
	},
}

// RollHazard evaluates each eligible hazard's trigger in order and returns
// the first that fires, scheduled to start after its warning lead time.
func RollHazard(s State, src entropy.Source) (Event, bool) {
	src = entropy.Or(src)
	for _, d := range hazardDefs {
		if !d.when(s) {
			continue
		}
		if !entropy.Chance(src, d.chance) {
			continue
		}
		return d.schedule(s.Clock), true
	}
	return Event{}, false
}

// NewHazard schedules a hazard of type t unconditionally. Used by admin
// controls and tests.
func NewHazard(t HazardType, now float64) (Event, error) {
	for _, d := range hazardDefs {
		if d.typ == t {
			return d.schedule(now), nil
		}
	}
	return Event{}, fmt.Errorf("no hazard definition for %s", t)
}

func (d hazardDef) schedule(now float64) Event {
	return Event{
		Type:      d.typ,
		Duration:  d.duration,
		StartTime: now + d.warning.TimeBeforeStart,
		Effects:   d.effects,
		Warning:   d.warning,
	}
}
