// Package world is the simulation's single source of truth. State is sharded
// into per-id maps, one per subsystem, instead of entity objects; an entity
// exists while it has a registry record and stays alive while that record
// says so. Subsystems read and write only through World's mutators, and
// Store serializes access across goroutines.
package world

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/talgya/critterlife/internal/activity"
	"github.com/talgya/critterlife/internal/emotion"
	"github.com/talgya/critterlife/internal/environment"
	"github.com/talgya/critterlife/internal/lifecycle"
	"github.com/talgya/critterlife/internal/memory"
	"github.com/talgya/critterlife/internal/needs"
	"github.com/talgya/critterlife/internal/relationship"
	"github.com/talgya/critterlife/internal/resources"
	"github.com/talgya/critterlife/internal/spatial"
	"github.com/talgya/critterlife/internal/wildlife"
)

var (
	ErrPopulationCap     = errors.New("population cap reached")
	ErrUnknownEntity     = errors.New("unknown or dead entity")
	ErrDuplicateEntity   = errors.New("entity already exists")
	ErrUnsupportedSchema = errors.New("unsupported world schema version")
)

// Limits caps concurrent living populations.
type Limits struct {
	Critters int `json:"critters"`
	Animals  int `json:"animals"`
}

// DefaultAnimalCap bounds wild animals.
const DefaultAnimalCap = 6

// DefaultLimits returns the standard caps.
func DefaultLimits() Limits {
	return Limits{Critters: lifecycle.PopulationCap, Animals: DefaultAnimalCap}
}

// Settings are user preferences carried in the persisted blob. API keys are
// never stored here.
type Settings struct {
	TimeScale      float64 `json:"timeScale"`
	Provider       string  `json:"provider,omitempty"`
	Model          string  `json:"model,omitempty"`
	SpeechEnabled  bool    `json:"speechEnabled"`
	SpeechProvider string  `json:"speechProvider,omitempty"`
}

// World holds every slice of simulation state.
type World struct {
	Epoch         time.Time
	Settings      Settings
	Registry      map[string]Record
	Needs         map[string]needs.State
	Emotions      map[string]emotion.State
	Lifecycle     map[string]lifecycle.State
	Memories      map[string][]memory.Memory
	Relationships relationship.Ledger
	RobotStatus   needs.RobotStatus
	Environment   environment.State
	Resources     []resources.Node
	Buildings     []environment.Building
	Log           []LogEntry
	LogSeq        int64
	Scores        Scores
	Achievements  map[string]Achievement
	Limits        Limits

	Runtime Runtime
}

// New returns an empty world at the start of day one.
func New(epoch time.Time) *World {
	w := &World{
		Epoch:       epoch,
		Settings:    Settings{TimeScale: 3},
		RobotStatus: needs.NewRobotStatus(),
		Environment: environment.NewState(),
		Limits:      DefaultLimits(),
	}
	w.ensure()
	return w
}

// ensure allocates any nil map so mutators never need to.
func (w *World) ensure() {
	if w.Registry == nil {
		w.Registry = map[string]Record{}
	}
	if w.Needs == nil {
		w.Needs = map[string]needs.State{}
	}
	if w.Emotions == nil {
		w.Emotions = map[string]emotion.State{}
	}
	if w.Lifecycle == nil {
		w.Lifecycle = map[string]lifecycle.State{}
	}
	if w.Memories == nil {
		w.Memories = map[string][]memory.Memory{}
	}
	if w.Relationships == nil {
		w.Relationships = relationship.New()
	}
	if w.Achievements == nil {
		w.Achievements = map[string]Achievement{}
	}
	if w.Runtime.Positions == nil {
		w.Runtime = newRuntime()
	}
	if w.Limits.Critters <= 0 {
		w.Limits = DefaultLimits()
	}
}

// Clock is the environment's wall clock in seconds.
func (w *World) Clock() float64 {
	return w.Environment.Clock
}

// Now maps the simulation clock onto wall time for memory timestamps.
func (w *World) Now() time.Time {
	return w.Epoch.Add(time.Duration(w.Environment.Clock * float64(time.Second)))
}

// IsAlive reports whether id has a living registry record.
func (w *World) IsAlive(id string) bool {
	r, ok := w.Registry[id]
	return ok && r.IsAlive
}

// Living returns the ids of every living entity in sorted order.
func (w *World) Living() []string {
	ids := make([]string, 0, len(w.Registry))
	for id, r := range w.Registry {
		if r.IsAlive {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// LivingOf returns the sorted ids of living entities of kind k.
func (w *World) LivingOf(k Kind) []string {
	var ids []string
	for id, r := range w.Registry {
		if r.IsAlive && r.Kind == k {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// AliveCritters counts living critters.
func (w *World) AliveCritters() int {
	return len(w.LivingOf(KindCritter))
}

func (w *World) add(rec Record, lc *lifecycle.State, pos spatial.Vec3) error {
	if _, exists := w.Registry[rec.ID]; exists {
		return fmt.Errorf("spawn %s: %w", rec.ID, ErrDuplicateEntity)
	}
	w.Registry[rec.ID] = rec
	w.Needs[rec.ID] = newNeeds(rec.Kind)
	w.Emotions[rec.ID] = emotion.Baseline()
	if lc != nil {
		w.Lifecycle[rec.ID] = *lc
	}
	w.Runtime.Positions[rec.ID] = pos
	w.Runtime.Activities[rec.ID] = activity.State{Current: activity.Idle, StartedAt: w.Clock()}
	return nil
}

// AddRobot registers the robot.
func (w *World) AddRobot(rec Record, pos spatial.Vec3) error {
	if rec.Kind != KindRobot {
		return fmt.Errorf("add robot: %s is a %s", rec.ID, rec.Kind)
	}
	if err := w.add(rec, nil, pos); err != nil {
		return err
	}
	w.Needs[rec.ID] = needs.MirrorEnergy(w.Needs[rec.ID], w.RobotStatus)
	return nil
}

// SpawnCritter adds a living critter. It refuses with ErrPopulationCap when
// the critter cap is reached.
func (w *World) SpawnCritter(rec Record, lc lifecycle.State, pos spatial.Vec3) error {
	if rec.Kind != KindCritter {
		return fmt.Errorf("spawn critter: %s is a %s", rec.ID, rec.Kind)
	}
	if w.AliveCritters() >= w.Limits.Critters {
		return ErrPopulationCap
	}
	if err := w.add(rec, &lc, pos); err != nil {
		return err
	}
	w.Scores.Births++
	return nil
}

// SpawnAnimal adds a wild animal, capped by Limits.Animals.
func (w *World) SpawnAnimal(rec Record, lc lifecycle.State, pos spatial.Vec3) error {
	if rec.Kind != KindAnimal {
		return fmt.Errorf("spawn animal: %s is a %s", rec.ID, rec.Kind)
	}
	if len(w.LivingOf(KindAnimal)) >= w.Limits.Animals {
		return ErrPopulationCap
	}
	if err := w.add(rec, &lc, pos); err != nil {
		return err
	}
	w.Runtime.Animals[rec.ID] = wildlife.New(rec.Species, w.Clock())
	return nil
}

// MarkDead flips the record to dead and starts its fade-out. The record and
// its memories stay; runtime state is dropped by Despawn once faded.
func (w *World) MarkDead(id, cause string) bool {
	rec, ok := w.Registry[id]
	if !ok || !rec.IsAlive {
		return false
	}
	now := w.Clock()
	rec.IsAlive = false
	rec.DiedAt = now
	rec.DeathCause = cause
	w.Registry[id] = rec

	if lc, ok := w.Lifecycle[id]; ok && lc.HealthStatus != lifecycle.Dead {
		w.Lifecycle[id] = lifecycle.Damage(lc, 2, cause)
	}
	w.Runtime.DyingSince[id] = now
	delete(w.Runtime.Intents, id)
	delete(w.Runtime.Inbox, id)
	delete(w.Runtime.InDialogue, id)
	delete(w.Runtime.Thinking, id)
	if rec.Kind == KindCritter || rec.Kind == KindRobot {
		w.Scores.Deaths++
	}
	return true
}

// Despawn drops every runtime slice for a dead entity.
func (w *World) Despawn(id string) {
	rt := &w.Runtime
	delete(rt.Positions, id)
	delete(rt.Activities, id)
	delete(rt.Animals, id)
	delete(rt.Bubbles, id)
	delete(rt.Thoughts, id)
	delete(rt.NextThinkAt, id)
	delete(rt.DyingSince, id)
	if rt.CameraTarget == id {
		rt.CameraTarget = ""
	}
}

// SetPosition moves a living entity.
func (w *World) SetPosition(id string, pos spatial.Vec3) error {
	if !w.IsAlive(id) {
		return fmt.Errorf("set position %s: %w", id, ErrUnknownEntity)
	}
	w.Runtime.Positions[id] = pos
	return nil
}

// Position returns id's live position.
func (w *World) Position(id string) (spatial.Vec3, bool) {
	p, ok := w.Runtime.Positions[id]
	return p, ok
}

// Neighbor is a living entity seen from another.
type Neighbor struct {
	ID       string
	Kind     Kind
	Distance float64
}

// Nearby lists living entities within radius of id, nearest first.
func (w *World) Nearby(id string, radius float64) []Neighbor {
	self, ok := w.Runtime.Positions[id]
	if !ok {
		return nil
	}
	var out []Neighbor
	for other, pos := range w.Runtime.Positions {
		if other == id || !w.IsAlive(other) {
			continue
		}
		if d := spatial.Distance2D(self, pos); d <= radius {
			out = append(out, Neighbor{ID: other, Kind: KindOf(other), Distance: d})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SetNeeds replaces id's needs.
func (w *World) SetNeeds(id string, n needs.State) {
	w.Needs[id] = n
}

// SatisfyNeed tops up one of id's needs.
func (w *World) SatisfyNeed(id string, kind needs.Kind, amount float64) {
	w.Needs[id] = needs.Satisfy(w.Needs[id], kind, amount)
}

// SetEmotion replaces id's emotion vector.
func (w *World) SetEmotion(id string, e emotion.State) {
	w.Emotions[id] = e
}

// ApplyEmotion pushes a discrete emotion event onto id.
func (w *World) ApplyEmotion(id string, ev emotion.Event, intensity float64) {
	if !w.IsAlive(id) {
		return
	}
	e, ok := w.Emotions[id]
	if !ok {
		e = emotion.Baseline()
	}
	w.Emotions[id] = emotion.ApplyEvent(e, ev, intensity)
}

// BroadcastEmotion applies ev to every living entity of the given kinds
// (all kinds when none are given).
func (w *World) BroadcastEmotion(ev emotion.Event, intensity float64, kinds ...Kind) {
	for _, id := range w.Living() {
		if len(kinds) == 0 || kindIn(KindOf(id), kinds) {
			w.ApplyEmotion(id, ev, intensity)
		}
	}
}

func kindIn(k Kind, ks []Kind) bool {
	for _, x := range ks {
		if x == k {
			return true
		}
	}
	return false
}

// SetLifecycle replaces id's lifecycle.
func (w *World) SetLifecycle(id string, s lifecycle.State) {
	w.Lifecycle[id] = s
}

// SetActivity replaces id's activity.
func (w *World) SetActivity(id string, a activity.State) {
	w.Runtime.Activities[id] = a
}

// AddMemory stores a memory for id, pruning to the bounded size.
func (w *World) AddMemory(id string, m memory.Memory) {
	w.Memories[id] = memory.Add(w.Memories[id], m)
}

// AdjustRelationship shifts the affinity between a and b.
func (w *World) AdjustRelationship(a, b string, delta float64) {
	w.Relationships = relationship.Adjust(w.Relationships, a, b, delta)
}

// SetRobotStatus replaces the robot's machine state and mirrors its battery
// into the robot's energy need.
func (w *World) SetRobotStatus(r needs.RobotStatus) {
	w.RobotStatus = r
	if n, ok := w.Needs[RobotID]; ok {
		w.Needs[RobotID] = needs.MirrorEnergy(n, r)
	}
}

// SetEnvironment replaces the environment state.
func (w *World) SetEnvironment(s environment.State) {
	w.Environment = s
}

// SetWeatherTarget requests a weather change; the cycle stages it.
func (w *World) SetWeatherTarget(target environment.Weather) {
	w.Environment.TargetWeather = target
}

// SetResources replaces the resource field.
func (w *World) SetResources(nodes []resources.Node) {
	w.Resources = nodes
}

// AddBuilding places a shelter-type building.
func (w *World) AddBuilding(b environment.Building) {
	w.Buildings = append(w.Buildings, b)
}
