package engine

import (
	"log/slog"

	"github.com/talgya/critterlife/internal/dialogue"
	"github.com/talgya/critterlife/internal/emotion"
	"github.com/talgya/critterlife/internal/entropy"
	"github.com/talgya/critterlife/internal/environment"
	"github.com/talgya/critterlife/internal/relationship"
	"github.com/talgya/critterlife/internal/resources"
	"github.com/talgya/critterlife/internal/thinking"
	"github.com/talgya/critterlife/internal/world"
)

// Config is the host-side tuning of the frame driver.
type Config struct {
	FieldHalfSize     float64 // meadow spans [-FieldHalfSize, FieldHalfSize]
	WalkSpeed         float64 // units per second at speed multiplier 1
	ArriveDistance    float64
	SightRadius       float64 // neighbours considered by activity selection
	DeathFade         float64 // seconds a dead entity stays visible
	DeathNearbyRadius float64
	AnimalRespawn     float64 // seconds between respawn checks
	BiteRange         float64
	BiteDamage        float64 // health per second while a hunter is in contact
	RepairRate        float64 // robot integrity per second while charging
	MaxFrame          float64 // longest frame applied in one go
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		FieldHalfSize:     40,
		WalkSpeed:         2,
		ArriveDistance:    1.5,
		SightRadius:       15,
		DeathFade:         3,
		DeathNearbyRadius: 15,
		AnimalRespawn:     45,
		BiteRange:         1.5,
		BiteDamage:        0.05,
		RepairRate:        0.002,
		MaxFrame:          0.25,
	}
}

// Simulation holds the collaborators that advance a world.Store.
type Simulation struct {
	cfg      Config
	store    *world.Store
	cycle    *environment.Cycle
	spawner  *world.Spawner
	dialogue *dialogue.Orchestrator
	thinking *thinking.Loop
	src      entropy.Source
	seed     resources.SeedConfig
	decay    relationship.DecayPolicy

	// w is the world being stepped; cycle callbacks read it.
	w *world.World

	lifeAcc    float64
	respawnAcc float64
	frames     uint64
	wander     map[string]wanderGoal
}

// Option customizes a Simulation.
type Option func(*Simulation)

// WithDialogue attaches the dialogue orchestrator.
func WithDialogue(o *dialogue.Orchestrator) Option {
	return func(s *Simulation) { s.dialogue = o }
}

// WithThinking attaches the thinking loop.
func WithThinking(l *thinking.Loop) Option {
	return func(s *Simulation) { s.thinking = l }
}

// WithSeed sets the resource field layout used when a world has none.
func WithSeed(cfg resources.SeedConfig) Option {
	return func(s *Simulation) { s.seed = cfg }
}

// WithRelationshipDecay replaces the affinity drift policy.
func WithRelationshipDecay(p relationship.DecayPolicy) Option {
	return func(s *Simulation) { s.decay = p }
}

// WithConfig replaces the default tuning.
func WithConfig(cfg Config) Option {
	return func(s *Simulation) { s.cfg = cfg }
}

// NewSimulation wires the environment cycle callbacks onto store.
func NewSimulation(store *world.Store, src entropy.Source, opts ...Option) *Simulation {
	src = entropy.Or(src)
	s := &Simulation{
		cfg:     DefaultConfig(),
		store:   store,
		cycle:   environment.NewCycle(src),
		spawner: world.NewSpawner(src),
		src:     src,
		decay:   relationship.NoDecay{},
		wander:  map[string]wanderGoal{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.seed == (resources.SeedConfig{}) {
		s.seed = resources.DefaultSeedConfig()
		s.seed.HalfSize = s.cfg.FieldHalfSize
	}
	s.wireCycle()
	return s
}

// Store returns the store the simulation advances.
func (s *Simulation) Store() *world.Store {
	return s.store
}

// Frames returns how many frames have been stepped.
func (s *Simulation) Frames() uint64 {
	return s.frames
}

// Tick advances the world by dt wall seconds. Long frames are clamped so a
// stalled host does not teleport entities or skip hazard onsets.
func (s *Simulation) Tick(dt float64) {
	if dt <= 0 {
		return
	}
	if s.cfg.MaxFrame > 0 && dt > s.cfg.MaxFrame {
		dt = s.cfg.MaxFrame
	}
	s.store.Update(func(w *world.World) { s.step(w, dt) })
}

// step is one frame with the world write-locked.
func (s *Simulation) step(w *world.World, dt float64) {
	s.w = w
	defer func() { s.w = nil }()
	s.frames++

	if n := s.store.Drain(w); n > 0 {
		slog.Debug("patches applied", "count", n)
	}
	w.ExpireBubbles()

	if w.Settings.TimeScale > 0 {
		s.cycle.TimeScale = w.Settings.TimeScale
	}
	w.SetEnvironment(s.cycle.Update(w.Environment, dt))

	s.seedField(w)
	s.placeStrays(w)
	s.applyHazard(w, dt)
	s.updateNeeds(w, dt)
	s.updateLifecycle(w, dt)
	for _, id := range w.Living() {
		w.SetEmotion(id, emotion.Decay(w.Emotions[id], dt))
	}
	s.updateWildlife(w)
	s.updateActivities(w)
	s.move(w, dt)
	s.hunt(w, dt)
	s.arrive(w)

	for _, id := range w.Living() {
		if s.dialogue != nil {
			s.dialogue.Step(w, id, dt)
		}
		if s.thinking != nil {
			s.thinking.Step(w, id)
		}
	}
	if s.dialogue != nil {
		s.dialogue.Failsafe(w)
	}
	if s.thinking != nil {
		s.thinking.Failsafe(w)
	}

	s.fade(w)
	s.respawnAnimals(w, dt)
	for _, id := range w.EvaluateAchievements() {
		slog.Info("achievement unlocked", "id", id)
	}
}

// Wait blocks until asynchronous dialogue and thinking calls have posted
// their results.
func (s *Simulation) Wait() {
	if s.dialogue != nil {
		s.dialogue.Wait()
	}
	if s.thinking != nil {
		s.thinking.Wait()
	}
}
