package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/talgya/critterlife/internal/activity"
	"github.com/talgya/critterlife/internal/emotion"
	"github.com/talgya/critterlife/internal/entropy"
	"github.com/talgya/critterlife/internal/lifecycle"
	"github.com/talgya/critterlife/internal/memory"
	"github.com/talgya/critterlife/internal/needs"
	"github.com/talgya/critterlife/internal/relationship"
	"github.com/talgya/critterlife/internal/resources"
	"github.com/talgya/critterlife/internal/spatial"
	"github.com/talgya/critterlife/internal/wildlife"
	"github.com/talgya/critterlife/internal/world"
)

// Recovery rates per second.
const (
	grazeRate       = 0.01
	restRate        = 0.02
	restComfortRate = 0.006
)

// Populate fills an empty world: the robot at the origin, founders and
// animals scattered over the meadow, and a seeded resource field.
func (s *Simulation) Populate(founders, animals int, seed resources.SeedConfig) error {
	var err error
	s.store.Update(func(w *world.World) {
		if _, ok := w.Registry[world.RobotID]; !ok {
			if err = w.AddRobot(s.spawner.Robot(w.Clock()), spatial.Vec3{}); err != nil {
				return
			}
		}
		for i := 0; i < founders; i++ {
			rec, lc := s.spawner.Founder(w, w.Clock())
			if e := w.SpawnCritter(rec, lc, s.randomPoint(s.cfg.FieldHalfSize/2)); e != nil {
				if errors.Is(e, world.ErrPopulationCap) {
					break
				}
				err = e
				return
			}
			w.AddLog(rec.ID, world.LogBirth, fmt.Sprintf("%s wanders into the meadow.", rec.Name))
		}
		for i := 0; i < animals; i++ {
			if e := s.spawnAnimal(w); e != nil {
				break
			}
		}
		if len(w.Resources) == 0 {
			s.seed = seed
			s.seedField(w)
		}
		slog.Info("world populated",
			"critters", w.AliveCritters(),
			"animals", len(w.LivingOf(world.KindAnimal)),
			"resources", len(w.Resources),
		)
	})
	return err
}

// seedField scatters a resource field over a world that has none, as
// happens for new worlds and for saves migrated from before resources.
func (s *Simulation) seedField(w *world.World) {
	if len(w.Resources) > 0 {
		return
	}
	w.SetResources(resources.Seed(s.seed, s.src))
	slog.Info("resource field seeded", "seed", s.seed.Seed, "nodes", len(w.Resources))
}

// placeStrays gives a position to living entities that have none, as
// happens after loading a saved world.
func (s *Simulation) placeStrays(w *world.World) {
	for _, id := range w.Living() {
		if _, ok := w.Position(id); ok {
			continue
		}
		pos := s.randomPoint(s.cfg.FieldHalfSize / 2)
		if id == world.RobotID {
			pos = spatial.Vec3{}
		}
		_ = w.SetPosition(id, pos)
	}
}

func (s *Simulation) randomPoint(half float64) spatial.Vec3 {
	return spatial.Vec3{
		X: entropy.Range(s.src, -half, half),
		Z: entropy.Range(s.src, -half, half),
	}
}

// updateNeeds decays needs and robot battery over dt.
func (s *Simulation) updateNeeds(w *world.World, dt float64) {
	night := w.Environment.IsNight()
	for _, id := range w.Living() {
		if id == world.RobotID {
			r := w.RobotStatus
			if r.IsCharging && !s.onChargingPad(w, id) {
				r.IsCharging = false
			}
			r = needs.DecayRobot(r, dt, night)
			if r.IsCharging {
				r.Integrity = spatial.Clamp01(r.Integrity + s.cfg.RepairRate*dt)
			}
			w.SetRobotStatus(r)
			n := needs.Decay(w.Needs[id], dt, needs.RoleRobot, night)
			w.SetNeeds(id, needs.MirrorEnergy(n, w.RobotStatus))
			continue
		}
		kind := world.KindOf(id)
		n := needs.Decay(w.Needs[id], dt, kind.Role(), night)
		if kind == world.KindCritter && w.Runtime.Activities[id].Current == activity.Rest {
			n = needs.Satisfy(n, needs.Energy, restRate*dt)
			n = needs.Satisfy(n, needs.Comfort, restComfortRate*dt)
		}
		if kind == world.KindAnimal {
			switch w.Runtime.Animals[id].Behavior {
			case wildlife.Grazing:
				n = needs.Satisfy(n, needs.Hunger, grazeRate*dt)
			case wildlife.Resting:
				n = needs.Satisfy(n, needs.Energy, restRate*dt)
			}
		}
		w.SetNeeds(id, n)
	}
}

func (s *Simulation) onChargingPad(w *world.World, id string) bool {
	pos, ok := w.Position(id)
	if !ok {
		return false
	}
	for _, n := range w.Resources {
		if n.Type == resources.ChargingPad && spatial.Distance2D(n.Position, pos) <= n.Radius+s.cfg.ArriveDistance {
			return true
		}
	}
	return false
}

// updateLifecycle runs lifecycle steps at a fixed one-second cadence,
// independent of the frame rate.
func (s *Simulation) updateLifecycle(w *world.World, dt float64) {
	s.lifeAcc += dt
	for s.lifeAcc >= lifecycle.StepSeconds {
		s.lifeAcc -= lifecycle.StepSeconds
		s.lifecycleStep(w)
		w.Relationships = relationship.ApplyPolicy(w.Relationships, s.decay, lifecycle.StepSeconds)
	}
}

func (s *Simulation) lifecycleStep(w *world.World) {
	for _, id := range w.Living() {
		lc, ok := w.Lifecycle[id]
		if !ok {
			continue
		}
		before := lc.HealthStatus
		lc = lifecycle.Tick(lc, w.Needs[id], s.src)
		w.SetLifecycle(id, lc)

		switch {
		case lc.HealthStatus == lifecycle.Dead:
			s.kill(w, id, lc.DeathCause)
			continue
		case before != lc.HealthStatus && world.KindOf(id) == world.KindCritter:
			slog.Info("health changed", "entity", id, "from", before, "to", lc.HealthStatus)
			if lc.HealthStatus == lifecycle.Sick {
				w.AddLog(id, world.LogSystem, fmt.Sprintf("%s is feeling unwell.", w.DisplayName(id)))
			}
		}

		if world.KindOf(id) == world.KindCritter {
			s.tryReproduce(w, id, lc)
		}
	}
}

// tryReproduce rolls for a birth. A refusal at the population cap is a
// silent no-op and leaves the parent's cooldown untouched.
func (s *Simulation) tryReproduce(w *world.World, id string, lc lifecycle.State) {
	alive := w.AliveCritters()
	if alive >= w.Limits.Critters {
		return
	}
	if !lifecycle.CheckReproduction(lc, w.Needs[id], alive, s.src) {
		return
	}
	parent := w.Registry[id]
	off := lifecycle.Reproduce(lc, parent.Traits, s.src)
	child := s.spawner.Child(w, parent, off, w.Clock())

	pos, _ := w.Position(id)
	pos = s.clampField(spatial.Vec3{X: pos.X + entropy.Range(s.src, -2, 2), Z: pos.Z + entropy.Range(s.src, -2, 2)})
	if err := w.SpawnCritter(child, off.Child, pos); err != nil {
		if !errors.Is(err, world.ErrPopulationCap) {
			slog.Warn("birth failed", "parent", id, "error", err)
		}
		return
	}
	w.SetLifecycle(id, off.Parent)

	text := fmt.Sprintf("%s was born to %s (generation %d).", child.Name, parent.Name, child.Generation)
	w.AddLog(child.ID, world.LogBirth, text)
	w.AddMemory(id, memory.New(fmt.Sprintf("My child %s was born.", child.Name), memory.Event, 0.9, w.Now(), child.ID))
	w.AdjustRelationship(id, child.ID, 0.5)
	w.BroadcastEmotion(emotion.NewBirth, 1, world.KindCritter, world.KindRobot)
	slog.Info("birth", "child", child.ID, "parent", id, "generation", child.Generation)
}

// kill marks id dead and tells nearby critters.
func (s *Simulation) kill(w *world.World, id, cause string) {
	if cause == "" {
		cause = "unknown causes"
	}
	witnesses := w.Nearby(id, s.cfg.DeathNearbyRadius)
	if !w.MarkDead(id, cause) {
		return
	}
	delete(s.wander, id)
	name := w.DisplayName(id)
	w.AddLog(id, world.LogDeath, fmt.Sprintf("%s died of %s.", name, cause))
	slog.Info("death", "entity", id, "cause", cause)

	if world.KindOf(id) == world.KindAnimal {
		return
	}
	for _, n := range witnesses {
		if n.Kind != world.KindCritter {
			continue
		}
		w.ApplyEmotion(n.ID, emotion.DeathNearby, 1)
		w.AddMemory(n.ID, memory.New(fmt.Sprintf("I saw %s die of %s.", name, cause), memory.Event, 0.9, w.Now(), id))
	}
}

// fade drops dead entities once their fade-out has run.
func (s *Simulation) fade(w *world.World) {
	now := w.Clock()
	for id, since := range w.Runtime.DyingSince {
		if now-since >= s.cfg.DeathFade {
			w.Despawn(id)
		}
	}
}

// respawnAnimals tops the wild population back up, one animal per check.
func (s *Simulation) respawnAnimals(w *world.World, dt float64) {
	s.respawnAcc += dt
	if s.respawnAcc < s.cfg.AnimalRespawn {
		return
	}
	s.respawnAcc = 0
	if h, ok := w.Environment.ActiveHazard(); ok && h.Effects.ResourceSpawnBlock {
		return
	}
	if err := s.spawnAnimal(w); err != nil && !errors.Is(err, world.ErrPopulationCap) {
		slog.Warn("animal spawn failed", "error", err)
	}
}

// spawnAnimal brings one animal in from the edge of the meadow.
func (s *Simulation) spawnAnimal(w *world.World) error {
	species := wildlife.RollSpecies(s.src)
	rec, lc := s.spawner.Animal(w, species, w.Clock())
	angle := entropy.Range(s.src, 0, 2*math.Pi)
	r := s.cfg.FieldHalfSize * 0.9
	pos := spatial.Vec3{X: r * math.Cos(angle), Z: r * math.Sin(angle)}
	if err := w.SpawnAnimal(rec, lc, pos); err != nil {
		return err
	}
	slog.Debug("animal arrived", "id", rec.ID)
	if wildlife.ThreatensCritters(species) {
		w.AddLog(rec.ID, world.LogSystem, fmt.Sprintf("A %s prowls at the edge of the meadow.", species))
	}
	return nil
}

func (s *Simulation) clampField(p spatial.Vec3) spatial.Vec3 {
	h := s.cfg.FieldHalfSize
	p.X = spatial.Clamp(p.X, -h, h)
	p.Z = spatial.Clamp(p.Z, -h, h)
	return p
}
