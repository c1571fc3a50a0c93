package engine

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/talgya/critterlife/internal/activity"
	"github.com/talgya/critterlife/internal/emotion"
	"github.com/talgya/critterlife/internal/entropy"
	"github.com/talgya/critterlife/internal/lifecycle"
	"github.com/talgya/critterlife/internal/needs"
	"github.com/talgya/critterlife/internal/relationship"
	"github.com/talgya/critterlife/internal/resources"
	"github.com/talgya/critterlife/internal/spatial"
	"github.com/talgya/critterlife/internal/wildlife"
	"github.com/talgya/critterlife/internal/world"
)

// wanderGoal is a point an exploring or wandering entity walks to.
type wanderGoal struct {
	to    spatial.Vec3
	until float64
}

// Movement multipliers per activity.
const (
	fleeBoost    = 1.6
	forageSlow   = 0.6
	socialStop   = 3.0
	wanderRadius = 12.0
	wanderTTL    = 20.0
	fleeDistance = 10.0
	preyMeal     = 0.5
)

// updateWildlife perceives and steps every animal's behavior machine.
func (s *Simulation) updateWildlife(w *world.World) {
	now := w.Clock()
	for _, id := range w.LivingOf(world.KindAnimal) {
		st, ok := w.Runtime.Animals[id]
		if !ok {
			st = wildlife.New(w.Registry[id].Species, now)
		}
		next := wildlife.Next(st, s.perceive(w, id, st.Species), now, s.src)
		if next.Behavior != st.Behavior {
			slog.Debug("animal behavior", "id", id, "from", st.Behavior, "to", next.Behavior)
		}
		w.Runtime.Animals[id] = next
	}
}

func (s *Simulation) perceive(w *world.World, id string, sp wildlife.Species) wildlife.Perception {
	p := wildlife.Perception{
		ThreatDist: -1,
		PreyDist:   -1,
		Energy:     w.Needs[id].Energy,
		IsNight:    w.Environment.IsNight(),
	}
	spec, _ := wildlife.SpecOf(sp)
	// Nearby is sorted nearest first, so the first match wins.
	for _, n := range w.Nearby(id, spec.SightRange) {
		switch n.Kind {
		case world.KindAnimal:
			other := w.Registry[n.ID].Species
			if p.ThreatID == "" && wildlife.IsThreat(sp, other) {
				p.ThreatID, p.ThreatDist = n.ID, n.Distance
			}
			if p.PreyID == "" && wildlife.IsPrey(sp, other) {
				p.PreyID, p.PreyDist = n.ID, n.Distance
			}
		case world.KindCritter:
			if p.PreyID == "" && spec.Hunts {
				p.PreyID, p.PreyDist = n.ID, n.Distance
			}
		}
	}
	return p
}

// updateActivities reselects expired activities and reacts to predators.
func (s *Simulation) updateActivities(w *world.World) {
	now := w.Clock()
	for _, id := range w.Living() {
		kind := world.KindOf(id)
		if kind == world.KindAnimal {
			continue
		}
		cur := w.Runtime.Activities[id]
		nearby := s.nearbyFor(w, id)
		threatened := predatorClose(nearby) && cur.Current != activity.Flee
		_, hasIntent := w.Runtime.Intents[id]
		if !cur.Expired(now) && !threatened && !hasIntent {
			continue
		}
		if _, talking := w.Runtime.InDialogue[id]; talking && !threatened {
			continue
		}

		e := w.Emotions[id]
		pos, _ := w.Position(id)
		next := activity.Select(activity.Input{
			Now:           now,
			SelfID:        id,
			Role:          kind.Role(),
			Emotion:       e,
			Hour:          w.Environment.Time,
			Weather:       w.Environment.Weather,
			Relationships: w.Relationships,
			Nearby:        nearby,
			Desires:       desiresOf(w, id),
			Intent:        w.TakeIntent(id),
			Position:      pos,
			Resources:     w.Resources,
			HasTool:       id == world.RobotID && w.RobotStatus.Toolkit,
		}, s.src)
		if next.Current == activity.Flee && next.TargetEntityID != "" {
			w.ApplyEmotion(id, emotion.PredatorNearby, 1)
		}
		if next.Current == activity.Socialize && next.TargetEntityID != "" &&
			relationship.GetAffinity(w.Relationships, id, next.TargetEntityID) == 0 {
			w.ApplyEmotion(id, emotion.MetStranger, 1)
		}
		w.SetActivity(id, next)
		delete(s.wander, id)
	}
}

func (s *Simulation) nearbyFor(w *world.World, id string) []activity.Nearby {
	var out []activity.Nearby
	for _, n := range w.Nearby(id, s.cfg.SightRadius) {
		pred := n.Kind == world.KindAnimal && wildlife.ThreatensCritters(w.Registry[n.ID].Species)
		if n.Kind == world.KindAnimal && !pred {
			continue
		}
		out = append(out, activity.Nearby{ID: n.ID, Distance: n.Distance, IsPredator: pred})
	}
	return out
}

func desiresOf(w *world.World, id string) needs.Desires {
	return needs.ToDesires(w.Needs[id], w.Emotions[id].Loneliness)
}

func predatorClose(nearby []activity.Nearby) bool {
	for _, n := range nearby {
		if n.IsPredator && n.Distance <= activity.PredatorRange {
			return true
		}
	}
	return false
}

// move walks every living entity one frame toward its goal.
func (s *Simulation) move(w *world.World, dt float64) {
	now := w.Clock()
	penalty := 0.0
	if h, ok := w.Environment.ActiveHazard(); ok {
		penalty = h.Effects.MovementPenalty
	}
	for _, id := range w.Living() {
		pos, ok := w.Position(id)
		if !ok {
			continue
		}
		if _, talking := w.Runtime.InDialogue[id]; talking {
			continue
		}
		goal, speed, ok := s.goal(w, id, pos, now)
		if !ok {
			continue
		}
		speed *= (1 - penalty) * dt
		_ = w.SetPosition(id, s.clampField(stepToward(pos, goal, speed)))
	}
}

// goal returns where id is heading and its speed in units per second.
func (s *Simulation) goal(w *world.World, id string, pos spatial.Vec3, now float64) (spatial.Vec3, float64, bool) {
	if world.KindOf(id) == world.KindAnimal {
		return s.animalGoal(w, id, pos, now)
	}
	rec := w.Registry[id]
	speed := s.cfg.WalkSpeed * emotion.ToSpeedMultiplier(w.Emotions[id]) * (0.75 + 0.5*rec.Traits.Speed)
	if id == world.RobotID {
		speed = s.cfg.WalkSpeed
	}
	a := w.Runtime.Activities[id]
	switch a.Current {
	case activity.Flee:
		if t, ok := w.Position(a.TargetEntityID); ok {
			return away(pos, t, fleeDistance), speed * fleeBoost, true
		}
		return s.wanderTo(id, pos, now), speed * fleeBoost, true
	case activity.SeekResource:
		if n, ok := resources.Find(w.Resources, a.TargetResourceID); ok {
			return n.Position, speed, true
		}
	case activity.Socialize:
		if t, ok := w.Position(a.TargetEntityID); ok && spatial.Distance2D(pos, t) > socialStop {
			return t, speed, true
		}
	case activity.Explore, activity.Patrol:
		return s.wanderTo(id, pos, now), speed, true
	case activity.Forage:
		if n, ok := resources.NearestOfCategory(w.Resources, pos.X, pos.Z, activity.ResourceRange, resources.Food, false, false); ok {
			return n.Position, speed * forageSlow, true
		}
		return s.wanderTo(id, pos, now), speed * forageSlow, true
	}
	return pos, 0, false
}

func (s *Simulation) animalGoal(w *world.World, id string, pos spatial.Vec3, now float64) (spatial.Vec3, float64, bool) {
	st := w.Runtime.Animals[id]
	moving, frac := wildlife.Moving(st.Behavior)
	if !moving {
		return pos, 0, false
	}
	spec, _ := wildlife.SpecOf(st.Species)
	speed := spec.Speed * frac
	t, ok := w.Position(st.TargetID)
	switch {
	case st.Behavior == wildlife.Fleeing && ok:
		return away(pos, t, fleeDistance), speed, true
	case st.Behavior == wildlife.Stalking && ok:
		return t, speed, true
	}
	return s.wanderTo(id, pos, now), speed, true
}

// wanderTo returns id's current wander point, rolling a new one when it is
// reached or stale.
func (s *Simulation) wanderTo(id string, pos spatial.Vec3, now float64) spatial.Vec3 {
	g, ok := s.wander[id]
	if ok && now < g.until && spatial.Distance2D(pos, g.to) > s.cfg.ArriveDistance {
		return g.to
	}
	to := s.clampField(spatial.Vec3{
		X: pos.X + entropy.Range(s.src, -wanderRadius, wanderRadius),
		Z: pos.Z + entropy.Range(s.src, -wanderRadius, wanderRadius),
	})
	s.wander[id] = wanderGoal{to: to, until: now + wanderTTL}
	return to
}

func stepToward(from, to spatial.Vec3, dist float64) spatial.Vec3 {
	dx, dz := to.X-from.X, to.Z-from.Z
	d := math.Hypot(dx, dz)
	if d <= dist || d == 0 {
		return spatial.Vec3{X: to.X, Y: from.Y, Z: to.Z}
	}
	return spatial.Vec3{X: from.X + dx/d*dist, Y: from.Y, Z: from.Z + dz/d*dist}
}

// away is a point dist units from threat on the far side of pos.
func away(pos, threat spatial.Vec3, dist float64) spatial.Vec3 {
	dx, dz := pos.X-threat.X, pos.Z-threat.Z
	d := math.Hypot(dx, dz)
	if d == 0 {
		dx, d = 1, 1
	}
	return spatial.Vec3{X: pos.X + dx/d*dist, Y: pos.Y, Z: pos.Z + dz/d*dist}
}

// hunt resolves predators in contact with their target. Animal prey is
// caught outright; critters take damage each second of contact.
func (s *Simulation) hunt(w *world.World, dt float64) {
	for _, id := range w.LivingOf(world.KindAnimal) {
		st := w.Runtime.Animals[id]
		if st.Behavior != wildlife.Stalking || !w.IsAlive(st.TargetID) {
			continue
		}
		pos, _ := w.Position(id)
		tpos, ok := w.Position(st.TargetID)
		if !ok || spatial.Distance2D(pos, tpos) > s.cfg.BiteRange {
			continue
		}
		hunter := w.Registry[id].Species
		cause := fmt.Sprintf("a %s attack", hunter)
		switch world.KindOf(st.TargetID) {
		case world.KindAnimal:
			s.kill(w, st.TargetID, cause)
			w.SatisfyNeed(id, needs.Hunger, preyMeal)
		case world.KindCritter:
			lc := lifecycle.Damage(w.Lifecycle[st.TargetID], s.cfg.BiteDamage*dt, cause)
			w.SetLifecycle(st.TargetID, lc)
			w.ApplyEmotion(st.TargetID, emotion.PredatorNearby, dt)
			if lc.HealthStatus == lifecycle.Dead {
				s.kill(w, st.TargetID, cause)
				w.SatisfyNeed(id, needs.Hunger, preyMeal)
			}
		}
	}
}

// arrive completes resource-seeking activities whose target is in reach.
func (s *Simulation) arrive(w *world.World) {
	for _, id := range w.Living() {
		a := w.Runtime.Activities[id]
		if a.Current != activity.SeekResource && a.Current != activity.Forage {
			continue
		}
		pos, _ := w.Position(id)
		var node resources.Node
		var ok bool
		if a.Current == activity.SeekResource {
			node, ok = resources.Find(w.Resources, a.TargetResourceID)
		} else {
			node, ok = resources.NearestOfCategory(w.Resources, pos.X, pos.Z, s.cfg.ArriveDistance+2, resources.Food, false, false)
		}
		if !ok || spatial.Distance2D(pos, node.Position) > node.Radius+s.cfg.ArriveDistance {
			continue
		}
		s.gather(w, id, node)
	}
}

// gather makes one attempt at node and ends the activity either way.
func (s *Simulation) gather(w *world.World, id string, node resources.Node) {
	robot := id == world.RobotID
	hasTool := robot && w.RobotStatus.Toolkit
	res := resources.AttemptGather(node, hasTool, robot, s.src)
	if res.Injured {
		w.ApplyEmotion(id, emotion.HazardDamage, 1)
		if robot {
			w.SetRobotStatus(w.RobotStatus.Damage(node.DangerLevel))
		} else if lc, ok := w.Lifecycle[id]; ok {
			lc = lifecycle.Damage(lc, node.DangerLevel, "a "+string(node.Type))
			w.SetLifecycle(id, lc)
			if lc.HealthStatus == lifecycle.Dead {
				s.kill(w, id, "a "+string(node.Type))
				return
			}
		}
	}

	done := activity.State{Current: activity.Idle, StartedAt: w.Clock(), Reason: "gathered"}
	if !res.Success {
		slog.Debug("gather failed", "entity", id, "node", node.ID, "reason", res.Reason)
		done.Reason = res.Reason.Error()
		w.SetActivity(id, done)
		return
	}

	nodes, got := resources.Consume(w.Resources, node.ID, res.Amount)
	w.SetResources(nodes)
	w.Scores.ResourcesGathered++
	if robot && node.Type == resources.ChargingPad {
		r := w.RobotStatus
		r.IsCharging = true
		w.SetRobotStatus(r)
		done = activity.State{Current: activity.Rest, StartedAt: w.Clock(), Duration: activity.Duration(activity.Rest, s.src), Reason: "charging"}
	} else {
		w.SetNeeds(id, resources.SatisfyFrom(w.Needs[id], node, got))
	}
	if node.Category == resources.Food {
		w.ApplyEmotion(id, emotion.FoundFood, 1)
	}
	w.SetActivity(id, done)
	w.AddLog(id, world.LogGather, fmt.Sprintf("%s gathered from a %s.", w.DisplayName(id), node.Type))
}
