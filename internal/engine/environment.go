package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/critterlife/internal/emotion"
	"github.com/talgya/critterlife/internal/environment"
	"github.com/talgya/critterlife/internal/lifecycle"
	"github.com/talgya/critterlife/internal/resources"
	"github.com/talgya/critterlife/internal/world"
)

// Ambient emotion intensities applied on the broadcast cadence.
const (
	ambientWeather = 0.15
	ambientHunger  = 0.5
	ambientAlone   = 0.3
	hungryBelow    = 0.25
)

// wireCycle routes environment callbacks into the world being stepped.
func (s *Simulation) wireCycle() {
	c := s.cycle
	c.OnDayRollover = s.onDayRollover
	c.OnWeatherChange = func(from, to environment.Weather) {
		w := s.w
		w.AddLog("", world.LogWeather, fmt.Sprintf("The weather turns %s.", to))
		w.BroadcastEmotion(to.EmotionEvent(), 1)
	}
	c.OnHazardWarning = func(e environment.Event) {
		s.w.AddLog("", world.LogHazard, e.Warning.Message)
	}
	c.OnHazardStart = func(e environment.Event) {
		w := s.w
		w.AddLog("", world.LogHazard, fmt.Sprintf("A %s has begun.", e.Type))
		w.BroadcastEmotion(emotion.WeatherStorm, e.Effects.DamagePerSecond*100)
	}
	c.OnHazardResolved = s.onHazardResolved
	c.OnRegen = func(dt float64) {
		s.w.SetResources(resources.Regenerate(s.w.Resources, dt))
	}
	c.OnBroadcast = s.onBroadcast
	c.OnNightFall = func() {
		s.w.BroadcastEmotion(emotion.NightFall, 1)
	}
	c.OnDayBreak = func() {
		s.w.BroadcastEmotion(emotion.DayBreak, 1)
	}
}

func (s *Simulation) onDayRollover(day int, season environment.Season) {
	w := s.w
	w.AddLog("", world.LogSystem, fmt.Sprintf("Day %d of %s dawns.", day, season))
	slog.Info("daily report",
		"day", day,
		"season", season,
		"critters", w.AliveCritters(),
		"animals", len(w.LivingOf(world.KindAnimal)),
		"conversations", w.Scores.Conversations,
		"births", w.Scores.Births,
		"deaths", w.Scores.Deaths,
		"robot_battery", fmt.Sprintf("%.2f", w.RobotStatus.Battery),
	)
}

func (s *Simulation) onHazardResolved(e environment.Event) {
	w := s.w
	w.AddLog("", world.LogHazard, fmt.Sprintf("The %s has passed.", e.Type))
	w.BroadcastEmotion(emotion.WeatherEventResolved, 1)
	if w.AliveCritters() == 0 {
		return
	}
	w.Scores.HazardsSurvived++
	if e.Type == environment.Storm {
		w.Unlock(world.AchStormSurvivor)
	}
}

// onBroadcast applies the slow ambient pressures: weather mood, hunger
// and being alone.
func (s *Simulation) onBroadcast(env environment.State) {
	w := s.w
	w.BroadcastEmotion(env.Weather.EmotionEvent(), ambientWeather, world.KindCritter, world.KindRobot)
	for _, id := range w.LivingOf(world.KindCritter) {
		if w.Needs[id].Hunger < hungryBelow {
			w.ApplyEmotion(id, emotion.Hungry, ambientHunger)
		}
		if !hasCompany(w, id, s.cfg.SightRadius) {
			w.ApplyEmotion(id, emotion.Alone, ambientAlone)
		}
	}
}

func hasCompany(w *world.World, id string, radius float64) bool {
	for _, n := range w.Nearby(id, radius) {
		if n.Kind == world.KindCritter || n.Kind == world.KindRobot {
			return true
		}
	}
	return false
}

// applyHazard damages every living entity exposed to the active hazard.
// Buildings absorb part of the damage.
func (s *Simulation) applyHazard(w *world.World, dt float64) {
	h, ok := w.Environment.ActiveHazard()
	if !ok || h.Effects.DamagePerSecond <= 0 {
		return
	}
	now := w.Clock()
	cause := h.Type.String()
	for _, id := range w.Living() {
		pos, ok := w.Position(id)
		if !ok {
			continue
		}
		dmg := environment.DamageAt(h, now, pos, w.Buildings, dt)
		if dmg <= 0 {
			continue
		}
		w.ApplyEmotion(id, emotion.HazardDamage, dmg*10)
		if id == world.RobotID {
			w.SetRobotStatus(w.RobotStatus.Damage(dmg))
			if w.RobotStatus.Integrity <= 0 {
				s.kill(w, id, cause)
			}
			continue
		}
		lc, ok := w.Lifecycle[id]
		if !ok {
			continue
		}
		lc = lifecycle.Damage(lc, dmg, cause)
		w.SetLifecycle(id, lc)
		if lc.HealthStatus == lifecycle.Dead {
			s.kill(w, id, cause)
		}
	}
}
