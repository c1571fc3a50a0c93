package environment

import (
	"log/slog"

	"github.com/talgya/critterlife/internal/entropy"
)

// Cadences in wall-clock seconds.
const (
	RerollInterval      = 90.0
	StepInterval        = 30.0
	HazardCheckInterval = 60.0
	TemperatureInterval = 2.0
	RegenInterval       = 2.0
	BroadcastInterval   = 5.0

	DefaultTimeScale = 3.0 // sim minutes per wall second
)

// Cycle advances environment State. Its timers are runtime-only.
// Callbacks fire synchronously inside Update.
type Cycle struct {
	TimeScale float64

	OnDayRollover    func(day int, season Season)
	OnWeatherChange  func(from, to Weather)
	OnHazardWarning  func(e Event)
	OnHazardStart    func(e Event)
	OnHazardResolved func(e Event)
	OnRegen          func(dt float64)
	OnBroadcast      func(s State) // emotion broadcast cadence
	OnNightFall      func()
	OnDayBreak       func()

	src entropy.Source

	rerollTimer    float64
	stepTimer      float64
	hazardTimer    float64
	tempTimer      float64
	regenTimer     float64
	broadcastTimer float64
}

// NewCycle creates a cycle at the default time scale.
func NewCycle(src entropy.Source) *Cycle {
	return &Cycle{TimeScale: DefaultTimeScale, src: entropy.Or(src)}
}

// Update advances s by dt wall seconds and returns the new state.
func (c *Cycle) Update(s State, dt float64) State {
	if dt <= 0 {
		return s
	}
	if s.Day < 1 {
		s.Day = 1
	}
	s.Clock += dt

	wasNight := s.IsNight()
	s.Time += dt * c.TimeScale / 60
	for s.Time >= 24 {
		s.Time -= 24
		s.Day++
		prev := s.Season
		s.Season = SeasonFromDay(s.Day)
		s.TargetWeather = RollTarget(s.Season, c.src)
		c.rerollTimer = 0
		if prev != s.Season {
			slog.Info("season change", "day", s.Day, "season", s.Season)
		}
		slog.Info("new day", "day", s.Day, "season", s.Season, "target_weather", s.TargetWeather)
		if c.OnDayRollover != nil {
			c.OnDayRollover(s.Day, s.Season)
		}
	}
	switch night := s.IsNight(); {
	case night && !wasNight && c.OnNightFall != nil:
		c.OnNightFall()
	case !night && wasNight && c.OnDayBreak != nil:
		c.OnDayBreak()
	}

	c.rerollTimer += dt
	if c.rerollTimer >= RerollInterval {
		c.rerollTimer = 0
		s.TargetWeather = RollTarget(s.Season, c.src)
		slog.Debug("weather target rerolled", "target", s.TargetWeather)
	}

	c.stepTimer += dt
	if c.stepTimer >= StepInterval {
		c.stepTimer = 0
		if next := Step(s.Weather, s.TargetWeather); next != s.Weather {
			from := s.Weather
			s.Weather = next
			slog.Info("weather changed", "from", from, "to", next, "target", s.TargetWeather)
			if c.OnWeatherChange != nil {
				c.OnWeatherChange(from, next)
			}
		}
	}

	s = c.updateHazard(s, dt)

	c.tempTimer += dt
	if c.tempTimer >= TemperatureInterval {
		c.tempTimer = 0
		s.Temperature = Temperature(s.Time, s.Weather, s.Season, s.Hazard, s.Clock)
	}

	c.regenTimer += dt
	if c.regenTimer >= RegenInterval {
		elapsed := c.regenTimer
		c.regenTimer = 0
		blocked := false
		if h, ok := s.ActiveHazard(); ok && h.Effects.ResourceSpawnBlock {
			blocked = true
		}
		if !blocked && c.OnRegen != nil {
			c.OnRegen(elapsed)
		}
	}

	c.broadcastTimer += dt
	if c.broadcastTimer >= BroadcastInterval {
		c.broadcastTimer = 0
		if c.OnBroadcast != nil {
			c.OnBroadcast(s)
		}
	}
	return s
}

func (c *Cycle) updateHazard(s State, dt float64) State {
	if s.Hazard != nil {
		h := *s.Hazard
		if !h.Started && h.Active(s.Clock) {
			h.Started = true
			slog.Info("hazard started", "type", h.Type, "duration", h.Duration)
			if c.OnHazardStart != nil {
				c.OnHazardStart(h)
			}
		}
		if h.Expired(s.Clock) {
			slog.Info("hazard resolved", "type", h.Type)
			s.Hazard = nil
			c.hazardTimer = 0
			if c.OnHazardResolved != nil {
				c.OnHazardResolved(h)
			}
			return s
		}
		s.Hazard = &h
		return s
	}

	c.hazardTimer += dt
	if c.hazardTimer < HazardCheckInterval {
		return s
	}
	c.hazardTimer = 0
	if h, ok := RollHazard(s, c.src); ok {
		return c.Schedule(s, h)
	}
	return s
}

// Schedule installs h as the pending hazard and fires the warning. Any
// existing hazard is replaced only if it has not started yet.
func (c *Cycle) Schedule(s State, h Event) State {
	if s.Hazard != nil && s.Hazard.Started {
		return s
	}
	s.Hazard = &h
	slog.Info("hazard warning", "type", h.Type, "starts_in", h.StartTime-s.Clock, "message", h.Warning.Message)
	if c.OnHazardWarning != nil {
		c.OnHazardWarning(h)
	}
	return s
}
