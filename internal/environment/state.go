package environment

import (
	"fmt"
	"math"
)

// Base temperature curve: mean and daily swing in °C, peaking mid-afternoon.
const (
	BaseTemperature  = 14.0
	DailyTemperature = 8.0

	NightStart = 20.0
	NightEnd   = 6.0
	StartHour  = 8.0
)

// State is the persisted environment slice.
type State struct {
	Time          float64 `json:"time"` // hour of day, [0, 24)
	Day           int     `json:"day"`
	Season        Season  `json:"season"`
	Weather       Weather `json:"weather"`
	TargetWeather Weather `json:"targetWeather"`
	Temperature   float64 `json:"temperature"`
	Clock         float64 `json:"clock"` // wall seconds the cycle has run
	Hazard        *Event  `json:"hazard,omitempty"`
}

// NewState returns the starting environment: day 1, 08:00, sunny spring.
func NewState() State {
	s := State{Time: StartHour, Day: 1, Season: Spring, Weather: Sunny, TargetWeather: Sunny}
	s.Temperature = Temperature(s.Time, s.Weather, s.Season, nil, 0)
	return s
}

// IsNight reports whether hour is outside daylight.
func IsNight(hour float64) bool {
	return hour < NightEnd || hour >= NightStart
}

// IsNight reports whether it is currently night.
func (s State) IsNight() bool {
	return IsNight(s.Time)
}

// ActiveHazard returns the hazard in effect right now, if any.
func (s State) ActiveHazard() (Event, bool) {
	if s.Hazard == nil || !s.Hazard.Active(s.Clock) {
		return Event{}, false
	}
	return *s.Hazard, true
}

// Temperature computes the air temperature, rounded to one decimal.
// An active hazard adds its temperature change.
func Temperature(hour float64, w Weather, s Season, hazard *Event, now float64) float64 {
	t := BaseTemperature + DailyTemperature*math.Sin(((hour-8)/24)*2*math.Pi) + w.Modifier() + s.Modifier()
	if hazard != nil && hazard.Active(now) {
		t += hazard.Effects.TemperatureChange
	}
	return math.Round(t*10) / 10
}

// Clock renders the hour as HH:MM.
func Clock(hour float64) string {
	h := int(hour)
	m := int((hour - float64(h)) * 60)
	return fmt.Sprintf("%02d:%02d", h, m)
}

// Describe renders the environment for prompt context.
func Describe(s State) string {
	part := "daytime"
	if s.IsNight() {
		part = "night"
	}
	out := fmt.Sprintf("Day %d, %s (%s), %s, %s, %.1f°C", s.Day, Clock(s.Time), part, s.Season, s.Weather, s.Temperature)
	if h, ok := s.ActiveHazard(); ok {
		out += fmt.Sprintf(", %s in progress", h.Type)
	}
	return out
}
