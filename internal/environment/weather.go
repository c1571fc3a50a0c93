// Package environment runs the world clock: time of day, day and season
// rollover, staged weather, temperature and hazard events.
package environment

import (
	"fmt"

	"github.com/talgya/critterlife/internal/emotion"
	"github.com/talgya/critterlife/internal/entropy"
)

// Weather is the sky condition. Changes are staged: rainy and snowy are
// never adjacent, every route between them passes through cloudy.
type Weather uint8

const (
	Sunny Weather = iota
	Cloudy
	Rainy
	Snowy
)

var weatherNames = [...]string{"sunny", "cloudy", "rainy", "snowy"}

func (w Weather) String() string {
	if int(w) < len(weatherNames) {
		return weatherNames[w]
	}
	return fmt.Sprintf("Weather(%d)", uint8(w))
}

// MarshalText encodes the weather as its name.
func (w Weather) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

// UnmarshalText decodes a weather name.
func (w *Weather) UnmarshalText(b []byte) error {
	v, err := ParseWeather(string(b))
	if err != nil {
		return err
	}
	*w = v
	return nil
}

// ParseWeather decodes a weather name.
func ParseWeather(s string) (Weather, error) {
	for i, n := range weatherNames {
		if n == s {
			return Weather(i), nil
		}
	}
	return Sunny, fmt.Errorf("unknown weather %q", s)
}

// CanTransition reports whether from → to is a single legal step.
func CanTransition(from, to Weather) bool {
	if from == to {
		return true
	}
	switch from {
	case Sunny:
		return to == Cloudy
	case Cloudy:
		return to == Sunny || to == Rainy || to == Snowy
	case Rainy:
		return to == Cloudy
	case Snowy:
		return to == Cloudy
	}
	return false
}

// Step moves current one legal step toward target.
func Step(current, target Weather) Weather {
	if CanTransition(current, target) {
		return target
	}
	return Cloudy
}

// Modifier is the temperature offset the sky contributes.
func (w Weather) Modifier() float64 {
	switch w {
	case Sunny:
		return 3
	case Rainy:
		return -2
	case Snowy:
		return -6
	}
	return 0
}

// EmotionEvent is the emotion stimulus broadcast while this weather holds.
func (w Weather) EmotionEvent() emotion.Event {
	switch w {
	case Sunny:
		return emotion.WeatherSunny
	case Rainy:
		return emotion.WeatherRain
	case Snowy:
		return emotion.WeatherSnow
	}
	return emotion.WeatherCloudy
}

// RollTarget draws a new target weather from the season's table.
func RollTarget(s Season, src entropy.Source) Weather {
	table := s.weatherTable()
	r := entropy.Or(src).Float64()
	acc := 0.0
	for i, p := range table {
		acc += p
		if r < acc {
			return Weather(i)
		}
	}
	return Cloudy
}
