package environment

import "fmt"

// Season is derived from the day number; a year is 20 days.
type Season uint8

const (
	Spring Season = iota
	Summer
	Autumn
	Winter
)

// DaysPerSeason and DaysPerYear define the calendar.
const (
	DaysPerSeason = 5
	DaysPerYear   = DaysPerSeason * 4
)

var seasonNames = [...]string{"spring", "summer", "autumn", "winter"}

func (s Season) String() string {
	if int(s) < len(seasonNames) {
		return seasonNames[s]
	}
	return fmt.Sprintf("Season(%d)", uint8(s))
}

// MarshalText encodes the season as its name.
func (s Season) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a season name.
func (s *Season) UnmarshalText(b []byte) error {
	for i, n := range seasonNames {
		if n == string(b) {
			*s = Season(i)
			return nil
		}
	}
	return fmt.Errorf("unknown season %q", string(b))
}

// SeasonFromDay maps a 1-based day to its season.
func SeasonFromDay(day int) Season {
	if day < 1 {
		day = 1
	}
	return Season(((day - 1) % DaysPerYear) / DaysPerSeason)
}

// Modifier is the temperature offset the season contributes.
func (s Season) Modifier() float64 {
	switch s {
	case Summer:
		return 5
	case Autumn:
		return -2
	case Winter:
		return -8
	}
	return 0
}

// weatherTable is P(sunny, cloudy, rainy, snowy) for the season.
func (s Season) weatherTable() [4]float64 {
	switch s {
	case Summer:
		return [4]float64{0.60, 0.25, 0.15, 0}
	case Autumn:
		return [4]float64{0.30, 0.35, 0.30, 0.05}
	case Winter:
		return [4]float64{0.20, 0.30, 0.10, 0.40}
	}
	return [4]float64{0.40, 0.30, 0.30, 0}
}
