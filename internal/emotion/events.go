package emotion

// Event names a discrete emotional stimulus.
type Event string

const (
	WeatherSunny         Event = "weather_sunny"
	WeatherCloudy        Event = "weather_cloudy"
	WeatherRain          Event = "weather_rain"
	WeatherSnow          Event = "weather_snow"
	WeatherStorm         Event = "weather_storm"
	WeatherEventResolved Event = "weather_event_resolved"
	NightFall            Event = "night_fall"
	DayBreak             Event = "day_break"
	FriendlyChat         Event = "friendly_chat"
	Quarrel              Event = "quarrel"
	NewBirth             Event = "new_birth"
	DeathNearby          Event = "death_nearby"
	FoundFood            Event = "found_food"
	Hungry               Event = "hungry"
	HazardDamage         Event = "hazard_damage"
	MetStranger          Event = "met_stranger"
	Alone                Event = "alone"
	PredatorNearby       Event = "predator_nearby"
	DeepThought          Event = "deep_thought"
)

// eventTable holds signed deltas applied before intensity scaling.
var eventTable = map[Event]map[Affect]float64{
	WeatherSunny:         {Joy: 0.3, Sadness: -0.2},
	WeatherCloudy:        {Joy: -0.05, Curiosity: 0.05},
	WeatherRain:          {Sadness: 0.2, Joy: -0.1, Curiosity: -0.1},
	WeatherSnow:          {Curiosity: 0.3, Fear: 0.1},
	WeatherStorm:         {Fear: 0.6, Joy: -0.3},
	WeatherEventResolved: {Fear: -0.4, Joy: 0.2},
	NightFall:            {Fear: 0.2, Curiosity: -0.2},
	DayBreak:             {Joy: 0.2, Fear: -0.2},
	FriendlyChat:         {Joy: 0.4, Loneliness: -0.5, Anger: -0.1},
	Quarrel:              {Anger: 0.6, Joy: -0.3, Sadness: 0.2},
	NewBirth:             {Joy: 0.8, Curiosity: 0.3},
	DeathNearby:          {Sadness: 0.9, Fear: 0.4},
	FoundFood:            {Joy: 0.3},
	Hungry:               {Anger: 0.2, Joy: -0.2},
	HazardDamage:         {Fear: 0.7},
	MetStranger:          {Curiosity: 0.5, Fear: 0.1},
	Alone:                {Loneliness: 0.3},
	PredatorNearby:       {Fear: 0.9},
	DeepThought:          {Curiosity: 0.2, Sadness: -0.05},
}

// Known reports whether the event has an entry in the delta table.
func Known(e Event) bool {
	_, ok := eventTable[e]
	return ok
}
