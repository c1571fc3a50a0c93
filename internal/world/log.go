package world

import (
	"time"

	"github.com/google/uuid"
)

// LogCapacity bounds the activity log ring.
const LogCapacity = 200

// Log entry kinds.
const (
	LogDialogue    = "dialogue"
	LogQuarrel     = "quarrel"
	LogThought     = "thought"
	LogBirth       = "birth"
	LogDeath       = "death"
	LogWeather     = "weather"
	LogHazard      = "hazard"
	LogGather      = "gather"
	LogAchievement = "achievement"
	LogSystem      = "system"
)

// LogEntry is one line of the user-facing activity history.
type LogEntry struct {
	Seq      int64     `json:"seq"`
	ID       string    `json:"id"`
	At       time.Time `json:"at"`
	Day      int       `json:"day"`
	Time     float64   `json:"time"` // hour of day
	EntityID string    `json:"entityId,omitempty"`
	Kind     string    `json:"kind"`
	Text     string    `json:"text"`
}

// AddLog appends an entry, dropping the oldest beyond LogCapacity.
func (w *World) AddLog(entityID, kind, text string) LogEntry {
	w.LogSeq++
	e := LogEntry{
		Seq:      w.LogSeq,
		ID:       uuid.NewString(),
		At:       w.Now(),
		Day:      w.Environment.Day,
		Time:     w.Environment.Time,
		EntityID: entityID,
		Kind:     kind,
		Text:     text,
	}
	w.Log = append(w.Log, e)
	if over := len(w.Log) - LogCapacity; over > 0 {
		w.Log = append([]LogEntry(nil), w.Log[over:]...)
	}
	return e
}

// LogSince returns entries with Seq greater than seq, oldest first.
func (w *World) LogSince(seq int64) []LogEntry {
	for i, e := range w.Log {
		if e.Seq > seq {
			return append([]LogEntry(nil), w.Log[i:]...)
		}
	}
	return nil
}

// RecentLog returns up to n of the newest entries, oldest first.
func (w *World) RecentLog(n int) []LogEntry {
	if n <= 0 || n > len(w.Log) {
		n = len(w.Log)
	}
	return append([]LogEntry(nil), w.Log[len(w.Log)-n:]...)
}

// Scores are cumulative world counters.
type Scores struct {
	Conversations     int `json:"conversations"`
	Quarrels          int `json:"quarrels"`
	Births            int `json:"births"`
	Deaths            int `json:"deaths"`
	HazardsSurvived   int `json:"hazardsSurvived"`
	ResourcesGathered int `json:"resourcesGathered"`
	Thoughts          int `json:"thoughts"`
}

// Achievement ids.
const (
	AchFirstWords      = "first_words"
	AchNewGeneration   = "new_generation"
	AchThirdGeneration = "third_generation"
	AchStormSurvivor   = "storm_survivor"
	AchFullHouse       = "full_house"
	AchLoneSurvivor    = "lone_survivor"
)

var achievementTitles = map[string]string{
	AchFirstWords:      "First Words",
	AchNewGeneration:   "A New Generation",
	AchThirdGeneration: "Grandcritters",
	AchStormSurvivor:   "Storm Survivor",
	AchFullHouse:       "Full House",
	AchLoneSurvivor:    "Last One Standing",
}

// Achievement is a one-shot milestone.
type Achievement struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	UnlockedAt time.Time `json:"unlockedAt"`
	Day        int       `json:"day"`
}

// Unlock records an achievement once. Reports whether it was new.
func (w *World) Unlock(id string) bool {
	if _, done := w.Achievements[id]; done {
		return false
	}
	title, ok := achievementTitles[id]
	if !ok {
		return false
	}
	w.Achievements[id] = Achievement{ID: id, Title: title, UnlockedAt: w.Now(), Day: w.Environment.Day}
	w.AddLog("", LogAchievement, "Achievement unlocked: "+title)
	return true
}

// EvaluateAchievements unlocks every milestone the current state satisfies
// and returns the newly unlocked ids. Storm survival is event-driven and
// unlocked by the caller.
func (w *World) EvaluateAchievements() []string {
	var out []string
	try := func(id string, cond bool) {
		if cond && w.Unlock(id) {
			out = append(out, id)
		}
	}
	maxGen := 0
	for id, lc := range w.Lifecycle {
		if KindOf(id) == KindCritter && lc.Generation > maxGen {
			maxGen = lc.Generation
		}
	}
	alive := w.AliveCritters()
	try(AchFirstWords, w.Scores.Conversations > 0)
	try(AchNewGeneration, maxGen >= 2)
	try(AchThirdGeneration, maxGen >= 3)
	try(AchFullHouse, alive >= w.Limits.Critters)
	try(AchLoneSurvivor, alive == 1 && w.Scores.Deaths > 0)
	return out
}
