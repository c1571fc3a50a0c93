package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/talgya/critterlife/internal/llm"
	"github.com/talgya/critterlife/internal/memory"
	"github.com/talgya/critterlife/internal/relationship"
	"github.com/talgya/critterlife/internal/world"
)

const (
	storyMemories      = 5
	storyRelationships = 5
	storyEvents        = 20
)

// storyCache holds generated texts keyed by entity and the log sequence
// they were written at, so a story is only regenerated after new events.
type storyCache struct {
	mu      sync.Mutex
	stories map[string]cachedStory
	daily   map[int]llm.Chronicle
}

type cachedStory struct {
	seq  int64
	text string
}

func (c *storyCache) story(id string, seq int64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.stories[id]
	if !ok || s.seq != seq {
		return "", false
	}
	return s.text, true
}

func (c *storyCache) putStory(id string, seq int64, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stories == nil {
		c.stories = make(map[string]cachedStory)
	}
	c.stories[id] = cachedStory{seq: seq, text: text}
}

func (c *storyCache) chronicle(day int) (llm.Chronicle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.daily[day]
	return ch, ok
}

func (c *storyCache) putChronicle(ch llm.Chronicle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.daily == nil {
		c.daily = make(map[int]llm.Chronicle)
	}
	c.daily[ch.Day] = ch
}

// handleStory returns a generated biography of one entity.
func (s *Server) handleStory(w http.ResponseWriter, r *http.Request) {
	if !s.LLM.Enabled() {
		http.Error(w, "story generation not configured", http.StatusServiceUnavailable)
		return
	}
	id := r.PathValue("id")

	var (
		bc  llm.BiographyContext
		seq int64
		ok  bool
	)
	s.Store.View(func(wd *world.World) {
		bc, ok = biographyContext(wd, id)
		seq = wd.LogSeq
	})
	if !ok {
		http.Error(w, "entity not found", http.StatusNotFound)
		return
	}
	if text, hit := s.stories.story(id, seq); hit {
		writeJSON(w, map[string]any{"id": id, "name": bc.Name, "story": text, "cached": true})
		return
	}

	if s.DB != nil {
		events, err := s.DB.EntityEvents(s.Slot, id)
		if err != nil {
			slog.Warn("story: history unavailable", "id", id, "error", err)
		}
		if len(events) > storyEvents {
			events = events[len(events)-storyEvents:]
		}
		for _, e := range events {
			bc.Events = append(bc.Events, fmt.Sprintf("day %d: %s", e.Day, e.Text))
		}
	}

	text, err := llm.GenerateBiography(r.Context(), s.LLM, bc)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			http.Error(w, "story generation not configured", http.StatusServiceUnavailable)
			return
		}
		slog.Error("story generation failed", "id", id, "error", err)
		http.Error(w, "story generation failed", http.StatusBadGateway)
		return
	}
	s.stories.putStory(id, seq, text)
	writeJSON(w, map[string]any{"id": id, "name": bc.Name, "story": text, "cached": false})
}

// biographyContext gathers what the world knows about id.
func biographyContext(wd *world.World, id string) (llm.BiographyContext, bool) {
	rec, ok := wd.Registry[id]
	if !ok {
		return llm.BiographyContext{}, false
	}
	p := wd.Persona(id)
	bc := llm.BiographyContext{
		Name:        p.Name,
		Kind:        rec.Kind.String(),
		Species:     string(rec.Species),
		Generation:  rec.Generation,
		Alive:       rec.IsAlive,
		Personality: p.Personality,
		Mood:        p.Emotion,
	}
	if lc, ok := wd.Lifecycle[id]; ok {
		bc.Age = lc.Age
	}
	if !rec.IsAlive && rec.DeathCause != "" {
		bc.Events = append(bc.Events, "died of "+rec.DeathCause)
	}

	rels := relationship.Of(wd.Relationships, id)
	if len(rels) > storyRelationships {
		rels = rels[:storyRelationships]
	}
	for _, e := range rels {
		bc.Relationships = append(bc.Relationships, fmt.Sprintf("%s toward %s", affinityWord(e.Affinity), wd.DisplayName(e.B)))
	}

	for _, m := range memory.Relevant(wd.Memories[id], wd.Now(), nil, storyMemories) {
		bc.Memories = append(bc.Memories, m.Content)
	}
	return bc, true
}

func affinityWord(a float64) string {
	switch {
	case a >= 0.6:
		return "devoted"
	case a >= 0.2:
		return "friendly"
	case a > -0.2:
		return "neutral"
	case a > -0.6:
		return "wary"
	default:
		return "hostile"
	}
}

// handleChronicle returns the digest of one day. Past days are cached;
// the current day is regenerated on each call.
func (s *Server) handleChronicle(w http.ResponseWriter, r *http.Request) {
	var (
		data    llm.ChronicleData
		today   int
		entries []world.LogEntry
	)
	s.Store.View(func(wd *world.World) {
		env := wd.Environment
		today = env.Day
		data = llm.ChronicleData{
			Day:      queryInt(r, "day", env.Day),
			Season:   env.Season.String(),
			Weather:  env.Weather.String(),
			Critters: wd.AliveCritters(),
			Animals:  len(wd.LivingOf(world.KindAnimal)),
		}
		for _, e := range wd.RecentLog(world.LogCapacity) {
			if e.Day == data.Day {
				entries = append(entries, e)
			}
		}
	})
	if data.Day > today {
		http.Error(w, "that day has not happened yet", http.StatusBadRequest)
		return
	}
	if data.Day < today {
		if ch, ok := s.stories.chronicle(data.Day); ok {
			writeJSON(w, ch)
			return
		}
	}

	if s.DB != nil {
		stored, err := s.DB.DayEvents(s.Slot, data.Day)
		if err != nil {
			slog.Warn("chronicle: history unavailable", "day", data.Day, "error", err)
		}
		entries = mergeBySeq(stored, entries)
	}
	for _, e := range entries {
		switch e.Kind {
		case world.LogBirth:
			data.Births = append(data.Births, e.Text)
		case world.LogDeath:
			data.Deaths = append(data.Deaths, e.Text)
		case world.LogDialogue:
			data.Dialogue = append(data.Dialogue, e.Text)
		case world.LogHazard:
			data.Hazards = append(data.Hazards, e.Text)
		case world.LogAchievement:
			data.Achievement = append(data.Achievement, e.Text)
		}
	}

	ch := llm.GenerateChronicle(r.Context(), s.LLM, data)
	if data.Day < today {
		s.stories.putChronicle(ch)
	}
	writeJSON(w, ch)
}

// mergeBySeq appends the entries of b not already present in a. Both are
// ordered by Seq.
func mergeBySeq(a, b []world.LogEntry) []world.LogEntry {
	var last int64 = -1
	if n := len(a); n > 0 {
		last = a[n-1].Seq
	}
	for _, e := range b {
		if e.Seq > last {
			a = append(a, e)
		}
	}
	return a
}
