// Package thinking gives the robot and critters a private inner voice.
// Each entity thinks on its own staggered timer; a thought may carry an
// action that overrides the next activity selection.
package thinking

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/talgya/critterlife/internal/activity"
	"github.com/talgya/critterlife/internal/emotion"
	"github.com/talgya/critterlife/internal/llm"
	"github.com/talgya/critterlife/internal/memory"
	"github.com/talgya/critterlife/internal/world"
)

// Config holds thinking cadence and prompt sizing.
type Config struct {
	BaseInterval   float64 // seconds
	IntervalSpread int     // offset is hash(name) mod spread
	Timeout        time.Duration
	NearbyRadius   float64
	NearbyCap      int
	MemoryCount    int
	ShowSeconds    float64
	Importance     float64
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		BaseInterval:   30,
		IntervalSpread: 16,
		Timeout:        12 * time.Second,
		NearbyRadius:   25,
		NearbyCap:      4,
		MemoryCount:    3,
		ShowSeconds:    5,
		Importance:     0.3,
	}
}

// Thinker produces one structured thought.
type Thinker interface {
	Think(ctx context.Context, tc llm.ThoughtContext) (llm.Thought, error)
}

// ClientThinker adapts an llm.Client.
type ClientThinker struct {
	Client *llm.Client
}

// Think calls the model and validates its answer.
func (t ClientThinker) Think(ctx context.Context, tc llm.ThoughtContext) (llm.Thought, error) {
	return llm.GenerateThought(ctx, t.Client, tc)
}

// Loop schedules and applies thoughts.
type Loop struct {
	cfg     Config
	thinker Thinker
	store   *world.Store
	ctx     context.Context

	wg sync.WaitGroup
}

// New creates a loop. A nil thinker disables thinking.
func New(ctx context.Context, store *world.Store, th Thinker, cfg Config) *Loop {
	return &Loop{cfg: cfg, thinker: th, store: store, ctx: ctx}
}

// Enabled reports whether a thinker is configured.
func (l *Loop) Enabled() bool {
	return l != nil && l.thinker != nil
}

// Wait blocks until every in-flight thought has posted its result.
func (l *Loop) Wait() {
	l.wg.Wait()
}

// Interval is the thinking period for name: the base plus a stable
// per-name offset so the population does not think in lockstep.
func (l *Loop) Interval(name string) float64 {
	return Interval(name, l.cfg)
}

// Interval is the package-level form of Loop.Interval.
func Interval(name string, cfg Config) float64 {
	if cfg.IntervalSpread <= 0 {
		return cfg.BaseInterval
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return cfg.BaseInterval + float64(h.Sum32()%uint32(cfg.IntervalSpread))
}

// Step launches a thought for id when one is due. It is called from the
// tick with the world write-locked.
func (l *Loop) Step(w *world.World, id string) {
	if !l.Enabled() {
		return
	}
	kind := world.KindOf(id)
	if kind != world.KindRobot && kind != world.KindCritter {
		return
	}
	if _, ok := w.Runtime.Thinking[id]; ok {
		return
	}
	if _, ok := w.Runtime.InDialogue[id]; ok {
		return
	}
	now := w.Clock()
	interval := l.Interval(w.DisplayName(id))
	due, ok := w.Runtime.NextThinkAt[id]
	if !ok {
		due = w.Registry[id].BornAt + interval
		w.Runtime.NextThinkAt[id] = due
	}
	if now < due {
		return
	}
	w.Runtime.Thinking[id] = now
	w.Runtime.NextThinkAt[id] = now + interval

	tc := l.context(w, id)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ctx, cancel := context.WithTimeout(l.ctx, l.cfg.Timeout)
		defer cancel()
		th, err := l.thinker.Think(ctx, tc)
		l.store.Post(func(w *world.World) { l.complete(w, id, th, err) })
	}()
}

func (l *Loop) context(w *world.World, id string) llm.ThoughtContext {
	p := w.Persona(id)
	var nearby, ids []string
	for _, n := range w.Nearby(id, l.cfg.NearbyRadius) {
		if len(nearby) == l.cfg.NearbyCap {
			break
		}
		nearby = append(nearby, describeNeighbor(w, n))
		ids = append(ids, n.ID)
	}
	return llm.ThoughtContext{
		Name:        p.Name,
		Personality: p.Personality,
		Position:    p.Position,
		Environment: p.Environment,
		Emotion:     p.Emotion,
		Needs:       p.Needs,
		Lifecycle:   p.Lifecycle,
		Nearby:      nearby,
		Memories:    w.RelevantMemories(id, ids, l.cfg.MemoryCount),
		Actions:     activity.Names(),
	}
}

func describeNeighbor(w *world.World, n world.Neighbor) string {
	what := n.Kind.String()
	if n.Kind == world.KindAnimal {
		what = string(w.Registry[n.ID].Species)
	}
	return fmt.Sprintf("%s (%s, %.0fm away)", w.DisplayName(n.ID), what, n.Distance)
}

// stuckSlack is how long past the call timeout a thinking flag may linger
// before Failsafe drops it.
const stuckSlack = 5.0

// Failsafe clears thinking flags whose call can no longer be in flight, so
// an entity whose result was lost thinks again on its next due time.
func (l *Loop) Failsafe(w *world.World) {
	now := w.Clock()
	limit := l.cfg.Timeout.Seconds() + stuckSlack
	for id, since := range w.Runtime.Thinking {
		if now-since <= limit {
			continue
		}
		slog.Warn("thinking flag stuck, clearing", "entity", id, "held", now-since)
		delete(w.Runtime.Thinking, id)
	}
}

// complete applies a finished thought.
func (l *Loop) complete(w *world.World, id string, th llm.Thought, err error) {
	delete(w.Runtime.Thinking, id)
	if err != nil {
		slog.Warn("thought failed", "entity", id, "error", err)
		return
	}
	if !w.IsAlive(id) || th.Thought == "" {
		return
	}
	w.SetIntent(id, th.Action)
	w.SetThought(id, th.Thought, l.cfg.ShowSeconds)
	w.AddMemory(id, memory.New("I thought: "+th.Thought, memory.Observation, l.cfg.Importance, w.Now()))
	w.ApplyEmotion(id, emotion.DeepThought, 1)
	w.Scores.Thoughts++

	text := fmt.Sprintf("%s thinks: %s", w.DisplayName(id), th.Thought)
	if th.Action != "" {
		text += fmt.Sprintf(" (%s)", th.Action)
	}
	w.AddLog(id, world.LogThought, text)
	slog.Debug("thought", "entity", id, "action", th.Action)
}
