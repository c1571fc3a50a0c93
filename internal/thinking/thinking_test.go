package thinking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/critterlife/internal/emotion"
	"github.com/talgya/critterlife/internal/entropy"
	"github.com/talgya/critterlife/internal/llm"
	"github.com/talgya/critterlife/internal/memory"
	"github.com/talgya/critterlife/internal/spatial"
	"github.com/talgya/critterlife/internal/world"
)

type fakeThinker struct {
	mu       sync.Mutex
	thought  llm.Thought
	err      error
	block    bool
	contexts []llm.ThoughtContext
}

func (f *fakeThinker) Think(ctx context.Context, tc llm.ThoughtContext) (llm.Thought, error) {
	f.mu.Lock()
	f.contexts = append(f.contexts, tc)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return llm.Thought{}, ctx.Err()
	}
	return f.thought, f.err
}

func setup(t *testing.T, th Thinker) (*world.Store, *Loop, string) {
	t.Helper()
	w := world.New(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))
	sp := world.NewSpawner(entropy.NewSeeded(5))
	require.NoError(t, w.AddRobot(sp.Robot(0), spatial.Vec3{X: 3}))
	rec, lc := sp.Founder(w, 0)
	require.NoError(t, w.SpawnCritter(rec, lc, spatial.Vec3{}))
	for i := 0; i < 5; i++ {
		r, l := sp.Founder(w, 0)
		require.NoError(t, w.SpawnCritter(r, l, spatial.Vec3{Z: float64(i + 1)}))
	}
	store := world.NewStore(w)
	return store, New(context.Background(), store, th, DefaultConfig()), rec.ID
}

func settle(store *world.Store, l *Loop) {
	l.Wait()
	store.Update(func(w *world.World) { store.Drain(w) })
}

func TestIntervalIsStaggeredAndStable(t *testing.T) {
	cfg := DefaultConfig()
	seen := map[float64]bool{}
	for _, name := range []string{"Pip", "Mo", "Bramble", "Tuft", "Wren", "Nib"} {
		iv := Interval(name, cfg)
		assert.GreaterOrEqual(t, iv, 30.0)
		assert.LessOrEqual(t, iv, 45.0)
		assert.Equal(t, iv, Interval(name, cfg))
		seen[iv] = true
	}
	assert.Greater(t, len(seen), 1, "names spread across the window")
}

func TestThoughtDueAfterSpawnOffset(t *testing.T) {
	th := &fakeThinker{thought: llm.Thought{Thought: "The berries smell ripe.", Action: "forage"}}
	store, l, id := setup(t, th)

	var interval float64
	store.Update(func(w *world.World) {
		interval = l.Interval(w.DisplayName(id))
		w.Environment.Clock = interval - 1
		l.Step(w, id)
		assert.NotContains(t, w.Runtime.Thinking, id, "not due yet")
		w.Environment.Clock = interval
		l.Step(w, id)
		assert.Contains(t, w.Runtime.Thinking, id)
		l.Step(w, id)
	})
	settle(store, l)
	require.Len(t, th.contexts, 1, "no second call while thinking")

	tc := th.contexts[0]
	assert.LessOrEqual(t, len(tc.Nearby), DefaultConfig().NearbyCap)
	assert.Contains(t, tc.Actions, "forage")

	store.View(func(w *world.World) {
		assert.NotContains(t, w.Runtime.Thinking, id)
		assert.Equal(t, "forage", w.Runtime.Intents[id])
		assert.Equal(t, "The berries smell ripe.", w.Runtime.Thoughts[id].Text)
		assert.InDelta(t, interval+5, w.Runtime.Thoughts[id].Expires, 1e-9)
		require.Len(t, w.Memories[id], 1)
		assert.Equal(t, memory.Observation, w.Memories[id][0].Type)
		assert.InDelta(t, 0.3, w.Memories[id][0].Importance, 1e-9)
		assert.Equal(t, 1, w.Scores.Thoughts)
		assert.Greater(t, w.Emotions[id].Curiosity, emotion.Baseline().Curiosity)
		assert.Equal(t, world.LogThought, w.Log[len(w.Log)-1].Kind)
		assert.InDelta(t, 2*interval, w.Runtime.NextThinkAt[id], 1e-9)
	})
}

func TestThoughtWithoutActionLeavesSelectorAlone(t *testing.T) {
	th := &fakeThinker{thought: llm.FallbackThought()}
	store, l, id := setup(t, th)
	store.Update(func(w *world.World) {
		w.Environment.Clock = 100
		l.Step(w, id)
	})
	settle(store, l)
	store.View(func(w *world.World) {
		assert.NotContains(t, w.Runtime.Intents, id)
		assert.NotEmpty(t, w.Runtime.Thoughts[id].Text)
	})
}

func TestFailureClearsThinkingFlag(t *testing.T) {
	th := &fakeThinker{err: errors.New("rate limited")}
	store, l, id := setup(t, th)
	store.Update(func(w *world.World) {
		w.Environment.Clock = 100
		l.Step(w, id)
	})
	settle(store, l)
	store.View(func(w *world.World) {
		assert.NotContains(t, w.Runtime.Thinking, id)
		assert.Empty(t, w.Memories[id])
		assert.Zero(t, w.Scores.Thoughts)
	})
}

func TestTimeoutClearsThinkingFlag(t *testing.T) {
	th := &fakeThinker{block: true}
	store, l, id := setup(t, th)
	l.cfg.Timeout = 20 * time.Millisecond
	store.Update(func(w *world.World) {
		w.Environment.Clock = 100
		l.Step(w, id)
	})
	settle(store, l)
	store.View(func(w *world.World) {
		assert.NotContains(t, w.Runtime.Thinking, id)
	})
}

func TestFailsafeClearsStaleThinkingFlag(t *testing.T) {
	store, l, id := setup(t, &fakeThinker{})
	store.Update(func(w *world.World) {
		w.Environment.Clock = 100
		w.Runtime.Thinking[id] = 100
		w.Runtime.Thinking[world.RobotID] = 100 - l.cfg.Timeout.Seconds() - stuckSlack - 1

		l.Failsafe(w)
		assert.Contains(t, w.Runtime.Thinking, id, "a call still inside its timeout is kept")
		assert.NotContains(t, w.Runtime.Thinking, world.RobotID)
	})
}

func TestSkipsWhileTalkingAndAnimals(t *testing.T) {
	th := &fakeThinker{thought: llm.Thought{Thought: "hm"}}
	store, l, id := setup(t, th)
	store.Update(func(w *world.World) {
		w.Environment.Clock = 100
		w.Runtime.InDialogue[id] = 99
		l.Step(w, id)
		l.Step(w, "deer-1")
		assert.Empty(t, w.Runtime.Thinking)
	})
	l.Wait()
	assert.Empty(t, th.contexts)
}

func TestDeadThinkerResultIsDropped(t *testing.T) {
	th := &fakeThinker{thought: llm.Thought{Thought: "hm", Action: "rest"}}
	store, l, id := setup(t, th)
	store.Update(func(w *world.World) {
		w.Environment.Clock = 100
		l.Step(w, id)
		w.MarkDead(id, "old age")
	})
	settle(store, l)
	store.View(func(w *world.World) {
		assert.Empty(t, w.Runtime.Intents)
		assert.Zero(t, w.Scores.Thoughts)
	})
}
