package dialogue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/critterlife/internal/entropy"
	"github.com/talgya/critterlife/internal/llm"
	"github.com/talgya/critterlife/internal/memory"
	"github.com/talgya/critterlife/internal/relationship"
	"github.com/talgya/critterlife/internal/spatial"
	"github.com/talgya/critterlife/internal/world"
)

// fakeGen replies with scripted lines and tracks concurrency.
type fakeGen struct {
	mu       sync.Mutex
	replies  []string
	err      error
	block    chan struct{}
	calls    int
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	contexts []llm.DialogueContext
}

func (g *fakeGen) Reply(ctx context.Context, dc llm.DialogueContext, _ []llm.Message) (string, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		m := g.maxSeen.Load()
		if n <= m || g.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.contexts = append(g.contexts, dc)
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	if len(g.replies) == 0 {
		return "Hello there!", nil
	}
	r := g.replies[0]
	if len(g.replies) > 1 {
		g.replies = g.replies[1:]
	}
	return r, nil
}

type recordingSpeaker struct {
	mu    sync.Mutex
	lines []string
}

func (s *recordingSpeaker) Speak(text string, _ bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, text)
	return true
}

var always = &entropy.Script{Values: []float64{0}}

// setup builds a world with the robot and two critters standing together,
// past their spawn grace.
func setup(t *testing.T, gen Generator) (*world.Store, *Orchestrator, []string) {
	t.Helper()
	w := world.New(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))
	sp := world.NewSpawner(entropy.NewSeeded(3))
	require.NoError(t, w.AddRobot(sp.Robot(0), spatial.Vec3{X: 50}))
	var ids []string
	for i := 0; i < 2; i++ {
		rec, lc := sp.Founder(w, 0)
		require.NoError(t, w.SpawnCritter(rec, lc, spatial.Vec3{X: float64(i * 2)}))
		ids = append(ids, rec.ID)
	}
	w.Environment.Clock = 100
	store := world.NewStore(w)
	o := New(context.Background(), store, gen, DefaultConfig(), always)
	return store, o, ids
}

// settle waits for in-flight calls and applies their patches.
func settle(store *world.Store, o *Orchestrator) {
	o.Wait()
	store.Update(func(w *world.World) { store.Drain(w) })
}

func TestInitiateExchange(t *testing.T) {
	gen := &fakeGen{replies: []string{"Lovely berries today!"}}
	store, o, ids := setup(t, gen)
	spk := &recordingSpeaker{}
	o.SetSpeaker(spk)

	store.Update(func(w *world.World) { o.Step(w, ids[0], 0.1) })
	store.View(func(w *world.World) {
		assert.True(t, w.Runtime.Busy.Held)
		assert.Contains(t, w.Runtime.InDialogue, ids[0])
		assert.Contains(t, w.Runtime.InDialogue, ids[1])
		assert.Greater(t, w.Runtime.PairCooldowns[world.PairKey(ids[0], ids[1])], 200.0)
	})
	settle(store, o)

	store.View(func(w *world.World) {
		assert.Equal(t, "Lovely berries today!", w.Runtime.Bubbles[ids[0]].Text)
		assert.Equal(t, 1, w.Scores.Conversations)
		assert.InDelta(t, relationship.FriendlyDelta, relationship.GetAffinity(w.Relationships, ids[0], ids[1]), 1e-9)
		require.Len(t, w.Memories[ids[0]], 1)
		assert.Equal(t, memory.Dialogue, w.Memories[ids[0]][0].Type)
		require.Len(t, w.Memories[ids[1]], 1)
		assert.Len(t, w.Runtime.Inbox[ids[1]], 1, "listener owes a reply")
		assert.False(t, w.Runtime.Busy.Free(w.Clock()), "gate cools down before release")
		assert.Equal(t, world.LogDialogue, w.Log[len(w.Log)-1].Kind)
	})
	assert.Equal(t, []string{"Lovely berries today!"}, spk.lines)
}

func TestSingleFlightAcrossPairs(t *testing.T) {
	gen := &fakeGen{block: make(chan struct{})}
	store, o, ids := setup(t, gen)
	store.Update(func(w *world.World) {
		// A second pair far away: the robot and a third critter.
		rec, lc := world.NewSpawner(entropy.NewSeeded(9)).Founder(w, 0)
		require.NoError(t, w.SpawnCritter(rec, lc, spatial.Vec3{X: 51}))
		w.Environment.Clock = 200
		ids = append(ids, rec.ID)
	})

	store.Update(func(w *world.World) {
		o.Step(w, ids[0], 1)
		o.Step(w, world.RobotID, 1)
		o.Step(w, ids[2], 1)
	})
	store.View(func(w *world.World) {
		assert.Len(t, w.Runtime.Conversations, 1)
		assert.NotContains(t, w.Runtime.InDialogue, world.RobotID)
	})
	close(gen.block)
	settle(store, o)
	assert.Equal(t, int32(1), gen.maxSeen.Load())
	assert.Equal(t, 1, gen.calls)
}

func TestRespondPathAndTurnLimit(t *testing.T) {
	gen := &fakeGen{replies: []string{"Hi!"}}
	store, o, ids := setup(t, gen)
	a, b := ids[0], ids[1]

	store.Update(func(w *world.World) { o.Step(w, a, 1) })
	settle(store, o)

	for turn := 2; turn <= DefaultConfig().MaxTurns; turn++ {
		store.Update(func(w *world.World) {
			w.Environment.Clock += 6 // past the release cooldown
			o.Step(w, a, 1)
			o.Step(w, b, 1)
		})
		settle(store, o)
	}
	require.Equal(t, DefaultConfig().MaxTurns, gen.calls)
	assert.True(t, gen.contexts[DefaultConfig().WrapUpTurns].WrapUp)
	assert.False(t, gen.contexts[1].WrapUp)
	assert.Equal(t, "Hi!", gen.contexts[1].Incoming)

	store.View(func(w *world.World) {
		assert.Empty(t, w.Runtime.Conversations, "ended after max turns")
		assert.Empty(t, w.Runtime.InDialogue)
		assert.Empty(t, w.Runtime.Inbox)
		assert.Equal(t, 1, w.Scores.Conversations)
	})
}

func TestQuarrelForceClears(t *testing.T) {
	gen := &fakeGen{replies: []string{"[quarrel] Those are MY berries!"}}
	store, o, ids := setup(t, gen)
	a, b := ids[0], ids[1]

	store.Update(func(w *world.World) { o.Step(w, a, 1) })
	settle(store, o)
	for i := 0; i < 2; i++ {
		store.Update(func(w *world.World) {
			w.Environment.Clock += 6
			o.Step(w, a, 1)
			o.Step(w, b, 1)
		})
		settle(store, o)
	}
	assert.Equal(t, DefaultConfig().MaxQuarrelTurns, gen.calls)
	store.View(func(w *world.World) {
		assert.Empty(t, w.Runtime.Conversations)
		assert.Equal(t, 3, w.Scores.Quarrels)
		assert.InDelta(t, 3*relationship.QuarrelDelta, relationship.GetAffinity(w.Relationships, a, b), 1e-9)
		assert.Equal(t, "Those are MY berries!", w.Runtime.Bubbles[b].Text)
		assert.True(t, w.Runtime.Bubbles[b].Quarrel)
		assert.Equal(t, memory.Quarrel, w.Memories[a][0].Type)
	})
}

func TestAngerMakesQuarrel(t *testing.T) {
	gen := &fakeGen{replies: []string{"Go away."}}
	store, o, ids := setup(t, gen)
	store.Update(func(w *world.World) {
		e := w.Emotions[ids[0]]
		e.Anger = 0.9
		w.SetEmotion(ids[0], e)
		w.AdjustRelationship(ids[0], ids[1], -0.2)
		w.Runtime.Busy = world.Gate{}
		o.start(w, ids[0], ids[1])
	})
	settle(store, o)
	store.View(func(w *world.World) {
		assert.Equal(t, 1, w.Scores.Quarrels)
	})
}

func TestFailureReleasesEverything(t *testing.T) {
	gen := &fakeGen{err: errors.New("upstream 503")}
	store, o, ids := setup(t, gen)
	store.Update(func(w *world.World) { o.Step(w, ids[0], 1) })
	settle(store, o)
	store.View(func(w *world.World) {
		assert.Empty(t, w.Runtime.InDialogue)
		assert.Empty(t, w.Runtime.Conversations)
		assert.Empty(t, w.Memories[ids[0]])
		assert.Zero(t, w.Scores.Conversations)
	})
	store.Update(func(w *world.World) {
		w.Environment.Clock += 6
		assert.True(t, w.Runtime.Busy.Free(w.Clock()))
	})
}

func TestTimeoutIsAbsorbed(t *testing.T) {
	gen := &fakeGen{block: make(chan struct{})}
	store, o, ids := setup(t, gen)
	o.cfg.Timeout = 20 * time.Millisecond
	store.Update(func(w *world.World) { o.Step(w, ids[0], 1) })
	settle(store, o)
	store.View(func(w *world.World) {
		assert.Empty(t, w.Runtime.InDialogue)
		assert.Zero(t, w.Scores.Conversations)
	})
}

func TestSpawnGraceAndCooldown(t *testing.T) {
	gen := &fakeGen{}
	store, o, ids := setup(t, gen)
	store.Update(func(w *world.World) {
		w.Environment.Clock = 5 // inside the grace period
		o.Step(w, ids[0], 1)
		assert.False(t, w.Runtime.Busy.Held)

		w.Environment.Clock = 100
		w.Runtime.PairCooldowns[world.PairKey(ids[0], ids[1])] = 150
		o.Step(w, ids[0], 1)
		assert.False(t, w.Runtime.Busy.Held, "pair is cooling down")

		// The reverse direction is a separate pair.
		o.Step(w, ids[1], 1)
		assert.True(t, w.Runtime.Busy.Held)
	})
	settle(store, o)
}

func TestFailsafeClearsStuckFlag(t *testing.T) {
	store, o, ids := setup(t, &fakeGen{})
	store.Update(func(w *world.World) {
		w.Runtime.InDialogue[ids[0]] = 80
		w.Runtime.Conversations["c1"] = world.Conversation{ID: "c1", A: ids[0], B: ids[1]}
		w.Deliver(world.Message{ConversationID: "c1", From: ids[0], To: ids[1], Text: "psst"})
		o.Failsafe(w)
		assert.NotContains(t, w.Runtime.InDialogue, ids[0])
		assert.Empty(t, w.Runtime.Conversations)
		assert.Empty(t, w.Runtime.Inbox)

		// A gate held past timeout plus the stuck window reopens.
		w.Runtime.Busy = world.Gate{Held: true, Owner: ids[0], Since: 50}
		o.Failsafe(w)
		assert.True(t, w.Runtime.Busy.Free(w.Clock()))
	})
}

func TestTriggerChance(t *testing.T) {
	store, _, ids := setup(t, &fakeGen{})
	cfg := DefaultConfig()
	store.View(func(w *world.World) {
		assert.Zero(t, TriggerChance(w, ids[0], ids[1], 0, cfg))
		toRobot := TriggerChance(w, ids[0], world.RobotID, 1, cfg)
		toCritter := TriggerChance(w, ids[0], ids[1], 1, cfg)
		assert.Greater(t, toRobot, toCritter)
		// Compounding over a second equals one full-second roll.
		p := TriggerChance(w, ids[0], ids[1], 0.5, cfg)
		assert.InDelta(t, toCritter, 1-(1-p)*(1-p), 1e-9)
	})
}

func TestDisabledWithoutGenerator(t *testing.T) {
	store, _, ids := setup(t, nil)
	o := New(context.Background(), store, nil, DefaultConfig(), always)
	store.Update(func(w *world.World) {
		o.Step(w, ids[0], 1)
		assert.False(t, w.Runtime.Busy.Held)
	})
}

// streamGen emits its reply a few characters at a time.
type streamGen struct {
	fakeGen
	partials int
}

func (g *streamGen) ReplyStream(ctx context.Context, dc llm.DialogueContext, h []llm.Message, onChunk func(string)) (string, error) {
	text, err := g.Reply(ctx, dc, h)
	if err != nil {
		return "", err
	}
	for i := 0; i < len(text); i += 4 {
		onChunk(text[i:min(i+4, len(text))])
		g.partials++
	}
	return text, nil
}

func TestStreamedLineFillsBalloon(t *testing.T) {
	line := "The clover by the pond is finally blooming again."
	gen := &streamGen{fakeGen: fakeGen{replies: []string{line}}}
	store, o, ids := setup(t, gen)

	store.Update(func(w *world.World) { o.Step(w, ids[0], 0.1) })
	o.Wait()
	assert.Greater(t, gen.partials, 1)
	// Partial balloons plus the completion.
	assert.Greater(t, store.Pending(), 1)

	store.Update(func(w *world.World) { store.Drain(w) })
	store.View(func(w *world.World) {
		assert.Equal(t, line, w.Runtime.Bubbles[ids[0]].Text, "the completion replaces the partial balloon")
		assert.Equal(t, 1, w.Scores.Conversations)
	})
}
