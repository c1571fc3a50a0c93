package world

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/critterlife/internal/emotion"
	"github.com/talgya/critterlife/internal/entropy"
	"github.com/talgya/critterlife/internal/lifecycle"
	"github.com/talgya/critterlife/internal/spatial"
	"github.com/talgya/critterlife/internal/wildlife"
)

var epoch = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

// populated returns a world with the robot and n critters.
func populated(t *testing.T, n int) *World {
	t.Helper()
	w := New(epoch)
	sp := NewSpawner(entropy.NewSeeded(7))
	require.NoError(t, w.AddRobot(sp.Robot(0), spatial.Vec3{}))
	for i := 0; i < n; i++ {
		rec, lc := sp.Founder(w, 0)
		require.NoError(t, w.SpawnCritter(rec, lc, spatial.Vec3{X: float64(i * 3)}))
	}
	return w
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindRobot, KindOf("robot"))
	assert.Equal(t, KindCritter, KindOf("Critter-Pip"))
	assert.Equal(t, KindAnimal, KindOf("wolf-3"))
	assert.Equal(t, KindUnknown, KindOf("Critter-"))
	assert.Equal(t, KindUnknown, KindOf("dragon-1"))
	assert.Equal(t, KindUnknown, KindOf("mystery"))
}

func TestSpawnCapRefuses(t *testing.T) {
	w := populated(t, lifecycle.PopulationCap)
	assert.Equal(t, lifecycle.PopulationCap, w.AliveCritters())

	rec, lc := NewSpawner(entropy.NewSeeded(99)).Founder(w, 0)
	err := w.SpawnCritter(rec, lc, spatial.Vec3{})
	assert.ErrorIs(t, err, ErrPopulationCap)
	assert.NotContains(t, w.Registry, rec.ID)
}

func TestNamesStayUnique(t *testing.T) {
	w := New(epoch)
	w.Limits.Critters = 100
	sp := NewSpawner(&entropy.Script{Values: []float64{0}})
	for i := 0; i < 5; i++ {
		rec, lc := sp.Founder(w, 0)
		require.NoError(t, w.SpawnCritter(rec, lc, spatial.Vec3{}))
	}
	assert.Len(t, w.Registry, 5)
	assert.Contains(t, w.Registry, "Critter-Pip")
	assert.Contains(t, w.Registry, "Critter-Pip2")
}

func TestSpawnAnimal(t *testing.T) {
	w := New(epoch)
	sp := NewSpawner(entropy.NewSeeded(1))
	for i := 0; i < DefaultAnimalCap; i++ {
		rec, lc := sp.Animal(w, wildlife.Wolf, 0)
		require.NoError(t, w.SpawnAnimal(rec, lc, spatial.Vec3{}))
	}
	assert.Contains(t, w.Registry, "wolf-1")
	assert.Contains(t, w.Registry, "wolf-6")
	assert.Equal(t, wildlife.Grazing, w.Runtime.Animals["wolf-1"].Behavior)

	rec, lc := sp.Animal(w, wildlife.Deer, 0)
	assert.ErrorIs(t, w.SpawnAnimal(rec, lc, spatial.Vec3{}), ErrPopulationCap)
}

func TestMarkDeadKeepsRecord(t *testing.T) {
	w := populated(t, 2)
	id := w.LivingOf(KindCritter)[0]
	w.AddMemory(id, newMemory("I saw a rainbow"))
	w.SetIntent(id, "rest")

	require.True(t, w.MarkDead(id, "old age"))
	assert.False(t, w.MarkDead(id, "again"))

	rec := w.Registry[id]
	assert.False(t, rec.IsAlive)
	assert.Equal(t, "old age", rec.DeathCause)
	assert.Equal(t, lifecycle.Dead, w.Lifecycle[id].HealthStatus)
	assert.Len(t, w.Memories[id], 1, "memories outlive the entity")
	assert.Empty(t, w.Runtime.Intents[id])
	assert.Equal(t, 1, w.Scores.Deaths)

	_, fading := w.Runtime.DyingSince[id]
	assert.True(t, fading)
	w.Despawn(id)
	_, hasPos := w.Position(id)
	assert.False(t, hasPos)
	assert.Error(t, w.SetPosition(id, spatial.Vec3{}))
}

func TestNearby(t *testing.T) {
	w := populated(t, 3) // critters at x = 0, 3, 6
	ids := w.LivingOf(KindCritter)
	require.NoError(t, w.SetPosition(RobotID, spatial.Vec3{X: 100}))
	for i, id := range ids {
		require.NoError(t, w.SetPosition(id, spatial.Vec3{X: float64(i * 3)}))
	}

	near := w.Nearby(ids[0], 5)
	require.Len(t, near, 1)
	assert.Equal(t, ids[1], near[0].ID)
	assert.InDelta(t, 3, near[0].Distance, 1e-9)

	near = w.Nearby(ids[0], 10)
	require.Len(t, near, 2)
	assert.Equal(t, ids[2], near[1].ID)
}

func TestBusyGate(t *testing.T) {
	w := New(epoch)
	require.True(t, w.TryAcquireBusy("a"))
	assert.False(t, w.TryAcquireBusy("b"), "held while in flight")

	w.Environment.Clock = 100
	assert.False(t, w.TryAcquireBusy("b"), "no release yet")

	w.ReleaseBusy(4)
	assert.False(t, w.TryAcquireBusy("b"), "cooling down")
	w.Environment.Clock = 104
	assert.True(t, w.TryAcquireBusy("b"))
	assert.Equal(t, "b", w.Runtime.Busy.Owner)
}

func TestLogRing(t *testing.T) {
	w := New(epoch)
	for i := 0; i < LogCapacity+25; i++ {
		w.AddLog("", LogSystem, fmt.Sprintf("entry %d", i))
	}
	require.Len(t, w.Log, LogCapacity)
	assert.Equal(t, "entry 25", w.Log[0].Text)
	assert.Equal(t, int64(LogCapacity+25), w.LogSeq)

	since := w.LogSince(w.LogSeq - 3)
	require.Len(t, since, 3)
	assert.Equal(t, fmt.Sprintf("entry %d", LogCapacity+22), since[0].Text)
	assert.Len(t, w.RecentLog(10), 10)
}

func TestAchievements(t *testing.T) {
	w := populated(t, 2)
	assert.Empty(t, w.EvaluateAchievements())

	w.Scores.Conversations = 1
	child := w.LivingOf(KindCritter)[1]
	lc := w.Lifecycle[child]
	lc.Generation = 2
	w.SetLifecycle(child, lc)

	got := w.EvaluateAchievements()
	assert.ElementsMatch(t, []string{AchFirstWords, AchNewGeneration}, got)
	assert.Empty(t, w.EvaluateAchievements(), "one-shot")
	assert.False(t, w.Unlock(AchFirstWords))
	assert.False(t, w.Unlock("made_up"))

	w.MarkDead(w.LivingOf(KindCritter)[0], "illness")
	assert.Equal(t, []string{AchLoneSurvivor}, w.EvaluateAchievements())
}

func TestEmotionBroadcast(t *testing.T) {
	w := populated(t, 2)
	w.BroadcastEmotion(emotion.PredatorNearby, 1, KindCritter)
	for _, id := range w.LivingOf(KindCritter) {
		assert.Greater(t, w.Emotions[id].Fear, emotion.Baseline().Fear)
	}
	assert.Equal(t, emotion.Baseline().Fear, w.Emotions[RobotID].Fear)
}

func TestInbox(t *testing.T) {
	w := populated(t, 1)
	id := w.LivingOf(KindCritter)[0]
	w.Deliver(Message{From: RobotID, To: id, Text: "hi"})
	w.Deliver(Message{From: RobotID, To: id, Text: "again"})

	m, ok := w.NextMessage(id)
	require.True(t, ok)
	assert.Equal(t, "hi", m.Text)
	m, _ = w.NextMessage(id)
	assert.Equal(t, "again", m.Text)
	_, ok = w.NextMessage(id)
	assert.False(t, ok)
}

func TestPersonality(t *testing.T) {
	p := NewPersonality(lifecycle.Traits{Sociability: 0.9, Bravery: 0.5}, &entropy.Script{Values: []float64{0.1, 0}})
	assert.Equal(t, ArchChatterbox, p.Archetype)
	assert.Greater(t, p.SocialBias, 0.6)
	assert.Contains(t, p.Prompt(), p.Quirk)

	kid := InheritPersonality(p, lifecycle.Traits{Sociability: 0.5}, &entropy.Script{Values: []float64{0.9, 0}})
	assert.Equal(t, ArchChatterbox, kid.Archetype)
}
