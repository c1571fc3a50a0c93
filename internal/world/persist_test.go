package world

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/critterlife/internal/environment"
	"github.com/talgya/critterlife/internal/lifecycle"
	"github.com/talgya/critterlife/internal/memory"
	"github.com/talgya/critterlife/internal/relationship"
	"github.com/talgya/critterlife/internal/spatial"
)

func newMemory(content string) memory.Memory {
	return memory.New(content, memory.Observation, 0.5, epoch)
}

func TestExportImportRoundTrip(t *testing.T) {
	w := populated(t, 3)
	ids := w.LivingOf(KindCritter)
	w.AdjustRelationship(ids[0], ids[1], 0.4)
	w.AddMemory(ids[0], newMemory("Robot told me a joke"))
	w.Environment.Clock = 321
	w.Environment.Weather = environment.Rainy
	w.SetBubble(ids[0], Bubble{Text: "hello"}, 5)
	w.SetIntent(ids[1], "rest")
	w.Runtime.CameraTarget = ids[2]
	w.AddLog(ids[0], LogDialogue, "said hello")
	w.Unlock(AchFirstWords)
	w.MarkDead(ids[2], "old age")

	data, err := w.Export()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.EqualValues(t, SchemaVersion, raw["schemaVersion"])
	for _, runtimeOnly := range []string{"positions", "bubbles", "cameraTarget", "intents", "Runtime", "runtime"} {
		assert.NotContains(t, raw, runtimeOnly)
	}

	got, err := Import(data)
	require.NoError(t, err)
	assert.Equal(t, w.Registry, got.Registry)
	assert.Equal(t, w.Needs, got.Needs)
	assert.InDelta(t, 0.4, got.Relationships[relationship.Key(ids[0], ids[1])], 1e-9)
	assert.Equal(t, "Robot told me a joke", got.Memories[ids[0]][0].Content)
	assert.Equal(t, environment.Rainy, got.Environment.Weather)
	assert.Equal(t, w.LogSeq, got.LogSeq)
	assert.Contains(t, got.Achievements, AchFirstWords)
	assert.True(t, got.Epoch.Equal(epoch))

	// Runtime starts empty apart from rebuilt activities.
	assert.Empty(t, got.Runtime.Positions)
	assert.Empty(t, got.Runtime.Bubbles)
	assert.Empty(t, got.Runtime.Intents)
	assert.Empty(t, got.Runtime.CameraTarget)
	assert.Contains(t, got.Runtime.Activities, ids[0])
	assert.NotContains(t, got.Runtime.Activities, ids[2], "dead entities stay inert")
}

func TestImportMigratesV1(t *testing.T) {
	v1 := `{
		"settings": {"timeScale": 2},
		"needs": {
			"robot": {"hunger": 1, "energy": 0.7, "comfort": 0.9},
			"Critter-Mo": {"hunger": 0.4, "energy": 0.5, "comfort": 0.6},
			"deer-1": {"hunger": 0.9, "energy": 0.9, "comfort": 0.9}
		},
		"emotions": {"Critter-Mo": {"joy": 0.8, "curiosity": 0.6, "fear": 0.1, "sadness": 0.1, "anger": 0.05, "loneliness": 0.3}},
		"memories": {"Critter-Mo": []},
		"relationships": [{"a": "Critter-Mo", "b": "robot", "affinity": 0.5}],
		"environment": {"time": 14, "day": 6, "season": "summer", "weather": "cloudy", "temperature": 21},
		"log": [{"seq": 7, "kind": "system", "text": "hello"}]
	}`
	w, err := Import([]byte(v1))
	require.NoError(t, err)

	require.Contains(t, w.Registry, "Critter-Mo")
	mo := w.Registry["Critter-Mo"]
	assert.Equal(t, KindCritter, mo.Kind)
	assert.Equal(t, "Mo", mo.Name)
	assert.True(t, mo.IsAlive)

	assert.Equal(t, KindRobot, w.Registry["robot"].Kind)
	assert.NotContains(t, w.Lifecycle, "robot")
	assert.Equal(t, lifecycle.Healthy, w.Lifecycle["Critter-Mo"].HealthStatus)
	assert.InDelta(t, 90, w.Lifecycle["Critter-Mo"].MaxAge, 1e-9)
	assert.Equal(t, "deer", string(w.Registry["deer-1"].Species))
	assert.Contains(t, w.Runtime.Animals, "deer-1")

	assert.Equal(t, 1.0, w.RobotStatus.Battery)
	assert.Equal(t, environment.Cloudy, w.Environment.TargetWeather)
	assert.Equal(t, environment.Summer, w.Environment.Season)
	assert.InDelta(t, 0.5, w.Relationships[relationship.Key("robot", "Critter-Mo")], 1e-9)
	assert.Equal(t, int64(7), w.LogSeq)
	assert.Equal(t, 2.0, w.Settings.TimeScale)
	assert.NotNil(t, w.Achievements)
}

func TestMigrateChainIsMonotonic(t *testing.T) {
	v2 := `{"schemaVersion": 2, "needs": {}, "registry": {}, "lifecycle": {}, "environment": {"weather": "snowy"}}`
	out, from, err := Migrate([]byte(v2))
	require.NoError(t, err)
	assert.Equal(t, 2, from)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(out, &raw))
	assert.EqualValues(t, SchemaVersion, raw["schemaVersion"])
	assert.Contains(t, raw, "robotStatus")
	assert.Contains(t, raw, "scores")
	assert.Equal(t, "snowy", raw["environment"].(map[string]any)["targetWeather"])
}

func TestImportRejectsFutureSchema(t *testing.T) {
	_, err := Import([]byte(`{"schemaVersion": 99}`))
	assert.ErrorIs(t, err, ErrUnsupportedSchema)

	_, err = Import([]byte(`{"schemaVersion": 0}`))
	assert.ErrorIs(t, err, ErrUnsupportedSchema)

	_, err = Import([]byte(`not json`))
	assert.Error(t, err)

	_, err = Import([]byte(`{"needs": {"ghost": {}}}`))
	assert.Error(t, err, "v1 ids must be recognisable")
}

func TestStorePatchesApplyInOrder(t *testing.T) {
	s := NewStore(populated(t, 1))
	var id string
	s.View(func(w *World) { id = w.LivingOf(KindCritter)[0] })

	require.NoError(t, s.MoveEntity(id, spatial.Vec3{X: 1}))
	require.NoError(t, s.MoveEntity(id, spatial.Vec3{X: 2}))
	assert.ErrorIs(t, s.MoveEntity("Critter-Nobody", spatial.Vec3{}), ErrUnknownEntity)
	assert.Equal(t, 2, s.Pending())

	var applied int
	s.Update(func(w *World) { applied = s.Drain(w) })
	assert.Equal(t, 2, applied)
	snap := s.Snapshot()
	e, ok := snap.Entity(id)
	require.True(t, ok)
	assert.Equal(t, 2.0, e.Position.X)
}

func TestStoreConcurrentPosts(t *testing.T) {
	s := NewStore(New(epoch))
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Post(func(w *World) { w.Scores.Thoughts++ })
		}()
	}
	wg.Wait()
	s.Update(func(w *World) { s.Drain(w) })
	s.View(func(w *World) { assert.Equal(t, 50, w.Scores.Thoughts) })
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStore(populated(t, 1))
	snap := s.Snapshot()
	require.NotEmpty(t, snap.Entities)
	snap.Entities[0].Position.X = 999
	snap.Resources = append(snap.Resources, snap.Resources...)

	s.View(func(w *World) {
		p, _ := w.Position(snap.Entities[0].Record.ID)
		assert.NotEqual(t, 999.0, p.X)
	})
}
