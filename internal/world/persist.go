package world

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/talgya/critterlife/internal/activity"
	"github.com/talgya/critterlife/internal/emotion"
	"github.com/talgya/critterlife/internal/environment"
	"github.com/talgya/critterlife/internal/lifecycle"
	"github.com/talgya/critterlife/internal/memory"
	"github.com/talgya/critterlife/internal/needs"
	"github.com/talgya/critterlife/internal/relationship"
	"github.com/talgya/critterlife/internal/resources"
	"github.com/talgya/critterlife/internal/wildlife"
)

// SchemaVersion is the version Export writes.
const SchemaVersion = 4

// persisted is the blob layout. Runtime state is absent by construction.
type persisted struct {
	SchemaVersion int                        `json:"schemaVersion"`
	Epoch         time.Time                  `json:"epoch"`
	Settings      Settings                   `json:"settings"`
	Registry      map[string]Record          `json:"registry"`
	Needs         map[string]needs.State     `json:"needs"`
	Emotions      map[string]emotion.State   `json:"emotions"`
	Lifecycle     map[string]lifecycle.State `json:"lifecycle"`
	Memories      map[string][]memory.Memory `json:"memories"`
	Relationships relationship.Ledger        `json:"relationships"`
	RobotStatus   needs.RobotStatus          `json:"robotStatus"`
	Environment   environment.State          `json:"environment"`
	Resources     []resources.Node           `json:"resources"`
	Buildings     []environment.Building     `json:"buildings"`
	Log           []LogEntry                 `json:"log"`
	LogSeq        int64                      `json:"logSeq"`
	Scores        Scores                     `json:"scores"`
	Achievements  map[string]Achievement     `json:"achievements"`
}

// Export serializes every persisted slice at SchemaVersion.
func (w *World) Export() ([]byte, error) {
	p := persisted{
		SchemaVersion: SchemaVersion,
		Epoch:         w.Epoch,
		Settings:      w.Settings,
		Registry:      w.Registry,
		Needs:         w.Needs,
		Emotions:      w.Emotions,
		Lifecycle:     w.Lifecycle,
		Memories:      w.Memories,
		Relationships: w.Relationships,
		RobotStatus:   w.RobotStatus,
		Environment:   w.Environment,
		Resources:     w.Resources,
		Buildings:     w.Buildings,
		Log:           w.Log,
		LogSeq:        w.LogSeq,
		Scores:        w.Scores,
		Achievements:  w.Achievements,
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("export world: %w", err)
	}
	return data, nil
}

// Import decodes a blob of any supported version, migrating older layouts
// forward. A version newer than SchemaVersion fails with ErrUnsupportedSchema.
func Import(data []byte) (*World, error) {
	migrated, from, err := Migrate(data)
	if err != nil {
		return nil, err
	}
	var p persisted
	if err := json.Unmarshal(migrated, &p); err != nil {
		return nil, fmt.Errorf("decode world v%d: %w", from, err)
	}

	w := &World{
		Epoch:         p.Epoch,
		Settings:      p.Settings,
		Registry:      p.Registry,
		Needs:         p.Needs,
		Emotions:      p.Emotions,
		Lifecycle:     p.Lifecycle,
		Memories:      p.Memories,
		Relationships: p.Relationships,
		RobotStatus:   p.RobotStatus,
		Environment:   p.Environment,
		Resources:     p.Resources,
		Buildings:     p.Buildings,
		Log:           p.Log,
		LogSeq:        p.LogSeq,
		Scores:        p.Scores,
		Achievements:  p.Achievements,
	}
	w.ensure()
	if w.Epoch.IsZero() {
		w.Epoch = time.Now().Add(-time.Duration(w.Environment.Clock * float64(time.Second)))
	}
	if w.Settings.TimeScale <= 0 {
		w.Settings.TimeScale = 3
	}
	for _, e := range w.Log {
		if e.Seq > w.LogSeq {
			w.LogSeq = e.Seq
		}
	}
	w.restoreRuntime()
	return w, nil
}

// restoreRuntime rebuilds the runtime slices a loaded world needs. Positions
// are left for the host to place.
func (w *World) restoreRuntime() {
	now := w.Clock()
	for id, rec := range w.Registry {
		if !rec.IsAlive {
			continue
		}
		if _, ok := w.Needs[id]; !ok {
			w.Needs[id] = newNeeds(rec.Kind)
		}
		if _, ok := w.Emotions[id]; !ok {
			w.Emotions[id] = emotion.Baseline()
		}
		w.Runtime.Activities[id] = activity.State{Current: activity.Idle, StartedAt: now}
		if rec.Kind == KindAnimal {
			w.Runtime.Animals[id] = wildlife.New(rec.Species, now)
		}
	}
}

// Migration upgrades a raw blob by exactly one version.
type Migration func(raw map[string]any) error

// migrations[i] upgrades version i+1 to i+2.
var migrations = []Migration{
	migrateV1toV2,
	migrateV2toV3,
	migrateV3toV4,
}

// Migrate runs the forward chain on data and returns the blob at
// SchemaVersion together with the version it started from.
func Migrate(data []byte) ([]byte, int, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("parse world blob: %w", err)
	}
	v, ok := raw["schemaVersion"].(float64)
	if !ok {
		v = 1 // the first layout carried no version field
	}
	from := int(v)
	switch {
	case from > SchemaVersion:
		return nil, from, fmt.Errorf("schema v%d (newest known v%d): %w", from, SchemaVersion, ErrUnsupportedSchema)
	case from < 1:
		return nil, from, fmt.Errorf("schema v%d: %w", from, ErrUnsupportedSchema)
	case from == SchemaVersion:
		return data, from, nil
	}
	for ver := from; ver < SchemaVersion; ver++ {
		if err := migrations[ver-1](raw); err != nil {
			return nil, from, fmt.Errorf("migrate v%d to v%d: %w", ver, ver+1, err)
		}
		raw["schemaVersion"] = ver + 1
	}
	out, err := json.Marshal(raw)
	if err != nil {
		return nil, from, fmt.Errorf("re-encode migrated world: %w", err)
	}
	return out, from, nil
}

func object(raw map[string]any, key string) map[string]any {
	if m, ok := raw[key].(map[string]any); ok {
		return m
	}
	m := map[string]any{}
	raw[key] = m
	return m
}

// v2 introduced the registry and lifecycle. Every id with needs becomes a
// living record; non-robots get a mid-length lifespan.
func migrateV1toV2(raw map[string]any) error {
	registry := object(raw, "registry")
	lc := object(raw, "lifecycle")
	for id := range object(raw, "needs") {
		k := KindOf(id)
		if k == KindUnknown {
			return fmt.Errorf("unrecognised entity id %q", id)
		}
		if _, ok := registry[id]; !ok {
			name := id
			if k == KindCritter {
				name = id[len(CritterPrefix):]
			}
			registry[id] = map[string]any{
				"id":          id,
				"kind":        k.String(),
				"name":        name,
				"personality": map[string]any{},
				"traits":      map[string]any{"hue": 0.5, "size": 0.5, "speed": 0.5, "sociability": 0.5, "bravery": 0.5},
				"generation":  1,
				"isAlive":     true,
			}
			if k == KindAnimal {
				species, _, _ := strings.Cut(id, "-")
				registry[id].(map[string]any)["species"] = species
			}
		}
		if k == KindRobot {
			continue
		}
		if _, ok := lc[id]; !ok {
			lc[id] = map[string]any{
				"age":                  0,
				"maxAge":               (lifecycle.MinMaxAge + lifecycle.MaxMaxAge) / 2,
				"health":               1,
				"healthStatus":         lifecycle.Healthy.String(),
				"reproductionCooldown": lifecycle.InitialCooldownSteps,
				"generation":           1,
			}
		}
	}
	return nil
}

// v3 added machine state for the robot, buildings and the resource field.
// An empty field is seeded by the simulation on its first frame.
func migrateV2toV3(raw map[string]any) error {
	if _, ok := raw["robotStatus"]; !ok {
		rs := needs.NewRobotStatus()
		raw["robotStatus"] = map[string]any{
			"battery":    rs.Battery,
			"integrity":  rs.Integrity,
			"isCharging": rs.IsCharging,
			"toolkit":    rs.Toolkit,
		}
	}
	if _, ok := raw["buildings"]; !ok {
		raw["buildings"] = []any{}
	}
	if _, ok := raw["resources"]; !ok {
		raw["resources"] = []any{}
	}
	return nil
}

// v4 added achievements, scores and the staged weather target.
func migrateV3toV4(raw map[string]any) error {
	object(raw, "achievements")
	object(raw, "scores")
	env := object(raw, "environment")
	if _, ok := env["targetWeather"]; !ok {
		w, ok := env["weather"]
		if !ok {
			w = environment.Sunny.String()
		}
		env["targetWeather"] = w
	}
	return nil
}
