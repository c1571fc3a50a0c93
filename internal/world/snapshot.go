package world

import (
	"sort"

	"github.com/talgya/critterlife/internal/activity"
	"github.com/talgya/critterlife/internal/emotion"
	"github.com/talgya/critterlife/internal/environment"
	"github.com/talgya/critterlife/internal/lifecycle"
	"github.com/talgya/critterlife/internal/memory"
	"github.com/talgya/critterlife/internal/needs"
	"github.com/talgya/critterlife/internal/relationship"
	"github.com/talgya/critterlife/internal/resources"
	"github.com/talgya/critterlife/internal/spatial"
	"github.com/talgya/critterlife/internal/wildlife"
)

// SnapshotLogSize is how many log entries a snapshot carries.
const SnapshotLogSize = 50

// EntityView is one entity's state flattened for observers.
type EntityView struct {
	Record    Record               `json:"record"`
	Needs     needs.State          `json:"needs"`
	Emotion   emotion.State        `json:"emotion"`
	Lifecycle *lifecycle.State     `json:"lifecycle,omitempty"`
	Activity  *activity.State      `json:"activity,omitempty"`
	Behavior  *wildlife.Behavior   `json:"behavior,omitempty"`
	Position  *spatial.Vec3        `json:"position,omitempty"`
	Bubble    *Bubble              `json:"bubble,omitempty"`
	Thought   *Bubble              `json:"thought,omitempty"`
	Fading    bool                 `json:"fading,omitempty"`
	Friends   []relationship.Entry `json:"relationships,omitempty"`
}

// Snapshot is a read-only deep copy of the world for rendering and API
// collaborators.
type Snapshot struct {
	Clock        float64                `json:"clock"`
	Environment  environment.State      `json:"environment"`
	Entities     []EntityView           `json:"entities"`
	RobotStatus  needs.RobotStatus      `json:"robotStatus"`
	Resources    []resources.Node       `json:"resources"`
	Buildings    []environment.Building `json:"buildings"`
	Log          []LogEntry             `json:"log"`
	Scores       Scores                 `json:"scores"`
	Achievements []Achievement          `json:"achievements"`
	CameraTarget string                 `json:"cameraTarget,omitempty"`
	DialogueBusy bool                   `json:"dialogueBusy"`
}

// Entity finds an entity view by id.
func (s Snapshot) Entity(id string) (EntityView, bool) {
	for _, e := range s.Entities {
		if e.Record.ID == id {
			return e, true
		}
	}
	return EntityView{}, false
}

// TakeSnapshot copies w. Living entities and those still fading out are
// included; long-dead records are not.
func TakeSnapshot(w *World) Snapshot {
	snap := Snapshot{
		Clock:        w.Clock(),
		Environment:  w.Environment,
		RobotStatus:  w.RobotStatus,
		Resources:    append([]resources.Node(nil), w.Resources...),
		Buildings:    append([]environment.Building(nil), w.Buildings...),
		Log:          w.RecentLog(SnapshotLogSize),
		Scores:       w.Scores,
		CameraTarget: w.Runtime.CameraTarget,
		DialogueBusy: !w.Runtime.Busy.Free(w.Clock()),
	}
	if h := w.Environment.Hazard; h != nil {
		cp := *h
		snap.Environment.Hazard = &cp
	}
	for _, a := range w.Achievements {
		snap.Achievements = append(snap.Achievements, a)
	}
	sort.Slice(snap.Achievements, func(i, j int) bool {
		return snap.Achievements[i].UnlockedAt.Before(snap.Achievements[j].UnlockedAt)
	})

	ids := make([]string, 0, len(w.Registry))
	for id, rec := range w.Registry {
		_, fading := w.Runtime.DyingSince[id]
		if rec.IsAlive || fading {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		snap.Entities = append(snap.Entities, viewOf(w, id))
	}
	return snap
}

// View builds one entity's view. Dead records are included.
func (w *World) View(id string) (EntityView, bool) {
	if _, ok := w.Registry[id]; !ok {
		return EntityView{}, false
	}
	return viewOf(w, id), true
}

func viewOf(w *World, id string) EntityView {
	rt := &w.Runtime
	v := EntityView{
		Record:  w.Registry[id],
		Needs:   w.Needs[id],
		Emotion: w.Emotions[id],
		Friends: relationship.Of(w.Relationships, id),
	}
	if lc, ok := w.Lifecycle[id]; ok {
		v.Lifecycle = &lc
	}
	if a, ok := rt.Activities[id]; ok {
		v.Activity = &a
	}
	if an, ok := rt.Animals[id]; ok {
		b := an.Behavior
		v.Behavior = &b
	}
	if p, ok := rt.Positions[id]; ok {
		v.Position = &p
	}
	if b, ok := rt.Bubbles[id]; ok {
		v.Bubble = &b
	}
	if t, ok := rt.Thoughts[id]; ok {
		v.Thought = &t
	}
	_, v.Fading = rt.DyingSince[id]
	return v
}

// MemoriesOf returns a copy of id's memories, newest first.
func (w *World) MemoriesOf(id string) []memory.Memory {
	return memory.Recent(w.Memories[id], len(w.Memories[id]))
}
