package world

import (
	"fmt"

	"github.com/talgya/critterlife/internal/emotion"
	"github.com/talgya/critterlife/internal/environment"
	"github.com/talgya/critterlife/internal/lifecycle"
	"github.com/talgya/critterlife/internal/memory"
	"github.com/talgya/critterlife/internal/needs"
)

// Persona is the prompt-ready text projection of one entity.
type Persona struct {
	Name        string
	Personality string
	Emotion     string
	Needs       string
	Lifecycle   string
	Environment string
	Position    string
}

// DisplayName returns the name used in prompts and the log.
func (w *World) DisplayName(id string) string {
	if r, ok := w.Registry[id]; ok && r.Name != "" {
		return r.Name
	}
	return id
}

// Persona projects id's state into prompt text.
func (w *World) Persona(id string) Persona {
	p := Persona{
		Name:        w.DisplayName(id),
		Personality: w.Registry[id].Personality.Prompt(),
		Environment: environment.Describe(w.Environment),
	}
	e, ok := w.Emotions[id]
	if !ok {
		e = emotion.Baseline()
	}
	p.Emotion = emotion.ToDialogueContext(e)
	if id == RobotID {
		p.Needs = fmt.Sprintf("battery %.0f%%, hull %.0f%%", w.RobotStatus.Battery*100, w.RobotStatus.Integrity*100)
	} else {
		p.Needs = needs.Describe(w.Needs[id])
	}
	if lc, ok := w.Lifecycle[id]; ok {
		p.Lifecycle = lifecycle.Describe(lc)
	}
	if pos, ok := w.Runtime.Positions[id]; ok {
		p.Position = fmt.Sprintf("(%.0f, %.0f)", pos.X, pos.Z)
	}
	return p
}

// RelevantMemories renders id's top-k memories for the given entities.
func (w *World) RelevantMemories(id string, entities []string, k int) string {
	now := w.Now()
	return memory.Describe(memory.Relevant(w.Memories[id], now, entities, k), now)
}
