package world

import (
	"github.com/talgya/critterlife/internal/entropy"
	"github.com/talgya/critterlife/internal/lifecycle"
	"github.com/talgya/critterlife/internal/spatial"
)

// Archetype names: the temperament templates critters are born with.
const (
	ArchForager    = "Forager"
	ArchWanderer   = "Wanderer"
	ArchHomebody   = "Homebody"
	ArchChatterbox = "Chatterbox"
	ArchWorrier    = "Worrier"
	ArchDreamer    = "Dreamer"
	ArchTinkerer   = "Tinkerer"
	ArchGrump      = "Grump"
)

// template defines how an archetype colours a critter.
type template struct {
	Description string
	Quirks      []string

	// SocialBias adjusts how readily the critter starts conversations (-1 to +1).
	SocialBias float64

	// Curiosity is added to the trait-derived base.
	Curiosity float64
}

var archetypeTemplates = map[string]template{
	ArchForager: {
		Description: "A practical little critter who always knows where the ripest berries are.",
		Quirks:      []string{"Hoards snacks in its cheeks.", "Counts berries out loud."},
		SocialBias:  0,
		Curiosity:   0.1,
	},
	ArchWanderer: {
		Description: "A restless explorer who can't sit still while there is a hill left unclimbed.",
		Quirks:      []string{"Names every rock it passes.", "Hums travelling songs."},
		SocialBias:  -0.2,
		Curiosity:   0.4,
	},
	ArchHomebody: {
		Description: "A cosy critter who likes warm spots, familiar faces and naps.",
		Quirks:      []string{"Tidies the grass before sitting.", "Yawns mid-sentence."},
		SocialBias:  0.2,
		Curiosity:   -0.1,
	},
	ArchChatterbox: {
		Description: "An endlessly talkative critter who wants to be everyone's friend.",
		Quirks:      []string{"Finishes other critters' sentences.", "Tells the same joke twice."},
		SocialBias:  0.6,
		Curiosity:   0.2,
	},
	ArchWorrier: {
		Description: "A jumpy, careful critter who notices every rustle in the bushes.",
		Quirks:      []string{"Checks the sky for storms constantly.", "Apologises too often."},
		SocialBias:  -0.1,
		Curiosity:   0,
	},
	ArchDreamer: {
		Description: "A soft-spoken critter who wonders about stars, clouds and the robot's insides.",
		Quirks:      []string{"Speaks in half-finished poems.", "Stares at flowers for ages."},
		SocialBias:  0.1,
		Curiosity:   0.3,
	},
	ArchTinkerer: {
		Description: "A clever critter fascinated by crystals, driftwood and anything that clicks.",
		Quirks:      []string{"Asks the robot how things work.", "Collects shiny pebbles."},
		SocialBias:  0.1,
		Curiosity:   0.35,
	},
	ArchGrump: {
		Description: "A prickly critter with a soft heart it would never admit to.",
		Quirks:      []string{"Complains about the weather no matter what.", "Harrumphs instead of laughing."},
		SocialBias:  -0.4,
		Curiosity:   -0.05,
	},
}

// archetypeOrder keeps rolls deterministic under a seeded source.
var archetypeOrder = []string{
	ArchForager, ArchWanderer, ArchHomebody, ArchChatterbox,
	ArchWorrier, ArchDreamer, ArchTinkerer, ArchGrump,
}

// pickArchetype leans on traits: sociable critters chat, brave ones wander,
// timid ones worry. Otherwise it is a uniform roll.
func pickArchetype(t lifecycle.Traits, src entropy.Source) string {
	switch r := src.Float64(); {
	case t.Sociability > 0.8 && r < 0.5:
		return ArchChatterbox
	case t.Bravery > 0.8 && r < 0.5:
		return ArchWanderer
	case t.Bravery < 0.2 && r < 0.5:
		return ArchWorrier
	case t.Sociability < 0.2 && r < 0.4:
		return ArchGrump
	}
	return archetypeOrder[src.Intn(len(archetypeOrder))]
}

// NewPersonality builds a critter personality from its traits.
func NewPersonality(t lifecycle.Traits, src entropy.Source) Personality {
	src = entropy.Or(src)
	name := pickArchetype(t, src)
	tpl := archetypeTemplates[name]
	p := Personality{
		Archetype:   name,
		Description: tpl.Description,
		SocialBias:  spatial.Clamp(tpl.SocialBias + (t.Sociability-0.5)*0.4, -1, 1),
		Curiosity:   spatial.Clamp01(0.5 + tpl.Curiosity + (t.Bravery-0.5)*0.2),
	}
	if len(tpl.Quirks) > 0 {
		p.Quirk = tpl.Quirks[src.Intn(len(tpl.Quirks))]
	}
	return p
}

// InheritPersonality keeps the parent's archetype most of the time.
func InheritPersonality(parent Personality, t lifecycle.Traits, src entropy.Source) Personality {
	src = entropy.Or(src)
	if _, ok := archetypeTemplates[parent.Archetype]; !ok || src.Float64() < 0.3 {
		return NewPersonality(t, src)
	}
	tpl := archetypeTemplates[parent.Archetype]
	p := parent
	p.SocialBias = spatial.Clamp(tpl.SocialBias + (t.Sociability-0.5)*0.4, -1, 1)
	p.Curiosity = spatial.Clamp01(0.5 + tpl.Curiosity + (t.Bravery-0.5)*0.2)
	if len(tpl.Quirks) > 0 {
		p.Quirk = tpl.Quirks[src.Intn(len(tpl.Quirks))]
	}
	return p
}

// RobotPersonality is fixed.
func RobotPersonality() Personality {
	return Personality{
		Archetype:   "Explorer",
		Description: "A small, earnest exploration robot cataloguing the meadow and befriending its critters.",
		Quirk:       "Says 'beep' when surprised.",
		SocialBias:  0.3,
		Curiosity:   0.8,
	}
}
