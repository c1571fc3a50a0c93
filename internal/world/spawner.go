package world

import (
	"fmt"

	"github.com/talgya/critterlife/internal/entropy"
	"github.com/talgya/critterlife/internal/lifecycle"
	"github.com/talgya/critterlife/internal/needs"
	"github.com/talgya/critterlife/internal/wildlife"
)

// Spawner rolls new entity records. It holds no state of its own beyond the
// randomness source; uniqueness is checked against the world it spawns into.
type Spawner struct {
	src entropy.Source
}

// NewSpawner creates a spawner drawing from src.
func NewSpawner(src entropy.Source) *Spawner {
	return &Spawner{src: entropy.Or(src)}
}

// Robot returns the robot's record.
func (s *Spawner) Robot(now float64) Record {
	return Record{
		ID:          RobotID,
		Kind:        KindRobot,
		Name:        "Robot",
		Personality: RobotPersonality(),
		Generation:  1,
		BornAt:      now,
		IsAlive:     true,
	}
}

// Founder rolls a first-generation critter whose name is not taken in w.
func (s *Spawner) Founder(w *World, now float64) (Record, lifecycle.State) {
	traits := lifecycle.RandomTraits(s.src)
	name := s.generateName(w)
	rec := Record{
		ID:          CritterID(name),
		Kind:        KindCritter,
		Name:        name,
		Personality: NewPersonality(traits, s.src),
		Traits:      traits,
		Generation:  1,
		BornAt:      now,
		IsAlive:     true,
	}
	return rec, lifecycle.New(s.src, 1)
}

// Child builds the record for a newborn of parent.
func (s *Spawner) Child(w *World, parent Record, off lifecycle.Offspring, now float64) Record {
	name := s.generateName(w)
	return Record{
		ID:          CritterID(name),
		Kind:        KindCritter,
		Name:        name,
		Personality: InheritPersonality(parent.Personality, off.Traits, s.src),
		Traits:      off.Traits,
		Generation:  off.Child.Generation,
		ParentID:    parent.ID,
		BornAt:      now,
		IsAlive:     true,
	}
}

// Animal rolls a wild animal of the given species with the next free number.
func (s *Spawner) Animal(w *World, species wildlife.Species, now float64) (Record, lifecycle.State) {
	n := 1
	for {
		if _, taken := w.Registry[AnimalID(species, n)]; !taken {
			break
		}
		n++
	}
	rec := Record{
		ID:         AnimalID(species, n),
		Kind:       KindAnimal,
		Name:       fmt.Sprintf("%s %d", species, n),
		Species:    species,
		Traits:     lifecycle.RandomTraits(s.src),
		Generation: 1,
		BornAt:     now,
		IsAlive:    true,
	}
	return rec, lifecycle.New(s.src, 1)
}

// generateName builds a two-syllable name, numbering repeats so ids stay unique
// across the whole registry, the dead included.
func (s *Spawner) generateName(w *World) string {
	first := nameStarts[s.src.Intn(len(nameStarts))]
	last := nameEnds[s.src.Intn(len(nameEnds))]
	base := first + last
	name := base
	for i := 2; ; i++ {
		if _, taken := w.Registry[CritterID(name)]; !taken {
			return name
		}
		name = fmt.Sprintf("%s%d", base, i)
	}
}

// newNeeds is the starting needs vector for a freshly spawned entity.
func newNeeds(k Kind) needs.State {
	n := needs.Full()
	if k == KindCritter {
		n.Hunger, n.Comfort = 0.8, 0.8
	}
	return n
}

var nameStarts = []string{
	"Pip", "Mo", "Bix", "Lu", "Tam", "Zee", "Nib", "Ko", "Fen", "Wim", "Dot", "Rue",
	"Sprock", "Bram", "Tuf", "Mim", "Oz", "Quill", "Pebb", "Hob",
}

var nameEnds = []string{
	"", "kin", "let", "by", "wick", "sy", "o", "er", "pop", "bean",
}
