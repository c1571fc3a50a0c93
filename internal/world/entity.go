package world

import (
	"fmt"
	"strings"

	"github.com/talgya/critterlife/internal/lifecycle"
	"github.com/talgya/critterlife/internal/needs"
	"github.com/talgya/critterlife/internal/wildlife"
)

// Kind is the entity namespace an id belongs to.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindRobot
	KindCritter
	KindAnimal
)

var kindNames = [...]string{"unknown", "robot", "critter", "animal"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// MarshalText encodes the kind as its name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	for i, n := range kindNames {
		if n == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown entity kind %q", string(b))
}

// Role maps the kind to its needs decay profile.
func (k Kind) Role() needs.Role {
	switch k {
	case KindRobot:
		return needs.RoleRobot
	case KindAnimal:
		return needs.RoleAnimal
	}
	return needs.RoleCritter
}

// Id namespaces.
const (
	RobotID       = "robot"
	CritterPrefix = "Critter-"
)

// KindOf derives an entity's kind from its id.
func KindOf(id string) Kind {
	switch {
	case id == RobotID:
		return KindRobot
	case strings.HasPrefix(id, CritterPrefix) && len(id) > len(CritterPrefix):
		return KindCritter
	}
	if species, _, ok := strings.Cut(id, "-"); ok {
		if _, known := wildlife.SpecOf(wildlife.Species(species)); known {
			return KindAnimal
		}
	}
	return KindUnknown
}

// CritterID builds a critter id from its name.
func CritterID(name string) string {
	return CritterPrefix + name
}

// AnimalID builds a wild animal id.
func AnimalID(s wildlife.Species, n int) string {
	return fmt.Sprintf("%s-%d", s, n)
}

// Personality is the text and numeric temperament used in prompts and
// dialogue trigger odds.
type Personality struct {
	Archetype   string  `json:"archetype"`
	Description string  `json:"description"`
	Quirk       string  `json:"quirk,omitempty"`
	SocialBias  float64 `json:"socialBias"` // -1 to +1
	Curiosity   float64 `json:"curiosity"`  // 0 to 1
}

// Prompt renders the personality as a sentence for the model.
func (p Personality) Prompt() string {
	if p.Quirk == "" {
		return p.Description
	}
	return p.Description + " " + p.Quirk
}

// Record is the registry entry for an entity. Records outlive the entity:
// the dead keep theirs with IsAlive false.
type Record struct {
	ID          string           `json:"id"`
	Kind        Kind             `json:"kind"`
	Name        string           `json:"name"`
	Species     wildlife.Species `json:"species,omitempty"`
	Personality Personality      `json:"personality"`
	Traits      lifecycle.Traits `json:"traits"`
	Generation  int              `json:"generation"`
	ParentID    string           `json:"parentId,omitempty"`
	BornAt      float64          `json:"bornAt"`
	IsAlive     bool             `json:"isAlive"`
	DiedAt      float64          `json:"diedAt,omitempty"`
	DeathCause  string           `json:"deathCause,omitempty"`
}
