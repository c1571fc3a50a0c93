package memory

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return epoch.Add(time.Duration(sec) * time.Second)
}

func TestPruneKeepsRecentAndImportant(t *testing.T) {
	var list []Memory
	all := make([]Memory, 0, 60)
	for i := 0; i < 60; i++ {
		imp := float64((i*37)%60) / 60
		m := New(fmt.Sprintf("m%02d", i), Observation, imp, at(i))
		all = append(all, m)
		list = Add(list, m)
	}
	require.Len(t, list, MaxMemories)

	kept := map[string]bool{}
	for _, m := range list {
		kept[m.Content] = true
	}
	for i := 55; i < 60; i++ {
		assert.True(t, kept[fmt.Sprintf("m%02d", i)], "recent m%02d must survive", i)
	}

	// Evicted memories outside the protected window never outrank a survivor
	// that is also outside it.
	minKept := 2.0
	for _, m := range list {
		if m.Timestamp.Before(at(55)) && m.Importance < minKept {
			minKept = m.Importance
		}
	}
	for _, m := range all {
		if !kept[m.Content] {
			assert.LessOrEqual(t, m.Importance, minKept, "evicted %s", m.Content)
		}
	}

	assert.True(t, sort.SliceIsSorted(list, func(i, j int) bool {
		return list[i].Timestamp.Before(list[j].Timestamp)
	}), "chronological")
}

func TestAddDoesNotAlias(t *testing.T) {
	base := []Memory{New("a", Event, 0.5, at(0))}
	out := Add(base, New("b", Event, 0.5, at(1)))
	assert.Len(t, base, 1)
	assert.Len(t, out, 2)
}

func TestPruneTieBreaksNewer(t *testing.T) {
	var list []Memory
	for i := 0; i < 8; i++ {
		list = append(list, New(fmt.Sprintf("m%d", i), Event, 0.5, at(i)))
	}
	out := Prune(list, 6)
	require.Len(t, out, 6)
	assert.Equal(t, "m2", out[0].Content, "oldest two are dropped on equal importance")
}

func TestRecent(t *testing.T) {
	list := []Memory{New("b", Event, 0, at(2)), New("a", Event, 0, at(1)), New("c", Event, 0, at(3))}
	r := Recent(list, 2)
	require.Len(t, r, 2)
	assert.Equal(t, "c", r[0].Content)
	assert.Equal(t, "b", r[1].Content)
	assert.Len(t, Recent(list, 10), 3)
}

func TestRelevantPrefersOverlapAndImportance(t *testing.T) {
	now := at(600)
	list := []Memory{
		New("old trivial", Observation, 0.1, at(0)),
		New("chat with Moss", Dialogue, 0.5, at(500), "Critter-Moss"),
		New("big storm", Event, 0.9, at(100)),
		New("fresh trivial", Observation, 0.1, at(599)),
	}
	top := Relevant(list, now, []string{"Critter-Moss"}, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "chat with Moss", top[0].Content)

	assert.Nil(t, Relevant(list, now, nil, 0))
	assert.Len(t, Relevant(list, now, nil, 10), 4)
}

func TestScoreHalfLife(t *testing.T) {
	w := Weights{Recency: 1, HalfLife: 300 * time.Second}
	m := New("x", Event, 0, at(0))
	assert.InDelta(t, 1, Score(m, at(0), nil, w), 1e-9)
	assert.InDelta(t, 0.5, Score(m, at(300), nil, w), 1e-9)
	assert.InDelta(t, 0.25, Score(m, at(600), nil, w), 1e-9)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "You have no particular memories yet.", Describe(nil, epoch))
	out := Describe([]Memory{New("found berries", Event, 0.4, at(0))}, at(120))
	assert.Equal(t, "- (2 minutes ago) found berries", out)
}
