package relationship

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAffinityIsSymmetric(t *testing.T) {
	l := Adjust(New(), "robot", "Critter-Pip", 0.4)
	assert.Equal(t, 0.4, GetAffinity(l, "robot", "Critter-Pip"))
	assert.Equal(t, 0.4, GetAffinity(l, "Critter-Pip", "robot"))
	assert.Equal(t, 0.0, GetAffinity(l, "robot", "Critter-Moss"))
	assert.Equal(t, 0.0, GetAffinity(nil, "a", "b"))
}

func TestAdjustClampsAndCopies(t *testing.T) {
	l := New()
	l2 := Adjust(l, "a", "b", 5)
	assert.Empty(t, l, "original ledger untouched")
	assert.Equal(t, 1.0, GetAffinity(l2, "b", "a"))

	l3 := Adjust(l2, "b", "a", -3)
	assert.Equal(t, -1.0, GetAffinity(l3, "a", "b"))

	assert.Equal(t, l3, Adjust(l3, "a", "a", 1))
}

func TestThresholds(t *testing.T) {
	assert.True(t, ShouldApproach(0.31))
	assert.False(t, ShouldApproach(0.3))
	assert.True(t, ShouldAvoid(-0.31))
	assert.False(t, ShouldAvoid(0))

	assert.Equal(t, 0.25, DialogueMultiplier(-0.5))
	assert.Equal(t, 1.0, DialogueMultiplier(-0.1))
	assert.Equal(t, 1.5, DialogueMultiplier(0.5))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "stranger", Describe(0))
	assert.Equal(t, "close friend", Describe(0.9))
	assert.Equal(t, "enemy", Describe(-0.9))
	assert.Equal(t, "rival", Describe(-0.5))
}

func TestOfOrdersByStrength(t *testing.T) {
	l := New()
	l = Adjust(l, "robot", "Critter-A", 0.2)
	l = Adjust(l, "Critter-B", "robot", -0.6)
	l = Adjust(l, "Critter-A", "Critter-B", 0.9)

	rows := Of(l, "robot")
	require.Len(t, rows, 2)
	assert.Equal(t, "Critter-B", rows[0].B)
	assert.Equal(t, "robot", rows[0].A)
	assert.Equal(t, "Critter-A", rows[1].B)
}

func TestJSONRoundTripKeepsPairs(t *testing.T) {
	l := Adjust(New(), "x", "y", -0.25)
	raw, err := json.Marshal(l)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"a":"x","b":"y","affinity":-0.25}]`, string(raw))

	var back Ledger
	require.NoError(t, json.Unmarshal([]byte(`[{"a":"y","b":"x","affinity":-0.25},{"a":"z","b":"z","affinity":1}]`), &back))
	assert.Equal(t, l, back)
}

func TestNoDecayPolicy(t *testing.T) {
	l := Adjust(New(), "a", "b", 0.5)
	out := ApplyPolicy(l, NoDecay{}, 3600)
	assert.Equal(t, l, out)
}
