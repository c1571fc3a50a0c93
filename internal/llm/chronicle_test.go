package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day3 = ChronicleData{
	Day:         3,
	Season:      "spring",
	Weather:     "rainy",
	Critters:    5,
	Animals:     2,
	Births:      []string{"Critter-Moss was born to Critter-Pip"},
	Dialogue:    []string{"a", "b", "c", "d", "e"},
	Achievement: []string{"Achievement unlocked: First Words"},
}

func TestChronicleFallback(t *testing.T) {
	ch := GenerateChronicle(context.Background(), nil, day3)
	assert.False(t, ch.Generated)
	assert.Equal(t, 3, ch.Day)
	assert.Contains(t, ch.Content, "THE MEADOW GAZETTE")
	assert.Contains(t, ch.Content, "Day 3, spring. The sky is rainy.")
	assert.Contains(t, ch.Content, "Critter-Moss was born")
	assert.Contains(t, ch.Content, "...and 2 more.")
	assert.NotContains(t, ch.Content, "IN MEMORIAM", "empty sections are left out")
}

func TestChronicleGenerated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Messages)
		assert.Contains(t, req.Messages[len(req.Messages)-1].Content, "BIRTHS:\n- Critter-Moss")
		fmt.Fprint(w, `{"content":[{"text":"  Rain again, and a new face in the meadow.  "}]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	ch := GenerateChronicle(context.Background(), c, day3)
	assert.True(t, ch.Generated)
	assert.Equal(t, "Rain again, and a new face in the meadow.", ch.Content)
}

func TestChronicleFallsBackOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	ch := GenerateChronicle(context.Background(), c, day3)
	assert.False(t, ch.Generated)
	assert.Contains(t, ch.Content, "THE MEADOW GAZETTE")
}

func TestGenerateBiography(t *testing.T) {
	_, err := GenerateBiography(context.Background(), nil, BiographyContext{Name: "Critter-Pip"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompt := req.Messages[len(req.Messages)-1].Content
		assert.Contains(t, prompt, "Name: Critter-Pip")
		assert.Contains(t, prompt, "Status: has passed away")
		assert.Contains(t, prompt, "Relationships: friendly toward Critter-Moss")
		fmt.Fprint(w, `{"content":[{"text":"Pip loved the clover."}]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	out, err := GenerateBiography(context.Background(), c, BiographyContext{
		Name:          "Critter-Pip",
		Kind:          "critter",
		Age:           340,
		Relationships: []string{"friendly toward Critter-Moss"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Pip loved the clover.", out)
}
