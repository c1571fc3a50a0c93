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

var actions = []string{"idle", "explore", "forage", "rest", "socialize", "flee", "seek_resource"}

func TestNilClientIsDisabled(t *testing.T) {
	var c *Client
	assert.False(t, c.Enabled())
	_, err := c.Generate(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = GenerateThought(context.Background(), c, ThoughtContext{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	assert.Nil(t, NewClient(Config{Provider: OpenAI}))
}

func TestGenerateAnthropic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "be kind", req.System)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "assistant", req.Messages[0].Role)
		assert.Equal(t, "hello?", req.Messages[1].Content)

		fmt.Fprint(w, `{"content":[{"text":"Hello, friend!"}],"usage":{"input_tokens":3,"output_tokens":4}}`)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	out, err := c.Generate(context.Background(), Request{
		System:  "be kind",
		Prompt:  "hello?",
		History: []Message{{Role: "assistant", Content: "beep"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello, friend!", out)
	assert.Equal(t, Anthropic, c.Provider())
}

func TestGenerateOpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		fmt.Fprint(w, `{"choices":[{"message":{"content":"Beep boop."}}]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{Provider: OpenAI, APIKey: "k", BaseURL: srv.URL})
	out, err := c.Generate(context.Background(), Request{System: "sys", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "Beep boop.", out)
}

func TestGenerateErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/empty" {
			fmt.Fprint(w, `{"content":[]}`)
			return
		}
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	_, err := c.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	c = NewClient(Config{APIKey: "k", BaseURL: srv.URL + "/empty"})
	_, err = c.Generate(context.Background(), Request{Prompt: "p"})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content":[{"text":"ok"}]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL, MaxPerMin: 2})
	for i := 0; i < 2; i++ {
		_, err := c.Generate(context.Background(), Request{Prompt: "p"})
		require.NoError(t, err)
	}
	_, err := c.Generate(context.Background(), Request{Prompt: "p"})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestStreamAnthropic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\"}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hel\"}}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"lo\"}}\n\n")
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	var chunks []string
	out, err := c.Stream(context.Background(), Request{Prompt: "p"}, func(s string) { chunks = append(chunks, s) })
	require.NoError(t, err)
	assert.Equal(t, "Hello", out)
	assert.Equal(t, []string{"Hel", "lo"}, chunks)
}

func TestStreamOpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Be\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ep\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewClient(Config{Provider: OpenAI, APIKey: "k", BaseURL: srv.URL})
	out, err := c.Stream(context.Background(), Request{Prompt: "p"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Beep", out)
}

func TestParseThought(t *testing.T) {
	th, err := ParseThought(`Sure! {"thought":"The berries look ripe.","action":"Forage","reason":"I'm hungry"} hope that helps`, actions)
	require.NoError(t, err)
	assert.Equal(t, "The berries look ripe.", th.Thought)
	assert.Equal(t, "forage", th.Action)

	th, err = ParseThought(`{"thought":"I could fly!","action":"fly"}`, actions)
	require.NoError(t, err)
	assert.Empty(t, th.Action, "unknown actions are dropped")

	_, err = ParseThought(`no json here`, actions)
	assert.Error(t, err)
	_, err = ParseThought(`{"action":"rest"}`, actions)
	assert.Error(t, err, "thought is required")
	_, err = ParseThought(`{"thought":42}`, actions)
	assert.Error(t, err)
	_, err = ParseThought(`{"thought":"", "action":"rest"}`, actions)
	assert.Error(t, err)
}

func TestThoughtOrFallback(t *testing.T) {
	assert.Equal(t, FallbackThought(), ThoughtOrFallback("garbage {", actions))
	assert.Empty(t, FallbackThought().Action)
}

func TestGenerateThoughtFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content":[{"text":"I am just rambling without JSON"}]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	th, err := GenerateThought(context.Background(), c, ThoughtContext{Name: "Critter-Pip", Actions: actions})
	require.NoError(t, err)
	assert.Equal(t, FallbackThought(), th)
}

func TestSplitQuarrel(t *testing.T) {
	text, q := SplitQuarrel("  [QUARREL] Leave my berries alone!")
	assert.True(t, q)
	assert.Equal(t, "Leave my berries alone!", text)

	text, q = SplitQuarrel("Nice weather today.")
	assert.False(t, q)
	assert.Equal(t, "Nice weather today.", text)
}

func TestDialogueRequest(t *testing.T) {
	req := DialogueRequest(DialogueContext{Speaker: "Critter-Pip", Listener: "robot", Incoming: "Hello!", WrapUp: true}, nil)
	assert.Contains(t, req.System, QuarrelMarker)
	assert.Contains(t, req.Prompt, `robot says: "Hello!"`)
	assert.Contains(t, req.Prompt, "wrap it up")
}
