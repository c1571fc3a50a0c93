package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Thought is the structured result of a thinking call.
type Thought struct {
	Thought string `json:"thought"`
	Action  string `json:"action"`
	Reason  string `json:"reason"`
}

const thoughtSchemaJSON = `{
  "type": "object",
  "required": ["thought"],
  "properties": {
    "thought": {"type": "string", "minLength": 1, "maxLength": 600},
    "action":  {"type": "string", "maxLength": 40},
    "reason":  {"type": "string", "maxLength": 600}
  }
}`

var thoughtSchema = jsonschema.MustCompileString("thought.schema.json", thoughtSchemaJSON)

// FallbackThought is the neutral result used whenever a model response
// cannot be parsed or validated. It never carries an action.
func FallbackThought() Thought {
	return Thought{Thought: "Hmm, let me look around for a while.", Reason: "unclear thoughts"}
}

// ParseThought extracts the first JSON object from raw model text,
// validates it and drops an action not present in validActions.
func ParseThought(raw string, validActions []string) (Thought, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return Thought{}, fmt.Errorf("no JSON object found in response")
	}
	jsonStr := raw[start : end+1]

	var doc any
	if err := json.Unmarshal([]byte(jsonStr), &doc); err != nil {
		return Thought{}, fmt.Errorf("parse thought: %w", err)
	}
	if err := thoughtSchema.Validate(doc); err != nil {
		return Thought{}, fmt.Errorf("validate thought: %w", err)
	}

	var t Thought
	if err := json.Unmarshal([]byte(jsonStr), &t); err != nil {
		return Thought{}, fmt.Errorf("decode thought: %w", err)
	}
	t.Thought = strings.TrimSpace(t.Thought)
	t.Action = strings.ToLower(strings.TrimSpace(t.Action))
	if !contains(validActions, t.Action) {
		t.Action = ""
	}
	return t, nil
}

// ThoughtOrFallback parses raw and falls back to FallbackThought on failure.
func ThoughtOrFallback(raw string, validActions []string) Thought {
	t, err := ParseThought(raw, validActions)
	if err != nil {
		slog.Debug("thought fallback", "error", err)
		return FallbackThought()
	}
	return t
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ThoughtContext is the situational data a thought prompt is built from.
type ThoughtContext struct {
	Name        string
	Personality string
	Position    string
	Environment string
	Emotion     string
	Needs       string
	Lifecycle   string
	Nearby      []string
	Memories    string
	Actions     []string
}

// GenerateThought asks the model for a thought. Transport errors are
// returned; malformed responses yield FallbackThought with a nil error.
func GenerateThought(ctx context.Context, client *Client, tc ThoughtContext) (Thought, error) {
	if !client.Enabled() {
		return Thought{}, ErrNotConfigured
	}
	text, err := client.Generate(ctx, Request{
		System:    buildThoughtSystemPrompt(tc),
		Prompt:    buildThoughtUserPrompt(tc),
		MaxTokens: 200,
	})
	if err != nil {
		return Thought{}, fmt.Errorf("thought: %w", err)
	}
	return ThoughtOrFallback(text, tc.Actions), nil
}

func buildThoughtSystemPrompt(tc ThoughtContext) string {
	return fmt.Sprintf(`You are %s. %s
You live in a small meadow with a curious robot and other critters.
Think one short private thought about your situation and decide what to do next.

Respond ONLY with a JSON object:
{"thought": "...", "action": "one of: %s", "reason": "one sentence"}`,
		tc.Name, tc.Personality, strings.Join(tc.Actions, ", "))
}

func buildThoughtUserPrompt(tc ThoughtContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s. You are at %s.\n", tc.Environment, tc.Position)
	fmt.Fprintf(&b, "Feelings: %s\nBody: %s\n", tc.Emotion, tc.Needs)
	if tc.Lifecycle != "" {
		fmt.Fprintf(&b, "Life: %s\n", tc.Lifecycle)
	}
	if len(tc.Nearby) > 0 {
		b.WriteString("\nNearby:\n")
		for _, n := range tc.Nearby {
			fmt.Fprintf(&b, "- %s\n", n)
		}
	} else {
		b.WriteString("\nNobody is nearby.\n")
	}
	if tc.Memories != "" {
		fmt.Fprintf(&b, "\nYou remember:\n%s\n", tc.Memories)
	}
	b.WriteString("\nWhat are you thinking?")
	return b.String()
}

// DialogueContext is the situational data a dialogue prompt is built from.
type DialogueContext struct {
	Speaker      string
	Personality  string
	Listener     string
	Relationship string
	Emotion      string
	Needs        string
	Environment  string
	Memories     string
	Incoming     string // message being answered; empty when initiating
	Turn         int
	WrapUp       bool
}

// QuarrelMarker prefixes replies the model marks as confrontational.
const QuarrelMarker = "[quarrel]"

// DialogueRequest builds the generation request for one dialogue line.
func DialogueRequest(dc DialogueContext, history []Message) Request {
	system := fmt.Sprintf(`You are %s. %s
You are talking to %s, who is your %s.
%s
Reply with one or two short spoken sentences, in character, no narration.
If you are genuinely angry and arguing, start your reply with %s.`,
		dc.Speaker, dc.Personality, dc.Listener, dc.Relationship, dc.Emotion, QuarrelMarker)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\nYou feel: %s\n", dc.Environment, dc.Needs)
	if dc.Memories != "" {
		fmt.Fprintf(&b, "You remember:\n%s\n", dc.Memories)
	}
	if dc.Incoming != "" {
		fmt.Fprintf(&b, "\n%s says: %q\n", dc.Listener, dc.Incoming)
	} else {
		fmt.Fprintf(&b, "\nYou notice %s nearby and start a conversation.\n", dc.Listener)
	}
	if dc.WrapUp {
		b.WriteString("The conversation has gone on for a while; wrap it up naturally.\n")
	}
	return Request{System: system, Prompt: b.String(), History: history, MaxTokens: 120}
}

// SplitQuarrel strips the quarrel marker and reports whether it was present.
func SplitQuarrel(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) >= len(QuarrelMarker) && strings.EqualFold(trimmed[:len(QuarrelMarker)], QuarrelMarker) {
		return strings.TrimSpace(trimmed[len(QuarrelMarker):]), true
	}
	return trimmed, false
}
