package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ChronicleData is the raw material for one day's chronicle.
type ChronicleData struct {
	Day         int
	Season      string
	Weather     string
	Critters    int
	Animals     int
	Births      []string
	Deaths      []string
	Dialogue    []string
	Hazards     []string
	Achievement []string
}

// Chronicle is a generated digest of a day in the meadow.
type Chronicle struct {
	GeneratedAt time.Time `json:"generatedAt"`
	Day         int       `json:"day"`
	Content     string    `json:"content"`
	Generated   bool      `json:"generated"` // false when the plain fallback was used
}

// GenerateChronicle writes the day's digest with the model, falling back
// to a plain report when the client is disabled or the call fails.
func GenerateChronicle(ctx context.Context, client *Client, data ChronicleData) Chronicle {
	out := Chronicle{GeneratedAt: time.Now(), Day: data.Day}
	if !client.Enabled() {
		out.Content = fallbackChronicle(data)
		return out
	}

	system := `You write "The Meadow Gazette", a cheerful one-page digest about a small meadow where a helpful robot lives among curious critters and wild animals.
Keep it warm and under 250 words. Mention the weather, the notable events, and who is doing well. Do not mention that this is a simulation.`

	content, err := client.Generate(ctx, Request{System: system, Prompt: chroniclePrompt(data), MaxTokens: 500})
	if err != nil || strings.TrimSpace(content) == "" {
		out.Content = fallbackChronicle(data)
		return out
	}
	out.Content = strings.TrimSpace(content)
	out.Generated = true
	return out
}

func chroniclePrompt(data ChronicleData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the Gazette for day %d (%s, %s).\n", data.Day, data.Season, data.Weather)
	fmt.Fprintf(&b, "Population: %d critters, %d wild animals.\n\n", data.Critters, data.Animals)
	section := func(title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s:\n", title)
		for _, l := range lines {
			fmt.Fprintf(&b, "- %s\n", l)
		}
		b.WriteString("\n")
	}
	section("BIRTHS", data.Births)
	section("DEATHS", data.Deaths)
	section("CONVERSATIONS", data.Dialogue)
	section("HAZARDS", data.Hazards)
	section("ACHIEVEMENTS", data.Achievement)
	return b.String()
}

func fallbackChronicle(data ChronicleData) string {
	var b strings.Builder

	fmt.Fprintf(&b, "THE MEADOW GAZETTE\n")
	fmt.Fprintf(&b, "==================\n")
	fmt.Fprintf(&b, "Day %d, %s. The sky is %s.\n\n", data.Day, data.Season, data.Weather)
	fmt.Fprintf(&b, "The meadow counts %d critters and %d wild animals.\n\n", data.Critters, data.Animals)

	list := func(title string, lines []string, max int) {
		if len(lines) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s\n", title)
		for i, l := range lines {
			if i >= max {
				fmt.Fprintf(&b, "...and %d more.\n", len(lines)-max)
				break
			}
			fmt.Fprintf(&b, "- %s\n", l)
		}
		b.WriteString("\n")
	}
	list("BIRTHS", data.Births, 5)
	list("IN MEMORIAM", data.Deaths, 5)
	list("OVERHEARD", data.Dialogue, 3)
	list("WEATHER WATCH", data.Hazards, 3)
	list("MILESTONES", data.Achievement, 5)

	return strings.TrimRight(b.String(), "\n")
}

// BiographyContext holds what is known about one entity.
type BiographyContext struct {
	Name          string
	Kind          string
	Species       string
	Generation    int
	Age           float64 // minutes
	Alive         bool
	Personality   string
	Mood          string
	Relationships []string // e.g. "fond of Pip"
	Memories      []string // most important first
	Events        []string // activity log lines, oldest first
}

// GenerateBiography writes a short life story.
func GenerateBiography(ctx context.Context, client *Client, bc BiographyContext) (string, error) {
	if !client.Enabled() {
		return "", ErrNotConfigured
	}

	details := []string{
		"Name: " + bc.Name,
		"Kind: " + bc.Kind,
	}
	if bc.Species != "" {
		details = append(details, "Species: "+bc.Species)
	}
	if bc.Generation > 0 {
		details = append(details, fmt.Sprintf("Generation: %d", bc.Generation))
	}
	details = append(details, fmt.Sprintf("Age: %.0f minutes", bc.Age))
	if !bc.Alive {
		details = append(details, "Status: has passed away")
	}
	if bc.Personality != "" {
		details = append(details, "Personality: "+bc.Personality)
	}
	if bc.Mood != "" {
		details = append(details, "Mood: "+bc.Mood)
	}
	if len(bc.Relationships) > 0 {
		details = append(details, "Relationships: "+strings.Join(bc.Relationships, "; "))
	}
	if len(bc.Memories) > 0 {
		details = append(details, "Memories: "+strings.Join(bc.Memories, "; "))
	}
	if len(bc.Events) > 0 {
		details = append(details, "Life events: "+strings.Join(bc.Events, "; "))
	}

	system := `You are the storyteller of a small meadow. Write a gentle biography (120-200 words) of this inhabitant, drawing on their personality, relationships and life events. Do not mention that this is a simulation.`
	prompt := "Write a biography for this meadow inhabitant:\n\n" + strings.Join(details, "\n")
	return client.Generate(ctx, Request{System: system, Prompt: prompt, MaxTokens: 400})
}
