package world

import (
	"github.com/talgya/critterlife/internal/activity"
	"github.com/talgya/critterlife/internal/spatial"
	"github.com/talgya/critterlife/internal/wildlife"
)

// Bubble is a transient speech or thought balloon shown above an entity.
type Bubble struct {
	Text    string  `json:"text"`
	Target  string  `json:"target,omitempty"`
	Quarrel bool    `json:"quarrel,omitempty"`
	Expires float64 `json:"expires"`
}

// Message is a line addressed to an entity and waiting for its reply.
type Message struct {
	ConversationID string  `json:"conversationId"`
	From           string  `json:"from"`
	To             string  `json:"to"`
	Text           string  `json:"text"`
	At             float64 `json:"at"`
}

// Line is one utterance in a conversation.
type Line struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Conversation tracks a back-and-forth between two entities.
type Conversation struct {
	ID           string  `json:"id"`
	A            string  `json:"a"`
	B            string  `json:"b"`
	Turns        int     `json:"turns"`
	QuarrelTurns int     `json:"quarrelTurns"`
	Started      float64 `json:"started"`
	LastAt       float64 `json:"lastAt"`
	Lines        []Line  `json:"lines,omitempty"`
}

// Other returns the participant that is not id.
func (c Conversation) Other(id string) string {
	if c.A == id {
		return c.B
	}
	return c.A
}

// Gate is the global single-flight dialogue lock. Once the in-flight call
// finishes the gate stays closed until ReleaseAt.
type Gate struct {
	Held      bool    `json:"held"`
	Owner     string  `json:"owner,omitempty"`
	Since     float64 `json:"since"`
	ReleaseAt float64 `json:"releaseAt,omitempty"` // 0 while the call is in flight
}

// Free reports whether the gate can be taken at now.
func (g Gate) Free(now float64) bool {
	return !g.Held || (g.ReleaseAt > 0 && now >= g.ReleaseAt)
}

// Runtime is state that never reaches the persisted blob.
type Runtime struct {
	Positions     map[string]spatial.Vec3
	Activities    map[string]activity.State
	Animals       map[string]wildlife.State
	Bubbles       map[string]Bubble
	Thoughts      map[string]Bubble
	Intents       map[string]string
	Inbox         map[string][]Message
	InDialogue    map[string]float64 // id -> clock when the flag was set
	Thinking      map[string]float64
	NextThinkAt   map[string]float64
	PairCooldowns map[string]float64 // ordered pair key -> clock when it lapses
	Conversations map[string]Conversation
	DyingSince    map[string]float64
	CameraTarget  string
	Busy          Gate
}

func newRuntime() Runtime {
	return Runtime{
		Positions:     map[string]spatial.Vec3{},
		Activities:    map[string]activity.State{},
		Animals:       map[string]wildlife.State{},
		Bubbles:       map[string]Bubble{},
		Thoughts:      map[string]Bubble{},
		Intents:       map[string]string{},
		Inbox:         map[string][]Message{},
		InDialogue:    map[string]float64{},
		Thinking:      map[string]float64{},
		NextThinkAt:   map[string]float64{},
		PairCooldowns: map[string]float64{},
		Conversations: map[string]Conversation{},
		DyingSince:    map[string]float64{},
	}
}

// PairKey is the ordered key used for pairwise dialogue cooldowns.
func PairKey(from, to string) string {
	return from + ">" + to
}

// TryAcquireBusy takes the dialogue gate for owner. Only one generative
// exchange may be in flight across the whole world.
func (w *World) TryAcquireBusy(owner string) bool {
	now := w.Clock()
	if !w.Runtime.Busy.Free(now) {
		return false
	}
	w.Runtime.Busy = Gate{Held: true, Owner: owner, Since: now}
	return true
}

// ReleaseBusy schedules the gate to reopen after cooldown seconds.
func (w *World) ReleaseBusy(cooldown float64) {
	if !w.Runtime.Busy.Held {
		return
	}
	w.Runtime.Busy.ReleaseAt = w.Clock() + cooldown
}

// SetBubble shows a speech balloon above id for ttl seconds.
func (w *World) SetBubble(id string, b Bubble, ttl float64) {
	b.Expires = w.Clock() + ttl
	w.Runtime.Bubbles[id] = b
}

// SetThought shows a thought balloon above id for ttl seconds.
func (w *World) SetThought(id, text string, ttl float64) {
	w.Runtime.Thoughts[id] = Bubble{Text: text, Expires: w.Clock() + ttl}
}

// ExpireBubbles drops balloons whose time is up.
func (w *World) ExpireBubbles() {
	now := w.Clock()
	for id, b := range w.Runtime.Bubbles {
		if now >= b.Expires {
			delete(w.Runtime.Bubbles, id)
		}
	}
	for id, b := range w.Runtime.Thoughts {
		if now >= b.Expires {
			delete(w.Runtime.Thoughts, id)
		}
	}
}

// SetIntent records an AI-suggested action for id's next activity selection.
func (w *World) SetIntent(id, action string) {
	if action == "" {
		delete(w.Runtime.Intents, id)
		return
	}
	w.Runtime.Intents[id] = action
}

// TakeIntent returns and clears id's pending intent.
func (w *World) TakeIntent(id string) string {
	a := w.Runtime.Intents[id]
	delete(w.Runtime.Intents, id)
	return a
}

// Deliver queues a message in the recipient's inbox.
func (w *World) Deliver(m Message) {
	m.At = w.Clock()
	w.Runtime.Inbox[m.To] = append(w.Runtime.Inbox[m.To], m)
}

// NextMessage pops the oldest message waiting for id.
func (w *World) NextMessage(id string) (Message, bool) {
	q := w.Runtime.Inbox[id]
	if len(q) == 0 {
		return Message{}, false
	}
	m := q[0]
	if len(q) == 1 {
		delete(w.Runtime.Inbox, id)
	} else {
		w.Runtime.Inbox[id] = q[1:]
	}
	return m, true
}

// SetCameraTarget points observers at an entity.
func (w *World) SetCameraTarget(id string) error {
	if id != "" && !w.IsAlive(id) {
		return ErrUnknownEntity
	}
	w.Runtime.CameraTarget = id
	return nil
}
