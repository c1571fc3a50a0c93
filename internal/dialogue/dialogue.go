// Package dialogue decides when entities talk and sequences the model calls
// that produce their lines. Only one generative exchange is in flight across
// the whole world at a time; results come back as world patches applied at
// the start of the next tick.
package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/critterlife/internal/emotion"
	"github.com/talgya/critterlife/internal/entropy"
	"github.com/talgya/critterlife/internal/lifecycle"
	"github.com/talgya/critterlife/internal/llm"
	"github.com/talgya/critterlife/internal/memory"
	"github.com/talgya/critterlife/internal/relationship"
	"github.com/talgya/critterlife/internal/spatial"
	"github.com/talgya/critterlife/internal/world"
)

// Config holds dialogue timing and odds. Durations are seconds of
// simulation clock unless typed otherwise.
type Config struct {
	SensorRadius        float64
	PairCooldown        float64
	SpawnGrace          float64
	Timeout             time.Duration
	ReleaseMin          float64
	ReleaseMax          float64
	BubbleSeconds       float64
	StuckSeconds        float64
	RobotTargetChance   float64 // per second
	CritterTargetChance float64 // per second
	WrapUpTurns         int
	MaxTurns            int
	MaxQuarrelTurns     int
	MemoryCount         int
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		SensorRadius:        10,
		PairCooldown:        120,
		SpawnGrace:          15,
		Timeout:             8 * time.Second,
		ReleaseMin:          3,
		ReleaseMax:          5,
		BubbleSeconds:       5,
		StuckSeconds:        10,
		RobotTargetChance:   0.12,
		CritterTargetChance: 0.06,
		WrapUpTurns:         4,
		MaxTurns:            6,
		MaxQuarrelTurns:     3,
		MemoryCount:         4,
	}
}

// QuarrelAnger is the anger above which a reply to a disliked listener
// counts as a quarrel even without the marker.
const QuarrelAnger = 0.6

// Generator produces one spoken line.
type Generator interface {
	Reply(ctx context.Context, dc llm.DialogueContext, history []llm.Message) (string, error)
}

// StreamingGenerator also reports the line as it is being produced.
type StreamingGenerator interface {
	Generator
	ReplyStream(ctx context.Context, dc llm.DialogueContext, history []llm.Message, onChunk func(string)) (string, error)
}

// ClientGenerator adapts an llm.Client.
type ClientGenerator struct {
	Client *llm.Client
}

// Reply calls the model with the dialogue prompt.
func (g ClientGenerator) Reply(ctx context.Context, dc llm.DialogueContext, history []llm.Message) (string, error) {
	return g.Client.Generate(ctx, llm.DialogueRequest(dc, history))
}

// ReplyStream is Reply in streaming mode.
func (g ClientGenerator) ReplyStream(ctx context.Context, dc llm.DialogueContext, history []llm.Message, onChunk func(string)) (string, error) {
	return g.Client.Stream(ctx, llm.DialogueRequest(dc, history), onChunk)
}

// partialStep is how many new characters a streamed line gains before the
// speaker's balloon is refreshed.
const partialStep = 12

// Speaker plays finished lines aloud. speech.Service satisfies it.
type Speaker interface {
	Speak(text string, isRobot bool) bool
}

// Orchestrator runs the initiate and respond paths.
type Orchestrator struct {
	cfg     Config
	gen     Generator
	store   *world.Store
	src     entropy.Source
	ctx     context.Context
	speaker Speaker

	wg sync.WaitGroup
}

// New creates an orchestrator. A nil generator disables dialogue.
func New(ctx context.Context, store *world.Store, gen Generator, cfg Config, src entropy.Source) *Orchestrator {
	return &Orchestrator{cfg: cfg, gen: gen, store: store, src: entropy.Or(src), ctx: ctx}
}

// SetSpeaker routes finished lines to text-to-speech.
func (o *Orchestrator) SetSpeaker(s Speaker) {
	o.speaker = s
}

// Enabled reports whether a generator is configured.
func (o *Orchestrator) Enabled() bool {
	return o != nil && o.gen != nil
}

// Wait blocks until every in-flight call has posted its result.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Step runs the dialogue checks for one living entity. It is called from
// the tick with the world write-locked.
func (o *Orchestrator) Step(w *world.World, id string, dt float64) {
	if !o.Enabled() {
		return
	}
	kind := world.KindOf(id)
	if kind != world.KindRobot && kind != world.KindCritter {
		return
	}
	if lc, ok := w.Lifecycle[id]; ok && lc.HealthStatus == lifecycle.Dying {
		return
	}
	if o.respond(w, id) {
		return
	}
	o.initiate(w, id, dt)
}

// initiate rolls for starting a conversation with a nearby entity.
func (o *Orchestrator) initiate(w *world.World, id string, dt float64) {
	now := w.Clock()
	if _, busy := w.Runtime.InDialogue[id]; busy {
		return
	}
	if now-w.Registry[id].BornAt < o.cfg.SpawnGrace {
		return
	}
	if !w.Runtime.Busy.Free(now) {
		return
	}
	for _, n := range w.Nearby(id, o.cfg.SensorRadius) {
		if n.Kind != world.KindRobot && n.Kind != world.KindCritter {
			continue
		}
		if _, busy := w.Runtime.InDialogue[n.ID]; busy {
			continue
		}
		if until, ok := w.Runtime.PairCooldowns[world.PairKey(id, n.ID)]; ok && now < until {
			continue
		}
		if !entropy.Chance(o.src, TriggerChance(w, id, n.ID, dt, o.cfg)) {
			continue
		}
		o.start(w, id, n.ID)
		return
	}
}

// TriggerChance is the per-frame probability that id opens a conversation
// with other: 1 - (1 - base*mult)^dt, where base depends on whether other is
// the robot and mult folds in affinity and curiosity.
func TriggerChance(w *world.World, id, other string, dt float64, cfg Config) float64 {
	if dt <= 0 {
		return 0
	}
	base := cfg.CritterTargetChance
	if other == world.RobotID {
		base = cfg.RobotTargetChance
	}
	aff := relationship.GetAffinity(w.Relationships, id, other)
	rate := spatial.Clamp01(base * relationship.DialogueMultiplier(aff) * curiosityMultiplier(w, id))
	return 1 - math.Pow(1-rate, dt)
}

func curiosityMultiplier(w *world.World, id string) float64 {
	e, ok := w.Emotions[id]
	if !ok {
		e = emotion.Baseline()
	}
	p := w.Registry[id].Personality
	return spatial.Clamp(0.5+e.Curiosity+0.5*p.SocialBias, 0.1, 2)
}

// call is one in-flight generation.
type call struct {
	convID   string
	speaker  string
	listener string
	dc       llm.DialogueContext
	history  []llm.Message
}

// start opens a conversation and launches the first line.
func (o *Orchestrator) start(w *world.World, speaker, listener string) {
	if !w.TryAcquireBusy(speaker) {
		return
	}
	now := w.Clock()
	conv := world.Conversation{ID: uuid.NewString(), A: speaker, B: listener, Started: now, LastAt: now}
	w.Runtime.Conversations[conv.ID] = conv
	w.Runtime.InDialogue[speaker] = now
	w.Runtime.InDialogue[listener] = now
	w.Runtime.PairCooldowns[world.PairKey(speaker, listener)] = now + o.cfg.PairCooldown

	slog.Debug("dialogue start", "speaker", speaker, "listener", listener)
	o.launch(w, conv, speaker, listener, "")
}

// respond answers the oldest message waiting for id. Reports whether a
// reply was launched.
func (o *Orchestrator) respond(w *world.World, id string) bool {
	q := w.Runtime.Inbox[id]
	if len(q) == 0 || !w.Runtime.Busy.Free(w.Clock()) {
		return false
	}
	msg, _ := w.NextMessage(id)
	now := w.Clock()

	conv, ok := w.Runtime.Conversations[msg.ConversationID]
	if !ok {
		conv = world.Conversation{ID: uuid.NewString(), A: msg.From, B: id, Started: now}
		conv.Lines = append(conv.Lines, world.Line{Speaker: msg.From, Text: msg.Text})
	}
	if !w.TryAcquireBusy(id) {
		return false
	}
	conv.LastAt = now
	w.Runtime.Conversations[conv.ID] = conv
	w.Runtime.InDialogue[id] = now
	if w.IsAlive(msg.From) {
		w.Runtime.InDialogue[msg.From] = now
	}
	o.launch(w, conv, id, msg.From, msg.Text)
	return true
}

// launch snapshots the prompt inputs and runs the model call off the tick.
func (o *Orchestrator) launch(w *world.World, conv world.Conversation, speaker, listener, incoming string) {
	c := call{
		convID:   conv.ID,
		speaker:  speaker,
		listener: listener,
		dc:       o.context(w, conv, speaker, listener, incoming),
		history:  history(conv, speaker),
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(o.ctx, o.cfg.Timeout)
		defer cancel()
		text, err := o.reply(ctx, c)
		o.store.Post(func(w *world.World) { o.complete(w, c, text, err) })
	}()
}

// reply runs the generator. Streaming generators post the partial line to
// the speaker's balloon as it grows.
func (o *Orchestrator) reply(ctx context.Context, c call) (string, error) {
	sg, ok := o.gen.(StreamingGenerator)
	if !ok {
		return o.gen.Reply(ctx, c.dc, c.history)
	}
	var (
		partial strings.Builder
		shown   int
	)
	return sg.ReplyStream(ctx, c.dc, c.history, func(chunk string) {
		partial.WriteString(chunk)
		if partial.Len()-shown < partialStep {
			return
		}
		shown = partial.Len()
		text, quarrel := llm.SplitQuarrel(partial.String())
		if text == "" {
			return
		}
		o.store.Post(func(w *world.World) {
			if _, live := w.Runtime.Conversations[c.convID]; !live {
				return
			}
			w.SetBubble(c.speaker, world.Bubble{Text: text + "...", Target: c.listener, Quarrel: quarrel}, o.cfg.BubbleSeconds)
		})
	})
}

func (o *Orchestrator) context(w *world.World, conv world.Conversation, speaker, listener, incoming string) llm.DialogueContext {
	p := w.Persona(speaker)
	aff := relationship.GetAffinity(w.Relationships, speaker, listener)
	return llm.DialogueContext{
		Speaker:      p.Name,
		Personality:  p.Personality,
		Listener:     w.DisplayName(listener),
		Relationship: relationship.Describe(aff),
		Emotion:      p.Emotion,
		Needs:        p.Needs,
		Environment:  p.Environment,
		Memories:     w.RelevantMemories(speaker, []string{listener}, o.cfg.MemoryCount),
		Incoming:     incoming,
		Turn:         conv.Turns,
		WrapUp:       conv.Turns >= o.cfg.WrapUpTurns,
	}
}

// history maps prior lines into chat roles from the speaker's point of view.
func history(conv world.Conversation, speaker string) []llm.Message {
	lines := conv.Lines
	if n := len(lines); n > 0 {
		lines = lines[:n-1] // the last line is sent as the incoming message
	}
	out := make([]llm.Message, 0, len(lines))
	for _, l := range lines {
		role := "user"
		if l.Speaker == speaker {
			role = "assistant"
		}
		out = append(out, llm.Message{Role: role, Content: l.Text})
	}
	return out
}

func (o *Orchestrator) releaseAfter() float64 {
	return entropy.Range(o.src, o.cfg.ReleaseMin, o.cfg.ReleaseMax)
}

// complete applies a finished call. It re-reads the world rather than
// trusting anything captured at launch.
func (o *Orchestrator) complete(w *world.World, c call, text string, err error) {
	if g := w.Runtime.Busy; g.Held && g.Owner == c.speaker && g.ReleaseAt == 0 {
		w.ReleaseBusy(o.releaseAfter())
	}

	conv, live := w.Runtime.Conversations[c.convID]
	if err != nil || text == "" {
		slog.Warn("dialogue failed", "speaker", c.speaker, "listener", c.listener, "error", err)
		o.end(w, c.convID, c.speaker, c.listener)
		return
	}
	if !live || !w.IsAlive(c.speaker) {
		o.end(w, c.convID, c.speaker, c.listener)
		return
	}

	text, quarrel := llm.SplitQuarrel(text)
	if text == "" {
		o.end(w, c.convID, c.speaker, c.listener)
		return
	}
	aff := relationship.GetAffinity(w.Relationships, c.speaker, c.listener)
	if w.Emotions[c.speaker].Anger > QuarrelAnger && aff < 0 {
		quarrel = true
	}

	now := w.Clock()
	conv.Turns++
	conv.LastAt = now
	conv.Lines = append(conv.Lines, world.Line{Speaker: c.speaker, Text: text})
	if quarrel {
		conv.QuarrelTurns++
	}
	w.Runtime.Conversations[c.convID] = conv

	o.record(w, c, text, quarrel, conv.Turns == 1)

	listenerAlive := w.IsAlive(c.listener)
	switch {
	case !listenerAlive:
		o.end(w, c.convID, c.speaker, c.listener)
	case quarrel && conv.QuarrelTurns >= o.cfg.MaxQuarrelTurns:
		slog.Debug("quarrel force-cleared", "a", conv.A, "b", conv.B, "turns", conv.QuarrelTurns)
		o.end(w, c.convID, c.speaker, c.listener)
	case conv.Turns >= o.cfg.MaxTurns:
		o.end(w, c.convID, c.speaker, c.listener)
	default:
		w.Runtime.InDialogue[c.speaker] = now
		w.Runtime.InDialogue[c.listener] = now
		w.Deliver(world.Message{ConversationID: c.convID, From: c.speaker, To: c.listener, Text: text})
	}
}

// record applies the effects of one spoken line.
func (o *Orchestrator) record(w *world.World, c call, text string, quarrel, first bool) {
	speakerName, listenerName := w.DisplayName(c.speaker), w.DisplayName(c.listener)
	at := w.Now()

	typ, importance, delta, ev, kind := memory.Dialogue, 0.5, relationship.FriendlyDelta, emotion.FriendlyChat, world.LogDialogue
	if quarrel {
		typ, importance, delta, ev, kind = memory.Quarrel, 0.7, relationship.QuarrelDelta, emotion.Quarrel, world.LogQuarrel
		w.Scores.Quarrels++
	}
	if first {
		w.Scores.Conversations++
	}

	said := memory.New(fmt.Sprintf("I said to %s: %q", listenerName, text), typ, importance, at, c.listener)
	said.EmotionalWeight = emotionalWeight(quarrel)
	w.AddMemory(c.speaker, said)
	if w.IsAlive(c.listener) {
		heard := memory.New(fmt.Sprintf("%s said to me: %q", speakerName, text), typ, importance, at, c.speaker)
		heard.EmotionalWeight = emotionalWeight(quarrel)
		w.AddMemory(c.listener, heard)
		w.ApplyEmotion(c.listener, ev, 1)
	}
	w.ApplyEmotion(c.speaker, ev, 1)
	if _, known := w.Registry[c.listener]; known {
		w.AdjustRelationship(c.speaker, c.listener, delta)
	}
	w.SetBubble(c.speaker, world.Bubble{Text: text, Target: c.listener, Quarrel: quarrel}, o.cfg.BubbleSeconds)
	w.AddLog(c.speaker, kind, fmt.Sprintf("%s to %s: %s", speakerName, listenerName, text))

	if o.speaker != nil {
		o.speaker.Speak(text, c.speaker == world.RobotID)
	}
}

func emotionalWeight(quarrel bool) float64 {
	if quarrel {
		return -0.6
	}
	return 0.3
}

// end closes a conversation and clears both participants.
func (o *Orchestrator) end(w *world.World, convID, a, b string) {
	delete(w.Runtime.Conversations, convID)
	delete(w.Runtime.InDialogue, a)
	delete(w.Runtime.InDialogue, b)
	for _, id := range []string{a, b} {
		q := w.Runtime.Inbox[id][:0:0]
		for _, m := range w.Runtime.Inbox[id] {
			if m.ConversationID != convID {
				q = append(q, m)
			}
		}
		if len(q) == 0 {
			delete(w.Runtime.Inbox, id)
		} else {
			w.Runtime.Inbox[id] = q
		}
	}
}

// Failsafe clears "in dialogue" flags held longer than StuckSeconds without
// progress. Participants of the call currently in flight are left alone;
// the model timeout bounds those.
func (o *Orchestrator) Failsafe(w *world.World) {
	now := w.Clock()
	inFlight := map[string]bool{}
	if g := w.Runtime.Busy; g.Held && g.ReleaseAt == 0 {
		inFlight[g.Owner] = true
		for _, c := range w.Runtime.Conversations {
			if c.A == g.Owner || c.B == g.Owner {
				inFlight[c.A], inFlight[c.B] = true, true
			}
		}
		// A call cannot outlive its timeout; reopen a gate that has.
		if now-g.Since > o.cfg.StuckSeconds+o.cfg.Timeout.Seconds() {
			slog.Warn("dialogue gate stuck, releasing", "owner", g.Owner)
			w.Runtime.Busy = world.Gate{}
		}
	}
	for id, since := range w.Runtime.InDialogue {
		if inFlight[id] || now-since <= o.cfg.StuckSeconds {
			continue
		}
		slog.Debug("dialogue failsafe", "entity", id, "held", now-since)
		delete(w.Runtime.InDialogue, id)
		for cid, c := range w.Runtime.Conversations {
			if c.A == id || c.B == id {
				o.end(w, cid, c.A, c.B)
			}
		}
	}
}
