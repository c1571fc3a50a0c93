// Package speech plays dialogue lines through a text-to-speech provider.
// Calls are fire-and-forget: lines are queued per provider and played one
// at a time by a worker goroutine.
package speech

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Voice selects the voice profile.
type Voice string

const (
	RobotVoice   Voice = "robot"
	CritterVoice Voice = "critter"
)

// Synthesizer renders and plays one line, blocking until playback ends or
// ctx is cancelled.
type Synthesizer interface {
	Speak(ctx context.Context, text string, voice Voice) error
}

// DefaultQueueSize bounds pending lines per provider.
const DefaultQueueSize = 8

type line struct {
	text  string
	voice Voice
}

// Queue serializes playback for one provider.
type Queue struct {
	name  string
	synth Synthesizer
	lines chan line

	mu     sync.Mutex
	cancel context.CancelFunc // in-flight line
	done   chan struct{}
}

func newQueue(name string, synth Synthesizer, size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{name: name, synth: synth, lines: make(chan line, size), done: make(chan struct{})}
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case <-ctx.Done():
			return
		case l, ok := <-q.lines:
			if !ok {
				return
			}
			q.play(ctx, l)
		}
	}
}

func (q *Queue) play(parent context.Context, l line) {
	ctx, cancel := context.WithCancel(parent)
	q.mu.Lock()
	q.cancel = cancel
	q.mu.Unlock()

	err := q.synth.Speak(ctx, l.text, l.voice)
	cancel()

	q.mu.Lock()
	q.cancel = nil
	q.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("speech failed", "provider", q.name, "error", err)
	}
}

// enqueue adds a line without blocking. Returns false when full.
func (q *Queue) enqueue(l line) bool {
	select {
	case q.lines <- l:
		return true
	default:
		return false
	}
}

// flush drops pending lines and cancels the one playing.
func (q *Queue) flush() {
drain:
	for {
		select {
		case <-q.lines:
		default:
			break drain
		}
	}
	q.mu.Lock()
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Unlock()
}

// Service routes lines to the active provider's queue.
type Service struct {
	mu      sync.Mutex
	queues  map[string]*Queue
	active  string
	enabled bool
	ctx     context.Context
	stop    context.CancelFunc
}

// NewService creates a service whose workers stop when ctx is done or Close is called.
func NewService(ctx context.Context) *Service {
	ctx, stop := context.WithCancel(ctx)
	return &Service{queues: make(map[string]*Queue), enabled: true, ctx: ctx, stop: stop}
}

// Register adds a provider and starts its worker. The first registered
// provider becomes active.
func (s *Service) Register(name string, synth Synthesizer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queues[name]; ok {
		return
	}
	q := newQueue(name, synth, DefaultQueueSize)
	s.queues[name] = q
	if s.active == "" {
		s.active = name
	}
	go q.run(s.ctx)
}

// SetActive switches the provider new lines go to.
func (s *Service) SetActive(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queues[name]; !ok {
		return false
	}
	s.active = name
	return true
}

// SetEnabled toggles speech; disabling also stops playback.
func (s *Service) SetEnabled(on bool) {
	s.mu.Lock()
	s.enabled = on
	s.mu.Unlock()
	if !on {
		s.StopAll()
	}
}

// Speak queues text in the robot or critter voice. It never blocks and
// reports whether the line was accepted.
func (s *Service) Speak(text string, isRobot bool) bool {
	if s == nil || text == "" {
		return false
	}
	s.mu.Lock()
	q, ok := s.queues[s.active]
	enabled := s.enabled
	s.mu.Unlock()
	if !ok || !enabled {
		return false
	}
	v := CritterVoice
	if isRobot {
		v = RobotVoice
	}
	if !q.enqueue(line{text: text, voice: v}) {
		slog.Debug("speech queue full, dropping line", "provider", q.name)
		return false
	}
	return true
}

// StopAll flushes every queue and halts in-flight playback.
func (s *Service) StopAll() {
	if s == nil {
		return
	}
	s.mu.Lock()
	queues := make([]*Queue, 0, len(s.queues))
	for _, q := range s.queues {
		queues = append(queues, q)
	}
	s.mu.Unlock()
	for _, q := range queues {
		q.flush()
	}
}

// Close stops all workers and waits for them to exit.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.StopAll()
	s.stop()
	s.mu.Lock()
	queues := make([]*Queue, 0, len(s.queues))
	for _, q := range s.queues {
		queues = append(queues, q)
	}
	s.mu.Unlock()
	for _, q := range queues {
		<-q.done
	}
}

// LogSynthesizer "plays" lines by logging them. Used by the headless host.
type LogSynthesizer struct{}

// Speak logs the line.
func (LogSynthesizer) Speak(_ context.Context, text string, voice Voice) error {
	slog.Info("speech", "voice", voice, "text", text)
	return nil
}
