package world

import (
	"sync"

	"github.com/talgya/critterlife/internal/environment"
	"github.com/talgya/critterlife/internal/spatial"
)

// Patch is a deferred mutation. Asynchronous work (model calls, API
// requests) posts patches; the tick applies them at its start so the world
// has a single writer per tick.
type Patch func(w *World)

// Store guards a World for concurrent readers and the single tick writer.
type Store struct {
	mu sync.RWMutex
	w  *World

	pmu     sync.Mutex
	pending []Patch
}

// NewStore wraps w.
func NewStore(w *World) *Store {
	w.ensure()
	return &Store{w: w}
}

// Update runs fn with exclusive access.
func (s *Store) Update(fn func(w *World)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.w)
}

// View runs fn with shared access. fn must not mutate w.
func (s *Store) View(fn func(w *World)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.w)
}

// Replace swaps in a different world (after a load).
func (s *Store) Replace(w *World) {
	w.ensure()
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

// Post queues a patch for the next Drain. Safe from any goroutine.
func (s *Store) Post(p Patch) {
	if p == nil {
		return
	}
	s.pmu.Lock()
	s.pending = append(s.pending, p)
	s.pmu.Unlock()
}

// Pending reports how many patches are queued.
func (s *Store) Pending() int {
	s.pmu.Lock()
	defer s.pmu.Unlock()
	return len(s.pending)
}

// Drain applies queued patches in post order. The caller must hold the
// write side, so Drain is meant to run inside Update.
func (s *Store) Drain(w *World) int {
	s.pmu.Lock()
	batch := s.pending
	s.pending = nil
	s.pmu.Unlock()
	for _, p := range batch {
		p(w)
	}
	return len(batch)
}

// Snapshot returns a deep copy for observers.
func (s *Store) Snapshot() Snapshot {
	var snap Snapshot
	s.View(func(w *World) { snap = TakeSnapshot(w) })
	return snap
}

// Export serializes the persisted slices.
func (s *Store) Export() ([]byte, error) {
	var (
		data []byte
		err  error
	)
	s.View(func(w *World) { data, err = w.Export() })
	return data, err
}

// The following are the collaborator-facing mutators. They validate
// against the current state, then post the change for the next tick.

// MoveEntity posts a position update.
func (s *Store) MoveEntity(id string, pos spatial.Vec3) error {
	if err := s.checkAlive(id); err != nil {
		return err
	}
	// The entity may have died before the patch lands; that is a no-op.
	s.Post(func(w *World) { _ = w.SetPosition(id, pos) })
	return nil
}

// RequestWeather posts a weather target.
func (s *Store) RequestWeather(target environment.Weather) {
	s.Post(func(w *World) { w.SetWeatherTarget(target) })
}

// SendMessage posts a message into to's inbox, driving the dialogue
// respond path.
func (s *Store) SendMessage(from, to, text string) error {
	if err := s.checkAlive(to); err != nil {
		return err
	}
	s.Post(func(w *World) {
		w.Deliver(Message{From: from, To: to, Text: text})
	})
	return nil
}

// FocusCamera posts a camera target change.
func (s *Store) FocusCamera(id string) error {
	if id != "" {
		if err := s.checkAlive(id); err != nil {
			return err
		}
	}
	s.Post(func(w *World) { _ = w.SetCameraTarget(id) })
	return nil
}

// PlaceBuilding posts a new building.
func (s *Store) PlaceBuilding(b environment.Building) {
	s.Post(func(w *World) { w.AddBuilding(b) })
}

func (s *Store) checkAlive(id string) error {
	var ok bool
	s.View(func(w *World) { ok = w.IsAlive(id) })
	if !ok {
		return ErrUnknownEntity
	}
	return nil
}
