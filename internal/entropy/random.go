// Package entropy provides the randomness sources the simulation draws from.
// Every probabilistic branch (sickness onset, dialogue triggers, hazard rolls,
// trait mutation) takes a Source so tests can replay the exact same world.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
	"sync"
)

// Source yields uniform random numbers.
type Source interface {
	Float64() float64 // [0, 1)
	Intn(n int) int   // [0, n)
}

// Seeded is a deterministic Source backed by math/rand.
// Safe for concurrent use; dialogue and thinking goroutines may roll from it.
type Seeded struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSeeded creates a deterministic source from seed.
func NewSeeded(seed int64) *Seeded {
	return &Seeded{rng: mrand.New(mrand.NewSource(seed))}
}

// Float64 returns a random float64 in [0, 1).
func (s *Seeded) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Intn returns a random int in [0, n). Returns 0 when n <= 0.
func (s *Seeded) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// Crypto is a non-deterministic Source backed by crypto/rand.
type Crypto struct{}

// Float64 returns a random float64 in [0, 1).
func (Crypto) Float64() float64 {
	return cryptoRandFloat()
}

// Intn returns a random int in [0, n). Returns 0 when n <= 0.
func (Crypto) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	v := int(cryptoRandFloat() * float64(n))
	if v >= n {
		v = n - 1
	}
	return v
}

// cryptoRandFloat generates a random float64 using crypto/rand.
func cryptoRandFloat() float64 {
	var buf [8]byte
	_, err := rand.Read(buf[:])
	if err != nil {
		// This should never happen but return 0.5 as a safe default.
		return 0.5
	}
	// Use only 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}

// Range returns a uniform value in [lo, hi).
func Range(src Source, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + src.Float64()*(hi-lo)
}

// Chance reports whether a Bernoulli trial with probability p succeeds.
func Chance(src Source, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return src.Float64() < p
}

// Or returns src, or a crypto-backed source when src is nil.
func Or(src Source) Source {
	if src == nil {
		return Crypto{}
	}
	return src
}

// Script is a Source that replays fixed values, then repeats the last one.
// Used by tests to force specific branches.
type Script struct {
	mu     sync.Mutex
	Values []float64
	pos    int
}

// Float64 returns the next scripted value.
func (s *Script) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Values) == 0 {
		return 0
	}
	if s.pos >= len(s.Values) {
		return s.Values[len(s.Values)-1]
	}
	v := s.Values[s.pos]
	s.pos++
	return v
}

// Intn maps the next scripted value into [0, n).
func (s *Script) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	v := int(s.Float64() * float64(n))
	if v >= n {
		v = n - 1
	}
	return v
}
