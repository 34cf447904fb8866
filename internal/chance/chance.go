// Package chance provides the seedable random source shared by the engines.
package chance

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Source is the randomness the engines draw from
type Source interface {
	// Float64 returns a value in [0.0, 1.0)
	Float64() float64
	// IntN returns a value in [0, n); n must be positive
	IntN(n int) int
}

// Locked is a Source safe for concurrent use
type Locked struct {
	mu sync.Mutex
	r  *rand.Rand
}

// New creates a Source with a fixed seed. A zero seed is replaced by the clock.
func New(seed uint64) *Locked {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Locked{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Float64 implements Source
func (l *Locked) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// IntN implements Source
func (l *Locked) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// Uniform samples [lo, hi] and rounds to two decimals, which keeps the
// result inside the bounds
func Uniform(src Source, lo, hi float64) float64 {
	v := lo + src.Float64()*(hi-lo)
	return math.Round(v*100) / 100
}

// Pick returns a uniformly chosen element; items must not be empty
func Pick[T any](src Source, items []T) T {
	return items[src.IntN(len(items))]
}
