// Package random is the single source of pseudorandomness for the service.
// Client names, amounts, processing delays and outcomes all draw from it so a
// fixed seed reproduces a whole run.
package random

import (
	"math/rand"
	"sync"
	"time"
)

// Source is the subset of *rand.Rand the service needs.
type Source interface {
	// Intn returns a value in [0, n). It panics if n <= 0.
	Intn(n int) int
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
}

// Locked wraps a *rand.Rand with a mutex; rand.Rand is not safe for
// concurrent use and timer callbacks draw from it in parallel.
type Locked struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

var _ Source = (*Locked)(nil)

// New returns a Source seeded with seed, or with the current time when seed is 0.
func New(seed int64) *Locked {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Locked{rnd: rand.New(rand.NewSource(seed))}
}

func (l *Locked) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rnd.Intn(n)
}

func (l *Locked) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rnd.Float64()
}

// Duration returns a duration uniform in [min, max). When max <= min it
// returns min.
func Duration(src Source, min, max time.Duration) time.Duration {
	span := max - min
	if span <= 0 {
		return min
	}
	return min + time.Duration(src.Float64()*float64(span))
}

// Pick returns a pseudorandom element of items. items must not be empty.
func Pick[T any](src Source, items []T) T {
	return items[src.Intn(len(items))]
}
