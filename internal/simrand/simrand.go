// Package simrand provides the seedable random source every stochastic
// part of the twin draws from, so a seed reproduces a run tick for tick.
package simrand

import (
	"io"
	"math/rand"

	"github.com/google/uuid"
)

// Source is the subset of *rand.Rand the simulation uses.
type Source interface {
	Float64() float64
	Intn(n int) int
	NormFloat64() float64
	io.Reader
}

// New returns a deterministic source for the given seed.
func New(seed int64) Source {
	return rand.New(rand.NewSource(seed))
}

// Jitter returns base scaled by a uniform factor in [1-frac, 1+frac].
func Jitter(src Source, base, frac float64) float64 {
	return base * (1 + (src.Float64()*2-1)*frac)
}

// Noise returns a uniform value in [-amp, amp].
func Noise(src Source, amp float64) float64 {
	return (src.Float64()*2 - 1) * amp
}

// Between returns a uniform value in [lo, hi).
func Between(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

// Chance reports true with probability p.
func Chance(src Source, p float64) bool {
	if p <= 0 {
		return false
	}
	return src.Float64() < p
}

// NewID returns prefix-<uuid> with the uuid drawn from src.
func NewID(src Source, prefix string) string {
	id, err := uuid.NewRandomFromReader(src)
	if err != nil {
		id = uuid.New()
	}
	return prefix + "-" + id.String()
}
