// Package rng supplies the uniform [0,1) samplers a voter round consumes
// for both threshold selection and peer sampling. The core never reaches
// into an ambient global for randomness; every round is handed one of
// these explicitly.
package rng

import "math/rand"

// Source is a uniform [0,1) sampler. *math/rand.Rand already satisfies it.
type Source interface {
	Float64() float64
	Intn(n int) int
}

// NewMockSource returns a deterministic, seeded Source suitable for tests
// and for simulations that must be reproducible across runs.
func NewMockSource(seed int64) Source {
	return rand.New(rand.NewSource(seed))
}
