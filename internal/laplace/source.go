// ABOUTME: Uniform random sources for the noise mechanism
// ABOUTME: Crypto-seeded ChaCha8 for production, seeded PCG for reproducible tests

package laplace

import (
	crand "crypto/rand"
	"fmt"
	"math/rand/v2"
)

// Source yields uniform samples in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// NewSecureSource returns a ChaCha8 generator seeded from crypto/rand.
func NewSecureSource() (Source, error) {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("read random seed: %w", err)
	}
	return rand.New(rand.NewChaCha8(seed)), nil
}

// NewSeededSource returns a deterministic generator for tests and replays.
func NewSeededSource(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
