// Package sample draws random exemplar subsets from a user's history.
package sample

import (
	"math/rand"
	"sync"
	"time"

	"github.com/hyperifyio/goreply/internal/corpus"
)

// Source is the corpus lookup the sampler needs.
type Source interface {
	Pairs(userID string) []corpus.ExemplarPair
}

// Sampler performs uniform sampling without replacement. It is safe for
// concurrent use; each call is an independent draw.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a sampler seeded from the clock.
func New() *Sampler {
	return NewWithSeed(time.Now().UnixNano())
}

// NewWithSeed returns a deterministic sampler for tests.
func NewWithSeed(seed int64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(seed))}
}

// Sample returns min(k, available) distinct exemplars for userID. Unknown
// users and non-positive k yield an empty slice, never an error.
func (s *Sampler) Sample(src Source, userID string, k int) []corpus.ExemplarPair {
	if k <= 0 {
		return nil
	}
	pairs := src.Pairs(userID)
	if len(pairs) == 0 {
		return nil
	}
	if k > len(pairs) {
		k = len(pairs)
	}
	s.mu.Lock()
	idx := s.rng.Perm(len(pairs))[:k]
	s.mu.Unlock()

	out := make([]corpus.ExemplarPair, 0, k)
	for _, i := range idx {
		out = append(out, pairs[i])
	}
	return out
}
