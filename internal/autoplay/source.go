package autoplay

import (
	"math/rand"
	"sync"
	"time"
)

// MoveSource picks one index from a non-empty list of legal UCI moves.
type MoveSource interface {
	Pick(legal []string) int
}

// UniformSource picks each legal move with equal probability.
type UniformSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewUniformSource seeds from the clock when seed is zero.
func NewUniformSource(seed int64) *UniformSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &UniformSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *UniformSource) Pick(legal []string) int {
	if len(legal) == 0 {
		return -1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(len(legal))
}
