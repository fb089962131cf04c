package reviewer

import (
	"math/rand/v2"
	"sync"
)

// RandomSource shuffles the random fallback pool.
type RandomSource interface {
	Shuffle(n int, swap func(i, j int))
}

// lockedRand makes a *rand.Rand safe for concurrent Select calls.
type lockedRand struct {
	r  *rand.Rand
	mu sync.Mutex
}

func (l *lockedRand) Shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r.Shuffle(n, swap)
}

// NewRandom returns a randomly seeded RandomSource.
func NewRandom() RandomSource {
	return NewSeededRandom(rand.Uint64())
}

// NewSeededRandom returns a RandomSource that shuffles identically for equal seeds.
func NewSeededRandom(seed uint64) RandomSource {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}
