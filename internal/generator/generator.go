package generator

import (
	"math/rand"
	"sync"
	"time"

	"github.com/tutoapp/practicecache/pkg/types"
)

// Difficulty selects a slice of the word or phrase pool.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case Easy, Medium, Hard:
		return true
	}
	return false
}

// Option configures a generator.
type Option func(*shuffler)

// WithSeed makes the generator deterministic. Each generator owns its source,
// so one option value can be shared by several generators.
func WithSeed(seed int64) Option {
	return func(s *shuffler) {
		s.rng = rand.New(rand.NewSource(seed))
	}
}

// shuffler is a mutex-guarded random source shared by one generator.
type shuffler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newShuffler(opts []Option) *shuffler {
	s := &shuffler{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// pick returns up to count distinct elements of pool in random order (Fisher-Yates).
func (s *shuffler) pick(pool []types.Item, count int) []types.Item {
	if count <= 0 || len(pool) == 0 {
		return []types.Item{}
	}

	shuffled := types.CloneItems(pool)

	s.mu.Lock()
	for i := len(shuffled) - 1; i > 0; i-- {
		j := s.rng.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	s.mu.Unlock()

	if count < len(shuffled) {
		shuffled = shuffled[:count]
	}
	return shuffled
}
