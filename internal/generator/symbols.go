package generator

import (
	"github.com/tutoapp/practicecache/pkg/types"
)

var symbolPool = func() []types.Item {
	pool := make([]types.Item, 0, len(symbolKeys))
	for _, s := range symbolKeys {
		pool = append(pool, types.Item{
			Text:      s.char,
			Kind:      KindSymbol,
			Modifiers: copyModifiers(s.modifiers),
			Strokes:   []types.KeyStroke{{Char: s.char, Display: s.char, Modifiers: copyModifiers(s.modifiers)}},
		})
	}
	return pool
}()

// Symbols generates punctuation and special characters.
type Symbols struct {
	rand *shuffler
}

// NewSymbols creates a symbols generator.
func NewSymbols(opts ...Option) *Symbols {
	return &Symbols{rand: newShuffler(opts)}
}

// Generate returns up to count distinct symbols in random order.
func (g *Symbols) Generate(count int) ([]types.Item, error) {
	return g.rand.pick(symbolPool, count), nil
}

// Available returns the size of the symbol pool.
func (g *Symbols) Available() int {
	return len(symbolPool)
}
