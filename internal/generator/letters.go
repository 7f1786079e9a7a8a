package generator

import (
	"strings"

	"github.com/tutoapp/practicecache/pkg/types"
)

// Item kinds produced by the generators.
const (
	KindLowercase = "lowercase"
	KindUppercase = "uppercase"
	KindNumber    = "number"
	KindSymbol    = "symbol"
	KindWord      = "word"
	KindPhrase    = "phrase"
)

var letterPool = func() []types.Item {
	var pool []types.Item
	for _, r := range "abcdefghijklmnopqrstuvwxyz" {
		lower := string(r)
		upper := strings.ToUpper(lower)
		pool = append(pool,
			types.Item{
				Text:    lower,
				Kind:    KindLowercase,
				Strokes: []types.KeyStroke{{Char: lower, Display: lower}},
			},
			types.Item{
				Text:      upper,
				Kind:      KindUppercase,
				Modifiers: []string{ShiftLeft},
				Strokes:   []types.KeyStroke{{Char: upper, Display: upper, Modifiers: []string{ShiftLeft}}},
			},
		)
	}
	// digits sit on the shifted top row of an AZERTY keyboard
	for _, r := range "0123456789" {
		digit := string(r)
		pool = append(pool, types.Item{
			Text:      digit,
			Kind:      KindNumber,
			Modifiers: []string{ShiftLeft},
			Strokes:   []types.KeyStroke{{Char: digit, Display: digit, Modifiers: []string{ShiftLeft}}},
		})
	}
	return pool
}()

// Letters generates single letters in both cases and digits.
type Letters struct {
	rand *shuffler
}

// NewLetters creates a letters generator.
func NewLetters(opts ...Option) *Letters {
	return &Letters{rand: newShuffler(opts)}
}

// Generate returns up to count distinct characters in random order.
func (g *Letters) Generate(count int) ([]types.Item, error) {
	return g.rand.pick(letterPool, count), nil
}

// Available returns the size of the character pool.
func (g *Letters) Available() int {
	return len(letterPool)
}
