package generator

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/tutoapp/practicecache/pkg/errors"
	"github.com/tutoapp/practicecache/pkg/types"
)

//go:embed data/mots.json
var wordsJSON []byte

type lengthRange struct{ min, max int }

var wordRanges = map[Difficulty]lengthRange{
	Easy:   {0, 5},
	Medium: {6, 8},
	Hard:   {9, math.MaxInt},
}

// Words generates French words of a given difficulty, measured in letters.
type Words struct {
	rand       *shuffler
	difficulty Difficulty
	pool       []types.Item
}

// NewWords creates a words generator. An unknown difficulty selects every word.
func NewWords(difficulty Difficulty, opts ...Option) (*Words, error) {
	var data struct {
		Words []string `json:"mots"`
	}
	if err := json.Unmarshal(wordsJSON, &data); err != nil {
		return nil, fmt.Errorf("failed to decode word list: %w", err)
	}

	r, filtered := wordRanges[difficulty]
	pool := make([]types.Item, 0, len(data.Words))
	for _, w := range data.Words {
		n := utf8.RuneCountInString(w)
		if filtered && (n < r.min || n > r.max) {
			continue
		}
		pool = append(pool, types.Item{Text: w, Kind: KindWord, Strokes: Strokes(w)})
	}

	return &Words{rand: newShuffler(opts), difficulty: difficulty, pool: pool}, nil
}

// Generate returns up to count distinct words in random order.
func (g *Words) Generate(count int) ([]types.Item, error) {
	if len(g.pool) == 0 {
		return nil, errors.NewError(errors.ErrCodeGenerationFailed, "no words for difficulty").
			WithComponent("generator").
			WithDetail("difficulty", string(g.difficulty))
	}
	return g.rand.pick(g.pool, count), nil
}

// Available returns the number of words matching the difficulty.
func (g *Words) Available() int {
	return len(g.pool)
}
