package generator

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tutoapp/practicecache/pkg/errors"
	"github.com/tutoapp/practicecache/pkg/types"
)

//go:embed data/phrases.json
var phrasesJSON []byte

// phraseRanges bound the number of space-separated words per difficulty.
var phraseRanges = map[Difficulty]lengthRange{
	Easy:   {3, 6},
	Medium: {7, 12},
	Hard:   {13, 20},
}

// Phrases generates whole sentences.
type Phrases struct {
	rand       *shuffler
	difficulty Difficulty
	pool       []types.Item
}

// NewPhrases creates a phrases generator for difficulty.
func NewPhrases(difficulty Difficulty, opts ...Option) (*Phrases, error) {
	r, ok := phraseRanges[difficulty]
	if !ok {
		return nil, errors.NewError(errors.ErrCodeInvalidArgument, "invalid difficulty level").
			WithComponent("generator").
			WithDetail("difficulty", string(difficulty))
	}

	var data struct {
		Phrases []string `json:"phrases"`
	}
	if err := json.Unmarshal(phrasesJSON, &data); err != nil {
		return nil, fmt.Errorf("failed to decode phrase list: %w", err)
	}

	seen := make(map[string]bool, len(data.Phrases))
	var pool []types.Item
	for _, p := range data.Phrases {
		n := len(strings.Split(p, " "))
		if n < r.min || n > r.max || seen[p] {
			continue
		}
		seen[p] = true
		pool = append(pool, types.Item{Text: p, Kind: KindPhrase, Strokes: Strokes(p)})
	}

	return &Phrases{rand: newShuffler(opts), difficulty: difficulty, pool: pool}, nil
}

// Generate returns min(count, available) distinct phrases in random order.
func (g *Phrases) Generate(count int) ([]types.Item, error) {
	if len(g.pool) == 0 {
		return nil, errors.NewError(errors.ErrCodeGenerationFailed,
			fmt.Sprintf("no phrases found for difficulty level %s", g.difficulty)).
			WithComponent("generator")
	}
	return g.rand.pick(g.pool, count), nil
}

// Available returns the number of phrases matching the difficulty.
func (g *Phrases) Available() int {
	return len(g.pool)
}
