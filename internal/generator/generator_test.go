package generator

import (
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutoapp/practicecache/pkg/errors"
	"github.com/tutoapp/practicecache/pkg/types"
)

func seeded(seed int64) Option {
	return WithSeed(seed)
}

func texts(items []types.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Text
	}
	return out
}

func assertDistinct(t *testing.T, items []types.Item) {
	t.Helper()
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		assert.False(t, seen[item.Text], "duplicate item %q", item.Text)
		seen[item.Text] = true
	}
}

func TestLetters_Generate(t *testing.T) {
	g := NewLetters(seeded(1))
	assert.Equal(t, 62, g.Available())

	tests := []struct {
		name  string
		count int
		want  int
	}{
		{"default batch", 20, 20},
		{"whole pool", 62, 62},
		{"more than available", 100, 62},
		{"zero", 0, 0},
		{"negative", -3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := g.Generate(tt.count)
			require.NoError(t, err)
			assert.Len(t, items, tt.want)
			assertDistinct(t, items)
		})
	}
}

func TestLetters_Modifiers(t *testing.T) {
	items, err := NewLetters(seeded(2)).Generate(62)
	require.NoError(t, err)

	kinds := map[string]int{}
	for _, item := range items {
		kinds[item.Kind]++
		switch item.Kind {
		case KindLowercase:
			assert.Empty(t, item.Modifiers, item.Text)
		case KindUppercase, KindNumber:
			assert.Equal(t, []string{ShiftLeft}, item.Modifiers, item.Text)
		}
		require.Len(t, item.Strokes, 1)
	}
	assert.Equal(t, map[string]int{KindLowercase: 26, KindUppercase: 26, KindNumber: 10}, kinds)
}

func TestLetters_ReturnsCopies(t *testing.T) {
	g := NewLetters(seeded(3))
	items, err := g.Generate(62)
	require.NoError(t, err)
	for i := range items {
		items[i].Modifiers = append(items[i].Modifiers, "mutated")
	}

	again, err := g.Generate(62)
	require.NoError(t, err)
	for _, item := range again {
		assert.NotContains(t, item.Modifiers, "mutated")
	}
}

func TestSymbols_Generate(t *testing.T) {
	g := NewSymbols(seeded(4))
	assert.Equal(t, 54, g.Available())

	items, err := g.Generate(30)
	require.NoError(t, err)
	assert.Len(t, items, 30)
	assertDistinct(t, items)

	all, err := g.Generate(1000)
	require.NoError(t, err)
	assert.Len(t, all, 54)

	byText := map[string]types.Item{}
	for _, item := range all {
		byText[item.Text] = item
	}
	assert.Equal(t, []string{AltRight}, byText["@"].Modifiers)
	assert.Equal(t, []string{ShiftLeft}, byText["%"].Modifiers)
	assert.Empty(t, byText["&"].Modifiers)
}

func TestWords_Difficulty(t *testing.T) {
	tests := []struct {
		difficulty Difficulty
		min, max   int
		available  int
	}{
		{Easy, 0, 5, 39},
		{Medium, 6, 8, 48},
		{Hard, 9, 1 << 30, 12},
		{Difficulty("unknown"), 0, 1 << 30, 99},
	}

	for _, tt := range tests {
		t.Run(string(tt.difficulty), func(t *testing.T) {
			g, err := NewWords(tt.difficulty, seeded(5))
			require.NoError(t, err)
			assert.Equal(t, tt.available, g.Available())

			items, err := g.Generate(1000)
			require.NoError(t, err)
			assert.Len(t, items, tt.available)
			for _, item := range items {
				n := utf8.RuneCountInString(item.Text)
				assert.GreaterOrEqual(t, n, tt.min, item.Text)
				assert.LessOrEqual(t, n, tt.max, item.Text)
				assert.Equal(t, KindWord, item.Kind)
			}
		})
	}
}

func TestWords_DefaultBatchIsFull(t *testing.T) {
	g, err := NewWords(Medium, seeded(6))
	require.NoError(t, err)

	items, err := g.Generate(20)
	require.NoError(t, err)
	assert.Len(t, items, 20)
	assertDistinct(t, items)
}

func TestStrokes(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []types.KeyStroke
	}{
		{
			name: "plain word",
			text: "chat",
			want: []types.KeyStroke{
				{Char: "c", Display: "c"}, {Char: "h", Display: "h"},
				{Char: "a", Display: "a"}, {Char: "t", Display: "t"},
			},
		},
		{
			name: "circumflex dead key",
			text: "fête",
			want: []types.KeyStroke{
				{Char: "f", Display: "f"},
				{Char: "^", Display: "^", IsDeadKey: true},
				{Char: "e", Display: "ê", IsComposed: true},
				{Char: "t", Display: "t"},
				{Char: "e", Display: "e"},
			},
		},
		{
			name: "diaeresis needs shift",
			text: "ï",
			want: []types.KeyStroke{
				{Char: "¨", Display: "¨", Modifiers: []string{ShiftLeft}, IsDeadKey: true},
				{Char: "i", Display: "ï", IsComposed: true},
			},
		},
		{
			name: "uppercase",
			text: "Lyon",
			want: []types.KeyStroke{
				{Char: "l", Display: "L", Modifiers: []string{ShiftLeft}},
				{Char: "y", Display: "y"}, {Char: "o", Display: "o"}, {Char: "n", Display: "n"},
			},
		},
		{
			name: "space and punctuation",
			text: "a ?",
			want: []types.KeyStroke{
				{Char: "a", Display: "a"},
				{Char: "Space", Display: " "},
				{Char: "?", Display: "?", Modifiers: []string{ShiftLeft}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Strokes(tt.text))
		})
	}
}

func TestPhrases_Generate(t *testing.T) {
	g, err := NewPhrases(Medium, seeded(7))
	require.NoError(t, err)
	assert.Equal(t, 30, g.Available())

	items, err := g.Generate(20)
	require.NoError(t, err)
	assert.Len(t, items, 20)
	assertDistinct(t, items)

	all, err := g.Generate(100)
	require.NoError(t, err)
	assert.Len(t, all, 30, "min(count, available)")
	for _, item := range all {
		n := len(strings.Split(item.Text, " "))
		assert.GreaterOrEqual(t, n, 7, item.Text)
		assert.LessOrEqual(t, n, 12, item.Text)
		assert.NotEmpty(t, item.Strokes)
	}
}

func TestPhrases_InvalidDifficulty(t *testing.T) {
	_, err := NewPhrases(Difficulty("expert"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidArgument))
}

func TestGenerators_SameSeedSameOrder(t *testing.T) {
	a, err := NewWords(Medium, seeded(42))
	require.NoError(t, err)
	b, err := NewWords(Medium, seeded(42))
	require.NoError(t, err)

	first, err := a.Generate(10)
	require.NoError(t, err)
	second, err := b.Generate(10)
	require.NoError(t, err)

	assert.Equal(t, texts(first), texts(second))
}

func TestGenerators_ConcurrentUse(t *testing.T) {
	g := NewSymbols(seeded(8))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				items, err := g.Generate(10)
				if err != nil || len(items) != 10 {
					t.Errorf("unexpected result: %d items, err=%v", len(items), err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
