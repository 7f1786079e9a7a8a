package types

import (
	"time"
)

// ExerciseType identifies a family of practice content. The tag values are the
// ones persisted by the application and shown in its routes.
type ExerciseType string

const (
	ExerciseLetters ExerciseType = "lettres"
	ExerciseWords   ExerciseType = "mots"
	ExerciseSymbols ExerciseType = "symboles"
	ExercisePhrases ExerciseType = "phrases"
)

// ExerciseTypes lists every recognized exercise type in display order.
func ExerciseTypes() []ExerciseType {
	return []ExerciseType{ExerciseLetters, ExerciseWords, ExerciseSymbols, ExercisePhrases}
}

// Valid reports whether t is one of the recognized exercise types.
func (t ExerciseType) Valid() bool {
	switch t {
	case ExerciseLetters, ExerciseWords, ExerciseSymbols, ExercisePhrases:
		return true
	}
	return false
}

// KeyStroke is one physical key press needed to produce a character.
type KeyStroke struct {
	Char       string   `json:"char"`
	Display    string   `json:"display"`
	Modifiers  []string `json:"modifiers,omitempty"`
	IsDeadKey  bool     `json:"is_dead_key,omitempty"`
	IsComposed bool     `json:"is_composed,omitempty"`
}

// Item is a single practice item: a letter, a symbol, a word or a phrase.
type Item struct {
	Text      string      `json:"text"`
	Kind      string      `json:"kind,omitempty"`
	Modifiers []string    `json:"modifiers,omitempty"`
	Strokes   []KeyStroke `json:"strokes,omitempty"`
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	out := i
	if i.Modifiers != nil {
		out.Modifiers = append([]string(nil), i.Modifiers...)
	}
	if i.Strokes != nil {
		out.Strokes = make([]KeyStroke, len(i.Strokes))
		for n, s := range i.Strokes {
			out.Strokes[n] = s
			if s.Modifiers != nil {
				out.Strokes[n].Modifiers = append([]string(nil), s.Modifiers...)
			}
		}
	}
	return out
}

// CloneItems returns a deep copy of items.
func CloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for n, item := range items {
		out[n] = item.Clone()
	}
	return out
}

// ValidationResult is the outcome of comparing user input with the expected text.
// IsCorrect implies !IsIncorrect.
type ValidationResult struct {
	IsCorrect          bool      `json:"is_correct"`
	IsIncorrect        bool      `json:"is_incorrect"`
	IsPartiallyCorrect bool      `json:"is_partially_correct"`
	Message            string    `json:"message"`
	IsComplete         bool      `json:"is_complete"`
	Timestamp          time.Time `json:"timestamp"`
}

// CacheStats represents cache performance statistics
type CacheStats struct {
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	Evictions   uint64  `json:"evictions"`
	Expirations uint64  `json:"expirations"`
	Size        int64   `json:"size"`
	Capacity    int64   `json:"capacity"`
	HitRate     float64 `json:"hit_rate"`
	Utilization float64 `json:"utilization"`

	// Persistent tier counters; zero for memory-only caches.
	PersistentHits   uint64 `json:"persistent_hits,omitempty"`
	PersistentErrors uint64 `json:"persistent_errors,omitempty"`
	DroppedWrites    uint64 `json:"dropped_writes,omitempty"`
	FallbackMode     bool   `json:"fallback_mode,omitempty"`
}
