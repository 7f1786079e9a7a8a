package exercise

import (
	"fmt"
	"sync"

	"github.com/tutoapp/practicecache/internal/generator"
	"github.com/tutoapp/practicecache/pkg/errors"
	"github.com/tutoapp/practicecache/pkg/types"
)

// Registry maps exercise types to the generators producing their content.
// Only the recognized exercise types can be registered.
type Registry struct {
	mu         sync.RWMutex
	generators map[types.ExerciseType]types.Generator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{generators: make(map[types.ExerciseType]types.Generator)}
}

// DefaultRegistry registers the built-in generators for every exercise type.
// Words and phrases use the given difficulty.
func DefaultRegistry(difficulty generator.Difficulty, opts ...generator.Option) (*Registry, error) {
	words, err := generator.NewWords(difficulty, opts...)
	if err != nil {
		return nil, err
	}
	phrases, err := generator.NewPhrases(difficulty, opts...)
	if err != nil {
		return nil, err
	}

	r := NewRegistry()
	for kind, g := range map[types.ExerciseType]types.Generator{
		types.ExerciseLetters: generator.NewLetters(opts...),
		types.ExerciseWords:   words,
		types.ExerciseSymbols: generator.NewSymbols(opts...),
		types.ExercisePhrases: phrases,
	} {
		if err := r.Register(kind, g); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register binds g to kind, replacing any previous generator.
func (r *Registry) Register(kind types.ExerciseType, g types.Generator) error {
	if !kind.Valid() {
		return unsupported(kind)
	}
	if g == nil {
		return errors.NewError(errors.ErrCodeInvalidArgument, "generator is nil").
			WithComponent("exercise").
			WithDetail("type", string(kind))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[kind] = g
	return nil
}

// Lookup returns the generator for kind.
func (r *Registry) Lookup(kind types.ExerciseType) (types.Generator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.generators[kind]
	if !ok {
		return nil, unsupported(kind)
	}
	return g, nil
}

// Kinds lists the registered exercise types in display order.
func (r *Registry) Kinds() []types.ExerciseType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var kinds []types.ExerciseType
	for _, kind := range types.ExerciseTypes() {
		if _, ok := r.generators[kind]; ok {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

func unsupported(kind types.ExerciseType) *errors.PracticeError {
	return errors.NewError(errors.ErrCodeUnsupportedExerciseType,
		fmt.Sprintf("unsupported exercise type: %q", kind)).
		WithComponent("exercise").
		WithDetail("type", string(kind))
}
