// Package generator produces practice content for each exercise type.
//
// Generators are synchronous and deterministic given their random source, which
// makes them easy to drive from tests:
//
//	letters := generator.NewLetters(generator.WithSeed(1))
//	items, err := letters.Generate(20)
//
// Every item carries the key strokes needed to type it on an AZERTY keyboard:
// modifiers such as ShiftLeft and AltRight, and dead key sequences for
// composed characters like ê or ï.
package generator
