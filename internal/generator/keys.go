package generator

import (
	"strings"
	"unicode"

	"github.com/tutoapp/practicecache/pkg/types"
)

const (
	ShiftLeft = "ShiftLeft"
	AltRight  = "AltRight"
)

type deadKey struct {
	key       string
	base      string
	modifiers []string
}

// composed maps accented characters to the dead key sequence producing them.
var composed = map[rune]deadKey{
	'â': {"^", "a", nil},
	'ê': {"^", "e", nil},
	'î': {"^", "i", nil},
	'ô': {"^", "o", nil},
	'û': {"^", "u", nil},
	'ä': {"¨", "a", []string{ShiftLeft}},
	'ë': {"¨", "e", []string{ShiftLeft}},
	'ï': {"¨", "i", []string{ShiftLeft}},
	'ö': {"¨", "o", []string{ShiftLeft}},
	'ü': {"¨", "u", []string{ShiftLeft}},
	'à': {"`", "a", nil},
	'è': {"`", "e", nil},
	'ù': {"`", "u", nil},
}

// symbolKeys lists the symbols drilled by the symbols exercise with the
// modifiers an AZERTY keyboard needs for them, in display order.
var symbolKeys = []struct {
	char      string
	modifiers []string
}{
	{"&", nil}, {"\"", nil}, {"'", nil}, {"(", nil}, {")", nil}, {"-", nil},
	{"è", nil}, {"_", nil}, {"ç", nil}, {"à", nil}, {"=", nil}, {"^", nil},
	{"$", nil}, {"ù", nil}, {"*", nil}, {"<", nil}, {",", nil}, {";", nil},
	{":", nil}, {"!", nil}, {"²", nil},

	{"~", []string{AltRight}}, {"#", []string{AltRight}}, {"{", []string{AltRight}},
	{"[", []string{AltRight}}, {"|", []string{AltRight}}, {"`", []string{AltRight}},
	{"\\", []string{AltRight}}, {"@", []string{AltRight}}, {"]", []string{AltRight}},
	{"}", []string{AltRight}}, {"€", []string{AltRight}},

	{"1", []string{ShiftLeft}}, {"2", []string{ShiftLeft}}, {"3", []string{ShiftLeft}},
	{"4", []string{ShiftLeft}}, {"5", []string{ShiftLeft}}, {"6", []string{ShiftLeft}},
	{"7", []string{ShiftLeft}}, {"8", []string{ShiftLeft}}, {"9", []string{ShiftLeft}},
	{"0", []string{ShiftLeft}}, {"°", []string{ShiftLeft}}, {"+", []string{ShiftLeft}},
	{"¨", []string{ShiftLeft}}, {"£", []string{ShiftLeft}}, {"%", []string{ShiftLeft}},
	{"µ", []string{ShiftLeft}}, {"M", []string{ShiftLeft}}, {"?", []string{ShiftLeft}},
	{".", []string{ShiftLeft}}, {"/", []string{ShiftLeft}}, {"§", []string{ShiftLeft}},
	{">", []string{ShiftLeft}},
}

var symbolModifiers = func() map[string][]string {
	m := make(map[string][]string, len(symbolKeys))
	for _, s := range symbolKeys {
		m[s.char] = s.modifiers
	}
	return m
}()

// Strokes returns the key presses needed to type text.
func Strokes(text string) []types.KeyStroke {
	strokes := make([]types.KeyStroke, 0, len(text))
	for _, r := range text {
		strokes = append(strokes, strokesFor(r)...)
	}
	return strokes
}

func strokesFor(r rune) []types.KeyStroke {
	char := string(r)

	if r == ' ' {
		return []types.KeyStroke{{Char: "Space", Display: " "}}
	}

	if dk, ok := composed[r]; ok {
		return []types.KeyStroke{
			{Char: dk.key, Display: dk.key, Modifiers: copyModifiers(dk.modifiers), IsDeadKey: true},
			{Char: dk.base, Display: char, IsComposed: true},
		}
	}

	if modifiers, ok := symbolModifiers[char]; ok && !unicode.IsLetter(r) {
		return []types.KeyStroke{{Char: char, Display: char, Modifiers: copyModifiers(modifiers)}}
	}

	if unicode.IsUpper(r) {
		return []types.KeyStroke{{Char: strings.ToLower(char), Display: char, Modifiers: []string{ShiftLeft}}}
	}

	return []types.KeyStroke{{Char: char, Display: char}}
}

func copyModifiers(m []string) []string {
	if len(m) == 0 {
		return nil
	}
	return append([]string(nil), m...)
}
