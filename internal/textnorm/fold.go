// Package textnorm holds the accent- and case-insensitive comparison keys
// shared by the category catalog and the theme synthesizer.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips combining marks, so "Comparação" and
// "comparacao" share a key. Transformers are stateful, so one chain is
// built per call.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

// HasMarks reports whether s carries any diacritic, i.e. folding changes it
// beyond case.
func HasMarks(s string) bool {
	return Fold(s) != strings.ToLower(strings.TrimSpace(s))
}

// Slug folds s and joins its words with underscores: "Bastidores da Rotina"
// becomes "bastidores_da_rotina".
func Slug(s string) string {
	fields := strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, "_")
}
