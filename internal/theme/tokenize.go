package theme

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/postcadence/planner/internal/textnorm"
)

// MinTokenRunes is the shortest token considered a theme candidate.
const MinTokenRunes = 4

// MaxKeywordRunes is the longest keyword any tier may produce. Saved plans
// clip theme keywords to the same length.
const MaxKeywordRunes = 24

// Token is one word of a caption. Surface keeps the accents the author
// typed; Key is the folded form used for counting and comparison.
type Token struct {
	Surface string
	Key     string
}

// Tokenize splits a caption into lowercase words. Mentions and URLs are
// skipped; hashtags contribute their word.
func Tokenize(caption string) []Token {
	var tokens []Token
	for _, field := range strings.Fields(caption) {
		if strings.HasPrefix(field, "@") || strings.Contains(field, "://") || strings.HasPrefix(strings.ToLower(field), "www.") {
			continue
		}
		words := strings.FieldsFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r)
		})
		for _, w := range words {
			surface := strings.ToLower(w)
			tokens = append(tokens, Token{Surface: surface, Key: textnorm.Fold(surface)})
		}
	}
	return tokens
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// qualifies applies the checks shared by every keyword source.
func qualifies(key string, exclude map[string]bool) bool {
	if n := utf8.RuneCountInString(key); n < MinTokenRunes || n > MaxKeywordRunes || allDigits(key) {
		return false
	}
	if stopwords[key] || exclude[key] {
		return false
	}
	return true
}
