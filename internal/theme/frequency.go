package theme

import (
	"sort"
	"unicode/utf8"

	"github.com/postcadence/planner/internal/textnorm"
)

// FrequentToken is the outcome of document-frequency extraction.
type FrequentToken struct {
	Display string // most common surface form, accents kept
	Key     string
	Count   int // number of captions containing the token
}

// MostFrequent counts, for every qualifying token, how many captions
// contain it. The winner has the highest count; ties go to the longer
// token, then alphabetical order. ok is false when nothing qualifies.
func MostFrequent(captions []string, exclude map[string]bool) (FrequentToken, bool) {
	docFreq := make(map[string]int)
	surfaces := make(map[string]map[string]int)

	for _, caption := range captions {
		seen := make(map[string]bool)
		for _, tok := range Tokenize(caption) {
			if !qualifies(tok.Key, exclude) {
				continue
			}
			forms, ok := surfaces[tok.Key]
			if !ok {
				forms = make(map[string]int)
				surfaces[tok.Key] = forms
			}
			forms[tok.Surface]++
			if !seen[tok.Key] {
				seen[tok.Key] = true
				docFreq[tok.Key]++
			}
		}
	}
	if len(docFreq) == 0 {
		return FrequentToken{}, false
	}

	keys := make([]string, 0, len(docFreq))
	for k := range docFreq {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if docFreq[a] != docFreq[b] {
			return docFreq[a] > docFreq[b]
		}
		la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
		if la != lb {
			return la > lb
		}
		return a < b
	})

	winner := keys[0]
	return FrequentToken{
		Display: displayForm(surfaces[winner]),
		Key:     winner,
		Count:   docFreq[winner],
	}, true
}

// displayForm picks the most used surface form, preferring an accented one
// on ties so "promoção" wins over "promocao".
func displayForm(forms map[string]int) string {
	best := ""
	bestCount := -1
	for form, n := range forms {
		switch {
		case n > bestCount:
		case n == bestCount && textnorm.HasMarks(form) && !textnorm.HasMarks(best):
		case n == bestCount && textnorm.HasMarks(form) == textnorm.HasMarks(best) && form < best:
		default:
			continue
		}
		best, bestCount = form, n
	}
	return best
}
