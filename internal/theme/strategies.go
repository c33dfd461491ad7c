package theme

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/postcadence/planner/internal/catalog"
	"github.com/postcadence/planner/internal/textnorm"
)

// HardFallbackKeyword is used when no other source yields a keyword.
const HardFallbackKeyword = "destaque"

// MaxGeneratedWordRunes bounds a keyword returned by the text generator.
const MaxGeneratedWordRunes = 20

// ErrGeneratorUnavailable means no text generator is configured.
var ErrGeneratorUnavailable = errors.New("text generator unavailable")

// Candidate is a keyword proposed by a strategy.
type Candidate struct {
	Keyword string
	Key     string
	Count   int
	Source  string
}

// Strategy is one tier of the keyword fallback chain. Propose may fail;
// Validate decides whether a proposal is good enough to stop the chain.
type Strategy interface {
	Name() string
	Propose(ctx context.Context, req *Request) (Candidate, error)
	Validate(c Candidate, req *Request) bool
}

// FrequencyStrategy picks the token present in the most sample captions.
type FrequencyStrategy struct{}

func (FrequencyStrategy) Name() string { return "frequency" }

func (FrequencyStrategy) Propose(_ context.Context, req *Request) (Candidate, error) {
	tok, ok := MostFrequent(req.Captions, req.excluded)
	if !ok {
		return Candidate{}, errors.New("no qualifying token")
	}
	return Candidate{Keyword: tok.Display, Key: tok.Key, Count: tok.Count}, nil
}

func (FrequencyStrategy) Validate(c Candidate, _ *Request) bool {
	return c.Count >= 2 && !weakWords[c.Key]
}

// GeneratorStrategy asks the text generator for a single word.
type GeneratorStrategy struct {
	Generator Generator
}

func (GeneratorStrategy) Name() string { return "generator" }

var wordSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"word": map[string]any{"type": "string"},
	},
	"required":             []string{"word"},
	"additionalProperties": false,
}

func (s GeneratorStrategy) Propose(ctx context.Context, req *Request) (Candidate, error) {
	if s.Generator == nil {
		return Candidate{}, ErrGeneratorUnavailable
	}
	system := "You name the single dominant subject of a creator's best posts. " +
		"Reply with JSON {\"word\": \"...\"}: exactly one word in the captions' language, " +
		"at most 20 characters, no hashtags, no emoji, no punctuation, not a category name."
	user := fmt.Sprintf("Categories: %s\nCaptions:\n- %s",
		strings.Join(req.categoryLabels(), ", "),
		strings.Join(req.Captions, "\n- "))

	obj, err := s.Generator.GenerateJSON(ctx, system, user, "theme_keyword", wordSchema)
	if err != nil {
		return Candidate{}, err
	}
	word, ok := obj["word"].(string)
	if !ok {
		return Candidate{}, fmt.Errorf("generator response missing word")
	}
	word = strings.ToLower(strings.TrimSpace(word))
	return Candidate{Keyword: word, Key: textnorm.Fold(word), Count: 0}, nil
}

func (GeneratorStrategy) Validate(c Candidate, req *Request) bool {
	if c.Keyword == "" || utf8.RuneCountInString(c.Keyword) > MaxGeneratedWordRunes {
		return false
	}
	for _, r := range c.Keyword {
		if !unicode.IsLetter(r) && !unicode.Is(unicode.Mn, r) {
			return false
		}
	}
	return qualifies(c.Key, req.excluded) && !weakWords[c.Key]
}

// CategoryStrategy derives the keyword from the label of the primary
// proposal, then the primary context.
type CategoryStrategy struct {
	Catalog *catalog.Catalog
}

func (CategoryStrategy) Name() string { return "category" }

func (s CategoryStrategy) Propose(_ context.Context, req *Request) (Candidate, error) {
	if s.Catalog == nil {
		return Candidate{}, errors.New("no catalog")
	}
	sources := []struct {
		dim catalog.Dimension
		ids []string
	}{
		{catalog.Proposal, req.Categories.Proposal},
		{catalog.Context, req.Categories.Context},
	}
	for _, src := range sources {
		if len(src.ids) == 0 {
			continue
		}
		if tok, ok := longestToken(s.Catalog.Label(src.dim, src.ids[0])); ok {
			return Candidate{Keyword: tok.Surface, Key: tok.Key}, nil
		}
	}
	return Candidate{}, errors.New("no usable category label")
}

func (CategoryStrategy) Validate(c Candidate, _ *Request) bool {
	return c.Keyword != ""
}

func longestToken(label string) (Token, bool) {
	var best Token
	found := false
	for _, tok := range Tokenize(label) {
		if !qualifies(tok.Key, nil) {
			continue
		}
		if !found || utf8.RuneCountInString(tok.Key) > utf8.RuneCountInString(best.Key) {
			best = tok
			found = true
		}
	}
	return best, found
}

// HardStrategy always returns a fixed keyword.
type HardStrategy struct {
	Keyword string
}

func (HardStrategy) Name() string { return "hard" }

func (s HardStrategy) Propose(context.Context, *Request) (Candidate, error) {
	kw := s.Keyword
	if kw == "" {
		kw = HardFallbackKeyword
	}
	return Candidate{Keyword: kw, Key: textnorm.Fold(kw)}, nil
}

func (HardStrategy) Validate(c Candidate, _ *Request) bool {
	return c.Keyword != ""
}
