package theme

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/postcadence/planner/internal/catalog"
	"github.com/postcadence/planner/internal/textnorm"
)

const (
	MinPhrases       = 3
	MaxPhrases       = 5
	MaxPhraseRunes   = 80
	phraseSchemaName = "theme_phrases"
)

var phraseSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"phrases": map[string]any{
			"type":     "array",
			"items":    map[string]any{"type": "string"},
			"minItems": MinPhrases,
			"maxItems": MaxPhrases,
		},
	},
	"required":             []string{"phrases"},
	"additionalProperties": false,
}

// styleHints maps proposal ids to framing instructions for the generator.
var styleHints = map[string]string{
	"comparison":        `frame it as a comparison using "VS"`,
	"tutorial":          `frame it as a "passo a passo"`,
	"tips":              "frame it as a numbered list of tips",
	"review":            "frame it as a verdict or honest review",
	"behind_the_scenes": "frame it as behind the scenes",
	"storytelling":      "write in the first person, as a personal story",
	"question":          "end with a question to the audience",
}

// phraseTemplates are the fallback phrases per proposal. {K} is the
// capitalized keyword and {k} the keyword as is.
var phraseTemplates = map[string][]string{
	"comparison":        {"{K} VS o que você usa hoje", "Antes e depois: {k}"},
	"tutorial":          {"{K} passo a passo", "Passo a passo de {k} para iniciantes"},
	"tips":              {"{K}: 5 dicas rápidas", "3 dicas de {k} que funcionam"},
	"review":            {"{K}: vale a pena?", "Minha avaliação honesta sobre {k}"},
	"behind_the_scenes": {"{K} nos bastidores", "Bastidores: como nasce {k}"},
	"storytelling":      {"{K}: a minha história", "Eu e {k}: como tudo começou"},
	"question":          {"{K}: qual a sua opinião?", "E você, o que acha de {k}?"},
}

var genericTemplates = []string{
	"{K}: o que ninguém te conta",
	"Tudo sobre {k}",
	"{K} na prática",
	"3 erros comuns com {k}",
	"{K} sem complicação",
	"Como {k} mudou minha rotina",
	"{K} em 60 segundos",
}

// PhraseComposer turns a keyword into short theme phrases.
type PhraseComposer struct {
	generator Generator
	catalog   *catalog.Catalog
	mode      Mode
}

func NewPhraseComposer(gen Generator, cat *catalog.Catalog, mode Mode) *PhraseComposer {
	if mode != ModeStrict {
		mode = ModeFlex
	}
	if cat == nil {
		cat = catalog.Default()
	}
	return &PhraseComposer{generator: gen, catalog: cat, mode: mode}
}

// Compose returns between MinPhrases and MaxPhrases phrases for keyword.
func (p *PhraseComposer) Compose(ctx context.Context, keyword string, req *Request) []string {
	if req == nil {
		req = &Request{}
	}
	if p.generator != nil && ctx.Err() == nil {
		if phrases, err := p.generate(ctx, keyword, req); err == nil {
			return phrases
		}
	}
	return p.fromTemplates(keyword, req.Categories.Proposal)
}

func (p *PhraseComposer) generate(ctx context.Context, keyword string, req *Request) (phrases []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			phrases, err = nil, fmt.Errorf("phrase generator panicked: %v", r)
		}
	}()

	var hints []string
	for _, id := range req.Categories.Proposal {
		if h, ok := styleHints[id]; ok {
			hints = append(hints, h)
		}
	}
	if req.Categories.Tone != "" {
		hints = append(hints, "tone: "+p.catalog.Label(catalog.Tone, req.Categories.Tone))
	}

	rules := fmt.Sprintf("Write %d to %d short post themes (at most %d characters each) about the keyword %q, in the captions' language.",
		MinPhrases, MaxPhrases, MaxPhraseRunes, keyword)
	if p.mode == ModeStrict {
		rules += " Every theme must start with the keyword."
	}
	system := rules + ` Reply with JSON {"phrases": [...]}, no hashtags, no emoji.`
	user := fmt.Sprintf("Keyword: %s\nCategories: %s\nStyle: %s\nCaptions:\n- %s",
		keyword,
		strings.Join(req.categoryLabels(), ", "),
		strings.Join(hints, "; "),
		strings.Join(req.Captions, "\n- "))

	obj, err := p.generator.GenerateJSON(ctx, system, user, phraseSchemaName, phraseSchema)
	if err != nil {
		return nil, err
	}
	raw, ok := obj["phrases"].([]any)
	if !ok {
		return nil, fmt.Errorf("generator response missing phrases")
	}

	var candidates []string
	for _, item := range raw {
		if s, ok := item.(string); ok {
			candidates = append(candidates, s)
		}
	}
	phrases = p.accept(keyword, candidates)
	if len(phrases) < MinPhrases {
		return nil, fmt.Errorf("generator returned %d usable phrases", len(phrases))
	}
	return phrases, nil
}

// accept trims, filters and dedupes phrases, keeping at most MaxPhrases.
func (p *PhraseComposer) accept(keyword string, candidates []string) []string {
	key := textnorm.Fold(keyword)
	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, MaxPhrases)
	for _, c := range candidates {
		c = strings.Join(strings.Fields(c), " ")
		if c == "" || utf8.RuneCountInString(c) > MaxPhraseRunes {
			continue
		}
		folded := textnorm.Fold(c)
		if p.mode == ModeStrict && !strings.HasPrefix(folded, key) {
			continue
		}
		if seen[folded] {
			continue
		}
		seen[folded] = true
		out = append(out, c)
		if len(out) == MaxPhrases {
			break
		}
	}
	return out
}

// fromTemplates always yields at least MinPhrases: with the keyword clipped
// to MaxKeywordRunes every template fits in MaxPhraseRunes, and at least
// MinPhrases generic templates start with {K}.
func (p *PhraseComposer) fromTemplates(keyword string, proposals []string) []string {
	keyword = clipRunes(strings.TrimSpace(keyword), MaxKeywordRunes)
	if keyword == "" {
		keyword = HardFallbackKeyword
	}
	var templates []string
	for _, id := range proposals {
		templates = append(templates, phraseTemplates[id]...)
	}
	templates = append(templates, genericTemplates...)

	rendered := make([]string, 0, len(templates))
	for _, tpl := range templates {
		if p.mode == ModeStrict && !strings.HasPrefix(tpl, "{K}") {
			continue
		}
		rendered = append(rendered, render(tpl, keyword))
	}
	return p.accept(keyword, rendered)
}

func clipRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

func render(tpl, keyword string) string {
	r := strings.NewReplacer("{K}", capitalize(keyword), "{k}", keyword)
	return r.Replace(tpl)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
