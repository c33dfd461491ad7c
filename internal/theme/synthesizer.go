// Package theme names what a slot should be about: a one-word keyword and a
// handful of short theme phrases built around it.
//
// Keywords come from an ordered chain of strategies (caption frequency,
// text generator, category label, fixed word); the first proposal that
// validates wins. Phrases come from the text generator or, failing that,
// from templates. Nothing in this package returns an error to the caller.
package theme

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/postcadence/planner/internal/catalog"
	"github.com/postcadence/planner/internal/models"
	"github.com/postcadence/planner/internal/textnorm"
	"github.com/postcadence/planner/pkg/logging"
	"github.com/postcadence/planner/pkg/telemetry"
)

// Generator is the subset of the text generation client the synthesizer
// uses. Responses must be a JSON object; anything else is an error.
type Generator interface {
	GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error)
}

// Mode controls phrase composition.
type Mode string

const (
	// ModeFlex lets phrases place the keyword anywhere.
	ModeFlex Mode = "flex"
	// ModeStrict makes every phrase start with the keyword.
	ModeStrict Mode = "strict"
)

// Input is what the synthesizer knows about one slot.
type Input struct {
	Captions   []string
	Categories models.Categories
	Format     string
}

// Request is an Input with its derived exclusion set.
type Request struct {
	Input
	catalog  *catalog.Catalog
	excluded map[string]bool
}

// Result is a synthesized theme. Keyword is never empty and Phrases always
// holds between MinPhrases and MaxPhrases entries.
type Result struct {
	Keyword string   `json:"keyword"`
	Source  string   `json:"source"`
	Count   int      `json:"count,omitempty"`
	Phrases []string `json:"phrases"`
}

// Synthesizer runs the keyword chain and composes phrases.
type Synthesizer struct {
	catalog    *catalog.Catalog
	strategies []Strategy
	phrases    *PhraseComposer
	logger     *zap.Logger
}

// NewSynthesizer builds the default chain. gen may be nil, in which case the
// generator tiers are skipped.
func NewSynthesizer(cat *catalog.Catalog, gen Generator, mode Mode) *Synthesizer {
	if cat == nil {
		cat = catalog.Default()
	}
	return &Synthesizer{
		catalog: cat,
		strategies: []Strategy{
			FrequencyStrategy{},
			GeneratorStrategy{Generator: gen},
			CategoryStrategy{Catalog: cat},
			HardStrategy{Keyword: HardFallbackKeyword},
		},
		phrases: NewPhraseComposer(gen, cat, mode),
		logger:  logging.WithComponent("theme"),
	}
}

// WithStrategies replaces the keyword chain. A HardStrategy is appended when
// the chain does not end in one.
func (s *Synthesizer) WithStrategies(strategies ...Strategy) *Synthesizer {
	chain := append([]Strategy(nil), strategies...)
	if len(chain) == 0 {
		chain = append(chain, HardStrategy{})
	} else if _, ok := chain[len(chain)-1].(HardStrategy); !ok {
		chain = append(chain, HardStrategy{})
	}
	return &Synthesizer{catalog: s.catalog, strategies: chain, phrases: s.phrases, logger: s.logger}
}

// Synthesize returns a keyword and phrases for one slot.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) Result {
	req := s.prepare(in)
	cand := s.Keyword(ctx, req)
	telemetry.RecordThemeTier(ctx, cand.Source)

	return Result{
		Keyword: cand.Keyword,
		Source:  cand.Source,
		Count:   cand.Count,
		Phrases: s.phrases.Compose(ctx, cand.Keyword, req),
	}
}

// Keyword walks the strategy chain.
func (s *Synthesizer) Keyword(ctx context.Context, req *Request) Candidate {
	for _, strategy := range s.strategies {
		cand, ok := s.try(ctx, strategy, req)
		if ok {
			cand.Source = strategy.Name()
			return cand
		}
	}
	// Only reachable with a custom chain whose hard tier was given a blank
	// keyword.
	return Candidate{Keyword: HardFallbackKeyword, Key: HardFallbackKeyword, Source: "hard"}
}

func (s *Synthesizer) try(ctx context.Context, strategy Strategy, req *Request) (cand Candidate, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("Theme strategy panicked", zap.String("strategy", strategy.Name()), zap.Any("panic", r))
			cand, ok = Candidate{}, false
		}
	}()

	cand, err := strategy.Propose(ctx, req)
	if err != nil {
		s.logger.Debug("Theme strategy produced nothing", zap.String("strategy", strategy.Name()), zap.Error(err))
		return Candidate{}, false
	}
	if !strategy.Validate(cand, req) {
		s.logger.Debug("Theme strategy candidate rejected",
			zap.String("strategy", strategy.Name()),
			zap.String("keyword", cand.Keyword),
			zap.Int("count", cand.Count))
		return Candidate{}, false
	}
	return cand, true
}

// Prepare builds a Request for in, for callers that drive strategies
// directly.
func (s *Synthesizer) Prepare(in Input) *Request {
	return s.prepare(in)
}

func (s *Synthesizer) prepare(in Input) *Request {
	excluded := make(map[string]bool)
	addTerms := func(dim catalog.Dimension, ids []string) {
		for _, term := range s.catalog.LabelTerms(dim, ids) {
			for _, word := range strings.FieldsFunc(term, func(r rune) bool { return r == '_' || r == ' ' || r == '-' }) {
				excluded[textnorm.Fold(word)] = true
			}
		}
	}
	addTerms(catalog.Context, in.Categories.Context)
	addTerms(catalog.Proposal, in.Categories.Proposal)
	addTerms(catalog.Reference, in.Categories.Reference)
	if in.Categories.Tone != "" {
		addTerms(catalog.Tone, []string{in.Categories.Tone})
	}
	if in.Format != "" {
		addTerms(catalog.Format, []string{in.Format})
	}
	return &Request{Input: in, catalog: s.catalog, excluded: excluded}
}

// categoryLabels renders the slot's categories for prompts.
func (r *Request) categoryLabels() []string {
	var out []string
	add := func(dim catalog.Dimension, ids []string) {
		for _, id := range ids {
			label := id
			if r.catalog != nil {
				label = r.catalog.Label(dim, id)
			}
			out = append(out, fmt.Sprintf("%s=%s", dim, label))
		}
	}
	add(catalog.Context, r.Categories.Context)
	add(catalog.Proposal, r.Categories.Proposal)
	add(catalog.Reference, r.Categories.Reference)
	if r.Categories.Tone != "" {
		add(catalog.Tone, []string{r.Categories.Tone})
	}
	if r.Format != "" {
		add(catalog.Format, []string{r.Format})
	}
	if len(out) == 0 {
		out = append(out, "none")
	}
	return out
}
