// Package recommend ranks grid cells and turns the best ones into weekly
// slot suggestions.
//
// Cell scores use a Bayesian average toward the creator's global mean:
//
//	score = (n*avg + k*mean) / (n + k)
//
// where n is the cell's sample count and k the configured prior weight. A
// block with a single lucky post is pulled most of the way back to the
// mean; a block with many posts keeps close to its own average.
package recommend

import (
	"fmt"
	"math"
	"sort"

	"github.com/postcadence/planner/internal/models"
	"github.com/postcadence/planner/internal/stats"
	"github.com/postcadence/planner/internal/timeblock"
)

// AlgoVersion identifies the ranking algorithm. Bump it whenever the output
// for the same input changes; frozen recommendations from other versions
// are then recomputed on next read.
const AlgoVersion = "v4"

// Config holds generator knobs.
type Config struct {
	MinSlots       int
	MaxSlots       int
	ShrinkagePrior float64
	P90Multiplier  float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{MinSlots: 3, MaxSlots: 5, ShrinkagePrior: 3, P90Multiplier: 1.8}
}

// Input is everything the generator ranks on. Blocks must be averages of
// views; Shares of shares.
type Input struct {
	Blocks     []stats.BlockStat
	Shares     []stats.BlockStat
	Combos     []stats.ComboBlockStat
	Tones      []stats.CategoryBlockStat
	References []stats.CategoryBlockStat
}

// Generator composes slot suggestions.
type Generator struct {
	cfg Config
}

// NewGenerator creates a generator.
func NewGenerator(cfg Config) *Generator {
	if cfg.MinSlots <= 0 {
		cfg.MinSlots = 1
	}
	if cfg.MaxSlots < cfg.MinSlots {
		cfg.MaxSlots = cfg.MinSlots
	}
	if cfg.P90Multiplier < 1 {
		cfg.P90Multiplier = 1
	}
	return &Generator{cfg: cfg}
}

// Version is the cache version for this generator: the algorithm version
// plus the knobs that change its output.
func (g *Generator) Version() string {
	return fmt.Sprintf("%s-k%g-m%g", AlgoVersion, g.cfg.ShrinkagePrior, g.cfg.P90Multiplier)
}

// ClampTarget bounds a requested slot count to the configured range.
func (g *Generator) ClampTarget(n int) int {
	if n < g.cfg.MinSlots {
		return g.cfg.MinSlots
	}
	if n > g.cfg.MaxSlots {
		return g.cfg.MaxSlots
	}
	return n
}

// P90 derives the optimistic estimate from the median one.
func (g *Generator) P90(p50 int64) int64 {
	return int64(math.Round(float64(p50) * g.cfg.P90Multiplier))
}

func (g *Generator) shrink(avg float64, n int, mean float64) float64 {
	k := g.cfg.ShrinkagePrior
	if k <= 0 {
		return avg
	}
	return (float64(n)*avg + k*mean) / (float64(n) + k)
}

// candidate is anything rankable: a cell, a combo or a label.
type candidate struct {
	block timeblock.Block
	key   string
	avg   float64
	count int
	score float64
}

// better orders by score, then sample count, then grid position, then key.
func better(a, b candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.count != b.count {
		return a.count > b.count
	}
	if a.block != b.block {
		return a.block.Less(b.block)
	}
	return a.key < b.key
}

// ScoredBlock is a ranked grid cell.
type ScoredBlock struct {
	stats.BlockStat
	Score float64 `json:"score"`
}

// Rank scores every cell and returns them best first.
func (g *Generator) Rank(blocks []stats.BlockStat) []ScoredBlock {
	mean := globalMean(blocks)
	cands := make([]candidate, 0, len(blocks))
	for _, b := range blocks {
		if b.Count == 0 {
			continue
		}
		cands = append(cands, candidate{block: b.Block, avg: b.Avg, count: b.Count, score: g.shrink(b.Avg, b.Count, mean)})
	}
	sort.SliceStable(cands, func(i, j int) bool { return better(cands[i], cands[j]) })

	out := make([]ScoredBlock, len(cands))
	for i, c := range cands {
		out[i] = ScoredBlock{BlockStat: stats.BlockStat{Block: c.block, Avg: c.avg, Count: c.count}, Score: c.score}
	}
	return out
}

// Generate picks the best target cells (after clamping) and attaches their
// categorical picks and expected metrics. Theme fields are left empty.
func (g *Generator) Generate(in Input, target int) []models.RecommendationSlot {
	target = g.ClampTarget(target)
	ranked := g.Rank(in.Blocks)
	if len(ranked) > target {
		ranked = ranked[:target]
	}

	mean := globalMean(in.Blocks)
	shares := make(map[timeblock.Block]float64, len(in.Shares))
	for _, s := range in.Shares {
		shares[s.Block] = s.Avg
	}

	combos := g.bestCombos(in.Combos, mean)
	tones := g.bestLabels(in.Tones, mean)
	refs := g.bestLabels(in.References, mean)

	slots := make([]models.RecommendationSlot, 0, len(ranked))
	for _, cell := range ranked {
		p50 := int64(math.Round(cell.Avg))
		slot := models.RecommendationSlot{
			DayOfWeek:      cell.DayOfWeek,
			BlockStartHour: cell.BlockStartHour,
			Categories: models.Categories{
				Context:   []string{},
				Proposal:  []string{},
				Reference: []string{},
			},
			ExpectedMetrics: models.ExpectedMetrics{
				ViewsP50:  p50,
				ViewsP90:  g.P90(p50),
				SharesP50: int64(math.Round(shares[cell.Block])),
			},
			Score:       cell.Score,
			SampleCount: cell.Count,
			Themes:      []string{},
		}

		if combo, ok := combos.pick(cell.Block); ok {
			slot.Format = combo.Format
			slot.Categories.Context = []string{combo.Context}
			slot.Categories.Proposal = []string{combo.Proposal}
		}
		if tone, ok := tones.pick(cell.Block); ok {
			slot.Categories.Tone = tone
		}
		if ref, ok := refs.pick(cell.Block); ok {
			slot.Categories.Reference = []string{ref}
		}
		slots = append(slots, slot)
	}
	return slots
}

func globalMean(blocks []stats.BlockStat) float64 {
	var sum float64
	var n int
	for _, b := range blocks {
		sum += b.Avg * float64(b.Count)
		n += b.Count
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
