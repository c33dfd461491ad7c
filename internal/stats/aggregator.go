// Package stats turns post records into per-cell performance averages on
// the weekly grid, optionally sliced by a categorical dimension.
//
// Every function here is pure: the same records give the same stats, in
// the same order. A post whose metric cannot be read is skipped for that
// metric only.
package stats

import (
	"sort"
	"time"

	"github.com/postcadence/planner/internal/catalog"
	"github.com/postcadence/planner/internal/models"
	"github.com/postcadence/planner/internal/timeblock"
)

// DefaultPeriodDays is the trailing window used when callers pass none.
const DefaultPeriodDays = 90

// BlockStat is the average of one metric in one grid cell.
type BlockStat struct {
	timeblock.Block
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}

// CategoryBlockStat is a BlockStat restricted to posts carrying Label.
type CategoryBlockStat struct {
	timeblock.Block
	Label string  `json:"label"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}

// Combo is a (context, proposal, format) triple.
type Combo struct {
	Context  string `json:"context"`
	Proposal string `json:"proposal"`
	Format   string `json:"format"`
}

// ComboBlockStat is a BlockStat restricted to posts carrying a combo.
type ComboBlockStat struct {
	timeblock.Block
	Combo Combo   `json:"combo"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}

type accumulator struct {
	sum   float64
	count int
}

func (a *accumulator) add(v float64) {
	a.sum += v
	a.count++
}

func (a accumulator) avg() float64 {
	if a.count == 0 {
		return 0
	}
	return a.sum / float64(a.count)
}

// Aggregator computes grid statistics in a fixed timezone.
type Aggregator struct {
	loc *time.Location
	now func() time.Time
}

// NewAggregator creates an aggregator that places posts on the grid in loc.
func NewAggregator(loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{loc: loc, now: time.Now}
}

// WithClock returns a copy of the aggregator that reads the time from now.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	return &Aggregator{loc: a.loc, now: now}
}

// Location returns the grid timezone.
func (a *Aggregator) Location() *time.Location {
	return a.loc
}

// Window keeps records posted in the periodDays before now.
func Window(records []models.PostRecord, periodDays int, now time.Time) []models.PostRecord {
	if periodDays <= 0 {
		periodDays = DefaultPeriodDays
	}
	from := now.AddDate(0, 0, -periodDays)
	out := make([]models.PostRecord, 0, len(records))
	for _, r := range records {
		if r.PostedAt.Before(from) || r.PostedAt.After(now) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// BlockAverages averages metric per grid cell over the trailing periodDays.
// Cells without a qualifying post are absent.
func (a *Aggregator) BlockAverages(records []models.PostRecord, periodDays int, metric string) []BlockStat {
	if metric == "" {
		metric = models.MetricViews
	}
	buckets := make(map[timeblock.Block]*accumulator)
	for _, r := range Window(records, periodDays, a.now()) {
		v, ok := r.Metric(metric)
		if !ok {
			continue
		}
		b := timeblock.Of(r.PostedAt, a.loc)
		acc, exists := buckets[b]
		if !exists {
			acc = &accumulator{}
			buckets[b] = acc
		}
		acc.add(v)
	}

	out := make([]BlockStat, 0, len(buckets))
	for b, acc := range buckets {
		out = append(out, BlockStat{Block: b, Avg: acc.avg(), Count: acc.count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Block.Less(out[j].Block) })
	return out
}

type labelKey struct {
	block timeblock.Block
	label string
}

// CategoryStatsByBlock averages metric per (cell, value) of dim. A post
// with several values counts in full toward each of them.
func (a *Aggregator) CategoryStatsByBlock(records []models.PostRecord, dim catalog.Dimension, metric string) []CategoryBlockStat {
	if metric == "" {
		metric = models.MetricViews
	}
	buckets := make(map[labelKey]*accumulator)
	for _, r := range records {
		v, ok := r.Metric(metric)
		if !ok {
			continue
		}
		b := timeblock.Of(r.PostedAt, a.loc)
		for _, label := range r.Values(dim) {
			k := labelKey{block: b, label: label}
			acc, exists := buckets[k]
			if !exists {
				acc = &accumulator{}
				buckets[k] = acc
			}
			acc.add(v)
		}
	}

	out := make([]CategoryBlockStat, 0, len(buckets))
	for k, acc := range buckets {
		out = append(out, CategoryBlockStat{Block: k.block, Label: k.label, Avg: acc.avg(), Count: acc.count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Block != out[j].Block {
			return out[i].Block.Less(out[j].Block)
		}
		return out[i].Label < out[j].Label
	})
	return out
}

type comboKey struct {
	block timeblock.Block
	combo Combo
}

// ComboStatsByBlock averages metric per (cell, combo) over the cartesian
// product of each post's context, proposal and format values. Posts missing
// any of the three are left out.
func (a *Aggregator) ComboStatsByBlock(records []models.PostRecord, metric string) []ComboBlockStat {
	if metric == "" {
		metric = models.MetricViews
	}
	buckets := make(map[comboKey]*accumulator)
	for _, r := range records {
		if len(r.Context) == 0 || len(r.Proposal) == 0 || len(r.Format) == 0 {
			continue
		}
		v, ok := r.Metric(metric)
		if !ok {
			continue
		}
		b := timeblock.Of(r.PostedAt, a.loc)
		for _, c := range r.Context {
			for _, p := range r.Proposal {
				for _, f := range r.Format {
					k := comboKey{block: b, combo: Combo{Context: c, Proposal: p, Format: f}}
					acc, exists := buckets[k]
					if !exists {
						acc = &accumulator{}
						buckets[k] = acc
					}
					acc.add(v)
				}
			}
		}
	}

	out := make([]ComboBlockStat, 0, len(buckets))
	for k, acc := range buckets {
		out = append(out, ComboBlockStat{Block: k.block, Combo: k.combo, Avg: acc.avg(), Count: acc.count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Block != out[j].Block {
			return out[i].Block.Less(out[j].Block)
		}
		return out[i].Combo.less(out[j].Combo)
	})
	return out
}

func (c Combo) less(o Combo) bool {
	if c.Context != o.Context {
		return c.Context < o.Context
	}
	if c.Proposal != o.Proposal {
		return c.Proposal < o.Proposal
	}
	return c.Format < o.Format
}
