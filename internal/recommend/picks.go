package recommend

import (
	"sort"

	"github.com/postcadence/planner/internal/stats"
	"github.com/postcadence/planner/internal/timeblock"
)

// picker holds the best value per cell plus the best value overall, used
// when a cell has no data of its own.
type picker[T any] struct {
	perCell map[timeblock.Block]T
	global  T
	hasAny  bool
}

func (p picker[T]) pick(b timeblock.Block) (T, bool) {
	if v, ok := p.perCell[b]; ok {
		return v, true
	}
	return p.global, p.hasAny
}

func (g *Generator) bestCombos(combos []stats.ComboBlockStat, mean float64) picker[stats.Combo] {
	p := picker[stats.Combo]{perCell: make(map[timeblock.Block]stats.Combo)}
	if len(combos) == 0 {
		return p
	}

	best := make(map[timeblock.Block]candidate)
	byCombo := make(map[stats.Combo]*accumulator)
	keys := make(map[string]stats.Combo)
	for _, c := range combos {
		key := comboKey(c.Combo)
		keys[key] = c.Combo
		cand := candidate{block: c.Block, key: key, avg: c.Avg, count: c.Count, score: g.shrink(c.Avg, c.Count, mean)}
		if cur, ok := best[c.Block]; !ok || better(cand, cur) {
			best[c.Block] = cand
		}
		acc, ok := byCombo[c.Combo]
		if !ok {
			acc = &accumulator{}
			byCombo[c.Combo] = acc
		}
		acc.sum += c.Avg * float64(c.Count)
		acc.count += c.Count
	}
	for b, cand := range best {
		p.perCell[b] = keys[cand.key]
	}

	global := make([]candidate, 0, len(byCombo))
	for combo, acc := range byCombo {
		if acc.count == 0 {
			continue
		}
		avg := acc.sum / float64(acc.count)
		global = append(global, candidate{key: comboKey(combo), avg: avg, count: acc.count, score: g.shrink(avg, acc.count, mean)})
	}
	if len(global) == 0 {
		return p
	}
	sort.Slice(global, func(i, j int) bool { return better(global[i], global[j]) })
	p.global = keys[global[0].key]
	p.hasAny = true
	return p
}

func (g *Generator) bestLabels(labels []stats.CategoryBlockStat, mean float64) picker[string] {
	p := picker[string]{perCell: make(map[timeblock.Block]string)}
	if len(labels) == 0 {
		return p
	}

	best := make(map[timeblock.Block]candidate)
	byLabel := make(map[string]*accumulator)
	for _, l := range labels {
		cand := candidate{block: l.Block, key: l.Label, avg: l.Avg, count: l.Count, score: g.shrink(l.Avg, l.Count, mean)}
		if cur, ok := best[l.Block]; !ok || better(cand, cur) {
			best[l.Block] = cand
		}
		acc, ok := byLabel[l.Label]
		if !ok {
			acc = &accumulator{}
			byLabel[l.Label] = acc
		}
		acc.sum += l.Avg * float64(l.Count)
		acc.count += l.Count
	}
	for b, cand := range best {
		p.perCell[b] = cand.key
	}

	global := make([]candidate, 0, len(byLabel))
	for label, acc := range byLabel {
		if acc.count == 0 {
			continue
		}
		avg := acc.sum / float64(acc.count)
		global = append(global, candidate{key: label, avg: avg, count: acc.count, score: g.shrink(avg, acc.count, mean)})
	}
	if len(global) == 0 {
		return p
	}
	sort.Slice(global, func(i, j int) bool { return better(global[i], global[j]) })
	p.global = global[0].key
	p.hasAny = true
	return p
}

type accumulator struct {
	sum   float64
	count int
}

func comboKey(c stats.Combo) string {
	return c.Context + "|" + c.Proposal + "|" + c.Format
}
