package freeze

import (
	"sort"
	"strings"
	"time"

	"github.com/postcadence/planner/internal/models"
	"github.com/postcadence/planner/internal/timeblock"
)

// SampleCaptions returns captions of the best performing posts in the
// slot's cell, preferring posts that share the slot's format, context or
// proposal. It falls back to the whole cell when fewer than two captions
// match.
func SampleCaptions(records []models.PostRecord, loc *time.Location, slot models.RecommendationSlot, n int) []string {
	cell := timeblock.Block{DayOfWeek: slot.DayOfWeek, BlockStartHour: slot.BlockStartHour}

	var inCell, matching []models.PostRecord
	for _, r := range records {
		if strings.TrimSpace(r.Caption) == "" || timeblock.Of(r.PostedAt, loc) != cell {
			continue
		}
		inCell = append(inCell, r)
		if sharesCategory(r, slot) {
			matching = append(matching, r)
		}
	}

	pool := matching
	if len(pool) < 2 {
		pool = inCell
	}
	sort.SliceStable(pool, func(i, j int) bool {
		vi, _ := pool[i].Metric(models.MetricViews)
		vj, _ := pool[j].Metric(models.MetricViews)
		if vi != vj {
			return vi > vj
		}
		return pool[i].PostedAt.After(pool[j].PostedAt)
	})

	if n > 0 && len(pool) > n {
		pool = pool[:n]
	}
	captions := make([]string, 0, len(pool))
	for _, r := range pool {
		captions = append(captions, r.Caption)
	}
	return captions
}

func sharesCategory(r models.PostRecord, slot models.RecommendationSlot) bool {
	if slot.Format != "" && contains(r.Format, slot.Format) {
		return true
	}
	for _, c := range slot.Categories.Context {
		if contains(r.Context, c) {
			return true
		}
	}
	for _, p := range slot.Categories.Proposal {
		if contains(r.Proposal, p) {
			return true
		}
	}
	return false
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
