// Package plan validates user-edited weekly slots and stores them as the
// creator's plan.
package plan

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/postcadence/planner/internal/catalog"
	"github.com/postcadence/planner/internal/models"
	"github.com/postcadence/planner/internal/theme"
	"github.com/postcadence/planner/internal/timeblock"
)

// Caps applied to each slot.
const (
	MaxContexts         = 4
	MaxProposals        = 4
	MaxReferences       = 3
	MaxThemes           = 5
	MaxThemeKeywordRune = theme.MaxKeywordRunes
	MaxTitleRunes       = 140
	MaxNotesRunes       = 2000
)

// Sanitizer turns raw slot objects into valid plan slots.
type Sanitizer struct {
	catalog       *catalog.Catalog
	p90Multiplier float64
}

// NewSanitizer creates a sanitizer. p90Multiplier derives viewsP90 when a
// slot only carries viewsP50.
func NewSanitizer(cat *catalog.Catalog, p90Multiplier float64) *Sanitizer {
	if cat == nil {
		cat = catalog.Default()
	}
	if p90Multiplier < 1 {
		p90Multiplier = 1
	}
	return &Sanitizer{catalog: cat, p90Multiplier: p90Multiplier}
}

// Sanitize validates raw slots in submission order. Slots with an invalid
// day or hour are dropped, as is every slot after the first for a given
// cell. Survivors come back sorted by day and hour. dropped counts the
// slots that did not make it.
func (s *Sanitizer) Sanitize(raw []map[string]interface{}) (slots []models.PlanSlot, dropped int) {
	seenCells := make(map[timeblock.Block]bool, len(raw))
	seenIDs := make(map[uuid.UUID]bool, len(raw))
	slots = make([]models.PlanSlot, 0, len(raw))

	for _, r := range raw {
		slot, ok := s.slot(r)
		if !ok {
			dropped++
			continue
		}
		cell := timeblock.Block{DayOfWeek: slot.DayOfWeek, BlockStartHour: slot.BlockStartHour}
		if seenCells[cell] {
			dropped++
			continue
		}
		seenCells[cell] = true

		if slot.ID == uuid.Nil || seenIDs[slot.ID] {
			slot.ID = uuid.New()
		}
		seenIDs[slot.ID] = true
		slots = append(slots, slot)
	}

	sort.SliceStable(slots, func(i, j int) bool {
		a := timeblock.Block{DayOfWeek: slots[i].DayOfWeek, BlockStartHour: slots[i].BlockStartHour}
		b := timeblock.Block{DayOfWeek: slots[j].DayOfWeek, BlockStartHour: slots[j].BlockStartHour}
		return a.Less(b)
	})
	return slots, dropped
}

func (s *Sanitizer) slot(r map[string]interface{}) (models.PlanSlot, bool) {
	day, ok := integer(field(r, "day_of_week", "dayOfWeek"))
	if !ok || day < 1 || day > 7 {
		return models.PlanSlot{}, false
	}
	hour, ok := integer(field(r, "block_start_hour", "blockStartHour"))
	if !ok || !timeblock.IsAllowedHour(int(hour)) {
		return models.PlanSlot{}, false
	}

	slot := models.PlanSlot{
		DayOfWeek:      int(day),
		BlockStartHour: int(hour),
		Status:         status(field(r, "status")),
		Title:          clip(text(field(r, "title")), MaxTitleRunes),
		Notes:          clip(text(field(r, "notes")), MaxNotesRunes),
		ThemeKeyword:   keyword(text(field(r, "theme_keyword", "themeKeyword"))),
		Themes:         themes(field(r, "themes")),
	}
	if id, err := uuid.Parse(text(field(r, "id"))); err == nil {
		slot.ID = id
	}
	if f, ok := s.catalog.Resolve(catalog.Format, text(field(r, "format"))); ok {
		slot.Format = f
	}
	slot.Categories = s.categories(field(r, "categories"))
	slot.ExpectedMetrics = s.metrics(field(r, "expected_metrics", "expectedMetrics"))
	return slot, true
}

func (s *Sanitizer) categories(v interface{}) models.Categories {
	m, _ := v.(map[string]interface{})
	cats := models.Categories{
		Context:   s.catalog.ResolveAll(catalog.Context, strs(field(m, "context")), MaxContexts),
		Proposal:  s.catalog.ResolveAll(catalog.Proposal, strs(field(m, "proposal")), MaxProposals),
		Reference: s.catalog.ResolveAll(catalog.Reference, strs(field(m, "reference", "references")), MaxReferences),
	}
	for _, t := range strs(field(m, "tone")) {
		if id, ok := s.catalog.Resolve(catalog.Tone, t); ok {
			cats.Tone = id
			break
		}
	}
	return cats
}

func (s *Sanitizer) metrics(v interface{}) models.ExpectedMetrics {
	m, _ := v.(map[string]interface{})
	em := models.ExpectedMetrics{
		ViewsP50:  nonNegative(field(m, "views_p50", "viewsP50")),
		SharesP50: nonNegative(field(m, "shares_p50", "sharesP50")),
	}
	if p90 := field(m, "views_p90", "viewsP90"); p90 != nil {
		em.ViewsP90 = nonNegative(p90)
	} else {
		em.ViewsP90 = toInt64(float64(em.ViewsP50) * s.p90Multiplier)
	}
	return em
}

// field returns the first present key. Clients send snake_case; older
// ones send camelCase.
func field(m map[string]interface{}, names ...string) interface{} {
	for _, n := range names {
		if v, ok := m[n]; ok && v != nil {
			return v
		}
	}
	return nil
}

func number(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// integer accepts whole numbers only; 2.5 is not a day.
func integer(v interface{}) (int64, bool) {
	f, ok := number(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}

func nonNegative(v interface{}) int64 {
	f, ok := number(v)
	if !ok || f <= 0 {
		return 0
	}
	return toInt64(f)
}

// toInt64 rounds f, saturating at the int64 range.
func toInt64(f float64) int64 {
	f = math.Round(f)
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	if f <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(f)
}

func status(v interface{}) models.SlotStatus {
	s := models.SlotStatus(strings.ToLower(text(v)))
	for _, valid := range models.SlotStatuses {
		if s == valid {
			return s
		}
	}
	return models.SlotPlanned
}

func text(v interface{}) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// strs reads a string or an array of strings.
func strs(v interface{}) []string {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		return []string{t}
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func clip(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:limit]))
}

// keyword keeps the first word of s, without hashtags.
func keyword(s string) string {
	fields := strings.Fields(strings.ReplaceAll(s, "#", " "))
	if len(fields) == 0 {
		return ""
	}
	return clip(fields[0], MaxThemeKeywordRune)
}

func themes(v interface{}) []string {
	out := make([]string, 0, MaxThemes)
	for _, t := range strs(v) {
		t = strings.Join(strings.Fields(t), " ")
		if t == "" {
			continue
		}
		out = append(out, t)
		if len(out) == MaxThemes {
			break
		}
	}
	return out
}
