// Package catalog is the canonical category vocabulary: one id and one
// human-readable label per value, for each categorical dimension a post
// can be tagged with.
package catalog

import (
	"fmt"
	"sort"

	"github.com/postcadence/planner/internal/textnorm"
)

// Dimension names a categorical attribute of a post.
type Dimension string

const (
	Context   Dimension = "context"
	Proposal  Dimension = "proposal"
	Reference Dimension = "reference"
	Tone      Dimension = "tone"
	Format    Dimension = "format"
)

// Dimensions lists every dimension in aggregation order.
var Dimensions = []Dimension{Context, Proposal, Reference, Tone, Format}

// ParseDimension validates a dimension name.
func ParseDimension(s string) (Dimension, error) {
	for _, d := range Dimensions {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown dimension %q", s)
}

// Entry is one canonical value.
type Entry struct {
	ID      string
	Label   string
	Aliases []string
}

// Catalog resolves free-form labels to canonical ids.
type Catalog struct {
	entries map[Dimension][]Entry
	byKey   map[Dimension]map[string]string // folded id/label/alias -> id
	labels  map[Dimension]map[string]string // id -> label
}

// New builds a catalog from the given entries.
func New(entries map[Dimension][]Entry) *Catalog {
	c := &Catalog{
		entries: entries,
		byKey:   make(map[Dimension]map[string]string, len(entries)),
		labels:  make(map[Dimension]map[string]string, len(entries)),
	}
	for dim, list := range entries {
		keys := make(map[string]string, len(list)*3)
		labels := make(map[string]string, len(list))
		for _, e := range list {
			labels[e.ID] = e.Label
			keys[textnorm.Fold(e.ID)] = e.ID
			keys[textnorm.Fold(e.Label)] = e.ID
			keys[textnorm.Slug(e.Label)] = e.ID
			for _, a := range e.Aliases {
				keys[textnorm.Fold(a)] = e.ID
			}
		}
		c.byKey[dim] = keys
		c.labels[dim] = labels
	}
	return c
}

// Resolve maps an id, label or alias (case and accent insensitive) to the
// canonical id.
func (c *Catalog) Resolve(dim Dimension, raw string) (string, bool) {
	keys, ok := c.byKey[dim]
	if !ok {
		return "", false
	}
	if id, ok := keys[textnorm.Fold(raw)]; ok {
		return id, true
	}
	id, ok := keys[textnorm.Slug(raw)]
	return id, ok
}

// ResolveAll resolves values in order, dropping unknown values and
// duplicates, and stops after limit ids. limit <= 0 means no cap.
func (c *Catalog) ResolveAll(dim Dimension, raw []string, limit int) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		id, ok := c.Resolve(dim, r)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Label returns the human-readable label for id, or id itself when the
// catalog does not know it.
func (c *Catalog) Label(dim Dimension, id string) string {
	if l, ok := c.labels[dim][id]; ok {
		return l
	}
	return id
}

// LabelTerms returns the folded ids and labels of the given values. The
// theme synthesizer uses them to keep a post's own category words out of
// its keyword.
func (c *Catalog) LabelTerms(dim Dimension, ids []string) []string {
	terms := make([]string, 0, len(ids)*2)
	for _, id := range ids {
		terms = append(terms, textnorm.Fold(id), textnorm.Fold(c.Label(dim, id)))
	}
	return terms
}

// IDs returns every canonical id of a dimension, sorted.
func (c *Catalog) IDs(dim Dimension) []string {
	ids := make([]string, 0, len(c.entries[dim]))
	for _, e := range c.entries[dim] {
		ids = append(ids, e.ID)
	}
	sort.Strings(ids)
	return ids
}
