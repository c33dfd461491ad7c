package models

import (
	"encoding/json"
	"strings"
)

// LabelKind tells whether a categorical column held one value or a list.
type LabelKind string

const (
	LabelSingle LabelKind = "single"
	LabelMulti  LabelKind = "multi"
)

// Labels is a categorical value as stored by ingestion: older rows carry a
// bare string, newer ones an array.
type Labels struct {
	Kind   LabelKind
	Values []string
}

// DecodeLabels reads a categorical column. Anything that is not a JSON
// string or array is treated as a single plain-text value.
func DecodeLabels(raw []byte) Labels {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return Labels{Kind: LabelMulti}
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return Labels{Kind: LabelSingle, Values: []string{single}}
	}

	var multi []interface{}
	if err := json.Unmarshal(raw, &multi); err == nil {
		values := make([]string, 0, len(multi))
		for _, v := range multi {
			if s, ok := v.(string); ok {
				values = append(values, s)
			}
		}
		return Labels{Kind: LabelMulti, Values: values}
	}

	return Labels{Kind: LabelSingle, Values: []string{text}}
}

// Normalized returns the values lowercased and trimmed, without empties or
// duplicates, in their original order.
func (l Labels) Normalized() []string {
	out := make([]string, 0, len(l.Values))
	seen := make(map[string]bool, len(l.Values))
	for _, v := range l.Values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
