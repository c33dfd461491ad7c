package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/postcadence/planner/internal/catalog"
)

// Metric names present in MetricValues.
const (
	MetricViews    = "views"
	MetricLikes    = "likes"
	MetricComments = "comments"
	MetricShares   = "shares"
	MetricSaves    = "saves"
	MetricReach    = "reach"
)

// Metrics lists every metric a caller may aggregate on.
var Metrics = []string{MetricViews, MetricLikes, MetricComments, MetricShares, MetricSaves, MetricReach}

// IsMetric reports whether name is a known metric.
func IsMetric(name string) bool {
	for _, m := range Metrics {
		if m == name {
			return true
		}
	}
	return false
}

// Post is one published post as written by the ingestion service. The
// planner only reads this table.
type Post struct {
	ID            int64          `gorm:"primaryKey;autoIncrement;column:id"`
	UserID        string         `gorm:"type:varchar(64);not null;index:idx_creator_posts_user_posted,priority:1;column:user_id"`
	PostedAt      time.Time      `gorm:"not null;index:idx_creator_posts_user_posted,priority:2;column:posted_at"`
	MetricValues  datatypes.JSON `gorm:"column:metric_values"`
	Format        datatypes.JSON `gorm:"column:format"`
	Context       datatypes.JSON `gorm:"column:context"`
	Proposal      datatypes.JSON `gorm:"column:proposal"`
	ReferenceTags datatypes.JSON `gorm:"column:reference_tags"`
	Tone          datatypes.JSON `gorm:"column:tone"`
	Caption       string         `gorm:"type:text;column:caption"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "creator_posts"
}

// Record converts the storage row into the normalized form the aggregator
// works on. Metric values stay raw; they are coerced per metric on use.
func (p *Post) Record() PostRecord {
	metrics := map[string]interface{}{}
	if len(p.MetricValues) > 0 {
		dec := json.NewDecoder(strings.NewReader(string(p.MetricValues)))
		dec.UseNumber()
		if err := dec.Decode(&metrics); err != nil {
			metrics = map[string]interface{}{}
		}
	}
	return PostRecord{
		UserID:     p.UserID,
		PostedAt:   p.PostedAt,
		Metrics:    metrics,
		Format:     DecodeLabels(p.Format).Normalized(),
		Context:    DecodeLabels(p.Context).Normalized(),
		Proposal:   DecodeLabels(p.Proposal).Normalized(),
		References: DecodeLabels(p.ReferenceTags).Normalized(),
		Tone:       DecodeLabels(p.Tone).Normalized(),
		Caption:    p.Caption,
	}
}

// PostRecord is a post with every categorical dimension resolved to a
// uniform lowercase array.
type PostRecord struct {
	UserID     string
	PostedAt   time.Time
	Metrics    map[string]interface{}
	Format     []string
	Context    []string
	Proposal   []string
	References []string
	Tone       []string
	Caption    string
}

// Values returns the record's values for a dimension.
func (r PostRecord) Values(dim catalog.Dimension) []string {
	switch dim {
	case catalog.Context:
		return r.Context
	case catalog.Proposal:
		return r.Proposal
	case catalog.Reference:
		return r.References
	case catalog.Tone:
		return r.Tone
	case catalog.Format:
		return r.Format
	default:
		return nil
	}
}

// Metric coerces one metric value. Missing, null, non-numeric and
// non-finite values report false.
func (r PostRecord) Metric(name string) (float64, bool) {
	v, ok := r.Metrics[name]
	if !ok || v == nil {
		return 0, false
	}

	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
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
