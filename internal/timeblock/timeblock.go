// Package timeblock maps instants onto the weekly grid the planner works on:
// ISO day of week (Monday=1 ... Sunday=7) times fixed three-hour blocks.
package timeblock

import (
	"fmt"
	"strings"
	"time"
)

// Width is the length of one block in hours.
const Width = 3

// AllowedHours lists every valid block start hour.
var AllowedHours = []int{0, 3, 6, 9, 12, 15, 18, 21}

// Block identifies one cell of the weekly grid.
type Block struct {
	DayOfWeek      int `json:"day_of_week"`
	BlockStartHour int `json:"block_start_hour"`
}

// Of returns the block containing t, evaluated in loc.
func Of(t time.Time, loc *time.Location) Block {
	local := t.In(loc)
	return Block{
		DayOfWeek:      ISODay(local.Weekday()),
		BlockStartHour: local.Hour() - local.Hour()%Width,
	}
}

// ISODay converts a time.Weekday to ISO numbering.
func ISODay(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

// IsAllowedHour reports whether h is a block start hour.
func IsAllowedHour(h int) bool {
	return h >= 0 && h < 24 && h%Width == 0
}

// Valid reports whether b is a cell of the grid.
func (b Block) Valid() bool {
	return b.DayOfWeek >= 1 && b.DayOfWeek <= 7 && IsAllowedHour(b.BlockStartHour)
}

// Less orders blocks by day, then hour.
func (b Block) Less(o Block) bool {
	if b.DayOfWeek != o.DayOfWeek {
		return b.DayOfWeek < o.DayOfWeek
	}
	return b.BlockStartHour < o.BlockStartHour
}

func (b Block) String() string {
	return fmt.Sprintf("%d@%02d", b.DayOfWeek, b.BlockStartHour)
}

// WeekStart returns Monday 00:00 of the week containing t, in loc.
// Applying it to its own result returns the same instant.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	offset := ISODay(local.Weekday()) - 1
	y, m, d := local.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
}

// WeekEnd returns the exclusive end of the week starting at weekStart.
func WeekEnd(weekStart time.Time) time.Time {
	return weekStart.AddDate(0, 0, 7)
}

// ParseWeekStart accepts a date (2006-01-02) or an RFC 3339 timestamp and
// normalizes it to the Monday of its week in loc. An empty string means the
// current week.
func ParseWeekStart(s string, loc *time.Location, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return WeekStart(now, loc), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return WeekStart(t, loc), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid week_start %q: expected YYYY-MM-DD or RFC 3339", s)
	}
	return WeekStart(t, loc), nil
}
