package view

import (
	"errors"
	"strings"
	"time"

	"leadboard-engine/internal/domain"
)

var ErrUnknownPreset = errors.New("unknown date preset")

// Quick date presets.
const (
	Today      = "today"
	Yesterday  = "yesterday"
	ThisWeek   = "thisWeek"
	LastWeek   = "lastWeek"
	ThisMonth  = "thisMonth"
	LastMonth  = "lastMonth"
	Last7Days  = "last7Days"
	Last30Days = "last30Days"
)

func Presets() []string {
	return []string{Today, Yesterday, Last7Days, ThisWeek, LastWeek, ThisMonth, LastMonth, Last30Days}
}

// Range is an inclusive span of calendar days. A zero bound is open.
type Range struct {
	From time.Time
	To   time.Time
}

func (r Range) IsZero() bool { return r.From.IsZero() && r.To.IsZero() }

// Contains reports whether day d falls inside the range.
func (r Range) Contains(d time.Time) bool {
	d = day(d)
	if !r.From.IsZero() && d.Before(day(r.From)) {
		return false
	}
	if !r.To.IsZero() && d.After(day(r.To)) {
		return false
	}
	return true
}

// DateRange resolves a quick filter preset against now. Weeks run Monday to
// Sunday; "this month" ends today.
func DateRange(preset string, now time.Time) (Range, error) {
	today := day(now)
	switch preset {
	case Today:
		return Range{today, today}, nil
	case Yesterday:
		y := today.AddDate(0, 0, -1)
		return Range{y, y}, nil
	case ThisWeek:
		mon := today.AddDate(0, 0, -sinceMonday(today))
		return Range{mon, mon.AddDate(0, 0, 6)}, nil
	case LastWeek:
		mon := today.AddDate(0, 0, -sinceMonday(today)-7)
		return Range{mon, mon.AddDate(0, 0, 6)}, nil
	case ThisMonth:
		return Range{time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC), today}, nil
	case LastMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Range{first.AddDate(0, -1, 0), first.AddDate(0, 0, -1)}, nil
	case Last7Days:
		return Range{today.AddDate(0, 0, -7), today}, nil
	case Last30Days:
		return Range{today.AddDate(0, 0, -30), today}, nil
	}
	return Range{}, ErrUnknownPreset
}

func sinceMonday(d time.Time) int {
	return (int(d.Weekday()) + 6) % 7
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Filters narrows the table. Empty sets match everything; within a set any
// value matches.
type Filters struct {
	Search     string
	Statuses   []string
	Stages     []string
	Sources    []string
	Associates []string
	Centers    []string
	Created    Range
}

func (f Filters) Match(l domain.Lead) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		hay := strings.ToLower(l.FullName + "\n" + l.Email + "\n" + l.Phone)
		if !strings.Contains(hay, q) {
			return false
		}
	}
	if !anyOf(f.Statuses, l.Status) ||
		!anyOf(f.Stages, l.Stage) ||
		!anyOf(f.Sources, l.Source) ||
		!anyOf(f.Associates, l.Associate) ||
		!anyOf(f.Centers, l.Center) {
		return false
	}
	if !f.Created.IsZero() {
		t, ok := domain.ParseDate(l.CreatedAt)
		if !ok || !f.Created.Contains(t) {
			return false
		}
	}
	return true
}

func Filter(rows []Row, f Filters) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if f.Match(r.Lead) {
			out = append(out, r)
		}
	}
	return out
}

func anyOf(set []string, v string) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
