package view

import (
	"sort"
	"strings"
)

const (
	Asc  = "asc"
	Desc = "desc"
)

// Derived sort keys. Every other key is read from the lead's fields.
const (
	KeyScore     = "score"
	KeyFollowUps = "followUps"
)

type SortConfig struct {
	Key       string `json:"key"`
	Direction string `json:"direction"`
}

// Toggle returns the sort after a click on key: the direction flips when key
// is already the sort key, otherwise key sorts ascending.
func Toggle(prev SortConfig, key string) SortConfig {
	if prev.Key == key {
		if prev.Direction == Asc {
			return SortConfig{Key: key, Direction: Desc}
		}
		return SortConfig{Key: key, Direction: Asc}
	}
	return SortConfig{Key: key, Direction: Asc}
}

// Sort orders rows in place. Strings compare case-insensitively; the sort is
// stable so equal keys keep their sheet order. An empty key leaves rows as is.
func Sort(rows []Row, cfg SortConfig) {
	if cfg.Key == "" {
		return
	}
	desc := cfg.Direction == Desc

	var less func(a, b Row) int
	switch cfg.Key {
	case KeyScore:
		less = func(a, b Row) int { return a.Score - b.Score }
	case KeyFollowUps:
		less = func(a, b Row) int { return a.FollowUp.Completed - b.FollowUp.Completed }
	default:
		less = func(a, b Row) int {
			return strings.Compare(
				strings.ToLower(a.Lead.Field(cfg.Key)),
				strings.ToLower(b.Lead.Field(cfg.Key)),
			)
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		c := less(rows[i], rows[j])
		if desc {
			return c > 0
		}
		return c < 0
	})
}
