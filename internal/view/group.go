package view

import "math"

type Group struct {
	Key   string `json:"key"`
	Rows  []Row  `json:"leads"`
	Count int    `json:"count"`
	// Share is the group's size as a whole percentage of all rows.
	Share int `json:"share"`
}

// NoGroup disables grouping.
const NoGroup = "none"

// GroupBy partitions rows by the value of field, in order of first
// appearance. Rows with an empty value share the "" group. Every row lands in
// exactly one group.
func GroupBy(rows []Row, field string) []Group {
	if field == "" || field == NoGroup {
		return []Group{newGroup("", rows, len(rows))}
	}

	index := make(map[string]int)
	var keys []string
	buckets := make(map[string][]Row)
	for _, r := range rows {
		k := r.Lead.Field(field)
		if _, ok := index[k]; !ok {
			index[k] = len(keys)
			keys = append(keys, k)
		}
		buckets[k] = append(buckets[k], r)
	}

	out := make([]Group, 0, len(keys))
	for _, k := range keys {
		out = append(out, newGroup(k, buckets[k], len(rows)))
	}
	return out
}

func newGroup(key string, rows []Row, total int) Group {
	g := Group{Key: key, Rows: rows, Count: len(rows)}
	if g.Rows == nil {
		g.Rows = []Row{}
	}
	if total > 0 {
		g.Share = int(math.Round(float64(len(rows)) / float64(total) * 100))
	}
	return g
}
