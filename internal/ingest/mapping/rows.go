package mapping

import (
	"fmt"
	"strings"
	"time"

	"leadboard-engine/internal/domain"
)

// Stats summarizes one MapRows pass.
type Stats struct {
	Rows             int      `json:"rows"`
	Mapped           int      `json:"mapped"`
	SkippedBlank     int      `json:"skippedBlank"`
	SkippedNoContact int      `json:"skippedNoContact"`
	// DuplicateIDs counts leads renamed because their id was already taken.
	DuplicateIDs int      `json:"duplicateIds"`
	Unmapped         []string `json:"unmapped,omitempty"`
}

// MapRows converts a sheet (header row first) into leads. Sheets with fewer
// than two rows map to an empty set.
//
// When several columns resolve to the same field, an exact alias column keeps
// the first non-empty value it sees; substring columns overwrite each other
// (last non-empty wins) but never an exact one.
func MapRows(rows [][]string, now time.Time) ([]domain.Lead, Stats) {
	var st Stats
	if len(rows) < 2 {
		return []domain.Lead{}, st
	}
	plan := Resolve(rows[0], Fuzzy)
	st.Unmapped = plan.Unmapped()

	leads := make([]domain.Lead, 0, len(rows)-1)
	var assigned []bool // id came from the sheet, not lead-<n>
	explicit := map[string]bool{}
	for i, row := range rows[1:] {
		st.Rows++
		if blankRow(row) {
			st.SkippedBlank++
			continue
		}
		l := plan.Lead(row)
		if strings.TrimSpace(l.FullName) == "" && strings.TrimSpace(l.Email) == "" {
			st.SkippedNoContact++
			continue
		}
		fromSheet := l.ID != ""
		if fromSheet {
			explicit[l.ID] = true
		} else {
			l.ID = fmt.Sprintf("lead-%d", i+1)
		}
		l.ApplyDefaults(now)
		leads = append(leads, l)
		assigned = append(assigned, fromSheet)
	}

	// Ids from the sheet win over generated ones; later repeats are renamed
	// <id>-2, <id>-3, ... so every id stays unique and stable across fetches.
	seen := make(map[string]bool, len(leads))
	for i := range leads {
		id := leads[i].ID
		if !seen[id] && (assigned[i] || !explicit[id]) {
			seen[id] = true
			continue
		}
		st.DuplicateIDs++
		for n := 2; ; n++ {
			c := fmt.Sprintf("%s-%d", id, n)
			if !seen[c] && !explicit[c] {
				leads[i].ID = c
				seen[c] = true
				break
			}
		}
	}
	st.Mapped = len(leads)
	return leads, st
}

// Lead applies the plan to one data row. Defaults are not applied.
func (p Plan) Lead(row []string) domain.Lead {
	var l domain.Lead
	claimed := make(map[string]Priority)

	for i, col := range p.Columns {
		if i >= len(row) {
			break
		}
		v := strings.TrimSpace(row[i])
		if v == "" {
			continue
		}
		if col.Extra() {
			if col.Header != "" {
				l.SetField(col.Header, v)
			}
			continue
		}
		if prev, ok := claimed[col.Field]; ok {
			if col.Priority > prev || (col.Priority == PriorityExact && prev == PriorityExact) {
				continue
			}
		}
		claimed[col.Field] = col.Priority
		l.SetField(col.Field, cleanValue(col.Field, v))
	}
	return l
}

func cleanValue(field, v string) string {
	switch {
	case field == "createdAt":
		return domain.NormalizeDate(v)
	case field == "remarks", strings.HasSuffix(field, "Comments"):
		return CleanRemark(v)
	}
	return v
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
