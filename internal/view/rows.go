// Package view derives the dashboard's table from the working set: per-lead
// score and follow-up status, then filtering, sorting, grouping and paging.
package view

import (
	"encoding/json"
	"time"

	"leadboard-engine/internal/domain"
	"leadboard-engine/internal/followup"
	"leadboard-engine/internal/rank"
)

// Row is a lead with its derived metrics.
type Row struct {
	domain.Lead
	Score    int             `json:"score"`
	Parts    rank.Breakdown  `json:"scoreParts"`
	FollowUp followup.Status `json:"followUp"`
	Open     bool            `json:"open"`
}

// MarshalJSON flattens the lead fields next to the derived ones.
func (r Row) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 32)
	for k, v := range r.Lead.Fields() {
		m[k] = v
	}
	m["score"] = r.Score
	m["scoreParts"] = r.Parts
	m["followUp"] = r.FollowUp
	m["open"] = r.Open
	return json.Marshal(m)
}

type Deriver struct {
	Scorer rank.Scorer
	Policy followup.Policy
}

func (d Deriver) Row(l domain.Lead, now time.Time) Row {
	score, parts := d.Scorer.Score(l)
	st := d.Policy.Evaluate(l, now)
	return Row{Lead: l, Score: score, Parts: parts, FollowUp: st, Open: st.Open}
}

func (d Deriver) Rows(leads []domain.Lead, now time.Time) []Row {
	out := make([]Row, len(leads))
	for i, l := range leads {
		out[i] = d.Row(l, now)
	}
	return out
}
