// engine/internal/rank/table_scorer.go
package rank

import (
	"math"
	"strings"

	"leadboard-engine/internal/config"
	"leadboard-engine/internal/domain"
)

const (
	pointsPerField    = 10.0 // name, email, phone, remarks
	pointsPerFollowUp = 2.5
	maxScore          = 100
)

// TableScorer scores a lead from field completeness, the stage and status
// point tables, and completed follow-ups. Stages and statuses missing from
// the tables score 0.
type TableScorer struct {
	StagePoints  map[string]float64
	StatusPoints map[string]float64
}

func NewTableScorer(cfg config.Config) TableScorer {
	return TableScorer{
		StagePoints:  cfg.Scoring.StagePoints,
		StatusPoints: cfg.Scoring.StatusPoints,
	}
}

func (s TableScorer) Score(lead domain.Lead) (int, Breakdown) {
	var b Breakdown

	for _, v := range []string{lead.FullName, lead.Email, lead.Phone, lead.Remarks} {
		if strings.TrimSpace(v) != "" {
			b.Completeness += pointsPerField
		}
	}

	b.Stage = capPoints(s.StagePoints[lead.Stage], config.MaxStagePoints)
	b.Status = capPoints(s.StatusPoints[lead.Status], config.MaxStatusPoints)
	b.FollowUps = float64(lead.CompletedFollowUps()) * pointsPerFollowUp

	total := math.Round(b.Completeness + b.Stage + b.Status + b.FollowUps)
	if total > maxScore {
		total = maxScore
	}
	if total < 0 {
		total = 0
	}
	return int(total), b
}

func capPoints(p, max float64) float64 {
	if p < 0 {
		return 0
	}
	if p > max {
		return max
	}
	return p
}
