package rank

import "leadboard-engine/internal/domain"

// Breakdown is the per-component contribution to a lead score.
type Breakdown struct {
	Completeness float64 `json:"completeness"`
	Stage        float64 `json:"stage"`
	Status       float64 `json:"status"`
	FollowUps    float64 `json:"followUps"`
}

type Scorer interface {
	Score(lead domain.Lead) (score int, parts Breakdown)
}
