// Package followup computes contact-schedule status for leads.
package followup

import (
	"time"

	"leadboard-engine/internal/config"
	"leadboard-engine/internal/domain"
)

// Policy decides which leads are closed and when each follow-up slot is due.
type Policy struct {
	ExpectedDays   [domain.FollowUpSlots]int
	ClosedStatuses map[string]bool
	ClosedStages   map[string]bool
}

func NewPolicy(cfg config.Config) Policy {
	p := Policy{
		ClosedStatuses: make(map[string]bool),
		ClosedStages:   make(map[string]bool),
	}
	copy(p.ExpectedDays[:], cfg.FollowUps.ExpectedDays)
	for _, s := range cfg.FollowUps.ClosedStatuses {
		p.ClosedStatuses[s] = true
	}
	for _, s := range cfg.FollowUps.ClosedStages {
		p.ClosedStages[s] = true
	}
	return p
}

// DefaultPolicy is the 1/3/5/7-day schedule with the standard closed sets.
func DefaultPolicy() Policy { return NewPolicy(config.Default()) }

// IsOpen reports whether the lead is still being worked.
func (p Policy) IsOpen(l domain.Lead) bool {
	return !p.ClosedStatuses[l.Status] && !p.ClosedStages[l.Stage]
}

type Slot struct {
	ExpectedDay int  `json:"expectedDay"`
	Done        bool `json:"done"`
	Overdue     bool `json:"overdue"`
}

type Status struct {
	Completed        int                        `json:"completed"`
	Total            int                        `json:"total"`
	Overdue          int                        `json:"overdue"`
	NextDue          *int                       `json:"nextDue"`
	DaysSinceCreated int                        `json:"daysSinceCreated"`
	Open             bool                       `json:"open"`
	Slots            [domain.FollowUpSlots]Slot `json:"slots"`
}

// Evaluate computes the follow-up status of l at now. A slot is overdue when
// its expected day has passed without a date and the lead is open; closed
// leads never contribute overdue slots. NextDue is the first missed expected
// day, open or not.
func (p Policy) Evaluate(l domain.Lead, now time.Time) Status {
	st := Status{
		Total: domain.FollowUpSlots,
		Open:  p.IsOpen(l),
	}
	st.DaysSinceCreated = DaysSince(l.CreatedAt, now)

	for i, f := range l.FollowUps {
		slot := Slot{ExpectedDay: p.ExpectedDays[i]}
		switch {
		case f.Done():
			slot.Done = true
			st.Completed++
		case st.DaysSinceCreated >= slot.ExpectedDay:
			if st.NextDue == nil {
				day := slot.ExpectedDay
				st.NextDue = &day
			}
			if st.Open {
				slot.Overdue = true
				st.Overdue++
			}
		}
		st.Slots[i] = slot
	}
	return st
}

// DaysSince returns whole days between created and now, comparing calendar
// dates in UTC. Unparseable or future dates yield 0.
func DaysSince(created string, now time.Time) int {
	t, ok := domain.ParseDate(created)
	if !ok {
		return 0
	}
	c := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	n := now.UTC()
	n = time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	days := int(n.Sub(c).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
