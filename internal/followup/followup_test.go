package followup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadboard-engine/internal/domain"
)

var now = time.Date(2024, 5, 20, 10, 30, 0, 0, time.UTC)

func daysAgo(n int) string { return now.AddDate(0, 0, -n).Format(domain.DateLayout) }

func TestWarmLeadEightDaysOldHasFourOverdue(t *testing.T) {
	lead := domain.Lead{Status: "Warm", Stage: "Initial Contact", CreatedAt: daysAgo(8)}

	st := DefaultPolicy().Evaluate(lead, now)
	assert.True(t, st.Open)
	assert.Equal(t, 8, st.DaysSinceCreated)
	assert.Equal(t, 0, st.Completed)
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 4, st.Overdue)
	require.NotNil(t, st.NextDue)
	assert.Equal(t, 1, *st.NextDue)
	for i, s := range st.Slots {
		assert.True(t, s.Overdue, "slot %d", i)
	}
}

func TestClosedLeadsContributeNoOverdue(t *testing.T) {
	p := DefaultPolicy()
	closed := []domain.Lead{
		{Status: "Warm", Stage: "Membership Sold"},
		{Status: "Lost", Stage: "Trial Scheduled"},
		{Status: "Converted", Stage: "Initial Contact"},
		{Status: "Disqualified"},
		{Stage: "Not Interested"},
	}
	for _, l := range closed {
		l.CreatedAt = daysAgo(30)
		st := p.Evaluate(l, now)
		assert.False(t, st.Open, "%+v", l)
		assert.Equal(t, 0, st.Overdue, "%+v", l)
		require.NotNil(t, st.NextDue)
		assert.Equal(t, 1, *st.NextDue)
	}
}

func TestPartialSchedule(t *testing.T) {
	lead := domain.Lead{Status: "Hot", CreatedAt: daysAgo(4)}
	lead.FollowUps[0].Date = daysAgo(3)
	lead.FollowUps[1].Date = "-"

	st := DefaultPolicy().Evaluate(lead, now)
	assert.Equal(t, 1, st.Completed)
	// day 3 passed with "-", day 5 and 7 not reached
	assert.Equal(t, 1, st.Overdue)
	require.NotNil(t, st.NextDue)
	assert.Equal(t, 3, *st.NextDue)
	assert.True(t, st.Slots[0].Done)
	assert.True(t, st.Slots[1].Overdue)
	assert.False(t, st.Slots[2].Overdue)
}

func TestFreshLeadNothingDue(t *testing.T) {
	st := DefaultPolicy().Evaluate(domain.Lead{Status: "New", CreatedAt: daysAgo(0)}, now)
	assert.Equal(t, 0, st.Overdue)
	assert.Nil(t, st.NextDue)
	assert.Equal(t, 0, st.DaysSinceCreated)
}

func TestUnparseableCreatedDate(t *testing.T) {
	st := DefaultPolicy().Evaluate(domain.Lead{Status: "Warm", CreatedAt: "sometime"}, now)
	assert.Equal(t, 0, st.DaysSinceCreated)
	assert.Equal(t, 0, st.Overdue)
}

func TestDaysSince(t *testing.T) {
	assert.Equal(t, 1, DaysSince("2024-05-19", now))
	assert.Equal(t, 8, DaysSince("05/12/2024", now))
	assert.Equal(t, 0, DaysSince("2024-06-01", now))
	assert.Equal(t, 2, DaysSince("2024-05-18T23:59:00Z", now))
	assert.Equal(t, 0, DaysSince("", now))
}

func TestCustomPolicy(t *testing.T) {
	p := Policy{
		ExpectedDays:   [domain.FollowUpSlots]int{2, 4, 6, 8},
		ClosedStatuses: map[string]bool{"Won": true},
		ClosedStages:   map[string]bool{},
	}
	st := p.Evaluate(domain.Lead{Status: "Warm", CreatedAt: daysAgo(5)}, now)
	assert.Equal(t, 2, st.Overdue)
	assert.False(t, p.IsOpen(domain.Lead{Status: "Won"}))
}
