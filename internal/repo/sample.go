package repo

import "leadboard-engine/internal/domain"

// SampleLeads is served when the sheet has never been reachable and no
// snapshot exists, so the dashboard has something to render.
func SampleLeads() []domain.Lead {
	john := domain.Lead{
		ID:        "lead-1",
		FullName:  "John Smith",
		Email:     "john.smith@example.com",
		Phone:     "+1 555-123-4567",
		Source:    "Website",
		Associate: "Sarah Johnson",
		Status:    "Hot",
		Stage:     "Trial Scheduled",
		CreatedAt: "2023-09-15",
		Center:    "Downtown Center",
		Remarks:   "Interested in yoga classes, scheduled for trial on Saturday",
	}
	john.FollowUps = [domain.FollowUpSlots]domain.FollowUp{
		{Date: "2023-09-20", Comments: "Called to confirm trial class. Customer is excited."},
		{Date: "2023-09-25", Comments: "Completed trial class. Interested in monthly package."},
		{Date: "2023-09-28", Comments: "Discussing pricing options."},
	}

	emily := domain.Lead{
		ID:        "lead-2",
		FullName:  "Emily Wong",
		Email:     "emily.wong@example.com",
		Phone:     "+1 555-987-6543",
		Source:    "Referral",
		Associate: "Mike Chen",
		Status:    "Warm",
		Stage:     "Initial Contact",
		CreatedAt: "2023-09-10",
		Center:    "Westside Location",
		Remarks:   "Referred by existing member, looking for evening classes",
	}
	emily.FollowUps = [domain.FollowUpSlots]domain.FollowUp{
		{Date: "2023-09-12", Comments: "Left voicemail, will try again tomorrow."},
		{Date: "2023-09-13", Comments: "Discussed class options, she prefers weekends."},
	}

	return []domain.Lead{john, emily}
}
