package model

// Tier is the coarse performance bucket derived from a completion rate.
type Tier string

const (
	TierExcellent        Tier = "excellent"
	TierGood             Tier = "good"
	TierAverage          Tier = "average"
	TierNeedsImprovement Tier = "needs_improvement"
)

// TierFor maps a completion rate in percent to its tier.
func TierFor(rate float64) Tier {
	switch {
	case rate >= 90:
		return TierExcellent
	case rate >= 75:
		return TierGood
	case rate >= 60:
		return TierAverage
	default:
		return TierNeedsImprovement
	}
}

// TeamMemberSummary is derived per member from task and membership lists.
// It is never persisted.
type TeamMemberSummary struct {
	MemberID       string `json:"member_id"`
	DisplayName    string `json:"display_name"`
	Assigned       int    `json:"assigned"`
	Completed      int    `json:"completed"`
	ActiveProjects int    `json:"active_projects"`
}

// CompletionRate returns Completed/Assigned*100, or 0 when nothing is
// assigned.
func (s TeamMemberSummary) CompletionRate() float64 {
	if s.Assigned == 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Assigned) * 100
}

// Tier returns the performance tier for the current counts.
func (s TeamMemberSummary) Tier() Tier {
	return TierFor(s.CompletionRate())
}

// DashboardStats backs the dashboard stat cards.
type DashboardStats struct {
	TotalTasks      int
	CompletedTasks  int
	InProgressTasks int
	OverdueTasks    int
	ActiveProjects  int
}

// CompletionRate returns the share of completed tasks in percent.
func (s DashboardStats) CompletionRate() float64 {
	if s.TotalTasks == 0 {
		return 0
	}
	return float64(s.CompletedTasks) / float64(s.TotalTasks) * 100
}
