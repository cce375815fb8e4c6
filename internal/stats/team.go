// Package stats derives summary figures from workspace data. Everything
// here is pure and recomputed from raw lists on each call.
package stats

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/nhle/taskboard/internal/model"
)

// ComputeTeamPerformance builds one summary per member referenced by a
// task assignment or a project membership, in order of first reference,
// then stable-sorts by completion rate, highest first. Members that no
// task or membership references are left out.
func ComputeTeamPerformance(
	members []model.Member,
	tasks []model.Task,
	memberships []model.ProjectMember,
) []model.TeamMemberSummary {
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = m.DisplayName
	}

	index := make(map[string]int)
	var out []model.TeamMemberSummary
	summary := func(id string) *model.TeamMemberSummary {
		i, ok := index[id]
		if !ok {
			name := names[id]
			if name == "" {
				name = id
			}
			i = len(out)
			index[id] = i
			out = append(out, model.TeamMemberSummary{MemberID: id, DisplayName: name})
		}
		return &out[i]
	}

	for _, t := range tasks {
		if t.AssigneeID == nil || *t.AssigneeID == "" {
			continue
		}
		s := summary(*t.AssigneeID)
		s.Assigned++
		if t.IsDone() {
			s.Completed++
		}
	}

	seen := make(map[[2]string]bool)
	for _, pm := range memberships {
		if pm.MemberID == "" {
			continue
		}
		s := summary(pm.MemberID)
		key := [2]string{pm.MemberID, pm.ProjectID}
		if pm.Active && !seen[key] {
			seen[key] = true
			s.ActiveProjects++
		}
	}

	slices.SortStableFunc(out, func(a, b model.TeamMemberSummary) int {
		return cmp.Compare(b.CompletionRate(), a.CompletionRate())
	})
	return out
}

// Round1 rounds a percentage to one decimal place for display.
func Round1(rate float64) float64 {
	return math.Round(rate*10) / 10
}

// ComputeDashboardStats counts the figures behind the dashboard stat cards.
func ComputeDashboardStats(tasks []model.Task, projects []model.Project, now time.Time) model.DashboardStats {
	var s model.DashboardStats
	for _, t := range tasks {
		s.TotalTasks++
		switch {
		case t.IsDone():
			s.CompletedTasks++
		case t.Status == model.TaskInProgress:
			s.InProgressTasks++
		}
		if t.IsOverdue(now) {
			s.OverdueTasks++
		}
	}
	for _, p := range projects {
		if p.Status == model.ProjectActive {
			s.ActiveProjects++
		}
	}
	return s
}
