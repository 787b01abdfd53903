package metrics

import (
	"slices"

	"github.com/gi8lino/sprintkpi/internal/jira"
)

// SprintTotals aggregates every assignee except the unassigned bucket.
type SprintTotals struct {
	TotalIssues          int
	CompletedIssues      int
	TotalStoryPoints     float64
	CompletedStoryPoints float64
	Bugs                 int
	Stories              int
	CycleTimes           []float64
	StoryPoints          []float64 // one entry per issue, zeros included
	AssigneePoints       []float64 // per-assignee totals, zero-point assignees excluded
}

// WorkloadStats describes how story points are spread across assignees.
type WorkloadStats struct {
	Min    float64
	Max    float64
	Avg    float64
	StdDev float64
}

// Totals folds the per-assignee metrics into sprint-wide counters. Issues
// in the unassigned bucket are left out so team numbers aren't skewed by
// unowned work.
func Totals(byAssignee map[string]*AssigneeMetrics) SprintTotals {
	var totals SprintTotals
	for name, m := range byAssignee {
		if name == jira.Unassigned {
			continue
		}
		totals.TotalIssues += m.TotalIssues
		totals.CompletedIssues += m.CompletedIssues
		totals.TotalStoryPoints += m.TotalStoryPoints
		totals.CompletedStoryPoints += m.CompletedStoryPoints
		totals.Bugs += m.BugCount
		totals.Stories += m.StoryCount
		totals.CycleTimes = append(totals.CycleTimes, m.CycleTimes...)
		totals.StoryPoints = append(totals.StoryPoints, m.StoryPoints...)
		if m.TotalStoryPoints > 0 {
			totals.AssigneePoints = append(totals.AssigneePoints, m.TotalStoryPoints)
		}
	}
	return totals
}

// IssueCompletionRate returns the sprint-wide completed-issues percentage,
// rounded to one decimal.
func (t SprintTotals) IssueCompletionRate() float64 {
	if t.TotalIssues == 0 {
		return 0
	}
	return Round1(float64(t.CompletedIssues) / float64(t.TotalIssues) * 100)
}

// PointsCompletionRate returns the sprint-wide completed-story-points
// percentage, rounded to one decimal.
func (t SprintTotals) PointsCompletionRate() float64 {
	if t.TotalStoryPoints == 0 {
		return 0
	}
	return Round1(t.CompletedStoryPoints / t.TotalStoryPoints * 100)
}

// Velocity returns the story points completed during the sprint.
func (t SprintTotals) Velocity() float64 {
	return t.CompletedStoryPoints
}

// AvgCycleTime returns the mean cycle time across all completed issues,
// rounded to one decimal.
func (t SprintTotals) AvgCycleTime() float64 {
	return Round1(Mean(t.CycleTimes))
}

// AvgPointsPerIssue returns the mean estimate across every assigned issue,
// rounded to one decimal.
func (t SprintTotals) AvgPointsPerIssue() float64 {
	return Round1(Mean(t.StoryPoints))
}

// BugStoryRatio returns bugs per story as a percentage, rounded to one
// decimal. A floor of one story keeps story-free sprints from dividing by
// zero.
func (t SprintTotals) BugStoryRatio() float64 {
	stories := t.Stories
	if stories < 1 {
		stories = 1
	}
	return Round1(float64(t.Bugs) / float64(stories) * 100)
}

// Workload returns the distribution of story points across assignees. The
// standard deviation uses the sample form and is 0 for fewer than two
// assignees.
func (t SprintTotals) Workload() WorkloadStats {
	if len(t.AssigneePoints) == 0 {
		return WorkloadStats{}
	}
	return WorkloadStats{
		Min:    slices.Min(t.AssigneePoints),
		Max:    slices.Max(t.AssigneePoints),
		Avg:    Round1(Mean(t.AssigneePoints)),
		StdDev: Round1(SampleStdDev(t.AssigneePoints)),
	}
}
