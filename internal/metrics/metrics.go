package metrics

import (
	"strings"

	"github.com/gi8lino/sprintkpi/internal/jira"
)

// Rules classifies issues during aggregation. All sets hold lowercased
// values.
type Rules struct {
	StoryPointsField string          // custom field holding the estimate
	DoneCategories   map[string]bool // status category keys counted as done
	BugTypes         map[string]bool // issue type names counted as bugs
	StoryTypes       map[string]bool // issue type names counted as stories
}

// NewRules builds classification rules from plain lists, lowercasing every
// entry.
func NewRules(storyPointsField string, doneCategories, bugTypes, storyTypes []string) Rules {
	return Rules{
		StoryPointsField: storyPointsField,
		DoneCategories:   toSet(doneCategories),
		BugTypes:         toSet(bugTypes),
		StoryTypes:       toSet(storyTypes),
	}
}

// DefaultRules returns the stock classification: status category "done"
// counts as completed, issue types "bug" and "story" feed the ratios.
func DefaultRules(storyPointsField string) Rules {
	return NewRules(storyPointsField, []string{"done"}, []string{"bug"}, []string{"story"})
}

// toSet lowercases and deduplicates a list into a membership set.
func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			set[v] = true
		}
	}
	return set
}

// AssigneeMetrics accumulates workload and delivery counters for one
// assignee.
type AssigneeMetrics struct {
	Assignee             string
	TotalIssues          int
	CompletedIssues      int
	TotalStoryPoints     float64
	CompletedStoryPoints float64
	TypeCounts           map[string]int
	BugCount             int
	StoryCount           int
	CycleTimes           []float64 // completed issues with a positive cycle time
	StoryPoints          []float64 // one entry per issue, zeros included
}

// Compute groups issues by assignee and accumulates the per-assignee
// counters according to rules.
func Compute(issues []jira.Issue, rules Rules) map[string]*AssigneeMetrics {
	byAssignee := make(map[string]*AssigneeMetrics)
	for _, issue := range issues {
		name := issue.AssigneeName()
		m := byAssignee[name]
		if m == nil {
			m = &AssigneeMetrics{Assignee: name, TypeCounts: make(map[string]int)}
			byAssignee[name] = m
		}

		points := issue.StoryPoints(rules.StoryPointsField)
		typeName := issue.TypeName()

		m.TotalIssues++
		m.TotalStoryPoints += points
		m.TypeCounts[typeName]++
		m.StoryPoints = append(m.StoryPoints, points)

		lowerType := strings.ToLower(typeName)
		switch {
		case rules.BugTypes[lowerType]:
			m.BugCount++
		case rules.StoryTypes[lowerType]:
			m.StoryCount++
		}

		if rules.DoneCategories[issue.StatusCategoryKey()] {
			m.CompletedIssues++
			m.CompletedStoryPoints += points
			if cycleTime := issue.CycleTimeDays(); cycleTime > 0 {
				m.CycleTimes = append(m.CycleTimes, cycleTime)
			}
		}
	}
	return byAssignee
}

// IssueCompletionRate returns the completed-issues percentage, rounded to
// one decimal. Zero issues yield 0.
func (m *AssigneeMetrics) IssueCompletionRate() float64 {
	if m.TotalIssues == 0 {
		return 0
	}
	return Round1(float64(m.CompletedIssues) / float64(m.TotalIssues) * 100)
}

// PointsCompletionRate returns the completed-story-points percentage,
// rounded to one decimal. Zero total points yield 0.
func (m *AssigneeMetrics) PointsCompletionRate() float64 {
	if m.TotalStoryPoints == 0 {
		return 0
	}
	return Round1(m.CompletedStoryPoints / m.TotalStoryPoints * 100)
}

// AvgStoryPoints returns the mean estimate across all of the assignee's
// issues, rounded to one decimal.
func (m *AssigneeMetrics) AvgStoryPoints() float64 {
	return Round1(Mean(m.StoryPoints))
}

// AvgCycleTime returns the mean cycle time of the assignee's completed
// issues, rounded to one decimal.
func (m *AssigneeMetrics) AvgCycleTime() float64 {
	return Round1(Mean(m.CycleTimes))
}

// BugRatio returns the bugs-per-issue percentage, rounded to one decimal.
func (m *AssigneeMetrics) BugRatio() float64 {
	if m.TotalIssues == 0 {
		return 0
	}
	return Round1(float64(m.BugCount) / float64(m.TotalIssues) * 100)
}

// WorkloadScore returns story points per issue, rounded to one decimal. A
// floor of one issue keeps empty buckets from dividing by zero.
func (m *AssigneeMetrics) WorkloadScore() float64 {
	total := m.TotalIssues
	if total < 1 {
		total = 1
	}
	return Round1(m.TotalStoryPoints / float64(total))
}
