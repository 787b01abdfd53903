package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/gi8lino/sprintkpi/internal/metrics"
)

// baseColumns is the fixed part of the per-assignee table header. Columns
// for the issue types seen in the sprint are appended after it.
var baseColumns = []string{
	"Assignee",
	"Total Issues",
	"Completed Issues",
	"Completion % (Issues)",
	"Total Story Points",
	"Completed Story Points",
	"Completion % (Story Points)",
	"Avg Story Points per Issue",
	"Avg Cycle Time (Days)",
	"Bug Ratio (%)",
	"Workload Score",
}

// OutputFilename returns the default report file name for a sprint.
func OutputFilename(sprintID int) string {
	return fmt.Sprintf("sprint_%d_kpi.csv", sprintID)
}

// Float1 renders a float with exactly one decimal, matching how the rates
// are rounded.
func Float1(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// WriteCSV writes the per-assignee table followed by the sprint summary
// block. Every row is padded to the header width so the file stays
// rectangular.
func WriteCSV(w io.Writer, byAssignee map[string]*metrics.AssigneeMetrics, totals metrics.SprintTotals) error {
	cw := csv.NewWriter(w)

	types := issueTypeColumns(byAssignee)
	header := make([]string, 0, len(baseColumns)+len(types))
	header = append(header, baseColumns...)
	for _, typeName := range types {
		header = append(header, "Issues: "+typeName)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	width := len(header)
	for _, name := range sortedAssignees(byAssignee) {
		if err := cw.Write(assigneeRow(byAssignee[name], types)); err != nil {
			return fmt.Errorf("write assignee row: %w", err)
		}
	}

	for _, row := range summaryRows(totals) {
		if err := cw.Write(pad(row, width)); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// assigneeRow renders one assignee's counters and derived rates.
func assigneeRow(m *metrics.AssigneeMetrics, types []string) []string {
	row := make([]string, 0, len(baseColumns)+len(types))
	row = append(row,
		m.Assignee,
		strconv.Itoa(m.TotalIssues),
		strconv.Itoa(m.CompletedIssues),
		Float1(m.IssueCompletionRate()),
		Float1(m.TotalStoryPoints),
		Float1(m.CompletedStoryPoints),
		Float1(m.PointsCompletionRate()),
		Float1(m.AvgStoryPoints()),
		Float1(m.AvgCycleTime()),
		Float1(m.BugRatio()),
		Float1(m.WorkloadScore()),
	)
	for _, typeName := range types {
		row = append(row, strconv.Itoa(m.TypeCounts[typeName]))
	}
	return row
}

// summaryRows returns the sprint summary block, starting with a separator
// row.
func summaryRows(totals metrics.SprintTotals) [][]string {
	workload := totals.Workload()
	return [][]string{
		{},
		{"=== SPRINT SUMMARY ==="},
		{"Total Tasks Completed", fmt.Sprintf("%d/%d (%s%%)", totals.CompletedIssues, totals.TotalIssues, Float1(totals.IssueCompletionRate()))},
		{"Total Story Points Completed", fmt.Sprintf("%s/%s (%s%%)", Float1(totals.CompletedStoryPoints), Float1(totals.TotalStoryPoints), Float1(totals.PointsCompletionRate()))},
		{"Team Velocity (Completed SP)", Float1(totals.Velocity())},
		{"Average Cycle Time", Float1(totals.AvgCycleTime()) + " days"},
		{"Average Story Points per Task", Float1(totals.AvgPointsPerIssue())},
		{"Bug-to-Story Ratio", Float1(totals.BugStoryRatio()) + "%"},
		{},
		{"=== WORKLOAD DISTRIBUTION ==="},
		{"Min Story Points (Assignee)", Float1(workload.Min)},
		{"Max Story Points (Assignee)", Float1(workload.Max)},
		{"Avg Story Points (Assignee)", Float1(workload.Avg)},
		{"Workload Std Deviation", Float1(workload.StdDev)},
	}
}

// sortedAssignees orders bucket names case-insensitively, with a bytewise
// tiebreak to keep the output deterministic.
func sortedAssignees(byAssignee map[string]*metrics.AssigneeMetrics) []string {
	names := make([]string, 0, len(byAssignee))
	for name := range byAssignee {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return names
}

// issueTypeColumns collects every issue type seen across all assignees,
// sorted for stable columns.
func issueTypeColumns(byAssignee map[string]*metrics.AssigneeMetrics) []string {
	seen := make(map[string]bool)
	for _, m := range byAssignee {
		for typeName := range m.TypeCounts {
			seen[typeName] = true
		}
	}
	types := make([]string, 0, len(seen))
	for typeName := range seen {
		types = append(types, typeName)
	}
	slices.Sort(types)
	return types
}

// pad extends row with empty cells up to width.
func pad(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}
