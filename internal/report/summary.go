package report

import (
	"fmt"
	"io"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/gi8lino/sprintkpi/internal/metrics"
)

// templateFuncMap returns all helper functions for report templates.
func templateFuncMap() template.FuncMap {
	fm := sprig.TxtFuncMap()
	fm["float1"] = Float1
	return fm
}

var summaryTemplate = template.Must(template.New("summary").
	Funcs(templateFuncMap()).
	Parse(`Wrote enhanced metrics to {{ .Output }}
Sprint Summary:
  - Tasks: {{ .Completed }}/{{ .Total }} ({{ float1 .IssueRate }}%)
  - Story Points: {{ float1 .CompletedPoints }}/{{ float1 .TotalPoints }} ({{ float1 .PointsRate }}%)
  - Team Velocity: {{ float1 .Velocity }} points
  - Avg Cycle Time: {{ float1 .CycleTime }} days
  - Bug Ratio: {{ float1 .BugRatio }}%
`))

// WriteSummary renders the post-run sprint summary block to w.
func WriteSummary(w io.Writer, output string, totals metrics.SprintTotals) error {
	data := map[string]any{
		"Output":          output,
		"Completed":       totals.CompletedIssues,
		"Total":           totals.TotalIssues,
		"IssueRate":       totals.IssueCompletionRate(),
		"CompletedPoints": totals.CompletedStoryPoints,
		"TotalPoints":     totals.TotalStoryPoints,
		"PointsRate":      totals.PointsCompletionRate(),
		"Velocity":        totals.Velocity(),
		"CycleTime":       totals.AvgCycleTime(),
		"BugRatio":        totals.BugStoryRatio(),
	}
	if err := summaryTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	return nil
}
