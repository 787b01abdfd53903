package report

import (
	"fmt"
	"io"
	"text/template"

	"github.com/gi8lino/sprintkpi/internal/detect"
)

// fieldReportText lays out the detection outcome: numeric candidates from
// the sample issue, name matches from the field metadata, and the ranked
// recommendation. When metadata could not be fetched only the best guess is
// shown.
const fieldReportText = `Analyzing issue: {{ .IssueKey }}
{{ repeat 60 "-" }}

Custom fields with numeric values (potential story points):
{{ repeat 60 "-" }}
{{- if .Numeric }}
{{- range .Numeric }}
  {{ .ID }}: {{ .Value }}
{{- end }}
{{- else }}
  No numeric custom fields found
{{- end }}
{{- if .MetadataError }}

Error fetching field metadata: {{ .MetadataError }}

Best guess based on numeric values: {{ .Recommended }}
{{ else }}

Fields matching story points patterns:
{{- if .Matches }}
{{- range .Matches }}
  {{ if .Exact }}✓✓{{ else }}✓{{ end }} {{ .ID }}: {{ .Name }}{{ if .Value }} = {{ .Value }}{{ else }} (no value in sample){{ end }}
{{- end }}
{{- else }}
  No fields found matching common story points patterns
{{- end }}
{{- if .Numeric }}

All numeric custom fields with names:
{{ repeat 60 "-" }}
{{- range .Numeric }}
  {{ .ID }}: {{ .Name }} = {{ .Value }}
{{- end }}
{{- end }}

{{ repeat 60 "=" }}
RECOMMENDATION:
{{ repeat 60 "=" }}
{{- if eq .Confidence "exact" }}
Based on exact field name match, the story points field is:
  {{ .Recommended }} ({{ .RecommendedName }})
{{- else if eq .Confidence "name" }}
Based on field names, the story points field is likely:
  {{ .Recommended }} ({{ .RecommendedName }})
{{- else if eq .Confidence "numeric" }}
Based on numeric values, the story points field might be:
  {{ .Recommended }} ({{ .RecommendedName }})
{{- else }}
Could not determine story points field.
Common defaults to try: customfield_10016, customfield_10004, customfield_10026
{{- end }}

Add this to your .env file:
JIRA_STORY_POINTS_FIELD={{ .Recommended }}
{{ end }}`

var fieldReportTemplate = template.Must(template.New("fieldreport").
	Funcs(templateFuncMap()).
	Parse(fieldReportText))

// WriteFieldReport renders the story points detection outcome to w.
func WriteFieldReport(w io.Writer, rep *detect.Report) error {
	if err := fieldReportTemplate.Execute(w, rep); err != nil {
		return fmt.Errorf("render field report: %w", err)
	}
	return nil
}
