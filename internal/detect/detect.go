package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/gi8lino/sprintkpi/internal/jira"
)

// FallbackFieldID is the conventional Jira Cloud default recommended when
// nothing on the instance matches.
const FallbackFieldID = "customfield_10016"

// sampleSize limits how many sprint issues are inspected for a sample.
const sampleSize = 5

// Confidence ranks how a recommendation was derived.
type Confidence string

const (
	ConfidenceExact    Confidence = "exact"    // field name matches a known pattern exactly
	ConfidenceName     Confidence = "name"     // field name contains a known pattern
	ConfidenceNumeric  Confidence = "numeric"  // first numeric custom field on the sample
	ConfidenceFallback Confidence = "fallback" // nothing matched, conventional default
)

// NumericField is a custom field on the sample issue holding a number.
type NumericField struct {
	ID    string
	Name  string // from field metadata, "Unknown" when unavailable
	Value float64
}

// Match is a metadata field whose name fits a story-points pattern.
type Match struct {
	ID    string
	Name  string
	Exact bool
	Value string // rendered sample value, "" when the sample has none
}

// Report is the outcome of one detection run.
type Report struct {
	IssueKey        string
	Numeric         []NumericField
	Matches         []Match
	Recommended     string
	RecommendedName string
	Confidence      Confidence
	MetadataError   string // set when field metadata could not be fetched
}

// Options selects the sample issue to analyze.
type Options struct {
	SprintID int
	IssueKey string
}

var exactPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^story points?$`),
	regexp.MustCompile(`^story point estimate$`),
	regexp.MustCompile(`^points?$`),
}

var partialPatterns = []string{"story points", "story point", "estimate", "sp"}

// excludeTerms filters partial hits that are clearly not estimate fields.
var excludeTerms = []string{"sprint", "response", "chart", "date", "time", "ready", "spec"}

// Run fetches a sample issue and derives the story points field
// recommendation. When field metadata cannot be fetched but the sample
// carries numeric custom fields, the first of those becomes a best guess
// instead of failing the run.
func Run(ctx context.Context, client jira.Fetcher, opts Options) (*Report, error) {
	issue, err := sampleIssue(ctx, client, opts)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		IssueKey: issue.Key,
		Numeric:  numericFields(issue),
	}
	if rep.IssueKey == "" {
		rep.IssueKey = "Unknown"
	}

	fields, err := client.Fields(ctx)
	if err != nil {
		if len(rep.Numeric) == 0 {
			return nil, err
		}
		rep.MetadataError = err.Error()
		rep.Recommended = rep.Numeric[0].ID
		rep.Confidence = ConfidenceNumeric
		return rep, nil
	}

	names := make(map[string]string, len(fields))
	for _, field := range fields {
		names[field.ID] = field.Name
	}
	for i := range rep.Numeric {
		if name, ok := names[rep.Numeric[i].ID]; ok && name != "" {
			rep.Numeric[i].Name = name
		} else {
			rep.Numeric[i].Name = "Unknown"
		}
	}

	rep.Matches = matchFields(fields, issue)
	rep.Recommended, rep.RecommendedName, rep.Confidence = recommend(rep)
	return rep, nil
}

// sampleIssue picks the issue to analyze: a named issue, or from a sprint
// the first issue carrying a positive numeric custom field (falling back to
// the first issue of the page).
func sampleIssue(ctx context.Context, client jira.Fetcher, opts Options) (*jira.Issue, error) {
	if opts.IssueKey != "" {
		return client.Issue(ctx, opts.IssueKey)
	}
	if opts.SprintID <= 0 {
		return nil, fmt.Errorf("either a sprint id or an issue key is required")
	}

	page, err := client.SprintIssuesPage(ctx, opts.SprintID, 0, sampleSize)
	if err != nil {
		return nil, err
	}
	if len(page.Issues) == 0 {
		return nil, fmt.Errorf("no issues found in sprint %d", opts.SprintID)
	}

	for i := range page.Issues {
		if hasPositiveNumericField(page.Issues[i]) {
			return &page.Issues[i], nil
		}
	}
	return &page.Issues[0], nil
}

// numericFields collects the sample issue's numeric custom fields, sorted
// by field ID.
func numericFields(issue *jira.Issue) []NumericField {
	ids := make([]string, 0, len(issue.Fields.Custom))
	for id := range issue.Fields.Custom {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var numeric []NumericField
	for _, id := range ids {
		if value, ok := numericValue(issue.Fields.Custom[id]); ok {
			numeric = append(numeric, NumericField{ID: id, Value: value})
		}
	}
	return numeric
}

// numericValue reports whether raw is a JSON number. Null is not a number
// even though it unmarshals into a float without error.
func numericValue(raw json.RawMessage) (float64, bool) {
	if string(raw) == "null" {
		return 0, false
	}
	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, false
	}
	return value, true
}

func hasPositiveNumericField(issue jira.Issue) bool {
	for _, raw := range issue.Fields.Custom {
		if value, ok := numericValue(raw); ok && value > 0 {
			return true
		}
	}
	return false
}

// matchFields scans field metadata for names fitting the story-points
// patterns. Exact matches are listed before partial ones.
func matchFields(fields []jira.FieldMeta, issue *jira.Issue) []Match {
	var exact, partial []Match
	for _, field := range fields {
		if !strings.HasPrefix(field.ID, "customfield_") {
			continue
		}
		lower := strings.ToLower(field.Name)

		if matchesExact(lower) {
			exact = append(exact, Match{
				ID:    field.ID,
				Name:  field.Name,
				Exact: true,
				Value: sampleValue(issue, field.ID),
			})
			continue
		}
		if matchesPartial(lower) {
			partial = append(partial, Match{
				ID:    field.ID,
				Name:  field.Name,
				Value: sampleValue(issue, field.ID),
			})
		}
	}
	return append(exact, partial...)
}

func matchesExact(lowerName string) bool {
	for _, pattern := range exactPatterns {
		if pattern.MatchString(lowerName) {
			return true
		}
	}
	return false
}

func matchesPartial(lowerName string) bool {
	for _, pattern := range partialPatterns {
		if !strings.Contains(lowerName, pattern) {
			continue
		}
		for _, term := range excludeTerms {
			if strings.Contains(lowerName, term) {
				return false
			}
		}
		return true
	}
	return false
}

// sampleValue renders the sample issue's value of a field for annotation.
// Absent or null values yield "".
func sampleValue(issue *jira.Issue, fieldID string) string {
	raw, ok := issue.Fields.Custom[fieldID]
	if !ok || string(raw) == "null" {
		return ""
	}
	if value, ok := numericValue(raw); ok {
		return strconv.FormatFloat(value, 'g', -1, 64)
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return string(raw)
}

// recommend picks the field to suggest: exact name match, then any name
// match, then the first numeric candidate, then the conventional default.
func recommend(rep *Report) (id, name string, confidence Confidence) {
	switch {
	case len(rep.Matches) > 0 && rep.Matches[0].Exact:
		return rep.Matches[0].ID, rep.Matches[0].Name, ConfidenceExact
	case len(rep.Matches) > 0:
		return rep.Matches[0].ID, rep.Matches[0].Name, ConfidenceName
	case len(rep.Numeric) > 0:
		return rep.Numeric[0].ID, rep.Numeric[0].Name, ConfidenceNumeric
	default:
		return FallbackFieldID, "", ConfidenceFallback
	}
}
