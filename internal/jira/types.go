package jira

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Unassigned is the bucket name used for issues without an assignee.
const Unassigned = "Unassigned"

// jiraTimeLayout is the timestamp format returned by the Jira REST API.
const jiraTimeLayout = "2006-01-02T15:04:05.000-0700"

// SprintIssuesPage represents one page of the Agile sprint issues endpoint.
type SprintIssuesPage struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// Issue represents a single issue returned by the Jira API.
type Issue struct {
	Key    string `json:"key"`
	Fields Fields `json:"fields"`
}

// Fields represents the inner fields of a Jira issue. Custom holds the raw
// values of every customfield_* entry so callers can read estimates without
// knowing the field ID at compile time.
type Fields struct {
	Summary        string  `json:"summary"`
	Status         *Status `json:"status"`
	IssueType      *Type   `json:"issuetype"`
	Assignee       *User   `json:"assignee"` // nullable
	Created        string  `json:"created"`
	ResolutionDate string  `json:"resolutiondate"`

	Custom map[string]json.RawMessage `json:"-"`
}

// fields is an alias to avoid recursing into UnmarshalJSON.
type fields Fields

// UnmarshalJSON decodes the typed fields and collects all customfield_*
// entries into Custom.
func (f *Fields) UnmarshalJSON(data []byte) error {
	var plain fields
	if err := json.Unmarshal(data, &plain); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key, value := range raw {
		if !strings.HasPrefix(key, "customfield_") {
			continue
		}
		if plain.Custom == nil {
			plain.Custom = make(map[string]json.RawMessage)
		}
		plain.Custom[key] = value
	}

	*f = Fields(plain)
	return nil
}

// Status represents the status field of the issue.
type Status struct {
	Name     string          `json:"name"`
	Category *StatusCategory `json:"statusCategory"`
}

// StatusCategory groups statuses into new/indeterminate/done.
type StatusCategory struct {
	Key string `json:"key"`
}

// Type represents the issue type field of the issue.
type Type struct {
	Name string `json:"name"`
}

// User represents the assignee or reporter of the issue.
type User struct {
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

// FieldMeta describes one entry of the field metadata endpoint.
type FieldMeta struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Custom bool   `json:"custom"`
}

// AssigneeName returns the display name of the issue's assignee. Issues
// without an assignee map to Unassigned; assignees without a display name
// fall back to their email address, then to "Unknown".
func (i Issue) AssigneeName() string {
	assignee := i.Fields.Assignee
	switch {
	case assignee == nil:
		return Unassigned
	case assignee.DisplayName != "":
		return assignee.DisplayName
	case assignee.EmailAddress != "":
		return assignee.EmailAddress
	default:
		return "Unknown"
	}
}

// StatusCategoryKey returns the lowercased status category key, or "" when
// the issue carries no status category.
func (i Issue) StatusCategoryKey() string {
	if i.Fields.Status == nil || i.Fields.Status.Category == nil {
		return ""
	}
	return strings.ToLower(i.Fields.Status.Category.Key)
}

// TypeName returns the issue type name, or "Unknown" when absent.
func (i Issue) TypeName() string {
	if i.Fields.IssueType == nil || i.Fields.IssueType.Name == "" {
		return "Unknown"
	}
	return i.Fields.IssueType.Name
}

// StoryPoints returns the numeric value of the given custom field. Absent,
// null, or non-numeric values count as 0. Numeric strings are accepted since
// some Jira setups store estimates as text.
func (i Issue) StoryPoints(fieldID string) float64 {
	raw, ok := i.Fields.Custom[fieldID]
	if !ok {
		return 0
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return num
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
			return parsed
		}
	}
	return 0
}

// CycleTimeDays returns the days between creation and resolution, rounded to
// one decimal. Issues without a parseable created or resolution timestamp
// yield 0.
func (i Issue) CycleTimeDays() float64 {
	created, err := ParseTime(i.Fields.Created)
	if err != nil {
		return 0
	}
	resolved, err := ParseTime(i.Fields.ResolutionDate)
	if err != nil {
		return 0
	}

	days := resolved.Sub(created).Hours() / 24
	return math.Round(days*10) / 10
}

// ParseTime parses a Jira REST timestamp. A bare "Z" suffix is normalized to
// a numeric offset first; plain RFC 3339 timestamps are accepted as fallback.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	normalized := strings.Replace(value, "Z", "+0000", 1)
	if ts, err := time.Parse(jiraTimeLayout, normalized); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}
