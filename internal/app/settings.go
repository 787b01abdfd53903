package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gi8lino/sprintkpi/internal/config"
	"github.com/gi8lino/sprintkpi/internal/flag"
	"github.com/gi8lino/sprintkpi/internal/jira"
	"github.com/gi8lino/sprintkpi/internal/metrics"
)

// Settings is the merged outcome of flags, the optional config file and
// built-in defaults for one run. Flag values win over file values, file
// values over defaults.
type Settings struct {
	BaseURL          string
	Email            string
	APIToken         string
	BearerToken      string
	StoryPointsField string
	SprintID         int
	IssueKey         string
	Out              string
	Timeout          time.Duration
	SkipTLSVerify    bool

	PageSize       int
	DoneCategories []string
	BugTypes       []string
	StoryTypes     []string
}

// reportSettings merges report flags with the optional config file.
func reportSettings(flags flag.ReportFlags) (Settings, error) {
	s := Settings{
		BaseURL:          flags.BaseURL,
		Email:            flags.Email,
		APIToken:         flags.APIToken,
		BearerToken:      flags.BearerToken,
		StoryPointsField: flags.StoryPointsField,
		SprintID:         flags.SprintID,
		Out:              flags.Out,
		Timeout:          flags.Timeout,
		SkipTLSVerify:    flags.SkipTLSVerify,
	}
	if err := s.applyConfigFile(flags.ConfigFile); err != nil {
		return Settings{}, err
	}
	s.applyDefaults()
	return s, nil
}

// detectSettings merges detect flags with the optional config file.
func detectSettings(flags flag.DetectFlags) (Settings, error) {
	s := Settings{
		BaseURL:       flags.BaseURL,
		Email:         flags.Email,
		APIToken:      flags.APIToken,
		BearerToken:   flags.BearerToken,
		SprintID:      flags.SprintID,
		IssueKey:      flags.IssueKey,
		Timeout:       flags.Timeout,
		SkipTLSVerify: flags.SkipTLSVerify,
	}
	if err := s.applyConfigFile(flags.ConfigFile); err != nil {
		return Settings{}, err
	}
	s.applyDefaults()
	return s, nil
}

// applyConfigFile fills unset fields from the tuning file at path. An empty
// path means no file was requested.
func (s *Settings) applyConfigFile(path string) error {
	if path == "" {
		return nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config error: %w", err)
	}

	setIfEmpty(&s.BaseURL, strings.TrimRight(cfg.Jira.BaseURL, "/"))
	setIfEmpty(&s.Email, cfg.Jira.Email)
	setIfEmpty(&s.APIToken, cfg.Jira.APIToken)
	setIfEmpty(&s.BearerToken, cfg.Jira.BearerToken)
	setIfEmpty(&s.StoryPointsField, cfg.Jira.StoryPointsField)

	if s.PageSize == 0 {
		s.PageSize = cfg.Report.PageSize
	}
	if len(s.DoneCategories) == 0 {
		s.DoneCategories = cfg.Report.DoneCategories
	}
	if len(s.BugTypes) == 0 {
		s.BugTypes = cfg.Report.BugTypes
	}
	if len(s.StoryTypes) == 0 {
		s.StoryTypes = cfg.Report.StoryTypes
	}

	return nil
}

// applyDefaults fills whatever flags and file left unset.
func (s *Settings) applyDefaults() {
	if s.PageSize == 0 {
		s.PageSize = jira.DefaultPageSize
	}
	if len(s.DoneCategories) == 0 {
		s.DoneCategories = []string{"done"}
	}
	if len(s.BugTypes) == 0 {
		s.BugTypes = []string{"bug"}
	}
	if len(s.StoryTypes) == 0 {
		s.StoryTypes = []string{"story"}
	}
}

// Rules builds the issue classification rules for aggregation.
func (s Settings) Rules() metrics.Rules {
	return metrics.NewRules(s.StoryPointsField, s.DoneCategories, s.BugTypes, s.StoryTypes)
}

// ensureReport verifies everything a report run needs, naming every missing
// item at once.
func (s Settings) ensureReport() error {
	missing := s.missingConnection()
	if s.StoryPointsField == "" {
		missing = append(missing, "story points field (--story-points-field / JIRA_STORY_POINTS_FIELD)")
	}
	if s.SprintID <= 0 {
		missing = append(missing, "sprint id (--sprint-id / JIRA_SPRINT_ID)")
	}
	return missingError(missing)
}

// ensureDetect verifies everything a detect run needs, naming every missing
// item at once.
func (s Settings) ensureDetect() error {
	if s.SprintID > 0 && s.IssueKey != "" {
		return errors.New("--sprint-id and --issue-key are mutually exclusive")
	}
	missing := s.missingConnection()
	if s.SprintID <= 0 && s.IssueKey == "" {
		missing = append(missing, "sample source (--sprint-id or --issue-key)")
	}
	return missingError(missing)
}

// missingConnection lists absent connection essentials.
func (s Settings) missingConnection() []string {
	var missing []string
	if s.BaseURL == "" {
		missing = append(missing, "base URL (--base-url / JIRA_BASE_URL)")
	}
	if s.BearerToken == "" && (s.Email == "" || s.APIToken == "") {
		missing = append(missing, "credentials (--email + --api-token / JIRA_EMAIL + JIRA_API_TOKEN, or --bearer-token)")
	}
	return missing
}

// missingError folds the missing items into a single aggregated error.
func missingError(missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required configuration:\n  - %s", strings.Join(missing, "\n  - "))
}

// setIfEmpty assigns val to dst only if *dst is empty.
func setIfEmpty(dst *string, val string) {
	if *dst == "" {
		*dst = val
	}
}
