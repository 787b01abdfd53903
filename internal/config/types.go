package config

// Config carries the optional file-based settings for both commands.
// Every field can also be supplied via flags or environment variables;
// flag values win over file values.
type Config struct {
	Jira   JiraConfig   `yaml:"jira"`
	Report ReportConfig `yaml:"report"`
}

// JiraConfig holds connection settings for the Jira instance. Credential
// values may use resolver indirection, e.g. env:JIRA_API_TOKEN or
// file:/run/secrets/jira-token.
type JiraConfig struct {
	BaseURL          string `yaml:"baseURL" validate:"omitempty,url"`
	Email            string `yaml:"email" validate:"omitempty,email"`
	APIToken         string `yaml:"apiToken"`
	BearerToken      string `yaml:"bearerToken"`
	StoryPointsField string `yaml:"storyPointsField" validate:"omitempty,customfield"`
}

// ReportConfig tunes how issues are classified and fetched.
type ReportConfig struct {
	DoneCategories []string `yaml:"doneCategories" validate:"dive,required"`
	BugTypes       []string `yaml:"bugTypes" validate:"dive,required"`
	StoryTypes     []string `yaml:"storyTypes" validate:"dive,required"`
	PageSize       int      `yaml:"pageSize" validate:"omitempty,gte=1,lte=1000"`
}
