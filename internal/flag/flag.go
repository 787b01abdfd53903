package flag

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/containeroo/tinyflags"
	"github.com/gi8lino/sprintkpi/internal/logging"
)

// customFieldID matches Jira custom field identifiers such as customfield_10016.
var customFieldID = regexp.MustCompile(`^customfield_\d+$`)

// Connection holds the Jira connection flags shared by both commands.
type Connection struct {
	BaseURL       string        // Instance base URL, trailing slash trimmed
	Email         string        // Basic auth email
	APIToken      string        // Basic auth API token
	BearerToken   string        // Bearer token (server/data center PAT)
	Timeout       time.Duration // Per-request HTTP timeout
	SkipTLSVerify bool          // Skip TLS certificate verification
}

// ReportFlags holds all flags of the report command.
type ReportFlags struct {
	Connection
	StoryPointsField string            // Custom field id holding story points
	SprintID         int               // Sprint to report on
	Out              string            // CSV output path ("" = sprint_<id>_kpi.csv)
	ConfigFile       string            // Optional tuning file ("" = none)
	Debug            bool              // Enables debug logging
	LogFormat        logging.LogFormat // Log output format (text or json)
}

// DetectFlags holds all flags of the detect command.
type DetectFlags struct {
	Connection
	SprintID   int               // Sprint to sample an issue from
	IssueKey   string            // Explicit sample issue key (e.g. PROJ-123)
	ConfigFile string            // Optional tuning file ("" = none)
	Debug      bool              // Enables debug logging
	LogFormat  logging.LogFormat // Log output format (text or json)
}

// ParseReportArgs parses CLI arguments for the report command, handling
// version/help flags.
func ParseReportArgs(version string, args []string, out io.Writer, getEnv func(string) string) (ReportFlags, error) {
	var cfg ReportFlags
	tf := tinyflags.NewFlagSet("report", tinyflags.ContinueOnError)
	tf.Version(version)
	tf.SetGetEnvFn(getEnv)
	tf.EnvPrefix("JIRA")
	tf.SetOutput(out)

	registerConnectionFlags(tf, &cfg.Connection)

	tf.StringVar(&cfg.StoryPointsField, "story-points-field", "", "Custom field id holding story points").
		Placeholder("FIELD").
		Validate(func(s string) error {
			if !customFieldID.MatchString(s) {
				return errors.New("must look like customfield_<number>")
			}
			return nil
		}).
		Value()

	tf.IntVar(&cfg.SprintID, "sprint-id", 0, "Sprint id to report on").
		Placeholder("ID").
		Validate(func(v int) error {
			if v <= 0 {
				return errors.New("sprint id must be > 0")
			}
			return nil
		}).
		Value()

	tf.StringVar(&cfg.Out, "out", "", "CSV output path (default sprint_<id>_kpi.csv)").
		Placeholder("FILE").
		Value()
	tf.StringVar(&cfg.ConfigFile, "config", "", "Path to optional tuning config file").Value()

	// Logging
	tf.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging").Value()
	logFormat := tf.String("log-format", "text", "Log format").Choices("text", "json").Short("l").Value()

	// Parse
	if err := tf.Parse(args); err != nil {
		return ReportFlags{}, err
	}

	// Post-parse
	cfg.LogFormat = logging.LogFormat(*logFormat)

	return cfg, nil
}

// ParseDetectArgs parses CLI arguments for the detect command, handling
// version/help flags.
func ParseDetectArgs(version string, args []string, out io.Writer, getEnv func(string) string) (DetectFlags, error) {
	var cfg DetectFlags
	tf := tinyflags.NewFlagSet("detect", tinyflags.ContinueOnError)
	tf.Version(version)
	tf.SetGetEnvFn(getEnv)
	tf.EnvPrefix("JIRA")
	tf.SetOutput(out)

	registerConnectionFlags(tf, &cfg.Connection)

	tf.IntVar(&cfg.SprintID, "sprint-id", 0, "Sprint id to sample an issue from").
		Placeholder("ID").
		Validate(func(v int) error {
			if v <= 0 {
				return errors.New("sprint id must be > 0")
			}
			return nil
		}).
		Value()

	tf.StringVar(&cfg.IssueKey, "issue-key", "", "Sample issue key (e.g. PROJ-123)").
		Placeholder("KEY").
		Value()
	tf.StringVar(&cfg.ConfigFile, "config", "", "Path to optional tuning config file").Value()

	// Logging
	tf.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging").Value()
	logFormat := tf.String("log-format", "text", "Log format").Choices("text", "json").Short("l").Value()

	// Parse
	if err := tf.Parse(args); err != nil {
		return DetectFlags{}, err
	}

	// Post-parse
	cfg.LogFormat = logging.LogFormat(*logFormat)

	return cfg, nil
}

// registerConnectionFlags wires the shared Jira connection flags into tf.
func registerConnectionFlags(tf *tinyflags.FlagSet, c *Connection) {
	tf.StringVar(&c.BaseURL, "base-url", "", "Jira instance base URL").
		Placeholder("URL").
		Validate(func(s string) error {
			u, err := url.Parse(s)
			if err != nil {
				return fmt.Errorf("invalid URL: %w", err)
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return errors.New("URL scheme must be http or https")
			}
			return nil
		}).
		Finalize(func(s string) string {
			return strings.TrimRight(s, "/")
		}).
		Value()

	tf.StringVar(&c.Email, "email", "", "Jira account email for basic auth").
		Validate(func(s string) error {
			if !strings.Contains(s, "@") {
				return errors.New("email must contain @")
			}
			return nil
		}).
		Value()

	tf.StringVar(&c.APIToken, "api-token", "", "Jira API token for basic auth").Value()
	tf.StringVar(&c.BearerToken, "bearer-token", "", "Jira bearer token (PAT)").Value()

	tf.DurationVar(&c.Timeout, "timeout", 15*time.Second, "HTTP request timeout").
		Validate(func(d time.Duration) error {
			if d <= 0 {
				return errors.New("timeout must be > 0.")
			}
			return nil
		}).
		Value()

	tf.BoolVar(&c.SkipTLSVerify, "insecure", false, "Skip TLS certificate verification").Value()
}
