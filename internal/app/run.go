package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/gi8lino/sprintkpi/internal/detect"
	"github.com/gi8lino/sprintkpi/internal/flag"
	"github.com/gi8lino/sprintkpi/internal/jira"
	"github.com/gi8lino/sprintkpi/internal/logging"
	"github.com/gi8lino/sprintkpi/internal/metrics"
	"github.com/gi8lino/sprintkpi/internal/report"
	"github.com/gi8lino/sprintkpi/internal/utils"

	"github.com/containeroo/tinyflags"
)

// usage describes the root command surface.
const usage = `Usage: sprintkpi <command> [flags]

Commands:
  report   Generate a sprint KPI report (CSV file + console summary)
  detect   Recommend the story points custom field of the instance
  version  Print version information

Run "sprintkpi <command> --help" for command flags.
`

// Run executes the sprintkpi command line. The first argument selects the
// subcommand; everything after it is parsed by that command.
func Run(ctx context.Context, version, commit string, args []string, w io.Writer, getEnv func(string) string) error {
	// Create a new context that listens for interrupt signals
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if len(args) == 0 {
		fmt.Fprint(w, usage) // nolint:errcheck
		return fmt.Errorf("missing command")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "report":
		return runReport(ctx, version, rest, w, getEnv)
	case "detect":
		return runDetect(ctx, version, rest, w, getEnv)
	case "version", "--version":
		fmt.Fprintf(w, "sprintkpi %s (commit %s)\n", version, commit) // nolint:errcheck
		return nil
	case "help", "--help", "-h":
		fmt.Fprint(w, usage) // nolint:errcheck
		return nil
	default:
		fmt.Fprint(w, usage) // nolint:errcheck
		return fmt.Errorf("unknown command: %q", cmd)
	}
}

// runReport fetches every issue of a sprint, aggregates the per-assignee
// KPIs and writes the CSV report plus a console summary.
func runReport(ctx context.Context, version string, args []string, w io.Writer, getEnv func(string) string) error {
	// Parse command-line flags
	flags, err := flag.ParseReportArgs(version, args, w, getEnv)
	if err != nil {
		if tinyflags.IsHelpRequested(err) || tinyflags.IsVersionRequested(err) {
			fmt.Fprint(w, err.Error()) // nolint:errcheck
			return nil
		}
		return fmt.Errorf("parsing error: %w", err)
	}

	// Setup logger
	logger := logging.SetupLogger(flags.LogFormat, flags.Debug, w)

	logger.Info("Starting sprintkpi report",
		"version", version,
	)

	// Merge flags, optional config file and defaults
	settings, err := reportSettings(flags)
	if err != nil {
		return err
	}
	if err := settings.ensureReport(); err != nil {
		return err
	}

	client, err := newJiraClient(settings, logger)
	if err != nil {
		return err
	}

	logger.Info("Fetching sprint issues",
		"sprint", settings.SprintID,
		"pageSize", settings.PageSize,
	)
	issues, err := client.SprintIssues(ctx, settings.SprintID, settings.PageSize)
	if err != nil {
		return fmt.Errorf("fetching sprint issues error: %w", err)
	}
	logger.Info("Fetched sprint issues", "count", len(issues))

	byAssignee := metrics.Compute(issues, settings.Rules())
	totals := metrics.Totals(byAssignee)

	out := settings.Out
	if out == "" {
		out = report.OutputFilename(settings.SprintID)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating output file error: %w", err)
	}
	if err := report.WriteCSV(f, byAssignee, totals); err != nil {
		f.Close() // nolint:errcheck
		return fmt.Errorf("writing report error: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing output file error: %w", err)
	}
	logger.Info("Wrote KPI report",
		"assignees", len(byAssignee),
		"path", out,
	)

	return report.WriteSummary(w, out, totals)
}

// runDetect samples an issue, scans its numeric custom fields and prints a
// story points field recommendation.
func runDetect(ctx context.Context, version string, args []string, w io.Writer, getEnv func(string) string) error {
	// Parse command-line flags
	flags, err := flag.ParseDetectArgs(version, args, w, getEnv)
	if err != nil {
		if tinyflags.IsHelpRequested(err) || tinyflags.IsVersionRequested(err) {
			fmt.Fprint(w, err.Error()) // nolint:errcheck
			return nil
		}
		return fmt.Errorf("parsing error: %w", err)
	}

	// Setup logger
	logger := logging.SetupLogger(flags.LogFormat, flags.Debug, w)

	logger.Info("Starting sprintkpi detect",
		"version", version,
	)

	// Merge flags, optional config file and defaults
	settings, err := detectSettings(flags)
	if err != nil {
		return err
	}
	if err := settings.ensureDetect(); err != nil {
		return err
	}

	client, err := newJiraClient(settings, logger)
	if err != nil {
		return err
	}

	rep, err := detect.Run(ctx, client, detect.Options{
		SprintID: settings.SprintID,
		IssueKey: settings.IssueKey,
	})
	if err != nil {
		return fmt.Errorf("detecting story points field error: %w", err)
	}

	return report.WriteFieldReport(w, rep)
}

// newJiraClient builds the authenticated API client from merged settings.
func newJiraClient(settings Settings, logger *slog.Logger) (*jira.Client, error) {
	auth, method, err := jira.ResolveAuth(settings.BearerToken, settings.Email, settings.APIToken)
	if err != nil {
		return nil, err
	}

	// The client resolves endpoint paths relative to the base URL, so it
	// must end with a slash.
	baseURL, err := url.Parse(settings.BaseURL + "/")
	if err != nil {
		return nil, fmt.Errorf("parsing base URL error: %w", err)
	}

	logger.Debug("jira auth",
		"method", method,
		"header", utils.ObfuscateHeader(utils.GetAuthorizationHeader(auth)),
	)

	return jira.NewClient(baseURL, auth, settings.SkipTLSVerify, settings.Timeout), nil
}
