package harness

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	pkgstrings "starter/pkg/strings"
)

// Report formats accepted by NewReporter.
const (
	FormatConsole = "console"
	FormatQuiet   = "quiet"
	FormatJSON    = "json"
)

// NewReporter creates the reporter for format writing to w. reportPath, when
// set, is a directory the console and quiet reporters save a JSON report to.
func NewReporter(format string, w io.Writer, verbose bool, reportPath string) (TestReporter, error) {
	switch format {
	case "", FormatConsole:
		return NewConsoleReporter(w, verbose, reportPath), nil
	case FormatQuiet:
		return NewQuietReporter(w, reportPath), nil
	case FormatJSON:
		return NewJSONReporter(w), nil
	default:
		return nil, fmt.Errorf("unknown report format %q (want %s, %s or %s)", format, FormatConsole, FormatQuiet, FormatJSON)
	}
}

// consoleReporter prints progress lines and a summary table
type consoleReporter struct {
	w            io.Writer
	verbose      bool
	reportPath   string
	parallelMode bool
}

// NewConsoleReporter creates the human-oriented reporter.
func NewConsoleReporter(w io.Writer, verbose bool, reportPath string) TestReporter {
	return &consoleReporter{w: w, verbose: verbose, reportPath: reportPath}
}

func (r *consoleReporter) SetParallelMode(parallel bool) {
	r.parallelMode = parallel
}

func (r *consoleReporter) ReportStart(config RunConfiguration, scenarios int) {
	fmt.Fprintf(r.w, "Running %d scenario(s)\n", scenarios)

	if r.verbose {
		fmt.Fprintf(r.w, "\nConfiguration:\n")
		fmt.Fprintf(r.w, "   • Scenario: %s\n", stringOrDefault(config.Scenario, "all"))
		fmt.Fprintf(r.w, "   • Tags: %s\n", stringOrDefault(strings.Join(config.Tags, ","), "all"))
		fmt.Fprintf(r.w, "   • Parallel: %d\n", config.Parallel)
		fmt.Fprintf(r.w, "   • Fail fast: %t\n", config.FailFast)
		fmt.Fprintf(r.w, "   • Scenario timeout: %v\n", config.ScenarioTimeout)
		fmt.Fprintf(r.w, "   • Subscriber timeout: %v\n", config.SubscriberTimeout)
		if config.ReportPath != "" {
			fmt.Fprintf(r.w, "   • Report path: %s\n", config.ReportPath)
		}
		fmt.Fprintln(r.w)
	}
}

func (r *consoleReporter) ReportScenarioStart(scenario Scenario) {
	// Start lines of concurrent scenarios would interleave with results.
	if r.verbose && !r.parallelMode {
		fmt.Fprintf(r.w, "▶ %s\n", scenario.Name)
	}
}

func (r *consoleReporter) ReportScenarioResult(result ScenarioResult) {
	fmt.Fprintf(r.w, "%s %s (%v)\n", resultSymbol(result.Result), result.Scenario.Name, result.Duration.Round(time.Millisecond))
	if result.Error != "" && result.Result != ResultPassed {
		fmt.Fprintf(r.w, "   %s\n", result.Error)
	}
	if len(result.PendingSubscribers) > 0 {
		fmt.Fprintf(r.w, "   %s %s\n",
			text.FgYellow.Sprint("subscribers still pending:"),
			strings.Join(result.PendingSubscribers, ", "))
	}
	if r.verbose {
		for _, entry := range result.Timeline {
			fmt.Fprintf(r.w, "   %8v  %-28s %s\n", entry.Offset.Round(time.Millisecond), entry.Event+"/"+entry.State, entry.Message)
		}
		if result.Result != ResultPassed && result.Stderr != "" {
			fmt.Fprintf(r.w, "   stderr:\n%s\n", indentText(pkgstrings.Tail(result.Stderr, 2000), "      "))
		}
	}
}

func (r *consoleReporter) ReportSuiteResult(suite SuiteResult) {
	fmt.Fprintln(r.w)

	t := table.NewWriter()
	t.SetOutputMirror(r.w)
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("SCENARIO"),
		text.FgHiCyan.Sprint("RESULT"),
		text.FgHiCyan.Sprint("EXIT"),
		text.FgHiCyan.Sprint("DURATION"),
		text.FgHiCyan.Sprint("DETAILS"),
	})
	for _, sr := range suite.ScenarioResults {
		exit := "-"
		if sr.ExitCode >= 0 {
			exit = fmt.Sprintf("%d", sr.ExitCode)
		}
		t.AppendRow(table.Row{
			sr.Scenario.Name,
			colorResult(sr.Result),
			exit,
			sr.Duration.Round(time.Millisecond),
			pkgstrings.Truncate(details(sr), pkgstrings.DefaultCellMaxLen),
		})
	}
	t.AppendFooter(table.Row{
		"TOTAL",
		fmt.Sprintf("%d passed, %d failed, %d errors, %d skipped",
			suite.PassedScenarios, suite.FailedScenarios, suite.ErrorScenarios, suite.SkippedScenarios),
		"",
		suite.Duration.Round(time.Millisecond),
		"",
	})
	t.Render()

	if suite.Succeeded() {
		fmt.Fprintf(r.w, "\n%s\n", text.FgGreen.Sprint("All scenarios passed"))
	} else {
		fmt.Fprintf(r.w, "\n%s\n", text.FgRed.Sprint("Some scenarios failed"))
	}

	if r.reportPath != "" {
		path, err := SaveReport(r.reportPath, suite)
		if err != nil {
			fmt.Fprintf(r.w, "Failed to save detailed report: %v\n", err)
		} else {
			fmt.Fprintf(r.w, "Detailed report saved to: %s\n", path)
		}
	}
}

// NewQuietReporter creates a reporter that only outputs failures and a one
// line summary, for CI logs.
func NewQuietReporter(w io.Writer, reportPath string) TestReporter {
	return &quietReporter{w: w, reportPath: reportPath}
}

type quietReporter struct {
	w          io.Writer
	reportPath string
}

func (r *quietReporter) ReportStart(RunConfiguration, int) {}

func (r *quietReporter) ReportScenarioStart(Scenario) {}

func (r *quietReporter) SetParallelMode(bool) {}

func (r *quietReporter) ReportScenarioResult(result ScenarioResult) {
	if failed(result.Result) {
		fmt.Fprintf(r.w, "%s %s: %s\n", resultSymbol(result.Result), result.Scenario.Name, details(result))
	}
}

func (r *quietReporter) ReportSuiteResult(suite SuiteResult) {
	if suite.Succeeded() {
		fmt.Fprintf(r.w, "✅ All %d scenarios passed (%v)\n", suite.TotalScenarios, suite.Duration.Round(time.Millisecond))
	} else {
		fmt.Fprintf(r.w, "❌ %d/%d scenarios failed (%v)\n",
			suite.FailedScenarios+suite.ErrorScenarios,
			suite.TotalScenarios,
			suite.Duration.Round(time.Millisecond))
	}
	if r.reportPath != "" {
		if _, err := SaveReport(r.reportPath, suite); err != nil {
			fmt.Fprintf(r.w, "Failed to save detailed report: %v\n", err)
		}
	}
}

// NewJSONReporter creates a reporter that writes the suite result as JSON.
func NewJSONReporter(w io.Writer) TestReporter {
	return &jsonReporter{w: w}
}

type jsonReporter struct {
	w io.Writer
}

func (r *jsonReporter) ReportStart(RunConfiguration, int) {}

func (r *jsonReporter) ReportScenarioStart(Scenario) {}

func (r *jsonReporter) ReportScenarioResult(ScenarioResult) {}

func (r *jsonReporter) SetParallelMode(bool) {}

func (r *jsonReporter) ReportSuiteResult(suite SuiteResult) {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(suite); err != nil {
		fmt.Fprintf(r.w, `{"error": %q}`+"\n", err.Error())
	}
}

// SaveReport writes suite as JSON into dir and returns the file path.
func SaveReport(dir string, suite SuiteResult) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	timestamp := suite.StartTime.Format("20060102-150405")
	fullPath := filepath.Join(dir, fmt.Sprintf("starter-report-%s.json", timestamp))

	jsonData, err := json.MarshalIndent(suite, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report to JSON: %w", err)
	}
	if err := os.WriteFile(fullPath, jsonData, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return fullPath, nil
}

func details(sr ScenarioResult) string {
	parts := make([]string, 0, 2)
	if sr.Error != "" && sr.Result != ResultPassed {
		parts = append(parts, sr.Error)
	}
	if len(sr.PendingSubscribers) > 0 {
		parts = append(parts, "pending: "+strings.Join(sr.PendingSubscribers, ", "))
	}
	return strings.Join(parts, "; ")
}

func resultSymbol(result TestResult) string {
	switch result {
	case ResultPassed:
		return "✅"
	case ResultFailed:
		return "❌"
	case ResultSkipped:
		return "⏭️"
	case ResultError:
		return "💥"
	default:
		return "❓"
	}
}

func colorResult(result TestResult) string {
	switch result {
	case ResultPassed:
		return text.FgGreen.Sprint(result)
	case ResultFailed, ResultError:
		return text.FgRed.Sprint(result)
	default:
		return text.FgYellow.Sprint(result)
	}
}

func indentText(s, indent string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}

func stringOrDefault(s, defaultValue string) string {
	if s == "" {
		return defaultValue
	}
	return s
}
