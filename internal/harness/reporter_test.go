package harness

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starter/internal/events"
)

func sampleSuite() SuiteResult {
	start := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return SuiteResult{
		StartTime:        start,
		EndTime:          start.Add(90 * time.Second),
		Duration:         90 * time.Second,
		TotalScenarios:   3,
		PassedScenarios:  1,
		FailedScenarios:  1,
		SkippedScenarios: 1,
		ScenarioResults: []ScenarioResult{
			{Scenario: Scenario{Name: "indexing"}, Result: ResultPassed, ExitCode: 0, Duration: time.Minute},
			{
				Scenario:           Scenario{Name: "startup"},
				Result:             ResultFailed,
				Error:              "timed out after 30s",
				ExitCode:           -1,
				Killed:             true,
				KillReason:         events.KillReasonTimeout,
				PendingSubscribers: []string{"profiler"},
				Duration:           30 * time.Second,
			},
			{Scenario: Scenario{Name: "nightly"}, Result: ResultSkipped, Error: "fail-fast after startup", ExitCode: -1},
		},
	}
}

func TestNewReporter(t *testing.T) {
	for _, format := range []string{"", FormatConsole, FormatQuiet, FormatJSON} {
		r, err := NewReporter(format, &bytes.Buffer{}, false, "")
		require.NoError(t, err, format)
		assert.NotNil(t, r)
	}

	_, err := NewReporter("xml", &bytes.Buffer{}, false, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown report format "xml"`)
}

func TestConsoleReporter(t *testing.T) {
	var out bytes.Buffer
	dir := t.TempDir()
	r := NewConsoleReporter(&out, true, dir)
	suite := sampleSuite()

	r.ReportStart(RunConfiguration{Parallel: 1, Tags: []string{"smoke"}}, 3)
	r.ReportScenarioStart(suite.ScenarioResults[1].Scenario)
	r.ReportScenarioResult(suite.ScenarioResults[1])
	r.ReportSuiteResult(suite)

	text := out.String()
	assert.Contains(t, text, "Running 3 scenario(s)")
	assert.Contains(t, text, "Tags: smoke")
	assert.Contains(t, text, "▶ startup")
	assert.Contains(t, text, "timed out after 30s")
	assert.Contains(t, text, "subscribers still pending:")
	assert.Contains(t, text, "SCENARIO")
	assert.Contains(t, text, "indexing")
	assert.Contains(t, text, "pending: profiler")
	assert.Contains(t, text, "1 passed, 1 failed, 0 errors, 1 skipped")
	assert.Contains(t, text, "Some scenarios failed")
	assert.Contains(t, text, "Detailed report saved to:")

	data, err := os.ReadFile(filepath.Join(dir, "starter-report-20260314-092653.json"))
	require.NoError(t, err)
	var saved SuiteResult
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, 3, saved.TotalScenarios)
	assert.Equal(t, []string{"profiler"}, saved.ScenarioResults[1].PendingSubscribers)
}

func TestConsoleReporter_ParallelHidesStartLines(t *testing.T) {
	var out bytes.Buffer
	r := NewConsoleReporter(&out, true, "")
	r.SetParallelMode(true)
	r.ReportScenarioStart(Scenario{Name: "s1"})
	assert.Empty(t, out.String())
}

func TestQuietReporter(t *testing.T) {
	var out bytes.Buffer
	r := NewQuietReporter(&out, "")
	suite := sampleSuite()

	for _, sr := range suite.ScenarioResults {
		r.ReportScenarioResult(sr)
	}
	r.ReportSuiteResult(suite)

	text := out.String()
	assert.NotContains(t, text, "indexing", "passing scenarios are not printed")
	assert.Contains(t, text, "startup: timed out after 30s; pending: profiler")
	assert.Contains(t, text, "1/3 scenarios failed")

	out.Reset()
	r.ReportSuiteResult(SuiteResult{TotalScenarios: 2, PassedScenarios: 2})
	assert.Contains(t, out.String(), "All 2 scenarios passed")
}

func TestJSONReporter(t *testing.T) {
	var out bytes.Buffer
	r := NewJSONReporter(&out)
	r.ReportScenarioResult(sampleSuite().ScenarioResults[0])
	assert.Empty(t, out.String(), "only the suite result is written")

	r.ReportSuiteResult(sampleSuite())
	var decoded SuiteResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, 1, decoded.FailedScenarios)
	assert.Equal(t, events.KillReasonTimeout, decoded.ScenarioResults[1].KillReason)
}
