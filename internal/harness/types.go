package harness

import (
	"time"

	"starter/internal/events"
)

// TestResult represents the result of test execution
type TestResult string

const (
	// ResultPassed indicates the test passed successfully
	ResultPassed TestResult = "PASSED"
	// ResultFailed indicates the test failed
	ResultFailed TestResult = "FAILED"
	// ResultSkipped indicates the test was skipped
	ResultSkipped TestResult = "SKIPPED"
	// ResultError indicates an error occurred during test execution
	ResultError TestResult = "ERROR"
)

// Scenario defines a single IDE run to execute and check
type Scenario struct {
	// Name is the unique identifier for the scenario
	Name string `yaml:"name" json:"name"`
	// Description provides human-readable scenario description
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// Command is the IDE executable or launcher script
	Command string `yaml:"command" json:"command"`
	// Args are template strings rendered per run, e.g. "--log={{ .WorkingDir }}/idea.log"
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`
	// Env holds extra environment variables; values are templates like Args
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	// WorkingDir is the process working directory
	WorkingDir string `yaml:"working_dir,omitempty" json:"working_dir,omitempty"`
	// Timeout for this specific scenario, overriding the runner default
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	// ExpectExitCode is the exit code that counts as success
	ExpectExitCode int `yaml:"expect_exit_code,omitempty" json:"expect_exit_code,omitempty"`
	// Tags for additional categorization
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	// Skip indicates whether this scenario should be skipped
	Skip bool `yaml:"skip,omitempty" json:"skip,omitempty"`

	// sourcePath is the file the scenario was loaded from
	sourcePath string
}

// RunConfiguration defines the overall test execution configuration
type RunConfiguration struct {
	// Parallel is the number of scenarios run at once
	Parallel int `json:"parallel"`
	// FailFast stops starting scenarios after the first failure
	FailFast bool `json:"fail_fast"`
	// ScenarioTimeout is the run timeout of scenarios that do not set one
	ScenarioTimeout time.Duration `json:"scenario_timeout"`
	// KillGracePeriod is the time between SIGTERM and SIGKILL
	KillGracePeriod time.Duration `json:"kill_grace_period"`
	// SubscriberTimeout bounds every lifecycle notification
	SubscriberTimeout time.Duration `json:"subscriber_timeout"`
	// Scenario filter for specific scenario execution
	Scenario string `json:"scenario,omitempty"`
	// Tags filter; a scenario runs when it has at least one of them
	Tags []string `json:"tags,omitempty"`
	// ReportPath is the directory to save JSON reports to
	ReportPath string `json:"report_path,omitempty"`
	// Verbose enables detailed output
	Verbose bool `json:"verbose"`
}

// TimelineEntry is one lifecycle event observed during a scenario
type TimelineEntry struct {
	// Offset is the time since the scenario started
	Offset time.Duration `json:"offset"`
	// Event is the event type name
	Event string `json:"event"`
	// State is the event state
	State string `json:"state"`
	// Reason is the event reason code
	Reason events.EventReason `json:"reason"`
	// Message is the human-readable description
	Message string `json:"message"`
}

// ScenarioResult captures the result of executing a scenario
type ScenarioResult struct {
	// Scenario is the scenario that was executed
	Scenario Scenario `json:"scenario"`
	// RunID identifies the IDE run
	RunID string `json:"run_id"`
	// Result is the overall scenario result
	Result TestResult `json:"result"`
	// Error contains the failure reason
	Error string `json:"error,omitempty"`
	// StartTime when scenario execution began
	StartTime time.Time `json:"start_time"`
	// EndTime when scenario execution completed
	EndTime time.Time `json:"end_time"`
	// Duration of scenario execution
	Duration time.Duration `json:"duration"`
	// ExitCode of the IDE process, -1 when it was killed or never started
	ExitCode int `json:"exit_code"`
	// Killed reports whether the IDE had to be terminated
	Killed bool `json:"killed,omitempty"`
	// KillReason explains a termination
	KillReason events.KillReason `json:"kill_reason,omitempty"`
	// PendingSubscribers lists subscriber keys that did not finish a
	// lifecycle notification in time
	PendingSubscribers []string `json:"pending_subscribers,omitempty"`
	// Timeline lists the lifecycle events of the run in order
	Timeline []TimelineEntry `json:"timeline,omitempty"`
	// Stdout and Stderr of the IDE process
	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`
}

// SuiteResult captures the result of executing all scenarios
type SuiteResult struct {
	// StartTime when execution began
	StartTime time.Time `json:"start_time"`
	// EndTime when execution completed
	EndTime time.Time `json:"end_time"`
	// Duration of the whole run
	Duration time.Duration `json:"duration"`
	// TotalScenarios is the number of scenarios selected
	TotalScenarios int `json:"total_scenarios"`
	// PassedScenarios is the number of scenarios that passed
	PassedScenarios int `json:"passed_scenarios"`
	// FailedScenarios is the number of scenarios that failed
	FailedScenarios int `json:"failed_scenarios"`
	// SkippedScenarios is the number of scenarios that were skipped
	SkippedScenarios int `json:"skipped_scenarios"`
	// ErrorScenarios is the number of scenarios that had errors
	ErrorScenarios int `json:"error_scenarios"`
	// ScenarioResults contains the scenario results in scenario order
	ScenarioResults []ScenarioResult `json:"scenario_results"`
	// Configuration used for the run
	Configuration RunConfiguration `json:"configuration"`
}

// Succeeded reports whether no scenario failed or errored
func (s *SuiteResult) Succeeded() bool {
	return s.FailedScenarios == 0 && s.ErrorScenarios == 0
}

func (s *SuiteResult) count(result TestResult) {
	switch result {
	case ResultPassed:
		s.PassedScenarios++
	case ResultFailed:
		s.FailedScenarios++
	case ResultSkipped:
		s.SkippedScenarios++
	case ResultError:
		s.ErrorScenarios++
	}
}

// TestReporter receives progress and results of a run
type TestReporter interface {
	// ReportStart is called when execution begins
	ReportStart(config RunConfiguration, scenarios int)
	// ReportScenarioStart is called when a scenario begins
	ReportScenarioStart(scenario Scenario)
	// ReportScenarioResult is called when a scenario completes
	ReportScenarioResult(result ScenarioResult)
	// ReportSuiteResult is called when all scenarios completed
	ReportSuiteResult(result SuiteResult)
	// SetParallelMode tells the reporter that results arrive out of order
	SetParallelMode(parallel bool)
}
