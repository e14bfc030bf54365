package events

import (
	"time"
)

// EventType is the severity of a described lifecycle event.
type EventType string

const (
	// EventTypeNormal indicates normal, non-problematic events.
	EventTypeNormal EventType = "Normal"

	// EventTypeWarning indicates events that may require attention.
	EventTypeWarning EventType = "Warning"
)

// EventReason is a short machine-readable code for a lifecycle transition.
type EventReason string

// IDE process reasons
const (
	// ReasonIdeStarting indicates the IDE process is about to be started.
	ReasonIdeStarting EventReason = "IdeStarting"

	// ReasonIdeStarted indicates the IDE process is running.
	ReasonIdeStarted EventReason = "IdeStarted"

	// ReasonIdeKilling indicates the IDE process is about to be terminated.
	ReasonIdeKilling EventReason = "IdeKilling"

	// ReasonIdeStopped indicates the IDE process exited with the expected outcome.
	ReasonIdeStopped EventReason = "IdeStopped"

	// ReasonIdeFailed indicates the IDE process could not start or exited abnormally.
	ReasonIdeFailed EventReason = "IdeFailed"

	// ReasonIdeKillRequested indicates a forced termination was requested.
	ReasonIdeKillRequested EventReason = "IdeKillRequested"

	// ReasonIdeKilled indicates a forced termination completed.
	ReasonIdeKilled EventReason = "IdeKilled"
)

// Test reasons
const (
	// ReasonTestInitialized indicates a test context is ready.
	ReasonTestInitialized EventReason = "TestInitialized"

	// ReasonTestPassed indicates a test finished successfully.
	ReasonTestPassed EventReason = "TestPassed"

	// ReasonTestFailed indicates a test finished with a failure or error.
	ReasonTestFailed EventReason = "TestFailed"

	// ReasonTestSkipped indicates a test was skipped.
	ReasonTestSkipped EventReason = "TestSkipped"
)

// EventData contains the values available to message templates.
type EventData struct {
	// Name is the scenario or test name.
	Name string

	// RunID identifies the run the event belongs to.
	RunID string

	// PID is the IDE process id, zero before the process exists.
	PID int

	// ExitCode is the exit code of a finished IDE process.
	ExitCode int

	// KillReason explains a forced termination.
	KillReason string

	// WorkingDir is the working directory of a test.
	WorkingDir string

	// Error contains error information for failure events.
	Error string

	// Duration is the duration of a finished test.
	Duration time.Duration
}

// getEventType returns the appropriate EventType for a given EventReason.
func getEventType(reason EventReason) EventType {
	switch reason {
	case ReasonIdeFailed,
		ReasonIdeKillRequested,
		ReasonIdeKilled,
		ReasonTestFailed:
		return EventTypeWarning
	default:
		return EventTypeNormal
	}
}
