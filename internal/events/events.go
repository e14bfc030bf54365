package events

import (
	"time"

	"starter/internal/bus"
)

// KillReason explains why a running IDE was terminated.
type KillReason string

const (
	// KillReasonTimeout means the run exceeded its time budget.
	KillReasonTimeout KillReason = "timeout"
	// KillReasonCancelled means the caller cancelled the run.
	KillReasonCancelled KillReason = "cancelled"
	// KillReasonExited means the process exited and its leftover children are cleaned up.
	KillReasonExited KillReason = "exited"
)

// IdeRun identifies one launch of an IDE process.
type IdeRun struct {
	RunID    string
	Scenario string
	Command  []string
	PID      int
}

// IdeLaunchEvent is posted at every phase of an IDE process lifecycle:
// StateBefore ahead of starting it, StateInTime once it runs, StateBeforeKill
// when it is about to be terminated and StateAfter when it is gone.
type IdeLaunchEvent struct {
	bus.BaseEvent
	Run IdeRun
	// ExitCode is set on StateAfter; -1 when the process was killed by a signal.
	ExitCode int
	// Err describes a launch failure or abnormal exit.
	Err error
}

// NewIdeLaunchEvent creates an IdeLaunchEvent for run in the given state.
func NewIdeLaunchEvent(state bus.EventState, run IdeRun) IdeLaunchEvent {
	return IdeLaunchEvent{BaseEvent: bus.NewBaseEvent(state), Run: run}
}

// IdeKillEvent brackets a forced termination with StateBefore and StateAfter.
type IdeKillEvent struct {
	bus.BaseEvent
	RunID  string
	PID    int
	Reason KillReason
}

// NewIdeKillEvent creates an IdeKillEvent.
func NewIdeKillEvent(state bus.EventState, runID string, pid int, reason KillReason) IdeKillEvent {
	return IdeKillEvent{
		BaseEvent: bus.NewBaseEvent(state),
		RunID:     runID,
		PID:       pid,
		Reason:    reason,
	}
}

// TestContextInitializedEvent is posted once a test has its run id and
// working directory, before anything is launched.
type TestContextInitializedEvent struct {
	bus.BaseEvent
	TestName   string
	RunID      string
	WorkingDir string
}

// NewTestContextInitializedEvent creates a TestContextInitializedEvent.
func NewTestContextInitializedEvent(testName, runID, workingDir string) TestContextInitializedEvent {
	return TestContextInitializedEvent{
		BaseEvent:  bus.NewBaseEvent(bus.StateUndefined),
		TestName:   testName,
		RunID:      runID,
		WorkingDir: workingDir,
	}
}

// TestFinishedEvent is posted after a test has a result.
type TestFinishedEvent struct {
	bus.BaseEvent
	TestName string
	RunID    string
	Result   string
	Duration time.Duration
}

// NewTestFinishedEvent creates a TestFinishedEvent.
func NewTestFinishedEvent(testName, runID, result string, duration time.Duration) TestFinishedEvent {
	return TestFinishedEvent{
		BaseEvent: bus.NewBaseEvent(bus.StateAfter),
		TestName:  testName,
		RunID:     runID,
		Result:    result,
		Duration:  duration,
	}
}
