package ide

import (
	"context"
	"time"
)

// LaunchSpec describes one IDE run.
type LaunchSpec struct {
	// RunID identifies the run in events and reports.
	RunID string
	// Scenario is the name of the scenario the run belongs to.
	Scenario string
	// Command is the executable to start.
	Command string
	// Args are passed to Command unchanged.
	Args []string
	// Env entries (KEY=VALUE) are appended to the current environment.
	Env []string
	// WorkingDir is the process working directory; empty uses the current one.
	WorkingDir string
	// Timeout bounds the run; zero means the run ends only when the process exits
	// or the context is cancelled.
	Timeout time.Duration
	// KillGracePeriod is how long a terminated process may take to exit after
	// SIGTERM before it is killed.
	KillGracePeriod time.Duration
}

// CommandLine returns the command followed by its arguments.
func (s LaunchSpec) CommandLine() []string {
	return append([]string{s.Command}, s.Args...)
}

// Logs holds the output captured from a process.
type Logs struct {
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	Combined string `json:"-"`
}

// Process is a started IDE process.
type Process interface {
	// PID returns the operating system process id.
	PID() int
	// Done is closed once the process has exited.
	Done() <-chan struct{}
	// Wait blocks until the process exits and returns its exit code. The error
	// is non-nil only when the exit status could not be determined.
	Wait() (int, error)
	// Terminate asks the process group to stop, escalating to a kill after
	// grace, and returns once the process has exited.
	Terminate(grace time.Duration) error
	// Logs returns the output captured so far.
	Logs() *Logs
}

// Launcher starts IDE processes.
type Launcher interface {
	Start(ctx context.Context, spec LaunchSpec) (Process, error)
}
