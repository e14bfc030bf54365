package ide

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"starter/internal/bus"
	"starter/internal/events"
	"starter/pkg/logging"
)

const (
	// DefaultSubscriberTimeout bounds each lifecycle notification.
	DefaultSubscriberTimeout = 30 * time.Second
	// DefaultKillGracePeriod is used when a LaunchSpec does not set one.
	DefaultKillGracePeriod = 10 * time.Second
)

// ErrRunTimedOut is returned by Runner.Run when the run exceeded its timeout
// and the process had to be terminated.
var ErrRunTimedOut = errors.New("IDE run timed out")

// RunResult is the outcome of one IDE run.
type RunResult struct {
	RunID      string
	Scenario   string
	PID        int
	ExitCode   int
	Killed     bool
	KillReason events.KillReason
	StartedAt  time.Time
	FinishedAt time.Time
	Logs       *Logs

	mu                 sync.Mutex
	subscriberTimeouts []*bus.TimeoutError
}

// Duration is the wall time between the Before and After notifications.
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SubscriberTimeouts returns the notifications whose subscribers did not all
// finish in time.
func (r *RunResult) SubscriberTimeouts() []*bus.TimeoutError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*bus.TimeoutError(nil), r.subscriberTimeouts...)
}

func (r *RunResult) addTimeout(err *bus.TimeoutError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscriberTimeouts = append(r.subscriberTimeouts, err)
}

// Runner launches IDE processes and announces every lifecycle phase on a bus.
type Runner struct {
	bus               *bus.Bus
	launcher          Launcher
	clock             clock.Clock
	subscriberTimeout time.Duration
	killGrace         time.Duration
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithSubscriberTimeout sets how long each lifecycle notification waits for subscribers.
func WithSubscriberTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.subscriberTimeout = d
		}
	}
}

// WithKillGracePeriod sets the default grace period between SIGTERM and SIGKILL.
func WithKillGracePeriod(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.killGrace = d
		}
	}
}

// WithRunnerClock replaces the clock used for run timeouts and timestamps.
func WithRunnerClock(c clock.Clock) RunnerOption {
	return func(r *Runner) {
		if c != nil {
			r.clock = c
		}
	}
}

// NewRunner creates a Runner posting on b and starting processes with launcher.
func NewRunner(b *bus.Bus, launcher Launcher, opts ...RunnerOption) *Runner {
	r := &Runner{
		bus:               b,
		launcher:          launcher,
		clock:             clock.New(),
		subscriberTimeout: DefaultSubscriberTimeout,
		killGrace:         DefaultKillGracePeriod,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the process described by spec and waits until it exits, the run
// times out or ctx is cancelled. It posts IdeLaunchEvent with StateBefore
// before starting, StateInTime once the process runs, StateBeforeKill ahead of
// a forced termination and StateAfter at the end, each waiting for the
// subscribers. A forced termination is bracketed by IdeKillEvent.
//
// Subscribers that do not finish in time are recorded on the result and do
// not fail the run. The returned error is ErrRunTimedOut, the context error or
// a launch failure; a non-zero exit code alone is not an error.
func (r *Runner) Run(ctx context.Context, spec LaunchSpec) (*RunResult, error) {
	result := &RunResult{
		RunID:     spec.RunID,
		Scenario:  spec.Scenario,
		StartedAt: r.clock.Now(),
	}
	run := events.IdeRun{
		RunID:    spec.RunID,
		Scenario: spec.Scenario,
		Command:  spec.CommandLine(),
	}
	// Notifications after the start keep waiting for subscribers even when ctx is done.
	notifyCtx := context.WithoutCancel(ctx)

	if err := r.notify(ctx, result, events.NewIdeLaunchEvent(bus.StateBefore, run)); err != nil {
		return r.finish(notifyCtx, result, run, nil, err)
	}

	proc, err := r.launcher.Start(ctx, spec)
	if err != nil {
		logging.Error("IDE", err, "Failed to launch %s", spec.Scenario)
		return r.finish(notifyCtx, result, run, nil, fmt.Errorf("failed to launch %s: %w", spec.Scenario, err))
	}
	run.PID = proc.PID()
	result.PID = run.PID
	logging.Info("IDE", "Started %s (run %s, PID %d)", spec.Scenario, spec.RunID, run.PID)

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if spec.Timeout > 0 {
		runCtx, cancel = r.clock.WithTimeout(ctx, spec.Timeout)
	}
	defer cancel()

	var runErr error
	if err := r.notify(runCtx, result, events.NewIdeLaunchEvent(bus.StateInTime, run)); err != nil {
		runErr = err
	}

	if runErr == nil {
		select {
		case <-proc.Done():
		case <-runCtx.Done():
			runErr = runCtx.Err()
		}
	}

	if runErr != nil {
		reason := events.KillReasonCancelled
		if errors.Is(runErr, context.DeadlineExceeded) && ctx.Err() == nil {
			reason = events.KillReasonTimeout
			runErr = ErrRunTimedOut
		}
		if killErr := r.kill(notifyCtx, result, run, proc, spec, reason); killErr != nil {
			runErr = multierr.Append(runErr, killErr)
		}
	}

	return r.finish(notifyCtx, result, run, proc, runErr)
}

// kill terminates proc, announcing it with a BeforeKill launch event and a
// pair of kill events.
func (r *Runner) kill(ctx context.Context, result *RunResult, run events.IdeRun, proc Process, spec LaunchSpec, reason events.KillReason) error {
	grace := spec.KillGracePeriod
	if grace <= 0 {
		grace = r.killGrace
	}

	logging.Warn("IDE", "Terminating %s (PID %d): %s", spec.Scenario, run.PID, reason)
	result.Killed = true
	result.KillReason = reason

	var errs error
	// A fresh subscriber must not take BeforeKill for the current state.
	errs = multierr.Append(errs, r.notify(ctx, result, events.NewIdeLaunchEvent(bus.StateBeforeKill, run), bus.NoRetain()))
	errs = multierr.Append(errs, r.notify(ctx, result, events.NewIdeKillEvent(bus.StateBefore, run.RunID, run.PID, reason)))
	if err := proc.Terminate(grace); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("failed to terminate PID %d: %w", run.PID, err))
	}
	errs = multierr.Append(errs, r.notify(ctx, result, events.NewIdeKillEvent(bus.StateAfter, run.RunID, run.PID, reason)))
	return errs
}

// finish collects the exit status and logs and posts the After event.
func (r *Runner) finish(ctx context.Context, result *RunResult, run events.IdeRun, proc Process, runErr error) (*RunResult, error) {
	after := events.NewIdeLaunchEvent(bus.StateAfter, run)
	if proc != nil {
		exitCode, err := proc.Wait()
		result.ExitCode = exitCode
		result.Logs = proc.Logs()
		if err != nil {
			runErr = multierr.Append(runErr, err)
		}
		after.ExitCode = exitCode
	} else {
		result.ExitCode = -1
		after.ExitCode = -1
	}
	after.Err = runErr

	if err := r.notify(ctx, result, after); err != nil {
		runErr = multierr.Append(runErr, err)
	}
	result.FinishedAt = r.clock.Now()

	logging.Info("IDE", "Finished %s (run %s) with exit code %d in %s", run.Scenario, run.RunID, result.ExitCode, result.Duration())
	return result, runErr
}

// notify posts e and waits for its subscribers. Subscriber timeouts are
// recorded on result; only saturation and context errors are returned.
func (r *Runner) notify(ctx context.Context, result *RunResult, e bus.Event, opts ...bus.PostOption) error {
	err := r.bus.PostAndWait(ctx, e, r.subscriberTimeout, opts...)
	if err == nil {
		return nil
	}
	var timeoutErr *bus.TimeoutError
	if errors.As(err, &timeoutErr) {
		result.addTimeout(timeoutErr)
		return nil
	}
	return err
}
