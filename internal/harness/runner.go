package harness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"starter/internal/bus"
	"starter/internal/events"
	"starter/internal/ide"
	"starter/pkg/logging"
)

// SubscriberSetup registers the subscribers a test needs. It runs after the
// bus was cleared for the test and before the test context is announced.
type SubscriberSetup func(b *bus.Bus, tc TestContext) error

// TestRunner executes scenarios, one IDE run each.
//
// Sequential runs share one bus and rely on Hooks for isolation. Parallel runs
// give every scenario a private bus, since clearing a shared bus would tear
// down the subscribers of scenarios still running.
type TestRunner struct {
	bus        *bus.Bus
	launcher   ide.Launcher
	reporter   TestReporter
	config     RunConfiguration
	busOptions []bus.Option
	setups     []SubscriberSetup
	templates  *TemplateProcessor
	generator  *events.EventGenerator
	clock      clock.Clock

	reportMu sync.Mutex
}

// RunnerOption configures a TestRunner.
type RunnerOption func(*TestRunner)

// WithBusOptions sets the options used to create the private buses of
// parallel runs.
func WithBusOptions(opts ...bus.Option) RunnerOption {
	return func(r *TestRunner) {
		r.busOptions = append(r.busOptions, opts...)
	}
}

// WithSubscriberSetup adds a setup run for every scenario.
func WithSubscriberSetup(setup SubscriberSetup) RunnerOption {
	return func(r *TestRunner) {
		if setup != nil {
			r.setups = append(r.setups, setup)
		}
	}
}

// WithClock replaces the clock used for timestamps and timeouts.
func WithClock(c clock.Clock) RunnerOption {
	return func(r *TestRunner) {
		if c != nil {
			r.clock = c
		}
	}
}

// NewTestRunner creates a runner. b is the shared bus of sequential runs; nil
// uses the process-wide bus.
func NewTestRunner(b *bus.Bus, launcher ide.Launcher, reporter TestReporter, config RunConfiguration, opts ...RunnerOption) *TestRunner {
	if b == nil {
		b = bus.Default()
	}
	if config.Parallel < 1 {
		config.Parallel = 1
	}
	r := &TestRunner{
		bus:       b,
		launcher:  launcher,
		reporter:  reporter,
		config:    config,
		templates: NewTemplateProcessor(),
		generator: events.NewEventGenerator(),
		clock:     clock.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the scenarios selected by the configuration filters and
// returns the suite result. Failing scenarios are part of the result, not an
// error; the error is only set when ctx ended the run early.
func (r *TestRunner) Run(ctx context.Context, scenarios []Scenario) (*SuiteResult, error) {
	selected := FilterScenarios(scenarios, r.config)
	result := &SuiteResult{
		StartTime:      r.clock.Now(),
		TotalScenarios: len(selected),
		Configuration:  r.config,
	}

	r.reporter.ReportStart(r.config, len(selected))

	var results []ScenarioResult
	if r.config.Parallel <= 1 || len(selected) <= 1 {
		r.reporter.SetParallelMode(false)
		results = r.runSequential(ctx, selected)
	} else {
		r.reporter.SetParallelMode(true)
		results = r.runParallel(ctx, selected)
	}

	result.ScenarioResults = results
	for _, sr := range results {
		result.count(sr.Result)
	}
	result.EndTime = r.clock.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	r.reporter.ReportSuiteResult(*result)
	return result, ctx.Err()
}

func (r *TestRunner) runSequential(ctx context.Context, scenarios []Scenario) []ScenarioResult {
	results := make([]ScenarioResult, 0, len(scenarios))
	stopped := ""
	for _, scenario := range scenarios {
		var sr ScenarioResult
		switch {
		case stopped != "":
			sr = r.skipped(scenario, stopped)
		case ctx.Err() != nil:
			sr = r.skipped(scenario, "run cancelled")
		default:
			r.reporter.ReportScenarioStart(scenario)
			sr = r.runScenario(ctx, r.bus, scenario)
		}
		results = append(results, sr)
		r.report(sr)

		if r.config.FailFast && stopped == "" && failed(sr.Result) {
			stopped = fmt.Sprintf("fail-fast after %s", scenario.Name)
		}
	}
	return results
}

func (r *TestRunner) runParallel(ctx context.Context, scenarios []Scenario) []ScenarioResult {
	results := make([]ScenarioResult, len(scenarios))
	var stop atomic.Bool

	g := new(errgroup.Group)
	g.SetLimit(r.config.Parallel)
	for i, scenario := range scenarios {
		g.Go(func() error {
			if stop.Load() {
				results[i] = r.skipped(scenario, "fail-fast after an earlier failure")
			} else if ctx.Err() != nil {
				results[i] = r.skipped(scenario, "run cancelled")
			} else {
				opts := append(append([]bus.Option(nil), r.busOptions...), bus.WithName("scenario-"+scenario.Name))
				private := bus.New(opts...)
				r.reportStart(scenario)
				results[i] = r.runScenario(ctx, private, scenario)
				private.UnsubscribeAll()
			}
			if r.config.FailFast && failed(results[i].Result) {
				stop.Store(true)
			}
			r.report(results[i])
			return nil
		})
	}
	// Scenario goroutines report failures through their results only.
	_ = g.Wait()
	return results
}

func (r *TestRunner) reportStart(scenario Scenario) {
	r.reportMu.Lock()
	defer r.reportMu.Unlock()
	r.reporter.ReportScenarioStart(scenario)
}

func (r *TestRunner) report(sr ScenarioResult) {
	r.reportMu.Lock()
	defer r.reportMu.Unlock()
	r.reporter.ReportScenarioResult(sr)
}

func (r *TestRunner) skipped(scenario Scenario, reason string) ScenarioResult {
	now := r.clock.Now()
	return ScenarioResult{
		Scenario:  scenario,
		Result:    ResultSkipped,
		Error:     reason,
		StartTime: now,
		EndTime:   now,
		ExitCode:  -1,
	}
}

func failed(result TestResult) bool {
	return result == ResultFailed || result == ResultError
}

// runScenario executes one scenario on b, bracketed by the test hooks.
func (r *TestRunner) runScenario(ctx context.Context, b *bus.Bus, scenario Scenario) ScenarioResult {
	if scenario.Skip {
		return r.skipped(scenario, "skipped by scenario definition")
	}

	sr := ScenarioResult{
		Scenario:  scenario,
		RunID:     uuid.NewString(),
		StartTime: r.clock.Now(),
		ExitCode:  -1,
	}
	tc := TestContext{
		TestName:   scenario.Name,
		RunID:      sr.RunID,
		WorkingDir: scenario.WorkingDir,
	}
	logging.Info("Runner", "Running scenario %s (run %s)", scenario.Name, sr.RunID)

	hooks := NewHooks(b, r.config.SubscriberTimeout)
	hooks.BeforeEach()

	timeline := NewTimeline(r.clock, r.generator)
	err := timeline.Attach(b)
	for _, setup := range r.setups {
		if err != nil {
			break
		}
		err = setup(b, tc)
	}
	if err == nil {
		err = hooks.Initialized(ctx, tc)
	}

	var runTimeouts []*bus.TimeoutError
	if err != nil {
		sr.Result = ResultError
		sr.Error = fmt.Sprintf("failed to prepare test: %v", err)
	} else {
		runTimeouts = r.launch(ctx, b, scenario, tc, &sr)
	}

	sr.EndTime = r.clock.Now()
	sr.Duration = sr.EndTime.Sub(sr.StartTime)

	if err := hooks.AfterEach(context.WithoutCancel(ctx), tc, sr.Result, sr.Duration); err != nil {
		logging.Error("Runner", err, "Failed to announce result of %s", scenario.Name)
	}
	sr.PendingSubscribers = pendingKeys(append(runTimeouts, hooks.Timeouts()...))
	sr.Timeline = timeline.Entries()

	logging.Info("Runner", "Scenario %s finished: %s", scenario.Name, sr.Result)
	return sr
}

// launch renders the scenario templates, runs the IDE and fills in sr. It
// returns the subscriber timeouts hit during the run.
func (r *TestRunner) launch(ctx context.Context, b *bus.Bus, scenario Scenario, tc TestContext, sr *ScenarioResult) []*bus.TimeoutError {
	data := TemplateData{RunID: tc.RunID, Scenario: scenario.Name, WorkingDir: tc.WorkingDir}
	args, err := r.templates.ResolveArgs(scenario.Args, data)
	if err == nil {
		var env []string
		env, err = r.templates.ResolveEnv(scenario.Env, data)
		if err == nil {
			return r.runIDE(ctx, b, scenario, tc, args, env, sr)
		}
	}
	sr.Result = ResultError
	sr.Error = err.Error()
	return nil
}

func (r *TestRunner) runIDE(ctx context.Context, b *bus.Bus, scenario Scenario, tc TestContext, args, env []string, sr *ScenarioResult) []*bus.TimeoutError {
	timeout := scenario.Timeout
	if timeout == 0 {
		timeout = r.config.ScenarioTimeout
	}

	runner := ide.NewRunner(b, r.launcher,
		ide.WithSubscriberTimeout(r.config.SubscriberTimeout),
		ide.WithKillGracePeriod(r.config.KillGracePeriod),
		ide.WithRunnerClock(r.clock),
	)
	runResult, err := runner.Run(ctx, ide.LaunchSpec{
		RunID:           tc.RunID,
		Scenario:        scenario.Name,
		Command:         scenario.Command,
		Args:            args,
		Env:             env,
		WorkingDir:      tc.WorkingDir,
		Timeout:         timeout,
		KillGracePeriod: r.config.KillGracePeriod,
	})

	sr.ExitCode = runResult.ExitCode
	sr.Killed = runResult.Killed
	sr.KillReason = runResult.KillReason
	if runResult.Logs != nil {
		sr.Stdout = runResult.Logs.Stdout
		sr.Stderr = runResult.Logs.Stderr
	}

	switch {
	case errors.Is(err, ide.ErrRunTimedOut):
		sr.Result = ResultFailed
		sr.Error = fmt.Sprintf("timed out after %s", timeout)
	case err != nil:
		sr.Result = ResultError
		sr.Error = err.Error()
	case sr.ExitCode != scenario.ExpectExitCode:
		sr.Result = ResultFailed
		sr.Error = fmt.Sprintf("exit code %d, expected %d", sr.ExitCode, scenario.ExpectExitCode)
	default:
		sr.Result = ResultPassed
	}
	return runResult.SubscriberTimeouts()
}

// pendingKeys merges the pending subscriber keys of all timeouts.
func pendingKeys(timeouts []*bus.TimeoutError) []string {
	if len(timeouts) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var keys []string
	for _, t := range timeouts {
		for _, k := range t.Pending {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
