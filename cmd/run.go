package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"starter/internal/bus"
	"starter/internal/config"
	"starter/internal/events"
	"starter/internal/harness"
	"starter/internal/ide"
	"starter/pkg/logging"
)

var (
	runParallel          int
	runFailFast          bool
	runScenarioTimeout   time.Duration
	runKillGracePeriod   time.Duration
	runSubscriberTimeout time.Duration
	runScenario          string
	runTags              []string
	runReportPath        string
	runOutputFormat      string
	runVerbose           bool
	runMetricsFile       string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <scenario-file-or-directory>",
	Short: "Run IDE test scenarios",
	Long: `Run loads scenario definitions (a YAML file, or every YAML file below a
directory) and launches the IDE once per scenario.

Each run is announced on the lifecycle bus. Subscribers get the test context,
the launch, a kill warning when the run times out and the final exit. A
subscriber that does not finish with an announcement within the subscriber
timeout is reported by key; it does not fail the scenario.

Scenario arguments and environment values are templates:
  args:
    - "--run-id={{ .RunID }}"
    - "--system-dir={{ .WorkingDir }}/system"

Examples:
  starter run scenarios/                      # Run every scenario
  starter run scenarios/ --tag=smoke          # Run scenarios tagged smoke
  starter run scenarios/ --scenario=indexing  # Run scenarios whose name contains "indexing"
  starter run scenarios/ --parallel=4         # Run four scenarios at a time
  starter run scenarios/ --output=json        # Print the suite result as JSON

Exit codes: 0 when every scenario passed, 2 when scenarios failed, 1 on errors.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVar(&runParallel, "parallel", 1, "Number of scenarios run at once")
	runCmd.Flags().BoolVar(&runFailFast, "fail-fast", false, "Stop starting scenarios after the first failure")
	runCmd.Flags().DurationVar(&runScenarioTimeout, "timeout", config.DefaultScenarioTimeout, "Run timeout of scenarios that do not set one")
	runCmd.Flags().DurationVar(&runKillGracePeriod, "kill-grace-period", config.DefaultKillGracePeriod, "Time between SIGTERM and SIGKILL")
	runCmd.Flags().DurationVar(&runSubscriberTimeout, "subscriber-timeout", config.DefaultWaitTimeout, "How long each lifecycle announcement waits for subscribers")
	runCmd.Flags().StringVar(&runScenario, "scenario", "", "Only run scenarios whose name contains this value")
	runCmd.Flags().StringSliceVar(&runTags, "tag", nil, "Only run scenarios with one of these tags")
	runCmd.Flags().StringVar(&runReportPath, "report-path", "", "Directory to save a JSON report to")
	runCmd.Flags().StringVarP(&runOutputFormat, "output", "o", harness.FormatConsole, "Output format (console, quiet, json)")
	runCmd.Flags().BoolVar(&runVerbose, "verbose", false, "Show timelines and the configuration")
	runCmd.Flags().StringVar(&runMetricsFile, "metrics-file", "", "Write bus metrics in Prometheus text format to this file")

	_ = runCmd.RegisterFlagCompletionFunc("output", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{harness.FormatConsole, harness.FormatQuiet, harness.FormatJSON}, cobra.ShellCompDirectiveDefault
	})

	runCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if runParallel < 1 || runParallel > 50 {
			return fmt.Errorf("parallel scenarios must be between 1 and 50, got %d", runParallel)
		}
		return nil
	}
}

// runConfiguration merges the loaded configuration with the flags the user
// set explicitly.
func runConfiguration(cmd *cobra.Command, cfg config.StarterConfig) harness.RunConfiguration {
	rc := harness.RunConfiguration{
		Parallel:          cfg.Runner.Parallel,
		FailFast:          cfg.Runner.FailFast,
		ScenarioTimeout:   cfg.Runner.ScenarioTimeout,
		KillGracePeriod:   cfg.Runner.KillGracePeriod,
		SubscriberTimeout: cfg.Bus.WaitTimeout,
		ReportPath:        cfg.Runner.ReportPath,
		Scenario:          runScenario,
		Tags:              runTags,
		Verbose:           runVerbose,
	}

	flags := cmd.Flags()
	if flags.Changed("parallel") {
		rc.Parallel = runParallel
	}
	if flags.Changed("fail-fast") {
		rc.FailFast = runFailFast
	}
	if flags.Changed("timeout") {
		rc.ScenarioTimeout = runScenarioTimeout
	}
	if flags.Changed("kill-grace-period") {
		rc.KillGracePeriod = runKillGracePeriod
	}
	if flags.Changed("subscriber-timeout") {
		rc.SubscriberTimeout = runSubscriberTimeout
	}
	if flags.Changed("report-path") {
		rc.ReportPath = runReportPath
	}
	return rc
}

// busOptions translates the bus section of the configuration.
func busOptions(cfg config.StarterConfig) []bus.Option {
	return []bus.Option{
		bus.WithBufferSize(cfg.Bus.BufferSize),
		bus.WithDefaultTimeout(cfg.Bus.WaitTimeout),
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rc := runConfiguration(cmd, cfg)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(cmd.ErrOrStderr(), "\nReceived interrupt signal, stopping scenarios gracefully...")
			cancel()
		case <-ctx.Done():
		}
	}()

	scenarios, err := harness.LoadScenarios(args[0])
	if err != nil {
		return fmt.Errorf("failed to load scenarios: %w", err)
	}
	if len(scenarios) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "⚠️  No scenarios found in %s\n", args[0])
		return nil
	}

	reporter, err := harness.NewReporter(runOutputFormat, cmd.OutOrStdout(), rc.Verbose, rc.ReportPath)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	opts := append(busOptions(cfg), bus.WithMetrics(registry))
	shared := bus.New(append(opts, bus.WithName("starter"))...)
	defer shared.UnsubscribeAll()

	generator := events.NewEventGenerator()
	runner := harness.NewTestRunner(shared, ide.NewExecLauncher(), reporter, rc,
		harness.WithBusOptions(opts...),
		harness.WithSubscriberSetup(func(b *bus.Bus, tc harness.TestContext) error {
			return events.NewLogRecorder(generator, "event-log").Attach(b)
		}),
	)

	suite, runErr := runner.Run(ctx, scenarios)

	if runMetricsFile != "" {
		if err := prometheus.WriteToTextfile(runMetricsFile, registry); err != nil {
			logging.Error("Runner", err, "Failed to write metrics to %s", runMetricsFile)
		}
	}

	if runErr != nil {
		return fmt.Errorf("scenario run interrupted: %w", runErr)
	}
	if !suite.Succeeded() {
		return &TestsFailedError{Failed: suite.FailedScenarios + suite.ErrorScenarios, Total: suite.TotalScenarios}
	}
	return nil
}
