package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"starter/internal/bus"
	"starter/internal/config"
	"starter/internal/events"
	"starter/internal/ide"
)

var (
	launchName            string
	launchWorkingDir      string
	launchTimeout         time.Duration
	launchKillGracePeriod time.Duration
	launchEnv             []string
)

// launchCmd represents the launch command
var launchCmd = &cobra.Command{
	Use:   "launch [flags] -- <command> [args...]",
	Short: "Launch a single IDE run and announce its lifecycle",
	Long: `Launch starts one process the same way a scenario does, without a scenario
file. Lifecycle events are logged as they happen, and the run is terminated
when it exceeds --timeout.

Examples:
  starter launch -- ./bin/idea.sh nosplash
  starter launch --timeout=5m --name=smoke -- ./bin/idea.sh`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLaunch,
}

func init() {
	rootCmd.AddCommand(launchCmd)

	launchCmd.Flags().StringVar(&launchName, "name", "launch", "Name used for the run in events and logs")
	launchCmd.Flags().StringVar(&launchWorkingDir, "working-dir", "", "Working directory of the process")
	launchCmd.Flags().DurationVar(&launchTimeout, "timeout", 0, "Terminate the process after this long (0 waits for it to exit)")
	launchCmd.Flags().DurationVar(&launchKillGracePeriod, "kill-grace-period", 0, "Time between SIGTERM and SIGKILL (default from configuration)")
	launchCmd.Flags().StringArrayVar(&launchEnv, "env", nil, "Extra environment variable as KEY=VALUE (repeatable)")
}

// newLaunchApp wires the bus and the IDE runner for a single launch. The
// returned runner is valid between app.Start and app.Stop.
func newLaunchApp(cfg config.StarterConfig, launcher ide.Launcher, runner **ide.Runner) *fx.App {
	return fx.New(
		fx.NopLogger,
		fx.Supply(cfg),
		bus.Module(),
		fx.Provide(
			bus.AsOption(func() bus.Option { return bus.WithName("launch") }),
			bus.AsOption(func(cfg config.StarterConfig) bus.Option { return bus.WithBufferSize(cfg.Bus.BufferSize) }),
			bus.AsOption(func(cfg config.StarterConfig) bus.Option { return bus.WithDefaultTimeout(cfg.Bus.WaitTimeout) }),
			func(b *bus.Bus, cfg config.StarterConfig) *ide.Runner {
				return ide.NewRunner(b, launcher,
					ide.WithSubscriberTimeout(cfg.Bus.WaitTimeout),
					ide.WithKillGracePeriod(cfg.Runner.KillGracePeriod),
				)
			},
		),
		fx.Invoke(func(b *bus.Bus) error {
			return events.NewLogRecorder(events.NewEventGenerator(), "event-log").Attach(b)
		}),
		fx.Populate(runner),
	)
}

func runLaunch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(cmd.ErrOrStderr(), "\nReceived interrupt signal, terminating the IDE...")
			cancel()
		case <-ctx.Done():
		}
	}()

	var runner *ide.Runner
	app := newLaunchApp(cfg, ide.NewExecLauncher(), &runner)
	if err := app.Err(); err != nil {
		return fmt.Errorf("failed to set up launch: %w", err)
	}
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("failed to start launch: %w", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), app.StopTimeout())
		defer stopCancel()
		_ = app.Stop(stopCtx)
	}()

	result, runErr := runner.Run(ctx, ide.LaunchSpec{
		RunID:           uuid.NewString(),
		Scenario:        launchName,
		Command:         args[0],
		Args:            args[1:],
		Env:             launchEnv,
		WorkingDir:      launchWorkingDir,
		Timeout:         launchTimeout,
		KillGracePeriod: launchKillGracePeriod,
	})
	printLaunchResult(cmd, result)

	if runErr != nil {
		return runErr
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("%s exited with code %d", args[0], result.ExitCode)
	}
	return nil
}

func printLaunchResult(cmd *cobra.Command, result *ide.RunResult) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendRow(table.Row{text.FgHiCyan.Sprint("RUN ID"), result.RunID})
	t.AppendRow(table.Row{text.FgHiCyan.Sprint("PID"), result.PID})
	t.AppendRow(table.Row{text.FgHiCyan.Sprint("EXIT CODE"), result.ExitCode})
	t.AppendRow(table.Row{text.FgHiCyan.Sprint("DURATION"), result.Duration().Round(time.Millisecond)})
	if result.Killed {
		t.AppendRow(table.Row{text.FgHiCyan.Sprint("KILLED"), text.FgYellow.Sprint(result.KillReason)})
	}

	var pending []string
	for _, timeout := range result.SubscriberTimeouts() {
		pending = append(pending, fmt.Sprintf("%s (%s)", strings.Join(timeout.Pending, ", "), timeout.EventType))
	}
	if len(pending) > 0 {
		t.AppendRow(table.Row{text.FgHiCyan.Sprint("PENDING"), text.FgYellow.Sprint(strings.Join(pending, "; "))})
	}
	t.Render()
}
