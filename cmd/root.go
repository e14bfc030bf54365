package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"starter/internal/config"
	"starter/pkg/logging"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeTestsFailed indicates the run completed but scenarios failed.
	ExitCodeTestsFailed = 2
)

var (
	configPath string
	logLevel   string
)

// TestsFailedError is returned by commands whose scenarios ran but did not
// all pass.
type TestsFailedError struct {
	Failed int
	Total  int
}

func (e *TestsFailedError) Error() string {
	return fmt.Sprintf("%d of %d scenario(s) failed", e.Failed, e.Total)
}

// rootCmd represents the base command for the starter application.
var rootCmd = &cobra.Command{
	Use:   "starter",
	Short: "Launch IDEs under test and coordinate their lifecycle",
	Long: `starter runs IDE test scenarios. Every run is announced on an in-process
event bus (before launch, while running, before a forced kill and after exit),
and each announcement waits for the subscribers that care about it, such as
profilers, log collectors or screenshot takers.`,
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// It is called from the main package to inject the version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "starter version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps errors to exit codes for scripting and CI.
func getExitCode(err error) int {
	var testsFailed *TestsFailedError
	if errors.As(err, &testsFailed) {
		return ExitCodeTestsFailed
	}
	return ExitCodeError
}

// loadConfig reads the configuration and initialises logging. An explicit
// --log-level wins over the configured level.
func loadConfig(cmd *cobra.Command) (config.StarterConfig, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		var cfgErrs config.ConfigurationErrorCollection
		if errors.As(err, &cfgErrs) {
			return config.StarterConfig{}, fmt.Errorf("invalid configuration:\n%s", cfgErrs.GetDetailedReport())
		}
		var cfgErr config.ConfigurationError
		if errors.As(err, &cfgErr) {
			return config.StarterConfig{}, fmt.Errorf("invalid configuration:\n%s", cfgErr.DetailedError())
		}
		return config.StarterConfig{}, fmt.Errorf("failed to load configuration: %w", err)
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return config.StarterConfig{}, err
	}
	logging.InitForCLI(level, cmd.ErrOrStderr())
	return cfg, nil
}

func init() {
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", config.GetDefaultConfigPathOrPanic(), "Configuration directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}
