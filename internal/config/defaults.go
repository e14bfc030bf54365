package config

import "time"

const (
	// DefaultBufferSize is the default per-subscriber event buffer.
	DefaultBufferSize = 256

	// DefaultWaitTimeout is the default time lifecycle notifications wait for subscribers.
	DefaultWaitTimeout = 30 * time.Second

	// DefaultScenarioTimeout is the default run timeout of a scenario.
	DefaultScenarioTimeout = 10 * time.Minute

	// DefaultKillGracePeriod is the default time between SIGTERM and SIGKILL.
	DefaultKillGracePeriod = 10 * time.Second
)

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() StarterConfig {
	return StarterConfig{
		Bus: BusConfig{
			BufferSize:  DefaultBufferSize,
			WaitTimeout: DefaultWaitTimeout,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Runner: RunnerConfig{
			Parallel:        1,
			ScenarioTimeout: DefaultScenarioTimeout,
			KillGracePeriod: DefaultKillGracePeriod,
		},
	}
}
