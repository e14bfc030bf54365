package config

import "time"

// StarterConfig is the top-level configuration structure for starter.
type StarterConfig struct {
	Bus     BusConfig     `yaml:"bus"`
	Logging LoggingConfig `yaml:"logging"`
	Runner  RunnerConfig  `yaml:"runner"`
}

// BusConfig configures the lifecycle event bus.
type BusConfig struct {
	BufferSize  int           `yaml:"buffer_size,omitempty"`  // Events each subscriber may have queued (default: 256)
	WaitTimeout time.Duration `yaml:"wait_timeout,omitempty"` // How long lifecycle notifications wait for subscribers (default: 30s)
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // debug, info, warn or error (default: info)
}

// RunnerConfig configures scenario execution.
type RunnerConfig struct {
	Parallel        int           `yaml:"parallel,omitempty"`          // Scenarios run at once; 1 runs them sequentially on the shared bus
	FailFast        bool          `yaml:"fail_fast,omitempty"`         // Stop starting scenarios after the first failure
	ScenarioTimeout time.Duration `yaml:"scenario_timeout,omitempty"`  // Default run timeout of a scenario
	KillGracePeriod time.Duration `yaml:"kill_grace_period,omitempty"` // Time between SIGTERM and SIGKILL
	ReportPath      string        `yaml:"report_path,omitempty"`       // Directory for JSON reports; empty disables them
}
