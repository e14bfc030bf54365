package config

import (
	"starter/pkg/logging"
)

// Validate checks the configuration for values the runner cannot work with.
// filePath is only used to annotate errors. The returned error is a
// ConfigurationErrorCollection listing every problem found.
func (c StarterConfig) Validate(filePath string) error {
	var errs ConfigurationErrorCollection

	if c.Bus.BufferSize <= 0 {
		errs.AddValidationError(filePath, "bus", "buffer_size", "must be positive",
			"Remove the field to use the default of 256")
	}
	if c.Bus.WaitTimeout <= 0 {
		errs.AddValidationError(filePath, "bus", "wait_timeout", "must be a positive duration",
			"Use a Go duration such as 30s or 2m")
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs.AddValidationError(filePath, "logging", "level", err.Error(),
			"Use one of debug, info, warn, error")
	}

	if c.Runner.Parallel < 1 {
		errs.AddValidationError(filePath, "runner", "parallel", "must be at least 1")
	}
	if c.Runner.ScenarioTimeout < 0 {
		errs.AddValidationError(filePath, "runner", "scenario_timeout", "must not be negative",
			"Use 0 to let scenarios run until the process exits")
	}
	if c.Runner.KillGracePeriod <= 0 {
		errs.AddValidationError(filePath, "runner", "kill_grace_period", "must be a positive duration")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
