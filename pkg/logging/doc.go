// Package logging provides subsystem-tagged structured logging for starter.
//
// The package is a thin layer over Go's slog. Every entry carries a subsystem
// name so output from the event bus, the IDE runner and the test harness can be
// told apart and filtered.
//
// # Log Levels
//   - **Debug**: Detailed information, e.g. every event delivery on the bus
//   - **Info**: Run and scenario progress
//   - **Warn**: Subscriber timeouts, slow shutdowns
//   - **Error**: Failing subscriber callbacks, failed launches
//
// # Usage
//
//	import "starter/pkg/logging"
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Runner", "Starting scenario %s", name)
//	logging.Debug("Bus", "Delivered %s to %v", eventType, key)
//	logging.Warn("Bus", "Timed out waiting for %d subscribers", n)
//	logging.Error("Bus", err, "Subscriber %v failed", key)
//
// Level names from configuration files and flags are converted with [ParseLevel].
//
// # Tests
//
// [InitForTest] redirects output into a buffer and returns a function that
// restores the previous logger. The active logger is stored atomically, so it
// is safe to swap while goroutines from other tests are still logging.
//
// # Subsystems
//
//   - **Bus**: event posting, delivery, subscriber failures and timeouts
//   - **IDE**: process start, kill and exit
//   - **Runner**: scenario execution
//   - **Config**: configuration loading
package logging
