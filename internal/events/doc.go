// Package events defines the lifecycle events posted on the bus while an IDE
// runs and around each test, and renders them as human-readable messages.
//
// Event kinds:
//
//   - IdeLaunchEvent: Before, InTime, BeforeKill and After phases of one IDE process
//   - IdeKillEvent: Before and After a forced termination
//   - TestContextInitializedEvent: a test has its run id and working directory
//   - TestFinishedEvent: a test has a result
//
// EventGenerator maps each event and state to an EventReason and renders a
// message from a text/template (with sprig functions). LogRecorder subscribes
// to all kinds and logs the messages:
//
//	recorder := events.NewLogRecorder(nil, "event-log")
//	if err := recorder.Attach(b); err != nil {
//		return err
//	}
package events
