package events

import (
	"context"
	"fmt"

	"starter/internal/bus"
	"starter/pkg/logging"
)

// Description is the human-readable form of a lifecycle event.
type Description struct {
	Reason  EventReason
	Type    EventType
	Message string
}

// EventGenerator turns lifecycle events into descriptions.
type EventGenerator struct {
	templates *MessageTemplateEngine
}

// NewEventGenerator creates an EventGenerator with the default templates.
func NewEventGenerator() *EventGenerator {
	return &EventGenerator{
		templates: NewMessageTemplateEngine(),
	}
}

// Templates exposes the template engine for customization.
func (g *EventGenerator) Templates() *MessageTemplateEngine {
	return g.templates
}

// Describe returns the description of e. Events this package does not define
// are described by their type and state.
func (g *EventGenerator) Describe(e bus.Event) Description {
	reason, data, ok := classify(e)
	if !ok {
		return Description{
			Reason:  EventReason(bus.TypeName(e)),
			Type:    EventTypeNormal,
			Message: fmt.Sprintf("%s (%s)", bus.TypeName(e), e.EventState()),
		}
	}
	return Description{
		Reason:  reason,
		Type:    getEventType(reason),
		Message: g.templates.Render(reason, data),
	}
}

func classify(e bus.Event) (EventReason, EventData, bool) {
	switch ev := e.(type) {
	case IdeLaunchEvent:
		data := EventData{
			Name:     ev.Run.Scenario,
			RunID:    ev.Run.RunID,
			PID:      ev.Run.PID,
			ExitCode: ev.ExitCode,
		}
		if ev.Err != nil {
			data.Error = ev.Err.Error()
		}
		switch ev.EventState() {
		case bus.StateBefore:
			if ev.Err != nil {
				return ReasonIdeFailed, data, true
			}
			return ReasonIdeStarting, data, true
		case bus.StateInTime:
			return ReasonIdeStarted, data, true
		case bus.StateBeforeKill:
			return ReasonIdeKilling, data, true
		default:
			if ev.Err != nil {
				return ReasonIdeFailed, data, true
			}
			return ReasonIdeStopped, data, true
		}
	case IdeKillEvent:
		data := EventData{RunID: ev.RunID, PID: ev.PID, KillReason: string(ev.Reason)}
		if ev.EventState() == bus.StateAfter {
			return ReasonIdeKilled, data, true
		}
		return ReasonIdeKillRequested, data, true
	case TestContextInitializedEvent:
		return ReasonTestInitialized, EventData{Name: ev.TestName, RunID: ev.RunID, WorkingDir: ev.WorkingDir}, true
	case TestFinishedEvent:
		data := EventData{Name: ev.TestName, RunID: ev.RunID, Duration: ev.Duration}
		switch ev.Result {
		case "PASSED":
			return ReasonTestPassed, data, true
		case "SKIPPED":
			return ReasonTestSkipped, data, true
		default:
			data.Error = ev.Result
			return ReasonTestFailed, data, true
		}
	}
	return "", EventData{}, false
}

// LogRecorder subscribes to every lifecycle event on a bus and writes its
// description to the log, warnings at warn level.
type LogRecorder struct {
	generator *EventGenerator
	key       string
}

// NewLogRecorder creates a recorder subscribing under key.
func NewLogRecorder(generator *EventGenerator, key string) *LogRecorder {
	if generator == nil {
		generator = NewEventGenerator()
	}
	return &LogRecorder{generator: generator, key: key}
}

// Attach subscribes the recorder to all lifecycle event types on b. It is
// idempotent per bus.
func (r *LogRecorder) Attach(b *bus.Bus) error {
	if _, err := bus.SubscribeOnlyOnce(b, r.key, logHandler[IdeLaunchEvent](r)); err != nil {
		return err
	}
	if _, err := bus.SubscribeOnlyOnce(b, r.key, logHandler[IdeKillEvent](r)); err != nil {
		return err
	}
	if _, err := bus.SubscribeOnlyOnce(b, r.key, logHandler[TestContextInitializedEvent](r)); err != nil {
		return err
	}
	if _, err := bus.SubscribeOnlyOnce(b, r.key, logHandler[TestFinishedEvent](r), bus.SkipRetained()); err != nil {
		return err
	}
	return nil
}

func logHandler[E bus.Event](r *LogRecorder) bus.Handler[E] {
	return func(_ context.Context, e E) error {
		d := r.generator.Describe(e)
		if d.Type == EventTypeWarning {
			logging.Warn("Events", "%s: %s", d.Reason, d.Message)
		} else {
			logging.Info("Events", "%s: %s", d.Reason, d.Message)
		}
		return nil
	}
}
