package bus

import (
	"reflect"
	"time"
)

// EventState marks the phase of a larger operation an event belongs to.
type EventState int

const (
	// StateUndefined is the zero value, used by events that carry no phase.
	StateUndefined EventState = iota
	// StateBefore is posted before the operation starts.
	StateBefore
	// StateInTime is posted while the operation is running.
	StateInTime
	// StateBeforeKill is posted right before the operation is forcibly terminated.
	StateBeforeKill
	// StateAfter is posted once the operation has finished.
	StateAfter
)

// String makes EventState satisfy the fmt.Stringer interface.
func (s EventState) String() string {
	switch s {
	case StateUndefined:
		return "UNDEFINED"
	case StateBefore:
		return "BEFORE"
	case StateInTime:
		return "IN_TIME"
	case StateBeforeKill:
		return "BEFORE_KILL"
	case StateAfter:
		return "AFTER"
	default:
		return "UNKNOWN"
	}
}

// Event is a value handed to the bus. Its concrete Go type selects the channel
// it travels on; two distinct types never share subscribers, even if one embeds
// the other.
type Event interface {
	EventState() EventState
}

// BaseEvent is the embeddable implementation of Event.
type BaseEvent struct {
	State     EventState
	CreatedAt time.Time
}

// NewBaseEvent returns a BaseEvent stamped with the current time.
func NewBaseEvent(state EventState) BaseEvent {
	return BaseEvent{State: state, CreatedAt: time.Now()}
}

// EventState implements Event.
func (e BaseEvent) EventState() EventState { return e.State }

// Signal is an event carrying a typed payload. Signal[A] and Signal[B] are
// different event types and are delivered on different channels.
type Signal[T any] struct {
	BaseEvent
	Data T
}

// NewSignal wraps data into a Signal with the given state.
func NewSignal[T any](state EventState, data T) Signal[T] {
	return Signal[T]{BaseEvent: NewBaseEvent(state), Data: data}
}

// TypeName returns the name used for e's channel in logs and metrics.
func TypeName(e Event) string {
	if e == nil {
		return "<nil>"
	}
	return reflect.TypeOf(e).String()
}

// eventTypeOf returns the channel key for E. Interface types have no channel of
// their own and are rejected.
func eventTypeOf[E Event]() (reflect.Type, error) {
	typ := reflect.TypeFor[E]()
	if typ.Kind() == reflect.Interface {
		return nil, ErrInvalidEventType
	}
	return typ, nil
}
