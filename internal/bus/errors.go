package bus

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidEventType is returned for nil events and interface-typed subscriptions.
	ErrInvalidEventType = errors.New("invalid event type")
	// ErrInvalidSubscriberKey is returned when a subscriber key is not comparable.
	ErrInvalidSubscriberKey = errors.New("subscriber key must be comparable")
	// ErrNilHandler is returned when subscribing without a handler.
	ErrNilHandler = errors.New("subscriber handler is nil")
)

// SubscriberCallbackError wraps a failure raised inside a subscriber handler,
// either a returned error or a recovered panic. It is logged by the dispatcher
// and never reaches the poster.
type SubscriberCallbackError struct {
	// EventType is the name of the event type being handled
	EventType string
	// SubscriberKey identifies the failing subscription
	SubscriberKey any
	// Err is the error returned by the handler, nil for panics
	Err error
	// Panic holds the recovered panic value, nil for returned errors
	Panic any
	// Stack is the goroutine stack captured when the handler panicked
	Stack []byte
}

// Error implements the error interface.
func (e *SubscriberCallbackError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("subscriber %v panicked handling %s: %v", e.SubscriberKey, e.EventType, e.Panic)
	}
	return fmt.Sprintf("subscriber %v failed handling %s: %v", e.SubscriberKey, e.EventType, e.Err)
}

// Unwrap returns the handler error.
func (e *SubscriberCallbackError) Unwrap() error {
	return e.Err
}

// TimeoutError is returned by PostAndWait when not every subscriber finished
// before the deadline.
type TimeoutError struct {
	// EventType is the name of the posted event type
	EventType string
	// Timeout is the wait budget that elapsed
	Timeout time.Duration
	// Pending lists the keys of subscribers that had not completed, sorted
	Pending []string
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %d subscriber(s) of %s: [%s]",
		e.Timeout, len(e.Pending), e.EventType, strings.Join(e.Pending, ", "))
}

// IsTimeout reports whether err is or wraps a TimeoutError.
func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}

// SaturationError is returned when an event cannot be emitted because a
// subscriber buffer is full. It means a consumer is stuck; nothing was delivered.
type SaturationError struct {
	// EventType is the name of the event type that could not be emitted
	EventType string
	// SubscriberKey is the key of the first subscriber found with a full buffer
	SubscriberKey any
	// Capacity is the buffer size of that subscriber
	Capacity int
}

// Error implements the error interface.
func (e *SaturationError) Error() string {
	return fmt.Sprintf("buffer of subscriber %v for %s is full (capacity %d)", e.SubscriberKey, e.EventType, e.Capacity)
}

// IsSaturation reports whether err is or wraps a SaturationError.
func IsSaturation(err error) bool {
	var saturationErr *SaturationError
	return errors.As(err, &saturationErr)
}
