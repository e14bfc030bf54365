package bus

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultBufferSize is the per-subscriber buffer used when none is configured.
	DefaultBufferSize = 256
	// DefaultWaitTimeout is used by PostAndWait when called with a zero timeout.
	DefaultWaitTimeout = 30 * time.Second
)

type settings struct {
	name        string
	bufferSize  int
	waitTimeout time.Duration
	clock       clock.Clock
	registerer  prometheus.Registerer
}

func defaultSettings() settings {
	return settings{
		name:        "starter",
		bufferSize:  DefaultBufferSize,
		waitTimeout: DefaultWaitTimeout,
		clock:       clock.New(),
	}
}

// Option configures a Bus.
type Option func(*settings)

// WithName sets the bus name used in logs and as the "bus" metric label.
func WithName(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.name = name
		}
	}
}

// WithBufferSize sets how many undelivered events each subscription may hold
// before emission fails with a SaturationError.
func WithBufferSize(size int) Option {
	return func(s *settings) {
		if size > 0 {
			s.bufferSize = size
		}
	}
}

// WithDefaultTimeout sets the wait budget used when PostAndWait gets a zero timeout.
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(s *settings) {
		if timeout > 0 {
			s.waitTimeout = timeout
		}
	}
}

// WithClock replaces the clock driving wait timeouts.
func WithClock(c clock.Clock) Option {
	return func(s *settings) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithMetrics registers the bus collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *settings) {
		s.registerer = reg
	}
}

type subscribeSettings struct {
	skipRetained bool
	filter       func(EventState) bool
}

// SubscribeOption configures a single subscription.
type SubscribeOption func(*subscribeSettings)

// SkipRetained ignores the value retained on the channel at subscription time;
// only events emitted afterwards are delivered.
func SkipRetained() SubscribeOption {
	return func(s *subscribeSettings) {
		s.skipRetained = true
	}
}

// WithStateFilter delivers only events whose state satisfies filter.
func WithStateFilter(filter func(EventState) bool) SubscribeOption {
	return func(s *subscribeSettings) {
		if filter != nil {
			s.filter = filter
		}
	}
}

// OnState delivers only events in one of the given states.
func OnState(states ...EventState) SubscribeOption {
	return WithStateFilter(func(state EventState) bool {
		for _, s := range states {
			if s == state {
				return true
			}
		}
		return false
	})
}

type postSettings struct {
	retain bool
}

// PostOption configures a single post.
type PostOption func(*postSettings)

// NoRetain clears the channel's retained value as part of the emission, so
// subscribers registering afterwards do not receive this event.
func NoRetain() PostOption {
	return func(s *postSettings) {
		s.retain = false
	}
}
