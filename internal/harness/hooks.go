package harness

import (
	"context"
	"errors"
	"time"

	"starter/internal/bus"
	"starter/internal/events"
	"starter/pkg/logging"
)

// TestContext identifies one scenario execution.
type TestContext struct {
	TestName   string
	RunID      string
	WorkingDir string
}

// Hooks isolate scenarios sharing a bus. BeforeEach and AfterEach remove
// every subscription so nothing registered for one test sees the next.
type Hooks struct {
	bus      *bus.Bus
	timeout  time.Duration
	timeouts []*bus.TimeoutError
}

// NewHooks creates hooks for b. timeout bounds the notifications they post.
func NewHooks(b *bus.Bus, timeout time.Duration) *Hooks {
	return &Hooks{bus: b, timeout: timeout}
}

// BeforeEach removes all subscriptions and forgets the lifecycle values
// retained from the previous test.
func (h *Hooks) BeforeEach() {
	h.bus.UnsubscribeAll()
	bus.DropRetained[events.IdeLaunchEvent](h.bus)
	bus.DropRetained[events.IdeKillEvent](h.bus)
	bus.DropRetained[events.TestContextInitializedEvent](h.bus)
	bus.DropRetained[events.TestFinishedEvent](h.bus)
}

// Timeouts returns the subscriber timeouts hit by the notifications posted
// so far. They do not fail the hook.
func (h *Hooks) Timeouts() []*bus.TimeoutError {
	return h.timeouts
}

// Initialized announces tc to the subscribers registered for the test.
func (h *Hooks) Initialized(ctx context.Context, tc TestContext) error {
	return h.post(ctx, events.NewTestContextInitializedEvent(tc.TestName, tc.RunID, tc.WorkingDir))
}

// AfterEach announces the result of the test and removes all subscriptions.
func (h *Hooks) AfterEach(ctx context.Context, tc TestContext, result TestResult, duration time.Duration) error {
	defer h.bus.UnsubscribeAll()
	return h.post(ctx, events.NewTestFinishedEvent(tc.TestName, tc.RunID, string(result), duration))
}

func (h *Hooks) post(ctx context.Context, e bus.Event) error {
	err := h.bus.PostAndWait(ctx, e, h.timeout)
	var timeoutErr *bus.TimeoutError
	if errors.As(err, &timeoutErr) {
		// Already logged with the pending keys.
		logging.Debug("Runner", "Continuing after subscriber timeout for %s", bus.TypeName(e))
		h.timeouts = append(h.timeouts, timeoutErr)
		return nil
	}
	return err
}
