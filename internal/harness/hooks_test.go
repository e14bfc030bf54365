package harness

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starter/internal/bus"
	"starter/internal/events"
)

func TestHooks_BeforeEachClearsBus(t *testing.T) {
	b := bus.New(bus.WithName("hooks-before"))
	t.Cleanup(b.UnsubscribeAll)

	_, err := bus.Subscribe(b, "leftover", func(context.Context, events.IdeLaunchEvent) error { return nil })
	require.NoError(t, err)
	require.NoError(t, b.PostAsync(events.NewTestFinishedEvent("previous", "r0", "PASSED", time.Second)))
	require.NoError(t, b.PostAsync(events.NewIdeKillEvent(bus.StateAfter, "r0", 42, events.KillReasonTimeout)))

	NewHooks(b, time.Second).BeforeEach()

	assert.Zero(t, b.Subscribers())
	_, ok := bus.Retained[events.TestFinishedEvent](b)
	assert.False(t, ok)
	_, ok = bus.Retained[events.IdeKillEvent](b)
	assert.False(t, ok)
}

func TestHooks_Lifecycle(t *testing.T) {
	b := bus.New(bus.WithName("hooks-lifecycle"))
	t.Cleanup(b.UnsubscribeAll)
	hooks := NewHooks(b, time.Second)
	tc := TestContext{TestName: "indexing", RunID: "run-1", WorkingDir: "/work"}

	hooks.BeforeEach()

	var mu sync.Mutex
	var initialized []events.TestContextInitializedEvent
	var finished []events.TestFinishedEvent
	_, err := bus.Subscribe(b, "test", func(_ context.Context, e events.TestContextInitializedEvent) error {
		mu.Lock()
		defer mu.Unlock()
		initialized = append(initialized, e)
		return nil
	})
	require.NoError(t, err)
	_, err = bus.Subscribe(b, "test", func(_ context.Context, e events.TestFinishedEvent) error {
		mu.Lock()
		defer mu.Unlock()
		finished = append(finished, e)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, hooks.Initialized(context.Background(), tc))
	require.NoError(t, hooks.AfterEach(context.Background(), tc, ResultFailed, 3*time.Second))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, initialized, 1)
	assert.Equal(t, "indexing", initialized[0].TestName)
	assert.Equal(t, "run-1", initialized[0].RunID)
	assert.Equal(t, "/work", initialized[0].WorkingDir)
	require.Len(t, finished, 1)
	assert.Equal(t, "FAILED", finished[0].Result)
	assert.Equal(t, 3*time.Second, finished[0].Duration)

	assert.Zero(t, b.Subscribers(), "AfterEach leaves no subscribers for the next test")
}

func TestHooks_SubscriberTimeoutDoesNotFail(t *testing.T) {
	b := bus.New(bus.WithName("hooks-timeout"))
	t.Cleanup(b.UnsubscribeAll)
	hooks := NewHooks(b, 50*time.Millisecond)

	stopped := make(chan struct{})
	_, err := bus.Subscribe(b, "stuck", func(ctx context.Context, _ events.TestFinishedEvent) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	})
	require.NoError(t, err)

	err = hooks.AfterEach(context.Background(), TestContext{TestName: "t"}, ResultPassed, time.Second)
	require.NoError(t, err)
	require.Len(t, hooks.Timeouts(), 1)
	assert.Equal(t, []string{"stuck"}, hooks.Timeouts()[0].Pending)

	// The stuck handler was cancelled by the cleanup.
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("stuck subscriber was not cancelled")
	}
}

func TestHooks_CancelledContext(t *testing.T) {
	b := bus.New(bus.WithName("hooks-cancelled"))
	t.Cleanup(b.UnsubscribeAll)

	_, err := bus.Subscribe(b, "stuck", func(ctx context.Context, _ events.TestContextInitializedEvent) error {
		<-ctx.Done()
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewHooks(b, time.Second).Initialized(ctx, TestContext{TestName: "t"})
	assert.ErrorIs(t, err, context.Canceled)
}
