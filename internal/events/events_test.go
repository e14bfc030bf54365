package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starter/internal/bus"
)

func TestConstructors_SetState(t *testing.T) {
	run := IdeRun{RunID: "run-1", Scenario: "indexing", Command: []string{"idea.sh"}, PID: 42}

	launch := NewIdeLaunchEvent(bus.StateBeforeKill, run)
	assert.Equal(t, bus.StateBeforeKill, launch.EventState())
	assert.Equal(t, run, launch.Run)
	assert.False(t, launch.CreatedAt.IsZero())

	kill := NewIdeKillEvent(bus.StateAfter, "run-1", 42, KillReasonTimeout)
	assert.Equal(t, bus.StateAfter, kill.EventState())
	assert.Equal(t, KillReasonTimeout, kill.Reason)

	initialized := NewTestContextInitializedEvent("TestIndexing", "run-1", "/tmp/work")
	assert.Equal(t, bus.StateUndefined, initialized.EventState())

	finished := NewTestFinishedEvent("TestIndexing", "run-1", "PASSED", time.Second)
	assert.Equal(t, bus.StateAfter, finished.EventState())
	assert.Equal(t, time.Second, finished.Duration)
}

func TestEvents_TravelOnSeparateChannels(t *testing.T) {
	b := bus.New()
	defer b.UnsubscribeAll()

	launches := make(chan IdeLaunchEvent, 1)
	_, err := bus.Subscribe(b, "launch-listener", func(_ context.Context, e IdeLaunchEvent) error {
		launches <- e
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.PostAndWait(context.Background(), NewIdeKillEvent(bus.StateBefore, "run-1", 1, KillReasonCancelled), time.Second))
	assert.Len(t, launches, 0)

	require.NoError(t, b.PostAndWait(context.Background(), NewIdeLaunchEvent(bus.StateInTime, IdeRun{RunID: "run-1"}), time.Second))
	require.Len(t, launches, 1)
	assert.Equal(t, "run-1", (<-launches).Run.RunID)
}
