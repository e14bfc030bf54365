package harness

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starter/internal/bus"
	"starter/internal/events"
)

func TestTimeline_RecordsOffsets(t *testing.T) {
	b := bus.New(bus.WithName("timeline"))
	t.Cleanup(b.UnsubscribeAll)
	mock := clock.NewMock()
	ctx := context.Background()

	// A retained value from an earlier run is not part of this timeline.
	require.NoError(t, b.PostAsync(events.NewTestFinishedEvent("old", "r0", "PASSED", 0)))

	tl := NewTimeline(mock, nil)
	require.NoError(t, tl.Attach(b))
	require.NoError(t, tl.Attach(b), "attaching twice keeps one subscription per type")
	assert.Equal(t, 1, bus.SubscriberCount[events.IdeLaunchEvent](b))

	run := events.IdeRun{RunID: "r1", Scenario: "indexing", PID: 7}
	require.NoError(t, b.PostAndWait(ctx, events.NewTestContextInitializedEvent("indexing", "r1", "/work"), time.Second))
	mock.Add(2 * time.Second)
	require.NoError(t, b.PostAndWait(ctx, events.NewIdeLaunchEvent(bus.StateInTime, run), time.Second))
	mock.Add(3 * time.Second)
	require.NoError(t, b.PostAndWait(ctx, events.NewIdeKillEvent(bus.StateBefore, "r1", 7, events.KillReasonTimeout), time.Second))

	entries := tl.Entries()
	require.Len(t, entries, 3)

	assert.Equal(t, TimelineEntry{
		Offset:  0,
		Event:   "TestContextInitializedEvent",
		State:   "UNDEFINED",
		Reason:  events.ReasonTestInitialized,
		Message: entries[0].Message,
	}, entries[0])
	assert.Equal(t, 2*time.Second, entries[1].Offset)
	assert.Equal(t, "IdeLaunchEvent", entries[1].Event)
	assert.Equal(t, "IN_TIME", entries[1].State)
	assert.Equal(t, events.ReasonIdeStarted, entries[1].Reason)
	assert.Equal(t, 5*time.Second, entries[2].Offset)
	assert.Equal(t, events.ReasonIdeKillRequested, entries[2].Reason)
	assert.Contains(t, entries[2].Message, "timeout")
}
