package harness

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"starter/internal/bus"
	"starter/internal/events"
)

const timelineKey = "timeline"

// Timeline records the lifecycle events of one scenario with their offset from
// the scenario start.
type Timeline struct {
	clock     clock.Clock
	generator *events.EventGenerator

	mu      sync.Mutex
	origin  time.Time
	entries []TimelineEntry
}

// NewTimeline creates a timeline measuring offsets with c.
func NewTimeline(c clock.Clock, generator *events.EventGenerator) *Timeline {
	if generator == nil {
		generator = events.NewEventGenerator()
	}
	return &Timeline{clock: c, generator: generator}
}

// Attach starts the timeline and subscribes it to the lifecycle events on b.
// Retained values from earlier runs are skipped.
func (t *Timeline) Attach(b *bus.Bus) error {
	t.mu.Lock()
	t.origin = t.clock.Now()
	t.mu.Unlock()

	if _, err := bus.SubscribeOnlyOnce(b, timelineKey, timelineHandler[events.TestContextInitializedEvent](t), bus.SkipRetained()); err != nil {
		return err
	}
	if _, err := bus.SubscribeOnlyOnce(b, timelineKey, timelineHandler[events.IdeLaunchEvent](t), bus.SkipRetained()); err != nil {
		return err
	}
	if _, err := bus.SubscribeOnlyOnce(b, timelineKey, timelineHandler[events.IdeKillEvent](t), bus.SkipRetained()); err != nil {
		return err
	}
	_, err := bus.SubscribeOnlyOnce(b, timelineKey, timelineHandler[events.TestFinishedEvent](t), bus.SkipRetained())
	return err
}

func timelineHandler[E bus.Event](t *Timeline) bus.Handler[E] {
	return func(_ context.Context, e E) error {
		t.record(e)
		return nil
	}
}

func (t *Timeline) record(e bus.Event) {
	d := t.generator.Describe(e)
	name := bus.TypeName(e)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, TimelineEntry{
		Offset:  t.clock.Since(t.origin),
		Event:   name,
		State:   e.EventState().String(),
		Reason:  d.Reason,
		Message: d.Message,
	})
}

// Entries returns the recorded entries in arrival order.
func (t *Timeline) Entries() []TimelineEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TimelineEntry(nil), t.entries...)
}
