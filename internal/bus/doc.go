// Package bus implements the in-process event bus that coordinates IDE run and
// test lifecycle signals.
//
// Events are Go values implementing [Event]. Their concrete type selects the
// channel they travel on: a subscriber for IdeLaunchEvent never sees a plain
// [BaseEvent], and [Signal] instances with different payload types are separate
// channels.
//
// # Delivery
//
// Every subscription owns a bounded buffer and one goroutine draining it, so
// handlers of one subscription see events of their type in emission order, and
// a slow handler delays nobody else. A post that finds any buffer full fails
// with a [SaturationError] and delivers nothing.
//
// Each channel retains its last value. A new subscriber receives it first,
// unless it subscribes with [SkipRetained]. Posting with [NoRetain] emits and
// clears the retained slot in one step.
//
// # Waiting for subscribers
//
// [Bus.PostAndWait] blocks until every subscription that received the posted
// instance has finished with it (handled it, filtered it out, failed, or been
// cancelled). Handlers may post and wait themselves; waits are tracked per
// posted instance, so nested waits do not deadlock.
//
//	b := bus.New()
//	_, _ = bus.Subscribe(b, "profiler", func(ctx context.Context, e events.IdeLaunchEvent) error {
//	    return profiler.Attach(ctx, e.PID)
//	}, bus.OnState(bus.StateInTime))
//
//	err := b.PostAndWait(ctx, events.NewIdeLaunchEvent(bus.StateInTime, run), 10*time.Second)
//	if bus.IsTimeout(err) {
//	    // err lists the subscriber keys that did not finish
//	}
//
// # Teardown
//
// [Bus.UnsubscribeAll] cancels every subscription and joins its goroutine.
// Handlers receive the cancellation through their context. Test hooks call it
// on the shared bus between tests; isolated buses come from [New].
package bus
