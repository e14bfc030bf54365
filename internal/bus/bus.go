package bus

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"starter/pkg/logging"
)

// Bus is an in-process publish/subscribe bus keyed by concrete event type.
// A Bus is safe for concurrent use; the zero value is not usable, create one
// with New or use Default.
type Bus struct {
	name        string
	bufferSize  int
	waitTimeout time.Duration
	clock       clock.Clock

	flows   sync.Map // reflect.Type -> *flow
	reg     *registry
	waits   *synchronizer
	metrics *busMetrics

	nextPostID atomic.Uint64
	nextSubID  atomic.Uint64
}

// New creates an isolated bus.
func New(opts ...Option) *Bus {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}

	return &Bus{
		name:        s.name,
		bufferSize:  s.bufferSize,
		waitTimeout: s.waitTimeout,
		clock:       s.clock,
		reg:         newRegistry(),
		waits:       newSynchronizer(),
		metrics:     newBusMetrics(s.name, s.registerer),
	}
}

var defaultBus = sync.OnceValue(func() *Bus {
	return New(WithName("default"))
})

// Default returns the process-wide bus. Test lifecycle code is expected to
// call UnsubscribeAll on it between tests.
func Default() *Bus {
	return defaultBus()
}

// Name returns the bus name.
func (b *Bus) Name() string {
	return b.name
}

// Subscribe registers handler for events of type E. key identifies the
// subscriber for SubscribeOnlyOnce and Unsubscribe; it must be comparable, and
// nil is replaced by a generated key. Several subscriptions may share a key.
//
// The handler runs on a goroutine owned by the subscription, one event at a
// time, in emission order. The value retained on E's channel, if any, is
// delivered first unless SkipRetained is given.
func Subscribe[E Event](b *Bus, key any, handler Handler[E], opts ...SubscribeOption) (*Subscription, error) {
	return subscribeTyped(b, key, handler, false, opts)
}

// SubscribeOnlyOnce is Subscribe, except that it returns the existing
// subscription when key already has one for E.
func SubscribeOnlyOnce[E Event](b *Bus, key any, handler Handler[E], opts ...SubscribeOption) (*Subscription, error) {
	return subscribeTyped(b, key, handler, true, opts)
}

func subscribeTyped[E Event](b *Bus, key any, handler Handler[E], once bool, opts []SubscribeOption) (*Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	typ, err := eventTypeOf[E]()
	if err != nil {
		return nil, err
	}

	call := func(ctx context.Context, e Event) error {
		return handler(ctx, e.(E))
	}
	return b.subscribe(typ, key, call, once, opts)
}

func (b *Bus) subscribe(typ reflect.Type, key any, call func(context.Context, Event) error, once bool, opts []SubscribeOption) (*Subscription, error) {
	if key == nil {
		key = uuid.NewString()
	}
	if !hashable(key) {
		return nil, ErrInvalidSubscriberKey
	}

	settings := subscribeSettings{filter: alwaysTrue}
	for _, opt := range opts {
		opt(&settings)
	}

	b.reg.mu.Lock()
	defer b.reg.mu.Unlock()

	if once {
		if existing := b.reg.firstLocked(typ, key); existing != nil {
			logging.Debug("Bus", "Subscriber %v already listens to %s, keeping existing subscription", key, typ)
			return existing, nil
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	f := b.flowFor(typ)
	sub := &Subscription{
		id:     b.nextSubID.Add(1),
		key:    key,
		typ:    typ,
		bus:    b,
		flow:   f,
		out:    make(chan envelope, b.bufferSize),
		filter: settings.filter,
		call:   call,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	b.reg.addLocked(sub)
	f.attach(sub, settings.skipRetained)
	go sub.run()

	logging.Debug("Bus", "Subscriber %v registered for %s on bus %s", key, typ, b.name)
	return sub, nil
}

// hashable reports whether key can index a map. Comparable types such as
// structs with interface fields still panic at runtime when those fields hold
// slices, maps or funcs.
func hashable(key any) (ok bool) {
	if !reflect.TypeOf(key).Comparable() {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	_ = map[any]struct{}{key: {}}
	return true
}

// Unsubscribe cancels every subscription registered under key and waits for
// their handlers to return. It returns the number of subscriptions removed.
// Calling it from a handler of one of those subscriptions deadlocks; use a
// goroutine there.
func (b *Bus) Unsubscribe(key any) int {
	subs := b.reg.takeKey(key)
	stopAll(subs)
	return len(subs)
}

// UnsubscribeAll cancels every subscription and blocks until all dispatch
// goroutines have exited. No handler runs after it returns. It is idempotent.
// Calling it from a handler deadlocks, since it joins that handler's goroutine;
// use a goroutine there.
func (b *Bus) UnsubscribeAll() {
	subs := b.reg.takeAll()
	stopAll(subs)
	if len(subs) > 0 {
		logging.Debug("Bus", "Removed %d subscription(s) from bus %s", len(subs), b.name)
	}
}

// stopAll cancels all subscriptions first and only then joins them, so slow
// handlers are torn down in parallel.
func stopAll(subs []*Subscription) {
	for _, s := range subs {
		s.stop()
	}
	for _, s := range subs {
		s.wait()
	}
}

// PostAsync emits e without waiting for subscribers. The only error is a
// SaturationError (or ErrInvalidEventType for a nil event).
func (b *Bus) PostAsync(e Event, opts ...PostOption) error {
	_, _, err := b.post(e, opts, false)
	return err
}

// PostAndWait emits e and blocks until every subscription registered for e's
// type at emission time has finished with it, the timeout elapses, or ctx is
// done. A zero timeout uses the bus default.
//
// Subscriptions registered after the emission are not waited for, even if they
// receive e as the retained value.
//
// On timeout a *TimeoutError listing the pending subscriber keys is returned.
func (b *Bus) PostAndWait(ctx context.Context, e Event, timeout time.Duration, opts ...PostOption) error {
	if timeout <= 0 {
		timeout = b.waitTimeout
	}

	start := b.clock.Now()
	env, w, err := b.post(e, opts, true)
	if err != nil {
		return err
	}
	if w == nil {
		return nil
	}

	name := TypeName(e)
	timer := b.clock.Timer(timeout)
	defer timer.Stop()

	select {
	case <-w.done:
		b.metrics.waited(name, b.clock.Since(start), false)
		return nil
	case <-ctx.Done():
		if pending := b.waits.abandon(env.id); len(pending) > 0 {
			logging.Warn("Bus", "Stopped waiting for %s: %v, pending: %s", name, ctx.Err(), strings.Join(pending, ", "))
			return ctx.Err()
		}
		return nil
	case <-timer.C:
	}

	pending := b.waits.abandon(env.id)
	if len(pending) == 0 {
		b.metrics.waited(name, b.clock.Since(start), false)
		return nil
	}

	b.metrics.waited(name, b.clock.Since(start), true)
	logging.Warn("Bus", "Timed out after %s waiting for subscribers of %s (state %s), pending: %s",
		timeout, name, e.EventState(), strings.Join(pending, ", "))
	return &TimeoutError{
		EventType: name,
		Timeout:   timeout,
		Pending:   pending,
	}
}

// PostAndWaitProcessing is PostAndWait reporting a timeout as false instead of
// an error. Saturation and cancellation are still returned as errors.
func (b *Bus) PostAndWaitProcessing(ctx context.Context, e Event, timeout time.Duration, opts ...PostOption) (bool, error) {
	err := b.PostAndWait(ctx, e, timeout, opts...)
	switch {
	case err == nil:
		return true, nil
	case IsTimeout(err):
		return false, nil
	default:
		return false, err
	}
}

func (b *Bus) post(e Event, opts []PostOption, wait bool) (envelope, *waiter, error) {
	if e == nil {
		return envelope{}, nil, ErrInvalidEventType
	}

	settings := postSettings{retain: true}
	for _, opt := range opts {
		opt(&settings)
	}

	typ := reflect.TypeOf(e)
	env := envelope{id: b.nextPostID.Add(1), event: e}

	var w *waiter
	var beforeSend func([]*Subscription)
	if wait {
		beforeSend = func(sinks []*Subscription) {
			w = b.waits.register(env.id, sinks)
		}
	}

	if err := b.flowFor(typ).emit(env, settings.retain, beforeSend); err != nil {
		b.metrics.saturated(typ.String())
		logging.Error("Bus", err, "Could not post %s (state %s)", typ, e.EventState())
		return envelope{}, nil, err
	}

	b.metrics.posted(typ.String())
	logging.Debug("Bus", "Posted %s (state %s, retain %t) on bus %s", typ, e.EventState(), settings.retain, b.name)
	return env, w, nil
}

func (b *Bus) flowFor(typ reflect.Type) *flow {
	if f, ok := b.flows.Load(typ); ok {
		return f.(*flow)
	}
	f, _ := b.flows.LoadOrStore(typ, newFlow(typ))
	return f.(*flow)
}

func (b *Bus) existingFlow(typ reflect.Type) (*flow, bool) {
	f, ok := b.flows.Load(typ)
	if !ok {
		return nil, false
	}
	return f.(*flow), true
}

// Retained returns the value currently retained on E's channel.
func Retained[E Event](b *Bus) (E, bool) {
	var zero E
	typ, err := eventTypeOf[E]()
	if err != nil {
		return zero, false
	}
	f, ok := b.existingFlow(typ)
	if !ok {
		return zero, false
	}
	e, ok := f.retainedValue()
	if !ok {
		return zero, false
	}
	return e.(E), true
}

// DropRetained clears the value retained on E's channel.
func DropRetained[E Event](b *Bus) {
	typ, err := eventTypeOf[E]()
	if err != nil {
		return
	}
	if f, ok := b.existingFlow(typ); ok {
		f.dropRetained()
	}
}

// SubscriberCount returns the number of active subscriptions for E.
func SubscriberCount[E Event](b *Bus) int {
	typ, err := eventTypeOf[E]()
	if err != nil {
		return 0
	}
	return b.reg.count(typ)
}

// Subscribers returns the number of active subscriptions across all types.
func (b *Bus) Subscribers() int {
	return b.reg.total()
}
