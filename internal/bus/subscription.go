package bus

import (
	"context"
	"errors"
	"reflect"
	"runtime/debug"
	"sync"

	"starter/pkg/logging"
)

// Handler processes one event. A returned error is logged and does not end
// the subscription. ctx is cancelled when the subscription is cancelled;
// long-running handlers should return promptly once it is done.
type Handler[E Event] func(ctx context.Context, event E) error

// Subscription is one registered consumer. It owns a buffered queue fed by the
// channel of its event type and a goroutine draining that queue in order.
type Subscription struct {
	id     uint64
	key    any
	typ    reflect.Type
	bus    *Bus
	flow   *flow
	out    chan envelope
	filter func(EventState) bool
	call   func(context.Context, Event) error

	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	cancelOnce sync.Once
}

// Key returns the subscriber key the subscription was registered with.
func (s *Subscription) Key() any {
	return s.key
}

// EventType returns the concrete event type the subscription listens to.
func (s *Subscription) EventType() reflect.Type {
	return s.typ
}

// Done is closed once the dispatch goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Cancel removes the subscription from the bus and blocks until its dispatch
// goroutine has exited. It is safe to call more than once. Calling it from the
// subscription's own handler deadlocks; use a goroutine there.
func (s *Subscription) Cancel() {
	s.bus.reg.remove(s)
	s.stop()
	s.wait()
}

// stop detaches the subscription and cancels its context without waiting.
func (s *Subscription) stop() {
	s.cancelOnce.Do(func() {
		s.flow.detach(s)
		s.cancel()
		s.bus.waits.forget(s.id)
	})
}

func (s *Subscription) wait() {
	<-s.done
}

// run is the dispatch loop. Events are handled one at a time in arrival order.
func (s *Subscription) run() {
	defer close(s.done)

	for {
		select {
		case <-s.ctx.Done():
			return
		case env := <-s.out:
			if s.ctx.Err() != nil {
				return
			}
			s.deliver(env)
		}
	}
}

// deliver hands env to the handler if it passes the state filter and reports
// completion to the synchronizer in every case.
func (s *Subscription) deliver(env envelope) {
	defer s.bus.waits.complete(env.id, s.id)

	if !s.filter(env.event.EventState()) {
		return
	}

	err := s.invoke(env.event)
	s.bus.metrics.delivered(s.typ.String())
	if err == nil {
		return
	}

	var cbErr *SubscriberCallbackError
	if errors.As(err, &cbErr) && cbErr.Panic == nil && errors.Is(cbErr.Err, context.Canceled) {
		logging.Debug("Bus", "Subscriber %v stopped handling %s: cancelled", s.key, s.typ)
		return
	}
	s.bus.metrics.failed(s.typ.String())
	logging.Error("Bus", err, "Subscriber %v failed handling %s (state %s)", s.key, s.typ, env.event.EventState())
	if cbErr != nil && cbErr.Stack != nil && logging.Enabled(logging.LevelDebug) {
		logging.Debug("Bus", "Stack of subscriber %v:\n%s", s.key, cbErr.Stack)
	}
}

// invoke calls the handler, converting returned errors and panics into a
// SubscriberCallbackError.
func (s *Subscription) invoke(event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &SubscriberCallbackError{
				EventType:     s.typ.String(),
				SubscriberKey: s.key,
				Panic:         r,
				Stack:         debug.Stack(),
			}
		}
	}()

	if callErr := s.call(s.ctx, event); callErr != nil {
		return &SubscriberCallbackError{
			EventType:     s.typ.String(),
			SubscriberKey: s.key,
			Err:           callErr,
		}
	}
	return nil
}

func alwaysTrue(EventState) bool { return true }
