package bus

import (
	"reflect"
	"sync"
)

// envelope is one posted event instance. The id scopes post-and-wait
// bookkeeping to this instance, so equal event values posted twice are tracked
// separately.
type envelope struct {
	id    uint64
	event Event
}

// flow is the channel of one concrete event type: the sinks registered for it
// and the retained value, if any.
type flow struct {
	typ reflect.Type

	mu       sync.Mutex
	sinks    []*Subscription
	retained *envelope
}

func newFlow(typ reflect.Type) *flow {
	return &flow{
		typ:   typ,
		sinks: make([]*Subscription, 0),
	}
}

// attach adds sub as a sink. Unless skipRetained is set the retained value is
// queued to it first, so it is observed before anything emitted later.
func (f *flow) attach(sub *Subscription, skipRetained bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sinks = append(f.sinks, sub)
	if !skipRetained && f.retained != nil {
		// A fresh buffer always has room for one value.
		sub.out <- *f.retained
	}
}

// detach removes sub. Nothing is sent to sub once detach returns.
func (f *flow) detach(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, s := range f.sinks {
		if s == sub {
			f.sinks = append(f.sinks[:i], f.sinks[i+1:]...)
			return
		}
	}
}

// emit queues env to every sink, or to none if any sink buffer is full.
// beforeSend sees the exact set of receiving sinks while the flow is locked,
// which lets post-and-wait register its countdown before any handler can run.
// The retained slot is updated in the same critical section: set when retain
// is true, cleared otherwise.
func (f *flow) emit(env envelope, retain bool, beforeSend func(sinks []*Subscription)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Sends only happen under f.mu, so a buffer with room now still has room below.
	for _, s := range f.sinks {
		if len(s.out) == cap(s.out) {
			return &SaturationError{
				EventType:     f.typ.String(),
				SubscriberKey: s.key,
				Capacity:      cap(s.out),
			}
		}
	}

	if beforeSend != nil {
		beforeSend(f.sinks)
	}
	for _, s := range f.sinks {
		s.out <- env
	}

	if retain {
		f.retained = &env
	} else {
		f.retained = nil
	}
	return nil
}

func (f *flow) retainedValue() (Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.retained == nil {
		return nil, false
	}
	return f.retained.event, true
}

func (f *flow) dropRetained() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retained = nil
}

func (f *flow) sinkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sinks)
}
