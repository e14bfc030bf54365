package bus

import (
	"fmt"
	"sort"
	"sync"
)

// waiter is the countdown of one post-and-wait call: the subscriptions that
// received the posted instance and have not finished with it yet.
type waiter struct {
	pending map[uint64]any // subscription id -> subscriber key
	done    chan struct{}
}

// synchronizer tracks in-flight post-and-wait calls by posted instance id.
type synchronizer struct {
	mu      sync.Mutex
	waiters map[uint64]*waiter
}

func newSynchronizer() *synchronizer {
	return &synchronizer{
		waiters: make(map[uint64]*waiter),
	}
}

// register starts a countdown for postID over sinks. It returns nil when there
// is nothing to wait for.
func (s *synchronizer) register(postID uint64, sinks []*Subscription) *waiter {
	if len(sinks) == 0 {
		return nil
	}

	w := &waiter{
		pending: make(map[uint64]any, len(sinks)),
		done:    make(chan struct{}),
	}
	for _, sub := range sinks {
		w.pending[sub.id] = sub.key
	}

	s.mu.Lock()
	s.waiters[postID] = w
	s.mu.Unlock()
	return w
}

// complete records that subID is finished with postID. Unknown pairs are
// ignored: late subscribers fed the retained value, duplicates, and
// completions arriving after the wait already timed out.
func (s *synchronizer) complete(postID, subID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.waiters[postID]
	if !ok {
		return
	}
	s.completeLocked(postID, w, subID)
}

// forget completes subID in every pending wait. Used when a subscription is
// cancelled, since it will never report on the events still in its buffer.
func (s *synchronizer) forget(subID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for postID, w := range s.waiters {
		s.completeLocked(postID, w, subID)
	}
}

func (s *synchronizer) completeLocked(postID uint64, w *waiter, subID uint64) {
	if _, ok := w.pending[subID]; !ok {
		return
	}
	delete(w.pending, subID)
	if len(w.pending) == 0 {
		close(w.done)
		delete(s.waiters, postID)
	}
}

// abandon drops the wait for postID and returns the keys still pending, sorted.
// An empty result means every subscriber completed in the meantime.
func (s *synchronizer) abandon(postID uint64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.waiters[postID]
	if !ok {
		return nil
	}
	delete(s.waiters, postID)

	pending := make([]string, 0, len(w.pending))
	for _, key := range w.pending {
		pending = append(pending, fmt.Sprintf("%v", key))
	}
	sort.Strings(pending)
	return pending
}

func (s *synchronizer) inFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}
