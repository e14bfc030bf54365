package bus

import (
	"reflect"
	"sync"
)

// registry indexes active subscriptions by event type and subscriber key.
// mu is the registration lock of the bus: every subscribe, subscribe-once and
// unsubscribe runs its check-and-update under it. It is never held while a
// handler runs.
type registry struct {
	mu     sync.Mutex
	byType map[reflect.Type]map[any][]*Subscription
}

func newRegistry() *registry {
	return &registry{
		byType: make(map[reflect.Type]map[any][]*Subscription),
	}
}

func (r *registry) addLocked(sub *Subscription) {
	byKey, ok := r.byType[sub.typ]
	if !ok {
		byKey = make(map[any][]*Subscription)
		r.byType[sub.typ] = byKey
	}
	byKey[sub.key] = append(byKey[sub.key], sub)
}

func (r *registry) firstLocked(typ reflect.Type, key any) *Subscription {
	subs := r.byType[typ][key]
	if len(subs) == 0 {
		return nil
	}
	return subs[0]
}

// remove drops sub and reports whether it was registered.
func (r *registry) remove(sub *Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	byKey := r.byType[sub.typ]
	subs := byKey[sub.key]
	for i, s := range subs {
		if s != sub {
			continue
		}
		subs = append(subs[:i], subs[i+1:]...)
		if len(subs) == 0 {
			delete(byKey, sub.key)
		} else {
			byKey[sub.key] = subs
		}
		if len(byKey) == 0 {
			delete(r.byType, sub.typ)
		}
		return true
	}
	return false
}

// takeKey removes and returns every subscription registered under key.
func (r *registry) takeKey(key any) []*Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	var taken []*Subscription
	for typ, byKey := range r.byType {
		subs, ok := byKey[key]
		if !ok {
			continue
		}
		taken = append(taken, subs...)
		delete(byKey, key)
		if len(byKey) == 0 {
			delete(r.byType, typ)
		}
	}
	return taken
}

// takeAll empties the registry and returns what it held.
func (r *registry) takeAll() []*Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	var taken []*Subscription
	for _, byKey := range r.byType {
		for _, subs := range byKey {
			taken = append(taken, subs...)
		}
	}
	r.byType = make(map[reflect.Type]map[any][]*Subscription)
	return taken
}

func (r *registry) count(typ reflect.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, subs := range r.byType[typ] {
		n += len(subs)
	}
	return n
}

func (r *registry) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, byKey := range r.byType {
		for _, subs := range byKey {
			n += len(subs)
		}
	}
	return n
}
