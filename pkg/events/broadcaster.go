package events

import (
	"reflect"
	"sync"
)

// Subscriber is anything an EngineEvent can be written to. A Subscriber
// that returns an error is dropped from the set the next time Unsubscribe
// runs a sweep.
type Subscriber interface {
	Send(EngineEvent) error
}

// SubscriberFunc adapts a plain function to a Subscriber. Function values
// are not comparable; see Subscribe for how the Broadcaster registers one.
type SubscriberFunc func(EngineEvent) error

func (f SubscriberFunc) Send(e EngineEvent) error { return f(e) }

// Broadcaster is a thread-safe set of subscribers. Broadcast writes to
// every subscriber while holding the set's lock. Heavier deployments
// layer RedisRelay (redis_relay.go) on top for cross-instance fan-out
// without changing this in-process contract.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[Subscriber]bool
	failed      map[Subscriber]bool
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[Subscriber]bool),
		failed:      make(map[Subscriber]bool),
	}
}

// boxedSubscriber gives a non-comparable Subscriber a unique, hashable
// identity in the subscriber set.
type boxedSubscriber struct{ Subscriber }

// Subscribe registers w to receive future broadcasts. A w whose dynamic
// type is not comparable (a bare SubscriberFunc) is registered under a
// fresh identity, so Unsubscribe cannot remove it later; a pointer such as
// &fn is registered as itself and can be removed.
func (b *Broadcaster) Subscribe(w Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !reflect.TypeOf(w).Comparable() {
		w = &boxedSubscriber{w}
	}
	b.subscribers[w] = true
}

// Unsubscribe removes w, and additionally sweeps out any subscriber that
// previously failed a write, dropping it from the set on this call. For a
// w whose dynamic type is not comparable only the sweep runs.
func (b *Broadcaster) Unsubscribe(w Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if reflect.TypeOf(w).Comparable() {
		delete(b.subscribers, w)
	}
	for f := range b.failed {
		delete(b.subscribers, f)
	}
	b.failed = make(map[Subscriber]bool)
}

// Broadcast writes evt to every current subscriber, in an unspecified but
// per-subscriber order-preserving fashion. A subscriber whose Send returns
// an error is marked failed (not yet removed) and skipped for the
// remainder of this call.
func (b *Broadcaster) Broadcast(evt EngineEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for w := range b.subscribers {
		if err := w.Send(evt); err != nil {
			b.failed[w] = true
		}
	}
}

// Count returns the number of currently registered subscribers, mainly for
// tests and metrics.
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
