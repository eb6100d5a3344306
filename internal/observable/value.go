// Package observable provides a snapshot container that pushes every new value
// to its subscribers.
//
// Each subscriber owns a single-slot mailbox. Publish replaces an undelivered
// snapshot with the newer one, so a subscriber that falls behind only skips
// intermediate values and never sees them out of order. Publishers never wait
// on subscribers.
package observable

import (
	"context"
	"sync"
)

// Value holds the latest snapshot of type T.
type Value[T any] struct {
	mu      sync.Mutex
	current T
	nextID  uint64
	subs    map[uint64]chan T
}

// New returns a Value primed with initial.
func New[T any](initial T) *Value[T] {
	return &Value[T]{current: initial, subs: make(map[uint64]chan T)}
}

// Get returns the most recently published snapshot.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Publish stores next and hands it to every current subscriber before returning.
func (v *Value[T]) Publish(next T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = next
	for _, ch := range v.subs {
		offer(ch, next)
	}
}

// Subscribe registers a mailbox primed with the current snapshot. The returned
// cancel func unregisters it and closes the channel; calling it twice is safe.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, 1)

	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.subs[id] = ch
	ch <- v.current
	v.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.subs, id)
			v.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers reports how many mailboxes are registered.
func (v *Value[T]) Subscribers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs)
}

// Watch calls fn with every snapshot delivered to a fresh subscription until ctx
// is done. fn runs on its own goroutine; the returned channel is closed once the
// goroutine exits.
func (v *Value[T]) Watch(ctx context.Context, fn func(T)) <-chan struct{} {
	ch, cancel := v.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case snapshot, ok := <-ch:
				if !ok {
					return
				}
				fn(snapshot)
			}
		}
	}()
	return done
}

// offer replaces whatever is waiting in ch with value. Callers hold the Value
// lock, so no other sender can refill the slot between the drain and the send.
func offer[T any](ch chan T, value T) {
	select {
	case ch <- value:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- value
}
