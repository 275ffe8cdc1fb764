// Package queue implements the per-document message queue and tile
// dispatcher priority rules (spec.md §4.1, §4.2): MessageQueue is the
// thread-safe FIFO base with pluggable insert-time coalescing, and
// TileQueue is the specialization that recognizes tile, tilecombine,
// callback, textinput and removetextcontext messages.
package queue

import (
	"context"
	"sync"
)

// MessageQueue is a thread-safe FIFO of T with pluggable insert-time
// coalescing. Callers never mutate items directly; Put and PopWith run
// their callback under the queue's lock so coalescing and priority
// extraction both happen at a single serialization point, matching the
// "Queue mutex" description in spec.md §5.
type MessageQueue[T any] struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []T
}

// NewMessageQueue creates an empty queue.
func NewMessageQueue[T any]() *MessageQueue[T] {
	q := &MessageQueue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put runs mutate against the current item slice under the queue lock and
// stores the result, then wakes every blocked Pop/PopWith caller. mutate is
// where ingress coalescing (§4.1) happens.
func (q *MessageQueue[T]) Put(mutate func(items []T) []T) {
	q.mu.Lock()
	q.items = mutate(q.items)
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Mutate runs fn against the current item slice under the queue lock
// without signaling waiters, for operations that never add work (e.g.
// tile cancellation).
func (q *MessageQueue[T]) Mutate(fn func(items []T) []T) {
	q.mu.Lock()
	q.items = fn(q.items)
	q.mu.Unlock()
}

// Len returns the number of queued items.
func (q *MessageQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// PopWith blocks until extract can pull an item from the queue or ctx is
// done. extract receives the current items and returns the chosen item,
// the remaining items, and whether extraction succeeded; it runs under
// the queue lock, so it must not block or call back into the queue.
func (q *MessageQueue[T]) PopWith(ctx context.Context, extract func(items []T) (item T, rest []T, ok bool)) (T, bool) {
	stop := context.AfterFunc(ctx, q.cond.Broadcast)
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if item, rest, ok := extract(q.items); ok {
			q.items = rest
			return item, true
		}
		if ctx.Err() != nil {
			var zero T
			return zero, false
		}
		q.cond.Wait()
	}
}

// The methods below expose the queue's lock and item slice directly, for
// specializations like TileQueue whose dequeue algorithm does more than
// pull-one-item-and-remove-it (it may remove several combinable tiles at
// once). Callers holding the lock must not block or re-enter the queue.

// Lock acquires the queue mutex.
func (q *MessageQueue[T]) Lock() { q.mu.Lock() }

// Unlock releases the queue mutex.
func (q *MessageQueue[T]) Unlock() { q.mu.Unlock() }

// WaitLocked blocks on the condition variable; must be called with the
// lock held, and returns with the lock re-acquired (standard sync.Cond
// semantics).
func (q *MessageQueue[T]) WaitLocked() { q.cond.Wait() }

// ItemsLocked returns the live item slice; must be called with the lock
// held, and the returned slice must only be read or replaced via
// SetItemsLocked before Unlock.
func (q *MessageQueue[T]) ItemsLocked() []T { return q.items }

// SetItemsLocked replaces the item slice; must be called with the lock
// held.
func (q *MessageQueue[T]) SetItemsLocked(items []T) { q.items = items }

// AfterFuncOnDone wakes any blocked waiter when ctx is done, returning a
// stop function the caller must invoke once done waiting.
func (q *MessageQueue[T]) AfterFuncOnDone(ctx context.Context) (stop func() bool) {
	return context.AfterFunc(ctx, q.cond.Broadcast)
}
