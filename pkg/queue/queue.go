// Package queue implements the bounded, thread-safe message queue used to
// hand raw transport bytes from the network-reading goroutine to the
// parsing goroutine. It never blocks a sender against a closed channel —
// shutdown is a signal, not a channel close — so Shutdown is safe to call
// concurrently with in-flight pushes.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
)

// Stats holds a BoundedQueue's operation counters. All fields are safe
// for concurrent access from any number of producers and consumers.
type Stats struct {
	Pushed    atomic.Uint64
	Overflows atomic.Uint64 // TryPush calls that found the queue full or shut down
	Popped    atomic.Uint64
}

// BoundedQueue is a fixed-capacity FIFO of raw message buffers. A single
// producer's pushes are observed by consumers in the order they were
// pushed; no ordering guarantee is made across multiple producers.
type BoundedQueue struct {
	ch         chan []byte
	shutdownCh chan struct{}
	closeOnce  sync.Once

	Stats Stats
}

// New constructs a BoundedQueue with the given fixed capacity.
func New(capacity int) *BoundedQueue {
	return &BoundedQueue{
		ch:         make(chan []byte, capacity),
		shutdownCh: make(chan struct{}),
	}
}

// PushBlocking pushes msg, blocking until space frees up, the queue is
// shut down, or ctx is cancelled. It reports whether msg was enqueued.
func (q *BoundedQueue) PushBlocking(ctx context.Context, msg []byte) bool {
	select {
	case q.ch <- msg:
		q.Stats.Pushed.Add(1)
		return true
	default:
	}

	select {
	case q.ch <- msg:
		q.Stats.Pushed.Add(1)
		return true
	case <-q.shutdownCh:
		return false
	case <-ctx.Done():
		return false
	}
}

// TryPush pushes msg without blocking. It reports false, and increments
// Stats.Overflows, if the queue is full or has been shut down.
func (q *BoundedQueue) TryPush(msg []byte) bool {
	select {
	case <-q.shutdownCh:
		q.Stats.Overflows.Add(1)
		return false
	default:
	}

	select {
	case q.ch <- msg:
		q.Stats.Pushed.Add(1)
		return true
	default:
		q.Stats.Overflows.Add(1)
		return false
	}
}

// PopBlocking blocks until a message is available or ctx is cancelled. If
// the queue has been shut down, PopBlocking still drains whatever was
// already buffered before reporting no more messages (ok == false).
func (q *BoundedQueue) PopBlocking(ctx context.Context) (msg []byte, ok bool) {
	select {
	case msg := <-q.ch:
		q.Stats.Popped.Add(1)
		return msg, true
	default:
	}

	select {
	case msg := <-q.ch:
		q.Stats.Popped.Add(1)
		return msg, true
	case <-q.shutdownCh:
		return q.drainOne()
	case <-ctx.Done():
		return nil, false
	}
}

// TryPop pops a message if one is immediately available, without
// blocking.
func (q *BoundedQueue) TryPop() (msg []byte, ok bool) {
	select {
	case msg := <-q.ch:
		q.Stats.Popped.Add(1)
		return msg, true
	default:
		return nil, false
	}
}

func (q *BoundedQueue) drainOne() ([]byte, bool) {
	select {
	case msg := <-q.ch:
		q.Stats.Popped.Add(1)
		return msg, true
	default:
		return nil, false
	}
}

// Shutdown marks the queue as shut down: subsequent PushBlocking/TryPush
// calls fail immediately, and blocked PopBlocking calls wake and drain
// any messages already buffered before returning ok == false. Shutdown
// is idempotent and safe to call concurrently with any other method.
func (q *BoundedQueue) Shutdown() {
	q.closeOnce.Do(func() { close(q.shutdownCh) })
}

// IsShutdown reports whether Shutdown has been called.
func (q *BoundedQueue) IsShutdown() bool {
	select {
	case <-q.shutdownCh:
		return true
	default:
		return false
	}
}

// Len returns the number of messages currently buffered.
func (q *BoundedQueue) Len() int { return len(q.ch) }

// Cap returns the queue's fixed capacity.
func (q *BoundedQueue) Cap() int { return cap(q.ch) }
