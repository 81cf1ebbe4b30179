package executor

import (
	"errors"
	"runtime"
	"sync"
)

// ErrQueueFull is returned by PostEvent when the bounded queue has no
// free slot. The producer side is required to be non-blocking, so this
// is a normal, expected outcome under backpressure, not a fault.
var ErrQueueFull = errors.New("executor: event queue full")

// Queue is the bounded, multi-producer/single-consumer event queue
// contract the executor is built on. Two interchangeable backends exist:
// chanQueue (a software ring for the blocking, OS-thread mode) and
// lockFreeQueue (for the polled, busy-spin mode). Both satisfy identical
// FIFO-per-producer and non-blocking-producer guarantees.
type Queue interface {
	// PostEvent enqueues ev without blocking. Returns ErrQueueFull if the
	// queue has no capacity left.
	PostEvent(ev Event) error

	// GetEvent blocks the single consumer until an event is available,
	// returning ok=false only once the queue has been closed and drained.
	GetEvent() (ev Event, ok bool)

	// TryDequeue removes and returns the oldest event without blocking,
	// or ok=false if the queue is currently empty. Used by the polled
	// backend's run-batch loop.
	TryDequeue() (ev Event, ok bool)

	// Close releases resources held by the queue. Idempotent.
	Close()
}

// chanQueue is the software-ring backend: a buffered Go channel used for
// blocking/OS-thread-mode executors, where the worker goroutine parks
// until work shows up instead of busy-polling.
type chanQueue struct {
	ch        chan Event
	closeOnce sync.Once
}

// NewChanQueue creates a bounded channel-backed Queue of the given
// capacity (typical 64-4096, per the executor's qd parameter).
func NewChanQueue(capacity int) Queue {
	return &chanQueue{ch: make(chan Event, capacity)}
}

func (q *chanQueue) PostEvent(ev Event) error {
	select {
	case q.ch <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *chanQueue) GetEvent() (Event, bool) {
	ev, ok := <-q.ch
	return ev, ok
}

func (q *chanQueue) TryDequeue() (Event, bool) {
	select {
	case ev := <-q.ch:
		return ev, true
	default:
		return Event{}, false
	}
}

func (q *chanQueue) Close() {
	q.closeOnce.Do(func() { close(q.ch) })
}

// spinGetEvent implements Queue.GetEvent for backends whose native
// operation is a non-blocking TryDequeue (the lock-free ring): spin with
// cooperative yields until an event shows up or the queue is torn down.
func spinGetEvent(tryDequeue func() (Event, bool), closed func() bool) (Event, bool) {
	for {
		if ev, ok := tryDequeue(); ok {
			return ev, true
		}
		if closed() {
			return Event{}, false
		}
		runtime.Gosched()
	}
}
