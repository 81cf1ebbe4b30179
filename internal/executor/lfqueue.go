package executor

import (
	"sync/atomic"

	"code.hybscloud.com/lfq"
)

// lockFreeQueue is the polled-storage-engine backend: a wait-free
// single-producer-safe, lock-free multi-producer-safe FAA ring
// (code.hybscloud.com/lfq's MPSC) standing in for the spdk-ring backend
// the original reserves for the busy-polling worker. Capacity rounds up
// to the next power of two, same as the underlying ring.
type lockFreeQueue struct {
	ring   *lfq.MPSC[Event]
	closed atomic.Bool
}

// NewLockFreeQueue creates a lock-free MPSC-backed Queue of the given
// capacity, used by polling-mode executors.
func NewLockFreeQueue(capacity int) Queue {
	if capacity < 2 {
		capacity = 2
	}
	return &lockFreeQueue{ring: lfq.NewMPSC[Event](capacity)}
}

func (q *lockFreeQueue) PostEvent(ev Event) error {
	if err := q.ring.Enqueue(&ev); err != nil {
		if lfq.IsWouldBlock(err) {
			return ErrQueueFull
		}
		return err
	}
	return nil
}

func (q *lockFreeQueue) TryDequeue() (Event, bool) {
	ev, err := q.ring.Dequeue()
	if err != nil {
		return Event{}, false
	}
	return ev, true
}

func (q *lockFreeQueue) GetEvent() (Event, bool) {
	return spinGetEvent(q.TryDequeue, q.closed.Load)
}

func (q *lockFreeQueue) Close() {
	q.ring.Drain()
	q.closed.Store(true)
}
