// Package syncio bridges the async volume.Volume.Submit contract to a
// blocking call, for the handful of single-IO call sites that need a
// synchronous read or write: the header write at AoF creation, the
// header and tail-sector reads at open, and the header write that ends
// every flush.
package syncio

import (
	"context"
	"strconv"
	"sync"

	"github.com/pureflash/aofclient/internal/volume"
)

// waiter is released exactly once, by whichever completion arrives
// first; if a later completion on the same waiter also reports
// failure, the recorded status is left untouched — first-failure-wins,
// matching the original's io_cbk semantics.
type waiter struct {
	mu     sync.Mutex
	status int
	done   chan struct{}
	once   sync.Once
}

func (w *waiter) complete(status int) {
	w.mu.Lock()
	if w.status == 0 {
		w.status = status
	}
	w.mu.Unlock()
	w.once.Do(func() { close(w.done) })
}

// Do submits a single IO against v and blocks the calling goroutine
// until it completes, returning count on success. If the completion
// reports failure it returns that negative errno-style status with an
// *Error; if Submit rejects the IO outright it returns 0 and Submit's
// error without waiting.
func Do(ctx context.Context, v volume.Volume, buf []byte, count int, offset int64, dir volume.Direction) (int, error) {
	w := &waiter{done: make(chan struct{})}
	if err := v.Submit(ctx, buf, count, offset, dir, func(_ any, status int) {
		w.complete(status)
	}, nil); err != nil {
		return 0, err
	}
	<-w.done
	if w.status != 0 {
		return w.status, &Error{Offset: offset, Count: count, Dir: dir, Status: w.status}
	}
	return count, nil
}

// Error reports a failed synchronous IO.
type Error struct {
	Offset int64
	Count  int
	Dir    volume.Direction
	Status int
}

func (e *Error) Error() string {
	return "syncio: " + e.Dir.String() + " failed, status " + strconv.Itoa(e.Status)
}
