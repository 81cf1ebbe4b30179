//go:build linux

package volume

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/pawelgaczynski/giouring"
)

// UringVolume is a real io_uring-backed Volume: writes and reads go
// straight to an open file (or block device) through a single
// submission/completion ring, polled by one dedicated goroutine. This
// is the linux-only counterpart to MemStore/SimVolume, and the home
// for the teacher's io_uring dependency, previously present in its
// go.mod but never actually wired to anything.
type UringVolume struct {
	id      uint64
	snapSeq uint32
	name    string
	size    int64

	f   *os.File
	fd  int32
	ring *giouring.Ring

	mu      sync.Mutex
	pending map[uint64]pendingIO
	nextTag uint64

	closed atomic.Bool
	done   chan struct{}
}

type pendingIO struct {
	cbk Callback
	arg any
}

// UringVolumeConfig configures a UringVolume.
type UringVolumeConfig struct {
	ID         uint64
	SnapSeq    uint32
	Name       string
	Path       string
	Size       int64
	QueueDepth uint32
}

// OpenUringVolume opens path (created if absent, truncated to Size) and
// starts its completion-polling goroutine.
func OpenUringVolume(cfg UringVolumeConfig) (*UringVolume, error) {
	if cfg.QueueDepth == 0 {
		cfg.QueueDepth = 256
	}
	f, err := os.OpenFile(cfg.Path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("volume: open %s: %w", cfg.Path, err)
	}
	if cfg.Size > 0 {
		if err := f.Truncate(cfg.Size); err != nil {
			f.Close()
			return nil, fmt.Errorf("volume: truncate %s: %w", cfg.Path, err)
		}
	}

	ring, err := giouring.CreateRing(cfg.QueueDepth)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("volume: create io_uring: %w", err)
	}

	v := &UringVolume{
		id:      cfg.ID,
		snapSeq: cfg.SnapSeq,
		name:    cfg.Name,
		size:    cfg.Size,
		f:       f,
		fd:      int32(f.Fd()),
		ring:    ring,
		pending: make(map[uint64]pendingIO),
		done:    make(chan struct{}),
	}
	go v.completionLoop()
	return v, nil
}

func (v *UringVolume) ID() uint64      { return v.id }
func (v *UringVolume) SnapSeq() uint32 { return v.snapSeq }
func (v *UringVolume) Name() string    { return v.name }
func (v *UringVolume) Size() int64     { return v.size }

// Submit enqueues a read or write SQE and returns immediately; the
// completion-polling goroutine invokes cbk once the matching CQE
// arrives.
func (v *UringVolume) Submit(ctx context.Context, buf []byte, count int, devOffset int64, dir Direction, cbk Callback, arg any) error {
	if v.closed.Load() {
		return errClosed
	}

	v.mu.Lock()
	sqe := v.ring.GetSQE()
	if sqe == nil {
		v.mu.Unlock()
		return fmt.Errorf("volume: submission queue full")
	}
	tag := v.nextTag
	v.nextTag++
	v.pending[tag] = pendingIO{cbk: cbk, arg: arg}

	if dir == Write {
		sqe.PrepWrite(v.fd, uintptr(bufAddr(buf)), uint32(count), uint64(devOffset))
	} else {
		sqe.PrepRead(v.fd, uintptr(bufAddr(buf)), uint32(count), uint64(devOffset))
	}
	sqe.UserData = tag
	_, err := v.ring.Submit()
	v.mu.Unlock()
	if err != nil {
		v.mu.Lock()
		delete(v.pending, tag)
		v.mu.Unlock()
		return fmt.Errorf("volume: submit: %w", err)
	}
	return nil
}

// completionLoop is the dedicated goroutine that waits on CQEs and
// dispatches completions to their callbacks. One such goroutine per
// UringVolume, mirroring the single-threaded-executor discipline used
// elsewhere in the client: nothing else touches the ring concurrently
// except Submit, which only calls GetSQE/Submit under mu.
func (v *UringVolume) completionLoop() {
	for {
		select {
		case <-v.done:
			return
		default:
		}
		cqe, err := v.ring.WaitCQE()
		if err != nil {
			continue
		}
		tag := cqe.UserData
		status := 0
		if cqe.Res < 0 {
			status = int(cqe.Res)
		}
		v.mu.Lock()
		p, ok := v.pending[tag]
		delete(v.pending, tag)
		v.mu.Unlock()
		v.ring.CQESeen(cqe)
		if ok {
			p.cbk(p.arg, status)
		}
	}
}

// Close tears down the ring and the backing file. Idempotent.
func (v *UringVolume) Close() error {
	if !v.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(v.done)
	v.ring.QueueExit()
	return v.f.Close()
}
