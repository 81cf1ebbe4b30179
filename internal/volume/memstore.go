package volume

import (
	"context"
	"sync"
)

// shardSize sizes the locking granularity of the in-memory store: large
// enough to keep per-shard overhead low, small enough that concurrent
// appends against different regions don't contend.
const shardSize = 64 * 1024

// MemStore is a RAM-backed Volume used by tests and the in-process demo.
// It uses sharded locking so concurrent Submit calls against disjoint
// regions don't serialize on a single mutex, completions are delivered
// from a small worker pool so Callback is never invoked synchronously
// from within Submit (per the Volume contract).
type MemStore struct {
	id      uint64
	snapSeq uint32
	name    string

	mu     sync.Mutex
	data   []byte
	shards []sync.RWMutex

	work   chan completion
	closed chan struct{}
	wg     sync.WaitGroup
}

type completion struct {
	cbk Callback
	arg any
	err int
}

// MemStoreConfig configures a new MemStore.
type MemStoreConfig struct {
	ID      uint64
	SnapSeq uint32
	Name    string
	Size    int64
	Workers int
}

// NewMemStore creates a zero-filled in-memory Volume of the given size.
func NewMemStore(cfg MemStoreConfig) *MemStore {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	numShards := (cfg.Size + shardSize - 1) / shardSize
	if numShards < 1 {
		numShards = 1
	}
	m := &MemStore{
		id:      cfg.ID,
		snapSeq: cfg.SnapSeq,
		name:    cfg.Name,
		data:    make([]byte, cfg.Size),
		shards:  make([]sync.RWMutex, numShards),
		work:    make(chan completion, 256),
		closed:  make(chan struct{}),
	}
	for i := 0; i < cfg.Workers; i++ {
		m.wg.Add(1)
		go m.runWorker()
	}
	return m
}

func (m *MemStore) runWorker() {
	defer m.wg.Done()
	for c := range m.work {
		c.cbk(c.arg, c.err)
	}
}

func (m *MemStore) ID() uint64      { return m.id }
func (m *MemStore) SnapSeq() uint32 { return m.snapSeq }
func (m *MemStore) Name() string    { return m.name }
func (m *MemStore) Size() int64     { return int64(len(m.data)) }

func (m *MemStore) shardRange(off, length int64) (start, end int) {
	start = int(off / shardSize)
	end = int((off + length - 1) / shardSize)
	if end >= len(m.shards) {
		end = len(m.shards) - 1
	}
	return start, end
}

// Submit performs the IO synchronously against the backing slice (an
// in-memory store has no real latency to hide) but always defers the
// Callback invocation to a worker goroutine, preserving the contract
// that completions never run on the submitter's stack.
func (m *MemStore) Submit(ctx context.Context, buf []byte, count int, devOffset int64, dir Direction, cbk Callback, arg any) error {
	select {
	case <-m.closed:
		return errClosed
	default:
	}
	if devOffset < 0 || devOffset+int64(count) > int64(len(m.data)) {
		return errOutOfRange
	}

	start, end := m.shardRange(devOffset, int64(count))
	status := 0
	switch dir {
	case Write:
		for i := start; i <= end; i++ {
			m.shards[i].Lock()
		}
		copy(m.data[devOffset:devOffset+int64(count)], buf[:count])
		for i := start; i <= end; i++ {
			m.shards[i].Unlock()
		}
	default:
		for i := start; i <= end; i++ {
			m.shards[i].RLock()
		}
		copy(buf[:count], m.data[devOffset:devOffset+int64(count)])
		for i := start; i <= end; i++ {
			m.shards[i].RUnlock()
		}
	}

	select {
	case m.work <- completion{cbk: cbk, arg: arg, err: status}:
		return nil
	case <-m.closed:
		return errClosed
	}
}

// Close stops the worker pool. Idempotent.
func (m *MemStore) Close() error {
	m.mu.Lock()
	select {
	case <-m.closed:
		m.mu.Unlock()
		return nil
	default:
	}
	close(m.closed)
	m.mu.Unlock()
	close(m.work)
	m.wg.Wait()
	return nil
}
