package aof

import (
	"context"
	"sync"

	"github.com/pureflash/aofclient/internal/volume"
)

// MockVolume is a volume.Volume test double: it stores data in-memory
// (via an embedded volume.MemStore) and tracks call counts and flags so
// tests can assert on what was submitted, mirroring the teacher's
// MockBackend testing utility.
type MockVolume struct {
	*volume.MemStore

	mu         sync.RWMutex
	readCalls  int
	writeCalls int
	closed     bool
}

// NewMockVolume creates a new mock volume of the given size.
func NewMockVolume(id uint64, size int64) *MockVolume {
	return &MockVolume{
		MemStore: volume.NewMemStore(volume.MemStoreConfig{ID: id, Name: "mock", Size: size}),
	}
}

// Submit implements volume.Volume, delegating the IO to the embedded
// MemStore while tracking call counts.
func (m *MockVolume) Submit(ctx context.Context, buf []byte, count int, devOffset int64, dir volume.Direction, cbk volume.Callback, arg any) error {
	m.mu.Lock()
	if dir == volume.Write {
		m.writeCalls++
	} else {
		m.readCalls++
	}
	m.mu.Unlock()
	return m.MemStore.Submit(ctx, buf, count, devOffset, dir, cbk, arg)
}

// Close implements volume.Volume, tracking the closed flag in addition
// to delegating to MemStore.
func (m *MockVolume) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.MemStore.Close()
}

// IsClosed returns true if Close has been called.
func (m *MockVolume) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// CallCounts returns the number of times each IO direction has been
// submitted.
func (m *MockVolume) CallCounts() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]int{"read": m.readCalls, "write": m.writeCalls}
}

// Reset resets all call counters.
func (m *MockVolume) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCalls = 0
	m.writeCalls = 0
}

var _ volume.Volume = (*MockVolume)(nil)
