package executor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBlockingExecutorFIFOPerProducer(t *testing.T) {
	var mu sync.Mutex
	var seen []int64

	e := New(Config{
		Name:       "fifo-test",
		Mode:       ModeBlocking,
		QueueDepth: 256,
		Handler: func(_ Type, argI int64, _, _ any) {
			mu.Lock()
			seen = append(seen, argI)
			mu.Unlock()
		},
	})
	e.Start()
	defer e.Stop()

	const n = 200
	for i := int64(0); i < n; i++ {
		require.NoError(t, e.PostEvent(Event{Type: FirstUserType, ArgI: i}))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == n
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i, v := range seen {
		require.Equal(t, int64(i), v, "single producer must be observed in post order")
	}
}

func TestSyncInvokeSerializesConcurrentCallers(t *testing.T) {
	e := New(Config{Name: "sync-invoke-test", Mode: ModeBlocking, QueueDepth: 64})
	e.Start()
	defer e.Stop()

	var active int32
	var maxActive int32
	var mu sync.Mutex

	const producers = 10
	var wg sync.WaitGroup
	results := make([]int, producers)
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			res, err := e.SyncInvoke(func() int {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				return idx
			})
			require.NoError(t, err)
			results[idx] = res
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), maxActive, "no two SyncInvoke closures may run concurrently")
	for i, r := range results {
		require.Equal(t, i, r)
	}
}

func TestPollingExecutorRunsBatchesAndPolls(t *testing.T) {
	var handled int32
	var polls int32
	var mu sync.Mutex

	e := New(Config{
		Name:       "poll-test",
		Mode:       ModePolling,
		QueueDepth: 64,
		Handler: func(_ Type, _ int64, _, _ any) {
			mu.Lock()
			handled++
			mu.Unlock()
		},
		PollCompletions: func() {
			mu.Lock()
			polls++
			mu.Unlock()
		},
	})
	e.Start()
	defer e.Stop()

	for i := 0; i < 20; i++ {
		require.NoError(t, e.PostEvent(Event{Type: FirstUserType}))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return handled == 20 && polls > 0
	}, time.Second, time.Millisecond)
}

func TestStopIsIdempotentAndSafeWithoutStart(t *testing.T) {
	e := New(Config{Name: "never-started", Mode: ModeBlocking, QueueDepth: 8})
	e.Stop()
	e.Stop()

	e2 := New(Config{Name: "started-twice", Mode: ModeBlocking, QueueDepth: 8})
	e2.Start()
	e2.Start()
	e2.Stop()
	e2.Stop()
}

func TestQueueFullReturnsErrQueueFull(t *testing.T) {
	q := NewChanQueue(1)
	require.NoError(t, q.PostEvent(Event{Type: FirstUserType}))
	require.ErrorIs(t, q.PostEvent(Event{Type: FirstUserType}), ErrQueueFull)
}

func TestLockFreeQueueFIFO(t *testing.T) {
	q := NewLockFreeQueue(8)
	for i := int64(0); i < 5; i++ {
		require.NoError(t, q.PostEvent(Event{Type: FirstUserType, ArgI: i}))
	}
	for i := int64(0); i < 5; i++ {
		ev, ok := q.TryDequeue()
		require.True(t, ok)
		require.Equal(t, i, ev.ArgI)
	}
	_, ok := q.TryDequeue()
	require.False(t, ok)
}
