package volume

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemStoreWriteThenReadRoundTrip(t *testing.T) {
	v := NewMemStore(MemStoreConfig{ID: 1, Name: "t", Size: 1 << 20})
	defer v.Close()

	want := make([]byte, 4096)
	for i := range want {
		want[i] = byte(i)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, v.Submit(context.Background(), want, len(want), 8192, Write, func(arg any, status int) {
		defer wg.Done()
		require.Equal(t, 0, status)
	}, nil))
	wg.Wait()

	got := make([]byte, 4096)
	wg.Add(1)
	require.NoError(t, v.Submit(context.Background(), got, len(got), 8192, Read, func(arg any, status int) {
		defer wg.Done()
		require.Equal(t, 0, status)
	}, nil))
	wg.Wait()

	require.Equal(t, want, got)
}

func TestMemStoreRejectsOutOfRange(t *testing.T) {
	v := NewMemStore(MemStoreConfig{ID: 1, Name: "t", Size: 4096})
	defer v.Close()

	buf := make([]byte, 4096)
	err := v.Submit(context.Background(), buf, len(buf), 4096, Read, func(any, int) {}, nil)
	require.ErrorIs(t, err, errOutOfRange)
}

func TestMemStoreDeliversCallbackViaWorkerPool(t *testing.T) {
	v := NewMemStore(MemStoreConfig{ID: 1, Name: "t", Size: 4096})
	defer v.Close()

	done := make(chan struct{})
	buf := make([]byte, 4096)
	require.NoError(t, v.Submit(context.Background(), buf, len(buf), 0, Read, func(any, int) {
		close(done)
	}, nil))
	<-done
}

func TestMemStoreRejectsAfterClose(t *testing.T) {
	v := NewMemStore(MemStoreConfig{ID: 1, Name: "t", Size: 4096})
	require.NoError(t, v.Close())
	require.NoError(t, v.Close()) // idempotent

	buf := make([]byte, 4096)
	err := v.Submit(context.Background(), buf, len(buf), 0, Read, func(any, int) {}, nil)
	require.ErrorIs(t, err, errClosed)
}

func TestSimVolumeTracksInFlightAndInjectsFailures(t *testing.T) {
	v := NewSimVolume(SimVolumeConfig{
		MemStoreConfig: MemStoreConfig{ID: 1, Name: "sim", Size: 1 << 20},
		FailEvery:      3,
		Seed:           1,
	})
	defer v.Close()

	var wg sync.WaitGroup
	var failures, successes int32
	var mu sync.Mutex
	buf := make([]byte, 4096)
	for i := 0; i < 9; i++ {
		wg.Add(1)
		require.NoError(t, v.Submit(context.Background(), buf, len(buf), 0, Write, func(arg any, status int) {
			defer wg.Done()
			mu.Lock()
			if status != 0 {
				failures++
			} else {
				successes++
			}
			mu.Unlock()
		}, nil))
	}
	wg.Wait()

	require.Equal(t, int32(3), failures)
	require.Equal(t, int32(6), successes)
	require.Equal(t, int64(0), v.InFlight())
}
