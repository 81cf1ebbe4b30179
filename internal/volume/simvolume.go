package volume

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// SimVolume is a goroutine-pool-backed simulated async Volume: it
// delegates the actual byte movement to an embedded MemStore, but
// injects a configurable artificial latency (and, optionally, a
// transient failure rate) before completing the IO. It exists to
// exercise the AoF client's in-flight IO window and error-handling
// paths without needing a real block device.
type SimVolume struct {
	*MemStore

	latency   time.Duration
	jitter    time.Duration
	failEvery uint64

	mu      sync.Mutex
	seq     uint64
	rng     *rand.Rand
	inFlight int64
}

// SimVolumeConfig configures a SimVolume.
type SimVolumeConfig struct {
	MemStoreConfig
	// Latency is the fixed artificial delay applied to every IO.
	Latency time.Duration
	// Jitter adds up to this much additional random delay.
	Jitter time.Duration
	// FailEvery, if non-zero, fails every Nth submitted IO with a
	// synthetic transient error (status -5, EIO) instead of completing
	// it successfully — used to exercise recoverable read-error paths.
	FailEvery uint64
	// Seed seeds the jitter/failure RNG for deterministic tests.
	Seed int64
}

// NewSimVolume creates a SimVolume.
func NewSimVolume(cfg SimVolumeConfig) *SimVolume {
	return &SimVolume{
		MemStore:  NewMemStore(cfg.MemStoreConfig),
		latency:   cfg.Latency,
		jitter:    cfg.Jitter,
		failEvery: cfg.FailEvery,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
	}
}

// EIO is the synthetic transient-read-error status SimVolume injects.
const EIO = -5

// InFlight reports the current number of outstanding simulated IOs,
// useful for asserting the caller respects a bounded submission window.
func (s *SimVolume) InFlight() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Submit overrides MemStore.Submit to add latency/failure injection
// while still performing the underlying data movement through MemStore.
func (s *SimVolume) Submit(ctx context.Context, buf []byte, count int, devOffset int64, dir Direction, cbk Callback, arg any) error {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	delay := s.latency
	if s.jitter > 0 {
		delay += time.Duration(s.rng.Int63n(int64(s.jitter)))
	}
	shouldFail := s.failEvery != 0 && seq%s.failEvery == 0
	s.inFlight++
	s.mu.Unlock()

	wrapped := func(arg any, status int) {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
		if shouldFail {
			cbk(arg, EIO)
			return
		}
		cbk(arg, status)
	}

	if delay <= 0 {
		return s.MemStore.Submit(ctx, buf, count, devOffset, dir, wrapped, arg)
	}

	go func() {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
		if err := s.MemStore.Submit(ctx, buf, count, devOffset, dir, wrapped, arg); err != nil {
			// Submit already accepted this IO, so its callback must still
			// fire: report the late rejection as a failed completion.
			wrapped(arg, EIO)
		}
	}()
	return nil
}
