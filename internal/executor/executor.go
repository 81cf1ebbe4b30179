package executor

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// batchSize bounds how many events a polling-mode executor drains per
// iteration before yielding to its completion-polling hook, matching the
// original's BATCH_PROCESS constant.
const batchSize = 8

// Mode selects the executor's scheduling discipline.
type Mode int

const (
	// ModeBlocking parks the worker on GetEvent until work arrives, then
	// drains the queue and invokes CommitBatch once per drain. This is the
	// OS-thread mode, backed by a chanQueue.
	ModeBlocking Mode = iota
	// ModePolling busy-polls TryDequeue up to batchSize events per
	// iteration, then invokes PollCompletions. This is the
	// polled-storage-engine mode, backed by a lockFreeQueue.
	ModePolling
)

// Stats are the executor's only observability contract: cumulative busy
// and idle duration, sampled once per scheduling iteration.
type Stats struct {
	BusyNs int64
	IdleNs int64
}

// Config configures a new Executor.
type Config struct {
	// Name is the executor's label, used for the OS thread name (truncated
	// to 15 bytes, matching the Linux TASK_COMM_LEN convention) and in
	// diagnostics.
	Name string
	// Mode selects ModeBlocking or ModePolling.
	Mode Mode
	// QueueDepth is the bounded queue capacity (typical 64-4096).
	QueueDepth int
	// Handler processes all non-reserved event types. Must not block.
	Handler Handler
	// CommitBatch is invoked once per drain in ModeBlocking, after all
	// currently-queued events have been handled — the hook the IO layer
	// uses to submit accumulated IOs once per wakeup.
	CommitBatch func()
	// PollCompletions is invoked once per iteration in ModePolling, after
	// up to batchSize events have been handled — the hook used to poll an
	// IO completion source that has no event-queue presence of its own.
	PollCompletions func()
}

// Executor is a single-threaded cooperative event executor: one worker
// goroutine, one bounded queue, no two handlers run concurrently, and
// handlers must not block (blocking calls cross the boundary via
// SyncInvoke).
type Executor struct {
	cfg   Config
	queue Queue

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	started   bool

	stats struct {
		busy atomic.Int64
		idle atomic.Int64
	}
}

// New constructs an Executor without starting its worker goroutine.
func New(cfg Config) *Executor {
	var q Queue
	switch cfg.Mode {
	case ModePolling:
		q = NewLockFreeQueue(cfg.QueueDepth)
	default:
		q = NewChanQueue(cfg.QueueDepth)
	}
	return &Executor{cfg: cfg, queue: q, done: make(chan struct{})}
}

// PostEvent enqueues ev for the worker goroutine. Non-blocking; returns
// ErrQueueFull under backpressure.
func (e *Executor) PostEvent(ev Event) error {
	return e.queue.PostEvent(ev)
}

// Start launches the worker goroutine. Safe to call once; subsequent
// calls are no-ops.
func (e *Executor) Start() {
	e.startOnce.Do(func() {
		e.started = true
		go e.run()
	})
}

// Stop posts EvtThreadExit and waits for the worker goroutine to return.
// Idempotent, and safe to call even if Start was never called or failed.
func (e *Executor) Stop() {
	e.stopOnce.Do(func() {
		if !e.started {
			return
		}
		_ = e.queue.PostEvent(Event{Type: EvtThreadExit})
		<-e.done
	})
}

// Stats returns a snapshot of cumulative busy/idle duration.
func (e *Executor) Stats() Stats {
	return Stats{BusyNs: e.stats.busy.Load(), IdleNs: e.stats.idle.Load()}
}

func (e *Executor) run() {
	defer close(e.done)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	setThreadName(e.cfg.Name)
	elevatePriorityBestEffort()

	switch e.cfg.Mode {
	case ModePolling:
		e.runPolling()
	default:
		e.runBlocking()
	}
}

func (e *Executor) runBlocking() {
	last := time.Now()
	for {
		ev, ok := e.queue.GetEvent()
		now := time.Now()
		e.stats.idle.Add(now.Sub(last).Nanoseconds())
		if !ok {
			return
		}
		// First event of the batch is already in hand; drain the rest
		// without blocking, then commit once for the whole batch.
		for {
			if e.dispatch(ev) {
				return // EvtThreadExit
			}
			var drained bool
			ev, drained = e.queue.TryDequeue()
			if !drained {
				break
			}
		}
		if e.cfg.CommitBatch != nil {
			e.cfg.CommitBatch()
		}
		next := time.Now()
		e.stats.busy.Add(next.Sub(now).Nanoseconds())
		last = next
	}
}

func (e *Executor) runPolling() {
	last := time.Now()
	for {
		processed := 0
		for i := 0; i < batchSize; i++ {
			ev, ok := e.queue.TryDequeue()
			if !ok {
				break
			}
			processed++
			if e.dispatch(ev) {
				return // EvtThreadExit
			}
		}
		if e.cfg.PollCompletions != nil {
			e.cfg.PollCompletions()
		}
		now := time.Now()
		if processed > 0 {
			e.stats.busy.Add(now.Sub(last).Nanoseconds())
		} else {
			e.stats.idle.Add(now.Sub(last).Nanoseconds())
		}
		last = now
	}
}

// dispatch handles a single event, returning true iff the worker should
// exit (EvtThreadExit).
func (e *Executor) dispatch(ev Event) (exit bool) {
	switch ev.Type {
	case EvtSyncInvoke:
		arg, ok := ev.ArgP.(*SyncInvokeArg)
		if !ok || arg == nil {
			return false
		}
		arg.Result = arg.Func()
		close(arg.Done)
		return false
	case EvtThreadExit:
		return true
	default:
		if e.cfg.Handler != nil {
			e.cfg.Handler(ev.Type, ev.ArgI, ev.ArgP, ev.ArgQ)
		}
		return false
	}
}

// SyncInvoke posts an EvtSyncInvoke event carrying fn and blocks the
// calling goroutine until the executor has run it, returning fn's
// result. This is the only sanctioned way for an external caller to run
// code on the executor and observe its return value.
func (e *Executor) SyncInvoke(fn func() int) (int, error) {
	arg := &SyncInvokeArg{Func: fn, Done: make(chan struct{})}
	if err := e.queue.PostEvent(Event{Type: EvtSyncInvoke, ArgP: arg}); err != nil {
		return 0, err
	}
	<-arg.Done
	return arg.Result, nil
}
