//go:build linux

package executor

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// maxThreadNameLen is Linux's TASK_COMM_LEN minus the NUL terminator.
const maxThreadNameLen = 15

// setThreadName applies name to the calling OS thread via PR_SET_NAME.
// Best effort: a failure here never aborts the executor.
func setThreadName(name string) {
	if name == "" {
		return
	}
	if len(name) > maxThreadNameLen {
		name = name[:maxThreadNameLen]
	}
	buf := make([]byte, len(name)+1)
	copy(buf, name)
	_, _, _ = unix.Syscall(unix.SYS_PRCTL, unix.PR_SET_NAME, uintptr(unsafe.Pointer(&buf[0])), 0)
}

// schedParam mirrors struct sched_param for the raw sched_setscheduler
// syscall (tid=0 targets the calling thread).
type schedParam struct {
	priority int32
}

// elevatePriorityBestEffort attempts to schedule the calling OS thread
// under SCHED_FIFO at a low real-time priority, matching the original's
// best-effort elevation of the event thread. Requires CAP_SYS_NICE; a
// permission failure is silently ignored, same as upstream.
func elevatePriorityBestEffort() {
	param := schedParam{priority: 1}
	_, _, _ = unix.Syscall(unix.SYS_SCHED_SETSCHEDULER, 0, unix.SCHED_FIFO, uintptr(unsafe.Pointer(&param)))
}
