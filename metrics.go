package aof

import (
	"sync/atomic"
	"time"
)

// Metrics tracks the operational statistics of one open AoF: the usual
// per-call counters (Append/Read/Sync), plus three things specific to
// this client's actual mechanics rather than a generic IO counter set:
// how saturated the bounded in-flight IO window (§4.5/§4.6) gets, how
// many device writes and how much padding each flush's segment-split
// produces, and how often Read is satisfied from the append buffer
// alone versus having to touch the volume.
type Metrics struct {
	Append OpMetrics
	Read   OpMetrics
	Sync   OpMetrics

	Window     WindowMetrics
	Flush      FlushMetrics
	ReadFanout ReadFanoutMetrics

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance, starting its uptime clock.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordAppend records an Append call.
func (m *Metrics) RecordAppend(bytes uint64, latencyNs uint64, success bool) {
	m.Append.record(bytes, latencyNs, success)
}

// RecordRead records a Read call.
func (m *Metrics) RecordRead(bytes uint64, latencyNs uint64, success bool) {
	m.Read.record(bytes, latencyNs, success)
}

// RecordSync records a Sync call (a flush carries no byte count of its
// own — the bytes were already attributed to the Appends that filled
// the buffer).
func (m *Metrics) RecordSync(latencyNs uint64, success bool) {
	m.Sync.record(0, latencyNs, success)
}

// Stop marks the AoF as closed.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// Reset zeroes every counter and restarts the uptime clock.
func (m *Metrics) Reset() {
	m.Append.reset()
	m.Read.reset()
	m.Sync.reset()
	m.Window.reset()
	m.Flush.reset()
	m.ReadFanout.reset()
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// MetricsSnapshot is a point-in-time, race-free copy of Metrics.
type MetricsSnapshot struct {
	Append OpSnapshot
	Read   OpSnapshot
	Sync   OpSnapshot

	Window     WindowSnapshot
	Flush      FlushSnapshot
	ReadFanout ReadFanoutSnapshot

	UptimeNs   uint64
	TotalOps   uint64
	TotalBytes uint64
	ErrorRate  float64
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	var uptimeNs uint64
	if stopTime > 0 {
		uptimeNs = uint64(stopTime - startTime)
	} else {
		uptimeNs = uint64(time.Now().UnixNano() - startTime)
	}
	uptimeSeconds := float64(uptimeNs) / 1e9

	snap := MetricsSnapshot{
		Append:     m.Append.snapshot(uptimeSeconds),
		Read:       m.Read.snapshot(uptimeSeconds),
		Sync:       m.Sync.snapshot(uptimeSeconds),
		Window:     m.Window.snapshot(),
		Flush:      m.Flush.snapshot(),
		ReadFanout: m.ReadFanout.snapshot(),
		UptimeNs:   uptimeNs,
	}
	snap.TotalOps = snap.Append.Count + snap.Read.Count + snap.Sync.Count
	snap.TotalBytes = snap.Append.Bytes + snap.Read.Bytes
	totalErrors := snap.Append.Errors + snap.Read.Errors + snap.Sync.Errors
	if snap.TotalOps > 0 {
		snap.ErrorRate = float64(totalErrors) / float64(snap.TotalOps) * 100.0
	}
	return snap
}

// OpMetrics accumulates count/bytes/errors/latency for one call kind
// (Append, Read, or Sync).
type OpMetrics struct {
	Count        atomic.Uint64
	Bytes        atomic.Uint64
	Errors       atomic.Uint64
	LatencySumNs atomic.Uint64
	LatencyMaxNs atomic.Uint64
}

func (o *OpMetrics) record(bytes uint64, latencyNs uint64, success bool) {
	o.Count.Add(1)
	if success {
		o.Bytes.Add(bytes)
	} else {
		o.Errors.Add(1)
	}
	o.LatencySumNs.Add(latencyNs)
	casMaxUint64(&o.LatencyMaxNs, latencyNs)
}

func (o *OpMetrics) reset() {
	o.Count.Store(0)
	o.Bytes.Store(0)
	o.Errors.Store(0)
	o.LatencySumNs.Store(0)
	o.LatencyMaxNs.Store(0)
}

// OpSnapshot is a point-in-time copy of an OpMetrics.
type OpSnapshot struct {
	Count        uint64
	Bytes        uint64
	Errors       uint64
	AvgLatencyNs uint64
	MaxLatencyNs uint64
	IOPS         float64
	Bandwidth    float64
	ErrorRate    float64
}

func (o *OpMetrics) snapshot(uptimeSeconds float64) OpSnapshot {
	count := o.Count.Load()
	bytes := o.Bytes.Load()
	errs := o.Errors.Load()

	snap := OpSnapshot{
		Count:        count,
		Bytes:        bytes,
		Errors:       errs,
		MaxLatencyNs: o.LatencyMaxNs.Load(),
	}
	if count > 0 {
		snap.AvgLatencyNs = o.LatencySumNs.Load() / count
		snap.ErrorRate = float64(errs) / float64(count) * 100.0
	}
	if uptimeSeconds > 0 {
		snap.IOPS = float64(count) / uptimeSeconds
		snap.Bandwidth = float64(bytes) / uptimeSeconds
	}
	return snap
}

// WindowMetrics tracks how saturated the bounded in-flight IO window
// (ioWindow, §4.5/§4.6) gets: most acquisitions should find a slot free
// immediately, since Window depth (24 by default) is sized to keep the
// volume busy without the caller queuing behind it — a rising Waited
// rate or WaitNs means the window, not the volume, is the bottleneck.
type WindowMetrics struct {
	Acquired atomic.Uint64 // total slot acquisitions
	Waited   atomic.Uint64 // acquisitions that found no slot immediately free
	WaitNs   atomic.Uint64 // cumulative time spent blocked waiting for a slot
	Peak     atomic.Uint32 // peak concurrently in-flight IOs observed

	current atomic.Int32
}

func (w *WindowMetrics) recordAcquire(waitNs uint64) {
	w.Acquired.Add(1)
	if waitNs > 0 {
		w.Waited.Add(1)
		w.WaitNs.Add(waitNs)
	}
	cur := w.current.Add(1)
	for {
		peak := w.Peak.Load()
		if uint32(cur) <= peak {
			break
		}
		if w.Peak.CompareAndSwap(peak, uint32(cur)) {
			break
		}
	}
}

func (w *WindowMetrics) recordRelease() {
	w.current.Add(-1)
}

func (w *WindowMetrics) reset() {
	w.Acquired.Store(0)
	w.Waited.Store(0)
	w.WaitNs.Store(0)
	w.Peak.Store(0)
	w.current.Store(0)
}

// WindowSnapshot is a point-in-time copy of a WindowMetrics.
type WindowSnapshot struct {
	Acquired  uint64
	Waited    uint64
	AvgWaitNs uint64
	Peak      uint32
	WaitRate  float64 // percentage of acquisitions that had to block
}

func (w *WindowMetrics) snapshot() WindowSnapshot {
	acquired := w.Acquired.Load()
	waited := w.Waited.Load()

	snap := WindowSnapshot{Acquired: acquired, Waited: waited, Peak: w.Peak.Load()}
	if waited > 0 {
		snap.AvgWaitNs = w.WaitNs.Load() / waited
	}
	if acquired > 0 {
		snap.WaitRate = float64(waited) / float64(acquired) * 100.0
	}
	return snap
}

// FlushMetrics tracks the flush-split algorithm's own fan-out: one
// Sync call can turn into several device writes once the 64 KiB segment
// boundary and 4 KiB sector alignment of §4.5 are accounted for.
type FlushMetrics struct {
	Flushes      atomic.Uint64 // total Sync/flush invocations
	Writes       atomic.Uint64 // total device write submissions across all flushes
	PaddingBytes atomic.Uint64 // cumulative zero-padding bytes written for sector alignment
	ResidueBytes atomic.Uint64 // most recent unaligned tail residue carried into the next append
}

func (f *FlushMetrics) recordWrite(paddingBytes int64) {
	f.Writes.Add(1)
	if paddingBytes > 0 {
		f.PaddingBytes.Add(uint64(paddingBytes))
	}
}

func (f *FlushMetrics) recordFlush(residue int64) {
	f.Flushes.Add(1)
	f.ResidueBytes.Store(uint64(residue))
}

func (f *FlushMetrics) reset() {
	f.Flushes.Store(0)
	f.Writes.Store(0)
	f.PaddingBytes.Store(0)
	f.ResidueBytes.Store(0)
}

// FlushSnapshot is a point-in-time copy of a FlushMetrics.
type FlushSnapshot struct {
	Flushes           uint64
	Writes            uint64
	AvgWritesPerFlush float64
	PaddingBytes      uint64
	ResidueBytes      uint64
}

func (f *FlushMetrics) snapshot() FlushSnapshot {
	flushes := f.Flushes.Load()
	writes := f.Writes.Load()

	snap := FlushSnapshot{
		Flushes:      flushes,
		Writes:       writes,
		PaddingBytes: f.PaddingBytes.Load(),
		ResidueBytes: f.ResidueBytes.Load(),
	}
	if flushes > 0 {
		snap.AvgWritesPerFlush = float64(writes) / float64(flushes)
	}
	return snap
}

// ReadFanoutMetrics tracks how often Read is satisfied entirely from
// the still-buffered append tail versus having to reach the volume, and
// how often reaching the volume required an extra unaligned head/tail
// scratch-sector read (§4.6).
type ReadFanoutMetrics struct {
	BufferHits       atomic.Uint64 // reads served entirely from the append buffer, no volume IO
	VolumeReads      atomic.Uint64 // reads that touched the volume
	RealignmentReads atomic.Uint64 // extra head/tail scratch-sector reads issued for unaligned ranges
}

func (r *ReadFanoutMetrics) recordBufferHit() {
	r.BufferHits.Add(1)
}

func (r *ReadFanoutMetrics) recordVolumeRead(realignments uint64) {
	r.VolumeReads.Add(1)
	if realignments > 0 {
		r.RealignmentReads.Add(realignments)
	}
}

func (r *ReadFanoutMetrics) reset() {
	r.BufferHits.Store(0)
	r.VolumeReads.Store(0)
	r.RealignmentReads.Store(0)
}

// ReadFanoutSnapshot is a point-in-time copy of a ReadFanoutMetrics.
type ReadFanoutSnapshot struct {
	BufferHits       uint64
	VolumeReads      uint64
	RealignmentReads uint64
	BufferHitRate    float64 // percentage of reads that never touched the volume
}

func (r *ReadFanoutMetrics) snapshot() ReadFanoutSnapshot {
	hits := r.BufferHits.Load()
	vol := r.VolumeReads.Load()

	snap := ReadFanoutSnapshot{BufferHits: hits, VolumeReads: vol, RealignmentReads: r.RealignmentReads.Load()}
	if total := hits + vol; total > 0 {
		snap.BufferHitRate = float64(hits) / float64(total) * 100.0
	}
	return snap
}

// casMaxUint64 stores val into addr if it's larger than the current
// value, retrying under concurrent writers.
func casMaxUint64(addr *atomic.Uint64, val uint64) {
	for {
		cur := addr.Load()
		if val <= cur {
			return
		}
		if addr.CompareAndSwap(cur, val) {
			return
		}
	}
}

// Observer allows pluggable collection of the same events Metrics
// records, e.g. to bridge into an external monitoring system instead of
// (or alongside) accumulating into a Metrics instance.
type Observer interface {
	ObserveAppend(bytes uint64, latencyNs uint64, success bool)
	ObserveRead(bytes uint64, latencyNs uint64, success bool)
	ObserveSync(latencyNs uint64, success bool)
	ObserveWindowWait(waitNs uint64)
}

// NoOpObserver is a no-op implementation of Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveAppend(uint64, uint64, bool) {}
func (NoOpObserver) ObserveRead(uint64, uint64, bool)   {}
func (NoOpObserver) ObserveSync(uint64, bool)           {}
func (NoOpObserver) ObserveWindowWait(uint64)           {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveAppend(bytes uint64, latencyNs uint64, success bool) {
	o.metrics.RecordAppend(bytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveRead(bytes uint64, latencyNs uint64, success bool) {
	o.metrics.RecordRead(bytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveSync(latencyNs uint64, success bool) {
	o.metrics.RecordSync(latencyNs, success)
}

func (o *MetricsObserver) ObserveWindowWait(waitNs uint64) {
	o.metrics.Window.recordAcquire(waitNs)
}

// Compile-time interface checks.
var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
