// Package aof implements the PureFlash append-only file client: create
// and open an AoF container backed by a Volume, append to it, read it
// back, and flush it durably — §4.4-§4.6 of the AoF client layer.
package aof

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pureflash/aofclient/internal/conductor"
	"github.com/pureflash/aofclient/internal/logging"
	"github.com/pureflash/aofclient/internal/syncio"
	"github.com/pureflash/aofclient/internal/volume"
)

// VolumeOpener opens the underlying Volume for name at the given
// snapshot (HEAD if snapName is empty). Actual cluster placement and
// transport live behind this function, outside this client's scope.
type VolumeOpener func(ctx context.Context, name string, snapName string) (volume.Volume, error)

// OpenFlags mirrors the POSIX-ish flags Open accepts.
type OpenFlags int

const (
	// OpenCreate requests that Open create the AoF if the conductor
	// reports it does not already exist.
	OpenCreate OpenFlags = 1 << iota
)

// AoF is an open append-only file: a 4 KiB header plus a buffered tail,
// both backed by a Volume. The writer side (Append/Sync) is expected to
// be driven from a single caller goroutine (§4.5's "logically
// single-threaded per AoF" precondition); Read may run concurrently with
// it and is protected by an internal lock rather than relying on that
// precondition for safety.
type AoF struct {
	name   string
	vol    volume.Volume
	cfg    *Config
	logger *logging.Logger
	metric *Metrics

	mu        sync.RWMutex
	hdr       header
	length    int64
	tail      int64
	appendBuf []byte
}

// Create provisions a new AoF-backed volume via the conductor and writes
// its initial zeroed header (§4.4 Create). It does not return an open
// AoF: call Open afterward.
func Create(ctx context.Context, client *conductor.Client, cfg *Config, opener VolumeOpener, name string, sizeBytes int64, repCnt int) error {
	if repCnt <= 0 {
		repCnt = cfg.DefaultReplicaCount
	}
	if sizeBytes <= 0 {
		sizeBytes = cfg.DefaultAofSizeBytes
	}
	if _, err := client.CreateAof(ctx, name, sizeBytes, repCnt); err != nil {
		return fmt.Errorf("aof: create %s: %w", name, err)
	}

	vol, err := opener(ctx, name, "")
	if err != nil {
		return NewVolumeError("Create", 0, ErrCodeVolumeOpenFailed, err.Error())
	}
	defer vol.Close()

	hdrBuf := marshalHeader(header{Magic: HeaderMagic, Version: HeaderVersion, Length: 0})
	if _, err := syncio.Do(ctx, vol, hdrBuf, HeaderSize, 0, volume.Write); err != nil {
		return WrapError("Create", err)
	}
	return nil
}

// Open opens an existing (or, with OpenCreate, newly created) AoF
// (§4.4 Open). callerLibVersion must match LibraryVersion.
func Open(ctx context.Context, client *conductor.Client, cfg *Config, opener VolumeOpener, name string, snapName string, flags OpenFlags, callerLibVersion int) (*AoF, error) {
	if callerLibVersion != cfg.LibraryVersion {
		return nil, NewError("Open", ErrCodeVersionMismatch, fmt.Sprintf("caller library version %d does not match %d", callerLibVersion, cfg.LibraryVersion))
	}

	_, err := client.CheckVolumeExists(ctx, name)
	if err != nil {
		if _, ok := err.(*conductor.Error); !ok {
			return nil, WrapError("Open", err)
		}
		if flags&OpenCreate == 0 {
			return nil, NewVolumeError("Open", 0, ErrCodeConductorFailure, err.Error())
		}
		if err := Create(ctx, client, cfg, opener, name, 0, cfg.DefaultReplicaCount); err != nil {
			return nil, err
		}
	}

	vol, err := opener(ctx, name, snapName)
	if err != nil {
		return nil, NewVolumeError("Open", 0, ErrCodeVolumeOpenFailed, err.Error())
	}

	a := &AoF{
		name:      name,
		vol:       vol,
		cfg:       cfg,
		logger:    logging.Default().WithVolume(vol.ID()),
		metric:    NewMetrics(),
		appendBuf: make([]byte, cfg.AppendBufSize),
	}

	hdrBuf := make([]byte, HeaderSize)
	if _, err := syncio.Do(ctx, vol, hdrBuf, HeaderSize, 0, volume.Read); err != nil {
		vol.Close()
		return nil, NewIOError("Open", vol.ID(), 0, ErrCodeReadIOFailed, err.Error())
	}
	hdr := unmarshalHeader(hdrBuf)
	if !hdr.valid() {
		vol.Close()
		return nil, NewVolumeError("Open", vol.ID(), ErrCodeBadMagic, "invalid AoF header magic/version")
	}
	a.hdr = hdr
	a.length = int64(hdr.Length)

	if a.length%SectorSize != 0 {
		tail := a.length % SectorSize
		tailDevOff := (a.length - tail) + HeaderSize
		if _, err := syncio.Do(ctx, vol, a.appendBuf[:SectorSize], int(SectorSize), tailDevOff, volume.Read); err != nil {
			vol.Close()
			return nil, NewIOError("Open", vol.ID(), tailDevOff, ErrCodeReadIOFailed, err.Error())
		}
		a.tail = tail
	}

	return a, nil
}

// Append copies buf into the append buffer, flushing whenever the
// buffer fills (§4.5). It always returns len(buf) on success: a partial
// write is impossible short of a fatal flush failure.
func (a *AoF) Append(ctx context.Context, buf []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	remaining := len(buf)
	srcOff := 0
	for remaining > 0 {
		room := a.cfg.AppendBufSize - int(a.tail)
		seg := remaining
		if seg > room {
			seg = room
		}
		copy(a.appendBuf[a.tail:a.tail+int64(seg)], buf[srcOff:srcOff+seg])
		a.tail += int64(seg)
		a.length += int64(seg)
		srcOff += seg
		remaining -= seg
		if int(a.tail) == a.cfg.AppendBufSize {
			a.flushLocked(ctx)
		}
	}
	a.metric.RecordAppend(uint64(len(buf)), 0, true)
	return len(buf), nil
}

// Sync flushes the append buffer and header to the volume, regardless
// of whether the buffer is full (§4.5, invoked explicitly or by Close).
func (a *AoF) Sync(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flushLocked(ctx)
	return nil
}

// flushLocked implements the flush-split algorithm of §4.5. Caller must
// hold a.mu for writing. A durable write failure is fatal per spec: it
// is logged and the process aborts by panicking with a structured
// *Error, matching "log and abort" literally — there is no partial
// durability state this layer can return to its caller.
func (a *AoF) flushLocked(ctx context.Context) {
	curVol := (a.length - a.tail) + HeaderSize
	bufOff := int64(0)
	remaining := a.tail

	w := newIOWindow(a.cfg.InFlightWindow, a.metric)
	for remaining > 0 {
		nextBoundary := roundUp(curVol+1, SegmentBoundary)
		ioSize := remaining
		if room := nextBoundary - curVol; ioSize > room {
			ioSize = room
		}
		writeSize := ioSize
		if ioSize%SectorSize != 0 {
			writeSize = roundUp(ioSize, SectorSize)
			for i := bufOff + ioSize; i < bufOff+writeSize; i++ {
				a.appendBuf[i] = 0
			}
		}
		if err := w.submit(ctx, a.vol, a.appendBuf[bufOff:bufOff+writeSize], int(writeSize), curVol, volume.Write); err != nil {
			a.fatalFlush(err)
		}
		a.metric.Flush.recordWrite(writeSize - ioSize)
		curVol += ioSize
		bufOff += ioSize
		remaining -= ioSize
	}
	if err := w.wait(); err != nil {
		a.fatalFlush(err)
	}

	a.hdr.Length = uint64(a.length)
	hdrBuf := marshalHeader(a.hdr)
	if _, err := syncio.Do(ctx, a.vol, hdrBuf, HeaderSize, 0, volume.Write); err != nil {
		a.fatalFlush(err)
	}

	residue := a.tail % SectorSize
	if residue != 0 {
		aligned := a.tail - residue
		copy(a.appendBuf[0:residue], a.appendBuf[aligned:a.tail])
	}
	a.tail = residue

	a.metric.Flush.recordFlush(residue)
	a.metric.RecordSync(0, true)
}

func (a *AoF) fatalFlush(err error) {
	e := WrapError("Sync", err)
	e.Code = ErrCodeDurableWriteFailed
	a.metric.RecordSync(0, false)
	a.logger.WithError(e).Error("durable write failed, aborting per append durability contract")
	panic(e)
}

// Read fills buf from offset, clamped to the AoF's current length, and
// may be called concurrently with Append/Sync (§4.6). Unlike a flush
// failure, a read failure is recoverable: it is returned as an error,
// never fatal.
func (a *AoF) Read(ctx context.Context, buf []byte, offset int64) (int, error) {
	a.mu.RLock()
	length := a.length
	tail := a.tail

	n := int64(len(buf))
	if offset+n > length {
		n = length - offset
	}
	if n <= 0 {
		a.mu.RUnlock()
		return 0, nil
	}

	bufferedStart := length - tail
	var inBuf int64
	if offset+n > bufferedStart {
		inBuf = n
		if rem := offset + n - bufferedStart; rem < inBuf {
			inBuf = rem
		}
		inBufSrc := int64(0)
		if n == inBuf {
			inBufSrc = offset + n - bufferedStart - inBuf
		}
		copy(buf[n-inBuf:n], a.appendBuf[inBufSrc:inBufSrc+inBuf])
	}
	a.mu.RUnlock()

	if n == inBuf {
		a.metric.RecordRead(uint64(n), 0, true)
		a.metric.ReadFanout.recordBufferHit()
		return int(n), nil
	}

	volOff := offset + HeaderSize
	volEnd := volOff + (n - inBuf)
	alignedOff := roundDown(volOff, SectorSize)
	alignedEnd := roundUp(volEnd, SectorSize)

	readBuf := make([]byte, ReadBufSize)
	var copyHead, copyTail bool
	w := newIOWindow(a.cfg.InFlightWindow, a.metric)

	if volOff%SectorSize != 0 {
		if err := w.submit(ctx, a.vol, readBuf[0:SectorSize], SectorSize, alignedOff, volume.Read); err != nil {
			a.metric.RecordRead(0, 0, false)
			return 0, NewIOError("Read", a.vol.ID(), alignedOff, ErrCodeReadIOFailed, err.Error())
		}
		alignedOff += SectorSize
		copyHead = true
	}
	if volEnd%SectorSize != 0 && (roundDown(volEnd, SectorSize) != roundDown(volOff, SectorSize) || volOff%SectorSize == 0) {
		tailOff := roundDown(volEnd, SectorSize)
		if err := w.submit(ctx, a.vol, readBuf[SectorSize:2*SectorSize], SectorSize, tailOff, volume.Read); err != nil {
			a.metric.RecordRead(0, 0, false)
			return 0, NewIOError("Read", a.vol.ID(), tailOff, ErrCodeReadIOFailed, err.Error())
		}
		alignedEnd -= SectorSize
		copyTail = true
	}

	// The user buffer index of device offset d is d - volOff.
	bufOff := alignedOff - volOff
	for alignedOff < alignedEnd {
		nextBoundary := roundUp(alignedOff+1, SegmentBoundary)
		ioSize := alignedEnd
		if nextBoundary < ioSize {
			ioSize = nextBoundary
		}
		ioSize -= alignedOff
		if err := w.submit(ctx, a.vol, buf[bufOff:bufOff+ioSize], int(ioSize), alignedOff, volume.Read); err != nil {
			a.metric.RecordRead(0, 0, false)
			return 0, NewIOError("Read", a.vol.ID(), alignedOff, ErrCodeReadIOFailed, err.Error())
		}
		alignedOff += ioSize
		bufOff += ioSize
	}

	if err := w.wait(); err != nil {
		a.metric.RecordRead(0, 0, false)
		return 0, NewIOError("Read", a.vol.ID(), offset, ErrCodeReadIOFailed, err.Error())
	}

	if copyHead {
		headOff := volOff & (SectorSize - 1)
		want := SectorSize - headOff
		if want > n {
			want = n
		}
		copy(buf[0:want], readBuf[headOff:headOff+want])
	}
	if copyTail {
		devLen := n - inBuf
		tailLen := volEnd & (SectorSize - 1)
		copy(buf[devLen-tailLen:devLen], readBuf[SectorSize:SectorSize+tailLen])
	}

	var realignments uint64
	if copyHead {
		realignments++
	}
	if copyTail {
		realignments++
	}
	a.metric.RecordRead(uint64(n), 0, true)
	a.metric.ReadFanout.recordVolumeRead(realignments)
	return int(n), nil
}

// Close flushes any buffered data and closes the underlying volume
// (§4.4 Close, §10's supplemented destructor semantics).
func (a *AoF) Close(ctx context.Context) error {
	if err := a.Sync(ctx); err != nil {
		return err
	}
	a.metric.Stop()
	return a.vol.Close()
}

// Metrics returns the AoF's metrics instance.
func (a *AoF) Metrics() *Metrics { return a.metric }

// Length returns the AoF's current logical length.
func (a *AoF) Length() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.length
}

func roundUp(x, align int64) int64   { return (x + align - 1) &^ (align - 1) }
func roundDown(x, align int64) int64 { return x &^ (align - 1) }

// ioWindow bounds in-flight submissions against a Volume to at most
// `window` outstanding IOs, matching the counting semaphore of §4.5/§4.6.
// The first failing completion wins; later failures are discarded. When
// metrics is non-nil, every acquisition that has to wait for a free slot
// — i.e. the window is saturated — is timed and recorded, and the peak
// concurrent occupancy is tracked.
type ioWindow struct {
	sem     chan struct{}
	wg      sync.WaitGroup
	metrics *Metrics

	mu  sync.Mutex
	err error
}

func newIOWindow(window int, metrics *Metrics) *ioWindow {
	w := &ioWindow{sem: make(chan struct{}, window), metrics: metrics}
	for i := 0; i < window; i++ {
		w.sem <- struct{}{}
	}
	return w
}

// acquire takes a window slot, recording a wait only when one wasn't
// immediately available.
func (w *ioWindow) acquire(ctx context.Context) error {
	select {
	case <-w.sem:
		if w.metrics != nil {
			w.metrics.Window.recordAcquire(0)
		}
		return nil
	default:
	}

	start := time.Now()
	select {
	case <-w.sem:
		if w.metrics != nil {
			w.metrics.Window.recordAcquire(uint64(time.Since(start)))
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *ioWindow) release() {
	w.sem <- struct{}{}
	if w.metrics != nil {
		w.metrics.Window.recordRelease()
	}
}

// submit acquires a window slot, submits the IO, and releases the slot
// from the completion callback. A submission rejected outright releases
// its slot immediately and returns the error to the caller synchronously.
func (w *ioWindow) submit(ctx context.Context, v volume.Volume, buf []byte, count int, offset int64, dir volume.Direction) error {
	if err := w.acquire(ctx); err != nil {
		return err
	}

	w.wg.Add(1)
	err := v.Submit(ctx, buf, count, offset, dir, func(_ any, status int) {
		defer w.wg.Done()
		defer w.release()
		if status != 0 {
			w.recordErr(fmt.Errorf("io failed at offset %d: status %d", offset, status))
		}
	}, nil)
	if err != nil {
		w.wg.Done()
		w.release()
		return err
	}
	return nil
}

func (w *ioWindow) recordErr(err error) {
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.mu.Unlock()
}

func (w *ioWindow) wait() error {
	w.wg.Wait()
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
