//go:build !linux

package volume

import (
	"context"
	"errors"
)

// UringVolume is unavailable outside Linux; io_uring is a Linux-only
// kernel facility. Use MemStore or SimVolume on other platforms.
type UringVolume struct{}

// UringVolumeConfig configures a UringVolume (Linux-only; see
// uring_linux.go).
type UringVolumeConfig struct {
	ID         uint64
	SnapSeq    uint32
	Name       string
	Path       string
	Size       int64
	QueueDepth uint32
}

// ErrUringUnsupported is returned by OpenUringVolume on non-Linux
// platforms.
var ErrUringUnsupported = errors.New("volume: io_uring backend requires linux")

// OpenUringVolume always fails outside Linux.
func OpenUringVolume(cfg UringVolumeConfig) (*UringVolume, error) {
	return nil, ErrUringUnsupported
}

func (v *UringVolume) ID() uint64      { return 0 }
func (v *UringVolume) SnapSeq() uint32 { return 0 }
func (v *UringVolume) Name() string    { return "" }
func (v *UringVolume) Size() int64     { return 0 }

func (v *UringVolume) Submit(ctx context.Context, buf []byte, count int, devOffset int64, dir Direction, cbk Callback, arg any) error {
	return ErrUringUnsupported
}

func (v *UringVolume) Close() error { return nil }
