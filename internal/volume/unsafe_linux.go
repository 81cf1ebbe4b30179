//go:build linux

package volume

import "unsafe"

// bufAddr returns buf's backing array address for handing to a raw
// io_uring SQE. Callers must keep buf alive until the matching
// completion fires.
func bufAddr(buf []byte) unsafe.Pointer {
	if len(buf) == 0 {
		return nil
	}
	return unsafe.Pointer(&buf[0])
}
