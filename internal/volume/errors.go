package volume

import "errors"

var (
	// errClosed is returned by Submit once the volume has been closed.
	errClosed = errors.New("volume: closed")
	// errOutOfRange is returned when an IO falls outside the volume's
	// addressable size.
	errOutOfRange = errors.New("volume: offset out of range")
)
