package aof

import "encoding/binary"

// header is the in-memory mirror of the 4 KiB on-device header sector
// (§4.4): magic, version, and the persisted file length. The remainder
// of the sector is reserved and always written as zero.
type header struct {
	Magic   uint32
	Version uint32
	Length  uint64
}

// marshalHeader renders h into a freshly zeroed HeaderSize buffer.
func marshalHeader(h header) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint64(buf[8:16], h.Length)
	return buf
}

// unmarshalHeader reads a header out of a HeaderSize-or-larger buffer.
func unmarshalHeader(buf []byte) header {
	return header{
		Magic:   binary.LittleEndian.Uint32(buf[0:4]),
		Version: binary.LittleEndian.Uint32(buf[4:8]),
		Length:  binary.LittleEndian.Uint64(buf[8:16]),
	}
}

// valid reports whether h carries the magic and version this client
// writes and expects to read.
func (h header) valid() bool {
	return h.Magic == HeaderMagic && h.Version == HeaderVersion
}
