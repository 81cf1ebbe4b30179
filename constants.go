package aof

// Layout constants fixed by the on-device AoF format (§3).
const (
	// SectorSize is the device sector unit: all submissions are
	// sector-aligned.
	SectorSize = 4096
	// HeaderSize is the reserved header region at the start of the
	// volume; file data begins at device offset HeaderSize.
	HeaderSize = 4096
	// SegmentBoundary is the device unit no single IO may cross.
	SegmentBoundary = 65536
	// ReadBufSize is the scratch buffer used to materialise the
	// unaligned head and tail sectors of a read.
	ReadBufSize = 2 * SectorSize

	// HeaderMagic identifies a valid AoF header.
	HeaderMagic uint32 = 0x466F4150
	// HeaderVersion is the on-device header format version this client
	// writes and expects to read.
	HeaderVersion uint32 = 0x00010000
)

// Defaults for configurable parameters (§4.4, §5).
const (
	// DefaultAppendBufSize is the default append-buffer size B: must
	// stay a multiple of SectorSize.
	DefaultAppendBufSize = 8 << 20 // 8 MiB
	// DefaultQueueDepth is the default executor event-queue capacity.
	DefaultQueueDepth = 1024
	// DefaultInFlightWindow is the bounded in-flight IO window (the
	// counting semaphore's initial value) per append.flush/read call.
	DefaultInFlightWindow = 24
	// DefaultReplicaCount is the default replica count requested at
	// AoF creation.
	DefaultReplicaCount = 3
	// DefaultAofSizeBytes is the default volume size requested at AoF
	// creation (128 GiB).
	DefaultAofSizeBytes = 128 << 30
	// LibraryVersion is this client's version, checked against the
	// caller-supplied version on Open.
	LibraryVersion = 1
)
