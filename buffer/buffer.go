// Package buffer provides the storage objects an address map binds
// segments to: owned memory, caller-owned memory, memory-mapped files,
// lazily-allocated sparse storage, and data-less placeholders.
package buffer

// Buffer is an addressable store of bytes with bounded, possibly
// short, read/write semantics. Reads and writes report the count
// actually transferred and never return an error; a count smaller
// than len(p) signals the buffer's own end, and a zero count from
// Write signals a buffer that refuses mutation.
//
// Buffers are shared by reference: a buffer may back any number of
// segments across any number of address maps. Implementations must be
// pointer types, since address maps compare buffers by identity.
// Buffers perform no locking; callers serialize concurrent access.
type Buffer interface {
	// Available returns the number of bytes accessible starting at
	// off, before the buffer's own end.
	Available(off uint64) uint64

	// Read copies up to len(p) bytes starting at off into p and
	// returns the count copied.
	Read(p []byte, off uint64) int

	// Write copies up to len(p) bytes from p starting at off and
	// returns the count copied.
	Write(p []byte, off uint64) int

	// Resize adjusts the logical size. Buffers backed by fixed
	// external mappings reject resizing to a different size.
	Resize(size uint64) error

	// Size returns the current logical size in bytes.
	Size() uint64
}

// Holey reports the extents of a buffer that actually hold data.
type Holey interface {
	// NextData returns the offset of the next byte holding data at or
	// after off. ok is false when no data follows.
	NextData(off uint64) (next uint64, ok bool)

	// NextHole returns the offset of the next byte not holding data at
	// or after off. The buffer's end is always a hole.
	NextHole(off uint64) uint64
}

func clampLen(size, off uint64, n int) int {
	if off >= size {
		return 0
	}
	if avail := size - off; avail < uint64(n) {
		return int(avail)
	}
	return n
}
