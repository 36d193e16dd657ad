package buffer

var _ = (Buffer)((*Allocating)(nil))

// Allocating is a buffer that owns its storage and may be resized at
// will.
type Allocating struct {
	data []byte
}

// NewAllocating returns a zero-filled buffer of the given size.
func NewAllocating(size uint64) *Allocating {
	return &Allocating{data: make([]byte, size)}
}

func (b *Allocating) Available(off uint64) uint64 {
	if off >= uint64(len(b.data)) {
		return 0
	}
	return uint64(len(b.data)) - off
}

func (b *Allocating) Read(p []byte, off uint64) int {
	n := clampLen(uint64(len(b.data)), off, len(p))
	copy(p[:n], b.data[off:])
	return n
}

func (b *Allocating) Write(p []byte, off uint64) int {
	n := clampLen(uint64(len(b.data)), off, len(p))
	copy(b.data[off:], p[:n])
	return n
}

func (b *Allocating) Resize(size uint64) error {
	if size <= uint64(cap(b.data)) {
		old := uint64(len(b.data))
		b.data = b.data[:size]
		// Zero any region re-exposed by growing into old capacity.
		for i := old; i < size; i++ {
			b.data[i] = 0
		}
		return nil
	}
	grown := make([]byte, size)
	copy(grown, b.data)
	b.data = grown
	return nil
}

func (b *Allocating) Size() uint64 {
	return uint64(len(b.data))
}

// Bytes returns the underlying storage. The slice is invalidated by
// Resize.
func (b *Allocating) Bytes() []byte {
	return b.data
}
