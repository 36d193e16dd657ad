package buffer

var _ = (Buffer)((*Null)(nil))

// Null is a buffer with no data. It reserves a region of the address
// space without storing anything: reads return zeros and writes
// report zero transferred, terminating any write that reaches it.
type Null struct {
	size uint64
}

// NewNull returns a data-less buffer acting as if it holds size bytes.
func NewNull(size uint64) *Null {
	return &Null{size: size}
}

func (b *Null) Available(off uint64) uint64 {
	if off >= b.size {
		return 0
	}
	return b.size - off
}

func (b *Null) Read(p []byte, off uint64) int {
	n := clampLen(b.size, off, len(p))
	clear(p[:n])
	return n
}

func (b *Null) Write(p []byte, off uint64) int {
	return 0
}

func (b *Null) Resize(size uint64) error {
	b.size = size
	return nil
}

func (b *Null) Size() uint64 {
	return b.size
}
