package buffer

import (
	"errors"
)

var (
	ErrFixedSize = errors.New("buffer: resizing not supported")

	_ = (Buffer)((*Static)(nil))
)

// Static wraps storage the caller owns, such as a byte slice into a
// loaded image. The buffer does not take ownership and cannot be
// resized.
type Static struct {
	data     []byte
	readOnly bool
}

// NewStatic returns a buffer reading and writing through data.
func NewStatic(data []byte) *Static {
	return &Static{data: data}
}

// NewStaticReadOnly returns a buffer reading through data whose
// writes report zero transferred.
func NewStaticReadOnly(data []byte) *Static {
	return &Static{data: data, readOnly: true}
}

func (b *Static) Available(off uint64) uint64 {
	if off >= uint64(len(b.data)) {
		return 0
	}
	return uint64(len(b.data)) - off
}

func (b *Static) Read(p []byte, off uint64) int {
	n := clampLen(uint64(len(b.data)), off, len(p))
	copy(p[:n], b.data[off:])
	return n
}

func (b *Static) Write(p []byte, off uint64) int {
	if b.readOnly {
		return 0
	}
	n := clampLen(uint64(len(b.data)), off, len(p))
	copy(b.data[off:], p[:n])
	return n
}

func (b *Static) Resize(size uint64) error {
	if size != uint64(len(b.data)) {
		return ErrFixedSize
	}
	return nil
}

func (b *Static) Size() uint64 {
	return uint64(len(b.data))
}
