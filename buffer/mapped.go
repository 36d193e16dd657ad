package buffer

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

var _ = (Buffer)((*Mapped)(nil))

// Mapped is a buffer backed by a memory-mapped file. The mapping is
// shared, so writes reach the underlying file. The mapping is fixed
// at the file's size at open time and cannot be resized.
type Mapped struct {
	path     string
	data     []byte
	readOnly bool
}

// OpenMapped maps the named file, which must exist. With readOnly
// set, writes report zero transferred.
func OpenMapped(path string, readOnly bool) (*Mapped, error) {
	openFlags := os.O_RDWR
	prot := unix.PROT_READ | unix.PROT_WRITE
	if readOnly {
		openFlags = os.O_RDONLY
		prot = unix.PROT_READ
	}
	f, err := os.OpenFile(path, openFlags, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()

	var data []byte
	if size > 0 {
		data, err = unix.Mmap(int(f.Fd()), 0, int(size), prot, unix.MAP_SHARED)
		if err != nil {
			return nil, fmt.Errorf("buffer: mmap %s: %w", path, err)
		}
	}
	return &Mapped{path: path, data: data, readOnly: readOnly}, nil
}

func (b *Mapped) Available(off uint64) uint64 {
	if off >= uint64(len(b.data)) {
		return 0
	}
	return uint64(len(b.data)) - off
}

func (b *Mapped) Read(p []byte, off uint64) int {
	n := clampLen(uint64(len(b.data)), off, len(p))
	copy(p[:n], b.data[off:])
	return n
}

func (b *Mapped) Write(p []byte, off uint64) int {
	if b.readOnly {
		return 0
	}
	n := clampLen(uint64(len(b.data)), off, len(p))
	copy(b.data[off:], p[:n])
	return n
}

func (b *Mapped) Resize(size uint64) error {
	if size != uint64(len(b.data)) {
		return ErrFixedSize
	}
	return nil
}

func (b *Mapped) Size() uint64 {
	return uint64(len(b.data))
}

func (b *Mapped) Path() string {
	return b.path
}

// Sync flushes modified pages to the underlying file.
func (b *Mapped) Sync() error {
	if len(b.data) == 0 {
		return nil
	}
	return unix.Msync(b.data, unix.MS_SYNC)
}

// Close unmaps the file. The buffer must not be used afterwards; any
// segments still referencing it will fault on access.
func (b *Mapped) Close() error {
	if b.data == nil {
		return nil
	}
	data := b.data
	b.data = nil
	return unix.Munmap(data)
}
