// Package adaptor presents an address map as a flat, fixed-size
// device implementing the standard io offset interfaces, for tools
// (such as an NBD export) that expect every offset to be readable.
package adaptor

import (
	"fmt"
	"io"

	"github.com/ppete/sawyer/addrmap"
	"github.com/ppete/sawyer/interval"
)

var (
	_ = (io.ReaderAt)((*Reader)(nil))
	_ = (io.WriterAt)((*ReadWriter)(nil))
)

// Reader reads a window [0, size) of an address map as a flat device.
// Unmapped gaps, and mapped ranges whose buffer comes up short, read
// as zeros rather than truncating the read.
type Reader struct {
	m    *addrmap.Map
	size int64
}

// ReadWriter additionally writes through to the map. Unlike reads,
// writes do not skip holes: a write that cannot be fully delivered
// fails, since silently dropping device writes loses data.
type ReadWriter struct {
	Reader
}

func NewReader(m *addrmap.Map, size int64) *Reader {
	return &Reader{m: m, size: size}
}

func NewReadWriter(m *addrmap.Map, size int64) *ReadWriter {
	return &ReadWriter{Reader: Reader{m: m, size: size}}
}

func (r *Reader) Size() int64 {
	return r.size
}

func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		panic("off < 0")
	}
	if off >= r.size {
		return 0, io.EOF
	}
	eof := false
	if rem := r.size - off; int64(len(p)) > rem {
		p = p[:rem]
		eof = true
	}

	done := 0
	for done < len(p) {
		addr := uint64(off) + uint64(done)
		done += r.m.ReadAt(p[done:], addr, 0, 0)
		if done == len(p) {
			break
		}

		// Either addr is unmapped, or a mapped buffer delivered short.
		// Zero-fill to the next address that can deliver data.
		addr = uint64(off) + uint64(done)
		next, ok := r.m.NextMapped(addr)
		if ok && next == addr {
			// Mapped but undeliverable: the segment's buffer ended
			// early. Skip the rest of this node.
			iv, _, _ := r.m.Find(addr)
			if iv.Upper() == interval.MaxAddress {
				ok = false
			} else {
				next = iv.Upper() + 1
			}
		}
		fillEnd := len(p)
		if ok && next < uint64(off)+uint64(len(p)) {
			fillEnd = int(next - uint64(off))
		}
		clear(p[done:fillEnd])
		done = fillEnd
	}

	if eof {
		return done, io.EOF
	}
	return done, nil
}

func (w *ReadWriter) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		panic("off < 0")
	}
	if off >= w.size {
		return 0, fmt.Errorf("adaptor: write at %#x beyond device size %#x", off, w.size)
	}
	if rem := w.size - off; int64(len(p)) > rem {
		p = p[:rem]
	}

	n := w.m.WriteAt(p, uint64(off), 0, 0)
	if n != len(p) {
		return n, fmt.Errorf("adaptor: short write at %#x: %d of %d bytes", off, n, len(p))
	}
	return n, nil
}

// Flush syncs every distinct buffer in the map that supports syncing,
// such as file-backed mappings.
func (w *ReadWriter) Flush() error {
	type syncer interface {
		Sync() error
	}
	var err error
	seen := make(map[syncer]bool)
	w.m.Segments(0, func(_ interval.Interval, seg addrmap.Segment) bool {
		s, ok := seg.Buffer().(syncer)
		if !ok || seen[s] {
			return true
		}
		seen[s] = true
		if serr := s.Sync(); serr != nil && err == nil {
			err = serr
		}
		return true
	})
	return err
}

// NextData returns the offset of the next mapped byte at or after
// off, or io.EOF if none remains before the device end.
func (r *Reader) NextData(off int64) (int64, error) {
	if off < 0 {
		panic("off < 0")
	}
	if off >= r.size {
		return r.size, io.EOF
	}
	next, ok := r.m.NextMapped(uint64(off))
	if !ok || next >= uint64(r.size) {
		return r.size, io.EOF
	}
	return int64(next), nil
}

// NextHole returns the offset of the next unmapped byte at or after
// off. The device end always counts as a hole.
func (r *Reader) NextHole(off int64) (int64, error) {
	if off < 0 {
		panic("off < 0")
	}
	if off >= r.size {
		return r.size, nil
	}
	next, ok := r.m.NextUnmapped(uint64(off))
	if !ok || next >= uint64(r.size) {
		return r.size, nil
	}
	return int64(next), nil
}
