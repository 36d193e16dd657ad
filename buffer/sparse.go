package buffer

import (
	"github.com/akmistry/go-util/bitmap"
	"github.com/bits-and-blooms/bitset"
)

const sparseLeafSize = 256

var (
	_ = (Buffer)((*Sparse)(nil))
	_ = (Holey)((*Sparse)(nil))
)

type sparseLeaf struct {
	bm   bitmap.Bitmap256
	data *[sparseLeafSize]byte
}

func (l *sparseLeaf) insert(p []byte, start int) {
	copy(l.data[start:], p)
	for i := start; i < start+len(p); i++ {
		l.bm.Set(uint8(i))
	}
}

// Sparse is a resizable buffer that allocates storage lazily in
// 256-byte leaves. Bytes never written read as zero. Per-leaf
// presence bits record which bytes actually hold data, so large,
// mostly-hole regions can be enumerated cheaply via NextData and
// NextHole.
type Sparse struct {
	size    uint64
	entries map[uint64]*sparseLeaf

	// Leaf occupancy indexes: a partial leaf has at least one byte of
	// data, a full leaf has all 256.
	fullLeafIndex bitset.BitSet
	partLeafIndex bitset.BitSet
}

// NewSparse returns an empty sparse buffer of the given logical size.
func NewSparse(size uint64) *Sparse {
	return &Sparse{
		size:    size,
		entries: make(map[uint64]*sparseLeaf),
	}
}

func (b *Sparse) getLeaf(leafIndex uint64) *sparseLeaf {
	return b.entries[leafIndex]
}

func (b *Sparse) getOrCreateLeaf(leafIndex uint64) *sparseLeaf {
	l := b.entries[leafIndex]
	if l == nil {
		l = &sparseLeaf{data: new([sparseLeafSize]byte)}
		b.entries[leafIndex] = l
	}
	return l
}

func (b *Sparse) Available(off uint64) uint64 {
	if off >= b.size {
		return 0
	}
	return b.size - off
}

func (b *Sparse) Read(p []byte, off uint64) int {
	n := clampLen(b.size, off, len(p))
	for done := 0; done < n; {
		leaf := b.getLeaf(off >> 8)
		leafOff := int(off & 0xFF)
		count := sparseLeafSize - leafOff
		if count > n-done {
			count = n - done
		}
		if leaf == nil {
			clear(p[done : done+count])
		} else {
			// Unwritten bytes within an allocated leaf are zero in its
			// backing array, so a straight copy is correct.
			copy(p[done:done+count], leaf.data[leafOff:])
		}
		done += count
		off += uint64(count)
	}
	return n
}

func (b *Sparse) Write(p []byte, off uint64) int {
	n := clampLen(b.size, off, len(p))
	for done := 0; done < n; {
		leafIndex := off >> 8
		leaf := b.getOrCreateLeaf(leafIndex)
		leafOff := int(off & 0xFF)
		count := sparseLeafSize - leafOff
		if count > n-done {
			count = n - done
		}
		if leaf.bm.Empty() {
			b.partLeafIndex.Set(uint(leafIndex))
		}
		leaf.insert(p[done:done+count], leafOff)
		if leaf.bm.Full() {
			b.fullLeafIndex.Set(uint(leafIndex))
		}
		done += count
		off += uint64(count)
	}
	return n
}

// Resize adjusts the logical size. Shrinking drops leaves wholly
// beyond the new size and clears the exposed tail of the boundary
// leaf, data and presence bits both, so a later re-grow reads zeros
// and reports holes there.
func (b *Sparse) Resize(size uint64) error {
	if size < b.size {
		firstDropped := (size + sparseLeafSize - 1) / sparseLeafSize
		for idx := range b.entries {
			if idx >= firstDropped {
				delete(b.entries, idx)
				b.partLeafIndex.Clear(uint(idx))
				b.fullLeafIndex.Clear(uint(idx))
			}
		}
		if size%sparseLeafSize != 0 {
			leafIndex := size >> 8
			if leaf := b.getLeaf(leafIndex); leaf != nil {
				clear(leaf.data[size&0xFF:])
				for i := int(size & 0xFF); i < sparseLeafSize; i++ {
					leaf.bm.Clear(uint8(i))
				}
				b.fullLeafIndex.Clear(uint(leafIndex))
				if leaf.bm.Empty() {
					delete(b.entries, leafIndex)
					b.partLeafIndex.Clear(uint(leafIndex))
				}
			}
		}
	}
	b.size = size
	return nil
}

func (b *Sparse) Size() uint64 {
	return b.size
}

// NextData returns the offset of the next byte holding data at or
// after off.
func (b *Sparse) NextData(off uint64) (uint64, bool) {
	if off >= b.size {
		return 0, false
	}
	if leaf := b.getLeaf(off >> 8); leaf != nil {
		next := leaf.bm.FindNextSet(uint8(off))
		if next < sparseLeafSize {
			found := (off &^ 0xFF) + uint64(next)
			if found >= b.size {
				return 0, false
			}
			return found, true
		}
	}

	nextPartial, ok := b.partLeafIndex.NextSet(uint(off>>8) + 1)
	if !ok {
		return 0, false
	}
	leaf := b.getLeaf(uint64(nextPartial))
	found := (uint64(nextPartial) << 8) + uint64(leaf.bm.FindFirstSet())
	if found >= b.size {
		return 0, false
	}
	return found, true
}

// NextHole returns the offset of the next byte not holding data at or
// after off. The end of the buffer is always a hole.
func (b *Sparse) NextHole(off uint64) uint64 {
	if off >= b.size {
		return off
	}
	leaf := b.getLeaf(off >> 8)
	if leaf == nil {
		return off
	}
	next := leaf.bm.FindNextClear(uint8(off))
	if next < sparseLeafSize {
		hole := (off &^ 0xFF) + uint64(next)
		if hole > b.size {
			hole = b.size
		}
		return hole
	}

	clearStart := uint(off>>8) + 1
	nextNonFull, ok := b.fullLeafIndex.NextClear(clearStart)
	if !ok {
		if clearStart < b.fullLeafIndex.Len() {
			nextNonFull = b.fullLeafIndex.Len()
		} else {
			nextNonFull = clearStart
		}
	}

	hole := uint64(nextNonFull) << 8
	if leaf = b.getLeaf(uint64(nextNonFull)); leaf != nil {
		hole += uint64(leaf.bm.FindFirstClear())
	}
	if hole > b.size {
		hole = b.size
	}
	return hole
}
