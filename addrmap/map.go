// Package addrmap maps intervals of an address space onto
// externally-owned storage buffers, with access-permission gating and
// partial, buffer-spanning reads and writes. It is the memory-model
// primitive used to represent a process or image address space without
// materializing the whole space contiguously: the same buffer can be
// mapped at several addresses (aliasing), and a later insertion can
// occlude part of an earlier one.
//
// The map never raises an error for an unmapped address, a missing
// permission, or a buffer that ends mid-range; every transfer reports
// how much was actually moved, and callers compare that against what
// they asked for.
package addrmap

import (
	"github.com/ppete/sawyer/interval"
)

// Map is an address-space container: an ordered set of disjoint
// address intervals, each bound to a Segment. Inserting routes through
// the interval engine's merge/split machinery using the segment
// policy; see Segment for the merge conditions.
//
// A Map is a passive, synchronous structure with no locking of its
// own. Concurrent access, including access to shared buffers through
// overlapping maps, is the caller's responsibility to serialize.
type Map struct {
	segs *interval.Map[Segment]
}

// New returns an empty address map.
func New() *Map {
	return &Map{segs: interval.NewMap[Segment](segmentPolicy{})}
}

// Insert installs seg over iv, overwriting any existing coverage and
// merging with compatible neighbors. Inserting an empty interval is a
// no-op. The buffer is not eagerly bounds-checked against iv; a
// too-short buffer simply produces short transfers later.
func (m *Map) Insert(iv interval.Interval, seg Segment) {
	m.segs.Insert(iv, seg)
}

// Erase removes coverage within iv, splitting boundary segments.
func (m *Map) Erase(iv interval.Interval) {
	m.segs.Erase(iv)
}

// Find returns the node containing addr.
func (m *Map) Find(addr uint64) (interval.Interval, Segment, bool) {
	return m.segs.Find(addr)
}

// NumSegments returns the number of maximal (merged) segments.
func (m *Map) NumSegments() int {
	return m.segs.Len()
}

// Extent returns the hull spanning the lowest and highest mapped
// address.
func (m *Map) Extent() interval.Interval {
	return m.segs.Extent()
}

// NextMapped returns the least mapped address >= addr.
func (m *Map) NextMapped(addr uint64) (uint64, bool) {
	return m.segs.NextMapped(addr)
}

// NextUnmapped returns the least unmapped address >= addr, or
// (interval.MaxAddress, false) if everything through the end of the
// domain is mapped.
func (m *Map) NextUnmapped(addr uint64) (uint64, bool) {
	return m.segs.NextUnmapped(addr)
}

// Segments calls fn for each node containing or following start, in
// ascending address order, until fn returns false.
func (m *Map) Segments(start uint64, fn func(interval.Interval, Segment) bool) {
	m.segs.Iterate(start, fn)
}

// Intervals iterates over the mapped address intervals only.
func (m *Map) Intervals(start uint64, fn func(interval.Interval) bool) {
	m.segs.IterateIntervals(start, fn)
}

// Clone returns a copy of the map. The node structure is duplicated in
// O(segments); buffers are shared by reference, so data written
// through one copy is visible through segments of the other that
// reference the same buffer. This is the intended overlay mechanism.
func (m *Map) Clone() *Map {
	return &Map{segs: m.segs.Clone()}
}

// Available returns the maximal run [start, start+N-1] that is fully
// covered by contiguous segments passing the access filter. The empty
// interval is returned when start itself is unmapped or inaccessible.
// Traversal stops at the first gap or incompatible segment; gaps are
// never skipped.
func (m *Map) Available(start uint64, required, prohibited Access) interval.Interval {
	iv, seg, ok := m.segs.Find(start)
	if !ok || !seg.access.Allowed(required, prohibited) {
		return interval.Interval{}
	}
	ret := interval.Hull(start, iv.Upper())
	for ret.Upper() < interval.MaxAddress {
		niv, nseg, ok := m.segs.Find(ret.Upper() + 1)
		if !ok {
			break // discontinuity
		}
		if !nseg.access.Allowed(required, prohibited) {
			break // disallowed
		}
		ret = interval.Hull(start, niv.Upper())
	}
	return ret
}

// Read fills p from the buffers backing the address range where,
// stopping at the first unmapped address, access-filter failure, or
// short read from an underlying buffer. len(p) must be at least
// where.Size(). Returns the interval of addresses actually read,
// which is empty if where.Lower() itself is unreadable.
func (m *Map) Read(p []byte, where interval.Interval, required, prohibited Access) interval.Interval {
	return m.transfer(where, required, prohibited,
		func(seg Segment, bufOff uint64, pos, n int) int {
			return seg.buf.Read(p[pos:pos+n], bufOff)
		})
}

// ReadAt is the start+count form of Read; it reads up to len(p)
// values starting at addr and returns the count actually read.
func (m *Map) ReadAt(p []byte, addr uint64, required, prohibited Access) int {
	return int(m.Read(p, interval.BaseSize(addr, uint64(len(p))), required, prohibited).Size())
}

// Write copies p into the buffers backing the address range where,
// with the same termination rules as Read. A buffer that refuses
// mutation (such as a placeholder) reports a zero-length write, which
// terminates the operation.
func (m *Map) Write(p []byte, where interval.Interval, required, prohibited Access) interval.Interval {
	return m.transfer(where, required, prohibited,
		func(seg Segment, bufOff uint64, pos, n int) int {
			return seg.buf.Write(p[pos:pos+n], bufOff)
		})
}

// WriteAt is the start+count form of Write.
func (m *Map) WriteAt(p []byte, addr uint64, required, prohibited Access) int {
	return int(m.Write(p, interval.BaseSize(addr, uint64(len(p))), required, prohibited).Size())
}

// transfer walks the segments covering where in ascending order and
// delegates each intersection to op. op receives the position within
// the caller's slice (always where-relative, since accumulated
// coverage is contiguous from where.Lower()) and returns the count
// actually moved; a short count terminates the walk immediately, even
// if further segments exist, because it signals a boundary condition
// in that buffer.
func (m *Map) transfer(where interval.Interval, required, prohibited Access,
	op func(seg Segment, bufOff uint64, pos, n int) int) interval.Interval {
	var got interval.Interval
	if where.Empty() {
		return got
	}
	m.segs.Iterate(where.Lower(), func(iv interval.Interval, seg Segment) bool {
		if !seg.access.Allowed(required, prohibited) {
			return false
		}
		part := where.Intersection(iv)
		if part.Empty() {
			return false
		}
		if got.Empty() {
			if part.Lower() != where.Lower() {
				return false // start address unmapped
			}
		} else if got.Upper()+1 != part.Lower() {
			return false // gap
		}
		bufOff := part.Lower() - iv.Lower() + seg.offset
		pos := int(part.Lower() - where.Lower())
		n := op(seg, bufOff, pos, int(part.Size()))
		if uint64(n) != part.Size() {
			// Short transfer from the buffer: keep exactly what was
			// moved and stop.
			got = got.Join(interval.BaseSize(part.Lower(), uint64(n)))
			return false
		}
		got = got.Join(part)
		return got.Upper() < where.Upper()
	})
	return got
}
