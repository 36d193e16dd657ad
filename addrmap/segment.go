package addrmap

import (
	"fmt"

	"github.com/ppete/sawyer/buffer"
	"github.com/ppete/sawyer/interval"
)

// Segment binds an address interval to a slice of a storage buffer.
// The address interval.Lower() of the node holding the segment
// corresponds to position Offset() within the buffer. Segments are
// values; the buffer behind them is shared by reference, so the same
// buffer may back any number of segments at any number of addresses.
type Segment struct {
	buf    buffer.Buffer
	offset uint64
	access Access
}

// NewSegment returns a segment covering buf starting at its offset 0
// with no access bits set.
func NewSegment(buf buffer.Buffer) Segment {
	return Segment{buf: buf}
}

// NewSegmentOffset returns a segment whose mapped interval begins at
// position offset within buf.
func NewSegmentOffset(buf buffer.Buffer, offset uint64, access Access) Segment {
	return Segment{buf: buf, offset: offset, access: access}
}

func (s Segment) Buffer() buffer.Buffer {
	return s.buf
}

func (s Segment) Offset() uint64 {
	return s.offset
}

func (s Segment) Access() Access {
	return s.access
}

// WithAccess returns a copy of the segment with the given access bits.
func (s Segment) WithAccess(access Access) Segment {
	s.access = access
	return s
}

func (s Segment) String() string {
	return fmt.Sprintf("segment{%T+%#x %s}", s.buf, s.offset, s.access)
}

// segmentPolicy is the merge/split policy for address maps. Two
// segments fuse only when they are the same storage object (identity,
// not content), have identical accessibility, and reference adjacent
// buffer regions. Address adjacency is the engine's precondition.
// This is what lets separately-inserted pieces of one buffer collapse
// back into a single node.
type segmentPolicy struct{}

func (segmentPolicy) Merge(leftIv interval.Interval, left Segment, _ interval.Interval, right Segment) bool {
	return left.access == right.access &&
		left.buf == right.buf &&
		left.offset+leftIv.Size() == right.offset
}

func (segmentPolicy) Split(iv interval.Interval, s Segment, splitAt uint64) Segment {
	s.offset += splitAt - iv.Lower()
	return s
}

func (segmentPolicy) Truncate(_ interval.Interval, s Segment, _ uint64) Segment {
	return s
}
