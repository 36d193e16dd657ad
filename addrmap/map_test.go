package addrmap

import (
	"bytes"
	"testing"

	"github.com/ppete/sawyer/buffer"
	"github.com/ppete/sawyer/interval"
)

func checkSegments(t *testing.T, m *Map, exp []interval.Interval) {
	t.Helper()
	if m.NumSegments() != len(exp) {
		t.Errorf("NumSegments() %d != %d", m.NumSegments(), len(exp))
	}
	i := 0
	m.Intervals(0, func(iv interval.Interval) bool {
		if i >= len(exp) {
			t.Errorf("unexpected extra node %v", iv)
			return false
		}
		if iv != exp[i] {
			t.Errorf("node %d %v != %v", i, iv, exp[i])
		}
		i++
		return true
	})
}

func TestAccessAllowed(t *testing.T) {
	tests := []struct {
		has, required, prohibited Access
		exp                       bool
	}{
		{0, 0, 0, true},
		{Readable | Writable, Readable, 0, true},
		{Readable, Readable | Writable, 0, false},
		{Readable, 0, Writable, true},
		{Readable | Writable, 0, Writable, false},
		{Readable | Executable, Readable, Writable, true},
		{0x100 | Readable, Readable, 0, true},
	}
	for _, tc := range tests {
		if got := tc.has.Allowed(tc.required, tc.prohibited); got != tc.exp {
			t.Errorf("%#x.Allowed(%#x, %#x) %v != %v",
				tc.has, tc.required, tc.prohibited, got, tc.exp)
		}
	}
}

func TestAccessString(t *testing.T) {
	tests := []struct {
		a   Access
		exp string
	}{
		{0, "---"},
		{Readable, "r--"},
		{Readable | Writable, "rw-"},
		{Readable | Writable | Executable, "rwx"},
		{Executable, "--x"},
	}
	for _, tc := range tests {
		if got := tc.a.String(); got != tc.exp {
			t.Errorf("%#x.String() %q != %q", tc.a, got, tc.exp)
		}
	}
}

// Two segments fuse only when address-contiguous, same buffer
// identity, buffer-contiguous, and equal accessibility. Breaking any
// one condition must leave two nodes.
func TestMergeConditions(t *testing.T) {
	tests := []struct {
		name    string
		second  func(a, b buffer.Buffer) (interval.Interval, Segment)
		expSegs int
	}{
		{"mergeable", func(a, b buffer.Buffer) (interval.Interval, Segment) {
			return interval.BaseSize(1010, 10), NewSegmentOffset(a, 10, Readable)
		}, 1},
		{"address gap", func(a, b buffer.Buffer) (interval.Interval, Segment) {
			return interval.BaseSize(1011, 10), NewSegmentOffset(a, 10, Readable)
		}, 2},
		{"different buffer", func(a, b buffer.Buffer) (interval.Interval, Segment) {
			return interval.BaseSize(1010, 10), NewSegmentOffset(b, 10, Readable)
		}, 2},
		{"buffer discontiguous", func(a, b buffer.Buffer) (interval.Interval, Segment) {
			return interval.BaseSize(1010, 10), NewSegmentOffset(a, 11, Readable)
		}, 2},
		{"different access", func(a, b buffer.Buffer) (interval.Interval, Segment) {
			return interval.BaseSize(1010, 10), NewSegmentOffset(a, 10, Readable|Writable)
		}, 2},
		{"different user bits", func(a, b buffer.Buffer) (interval.Interval, Segment) {
			return interval.BaseSize(1010, 10), NewSegmentOffset(a, 10, Readable|0x100)
		}, 2},
	}
	for _, tc := range tests {
		a := buffer.NewAllocating(32)
		b := buffer.NewAllocating(32)
		m := New()
		m.Insert(interval.BaseSize(1000, 10), NewSegmentOffset(a, 0, Readable))
		iv, seg := tc.second(a, b)
		m.Insert(iv, seg)
		if m.NumSegments() != tc.expSegs {
			t.Errorf("%s: NumSegments() %d != %d", tc.name, m.NumSegments(), tc.expSegs)
		}
	}
}

// Two identical Allocating buffers are distinct storage objects:
// merge eligibility is identity, never content.
func TestMergeBufferIdentity(t *testing.T) {
	a := buffer.NewAllocating(32)
	b := buffer.NewAllocating(32)

	m := New()
	m.Insert(interval.BaseSize(0, 16), NewSegmentOffset(a, 0, 0))
	m.Insert(interval.BaseSize(16, 16), NewSegmentOffset(b, 16, 0))
	if m.NumSegments() != 2 {
		t.Errorf("NumSegments() %d != 2 for equal-content distinct buffers", m.NumSegments())
	}
}

func TestSplitOffsets(t *testing.T) {
	a := buffer.NewAllocating(100)
	b := buffer.NewAllocating(10)

	m := New()
	m.Insert(interval.BaseSize(1000, 100), NewSegmentOffset(a, 0, Readable))
	m.Insert(interval.BaseSize(1040, 10), NewSegmentOffset(b, 0, Readable))

	checkSegments(t, m, []interval.Interval{
		interval.Hull(1000, 1039),
		interval.Hull(1040, 1049),
		interval.Hull(1050, 1099),
	})

	// The right remainder's offset advances by the address delta.
	_, seg, ok := m.Find(1050)
	if !ok || seg.Offset() != 50 {
		t.Errorf("right remainder offset %d != 50 (ok=%v)", seg.Offset(), ok)
	}
	_, seg, ok = m.Find(1000)
	if !ok || seg.Offset() != 0 {
		t.Errorf("left remainder offset %d != 0 (ok=%v)", seg.Offset(), ok)
	}
}

func TestUserBitsPreserved(t *testing.T) {
	const tagged = Readable | 0x00ab0000

	a := buffer.NewAllocating(100)
	m := New()
	m.Insert(interval.BaseSize(0, 100), NewSegmentOffset(a, 0, tagged))
	m.Erase(interval.BaseSize(40, 20))

	for _, addr := range []uint64{0, 39, 60, 99} {
		_, seg, ok := m.Find(addr)
		if !ok || seg.Access() != tagged {
			t.Errorf("Find(%d) access %#x != %#x (ok=%v)", addr, seg.Access(), tagged, ok)
		}
	}

	c := m.Clone()
	_, seg, ok := c.Find(60)
	if !ok || seg.Access() != tagged {
		t.Errorf("clone access %#x != %#x (ok=%v)", seg.Access(), tagged, ok)
	}
}

func TestRoundTrip(t *testing.T) {
	a := buffer.NewAllocating(64)
	b := buffer.NewAllocating(64)

	m := New()
	m.Insert(interval.BaseSize(1000, 64), NewSegmentOffset(a, 0, Readable|Writable))
	m.Insert(interval.BaseSize(1064, 64), NewSegmentOffset(b, 0, Readable|Writable))

	wbuf := make([]byte, 100)
	for i := range wbuf {
		wbuf[i] = byte(i + 1)
	}
	if n := m.WriteAt(wbuf, 1010, Writable, 0); n != 100 {
		t.Fatalf("WriteAt %d != 100", n)
	}

	rbuf := make([]byte, 100)
	if n := m.ReadAt(rbuf, 1010, Readable, 0); n != 100 {
		t.Fatalf("ReadAt %d != 100", n)
	}
	if !bytes.Equal(rbuf, wbuf) {
		t.Error("read-back != written")
	}
}

func TestReadUnmappedStart(t *testing.T) {
	a := buffer.NewAllocating(10)
	m := New()
	m.Insert(interval.BaseSize(1000, 10), NewSegment(a))

	p := make([]byte, 10)
	// Start below the mapping: nothing transfers, even though the
	// requested range overlaps a mapped node.
	if got := m.Read(p, interval.BaseSize(995, 10), 0, 0); !got.Empty() {
		t.Errorf("Read from unmapped start %v != empty", got)
	}
	if n := m.ReadAt(p, 2000, 0, 0); n != 0 {
		t.Errorf("ReadAt unmapped %d != 0", n)
	}
}

func TestReadStopsAtGap(t *testing.T) {
	a := buffer.NewAllocating(10)
	b := buffer.NewAllocating(10)
	m := New()
	m.Insert(interval.BaseSize(0, 10), NewSegment(a))
	m.Insert(interval.BaseSize(15, 10), NewSegment(b))

	p := make([]byte, 25)
	got := m.Read(p, interval.BaseSize(0, 25), 0, 0)
	if got != interval.Hull(0, 9) {
		t.Errorf("Read across gap %v != %v", got, interval.Hull(0, 9))
	}
}

func TestReadStopsAtAccessChange(t *testing.T) {
	a := buffer.NewAllocating(10)
	b := buffer.NewAllocating(10)
	m := New()
	m.Insert(interval.BaseSize(0, 10), NewSegmentOffset(a, 0, Readable))
	m.Insert(interval.BaseSize(10, 10), NewSegmentOffset(b, 0, Writable))

	p := make([]byte, 20)
	got := m.Read(p, interval.BaseSize(0, 20), Readable, 0)
	if got != interval.Hull(0, 9) {
		t.Errorf("Read across access change %v != %v", got, interval.Hull(0, 9))
	}

	// First segment fails the filter: nothing transfers.
	got = m.Read(p, interval.BaseSize(0, 20), Writable, 0)
	if !got.Empty() {
		t.Errorf("Read with failing first segment %v != empty", got)
	}
}

// A buffer shorter than its segment produces a short transfer, which
// terminates the operation even though a following segment exists.
func TestShortTransferTermination(t *testing.T) {
	short := buffer.NewAllocating(5)
	next := buffer.NewAllocating(10)
	m := New()
	m.Insert(interval.BaseSize(0, 10), NewSegment(short))
	m.Insert(interval.BaseSize(10, 10), NewSegment(next))

	p := make([]byte, 20)
	got := m.Read(p, interval.BaseSize(0, 20), 0, 0)
	if got != interval.Hull(0, 4) {
		t.Errorf("short read %v != %v", got, interval.Hull(0, 4))
	}
	if n := m.WriteAt(p, 0, 0, 0); n != 5 {
		t.Errorf("short write %d != 5", n)
	}
}

// A write reaching a Null segment terminates with a zero-length
// transfer from that segment.
func TestWriteStopsAtNull(t *testing.T) {
	a := buffer.NewAllocating(10)
	m := New()
	m.Insert(interval.BaseSize(0, 10), NewSegment(a))
	m.Insert(interval.BaseSize(10, 10), NewSegment(buffer.NewNull(10)))

	p := make([]byte, 20)
	if n := m.WriteAt(p, 0, 0, 0); n != 10 {
		t.Errorf("write into null %d != 10", n)
	}
	// Reads of the null region succeed with zeros.
	if n := m.ReadAt(p, 0, 0, 0); n != 20 {
		t.Errorf("read across null %d != 20", n)
	}
}

func TestAvailable(t *testing.T) {
	a := buffer.NewAllocating(30)
	m := New()
	m.Insert(interval.BaseSize(1000, 10), NewSegmentOffset(a, 0, Readable))
	m.Insert(interval.BaseSize(1010, 10), NewSegmentOffset(a, 10, Readable|Writable))
	m.Insert(interval.BaseSize(1030, 10), NewSegmentOffset(a, 20, Readable))

	tests := []struct {
		start                uint64
		required, prohibited Access
		exp                  interval.Interval
	}{
		// Spans both contiguous readable segments, stops at the gap.
		{1000, Readable, 0, interval.Hull(1000, 1019)},
		{1005, Readable, 0, interval.Hull(1005, 1019)},
		// Writable stops at the first read-only neighbor.
		{1010, Writable, 0, interval.Hull(1010, 1019)},
		// Prohibiting Writable stops before the writable segment.
		{1000, 0, Writable, interval.Hull(1000, 1009)},
		// Start not mapped.
		{1020, 0, 0, interval.Interval{}},
		// Start mapped but incompatible.
		{1000, Writable, 0, interval.Interval{}},
		// After the gap.
		{1030, Readable, 0, interval.Hull(1030, 1039)},
	}
	for _, tc := range tests {
		got := m.Available(tc.start, tc.required, tc.prohibited)
		if got != tc.exp {
			t.Errorf("Available(%d, %v, %v) %v != %v",
				tc.start, tc.required, tc.prohibited, got, tc.exp)
		}
	}
}

func TestCloneSharesBuffers(t *testing.T) {
	a := buffer.NewAllocating(16)
	m := New()
	m.Insert(interval.BaseSize(0, 16), NewSegmentOffset(a, 0, Readable|Writable))

	c := m.Clone()
	if n := c.WriteAt([]byte("snapshot"), 0, 0, 0); n != 8 {
		t.Fatalf("clone write %d != 8", n)
	}

	p := make([]byte, 8)
	if n := m.ReadAt(p, 0, 0, 0); n != 8 {
		t.Fatalf("original read %d != 8", n)
	}
	if string(p) != "snapshot" {
		t.Errorf("original read %q != %q", p, "snapshot")
	}

	// Structure is independent: erasing in the clone leaves the
	// original intact.
	c.Erase(interval.BaseSize(0, 16))
	if m.NumSegments() != 1 {
		t.Errorf("original NumSegments() %d != 1", m.NumSegments())
	}
}

// The canonical overlay scenario: a small buffer occludes the middle
// of a larger one, a buffer-spanning write touches both, and
// re-mapping the occluded range back to contiguous bytes of the large
// buffer re-merges the map into a single node.
func TestOverlayScenario(t *testing.T) {
	data1 := []byte("---------------") // 15 bytes
	data2 := []byte("##########")      // 10 bytes, only first 5 mapped
	bufA := buffer.NewStatic(data1)
	bufB := buffer.NewStatic(data2[:5])

	m := New()
	m.Insert(interval.BaseSize(1000, 15), NewSegment(bufA))
	m.Insert(interval.BaseSize(1005, 5), NewSegment(bufB))

	checkSegments(t, m, []interval.Interval{
		interval.Hull(1000, 1004),
		interval.Hull(1005, 1009),
		interval.Hull(1010, 1014),
	})

	// Write across all three slices.
	got := m.Write([]byte("bcdefghijklmn"), interval.BaseSize(1001, 13), 0, 0)
	if got.Size() != 13 {
		t.Fatalf("write size %d != 13", got.Size())
	}
	if string(data1) != "-bcde-----klmn-" {
		t.Errorf("data1 %q != %q", data1, "-bcde-----klmn-")
	}
	if string(data2) != "fghij#####" {
		t.Errorf("data2 %q != %q", data2, "fghij#####")
	}

	// Map bufA's own bytes back over the occlusion: contiguous offsets
	// into one buffer collapse to a single node.
	m.Insert(interval.BaseSize(1005, 5), NewSegmentOffset(bufA, 5, 0))
	if m.NumSegments() != 1 {
		t.Fatalf("NumSegments() %d != 1 after re-merge", m.NumSegments())
	}

	got = m.Write([]byte("BCDEFGHIJKLMN"), interval.BaseSize(1001, 13), 0, 0)
	if got.Size() != 13 {
		t.Fatalf("write size %d != 13", got.Size())
	}
	if string(data1) != "-BCDEFGHIJKLMN-" {
		t.Errorf("data1 %q != %q", data1, "-BCDEFGHIJKLMN-")
	}
	if string(data2) != "fghij#####" {
		t.Errorf("data2 %q != %q", data2, "fghij#####")
	}
}

// The same buffer mapped at two discontinuous address ranges:
// mutations through one alias are visible through the other.
func TestAliasing(t *testing.T) {
	a := buffer.NewAllocating(16)
	m := New()
	m.Insert(interval.BaseSize(0x1000, 16), NewSegmentOffset(a, 0, Readable|Writable))
	m.Insert(interval.BaseSize(0x8000, 16), NewSegmentOffset(a, 0, Readable))

	if n := m.WriteAt([]byte("aliased!"), 0x1000, Writable, 0); n != 8 {
		t.Fatalf("write %d != 8", n)
	}
	p := make([]byte, 8)
	if n := m.ReadAt(p, 0x8000, Readable, 0); n != 8 {
		t.Fatalf("read %d != 8", n)
	}
	if string(p) != "aliased!" {
		t.Errorf("alias read %q != %q", p, "aliased!")
	}
	// The read-only alias rejects writes.
	if n := m.WriteAt(p, 0x8000, Writable, 0); n != 0 {
		t.Errorf("read-only alias write %d != 0", n)
	}
}
