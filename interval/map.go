package interval

import (
	"log"

	"github.com/akmistry/go-util/radix-tree"
)

// Policy decides how a Map combines and divides stored values when
// intervals are coalesced or cut. Split and Truncate are pure: they
// return new values and must not mutate their argument, since the
// caller may still hold references to it.
type Policy[V any] interface {
	// Merge reports whether two address-adjacent nodes may be fused
	// into one. leftIv.Upper()+1 == rightIv.Lower() is a precondition;
	// it is not re-checked at runtime. The fused node keeps the left
	// value.
	Merge(leftIv Interval, left V, rightIv Interval, right V) bool

	// Split returns the value for the right-hand piece [splitAt,
	// iv.Upper()] of a node being cut. splitAt lies strictly inside iv.
	Split(iv Interval, v V, splitAt uint64) V

	// Truncate returns the value for the left-hand piece [iv.Lower(),
	// splitAt-1] of a node whose tail is being discarded. splitAt lies
	// strictly inside iv.
	Truncate(iv Interval, v V, splitAt uint64) V
}

type node[V any] struct {
	iv Interval
	v  V
}

func (n *node[V]) Key() uint64 {
	return n.iv.Lower()
}

// Map is an ordered collection of pairwise-disjoint, non-empty
// intervals, each carrying a value. Inserting a range overwrites any
// existing coverage, splitting partially-overlapped nodes and merging
// the new node with its immediate neighbors when the policy allows.
//
// Merging is single-pass: only the left and right neighbors of a
// just-inserted range are reconsidered. An insert never re-coalesces
// adjacencies elsewhere in the map, so callers must not assume one
// insert maximally merges a long pre-existing run.
//
// Map is not safe for concurrent use.
type Map[V any] struct {
	tree radix.Tree
	pol  Policy[V]
	n    int
}

// NewMap returns an empty map using pol for merge and split decisions.
func NewMap[V any](pol Policy[V]) *Map[V] {
	return &Map[V]{pol: pol}
}

// Len returns the number of nodes (maximal merged intervals).
func (m *Map[V]) Len() int {
	return m.n
}

func (m *Map[V]) findNode(addr uint64) *node[V] {
	var found *node[V]
	m.tree.DescendLessOrEqualI(addr, func(item radix.Item) bool {
		n := item.(*node[V])
		if n.iv.Contains(addr) {
			found = n
		}
		return false
	})
	return found
}

// Find returns the interval and value of the node containing addr.
func (m *Map[V]) Find(addr uint64) (Interval, V, bool) {
	n := m.findNode(addr)
	if n == nil {
		var zero V
		return Interval{}, zero, false
	}
	return n.iv, n.v, true
}

// overlapping collects the nodes intersecting iv, in no particular
// order. Collecting before mutating avoids changing the tree under an
// active iteration.
func (m *Map[V]) overlapping(iv Interval) []*node[V] {
	var nodes []*node[V]
	m.tree.DescendLessOrEqualI(iv.Upper(), func(item radix.Item) bool {
		n := item.(*node[V])
		if n.iv.Upper() < iv.Lower() {
			return false
		}
		nodes = append(nodes, n)
		return true
	})
	return nodes
}

func (m *Map[V]) insertNode(n *node[V]) {
	old := m.tree.ReplaceOrInsert(n)
	if old != nil {
		log.Panicf("interval: unexpected existing node %v", old.(*node[V]).iv)
	}
	m.n++
}

func (m *Map[V]) deleteNode(n *node[V]) {
	if m.tree.Delete(n) != radix.Item(n) {
		log.Panicf("interval: node %v not deleted", n.iv)
	}
	m.n--
}

// punch removes all coverage within iv, splitting boundary nodes.
func (m *Map[V]) punch(iv Interval) {
	for _, n := range m.overlapping(iv) {
		keepLeft := n.iv.Lower() < iv.Lower()
		if n.iv.Upper() > iv.Upper() {
			// Right-hand remainder survives with its value split off.
			splitAt := iv.Upper() + 1
			m.insertNode(&node[V]{
				iv: Hull(splitAt, n.iv.Upper()),
				v:  m.pol.Split(n.iv, n.v, splitAt),
			})
		}
		if keepLeft {
			// Truncate in place. The node's key (lower bound) is
			// unchanged, so its tree position is still valid.
			oldIv := n.iv
			n.iv = Hull(oldIv.Lower(), iv.Lower()-1)
			n.v = m.pol.Truncate(oldIv, n.v, iv.Lower())
		} else {
			m.deleteNode(n)
		}
	}
}

// Insert installs v over iv, overwriting any existing coverage.
// Inserting an empty interval is a no-op.
func (m *Map[V]) Insert(iv Interval, v V) {
	if iv.Empty() {
		return
	}
	m.punch(iv)

	n := &node[V]{iv: iv, v: v}
	m.insertNode(n)

	// Merge with the left neighbor. After punching, any node containing
	// iv.Lower()-1 necessarily ends exactly there.
	if iv.Lower() > 0 {
		if ln := m.findNode(iv.Lower() - 1); ln != nil && m.pol.Merge(ln.iv, ln.v, n.iv, n.v) {
			m.deleteNode(n)
			ln.iv = ln.iv.Join(n.iv)
			n = ln
		}
	}
	// Merge with the right neighbor, which (if adjacent) starts exactly
	// at upper+1.
	if n.iv.Upper() < MaxAddress {
		if rn := m.findNode(n.iv.Upper() + 1); rn != nil && m.pol.Merge(n.iv, n.v, rn.iv, rn.v) {
			m.deleteNode(rn)
			n.iv = n.iv.Join(rn.iv)
		}
	}
}

// Erase removes all coverage within iv, splitting boundary nodes.
// Erasing cannot create new adjacencies, so no merging takes place.
func (m *Map[V]) Erase(iv Interval) {
	if iv.Empty() {
		return
	}
	m.punch(iv)
}

// Iterate calls fn for each node whose interval contains or follows
// start, in ascending address order, until fn returns false.
func (m *Map[V]) Iterate(start uint64, fn func(Interval, V) bool) {
	first := start
	if n := m.findNode(start); n != nil {
		first = n.iv.Lower()
	}
	m.tree.AscendGreaterOrEqualI(first, func(item radix.Item) bool {
		n := item.(*node[V])
		return fn(n.iv, n.v)
	})
}

// IterateIntervals is Iterate restricted to the interval keys.
func (m *Map[V]) IterateIntervals(start uint64, fn func(Interval) bool) {
	m.Iterate(start, func(iv Interval, _ V) bool {
		return fn(iv)
	})
}

// IterateValues is Iterate restricted to the stored values.
func (m *Map[V]) IterateValues(start uint64, fn func(V) bool) {
	m.Iterate(start, func(_ Interval, v V) bool {
		return fn(v)
	})
}

// NextMapped returns the least mapped address >= addr.
func (m *Map[V]) NextMapped(addr uint64) (uint64, bool) {
	if n := m.findNode(addr); n != nil {
		return addr, true
	}
	next := uint64(0)
	ok := false
	m.tree.AscendGreaterOrEqualI(addr, func(item radix.Item) bool {
		next = item.(*node[V]).iv.Lower()
		ok = true
		return false
	})
	return next, ok
}

// NextUnmapped returns the least unmapped address >= addr, or
// (MaxAddress, false) if the map covers everything through MaxAddress.
func (m *Map[V]) NextUnmapped(addr uint64) (uint64, bool) {
	next := addr
	for {
		n := m.findNode(next)
		if n == nil {
			return next, true
		}
		if n.iv.Upper() == MaxAddress {
			return MaxAddress, false
		}
		next = n.iv.Upper() + 1
	}
}

// Extent returns the hull spanning the first and last mapped address.
func (m *Map[V]) Extent() Interval {
	var ext Interval
	m.tree.Ascend(func(item radix.Item) bool {
		ext = item.(*node[V]).iv
		return false
	})
	if ext.Empty() {
		return ext
	}
	m.tree.Descend(func(item radix.Item) bool {
		ext = ext.Join(item.(*node[V]).iv)
		return false
	})
	return ext
}

// Clone returns a structural copy of the map. Values are copied as-is;
// any indirection inside them (such as shared buffers) is shared
// between the copies.
func (m *Map[V]) Clone() *Map[V] {
	c := NewMap[V](m.pol)
	m.tree.Ascend(func(item radix.Item) bool {
		n := item.(*node[V])
		c.insertNode(&node[V]{iv: n.iv, v: n.v})
		return true
	})
	return c
}
