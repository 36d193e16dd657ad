// Package interval provides a closed interval type over a uint64
// address domain, and an ordered map keyed by disjoint intervals with
// policy-driven merging and splitting.
package interval

import (
	"fmt"
	"math"
)

// MaxAddress is the largest representable address.
const MaxAddress = math.MaxUint64

// Interval is a closed range [lo, hi] of addresses. The zero value is
// the canonical empty interval. Using closed endpoints (rather than
// half-open) allows an interval to end at MaxAddress.
type Interval struct {
	lo, hi   uint64
	nonEmpty bool
}

// Hull returns the interval spanning both a and b, in either order.
func Hull(a, b uint64) Interval {
	if a > b {
		a, b = b, a
	}
	return Interval{lo: a, hi: b, nonEmpty: true}
}

// Single returns the interval containing only a.
func Single(a uint64) Interval {
	return Interval{lo: a, hi: a, nonEmpty: true}
}

// BaseSize returns the interval [base, base+size-1]. Returns the empty
// interval if size is zero. If base+size-1 overflows, the interval is
// clamped at MaxAddress.
func BaseSize(base, size uint64) Interval {
	if size == 0 {
		return Interval{}
	}
	hi := base + (size - 1)
	if hi < base {
		hi = MaxAddress
	}
	return Interval{lo: base, hi: hi, nonEmpty: true}
}

func (i Interval) Empty() bool {
	return !i.nonEmpty
}

// Lower returns the least address. Zero for the empty interval.
func (i Interval) Lower() uint64 {
	return i.lo
}

// Upper returns the greatest address. Zero for the empty interval.
func (i Interval) Upper() uint64 {
	return i.hi
}

// Size returns the number of addresses in the interval. The size of
// the whole-domain interval [0, MaxAddress] wraps to zero.
func (i Interval) Size() uint64 {
	if !i.nonEmpty {
		return 0
	}
	return i.hi - i.lo + 1
}

func (i Interval) Contains(addr uint64) bool {
	return i.nonEmpty && addr >= i.lo && addr <= i.hi
}

func (i Interval) Overlaps(o Interval) bool {
	return i.nonEmpty && o.nonEmpty && i.lo <= o.hi && o.lo <= i.hi
}

// Intersection returns the largest interval contained in both i and o.
func (i Interval) Intersection(o Interval) Interval {
	if !i.Overlaps(o) {
		return Interval{}
	}
	lo := i.lo
	if o.lo > lo {
		lo = o.lo
	}
	hi := i.hi
	if o.hi < hi {
		hi = o.hi
	}
	return Interval{lo: lo, hi: hi, nonEmpty: true}
}

// Join returns the smallest interval containing both i and o. Either
// argument may be empty.
func (i Interval) Join(o Interval) Interval {
	if !i.nonEmpty {
		return o
	}
	if !o.nonEmpty {
		return i
	}
	lo := i.lo
	if o.lo < lo {
		lo = o.lo
	}
	hi := i.hi
	if o.hi > hi {
		hi = o.hi
	}
	return Interval{lo: lo, hi: hi, nonEmpty: true}
}

func (i Interval) String() string {
	if !i.nonEmpty {
		return "[empty]"
	}
	return fmt.Sprintf("[%#x,%#x]", i.lo, i.hi)
}
