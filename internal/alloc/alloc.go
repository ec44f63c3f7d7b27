// Package alloc tracks reclaimable byte ranges of a backing file.
//
// Free ranges live in a B-tree ordered by offset. Allocation is first-fit in
// offset order; release coalesces with adjacent ranges so that the set never
// holds two ranges that touch.
package alloc

import (
	"fmt"

	"github.com/google/btree"
)

const btreeDegree = 16

// Range is a half-open byte range [Off, Off+Len).
type Range struct {
	Off int64
	Len int64
}

func (r Range) End() int64 { return r.Off + r.Len }

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Off, r.End())
}

func byOffset(a, b Range) bool { return a.Off < b.Off }

type Allocator struct {
	free        *btree.BTreeG[Range]
	total       int64
	minFragment int64
}

// New returns an empty allocator. A remainder smaller than minFragment is
// never split off; the whole range is granted instead.
func New(minFragment int64) *Allocator {
	return &Allocator{
		free:        btree.NewG(btreeDegree, byOffset),
		minFragment: minFragment,
	}
}

// Allocate returns the first free range, in offset order, that can hold size
// bytes. When the range is larger than needed, got is [Off, Off+size) and
// rest is the remainder, which stays in the free set. ok is false when no
// range fits and the caller must append instead.
func (a *Allocator) Allocate(size int64) (got, rest Range, ok bool) {
	if size <= 0 {
		panic(fmt.Sprintf("alloc: invalid allocation size %d", size))
	}

	var found Range
	a.free.Ascend(func(r Range) bool {
		if r.Len >= size {
			found = r
			ok = true
			return false
		}
		return true
	})
	if !ok {
		return Range{}, Range{}, false
	}

	a.free.Delete(found)
	a.total -= found.Len

	if found.Len-size >= a.minFragment {
		got = Range{Off: found.Off, Len: size}
		rest = Range{Off: found.Off + size, Len: found.Len - size}
		a.free.ReplaceOrInsert(rest)
		a.total += rest.Len
		return got, rest, true
	}

	return found, Range{}, true
}

// Release hands [off, off+size) back to the free set and returns the range
// it was merged into. Releasing bytes that are already free is a programming
// error and panics.
func (a *Allocator) Release(off, size int64) Range {
	if size <= 0 || off < 0 {
		panic(fmt.Sprintf("alloc: invalid release of %d bytes at %d", size, off))
	}

	merged := Range{Off: off, Len: size}

	var prev, next Range
	var hasPrev, hasNext bool
	a.free.DescendLessOrEqual(Range{Off: off}, func(r Range) bool {
		prev, hasPrev = r, true
		return false
	})
	a.free.AscendGreaterOrEqual(Range{Off: off}, func(r Range) bool {
		next, hasNext = r, true
		return false
	})

	if hasPrev && prev.End() > off {
		panic(fmt.Sprintf("alloc: release of %v overlaps free range %v", merged, prev))
	}
	if hasNext && next.Off < merged.End() {
		panic(fmt.Sprintf("alloc: release of %v overlaps free range %v", merged, next))
	}

	if hasPrev && prev.End() == off {
		a.free.Delete(prev)
		a.total -= prev.Len
		merged = Range{Off: prev.Off, Len: prev.Len + merged.Len}
	}
	if hasNext && next.Off == merged.End() {
		a.free.Delete(next)
		a.total -= next.Len
		merged.Len += next.Len
	}

	a.free.ReplaceOrInsert(merged)
	a.total += merged.Len
	return merged
}

// Clone returns an independent copy. The underlying tree is copy-on-write,
// so cloning before a multi-step mutation is cheap.
func (a *Allocator) Clone() *Allocator {
	return &Allocator{
		free:        a.free.Clone(),
		total:       a.total,
		minFragment: a.minFragment,
	}
}

// Len is the number of free ranges.
func (a *Allocator) Len() int { return a.free.Len() }

// Total is the number of free bytes.
func (a *Allocator) Total() int64 { return a.total }

// Ranges returns the free ranges in offset order.
func (a *Allocator) Ranges() []Range {
	out := make([]Range, 0, a.free.Len())
	a.free.Ascend(func(r Range) bool {
		out = append(out, r)
		return true
	})
	return out
}

// Check verifies that the free ranges are sorted, disjoint and fully
// coalesced, and that none of them overlaps a live slot.
func (a *Allocator) Check(live []Range) error {
	var err error
	var last Range
	var sum int64
	first := true

	a.free.Ascend(func(r Range) bool {
		if r.Len <= 0 {
			err = fmt.Errorf("empty free range %v", r)
			return false
		}
		if !first && last.End() >= r.Off {
			err = fmt.Errorf("free ranges %v and %v overlap or touch", last, r)
			return false
		}
		sum += r.Len
		last, first = r, false
		return true
	})
	if err != nil {
		return err
	}
	if sum != a.total {
		return fmt.Errorf("free byte count %d does not match ranges (%d)", a.total, sum)
	}

	for _, s := range live {
		var hit Range
		var overlap bool
		a.free.DescendLessOrEqual(Range{Off: s.End() - 1}, func(r Range) bool {
			if r.End() > s.Off {
				hit, overlap = r, true
			}
			return false
		})
		if overlap {
			return fmt.Errorf("free range %v overlaps live slot %v", hit, s)
		}
	}
	return nil
}
