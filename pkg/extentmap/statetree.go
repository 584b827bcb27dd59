package extentmap

import "github.com/extentcue/extentmap/internal/rangetree"

// stateExtent is the payload carried by each rangetree.Entry in a
// StateTree. An extent's key range comes from the Entry itself; flags and
// private are the per-extent state the original btrfs-progs
// extent_state struct carried.
type stateExtent struct {
	flags   Flags
	private uint64
}

// StateTree tracks bit-flags over a sparse uint64 address space as a
// disjoint, sorted set of extents, auto-splitting and auto-merging them as
// bits are set and cleared (SPEC_FULL.md §4.2).
//
// The zero value is ready to use.
type StateTree struct {
	tree rangetree.Tree[*stateExtent]

	// allocFail, when non-nil, is consulted before every new extent
	// allocation and lets tests exercise the OutOfMemory path. Production
	// trees never set it.
	allocFail func() error
}

func newStateTree() *StateTree {
	return &StateTree{}
}

func (st *StateTree) allocExtent() (*stateExtent, error) {
	if st.allocFail != nil {
		if err := st.allocFail(); err != nil {
			return nil, err
		}
	}
	return &stateExtent{}, nil
}

// splitAt divides e into [e.Start, at-1] and [at, e.End] in place, where
// e.Start < at <= e.End. e becomes the left half and keeps its private
// value; the returned right half starts life with private 0 (SPEC_FULL.md
// §4.2, "a split produces two extents with identical flags and private
// copied to the left half").
func (st *StateTree) splitAt(e *rangetree.Entry[*stateExtent], at uint64) (left, right *rangetree.Entry[*stateExtent], err error) {
	prealloc, err := st.allocExtent()
	if err != nil {
		return nil, nil, err
	}
	prealloc.flags = e.Value.flags

	right = &rangetree.Entry[*stateExtent]{Start: at, End: e.End, Value: prealloc}
	e.End = at - 1

	if !st.tree.Insert(right) {
		panicf("extentmap: split at %d produced unexpected overlap", at)
	}

	return e, right, nil
}

// mergeAround coalesces e with its left and/or right neighbor when they
// are adjacent (no gap) and carry identical flags with no IOBits bit set.
// The surviving entry's private value is the leftmost contributor's.
func (st *StateTree) mergeAround(e *rangetree.Entry[*stateExtent]) {
	if e.Value.flags&IOBits != 0 {
		return
	}

	if prev := st.tree.Prev(e); prev != nil && prev.End+1 == e.Start &&
		prev.Value.flags == e.Value.flags && prev.Value.flags&IOBits == 0 {
		e.Start = prev.Start
		e.Value.private = prev.Value.private
		st.tree.Remove(prev)
	}

	if next := st.tree.Next(e); next != nil && e.End+1 == next.Start &&
		next.Value.flags == e.Value.flags && next.Value.flags&IOBits == 0 {
		e.End = next.End
		st.tree.Remove(next)
	}
}

// SetBits ORs bits into every byte in [start, end] (inclusive), creating
// new extents to cover any gaps and splitting existing extents at the
// range boundary where necessary. It reports whether any byte in the
// range already carried at least one bit in bits before the call.
//
// Possible errors: ErrOutOfMemory, if a required split or insert
// could not allocate. On error, every sub-range transition already applied
// earlier in the call remains committed; the caller may retry starting
// from the point of failure.
func (st *StateTree) SetBits(start, end uint64, bits Flags) (bool, error) {
	if end < start {
		panicf("extentmap: SetBits: end %d < start %d", end, start)
	}

	anySet := false

	for {
		node := st.tree.FindFirst(start)

		if node == nil || node.Start > start {
			// No extent covers `start` yet: insert one for the gap up to
			// whichever comes first, `end` or the next extent's start.
			prealloc, err := st.allocExtent()
			if err != nil {
				return anySet, err
			}

			thisEnd := end
			if node != nil && node.Start-1 < thisEnd {
				thisEnd = node.Start - 1
			}

			prealloc.flags = bits
			e := &rangetree.Entry[*stateExtent]{Start: start, End: thisEnd, Value: prealloc}
			if !st.tree.Insert(e) {
				panicf("extentmap: SetBits: unexpected overlap inserting [%d, %d]", start, thisEnd)
			}
			st.mergeAround(e)

			if thisEnd >= end {
				return anySet, nil
			}
			start = thisEnd + 1
			continue
		}

		if node.Start < start {
			var err error
			_, node, err = st.splitAt(node, start)
			if err != nil {
				return anySet, err
			}
		}

		// node.Start == start now.
		anySet = anySet || node.Value.flags&bits != 0

		if node.End <= end {
			node.Value.flags |= bits
			next := node.End + 1
			st.mergeAround(node)

			if next > end {
				return anySet, nil
			}
			start = next
			continue
		}

		// node overhangs past end: split off the tail and only set bits
		// on the left half.
		left, _, err := st.splitAt(node, end+1)
		if err != nil {
			return anySet, err
		}
		left.Value.flags |= bits
		st.mergeAround(left)
		return anySet, nil
	}
}

// ClearBits ANDs ~bits into every byte in [start, end] (inclusive),
// removing extents that are left with no flags set and merging survivors
// with newly-adjacent neighbors. It reports whether any byte in the range
// carried any bit in bits before the call.
//
// Possible errors: ErrOutOfMemory, under the same partial-failure
// contract as SetBits.
func (st *StateTree) ClearBits(start, end uint64, bits Flags) (bool, error) {
	if end < start {
		panicf("extentmap: ClearBits: end %d < start %d", end, start)
	}

	cleared := false

	for {
		node := st.tree.FindFirst(start)
		if node == nil || node.Start > end {
			return cleared, nil
		}

		if node.Start < start {
			var err error
			_, node, err = st.splitAt(node, start)
			if err != nil {
				return cleared, err
			}
		}

		if node.End > end {
			left, _, err := st.splitAt(node, end+1)
			if err != nil {
				return cleared, err
			}
			cleared = cleared || left.Value.flags&bits != 0
			st.applyClear(left, bits)
			return cleared, nil
		}

		cleared = cleared || node.Value.flags&bits != 0
		next := node.End + 1
		st.applyClear(node, bits)

		if next > end {
			return cleared, nil
		}
		start = next
	}
}

func (st *StateTree) applyClear(e *rangetree.Entry[*stateExtent], bits Flags) {
	e.Value.flags &^= bits
	if e.Value.flags == 0 {
		st.tree.Remove(e)
		return
	}
	st.mergeAround(e)
}

// FindFirstBit returns the [start, end] boundaries of the first extent at
// or after addr that carries at least one bit in bits, and true. It
// returns false if no such extent exists.
func (st *StateTree) FindFirstBit(addr uint64, bits Flags) (start, end uint64, ok bool) {
	for node := st.tree.FindFirst(addr); node != nil; node = st.tree.Next(node) {
		if node.Value.flags&bits != 0 {
			return node.Start, node.End, true
		}
	}
	return 0, 0, false
}

// TestRange reports whether any byte (filled=false) or every byte
// (filled=true) in [start, end] carries at least one bit in bits.
func (st *StateTree) TestRange(start, end uint64, bits Flags, filled bool) bool {
	if end < start {
		panicf("extentmap: TestRange: end %d < start %d", end, start)
	}

	node := st.tree.FindFirst(start)
	bitSet := false

	for node != nil && start <= end {
		if filled && node.Start > start {
			return false
		}
		if node.Start > end {
			break
		}

		if node.Value.flags&bits != 0 {
			bitSet = true
			if !filled {
				break
			}
		} else if filled {
			return false
		}

		start = node.End + 1
		if start > end {
			break
		}
		node = st.tree.Next(node)
	}

	if filled && start <= end {
		// Ran out of extents (node == nil) with bytes in [start, end]
		// still unaccounted for: that tail is uncovered.
		return false
	}

	return bitSet
}

// Extent is a caller-facing snapshot of one state extent, returned by
// Extents for inspection and debugging.
type Extent struct {
	Start, End uint64
	Flags      Flags
}

// Extents returns every extent currently in the tree, in ascending Start
// order. Intended for debugging and diagnostics (e.g. a REPL's dump
// command); the returned slice is a snapshot and does not alias the tree.
func (st *StateTree) Extents() []Extent {
	var out []Extent
	for e := st.tree.First(); e != nil; e = st.tree.Next(e) {
		out = append(out, Extent{Start: e.Start, End: e.End, Flags: e.Value.flags})
	}
	return out
}

// SetPrivate attaches an opaque value to the extent beginning exactly at
// start.
//
// Possible errors: ErrNotFound if no extent begins at start.
func (st *StateTree) SetPrivate(start uint64, value uint64) error {
	node := st.tree.FindFirst(start)
	if node == nil || node.Start != start {
		return ErrNotFound
	}
	node.Value.private = value
	return nil
}

// GetPrivate returns the opaque value attached to the extent beginning
// exactly at start.
//
// Possible errors: ErrNotFound if no extent begins at start.
func (st *StateTree) GetPrivate(start uint64) (uint64, error) {
	node := st.tree.FindFirst(start)
	if node == nil || node.Start != start {
		return 0, ErrNotFound
	}
	return node.Value.private, nil
}
