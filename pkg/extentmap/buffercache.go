package extentmap

import "github.com/extentcue/extentmap/internal/rangetree"

// bufferCache is the LRU-bounded, ref-counted cache of device-backed
// buffers described in SPEC_FULL.md §4.3-4.4. It is an unexported
// implementation detail of Tree; callers only ever see *Buffer values.
type bufferCache struct {
	tree rangetree.Tree[*Buffer]
	lru  lruList

	size       uint64
	cacheMax   uint64
	scanBudget int

	state *StateTree

	// allocFail mirrors StateTree.allocFail: a test-only hook for
	// exercising Alloc's OutOfMemory path.
	allocFail func() error
}

func (c *bufferCache) lookupAt(bytenr uint64) *rangetree.Entry[*Buffer] {
	node := c.tree.FindFirst(bytenr)
	if node != nil && node.Start == bytenr {
		return node
	}
	return nil
}

// find returns the cached buffer at exactly [bytenr, bytenr+blocksize),
// taking a reference and marking it most-recently-used.
func (c *bufferCache) find(bytenr uint64, blocksize int) (*Buffer, bool) {
	node := c.tree.FindExactOverlap(bytenr, uint64(blocksize))
	if node == nil || node.Start != bytenr || len(node.Value.data) != blocksize {
		return nil, false
	}

	b := node.Value
	b.refs++
	c.lru.touch(b)
	return b, true
}

// findFirst returns the first cached buffer at or after start, taking a
// reference and marking it most-recently-used.
func (c *bufferCache) findFirst(start uint64) (*Buffer, bool) {
	node := c.tree.FindFirst(start)
	if node == nil {
		return nil, false
	}

	b := node.Value
	b.refs++
	c.lru.touch(b)
	return b, true
}

// alloc returns the cached buffer at [bytenr, bytenr+blocksize) if one
// already exists, or allocates and caches a new zero-filled one. New
// buffers start with refs == 2: one implicit reference owned by the
// cache's presence in the tree, one returned to the caller (mirroring
// alloc_extent_buffer's refs = 2 convention in the original).
//
// Possible errors: ErrOutOfMemory.
func (c *bufferCache) alloc(bytenr uint64, blocksize int) (*Buffer, error) {
	if b, ok := c.find(bytenr, blocksize); ok {
		return b, nil
	}

	if node := c.lookupAt(bytenr); node != nil {
		b := node.Value
		if b.refs != 1 {
			panicf("extentmap: alloc(%d, %d): conflicting buffer of a different size is held externally (refs=%d)", bytenr, blocksize, b.refs)
		}
		c.evict(b)
	}

	if c.allocFail != nil {
		if err := c.allocFail(); err != nil {
			return nil, err
		}
	}

	c.reclaim()

	b := &Buffer{
		start:     bytenr,
		data:      make([]byte, blocksize),
		devBytenr: unsetDevBytenr,
		refs:      2,
	}

	e := &rangetree.Entry[*Buffer]{Start: bytenr, End: bytenr + uint64(blocksize) - 1, Value: b}
	if !c.tree.Insert(e) {
		panicf("extentmap: alloc(%d, %d): unexpected overlap after eviction", bytenr, blocksize)
	}

	c.lru.pushTail(b)
	c.size += uint64(blocksize)

	return b, nil
}

// release drops one reference; at zero the buffer is evicted immediately
// regardless of LRU position.
func (c *bufferCache) release(b *Buffer) {
	b.refs--
	if b.refs < 0 {
		panicf("extentmap: buffer at %d released more times than acquired", b.start)
	}
	if b.refs == 0 {
		c.evict(b)
	}
}

func (c *bufferCache) get(b *Buffer) {
	b.refs++
}

// evict unconditionally removes b from the tree and LRU and accounts its
// size. Evicting a dirty buffer is a contract violation: callers must
// clear dirty (writing back first, if needed) before the last release.
func (c *bufferCache) evict(b *Buffer) {
	if b.flags&FlagDirty != 0 {
		panicf("extentmap: evicting dirty buffer at %d", b.start)
	}

	node := c.tree.FindExactOverlap(b.start, uint64(len(b.data)))
	if node == nil || node.Value != b {
		panicf("extentmap: evict: buffer at %d not present in cache", b.start)
	}

	c.tree.Remove(node)
	c.lru.remove(b)

	if c.size < uint64(len(b.data)) {
		panicf("extentmap: cache size underflow evicting buffer at %d", b.start)
	}
	c.size -= uint64(len(b.data))
}

// reclaim scans the LRU from the head, freeing buffers with refs == 1
// (cache-owned only, not externally held), stopping once size is back
// under cacheMax or scanBudget entries have been inspected.
func (c *bufferCache) reclaim() {
	if c.size < c.cacheMax {
		return
	}

	node := c.lru.head
	for i := 0; i < c.scanBudget && node != nil; i++ {
		next := node.lruNext
		if node.refs == 1 && node.flags&FlagDirty == 0 {
			c.evict(node)
			if c.size < c.cacheMax {
				return
			}
		}
		node = next
	}
}

// markDirty sets the buffer's dirty flag, mirrors it into the state tree,
// and takes an extra self-reference pinning the buffer in the cache until
// clearDirty is called. A no-op if the buffer is already dirty.
//
// Possible errors: ErrOutOfMemory, from the underlying
// StateTree.SetBits call; the buffer is left unchanged on error.
func (c *bufferCache) markDirty(b *Buffer) error {
	if b.flags&FlagDirty != 0 {
		return nil
	}

	if _, err := c.state.SetBits(b.start, b.start+uint64(len(b.data))-1, FlagDirty); err != nil {
		return err
	}

	b.flags |= FlagDirty
	b.refs++
	return nil
}

// clearDirty clears the buffer's dirty flag, mirrors it into the state
// tree, and releases the self-reference markDirty took. A no-op if the
// buffer is not dirty.
//
// Possible errors: ErrOutOfMemory, from the underlying
// StateTree.ClearBits call; the buffer is left unchanged on error.
func (c *bufferCache) clearDirty(b *Buffer) error {
	if b.flags&FlagDirty == 0 {
		return nil
	}

	if _, err := c.state.ClearBits(b.start, b.start+uint64(len(b.data))-1, FlagDirty); err != nil {
		return err
	}

	b.flags &^= FlagDirty
	c.release(b)
	return nil
}
