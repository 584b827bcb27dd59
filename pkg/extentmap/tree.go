package extentmap

import (
	"log"
	"os"

	"github.com/extentcue/extentmap/internal/rangetree"
)

// Options configures a Tree. The zero value selects every default.
type Options struct {
	// CacheMax is the soft byte ceiling on cached buffer content. Zero
	// selects DefaultCacheMax.
	CacheMax uint64

	// ScanBudget bounds how many LRU entries a single reclaim pass
	// inspects. Zero selects DefaultScanBudget.
	ScanBudget int

	// Logger receives diagnostics, currently only buffer-leak reports
	// emitted by Close. Nil selects a logger writing to os.Stderr.
	Logger *log.Logger
}

// Tree couples a [StateTree] to a buffer cache: the two containers
// described in SPEC_FULL.md §4, kept in sync by MarkDirty/ClearDirty.
//
// Not safe for concurrent use; see the package doc comment.
type Tree struct {
	// State is the extent state container: set/clear/test bit-flags over
	// the address space directly, independent of buffer allocation.
	State *StateTree

	cache  *bufferCache
	logger *log.Logger
}

// Open constructs a ready-to-use Tree.
func Open(opts Options) *Tree {
	cacheMax := opts.CacheMax
	if cacheMax == 0 {
		cacheMax = DefaultCacheMax
	}

	scanBudget := opts.ScanBudget
	if scanBudget == 0 {
		scanBudget = DefaultScanBudget
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "extentmap: ", log.LstdFlags)
	}

	state := newStateTree()

	return &Tree{
		State: state,
		cache: &bufferCache{
			cacheMax:   cacheMax,
			scanBudget: scanBudget,
			state:      state,
		},
		logger: logger,
	}
}

// Find returns the cached buffer occupying exactly [bytenr, bytenr+blocksize),
// taking a reference. Returns false if no such buffer is cached.
func (t *Tree) Find(bytenr uint64, blocksize int) (*Buffer, bool) {
	return t.cache.find(bytenr, blocksize)
}

// FindFirstBuffer returns the first cached buffer starting at or after
// start, taking a reference. Returns false if the cache holds nothing at
// or after start.
func (t *Tree) FindFirstBuffer(start uint64) (*Buffer, bool) {
	return t.cache.findFirst(start)
}

// Alloc returns the cached buffer at [bytenr, bytenr+blocksize), allocating
// and caching a new zero-filled one if none exists yet. A new buffer is
// returned with two references (one held by the cache, one by the
// caller); a cached buffer is returned with one more reference taken.
//
// Possible errors: ErrOutOfMemory.
func (t *Tree) Alloc(bytenr uint64, blocksize int) (*Buffer, error) {
	return t.cache.alloc(bytenr, blocksize)
}

// Release drops one reference on b, evicting it from the cache immediately
// once the count reaches zero.
func (t *Tree) Release(b *Buffer) {
	t.cache.release(b)
}

// Get takes an additional reference on b.
func (t *Tree) Get(b *Buffer) {
	t.cache.get(b)
}

// MarkDirty marks b dirty, mirrors the flag into State, and pins b in the
// cache with an extra self-reference until ClearDirty is called.
//
// Possible errors: ErrOutOfMemory.
func (t *Tree) MarkDirty(b *Buffer) error {
	return t.cache.markDirty(b)
}

// ClearDirty clears b's dirty flag, mirrors it into State, and releases
// the self-reference MarkDirty took.
//
// Possible errors: ErrOutOfMemory.
func (t *Tree) ClearDirty(b *Buffer) error {
	return t.cache.clearDirty(b)
}

// CacheSize returns the current aggregate size, in bytes, of every cached
// buffer's content.
func (t *Tree) CacheSize() uint64 {
	return t.cache.size
}

// CacheMax returns the current soft byte ceiling used by reclaim.
func (t *Tree) CacheMax() uint64 {
	return t.cache.cacheMax
}

// SetCacheMax changes the soft byte ceiling used by reclaim. It takes
// effect on the next Alloc; it does not itself trigger eviction.
func (t *Tree) SetCacheMax(n uint64) {
	t.cache.cacheMax = n
}

// Close tears the tree down: any buffer still held with more references
// than the cache itself needs is a caller leak, logged and normalized
// rather than left to panic teardown. Every buffer is then discarded and
// the state tree drained. Close always returns nil; it returns an error
// only to match the io.Closer-shaped idiom used elsewhere in this module.
func (t *Tree) Close() error {
	for b := t.cache.lru.head; b != nil; b = b.lruNext {
		if b.refs != 1 {
			t.logger.Printf("buffer leak: start=%d len=%d refs=%d", b.start, len(b.data), b.refs)
			b.refs = 1
		}
	}

	t.cache.tree = rangetree.Tree[*Buffer]{}
	t.cache.lru = lruList{}
	t.cache.size = 0
	t.State.tree = rangetree.Tree[*stateExtent]{}

	return nil
}
