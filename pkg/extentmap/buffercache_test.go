package extentmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Alloc_Caches_And_Returns_Refs_Two(t *testing.T) {
	t.Parallel()

	tr := Open(Options{})
	defer tr.Close()

	b, err := tr.Alloc(0, 64)
	require.NoError(t, err)
	require.Equal(t, 2, b.Refs())
	require.Equal(t, uint64(64), tr.CacheSize())

	again, err := tr.Alloc(0, 64)
	require.NoError(t, err)
	require.Same(t, b, again)
	require.Equal(t, 3, again.Refs())
}

func Test_Find_Requires_Exact_Start_And_Size(t *testing.T) {
	t.Parallel()

	tr := Open(Options{})
	defer tr.Close()

	_, err := tr.Alloc(100, 32)
	require.NoError(t, err)

	b, ok := tr.Find(100, 32)
	require.True(t, ok)
	require.NotNil(t, b)

	_, ok = tr.Find(100, 16)
	require.False(t, ok, "different size at the same start is not an exact match")

	_, ok = tr.Find(104, 32)
	require.False(t, ok, "different start is not an exact match")
}

func Test_Release_Evicts_At_Zero_Refs(t *testing.T) {
	t.Parallel()

	tr := Open(Options{})
	defer tr.Close()

	b, err := tr.Alloc(0, 16)
	require.NoError(t, err)
	require.Equal(t, uint64(16), tr.CacheSize())

	tr.Release(b) // drop the caller's ref, cache-owned ref remains
	require.Equal(t, uint64(16), tr.CacheSize())

	tr.Release(b) // drop the cache-owned ref, buffer is evicted
	require.Equal(t, uint64(0), tr.CacheSize())

	_, ok := tr.Find(0, 16)
	require.False(t, ok)
}

func Test_Release_Below_Zero_Panics(t *testing.T) {
	t.Parallel()

	tr := Open(Options{})
	defer tr.Close()

	b, err := tr.Alloc(0, 16)
	require.NoError(t, err)

	tr.Release(b)
	tr.Release(b)
	require.Panics(t, func() { tr.Release(b) })
}

// Test_LRU_Eviction_Reclaims_Oldest_Unreferenced_Buffer implements
// end-to-end scenario 5: allocate five 1024-byte buffers over a 4096-byte
// ceiling, releasing each immediately; the oldest must be evicted once the
// fifth alloc pushes the cache over budget.
func Test_LRU_Eviction_Reclaims_Oldest_Unreferenced_Buffer(t *testing.T) {
	t.Parallel()

	tr := Open(Options{CacheMax: 4096})
	defer tr.Close()

	offsets := []uint64{0, 1024, 2048, 3072, 4096}
	for _, off := range offsets {
		b, err := tr.Alloc(off, 1024)
		require.NoError(t, err)
		tr.Release(b)
	}

	require.LessOrEqual(t, tr.CacheSize(), uint64(4096))

	_, ok := tr.Find(0, 1024)
	require.False(t, ok, "oldest buffer must have been evicted")

	for _, off := range offsets[1:] {
		_, ok := tr.Find(off, 1024)
		require.True(t, ok, "buffer at %d must remain cached", off)
		tr.Release(tr.cache.lookupAt(off).Value)
	}
}

// Test_Dirty_Buffer_Survives_Eviction_Pressure implements end-to-end
// scenario 6: a dirty buffer is immune to reclaim regardless of LRU
// position until explicitly cleared.
func Test_Dirty_Buffer_Survives_Eviction_Pressure(t *testing.T) {
	t.Parallel()

	const cacheMax = 4096
	tr := Open(Options{CacheMax: cacheMax})
	defer tr.Close()

	b, err := tr.Alloc(0, 1024)
	require.NoError(t, err)
	tr.Release(b) // refs == 1

	require.NoError(t, tr.MarkDirty(b))
	require.True(t, b.IsDirty())

	for i := uint64(1); i <= 2*cacheMax/1024; i++ {
		other, err := tr.Alloc(i*1024, 1024)
		require.NoError(t, err)
		tr.Release(other)
	}

	_, ok := tr.Find(0, 1024)
	require.True(t, ok, "dirty buffer must survive eviction pressure")
	tr.Release(b)

	require.NoError(t, tr.ClearDirty(b))
	require.False(t, b.IsDirty())
}

func Test_MarkDirty_Mirrors_Into_State_Tree(t *testing.T) {
	t.Parallel()

	tr := Open(Options{})
	defer tr.Close()

	b, err := tr.Alloc(1000, 256)
	require.NoError(t, err)
	tr.Release(b)

	require.NoError(t, tr.MarkDirty(b))
	require.True(t, tr.State.TestRange(1000, 1255, FlagDirty, true))

	require.NoError(t, tr.ClearDirty(b))
	require.False(t, tr.State.TestRange(1000, 1255, FlagDirty, false))
}

func Test_MarkDirty_Is_Noop_When_Already_Dirty(t *testing.T) {
	t.Parallel()

	tr := Open(Options{})
	defer tr.Close()

	b, err := tr.Alloc(0, 16)
	require.NoError(t, err)
	tr.Release(b)

	require.NoError(t, tr.MarkDirty(b))
	refsAfterFirst := b.Refs()
	require.NoError(t, tr.MarkDirty(b))
	require.Equal(t, refsAfterFirst, b.Refs(), "marking an already-dirty buffer must not take a second self-ref")

	require.NoError(t, tr.ClearDirty(b))
}

func Test_Evicting_Dirty_Buffer_Panics(t *testing.T) {
	t.Parallel()

	tr := Open(Options{})
	defer tr.Close()

	b, err := tr.Alloc(0, 16)
	require.NoError(t, err)
	require.NoError(t, tr.MarkDirty(b))

	// refs: 2 (alloc) + 1 (dirty pin) == 3. Release all three; the last
	// release tries to evict while still dirty.
	tr.Release(b)
	tr.Release(b)
	require.Panics(t, func() { tr.Release(b) })
}

func Test_Alloc_Conflicting_Size_At_Same_Start_Evicts_When_Unreferenced(t *testing.T) {
	t.Parallel()

	tr := Open(Options{})
	defer tr.Close()

	b, err := tr.Alloc(0, 16)
	require.NoError(t, err)
	tr.Release(b) // refs == 1, cache-owned only

	replaced, err := tr.Alloc(0, 32)
	require.NoError(t, err)
	require.NotNil(t, replaced)
	require.Equal(t, 32, replaced.Len())
}

func Test_Alloc_Conflicting_Size_Held_Externally_Panics(t *testing.T) {
	t.Parallel()

	tr := Open(Options{})
	defer tr.Close()

	_, err := tr.Alloc(0, 16) // refs == 2, externally held
	require.NoError(t, err)

	require.Panics(t, func() {
		_, _ = tr.Alloc(0, 32)
	})
}

func Test_Alloc_Reports_OutOfMemory(t *testing.T) {
	t.Parallel()

	tr := Open(Options{})
	defer tr.Close()
	tr.cache.allocFail = func() error { return ErrOutOfMemory }

	_, err := tr.Alloc(0, 16)
	require.ErrorIs(t, err, ErrOutOfMemory)
	require.Equal(t, uint64(0), tr.CacheSize())
}
