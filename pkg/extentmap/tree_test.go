package extentmap

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Open_Applies_Defaults_When_Options_Zero(t *testing.T) {
	t.Parallel()

	tr := Open(Options{})
	defer tr.Close()

	require.Equal(t, DefaultCacheMax, tr.CacheMax())
}

func Test_Open_Honors_Explicit_Options(t *testing.T) {
	t.Parallel()

	tr := Open(Options{CacheMax: 1024, ScanBudget: 4})
	defer tr.Close()

	require.Equal(t, uint64(1024), tr.CacheMax())
	require.Equal(t, 4, tr.cache.scanBudget)
}

func Test_SetCacheMax_Changes_Threshold_For_Future_Reclaim(t *testing.T) {
	t.Parallel()

	tr := Open(Options{CacheMax: 4096})
	defer tr.Close()

	tr.SetCacheMax(1024)
	require.Equal(t, uint64(1024), tr.CacheMax())
}

func Test_Close_Logs_Leaked_Buffer_And_Drains_Everything(t *testing.T) {
	t.Parallel()

	var logbuf bytes.Buffer
	tr := Open(Options{Logger: log.New(&logbuf, "", 0)})

	b, err := tr.Alloc(0, 16)
	require.NoError(t, err)
	_ = b // leave the extra reference outstanding (refs == 2): a leak

	require.NoError(t, tr.Close())
	require.Contains(t, logbuf.String(), "buffer leak")
	require.Contains(t, logbuf.String(), "refs=2")

	require.Equal(t, uint64(0), tr.CacheSize())
}

func Test_Close_Is_Silent_When_No_Leaks(t *testing.T) {
	t.Parallel()

	var logbuf bytes.Buffer
	tr := Open(Options{Logger: log.New(&logbuf, "", 0)})

	b, err := tr.Alloc(0, 16)
	require.NoError(t, err)
	tr.Release(b)
	tr.Release(b)

	require.NoError(t, tr.Close())
	require.Empty(t, logbuf.String())
}

func Test_Tree_State_And_Cache_Are_Independently_Usable(t *testing.T) {
	t.Parallel()

	tr := Open(Options{})
	defer tr.Close()

	_, err := tr.State.SetBits(0, 4095, FlagLocked)
	require.NoError(t, err)

	b, err := tr.Alloc(0, 4096)
	require.NoError(t, err)
	require.False(t, b.IsDirty(), "setting LOCKED on the state tree does not dirty an unrelated buffer")
	tr.Release(b)
	tr.Release(b)
}
