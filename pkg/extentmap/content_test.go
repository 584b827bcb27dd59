package extentmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestBuffer(t *testing.T, size int) *Buffer {
	t.Helper()
	tr := Open(Options{})
	t.Cleanup(func() { _ = tr.Close() })
	b, err := tr.Alloc(0, size)
	require.NoError(t, err)
	return b
}

func Test_WriteAt_Then_ReadAt_Roundtrips(t *testing.T) {
	t.Parallel()

	b := newTestBuffer(t, 32)
	src := []byte("hello, extent")
	b.WriteAt(src, 4, len(src))

	dst := make([]byte, len(src))
	b.ReadAt(dst, 4, len(src))
	require.Equal(t, src, dst)
}

func Test_Fill_Sets_Every_Byte_In_Range(t *testing.T) {
	t.Parallel()

	b := newTestBuffer(t, 16)
	b.Fill(0xAB, 4, 8)

	got := make([]byte, 8)
	b.ReadAt(got, 4, 8)
	for _, c := range got {
		require.Equal(t, byte(0xAB), c)
	}

	// Bytes outside the filled range must be untouched (still zero).
	edge := make([]byte, 4)
	b.ReadAt(edge, 0, 4)
	require.Equal(t, []byte{0, 0, 0, 0}, edge)
}

func Test_CopyWithin_Handles_Forward_Overlap(t *testing.T) {
	t.Parallel()

	b := newTestBuffer(t, 16)
	b.WriteAt([]byte{1, 2, 3, 4, 5}, 0, 5)

	// Shift right into an overlapping region: must behave like memmove.
	b.CopyWithin(2, 0, 5)

	got := make([]byte, 7)
	b.ReadAt(got, 0, 7)
	require.Equal(t, []byte{1, 2, 1, 2, 3, 4, 5}, got)
}

func Test_CopyFrom_Copies_Between_Distinct_Buffers(t *testing.T) {
	t.Parallel()

	tr := Open(Options{})
	defer tr.Close()

	src, err := tr.Alloc(0, 16)
	require.NoError(t, err)
	dst, err := tr.Alloc(100, 16)
	require.NoError(t, err)

	src.WriteAt([]byte{9, 9, 9, 9}, 0, 4)
	dst.CopyFrom(src, 4, 0, 4)

	got := make([]byte, 4)
	dst.ReadAt(got, 4, 4)
	require.Equal(t, []byte{9, 9, 9, 9}, got)
}

func Test_Compare_Matches_Bytes_Compare_Semantics(t *testing.T) {
	t.Parallel()

	b := newTestBuffer(t, 8)
	b.WriteAt([]byte{1, 2, 3}, 0, 3)

	require.Equal(t, 0, b.Compare([]byte{1, 2, 3}, 0, 3))
	require.Negative(t, b.Compare([]byte{1, 2, 4}, 0, 3))
	require.Positive(t, b.Compare([]byte{1, 2, 2}, 0, 3))
}

func Test_ReadAt_Out_Of_Range_Panics(t *testing.T) {
	t.Parallel()

	b := newTestBuffer(t, 8)
	require.Panics(t, func() {
		b.ReadAt(make([]byte, 4), 6, 4)
	})
}
