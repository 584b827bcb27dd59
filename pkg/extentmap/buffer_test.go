package extentmap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/extentcue/extentmap/pkg/device"
)

func Test_Buffer_Read_Write_Roundtrip_Through_Device(t *testing.T) {
	t.Parallel()

	dev := device.NewMem()
	_, err := dev.WriteAt([]byte("on-disk content!"), 512)
	require.NoError(t, err)

	tr := Open(Options{})
	defer tr.Close()

	b, err := tr.Alloc(0, 16)
	require.NoError(t, err)
	b.SetDevice(dev, 512)

	require.NoError(t, b.Read())
	require.False(t, b.IsUptodate())
	b.MarkUptodate()
	require.True(t, b.IsUptodate())

	got := make([]byte, 16)
	b.ReadAt(got, 0, 16)
	require.Equal(t, []byte("on-disk content!"), got)

	b.WriteAt([]byte("mutated!!!!!!!!!"), 0, 16)
	require.NoError(t, b.Write())

	readBack := make([]byte, 16)
	_, err = dev.ReadAt(readBack, 512)
	require.NoError(t, err)
	require.Equal(t, []byte("mutated!!!!!!!!!"), readBack)
}

func Test_Buffer_Read_Without_Device_Panics(t *testing.T) {
	t.Parallel()

	tr := Open(Options{})
	defer tr.Close()

	b, err := tr.Alloc(0, 16)
	require.NoError(t, err)

	require.Panics(t, func() { _ = b.Read() })
}

type shortDevice struct{}

func (shortDevice) ReadAt(p []byte, offset int64) (int, error)  { return len(p) - 1, nil }
func (shortDevice) WriteAt(p []byte, offset int64) (int, error) { return len(p) - 1, nil }

func Test_Buffer_Read_Short_Count_Reports_IO_Error(t *testing.T) {
	t.Parallel()

	tr := Open(Options{})
	defer tr.Close()

	b, err := tr.Alloc(0, 16)
	require.NoError(t, err)
	b.SetDevice(shortDevice{}, 0)

	err = b.Read()
	require.ErrorIs(t, err, ErrIO)
}
