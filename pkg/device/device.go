// Package device provides positional I/O backends satisfying
// extentmap.Device: a real one backed by an *os.File via
// golang.org/x/sys/unix.Pread/Pwrite, and an in-memory one for tests and
// tooling that don't need a real block device.
package device

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Real is a Device backed by an open file descriptor, typically a block
// device node or a regular file standing in for one.
type Real struct {
	f *os.File
}

// Open opens path for reading and writing and wraps it as a Real device.
func Open(path string) (*Real, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("device: open %s: %w", path, err)
	}
	return &Real{f: f}, nil
}

// ReadAt issues a single pread of len(p) bytes at offset without moving
// the file's implicit position. It may return fewer bytes with a nil
// error (for example at end of file).
func (r *Real) ReadAt(p []byte, offset int64) (int, error) {
	n, err := unix.Pread(int(r.f.Fd()), p, offset)
	if err != nil {
		return n, fmt.Errorf("device: pread at %d: %w", offset, err)
	}
	return n, nil
}

// WriteAt issues a single pwrite of len(p) bytes at offset without moving
// the file's implicit position. It may return fewer bytes with a nil
// error.
func (r *Real) WriteAt(p []byte, offset int64) (int, error) {
	n, err := unix.Pwrite(int(r.f.Fd()), p, offset)
	if err != nil {
		return n, fmt.Errorf("device: pwrite at %d: %w", offset, err)
	}
	return n, nil
}

// Close closes the underlying file.
func (r *Real) Close() error {
	return r.f.Close()
}
