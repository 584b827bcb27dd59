package extentmap

// Device is the positional I/O target a Buffer reads from and writes to.
// Implementations live in package device (golang.org/x/sys/unix-backed for
// real block devices, in-memory for tests and tooling).
//
// Both methods must behave like pread(2)/pwrite(2): they transfer up to
// len(p) bytes at offset without disturbing any implicit file position.
// Buffer.Read and Buffer.Write report any short count as ErrIO, with or
// without an accompanying error.
type Device interface {
	ReadAt(p []byte, offset int64) (int, error)
	WriteAt(p []byte, offset int64) (int, error)
}
