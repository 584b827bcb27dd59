package extentmap

// unsetDevBytenr marks a Buffer that has never been bound to a device
// position, mirroring the "-1 means unset" convention used throughout the
// original C for the equivalent field.
const unsetDevBytenr = -1

// Buffer is a fixed-size, ref-counted view of device content held in the
// buffer cache. Buffers are only ever obtained from a [Tree] (via Alloc,
// Find, or FindFirstBuffer) and released back to it; there is no exported
// constructor.
type Buffer struct {
	start uint64
	data  []byte
	flags Flags

	device    Device
	devBytenr int64

	refs int

	lruPrev, lruNext *Buffer
}

// Start returns the buffer's logical byte offset in the tree's address
// space (its cache key). The device offset is the one set by SetDevice.
func (b *Buffer) Start() uint64 { return b.start }

// Len returns the buffer's fixed size in bytes.
func (b *Buffer) Len() int { return len(b.data) }

// Flags returns the buffer's current flag bits (FlagDirty, FlagUptodate).
func (b *Buffer) Flags() Flags { return b.flags }

// Refs returns the buffer's current reference count, for diagnostics.
func (b *Buffer) Refs() int { return b.refs }

// SetDevice binds the buffer to a device and the byte offset within it
// that Read and Write operate against. Passing a nil device unbinds it.
func (b *Buffer) SetDevice(dev Device, devBytenr int64) {
	b.device = dev
	b.devBytenr = devBytenr
}

// MarkUptodate marks the buffer's content as safe to read, independent of
// the state tree (SPEC_FULL.md §4.4: uptodate is buffer-local only).
func (b *Buffer) MarkUptodate() {
	b.flags |= FlagUptodate
}

// ClearUptodate marks the buffer's content as stale.
func (b *Buffer) ClearUptodate() {
	b.flags &^= FlagUptodate
}

// IsUptodate reports whether the buffer is currently marked uptodate.
func (b *Buffer) IsUptodate() bool {
	return b.flags&FlagUptodate != 0
}

// IsDirty reports whether the buffer currently carries the dirty flag.
func (b *Buffer) IsDirty() bool {
	return b.flags&FlagDirty != 0
}

// Read fills the buffer's entire content from its bound device at its
// bound offset.
//
// Possible errors: ErrIO, wrapped, on short read or device failure. Panics
// if the buffer has no device bound.
func (b *Buffer) Read() error {
	if b.device == nil || b.devBytenr == unsetDevBytenr {
		panicf("extentmap: Read: buffer at %d has no device bound", b.start)
	}

	n, err := b.device.ReadAt(b.data, b.devBytenr)
	if err != nil {
		return wrapIO(err)
	}
	if n != len(b.data) {
		return wrapIO(errShortIO(n, len(b.data)))
	}

	return nil
}

// Write flushes the buffer's entire content to its bound device at its
// bound offset.
//
// Possible errors: ErrIO, wrapped, on short write or device failure.
// Panics if the buffer has no device bound.
func (b *Buffer) Write() error {
	if b.device == nil || b.devBytenr == unsetDevBytenr {
		panicf("extentmap: Write: buffer at %d has no device bound", b.start)
	}

	n, err := b.device.WriteAt(b.data, b.devBytenr)
	if err != nil {
		return wrapIO(err)
	}
	if n != len(b.data) {
		return wrapIO(errShortIO(n, len(b.data)))
	}

	return nil
}
