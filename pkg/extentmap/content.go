package extentmap

import "bytes"

// ReadAt copies length bytes starting at offset start within the buffer
// into dst. Panics if the range falls outside the buffer (SPEC_FULL.md
// §4.6 treats an out-of-range content access as a contract violation, not
// a recoverable error).
func (b *Buffer) ReadAt(dst []byte, start, length int) {
	b.checkRange(start, length)
	copy(dst[:length], b.data[start:start+length])
}

// WriteAt copies length bytes from src into the buffer starting at offset
// start. It does not touch the dirty or uptodate flags; callers are
// expected to call Tree.MarkDirty separately once they have finished
// mutating a buffer.
func (b *Buffer) WriteAt(src []byte, start, length int) {
	b.checkRange(start, length)
	copy(b.data[start:start+length], src[:length])
}

// CopyFrom copies length bytes from src[srcOffset:] into b[dstOffset:].
// src and b may be the same buffer; overlapping source and destination
// ranges within a single buffer are handled correctly (Go's builtin copy
// is memmove-safe), matching copy_extent_buffer/memcpy_extent_buffer in
// the original.
func (b *Buffer) CopyFrom(src *Buffer, dstOffset, srcOffset, length int) {
	b.checkRange(dstOffset, length)
	src.checkRange(srcOffset, length)
	copy(b.data[dstOffset:dstOffset+length], src.data[srcOffset:srcOffset+length])
}

// CopyWithin moves length bytes from srcOffset to dstOffset inside the
// same buffer, correctly handling overlap.
func (b *Buffer) CopyWithin(dstOffset, srcOffset, length int) {
	b.checkRange(dstOffset, length)
	b.checkRange(srcOffset, length)
	copy(b.data[dstOffset:dstOffset+length], b.data[srcOffset:srcOffset+length])
}

// Fill sets length bytes starting at start to c.
func (b *Buffer) Fill(c byte, start, length int) {
	b.checkRange(start, length)
	region := b.data[start : start+length]
	for i := range region {
		region[i] = c
	}
}

// Compare lexically compares length bytes starting at start against
// external, returning a value like bytes.Compare: negative, zero, or
// positive.
func (b *Buffer) Compare(external []byte, start, length int) int {
	b.checkRange(start, length)
	return bytes.Compare(b.data[start:start+length], external[:length])
}

func (b *Buffer) checkRange(start, length int) {
	if start < 0 || length < 0 || start+length > len(b.data) {
		panicf("extentmap: content access [%d, %d) out of range for buffer of length %d", start, start+length, len(b.data))
	}
}
