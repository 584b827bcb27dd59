package device

// Mem is an in-memory Device useful for tests, growing on demand like a
// sparse file would.
type Mem struct {
	data []byte
}

// NewMem returns an empty in-memory device.
func NewMem() *Mem {
	return &Mem{}
}

func (m *Mem) grow(to int) {
	if to <= len(m.data) {
		return
	}
	next := make([]byte, to)
	copy(next, m.data)
	m.data = next
}

// ReadAt reads len(p) bytes at offset, zero-filling any portion past the
// device's current extent (a sparse file reads back as zero).
func (m *Mem) ReadAt(p []byte, offset int64) (int, error) {
	for i := range p {
		idx := offset + int64(i)
		if idx < int64(len(m.data)) {
			p[i] = m.data[idx]
		} else {
			p[i] = 0
		}
	}
	return len(p), nil
}

// WriteAt writes len(p) bytes at offset, growing the backing slice as needed.
func (m *Mem) WriteAt(p []byte, offset int64) (int, error) {
	m.grow(int(offset) + len(p))
	copy(m.data[offset:], p)
	return len(p), nil
}

// Size returns the device's current extent in bytes.
func (m *Mem) Size() int {
	return len(m.data)
}
