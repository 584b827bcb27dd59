package extentmap

// lruList is an intrusive doubly-linked list ordered by recency, oldest at
// head and most-recently-touched at tail. It mirrors the original C's
// struct list_head embedding: the link pointers live directly on Buffer
// (lruPrev/lruNext) rather than in a separate node allocation, so touching
// a buffer never allocates.
type lruList struct {
	head, tail *Buffer
}

func (l *lruList) pushTail(b *Buffer) {
	b.lruPrev, b.lruNext = l.tail, nil
	if l.tail != nil {
		l.tail.lruNext = b
	} else {
		l.head = b
	}
	l.tail = b
}

func (l *lruList) remove(b *Buffer) {
	if b.lruPrev != nil {
		b.lruPrev.lruNext = b.lruNext
	} else if l.head == b {
		l.head = b.lruNext
	}

	if b.lruNext != nil {
		b.lruNext.lruPrev = b.lruPrev
	} else if l.tail == b {
		l.tail = b.lruPrev
	}

	b.lruPrev, b.lruNext = nil, nil
}

// touch moves b to the tail (most-recently-used position).
func (l *lruList) touch(b *Buffer) {
	if l.tail == b {
		return
	}
	l.remove(b)
	l.pushTail(b)
}
