package extentmap

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by recoverable failure paths. Callers should
// test against these with errors.Is rather than comparing values directly,
// since operations wrap them with contextual detail.
var (
	// ErrOutOfMemory is returned when an operation needed to allocate a
	// new extent or buffer and the allocator refused. In normal Go
	// operation this essentially never happens; the hook exists so tests
	// can exercise the partial-failure contract described in SPEC_FULL.md
	// §7 (a failed SetBits/ClearBits/Alloc leaves every already-committed
	// sub-range transition in place and returns the error; the address at
	// which it stopped is not reported).
	ErrOutOfMemory = errors.New("extentmap: out of memory")

	// ErrIO is returned when a positional read or write against a Device
	// fails or returns a short count.
	ErrIO = errors.New("extentmap: i/o error")

	// ErrNotFound is returned by SetPrivate/GetPrivate when no extent
	// begins exactly at the requested address.
	ErrNotFound = errors.New("extentmap: not found")
)

func wrapIO(err error) error {
	return fmt.Errorf("%w: %w", ErrIO, err)
}

func errShortIO(got, want int) error {
	return fmt.Errorf("short transfer: got %d bytes, want %d", got, want)
}
