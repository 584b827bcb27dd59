// Package extentmap implements an in-memory extent map: a state tree that
// tracks bit-flags over a sparse 64-bit address space as maximal
// contiguous runs, coupled to an LRU-bounded cache of fixed-size buffers
// read from and written to a backing block device.
//
// # Concurrency
//
// A [Tree] is single-threaded cooperative with no internal synchronization.
// Every exported method mutates shared state (the state tree, the buffer
// cache, the LRU list, or the cache-size counter) and assumes the caller
// serializes access. Callers that need concurrent access must wrap a Tree
// with a single mutex at the call site; Tree itself takes no locks.
//
// There are no suspension points: every operation, including [Buffer.Read]
// and [Buffer.Write], blocks the calling goroutine for the duration of a
// synchronous positional I/O call and returns before the next call on the
// same Tree may safely begin.
//
// # Basic usage
//
//	tree := extentmap.Open(extentmap.Options{})
//	defer tree.Close()
//
//	buf, err := tree.Alloc(0, 4096)
//	if err != nil {
//	    // handle ErrOutOfMemory
//	}
//	buf.SetDevice(dev, 0)
//	if err := buf.Read(); err != nil {
//	    // handle ErrIO
//	}
//	tree.MarkDirty(buf)
//	tree.Release(buf)
//
// # Non-goals
//
// The tree never persists itself, never coordinates across processes, and
// never checksums buffer content. All I/O is synchronous and positional;
// there is no async I/O path.
package extentmap
