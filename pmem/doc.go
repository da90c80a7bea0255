// Package pmem exposes byte-addressable, directly-mapped non-volatile
// memory through stream-like operations: open a mapped region over a
// backing device, derive sub-regions without remapping, read and write at
// a tracked cursor, and have every write flushed past the CPU caches and
// fenced before the call returns.
//
// The intended users are low-level storage and allocator code that wants
// raw, synchronous, crash-consistent writes without POSIX-file semantics.
// There is no journaling, no imposed data layout, and no multi-process
// coordination; short reads and writes at the end of a region are normal
// clamping, not errors.
//
// A Store is single-threaded by contract. See Store for the exact sharing
// and lifetime rules, in particular that closing a handle never unmaps and
// that split handles are views bounded by their parent mapping's lifetime.
package pmem
