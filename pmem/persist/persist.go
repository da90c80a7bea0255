// Package persist provides the durability primitives for persistent-memory
// regions: pushing written byte ranges out of the CPU caches toward the
// persistence domain, and fencing so preceding stores are globally ordered.
//
// Two real implementations exist. On amd64 a cache-line flusher issues
// CLFLUSHOPT (or CLFLUSH on older CPUs) per 64-byte line followed by SFENCE.
// Everywhere else, and for regular file backings, an msync flusher syncs
// page-aligned sub-ranges of the mapping. A no-op flusher backs volatile
// memory devices used in tests and benchmarks.
package persist

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/joshuapare/pmemkit/internal/mapmem"
)

// Flusher is the capability a mapped region uses to make writes durable.
//
// Flush pushes the given range toward the persistence domain. Fence orders
// all preceding stores and flushes before subsequent memory operations.
// Implementations are not required to be thread-safe.
type Flusher interface {
	Flush(p []byte) error
	Fence()
}

// Noop returns a Flusher that does nothing. It backs volatile memory
// devices, which make no durability promise.
func Noop() Flusher { return noopFlusher{} }

type noopFlusher struct{}

func (noopFlusher) Flush(p []byte) error { return nil }
func (noopFlusher) Fence()               {}

var pageSize = int64(os.Getpagesize())

// msyncFlusher flushes sub-ranges of a single mapping with msync(MS_SYNC).
// msync requires page-aligned addresses, so ranges are widened to page
// boundaries within the parent mapping before syncing.
type msyncFlusher struct {
	mapping []byte
}

// NewMsync returns a Flusher that syncs ranges of mapping to its backing
// store. Every slice passed to Flush must lie within mapping.
func NewMsync(mapping []byte) Flusher {
	return &msyncFlusher{mapping: mapping}
}

func (f *msyncFlusher) Flush(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	off := subsliceOffset(f.mapping, p)
	if off < 0 {
		return fmt.Errorf("persist: flush range outside mapping")
	}
	// Widen to page boundaries; msync rejects unaligned addresses.
	start := (off / pageSize) * pageSize
	end := off + int64(len(p))
	if rem := end % pageSize; rem != 0 {
		end += pageSize - rem
	}
	if end > int64(len(f.mapping)) {
		end = int64(len(f.mapping))
	}
	return mapmem.Sync(f.mapping[start:end])
}

// Fence is a no-op: msync(MS_SYNC) does not return until the range has
// reached the backing store, so there is nothing left to order.
func (f *msyncFlusher) Fence() {}

// subsliceOffset returns the offset of sub within parent, or -1 when sub
// does not lie entirely inside parent.
func subsliceOffset(parent, sub []byte) int64 {
	if len(parent) == 0 || len(sub) == 0 {
		return -1
	}
	p := uintptr(unsafe.Pointer(&parent[0]))
	s := uintptr(unsafe.Pointer(&sub[0]))
	if s < p || s+uintptr(len(sub)) > p+uintptr(len(parent)) {
		return -1
	}
	return int64(s - p)
}
