//go:build amd64

package persist

import (
	"runtime"
	"unsafe"

	"github.com/klauspost/cpuid/v2"
)

// cacheLineSize is the flush granularity of CLFLUSH/CLFLUSHOPT.
const cacheLineSize = 64

// useCLFlushOpt is resolved once at startup. CLFLUSHOPT is preferred: unlike
// CLFLUSH it is not ordered against other flushes, so a run of lines can be
// flushed back-to-back and ordered with the single trailing SFENCE.
var useCLFlushOpt = cpuid.CPU.Supports(cpuid.CLFLUSHOPT)

// Implemented in flush_amd64.s.
func clflush(addr uintptr)
func clflushopt(addr uintptr)
func sfence()

// CacheLines returns a Flusher that evicts written cache lines directly to
// the persistence domain, and reports whether the platform supports it.
func CacheLines() (Flusher, bool) {
	return cacheLineFlusher{}, true
}

type cacheLineFlusher struct{}

// Flush issues one cache-line flush for every 64-byte-aligned line
// overlapping p. The caller must follow with Fence before relying on
// durability.
func (cacheLineFlusher) Flush(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	first := uintptr(unsafe.Pointer(&p[0])) &^ (cacheLineSize - 1)
	last := uintptr(unsafe.Pointer(&p[len(p)-1])) &^ (cacheLineSize - 1)
	for line := first; ; line += cacheLineSize {
		if useCLFlushOpt {
			clflushopt(line)
		} else {
			clflush(line)
		}
		if line == last {
			break
		}
	}
	runtime.KeepAlive(p)
	return nil
}

func (cacheLineFlusher) Fence() { sfence() }
