//go:build !amd64

package persist

// CacheLines reports that no cache-line flush primitive exists on this
// architecture. Callers fall back to an msync flusher over the mapping.
func CacheLines() (Flusher, bool) {
	return nil, false
}
