package pmem

import (
	"fmt"
	"io"
)

// Region binds a handle to its store as an io.ReadWriteSeeker, so region
// bytes can flow through code written against the standard interfaces.
// All calls delegate to the store; a Region adds no state beyond the pair.
type Region struct {
	store *Store
	h     Handle
}

// Region wraps h for stream-style access.
func (s *Store) Region(h Handle) *Region {
	return &Region{store: s, h: h}
}

// Handle returns the wrapped handle.
func (r *Region) Handle() Handle { return r.h }

// Read implements io.Reader. At the end of the region it returns io.EOF
// rather than the bare zero count of the handle API.
func (r *Region) Read(p []byte) (int, error) {
	n, err := r.store.Read(r.h, p)
	if err != nil {
		return n, err
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write implements io.Writer. A write clamped at the end of the region
// returns io.ErrShortWrite with the count actually written, since io.Writer
// forbids silent short writes.
func (r *Region) Write(p []byte) (int, error) {
	n, err := r.store.Write(r.h, p)
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Seek implements io.Seeker. The whence forms are converted to an absolute
// offset from the start; negative results fail ErrOutOfRange. Seeking past
// the end is allowed, matching the handle API.
func (r *Region) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		pos, err := r.store.Position(r.h)
		if err != nil {
			return 0, err
		}
		abs = pos + offset
	case io.SeekEnd:
		size, err := r.store.Size(r.h)
		if err != nil {
			return 0, err
		}
		abs = size + offset
	default:
		return 0, fmt.Errorf("%w: bad seek whence %d", ErrOutOfRange, whence)
	}
	return r.store.Seek(r.h, abs)
}

// Close frees the handle's table slot. See Store.Close for what stays
// mapped afterwards.
func (r *Region) Close() error { return r.store.Close(r.h) }

// Position returns the cursor.
func (r *Region) Position() (int64, error) { return r.store.Position(r.h) }

// Size returns the fixed region size.
func (r *Region) Size() (int64, error) { return r.store.Size(r.h) }
