package pmem

import (
	"errors"
	"fmt"

	"github.com/joshuapare/pmemkit/pmem/persist"
)

// Store is an owned registry of live persistent-memory regions over one
// backing device. Each Open establishes a mapping and a root handle; Split
// derives sub-region handles that share the parent's mapping without
// remapping.
//
// A Store is not thread-safe. The region table and the mapped memory are
// shared mutable state; callers must serialize access externally. Within a
// single Write the flush/fence ordering is guaranteed, but nothing provides
// cross-handle atomicity: sibling handles writing overlapping ranges race
// exactly as plain shared-memory writers would.
type Store struct {
	dev      Device
	tab      *table
	max      int
	override persist.Flusher
	mappings []*Mapping
}

// Option configures a Store at construction.
type Option func(*Store)

// WithMaxRegions bounds the number of simultaneously live regions.
// Values below one are ignored.
func WithMaxRegions(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.max = n
		}
	}
}

// WithFlusher overrides the durability primitive chosen by the device.
// Mainly for tests that need to observe or suppress flushes.
func WithFlusher(fl persist.Flusher) Option {
	return func(s *Store) { s.override = fl }
}

// NewStore creates a region store over dev. The store owns nothing until
// the first Open.
func NewStore(dev Device, opts ...Option) *Store {
	s := &Store{dev: dev, max: DefaultMaxRegions}
	for _, opt := range opts {
		opt(s)
	}
	s.tab = newTable(s.max)
	return s
}

// Open maps size bytes of the backing device at offset 0 and returns a
// root handle with its cursor at 0. Fails ErrMapFailed when the device
// cannot be opened or mapped, and ErrCapacityExceeded when the region
// table is full.
func (s *Store) Open(size int64) (Handle, error) {
	if size < 0 {
		return Handle{}, fmt.Errorf("%w: negative region size %d", ErrMapFailed, size)
	}
	if !s.tab.hasFree() {
		return Handle{}, ErrCapacityExceeded
	}
	m, err := s.dev.Map(size)
	if err != nil {
		if errors.Is(err, ErrMapFailed) {
			return Handle{}, err
		}
		return Handle{}, fmt.Errorf("%w: %v", ErrMapFailed, err)
	}
	fl := m.Flusher()
	if s.override != nil {
		fl = s.override
	}
	h, err := s.tab.allocate(m.Bytes(), fl)
	if err != nil {
		_ = m.Close()
		return Handle{}, err
	}
	s.mappings = append(s.mappings, m)
	return h, nil
}

// Split derives a handle for the tail of h starting at pos: the new region
// covers [pos, size) of the parent with its own cursor at 0, sharing the
// parent's backing memory. The parent's cursor is not read or changed.
//
// Requires 0 <= pos <= Size(h), else ErrOutOfRange. Closing the parent
// afterwards keeps the split addressable, since closing never unmaps; the
// mapping itself lives until Release, so a split handle must not be used
// after its store releases the parent mapping.
func (s *Store) Split(h Handle, pos int64) (Handle, error) {
	sl, err := s.tab.lookup(h)
	if err != nil {
		return Handle{}, err
	}
	if pos < 0 || pos > sl.size() {
		return Handle{}, fmt.Errorf("%w: split at %d in region of %d bytes", ErrOutOfRange, pos, sl.size())
	}
	return s.tab.allocate(sl.view[pos:], sl.flusher)
}

// Position returns h's cursor.
func (s *Store) Position(h Handle) (int64, error) {
	sl, err := s.tab.lookup(h)
	if err != nil {
		return 0, err
	}
	return sl.cursor, nil
}

// Size returns h's fixed region size.
func (s *Store) Size(h Handle) (int64, error) {
	sl, err := s.tab.lookup(h)
	if err != nil {
		return 0, err
	}
	return sl.size(), nil
}

// Seek sets h's cursor to offset from the start of the region and returns
// the new cursor. The offset is not clamped against the region size;
// clamping is deferred to the next Read or Write. Negative offsets fail
// ErrOutOfRange, as a cursor outside the mapping is unaddressable.
func (s *Store) Seek(h Handle, offset int64) (int64, error) {
	sl, err := s.tab.lookup(h)
	if err != nil {
		return 0, err
	}
	if offset < 0 {
		return 0, fmt.Errorf("%w: negative seek offset %d", ErrOutOfRange, offset)
	}
	sl.cursor = offset
	return offset, nil
}

// Write copies min(len(p), remaining) bytes to the cursor, flushes every
// cache line overlapping the written range, fences, and advances the
// cursor by the count written. Once Write returns, the written bytes are
// durable against power loss (modulo device guarantees). A short count is
// normal clamping at the end of the region, not an error.
func (s *Store) Write(h Handle, p []byte) (int, error) {
	sl, err := s.tab.lookup(h)
	if err != nil {
		return 0, err
	}
	n := clampCount(len(p), sl.size(), sl.cursor)
	if n > 0 {
		dst := sl.view[sl.cursor : sl.cursor+int64(n)]
		copy(dst, p[:n])
		if err := sl.flusher.Flush(dst); err != nil {
			return 0, fmt.Errorf("pmem: flush written range: %w", err)
		}
	}
	sl.flusher.Fence()
	sl.cursor += int64(n)
	return n, nil
}

// Read fences first, so writes made through cooperating handles over the
// same mapping are observed, then copies min(len(p), remaining) bytes from
// the cursor and advances it. A short count is normal clamping at the end
// of the region.
func (s *Store) Read(h Handle, p []byte) (int, error) {
	sl, err := s.tab.lookup(h)
	if err != nil {
		return 0, err
	}
	sl.flusher.Fence()
	n := clampCount(len(p), sl.size(), sl.cursor)
	if n > 0 {
		copy(p[:n], sl.view[sl.cursor:sl.cursor+int64(n)])
	}
	sl.cursor += int64(n)
	return n, nil
}

// Close frees h's table slot. The underlying mapping stays established:
// splits sharing it remain addressable, and the address range is only
// released by Release. Closing an already-closed or unknown handle fails
// ErrInvalidHandle.
func (s *Store) Close(h Handle) error {
	return s.tab.free(h)
}

// Release invalidates every live handle and unmaps all root mappings.
// After Release the store is empty and can be reused; any byte view a
// caller retained from before Release is dangling.
func (s *Store) Release() error {
	for i := range s.tab.slots {
		sl := &s.tab.slots[i]
		sl.view = nil
		sl.cursor = 0
		sl.flusher = nil
		sl.live = false
	}
	var firstErr error
	for _, m := range s.mappings {
		if err := m.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.mappings = nil
	return firstErr
}

// clampCount bounds a transfer at the bytes remaining between cursor and
// size. A cursor seeked past the end yields zero, never a negative count.
func clampCount(want int, size, cursor int64) int {
	remaining := size - cursor
	if remaining <= 0 {
		return 0
	}
	if int64(want) < remaining {
		return want
	}
	return int(remaining)
}
