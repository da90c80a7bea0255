package pmem

import "github.com/joshuapare/pmemkit/pmem/persist"

// DefaultMaxRegions is the default bound on simultaneously live regions.
// The table never grows; exceeding the bound fails ErrCapacityExceeded.
const DefaultMaxRegions = 100

// Handle is an opaque token for a live region. A Handle stays valid until
// the region is closed; the generation stamp makes a reused slot reject
// tokens from its previous life.
type Handle struct {
	index uint32
	gen   uint32
}

// IsZero reports whether h is the zero Handle, which never refers to a
// live region.
func (h Handle) IsZero() bool { return h.gen == 0 }

// slot is one region table entry. A slot is free exactly when its view is
// unset; live tracks the same state explicitly so that zero-length live
// regions stay distinguishable from free slots.
type slot struct {
	view    []byte
	cursor  int64
	flusher persist.Flusher
	gen     uint32
	live    bool
}

func (s *slot) size() int64 { return int64(len(s.view)) }

// table is a fixed-capacity arena of region slots.
type table struct {
	slots []slot
}

func newTable(capacity int) *table {
	return &table{slots: make([]slot, capacity)}
}

func (t *table) hasFree() bool {
	for i := range t.slots {
		if !t.slots[i].live {
			return true
		}
	}
	return false
}

// allocate claims the first free slot for the given view.
func (t *table) allocate(view []byte, fl persist.Flusher) (Handle, error) {
	for i := range t.slots {
		s := &t.slots[i]
		if s.live {
			continue
		}
		s.view = view
		s.cursor = 0
		s.flusher = fl
		s.gen++
		s.live = true
		return Handle{index: uint32(i), gen: s.gen}, nil
	}
	return Handle{}, ErrCapacityExceeded
}

// lookup resolves h to its live slot.
func (t *table) lookup(h Handle) (*slot, error) {
	if h.gen == 0 || int(h.index) >= len(t.slots) {
		return nil, ErrInvalidHandle
	}
	s := &t.slots[h.index]
	if !s.live || s.gen != h.gen {
		return nil, ErrInvalidHandle
	}
	return s, nil
}

// free releases h's slot for reuse. The cursor resets so a recycled slot
// starts clean.
func (t *table) free(h Handle) error {
	s, err := t.lookup(h)
	if err != nil {
		return err
	}
	s.view = nil
	s.cursor = 0
	s.flusher = nil
	s.live = false
	return nil
}
