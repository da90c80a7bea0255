package pmem

import (
	"fmt"
	"math"
	"os"

	"github.com/joshuapare/pmemkit/internal/mapmem"
	"github.com/joshuapare/pmemkit/pmem/persist"
)

// Device is a backing for persistent-memory regions. Implementations
// establish one shared read-write mapping per Map call, always at device
// offset 0; deriving sub-regions afterwards never remaps.
type Device interface {
	Map(size int64) (*Mapping, error)
}

// Mapping is an established mapping over a device: the mapped bytes, the
// durability primitive appropriate for the backing, and the unmap hook.
type Mapping struct {
	data    []byte
	flusher persist.Flusher
	cleanup func() error
}

// Bytes returns the mapped byte range.
func (m *Mapping) Bytes() []byte { return m.data }

// Flusher returns the durability primitive for this mapping.
func (m *Mapping) Flusher() persist.Flusher { return m.flusher }

// Close releases the mapping. Every byte view derived from it becomes
// invalid; addressing one afterwards is a use-after-unmap.
func (m *Mapping) Close() error {
	if m.cleanup == nil {
		return nil
	}
	err := m.cleanup()
	m.cleanup = nil
	m.data = nil
	return err
}

// DAXDevice maps a directly-accessible persistent-memory character device
// (for example /dev/dax0.0) into the process address space. Loads and
// stores hit the persistence domain directly; writes are made durable with
// cache-line flushes and a store fence where the CPU supports it, and with
// msync otherwise.
type DAXDevice struct {
	Path string
}

func (d DAXDevice) Map(size int64) (*Mapping, error) {
	f, err := os.OpenFile(d.Path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrMapFailed, d.Path, err)
	}
	defer f.Close() // safe before return; the mapping keeps the device open

	data, cleanup, err := mapSized(f.Fd(), size)
	if err != nil {
		return nil, fmt.Errorf("%w: map %s: %v", ErrMapFailed, d.Path, err)
	}
	fl, ok := persist.CacheLines()
	if !ok {
		fl = persist.NewMsync(data)
	}
	return &Mapping{data: data, flusher: fl, cleanup: cleanup}, nil
}

// FileDevice backs regions with a regular file, created on first use and
// sized up to a whole number of blocks. Durability goes through msync, so
// it is only as strong as the filesystem underneath; it is intended for
// development and tests rather than as a real persistence domain.
type FileDevice struct {
	Path string

	// BlockSize controls how the backing file is sized; zero means
	// MinBlockSize.
	BlockSize BlockSize
}

func (d FileDevice) Map(size int64) (*Mapping, error) {
	bs := d.BlockSize
	if bs <= 0 {
		bs = MinBlockSize
	}
	f, err := os.OpenFile(d.Path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrMapFailed, d.Path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", ErrMapFailed, d.Path, err)
	}
	if want := bs.CeilAlign(size); st.Size() < want {
		if err := f.Truncate(want); err != nil {
			return nil, fmt.Errorf("%w: grow %s to %d bytes: %v", ErrMapFailed, d.Path, want, err)
		}
	}

	data, cleanup, err := mapSized(f.Fd(), size)
	if err != nil {
		return nil, fmt.Errorf("%w: map %s: %v", ErrMapFailed, d.Path, err)
	}
	return &Mapping{data: data, flusher: persist.NewMsync(data), cleanup: cleanup}, nil
}

// MemoryDevice backs regions with plain process memory. Nothing survives a
// crash; flushes are no-ops. It mirrors the mapped devices closely enough
// for tests and benchmarks of code built on top.
type MemoryDevice struct{}

func (MemoryDevice) Map(size int64) (*Mapping, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative region size %d", ErrMapFailed, size)
	}
	return &Mapping{
		data:    make([]byte, size),
		flusher: persist.Noop(),
	}, nil
}

func mapSized(fd uintptr, size int64) ([]byte, func() error, error) {
	if size < 0 || size > math.MaxInt {
		return nil, nil, fmt.Errorf("bad mapping size %d", size)
	}
	return mapmem.Map(fd, int(size))
}
