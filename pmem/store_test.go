package pmem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore builds a store over a file-backed device in a temp dir.
func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	dev := FileDevice{Path: filepath.Join(t.TempDir(), "pmem.bin")}
	s := NewStore(dev, opts...)
	t.Cleanup(func() { _ = s.Release() })
	return s
}

// TestOpenBasics checks a fresh root handle's geometry.
func TestOpenBasics(t *testing.T) {
	s := newTestStore(t)

	h, err := s.Open(4096)
	require.NoError(t, err, "Open should succeed")
	require.False(t, h.IsZero(), "a live handle is never the zero Handle")

	size, err := s.Size(h)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), size, "size is fixed at creation")

	pos, err := s.Position(h)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos, "cursor starts at 0")
}

// TestWriteReadRoundTrip is the hello scenario: write, seek back, read the
// same bytes.
func TestWriteReadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	h, err := s.Open(4096)
	require.NoError(t, err)

	n, err := s.Write(h, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	pos, err := s.Position(h)
	require.NoError(t, err)
	assert.Equal(t, int64(5), pos, "write advances the cursor by the count written")

	pos, err = s.Seek(h, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos, "Seek returns the new cursor")

	buf := make([]byte, 5)
	n, err = s.Read(h, buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("hello"), buf)
}

// TestWriteClampsAtEnd: 3 bytes remaining, write of 10 transfers 3 and
// leaves the cursor at the end.
func TestWriteClampsAtEnd(t *testing.T) {
	s := newTestStore(t)
	h, err := s.Open(8)
	require.NoError(t, err)

	_, err = s.Seek(h, 5)
	require.NoError(t, err)

	n, err := s.Write(h, make([]byte, 10))
	require.NoError(t, err, "a short write is clamping, not an error")
	assert.Equal(t, 3, n, "only the remaining bytes transfer")

	pos, err := s.Position(h)
	require.NoError(t, err)
	assert.Equal(t, int64(8), pos, "cursor ends at size")
}

// TestReadClampsAtEnd mirrors the write clamp on the read side.
func TestReadClampsAtEnd(t *testing.T) {
	s := newTestStore(t)
	h, err := s.Open(8)
	require.NoError(t, err)

	_, err = s.Seek(h, 6)
	require.NoError(t, err)

	n, err := s.Read(h, make([]byte, 10))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.Read(h, make([]byte, 10))
	require.NoError(t, err)
	assert.Equal(t, 0, n, "reads at the end transfer nothing")
}

// TestSeekPastEnd: seeking is unclamped; the next transfer clamps to zero
// instead of faulting.
func TestSeekPastEnd(t *testing.T) {
	s := newTestStore(t)
	h, err := s.Open(64)
	require.NoError(t, err)

	pos, err := s.Seek(h, 1000)
	require.NoError(t, err, "seek does not bounds-check")
	assert.Equal(t, int64(1000), pos)

	n, err := s.Write(h, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, 0, n, "remaining is negative, clamped to zero")

	n, err = s.Read(h, make([]byte, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSeekNegative(t *testing.T) {
	s := newTestStore(t)
	h, err := s.Open(64)
	require.NoError(t, err)

	_, err = s.Seek(h, -1)
	require.ErrorIs(t, err, ErrOutOfRange, "a negative cursor is unaddressable")
}

// TestSplitGeometry is the split scenario: split(h, 4000) yields a 96-byte
// region whose writes land at parent offset 4000.
func TestSplitGeometry(t *testing.T) {
	s := newTestStore(t)
	h, err := s.Open(4096)
	require.NoError(t, err)

	// Move the parent cursor so we can check Split leaves it alone.
	_, err = s.Seek(h, 123)
	require.NoError(t, err)

	h2, err := s.Split(h, 4000)
	require.NoError(t, err, "Split should succeed")

	size, err := s.Size(h2)
	require.NoError(t, err)
	assert.Equal(t, int64(96), size, "split size is parent size minus pos")

	pos, err := s.Position(h2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos, "split cursor starts at 0")

	pos, err = s.Position(h)
	require.NoError(t, err)
	assert.Equal(t, int64(123), pos, "Split must not touch the parent cursor")

	// Write through the split, read through the parent at pos.
	n, err := s.Write(h2, []byte("X"))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = s.Seek(h, 4000)
	require.NoError(t, err)
	buf := make([]byte, 1)
	n, err = s.Read(h, buf)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, []byte("X"), buf, "split shares the parent's backing memory")

	// And the other direction: parent writes are visible via the split.
	_, err = s.Seek(h, 4001)
	require.NoError(t, err)
	_, err = s.Write(h, []byte("Y"))
	require.NoError(t, err)

	_, err = s.Seek(h2, 1)
	require.NoError(t, err)
	n, err = s.Read(h2, buf)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, []byte("Y"), buf)
}

func TestSplitBounds(t *testing.T) {
	s := newTestStore(t)
	h, err := s.Open(64)
	require.NoError(t, err)

	_, err = s.Split(h, -1)
	require.ErrorIs(t, err, ErrOutOfRange)

	_, err = s.Split(h, 65)
	require.ErrorIs(t, err, ErrOutOfRange)

	// pos == size is allowed and yields an empty region.
	h2, err := s.Split(h, 64)
	require.NoError(t, err)
	size, err := s.Size(h2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)

	_, err = s.Split(Handle{}, 0)
	require.ErrorIs(t, err, ErrInvalidHandle)
}

// TestCapacity: the (N+1)-th live region fails, and closing one frees a
// slot for reuse.
func TestCapacity(t *testing.T) {
	s := NewStore(MemoryDevice{}, WithMaxRegions(4))

	handles := make([]Handle, 4)
	for i := range handles {
		h, err := s.Open(64)
		require.NoError(t, err, "open %d of 4 should succeed", i+1)
		handles[i] = h
	}

	_, err := s.Open(64)
	require.ErrorIs(t, err, ErrCapacityExceeded, "the 5th open must fail")

	// Splits occupy slots too.
	_, err = s.Split(handles[0], 0)
	require.ErrorIs(t, err, ErrCapacityExceeded)

	require.NoError(t, s.Close(handles[2]))

	h, err := s.Open(64)
	require.NoError(t, err, "a freed slot is reusable")
	require.False(t, h.IsZero())
}

// TestCloseInvalidatesHandle: every operation on a freed or zero token
// fails ErrInvalidHandle, including a second Close.
func TestCloseInvalidatesHandle(t *testing.T) {
	s := newTestStore(t)
	h, err := s.Open(64)
	require.NoError(t, err)
	require.NoError(t, s.Close(h))

	_, err = s.Position(h)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, err = s.Size(h)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, err = s.Seek(h, 0)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, err = s.Write(h, []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, err = s.Read(h, make([]byte, 1))
	assert.ErrorIs(t, err, ErrInvalidHandle)
	assert.ErrorIs(t, s.Close(h), ErrInvalidHandle, "double close is rejected")

	var zero Handle
	assert.True(t, zero.IsZero())
	_, err = s.Position(zero)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

// TestStaleHandleAfterSlotReuse: a recycled slot must reject tokens from
// its previous life.
func TestStaleHandleAfterSlotReuse(t *testing.T) {
	s := NewStore(MemoryDevice{}, WithMaxRegions(1))

	h1, err := s.Open(64)
	require.NoError(t, err)
	require.NoError(t, s.Close(h1))

	h2, err := s.Open(64)
	require.NoError(t, err, "the single slot should be reused")

	_, err = s.Position(h1)
	assert.ErrorIs(t, err, ErrInvalidHandle, "the old token must stay dead")

	pos, err := s.Position(h2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)
}

// TestCloseParentKeepsSplitAddressable: closing a root frees only its
// slot; the mapping stays until Release, so the split still works.
func TestCloseParentKeepsSplitAddressable(t *testing.T) {
	s := newTestStore(t)
	h, err := s.Open(4096)
	require.NoError(t, err)
	h2, err := s.Split(h, 1024)
	require.NoError(t, err)

	require.NoError(t, s.Close(h))

	n, err := s.Write(h2, []byte("still here"))
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	_, err = s.Seek(h2, 0)
	require.NoError(t, err)
	buf := make([]byte, 10)
	n, err = s.Read(h2, buf)
	require.NoError(t, err)
	require.Equal(t, 10, n)
	assert.Equal(t, []byte("still here"), buf)
}

func TestReleaseInvalidatesEverything(t *testing.T) {
	dev := FileDevice{Path: filepath.Join(t.TempDir(), "pmem.bin")}
	s := NewStore(dev)

	h, err := s.Open(4096)
	require.NoError(t, err)
	h2, err := s.Split(h, 2048)
	require.NoError(t, err)

	require.NoError(t, s.Release())

	_, err = s.Position(h)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, err = s.Position(h2)
	assert.ErrorIs(t, err, ErrInvalidHandle)

	// The store is reusable after Release.
	h, err = s.Open(64)
	require.NoError(t, err)
	require.NoError(t, s.Close(h))
	require.NoError(t, s.Release())
}

func TestOpenNegativeSize(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Open(-1)
	require.ErrorIs(t, err, ErrMapFailed)
}

func TestZeroSizeRegion(t *testing.T) {
	s := NewStore(MemoryDevice{})
	h, err := s.Open(0)
	require.NoError(t, err)

	size, err := s.Size(h)
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)

	n, err := s.Write(h, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = s.Read(h, make([]byte, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// TestFileDeviceDurability: written bytes must be in the backing file when
// Write returns, not just in the page cache copy we can see.
func TestFileDeviceDurability(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pmem.bin")
	s := NewStore(FileDevice{Path: path})

	h, err := s.Open(4096)
	require.NoError(t, err)
	_, err = s.Seek(h, 100)
	require.NoError(t, err)
	n, err := s.Write(h, []byte("durable payload"))
	require.NoError(t, err)
	require.Equal(t, 15, n)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(raw), 115)
	assert.Equal(t, []byte("durable payload"), raw[100:115])
}

func TestFileDeviceBlockAlignedBacking(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pmem.bin")
	s := NewStore(FileDevice{Path: path})

	_, err := s.Open(1000)
	require.NoError(t, err)

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), st.Size(), "backing file rounds up to whole blocks")
}

func TestMapFailedOnMissingDevice(t *testing.T) {
	s := NewStore(DAXDevice{Path: filepath.Join(t.TempDir(), "no-such-dax")})
	_, err := s.Open(4096)
	require.ErrorIs(t, err, ErrMapFailed)
}

// recordingFlusher counts flush and fence activity for durability tests.
type recordingFlusher struct {
	flushes int
	flushed int
	fences  int
}

func (f *recordingFlusher) Flush(p []byte) error {
	f.flushes++
	f.flushed += len(p)
	return nil
}

func (f *recordingFlusher) Fence() { f.fences++ }

// TestWriteFlushesBeforeReturn: every Write flushes exactly the written
// range and issues one fence; Read fences without flushing.
func TestWriteFlushesBeforeReturn(t *testing.T) {
	fl := &recordingFlusher{}
	s := NewStore(MemoryDevice{}, WithFlusher(fl))

	h, err := s.Open(64)
	require.NoError(t, err)

	_, err = s.Write(h, make([]byte, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, fl.flushes)
	assert.Equal(t, 10, fl.flushed, "the flushed range covers the written bytes")
	assert.Equal(t, 1, fl.fences, "one fence per write")

	// A clamped write flushes only what landed.
	_, err = s.Seek(h, 60)
	require.NoError(t, err)
	n, err := s.Write(h, make([]byte, 10))
	require.NoError(t, err)
	require.Equal(t, 4, n)
	assert.Equal(t, 14, fl.flushed)
	assert.Equal(t, 2, fl.fences)

	// A fully clamped write still fences, but has nothing to flush.
	n, err = s.Write(h, make([]byte, 10))
	require.NoError(t, err)
	require.Equal(t, 0, n)
	assert.Equal(t, 2, fl.flushes)
	assert.Equal(t, 3, fl.fences)

	// Read fences first to observe cooperating writers, never flushes.
	_, err = s.Seek(h, 0)
	require.NoError(t, err)
	_, err = s.Read(h, make([]byte, 8))
	require.NoError(t, err)
	assert.Equal(t, 2, fl.flushes)
	assert.Equal(t, 4, fl.fences)
}
