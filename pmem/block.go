package pmem

// BlockSize expresses the alignment granularity of a backing device.
// Callers doing O_DIRECT-style I/O align their offsets and lengths with it;
// FileDevice rounds its backing file up to a whole number of blocks.
type BlockSize int64

// MinBlockSize is the smallest supported block size, matching the common
// logical sector size of block devices.
const MinBlockSize BlockSize = 512

// IsAligned reports whether n is a multiple of the block size.
func (b BlockSize) IsAligned(n int64) bool {
	return n%int64(b) == 0
}

// CeilAlign rounds n up to the next block boundary.
func (b BlockSize) CeilAlign(n int64) int64 {
	bs := int64(b)
	return (n + bs - 1) / bs * bs
}

// FloorAlign rounds n down to the previous block boundary.
func (b BlockSize) FloorAlign(n int64) int64 {
	return n / int64(b) * int64(b)
}
