package pmem

import "errors"

var (
	// ErrCapacityExceeded indicates the region table holds its maximum
	// number of live handles; close one before opening or splitting.
	ErrCapacityExceeded = errors.New("pmem: region table full")

	// ErrMapFailed indicates the backing device could not be opened or mapped.
	ErrMapFailed = errors.New("pmem: mapping failed")

	// ErrInvalidHandle indicates a zero, stale, or already-closed handle.
	ErrInvalidHandle = errors.New("pmem: invalid region handle")

	// ErrOutOfRange indicates a split position or seek offset outside the
	// acceptable range.
	ErrOutOfRange = errors.New("pmem: offset out of range")
)
