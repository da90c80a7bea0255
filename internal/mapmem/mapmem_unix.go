//go:build unix

package mapmem

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Map establishes a shared read-write mapping of size bytes over fd at offset 0.
// The returned cleanup releases the mapping; double-unmap is a no-op.
func Map(fd uintptr, size int) ([]byte, func() error, error) {
	if size < 0 {
		return nil, nil, fmt.Errorf("mapmem: negative mapping size %d", size)
	}
	if size == 0 {
		return []byte{}, func() error { return nil }, nil
	}
	data, err := unix.Mmap(int(fd), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() error {
		if data == nil {
			return nil
		}
		err := unix.Munmap(data)
		data = nil
		if errors.Is(err, unix.EINVAL) {
			return nil
		}
		return err
	}
	return data, cleanup, nil
}

// Sync flushes a mapped range to the backing store synchronously.
// The range must start on a page boundary of the original mapping.
func Sync(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Msync(data, unix.MS_SYNC)
}
