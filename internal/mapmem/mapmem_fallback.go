//go:build !unix

// Package mapmem provides platform-specific helpers for mapping device-backed
// regions into the process address space.
package mapmem

import "errors"

// ErrUnsupported is returned on platforms without shared mapping support.
var ErrUnsupported = errors.New("mapmem: shared mappings not supported on this platform")

// Map is unavailable without mmap; persistent regions require a unix platform.
func Map(fd uintptr, size int) ([]byte, func() error, error) {
	return nil, nil, ErrUnsupported
}

// Sync is a no-op without mmap.
func Sync(data []byte) error { return nil }
