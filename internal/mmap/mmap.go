// Package mmap wraps the raw anonymous-mapping syscalls internal/arena
// builds its backing buffer from. Every block this module hands out —
// resident sequence/vector ends, pool free lists, stream read-ahead
// buffers — ultimately lives inside one of these mappings, so a page
// fault here surfaces long before any block device is touched.
package mmap

import (
	"fmt"
	"syscall"
)

// New maps size bytes of anonymous, non-file-backed memory. The kernel
// backs the mapping in whole pages, but the returned slice's length is
// exactly size. The memory is not garbage
// collected; the caller must call Free exactly once when done with it.
func New(size int) ([]byte, error) {
	if size < 1 {
		return nil, fmt.Errorf("mmap: invalid size; size must be greater than 0: %d", size)
	}

	data, err := syscall.Mmap(-1, 0, size,
		syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_ANON|syscall.MAP_PRIVATE,
	)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}

	return data, nil
}

// Free unmaps a region previously returned by New.
func Free(data []byte) error {
	if err := syscall.Munmap(data); err != nil {
		return fmt.Errorf("mmap: unmap: %w", err)
	}
	return nil
}
