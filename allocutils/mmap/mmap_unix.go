//go:build unix

// Package mmap provisions anonymous page-aligned buffers suitable for use as
// allocator arenas. Page alignment always satisfies the heap package's arena
// alignment rule.
package mmap

import (
	"golang.org/x/sys/unix"
)

// Alloc maps size bytes of zeroed anonymous memory.
func Alloc(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

// Free releases a buffer obtained from Alloc. The buffer must not be used
// afterwards.
func Free(data []byte) error {
	return unix.Munmap(data)
}
