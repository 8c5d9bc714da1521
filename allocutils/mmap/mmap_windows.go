//go:build windows

// Package mmap provisions anonymous page-aligned buffers suitable for use as
// allocator arenas. Page alignment always satisfies the heap package's arena
// alignment rule.
package mmap

import "errors"

var ErrNotSupported = errors.New("mmap not supported on windows")

func Alloc(size int) ([]byte, error) {
	return nil, ErrNotSupported
}

func Free(data []byte) error {
	return nil
}
