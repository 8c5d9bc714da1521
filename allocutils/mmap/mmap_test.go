//go:build unix

package mmap_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/arenakit/ctalloc/allocutils/heap"
	"github.com/arenakit/ctalloc/allocutils/mmap"
)

func TestAllocProvidesUsableArena(t *testing.T) {
	buf, err := mmap.Alloc(1 << 16)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, mmap.Free(buf))
	}()

	require.Len(t, buf, 1<<16)
	require.Zero(t, uintptr(unsafe.Pointer(&buf[0]))%uintptr(heap.Alignment))

	h, err := heap.NewInstance(buf)
	require.NoError(t, err)

	p := h.Allocate(1024)
	require.NotNil(t, p)
	require.NoError(t, h.Validate())
	h.Free(p)
	require.True(t, h.IsEmpty())
}
