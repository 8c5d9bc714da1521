package heap_test

import (
	"fmt"

	"github.com/arenakit/ctalloc/allocutils/heap"
)

func Example() {
	arena := alignedBuffer(64 * 1024)
	h, err := heap.NewInstance(arena)
	if err != nil {
		panic(err)
	}

	p := h.Allocate(100)
	fmt.Println("allocated:", p != nil)

	diag := h.Diagnostics()
	fmt.Println("in use:", diag.Allocated > 0)

	h.Free(p)
	fmt.Println("empty again:", h.IsEmpty())

	// Output:
	// allocated: true
	// in use: true
	// empty again: true
}
