// Package heap implements a constant-time block allocator over a single
// caller-supplied arena. Allocate and Free complete in O(1) worst case: free
// fragments are filed in power-of-two size-class bins, a word-sized bitmask
// marks the nonempty bins, and a single bit scan locates the smallest bin
// whose every member can satisfy a request. Freed fragments coalesce with
// their physical neighbors immediately, so fragmentation stays bounded and
// predictable. The allocator never blocks, never spins, and never calls back
// into user code except through the critical-section hooks.
//
// The allocator itself lives at the head of the arena: the instance record
// and every fragment header are plain machine words written through typed
// pointers into the arena. The Instance value returned by NewInstance is a
// thin handle that pins the arena for the garbage collector and carries the
// critical-section hooks.
package heap

import (
	"math"
	"math/bits"
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"

	"github.com/arenakit/ctalloc/allocutils"
)

const (
	// Alignment is the required arena base alignment and the alignment of
	// every pointer returned by Allocate. It equals the size of a fragment
	// header: four machine words.
	Alignment = int(4 * unsafe.Sizeof(uintptr(0)))

	// FragmentSizeMin is the smallest legal fragment: one header plus
	// Alignment bytes of payload.
	FragmentSizeMin = 2 * Alignment

	// FragmentSizeMax is the largest power of two representable in a machine
	// word, and the upper bound on both fragment sizes and arena capacity.
	FragmentSizeMax = uint(math.MaxUint>>1) + 1

	binCount = bits.UintSize
)

// fragment is the in-arena header of one block. The first four fields span
// exactly Alignment bytes and exist for the life of the fragment; the free
// links overlay the start of the payload region and are meaningful only while
// the fragment is free.
type fragment struct {
	next *fragment
	prev *fragment
	size int
	used bool

	nextFree *fragment
	prevFree *fragment
}

// instanceRecord sits at the base of the arena, before the first fragment.
// Only machine words live here; the critical-section hooks stay on Instance
// so their closures remain visible to the garbage collector.
type instanceRecord struct {
	bins         [binCount]*fragment
	nonemptyMask uint
	diagnostics  Diagnostics
}

const (
	instanceSize = (int(unsafe.Sizeof(instanceRecord{})) + Alignment - 1) & ^(Alignment - 1)

	// MinArenaSize is the smallest arena NewInstance accepts: the instance
	// record plus one minimal fragment.
	MinArenaSize = instanceSize + FragmentSizeMin
)

// Diagnostics is the allocator's shadow state. All fields are byte counts
// except OOMCount. Allocated covers fragment headers as well as payloads, so
// it is always a multiple of FragmentSizeMin. PeakAllocated, PeakRequestSize,
// and OOMCount are monotone nondecreasing for the life of the instance.
type Diagnostics struct {
	Capacity        int
	Allocated       int
	PeakAllocated   int
	PeakRequestSize int
	OOMCount        int
}

// Hook is a critical-section callback. Hooks must not call back into the
// allocator and must not suspend indefinitely.
type Hook func()

// Instance is one allocator bound to one arena. The arena slice is pinned
// here; every fragment pointer in the structure points into it.
type Instance struct {
	record *instanceRecord
	arena  []byte

	criticalSectionEnter Hook
	criticalSectionLeave Hook
}

var (
	// ErrUnalignedArena is returned from NewInstance when the arena base
	// address is not a multiple of Alignment.
	ErrUnalignedArena = errors.New("arena base must be aligned to Alignment")
	// ErrArenaTooSmall is returned from NewInstance when the arena cannot fit
	// the instance record and one minimal fragment.
	ErrArenaTooSmall = errors.New("arena is too small for an instance")
	// ErrHookPair is returned from SetCriticalSection when exactly one of the
	// two hooks is nil.
	ErrHookPair = errors.New("critical-section hooks must be provided both or neither")
)

// NewInstance constructs an allocator at the head of arena. The arena base
// must be Alignment-aligned and len(arena) must be at least MinArenaSize;
// otherwise an error is returned and the arena is left untouched. On success
// the instance owns the arena exclusively until the caller discards both.
//
// The usable capacity is len(arena) minus the instance record, rounded down
// to a multiple of FragmentSizeMin; it is reported in Diagnostics.
func NewInstance(arena []byte) (*Instance, error) {
	if len(arena) < MinArenaSize {
		return nil, cerrors.Wrapf(ErrArenaTooSmall, "arena is %d bytes, need at least %d", len(arena), MinArenaSize)
	}

	base := unsafe.Pointer(&arena[0])
	if uintptr(base)%uintptr(Alignment) != 0 {
		return nil, cerrors.Wrapf(ErrUnalignedArena, "arena base is %#x, need %d-byte alignment", uintptr(base), Alignment)
	}

	record := (*instanceRecord)(base)
	*record = instanceRecord{}

	capacity := allocutils.AlignDown(len(arena)-instanceSize, uint(FragmentSizeMin))

	first := (*fragment)(unsafe.Add(base, instanceSize))
	*first = fragment{size: capacity}

	h := &Instance{
		record: record,
		arena:  arena,
	}
	h.insertFreeFragment(first)
	record.diagnostics.Capacity = capacity

	return h, nil
}

// SetCriticalSection installs the enter/leave hooks wrapped around every
// public operation. Passing nil for both removes synchronization; passing
// exactly one non-nil hook is rejected.
func (h *Instance) SetCriticalSection(enter Hook, leave Hook) error {
	if (enter == nil) != (leave == nil) {
		return cerrors.Wrapf(ErrHookPair, "enter set: %t, leave set: %t", enter != nil, leave != nil)
	}
	h.criticalSectionEnter = enter
	h.criticalSectionLeave = leave
	return nil
}

// Allocate returns a pointer to amount bytes of payload, or nil if no free
// fragment can hold the request. The returned pointer is Alignment-aligned.
// Requests with amount <= 0 return nil without touching any state and are not
// counted as allocation failures.
func (h *Instance) Allocate(amount int) unsafe.Pointer {
	h.enterCriticalSection()
	defer h.leaveCriticalSection()
	allocutils.DebugValidate(h)

	if amount <= 0 {
		return nil
	}

	diag := &h.record.diagnostics
	if amount > diag.PeakRequestSize {
		diag.PeakRequestSize = amount
	}

	// capacity <= FragmentSizeMax holds from init, so gating the request on
	// the capacity also rejects anything past the top size class, and the
	// header addition below cannot overflow.
	if amount > diag.Capacity-Alignment {
		diag.OOMCount++
		return nil
	}

	need := allocutils.AlignUp(amount+Alignment, uint(FragmentSizeMin))

	// The smallest class whose minimum fragment size is >= need. Starting
	// there guarantees any fragment popped from a candidate bin fits without
	// inspecting its size.
	class := allocutils.Log2Ceil(uint(need) / uint(FragmentSizeMin))
	candidates := h.record.nonemptyMask & (^uint(0) << class)
	if candidates == 0 {
		diag.OOMCount++
		return nil
	}

	f := h.record.bins[bits.TrailingZeros(candidates)]
	h.removeFreeFragment(f)

	if leftover := f.size - need; leftover >= FragmentSizeMin {
		tail := (*fragment)(unsafe.Add(unsafe.Pointer(f), need))
		*tail = fragment{
			next: f.next,
			prev: f,
			size: leftover,
		}
		if tail.next != nil {
			tail.next.prev = tail
		}
		f.next = tail
		f.size = need
		h.insertFreeFragment(tail)
	}

	f.used = true
	f.nextFree = nil
	f.prevFree = nil

	diag.Allocated += f.size
	if diag.Allocated > diag.PeakAllocated {
		diag.PeakAllocated = diag.Allocated
	}

	return unsafe.Add(unsafe.Pointer(f), Alignment)
}

// Free returns the fragment backing pointer to the allocator, coalescing it
// with whichever physical neighbors are free. pointer must have come from
// Allocate on this instance and must not have been freed already; Free(nil)
// is a no-op. Violations of the caller contract are undefined behavior and
// are only caught opportunistically by the debug validator.
func (h *Instance) Free(pointer unsafe.Pointer) {
	if pointer == nil {
		return
	}

	h.enterCriticalSection()
	defer h.leaveCriticalSection()
	allocutils.DebugValidate(h)

	f := (*fragment)(unsafe.Add(pointer, -Alignment))
	h.record.diagnostics.Allocated -= f.size

	// Merge the right neighbor first so the left merge sees the final extent.
	if next := f.next; next != nil && !next.used {
		h.removeFreeFragment(next)
		f.size += next.size
		f.next = next.next
		if f.next != nil {
			f.next.prev = f
		}
	}
	if prev := f.prev; prev != nil && !prev.used {
		h.removeFreeFragment(prev)
		prev.size += f.size
		prev.next = f.next
		if f.next != nil {
			f.next.prev = prev
		}
		f = prev
	}

	h.insertFreeFragment(f)
}

// Diagnostics returns a snapshot of the diagnostic counters, taken under the
// critical-section hooks. Successive calls without intervening mutation
// return equal snapshots.
func (h *Instance) Diagnostics() Diagnostics {
	h.enterCriticalSection()
	defer h.leaveCriticalSection()
	return h.record.diagnostics
}

// Capacity returns the usable arena capacity in bytes. It is fixed at init.
func (h *Instance) Capacity() int {
	return h.record.diagnostics.Capacity
}

// IsEmpty reports whether the instance has no live allocations.
func (h *Instance) IsEmpty() bool {
	h.enterCriticalSection()
	defer h.leaveCriticalSection()
	return h.record.diagnostics.Allocated == 0
}

func (h *Instance) enterCriticalSection() {
	if h.criticalSectionEnter != nil {
		h.criticalSectionEnter()
	}
}

func (h *Instance) leaveCriticalSection() {
	if h.criticalSectionLeave != nil {
		h.criticalSectionLeave()
	}
}

// binIndex maps a legal fragment size to its segregated bin:
// floor(log2(size / FragmentSizeMin)).
func binIndex(size int) uint8 {
	return allocutils.Log2Floor(uint(size) / uint(FragmentSizeMin))
}

func (h *Instance) insertFreeFragment(f *fragment) {
	idx := binIndex(f.size)
	f.used = false
	f.prevFree = nil
	f.nextFree = h.record.bins[idx]
	if f.nextFree != nil {
		f.nextFree.prevFree = f
	}
	h.record.bins[idx] = f
	h.record.nonemptyMask |= uint(1) << idx
}

func (h *Instance) removeFreeFragment(f *fragment) {
	idx := binIndex(f.size)
	if f.prevFree != nil {
		f.prevFree.nextFree = f.nextFree
	} else {
		h.record.bins[idx] = f.nextFree
		if f.nextFree == nil {
			h.record.nonemptyMask &^= uint(1) << idx
		}
	}
	if f.nextFree != nil {
		f.nextFree.prevFree = f.prevFree
	}
}

func (h *Instance) firstFragment() *fragment {
	return (*fragment)(unsafe.Add(unsafe.Pointer(h.record), instanceSize))
}

// fragmentOffset is the byte offset of f from the arena base.
func (h *Instance) fragmentOffset(f *fragment) int {
	return int(uintptr(unsafe.Pointer(f)) - uintptr(unsafe.Pointer(h.record)))
}
