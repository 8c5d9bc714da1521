package heap

import (
	"unsafe"

	"github.com/dolthub/swiss"
	"github.com/pkg/errors"
)

// Validate performs a full structural audit of the instance: diagnostic
// bounds, physical-chain interlinking, free-list well-formedness, bin/mask
// agreement, and reconciliation of the diagnostic totals against a complete
// fragment walk. When the allocator is functioning correctly this method
// cannot return an error; it exists to diagnose caller-contract violations
// and allocator defects.
//
// Validate does not invoke the critical-section hooks; callers must
// synchronize externally.
func (h *Instance) Validate() error {
	diag := h.record.diagnostics

	if diag.Capacity < FragmentSizeMin || uint(diag.Capacity) > FragmentSizeMax {
		return errors.Errorf("capacity %d is outside [%d, %d]", diag.Capacity, FragmentSizeMin, FragmentSizeMax)
	}
	if diag.Capacity%FragmentSizeMin != 0 {
		return errors.Errorf("capacity %d is not a multiple of %d", diag.Capacity, FragmentSizeMin)
	}
	if diag.Allocated < 0 || diag.Allocated > diag.Capacity {
		return errors.Errorf("allocated %d is outside [0, %d]", diag.Allocated, diag.Capacity)
	}
	if diag.Allocated%FragmentSizeMin != 0 {
		return errors.Errorf("allocated %d is not a multiple of %d", diag.Allocated, FragmentSizeMin)
	}
	if diag.PeakAllocated < diag.Allocated || diag.PeakAllocated > diag.Capacity {
		return errors.Errorf("peak allocated %d is outside [%d, %d]", diag.PeakAllocated, diag.Allocated, diag.Capacity)
	}
	if diag.PeakAllocated%FragmentSizeMin != 0 {
		return errors.Errorf("peak allocated %d is not a multiple of %d", diag.PeakAllocated, FragmentSizeMin)
	}
	if diag.PeakRequestSize > diag.Capacity && diag.OOMCount == 0 {
		return errors.Errorf("peak request size %d exceeds capacity %d but no allocation has ever failed", diag.PeakRequestSize, diag.Capacity)
	}

	var mask uint
	for i := 0; i < binCount; i++ {
		if h.record.bins[i] != nil {
			mask |= uint(1) << i
		}
	}
	if mask != h.record.nonemptyMask {
		return errors.Errorf("nonempty bin mask is %#x but the bins say %#x", h.record.nonemptyMask, mask)
	}

	// Walk every free list, filing each member so the chain walk below can
	// cross-check membership.
	binMember := swiss.NewMap[uintptr, int](binCount)
	freeListed := 0
	freeBytes := 0
	for i := 0; i < binCount; i++ {
		head := h.record.bins[i]
		if head == nil {
			continue
		}
		if head.prevFree != nil {
			return errors.Errorf("bin %d head at offset %d has a previous free link", i, h.fragmentOffset(head))
		}
		for f := head; f != nil; f = f.nextFree {
			off := h.fragmentOffset(f)
			if f.used {
				return errors.Errorf("fragment at offset %d is filed in bin %d but is marked used", off, i)
			}
			if err := h.checkFragmentSize(f); err != nil {
				return err
			}
			if int(binIndex(f.size)) != i {
				return errors.Errorf("fragment at offset %d of size %d is filed in bin %d, want bin %d", off, f.size, i, binIndex(f.size))
			}
			if f.nextFree != nil && f.nextFree.prevFree != f {
				return errors.Errorf("fragment at offset %d links offset %d as next free, but the reverse link is broken", off, h.fragmentOffset(f.nextFree))
			}
			addr := uintptr(unsafe.Pointer(f))
			if _, seen := binMember.Get(addr); seen {
				return errors.Errorf("fragment at offset %d appears in more than one free list position", off)
			}
			binMember.Put(addr, i)
			freeListed++
			freeBytes += f.size
		}
	}

	first := h.firstFragment()
	if first.prev != nil {
		return errors.Errorf("the first fragment has a previous physical link")
	}

	totalSize := 0
	totalAllocated := 0
	freeWalked := 0
	for f := first; f != nil; f = f.next {
		off := h.fragmentOffset(f)
		if err := h.checkFragmentSize(f); err != nil {
			return err
		}
		if f.next != nil {
			if f.next.prev != f {
				return errors.Errorf("fragment at offset %d has a next physical link whose reverse link is broken", off)
			}
			gap := h.fragmentOffset(f.next) - off
			if gap <= 0 {
				return errors.Errorf("fragment at offset %d links a next fragment at offset %d; addresses must strictly increase", off, h.fragmentOffset(f.next))
			}
			if gap%FragmentSizeMin != 0 {
				return errors.Errorf("fragments at offsets %d and %d are %d bytes apart, not a multiple of %d", off, h.fragmentOffset(f.next), gap, FragmentSizeMin)
			}
		}

		totalSize += f.size
		if totalSize > diag.Capacity {
			return errors.Errorf("fragment sizes overrun the capacity %d at offset %d", diag.Capacity, off)
		}

		addr := uintptr(unsafe.Pointer(f))
		if f.used {
			totalAllocated += f.size
			if _, seen := binMember.Get(addr); seen {
				return errors.Errorf("used fragment at offset %d is present in a free list", off)
			}
		} else {
			if _, seen := binMember.Get(addr); !seen {
				return errors.Errorf("free fragment at offset %d is missing from its bin", off)
			}
			freeWalked++
		}
	}

	if freeWalked != freeListed {
		return errors.Errorf("the free lists hold %d fragments but the physical chain has %d free fragments", freeListed, freeWalked)
	}
	if totalSize != diag.Capacity {
		return errors.Errorf("the fragment sizes add up to %d, want the capacity %d", totalSize, diag.Capacity)
	}
	if totalAllocated != diag.Allocated {
		return errors.Errorf("the used fragment sizes add up to %d, want the allocated total %d", totalAllocated, diag.Allocated)
	}
	if diag.Capacity-diag.Allocated != freeBytes {
		return errors.Errorf("the free fragment sizes add up to %d, want %d", freeBytes, diag.Capacity-diag.Allocated)
	}

	return nil
}

func (h *Instance) checkFragmentSize(f *fragment) error {
	if f.size < FragmentSizeMin || uint(f.size) > FragmentSizeMax {
		return errors.Errorf("fragment at offset %d has size %d, outside [%d, %d]", h.fragmentOffset(f), f.size, FragmentSizeMin, FragmentSizeMax)
	}
	if f.size > h.record.diagnostics.Capacity {
		return errors.Errorf("fragment at offset %d has size %d, larger than the capacity %d", h.fragmentOffset(f), f.size, h.record.diagnostics.Capacity)
	}
	if f.size%FragmentSizeMin != 0 {
		return errors.Errorf("fragment at offset %d has size %d, not a multiple of %d", h.fragmentOffset(f), f.size, FragmentSizeMin)
	}
	return nil
}
