package heap

import (
	"golang.org/x/exp/slog"

	"github.com/arenakit/ctalloc/allocutils"
)

// AddStatistics sums this instance's aggregate counters into stats. The
// snapshot is taken under the critical-section hooks.
func (h *Instance) AddStatistics(stats *allocutils.Statistics) {
	diag := h.Diagnostics()
	stats.HeapCount++
	stats.CapacityBytes += diag.Capacity
	stats.AllocationBytes += diag.Allocated
}

// AddDetailedStatistics walks the physical chain and sums per-fragment
// statistics into stats. Callers must synchronize externally.
func (h *Instance) AddDetailedStatistics(stats *allocutils.DetailedStatistics) {
	stats.HeapCount++
	stats.CapacityBytes += h.record.diagnostics.Capacity

	for f := h.firstFragment(); f != nil; f = f.next {
		if f.used {
			stats.AddAllocation(f.size)
		} else {
			stats.AddFreeRange(f.size)
		}
	}
}

// VisitAllFragments calls visit once per fragment in address order, used and
// free alike. The offset is relative to the arena base. Walking stops at the
// first error, which is returned. Callers must synchronize externally and
// visit must not mutate the instance.
func (h *Instance) VisitAllFragments(visit func(offset int, size int, free bool) error) error {
	for f := h.firstFragment(); f != nil; f = f.next {
		if err := visit(h.fragmentOffset(f), f.size, !f.used); err != nil {
			return err
		}
	}
	return nil
}

// DebugLogAllAllocations calls logFunc for every live allocation, in address
// order. Callers must synchronize externally.
func (h *Instance) DebugLogAllAllocations(logger *slog.Logger, logFunc func(log *slog.Logger, offset int, size int)) {
	for f := h.firstFragment(); f != nil; f = f.next {
		if f.used {
			logFunc(logger, h.fragmentOffset(f), f.size)
		}
	}
}
