package allocutils_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arenakit/ctalloc/allocutils"
)

func TestDetailedStatisticsAccumulate(t *testing.T) {
	var stats allocutils.DetailedStatistics
	stats.Clear()

	require.Equal(t, math.MaxInt, stats.AllocationSizeMin)
	require.Equal(t, math.MaxInt, stats.FreeRangeSizeMin)

	stats.HeapCount = 1
	stats.CapacityBytes = 1024
	stats.AddAllocation(64)
	stats.AddAllocation(256)
	stats.AddFreeRange(704)

	require.Equal(t, 2, stats.AllocationCount)
	require.Equal(t, 320, stats.AllocationBytes)
	require.Equal(t, 64, stats.AllocationSizeMin)
	require.Equal(t, 256, stats.AllocationSizeMax)
	require.Equal(t, 1, stats.FreeRangeCount)
	require.Equal(t, 704, stats.FreeRangeSizeMin)
	require.Equal(t, 704, stats.FreeRangeSizeMax)

	var other allocutils.DetailedStatistics
	other.Clear()
	other.HeapCount = 1
	other.CapacityBytes = 512
	other.AddAllocation(32)
	other.AddFreeRange(480)

	stats.AddDetailedStatistics(&other)
	require.Equal(t, 2, stats.HeapCount)
	require.Equal(t, 1536, stats.CapacityBytes)
	require.Equal(t, 3, stats.AllocationCount)
	require.Equal(t, 32, stats.AllocationSizeMin)
	require.Equal(t, 256, stats.AllocationSizeMax)
	require.Equal(t, 480, stats.FreeRangeSizeMin)
	require.Equal(t, 704, stats.FreeRangeSizeMax)
}
