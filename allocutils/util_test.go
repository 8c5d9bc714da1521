package allocutils_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arenakit/ctalloc/allocutils"
)

func TestIsPow2(t *testing.T) {
	require.False(t, allocutils.IsPow2(0))
	require.True(t, allocutils.IsPow2(1))
	require.True(t, allocutils.IsPow2(2))
	require.False(t, allocutils.IsPow2(3))
	require.True(t, allocutils.IsPow2(4096))
	require.False(t, allocutils.IsPow2(4097))
}

func TestLog2Floor(t *testing.T) {
	require.Equal(t, uint8(0), allocutils.Log2Floor(1))
	require.Equal(t, uint8(1), allocutils.Log2Floor(2))
	require.Equal(t, uint8(1), allocutils.Log2Floor(3))
	require.Equal(t, uint8(2), allocutils.Log2Floor(4))
	require.Equal(t, uint8(12), allocutils.Log2Floor(4100))
}

func TestLog2Ceil(t *testing.T) {
	require.Equal(t, uint8(0), allocutils.Log2Ceil(1))
	require.Equal(t, uint8(1), allocutils.Log2Ceil(2))
	require.Equal(t, uint8(2), allocutils.Log2Ceil(3))
	require.Equal(t, uint8(2), allocutils.Log2Ceil(4))
	require.Equal(t, uint8(3), allocutils.Log2Ceil(5))
	require.Equal(t, uint8(13), allocutils.Log2Ceil(4100))
}

func TestLog2RoundTrip(t *testing.T) {
	for power := uint8(0); power < 20; power++ {
		x := allocutils.Pow2(power)
		require.Equal(t, power, allocutils.Log2Floor(x))
		require.Equal(t, power, allocutils.Log2Ceil(x))
	}
}

func TestAlign(t *testing.T) {
	require.Equal(t, 0, allocutils.AlignUp(0, 32))
	require.Equal(t, 32, allocutils.AlignUp(1, 32))
	require.Equal(t, 32, allocutils.AlignUp(32, 32))
	require.Equal(t, 64, allocutils.AlignUp(33, 32))

	require.Equal(t, 0, allocutils.AlignDown(31, 32))
	require.Equal(t, 32, allocutils.AlignDown(32, 32))
	require.Equal(t, 32, allocutils.AlignDown(63, 32))
}

func TestCheckPow2(t *testing.T) {
	require.NoError(t, allocutils.CheckPow2(uint(64), "alignment"))
	require.ErrorIs(t, allocutils.CheckPow2(uint(0), "alignment"), allocutils.PowerOfTwoError)
	require.ErrorIs(t, allocutils.CheckPow2(100, "capacity"), allocutils.PowerOfTwoError)
}
