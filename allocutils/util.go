package allocutils

import (
	"math/bits"

	cerrors "github.com/cockroachdb/errors"
)

type Number interface {
	~int | ~uint
}

func CheckPow2[T Number](number T, name string) error {
	if number == 0 || number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// IsPow2 reports whether x is a nonzero power of two.
func IsPow2(x uint) bool {
	return x != 0 && x&(x-1) == 0
}

// Log2Floor returns floor(log2(x)). x must be positive.
func Log2Floor(x uint) uint8 {
	return uint8(bits.Len(x) - 1)
}

// Log2Ceil returns ceil(log2(x)). x must be positive; Log2Ceil(1) is 0.
func Log2Ceil(x uint) uint8 {
	if x <= 1 {
		return 0
	}
	return uint8(bits.Len(x - 1))
}

// Pow2 returns 1 << power.
func Pow2(power uint8) uint {
	return uint(1) << power
}

func AlignUp(value int, alignment uint) int {
	return (value + int(alignment) - 1) & int(^(alignment - 1))
}

func AlignDown(value int, alignment uint) int {
	return value & int(^(alignment - 1))
}
