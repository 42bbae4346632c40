// SPDX-License-Identifier: MIT
/*
Package bitint provides the small set of bit manipulation helpers the
lighting pipeline needs on its hot and cold paths: validating spectral
transform sizes and mapping 8-bit brightness values onto discrete levels.

Design Principles:
- Zero Allocations: All operations use stack memory only
- Predictable Performance: O(1) constant time operations
- Real-Time Safe: No locks, syscalls, or blocking operations

Usage:

	// Verify a transform size before allocating scratch space
	ok := bitint.IsPowerOfTwo(1024) // true

	// Suggest a valid size for a bad configuration value
	size := bitint.NextPowerOfTwo(1000) // 1024

	// Map brightness 0..255 to its level 0..8
	level := bitint.FloorLog2(uint(brightness) + 1)

----------------------------------------------------------------------

What FloorLog2 does:

	FloorLog2 returns the index of the highest set bit, which is
	floor(log2(n)) for n > 0. bits.Len reports how many bits are needed
	to represent n, so the highest set bit sits at Len(n)-1:

	- n = 1   (0001) -> Len 1 -> 0
	- n = 8   (1000) -> Len 4 -> 3
	- n = 255 (1111_1111) -> Len 8 -> 7
	- n = 256 (1_0000_0000) -> Len 9 -> 8

	Zero has no set bit; FloorLog2(0) returns -1.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo checks if n is a power of 2 using bit manipulation.
// Powers of 2 have exactly one bit set, so n & (n-1) clears it to zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// IsMultipleOfFour reports whether n is a positive multiple of 4, the
// length constraint of radix-4 transforms.
func IsMultipleOfFour(n int) bool {
	return n > 0 && n&3 == 0
}

// FloorLog2 returns floor(log2(n)), or -1 for n == 0.
func FloorLog2(n uint) int {
	return bits.Len(n) - 1
}
