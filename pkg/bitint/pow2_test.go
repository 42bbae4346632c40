// SPDX-License-Identifier: MIT
package bitint

import (
	"fmt"
	"testing"
)

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected int
	}{
		{-10, 1},     // Negative number
		{0, 1},       // Zero
		{8, 8},       // Already power of two
		{10, 16},     // Not power of two
		{1000, 1024}, // Typical misconfigured transform size
		{3, 4},       // Small non-power
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%d", tt.n, tt.expected), func(t *testing.T) {
			result := NextPowerOfTwo(tt.n)
			if result != tt.expected {
				t.Errorf("NextPowerOfTwo(%d) = %d, expected %d", tt.n, result, tt.expected)
			}
		})
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected bool
	}{
		{-2, false},     // Negative number
		{0, false},      // Zero
		{1, true},       // One
		{8, true},       // Power of two
		{10, false},     // Not power of two
		{1 << 20, true}, // Large power of two
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%t", tt.n, tt.expected), func(t *testing.T) {
			result := IsPowerOfTwo(tt.n)
			if result != tt.expected {
				t.Errorf("IsPowerOfTwo(%d) = %v, expected %v", tt.n, result, tt.expected)
			}
		})
	}
}

func TestIsMultipleOfFour(t *testing.T) {
	tests := []struct {
		n        int
		expected bool
	}{
		{-4, false},
		{0, false},
		{4, true},
		{12, true},  // Not a power of two, still valid for radix-4
		{10, false}, // Even but not a multiple of 4
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%t", tt.n, tt.expected), func(t *testing.T) {
			if got := IsMultipleOfFour(tt.n); got != tt.expected {
				t.Errorf("IsMultipleOfFour(%d) = %v, expected %v", tt.n, got, tt.expected)
			}
		})
	}
}

func TestFloorLog2(t *testing.T) {
	tests := []struct {
		n        uint
		expected int
	}{
		{0, -1},
		{1, 0},
		{2, 1},
		{3, 1},
		{8, 3},
		{255, 7},
		{256, 8},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%d", tt.n, tt.expected), func(t *testing.T) {
			if got := FloorLog2(tt.n); got != tt.expected {
				t.Errorf("FloorLog2(%d) = %d, expected %d", tt.n, got, tt.expected)
			}
		})
	}
}

func BenchmarkIsPowerOfTwo(b *testing.B) {
	var i int
	b.ReportAllocs()
	for b.Loop() {
		IsPowerOfTwo(i % 10000)
		i++
	}
}

func BenchmarkFloorLog2(b *testing.B) {
	var i uint
	b.ReportAllocs()
	for b.Loop() {
		FloorLog2(i % 256)
		i++
	}
}
