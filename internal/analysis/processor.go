// SPDX-License-Identifier: MIT
package analysis

// SampleProcessor is the standard interface for components that consume
// mono 16-bit PCM blocks. Implementations are called from the real-time
// capture callback and must not block.
type SampleProcessor interface {
	// Process analyzes one block. Errors report structural misuse only;
	// ordinary signal content never fails.
	Process(samples []int16) error
}

// ClosableProcessor combines SampleProcessor with a Close method for resource cleanup.
type ClosableProcessor interface {
	SampleProcessor
	Close() error
}

// BeatFunc receives the intensity of a detected beat. It runs synchronously
// on the goroutine that called Process.
type BeatFunc func(intensity int)

// ProcessorFunc adapts a plain function to SampleProcessor.
type ProcessorFunc func(samples []int16) error

// Process calls f(samples).
func (f ProcessorFunc) Process(samples []int16) error {
	return f(samples)
}
