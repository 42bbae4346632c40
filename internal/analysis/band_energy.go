// SPDX-License-Identifier: MIT
package analysis

import "fmt"

// Band is a contiguous, inclusive slice of spectrum bins.
type Band struct {
	Name  string
	Start int // First bin, inclusive.
	End   int // Last bin, inclusive.
}

// BassBand covers roughly 50-150 Hz for a 1024-point transform at the
// capture rates the detector is tuned for.
var BassBand = Band{Name: "bass", Start: 2, End: 10}

// Width returns the number of bins in the band.
func (b Band) Width() int {
	return b.End - b.Start + 1
}

// Mean averages the band's magnitudes. The caller guarantees the spectrum
// covers the band; Validate checks that once at construction time.
func (b Band) Mean(spectrum []float64) float64 {
	var sum float64
	for i := b.Start; i <= b.End; i++ {
		sum += spectrum[i]
	}
	return sum / float64(b.Width())
}

// Validate reports whether the band fits a spectrum of bins entries.
func (b Band) Validate(bins int) error {
	if b.Start < 0 || b.End < b.Start || b.End >= bins {
		return fmt.Errorf("band %q [%d,%d] does not fit %d bins", b.Name, b.Start, b.End, bins)
	}
	return nil
}

// Range returns the band's frequency span in Hz for a transform of
// fftSize points at sampleRate.
func (b Band) Range(fftSize int, sampleRate float64) (low, high float64) {
	res := sampleRate / float64(fftSize)
	return float64(b.Start) * res, float64(b.End) * res
}
