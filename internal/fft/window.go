// SPDX-License-Identifier: MIT
package fft

import (
	"beatlamp/internal/log"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// Window selects the function applied to each block before transforming.
type Window int

const (
	Rectangular Window = iota // No windowing; the beat detector default.
	BartlettHann
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

// ParseWindow converts a name (case-insensitive) to a Window. Unknown
// names return Rectangular and an error.
func ParseWindow(name string) (Window, error) {
	switch strings.ToLower(name) {
	case "", "none", "rectangular":
		return Rectangular, nil
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Rectangular, fmt.Errorf("%w: unknown window function %q", ErrInvalidArgument, name)
	}
}

// applyWindow fills coeffs with the coefficients of the selected window.
// The gonum window functions scale in place, so the slice starts at 1.
func applyWindow(coeffs []float64, w Window) {
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch w {
	case Rectangular:
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		log.Warnf("FFT: unknown window function %d, using Hann", w)
		window.Hann(coeffs)
	}
}
