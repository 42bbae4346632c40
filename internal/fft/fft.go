// SPDX-License-Identifier: MIT
package fft

import (
	"beatlamp/pkg/bitint"
	"errors"
	"fmt"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Kind selects the transform family.
type Kind int

const (
	Radix2 Kind = iota // Complex transform, power-of-two length.
	Radix4             // Complex transform, length a multiple of 4.
	Real               // Real-input transform, power-of-two length.
)

func (k Kind) String() string {
	switch k {
	case Radix2:
		return "radix2"
	case Radix4:
		return "radix4"
	case Real:
		return "real"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MaxLength bounds the scratch space a single transform may reserve.
const MaxLength = 1 << 20

var (
	ErrInvalidArgument   = errors.New("fft: invalid argument")
	ErrResourceExhausted = errors.New("fft: resource exhausted")
	ErrInvalidState      = errors.New("fft: invalid state")
)

// workspace holds the pre-allocated scratch buffers. A transform has
// exactly one, and mu is held for the whole of Execute.
type workspace struct {
	input  []float64    // Windowed real input.
	cinput []complex128 // Complex input for the radix kinds.
	coeffs []complex128 // Transform output.
	mu     sync.Mutex
}

// Transform is a reusable forward spectral transform producing a
// magnitude spectrum of Length()/2 bins. It is safe for concurrent use;
// callers are serialised on the scratch buffer.
type Transform struct {
	kind   Kind
	length int
	window []float64

	real  *fourier.FFT
	cmplx *fourier.CmplxFFT

	ws     workspace
	closed bool // Guarded by ws.mu.
}

// Option configures a Transform.
type Option func(*Transform)

// WithWindow applies a window function to every input block.
func WithWindow(w Window) Option {
	return func(t *Transform) {
		if w == Rectangular {
			t.window = nil
			return
		}
		t.window = make([]float64, t.length)
		applyWindow(t.window, w)
	}
}

// NewTransform validates the requested size and allocates the scratch
// buffers. Invalid sizes report ErrInvalidArgument; sizes above MaxLength
// report ErrResourceExhausted.
func NewTransform(kind Kind, length int, opts ...Option) (*Transform, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidArgument, length)
	}

	switch kind {
	case Radix2, Real:
		if !bitint.IsPowerOfTwo(length) {
			return nil, fmt.Errorf("%w: %s length %d is not a power of 2 (try %d)",
				ErrInvalidArgument, kind, length, bitint.NextPowerOfTwo(length))
		}
	case Radix4:
		if !bitint.IsMultipleOfFour(length) {
			return nil, fmt.Errorf("%w: %s length %d is not a multiple of 4",
				ErrInvalidArgument, kind, length)
		}
	default:
		return nil, fmt.Errorf("%w: unknown transform %s", ErrInvalidArgument, kind)
	}

	if length > MaxLength {
		return nil, fmt.Errorf("%w: scratch for %d points exceeds %d",
			ErrResourceExhausted, length, MaxLength)
	}

	t := &Transform{kind: kind, length: length}
	if kind == Real {
		t.real = fourier.NewFFT(length)
		t.ws.input = make([]float64, length)
		t.ws.coeffs = make([]complex128, length/2+1)
	} else {
		t.cmplx = fourier.NewCmplxFFT(length)
		t.ws.cinput = make([]complex128, length)
		t.ws.coeffs = make([]complex128, length)
	}

	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Execute transforms the first Length() samples of input and writes
// Length()/2 magnitudes into output.
func (t *Transform) Execute(input, output []float64) error {
	if input == nil || output == nil {
		return fmt.Errorf("%w: nil buffer", ErrInvalidArgument)
	}
	if len(input) < t.length || len(output) < t.length/2 {
		return fmt.Errorf("%w: buffers %d/%d too short for %d points",
			ErrInvalidArgument, len(input), len(output), t.length)
	}

	t.ws.mu.Lock()
	defer t.ws.mu.Unlock()

	if t.closed {
		return ErrInvalidState
	}

	switch t.kind {
	case Real:
		for i := range t.length {
			t.ws.input[i] = input[i] * t.gain(i)
		}
		t.real.Coefficients(t.ws.coeffs, t.ws.input)
	default:
		for i := range t.length {
			t.ws.cinput[i] = complex(input[i]*t.gain(i), 0)
		}
		t.cmplx.Coefficients(t.ws.coeffs, t.ws.cinput)
	}

	for i := range t.length / 2 {
		output[i] = cmplx.Abs(t.ws.coeffs[i])
	}
	return nil
}

func (t *Transform) gain(i int) float64 {
	if t.window == nil {
		return 1
	}
	return t.window[i]
}

// Close releases the scratch buffers. Further Execute calls report
// ErrInvalidState. Close is idempotent.
func (t *Transform) Close() error {
	t.ws.mu.Lock()
	defer t.ws.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.ws.input = nil
	t.ws.cinput = nil
	t.ws.coeffs = nil
	return nil
}

// Length returns the number of points.
func (t *Transform) Length() int {
	return t.length
}

// Kind returns the transform family.
func (t *Transform) Kind() Kind {
	return t.kind
}

// FrequencyForBin returns the centre frequency in Hz of bin i, or 0 when
// i is outside the magnitude spectrum.
func (t *Transform) FrequencyForBin(i int, sampleRate float64) float64 {
	if i < 0 || i >= t.length/2 {
		return 0
	}
	return float64(i) * sampleRate / float64(t.length)
}
