// SPDX-License-Identifier: MIT
package analysis

import (
	"beatlamp/internal/fft"
	"beatlamp/internal/log"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

const (
	DefaultFFTSize     = 1024 // Points per transform window.
	DefaultSensitivity = 1.3
	MinSensitivity     = 0.5
	MaxSensitivity     = 2.0

	HistorySize    = 15  // ~300ms of blocks at typical capture cadence.
	BaseThreshold  = 1.5 // Multiple of the trailing average a beat must exceed.
	IntensityScale = 200 // Bass energy to callback intensity.

	normFactor = 1.0 / 32768.0
)

// SpectralBeatDetector turns blocks of PCM audio into beat events. Each
// block is one transform window: blocks shorter than the transform size
// are zero-padded, longer blocks contribute only their first FFTSize()
// samples. The capture engine delivers exactly FFTSize() frames per block
// so neither case occurs on the live path.
//
// Start, Stop, SetSensitivity and SetCallback may be called from any
// goroutine. Process must be called from one goroutine at a time.
type SpectralBeatDetector struct {
	fftSize    int
	band       Band
	window     fft.Window
	sampleRate float64

	running     atomic.Bool
	sensitivity atomic.Uint64 // math.Float64bits of the clamped value.
	callback    atomic.Pointer[BeatFunc]
	transform   atomic.Pointer[fft.Transform]
	lifecycle   sync.Mutex // Serialises Start and Stop.
	beats       atomic.Uint64

	// Owned by the Process goroutine.
	input        []float64
	spectrum     []float64
	history      [HistorySize]float64
	historyIndex int
}

// Compile-time checks for interface implementations.
var _ SampleProcessor = (*SpectralBeatDetector)(nil)
var _ ClosableProcessor = (*SpectralBeatDetector)(nil)

// Option configures a SpectralBeatDetector.
type Option func(*SpectralBeatDetector)

// WithFFTSize overrides the transform size. It must be a power of two;
// Start reports otherwise.
func WithFFTSize(n int) Option {
	return func(d *SpectralBeatDetector) { d.fftSize = n }
}

// WithSensitivity sets the initial sensitivity (clamped).
func WithSensitivity(s float64) Option {
	return func(d *SpectralBeatDetector) { d.SetSensitivity(s) }
}

// WithBand overrides the bins averaged into the beat signal.
func WithBand(b Band) Option {
	return func(d *SpectralBeatDetector) { d.band = b }
}

// WithWindow applies a window before the transform. The default is none.
func WithWindow(w fft.Window) Option {
	return func(d *SpectralBeatDetector) { d.window = w }
}

// WithSampleRate records the capture rate; it is used for logging only.
func WithSampleRate(rate float64) Option {
	return func(d *SpectralBeatDetector) { d.sampleRate = rate }
}

// NewSpectralBeatDetector returns a stopped detector.
func NewSpectralBeatDetector(opts ...Option) *SpectralBeatDetector {
	d := &SpectralBeatDetector{
		fftSize:    DefaultFFTSize,
		band:       BassBand,
		window:     fft.Rectangular,
		sampleRate: 44100,
	}
	d.SetSensitivity(DefaultSensitivity)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start allocates the transform and clears the energy history. Calling
// Start on a running detector does nothing. Transform setup errors wrap
// fft.ErrInvalidArgument or fft.ErrResourceExhausted.
func (d *SpectralBeatDetector) Start() error {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	if d.running.Load() {
		return nil
	}

	tr, err := fft.NewTransform(fft.Real, d.fftSize, fft.WithWindow(d.window))
	if err != nil {
		return fmt.Errorf("beat detector: %w", err)
	}
	if err := d.band.Validate(d.fftSize / 2); err != nil {
		tr.Close()
		return fmt.Errorf("beat detector: %w: %v", fft.ErrInvalidArgument, err)
	}

	if len(d.input) != d.fftSize {
		d.input = make([]float64, d.fftSize)
		d.spectrum = make([]float64, d.fftSize/2)
	}
	clear(d.history[:])
	d.historyIndex = 0

	d.transform.Store(tr)
	d.running.Store(true)

	low, high := d.band.Range(d.fftSize, d.sampleRate)
	log.Infof("Detector: started (FFT: %d, band: %.0f-%.0f Hz, sensitivity: %.2f)",
		d.fftSize, low, high, d.Sensitivity())
	return nil
}

// Stop releases the transform. The history is left as is; the next Start
// clears it. Calling Stop on a stopped detector does nothing.
func (d *SpectralBeatDetector) Stop() {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	if !d.running.Load() {
		return
	}
	d.running.Store(false)
	if tr := d.transform.Swap(nil); tr != nil {
		tr.Close()
	}
	log.Infof("Detector: stopped after %d beats", d.beats.Load())
}

// Close stops the detector. It implements ClosableProcessor.
func (d *SpectralBeatDetector) Close() error {
	d.Stop()
	return nil
}

// Running reports whether the detector accepts blocks.
func (d *SpectralBeatDetector) Running() bool {
	return d.running.Load()
}

// SetSensitivity stores s clamped to [MinSensitivity, MaxSensitivity]. It
// takes effect on the next Process call. NaN clamps to the minimum.
func (d *SpectralBeatDetector) SetSensitivity(s float64) {
	if !(s >= MinSensitivity) {
		s = MinSensitivity
	}
	if s > MaxSensitivity {
		s = MaxSensitivity
	}
	d.sensitivity.Store(math.Float64bits(s))
}

// Sensitivity returns the stored sensitivity.
func (d *SpectralBeatDetector) Sensitivity() float64 {
	return math.Float64frombits(d.sensitivity.Load())
}

// SetCallback registers fn as the single beat receiver. A nil fn clears it,
// after which Process ignores blocks.
func (d *SpectralBeatDetector) SetCallback(fn BeatFunc) {
	if fn == nil {
		d.callback.Store(nil)
		return
	}
	d.callback.Store(&fn)
}

// FFTSize returns the transform window length.
func (d *SpectralBeatDetector) FFTSize() int {
	return d.fftSize
}

// Beats returns the number of beats emitted since construction.
func (d *SpectralBeatDetector) Beats() uint64 {
	return d.beats.Load()
}

// Process analyzes one block and invokes the callback at most once. It is
// a no-op when the detector is stopped, no callback is registered, or the
// block is empty. A block that does not produce a beat produces no call.
func (d *SpectralBeatDetector) Process(samples []int16) error {
	if !d.running.Load() {
		return nil
	}
	cb := d.callback.Load()
	if cb == nil || len(samples) == 0 {
		return nil
	}
	tr := d.transform.Load()
	if tr == nil {
		return nil
	}

	// --- 1. Normalise into the transform window ---
	n := min(len(samples), d.fftSize)
	for i := range n {
		d.input[i] = float64(samples[i]) * normFactor
	}
	clear(d.input[n:])

	// --- 2. Transform (scratch lock held inside Execute only) ---
	if err := tr.Execute(d.input, d.spectrum); err != nil {
		if errors.Is(err, fft.ErrInvalidState) && !d.running.Load() {
			// Stopped while this block was in flight.
			return nil
		}
		return fmt.Errorf("beat detector: %w", err)
	}

	// --- 3. Bass energy into the ring ---
	bass := d.band.Mean(d.spectrum)
	d.history[d.historyIndex] = bass
	d.historyIndex = (d.historyIndex + 1) % HistorySize

	// --- 4. Dynamic threshold over every slot ---
	var avg float64
	for _, e := range d.history {
		avg += e
	}
	avg /= HistorySize

	threshold := avg * BaseThreshold * d.Sensitivity()
	if bass > threshold {
		intensity := int(math.Round(bass * IntensityScale))
		d.beats.Add(1)
		if log.Enabled(log.LevelDebug) {
			log.Debugf("Detector: beat (bass: %.4f, threshold: %.4f, intensity: %d)", bass, threshold, intensity)
		}
		(*cb)(intensity)
	}
	return nil
}
