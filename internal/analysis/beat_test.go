// SPDX-License-Identifier: MIT
package analysis

import (
	"beatlamp/internal/fft"
	"beatlamp/pkg/utils"
	"errors"
	"math"
	"testing"
)

// recorder collects intensities passed to the beat callback.
type recorder struct {
	got []int
}

func (r *recorder) beat(intensity int) {
	r.got = append(r.got, intensity)
}

func startedDetector(t *testing.T, opts ...Option) (*SpectralBeatDetector, *recorder) {
	t.Helper()
	d := NewSpectralBeatDetector(opts...)
	rec := &recorder{}
	d.SetCallback(rec.beat)
	if err := d.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(d.Stop)
	return d, rec
}

// expectedIntensity runs block through an independent transform and returns
// the intensity a beat on it would carry.
func expectedIntensity(t *testing.T, block []int16) int {
	t.Helper()
	tr, err := fft.NewTransform(fft.Real, DefaultFFTSize)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	in := make([]float64, DefaultFFTSize)
	for i := range min(len(block), DefaultFFTSize) {
		in[i] = float64(block[i]) / 32768.0
	}
	out := make([]float64, DefaultFFTSize/2)
	if err := tr.Execute(in, out); err != nil {
		t.Fatal(err)
	}
	return int(math.Round(BassBand.Mean(out) * IntensityScale))
}

func TestSetSensitivityClamps(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{1.0, 1.0},
		{0.1, MinSensitivity},
		{3.0, MaxSensitivity},
		{MinSensitivity, MinSensitivity},
		{MaxSensitivity, MaxSensitivity},
		{math.NaN(), MinSensitivity},
		{math.Inf(1), MaxSensitivity},
	}

	d := NewSpectralBeatDetector()
	if got := d.Sensitivity(); got != DefaultSensitivity {
		t.Errorf("default sensitivity = %v, want %v", got, DefaultSensitivity)
	}
	for _, tt := range tests {
		d.SetSensitivity(tt.in)
		if got := d.Sensitivity(); got != tt.want {
			t.Errorf("SetSensitivity(%v) stored %v, want %v", tt.in, got, tt.want)
		}
	}

	if got := NewSpectralBeatDetector(WithSensitivity(9)).Sensitivity(); got != MaxSensitivity {
		t.Errorf("WithSensitivity(9) = %v, want %v", got, MaxSensitivity)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	d := NewSpectralBeatDetector()
	if d.Running() {
		t.Fatal("new detector should be stopped")
	}

	for range 2 {
		if err := d.Start(); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if !d.Running() {
			t.Fatal("detector should be running after Start")
		}
	}

	d.Stop()
	d.Stop()
	if d.Running() {
		t.Fatal("detector should be stopped after Stop")
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close() on stopped detector = %v", err)
	}
}

func TestStartRejectsBadConfiguration(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"FFT size not power of two", []Option{WithFFTSize(1000)}},
		{"Zero FFT size", []Option{WithFFTSize(0)}},
		{"Band wider than spectrum", []Option{WithFFTSize(16)}},
		{"Inverted band", []Option{WithBand(Band{Name: "bad", Start: 10, End: 2})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewSpectralBeatDetector(tt.opts...)
			err := d.Start()
			if !errors.Is(err, fft.ErrInvalidArgument) {
				t.Errorf("Start() error = %v, want ErrInvalidArgument", err)
			}
			if d.Running() {
				t.Error("detector must stay stopped after a failed Start")
			}
		})
	}
}

func TestProcessNoOps(t *testing.T) {
	block := utils.GenerateBinSine(DefaultFFTSize, 4, 8192)

	t.Run("Stopped", func(t *testing.T) {
		d := NewSpectralBeatDetector()
		rec := &recorder{}
		d.SetCallback(rec.beat)
		if err := d.Process(block); err != nil {
			t.Fatal(err)
		}
		if len(rec.got) != 0 {
			t.Errorf("stopped detector fired %d beats", len(rec.got))
		}
	})

	t.Run("No callback", func(t *testing.T) {
		d, rec := startedDetector(t)
		d.SetCallback(nil)
		if err := d.Process(block); err != nil {
			t.Fatal(err)
		}
		if len(rec.got) != 0 || d.Beats() != 0 {
			t.Errorf("detector without callback fired")
		}
	})

	t.Run("Empty block", func(t *testing.T) {
		d, rec := startedDetector(t)
		if err := d.Process(nil); err != nil {
			t.Fatal(err)
		}
		if err := d.Process([]int16{}); err != nil {
			t.Fatal(err)
		}
		if len(rec.got) != 0 {
			t.Errorf("empty block fired %d beats", len(rec.got))
		}
	})

	t.Run("Silence", func(t *testing.T) {
		d, rec := startedDetector(t)
		silence := make([]int16, DefaultFFTSize)
		for range 2 * HistorySize {
			if err := d.Process(silence); err != nil {
				t.Fatal(err)
			}
		}
		if len(rec.got) != 0 {
			t.Errorf("silence fired %d beats", len(rec.got))
		}
	})
}

func TestConstantSignalWarmUp(t *testing.T) {
	d, rec := startedDetector(t)
	block := utils.GenerateBinSine(DefaultFFTSize, 4, 1024)

	// With an all-zero history the threshold after k blocks is
	// k/15 * 1.5 * 1.3 of the signal, so only the first seven exceed it.
	for i := range HistorySize {
		if err := d.Process(block); err != nil {
			t.Fatalf("block %d: %v", i, err)
		}
	}
	if len(rec.got) != 7 {
		t.Fatalf("warm-up beats = %d, want 7", len(rec.got))
	}

	want := expectedIntensity(t, block)
	for i, got := range rec.got {
		if got != want {
			t.Errorf("beat %d intensity = %d, want %d", i, got, want)
		}
	}

	for range 3 * HistorySize {
		if err := d.Process(block); err != nil {
			t.Fatal(err)
		}
	}
	if len(rec.got) != 7 {
		t.Errorf("steady state fired %d extra beats", len(rec.got)-7)
	}
	if d.Beats() != 7 {
		t.Errorf("Beats() = %d, want 7", d.Beats())
	}
}

func TestLowSensitivityKeepsFiring(t *testing.T) {
	d, rec := startedDetector(t, WithSensitivity(MinSensitivity))
	block := utils.GenerateBinSine(DefaultFFTSize, 4, 1024)

	// Threshold tops out at 0.75 of a constant signal.
	const blocks = 3 * HistorySize
	for range blocks {
		if err := d.Process(block); err != nil {
			t.Fatal(err)
		}
	}
	if len(rec.got) != blocks {
		t.Errorf("beats = %d, want %d", len(rec.got), blocks)
	}
}

func TestSpikeAfterSteadyState(t *testing.T) {
	d, rec := startedDetector(t)
	baseline := utils.GenerateBinSine(DefaultFFTSize, 4, 1024)
	spike := utils.GenerateBinSine(DefaultFFTSize, 4, 16384)

	for range 2 * HistorySize {
		if err := d.Process(baseline); err != nil {
			t.Fatal(err)
		}
	}
	before := len(rec.got)

	if err := d.Process(spike); err != nil {
		t.Fatal(err)
	}
	if len(rec.got) != before+1 {
		t.Fatalf("spike fired %d beats, want 1", len(rec.got)-before)
	}

	want := expectedIntensity(t, spike)
	if got := rec.got[len(rec.got)-1]; got != want {
		t.Errorf("spike intensity = %d, want %d", got, want)
	}
	if want < 5000 {
		t.Errorf("spike intensity %d unexpectedly small", want)
	}
}

func TestRestartClearsHistory(t *testing.T) {
	d, rec := startedDetector(t)
	block := utils.GenerateBinSine(DefaultFFTSize, 4, 1024)

	for range 2 * HistorySize {
		if err := d.Process(block); err != nil {
			t.Fatal(err)
		}
	}
	before := len(rec.got)

	d.Stop()
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	if err := d.Process(block); err != nil {
		t.Fatal(err)
	}
	if len(rec.got) != before+1 {
		t.Errorf("first block after restart should fire against an empty history")
	}
}

func TestBlockLengthPolicy(t *testing.T) {
	full := utils.GenerateBinSine(DefaultFFTSize, 4, 8192)
	short := full[:DefaultFFTSize/2]

	padded := make([]int16, DefaultFFTSize)
	copy(padded, short)

	long := make([]int16, 2*DefaultFFTSize)
	copy(long, full)
	for i := DefaultFFTSize; i < len(long); i++ {
		long[i] = math.MaxInt16
	}

	tests := []struct {
		name  string
		block []int16
		same  []int16
	}{
		{"Short block is zero-padded", short, padded},
		{"Long block is truncated", long, full},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, recA := startedDetector(t)
			b, recB := startedDetector(t)
			if err := a.Process(tt.block); err != nil {
				t.Fatal(err)
			}
			if err := b.Process(tt.same); err != nil {
				t.Fatal(err)
			}
			if len(recA.got) != 1 || len(recB.got) != 1 {
				t.Fatalf("first non-silent block should fire: %v / %v", recA.got, recB.got)
			}
			if recA.got[0] != recB.got[0] {
				t.Errorf("intensity %d, want %d", recA.got[0], recB.got[0])
			}
		})
	}
}

func TestSensitivityTakesEffectOnNextBlock(t *testing.T) {
	d, rec := startedDetector(t)
	block := utils.GenerateBinSine(DefaultFFTSize, 4, 1024)

	for range 2 * HistorySize {
		if err := d.Process(block); err != nil {
			t.Fatal(err)
		}
	}
	before := len(rec.got)

	d.SetSensitivity(MinSensitivity)
	if err := d.Process(block); err != nil {
		t.Fatal(err)
	}
	if len(rec.got) != before+1 {
		t.Error("lowering sensitivity should let a steady signal through")
	}
}

func TestProcessHotPath(t *testing.T) {
	d, _ := startedDetector(t)
	d.SetCallback(func(int) {})
	block := utils.GenerateComplexWave(DefaultFFTSize, 44100)

	_ = d.Process(block)
	allocs := testing.AllocsPerRun(100, func() {
		_ = d.Process(block)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Process hot path, got %.1f", allocs)
	}
}

func BenchmarkProcess(b *testing.B) {
	d := NewSpectralBeatDetector()
	d.SetCallback(func(int) {})
	if err := d.Start(); err != nil {
		b.Fatal(err)
	}
	defer d.Stop()
	block := utils.GenerateComplexWave(DefaultFFTSize, 44100)

	b.ReportAllocs()
	for b.Loop() {
		_ = d.Process(block)
	}
}
