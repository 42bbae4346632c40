// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"
)

func TestBandMean(t *testing.T) {
	spectrum := make([]float64, 16)
	for i := range spectrum {
		spectrum[i] = float64(i)
	}

	// Mean of 2..10 is 6.
	if got := BassBand.Mean(spectrum); got != 6 {
		t.Errorf("BassBand.Mean() = %v, want 6", got)
	}
	if got := BassBand.Width(); got != 9 {
		t.Errorf("BassBand.Width() = %d, want 9", got)
	}
}

func TestBandValidate(t *testing.T) {
	tests := []struct {
		name    string
		band    Band
		bins    int
		wantErr bool
	}{
		{"Bass fits 512", BassBand, 512, false},
		{"Bass exactly fits", BassBand, 11, false},
		{"Bass too wide", BassBand, 10, true},
		{"Negative start", Band{Start: -1, End: 3}, 16, true},
		{"Inverted", Band{Start: 5, End: 4}, 16, true},
		{"Single bin", Band{Start: 4, End: 4}, 16, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.band.Validate(tt.bins); (err != nil) != tt.wantErr {
				t.Errorf("Validate(%d) error = %v, wantErr %v", tt.bins, err, tt.wantErr)
			}
		})
	}
}

func TestBandRange(t *testing.T) {
	low, high := BassBand.Range(1024, 44100)
	if math.Abs(low-86.1328125) > 1e-9 || math.Abs(high-430.6640625) > 1e-9 {
		t.Errorf("Range() = %f-%f", low, high)
	}
}
