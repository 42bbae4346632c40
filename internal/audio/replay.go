// SPDX-License-Identifier: MIT
package audio

import (
	"beatlamp/internal/analysis"
	"beatlamp/internal/log"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned when a file is not a readable PCM WAV.
var ErrInvalidWAV = errors.New("not a valid PCM WAV file")

// ReplayOptions control how a file is fed through a processor.
type ReplayOptions struct {
	BlockSize int  // Frames per block; 1024 when zero.
	Realtime  bool // Pace blocks at the file's sample rate.
}

// ReplayStats describe a finished replay.
type ReplayStats struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Blocks     int
	Frames     int
	Duration   time.Duration // Audio duration, not wall time.
}

// Replay decodes a WAV file, down-mixes it to mono 16-bit, and hands it to
// proc in BlockSize-frame blocks. The final block may be shorter. Replay
// stops early when ctx is cancelled or proc returns an error.
func Replay(ctx context.Context, path string, proc analysis.SampleProcessor, opts ReplayOptions) (ReplayStats, error) {
	var stats ReplayStats
	if opts.BlockSize <= 0 {
		opts.BlockSize = 1024
	}

	f, err := os.Open(path)
	if err != nil {
		return stats, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return stats, fmt.Errorf("%s: %w", path, ErrInvalidWAV)
	}

	stats.SampleRate = int(dec.SampleRate)
	stats.Channels = int(dec.NumChans)
	stats.BitDepth = int(dec.BitDepth)
	if stats.Channels < 1 || stats.SampleRate <= 0 {
		return stats, fmt.Errorf("%s: %w: %d channels at %d Hz", path, ErrInvalidWAV, stats.Channels, stats.SampleRate)
	}
	log.Infof("Replay: %s (%d Hz, %d ch, %d bit)", path, stats.SampleRate, stats.Channels, stats.BitDepth)

	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: stats.Channels, SampleRate: stats.SampleRate},
		Data:   make([]int, opts.BlockSize*stats.Channels),
	}
	block := make([]int16, opts.BlockSize)

	var ticker *time.Ticker
	if opts.Realtime {
		period := time.Duration(float64(opts.BlockSize) / float64(stats.SampleRate) * float64(time.Second))
		ticker = time.NewTicker(period)
		defer ticker.Stop()
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return stats, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		if n == 0 {
			break
		}

		frames := toMono16(block, buf.Data[:n], stats.Channels, stats.BitDepth)
		if frames == 0 {
			break
		}

		if ticker != nil {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-ticker.C:
			}
		}

		if err := proc.Process(block[:frames]); err != nil {
			return stats, fmt.Errorf("processor failed at block %d: %w", stats.Blocks, err)
		}
		stats.Blocks++
		stats.Frames += frames
	}

	stats.Duration = time.Duration(float64(stats.Frames) / float64(stats.SampleRate) * float64(time.Second))
	log.Infof("Replay: %d blocks, %s of audio", stats.Blocks, stats.Duration.Round(time.Millisecond))
	return stats, nil
}

// toMono16 rescales decoded samples of bitDepth to 16 bits, averages each
// frame's channels into dst, and returns the number of frames written.
func toMono16(dst []int16, samples []int, channels, bitDepth int) int {
	frames := min(len(samples)/channels, len(dst))
	for i := range frames {
		var sum int
		for c := range channels {
			sum += to16(samples[i*channels+c], bitDepth)
		}
		dst[i] = int16(sum / channels)
	}
	return frames
}

// to16 converts one sample. 8-bit WAV data is unsigned; wider depths are
// signed and shifted down.
func to16(v, bitDepth int) int {
	switch {
	case bitDepth == 8:
		return (v - 128) << 8
	case bitDepth > 16:
		return v >> (bitDepth - 16)
	case bitDepth < 16 && bitDepth > 0:
		return v << (16 - bitDepth)
	}
	return v
}
