// SPDX-License-Identifier: MIT
package audio

import (
	"beatlamp/internal/log"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// RecordingBitDepth is the only sample width the engine records.
const RecordingBitDepth = 16

// recording is the state of one open WAV file.
type recording struct {
	file      *os.File
	encoder   *wav.Encoder
	sampleBuf *audio.IntBuffer // Reusable buffer for format conversion.
	frames    int
	maxFrames int // 0 for unlimited.
}

// RecordingPath returns a timestamped WAV path inside dir.
func RecordingPath(dir string, now time.Time) string {
	return filepath.Join(dir, "beatlamp_"+now.Format("20060102_150405")+".wav")
}

// StartRecording writes the raw interleaved input to a 16-bit WAV file
// until StopRecording. maxDuration of zero records without limit; past the
// limit input is discarded until the recording is stopped.
func (e *Engine) StartRecording(filename string, maxDuration time.Duration) error {
	e.recMu.Lock()
	defer e.recMu.Unlock()

	if e.recording != nil {
		return fmt.Errorf("already recording")
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("failed to create recording directory: %w", err)
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	channels := max(e.config.InputChannels, 1)
	rate := int(e.config.SampleRate)
	e.recording = &recording{
		file:    file,
		encoder: wav.NewEncoder(file, rate, RecordingBitDepth, channels, 1),
		sampleBuf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  rate,
			},
			Data:           make([]int, e.config.FramesPerBuffer*channels),
			SourceBitDepth: RecordingBitDepth,
		},
		maxFrames: int(maxDuration.Seconds() * e.config.SampleRate),
	}
	e.isRecording.Store(true)

	log.Infof("Audio: recording to %s", filename)
	return nil
}

// writeRecording appends one interleaved block. Called from the capture
// callback only.
func (e *Engine) writeRecording(interleaved []int16) {
	e.recMu.Lock()
	defer e.recMu.Unlock()

	rec := e.recording
	if rec == nil {
		return
	}

	channels := rec.sampleBuf.Format.NumChannels
	if rec.maxFrames > 0 {
		remaining := (rec.maxFrames - rec.frames) * channels
		if remaining <= 0 {
			e.isRecording.Store(false)
			log.Infof("Audio: recording reached its maximum duration")
			return
		}
		interleaved = interleaved[:min(len(interleaved), remaining)]
	}

	if cap(rec.sampleBuf.Data) < len(interleaved) {
		rec.sampleBuf.Data = make([]int, len(interleaved))
	}
	rec.sampleBuf.Data = rec.sampleBuf.Data[:len(interleaved)]
	for i, sample := range interleaved {
		rec.sampleBuf.Data[i] = int(sample)
	}

	if err := rec.encoder.Write(rec.sampleBuf); err != nil {
		log.Errorf("Audio: error writing to WAV file: %v", err)
		return
	}
	rec.frames += len(interleaved) / channels
}

// Recording reports whether input is being written to a file.
func (e *Engine) Recording() bool {
	return e.isRecording.Load()
}

// StopRecording finalises the WAV header and closes the file. Calling it
// while not recording does nothing.
func (e *Engine) StopRecording() error {
	e.recMu.Lock()
	defer e.recMu.Unlock()

	e.isRecording.Store(false)
	rec := e.recording
	if rec == nil {
		return nil
	}
	e.recording = nil

	encErr := rec.encoder.Close()
	fileErr := rec.file.Close()
	if encErr != nil {
		return fmt.Errorf("failed to finalise recording: %w", encErr)
	}
	if fileErr != nil {
		return fmt.Errorf("failed to close recording: %w", fileErr)
	}

	log.Infof("Audio: recording stopped after %d frames", rec.frames)
	return nil
}
