// SPDX-License-Identifier: MIT
package led

import (
	"beatlamp/internal/log"
	"errors"
	"sync"
)

// Output receives every frame a Buffer shows. The slice is only valid for
// the duration of the call.
type Output interface {
	WriteFrame(pixels []Color) error
}

// Buffer is an in-memory Sink. Show copies the staged pixels into the
// visible frame and hands that frame to each registered Output.
type Buffer struct {
	mu      sync.Mutex
	staged  []Color
	visible []Color
	outputs []Output
	shows   uint64
}

var _ Sink = (*Buffer)(nil)

// NewBuffer returns a Buffer of n black pixels.
func NewBuffer(n int, outputs ...Output) *Buffer {
	n = max(n, 0)
	return &Buffer{
		staged:  make([]Color, n),
		visible: make([]Color, n),
		outputs: outputs,
	}
}

// AddOutput registers another frame receiver.
func (b *Buffer) AddOutput(o Output) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outputs = append(b.outputs, o)
}

func (b *Buffer) Len() int {
	return len(b.staged)
}

// SetPixel stages c at index i. Out-of-range indices are ignored.
func (b *Buffer) SetPixel(i int, c Color) {
	if i < 0 || i >= len(b.staged) {
		return
	}
	b.mu.Lock()
	b.staged[i] = c
	b.mu.Unlock()
}

// Show publishes the staged pixels. Output errors are logged and joined
// into the returned error; every output is still called.
func (b *Buffer) Show() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	copy(b.visible, b.staged)
	b.shows++

	var errs []error
	for _, o := range b.outputs {
		if err := o.WriteFrame(b.visible); err != nil {
			log.Debugf("LED Buffer: output failed: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Frame returns a copy of the last shown frame.
func (b *Buffer) Frame() []Color {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Color(nil), b.visible...)
}

// Shows returns how many times Show has been called.
func (b *Buffer) Shows() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shows
}

// OutputFunc adapts a function to Output.
type OutputFunc func([]Color) error

func (f OutputFunc) WriteFrame(pixels []Color) error {
	return f(pixels)
}
