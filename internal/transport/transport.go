// SPDX-License-Identifier: MIT
package transport

import (
	"beatlamp/internal/analysis"
	"beatlamp/internal/led"
	"errors"
)

// Transport defines a generic interface for sending beat and frame events.
// Implementations should be thread-safe and must not block the caller for
// long, since beats are sent from the capture callback.
type Transport interface {
	Send(data any) error
	Close() error
}

// Event types carried in the "type" field.
const (
	TypeBeat  = "beat"
	TypeFrame = "frame"
)

// BeatEvent reports one detected beat.
type BeatEvent struct {
	Type      string `json:"type"`
	Intensity int    `json:"intensity"`
}

// NewBeatEvent returns the event for a beat of the given intensity.
func NewBeatEvent(intensity int) BeatEvent {
	return BeatEvent{Type: TypeBeat, Intensity: intensity}
}

// FrameEvent carries one shown LED frame as [r,g,b] triples.
type FrameEvent struct {
	Type   string     `json:"type"`
	Pixels [][3]uint8 `json:"pixels"`
}

// NewFrameEvent copies pixels into a frame event.
func NewFrameEvent(pixels []led.Color) FrameEvent {
	ev := FrameEvent{Type: TypeFrame, Pixels: make([][3]uint8, len(pixels))}
	for i, c := range pixels {
		ev.Pixels[i] = [3]uint8{c.R, c.G, c.B}
	}
	return ev
}

// FrameOutput forwards every frame shown by an led.Buffer to a Transport.
type FrameOutput struct {
	T Transport
}

var _ led.Output = FrameOutput{}

func (o FrameOutput) WriteFrame(pixels []led.Color) error {
	return o.T.Send(NewFrameEvent(pixels))
}

// Detector is the beat detector surface a BeatTap wraps.
type Detector interface {
	Start() error
	Stop()
	SetCallback(fn analysis.BeatFunc)
	Process(samples []int16) error
}

// BeatTap wraps a detector so every beat is also sent to a Transport
// after the registered callback has run.
type BeatTap struct {
	Detector
	t Transport
}

// TapBeats returns det with beats mirrored to t.
func TapBeats(det Detector, t Transport) *BeatTap {
	return &BeatTap{Detector: det, t: t}
}

// SetCallback registers fn on the wrapped detector. A nil fn still
// publishes beats.
func (b *BeatTap) SetCallback(fn analysis.BeatFunc) {
	b.Detector.SetCallback(func(intensity int) {
		if fn != nil {
			fn(intensity)
		}
		_ = b.t.Send(NewBeatEvent(intensity))
	})
}

// Multi fans every event out to several transports. Send and Close call
// each member and join the errors.
type Multi []Transport

func (m Multi) Send(data any) error {
	var errs []error
	for _, t := range m {
		if err := t.Send(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, t := range m {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Transport = Multi(nil)
	_ Detector  = (*BeatTap)(nil)
)
