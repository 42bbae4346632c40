// SPDX-License-Identifier: MIT
package led

import (
	"beatlamp/internal/log"
	"math"
	"sync"
	"time"
)

const (
	DefaultBrightness    = 128
	DefaultLowBrightness = 4
)

// Sink is the pixel hardware, or anything standing in for it. SetPixel
// stages a value; Show flushes every staged value at once. Indices are
// always in [0, Len()).
type Sink interface {
	Len() int
	SetPixel(i int, c Color)
	Show() error
}

// State is a snapshot of the engine's settings.
type State struct {
	Power             bool
	Effect            EffectType
	Params            Params
	DefaultBrightness int
	LowBrightness     int // Stored and reported; no effect renders with it.
}

// tickerFunc returns a tick channel and a function that stops it.
type tickerFunc func(time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Engine renders effects onto a Sink. Every method is safe for concurrent
// use; state reads, state writes, and pixel writes all happen under one
// mutex, so beat frames and animation frames never interleave.
type Engine struct {
	mu    sync.Mutex
	sink  Sink
	state State

	// generation increases on every refresh. An animation goroutine only
	// draws while the generation it was started under is current.
	generation uint64
	stopAnim   chan struct{}
	wg         sync.WaitGroup
	closed     bool

	newTicker tickerFunc
}

// EngineOption configures an Engine at construction.
type EngineOption func(*Engine)

// WithBrightness sets the initial default and low brightness.
func WithBrightness(def, low int) EngineOption {
	return func(e *Engine) {
		e.state.DefaultBrightness = int(ClampChannel(def))
		e.state.LowBrightness = int(ClampChannel(low))
	}
}

// WithEffect sets the initial effect and parameters.
func WithEffect(t EffectType, p Params) EngineOption {
	return func(e *Engine) {
		if t.Valid() {
			e.state.Effect = t
		}
		e.state.Params = p.clamped()
	}
}

// NewEngine returns a powered-off engine showing Static white. Nothing is
// written to the sink until the first state change.
func NewEngine(sink Sink, opts ...EngineOption) *Engine {
	e := &Engine{
		sink: sink,
		state: State{
			Effect:            Static,
			Params:            DefaultParams(),
			DefaultBrightness: DefaultBrightness,
			LowBrightness:     DefaultLowBrightness,
		},
		newTicker: realTicker,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetPower switches the strip on or off and repaints.
func (e *Engine) SetPower(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	log.Debugf("LED: power %t", on)
	e.state.Power = on
	e.refreshLocked()
}

// Power reports the power flag.
func (e *Engine) Power() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Power
}

// SetBrightness stores both brightness levels, clamped to 0-255, and
// repaints.
func (e *Engine) SetBrightness(def, low int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.DefaultBrightness = int(ClampChannel(def))
	e.state.LowBrightness = int(ClampChannel(low))
	e.refreshLocked()
}

// SetEffect switches effect, keeping the current parameters.
func (e *Engine) SetEffect(t EffectType) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !t.Valid() {
		log.Warnf("LED: ignoring unknown effect %d", int(t))
		return
	}
	e.state.Effect = t
	e.refreshLocked()
}

// SetEffectParams switches effect and replaces the parameters.
func (e *Engine) SetEffectParams(t EffectType, p Params) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !t.Valid() {
		log.Warnf("LED: ignoring unknown effect %d", int(t))
		return
	}
	e.state.Effect = t
	e.state.Params = p.clamped()
	e.refreshLocked()
}

// Len returns the number of pixels on the sink.
func (e *Engine) Len() int {
	return e.sink.Len()
}

// State returns a copy of the current settings.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// RefreshEffect repaints the strip from the current state. Any running
// animation is superseded.
func (e *Engine) RefreshEffect() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refreshLocked()
}

func (e *Engine) refreshLocked() {
	e.generation++
	e.stopAnimationLocked()

	n := e.sink.Len()
	if !e.state.Power {
		e.fillLocked(n, Black)
		e.showLocked()
		return
	}

	p := e.state.Params
	color := p.BaseColor.Scale(e.state.DefaultBrightness)

	switch e.state.Effect {
	case Static:
		e.fillLocked(n, color)
		e.showLocked()

	case Blink:
		e.fillLocked(n, color)
		e.showLocked()
		e.startAnimationLocked(p.Interval, func(frame int) {
			if frame%2 == 1 {
				e.fillLocked(e.sink.Len(), Black)
			} else {
				e.fillLocked(e.sink.Len(), color)
			}
		})

	case Scroll:
		e.scrollLocked(n, color, p.Length, 0)
		e.showLocked()
		e.startAnimationLocked(p.Interval, func(frame int) {
			n := e.sink.Len()
			if n > 0 {
				e.scrollLocked(n, color, p.Length, frame%n)
			}
		})

	case StaticSingle:
		if n == 0 {
			return
		}
		e.sink.SetPixel(min(p.Index, n-1), color)
		e.showLocked()

	case Music:
		// Painted by RenderBeat.
	}
}

// RenderBeat paints one Music frame. Each pixel takes the base colour
// scaled by intensity/255 and by a sine pulse whose phase depends on the
// pixel's position and the intensity. The intensity is not bounded, so
// channels are clamped per pixel. Nothing happens while the strip is off,
// another effect is active, or the strip is empty.
func (e *Engine) RenderBeat(intensity int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.sink.Len()
	if !e.state.Power || e.state.Effect != Music || n == 0 {
		return
	}

	scale := float64(intensity) / 255
	base := e.state.Params.BaseColor
	dynR := float64(base.R) * scale
	dynG := float64(base.G) * scale
	dynB := float64(base.B) * scale
	phase := float64(intensity) * 0.01

	for i := range n {
		angle := float64(i) * 2 * math.Pi / float64(n)
		pulse := (math.Sin(angle+phase) + 1) / 2
		e.sink.SetPixel(i, Color{
			R: ClampChannel(int(dynR * pulse)),
			G: ClampChannel(int(dynG * pulse)),
			B: ClampChannel(int(dynB * pulse)),
		})
	}
	e.showLocked()
}

// Close stops any running animation and waits for it to exit. Later state
// changes still paint static frames but start no animations.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.generation++
	e.stopAnimationLocked()
	e.mu.Unlock()

	e.wg.Wait()
}

func (e *Engine) fillLocked(n int, c Color) {
	for i := range n {
		e.sink.SetPixel(i, c)
	}
}

// scrollLocked lights length pixels starting at offset, wrapping at the
// end of the strip, and blacks out the rest.
func (e *Engine) scrollLocked(n int, c Color, length, offset int) {
	length = min(length, n)
	for i := range n {
		if (i-offset+n)%n < length {
			e.sink.SetPixel(i, c)
		} else {
			e.sink.SetPixel(i, Black)
		}
	}
}

func (e *Engine) showLocked() {
	if err := e.sink.Show(); err != nil {
		log.Warnf("LED: show failed: %v", err)
	}
}

// startAnimationLocked runs step on every tick until the generation moves
// on. The first step call gets frame 1; frame 0 is drawn by the caller.
func (e *Engine) startAnimationLocked(interval time.Duration, step func(frame int)) {
	if e.closed {
		return
	}

	gen := e.generation
	ticks, stopTicker := e.newTicker(interval)
	done := make(chan struct{})
	e.stopAnim = done

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer stopTicker()

		frame := 0
		for {
			select {
			case <-done:
				return
			case <-ticks:
				frame++
				if !e.animate(gen, frame, step) {
					return
				}
			}
		}
	}()
}

func (e *Engine) animate(gen uint64, frame int, step func(int)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation != gen {
		return false
	}
	step(frame)
	e.showLocked()
	return true
}

func (e *Engine) stopAnimationLocked() {
	if e.stopAnim != nil {
		close(e.stopAnim)
		e.stopAnim = nil
	}
}
