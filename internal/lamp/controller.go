// SPDX-License-Identifier: MIT
/*
Package lamp is the command layer above the LED engine. It validates the
arguments of each lamp command, translates them into engine calls, and
reports the settings that should survive a restart to a Persister.

Persistence itself lives at the application edge; the controller is handed
resolved Settings at construction and never reads storage.
*/
package lamp

import (
	"beatlamp/internal/analysis"
	"beatlamp/internal/led"
	"beatlamp/internal/log"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOutOfRange is returned when a command argument is outside its
// documented range. Nothing is changed when it is returned.
var ErrOutOfRange = errors.New("argument out of range")

// Command argument bounds.
const (
	MinBlinkInterval  = 30
	MaxBlinkInterval  = 1000
	MinScrollInterval = 5
	MaxScrollInterval = 1000
	MinScrollLength   = 1
	MaxScrollLength   = 7
)

// Settings are the values persisted across restarts.
type Settings struct {
	Brightness int
	Red        int
	Green      int
	Blue       int
}

// DefaultSettings returns brightness 128 and white.
func DefaultSettings() Settings {
	return Settings{Brightness: led.DefaultBrightness, Red: 255, Green: 255, Blue: 255}
}

// Persister stores settings after a command changes them.
type Persister interface {
	Persist(Settings) error
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(Settings) error

func (f PersisterFunc) Persist(s Settings) error { return f(s) }

// BeatDetector is the part of the beat detector the controller drives.
type BeatDetector interface {
	Start() error
	Stop()
	SetCallback(fn analysis.BeatFunc)
	Process(samples []int16) error
}

var _ BeatDetector = (*analysis.SpectralBeatDetector)(nil)

// PowerState is the reply to GetState.
type PowerState struct {
	Power bool `json:"power"`
}

// RGB is the reply to GetColor.
type RGB struct {
	Red   int `json:"red"`
	Green int `json:"green"`
	Blue  int `json:"blue"`
}

// Controller exposes the lamp commands.
type Controller struct {
	mu       sync.Mutex // Serialises commands and guards settings.
	engine   *led.Engine
	detector BeatDetector
	persist  Persister
	settings Settings
}

// NewController applies settings to the engine (Static effect in the
// stored colour at the stored brightness) and routes beats from detector
// into the engine. A nil persist discards changes.
func NewController(engine *led.Engine, detector BeatDetector, settings Settings, persist Persister) *Controller {
	if persist == nil {
		persist = PersisterFunc(func(Settings) error { return nil })
	}
	c := &Controller{
		engine:   engine,
		detector: detector,
		persist:  persist,
		settings: settings,
	}

	engine.SetBrightness(settings.Brightness, led.DefaultLowBrightness)
	params := led.DefaultParams()
	params.BaseColor = ClampRGB(settings.Red, settings.Green, settings.Blue)
	engine.SetEffectParams(led.Static, params)

	detector.SetCallback(engine.RenderBeat)
	log.Infof("Lamp: restored brightness %d, colour %v", settings.Brightness, params.BaseColor)
	return c
}

// TurnOn powers the strip.
func (c *Controller) TurnOn() {
	log.Infof("Lamp: turn on")
	c.engine.SetPower(true)
}

// TurnOff blanks the strip.
func (c *Controller) TurnOff() {
	log.Infof("Lamp: turn off")
	c.engine.SetPower(false)
}

// GetState reports the power flag.
func (c *Controller) GetState() PowerState {
	return PowerState{Power: c.engine.Power()}
}

// SetBrightnessLevel sets brightness to LevelToBrightness(level) for a
// level in 0-8 and persists it.
func (c *Controller) SetBrightnessLevel(level int) error {
	if level < 0 || level > MaxLevel {
		return fmt.Errorf("%w: brightness level %d not in [0, %d]", ErrOutOfRange, level, MaxLevel)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	brightness := LevelToBrightness(level)
	log.Infof("Lamp: brightness level %d (%d)", level, brightness)
	c.engine.SetBrightness(brightness, led.DefaultLowBrightness)
	c.settings.Brightness = brightness
	return c.persistLocked()
}

// GetBrightnessLevel returns the level of the stored brightness.
func (c *Controller) GetBrightnessLevel() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return BrightnessToLevel(c.settings.Brightness)
}

// SetColor paints the whole strip in one colour and persists it.
func (c *Controller) SetColor(r, g, b int) error {
	if err := checkRGB(r, g, b); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	log.Infof("Lamp: colour %d, %d, %d", r, g, b)
	params := led.DefaultParams()
	params.BaseColor = ClampRGB(r, g, b)
	c.engine.SetEffectParams(led.Static, params)

	c.settings.Red, c.settings.Green, c.settings.Blue = r, g, b
	return c.persistLocked()
}

// GetColor returns the stored colour.
func (c *Controller) GetColor() RGB {
	c.mu.Lock()
	defer c.mu.Unlock()
	return RGB{Red: c.settings.Red, Green: c.settings.Green, Blue: c.settings.Blue}
}

// SetSingleColor sets one pixel and leaves the others as they are.
func (c *Controller) SetSingleColor(index, r, g, b int) error {
	if n := c.engine.Len(); index < 0 || index >= n {
		return fmt.Errorf("%w: pixel %d not in [0, %d)", ErrOutOfRange, index, n)
	}
	if err := checkRGB(r, g, b); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	log.Infof("Lamp: pixel %d colour %d, %d, %d", index, r, g, b)
	params := led.DefaultParams()
	params.BaseColor = ClampRGB(r, g, b)
	params.Index = index
	c.engine.SetEffectParams(led.StaticSingle, params)
	return nil
}

// Blink alternates the colour with black every interval milliseconds.
func (c *Controller) Blink(r, g, b, intervalMS int) error {
	if err := checkRGB(r, g, b); err != nil {
		return err
	}
	if intervalMS < MinBlinkInterval || intervalMS > MaxBlinkInterval {
		return fmt.Errorf("%w: blink interval %dms not in [%d, %d]", ErrOutOfRange, intervalMS, MinBlinkInterval, MaxBlinkInterval)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	log.Infof("Lamp: blink %d, %d, %d every %dms", r, g, b, intervalMS)
	params := led.DefaultParams()
	params.BaseColor = ClampRGB(r, g, b)
	params.Interval = time.Duration(intervalMS) * time.Millisecond
	c.engine.SetEffectParams(led.Blink, params)
	return nil
}

// Scroll walks a run of length pixels around the strip, one step every
// interval milliseconds.
func (c *Controller) Scroll(r, g, b, length, intervalMS int) error {
	if err := checkRGB(r, g, b); err != nil {
		return err
	}
	if length < MinScrollLength || length > MaxScrollLength {
		return fmt.Errorf("%w: scroll length %d not in [%d, %d]", ErrOutOfRange, length, MinScrollLength, MaxScrollLength)
	}
	if intervalMS < MinScrollInterval || intervalMS > MaxScrollInterval {
		return fmt.Errorf("%w: scroll interval %dms not in [%d, %d]", ErrOutOfRange, intervalMS, MinScrollInterval, MaxScrollInterval)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	log.Infof("Lamp: scroll %d, %d, %d length %d every %dms", r, g, b, length, intervalMS)
	params := led.DefaultParams()
	params.BaseColor = ClampRGB(r, g, b)
	params.Length = length
	params.Interval = time.Duration(intervalMS) * time.Millisecond
	c.engine.SetEffectParams(led.Scroll, params)
	return nil
}

// SetMusicMode switches to the Music effect and starts the detector, or
// stops the detector and returns to Static in the current colour.
func (c *Controller) SetMusicMode(enable bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if enable {
		log.Infof("Lamp: music mode on")
		c.engine.SetEffect(led.Music)
		if err := c.detector.Start(); err != nil {
			c.engine.SetEffect(led.Static)
			return fmt.Errorf("lamp: start beat detector: %w", err)
		}
		return nil
	}

	log.Infof("Lamp: music mode off")
	c.detector.Stop()
	c.engine.SetEffect(led.Static)
	return nil
}

// MusicMode reports whether the Music effect is active.
func (c *Controller) MusicMode() bool {
	return c.engine.State().Effect == led.Music
}

// ProcessAudio hands a block of samples to the detector.
func (c *Controller) ProcessAudio(samples []int16) error {
	return c.detector.Process(samples)
}

// Process implements analysis.SampleProcessor so the controller can sit
// directly behind the capture engine.
func (c *Controller) Process(samples []int16) error {
	return c.ProcessAudio(samples)
}

var _ analysis.SampleProcessor = (*Controller)(nil)

func (c *Controller) persistLocked() error {
	if err := c.persist.Persist(c.settings); err != nil {
		log.Warnf("Lamp: failed to persist settings: %v", err)
		return fmt.Errorf("lamp: persist settings: %w", err)
	}
	return nil
}

func checkRGB(r, g, b int) error {
	for _, ch := range [...]struct {
		name string
		v    int
	}{{"red", r}, {"green", g}, {"blue", b}} {
		if ch.v < 0 || ch.v > 255 {
			return fmt.Errorf("%w: %s %d not in [0, 255]", ErrOutOfRange, ch.name, ch.v)
		}
	}
	return nil
}
