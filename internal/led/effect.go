// SPDX-License-Identifier: MIT
package led

import (
	"fmt"
	"strings"
	"time"
)

// EffectType selects how RefreshEffect paints the strip.
type EffectType int

const (
	Static       EffectType = iota // Whole strip in one colour.
	Blink                          // Colour and black alternating every interval.
	Scroll                         // A run of lit pixels walking around the strip.
	StaticSingle                   // One pixel set, the rest untouched.
	Music                          // Painted by RenderBeat only.
)

var effectNames = [...]string{
	Static:       "static",
	Blink:        "blink",
	Scroll:       "scroll",
	StaticSingle: "single",
	Music:        "music",
}

// EffectTypes lists every effect in declaration order.
func EffectTypes() []EffectType {
	return []EffectType{Static, Blink, Scroll, StaticSingle, Music}
}

func (t EffectType) String() string {
	if t < 0 || int(t) >= len(effectNames) {
		return fmt.Sprintf("EffectType(%d)", int(t))
	}
	return effectNames[t]
}

// Valid reports whether t is one of the declared effects.
func (t EffectType) Valid() bool {
	return t >= Static && t <= Music
}

// ParseEffectType maps a case-insensitive name to its effect.
func ParseEffectType(name string) (EffectType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "static_single", "static-single", "staticsingle":
		return StaticSingle, nil
	}
	for i, n := range effectNames {
		if n == name {
			return EffectType(i), nil
		}
	}
	return Static, fmt.Errorf("unknown effect %q", name)
}

// Parameter bounds applied by the engine. Values outside them are clamped.
const (
	MinInterval = 5 * time.Millisecond
	MaxInterval = 1000 * time.Millisecond
	MinLength   = 1
	MaxLength   = 255
)

// Params are the effect arguments.
type Params struct {
	BaseColor Color
	Interval  time.Duration // Blink and Scroll period.
	Length    int           // Scroll run length in pixels.
	Index     int           // StaticSingle pixel.
}

// DefaultParams returns white, 200ms, length 5, index 0.
func DefaultParams() Params {
	return Params{
		BaseColor: White,
		Interval:  200 * time.Millisecond,
		Length:    5,
		Index:     0,
	}
}

func (p Params) clamped() Params {
	p.Interval = min(max(p.Interval, MinInterval), MaxInterval)
	p.Length = min(max(p.Length, MinLength), MaxLength)
	p.Index = max(p.Index, 0)
	return p
}
