// SPDX-License-Identifier: MIT
package lamp

import (
	"beatlamp/internal/led"
	"beatlamp/pkg/bitint"
)

// MaxLevel is the top of the 0-8 brightness scale.
const MaxLevel = 8

// LevelToBrightness maps a level onto 2^level - 1, so 0 is off and 8 is
// full brightness. Levels outside 0-8 are clamped.
func LevelToBrightness(level int) int {
	level = min(max(level, 0), MaxLevel)
	return 1<<level - 1
}

// BrightnessToLevel returns floor(log2(b+1)) for b clamped to 0-255. It
// inverts LevelToBrightness exactly on its outputs; other brightness values
// round down to the nearest level.
func BrightnessToLevel(brightness int) int {
	b := int(led.ClampChannel(brightness))
	return bitint.FloorLog2(uint(b) + 1)
}

// ClampRGB builds a colour from unbounded channel values.
func ClampRGB(r, g, b int) led.Color {
	return led.RGB(r, g, b)
}
