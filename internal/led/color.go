// SPDX-License-Identifier: MIT
package led

import "fmt"

// Color is one RGB pixel value.
type Color struct {
	R, G, B uint8
}

var (
	Black = Color{}
	White = Color{R: 255, G: 255, B: 255}
)

// ClampChannel limits v to the 0-255 range of a colour channel.
func ClampChannel(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}

// RGB builds a Color from unbounded integers, clamping each channel.
func RGB(r, g, b int) Color {
	return Color{R: ClampChannel(r), G: ClampChannel(g), B: ClampChannel(b)}
}

// Scale returns c with every channel multiplied by brightness/255 and
// truncated. brightness is clamped to 0-255 first.
func (c Color) Scale(brightness int) Color {
	factor := float64(ClampChannel(brightness)) / 255
	return Color{
		R: uint8(float64(c.R) * factor),
		G: uint8(float64(c.G) * factor),
		B: uint8(float64(c.B) * factor),
	}
}

// IsBlack reports whether every channel is zero.
func (c Color) IsBlack() bool {
	return c == Black
}

func (c Color) String() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}
