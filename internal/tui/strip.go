// SPDX-License-Identifier: MIT
package tui

import (
	"beatlamp/internal/led"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

const pixelGlyph = "██"

// Hex returns c as a #rrggbb string.
func Hex(c led.Color) string {
	return colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}.Hex()
}

// Strip renders every shown frame as one line of coloured blocks,
// redrawing the same terminal line each time.
type Strip struct {
	mu       sync.Mutex
	w        io.Writer
	renderer *lipgloss.Renderer
	styles   map[led.Color]lipgloss.Style
	sb       strings.Builder
}

var _ led.Output = (*Strip)(nil)

// NewStrip writes frames to w, detecting its colour support.
func NewStrip(w io.Writer) *Strip {
	return &Strip{
		w:        w,
		renderer: lipgloss.NewRenderer(w),
		styles:   make(map[led.Color]lipgloss.Style),
	}
}

// Render returns the line for pixels without writing it.
func (s *Strip) Render(pixels []led.Color) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderLocked(pixels)
}

func (s *Strip) renderLocked(pixels []led.Color) string {
	s.sb.Reset()
	for _, c := range pixels {
		style, ok := s.styles[c]
		if !ok {
			style = s.renderer.NewStyle().Foreground(lipgloss.Color(Hex(c)))
			s.styles[c] = style
		}
		s.sb.WriteString(style.Render(pixelGlyph))
	}
	return s.sb.String()
}

func (s *Strip) WriteFrame(pixels []led.Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, "\r"+s.renderLocked(pixels))
	return err
}
