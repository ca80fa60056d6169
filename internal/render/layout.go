package render

import (
	"strings"

	"golang.org/x/image/font"
)

// Measurer reports the rendered pixel width of a string.
type Measurer interface {
	Measure(s string) int
}

// MeasureFunc adapts a plain function to Measurer.
type MeasureFunc func(s string) int

// Measure implements Measurer.
func (f MeasureFunc) Measure(s string) int { return f(s) }

// FaceMeasurer measures strings by their advance width in a font face.
type FaceMeasurer struct {
	Face font.Face
}

// Measure implements Measurer.
func (m FaceMeasurer) Measure(s string) int {
	return font.MeasureString(m.Face, s).Ceil()
}

// Wrap greedily packs the space separated words of text into lines no wider
// than maxWidth. Words are never split: a word that is wider than maxWidth on
// its own occupies a line by itself and overflows. Empty input yields no lines.
func Wrap(text string, m Measurer, maxWidth int) []string {
	var (
		lines   []string
		current string
	)
	for _, word := range strings.Fields(text) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if m.Measure(candidate) <= maxWidth {
			current = candidate
			continue
		}
		if current != "" {
			lines = append(lines, current)
		}
		current = word
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}
