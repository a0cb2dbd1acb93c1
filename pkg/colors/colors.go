// Package colors keeps configured sidebar colors readable.
package colors

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RGB is a 24-bit color.
type RGB struct {
	R, G, B uint8
}

// Parse reads a "#rrggbb" color.
func Parse(hex string) (RGB, bool) {
	h := strings.TrimPrefix(hex, "#")
	if len(h) != 6 {
		return RGB{}, false
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return RGB{}, false
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, true
}

func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Luminance is the WCAG relative luminance, 0 for black and 1 for white.
// Unparsable colors count as black.
func Luminance(hex string) float64 {
	c, ok := Parse(hex)
	if !ok {
		return 0
	}
	return 0.2126*linear(c.R) + 0.7152*linear(c.G) + 0.0722*linear(c.B)
}

func linear(v uint8) float64 {
	f := float64(v) / 255
	if f <= 0.03928 {
		return f / 12.92
	}
	return math.Pow((f+0.055)/1.055, 2.4)
}

// Contrast is the WCAG contrast ratio of two colors, from 1 to 21.
func Contrast(fg, bg string) float64 {
	l1, l2 := Luminance(fg), Luminance(bg)
	if l1 < l2 {
		l1, l2 = l2, l1
	}
	return (l1 + 0.05) / (l2 + 0.05)
}

// Shade moves c towards white for a positive amount and towards black for a
// negative one. amount is clamped to [-1, 1].
func Shade(hex string, amount float64) string {
	c, ok := Parse(hex)
	if !ok {
		return hex
	}
	amount = max(-1, min(1, amount))
	shift := func(v uint8) uint8 {
		f := float64(v)
		if amount > 0 {
			return uint8(f + (255-f)*amount)
		}
		return uint8(f * (1 + amount))
	}
	return RGB{R: shift(c.R), G: shift(c.G), B: shift(c.B)}.Hex()
}

// Readable returns fg, or fg pushed away from bg until the pair reaches
// minRatio. Unparsable colors are returned unchanged.
func Readable(fg, bg string, minRatio float64) string {
	if _, ok := Parse(fg); !ok {
		return fg
	}
	if _, ok := Parse(bg); !ok {
		return fg
	}
	if Contrast(fg, bg) >= minRatio {
		return fg
	}
	dir := 1.0
	if Luminance(fg) <= Luminance(bg) {
		dir = -1
	}
	for step := 1; step <= 10; step++ {
		adjusted := Shade(fg, dir*float64(step)/10)
		if Contrast(adjusted, bg) >= minRatio {
			return adjusted
		}
	}
	if Contrast("#000000", bg) > Contrast("#ffffff", bg) {
		return "#000000"
	}
	return "#ffffff"
}
