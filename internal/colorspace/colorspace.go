// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package colorspace holds the shared numeric color conversions for the
// grading pipeline. Both the raster and the bake evaluator go through these
// exact functions; keeping a single implementation is what guarantees that
// preview and LUT export agree.
package colorspace

import (
	"math"
)

// Gamma of the simplified transfer function. A single power curve is used
// instead of the piecewise sRGB definition so that encode and decode are
// trivially each other's inverse in both evaluators.
const Gamma = 2.2

// SrgbToLinear decodes a display-referred channel value with c^2.2.
func SrgbToLinear(c float32) float32 {
	if c <= 0 {
		return 0
	}
	return float32(math.Pow(float64(c), Gamma))
}

// LinearToSrgb encodes a scene-linear channel value with c^(1/2.2).
func LinearToSrgb(c float32) float32 {
	if c <= 0 {
		return 0
	}
	return float32(math.Pow(float64(c), 1.0/Gamma))
}

// Luminance returns the Rec. 709 luma weighting of an RGB triple.
func Luminance(r, g, b float32) float32 {
	return 0.2126*r + 0.7152*g + 0.0722*b
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Clamp01 limits x to [0,1].
func Clamp01(x float32) float32 { return Clamp(x, 0, 1) }

// Lerp blends from a to b by t.
func Lerp(a, b, t float32) float32 { return a + (b-a)*t }

// Fract returns the fractional part of x, always in [0,1).
func Fract(x float32) float32 {
	return float32(x) - float32(math.Floor(float64(x)))
}

// Smoothstep is the cubic Hermite ease between edges e0 and e1. The edges may
// be given in descending order, which inverts the ramp; the pipeline relies on
// that for its falloff masks. A degenerate edge pair is floored to keep the
// division finite.
func Smoothstep(e0, e1, x float32) float32 {
	d := e1 - e0
	if d > -1e-6 && d < 1e-6 {
		if d < 0 {
			d = -1e-6
		} else {
			d = 1e-6
		}
	}
	t := Clamp01((x - e0) / d)
	return t * t * (3 - 2*t)
}

// HueDist returns the circular distance between two hues on [0,1).
func HueDist(a, b float32) float32 {
	d := a - b
	if d < 0 {
		d = -d
	}
	if d > 0.5 {
		d = 1 - d
	}
	return d
}

// RGBToHSL converts an sRGB triple in [0,1] to hue, saturation and lightness,
// hue normalized to [0,1).
func RGBToHSL(r, g, b float32) (h, s, l float32) {
	max, min := r, r
	if g > max {
		max = g
	}
	if b > max {
		max = b
	}
	if g < min {
		min = g
	}
	if b < min {
		min = b
	}
	l = (max + min) / 2
	d := max - min
	if d < 1e-6 {
		return 0, 0, l
	}
	if l > 0.5 {
		s = d / (2 - max - min)
	} else {
		s = d / (max + min)
	}
	switch max {
	case r:
		h = (g - b) / d
		if g < b {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	h /= 6
	return h, s, l
}

// HSLToRGB converts hue in [0,1), saturation and lightness in [0,1] back to
// an sRGB triple. The inverse of RGBToHSL for in-gamut values.
func HSLToRGB(h, s, l float32) (r, g, b float32) {
	if s < 1e-6 {
		return l, l, l
	}
	var q float32
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	r = hueToRGB(p, q, h+1.0/3.0)
	g = hueToRGB(p, q, h)
	b = hueToRGB(p, q, h-1.0/3.0)
	return r, g, b
}

func hueToRGB(p, q, t float32) float32 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
