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

package eval

import (
	"image"

	"github.com/mlnoga/gradelight/internal/colorspace"
)

// A Source adapts a decoded image to the grade.ImageSource contract:
// normalized-coordinate lookup of sRGB values in [0,1], alpha ignored. The
// pixel data is flattened once so per-sample access stays cheap inside the
// parallel raster pass.
type Source struct {
	width, height int
	pix           []float32 // 3 channels, row major
}

// NewImageSource flattens img into a sampleable source.
func NewImageSource(img image.Image) *Source {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	src := &Source{width: w, height: h, pix: make([]float32, 3*w*h)}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			pr, pg, pb, _ := img.At(x, y).RGBA()
			src.pix[i] = float32(pr) / 65535
			src.pix[i+1] = float32(pg) / 65535
			src.pix[i+2] = float32(pb) / 65535
			i += 3
		}
	}
	return src
}

func (s *Source) Bounds() (width, height int) { return s.width, s.height }

// Sample returns the nearest pixel for a normalized coordinate, clamped to
// the image edges. Coordinates are cell-centered, matching the (x+0.5)/w
// convention of the raster pass and the 1/w neighbor offsets of the spatial
// stages, so a pixel-center lookup always lands on its own pixel.
func (s *Source) Sample(u, v float32) (r, g, b float32) {
	x := int(colorspace.Clamp01(u) * float32(s.width))
	if x > s.width-1 {
		x = s.width - 1
	}
	y := int(colorspace.Clamp01(v) * float32(s.height))
	if y > s.height-1 {
		y = s.height - 1
	}
	i := 3 * (y*s.width + x)
	return s.pix[i], s.pix[i+1], s.pix[i+2]
}
