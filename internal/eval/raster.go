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
	"fmt"
	"image"
	"time"

	"github.com/mlnoga/gradelight/internal/colorspace"
	"github.com/mlnoga/gradelight/internal/grade"
)

// Render grades every pixel of img with the given snapshot and returns the
// result as an 8-bit RGBA image. Rows are independent, so they are swept in
// parallel with a buffered-channel limiter bounded by c.MaxThreads. A
// malformed LUT in the snapshot is logged and the LUT stage degrades to a
// no-op; rendering never fails mid-frame.
func (c *Context) Render(img image.Image, p *grade.Params) *image.RGBA {
	gr, err := grade.NewGrader(p)
	if err != nil {
		fmt.Fprintf(c.Log, "LUT disabled: %s\n", err.Error())
	}
	src := NewImageSource(img)
	w, h := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, w, h))

	start := time.Now()
	limiter := make(chan bool, c.MaxThreads)
	for y := 0; y < h; y++ {
		limiter <- true
		go func(y int) {
			defer func() { <-limiter }()
			v := (float32(y) + 0.5) / float32(h)
			for x := 0; x < w; x++ {
				u := (float32(x) + 0.5) / float32(w)
				r, g, b := src.Sample(u, v)
				r, g, b = gr.Grade(r, g, b, u, v, src)
				i := out.PixOffset(x, y)
				out.Pix[i] = uint8(colorspace.Clamp01(r)*255 + 0.5)
				out.Pix[i+1] = uint8(colorspace.Clamp01(g)*255 + 0.5)
				out.Pix[i+2] = uint8(colorspace.Clamp01(b)*255 + 0.5)
				out.Pix[i+3] = 255
			}
		}(y)
	}
	for i := 0; i < cap(limiter); i++ { // wait for goroutines to finish
		limiter <- true
	}
	fmt.Fprintf(c.Log, "Graded %dx%d pixels in %v\n", w, h, time.Since(start))
	return out
}
