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
	"context"
	"image"
	"image/color"
	"io"
	"math"
	"testing"

	"github.com/mlnoga/gradelight/internal/grade"
	"github.com/mlnoga/gradelight/internal/lut"
	"github.com/valyala/fastrand"
)

func testContext() *Context {
	c := NewContext(io.Discard)
	c.MaxThreads = 4
	return c
}

// Baking the identity pipeline and applying the parsed LUT must reproduce
// arbitrary inputs within the lattice quantization error of 1/(N-1).
func TestBakeIdentityRoundTrip(t *testing.T) {
	const n = 17
	c := testContext()
	text, err := c.Bake(context.Background(), grade.NewParamsDefault(), n, "identity")
	if err != nil {
		t.Fatalf("bake failed: %s", err.Error())
	}
	l, err := lut.Parse(text)
	if err != nil {
		t.Fatalf("parse of baked LUT failed: %s", err.Error())
	}
	eps := 1.0 / float64(n-1)
	rng := fastrand.RNG{}
	rng.Seed(23)
	for i := 0; i < 500; i++ {
		r := float32(rng.Uint32n(1001)) / 1000
		g := float32(rng.Uint32n(1001)) / 1000
		b := float32(rng.Uint32n(1001)) / 1000
		or, og, ob := l.Sample(r, g, b)
		if math.Abs(float64(or-r)) > eps || math.Abs(float64(og-g)) > eps || math.Abs(float64(ob-b)) > eps {
			t.Errorf("round trip of (%f,%f,%f) gave (%f,%f,%f)", r, g, b, or, og, ob)
		}
	}
}

// The bake evaluator must agree with direct chain evaluation on every grid
// point: same code path, same constants, same result.
func TestBakeMatchesDirectEvaluation(t *testing.T) {
	const n = 9
	p := grade.NewParamsDefault()
	p.Exposure = 0.7
	p.Contrast = 1.2
	p.Saturation = 1.3
	p.ToneMap = grade.ToneMapFilmic
	p.ToneStrength = 0.8
	p.Mixer.Blue.Sat = -30

	c := testContext()
	text, err := c.Bake(context.Background(), p, n, "parity")
	if err != nil {
		t.Fatalf("bake failed: %s", err.Error())
	}
	l, err := lut.Parse(text)
	if err != nil {
		t.Fatalf("parse of baked LUT failed: %s", err.Error())
	}

	gr, err := grade.NewGrader(p)
	if err != nil {
		t.Fatalf("grader construction failed: %s", err.Error())
	}
	i := 0
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for ii := 0; ii < n; ii++ {
				r, g, b := gr.Grade(float32(ii)/(n-1), float32(j)/(n-1), float32(k)/(n-1), 0.5, 0.5, nil)
				// baked values go through 6-decimal text formatting
				if math.Abs(float64(l.Data[i]-r)) > 1e-5 || math.Abs(float64(l.Data[i+1]-g)) > 1e-5 || math.Abs(float64(l.Data[i+2]-b)) > 1e-5 {
					t.Fatalf("grid point %d/%d/%d: baked (%f,%f,%f), direct (%f,%f,%f)",
						ii, j, k, l.Data[i], l.Data[i+1], l.Data[i+2], r, g, b)
				}
				i += 3
			}
		}
	}
}

func TestBakeCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	text, err := testContext().Bake(ctx, grade.NewParamsDefault(), 33, "canceled")
	if err == nil {
		t.Fatal("want error from canceled bake")
	}
	if text != "" {
		t.Error("canceled bake must not emit partial text")
	}
}

func TestBakeRejectsDegenerateSize(t *testing.T) {
	if _, err := testContext().Bake(context.Background(), grade.NewParamsDefault(), 1, "x"); err == nil {
		t.Error("want error for size 1")
	}
}

func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 255 / (w - 1)), uint8(y * 255 / (h - 1)), 128, 255})
		}
	}
	return img
}

// A neutral render reproduces the input within 8-bit quantization.
func TestRenderNeutral(t *testing.T) {
	img := gradientImage(16, 16)
	out := testContext().Render(img, grade.NewParamsDefault())
	for i := 0; i < len(img.Pix); i++ {
		d := int(img.Pix[i]) - int(out.Pix[i])
		if d < -1 || d > 1 {
			t.Fatalf("pixel byte %d changed from %d to %d", i, img.Pix[i], out.Pix[i])
		}
	}
}

// Every output pixel of a neutral render must come from its own source
// pixel. A half-pixel slip between the raster pass's cell-centered
// coordinates and the source lookup shows up as the right/bottom half of a
// gradient coming back one step darker.
func TestRenderColumnAlignment(t *testing.T) {
	const w, h = 16, 4
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 17), 0, 0, 255})
		}
	}
	out := testContext().Render(img, grade.NewParamsDefault())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			got := int(out.Pix[out.PixOffset(x, y)])
			want := int(img.Pix[img.PixOffset(x, y)])
			if d := got - want; d < -1 || d > 1 {
				t.Fatalf("column %d row %d: neutral render red %d; want %d", x, y, got, want)
			}
		}
	}
}

// The raster evaluator must agree with direct chain evaluation: identical
// (params, color, uv) yield identical results no matter which evaluator ran.
func TestRenderMatchesDirectEvaluation(t *testing.T) {
	p := grade.NewParamsDefault()
	p.Exposure = -0.5
	p.Vibrance = 0.4
	p.ColorGrading.Highlights = grade.Wheel{Hue: 200, Sat: 0.3, Lum: 0}
	p.Vignette.Amount = 0.5

	img := gradientImage(8, 8)
	out := testContext().Render(img, p)

	gr, err := grade.NewGrader(p)
	if err != nil {
		t.Fatalf("grader construction failed: %s", err.Error())
	}
	src := NewImageSource(img)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			u := (float32(x) + 0.5) / 8
			v := (float32(y) + 0.5) / 8
			r, g, b := src.Sample(u, v)
			r, g, b = gr.Grade(r, g, b, u, v, src)
			i := out.PixOffset(x, y)
			for c, want := range []float32{r, g, b} {
				got := float64(out.Pix[i+c]) / 255
				if math.Abs(got-float64(want)) > 1.0/255+1e-5 {
					t.Fatalf("pixel (%d,%d) channel %d: raster %f, direct %f", x, y, c, got, want)
				}
			}
		}
	}
}

func TestImageSourceSampling(t *testing.T) {
	img := gradientImage(4, 4)
	src := NewImageSource(img)
	if w, h := src.Bounds(); w != 4 || h != 4 {
		t.Fatalf("bounds %dx%d; want 4x4", w, h)
	}
	r, _, _ := src.Sample(0, 0)
	if r != 0 {
		t.Errorf("top-left red is %f; want 0", r)
	}
	r, _, _ = src.Sample(1, 0)
	if math.Abs(float64(r)-1) > 1e-2 {
		t.Errorf("top-right red is %f; want 1", r)
	}
	// out-of-range coordinates clamp to the edges
	r2, g2, b2 := src.Sample(-5, 7)
	r3, g3, b3 := src.Sample(0, 1)
	if r2 != r3 || g2 != g3 || b2 != b3 {
		t.Error("out-of-range sample does not clamp to edge")
	}
}
