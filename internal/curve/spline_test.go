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

package curve

import (
	"math"
	"testing"

	"github.com/valyala/fastrand"
	"gonum.org/v1/gonum/interp"
)

func TestSplineIdentity(t *testing.T) {
	s := NewSpline([]Point{{0, 0}, {1, 1}})
	for x := float32(0); x <= 1.0; x += 0.01 {
		y := s.Eval(x)
		if math.Abs(float64(y-x)) > 1e-6 {
			t.Errorf("identity curve at x=%f gave %f", x, y)
		}
	}
}

func TestSplineSingleKnot(t *testing.T) {
	s := NewSpline([]Point{{0.5, 0.25}})
	for _, x := range []float32{-1, 0, 0.5, 1, 2} {
		if y := s.Eval(x); y != 0.25 {
			t.Errorf("single-knot spline at x=%f gave %f; want 0.25", x, y)
		}
	}
}

func TestSplineInterpolatesKnots(t *testing.T) {
	pts := []Point{{0, 0}, {0.25, 0.4}, {0.5, 0.3}, {0.75, 0.9}, {1, 1}}
	s := NewSpline(pts)
	for _, p := range pts {
		y := s.Eval(p.X)
		if math.Abs(float64(y-p.Y)) > 1e-5 {
			t.Errorf("spline at knot x=%f gave %f; want %f", p.X, y, p.Y)
		}
	}
}

func TestSplineFlatExtension(t *testing.T) {
	s := NewSpline([]Point{{0.2, 0.1}, {0.5, 0.7}, {0.8, 0.6}})
	if y := s.Eval(0); y != 0.1 {
		t.Errorf("left extension gave %f; want 0.1", y)
	}
	if y := s.Eval(1); y != 0.6 {
		t.Errorf("right extension gave %f; want 0.6", y)
	}
}

func TestSplineDuplicateKnots(t *testing.T) {
	// near-duplicate x values must not divide by zero or produce NaN
	pts := SanitizeKnots([]Point{{0, 0}, {0.5, 0.2}, {0.5, 0.8}, {1, 1}})
	s := NewSpline(pts)
	for x := float32(0); x <= 1.0; x += 0.005 {
		y := s.Eval(x)
		if math.IsNaN(float64(y)) || math.IsInf(float64(y), 0) {
			t.Fatalf("degenerate knots produced %f at x=%f", y, x)
		}
	}
}

// SanitizeKnots must nudge a copy; the caller's knot slice stays untouched
// so a parameter snapshot is never edited behind its owner's back.
func TestSanitizeKnotsLeavesInputUntouched(t *testing.T) {
	in := []Point{{0, 0}, {0.5, 0.2}, {0.5, 0.8}, {1, 1}}
	out := SanitizeKnots(in)
	if in[2].X != 0.5 {
		t.Errorf("input knot x mutated to %f; want 0.5", in[2].X)
	}
	if out[2].X != 0.5+MinDX {
		t.Errorf("output knot x is %f; want %f", out[2].X, 0.5+MinDX)
	}
}

// Cross-check the float32 Thomas solver against gonum's natural cubic spline
// on randomized monotone knot sets.
func TestSplineMatchesGonum(t *testing.T) {
	rng := fastrand.RNG{}
	rng.Seed(42)
	for iter := 0; iter < 20; iter++ {
		n := 3 + int(rng.Uint32n(6))
		xs := make([]float64, n)
		ys := make([]float64, n)
		pts := make([]Point, n)
		for i := 0; i < n; i++ {
			xs[i] = float64(i) / float64(n-1)
			ys[i] = float64(rng.Uint32n(1000)) / 1000.0
			pts[i] = Point{float32(xs[i]), float32(ys[i])}
		}
		var nc interp.NaturalCubic
		if err := nc.Fit(xs, ys); err != nil {
			t.Fatalf("gonum fit failed: %s", err.Error())
		}
		s := NewSpline(pts)
		for x := 0.0; x <= 1.0; x += 0.02 {
			want := nc.Predict(x)
			got := float64(s.Eval(float32(x)))
			if math.Abs(got-want) > 1e-4 {
				t.Errorf("iter %d x=%f got %f; want %f", iter, x, got, want)
			}
		}
	}
}
