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

// Package curve implements the natural cubic spline used by the tone curve
// stage of the grading pipeline.
package curve

// MinDX is the minimal knot separation. Curve editing nudges duplicate x
// values by this amount, and spline construction floors every interval with
// the same value, so degenerate knot sets never divide by zero.
const MinDX = 0.001

// A Point is a curve control point in [0,1]x[0,1].
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// A Spline is a natural cubic spline through an ordered set of knots, with
// second derivatives zero at both ends. Evaluation outside the knot range
// extends flat; tone curves never extrapolate.
type Spline struct {
	xs, ys []float32
	y2     []float32 // second derivatives at the knots
}

// NewSpline builds a spline from knots with strictly increasing x. Callers
// are responsible for ordering; near-duplicate x values are tolerated via the
// MinDX floor. Construction solves the tridiagonal system for the second
// derivatives with the Thomas algorithm in O(n).
func NewSpline(points []Point) *Spline {
	n := len(points)
	s := &Spline{
		xs: make([]float32, n),
		ys: make([]float32, n),
		y2: make([]float32, n),
	}
	for i, p := range points {
		s.xs[i] = p.X
		s.ys[i] = p.Y
	}
	if n < 3 {
		return s // linear or constant, y2 stays zero
	}

	// Thomas algorithm on the natural spline system. The boundary rows are
	// identity (y2[0]=y2[n-1]=0), so only the interior is swept.
	cPrime := make([]float32, n)
	dPrime := make([]float32, n)
	for i := 1; i < n-1; i++ {
		h0 := dx(s.xs[i], s.xs[i-1])
		h1 := dx(s.xs[i+1], s.xs[i])
		a := h0
		b := 2 * (h0 + h1)
		c := h1
		d := 6 * ((s.ys[i+1]-s.ys[i])/h1 - (s.ys[i]-s.ys[i-1])/h0)
		denom := b - a*cPrime[i-1]
		if denom < 1e-9 && denom > -1e-9 {
			denom = 1e-9
		}
		cPrime[i] = c / denom
		dPrime[i] = (d - a*dPrime[i-1]) / denom
	}
	for i := n - 2; i >= 1; i-- {
		s.y2[i] = dPrime[i] - cPrime[i]*s.y2[i+1]
	}
	return s
}

func dx(x1, x0 float32) float32 {
	d := x1 - x0
	if d < MinDX {
		d = MinDX
	}
	return d
}

// Eval evaluates the spline at x. Outside the knot range it returns the
// nearest endpoint's y. Must not be called on an empty spline.
func (s *Spline) Eval(x float32) float32 {
	n := len(s.xs)
	if n == 1 {
		return s.ys[0]
	}
	if x <= s.xs[0] {
		return s.ys[0]
	}
	if x >= s.xs[n-1] {
		return s.ys[n-1]
	}

	// binary search for the segment with xs[lo] <= x < xs[lo+1]
	lo, hi := 0, n-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if s.xs[mid] > x {
			hi = mid
		} else {
			lo = mid
		}
	}

	h := dx(s.xs[hi], s.xs[lo])
	a := (s.xs[hi] - x) / h
	b := (x - s.xs[lo]) / h
	return a*s.ys[lo] + b*s.ys[hi] +
		((a*a*a-a)*s.y2[lo]+(b*b*b-b)*s.y2[hi])*(h*h)/6
}

// SanitizeKnots sorts nothing and deletes nothing; it only enforces the MinDX
// separation on an already ordered knot list by nudging duplicates upward,
// mirroring what interactive curve editing does before a spline is built.
// The input is left untouched; parameter snapshots own their knot slices.
func SanitizeKnots(points []Point) []Point {
	out := make([]Point, len(points))
	copy(out, points)
	for i := 1; i < len(out); i++ {
		if out[i].X < out[i-1].X+MinDX {
			out[i].X = out[i-1].X + MinDX
		}
	}
	return out
}
