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

// Package grade implements the ordered color operator chain. The chain is a
// pure function of the parameter snapshot, the input color and its UV
// coordinate; the raster preview and the LUT bake both call the same code,
// which is what keeps preview and export in agreement.
package grade

import (
	"math"

	cs "github.com/mlnoga/gradelight/internal/colorspace"
	"github.com/mlnoga/gradelight/internal/curve"
	"github.com/mlnoga/gradelight/internal/lut"
)

// An ImageSource provides pixel-neighbor access for the spatial stages:
// the distortion/aberration pre-step, texture/sharpen, halation and the
// aspect ratio of vignette. Sample returns sRGB channel values in [0,1] for a
// normalized coordinate; alpha is ignored.
type ImageSource interface {
	Sample(u, v float32) (r, g, b float32)
	Bounds() (width, height int)
}

// canonical filmic pre-scale; the reference implementations disagreed
// between 0.6 and 1.2, 0.6 is the value baked into existing presets
const filmicPreScale = 0.6

const maskEps = 1e-4

// A Grader is a parameter snapshot compiled for evaluation: tone curve
// splines built once, LUT text parsed once. It holds no mutable state and is
// safe for concurrent use from any number of pixels.
type Grader struct {
	p *Params

	curveL, curveR, curveG, curveB *curve.Spline
	curvesNeutral                  bool

	lattice *lut.Lattice
	lutErr  error
	lutOff  bool // bake mode: never apply the LUT stage
}

// NewGrader compiles a snapshot. A malformed LUT text is reported as the
// returned error, but the Grader remains fully usable with the LUT stage
// disabled; it is never half-applied.
func NewGrader(p *Params) (*Grader, error) {
	gr := &Grader{
		p:      p,
		curveL: curve.NewSpline(curve.SanitizeKnots(p.Curves.L)),
		curveR: curve.NewSpline(curve.SanitizeKnots(p.Curves.R)),
		curveG: curve.NewSpline(curve.SanitizeKnots(p.Curves.G)),
		curveB: curve.NewSpline(curve.SanitizeKnots(p.Curves.B)),
	}
	gr.curvesNeutral = curvesNeutral(p.Curves)
	if p.LUTText != "" {
		gr.lattice, gr.lutErr = lut.Parse(p.LUTText)
		if gr.lutErr != nil {
			gr.lattice = nil
		}
	}
	return gr, gr.lutErr
}

func curvesNeutral(c CurveParams) bool {
	for _, ch := range [][]curve.Point{c.L, c.R, c.G, c.B} {
		if len(ch) != 2 || ch[0].X != 0 || ch[0].Y != 0 || ch[1].X != 1 || ch[1].Y != 1 {
			return false
		}
	}
	return true
}

// DisableLUT turns off the LUT stage regardless of the snapshot; the bake
// evaluator uses this to avoid feeding the LUT back into itself.
func (gr *Grader) DisableLUT() { gr.lutOff = true }

// LUTError returns the parse error of the snapshot's LUT text, if any.
func (gr *Grader) LUTError() error { return gr.lutErr }

// Grade runs the full operator chain on one sRGB pixel at normalized
// coordinate (u,v). src may be nil, in which case the spatial stages are
// skipped; that is the LUT bake context, since a 3D LUT cannot encode
// position-dependent effects.
func (gr *Grader) Grade(r, g, b, u, v float32, src ImageSource) (float32, float32, float32) {
	p := gr.p

	// spatial pre-step: minimal UV distortion and two-sample chromatic
	// aberration, resampling the source before the chain proper
	if src != nil && (p.Distortion != 0 || p.ChromaticAberration != 0) {
		r, g, b = resampleWarped(p, u, v, src)
	}

	// 1. texture / sharpen: subtract the 4-neighbor Laplacian high-pass
	if amt := p.Texture + p.Sharpness; amt != 0 && src != nil {
		r, g, b = sharpen(r, g, b, u, v, amt, src)
	}

	// 2. encode to scene-linear
	r, g, b = cs.SrgbToLinear(r), cs.SrgbToLinear(g), cs.SrgbToLinear(b)

	// 3. camera calibration
	r, g, b = calibrate(&p.Calibration, r, g, b)

	// 4. exposure, in stops around mid-grey
	if p.Exposure != 0 {
		f := float32(math.Pow(2, float64(p.Exposure)))
		r, g, b = r*f, g*f, b*f
	}

	// 5. contrast around the 0.18 mid-grey pivot
	if p.Contrast != 1 {
		r = max32(0, (r-0.18)*p.Contrast+0.18)
		g = max32(0, (g-0.18)*p.Contrast+0.18)
		b = max32(0, (b-0.18)*p.Contrast+0.18)
	}

	// 6. tonal zones: highlights, shadows, whites, blacks
	if p.Highlights != 0 || p.Shadows != 0 || p.Whites != 0 || p.Blacks != 0 {
		luma := cs.Luminance(r, g, b)
		hm := cs.Smoothstep(0.5, 1, luma)
		sm := 1 - cs.Smoothstep(0, 0.2, luma)
		wf := 1 + p.Whites*0.5
		bl := p.Blacks * 0.05
		r = max32(0, (r+r*p.Highlights*0.5*hm+r*p.Shadows*0.3*sm)*wf+bl)
		g = max32(0, (g+g*p.Highlights*0.5*hm+g*p.Shadows*0.3*sm)*wf+bl)
		b = max32(0, (b+b*p.Highlights*0.5*hm+b*p.Shadows*0.3*sm)*wf+bl)
	}

	// 7. dehaze: push away from (positive) or toward (negative) the fixed
	// haze color
	if p.Dehaze != 0 {
		const hazeR, hazeG, hazeB = 0.8, 0.8, 0.9
		f := float32(math.Abs(float64(p.Dehaze))) * 0.5
		if p.Dehaze > 0 {
			r, g, b = max32(0, r+(r-hazeR)*f), max32(0, g+(g-hazeG)*f), max32(0, b+(b-hazeB)*f)
		} else {
			r, g, b = r+(hazeR-r)*f, g+(hazeG-g)*f, b+(hazeB-b)*f
		}
	}

	// 8. clarity: global tonal-curve approximation of local contrast
	if p.Clarity != 0 {
		f := p.Clarity * 0.3
		r = cs.Lerp(r, cs.Smoothstep(0, 1, r), f)
		g = cs.Lerp(g, cs.Smoothstep(0, 1, g), f)
		b = cs.Lerp(b, cs.Smoothstep(0, 1, b), f)
	}

	// 9. halation: ring-sample bright neighbors and bleed them in warm
	if p.Halation > 0 && src != nil {
		r, g, b = halate(r, g, b, u, v, p.Halation, src)
	}

	// 10. back to display-referred sRGB; the creative stages below edit in
	// display space so hue and saturation moves match perceptual expectation
	r, g, b = cs.LinearToSrgb(r), cs.LinearToSrgb(g), cs.LinearToSrgb(b)

	// 11. color mixer
	r, g, b = mix(&p.Mixer, r, g, b)

	// 12. point color qualifiers
	if len(p.PointColor) > 0 {
		r, g, b = pointColor(p.PointColor, r, g, b)
	}

	// 13. three-way color grading wheels
	r, g, b = wheels(&p.ColorGrading, r, g, b)

	// 14. temperature and tint
	if p.Temperature != 0 || p.Tint != 0 {
		r *= 1 + p.Temperature*0.05
		b *= 1 - p.Temperature*0.05
		g *= 1 + p.Tint*0.05
	}

	// 15. brightness, flat add
	if p.Brightness != 0 {
		d := p.Brightness * 0.1
		r, g, b = r+d, g+d, b+d
	}

	// 16. vibrance: boost muted colors more than saturated ones
	if p.Vibrance != 0 {
		sat := max32(r, max32(g, b)) - min32(r, min32(g, b))
		f := 1 + p.Vibrance*(1-sat)
		luma := cs.Luminance(r, g, b)
		r, g, b = cs.Lerp(luma, r, f), cs.Lerp(luma, g, f), cs.Lerp(luma, b, f)
	}

	// 17. saturation
	if p.Saturation != 1 {
		luma := cs.Luminance(r, g, b)
		r = cs.Lerp(luma, r, p.Saturation)
		g = cs.Lerp(luma, g, p.Saturation)
		b = cs.Lerp(luma, b, p.Saturation)
	}

	// 18. vignette
	if p.Vignette.Amount != 0 && src != nil {
		r, g, b = vignette(&p.Vignette, r, g, b, u, v, src)
	}

	// 19. LUT application
	if gr.lattice != nil && !gr.lutOff && p.LUTIntensity > 0 {
		cr := cs.Clamp01(r)
		cg := cs.Clamp01(g)
		cb := cs.Clamp01(b)
		lr, lg, lb := gr.lattice.Sample(cr, cg, cb)
		r = cs.Lerp(r, lr, p.LUTIntensity)
		g = cs.Lerp(g, lg, p.LUTIntensity)
		b = cs.Lerp(b, lb, p.LUTIntensity)
	}

	// 20. tone mapping
	r = toneMap(r, p.ToneMap, p.ToneStrength)
	g = toneMap(g, p.ToneMap, p.ToneStrength)
	b = toneMap(b, p.ToneMap, p.ToneStrength)

	// 21. tone curves: per-channel curve, then the master curve on top
	r, g, b = cs.Clamp01(r), cs.Clamp01(g), cs.Clamp01(b)
	if !gr.curvesNeutral {
		r = cs.Clamp01(gr.curveL.Eval(gr.curveR.Eval(r)))
		g = cs.Clamp01(gr.curveL.Eval(gr.curveG.Eval(g)))
		b = cs.Clamp01(gr.curveL.Eval(gr.curveB.Eval(b)))
	}

	// 22. film grain
	if p.Grain.Amount != 0 && src != nil {
		n := cellNoise(u, v, p.Grain.Size) // Roughness intentionally unused
		d := (n - 0.5) * p.Grain.Amount * 0.1
		r, g, b = cs.Clamp01(r+d), cs.Clamp01(g+d), cs.Clamp01(b+d)
	}

	return r, g, b
}

// resampleWarped applies the UV distortion and samples red and blue at
// slightly scaled offsets from the image center for chromatic aberration.
func resampleWarped(p *Params, u, v float32, src ImageSource) (r, g, b float32) {
	du, dv := u-0.5, v-0.5
	if p.Distortion != 0 {
		s := 1 + p.Distortion*0.1*(du*du+dv*dv)
		du, dv = du*s, dv*s
	}
	r, g, b = src.Sample(0.5+du, 0.5+dv)
	if p.ChromaticAberration != 0 {
		s := p.ChromaticAberration * 0.005
		r, _, _ = src.Sample(0.5+du*(1+s), 0.5+dv*(1+s))
		_, _, b = src.Sample(0.5+du*(1-s), 0.5+dv*(1-s))
	}
	return r, g, b
}

func sharpen(r, g, b, u, v, amt float32, src ImageSource) (float32, float32, float32) {
	w, h := src.Bounds()
	du, dv := 1/float32(w), 1/float32(h)
	nr, ng, nb := src.Sample(u, v-dv)
	sr, sg, sb := src.Sample(u, v+dv)
	er, eg, eb := src.Sample(u+du, v)
	wr, wg, wb := src.Sample(u-du, v)
	k := amt * 2
	r -= (nr + sr + er + wr - 4*r) * k
	g -= (ng + sg + eg + wg - 4*g) * k
	b -= (nb + sb + eb + wb - 4*b) * k
	return cs.Clamp01(r), cs.Clamp01(g), cs.Clamp01(b)
}

func calibrate(c *CalibrationParams, r, g, b float32) (float32, float32, float32) {
	if c.Red == (CalibPrimary{}) && c.Green == (CalibPrimary{}) && c.Blue == (CalibPrimary{}) && c.ShadowTint == 0 {
		return r, g, b
	}
	h, s, l := cs.RGBToHSL(r, g, b)
	wr := cs.Smoothstep(0.33, 0, cs.HueDist(h, 0))
	wg := cs.Smoothstep(0.33, 0, cs.HueDist(h, 1.0/3.0))
	wb := cs.Smoothstep(0.33, 0, cs.HueDist(h, 2.0/3.0))
	sum := wr + wg + wb
	if sum < maskEps {
		sum = maskEps
	}
	wr, wg, wb = wr/sum, wg/sum, wb/sum
	h = cs.Fract(h + (wr*c.Red.Hue+wg*c.Green.Hue+wb*c.Blue.Hue)/360)
	s = cs.Clamp01(s * (wr*(1+c.Red.Sat) + wg*(1+c.Green.Sat) + wb*(1+c.Blue.Sat)))
	r, g, b = cs.HSLToRGB(h, s, l)
	if c.ShadowTint != 0 {
		luma := cs.Luminance(r, g, b)
		g += c.ShadowTint * (1 - cs.Smoothstep(0, 0.4, luma))
	}
	return r, g, b
}

func halate(r, g, b, u, v, halation float32, src ImageSource) (float32, float32, float32) {
	w, h := src.Bounds()
	aspect := float32(w) / float32(h)
	radius := halation * 0.01
	const n = 8
	jitter := hash21(u, v) * 2 * math.Pi / n
	var ar, ag, ab float32
	for i := 0; i < n; i++ {
		ang := float64(jitter) + float64(i)*2*math.Pi/n
		su := u + float32(math.Cos(ang))*radius/aspect
		sv := v + float32(math.Sin(ang))*radius
		sr, sg, sb := src.Sample(su, sv)
		ar += max32(0, sr-0.5)
		ag += max32(0, sg-0.5)
		ab += max32(0, sb-0.5)
	}
	k := halation * 2 / n
	r += ar * k // tint (1, 0.4, 0.1)
	g += ag * 0.4 * k
	b += ab * 0.1 * k
	return r, g, b
}

var mixerCenters = [8]float32{0, 30. / 360, 60. / 360, 120. / 360, 180. / 360, 240. / 360, 270. / 360, 300. / 360}
var mixerWidths = [8]float32{0.1, 0.1, 0.1, 0.15, 0.15, 0.15, 0.1, 0.1}

func mix(m *MixerParams, r, g, b float32) (float32, float32, float32) {
	bands := m.bands()
	active := false
	for _, bd := range bands {
		if bd != (MixerBand{}) {
			active = true
			break
		}
	}
	if !active {
		return r, g, b
	}
	h, s, l := cs.RGBToHSL(r, g, b)
	var dh, dsF, dlF float32
	for i, bd := range bands {
		wgt := cs.Smoothstep(mixerWidths[i], 0, cs.HueDist(h, mixerCenters[i]))
		if wgt <= 0 {
			continue
		}
		dh += wgt * bd.Hue / 360
		dsF += wgt * bd.Sat / 100
		dlF += wgt * bd.Lum / 100 * 0.5
	}
	h = cs.Fract(h + dh)
	s = cs.Clamp01(s * (1 + dsF))
	l = cs.Clamp01(l * (1 + dlF))
	return cs.HSLToRGB(h, s, l)
}

func pointColor(qs []Qualifier, r, g, b float32) (float32, float32, float32) {
	h, s, l := cs.RGBToHSL(r, g, b)
	var dh float32
	sf, lf := float32(1), float32(1)
	matched := false
	for i := range qs {
		q := &qs[i]
		if !q.Active {
			continue
		}
		mh := 1 - cs.Smoothstep(q.HueRange, q.HueRange+q.HueFalloff+maskEps, cs.HueDist(h, q.SrcHue))
		ms := 1 - cs.Smoothstep(q.SatRange, q.SatRange+q.SatFalloff+maskEps, abs32(s-q.SrcSat))
		ml := 1 - cs.Smoothstep(q.LumRange, q.LumRange+q.LumFalloff+maskEps, abs32(l-q.SrcLum))
		m := mh * ms * ml
		if m <= 0 {
			continue
		}
		matched = true
		dh += q.HueShift * m
		sf *= 1 + q.SatShift*m
		lf *= 1 + q.LumShift*m
	}
	if !matched {
		return r, g, b
	}
	h = cs.Fract(h + dh)
	s = cs.Clamp01(s * sf)
	l = cs.Clamp01(l * lf)
	return cs.HSLToRGB(h, s, l)
}

func wheels(cg *ColorGradingParams, r, g, b float32) (float32, float32, float32) {
	if cg.Shadows == (Wheel{}) && cg.Midtones == (Wheel{}) && cg.Highlights == (Wheel{}) {
		return r, g, b
	}
	luma := cs.Luminance(r, g, b)
	t1 := float32(0.33) + cg.Balance*0.2
	t2 := float32(0.66) + cg.Balance*0.2
	ov := cg.Blending/100*0.5 + 0.01
	sm := 1 - cs.Smoothstep(t1-ov, t1+ov, luma)
	hm := cs.Smoothstep(t2-ov, t2+ov, luma)
	mm := 1 - sm - hm // may go negative at extreme overlap; keep as is

	zone := func(w *Wheel, mask float32) {
		tr, tg, tb := cs.HSLToRGB(cs.Fract(w.Hue/360), w.Sat, 0.5)
		r += (tr - 0.5) * mask
		g += (tg - 0.5) * mask
		b += (tb - 0.5) * mask
		r += w.Lum * 0.2 * mask
		g += w.Lum * 0.2 * mask
		b += w.Lum * 0.2 * mask
	}
	zone(&cg.Shadows, sm)
	zone(&cg.Midtones, mm)
	zone(&cg.Highlights, hm)
	return max32(0, r), max32(0, g), max32(0, b)
}

func vignette(vp *VignetteParams, r, g, b, u, v float32, src ImageSource) (float32, float32, float32) {
	w, h := src.Bounds()
	aspect := float32(w) / float32(h)
	du := (u - 0.5) * cs.Lerp(aspect, 1, vp.Roundness)
	dv := v - 0.5
	dist := float32(math.Sqrt(float64(du*du + dv*dv)))
	feather := vp.Feather
	if feather < maskEps {
		feather = maskEps
	}
	edge := vp.Midpoint * 0.7
	mask := cs.Smoothstep(edge, edge+feather, dist)
	f := 1 - mask*vp.Amount
	return r * f, g * f, b * f
}

// toneMap re-linearizes a display-referred channel, applies the selected
// curve, re-encodes, and blends against the plain clamp+encode result by
// strength.
func toneMap(c float32, mode ToneMapMode, strength float32) float32 {
	x := cs.SrgbToLinear(c)
	std := cs.LinearToSrgb(cs.Clamp01(x))

	var enc float32
	switch mode {
	case ToneMapStandard:
		return std
	case ToneMapFilmic:
		enc = cs.LinearToSrgb(cs.Clamp01(acesFit(x * filmicPreScale)))
	case ToneMapAgX:
		enc = cs.LinearToSrgb(agx(x))
	case ToneMapSoft:
		y := 1 - float32(math.Exp(float64(-1.2*x)))
		enc = cs.LinearToSrgb(min32(x, y))
	case ToneMapNeutral:
		enc = cs.LinearToSrgb(x)
	default:
		return std
	}
	return cs.Lerp(std, enc, strength)
}

// acesFit is the rational ACES-like approximation (Narkowicz fit).
func acesFit(x float32) float32 {
	return (x * (2.51*x + 0.03)) / (x*(2.43*x+0.59) + 0.14)
}

func agx(x float32) float32 {
	lx := float32(math.Log2(math.Max(float64(x), 1e-10)))
	t := cs.Clamp01((lx + 12.47393) / 16.5)
	t = t * t * (3 - 2*t)
	return t * t
}

// cellNoise quantizes UV space into grain cells and hashes the cell to a
// pseudo-random value in [0,1). The hash is deterministic, so the raster and
// bake evaluators agree on identical coordinates.
func cellNoise(u, v, size float32) float32 {
	cell := size * 0.001
	if cell < maskEps {
		cell = maskEps
	}
	cu := float32(math.Floor(float64(u / cell)))
	cv := float32(math.Floor(float64(v / cell)))
	return hash21(cu, cv)
}

// hash21 is the classic shader sine hash, kept bit-for-bit identical between
// evaluators.
func hash21(x, y float32) float32 {
	s := math.Sin(float64(x)*12.9898+float64(y)*78.233) * 43758.5453
	return float32(s - math.Floor(s))
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func abs32(a float32) float32 {
	if a < 0 {
		return -a
	}
	return a
}
