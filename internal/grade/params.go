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

package grade

import (
	"errors"
	"fmt"

	"github.com/mlnoga/gradelight/internal/curve"
)

// MaxQualifiers limits the point color qualifier list.
const MaxQualifiers = 8

// A ToneMapMode selects the output tone mapping curve.
type ToneMapMode int

const (
	ToneMapStandard ToneMapMode = iota
	ToneMapFilmic
	ToneMapAgX
	ToneMapSoft
	ToneMapNeutral
)

var toneMapNames = []string{"standard", "filmic", "agx", "soft", "neutral"}

func (m ToneMapMode) String() string {
	if m < 0 || int(m) >= len(toneMapNames) {
		return "standard"
	}
	return toneMapNames[m]
}

func (m ToneMapMode) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

func (m *ToneMapMode) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return errors.New(fmt.Sprintf("invalid tone map mode %s", s))
	}
	s = s[1 : len(s)-1]
	for i, name := range toneMapNames {
		if s == name {
			*m = ToneMapMode(i)
			return nil
		}
	}
	return errors.New(fmt.Sprintf("unknown tone map mode '%s'", s))
}

// VignetteParams shape the elliptical edge darkening.
type VignetteParams struct {
	Amount    float32 `json:"amount"`
	Midpoint  float32 `json:"midpoint"`
	Roundness float32 `json:"roundness"`
	Feather   float32 `json:"feather"`
}

// GrainParams shape the film grain overlay. Roughness is accepted for preset
// compatibility but does not currently affect the noise function.
type GrainParams struct {
	Amount    float32 `json:"amount"`
	Size      float32 `json:"size"`
	Roughness float32 `json:"roughness"`
}

// A Wheel is one zone of the three-way color grading controls. Hue is in
// degrees [0,360), saturation in [0,1], luminance a signed lift.
type Wheel struct {
	Hue float32 `json:"hue"`
	Sat float32 `json:"sat"`
	Lum float32 `json:"lum"`
}

// ColorGradingParams hold the shadow/midtone/highlight wheels plus the
// zone blending softness and range balance.
type ColorGradingParams struct {
	Shadows    Wheel   `json:"shadows"`
	Midtones   Wheel   `json:"midtones"`
	Highlights Wheel   `json:"highlights"`
	Blending   float32 `json:"blending"`
	Balance    float32 `json:"balance"`
}

// A MixerBand is the hue/sat/lum shift of one fixed hue band of the color
// mixer. Hue shift in degrees, sat and lum shifts in percent.
type MixerBand struct {
	Hue float32 `json:"hue"`
	Sat float32 `json:"sat"`
	Lum float32 `json:"lum"`
}

// MixerParams are the eight fixed hue bands of the color mixer.
type MixerParams struct {
	Red     MixerBand `json:"red"`
	Orange  MixerBand `json:"orange"`
	Yellow  MixerBand `json:"yellow"`
	Green   MixerBand `json:"green"`
	Aqua    MixerBand `json:"aqua"`
	Blue    MixerBand `json:"blue"`
	Purple  MixerBand `json:"purple"`
	Magenta MixerBand `json:"magenta"`
}

func (m *MixerParams) bands() [8]MixerBand {
	return [8]MixerBand{m.Red, m.Orange, m.Yellow, m.Green, m.Aqua, m.Blue, m.Purple, m.Magenta}
}

// A CalibPrimary is the per-primary hue/sat shift of camera calibration.
// Hue shift in degrees, sat shift as a signed fraction.
type CalibPrimary struct {
	Hue float32 `json:"hue"`
	Sat float32 `json:"sat"`
}

// CalibrationParams shift the red, green and blue primaries and tint shadows.
type CalibrationParams struct {
	Red        CalibPrimary `json:"red"`
	Green      CalibPrimary `json:"green"`
	Blue       CalibPrimary `json:"blue"`
	ShadowTint float32      `json:"shadowTint"`
}

// A Qualifier is one HSL-proximity selective color key. All axes and shifts
// are normalized to [0,1]; hue is circular.
type Qualifier struct {
	Active     bool    `json:"active"`
	SrcHue     float32 `json:"srcHue"`
	SrcSat     float32 `json:"srcSat"`
	SrcLum     float32 `json:"srcLum"`
	HueShift   float32 `json:"hueShift"`
	SatShift   float32 `json:"satShift"`
	LumShift   float32 `json:"lumShift"`
	HueRange   float32 `json:"hueRange"`
	HueFalloff float32 `json:"hueFalloff"`
	SatRange   float32 `json:"satRange"`
	SatFalloff float32 `json:"satFalloff"`
	LumRange   float32 `json:"lumRange"`
	LumFalloff float32 `json:"lumFalloff"`
}

// CurveParams are the master (luma) and per-channel tone curves. Each channel
// always has at least the two permanent endpoints at x=0 and x=1.
type CurveParams struct {
	L []curve.Point `json:"l"`
	R []curve.Point `json:"r"`
	G []curve.Point `json:"g"`
	B []curve.Point `json:"b"`
}

// Params is the complete, immutable grading parameter snapshot. The core
// never mutates or retains one; every evaluation is a pure function of the
// snapshot passed in.
type Params struct {
	Exposure    float32 `json:"exposure"`
	Contrast    float32 `json:"contrast"`
	Highlights  float32 `json:"highlights"`
	Shadows     float32 `json:"shadows"`
	Whites      float32 `json:"whites"`
	Blacks      float32 `json:"blacks"`
	Saturation  float32 `json:"saturation"`
	Vibrance    float32 `json:"vibrance"`
	Brightness  float32 `json:"brightness"`
	Temperature float32 `json:"temperature"`
	Tint        float32 `json:"tint"`

	Texture float32 `json:"texture"`
	Clarity float32 `json:"clarity"`
	Dehaze  float32 `json:"dehaze"`

	Vignette            VignetteParams `json:"vignette"`
	Grain               GrainParams    `json:"grain"`
	Halation            float32        `json:"halation"`
	ChromaticAberration float32        `json:"chromaticAberration"`
	Distortion          float32        `json:"distortion"`
	Sharpness           float32        `json:"sharpness"`

	ToneMap      ToneMapMode `json:"toneMap"`
	ToneStrength float32     `json:"toneStrength"`

	Curves       CurveParams        `json:"curves"`
	ColorGrading ColorGradingParams `json:"colorGrading"`
	Mixer        MixerParams        `json:"mixer"`
	Calibration  CalibrationParams  `json:"calibration"`
	PointColor   []Qualifier        `json:"pointColor"`

	LUTText      string  `json:"lutText,omitempty"`
	LUTIntensity float32 `json:"lutIntensity"`
}

// NewParamsDefault returns the neutral parameter snapshot: grading with it
// reproduces the input within floating point tolerance.
func NewParamsDefault() *Params {
	return &Params{
		Contrast:     1,
		Saturation:   1,
		Vignette:     VignetteParams{Midpoint: 0.5, Feather: 0.5},
		Grain:        GrainParams{Size: 1, Roughness: 0.5},
		ToneMap:      ToneMapStandard,
		ToneStrength: 1,
		Curves: CurveParams{
			L: []curve.Point{{X: 0, Y: 0}, {X: 1, Y: 1}},
			R: []curve.Point{{X: 0, Y: 0}, {X: 1, Y: 1}},
			G: []curve.Point{{X: 0, Y: 0}, {X: 1, Y: 1}},
			B: []curve.Point{{X: 0, Y: 0}, {X: 1, Y: 1}},
		},
		ColorGrading: ColorGradingParams{Blending: 50},
		LUTIntensity: 1,
	}
}

// Validate checks snapshot invariants the surrounding application must keep:
// curve channels retain their endpoints and the qualifier list stays bounded.
func (p *Params) Validate() error {
	if len(p.PointColor) > MaxQualifiers {
		return errors.New(fmt.Sprintf("too many point color qualifiers: %d, maximum %d", len(p.PointColor), MaxQualifiers))
	}
	for name, ch := range map[string][]curve.Point{"l": p.Curves.L, "r": p.Curves.R, "g": p.Curves.G, "b": p.Curves.B} {
		if len(ch) < 2 {
			return errors.New(fmt.Sprintf("curve channel %s has %d points, needs at least 2", name, len(ch)))
		}
	}
	return nil
}
