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

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"runtime/pprof"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/tiff"

	"github.com/mlnoga/gradelight/internal/eval"
	"github.com/mlnoga/gradelight/internal/grade"
	"github.com/mlnoga/gradelight/internal/rest"
)

const version = "0.1.0"

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var out        = flag.String("out", "out.png", "save graded image to `file` (.png, .jpg or .tif by suffix)")
var params     = flag.String("params", "", "load grading parameters from JSON `file`")
var saveParams = flag.String("saveParams", "", "save effective grading parameters to JSON `file`")

var lutIn      = flag.String("lut", "", "apply 3D LUT from .cube `file` as the final look")
var lutOut     = flag.String("lutOut", "", "bake the grade into a .cube LUT and save to `file`")
var lutSize    = flag.Int64("lutSize", 33, "grid size per axis for LUT baking")
var lutTitle   = flag.String("lutTitle", "gradelight export", "TITLE string for the baked LUT")

var exposure   = flag.Float64("exposure", 0, "exposure in stops around mid-grey")
var contrast   = flag.Float64("contrast", 1, "contrast around the 0.18 mid-grey pivot, 1=no op")
var highlights = flag.Float64("highlights", 0, "highlight recovery/boost, 0=no op")
var shadows    = flag.Float64("shadows", 0, "shadow lift/crush, 0=no op")
var whites     = flag.Float64("whites", 0, "white level scale, 0=no op")
var blacks     = flag.Float64("blacks", 0, "black level offset, 0=no op")
var saturation = flag.Float64("saturation", 1, "global saturation, 1=no op, 0=grayscale")
var vibrance   = flag.Float64("vibrance", 0, "saturation boost weighted toward muted colors, 0=no op")
var brightness = flag.Float64("brightness", 0, "flat brightness offset, 0=no op")
var temp       = flag.Float64("temp", 0, "color temperature shift, warm>0, cold<0")
var tint       = flag.Float64("tint", 0, "green/magenta tint shift")
var texture    = flag.Float64("texture", 0, "high-frequency texture enhancement, 0=no op")
var clarity    = flag.Float64("clarity", 0, "midtone contrast, 0=no op")
var dehaze     = flag.Float64("dehaze", 0, "haze removal (>0) or addition (<0), 0=no op")
var toneMap    = flag.String("toneMap", "standard", "tone mapping mode: standard, filmic, agx, soft or neutral")
var toneStren  = flag.Float64("toneStrength", 1, "blend between standard and selected tone mapping")

func main() {
	logWriter := os.Stdout
	flag.Usage = func() {
		fmt.Fprintf(logWriter, `Gradelight Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (grade|bake|swatch|serve|legal|version) [inputs]

Commands:
  grade   Grade input image files and save the result per -out
  bake    Bake the parameter set into a .cube LUT per -lutOut
  swatch  Grade hex color arguments, e.g. '#808080', and print the results
  serve   Start the REST API server
  legal   Show license and attribution information
  version Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Fprintf(logWriter, "Could not create CPU profile: %s\n", err.Error())
			os.Exit(-1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(logWriter, "Could not start CPU profile: %s\n", err.Error())
			os.Exit(-1)
		}
		defer pprof.StopCPUProfile()
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}

	p, err := paramsFromFlags()
	if err != nil {
		fmt.Fprintf(logWriter, "Error assembling parameters: %s\n", err.Error())
		os.Exit(-1)
	}
	if *saveParams != "" {
		if err := writeParams(*saveParams, p); err != nil {
			fmt.Fprintf(logWriter, "Error saving parameters: %s\n", err.Error())
			os.Exit(-1)
		}
		fmt.Fprintf(logWriter, "Saved parameters to %s\n", *saveParams)
	}

	c := eval.NewContext(logWriter)
	fmt.Fprintf(logWriter, "Using %d threads, %d MiB physical memory\n", c.MaxThreads, c.MemoryMB)

	switch args[0] {
	case "grade":
		if len(args) < 2 {
			fmt.Fprintf(logWriter, "grade requires at least one input image\n")
			os.Exit(-1)
		}
		for i, fileName := range args[1:] {
			if err := gradeFile(c, p, fileName, outName(i, len(args)-1)); err != nil {
				fmt.Fprintf(logWriter, "%d: Error grading %s: %s\n", i, fileName, err.Error())
				os.Exit(-1)
			}
		}

	case "bake":
		if *lutOut == "" {
			fmt.Fprintf(logWriter, "bake requires -lutOut\n")
			os.Exit(-1)
		}
		text, err := c.Bake(context.Background(), p, int(*lutSize), *lutTitle)
		if err != nil {
			fmt.Fprintf(logWriter, "Error baking LUT: %s\n", err.Error())
			os.Exit(-1)
		}
		if err := os.WriteFile(*lutOut, []byte(text), 0644); err != nil {
			fmt.Fprintf(logWriter, "Error writing %s: %s\n", *lutOut, err.Error())
			os.Exit(-1)
		}
		fmt.Fprintf(logWriter, "Wrote %d point LUT to %s\n", *lutSize**lutSize**lutSize, *lutOut)

	case "swatch":
		gr, err := grade.NewGrader(p)
		if err != nil {
			fmt.Fprintf(logWriter, "LUT disabled: %s\n", err.Error())
		}
		for _, s := range args[1:] {
			col, err := colorful.Hex(s)
			if err != nil {
				fmt.Fprintf(logWriter, "Invalid swatch '%s': %s\n", s, err.Error())
				os.Exit(-1)
			}
			r, g, b := gr.Grade(float32(col.R), float32(col.G), float32(col.B), 0.5, 0.5, nil)
			graded := colorful.Color{R: float64(r), G: float64(g), B: float64(b)}.Clamped()
			fmt.Fprintf(logWriter, "%s -> %s\n", s, graded.Hex())
		}

	case "serve":
		rest.Serve()

	case "legal":
		fmt.Fprint(logWriter, legal)

	case "version":
		fmt.Fprintf(logWriter, "Version %s\n", version)

	case "help", "?":
		flag.Usage()

	default:
		fmt.Fprintf(logWriter, "Unknown command '%s'\n", args[0])
		flag.Usage()
		os.Exit(-1)
	}

	// Write memory profile if flagged
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			fmt.Fprintf(logWriter, "Could not create memory profile: %s\n", err.Error())
			os.Exit(-1)
		}
		defer f.Close()
		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(logWriter, "Could not write memory profile: %s\n", err.Error())
			os.Exit(-1)
		}
	}
}

// paramsFromFlags builds the parameter snapshot: JSON preset first if given,
// then scalar flag overrides, then the imported LUT text.
func paramsFromFlags() (*grade.Params, error) {
	p := grade.NewParamsDefault()
	if *params != "" {
		bs, err := os.ReadFile(*params)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(bs, p); err != nil {
			return nil, err
		}
	}
	// scalar flags override the preset only when explicitly given
	set := map[string]*float32{
		"exposure": &p.Exposure, "contrast": &p.Contrast, "highlights": &p.Highlights,
		"shadows": &p.Shadows, "whites": &p.Whites, "blacks": &p.Blacks,
		"saturation": &p.Saturation, "vibrance": &p.Vibrance, "brightness": &p.Brightness,
		"temp": &p.Temperature, "tint": &p.Tint, "texture": &p.Texture,
		"clarity": &p.Clarity, "dehaze": &p.Dehaze, "toneStrength": &p.ToneStrength,
	}
	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		if target, ok := set[f.Name]; ok {
			v, err := strconv.ParseFloat(f.Value.String(), 32)
			if err != nil {
				flagErr = err
				return
			}
			*target = float32(v)
		}
		if f.Name == "toneMap" {
			if err := json.Unmarshal([]byte(`"`+*toneMap+`"`), &p.ToneMap); err != nil {
				flagErr = err
			}
		}
	})
	if flagErr != nil {
		return nil, flagErr
	}
	if *lutIn != "" {
		bs, err := os.ReadFile(*lutIn)
		if err != nil {
			return nil, err
		}
		p.LUTText = string(bs)
	}
	return p, p.Validate()
}

func writeParams(fileName string, p *grade.Params) error {
	bs, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(fileName, bs, 0644)
}

// outName expands the -out target for multiple inputs by appending the index
// before the suffix.
func outName(i, total int) string {
	if total <= 1 {
		return *out
	}
	ext := filepath.Ext(*out)
	return fmt.Sprintf("%s%04d%s", strings.TrimSuffix(*out, ext), i, ext)
}

func gradeFile(c *eval.Context, p *grade.Params, inName, outFile string) error {
	f, err := os.Open(inName)
	if err != nil {
		return err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Log, "Loaded %dx%d pixel image from %s\n", img.Bounds().Dx(), img.Bounds().Dy(), inName)

	graded := c.Render(img, p)

	o, err := os.Create(outFile)
	if err != nil {
		return err
	}
	defer o.Close()
	fnLower := strings.ToLower(outFile)
	switch {
	case strings.HasSuffix(fnLower, ".png"):
		err = png.Encode(o, graded)
	case strings.HasSuffix(fnLower, ".jpg"), strings.HasSuffix(fnLower, ".jpeg"):
		err = jpeg.Encode(o, graded, &jpeg.Options{Quality: 95})
	case strings.HasSuffix(fnLower, ".tif"), strings.HasSuffix(fnLower, ".tiff"):
		err = tiff.Encode(o, graded, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = fmt.Errorf("unknown output suffix in '%s'", outFile)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Log, "Wrote graded image to %s\n", outFile)
	return nil
}
