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

// Package lut reads and writes 3D lookup tables in the .cube text format and
// samples them with trilinear interpolation.
package lut

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mlnoga/gradelight/internal/colorspace"
)

// A Lattice is a parsed 3D LUT: Size^3 RGB triples with R varying fastest,
// then G, then B. The domain is always [0,1]^3.
type Lattice struct {
	Title string
	Size  int
	Data  []float32 // 3*Size^3 values
}

// Parse reads a .cube text into a Lattice. It recognizes TITLE, LUT_3D_SIZE
// and DOMAIN_MIN/MAX lines; only the [0,1] domain is supported. A missing
// size declaration or a short data section yields a descriptive error, and
// the caller must leave LUT application disabled.
func Parse(text string) (*Lattice, error) {
	l := &Lattice{}
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch strings.ToUpper(fields[0]) {
		case "TITLE":
			l.Title = strings.Trim(strings.TrimSpace(line[len(fields[0]):]), `"`)
		case "LUT_3D_SIZE":
			if len(fields) < 2 {
				return nil, errors.New("missing LUT_3D_SIZE value")
			}
			size, err := strconv.Atoi(fields[1])
			if err != nil || size < 2 {
				return nil, errors.New(fmt.Sprintf("invalid LUT_3D_SIZE '%s'", fields[1]))
			}
			l.Size = size
			l.Data = make([]float32, 0, 3*size*size*size)
		case "DOMAIN_MIN", "DOMAIN_MAX":
			// accepted but only the [0,1] domain is supported
		case "LUT_1D_SIZE":
			return nil, errors.New("1D LUTs are not supported")
		default:
			if l.Size == 0 {
				return nil, errors.New("missing LUT_3D_SIZE")
			}
			if len(fields) < 3 {
				return nil, errors.New(fmt.Sprintf("malformed data row '%s'", line))
			}
			for i := 0; i < 3; i++ {
				v, err := strconv.ParseFloat(fields[i], 32)
				if err != nil {
					return nil, errors.New(fmt.Sprintf("malformed data value '%s'", fields[i]))
				}
				l.Data = append(l.Data, float32(v))
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if l.Size == 0 {
		return nil, errors.New("missing LUT_3D_SIZE")
	}
	want := 3 * l.Size * l.Size * l.Size
	if len(l.Data) < want {
		return nil, errors.New(fmt.Sprintf("insufficient data points: expected %d, found %d", want/3, len(l.Data)/3))
	}
	return l, nil
}

// Sample performs a trilinear lookup. The input is clamped to [0,1] and
// scaled to lattice coordinates [0, Size-1].
func (l *Lattice) Sample(r, g, b float32) (or, og, ob float32) {
	n := l.Size
	fr := colorspace.Clamp01(r) * float32(n-1)
	fg := colorspace.Clamp01(g) * float32(n-1)
	fb := colorspace.Clamp01(b) * float32(n-1)

	r0, g0, b0 := int(fr), int(fg), int(fb)
	r1, g1, b1 := r0+1, g0+1, b0+1
	if r1 > n-1 {
		r1 = n - 1
	}
	if g1 > n-1 {
		g1 = n - 1
	}
	if b1 > n-1 {
		b1 = n - 1
	}
	tr, tg, tb := fr-float32(r0), fg-float32(g0), fb-float32(b0)

	var acc [3]float32
	for c := 0; c < 3; c++ {
		c000 := l.at(r0, g0, b0, c)
		c100 := l.at(r1, g0, b0, c)
		c010 := l.at(r0, g1, b0, c)
		c110 := l.at(r1, g1, b0, c)
		c001 := l.at(r0, g0, b1, c)
		c101 := l.at(r1, g0, b1, c)
		c011 := l.at(r0, g1, b1, c)
		c111 := l.at(r1, g1, b1, c)

		c00 := colorspace.Lerp(c000, c100, tr)
		c10 := colorspace.Lerp(c010, c110, tr)
		c01 := colorspace.Lerp(c001, c101, tr)
		c11 := colorspace.Lerp(c011, c111, tr)
		c0 := colorspace.Lerp(c00, c10, tg)
		c1 := colorspace.Lerp(c01, c11, tg)
		acc[c] = colorspace.Lerp(c0, c1, tb)
	}
	return acc[0], acc[1], acc[2]
}

func (l *Lattice) at(r, g, b, c int) float32 {
	return l.Data[3*(b*l.Size*l.Size+g*l.Size+r)+c]
}

// WriteCube emits a standards-conformant .cube file: header, then Size^3 rows
// of three 6-decimal floats with R varying fastest. data is laid out exactly
// like Lattice.Data.
func WriteCube(w io.Writer, title string, size int, data []float32) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "TITLE \"%s\"\n", title)
	fmt.Fprintf(bw, "LUT_3D_SIZE %d\n", size)
	fmt.Fprintf(bw, "DOMAIN_MIN 0 0 0\n")
	fmt.Fprintf(bw, "DOMAIN_MAX 1 1 1\n")
	for i := 0; i < size*size*size; i++ {
		fmt.Fprintf(bw, "%.6f %.6f %.6f\n", data[3*i], data[3*i+1], data[3*i+2])
	}
	return bw.Flush()
}
