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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mlnoga/gradelight/internal/grade"
	"github.com/mlnoga/gradelight/internal/lut"
)

// Bake samples the full operator chain over a size^3 grid and returns the
// result as .cube text. The snapshot's own LUT stage is disabled during
// sampling to avoid feeding the LUT back into itself. The sweep runs the
// outer blue planes in parallel and computes fully into a buffer before any
// text is produced, so a cancellation via ctx never yields a partial file.
func (c *Context) Bake(ctx context.Context, p *grade.Params, size int, title string) (string, error) {
	if size < 2 {
		return "", errors.New(fmt.Sprintf("invalid LUT size %d, must be at least 2", size))
	}
	gr, err := grade.NewGrader(p)
	if err != nil {
		fmt.Fprintf(c.Log, "source LUT ignored during bake: %s\n", err.Error())
	}
	gr.DisableLUT()

	start := time.Now()
	data := make([]float32, 3*size*size*size)
	limiter := make(chan bool, c.MaxThreads)
	canceled := false
	for k := 0; k < size; k++ { // blue varies slowest
		if ctx.Err() != nil {
			canceled = true
			break
		}
		limiter <- true
		go func(k int) {
			defer func() { <-limiter }()
			bv := float32(k) / float32(size-1)
			i := 3 * k * size * size
			for j := 0; j < size; j++ {
				gv := float32(j) / float32(size-1)
				for ii := 0; ii < size; ii++ { // red varies fastest
					rv := float32(ii) / float32(size-1)
					r, g, b := gr.Grade(rv, gv, bv, 0.5, 0.5, nil)
					data[i] = r
					data[i+1] = g
					data[i+2] = b
					i += 3
				}
			}
		}(k)
	}
	for i := 0; i < cap(limiter); i++ { // wait for goroutines to finish
		limiter <- true
	}
	if canceled || ctx.Err() != nil {
		return "", ctx.Err()
	}

	sb := &strings.Builder{}
	if err := lut.WriteCube(sb, title, size, data); err != nil {
		return "", err
	}
	fmt.Fprintf(c.Log, "Baked %dx%dx%d LUT in %v\n", size, size, size, time.Since(start))
	return sb.String(), nil
}
