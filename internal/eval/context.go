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

// Package eval hosts the two realizations of the grading contract: the
// raster evaluator that grades every pixel of an image, and the bake
// evaluator that samples the chain over a dense grid into a .cube LUT. Both
// invoke the exact same grade.Grader, so their outputs agree.
package eval

import (
	"io"
	"runtime"

	"github.com/pbnjay/memory"
)

// An execution context for evaluators
type Context struct {
	Log        io.Writer
	MemoryMB   int // memory.TotalMemory()/1024/1024
	MaxThreads int
}

func NewContext(log io.Writer) *Context {
	return &Context{
		Log:        log,
		MemoryMB:   int(memory.TotalMemory() / 1024 / 1024),
		MaxThreads: runtime.GOMAXPROCS(0),
	}
}
