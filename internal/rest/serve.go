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

// Package rest exposes the grading calculator over HTTP: grade a set of
// swatch colors with a parameter snapshot, or bake the snapshot into a .cube
// LUT download.
package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/mlnoga/gradelight/internal/eval"
	"github.com/mlnoga/gradelight/internal/grade"
)

func Serve() {
	r := gin.Default()
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.POST("/grade", postGrade)
			v1.POST("/bake", postBake)
		}
	}
	r.Run() // listen and serve on 0.0.0.0:8080
}

func getPing(c *gin.Context) {
	c.JSON(200, gin.H{
		"message": "pong",
	})
}

type postGradeArgs struct {
	Params   *grade.Params `json:"params"`
	Swatches []string      `json:"swatches"` // hex colors, e.g. "#808080"
}

// postGrade grades a list of hex swatches through the full operator chain
// and returns them as hex again. Spatial stages are skipped, as a bare
// swatch has no neighborhood.
func postGrade(c *gin.Context) {
	var args postGradeArgs
	if err := c.ShouldBind(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if args.Params == nil {
		args.Params = grade.NewParamsDefault()
	}
	if err := args.Params.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	gr, err := grade.NewGrader(args.Params)
	lutWarning := ""
	if err != nil {
		lutWarning = err.Error() // LUT stage degrades to a no-op
	}

	out := make([]string, len(args.Swatches))
	for i, s := range args.Swatches {
		col, err := colorful.Hex(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid swatch '" + s + "': " + err.Error()})
			return
		}
		r, g, b := gr.Grade(float32(col.R), float32(col.G), float32(col.B), 0.5, 0.5, nil)
		out[i] = colorful.Color{R: float64(r), G: float64(g), B: float64(b)}.Clamped().Hex()
	}
	resp := gin.H{"swatches": out}
	if lutWarning != "" {
		resp["lutWarning"] = lutWarning
	}
	c.JSON(http.StatusOK, resp)
}

type postBakeArgs struct {
	Params *grade.Params `json:"params"`
	Size   int           `json:"size"`
	Title  string        `json:"title"`
}

// postBake bakes the snapshot into a .cube text and streams it as a
// download. The bake is computed fully before the first byte is written, so
// a client abort never leaves a truncated file half-served.
func postBake(c *gin.Context) {
	var args postBakeArgs
	if err := c.ShouldBind(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if args.Params == nil {
		args.Params = grade.NewParamsDefault()
	}
	if err := args.Params.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if args.Size == 0 {
		args.Size = 33
	}
	if args.Title == "" {
		args.Title = "gradelight export"
	}

	ec := eval.NewContext(gin.DefaultWriter)
	text, err := ec.Bake(c.Request.Context(), args.Params, args.Size, args.Title)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="export.cube"`)
	c.Data(http.StatusOK, "text/plain", []byte(text))
}
