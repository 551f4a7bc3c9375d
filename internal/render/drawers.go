package render

import (
	"math"

	"github.com/fogleman/gg"
)

// cell is the pixel box of one module.
type cell struct {
	X, Y, Size float64
}

// neighbours records which orthogonal neighbours of a module are dark.
type neighbours struct {
	N, S, E, W bool
}

type moduleDrawFunc func(dc *gg.Context, c cell, nb neighbours, d ModuleDrawer)

type eyeDrawFunc func(dc *gg.Context, x, y, module float64, d EyeDrawer)

var moduleDrawers = map[ModuleDrawerType]moduleDrawFunc{
	ModuleSquare:         drawSquare,
	ModuleGappedSquare:   drawGappedSquare,
	ModuleCircle:         drawCircle,
	ModuleRounded:        drawRounded,
	ModuleVerticalBars:   drawVerticalBar,
	ModuleHorizontalBars: drawHorizontalBar,
}

var eyeDrawers = map[EyeDrawerType]eyeDrawFunc{
	EyeSquare:  drawSquareEye,
	EyeRounded: drawRoundedEye,
	EyeCircle:  drawCircleEye,
}

func drawSquare(dc *gg.Context, c cell, _ neighbours, _ ModuleDrawer) {
	dc.DrawRectangle(c.X, c.Y, c.Size, c.Size)
	dc.Fill()
}

func drawGappedSquare(dc *gg.Context, c cell, _ neighbours, d ModuleDrawer) {
	side := c.Size * d.SizeRatio
	off := (c.Size - side) / 2
	dc.DrawRectangle(c.X+off, c.Y+off, side, side)
	dc.Fill()
}

func drawCircle(dc *gg.Context, c cell, _ neighbours, d ModuleDrawer) {
	half := c.Size / 2
	dc.DrawCircle(c.X+half, c.Y+half, half*d.SizeRatio)
	dc.Fill()
}

// drawRounded rounds a corner only when neither neighbour touching it is dark,
// so runs of modules merge into smooth blobs.
func drawRounded(dc *gg.Context, c cell, nb neighbours, d ModuleDrawer) {
	r := c.Size / 2 * d.RadiusRatio
	corner := func(a, b bool) float64 {
		if a || b {
			return 0
		}
		return r
	}
	roundedRect(dc, c.X, c.Y, c.Size, c.Size,
		corner(nb.N, nb.W), corner(nb.N, nb.E), corner(nb.S, nb.E), corner(nb.S, nb.W))
	dc.Fill()
}

func drawVerticalBar(dc *gg.Context, c cell, nb neighbours, _ ModuleDrawer) {
	w := c.Size * barShrink
	r := w / 2
	top, bottom := r, r
	if nb.N {
		top = 0
	}
	if nb.S {
		bottom = 0
	}
	roundedRect(dc, c.X+(c.Size-w)/2, c.Y, w, c.Size, top, top, bottom, bottom)
	dc.Fill()
}

func drawHorizontalBar(dc *gg.Context, c cell, nb neighbours, _ ModuleDrawer) {
	h := c.Size * barShrink
	r := h / 2
	left, right := r, r
	if nb.W {
		left = 0
	}
	if nb.E {
		right = 0
	}
	roundedRect(dc, c.X, c.Y+(c.Size-h)/2, c.Size, h, left, right, right, left)
	dc.Fill()
}

// roundedRect adds a closed rectangle sub-path with an individual radius
// per corner, clockwise from the top-left.
func roundedRect(dc *gg.Context, x, y, w, h, nw, ne, se, sw float64) {
	x1, y1 := x+w, y+h
	dc.NewSubPath()
	dc.MoveTo(x+nw, y)
	dc.LineTo(x1-ne, y)
	if ne > 0 {
		dc.DrawArc(x1-ne, y+ne, ne, gg.Radians(270), gg.Radians(360))
	}
	dc.LineTo(x1, y1-se)
	if se > 0 {
		dc.DrawArc(x1-se, y1-se, se, 0, gg.Radians(90))
	}
	dc.LineTo(x+sw, y1)
	if sw > 0 {
		dc.DrawArc(x+sw, y1-sw, sw, gg.Radians(90), gg.Radians(180))
	}
	dc.LineTo(x, y+nw)
	if nw > 0 {
		dc.DrawArc(x+nw, y+nw, nw, gg.Radians(180), gg.Radians(270))
	}
	dc.ClosePath()
}

// Eyes are drawn whole: a one-module ring around a 3x3 ball. Every variant
// keeps the 1:1:3:1:1 profile along the lines through the centre.

func drawSquareEye(dc *gg.Context, x, y, m float64, _ EyeDrawer) {
	dc.SetFillRuleEvenOdd()
	dc.DrawRectangle(x, y, 7*m, 7*m)
	dc.DrawRectangle(x+m, y+m, 5*m, 5*m)
	dc.Fill()
	dc.SetFillRuleWinding()
	dc.DrawRectangle(x+2*m, y+2*m, 3*m, 3*m)
	dc.Fill()
}

func drawRoundedEye(dc *gg.Context, x, y, m float64, d EyeDrawer) {
	outer := 2 * m * d.RadiusRatio
	inner := math.Max(0, outer-m)
	ball := m * d.RadiusRatio
	dc.SetFillRuleEvenOdd()
	roundedRect(dc, x, y, 7*m, 7*m, outer, outer, outer, outer)
	roundedRect(dc, x+m, y+m, 5*m, 5*m, inner, inner, inner, inner)
	dc.Fill()
	dc.SetFillRuleWinding()
	roundedRect(dc, x+2*m, y+2*m, 3*m, 3*m, ball, ball, ball, ball)
	dc.Fill()
}

func drawCircleEye(dc *gg.Context, x, y, m float64, _ EyeDrawer) {
	cx, cy := x+3.5*m, y+3.5*m
	dc.SetFillRuleEvenOdd()
	dc.DrawCircle(cx, cy, 3.5*m)
	dc.DrawCircle(cx, cy, 2.5*m)
	dc.Fill()
	dc.SetFillRuleWinding()
	dc.DrawCircle(cx, cy, 1.5*m)
	dc.Fill()
}
