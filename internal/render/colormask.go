package render

import (
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// frontFunc returns the foreground colour at pixel (x, y).
type frontFunc func(x, y int) color.NRGBA

type maskBuilder func(m ColorMask, width, height int) frontFunc

var colorMasks = map[ColorMaskType]maskBuilder{
	MaskSolid:              solidMask,
	MaskRadialGradient:     radialMask,
	MaskSquareGradient:     squareMask,
	MaskHorizontalGradient: horizontalMask,
	MaskVerticalGradient:   verticalMask,
	MaskImage:              imageMask,
}

func solidMask(m ColorMask, _, _ int) frontFunc {
	c := toNRGBA(m.FrontColor, defaultFront)
	return func(int, int) color.NRGBA { return c }
}

func radialMask(m ColorMask, w, h int) frontFunc {
	center := toNRGBA(m.CenterColor, defaultFront)
	edge := toNRGBA(m.EdgeColor, defaultGradient)
	cx, cy := float64(w)/2, float64(h)/2
	maxDist := math.Hypot(cx, cy)
	return func(x, y int) color.NRGBA {
		d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
		return lerpColor(center, edge, d/maxDist)
	}
}

func squareMask(m ColorMask, w, h int) frontFunc {
	center := toNRGBA(m.CenterColor, defaultFront)
	edge := toNRGBA(m.EdgeColor, defaultGradient)
	cx, cy := float64(w)/2, float64(h)/2
	return func(x, y int) color.NRGBA {
		d := math.Max(math.Abs(float64(x)+0.5-cx)/cx, math.Abs(float64(y)+0.5-cy)/cy)
		return lerpColor(center, edge, d)
	}
}

func horizontalMask(m ColorMask, w, _ int) frontFunc {
	left := toNRGBA(m.LeftColor, defaultFront)
	right := toNRGBA(m.RightColor, defaultGradient)
	return func(x, _ int) color.NRGBA {
		return lerpColor(left, right, (float64(x)+0.5)/float64(w))
	}
}

func verticalMask(m ColorMask, _, h int) frontFunc {
	top := toNRGBA(m.TopColor, defaultFront)
	bottom := toNRGBA(m.BottomColor, defaultGradient)
	return func(_, y int) color.NRGBA {
		return lerpColor(top, bottom, (float64(y)+0.5)/float64(h))
	}
}

// imageMask samples foreground colours from an image stretched over the
// canvas. Transparency in the source is ignored.
func imageMask(m ColorMask, w, h int) frontFunc {
	src := imaging.Resize(m.Image, w, h, imaging.Lanczos)
	return func(x, y int) color.NRGBA {
		c := src.NRGBAAt(x, y)
		c.A = 255
		return c
	}
}
