package detector

import (
	"math"

	"github.com/MeKo-Tech/qrengine/internal/qr"
	"github.com/MeKo-Tech/qrengine/internal/utils"
)

// measureModuleSize estimates the module size along the lines from the
// top-left finder to the other two. A line through a finder centre crosses
// seven modules whatever the rotation, unlike the horizontal runs the row
// scan sees. The row-scan estimate is used when nothing can be measured.
func measureModuleSize(bits *qr.BitMatrix, t Triple) float64 {
	tl, tr, bl := t.TopLeft.Point(), t.TopRight.Point(), t.BottomLeft.Point()
	a := moduleSizeOneWay(bits, tl, tr)
	b := moduleSizeOneWay(bits, tl, bl)
	switch {
	case math.IsNaN(a) && math.IsNaN(b):
		return (t.TopLeft.ModuleSize + t.TopRight.ModuleSize + t.BottomLeft.ModuleSize) / 3
	case math.IsNaN(a):
		return b
	case math.IsNaN(b):
		return a
	}
	return (a + b) / 2
}

// moduleSizeOneWay measures the finders at both ends of the line p-q.
func moduleSizeOneWay(bits *qr.BitMatrix, p, q utils.Point) float64 {
	est1 := runBothWays(bits, p, q)
	est2 := runBothWays(bits, q, p)
	switch {
	case math.IsNaN(est1):
		return est2 / 7
	case math.IsNaN(est2):
		return est1 / 7
	}
	return (est1 + est2) / 14
}

// runBothWays measures the dark-light-dark run from the centre of the
// finder at from towards to and the same run in the opposite direction,
// which together span the finder's seven modules. The opposite end is
// pulled back onto the image when it would fall outside.
func runBothWays(bits *qr.BitMatrix, from, to utils.Point) float64 {
	result := blackWhiteBlackRun(bits, from, to)
	if math.IsNaN(result) {
		return result
	}

	dx, dy := to.X-from.X, to.Y-from.Y
	maxX, maxY := float64(bits.Width()-1), float64(bits.Height()-1)
	scale := 1.0
	if ox := from.X - dx; ox < 0 {
		scale = math.Min(scale, from.X/dx)
	} else if ox > maxX {
		scale = math.Min(scale, (from.X-maxX)/dx)
	}
	if oy := from.Y - dy; oy < 0 {
		scale = math.Min(scale, from.Y/dy)
	} else if oy > maxY {
		scale = math.Min(scale, (from.Y-maxY)/dy)
	}
	other := utils.Point{X: from.X - scale*dx, Y: from.Y - scale*dy}

	back := blackWhiteBlackRun(bits, from, other)
	if math.IsNaN(back) {
		return back
	}
	// The centre pixel is counted by both runs.
	return result + back - 1
}

// blackWhiteBlackRun walks from a dark finder centre towards to and returns
// the distance to the first light pixel after the outer dark ring, or NaN
// when the walk leaves the image or reaches to first.
func blackWhiteBlackRun(bits *qr.BitMatrix, from, to utils.Point) float64 {
	dx, dy := to.X-from.X, to.Y-from.Y
	steps := int(math.Max(math.Abs(dx), math.Abs(dy)))
	if steps == 0 {
		return math.NaN()
	}
	sx, sy := dx/float64(steps), dy/float64(steps)
	step := math.Hypot(sx, sy)

	// 0: inside the centre, 1: crossing the light ring, 2: in the outer ring.
	state := 0
	for i := 0; i <= steps; i++ {
		x := int(math.Floor(from.X + sx*float64(i)))
		y := int(math.Floor(from.Y + sy*float64(i)))
		if x < 0 || y < 0 || x >= bits.Width() || y >= bits.Height() {
			break
		}
		if (state == 1) == bits.Get(x, y) {
			if state == 2 {
				return float64(i) * step
			}
			state++
		}
	}
	return math.NaN()
}
