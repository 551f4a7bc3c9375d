// Package rectify maps between a symbol's module grid and image pixels with
// a planar homography.
package rectify

import (
	"errors"
	"math"

	"github.com/MeKo-Tech/qrengine/internal/utils"
)

// ErrDegenerate is returned when the point correspondences do not define a
// homography (three or more collinear points).
var ErrDegenerate = errors.New("rectify: degenerate point correspondence")

// pivotEpsilon is the smallest pivot accepted by the solver.
const pivotEpsilon = 1e-12

// Homography is a row-major 3x3 projective matrix with h[8] == 1.
type Homography [9]float64

// ComputeHomography returns H mapping src[i] onto dst[i] for all four pairs.
func ComputeHomography(src, dst [4]utils.Point) (Homography, error) {
	// Eight unknowns h00..h21 with h22 fixed at 1:
	//   x' = (h00 X + h01 Y + h02) / (h20 X + h21 Y + 1)
	//   y' = (h10 X + h11 Y + h12) / (h20 X + h21 Y + 1)
	var a [8][8]float64
	var b [8]float64
	for i := range 4 {
		X, Y := src[i].X, src[i].Y
		x, y := dst[i].X, dst[i].Y
		r := 2 * i
		a[r] = [8]float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x}
		b[r] = x
		a[r+1] = [8]float64{0, 0, 0, X, Y, 1, -X * y, -Y * y}
		b[r+1] = y
	}

	h, ok := solve8x8(a, b)
	if !ok {
		return Homography{}, ErrDegenerate
	}
	return Homography{h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], 1}, nil
}

// Apply maps (x, y). ok is false when the point maps to infinity.
func (h Homography) Apply(x, y float64) (float64, float64, bool) {
	denom := h[6]*x + h[7]*y + h[8]
	if math.Abs(denom) < pivotEpsilon {
		return 0, 0, false
	}
	return (h[0]*x + h[1]*y + h[2]) / denom, (h[3]*x + h[4]*y + h[5]) / denom, true
}

// ApplyPoint maps p, returning ok false at infinity.
func (h Homography) ApplyPoint(p utils.Point) (utils.Point, bool) {
	x, y, ok := h.Apply(p.X, p.Y)
	return utils.Point{X: x, Y: y}, ok
}

// solve8x8 runs Gauss-Jordan elimination with partial pivoting.
func solve8x8(a [8][8]float64, b [8]float64) ([8]float64, bool) {
	for col := range 8 {
		pivot := col
		for r := col + 1; r < 8; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < pivotEpsilon {
			return [8]float64{}, false
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		div := a[col][col]
		for c := col; c < 8; c++ {
			a[col][c] /= div
		}
		b[col] /= div

		for r := range 8 {
			if r == col || a[r][col] == 0 {
				continue
			}
			f := a[r][col]
			for c := col; c < 8; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}
	return b, true
}
