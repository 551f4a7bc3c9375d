package utils

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genRectQuad generates a non-degenerate axis-aligned quad.
func genRectQuad() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(0, 500),
		gen.Float64Range(0, 500),
		gen.Float64Range(1, 200),
		gen.Float64Range(1, 200),
	).Map(func(vals []interface{}) Quad {
		x, ok := vals[0].(float64)
		if !ok {
			panic("expected float64")
		}
		y, ok := vals[1].(float64)
		if !ok {
			panic("expected float64")
		}
		w, ok := vals[2].(float64)
		if !ok {
			panic("expected float64")
		}
		h, ok := vals[3].(float64)
		if !ok {
			panic("expected float64")
		}
		return Quad{{X: x, Y: y}, {X: x + w, Y: y}, {X: x + w, Y: y + h}, {X: x, Y: y + h}}
	})
}

// TestQuadIoU_Bounded verifies IoU stays in [0, 1] and is symmetric.
func TestQuadIoU_Bounded(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("IoU is within [0, 1] and symmetric", prop.ForAll(
		func(a, b Quad) bool {
			ab, ba := QuadIoU(a, b), QuadIoU(b, a)
			return ab >= 0 && ab <= 1 && math.Abs(ab-ba) < 1e-9
		},
		genRectQuad(),
		genRectQuad(),
	))

	properties.Property("a quad fully overlaps itself", prop.ForAll(
		func(a Quad) bool {
			return math.Abs(QuadIoU(a, a)-1) < 1e-9
		},
		genRectQuad(),
	))

	properties.Property("disjoint quads do not overlap", prop.ForAll(
		func(a Quad) bool {
			shift := a.Bounds().Width() + 1
			var b Quad
			for i, p := range a {
				b[i] = Point{X: p.X + shift, Y: p.Y}
			}
			return QuadIoU(a, b) == 0
		},
		genRectQuad(),
	))

	properties.TestingRun(t)
}

// TestQuadIoU_ScaleInvariant verifies scaling both quads keeps their IoU.
func TestQuadIoU_ScaleInvariant(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("IoU does not depend on scale", prop.ForAll(
		func(a, b Quad, f float64) bool {
			return math.Abs(QuadIoU(a, b)-QuadIoU(a.Scale(f), b.Scale(f))) < 1e-6
		},
		genRectQuad(),
		genRectQuad(),
		gen.Float64Range(0.25, 4),
	))

	properties.TestingRun(t)
}
