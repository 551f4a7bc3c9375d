// Package utils holds the small geometry, drawing and file helpers shared by
// the scanner and its front ends.
package utils

import (
	"image"
	"math"
	"sort"
)

// Point is a 2D coordinate in image space (y grows downwards).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Quad is a symbol outline: top-left, top-right, bottom-right, bottom-left
// as read from the symbol, which need not match the image orientation.
type Quad [4]Point

// Points returns the corners as a slice.
func (q Quad) Points() []Point { return q[:] }

// Bounds returns the axis-aligned bounding box of the quad.
func (q Quad) Bounds() Box { return BoundingBox(q[:]) }

// Area returns the enclosed area.
func (q Quad) Area() float64 { return PolygonArea(q[:]) }

// Scale multiplies every coordinate by f.
func (q Quad) Scale(f float64) Quad {
	for i := range q {
		q[i] = Point{X: q[i].X * f, Y: q[i].Y * f}
	}
	return q
}

// Box is an axis-aligned bounding box in float coordinates.
type Box struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// NewBox constructs a Box from two corners in any order.
func NewBox(x1, y1, x2, y2 float64) Box {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Box{MinX: x1, MinY: y1, MaxX: x2, MaxY: y2}
}

// Width returns the box width.
func (b Box) Width() float64 { return b.MaxX - b.MinX }

// Height returns the box height.
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// ToRect converts b to an image.Rectangle clamped to bounds.
func (b Box) ToRect(bounds image.Rectangle) image.Rectangle {
	r := image.Rect(
		int(math.Floor(b.MinX)), int(math.Floor(b.MinY)),
		int(math.Ceil(b.MaxX)), int(math.Ceil(b.MaxY)),
	)
	return r.Intersect(bounds)
}

// BoundingBox returns the axis-aligned bounding box for a set of points.
func BoundingBox(pts []Point) Box {
	if len(pts) == 0 {
		return Box{}
	}
	b := Box{MinX: pts[0].X, MinY: pts[0].Y, MaxX: pts[0].X, MaxY: pts[0].Y}
	for _, p := range pts[1:] {
		b.MinX = math.Min(b.MinX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	return b
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Cross returns the z component of (a-o) x (b-o).
func Cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// PolygonArea returns the unsigned shoelace area of a simple polygon.
func PolygonArea(pts []Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	sum := 0.0
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		sum += p.X*q.Y - q.X*p.Y
	}
	return math.Abs(sum) / 2
}

// ConvexHull computes the convex hull with the monotone chain algorithm.
// The hull is returned counter-clockwise in a y-up frame without repeating
// the first point.
func ConvexHull(pts []Point) []Point {
	p := append([]Point(nil), pts...)
	sort.Slice(p, func(i, j int) bool {
		if p[i].X != p[j].X {
			return p[i].X < p[j].X
		}
		return p[i].Y < p[j].Y
	})
	p = dedupSorted(p)
	if len(p) <= 2 {
		return p
	}

	hull := make([]Point, 0, 2*len(p))
	for _, pt := range p {
		for len(hull) >= 2 && Cross(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	lower := len(hull) + 1
	for i := len(p) - 2; i >= 0; i-- {
		pt := p[i]
		for len(hull) >= lower && Cross(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	return hull[:len(hull)-1]
}

func dedupSorted(p []Point) []Point {
	out := p[:0]
	for i, pt := range p {
		if i == 0 || pt != p[i-1] {
			out = append(out, pt)
		}
	}
	return out
}

// ClipConvex intersects two convex polygons given in the same winding
// (Sutherland-Hodgman).
func ClipConvex(subject, clip []Point) []Point {
	out := append([]Point(nil), subject...)
	for i := range clip {
		if len(out) == 0 {
			break
		}
		a, b := clip[i], clip[(i+1)%len(clip)]
		in := out
		out = nil
		for j := range in {
			cur, prev := in[j], in[(j+len(in)-1)%len(in)]
			curIn, prevIn := Cross(a, b, cur) >= 0, Cross(a, b, prev) >= 0
			if curIn {
				if !prevIn {
					out = append(out, intersect(prev, cur, a, b))
				}
				out = append(out, cur)
			} else if prevIn {
				out = append(out, intersect(prev, cur, a, b))
			}
		}
	}
	return out
}

func intersect(p, q, a, b Point) Point {
	d1 := Cross(a, b, p)
	d2 := Cross(a, b, q)
	t := d1 / (d1 - d2)
	return Point{X: p.X + t*(q.X-p.X), Y: p.Y + t*(q.Y-p.Y)}
}

// QuadIoU returns the intersection over union of the convex hulls of two
// quads, in [0, 1].
func QuadIoU(a, b Quad) float64 {
	ha, hb := ConvexHull(a[:]), ConvexHull(b[:])
	areaA, areaB := PolygonArea(ha), PolygonArea(hb)
	if areaA == 0 || areaB == 0 {
		return 0
	}
	inter := PolygonArea(ClipConvex(ha, hb))
	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return math.Min(1, inter/union)
}
