package utils

import (
	"image"
	"math"

	apperrors "github.com/MeKo-Tech/inpaint/internal/errors"
)

// Polygon is an ordered vertex list, implicitly closed from the last point
// back to the first. Transformations return new polygons.
type Polygon []Point

// Valid reports whether the polygon has at least three vertices.
func (p Polygon) Valid() bool { return len(p) >= 3 }

// Finite reports whether every coordinate is a finite number.
func (p Polygon) Finite() bool {
	for _, pt := range p {
		if math.IsNaN(pt.X) || math.IsInf(pt.X, 0) || math.IsNaN(pt.Y) || math.IsInf(pt.Y, 0) {
			return false
		}
	}
	return true
}

// Clone returns a copy of the vertex list.
func (p Polygon) Clone() Polygon {
	out := make(Polygon, len(p))
	copy(out, p)
	return out
}

// Offset returns the polygon translated by dx, dy.
func (p Polygon) Offset(dx, dy float64) Polygon {
	out := make(Polygon, len(p))
	for i, pt := range p {
		out[i] = Point{X: pt.X + dx, Y: pt.Y + dy}
	}
	return out
}

// BoundingBox is an integer axis-aligned rectangle in image pixel space.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid reports whether the box has positive extent.
func (b BoundingBox) Valid() bool { return b.Width > 0 && b.Height > 0 }

// Right returns the exclusive right edge.
func (b BoundingBox) Right() int { return b.X + b.Width }

// Bottom returns the exclusive bottom edge.
func (b BoundingBox) Bottom() int { return b.Y + b.Height }

// Rect converts the box to an image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.Right(), b.Bottom())
}

// Contains reports whether p lies within the closed box. A vertex with an
// integer maximum coordinate sits exactly on the right or bottom edge.
func (b BoundingBox) Contains(p Point) bool {
	return p.X >= float64(b.X) && p.X <= float64(b.Right()) &&
		p.Y >= float64(b.Y) && p.Y <= float64(b.Bottom())
}

// Within reports whether the box lies entirely inside a w x h image.
func (b BoundingBox) Within(w, h int) bool {
	return b.X >= 0 && b.Y >= 0 && b.Right() <= w && b.Bottom() <= h
}

// BoundingBoxFromPolygon returns the smallest integer box containing every
// vertex: origin floored, far edges ceiled.
func BoundingBoxFromPolygon(poly Polygon) (BoundingBox, error) {
	if len(poly) == 0 {
		return BoundingBox{}, apperrors.NewInvalidPolygonError("bounding box", "polygon has no points")
	}
	if !poly.Finite() {
		return BoundingBox{}, apperrors.NewInvalidPolygonError("bounding box", "polygon has a non-finite coordinate")
	}
	minX, minY := poly[0].X, poly[0].Y
	maxX, maxY := poly[0].X, poly[0].Y
	for _, p := range poly[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	x := int(math.Floor(minX))
	y := int(math.Floor(minY))
	return BoundingBox{
		X:      x,
		Y:      y,
		Width:  int(math.Ceil(maxX)) - x,
		Height: int(math.Ceil(maxY)) - y,
	}, nil
}

// PointInPolygon applies the even-odd rule by casting a ray towards +x.
// Points on horizontal edges are not classified consistently; callers rely
// on this exact crossing expression, so the mask rasterizer and the
// compositor agree pixel for pixel.
func PointInPolygon(pt Point, poly Polygon) bool {
	inside := false
	n := len(poly)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if x, ok := CrossingX(poly[i], poly[j], pt.Y); ok && pt.X < x {
			inside = !inside
		}
	}
	return inside
}

// CrossingX returns where the edge from a to b crosses the horizontal line
// at y. An edge counts only when exactly one endpoint has a Y strictly
// greater than y, so horizontal edges never cross.
func CrossingX(a, b Point, y float64) (float64, bool) {
	if (a.Y > y) == (b.Y > y) {
		return 0, false
	}
	return (b.X-a.X)*(y-a.Y)/(b.Y-a.Y) + a.X, true
}

// SegmentsIntersect reports whether segment p1-p2 intersects segment p3-p4.
// Parallel and collinear segments never intersect.
func SegmentsIntersect(p1, p2, p3, p4 Point) bool {
	d := cross(p2.X-p1.X, p2.Y-p1.Y, p4.X-p3.X, p4.Y-p3.Y)
	if d == 0 {
		return false
	}
	t := cross(p3.X-p1.X, p3.Y-p1.Y, p4.X-p3.X, p4.Y-p3.Y) / d
	u := cross(p3.X-p1.X, p3.Y-p1.Y, p2.X-p1.X, p2.Y-p1.Y) / d
	return t >= 0 && t <= 1 && u >= 0 && u <= 1
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func cross(ax, ay, bx, by float64) float64 {
	return ax*by - ay*bx
}
