package utils

import (
	"image"
	"math"
	"testing"

	apperrors "github.com/MeKo-Tech/inpaint/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundingBoxFromPolygon(t *testing.T) {
	tests := []struct {
		name string
		poly Polygon
		want BoundingBox
	}{
		{
			name: "integer square",
			poly: Polygon{{50, 50}, {150, 50}, {150, 150}, {50, 150}},
			want: BoundingBox{X: 50, Y: 50, Width: 100, Height: 100},
		},
		{
			name: "fractional coordinates floor and ceil",
			poly: Polygon{{10.2, 20.7}, {30.1, 20.7}, {30.1, 40.5}},
			want: BoundingBox{X: 10, Y: 20, Width: 21, Height: 21},
		},
		{
			name: "negative coordinates",
			poly: Polygon{{-3.5, -1}, {2, -1}, {2, 4}},
			want: BoundingBox{X: -4, Y: -1, Width: 6, Height: 5},
		},
		{
			name: "single point has zero extent",
			poly: Polygon{{7, 7}},
			want: BoundingBox{X: 7, Y: 7},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BoundingBoxFromPolygon(tt.poly)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBoundingBoxFromPolygon_Empty(t *testing.T) {
	_, err := BoundingBoxFromPolygon(nil)
	require.ErrorIs(t, err, apperrors.ErrInvalidPolygon)
}

func TestBoundingBoxFromPolygon_NonFinite(t *testing.T) {
	tests := []struct {
		name string
		poly Polygon
	}{
		{"nan x", Polygon{{10, 10}, {math.NaN(), 10}, {30, 30}}},
		{"nan y", Polygon{{10, 10}, {20, math.NaN()}, {30, 30}}},
		{"positive inf", Polygon{{10, 10}, {math.Inf(1), 10}, {30, 30}}},
		{"negative inf", Polygon{{math.Inf(-1), 10}, {20, 10}, {30, 30}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, tt.poly.Finite())
			_, err := BoundingBoxFromPolygon(tt.poly)
			require.ErrorIs(t, err, apperrors.ErrInvalidPolygon)
		})
	}
	assert.True(t, Polygon{{1, 2}, {3, 4}, {5, 6}}.Finite())
}

func TestBoundingBoxHelpers(t *testing.T) {
	b := BoundingBox{X: 10, Y: 20, Width: 30, Height: 40}
	assert.True(t, b.Valid())
	assert.Equal(t, 40, b.Right())
	assert.Equal(t, 60, b.Bottom())
	assert.Equal(t, image.Rect(10, 20, 40, 60), b.Rect())
	assert.True(t, b.Within(40, 60))
	assert.False(t, b.Within(39, 60))
	assert.False(t, BoundingBox{Width: 0, Height: 5}.Valid())
}

func TestPointInPolygon(t *testing.T) {
	square := Polygon{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	// Concave "U" shape opening upwards.
	u := Polygon{{0, 0}, {9, 0}, {9, 9}, {6, 9}, {6, 3}, {3, 3}, {3, 9}, {0, 9}}

	tests := []struct {
		name string
		pt   Point
		poly Polygon
		want bool
	}{
		{"center of square", Point{5, 5}, square, true},
		{"outside right", Point{11, 5}, square, false},
		{"outside above", Point{5, -1}, square, false},
		{"left edge is inside", Point{0, 5}, square, true},
		{"right edge is outside", Point{10, 5}, square, false},
		{"u left arm", Point{1, 6}, u, true},
		{"u notch", Point{4, 6}, u, false},
		{"u base", Point{4, 1}, u, true},
		{"empty polygon", Point{0, 0}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PointInPolygon(tt.pt, tt.poly))
		})
	}
}

func TestPointInPolygon_SelfIntersectingEvenOdd(t *testing.T) {
	// Two overlapping squares stitched into one ring; the overlap is
	// crossed twice and therefore lies outside under even-odd.
	bowtie := Polygon{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}, {2, 2}, {6, 2}, {6, 6}, {2, 6}, {2, 2}}
	assert.True(t, PointInPolygon(Point{1, 1}, bowtie))
	assert.True(t, PointInPolygon(Point{5, 5}, bowtie))
	assert.False(t, PointInPolygon(Point{3, 3}, bowtie))
}

func TestSegmentsIntersect(t *testing.T) {
	tests := []struct {
		name           string
		p1, p2, p3, p4 Point
		want           bool
	}{
		{"crossing diagonals", Point{0, 0}, Point{10, 10}, Point{0, 10}, Point{10, 0}, true},
		{"shared endpoint", Point{0, 0}, Point{5, 5}, Point{5, 5}, Point{10, 0}, true},
		{"t-junction", Point{0, 0}, Point{10, 0}, Point{5, 0}, Point{5, 5}, true},
		{"disjoint", Point{0, 0}, Point{1, 1}, Point{5, 5}, Point{6, 7}, false},
		{"lines cross outside segments", Point{0, 0}, Point{1, 1}, Point{0, 10}, Point{1, 9}, false},
		{"parallel", Point{0, 0}, Point{10, 0}, Point{0, 1}, Point{10, 1}, false},
		{"collinear overlap", Point{0, 0}, Point{10, 0}, Point{5, 0}, Point{15, 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SegmentsIntersect(tt.p1, tt.p2, tt.p3, tt.p4))
			assert.Equal(t, tt.want, SegmentsIntersect(tt.p3, tt.p4, tt.p1, tt.p2), "must be symmetric")
		})
	}
}

func TestPolygonOffsetAndClone(t *testing.T) {
	p := Polygon{{1, 2}, {3, 4}, {5, 6}}
	moved := p.Offset(-1, 10)
	assert.Equal(t, Polygon{{0, 12}, {2, 14}, {4, 16}}, moved)
	assert.Equal(t, Point{1, 2}, p[0], "offset must not mutate the source")

	c := p.Clone()
	c[0].X = 99
	assert.InDelta(t, 1.0, p[0].X, 0)
	assert.True(t, p.Valid())
	assert.False(t, Polygon{{0, 0}, {1, 1}}.Valid())
}
