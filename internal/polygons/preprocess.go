// Package polygons filters and merges caller-supplied polygons before the
// pipeline plans regions for them.
package polygons

import (
	"log/slog"
	"sort"

	apperrors "github.com/MeKo-Tech/inpaint/internal/errors"
	"github.com/MeKo-Tech/inpaint/internal/utils"
)

const (
	// DefaultProximity is the vertex distance at which two polygons touch.
	DefaultProximity = 2.0
	// DefaultEpsilon is the distance below which two merged vertices are the same point.
	DefaultEpsilon = 0.01
)

// Preprocessor drops degenerate polygons and merges touching ones.
type Preprocessor struct {
	Proximity float64
	Epsilon   float64
}

// NewPreprocessor returns a Preprocessor with default thresholds.
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{Proximity: DefaultProximity, Epsilon: DefaultEpsilon}
}

// Process filters out polygons with fewer than 3 points and merges every
// connected group of touching polygons into one. Merged polygons come first,
// one per group in order of the group's lowest input index, followed by the
// untouched polygons in their original order. It fails with a
// NoValidRegions error when nothing survives filtering.
func (p *Preprocessor) Process(polys []utils.Polygon) ([]utils.Polygon, error) {
	valid := Filter(polys)
	if len(valid) == 0 {
		return nil, apperrors.NewNoValidRegionsError("preprocess", len(polys))
	}
	if dropped := len(polys) - len(valid); dropped > 0 {
		slog.Debug("Dropped degenerate polygons", "dropped", dropped, "remaining", len(valid))
	}

	groups := p.Components(valid)
	merged := make([]utils.Polygon, 0, len(groups))
	var passthrough []utils.Polygon
	for _, g := range groups {
		if len(g) == 1 {
			passthrough = append(passthrough, valid[g[0]])
			continue
		}
		members := make([]utils.Polygon, len(g))
		for i, idx := range g {
			members[i] = valid[idx]
		}
		merged = append(merged, p.Merge(members))
		slog.Debug("Merged touching polygons", "indices", g)
	}
	return append(merged, passthrough...), nil
}

// Filter returns copies of the polygons that have at least 3 points.
func Filter(polys []utils.Polygon) []utils.Polygon {
	out := make([]utils.Polygon, 0, len(polys))
	for _, poly := range polys {
		if poly.Valid() {
			out = append(out, poly.Clone())
		}
	}
	return out
}

// Touching reports whether a and b share a nearby vertex, have crossing
// edges, or one fully contains the other.
func (p *Preprocessor) Touching(a, b utils.Polygon) bool {
	for _, va := range a {
		for _, vb := range b {
			if utils.Distance(va, vb) <= p.Proximity {
				return true
			}
		}
	}
	for i := range a {
		a1, a2 := a[i], a[(i+1)%len(a)]
		for j := range b {
			if utils.SegmentsIntersect(a1, a2, b[j], b[(j+1)%len(b)]) {
				return true
			}
		}
	}
	return containsAll(a, b) || containsAll(b, a)
}

// containsAll reports whether every vertex of inner lies inside outer.
func containsAll(outer, inner utils.Polygon) bool {
	if len(inner) == 0 {
		return false
	}
	for _, v := range inner {
		if !utils.PointInPolygon(v, outer) {
			return false
		}
	}
	return true
}

// Components groups polygon indices by the transitive touching relation.
// Each group is sorted ascending and groups are ordered by their first index.
func (p *Preprocessor) Components(polys []utils.Polygon) [][]int {
	parent := make([]int, len(polys))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	for i := range polys {
		for j := i + 1; j < len(polys); j++ {
			if find(i) == find(j) || !p.Touching(polys[i], polys[j]) {
				continue
			}
			ri, rj := find(i), find(j)
			if ri < rj {
				parent[rj] = ri
			} else {
				parent[ri] = rj
			}
		}
	}

	byRoot := make(map[int][]int)
	for i := range polys {
		r := find(i)
		byRoot[r] = append(byRoot[r], i)
	}
	groups := make([][]int, 0, len(byRoot))
	for _, g := range byRoot {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}

// Merge stitches polygons into a single vertex ring. Each following polygon
// is spliced in after the accumulated vertex closest to it, walking its own
// vertices cyclically from its closest one. The result approximates the
// union and may self-intersect; even-odd filling tolerates that.
func (p *Preprocessor) Merge(polys []utils.Polygon) utils.Polygon {
	if len(polys) == 0 {
		return nil
	}
	acc := polys[0].Clone()
	for _, next := range polys[1:] {
		if len(next) == 0 {
			continue
		}
		ai, nj := closestPair(acc, next)

		spliced := make(utils.Polygon, 0, len(acc)+len(next))
		spliced = append(spliced, acc[:ai+1]...)
		for k := range next {
			v := next[(nj+k)%len(next)]
			if p.present(acc, v) || p.present(spliced[ai+1:], v) {
				continue
			}
			spliced = append(spliced, v)
		}
		spliced = append(spliced, acc[ai+1:]...)
		acc = spliced
	}
	return p.dedupe(acc)
}

func closestPair(a, b utils.Polygon) (int, int) {
	bestI, bestJ := 0, 0
	best := utils.Distance(a[0], b[0])
	for i, va := range a {
		for j, vb := range b {
			if d := utils.Distance(va, vb); d < best {
				best, bestI, bestJ = d, i, j
			}
		}
	}
	return bestI, bestJ
}

func (p *Preprocessor) present(pts utils.Polygon, v utils.Point) bool {
	for _, q := range pts {
		if utils.Distance(q, v) < p.Epsilon {
			return true
		}
	}
	return false
}

// dedupe removes consecutive duplicates, including the wrap from last to first.
func (p *Preprocessor) dedupe(poly utils.Polygon) utils.Polygon {
	out := make(utils.Polygon, 0, len(poly))
	for _, v := range poly {
		if len(out) > 0 && utils.Distance(out[len(out)-1], v) < p.Epsilon {
			continue
		}
		out = append(out, v)
	}
	for len(out) > 1 && utils.Distance(out[0], out[len(out)-1]) < p.Epsilon {
		out = out[:len(out)-1]
	}
	return out
}
