// Package compositor pastes inpainted patches back into the working image,
// restricted to the polygon interior.
package compositor

import (
	"image"
	"math"
	"runtime"
	"sync"

	apperrors "github.com/MeKo-Tech/inpaint/internal/errors"
	"github.com/MeKo-Tech/inpaint/internal/onnx"
	"github.com/MeKo-Tech/inpaint/internal/utils"
)

// parallelRows is the box height from which the scan is split across goroutines.
const parallelRows = 128

// Compositor blends patches into images.
type Compositor struct {
	// FeatherSize, when positive, fades the patch into the base over the
	// band of interior pixels within this distance of the polygon edge.
	FeatherSize int
}

// New returns a Compositor.
func New(featherSize int) *Compositor {
	return &Compositor{FeatherSize: max(featherSize, 0)}
}

// Blend returns a copy of base in which every pixel of box that lies inside
// poly (in image coordinates) is taken from patch. The patch is resized to
// the box first when needed. Pixels outside the polygon are byte-identical
// to base. base must have its origin at (0,0).
func (c *Compositor) Blend(base, patch image.Image, box utils.BoundingBox, poly utils.Polygon) (*image.NRGBA, error) {
	bw, bh := utils.Dimensions(base)
	if !box.Valid() || !box.Within(bw, bh) {
		return nil, apperrors.NewDegenerateRegionError("blend", "box %+v outside %dx%d image", box, bw, bh)
	}
	if pw, ph := utils.Dimensions(patch); pw != box.Width || ph != box.Height {
		patch = onnx.Resize(patch, box.Width, box.Height, onnx.Smooth)
	}
	src := utils.ToNRGBA(patch)
	out := utils.CloneNRGBA(base)

	scan := func(y0, y1 int) {
		for py := y0; py < y1; py++ {
			for px := box.X; px < box.Right(); px++ {
				pt := utils.Point{X: float64(px), Y: float64(py)}
				if !utils.PointInPolygon(pt, poly) {
					continue
				}
				so := src.PixOffset(px-box.X, py-box.Y)
				do := out.PixOffset(px, py)
				if c.FeatherSize > 0 {
					w := math.Min(edgeDistance(pt, poly)/float64(c.FeatherSize), 1)
					mix(out.Pix[do:do+4], src.Pix[so:so+4], w)
					continue
				}
				copy(out.Pix[do:do+4], src.Pix[so:so+4])
			}
		}
	}

	if box.Height < parallelRows {
		scan(box.Y, box.Bottom())
		return out, nil
	}
	workers := min(runtime.GOMAXPROCS(0), box.Height/parallelRows+1)
	band := (box.Height + workers - 1) / workers
	var wg sync.WaitGroup
	for y := box.Y; y < box.Bottom(); y += band {
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			scan(y0, y1)
		}(y, min(y+band, box.Bottom()))
	}
	wg.Wait()
	return out, nil
}

// mix blends src into dst with weight w for src.
func mix(dst, src []uint8, w float64) {
	for i := range 4 {
		v := float64(src[i])*w + float64(dst[i])*(1-w)
		dst[i] = uint8(math.Round(v))
	}
}

// edgeDistance returns the distance from p to the nearest polygon edge.
func edgeDistance(p utils.Point, poly utils.Polygon) float64 {
	best := math.Inf(1)
	for i := range poly {
		a, b := poly[i], poly[(i+1)%len(poly)]
		best = math.Min(best, segmentDistance(p, a, b))
	}
	return best
}

func segmentDistance(p, a, b utils.Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return utils.Distance(p, a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return utils.Distance(p, utils.Point{X: a.X + t*dx, Y: a.Y + t*dy})
}
