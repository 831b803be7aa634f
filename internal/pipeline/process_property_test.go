package pipeline

import (
	"context"
	"testing"

	"github.com/MeKo-Tech/inpaint/internal/testutil"
	"github.com/MeKo-Tech/inpaint/internal/utils"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genPolygon(w, h float64) gopter.Gen {
	pt := gopter.CombineGens(
		gen.Float64Range(-3, w+3),
		gen.Float64Range(-3, h+3),
	).Map(func(vals []interface{}) utils.Point {
		return utils.Point{X: vals[0].(float64), Y: vals[1].(float64)}
	})
	return gen.SliceOfN(5, pt).Map(func(pts []utils.Point) utils.Polygon {
		return utils.Polygon(pts)
	})
}

// TestInpaint_OutsideRegionsUnchanged checks that across chained regions
// no pixel outside the processed polygons ever changes.
func TestInpaint_OutsideRegionsUnchanged(t *testing.T) {
	const w, h = 60, 40
	p := buildWith(t, &fillEngine{value: 255}, 16)
	img := testutil.CreatePatternImage(w, h)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 40
	properties := gopter.NewProperties(parameters)

	properties.Property("outside pixels are byte-identical", prop.ForAll(
		func(a, b utils.Polygon) bool {
			polys := []utils.Polygon{a, b}
			regions, err := p.preprocessor.Process(polys)
			if err != nil {
				return false
			}
			res, err := p.Inpaint(context.Background(), img, polys)
			if err != nil {
				return false
			}
			diff, err := testutil.DiffPixels(img, res.Image)
			if err != nil {
				return false
			}
			for _, d := range diff {
				pt := utils.Point{X: float64(d.X), Y: float64(d.Y)}
				inside := false
				for _, r := range regions {
					inside = inside || utils.PointInPolygon(pt, r)
				}
				if !inside {
					return false
				}
			}
			return true
		},
		genPolygon(w, h),
		genPolygon(w, h),
	))

	properties.TestingRun(t)
}
