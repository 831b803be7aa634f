package region

import (
	"testing"

	"github.com/MeKo-Tech/inpaint/internal/utils"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type scenario struct {
	W, H int
	Poly utils.Polygon
}

// genScenario generates an image size and a polygon that lies inside it.
func genScenario() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(16, 1500),
		gen.IntRange(16, 1500),
		gen.SliceOfN(5, gopter.CombineGens(gen.Float64Range(0, 1), gen.Float64Range(0, 1))),
	).Map(func(vals []interface{}) scenario {
		w, h := vals[0].(int), vals[1].(int)
		raw := vals[2].([][]interface{})
		poly := make(utils.Polygon, len(raw))
		for i, xy := range raw {
			poly[i] = utils.Point{X: xy[0].(float64) * float64(w), Y: xy[1].(float64) * float64(h)}
		}
		return scenario{W: w, H: h, Poly: poly}
	})
}

// TestPlan_StaysInsideImage verifies planned boxes are valid, inside the
// image, and cover the polygon's own bounding box.
func TestPlan_StaysInsideImage(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("planned box is inside the image and covers the polygon", prop.ForAll(
		func(sc scenario, inputSize int, pct float64, maxExp int) bool {
			box, err := Plan(sc.Poly, sc.W, sc.H, Params{InputSize: inputSize, ExpandPercentage: pct, MaxExpansionSize: maxExp})
			if err != nil {
				return false
			}
			raw, _ := utils.BoundingBoxFromPolygon(sc.Poly)
			return box.Valid() && box.Within(sc.W, sc.H) &&
				box.X <= raw.X && box.Y <= raw.Y &&
				box.Right() >= raw.Right() && box.Bottom() >= raw.Bottom()
		},
		genScenario(),
		gen.IntRange(8, 1024),
		gen.Float64Range(0, 1),
		gen.IntRange(0, 400),
	))

	properties.TestingRun(t)
}
