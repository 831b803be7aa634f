package pipeline

import (
	"image"
	"image/color"
	"strconv"

	"github.com/MeKo-Tech/inpaint/internal/region"
	"github.com/MeKo-Tech/inpaint/internal/utils"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// VisualizeConfig controls the overlay drawn by Visualize.
type VisualizeConfig struct {
	Params        region.Params
	PolygonColor  color.Color
	BoxColor      color.Color
	ExpandedColor color.Color
	Thickness     int
	Labels        bool
}

// DefaultVisualizeConfig draws polygons green, original boxes red and
// expanded boxes blue, with index labels.
func DefaultVisualizeConfig() VisualizeConfig {
	return VisualizeConfig{
		Params:        DefaultConfig().RegionParams(),
		PolygonColor:  color.NRGBA{0, 255, 0, 255},
		BoxColor:      color.NRGBA{255, 0, 0, 255},
		ExpandedColor: color.NRGBA{0, 0, 255, 255},
		Thickness:     2,
		Labels:        true,
	}
}

// Visualize returns a copy of img with each polygon, its bounding box and
// its planned context window drawn on top. Boxes are planned against img
// itself. Polygons that cannot be planned are drawn without expanded box.
func Visualize(img image.Image, polys []utils.Polygon, cfg VisualizeConfig) *image.NRGBA {
	if img == nil {
		return nil
	}
	dst := utils.CloneNRGBA(img)
	w, h := utils.Dimensions(dst)
	thickness := max(cfg.Thickness, 1)

	for i, poly := range polys {
		if !poly.Valid() {
			continue
		}
		if box, err := region.Plan(poly, w, h, cfg.Params); err == nil {
			utils.DrawRect(dst, box.Rect(), cfg.ExpandedColor, thickness)
		}
		raw, err := utils.BoundingBoxFromPolygon(poly)
		if err != nil {
			continue
		}
		utils.DrawRect(dst, raw.Rect(), cfg.BoxColor, thickness)
		utils.DrawPolygon(dst, poly, cfg.PolygonColor, thickness)
		if cfg.Labels {
			drawLabel(dst, raw.X+thickness+1, raw.Y+thickness+13, strconv.Itoa(i), cfg.BoxColor)
		}
	}
	return dst
}

// Visualize preprocesses polys like Inpaint and draws the regions that
// would be processed, using the pipeline's planning parameters.
func (p *Pipeline) Visualize(img image.Image, polys []utils.Polygon) (*image.NRGBA, error) {
	regions, err := p.preprocessor.Process(polys)
	if err != nil {
		return nil, err
	}
	cfg := DefaultVisualizeConfig()
	cfg.Params = p.cfg.RegionParams()
	return Visualize(img, regions, cfg), nil
}

func drawLabel(dst *image.NRGBA, x, y int, text string, col color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
