package polygons

import (
	"errors"
	"fmt"
	"os"

	apperrors "github.com/MeKo-Tech/inpaint/internal/errors"
	"github.com/MeKo-Tech/inpaint/internal/utils"
	"gopkg.in/yaml.v3"
)

// point accepts either {x: .., y: ..} or [x, y].
type point utils.Point

func (p *point) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var xy []float64
		if err := node.Decode(&xy); err != nil {
			return err
		}
		if len(xy) != 2 {
			return fmt.Errorf("line %d: point needs 2 coordinates, got %d", node.Line, len(xy))
		}
		p.X, p.Y = xy[0], xy[1]
		return nil
	case yaml.MappingNode:
		var xy struct {
			X *float64 `yaml:"x"`
			Y *float64 `yaml:"y"`
		}
		if err := node.Decode(&xy); err != nil {
			return err
		}
		if xy.X == nil || xy.Y == nil {
			return fmt.Errorf("line %d: point needs both x and y", node.Line)
		}
		p.X, p.Y = *xy.X, *xy.Y
		return nil
	default:
		return fmt.Errorf("line %d: unexpected point value", node.Line)
	}
}

type document struct {
	Polygons [][]point `yaml:"polygons"`
}

// Parse decodes polygons from YAML or JSON. The document is either a list of
// polygons or a mapping with a "polygons" key; points are {x, y} objects or
// [x, y] pairs. Polygons are returned as given, without filtering, but a
// NaN or infinite coordinate is an InvalidPolygon error.
func Parse(data []byte) ([]utils.Polygon, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse polygons: %w", err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, errors.New("parse polygons: empty document")
	}

	var raw [][]point
	doc := root.Content[0]
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse polygons: %w", err)
		}
	case yaml.MappingNode:
		var d document
		if err := doc.Decode(&d); err != nil {
			return nil, fmt.Errorf("parse polygons: %w", err)
		}
		raw = d.Polygons
	default:
		return nil, errors.New("parse polygons: expected a list or a mapping")
	}

	out := make([]utils.Polygon, len(raw))
	for i, pts := range raw {
		poly := make(utils.Polygon, len(pts))
		for j, pt := range pts {
			poly[j] = utils.Point(pt)
		}
		if !poly.Finite() {
			return nil, apperrors.NewInvalidPolygonError("parse polygons", "polygon %d has a non-finite coordinate", i)
		}
		out[i] = poly
	}
	return out, nil
}

// LoadFile reads and parses a polygon file.
func LoadFile(path string) ([]utils.Polygon, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-provided polygon file
	if err != nil {
		return nil, fmt.Errorf("read polygons: %w", err)
	}
	return Parse(data)
}

// Marshal encodes polygons as YAML using {x, y} points.
func Marshal(polys []utils.Polygon) ([]byte, error) {
	return yaml.Marshal(map[string][]utils.Polygon{"polygons": polys})
}
