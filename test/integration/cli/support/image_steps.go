package support

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/inpaint/internal/testutil"
	"github.com/MeKo-Tech/inpaint/internal/utils"
	"github.com/cucumber/godog"
)

// Background of the generated inputs. A uniform image stays unchanged
// under the identity engine, which makes the output checkable without a
// model.
var uniformColor = color.NRGBA{R: 70, G: 110, B: 160, A: 255}

func squarePolygonYAML(x0, y0, x1, y1 int) string {
	return fmt.Sprintf("- [[%d, %d], [%d, %d], [%d, %d], [%d, %d]]\n", x0, y0, x1, y0, x1, y1, x0, y1)
}

func (testCtx *TestContext) writeUniformImage(name string, w, h int) error {
	path := testCtx.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return utils.SaveImage(path, testutil.CreateTestImage(w, h, uniformColor), 100)
}

// aUniformImage writes a uniform image.
func (testCtx *TestContext) aUniformImage(w, h int, name string) error {
	return testCtx.writeUniformImage(name, w, h)
}

// aUniformImageWithSidecar writes a uniform image and a sidecar with one
// square in its middle half.
func (testCtx *TestContext) aUniformImageWithSidecar(w, h int, name string) error {
	if err := testCtx.writeUniformImage(name, w, h); err != nil {
		return err
	}
	sidecar := strings.TrimSuffix(name, filepath.Ext(name)) + ".polygons.yaml"
	return os.WriteFile(testCtx.Path(sidecar), []byte(squarePolygonYAML(w/4, h/4, 3*w/4, 3*h/4)), 0o600)
}

// aPolygonFile writes a polygon file with the given content.
func (testCtx *TestContext) aPolygonFile(name string, content *godog.DocString) error {
	return os.WriteFile(testCtx.Path(name), []byte(content.Content), 0o600)
}

func (testCtx *TestContext) loadImage(name string) (image.Image, string, error) {
	f, err := os.Open(testCtx.Path(name))
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = f.Close() }()
	return utils.DecodeImage(f)
}

func (testCtx *TestContext) theImageShouldBeSized(name string, w, h int) error {
	img, _, err := testCtx.loadImage(name)
	if err != nil {
		return err
	}
	if gw, gh := utils.Dimensions(img); gw != w || gh != h {
		return fmt.Errorf("image %s is %dx%d, want %dx%d", name, gw, gh, w, h)
	}
	return nil
}

func (testCtx *TestContext) theImageShouldBeEncodedAs(name, format string) error {
	_, got, err := testCtx.loadImage(name)
	if err != nil {
		return err
	}
	if got != format {
		return fmt.Errorf("image %s is %s, want %s", name, got, format)
	}
	return nil
}

// theImageShouldBeUniform checks that every pixel still has the input color.
func (testCtx *TestContext) theImageShouldBeUniform(name string) error {
	img, _, err := testCtx.loadImage(name)
	if err != nil {
		return err
	}
	w, h := utils.Dimensions(img)
	diff, err := testutil.DiffPixels(testutil.CreateTestImage(w, h, uniformColor), img)
	if err != nil {
		return err
	}
	if len(diff) > 0 {
		return fmt.Errorf("image %s differs from the input at %d pixel(s), first %v", name, len(diff), diff[0])
	}
	return nil
}

// RegisterImageSteps registers the image fixture and output steps.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a uniform (\d+)x(\d+) image "([^"]*)"$`, testCtx.aUniformImage)
	sc.Step(`^a uniform (\d+)x(\d+) image "([^"]*)" with a polygon sidecar$`, testCtx.aUniformImageWithSidecar)
	sc.Step(`^a polygon file "([^"]*)":$`, testCtx.aPolygonFile)
	sc.Step(`^the image "([^"]*)" should be (\d+)x(\d+)$`, testCtx.theImageShouldBeSized)
	sc.Step(`^the image "([^"]*)" should be encoded as "([^"]*)"$`, testCtx.theImageShouldBeEncodedAs)
	sc.Step(`^the image "([^"]*)" should be unchanged$`, testCtx.theImageShouldBeUniform)
}
