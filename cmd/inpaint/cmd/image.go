package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/inpaint/internal/batch"
	"github.com/MeKo-Tech/inpaint/internal/common"
	"github.com/MeKo-Tech/inpaint/internal/config"
	"github.com/MeKo-Tech/inpaint/internal/pipeline"
	"github.com/MeKo-Tech/inpaint/internal/polygons"
	"github.com/MeKo-Tech/inpaint/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	reportFormatText = "text"
	reportFormatJSON = "json"
	reportFormatCSV  = "csv"
)

// imageCmd represents the image command.
var imageCmd = &cobra.Command{
	Use:   "image <file>",
	Short: "Inpaint the polygon regions of a single image",
	Long: `Inpaint the regions of one image described by a polygon file.

The polygon file is YAML or JSON: a list of polygons, each a list of
[x, y] points. Without --polygons, <file> is paired with the sidecar
<name>.polygons.yaml (or .yml, .json) next to it.

Supported formats: JPEG, PNG, BMP, TIFF, WebP

Examples:
  inpaint image photo.jpg
  inpaint image photo.jpg --polygons marks.yaml -o clean.png
  inpaint image scan.png --feather 4 --debug-dir debug/
  inpaint image scan.png --visualize plan.png --report json`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runImageCommand,
}

func runImageCommand(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	input := args[0]

	polyPath, _ := cmd.Flags().GetString("polygons")
	if polyPath == "" {
		if polyPath = batch.SidecarPath(input); polyPath == "" {
			return fmt.Errorf("no polygon file for %s (use --polygons)", input)
		}
	}
	report, _ := cmd.Flags().GetString("report")
	if report != "" && report != reportFormatText && report != reportFormatJSON && report != reportFormatCSV {
		return fmt.Errorf("invalid report format: %s (must be one of: text, json, csv)", report)
	}

	outPath, _ := cmd.Flags().GetString("output")
	format := cfg.Output.Format
	switch {
	case outPath == "":
		outPath = defaultOutputPath(input, format)
	case !cmd.Flags().Changed("format"):
		format = utils.FormatFromPath(outPath)
	}
	if format, err = utils.NormalizeFormat(format); err != nil {
		return err
	}

	sw := common.NewStopwatch()
	img, meta, err := utils.LoadImage(input)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}
	polys, err := polygons.LoadFile(polyPath)
	if err != nil {
		return fmt.Errorf("failed to load polygons: %w", err)
	}
	sw.Lap("load")
	slog.Debug("Loaded input", "image", input, "width", meta.Width, "height", meta.Height,
		"polygons", polyPath, "count", len(polys))

	pl, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = pl.Close() }()
	sw.Lap("init")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.Output.Visualize != "" {
		overlay, err := pl.Visualize(img, polys)
		if err != nil {
			return fmt.Errorf("failed to visualize polygons: %w", err)
		}
		if err := utils.SaveImage(cfg.Output.Visualize, overlay, cfg.Output.Quality); err != nil {
			return fmt.Errorf("failed to write visualization: %w", err)
		}
	}

	var res *pipeline.InpaintResult
	if cfg.Output.DebugDir != "" {
		res, err = runDebug(ctx, pl, cfg.Output.DebugDir, img, polys)
	} else {
		res, err = pl.Inpaint(ctx, img, polys)
	}
	if err != nil {
		return fmt.Errorf("inpainting failed: %w", err)
	}
	sw.Lap("inpaint")

	if err := writeImage(outPath, res.Image, format, cfg.Output.Quality); err != nil {
		return err
	}
	sw.Lap("save")
	slog.Info("Inpainted image", "input", input, "output", outPath, "regions", len(res.Regions), "timing", sw)

	return printImageReport(cmd.OutOrStdout(), report, outPath, res, sw)
}

// runDebug writes every intermediate image to dir. Regions that fail are
// logged and skipped; the final image of the debug run is returned as the
// result.
func runDebug(ctx context.Context, pl *pipeline.Pipeline, dir string, img image.Image, polys []utils.Polygon) (*pipeline.InpaintResult, error) {
	dbg, err := pl.Debug(ctx, img, polys)
	if err != nil {
		return nil, err
	}
	for _, name := range dbg.Names() {
		if err := utils.SaveImage(filepath.Join(dir, name+".png"), dbg.Images[name], 100); err != nil {
			return nil, fmt.Errorf("failed to write debug image %s: %w", name, err)
		}
	}
	for i, e := range dbg.Errors {
		slog.Warn("Region failed", "region", i, "error", e)
	}
	final, ok := dbg.Images[pipeline.ArtifactFinal]
	if !ok {
		return nil, errors.New("debug run produced no final image")
	}
	w, h := utils.Dimensions(img)
	return &pipeline.InpaintResult{
		Image:    utils.ToNRGBA(final),
		Width:    w,
		Height:   h,
		Supplied: len(polys),
		Regions:  dbg.Regions,
	}, nil
}

// buildPipeline creates the pipeline described by cfg.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	pl, err := pipeline.NewBuilder().WithConfig(cfg.ToPipelineConfig()).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	return pl, nil
}

// defaultOutputPath places <base>_inpainted.<ext> next to the input.
func defaultOutputPath(input, format string) string {
	ext := ".png"
	switch strings.ToLower(format) {
	case utils.FormatJPEG, "jpg":
		ext = ".jpg"
	case utils.FormatWebP:
		ext = ".webp"
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + "_inpainted" + ext
}

// writeImage encodes img in the given format regardless of the extension.
func writeImage(path string, img image.Image, format string, quality int) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path) //nolint:gosec // user-supplied output path
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := utils.EncodeImage(f, img, format, quality); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return f.Close()
}

func printImageReport(w io.Writer, report, outPath string, res *pipeline.InpaintResult, sw *common.Stopwatch) error {
	var out string
	var err error
	switch report {
	case reportFormatJSON:
		out, err = pipeline.ToJSONResult(res)
		out += "\n"
	case reportFormatCSV:
		out, err = pipeline.ToCSVRegions(res)
	default:
		out = fmt.Sprintf("Inpainted %d region(s) from %d polygon(s) -> %s (%s)\n",
			len(res.Regions), res.Supplied, outPath, sw)
	}
	if err != nil {
		return fmt.Errorf("failed to format report: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

func addImageFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("polygons", "p", "", "polygon file (YAML or JSON); defaults to the <name>.polygons.* sidecar")
	cmd.Flags().StringP("output", "o", "", "output image (default: <name>_inpainted.<format> next to the input)")
	cmd.Flags().StringP("format", "f", "png", "output image format (png, jpeg, webp)")
	cmd.Flags().Int("quality", 95, "JPEG/WebP quality (1-100)")
	cmd.Flags().String("report", "", "print a report to stdout (text, json, csv)")

	cmd.Flags().String("engine", pipeline.EngineONNX, "inference engine (onnx, identity)")
	cmd.Flags().String("model", "", "override inpainting model path")
	cmd.Flags().Int("threads", 0, "ONNX Runtime intra-op threads (0 = runtime default)")
	cmd.Flags().Int("input-size", 512, "square model input resolution")
	cmd.Flags().Float64("expand", 0.3, "per-side context growth as a fraction of the box size")
	cmd.Flags().Int("max-expansion", 200, "maximum per-side context growth in pixels")
	cmd.Flags().Int("feather", 0, "feather band in pixels when blending patches (0 = hard edge)")

	cmd.Flags().String("debug-dir", "", "directory to write intermediate images to")
	cmd.Flags().String("visualize", "", "write an overlay of polygons and planned boxes to this file")

	cmd.Flags().Bool("gpu", false, "enable GPU acceleration using CUDA")
	cmd.Flags().Int("gpu-device", 0, "CUDA device ID to use")
	cmd.Flags().String("gpu-mem-limit", "auto", "GPU memory limit (e.g. 2GB, 512MB, auto)")
}

// bindImageFlags binds the flags to viper configuration keys.
func bindImageFlags(cmd *cobra.Command) {
	flagBindings := []struct {
		key  string
		flag string
	}{
		{"output.format", "format"},
		{"output.quality", "quality"},
		{"output.debug_dir", "debug-dir"},
		{"output.visualize", "visualize"},
		{"inpaint.engine", "engine"},
		{"inpaint.model_path", "model"},
		{"inpaint.num_threads", "threads"},
		{"inpaint.input_size", "input-size"},
		{"inpaint.expand_percentage", "expand"},
		{"inpaint.max_expansion_size", "max-expansion"},
		{"inpaint.feather_size", "feather"},
		{"gpu.enabled", "gpu"},
		{"gpu.device", "gpu-device"},
		{"gpu.memory_limit", "gpu-mem-limit"},
	}

	for _, binding := range flagBindings {
		if err := viper.BindPFlag(binding.key, cmd.Flags().Lookup(binding.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", binding.flag, err))
		}
	}
}

func init() {
	rootCmd.AddCommand(imageCmd)
	addImageFlags(imageCmd)
	bindImageFlags(imageCmd)
}

// GetImageCommand returns the image command for testing purposes.
func GetImageCommand() *cobra.Command {
	return imageCmd
}
