package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/MeKo-Tech/inpaint/internal/batch"
	"github.com/MeKo-Tech/inpaint/internal/config"
	"github.com/MeKo-Tech/inpaint/internal/utils"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
)

// batchCmd represents the batch command for parallel image processing.
var batchCmd = &cobra.Command{
	Use:   "batch [files or directories...]",
	Short: "Inpaint many images in parallel",
	Long: `Inpaint every image that has a polygon sidecar file.

For photo.png the polygons are read from photo.polygons.yaml (or .yml,
.json). Images without a sidecar are skipped and listed in the report.
All workers share one model session.

Examples:
  inpaint batch scans/ --recursive --workers 8
  inpaint batch a.png b.jpg --output-dir cleaned/
  inpaint batch scans/ --report json --report-file report.json --continue-on-error`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runBatchCommand,
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	batchConfig, err := configToBatchConfig(cfg, cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := batch.ProcessBatch(ctx, args, batchConfig)
	if err != nil {
		return err
	}

	if err := result.SaveResults(cmd.OutOrStdout(), batchConfig.ReportFormat, batchConfig.ReportFile); err != nil {
		return err
	}
	if !batchConfig.Quiet {
		result.PrintStats(cmd.ErrOrStderr(), language.English)
	}
	if n := len(result.Failures()); n > 0 {
		return fmt.Errorf("%d of %d image(s) failed", n, len(result.Items))
	}
	return nil
}

// configToBatchConfig maps centralized configuration to batch.Config.
// Flags set on the command line override the configuration.
func configToBatchConfig(cfg *config.Config, cmd *cobra.Command) (*batch.Config, error) {
	if err := applyPipelineFlags(cmd, cfg); err != nil {
		return nil, err
	}
	flags := cmd.Flags()

	bc := batch.DefaultConfig()
	bc.Pipeline = cfg.ToPipelineConfig()

	bc.Workers = cfg.Batch.Workers
	if flags.Changed("workers") {
		bc.Workers, _ = flags.GetInt("workers")
	}
	if bc.Workers <= 0 {
		return nil, fmt.Errorf("invalid worker count: %d (must be positive)", bc.Workers)
	}
	bc.Pipeline.Parallel.MaxWorkers = bc.Workers

	bc.OutputDir = cfg.Batch.OutputDir
	if flags.Changed("output-dir") {
		bc.OutputDir, _ = flags.GetString("output-dir")
	}
	bc.ContinueOnError = cfg.Batch.ContinueOnError
	if flags.Changed("continue-on-error") {
		bc.ContinueOnError, _ = flags.GetBool("continue-on-error")
	}

	bc.OutputSuffix, _ = flags.GetString("suffix")
	bc.Recursive, _ = flags.GetBool("recursive")
	bc.IncludePatterns, _ = flags.GetStringSlice("include")
	bc.ExcludePatterns, _ = flags.GetStringSlice("exclude")

	if format, _ := flags.GetString("format"); format != "" {
		normalized, err := utils.NormalizeFormat(format)
		if err != nil {
			return nil, err
		}
		bc.Format = normalized
	}
	bc.Quality = cfg.Output.Quality
	if flags.Changed("quality") {
		bc.Quality, _ = flags.GetInt("quality")
	}
	if bc.Quality < 1 || bc.Quality > 100 {
		return nil, fmt.Errorf("invalid quality: %d (must be between 1 and 100)", bc.Quality)
	}

	bc.ReportFormat, _ = flags.GetString("report")
	switch bc.ReportFormat {
	case reportFormatText, reportFormatJSON, reportFormatCSV:
	default:
		return nil, fmt.Errorf("invalid report format: %s (must be one of: text, json, csv)", bc.ReportFormat)
	}
	bc.ReportFile, _ = flags.GetString("report-file")

	bc.Quiet, _ = flags.GetBool("quiet")
	noProgress, _ := flags.GetBool("no-progress")
	bc.ShowProgress = !noProgress && !bc.Quiet && isTerminal(os.Stderr)
	return &bc, nil
}

// isTerminal reports whether f is a character device.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func addBatchFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("workers", "w", 4, "number of parallel workers")
	cmd.Flags().String("output-dir", "", "directory for inpainted images (default: next to each input)")
	cmd.Flags().String("suffix", "_inpainted", "suffix appended to output file names")
	cmd.Flags().StringP("format", "f", "", "output image format (png, jpeg, webp; default: keep input format)")
	cmd.Flags().Int("quality", 95, "JPEG/WebP quality (1-100)")
	cmd.Flags().BoolP("recursive", "r", false, "descend into directories")
	cmd.Flags().StringSlice("include", nil, "glob patterns of file names to include")
	cmd.Flags().StringSlice("exclude", nil, "glob patterns of file names to exclude")
	cmd.Flags().String("report", reportFormatText, "report format (text, json, csv)")
	cmd.Flags().String("report-file", "", "write the report to a file instead of stdout")
	cmd.Flags().Bool("continue-on-error", false, "keep going when an image fails")
	cmd.Flags().BoolP("quiet", "q", false, "suppress progress and statistics")
	cmd.Flags().Bool("no-progress", false, "disable the progress bar")
	addPipelineFlags(cmd)
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addBatchFlags(batchCmd)

	batchCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintln(out, strings.TrimSpace(cmd.Long))
		_, _ = fmt.Fprintln(out, "\nUsage:")
		_, _ = fmt.Fprintln(out, "  "+cmd.UseLine())
		_, _ = fmt.Fprintln(out, "\nFlags:")
		_, _ = fmt.Fprint(out, cmd.Flags().FlagUsages())
	})
}
