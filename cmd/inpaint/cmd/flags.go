package cmd

import (
	"github.com/MeKo-Tech/inpaint/internal/config"
	"github.com/MeKo-Tech/inpaint/internal/pipeline"
	"github.com/spf13/cobra"
)

// addPipelineFlags declares the inpainting flags shared by batch and serve.
// Unlike the image command these are not bound to viper, since a key can
// only be bound to one flag; applyPipelineFlags copies the changed ones.
func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().String("engine", pipeline.EngineONNX, "inference engine (onnx, identity)")
	cmd.Flags().String("model", "", "override inpainting model path")
	cmd.Flags().Int("threads", 0, "ONNX Runtime intra-op threads (0 = runtime default)")
	cmd.Flags().Int("input-size", 512, "square model input resolution")
	cmd.Flags().Float64("expand", 0.3, "per-side context growth as a fraction of the box size")
	cmd.Flags().Int("max-expansion", 200, "maximum per-side context growth in pixels")
	cmd.Flags().Int("feather", 0, "feather band in pixels when blending patches (0 = hard edge)")
	cmd.Flags().Bool("gpu", false, "enable GPU acceleration using CUDA")
	cmd.Flags().Int("gpu-device", 0, "CUDA device ID to use")
}

// applyPipelineFlags overrides cfg with the pipeline flags set on cmd and
// validates the result.
func applyPipelineFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("engine") {
		cfg.Inpaint.Engine, _ = flags.GetString("engine")
	}
	if flags.Changed("model") {
		cfg.Inpaint.ModelPath, _ = flags.GetString("model")
	}
	if flags.Changed("threads") {
		cfg.Inpaint.NumThreads, _ = flags.GetInt("threads")
	}
	if flags.Changed("input-size") {
		cfg.Inpaint.InputSize, _ = flags.GetInt("input-size")
	}
	if flags.Changed("expand") {
		cfg.Inpaint.ExpandPercentage, _ = flags.GetFloat64("expand")
	}
	if flags.Changed("max-expansion") {
		cfg.Inpaint.MaxExpansionSize, _ = flags.GetInt("max-expansion")
	}
	if flags.Changed("feather") {
		cfg.Inpaint.FeatherSize, _ = flags.GetInt("feather")
	}
	if flags.Changed("gpu") {
		cfg.GPU.Enabled, _ = flags.GetBool("gpu")
	}
	if flags.Changed("gpu-device") {
		cfg.GPU.Device, _ = flags.GetInt("gpu-device")
	}
	return cfg.Validate()
}
