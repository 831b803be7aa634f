package onnx

import (
	"fmt"
	"log/slog"
	"strconv"

	onnxrt "github.com/yalue/onnxruntime_go"
)

// GPUConfig holds configuration for CUDA acceleration.
type GPUConfig struct {
	UseGPU                bool   // Enable GPU acceleration
	DeviceID              int    // CUDA device ID (default: 0)
	GPUMemLimit           uint64 // GPU memory limit in bytes (0 = unlimited)
	ArenaExtendStrategy   string // "kNextPowerOfTwo" or "kSameAsRequested"
	CUDNNConvAlgoSearch   string // "EXHAUSTIVE", "HEURISTIC", or "DEFAULT"
	DoCopyInDefaultStream bool
}

// DefaultGPUConfig returns a CPU-only configuration with CUDA defaults filled in.
func DefaultGPUConfig() GPUConfig {
	return GPUConfig{
		ArenaExtendStrategy:   "kNextPowerOfTwo",
		CUDNNConvAlgoSearch:   "DEFAULT",
		DoCopyInDefaultStream: true,
	}
}

var (
	validArenaStrategies = map[string]bool{"kNextPowerOfTwo": true, "kSameAsRequested": true}
	validAlgoSearch      = map[string]bool{"EXHAUSTIVE": true, "HEURISTIC": true, "DEFAULT": true}
)

// ValidateGPUConfig checks if the GPU configuration is valid.
func ValidateGPUConfig(config GPUConfig) error {
	if !config.UseGPU {
		return nil
	}
	if config.DeviceID < 0 {
		return fmt.Errorf("device ID must be non-negative, got %d", config.DeviceID)
	}
	if config.ArenaExtendStrategy != "" && !validArenaStrategies[config.ArenaExtendStrategy] {
		return fmt.Errorf("invalid arena extend strategy: %s", config.ArenaExtendStrategy)
	}
	if config.CUDNNConvAlgoSearch != "" && !validAlgoSearch[config.CUDNNConvAlgoSearch] {
		return fmt.Errorf("invalid CUDNN conv algo search: %s", config.CUDNNConvAlgoSearch)
	}
	return nil
}

// cudaSettings translates the config into CUDA provider option keys.
func cudaSettings(cfg GPUConfig) map[string]string {
	s := map[string]string{
		"device_id":                 strconv.Itoa(cfg.DeviceID),
		"do_copy_in_default_stream": "0",
	}
	if cfg.DoCopyInDefaultStream {
		s["do_copy_in_default_stream"] = "1"
	}
	if cfg.GPUMemLimit > 0 {
		s["gpu_mem_limit"] = strconv.FormatUint(cfg.GPUMemLimit, 10)
	}
	if cfg.ArenaExtendStrategy != "" {
		s["arena_extend_strategy"] = cfg.ArenaExtendStrategy
	}
	if cfg.CUDNNConvAlgoSearch != "" {
		s["cudnn_conv_algo_search"] = cfg.CUDNNConvAlgoSearch
	}
	return s
}

// ConfigureSessionForGPU appends the CUDA execution provider to opts when
// GPU use is requested. Without it the session runs on CPU.
func ConfigureSessionForGPU(opts *onnxrt.SessionOptions, cfg GPUConfig) error {
	if !cfg.UseGPU {
		return nil
	}
	cudaOpts, err := onnxrt.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("create CUDA provider options (GPU may not be available): %w", err)
	}
	defer func() {
		if err := cudaOpts.Destroy(); err != nil {
			slog.Warn("Failed to destroy CUDA provider options", "error", err)
		}
	}()

	if err := cudaOpts.Update(cudaSettings(cfg)); err != nil {
		return fmt.Errorf("update CUDA provider options: %w", err)
	}
	if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
		return fmt.Errorf("append CUDA execution provider: %w", err)
	}
	return nil
}
