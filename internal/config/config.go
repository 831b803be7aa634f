package config

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/inpaint/internal/inpainter"
	"github.com/MeKo-Tech/inpaint/internal/models"
	"github.com/MeKo-Tech/inpaint/internal/pipeline"
	"github.com/MeKo-Tech/inpaint/internal/utils"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	pc := pipeline.DefaultConfig()
	return Config{
		ModelsDir: models.DefaultModelsDir,
		LogLevel:  "info",
		Verbose:   false,
		Inpaint: InpaintConfig{
			Engine:           pc.Engine,
			InputSize:        pc.InputSize,
			ExpandPercentage: pc.ExpandPercentage,
			MaxExpansionSize: pc.MaxExpansionSize,
			FeatherSize:      pc.FeatherSize,
			Debug:            false,
		},
		Output: OutputConfig{
			Format:  utils.FormatPNG,
			Quality: 95,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      60,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
				MaxRequestsPerDay: 5000,
				MaxDataPerDayMB:   1024,
			},
		},
		Batch: BatchConfig{
			Workers:         4,
			ContinueOnError: false,
		},
		GPU: GPUConfig{
			Enabled:     false,
			Device:      0,
			MemoryLimit: "auto",
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Output.Format != "" {
		if _, err := utils.NormalizeFormat(c.Output.Format); err != nil {
			return fmt.Errorf("invalid output format: %s (must be one of: png, jpeg, webp)", c.Output.Format)
		}
	}
	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("invalid output quality: %d (must be between 1 and 100)", c.Output.Quality)
	}

	validEngines := []string{pipeline.EngineONNX, pipeline.EngineIdentity}
	if !slices.Contains(validEngines, c.Inpaint.Engine) {
		return fmt.Errorf("invalid engine: %s (must be one of: %s)", c.Inpaint.Engine, strings.Join(validEngines, ", "))
	}
	if c.Inpaint.InputSize <= 0 || c.Inpaint.InputSize > pipeline.MaxInputSize {
		return fmt.Errorf("invalid input size: %d (must be between 1 and %d)", c.Inpaint.InputSize, pipeline.MaxInputSize)
	}
	if math.IsNaN(c.Inpaint.ExpandPercentage) || math.IsInf(c.Inpaint.ExpandPercentage, 0) || c.Inpaint.ExpandPercentage < 0 {
		return fmt.Errorf("invalid expand percentage: %v (must be finite and not negative)", c.Inpaint.ExpandPercentage)
	}
	if c.Inpaint.MaxExpansionSize < 0 {
		return fmt.Errorf("invalid max expansion size: %d (must not be negative)", c.Inpaint.MaxExpansionSize)
	}
	if c.Inpaint.FeatherSize < 0 {
		return fmt.Errorf("invalid feather size: %d (must not be negative)", c.Inpaint.FeatherSize)
	}
	if c.Inpaint.NumThreads < 0 {
		return fmt.Errorf("invalid num threads: %d (must not be negative)", c.Inpaint.NumThreads)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}

	if c.GPU.Device < 0 {
		return fmt.Errorf("invalid GPU device: %d (must not be negative)", c.GPU.Device)
	}
	if _, err := ParseMemorySize(c.GPU.MemoryLimit); err != nil {
		return fmt.Errorf("invalid GPU memory limit: %w", err)
	}

	return nil
}

// ToPipelineConfig converts the config to the internal pipeline configuration format.
func (c *Config) ToPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	if c.ModelsDir != "" {
		cfg.ModelsDir = c.ModelsDir
	}
	cfg.Engine = c.Inpaint.Engine
	cfg.InputSize = c.Inpaint.InputSize
	cfg.ExpandPercentage = c.Inpaint.ExpandPercentage
	cfg.MaxExpansionSize = c.Inpaint.MaxExpansionSize
	cfg.FeatherSize = c.Inpaint.FeatherSize
	cfg.Debug = c.Inpaint.Debug
	cfg.Inpainter = c.toInpainterConfig(cfg.ModelsDir)
	if c.Batch.Workers > 0 {
		cfg.Parallel.MaxWorkers = c.Batch.Workers
	}
	return cfg
}

// toInpainterConfig converts to inpainter.Config.
func (c *Config) toInpainterConfig(modelsDir string) inpainter.Config {
	cfg := inpainter.DefaultConfig()
	cfg.UpdateModelPath(modelsDir)
	if c.Inpaint.ModelPath != "" {
		cfg.ModelPath = c.Inpaint.ModelPath
	}
	cfg.NumThreads = c.Inpaint.NumThreads
	cfg.GPU.UseGPU = c.GPU.Enabled
	cfg.GPU.DeviceID = c.GPU.Device
	// Validate has already rejected malformed limits.
	cfg.GPU.GPUMemLimit, _ = ParseMemorySize(c.GPU.MemoryLimit)
	return cfg
}

// ParseMemorySize parses memory size strings like "2GB", "512MB", "1024".
// Empty strings and "auto" mean no limit.
func ParseMemorySize(s string) (uint64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || s == "AUTO" {
		return 0, nil
	}

	var multiplier uint64 = 1
	for _, unit := range []struct {
		suffix string
		mult   uint64
	}{
		{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10},
		{"G", 1 << 30}, {"M", 1 << 20}, {"K", 1 << 10}, {"B", 1},
	} {
		if strings.HasSuffix(s, unit.suffix) {
			multiplier = unit.mult
			s = strings.TrimSuffix(s, unit.suffix)
			break
		}
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid memory size: %s", s)
	}
	return uint64(value * float64(multiplier)), nil
}
