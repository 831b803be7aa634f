package pipeline

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/MeKo-Tech/inpaint/internal/compositor"
	"github.com/MeKo-Tech/inpaint/internal/inpainter"
	"github.com/MeKo-Tech/inpaint/internal/models"
	"github.com/MeKo-Tech/inpaint/internal/polygons"
	"github.com/MeKo-Tech/inpaint/internal/region"
)

// Engine names accepted by Config.Engine.
const (
	EngineONNX     = "onnx"
	EngineIdentity = "identity"
)

// MaxInputSize bounds InputSize. Every region is resized to an
// InputSize x InputSize image and two float32 tensors of that extent.
const MaxInputSize = 4096

// Config holds configuration for the inpainting pipeline. It is copied into
// the Pipeline on Build and never changed afterwards.
type Config struct {
	ModelsDir string
	Engine    string           // EngineONNX or EngineIdentity
	Inpainter inpainter.Config // ONNX engine settings

	InputSize        int     // square model resolution
	ExpandPercentage float64 // per-side growth of boxes larger than InputSize
	MaxExpansionSize int     // cap on per-side growth in pixels
	FeatherSize      int     // compositor feather band, 0 = hard edge

	// Debug retains the intermediate images of every region in
	// InpaintResult.Artifacts.
	Debug bool

	Parallel ParallelConfig
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		ModelsDir:        models.GetModelsDir(""),
		Engine:           EngineONNX,
		Inpainter:        inpainter.DefaultConfig(),
		InputSize:        512,
		ExpandPercentage: 0.3,
		MaxExpansionSize: 200,
		Parallel:         DefaultParallelConfig(),
	}
}

// RegionParams returns the region planner parameters of c.
func (c Config) RegionParams() region.Params {
	return region.Params{
		InputSize:        c.InputSize,
		ExpandPercentage: c.ExpandPercentage,
		MaxExpansionSize: c.MaxExpansionSize,
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg    Config
	engine inpainter.Engine
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithModelsDir sets the models directory and updates the model path.
func (b *Builder) WithModelsDir(dir string) *Builder {
	if dir != "" {
		b.cfg.ModelsDir = dir
	}
	b.cfg.Inpainter.UpdateModelPath(b.cfg.ModelsDir)
	return b
}

// WithModelPath overrides the inpainting model path directly.
func (b *Builder) WithModelPath(path string) *Builder {
	if path != "" {
		b.cfg.Inpainter.ModelPath = path
	}
	return b
}

// WithInputSize sets the square model input resolution.
func (b *Builder) WithInputSize(size int) *Builder {
	if size > 0 {
		b.cfg.InputSize = size
	}
	return b
}

// WithExpandPercentage sets the per-side growth of large boxes.
func (b *Builder) WithExpandPercentage(pct float64) *Builder {
	if pct >= 0 {
		b.cfg.ExpandPercentage = pct
	}
	return b
}

// WithMaxExpansionSize caps the per-side growth in pixels.
func (b *Builder) WithMaxExpansionSize(px int) *Builder {
	if px >= 0 {
		b.cfg.MaxExpansionSize = px
	}
	return b
}

// WithFeatherSize sets the compositor feather band.
func (b *Builder) WithFeatherSize(px int) *Builder {
	if px >= 0 {
		b.cfg.FeatherSize = px
	}
	return b
}

// WithDebug toggles retention of intermediate images.
func (b *Builder) WithDebug(enabled bool) *Builder {
	b.cfg.Debug = enabled
	return b
}

// WithThreads sets intra-op threads of the ONNX engine (if >0).
func (b *Builder) WithThreads(n int) *Builder {
	if n > 0 {
		b.cfg.Inpainter.NumThreads = n
	}
	return b
}

// WithGPU enables GPU acceleration of the ONNX engine.
func (b *Builder) WithGPU(enabled bool) *Builder {
	b.cfg.Inpainter.GPU.UseGPU = enabled
	return b
}

// WithGPUDevice sets the CUDA device ID.
func (b *Builder) WithGPUDevice(deviceID int) *Builder {
	b.cfg.Inpainter.GPU.DeviceID = deviceID
	return b
}

// WithGPUMemoryLimit sets the GPU memory limit in bytes.
func (b *Builder) WithGPUMemoryLimit(limitBytes uint64) *Builder {
	b.cfg.Inpainter.GPU.GPUMemLimit = limitBytes
	return b
}

// WithEngine selects a built-in engine by name.
func (b *Builder) WithEngine(name string) *Builder {
	if name != "" {
		b.cfg.Engine = name
	}
	return b
}

// WithInferenceEngine injects an engine. It takes precedence over the
// configured engine name and is not closed by Pipeline.Close.
func (b *Builder) WithInferenceEngine(engine inpainter.Engine) *Builder {
	b.engine = engine
	return b
}

// WithParallelWorkers sets the number of workers for multi-image runs.
func (b *Builder) WithParallelWorkers(workers int) *Builder {
	if workers > 0 {
		b.cfg.Parallel.MaxWorkers = workers
	}
	return b
}

// WithProgressCallback sets the progress callback for multi-image runs.
func (b *Builder) WithProgressCallback(callback ProgressCallback) *Builder {
	b.cfg.Parallel.ProgressCallback = callback
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks that the configuration looks sane and, for the ONNX
// engine, that the model file exists.
func (b *Builder) Validate() error {
	c := b.cfg
	if c.InputSize <= 0 || c.InputSize > MaxInputSize {
		return fmt.Errorf("input size must be in 1..%d, got %d", MaxInputSize, c.InputSize)
	}
	if math.IsNaN(c.ExpandPercentage) || math.IsInf(c.ExpandPercentage, 0) || c.ExpandPercentage < 0 {
		return fmt.Errorf("expand percentage must be a finite value >= 0, got %g", c.ExpandPercentage)
	}
	if c.MaxExpansionSize < 0 {
		return fmt.Errorf("max expansion size must be >= 0, got %d", c.MaxExpansionSize)
	}
	if c.FeatherSize < 0 {
		return fmt.Errorf("feather size must be >= 0, got %d", c.FeatherSize)
	}
	if b.engine != nil {
		return nil
	}
	switch c.Engine {
	case EngineIdentity:
		return nil
	case EngineONNX:
		if c.Inpainter.ModelPath == "" {
			return errors.New("inpainting model path is empty")
		}
		if _, err := os.Stat(c.Inpainter.ModelPath); err != nil {
			return fmt.Errorf("inpainting model not found: %s", c.Inpainter.ModelPath)
		}
		return nil
	default:
		return fmt.Errorf("unknown engine %q (want %s or %s)", c.Engine, EngineONNX, EngineIdentity)
	}
}

// Pipeline wires the preprocessor, region planner, rasterizer, inference
// adapter and compositor together.
type Pipeline struct {
	cfg          Config
	preprocessor *polygons.Preprocessor
	adapter      *inpainter.Adapter
	compositor   *compositor.Compositor
	profiler     *Profiler
	closer       io.Closer
}

// Build initializes the pipeline and its inference engine.
func (b *Builder) Build() (*Pipeline, error) {
	if b.engine == nil && b.cfg.Engine == EngineONNX && b.cfg.Inpainter.ModelPath == "" {
		b.cfg.Inpainter.UpdateModelPath(b.cfg.ModelsDir)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	engine := b.engine
	var closer io.Closer
	if engine == nil {
		switch b.cfg.Engine {
		case EngineIdentity:
			engine = inpainter.NewIdentityEngine()
		default:
			e, err := inpainter.NewONNXEngine(b.cfg.Inpainter)
			if err != nil {
				return nil, fmt.Errorf("init inpainter: %w", err)
			}
			engine, closer = e, e
		}
	}

	return &Pipeline{
		cfg:          b.cfg,
		preprocessor: polygons.NewPreprocessor(),
		adapter:      inpainter.NewAdapter(engine),
		compositor:   compositor.New(b.cfg.FeatherSize),
		profiler:     &Profiler{},
		closer:       closer,
	}, nil
}

// Close releases the engine if the pipeline created it.
func (p *Pipeline) Close() error {
	if p == nil || p.closer == nil {
		return nil
	}
	err := p.closer.Close()
	p.closer = nil
	return err
}

// Overrides holds per-request changes to the region and compositing
// parameters. Nil fields keep the base value.
type Overrides struct {
	InputSize        *int
	ExpandPercentage *float64
	MaxExpansionSize *int
	FeatherSize      *int
}

// Empty reports whether o changes nothing.
func (o Overrides) Empty() bool {
	return o.InputSize == nil && o.ExpandPercentage == nil && o.MaxExpansionSize == nil && o.FeatherSize == nil
}

// Derive returns a pipeline that shares p's engine and profiler but uses
// the overridden parameters. Closing the derived pipeline is a no-op.
func (p *Pipeline) Derive(o Overrides) (*Pipeline, error) {
	if p == nil {
		return nil, errors.New("pipeline not initialized")
	}
	cfg := p.cfg
	if o.InputSize != nil {
		cfg.InputSize = *o.InputSize
	}
	if o.ExpandPercentage != nil {
		cfg.ExpandPercentage = *o.ExpandPercentage
	}
	if o.MaxExpansionSize != nil {
		cfg.MaxExpansionSize = *o.MaxExpansionSize
	}
	if o.FeatherSize != nil {
		cfg.FeatherSize = *o.FeatherSize
	}
	b := &Builder{cfg: cfg, engine: p.adapter.Engine()}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:          cfg,
		preprocessor: p.preprocessor,
		adapter:      p.adapter,
		compositor:   compositor.New(cfg.FeatherSize),
		profiler:     p.profiler,
	}, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Adapter returns the inference adapter.
func (p *Pipeline) Adapter() *inpainter.Adapter { return p.adapter }

// Profiler returns the cumulative counters of this pipeline.
func (p *Pipeline) Profiler() *Profiler { return p.profiler }

// Info returns a map with key pipeline properties and model info.
func (p *Pipeline) Info() map[string]interface{} {
	info := map[string]interface{}{
		"models_dir":         p.cfg.ModelsDir,
		"engine":             p.cfg.Engine,
		"input_size":         p.cfg.InputSize,
		"expand_percentage":  p.cfg.ExpandPercentage,
		"max_expansion_size": p.cfg.MaxExpansionSize,
		"feather_size":       p.cfg.FeatherSize,
		"debug":              p.cfg.Debug,
		"model_state":        p.adapter.State().String(),
		"output_range":       p.adapter.OutputRange().String(),
	}
	if e, ok := p.adapter.Engine().(*inpainter.ONNXEngine); ok {
		info["model"] = e.Info()
	}
	info["parallel"] = map[string]interface{}{
		"max_workers":           p.cfg.Parallel.MaxWorkers,
		"has_progress_callback": p.cfg.Parallel.ProgressCallback != nil,
	}
	info["stats"] = p.profiler.Snapshot()
	info["memory"] = GetMemStats()
	return info
}
