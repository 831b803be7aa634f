package inpainter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/MeKo-Tech/inpaint/internal/mempool"
	"github.com/MeKo-Tech/inpaint/internal/models"
	"github.com/MeKo-Tech/inpaint/internal/onnx"
	onnxrt "github.com/yalue/onnxruntime_go"
)

// Default tensor names of the LaMa export.
const (
	DefaultImageInput = "image"
	DefaultMaskInput  = "mask"
)

// Config holds configuration for the ONNX inpainting engine.
type Config struct {
	ModelPath   string          // path to the ONNX model
	ImageInput  string          // name of the image input tensor
	MaskInput   string          // name of the mask input tensor
	NumThreads  int             // intra-op threads (0 = runtime default)
	OutputRange onnx.ValueRange // scale of the model output
	GPU         onnx.GPUConfig
}

// DefaultConfig returns the LaMa configuration.
func DefaultConfig() Config {
	return Config{
		ModelPath:   models.GetInpaintingModelPath("", models.InpaintingLaMa),
		ImageInput:  DefaultImageInput,
		MaskInput:   DefaultMaskInput,
		OutputRange: onnx.RangeByte,
		GPU:         onnx.DefaultGPUConfig(),
	}
}

// UpdateModelPath relocates the model under the provided models directory.
func (c *Config) UpdateModelPath(modelsDir string) {
	c.ModelPath = models.GetInpaintingModelPath(modelsDir, models.InpaintingLaMa)
}

// ONNXEngine runs an inpainting model through ONNX Runtime.
type ONNXEngine struct {
	cfg   Config
	state atomic.Int32

	mu         sync.RWMutex
	session    *onnxrt.DynamicAdvancedSession
	inputInfo  []onnxrt.InputOutputInfo
	outputInfo onnxrt.InputOutputInfo
}

// NewONNXEngine loads the model and creates a session.
func NewONNXEngine(cfg Config) (*ONNXEngine, error) {
	if cfg.ImageInput == "" {
		cfg.ImageInput = DefaultImageInput
	}
	if cfg.MaskInput == "" {
		cfg.MaskInput = DefaultMaskInput
	}
	e := &ONNXEngine{cfg: cfg}
	e.state.Store(int32(StateLoading))

	if _, err := os.Stat(cfg.ModelPath); err != nil {
		e.state.Store(int32(StateNotLoaded))
		return nil, fmt.Errorf("inpainting model not found: %s", cfg.ModelPath)
	}
	if err := onnx.ValidateGPUConfig(cfg.GPU); err != nil {
		return nil, fmt.Errorf("gpu config: %w", err)
	}
	if err := e.createSession(); err != nil {
		e.state.Store(int32(StateError))
		return nil, err
	}
	e.state.Store(int32(StateLoaded))
	slog.Debug("Inpainting model loaded", "model", cfg.ModelPath, "gpu", cfg.GPU.UseGPU)
	return e, nil
}

func (e *ONNXEngine) createSession() error {
	if err := onnx.InitializeEnvironment(e.cfg.GPU.UseGPU); err != nil {
		return err
	}

	inputs, outputs, err := onnxrt.GetInputOutputInfo(e.cfg.ModelPath)
	if err != nil {
		return fmt.Errorf("io info: %w", err)
	}
	if len(outputs) != 1 {
		return fmt.Errorf("unexpected output count %d", len(outputs))
	}
	for _, name := range []string{e.cfg.ImageInput, e.cfg.MaskInput} {
		if !slices.ContainsFunc(inputs, func(in onnxrt.InputOutputInfo) bool { return in.Name == name }) {
			return fmt.Errorf("model has no input named %q", name)
		}
	}

	opts, err := onnxrt.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("session opts: %w", err)
	}
	defer func() { _ = opts.Destroy() }()

	if e.cfg.NumThreads > 0 {
		_ = opts.SetIntraOpNumThreads(e.cfg.NumThreads)
	}
	if err := onnx.ConfigureSessionForGPU(opts, e.cfg.GPU); err != nil {
		slog.Warn("GPU unavailable, running on CPU", "error", err)
	}

	sess, err := onnxrt.NewDynamicAdvancedSession(e.cfg.ModelPath,
		[]string{e.cfg.ImageInput, e.cfg.MaskInput}, []string{outputs[0].Name}, opts)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	e.session = sess
	e.inputInfo = inputs
	e.outputInfo = outputs[0]
	return nil
}

// Run implements Engine.
func (e *ONNXEngine) Run(ctx context.Context, image, mask onnx.Tensor) (onnx.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return onnx.Tensor{}, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.session == nil {
		return onnx.Tensor{}, errors.New("session closed")
	}

	imgIn, err := onnxrt.NewTensor(onnxrt.NewShape(image.Shape...), image.Data)
	if err != nil {
		return onnx.Tensor{}, fmt.Errorf("image tensor: %w", err)
	}
	defer func() { _ = imgIn.Destroy() }()

	maskIn, err := onnxrt.NewTensor(onnxrt.NewShape(mask.Shape...), mask.Data)
	if err != nil {
		return onnx.Tensor{}, fmt.Errorf("mask tensor: %w", err)
	}
	defer func() { _ = maskIn.Destroy() }()

	outs := []onnxrt.Value{nil}
	if err := e.session.Run([]onnxrt.Value{imgIn, maskIn}, outs); err != nil {
		return onnx.Tensor{}, err
	}
	if outs[0] == nil {
		return onnx.Tensor{}, errors.New("no output from model")
	}
	defer func() { _ = outs[0].Destroy() }()

	return extractOutput(outs[0])
}

// extractOutput copies the model output out of runtime-owned memory.
func extractOutput(v onnxrt.Value) (onnx.Tensor, error) {
	t, ok := v.(*onnxrt.Tensor[float32])
	if !ok {
		return onnx.Tensor{}, errors.New("invalid output tensor type")
	}
	src := t.GetData()
	data := mempool.GetFloat32(len(src))
	copy(data, src)
	shape := t.GetShape()
	return onnx.Tensor{Data: data, Shape: append([]int64(nil), shape...)}, nil
}

// OutputRange implements RangeReporter.
func (e *ONNXEngine) OutputRange() onnx.ValueRange { return e.cfg.OutputRange }

// State implements StateReporter.
func (e *ONNXEngine) State() ModelState { return ModelState(e.state.Load()) }

// Info returns model metadata for the models endpoint and logs.
func (e *ONNXEngine) Info() map[string]interface{} {
	e.mu.RLock()
	defer e.mu.RUnlock()
	inputs := make([]string, 0, len(e.inputInfo))
	for _, in := range e.inputInfo {
		inputs = append(inputs, in.Name)
	}
	return map[string]interface{}{
		"model_path":   e.cfg.ModelPath,
		"inputs":       inputs,
		"output":       e.outputInfo.Name,
		"output_range": e.cfg.OutputRange.String(),
		"gpu":          e.cfg.GPU.UseGPU,
		"state":        e.State().String(),
	}
}

// Close releases ONNX resources.
func (e *ONNXEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	e.state.Store(int32(StateNotLoaded))
	return err
}
