package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Model filenames.
const (
	// InpaintingLaMa is the LaMa big-lama export with "image" and "mask" inputs.
	InpaintingLaMa = "lama_fp32.onnx"
)

// Model type categories for organized directory structure.
const (
	TypeInpainting = "inpainting"
)

// Default models directory.
const DefaultModelsDir = "models"

// Environment variable for models directory override.
const EnvModelsDir = "INPAINT_MODELS_DIR"

// findProjectRoot finds the project root by looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", errors.New("could not find project root (go.mod not found)")
}

// ModelInfo contains metadata about a model.
type ModelInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Filename    string `json:"filename"`
	InputSize   int    `json:"input_size"`
}

// GetModelsDir returns the models directory path from various sources
// Priority: 1. Explicit modelsDir parameter, 2. Environment variable, 3. Project root + default.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}
	if projectRoot, err := findProjectRoot(); err == nil {
		return filepath.Join(projectRoot, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// ResolveModelPath resolves a model filename to its full path, preferring
// <models>/<type>/<file> and falling back to a flat <models>/<file> layout.
func ResolveModelPath(modelsDir, modelType, filename string) string {
	baseDir := GetModelsDir(modelsDir)
	if modelType != "" {
		organized := filepath.Join(baseDir, modelType, filename)
		if _, err := os.Stat(organized); err == nil {
			return organized
		}
	}
	return filepath.Join(baseDir, filename)
}

// GetInpaintingModelPath returns the path for an inpainting model. An empty
// filename selects LaMa.
func GetInpaintingModelPath(modelsDir, filename string) string {
	if filename == "" {
		filename = InpaintingLaMa
	}
	return ResolveModelPath(modelsDir, TypeInpainting, filename)
}

// ValidateModelExists checks if a model file exists at the given path.
func ValidateModelExists(modelPath string) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}

// ListAvailableModels returns information about the known models.
func ListAvailableModels() []ModelInfo {
	return []ModelInfo{
		{
			Name:        "lama",
			Type:        TypeInpainting,
			Description: "LaMa large-mask inpainting (fp32)",
			Filename:    InpaintingLaMa,
			InputSize:   512,
		},
	}
}

// ModelStatus pairs a model with its resolved location.
type ModelStatus struct {
	ModelInfo
	Path    string `json:"path"`
	Present bool   `json:"present"`
}

// ListModelStatus resolves every known model under modelsDir.
func ListModelStatus(modelsDir string) []ModelStatus {
	infos := ListAvailableModels()
	out := make([]ModelStatus, 0, len(infos))
	for _, info := range infos {
		path := ResolveModelPath(modelsDir, info.Type, info.Filename)
		out = append(out, ModelStatus{
			ModelInfo: info,
			Path:      path,
			Present:   ValidateModelExists(path) == nil,
		})
	}
	return out
}
