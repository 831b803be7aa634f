package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	onnxrt "github.com/yalue/onnxruntime_go"
)

// EnvLibraryPath overrides the ONNX Runtime shared library location.
const EnvLibraryPath = "ONNXRUNTIME_LIB_PATH"

var envMu sync.Mutex

// LibraryName returns the ONNX Runtime library filename for the current OS.
func LibraryName() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return "libonnxruntime.so", nil
	case "darwin":
		return "libonnxruntime.dylib", nil
	case "windows":
		return "onnxruntime.dll", nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// candidateLibraryPaths lists library locations in lookup order: the
// environment override, system paths, then the project-local runtime.
func candidateLibraryPaths(useGPU bool) []string {
	var paths []string
	if p := os.Getenv(EnvLibraryPath); p != "" {
		paths = append(paths, p)
	}
	if useGPU {
		paths = append(paths, "/opt/onnxruntime/gpu/lib/libonnxruntime.so")
	}
	paths = append(paths,
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
	)
	if root, err := findProjectRoot(); err == nil {
		if name, err := LibraryName(); err == nil {
			if useGPU {
				paths = append(paths, filepath.Join(root, "onnxruntime", "gpu", "lib", name))
			}
			paths = append(paths, filepath.Join(root, "onnxruntime", "lib", name))
		}
	}
	return paths
}

// findProjectRoot walks up from the working directory to the nearest go.mod.
func findProjectRoot() (string, error) {
	root, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err == nil {
			return root, nil
		}
		parent := filepath.Dir(root)
		if parent == root {
			return "", errors.New("could not find project root")
		}
		root = parent
	}
}

// ResolveLibraryPath returns the first existing ONNX Runtime library.
func ResolveLibraryPath(useGPU bool) (string, error) {
	paths := candidateLibraryPaths(useGPU)
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("ONNX Runtime library not found (tried %d locations)", len(paths))
}

// InitializeEnvironment points onnxruntime_go at the shared library and
// initializes the process-wide environment once.
func InitializeEnvironment(useGPU bool) error {
	envMu.Lock()
	defer envMu.Unlock()
	if onnxrt.IsInitialized() {
		return nil
	}
	libPath, err := ResolveLibraryPath(useGPU)
	if err != nil {
		return err
	}
	onnxrt.SetSharedLibraryPath(libPath)
	if err := onnxrt.InitializeEnvironment(); err != nil {
		return fmt.Errorf("init onnx: %w", err)
	}
	slog.Debug("ONNX Runtime initialized", "library", libPath)
	return nil
}
