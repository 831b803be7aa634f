package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetModelsDir(t *testing.T) {
	t.Run("explicit wins", func(t *testing.T) {
		t.Setenv(EnvModelsDir, "/from/env")
		assert.Equal(t, "/custom", GetModelsDir("/custom"))
	})
	t.Run("environment", func(t *testing.T) {
		t.Setenv(EnvModelsDir, "/from/env")
		assert.Equal(t, "/from/env", GetModelsDir(""))
	})
	t.Run("project default", func(t *testing.T) {
		t.Setenv(EnvModelsDir, "")
		dir := GetModelsDir("")
		assert.Equal(t, DefaultModelsDir, filepath.Base(dir))
	})
}

func TestResolveModelPath(t *testing.T) {
	base := t.TempDir()

	flat := ResolveModelPath(base, TypeInpainting, InpaintingLaMa)
	assert.Equal(t, filepath.Join(base, InpaintingLaMa), flat, "falls back to flat layout")

	organized := filepath.Join(base, TypeInpainting, InpaintingLaMa)
	require.NoError(t, os.MkdirAll(filepath.Dir(organized), 0o750))
	require.NoError(t, os.WriteFile(organized, []byte("onnx"), 0o600))
	assert.Equal(t, organized, ResolveModelPath(base, TypeInpainting, InpaintingLaMa))
	assert.Equal(t, organized, GetInpaintingModelPath(base, ""))
}

func TestValidateModelExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.onnx")
	require.Error(t, ValidateModelExists(path))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	require.NoError(t, ValidateModelExists(path))
}

func TestListModelStatus(t *testing.T) {
	base := t.TempDir()
	statuses := ListModelStatus(base)
	require.Len(t, statuses, len(ListAvailableModels()))
	assert.Equal(t, "lama", statuses[0].Name)
	assert.False(t, statuses[0].Present)

	require.NoError(t, os.WriteFile(filepath.Join(base, InpaintingLaMa), []byte("x"), 0o600))
	assert.True(t, ListModelStatus(base)[0].Present)
}
