package cmd

import (
	"encoding/json"
	"testing"

	"github.com/MeKo-Tech/inpaint/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelsCommandTable(t *testing.T) {
	output, err := execute(t, "models", "--models-dir", t.TempDir())
	require.NoError(t, err)

	assert.Contains(t, output, "NAME")
	for _, info := range models.ListAvailableModels() {
		assert.Contains(t, output, info.Name)
	}
	assert.Contains(t, output, "false")
}

func TestModelsCommandJSON(t *testing.T) {
	dir := t.TempDir()
	output, err := execute(t, "models", "--models-dir", dir, "--json")
	require.NoError(t, err)

	var statuses []models.ModelStatus
	require.NoError(t, json.Unmarshal([]byte(output), &statuses))
	require.Len(t, statuses, len(models.ListAvailableModels()))
	for _, st := range statuses {
		assert.False(t, st.Present)
		assert.Contains(t, st.Path, dir)
	}
}
