package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetModelsDir(t *testing.T) {
	tests := []struct {
		name           string
		explicitDir    string
		envVar         string
		expectedResult string
	}{
		{
			name:           "explicit directory takes precedence",
			explicitDir:    "/explicit/path",
			envVar:         "/env/path",
			expectedResult: "/explicit/path",
		},
		{
			name:           "environment variable used when no explicit dir",
			envVar:         "/env/path",
			expectedResult: "/env/path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvModelsDir, tt.envVar)
			assert.Equal(t, tt.expectedResult, GetModelsDir(tt.explicitDir))
		})
	}
}

func TestGetModelsDir_DefaultsToProjectRoot(t *testing.T) {
	t.Setenv(EnvModelsDir, "")

	root, err := findProjectRoot()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, DefaultModelsDir), GetModelsDir(""))
}

func TestResolveModelPath(t *testing.T) {
	t.Run("organized layout preferred", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, TypeDetection), 0o755))
		organized := filepath.Join(dir, TypeDetection, GaugeDetector)
		require.NoError(t, os.WriteFile(organized, []byte("x"), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, GaugeDetector), []byte("x"), 0o600))

		assert.Equal(t, organized, GetDetectionModelPath(dir))
	})

	t.Run("flat layout fallback", func(t *testing.T) {
		dir := t.TempDir()
		flat := filepath.Join(dir, GaugeDetector)
		require.NoError(t, os.WriteFile(flat, []byte("x"), 0o600))

		assert.Equal(t, flat, GetDetectionModelPath(dir))
	})

	t.Run("missing reports organized path", func(t *testing.T) {
		dir := t.TempDir()
		assert.Equal(t, filepath.Join(dir, TypeDetection, GaugeDetector), GetDetectionModelPath(dir))
	})
}

func TestValidateModelExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, GaugeDetector)

	err := ValidateModelExists(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model file not found")

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	assert.NoError(t, ValidateModelExists(path))
}

func TestListAvailableModels(t *testing.T) {
	list := ListAvailableModels()
	require.Len(t, list, 1)
	assert.Equal(t, GaugeDetector, list[0].Filename)
	assert.Equal(t, []string{"gauge", "station_label"}, list[0].Classes)
}
