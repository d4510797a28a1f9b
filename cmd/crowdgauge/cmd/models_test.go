package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/crowdgauge/internal/config"
	"github.com/MeKo-Tech/crowdgauge/internal/models"
)

func TestDescribeModels_Missing(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ModelsDir = t.TempDir()

	var buf bytes.Buffer
	err := describeModels(&buf, &cfg, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detector model not found")
	assert.Contains(t, buf.String(), "gauge-detector (missing)")
}

func TestDescribeModels_Found(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, models.TypeDetection, models.GaugeDetector)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("onnx"), 0o600))

	cfg := config.DefaultConfig()
	cfg.ModelsDir = dir

	var buf bytes.Buffer
	require.NoError(t, describeModels(&buf, &cfg, false))
	out := buf.String()
	assert.Contains(t, out, "Models directory: "+dir)
	assert.Contains(t, out, "gauge-detector (found)")
	assert.Contains(t, out, path)
	assert.Contains(t, out, "[gauge station_label]")
}

func TestDescribeModels_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.onnx")
	require.NoError(t, os.WriteFile(path, []byte("onnx"), 0o600))

	cfg := config.DefaultConfig()
	cfg.ModelsDir = t.TempDir()
	cfg.Detector.ModelPath = path

	var buf bytes.Buffer
	require.NoError(t, describeModels(&buf, &cfg, false))
	assert.Contains(t, buf.String(), "path:    "+path)
}

func TestModelsCommand_Flags(t *testing.T) {
	assert.NotNil(t, modelsCmd.Flags().Lookup("inspect"))
}
