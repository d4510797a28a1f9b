package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Model file names.
const (
	// GaugeDetector is the ONNX export of the YOLOv8 gauge/label detector.
	GaugeDetector = "best.onnx"
)

// Model type categories for organized directory structure.
const (
	TypeDetection = "detection"
)

// Default models directory.
const DefaultModelsDir = "models"

// Environment variable for models directory override.
const EnvModelsDir = "CROWDGAUGE_MODELS_DIR"

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
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Filename    string   `json:"filename"`
	Classes     []string `json:"classes,omitempty"`
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

// ResolveModelPath resolves a model filename to its full path. The organized
// layout (<dir>/<type>/<file>) is preferred; a flat <dir>/<file> is the fallback.
func ResolveModelPath(modelsDir, modelType, filename string) string {
	baseDir := GetModelsDir(modelsDir)

	if modelType != "" {
		organizedPath := filepath.Join(baseDir, modelType, filename)
		if _, err := os.Stat(organizedPath); err == nil {
			return organizedPath
		}
		if _, err := os.Stat(filepath.Join(baseDir, filename)); err != nil {
			// Neither exists; report the organized location.
			return organizedPath
		}
	}

	return filepath.Join(baseDir, filename)
}

// GetDetectionModelPath returns the path of the gauge detector.
func GetDetectionModelPath(modelsDir string) string {
	return ResolveModelPath(modelsDir, TypeDetection, GaugeDetector)
}

// ValidateModelExists checks if a model file exists at the given path.
func ValidateModelExists(modelPath string) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}

// ListAvailableModels returns information about the models the service loads.
func ListAvailableModels() []ModelInfo {
	return []ModelInfo{
		{
			Name:        "gauge-detector",
			Type:        TypeDetection,
			Description: "YOLOv8 staff gauge and station label detector",
			Filename:    GaugeDetector,
			Classes:     []string{"gauge", "station_label"},
		},
	}
}
