package detector

import (
	"errors"
	"fmt"
	"os"

	"github.com/MeKo-Tech/crowdgauge/internal/models"
	"github.com/MeKo-Tech/crowdgauge/internal/onnx"
	"github.com/yalue/onnxruntime_go"
)

// Config holds configuration for the region detector.
type Config struct {
	ModelPath           string         // Path to the ONNX export of the detector
	InputSize           int            // Square model input side (default: 640)
	ConfidenceThreshold float32        // Minimum class score kept (default: 0.25)
	IOUThreshold        float64        // Same-class NMS overlap limit (default: 0.45)
	MaxDetections       int            // Cap on boxes kept after NMS (default: 10)
	NumThreads          int            // Number of CPU threads (default: 0 for auto)
	GPU                 onnx.GPUConfig // GPU acceleration configuration
	Roles               Roles          // Class id to label mapping
}

// DefaultConfig returns a default detector configuration.
func DefaultConfig() Config {
	return Config{
		ModelPath:           models.GetDetectionModelPath(""),
		InputSize:           640,
		ConfidenceThreshold: 0.25,
		IOUThreshold:        0.45,
		MaxDetections:       10,
		NumThreads:          0,
		GPU:                 onnx.DefaultGPUConfig(),
		Roles:               DefaultRoles(),
	}
}

// UpdateModelPath points ModelPath at the detector inside modelsDir.
func (c *Config) UpdateModelPath(modelsDir string) {
	c.ModelPath = models.GetDetectionModelPath(modelsDir)
}

// validateConfig validates the detector configuration.
func validateConfig(config Config) error {
	if config.ModelPath == "" {
		return errors.New("model path cannot be empty")
	}
	if config.InputSize < 32 || config.InputSize%32 != 0 {
		return fmt.Errorf("input size must be a positive multiple of 32, got %d", config.InputSize)
	}
	if config.ConfidenceThreshold < 0 || config.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0,1], got %.2f", config.ConfidenceThreshold)
	}
	if config.IOUThreshold <= 0 || config.IOUThreshold > 1 {
		return fmt.Errorf("IoU threshold must be in (0,1], got %.2f", config.IOUThreshold)
	}
	// The cap must leave room for an over-detection to show up in the count.
	if config.MaxDetections <= len(Labels) {
		return fmt.Errorf("max detections must exceed %d, got %d", len(Labels), config.MaxDetections)
	}
	if err := config.Roles.Validate(); err != nil {
		return fmt.Errorf("roles: %w", err)
	}
	return config.GPU.Validate()
}

// validateModelFile checks if the model file exists.
func validateModelFile(modelPath string) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}

// validateModelInfo gets and validates model input/output information.
func validateModelInfo(modelPath string) (onnxruntime_go.InputOutputInfo, onnxruntime_go.InputOutputInfo, error) {
	inputs, outputs, err := onnxruntime_go.GetInputOutputInfo(modelPath)
	if err != nil {
		return onnxruntime_go.InputOutputInfo{}, onnxruntime_go.InputOutputInfo{},
			fmt.Errorf("failed to get model input/output info: %w", err)
	}

	if len(inputs) != 1 {
		return onnxruntime_go.InputOutputInfo{}, onnxruntime_go.InputOutputInfo{},
			fmt.Errorf("expected 1 input, got %d", len(inputs))
	}
	if len(outputs) != 1 {
		return onnxruntime_go.InputOutputInfo{}, onnxruntime_go.InputOutputInfo{},
			fmt.Errorf("expected 1 output, got %d", len(outputs))
	}

	inputInfo := inputs[0]
	outputInfo := outputs[0]

	if len(inputInfo.Dimensions) != 4 {
		return onnxruntime_go.InputOutputInfo{}, onnxruntime_go.InputOutputInfo{},
			fmt.Errorf("expected 4D input tensor, got %dD", len(inputInfo.Dimensions))
	}
	if len(outputInfo.Dimensions) != 3 {
		return onnxruntime_go.InputOutputInfo{}, onnxruntime_go.InputOutputInfo{},
			fmt.Errorf("expected 3D output tensor [1, 4+classes, anchors], got %dD", len(outputInfo.Dimensions))
	}

	return inputInfo, outputInfo, nil
}
