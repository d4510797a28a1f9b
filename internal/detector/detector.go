// Package detector locates the staff gauge and the station label in a
// contributed photo with a YOLOv8 model served by ONNX Runtime.
package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/crowdgauge/internal/onnx"
	"github.com/MeKo-Tech/crowdgauge/internal/utils"
)

// ErrClosed is returned by Detect after Close.
var ErrClosed = errors.New("detector is closed")

// Detector finds labelled regions. It is safe for concurrent use; calls
// share one model session and are serialized around inference.
type Detector struct {
	config Config
	inf    inferencer
	mu     sync.Mutex
}

// NewDetector loads the model at config.ModelPath.
func NewDetector(config Config) (*Detector, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	if err := validateModelFile(config.ModelPath); err != nil {
		return nil, err
	}

	slog.Debug("Initializing detector",
		"model_path", config.ModelPath,
		"gpu_enabled", config.GPU.UseGPU,
		"input_size", config.InputSize,
		"confidence_threshold", config.ConfidenceThreshold,
		"iou_threshold", config.IOUThreshold)

	session, err := newONNXSession(config)
	if err != nil {
		return nil, err
	}

	slog.Debug("Detector initialized successfully",
		"input", session.inputInfo.Name, "output", session.outputInfo.Name)
	return &Detector{config: config, inf: session}, nil
}

func newWithInferencer(config Config, inf inferencer) *Detector {
	return &Detector{config: config, inf: inf}
}

// Close releases the model session. The ONNX environment itself stays up
// until process shutdown.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.inf == nil {
		return nil
	}
	err := d.inf.Close()
	d.inf = nil
	if err != nil {
		return fmt.Errorf("failed to destroy detector session: %w", err)
	}
	return nil
}

// GetConfig returns a copy of the detector's configuration.
func (d *Detector) GetConfig() Config {
	return d.config
}

// Detect runs the model on img and returns every box that survives the
// confidence filter and NMS. It does not check the box count; see
// Result.Validate and ExtractROI.
func (d *Detector) Detect(ctx context.Context, img image.Image) (*Result, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	bounds := img.Bounds()

	tensor, lb, err := d.prepare(img)
	if err != nil {
		return nil, fmt.Errorf("preprocessing failed: %w", err)
	}
	defer tensor.Release()

	data, shape, err := d.run(tensor)
	if err != nil {
		return nil, err
	}

	boxes, err := decodeOutput(data, shape, d.config, lb, bounds)
	if err != nil {
		return nil, fmt.Errorf("decode output: %w", err)
	}
	candidates := len(boxes)
	boxes = NonMaxSuppression(boxes, d.config.IOUThreshold)
	found := len(boxes)
	if found > d.config.MaxDetections {
		boxes = boxes[:d.config.MaxDetections]
	}

	result := &Result{
		Boxes:    boxes,
		Found:    found,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Duration: time.Since(start),
	}
	slog.Debug("Detection complete",
		"candidates", candidates,
		"found", found,
		"boxes", len(boxes),
		"labels", result.Labels(),
		"duration_ms", result.Duration.Milliseconds())
	return result, nil
}

// prepare letterboxes img to the model input and builds the NCHW tensor.
func (d *Detector) prepare(img image.Image) (onnx.Tensor, utils.LetterboxInfo, error) {
	boxed, lb, err := utils.Letterbox(img, d.config.InputSize)
	if err != nil {
		return onnx.Tensor{}, lb, err
	}
	data, w, h, err := utils.NormalizeImage(boxed)
	if err != nil {
		return onnx.Tensor{}, lb, err
	}
	tensor, err := onnx.NewImageTensor(data, 3, h, w)
	if err != nil {
		return onnx.Tensor{}, lb, fmt.Errorf("failed to create tensor: %w", err)
	}
	return tensor, lb, nil
}

func (d *Detector) run(tensor onnx.Tensor) ([]float32, []int64, error) {
	if err := tensor.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid tensor: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inf == nil {
		return nil, nil, ErrClosed
	}
	data, shape, err := d.inf.Run(tensor)
	if err != nil {
		return nil, nil, err
	}
	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug("Detector output", "shape", shape, "stats", onnx.Summarize(data))
	}
	return data, shape, nil
}

// ModelInfo describes the loaded model for health and CLI output.
func (d *Detector) ModelInfo() map[string]any {
	roles := make(map[int]string, len(d.config.Roles))
	for id, l := range d.config.Roles {
		roles[id] = string(l)
	}
	return map[string]any{
		"model_path":           d.config.ModelPath,
		"input_size":           d.config.InputSize,
		"confidence_threshold": d.config.ConfidenceThreshold,
		"iou_threshold":        d.config.IOUThreshold,
		"num_threads":          d.config.NumThreads,
		"roles":                roles,
		"gpu": map[string]any{
			"enabled":                d.config.GPU.UseGPU,
			"device_id":              d.config.GPU.DeviceID,
			"memory_limit_bytes":     d.config.GPU.GPUMemLimit,
			"arena_extend_strategy":  d.config.GPU.ArenaExtendStrategy,
			"cudnn_conv_algo_search": d.config.GPU.CUDNNConvAlgoSearch,
		},
	}
}
