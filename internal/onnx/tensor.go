package onnx

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/crowdgauge/internal/mempool"
)

// Tensor is a float32 buffer with its ONNX shape. Image inputs are NCHW.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// NewImageTensor wraps one NCHW image as a [1, c, h, w] tensor.
func NewImageTensor(data []float32, c, h, w int) (Tensor, error) {
	t := Tensor{Data: data, Shape: []int64{1, int64(c), int64(h), int64(w)}}
	if err := t.Validate(); err != nil {
		return Tensor{}, err
	}
	return t, nil
}

// Validate checks that the shape is NCHW with positive dimensions and that
// Data holds exactly that many values.
func (t Tensor) Validate() error {
	if len(t.Shape) != 4 {
		return fmt.Errorf("tensor rank %d, want 4 (NCHW)", len(t.Shape))
	}
	n := int64(1)
	for i, d := range t.Shape {
		if d <= 0 {
			return fmt.Errorf("tensor dimension %d is %d", i, d)
		}
		n *= d
	}
	if int64(len(t.Data)) != n {
		return fmt.Errorf("tensor holds %d values, shape %v needs %d", len(t.Data), t.Shape, n)
	}
	return nil
}

// Release returns Data to the input buffer pool. t must not be used after.
func (t *Tensor) Release() {
	mempool.PutFloat32(t.Data)
	t.Data = nil
}

// Summary is the range and mean of a model output.
type Summary struct {
	Min, Max, Mean float32
}

// Summarize scans data once. An empty slice gives the zero Summary.
func Summarize(data []float32) Summary {
	if len(data) == 0 {
		return Summary{}
	}
	s := Summary{Min: data[0], Max: data[0]}
	var sum float64
	for _, v := range data {
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
		sum += float64(v)
	}
	s.Mean = float32(sum / float64(len(data)))
	return s
}

func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("min", float64(s.Min)),
		slog.Float64("max", float64(s.Max)),
		slog.Float64("mean", float64(s.Mean)),
	)
}
