package onnx

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/crowdgauge/internal/mempool"
)

func TestNewImageTensor(t *testing.T) {
	ten, err := NewImageTensor(make([]float32, 3*4*5), 3, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4, 5}, ten.Shape)

	_, err = NewImageTensor(nil, 3, 4, 5)
	assert.ErrorContains(t, err, "holds 0 values")

	_, err = NewImageTensor(make([]float32, 10), 3, 4, 5)
	assert.ErrorContains(t, err, "needs 60")
}

func TestTensor_Validate(t *testing.T) {
	assert.ErrorContains(t, Tensor{Shape: []int64{1, 3, 4}}.Validate(), "rank 3")
	assert.ErrorContains(t, Tensor{Shape: []int64{1, 3, 0, 4}}.Validate(), "dimension 2")
	assert.NoError(t, Tensor{Data: make([]float32, 12), Shape: []int64{1, 3, 2, 2}}.Validate())
}

func TestTensor_Release(t *testing.T) {
	ten, err := NewImageTensor(mempool.GetFloat32(3*32*32), 3, 32, 32)
	require.NoError(t, err)
	ten.Release()
	assert.Nil(t, ten.Data)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float32{0, 0.5, 1})
	assert.InDelta(t, 0, s.Min, 1e-6)
	assert.InDelta(t, 1, s.Max, 1e-6)
	assert.InDelta(t, 0.5, s.Mean, 1e-6)
	assert.Equal(t, Summary{}, Summarize(nil))

	v := s.LogValue()
	assert.Equal(t, slog.KindGroup, v.Kind())
	assert.Len(t, v.Group(), 3)
}
