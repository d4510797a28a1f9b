package onnx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGPUConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  GPUConfig
		wantErr string
	}{
		{name: "cpu default", config: DefaultGPUConfig()},
		{name: "cpu skips gpu checks", config: GPUConfig{DeviceID: -1, ArenaExtendStrategy: "x"}},
		{
			name:   "gpu",
			config: GPUConfig{UseGPU: true, ArenaExtendStrategy: "kSameAsRequested", CUDNNConvAlgoSearch: "HEURISTIC"},
		},
		{name: "negative device", config: GPUConfig{UseGPU: true, DeviceID: -1}, wantErr: "non-negative"},
		{name: "arena", config: GPUConfig{UseGPU: true, ArenaExtendStrategy: "sometimes"}, wantErr: "arena"},
		{name: "algo search", config: GPUConfig{UseGPU: true, CUDNNConvAlgoSearch: "FAST"}, wantErr: "cuDNN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestGPUConfig_ProviderOptions(t *testing.T) {
	c := DefaultGPUConfig()
	c.UseGPU = true
	c.DeviceID = 1
	assert.Equal(t, map[string]string{
		"device_id":                 "1",
		"do_copy_in_default_stream": "1",
		"arena_extend_strategy":     "kNextPowerOfTwo",
		"cudnn_conv_algo_search":    "DEFAULT",
	}, c.ProviderOptions())

	c.GPUMemLimit = 2 << 30
	assert.Equal(t, "2147483648", c.ProviderOptions()["gpu_mem_limit"])
}

func TestAppendCUDA_CPUIsNoop(t *testing.T) {
	assert.NoError(t, AppendCUDA(nil, DefaultGPUConfig()))
}
