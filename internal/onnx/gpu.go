package onnx

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/yalue/onnxruntime_go"
)

var (
	arenaStrategies = []string{"kNextPowerOfTwo", "kSameAsRequested"}
	convAlgoSearch  = []string{"EXHAUSTIVE", "HEURISTIC", "DEFAULT"}
)

// GPUConfig selects the CUDA execution provider for the detector session.
type GPUConfig struct {
	UseGPU              bool
	DeviceID            int
	GPUMemLimit         uint64 // bytes, 0 = unlimited
	ArenaExtendStrategy string // one of arenaStrategies
	CUDNNConvAlgoSearch string // one of convAlgoSearch
}

// DefaultGPUConfig runs on the CPU. When enabled, the CUDA defaults suit a
// single detector session that sees one image at a time.
func DefaultGPUConfig() GPUConfig {
	return GPUConfig{
		ArenaExtendStrategy: "kNextPowerOfTwo",
		CUDNNConvAlgoSearch: "DEFAULT",
	}
}

// Validate is a no-op for CPU configs.
func (c GPUConfig) Validate() error {
	if !c.UseGPU {
		return nil
	}
	if c.DeviceID < 0 {
		return fmt.Errorf("GPU device id must be non-negative, got %d", c.DeviceID)
	}
	if c.ArenaExtendStrategy != "" && !slices.Contains(arenaStrategies, c.ArenaExtendStrategy) {
		return fmt.Errorf("invalid arena extend strategy %q, want one of %v", c.ArenaExtendStrategy, arenaStrategies)
	}
	if c.CUDNNConvAlgoSearch != "" && !slices.Contains(convAlgoSearch, c.CUDNNConvAlgoSearch) {
		return fmt.Errorf("invalid cuDNN conv algo search %q, want one of %v", c.CUDNNConvAlgoSearch, convAlgoSearch)
	}
	return nil
}

// ProviderOptions returns the CUDA provider settings for c.
func (c GPUConfig) ProviderOptions() map[string]string {
	opts := map[string]string{
		"device_id":                 strconv.Itoa(c.DeviceID),
		"do_copy_in_default_stream": "1",
	}
	if c.GPUMemLimit > 0 {
		opts["gpu_mem_limit"] = strconv.FormatUint(c.GPUMemLimit, 10)
	}
	if c.ArenaExtendStrategy != "" {
		opts["arena_extend_strategy"] = c.ArenaExtendStrategy
	}
	if c.CUDNNConvAlgoSearch != "" {
		opts["cudnn_conv_algo_search"] = c.CUDNNConvAlgoSearch
	}
	return opts
}

// AppendCUDA adds the CUDA provider to opts when c enables the GPU. The
// CPU provider stays registered behind it.
func AppendCUDA(opts *onnxruntime_go.SessionOptions, c GPUConfig) error {
	if !c.UseGPU {
		return nil
	}
	cuda, err := onnxruntime_go.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("create CUDA provider options: %w", err)
	}
	defer func() {
		if err := cuda.Destroy(); err != nil {
			slog.Warn("Failed to destroy CUDA provider options", "error", err)
		}
	}()

	if err := cuda.Update(c.ProviderOptions()); err != nil {
		return fmt.Errorf("update CUDA provider options: %w", err)
	}
	if err := opts.AppendExecutionProviderCUDA(cuda); err != nil {
		return fmt.Errorf("append CUDA provider: %w", err)
	}
	slog.Debug("CUDA provider enabled", "device_id", c.DeviceID)
	return nil
}
