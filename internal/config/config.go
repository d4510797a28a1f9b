package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/crowdgauge/internal/contribution"
	"github.com/MeKo-Tech/crowdgauge/internal/detector"
	"github.com/MeKo-Tech/crowdgauge/internal/media"
	"github.com/MeKo-Tech/crowdgauge/internal/models"
	"github.com/MeKo-Tech/crowdgauge/internal/onnx"
	"github.com/MeKo-Tech/crowdgauge/internal/pipeline"
	"github.com/MeKo-Tech/crowdgauge/internal/preprocess"
	"github.com/MeKo-Tech/crowdgauge/internal/server"
	"github.com/MeKo-Tech/crowdgauge/internal/utils"
	"github.com/MeKo-Tech/crowdgauge/internal/vision"
)

// Vision providers.
const (
	ProviderGemini = "gemini"
	ProviderStatic = "static"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ModelsDir: models.DefaultModelsDir,
		LogLevel:  "info",
		Verbose:   false,
		Detector:  defaultDetectorConfig(),
		Gauge:     defaultGaugeConfig(),
		Label:     defaultLabelConfig(),
		Vision: VisionConfig{
			Provider:    ProviderGemini,
			Model:       vision.DefaultModel,
			TimeoutSec:  int(vision.DefaultTimeout / time.Second),
			JPEGQuality: utils.DefaultJPEGQuality,
		},
		Media: MediaConfig{
			TimeoutSec:    int(media.DefaultTimeout / time.Second),
			MaxBytes:      media.DefaultMaxBytes,
			AcceptedTypes: slices.Clone(media.DefaultAcceptedTypes),
		},
		Store: StoreConfig{
			Driver: "memory",
		},
		Twilio: TwilioConfig{
			ValidateSignatures: true,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			TimeoutSec:      30,
			ShutdownTimeout: 30,
			RatePerMinute:   6,
			RateBurst:       3,
			MaxPerDay:       50,
			MaxListed:       500,
		},
		Dispatcher: DispatcherConfig{
			Workers:       4,
			QueueSize:     64,
			JobTimeoutSec: 120,
		},
		GPU: GPUConfig{
			Enabled:     false,
			Device:      0,
			MemoryLimit: "auto",
		},
	}
}

// defaultDetectorConfig returns default detector configuration.
func defaultDetectorConfig() DetectorConfig {
	cfg := detector.DefaultConfig()
	return DetectorConfig{
		InputSize:           cfg.InputSize,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		IOUThreshold:        cfg.IOUThreshold,
		MaxDetections:       cfg.MaxDetections,
		NumThreads:          cfg.NumThreads,
		GaugeClass:          0,
		LabelClass:          1,
	}
}

// defaultGaugeConfig returns the calibrated gauge preprocessing defaults.
func defaultGaugeConfig() GaugeConfig {
	cfg := preprocess.DefaultGaugeConfig()
	return GaugeConfig{
		CanonicalHeight:  cfg.CanonicalHeight,
		BlurSigma:        cfg.BlurSigma,
		MedianWindow:     cfg.MedianWindow,
		TopHatKernel:     cfg.TopHatKernel,
		CleanKernel:      cfg.CleanKernel,
		ThresholdRatio:   cfg.Waterline.ThresholdRatio,
		ScanDirection:    string(cfg.Waterline.Direction),
		AnnotateContrast: cfg.AnnotateContrast,
		LineWidth:        cfg.LineWidth,
	}
}

func defaultLabelConfig() LabelConfig {
	cfg := preprocess.DefaultLabelConfig()
	return LabelConfig{
		Width:        cfg.Width,
		Height:       cfg.Height,
		Contrast:     cfg.Contrast,
		MedianWindow: cfg.MedianWindow,
		BlockSize:    cfg.BlockSize,
		C:            cfg.C,
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if err := validateThreshold(float64(c.Detector.ConfidenceThreshold), "detector.confidence_threshold"); err != nil {
		return err
	}
	if err := validateThreshold(c.Detector.IOUThreshold, "detector.iou_threshold"); err != nil {
		return err
	}
	if c.Detector.InputSize <= 0 || c.Detector.InputSize%32 != 0 {
		return fmt.Errorf("invalid detector input size: %d (must be a positive multiple of 32)", c.Detector.InputSize)
	}
	if err := c.toRoles().Validate(); err != nil {
		return fmt.Errorf("invalid detector classes: %w", err)
	}

	if err := c.ToGaugeConfig().Validate(); err != nil {
		return fmt.Errorf("invalid gauge config: %w", err)
	}
	if err := c.ToLabelConfig().Validate(); err != nil {
		return fmt.Errorf("invalid label config: %w", err)
	}

	validProviders := []string{ProviderGemini, ProviderStatic}
	if !slices.Contains(validProviders, c.Vision.Provider) {
		return fmt.Errorf("invalid vision provider: %s (must be one of: %s)",
			c.Vision.Provider, strings.Join(validProviders, ", "))
	}
	if c.Vision.TimeoutSec <= 0 {
		return fmt.Errorf("invalid vision timeout: %d (must be positive)", c.Vision.TimeoutSec)
	}
	if c.Vision.JPEGQuality < 1 || c.Vision.JPEGQuality > 100 {
		return fmt.Errorf("invalid vision jpeg quality: %d (must be between 1 and 100)", c.Vision.JPEGQuality)
	}

	if c.Media.TimeoutSec <= 0 {
		return fmt.Errorf("invalid media timeout: %d (must be positive)", c.Media.TimeoutSec)
	}
	if c.Media.MaxBytes <= 0 {
		return fmt.Errorf("invalid media max bytes: %d (must be positive)", c.Media.MaxBytes)
	}

	validDrivers := []string{"memory", contribution.DriverPostgres, contribution.DriverMySQL}
	if !slices.Contains(validDrivers, c.Store.Driver) {
		return fmt.Errorf("invalid store driver: %s (must be one of: %s)", c.Store.Driver, strings.Join(validDrivers, ", "))
	}
	if c.Store.Driver != "memory" && c.Store.DSN == "" {
		return fmt.Errorf("store driver %s needs store.dsn", c.Store.Driver)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RatePerMinute < 0 || c.Server.RateBurst < 0 || c.Server.MaxPerDay < 0 {
		return fmt.Errorf("invalid rate limit: %d/min burst %d, %d/day (must not be negative)",
			c.Server.RatePerMinute, c.Server.RateBurst, c.Server.MaxPerDay)
	}

	if c.Dispatcher.Workers < 0 {
		return fmt.Errorf("invalid dispatcher workers: %d (must not be negative)", c.Dispatcher.Workers)
	}
	if c.Dispatcher.QueueSize < 0 {
		return fmt.Errorf("invalid dispatcher queue size: %d (must not be negative)", c.Dispatcher.QueueSize)
	}

	if _, err := parseMemoryLimit(c.GPU.MemoryLimit); err != nil {
		return fmt.Errorf("invalid GPU memory limit: %w", err)
	}

	return nil
}

// ToDetectorConfig converts to detector.Config.
func (c *Config) ToDetectorConfig() detector.Config {
	cfg := detector.DefaultConfig()
	cfg.UpdateModelPath(c.ModelsDir)
	if c.Detector.ModelPath != "" {
		cfg.ModelPath = c.Detector.ModelPath
	}
	cfg.InputSize = c.Detector.InputSize
	cfg.ConfidenceThreshold = c.Detector.ConfidenceThreshold
	cfg.IOUThreshold = c.Detector.IOUThreshold
	cfg.MaxDetections = c.Detector.MaxDetections
	cfg.NumThreads = c.Detector.NumThreads
	cfg.Roles = c.toRoles()
	cfg.GPU = c.toGPUConfig()
	return cfg
}

func (c *Config) toRoles() detector.Roles {
	return detector.Roles{
		c.Detector.GaugeClass: detector.LabelGauge,
		c.Detector.LabelClass: detector.LabelStationLabel,
	}
}

// toGPUConfig converts to onnx.GPUConfig. Validate has already vetted the
// memory limit.
func (c *Config) toGPUConfig() onnx.GPUConfig {
	cfg := onnx.DefaultGPUConfig()
	cfg.UseGPU = c.GPU.Enabled
	cfg.DeviceID = c.GPU.Device
	cfg.GPUMemLimit, _ = parseMemoryLimit(c.GPU.MemoryLimit)
	return cfg
}

// ToGaugeConfig converts to preprocess.GaugeConfig.
func (c *Config) ToGaugeConfig() preprocess.GaugeConfig {
	cfg := preprocess.DefaultGaugeConfig()
	cfg.CanonicalHeight = c.Gauge.CanonicalHeight
	cfg.BlurSigma = c.Gauge.BlurSigma
	cfg.MedianWindow = c.Gauge.MedianWindow
	cfg.TopHatKernel = c.Gauge.TopHatKernel
	cfg.CleanKernel = c.Gauge.CleanKernel
	cfg.Waterline = preprocess.WaterlineConfig{
		ThresholdRatio: c.Gauge.ThresholdRatio,
		Direction:      preprocess.ScanDirection(c.Gauge.ScanDirection),
	}
	cfg.AnnotateContrast = c.Gauge.AnnotateContrast
	cfg.LineWidth = c.Gauge.LineWidth
	return cfg
}

// ToLabelConfig converts to preprocess.LabelConfig.
func (c *Config) ToLabelConfig() preprocess.LabelConfig {
	return preprocess.LabelConfig{
		Width:        c.Label.Width,
		Height:       c.Label.Height,
		Contrast:     c.Label.Contrast,
		MedianWindow: c.Label.MedianWindow,
		BlockSize:    c.Label.BlockSize,
		C:            c.Label.C,
	}
}

// ToGeminiConfig converts to vision.GeminiConfig.
func (c *Config) ToGeminiConfig() vision.GeminiConfig {
	return vision.GeminiConfig{
		APIKey:      c.Vision.APIKey,
		Model:       c.Vision.Model,
		Timeout:     time.Duration(c.Vision.TimeoutSec) * time.Second,
		JPEGQuality: c.Vision.JPEGQuality,
	}
}

// Prompt returns the vision prompt: the contents of vision.prompt_file when
// set, otherwise vision.DefaultPrompt.
func (c *Config) Prompt() (string, error) {
	if c.Vision.PromptFile == "" {
		return vision.DefaultPrompt, nil
	}
	data, err := os.ReadFile(c.Vision.PromptFile)
	if err != nil {
		return "", fmt.Errorf("read prompt file: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("prompt file %s is empty", c.Vision.PromptFile)
	}
	return prompt, nil
}

// ToMediaConfig converts to media.Config. Twilio media URLs take the
// account credentials as basic auth.
func (c *Config) ToMediaConfig() media.Config {
	return media.Config{
		Timeout:       time.Duration(c.Media.TimeoutSec) * time.Second,
		MaxBytes:      c.Media.MaxBytes,
		AcceptedTypes: slices.Clone(c.Media.AcceptedTypes),
		Username:      c.Twilio.AccountSID,
		Password:      c.Twilio.AuthToken,
	}
}

// ToDispatcherConfig converts to pipeline.DispatcherConfig.
func (c *Config) ToDispatcherConfig() pipeline.DispatcherConfig {
	return pipeline.DispatcherConfig{
		Workers:    c.Dispatcher.Workers,
		QueueSize:  c.Dispatcher.QueueSize,
		JobTimeout: time.Duration(c.Dispatcher.JobTimeoutSec) * time.Second,
	}
}

// ToServerConfig converts to server.Config. Signatures are only checked
// when enabled and an auth token is present.
func (c *Config) ToServerConfig() server.Config {
	cfg := server.Config{
		Host:          c.Server.Host,
		Port:          c.Server.Port,
		CORSOrigin:    c.Server.CORSOrigin,
		PublicURL:     c.Server.PublicURL,
		RatePerMinute: c.Server.RatePerMinute,
		Burst:         c.Server.RateBurst,
		MaxPerDay:     c.Server.MaxPerDay,
		MaxListed:     c.Server.MaxListed,
	}
	if c.Twilio.ValidateSignatures {
		cfg.AuthToken = c.Twilio.AuthToken
	}
	return cfg
}

// Helper functions

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

// parseMemoryLimit parses a GPU memory limit such as "1GB" or "512MB" into
// bytes. "" and "auto" mean unlimited (0).
func parseMemoryLimit(limit string) (uint64, error) {
	if limit == "" || limit == "auto" {
		return 0, nil
	}

	upper := strings.ToUpper(strings.TrimSpace(limit))
	// Longest suffix first so "MB" is not read as "B".
	units := []struct {
		suffix string
		factor float64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}
	for _, u := range units {
		if !strings.HasSuffix(upper, u.suffix) {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSuffix(upper, u.suffix), 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid number in memory limit: %s", limit)
		}
		return uint64(n * u.factor), nil
	}
	return 0, fmt.Errorf("memory limit must end with one of: B, KB, MB, GB (got %s)", limit)
}
