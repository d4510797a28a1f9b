//nolint:lll
package config

// Config represents the complete configuration for crowdgauge. It covers
// every command (serve, read, sms, stations) and is loaded from
// configuration files, .env files, environment variables and command-line
// flags.
type Config struct {
	// Global settings
	ModelsDir    string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose      bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`
	StationsFile string `mapstructure:"stations_file" yaml:"stations_file" json:"stations_file"`

	// Region detection (YOLO ONNX)
	Detector DetectorConfig `mapstructure:"detector" yaml:"detector" json:"detector"`

	// Gauge and station-label preprocessing
	Gauge GaugeConfig `mapstructure:"gauge" yaml:"gauge" json:"gauge"`
	Label LabelConfig `mapstructure:"label" yaml:"label" json:"label"`

	// Vision model
	Vision VisionConfig `mapstructure:"vision" yaml:"vision" json:"vision"`

	// Media download
	Media MediaConfig `mapstructure:"media" yaml:"media" json:"media"`

	// Contribution storage
	Store StoreConfig `mapstructure:"store" yaml:"store" json:"store"`

	// Outbound replies and webhook signatures
	Twilio TwilioConfig `mapstructure:"twilio" yaml:"twilio" json:"twilio"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Background processing
	Dispatcher DispatcherConfig `mapstructure:"dispatcher" yaml:"dispatcher" json:"dispatcher"`

	// GPU configuration
	GPU GPUConfig `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// DetectorConfig contains gauge/label detector settings.
type DetectorConfig struct {
	ModelPath           string  `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	InputSize           int     `mapstructure:"input_size" yaml:"input_size" json:"input_size"`
	ConfidenceThreshold float32 `mapstructure:"confidence_threshold" yaml:"confidence_threshold" json:"confidence_threshold"`
	IOUThreshold        float64 `mapstructure:"iou_threshold" yaml:"iou_threshold" json:"iou_threshold"`
	MaxDetections       int     `mapstructure:"max_detections" yaml:"max_detections" json:"max_detections"`
	NumThreads          int     `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	GaugeClass          int     `mapstructure:"gauge_class" yaml:"gauge_class" json:"gauge_class"`
	LabelClass          int     `mapstructure:"label_class" yaml:"label_class" json:"label_class"`
}

// GaugeConfig contains gauge preprocessing settings.
type GaugeConfig struct {
	CanonicalHeight  int     `mapstructure:"canonical_height" yaml:"canonical_height" json:"canonical_height"`
	BlurSigma        float64 `mapstructure:"blur_sigma" yaml:"blur_sigma" json:"blur_sigma"`
	MedianWindow     int     `mapstructure:"median_window" yaml:"median_window" json:"median_window"`
	TopHatKernel     int     `mapstructure:"tophat_kernel" yaml:"tophat_kernel" json:"tophat_kernel"`
	CleanKernel      int     `mapstructure:"clean_kernel" yaml:"clean_kernel" json:"clean_kernel"`
	ThresholdRatio   float64 `mapstructure:"threshold_ratio" yaml:"threshold_ratio" json:"threshold_ratio"`
	ScanDirection    string  `mapstructure:"scan_direction" yaml:"scan_direction" json:"scan_direction"`
	AnnotateContrast float64 `mapstructure:"annotate_contrast" yaml:"annotate_contrast" json:"annotate_contrast"`
	LineWidth        int     `mapstructure:"line_width" yaml:"line_width" json:"line_width"`
}

// LabelConfig contains station-label preprocessing settings.
type LabelConfig struct {
	Width        int     `mapstructure:"width" yaml:"width" json:"width"`
	Height       int     `mapstructure:"height" yaml:"height" json:"height"`
	Contrast     float64 `mapstructure:"contrast" yaml:"contrast" json:"contrast"`
	MedianWindow int     `mapstructure:"median_window" yaml:"median_window" json:"median_window"`
	BlockSize    int     `mapstructure:"block_size" yaml:"block_size" json:"block_size"`
	C            float64 `mapstructure:"c" yaml:"c" json:"c"`
}

// VisionConfig contains vision model settings. Provider "static" answers
// every read with a fixed reading and needs no API key.
type VisionConfig struct {
	Provider    string `mapstructure:"provider" yaml:"provider" json:"provider"`
	APIKey      string `mapstructure:"api_key" yaml:"api_key" json:"-"`
	Model       string `mapstructure:"model" yaml:"model" json:"model"`
	TimeoutSec  int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	JPEGQuality int    `mapstructure:"jpeg_quality" yaml:"jpeg_quality" json:"jpeg_quality"`
	PromptFile  string `mapstructure:"prompt_file" yaml:"prompt_file" json:"prompt_file"`
}

// MediaConfig contains media download settings.
type MediaConfig struct {
	TimeoutSec    int      `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	MaxBytes      int64    `mapstructure:"max_bytes" yaml:"max_bytes" json:"max_bytes"`
	AcceptedTypes []string `mapstructure:"accepted_types" yaml:"accepted_types" json:"accepted_types"`
}

// StoreConfig selects the contribution store.
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver" json:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn" json:"-"`
}

// TwilioConfig contains messaging credentials. Without them replies are
// logged instead of sent.
type TwilioConfig struct {
	AccountSID         string `mapstructure:"account_sid" yaml:"account_sid" json:"-"`
	AuthToken          string `mapstructure:"auth_token" yaml:"auth_token" json:"-"`
	ValidateSignatures bool   `mapstructure:"validate_signatures" yaml:"validate_signatures" json:"validate_signatures"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	PublicURL       string `mapstructure:"public_url" yaml:"public_url" json:"public_url"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RatePerMinute   int    `mapstructure:"rate_per_minute" yaml:"rate_per_minute" json:"rate_per_minute"`
	RateBurst       int    `mapstructure:"rate_burst" yaml:"rate_burst" json:"rate_burst"`
	MaxPerDay       int    `mapstructure:"max_per_day" yaml:"max_per_day" json:"max_per_day"`
	MaxListed       int    `mapstructure:"max_listed" yaml:"max_listed" json:"max_listed"`
}

// DispatcherConfig sizes the background worker pool.
type DispatcherConfig struct {
	Workers       int `mapstructure:"workers" yaml:"workers" json:"workers"`
	QueueSize     int `mapstructure:"queue_size" yaml:"queue_size" json:"queue_size"`
	JobTimeoutSec int `mapstructure:"job_timeout_sec" yaml:"job_timeout_sec" json:"job_timeout_sec"`
}

// GPUConfig contains GPU acceleration settings.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device      int    `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}
