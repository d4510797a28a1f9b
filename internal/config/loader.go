package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "crowdgauge"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "CROWDGAUGE"

	// DotEnvFile is loaded into the process environment before reading
	// configuration, when present.
	DotEnvFile = ".env"
)

// secretEnvAliases lets deployments use the provider's conventional
// variable names next to the prefixed ones.
var secretEnvAliases = map[string][]string{
	"vision.api_key":     {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"twilio.account_sid": {"TWILIO_ACCOUNT_SID"},
	"twilio.auth_token":  {"TWILIO_AUTH_TOKEN"},
	"store.dsn":          {"DATABASE_URL"},
}

// Loader handles loading configuration from various sources.
type Loader struct {
	v       *viper.Viper
	dotEnv  string
	envRead bool
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	// Use the global viper instance to ensure flag bindings work
	return newLoaderWith(viper.GetViper())
}

func newLoaderWith(v *viper.Viper) *Loader {
	return &Loader{v: v, dotEnv: DotEnvFile}
}

// Load loads configuration from files, environment variables, and sets defaults.
// It returns the loaded configuration and any error encountered.
func (l *Loader) Load() (*Config, error) {
	return l.load("", true)
}

// LoadWithoutValidation is Load without the final Validate call.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.load("", false)
}

// LoadWithFile loads configuration from a specific file path. An empty path
// falls back to the search paths.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	return l.load(configFile, true)
}

// LoadWithFileWithoutValidation is LoadWithFile without validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	return l.load(configFile, false)
}

func (l *Loader) load(configFile string, validate bool) (*Config, error) {
	if err := l.loadDotEnv(); err != nil {
		return nil, err
	}

	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	if err := l.setupEnvironmentVariables(); err != nil {
		return nil, err
	}
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// A missing file is fine unless it was asked for explicitly.
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if validate {
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return &config, nil
}

// loadDotEnv reads the .env file once. Variables already set in the process
// environment win.
func (l *Loader) loadDotEnv() error {
	if l.envRead || l.dotEnv == "" {
		return nil
	}
	l.envRead = true
	if err := godotenv.Load(l.dotEnv); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error reading %s: %w", l.dotEnv, err)
	}
	slog.Debug("Loaded environment file", "path", l.dotEnv)
	return nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) any {
	return l.v.Get(key)
}

// GetString returns a string value from the configuration.
func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() error {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	for key, aliases := range secretEnvAliases {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := l.v.BindEnv(append([]string{key, prefixed}, aliases...)...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// setDefaults sets default values for all configuration options.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	// Global settings
	l.v.SetDefault("models_dir", defaults.ModelsDir)
	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)
	l.v.SetDefault("stations_file", defaults.StationsFile)

	// Detector defaults
	l.v.SetDefault("detector.model_path", defaults.Detector.ModelPath)
	l.v.SetDefault("detector.input_size", defaults.Detector.InputSize)
	l.v.SetDefault("detector.confidence_threshold", defaults.Detector.ConfidenceThreshold)
	l.v.SetDefault("detector.iou_threshold", defaults.Detector.IOUThreshold)
	l.v.SetDefault("detector.max_detections", defaults.Detector.MaxDetections)
	l.v.SetDefault("detector.num_threads", defaults.Detector.NumThreads)
	l.v.SetDefault("detector.gauge_class", defaults.Detector.GaugeClass)
	l.v.SetDefault("detector.label_class", defaults.Detector.LabelClass)

	// Preprocessing defaults
	l.v.SetDefault("gauge.canonical_height", defaults.Gauge.CanonicalHeight)
	l.v.SetDefault("gauge.blur_sigma", defaults.Gauge.BlurSigma)
	l.v.SetDefault("gauge.median_window", defaults.Gauge.MedianWindow)
	l.v.SetDefault("gauge.tophat_kernel", defaults.Gauge.TopHatKernel)
	l.v.SetDefault("gauge.clean_kernel", defaults.Gauge.CleanKernel)
	l.v.SetDefault("gauge.threshold_ratio", defaults.Gauge.ThresholdRatio)
	l.v.SetDefault("gauge.scan_direction", defaults.Gauge.ScanDirection)
	l.v.SetDefault("gauge.annotate_contrast", defaults.Gauge.AnnotateContrast)
	l.v.SetDefault("gauge.line_width", defaults.Gauge.LineWidth)

	l.v.SetDefault("label.width", defaults.Label.Width)
	l.v.SetDefault("label.height", defaults.Label.Height)
	l.v.SetDefault("label.contrast", defaults.Label.Contrast)
	l.v.SetDefault("label.median_window", defaults.Label.MedianWindow)
	l.v.SetDefault("label.block_size", defaults.Label.BlockSize)
	l.v.SetDefault("label.c", defaults.Label.C)

	// Vision defaults
	l.v.SetDefault("vision.provider", defaults.Vision.Provider)
	l.v.SetDefault("vision.api_key", defaults.Vision.APIKey)
	l.v.SetDefault("vision.model", defaults.Vision.Model)
	l.v.SetDefault("vision.timeout_sec", defaults.Vision.TimeoutSec)
	l.v.SetDefault("vision.jpeg_quality", defaults.Vision.JPEGQuality)
	l.v.SetDefault("vision.prompt_file", defaults.Vision.PromptFile)

	// Media defaults
	l.v.SetDefault("media.timeout_sec", defaults.Media.TimeoutSec)
	l.v.SetDefault("media.max_bytes", defaults.Media.MaxBytes)
	l.v.SetDefault("media.accepted_types", defaults.Media.AcceptedTypes)

	// Store defaults
	l.v.SetDefault("store.driver", defaults.Store.Driver)
	l.v.SetDefault("store.dsn", defaults.Store.DSN)

	// Twilio defaults
	l.v.SetDefault("twilio.account_sid", defaults.Twilio.AccountSID)
	l.v.SetDefault("twilio.auth_token", defaults.Twilio.AuthToken)
	l.v.SetDefault("twilio.validate_signatures", defaults.Twilio.ValidateSignatures)

	// Server defaults
	l.v.SetDefault("server.host", defaults.Server.Host)
	l.v.SetDefault("server.port", defaults.Server.Port)
	l.v.SetDefault("server.cors_origin", defaults.Server.CORSOrigin)
	l.v.SetDefault("server.public_url", defaults.Server.PublicURL)
	l.v.SetDefault("server.timeout_sec", defaults.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
	l.v.SetDefault("server.rate_per_minute", defaults.Server.RatePerMinute)
	l.v.SetDefault("server.rate_burst", defaults.Server.RateBurst)
	l.v.SetDefault("server.max_per_day", defaults.Server.MaxPerDay)
	l.v.SetDefault("server.max_listed", defaults.Server.MaxListed)

	// Dispatcher defaults
	l.v.SetDefault("dispatcher.workers", defaults.Dispatcher.Workers)
	l.v.SetDefault("dispatcher.queue_size", defaults.Dispatcher.QueueSize)
	l.v.SetDefault("dispatcher.job_timeout_sec", defaults.Dispatcher.JobTimeoutSec)

	// GPU defaults
	l.v.SetDefault("gpu.enabled", defaults.GPU.Enabled)
	l.v.SetDefault("gpu.device", defaults.GPU.Device)
	l.v.SetDefault("gpu.memory_limit", defaults.GPU.MemoryLimit)
}

// GetResolvedConfig returns the current resolved configuration for debugging.
func (l *Loader) GetResolvedConfig() map[string]any {
	return l.v.AllSettings()
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile generates a default configuration file.
func GenerateDefaultConfigFile(filename string) error {
	loader := newLoaderWith(viper.New())
	loader.setDefaults()

	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}

	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are
// searched, in order.
func GetConfigSearchPaths() []string {
	paths := []string{".", "./config"}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}

	paths = append(paths, "/etc/"+ConfigFileName)

	return paths
}

// PrintConfigInfo prints information about configuration loading for debugging.
func (l *Loader) PrintConfigInfo() {
	fmt.Printf("Configuration file used: %s\n", l.GetConfigFileUsed())
	fmt.Printf("Configuration search paths: %v\n", GetConfigSearchPaths())
	fmt.Printf("Environment prefix: %s\n", EnvPrefix)
}
