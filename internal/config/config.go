// Package config provides foliate configuration with viper, environment
// variable overrides, and hot reload.
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// OCRConfig configures the remote vision OCR service.
type OCRConfig struct {
	// BaseURL is the Ollama-compatible endpoint, e.g. http://localhost:11434.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// Model is the vision model name.
	Model string `mapstructure:"model" yaml:"model"`
	// TimeoutSeconds bounds a single OCR attempt.
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	// Retries is the number of attempts per page.
	Retries int `mapstructure:"retries" yaml:"retries"`
	// DefaultPrompt is used when a job has no prompt override.
	DefaultPrompt string `mapstructure:"default_prompt" yaml:"default_prompt"`
}

// RenderConfig configures PDF page rasterization.
type RenderConfig struct {
	DPI         int `mapstructure:"dpi" yaml:"dpi"`
	JPEGQuality int `mapstructure:"jpeg_quality" yaml:"jpeg_quality"`
	// MaxDimension downscales rendered pages whose longest side exceeds it.
	MaxDimension int `mapstructure:"max_dimension" yaml:"max_dimension"`
}

// PipelineConfig configures the OCR pipeline.
type PipelineConfig struct {
	Workers         int `mapstructure:"workers" yaml:"workers"`
	QueueSize       int `mapstructure:"queue_size" yaml:"queue_size"`
	PagesPerChapter int `mapstructure:"pages_per_chapter" yaml:"pages_per_chapter"`
}

// StorageConfig configures on-disk job storage and retention.
type StorageConfig struct {
	// DataDir overrides the default <home>/data directory when set.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	// JobTTLHours is how long terminal jobs are kept.
	JobTTLHours int `mapstructure:"job_ttl_hours" yaml:"job_ttl_hours"`
	// PDFTTLHours is how long uploaded source PDFs are kept.
	PDFTTLHours int `mapstructure:"pdf_ttl_hours" yaml:"pdf_ttl_hours"`
	// CleanupIntervalSeconds is the sweep period for the cleanup loop.
	CleanupIntervalSeconds int `mapstructure:"cleanup_interval_seconds" yaml:"cleanup_interval_seconds"`
}

// EventsConfig configures the SSE event stream.
type EventsConfig struct {
	RingBufferSize int `mapstructure:"ring_buffer_size" yaml:"ring_buffer_size"`
}

// Config is the full foliate configuration.
type Config struct {
	OCR      OCRConfig      `mapstructure:"ocr" yaml:"ocr"`
	Render   RenderConfig   `mapstructure:"render" yaml:"render"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Events   EventsConfig   `mapstructure:"events" yaml:"events"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		OCR: OCRConfig{
			BaseURL:        "http://localhost:11434",
			Model:          "qwen2.5-vl:7b",
			TimeoutSeconds: 120,
			Retries:        3,
			DefaultPrompt: "Extract all text from this scanned book page. " +
				"Preserve paragraph structure. Output only the extracted text, nothing else.",
		},
		Render: RenderConfig{
			DPI:          200,
			JPEGQuality:  75,
			MaxDimension: 1568,
		},
		Pipeline: PipelineConfig{
			Workers:         2,
			QueueSize:       8,
			PagesPerChapter: 20,
		},
		Storage: StorageConfig{
			JobTTLHours:            24,
			PDFTTLHours:            1,
			CleanupIntervalSeconds: 600,
		},
		Events: EventsConfig{
			RingBufferSize: 200,
		},
	}
}

// OCRTimeout returns the per-attempt OCR timeout.
func (c *Config) OCRTimeout() time.Duration {
	return time.Duration(c.OCR.TimeoutSeconds) * time.Second
}

// JobTTL returns the retention period for terminal jobs.
func (c *Config) JobTTL() time.Duration {
	return time.Duration(c.Storage.JobTTLHours) * time.Hour
}

// PDFTTL returns the retention period for uploaded source PDFs.
func (c *Config) PDFTTL() time.Duration {
	return time.Duration(c.Storage.PDFTTLHours) * time.Hour
}

// CleanupInterval returns the sweep period for the cleanup loop.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.Storage.CleanupIntervalSeconds) * time.Second
}

// YAML renders the config as YAML, for `foliate config show`.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	viper.SetDefault("ocr", defaults.OCR)
	viper.SetDefault("render", defaults.Render)
	viper.SetDefault("pipeline", defaults.Pipeline)
	viper.SetDefault("storage", defaults.Storage)
	viper.SetDefault("events", defaults.Events)

	// Environment variables with FOLIATE_ prefix, e.g.
	// FOLIATE_OCR_BASE_URL overrides ocr.base_url.
	viper.SetEnvPrefix("FOLIATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.foliate")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}
