// Package config loads the mobilenet tool configuration.
//
// Values come from the defaults, then a YAML file, then environment
// variables:
//
//	BORN_MODELS_ROOT      models.root
//	BORN_MODELS_BASE_URL  models.base_url
//	BORN_MODELS_MANIFEST  models.manifest
//	MOBILENET_DEVICE      runtime.device
//	MOBILENET_WORKERS     runtime.workers
//	MOBILENET_LOG_LEVEL   logging.level
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/mobilenet/internal/modelstore"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Devices accepted by runtime.device.
const (
	DeviceCPU    = "cpu"
	DeviceWebGPU = "webgpu"
)

// Config holds the mobilenet configuration.
type Config struct {
	Models  ModelsConfig  `yaml:"models"`
	Runtime RuntimeConfig `yaml:"runtime"`
	Logging LoggingConfig `yaml:"logging"`
}

// ModelsConfig configures the pretrained weight store.
type ModelsConfig struct {
	Root        string `yaml:"root"`
	BaseURL     string `yaml:"base_url"`
	Manifest    string `yaml:"manifest"` // path to a YAML manifest
	Concurrency int    `yaml:"concurrency"`
	Timeout     string `yaml:"timeout"`
}

// RuntimeConfig selects where the network runs.
type RuntimeConfig struct {
	Device  string `yaml:"device"`  // cpu, webgpu
	Workers int    `yaml:"workers"` // 0 means GOMAXPROCS
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Models: ModelsConfig{
			Root:        modelstore.DefaultRoot(),
			BaseURL:     modelstore.DefaultBaseURL,
			Concurrency: modelstore.DefaultConcurrency,
			Timeout:     "10m",
		},
		Runtime: RuntimeConfig{
			Device: DeviceCPU,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.born/mobilenet.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "mobilenet.yaml"
	}
	return filepath.Join(home, ".born", "mobilenet.yaml")
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(modelstore.RootEnv); v != "" {
		c.Models.Root = v
	}
	if v := os.Getenv("BORN_MODELS_BASE_URL"); v != "" {
		c.Models.BaseURL = v
	}
	if v := os.Getenv("BORN_MODELS_MANIFEST"); v != "" {
		c.Models.Manifest = v
	}
	if v := os.Getenv("MOBILENET_DEVICE"); v != "" {
		c.Runtime.Device = v
	}
	if v := os.Getenv("MOBILENET_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: MOBILENET_WORKERS=%q", ErrInvalidConfig, v)
		}
		c.Runtime.Workers = n
	}
	if v := os.Getenv("MOBILENET_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Models.Root == "" {
		return fmt.Errorf("%w: models.root is empty", ErrInvalidConfig)
	}
	if c.Models.Concurrency < 0 {
		return fmt.Errorf("%w: models.concurrency %d", ErrInvalidConfig, c.Models.Concurrency)
	}
	if _, err := c.ModelsTimeout(); err != nil {
		return err
	}
	switch c.Runtime.Device {
	case DeviceCPU, DeviceWebGPU:
	default:
		return fmt.Errorf("%w: runtime.device %q (want %s or %s)", ErrInvalidConfig, c.Runtime.Device, DeviceCPU, DeviceWebGPU)
	}
	if c.Runtime.Workers < 0 {
		return fmt.Errorf("%w: runtime.workers %d", ErrInvalidConfig, c.Runtime.Workers)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level %q", ErrInvalidConfig, c.Logging.Level)
	}
	return nil
}

// ModelsTimeout parses models.timeout. Zero disables the download timeout.
func (c *Config) ModelsTimeout() (time.Duration, error) {
	if c.Models.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Models.Timeout)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: models.timeout %q", ErrInvalidConfig, c.Models.Timeout)
	}
	return d, nil
}

// LoadManifest reads the configured manifest. Without one the manifest is
// empty and every fetch fails with modelstore.ErrUnknownModel.
func (c *Config) LoadManifest() (*modelstore.Manifest, error) {
	if c.Models.Manifest == "" {
		return &modelstore.Manifest{}, nil
	}
	return modelstore.LoadManifest(c.Models.Manifest)
}
