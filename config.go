package linkz

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Log formats accepted by Config.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

var (
	// ErrInvalidConfig is wrapped by every validation failure.
	ErrInvalidConfig = errors.New("invalid linkz config")
)

// Config holds SDK settings loadable from YAML.
type Config struct {
	LogLevel         string `yaml:"log_level"`
	LogFormat        string `yaml:"log_format"`
	MaxStringLength  int    `yaml:"max_string_length"`
	IDPoolSize       int    `yaml:"id_pool_size"`
	CaptureWorkers   int    `yaml:"capture_workers"`
	CaptureQueueSize int    `yaml:"capture_queue_size"`
}

// DefaultConfig returns the settings used when no file is given.
// IDPoolSize zero selects a size based on the CPU count; a negative value
// disables background id generation.
func DefaultConfig() Config {
	return Config{
		LogLevel:         "warn",
		LogFormat:        LogFormatJSON,
		MaxStringLength:  DefaultMaxStringLength,
		CaptureQueueSize: 1024,
	}
}

// ParseConfig reads YAML on top of DefaultConfig and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	if _, err := zap.ParseAtomicLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	switch c.LogFormat {
	case LogFormatJSON, LogFormatConsole:
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.MaxStringLength <= 0 {
		return fmt.Errorf("%w: max_string_length must be > 0", ErrInvalidConfig)
	}
	if c.CaptureWorkers < 0 {
		return fmt.Errorf("%w: capture_workers must be >= 0", ErrInvalidConfig)
	}
	if c.CaptureWorkers > 0 && c.CaptureQueueSize <= 0 {
		return fmt.Errorf("%w: capture_queue_size must be > 0 with capture workers", ErrInvalidConfig)
	}
	return nil
}

// Logger builds the zap logger used for diagnostics.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}

	var zc zap.Config
	if c.LogFormat == LogFormatConsole {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = level

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger.Named("linkz"), nil
}

// Options converts the config into SDK options, including zap diagnostics.
func (c Config) Options() ([]Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	logger, err := c.Logger()
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithDiagnostics(ZapDiagnostics(logger)),
		WithMaxStringLength(c.MaxStringLength),
	}
	switch {
	case c.IDPoolSize > 0:
		opts = append(opts, WithIDPoolSize(c.IDPoolSize))
	case c.IDPoolSize < 0:
		opts = append(opts, WithIDPoolSize(0))
	}
	return opts, nil
}

// WrapAgent puts agent behind an AsyncAgent when capture workers are configured.
func (c Config) WrapAgent(agent Agent) (Agent, error) {
	if c.CaptureWorkers == 0 {
		return agent, nil
	}
	return NewAsyncAgent(agent, c.CaptureWorkers, c.CaptureQueueSize)
}
