package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2events/go-sdk/pkg/core"
	"github.com/h2events/go-sdk/pkg/core/events"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultOutputFormat     = "text"
	DefaultInspectorAddress = "127.0.0.1:8642"
	DefaultInspectorPath    = "/events"
	DefaultInspectorBuffer  = 64
	DefaultHistorySize      = 1000
	defaultConfigDir        = ".h2events"
	defaultConfigFile       = "config.yaml"
)

// Config holds the h2events configuration.
type Config struct {
	LogLevel     string               `yaml:"log_level" json:"log_level"`
	LogFormat    string               `yaml:"log_format" json:"log_format"`
	Nesting      events.NestingPolicy `yaml:"nesting" json:"nesting"`
	OutputFormat string               `yaml:"output_format" json:"output_format"`
	HistorySize  int                  `yaml:"history_size" json:"history_size"`
	LocalClient  bool                 `yaml:"local_client" json:"local_client"`
	Inspector    InspectorConfig      `yaml:"inspector" json:"inspector"`
}

// InspectorConfig configures the endpoints that publish batches.
type InspectorConfig struct {
	Address string `yaml:"address" json:"address"`
	Path    string `yaml:"path" json:"path"`

	// GRPCAddress enables the gRPC endpoint when set.
	GRPCAddress string `yaml:"grpc_address" json:"grpc_address"`

	// BufferSize is the number of batches queued per subscriber before the
	// subscriber is dropped.
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		LogLevel:     DefaultLogLevel,
		LogFormat:    DefaultLogFormat,
		Nesting:      events.NestAndFlatten,
		OutputFormat: DefaultOutputFormat,
		HistorySize:  DefaultHistorySize,
		Inspector: InspectorConfig{
			Address:    DefaultInspectorAddress,
			Path:       DefaultInspectorPath,
			BufferSize: DefaultInspectorBuffer,
		},
	}
}

// DefaultPath returns the default config file path: ~/.h2events/config.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", defaultConfigDir, defaultConfigFile)
	}
	return filepath.Join(home, defaultConfigDir, defaultConfigFile)
}

// Load reads the configuration from the given YAML file path.
// If the file does not exist, it returns the default Config with no error.
// Keys missing from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field and reports the first invalid one as a
// *core.ConfigError.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return &core.ConfigError{Field: "log_level", Value: c.LogLevel, Err: err}
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return &core.ConfigError{Field: "log_format", Value: c.LogFormat, Err: errors.New("must be text or json")}
	}
	if !c.Nesting.Valid() {
		return &core.ConfigError{Field: "nesting", Value: c.Nesting, Err: errors.New("must be flatten or nested-only")}
	}
	switch strings.ToLower(c.OutputFormat) {
	case "text", "json":
	default:
		return &core.ConfigError{Field: "output_format", Value: c.OutputFormat, Err: errors.New("must be text or json")}
	}
	if c.HistorySize < 0 {
		return &core.ConfigError{Field: "history_size", Value: c.HistorySize, Err: errors.New("cannot be negative")}
	}
	if c.Inspector.Address == "" {
		return &core.ConfigError{Field: "inspector.address", Value: c.Inspector.Address, Err: errors.New("cannot be empty")}
	}
	if g := c.Inspector.GRPCAddress; g != "" && g == c.Inspector.Address && !strings.HasSuffix(g, ":0") {
		return &core.ConfigError{Field: "inspector.grpc_address", Value: c.Inspector.GRPCAddress, Err: errors.New("must differ from inspector.address")}
	}
	if !strings.HasPrefix(c.Inspector.Path, "/") {
		return &core.ConfigError{Field: "inspector.path", Value: c.Inspector.Path, Err: errors.New("must start with /")}
	}
	if c.Inspector.BufferSize <= 0 {
		return &core.ConfigError{Field: "inspector.buffer_size", Value: c.Inspector.BufferSize, Err: errors.New("must be positive")}
	}
	return nil
}

// NewLogger builds a logger with the configured level and format.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, &core.ConfigError{Field: "log_level", Value: c.LogLevel, Err: err}
	}

	logger := logrus.New()
	logger.SetLevel(level)
	if strings.EqualFold(c.LogFormat, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// TrackerConfig derives the connection tracker settings.
func (c *Config) TrackerConfig() *events.TrackerConfig {
	return &events.TrackerConfig{
		MaxHistorySize: c.HistorySize,
		LocalClient:    c.LocalClient,
		VerifySettings: true,
	}
}
