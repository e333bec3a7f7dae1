// Package config loads txlog settings from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sajjad-MoBe/txlog/internal/logfile"
	"github.com/sajjad-MoBe/txlog/internal/tracing"
)

// LogConfig controls logging output
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// WALConfig controls the transaction log directory
type WALConfig struct {
	Dir            string        `yaml:"dir"`
	MaxFileSize    int64         `yaml:"max_file_size"`
	MaxFiles       int           `yaml:"max_files"`
	RotationPeriod time.Duration `yaml:"rotation_period"`
	Sync           bool          `yaml:"sync"`
	SkipInvalid    bool          `yaml:"skip_invalid"`
}

// ServerConfig controls the HTTP and gRPC listeners
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`
}

// TracingConfig controls span export
type TracingConfig struct {
	Enabled        bool   `yaml:"enabled"`
	JaegerEndpoint string `yaml:"jaeger_endpoint"`
	ServiceName    string `yaml:"service_name"`
}

// Config is the complete txlog configuration
type Config struct {
	Log     LogConfig     `yaml:"log"`
	WAL     WALConfig     `yaml:"wal"`
	Server  ServerConfig  `yaml:"server"`
	Tracing TracingConfig `yaml:"tracing"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	wal := logfile.DefaultConfig()
	return Config{
		Log: LogConfig{Level: "info"},
		WAL: WALConfig{
			Dir:            "data/txlog",
			MaxFileSize:    wal.MaxFileSize,
			MaxFiles:       wal.MaxFiles,
			RotationPeriod: wal.RotationPeriod,
			Sync:           wal.SyncOnCommit,
		},
		Server: ServerConfig{
			HTTPAddr: ":8080",
			GRPCAddr: ":9090",
		},
		Tracing: TracingConfig{
			JaegerEndpoint: "http://localhost:14268/api/traces",
			ServiceName:    "txlog",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %v", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %v", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	if c.WAL.Dir == "" {
		return fmt.Errorf("wal.dir must be set")
	}
	if c.WAL.MaxFileSize < 0 {
		return fmt.Errorf("wal.max_file_size must not be negative")
	}
	if c.WAL.MaxFiles < 0 {
		return fmt.Errorf("wal.max_files must not be negative")
	}
	if c.WAL.RotationPeriod < 0 {
		return fmt.Errorf("wal.rotation_period must not be negative")
	}
	if c.Tracing.Enabled && c.Tracing.JaegerEndpoint == "" {
		return fmt.Errorf("tracing.jaeger_endpoint must be set when tracing is enabled")
	}
	return nil
}

// LogFile returns the log manager settings.
func (c Config) LogFile() logfile.Config {
	return logfile.Config{
		MaxFileSize:    c.WAL.MaxFileSize,
		MaxFiles:       c.WAL.MaxFiles,
		RotationPeriod: c.WAL.RotationPeriod,
		SyncOnCommit:   c.WAL.Sync,
	}
}

// TracingSetup returns the tracing settings.
func (c Config) TracingSetup() tracing.Config {
	return tracing.Config{
		Enabled:        c.Tracing.Enabled,
		ServiceName:    c.Tracing.ServiceName,
		JaegerEndpoint: c.Tracing.JaegerEndpoint,
	}
}
