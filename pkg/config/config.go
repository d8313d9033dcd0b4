// Package config loads and validates the daemon configuration.
//
// Sources, in order of precedence: environment variables (NFSWIRE_*), the
// configuration file (YAML), and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/marmos91/nfswire/internal/bytesize"
)

// Config is the daemon configuration.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// NFS configures the protocol listener
	NFS NFSConfig `mapstructure:"nfs" yaml:"nfs"`

	// Export configures the served tree
	Export ExportConfig `mapstructure:"export" yaml:"export"`

	// Metrics contains the prometheus endpoint configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Capture configures the pcap traffic capture
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json"                                   yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// NFSConfig configures the protocol listener.
type NFSConfig struct {
	// ListenAddr is the TCP address the NFS/MOUNT programs bind
	ListenAddr string `mapstructure:"listen_addr" validate:"required" yaml:"listen_addr"`

	// MaxFragmentSize caps one RPC record ("1Mi", "512Ki", plain bytes)
	MaxFragmentSize bytesize.ByteSize `mapstructure:"max_fragment_size" yaml:"max_fragment_size"`

	// MaxRequestsPerConnection bounds concurrent in-flight requests
	MaxRequestsPerConnection int `mapstructure:"max_requests_per_connection" validate:"omitempty,gt=0" yaml:"max_requests_per_connection"`

	// IdleTimeout drops connections with no traffic; zero disables
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// WriteTimeout bounds one reply write; zero disables
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// ExportConfig configures the served tree.
type ExportConfig struct {
	// Path is the export path clients mount ("/export")
	Path string `mapstructure:"path" validate:"required,startswith=/" yaml:"path"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddr string `mapstructure:"listen_addr" validate:"required_if=Enabled true" yaml:"listen_addr"`
}

// CaptureConfig configures pcap capture of client connections.
type CaptureConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// FilePath receives the capture ("/tmp/nfswire.pcap")
	FilePath string `mapstructure:"file_path" validate:"required_if=Enabled true" yaml:"file_path"`

	// Mode selects when write-side records are produced: when_issued or
	// when_completed
	Mode string `mapstructure:"mode" validate:"omitempty,oneof=when_issued when_completed" yaml:"mode"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		NFS: NFSConfig{
			ListenAddr:               ":2049",
			MaxFragmentSize:          bytesize.MiB + 256*bytesize.KiB,
			MaxRequestsPerConnection: 16,
			IdleTimeout:              5 * time.Minute,
			WriteTimeout:             30 * time.Second,
		},
		Export: ExportConfig{
			Path: "/export",
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: ":9090",
		},
		Capture: CaptureConfig{
			Enabled: false,
			Mode:    "when_completed",
		},
		ShutdownTimeout: 30 * time.Second,
	}
}

// Load reads the configuration from configPath (or the default location
// when empty), applies environment overrides, fills defaults, and
// validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missingOnSearchPath := configPath == "" && errors.As(err, &notFound)
		missingExplicitFile := configPath != "" && os.IsNotExist(err)
		if missingExplicitFile {
			return nil, fmt.Errorf("config file %s not found", configPath)
		}
		if !missingOnSearchPath {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No file anywhere on the search path: defaults + env only
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// setupViper wires the file search path and environment binding.
func setupViper(v *viper.Viper, configPath string) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultConfigDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("NFSWIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Registering every key with its default lets AutomaticEnv surface
	// NFSWIRE_* overrides even when the key is absent from the file.
	defaults := DefaultConfig()
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.output", defaults.Logging.Output)
	v.SetDefault("nfs.listen_addr", defaults.NFS.ListenAddr)
	v.SetDefault("nfs.max_fragment_size", defaults.NFS.MaxFragmentSize.Uint64())
	v.SetDefault("nfs.max_requests_per_connection", defaults.NFS.MaxRequestsPerConnection)
	v.SetDefault("nfs.idle_timeout", defaults.NFS.IdleTimeout)
	v.SetDefault("nfs.write_timeout", defaults.NFS.WriteTimeout)
	v.SetDefault("export.path", defaults.Export.Path)
	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	v.SetDefault("metrics.listen_addr", defaults.Metrics.ListenAddr)
	v.SetDefault("capture.enabled", defaults.Capture.Enabled)
	v.SetDefault("capture.file_path", defaults.Capture.FilePath)
	v.SetDefault("capture.mode", defaults.Capture.Mode)
	v.SetDefault("shutdown_timeout", defaults.ShutdownTimeout)
}

// defaultConfigDir follows XDG conventions.
func defaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "nfswire")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "nfswire")
	}
	return "."
}

// Validate checks the configuration against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	return nil
}

// decodeHooks converts strings to ByteSize and time.Duration during
// unmarshalling, so config files can say "1Mi" and "30s".
func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.Parse(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}
