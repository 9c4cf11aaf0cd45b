// Package config loads the coordinator's configuration from a YAML
// file and environment variables, falling back to built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the coordinator's static configuration.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (FCOMMIT_*), for keys the config file sets
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
//
// No command-line flag sets a Config field. When no config file is
// found, Load returns Default() and does not read the environment.
type Config struct {
	// MaxSave is how many versions below current are retained in
	// tracker/ before the Archiver moves the rest under archive/.
	MaxSave int `mapstructure:"max_save" yaml:"max_save" validate:"gt=0"`

	// MaxArchiveSize is the threshold above which GC switches from
	// single-tombstone mode to batch mode.
	MaxArchiveSize int `mapstructure:"max_archive_size" yaml:"max_archive_size" validate:"gt=0"`

	// ArchiveBatchCleanMaxSize is the batch size GC uses once it is
	// in batch mode.
	ArchiveBatchCleanMaxSize int `mapstructure:"archive_batch_clean_max_size" yaml:"archive_batch_clean_max_size" validate:"gt=0"`

	// TTLPreCommit is the staleness threshold the Adjudicator uses to
	// decide an attempt has been abandoned by its writer.
	TTLPreCommit time.Duration `mapstructure:"ttl_pre_commit" yaml:"ttl_pre_commit" validate:"required,gt=0"`

	// CleanTTL is how long an archive tombstone survives before GC
	// deletes the commit subtree it points at.
	CleanTTL time.Duration `mapstructure:"clean_ttl" yaml:"clean_ttl" validate:"required,gt=0"`

	// Backend selects and configures the storage driver.
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`

	// Logging controls structured log output.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry tracing of commit attempts.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics controls the Prometheus metrics registry.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// BackendConfig selects the storage.Driver implementation and its
// connection parameters.
type BackendConfig struct {
	// Type is one of "fs", "memory", "s3".
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=fs memory s3"`

	// Root is the root directory for the fs backend.
	Root string `mapstructure:"root" yaml:"root,omitempty" validate:"required_if=Type fs"`

	// Bucket, Prefix, Region, Endpoint, AccessKeyID, SecretAccessKey,
	// UsePathStyle configure the s3 backend.
	Bucket          string `mapstructure:"bucket" yaml:"bucket,omitempty" validate:"required_if=Type s3"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix,omitempty"`
	Region          string `mapstructure:"region" yaml:"region,omitempty"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
	UsePathStyle    bool   `mapstructure:"use_path_style" yaml:"use_path_style,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR Debug Info Warn Error debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" validate:"required_if=Enabled true"`
	Insecure bool   `mapstructure:"insecure" yaml:"insecure"`
}

// MetricsConfig controls the Prometheus metrics registry.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
}

// Default returns the configuration described by the coordinator's
// default table: MaxSave=2, MaxArchiveSize=100,
// ArchiveBatchCleanMaxSize=20, TTLPreCommit=30s, CleanTTL=10m.
func Default() *Config {
	return &Config{
		MaxSave:                  2,
		MaxArchiveSize:           100,
		ArchiveBatchCleanMaxSize: 20,
		TTLPreCommit:             30 * time.Second,
		CleanTTL:                 10 * time.Minute,
		Backend: BackendConfig{
			Type: "memory",
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		Telemetry: TelemetryConfig{
			Enabled:  false,
			Endpoint: "localhost:4317",
			Insecure: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// Load loads configuration from configPath (if non-empty; otherwise
// ./fccoord.yaml) and the environment, falling back to defaults for
// anything unset. Environment variables override only keys that the
// file sets; without a config file, Load returns Default().
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return Default(), nil
	}

	cfg := Default()
	if err := v.Unmarshal(cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks cfg against the struct-level `validate` tags declared
// on Config and its nested types. It does not mutate cfg: callers that
// want field normalization (e.g. uppercasing Logging.Level) must do so
// before calling Validate.
func Validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		return err
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("FCOMMIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(".")
	v.SetConfigName("fccoord")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read config file: %w", err)
	}
	return true, nil
}

// applyDefaults fills zero-valued fields that Load's Unmarshal left
// untouched because the config file and environment were both silent
// on them.
func applyDefaults(cfg *Config) {
	d := Default()

	if cfg.MaxSave == 0 {
		cfg.MaxSave = d.MaxSave
	}
	if cfg.MaxArchiveSize == 0 {
		cfg.MaxArchiveSize = d.MaxArchiveSize
	}
	if cfg.ArchiveBatchCleanMaxSize == 0 {
		cfg.ArchiveBatchCleanMaxSize = d.ArchiveBatchCleanMaxSize
	}
	if cfg.TTLPreCommit == 0 {
		cfg.TTLPreCommit = d.TTLPreCommit
	}
	if cfg.CleanTTL == 0 {
		cfg.CleanTTL = d.CleanTTL
	}
	if cfg.Backend.Type == "" {
		cfg.Backend.Type = d.Backend.Type
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = d.Logging.Format
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = d.Logging.Output
	}
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = d.Telemetry.Endpoint
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = d.Metrics.Port
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v) * time.Millisecond, nil
		case int64:
			return time.Duration(v) * time.Millisecond, nil
		case float64:
			return time.Duration(int64(v)) * time.Millisecond, nil
		default:
			return data, nil
		}
	}
}

// Save writes cfg to path as YAML, creating parent directories as
// needed.
func Save(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	// Durations are written in time.ParseDuration form: Load reads bare
	// integers as milliseconds, so the nanosecond counts yaml.v3 emits
	// for time.Duration would not load back to the same values.
	durations := map[string]time.Duration{"ttl_pre_commit": cfg.TTLPreCommit, "clean_ttl": cfg.CleanTTL}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if d, ok := durations[doc.Content[i].Value]; ok {
			doc.Content[i+1].Tag = "!!str"
			doc.Content[i+1].Value = d.String()
		}
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
