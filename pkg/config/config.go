// Package config loads ftpvault's configuration the way dittofs loads
// its own: viper for file/env/defaults layering, struct tags validated
// via go-playground/validator, yaml.v3 for round-tripping a sample
// file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the top-level ftpvault configuration (§6 "Configuration keys").
type Config struct {
	FTP     FTPConfig     `mapstructure:"ftp" yaml:"ftp"`
	MySQL   MySQLConfig   `mapstructure:"mysql" yaml:"mysql"`
	Backup  BackupConfig  `mapstructure:"backup" yaml:"backup"`
	Restore RestoreConfig `mapstructure:"restore" yaml:"restore"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// FTPConfig configures the single shared FTP server every site logs
// into (§3 "Site" has no host field — only login/password differ).
type FTPConfig struct {
	Connection string        `mapstructure:"connection" validate:"required,hostname_port" yaml:"connection"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// MySQLConfig configures the Persistence Port's backing store.
type MySQLConfig struct {
	Connection string `mapstructure:"connection" validate:"required" yaml:"connection"`
}

// BackupConfig configures the local staging root.
type BackupConfig struct {
	Path string `mapstructure:"path" validate:"required" yaml:"path"`
}

// RestoreConfig configures the remote destination for restores.
type RestoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig controls logging behavior, mirroring dittofs's
// LoggingConfig field-for-field.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig controls the optional Prometheus endpoint, mirroring
// dittofs's Metrics.Enabled/Metrics.Port split.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" validate:"omitempty,hostname_port" yaml:"listen"`
}

// Load loads configuration from configPath (or the default location
// when empty), applies defaults, and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration, returning a user-friendly error when
// an explicitly named file is missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unspecified fields with the teacher's
// "zero-value means unset" convention.
func ApplyDefaults(cfg *Config) {
	if cfg.Backup.Path == "" {
		cfg.Backup.Path = filepath.Join(os.TempDir(), programName)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = "localhost:9110"
	}
}

const programName = "ftpvault"

// Validate runs struct-tag validation via go-playground/validator.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

// GetDefaultConfig returns a Config with every default applied, used
// when no config file is found and by `ftpvault init`-style tooling.
func GetDefaultConfig() *Config {
	cfg := &Config{
		FTP: FTPConfig{Connection: "localhost:21"},
		MySQL: MySQLConfig{
			Connection: "ftpvault:ftpvault@tcp(localhost:3306)/ftpvault?parseTime=true",
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// SaveConfig writes cfg to path in YAML, respecting the yaml tags.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("FTPVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	v.AddConfigPath(".")
	v.SetConfigName("ftpvault")
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
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}
