// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2024-2026 zerohunt contributors
// https://github.com/fr4nsys/zerohunt

package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Hunt    HuntConfig    `mapstructure:"hunt"`
	Export  ExportConfig  `mapstructure:"export"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// APIConfig holds Zero Networks portal connection settings.
type APIConfig struct {
	// Key is the JWT API key. Never logged or printed.
	Key string `mapstructure:"key"`
	// BaseURL overrides the portal URL when the key carries no aud claim.
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the total attempt budget for transient failures.
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	PageSize   int           `mapstructure:"page_size"`
}

// HuntConfig holds engine settings.
type HuntConfig struct {
	// SignaturesDir is the directory of RMM YAML definitions.
	SignaturesDir string `mapstructure:"signatures_dir"`
	// Workers bounds concurrent signature fetches.
	Workers int `mapstructure:"workers"`
	// ExcludedPorts are dropped from port filters (noise floor).
	ExcludedPorts []int `mapstructure:"excluded_ports"`
	// TopN is the length of the global top tables.
	TopN int `mapstructure:"top_n"`
	// AssetCacheSize bounds the asset name resolver cache.
	AssetCacheSize int `mapstructure:"asset_cache_size"`
}

// ExportConfig holds report output settings.
type ExportConfig struct {
	// CSVPath is where the union set is exported; "" disables CSV export.
	CSVPath string `mapstructure:"csv_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// Output: "stdout", "stderr", or "file"
	Output string `mapstructure:"output"`
	File   struct {
		Path       string `mapstructure:"path"`
		MaxSize    int64  `mapstructure:"max_size"`
		MaxBackups int    `mapstructure:"max_backups"`
		Compress   bool   `mapstructure:"compress"`
	} `mapstructure:"file"`
}

// LoadConfig reads configuration from file, environment, and defaults.
func LoadConfig(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/zerohunt")
		v.AddConfigPath("$HOME/.zerohunt")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ZEROHUNT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Dual-binding: ZEROHUNT_ prefixed (canonical) + the ZN_API_KEY name the
	// portal documentation uses. BindEnv picks the first set.
	_ = v.BindEnv("api.key", "ZEROHUNT_API_KEY", "ZN_API_KEY")
	_ = v.BindEnv("api.base_url", "ZEROHUNT_API_BASE_URL", "ZN_BASE_URL")
	_ = v.BindEnv("hunt.signatures_dir", "ZEROHUNT_SIGNATURES_DIR")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, proceed with env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// API
	v.SetDefault("api.base_url", "https://portal.zeronetworks.com")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("api.retry_delay", "1s")
	v.SetDefault("api.page_size", 100)

	// Hunt
	v.SetDefault("hunt.signatures_dir", "signatures")
	v.SetDefault("hunt.workers", 5)
	v.SetDefault("hunt.excluded_ports", []int{80, 443})
	v.SetDefault("hunt.top_n", 10)
	v.SetDefault("hunt.asset_cache_size", 1024)

	// Export
	v.SetDefault("export.csv_path", "")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.file.max_size", 10*1024*1024)
	v.SetDefault("logging.file.max_backups", 5)
	v.SetDefault("logging.file.compress", true)
}

// Validate checks the configuration, collecting every problem instead of
// stopping at the first.
func (c *Config) Validate() error {
	var errs []error

	if c.API.Key == "" {
		errs = append(errs, fmt.Errorf("api.key is required (set ZN_API_KEY or ZEROHUNT_API_KEY)"))
	}
	if c.API.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("api.max_retries must be at least 1"))
	}
	if c.API.PageSize < 1 || c.API.PageSize > 1000 {
		errs = append(errs, fmt.Errorf("api.page_size must be in 1-1000, got %d", c.API.PageSize))
	}

	if c.Hunt.SignaturesDir == "" {
		errs = append(errs, fmt.Errorf("hunt.signatures_dir is required"))
	}
	if c.Hunt.Workers < 1 || c.Hunt.Workers > 64 {
		errs = append(errs, fmt.Errorf("hunt.workers must be in 1-64, got %d", c.Hunt.Workers))
	}
	for _, p := range c.Hunt.ExcludedPorts {
		if p < 1 || p > 65535 {
			errs = append(errs, fmt.Errorf("hunt.excluded_ports entry %d out of range", p))
		}
	}
	if c.Hunt.TopN < 1 {
		errs = append(errs, fmt.Errorf("hunt.top_n must be at least 1"))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, fmt.Errorf("invalid logging.level: %s", c.Logging.Level))
	}
	if c.Logging.Output == "file" && c.Logging.File.Path == "" {
		errs = append(errs, fmt.Errorf("logging.file.path is required when logging.output is 'file'"))
	}

	return errors.Join(errs...)
}

// PrintMasked renders the configuration for `config show` with the API key
// redacted. The key never appears in any output path.
func (c *Config) PrintMasked() string {
	var sb strings.Builder
	key := "(not set)"
	if c.API.Key != "" {
		key = "********"
	}
	fmt.Fprintf(&sb, "api.key: %s\n", key)
	fmt.Fprintf(&sb, "api.base_url: %s\n", c.API.BaseURL)
	fmt.Fprintf(&sb, "api.timeout: %s\n", c.API.Timeout)
	fmt.Fprintf(&sb, "api.max_retries: %d\n", c.API.MaxRetries)
	fmt.Fprintf(&sb, "api.page_size: %d\n", c.API.PageSize)
	fmt.Fprintf(&sb, "hunt.signatures_dir: %s\n", c.Hunt.SignaturesDir)
	fmt.Fprintf(&sb, "hunt.workers: %d\n", c.Hunt.Workers)
	fmt.Fprintf(&sb, "hunt.excluded_ports: %v\n", c.Hunt.ExcludedPorts)
	fmt.Fprintf(&sb, "hunt.top_n: %d\n", c.Hunt.TopN)
	fmt.Fprintf(&sb, "export.csv_path: %s\n", c.Export.CSVPath)
	fmt.Fprintf(&sb, "logging.level: %s\n", c.Logging.Level)
	fmt.Fprintf(&sb, "logging.format: %s\n", c.Logging.Format)
	fmt.Fprintf(&sb, "logging.output: %s\n", c.Logging.Output)
	return sb.String()
}
