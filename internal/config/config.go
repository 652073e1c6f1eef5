// Package config provides configuration loading for labenv.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/ecohydro/labenv/internal/logging"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	envPrefix = "LABENV_"
)

// Config is the full labenv configuration.
type Config struct {
	Logging logging.Config `koanf:"logging"`
	Probe   ProbeConfig    `koanf:"probe"`
	Record  RecordConfig   `koanf:"record"`
}

// ProbeConfig controls backend command execution.
type ProbeConfig struct {
	// Timeout bounds every backend invocation (list, install, version
	// probe).
	Timeout time.Duration `koanf:"timeout"`
}

// RecordConfig controls where the environment record lives.
type RecordConfig struct {
	// Dir is the project directory holding environment.toml. Relative
	// paths resolve against the working directory.
	Dir string `koanf:"dir"`
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("probe timeout must be positive, got %s", c.Probe.Timeout)
	}
	if c.Record.Dir == "" {
		return fmt.Errorf("record dir must not be empty")
	}
	return nil
}

// Load reads configuration with the following precedence (highest first):
//
//  1. Environment variables (LABENV_PROBE_TIMEOUT, LABENV_LOGGING_LEVEL, ...)
//  2. YAML config file (default ~/.config/labenv/config.yaml)
//  3. Defaults
//
// Environment variables map to config keys by stripping the LABENV_ prefix,
// lowercasing, and splitting section from field on the first underscore:
//
//	LABENV_PROBE_TIMEOUT  -> probe.timeout
//	LABENV_LOGGING_FORMAT -> logging.format
//	LABENV_RECORD_DIR     -> record.dir
//
// The config file must live under ~/.config/labenv/ or /etc/labenv/, be at
// most 1MB, and carry 0600 or 0400 permissions. A missing file is fine.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "labenv", "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		// Open once and validate through the descriptor to avoid a
		// TOCTOU race between stat and read.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// validateConfigPath checks that path is inside an allowed directory. The
// check runs even when the file does not exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// Follow symlinks so a link cannot escape the allowed directories.
	// When the target does not exist yet the absolute path is checked
	// instead.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", "labenv"),
		"/etc/labenv",
	}
	for _, dir := range allowedDirs {
		if strings.HasPrefix(resolvedPath, dir) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/labenv/ or /etc/labenv/")
}

// validateConfigFileProperties checks permissions and size of an existing
// config file, using FileInfo from an already-opened descriptor.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = logging.NewDefaultConfig().Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = logging.NewDefaultConfig().Format
	}
	if cfg.Probe.Timeout == 0 {
		cfg.Probe.Timeout = 30 * time.Second
	}
	if cfg.Record.Dir == "" {
		cfg.Record.Dir = "."
	}
}
