// Package config provides configuration management for FaceGate.
// It loads configuration from YAML files with sensible defaults and applies
// FACEGATE_* environment overrides on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/MrCodeEU/facegate/pkg/liveness"
	"github.com/MrCodeEU/facegate/pkg/logging"
)

// EnvPrefix is the prefix of environment variables that override file values.
const EnvPrefix = "FACEGATE"

// Config holds all FaceGate configuration.
type Config struct {
	Liveness LivenessConfig `yaml:"liveness"`
	Gate     GateConfig     `yaml:"gate"`
	Storage  StorageConfig  `yaml:"storage"`
	Audit    AuditConfig    `yaml:"audit"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LivenessConfig holds liveness engine settings.
type LivenessConfig struct {
	Level             string  `yaml:"level"`
	EARThreshold      float64 `yaml:"ear_threshold"`
	YawThreshold      float64 `yaml:"yaw_threshold"`
	MotionThreshold   float64 `yaml:"motion_threshold"`
	WindowMs          int     `yaml:"window_ms"`
	MinFrames         int     `yaml:"min_frames"`
	RequireBlinkCycle bool    `yaml:"require_blink_cycle"`
}

// GateConfig holds settings for gating biometric operations.
type GateConfig struct {
	Challenge   string `yaml:"challenge"` // "random", "blink" or "head_turn"
	MaxAttempts int    `yaml:"max_attempts"`
	Timeout     int    `yaml:"timeout"` // seconds, across all attempts
}

// StorageConfig holds recording storage settings.
type StorageConfig struct {
	DataDir           string `yaml:"data_dir"`
	EncryptionEnabled bool   `yaml:"encryption_enabled"`
}

// AuditConfig holds verdict audit log settings.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".local/share/facegate")
	return &Config{
		Liveness: LivenessConfig{
			Level:           string(liveness.LevelStandard),
			EARThreshold:    liveness.DefaultEARThreshold,
			YawThreshold:    liveness.DefaultYawThreshold,
			MotionThreshold: liveness.DefaultMotionThreshold,
			WindowMs:        int(liveness.DefaultWindow / time.Millisecond),
			MinFrames:       liveness.DefaultMinFrames,
		},
		Gate: GateConfig{
			Challenge:   "random",
			MaxAttempts: 3,
			Timeout:     10,
		},
		Storage: StorageConfig{
			DataDir:           dataDir,
			EncryptionEnabled: true,
		},
		Audit: AuditConfig{
			Enabled: true,
			Path:    filepath.Join(dataDir, "audit.db"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			File:       filepath.Join(dataDir, "facegate.log"),
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		},
	}
}

// Load loads configuration from the specified file and applies environment
// overrides.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return config, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	config.ApplyEnv()
	return config, nil
}

// LoadDefault tries to load configuration from default locations.
func LoadDefault() (*Config, error) {
	// Try system config first
	if _, err := os.Stat("/etc/facegate/facegate.yaml"); err == nil {
		return Load("/etc/facegate/facegate.yaml")
	}

	// Try user config
	homeDir, err := os.UserHomeDir()
	if err == nil {
		userConfig := filepath.Join(homeDir, ".config/facegate/facegate.yaml")
		if _, err := os.Stat(userConfig); err == nil {
			return Load(userConfig)
		}
	}

	// Defaults, still subject to environment overrides
	config := DefaultConfig()
	config.ApplyEnv()
	return config, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}
	return nil
}

// envBindings maps config keys to the fields they override. The environment
// variable name is the key upper-cased with dots replaced by underscores and
// the FACEGATE_ prefix added, e.g. FACEGATE_LIVENESS_EAR_THRESHOLD.
var envBindings = map[string]func(c *Config, v *viper.Viper, key string){
	"liveness.level":               func(c *Config, v *viper.Viper, k string) { c.Liveness.Level = v.GetString(k) },
	"liveness.ear_threshold":       func(c *Config, v *viper.Viper, k string) { c.Liveness.EARThreshold = v.GetFloat64(k) },
	"liveness.yaw_threshold":       func(c *Config, v *viper.Viper, k string) { c.Liveness.YawThreshold = v.GetFloat64(k) },
	"liveness.motion_threshold":    func(c *Config, v *viper.Viper, k string) { c.Liveness.MotionThreshold = v.GetFloat64(k) },
	"liveness.window_ms":           func(c *Config, v *viper.Viper, k string) { c.Liveness.WindowMs = v.GetInt(k) },
	"liveness.min_frames":          func(c *Config, v *viper.Viper, k string) { c.Liveness.MinFrames = v.GetInt(k) },
	"liveness.require_blink_cycle": func(c *Config, v *viper.Viper, k string) { c.Liveness.RequireBlinkCycle = v.GetBool(k) },
	"gate.challenge":               func(c *Config, v *viper.Viper, k string) { c.Gate.Challenge = v.GetString(k) },
	"gate.max_attempts":            func(c *Config, v *viper.Viper, k string) { c.Gate.MaxAttempts = v.GetInt(k) },
	"gate.timeout":                 func(c *Config, v *viper.Viper, k string) { c.Gate.Timeout = v.GetInt(k) },
	"storage.data_dir":             func(c *Config, v *viper.Viper, k string) { c.Storage.DataDir = v.GetString(k) },
	"storage.encryption_enabled":   func(c *Config, v *viper.Viper, k string) { c.Storage.EncryptionEnabled = v.GetBool(k) },
	"audit.enabled":                func(c *Config, v *viper.Viper, k string) { c.Audit.Enabled = v.GetBool(k) },
	"audit.path":                   func(c *Config, v *viper.Viper, k string) { c.Audit.Path = v.GetString(k) },
	"logging.level":                func(c *Config, v *viper.Viper, k string) { c.Logging.Level = v.GetString(k) },
	"logging.format":               func(c *Config, v *viper.Viper, k string) { c.Logging.Format = v.GetString(k) },
	"logging.file":                 func(c *Config, v *viper.Viper, k string) { c.Logging.File = v.GetString(k) },
}

// ApplyEnv overrides fields from FACEGATE_* environment variables. Values
// that do not parse become zero and are caught by Validate.
func (c *Config) ApplyEnv() {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, apply := range envBindings {
		_ = v.BindEnv(key)
		if v.IsSet(key) {
			apply(c, v, key)
		}
	}
}

// ExpandPath expands ~ and environment variables in a path.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	// Validate liveness settings
	switch liveness.Level(c.Liveness.Level) {
	case liveness.LevelStandard, liveness.LevelStrict:
	default:
		return fmt.Errorf("invalid liveness level: %s (must be standard or strict)", c.Liveness.Level)
	}
	if err := c.Liveness.ToEngine().Validate(); err != nil {
		return fmt.Errorf("invalid liveness settings: %w", err)
	}

	// Validate gate settings
	if c.Gate.Challenge != "random" {
		if _, err := liveness.ParseChallengeKind(c.Gate.Challenge); err != nil {
			return fmt.Errorf("invalid gate challenge: %s (must be random, blink, or head_turn)", c.Gate.Challenge)
		}
	}
	if c.Gate.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive, got %d", c.Gate.MaxAttempts)
	}
	if c.Gate.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", c.Gate.Timeout)
	}

	// Validate storage settings
	if c.Storage.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}
	if c.Audit.Enabled && c.Audit.Path == "" {
		return fmt.Errorf("audit path cannot be empty when audit is enabled")
	}

	// Validate logging
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "nested" {
		return fmt.Errorf("invalid log format: %s (must be text or nested)", c.Logging.Format)
	}

	return nil
}

// ToEngine converts file settings to a liveness engine configuration. The
// level supplies defaults; a strict level always requires a blink cycle.
func (l LivenessConfig) ToEngine() liveness.Config {
	cfg := liveness.ConfigFromLevel(liveness.Level(l.Level))
	cfg.EARThreshold = l.EARThreshold
	cfg.YawThreshold = l.YawThreshold
	cfg.MotionThreshold = l.MotionThreshold
	cfg.Window = time.Duration(l.WindowMs) * time.Millisecond
	cfg.MinFrames = l.MinFrames
	cfg.RequireBlinkCycle = cfg.RequireBlinkCycle || l.RequireBlinkCycle
	return cfg
}

// ToOptions converts logging settings to logger options.
func (l LoggingConfig) ToOptions() logging.Options {
	return logging.Options{
		Level:      l.Level,
		Format:     l.Format,
		File:       l.File,
		MaxSize:    l.MaxSize,
		MaxBackups: l.MaxBackups,
		MaxAge:     l.MaxAge,
	}
}

// ExpandPaths expands all paths in the configuration.
func (c *Config) ExpandPaths() {
	c.Storage.DataDir = ExpandPath(c.Storage.DataDir)
	c.Audit.Path = ExpandPath(c.Audit.Path)
	c.Logging.File = ExpandPath(c.Logging.File)
}

// EnsureDirectories creates necessary directories for storage, audit and
// logging.
func (c *Config) EnsureDirectories() error {
	// Create recordings directory (and the data dir above it)
	if err := os.MkdirAll(c.RecordingsDir(), 0700); err != nil {
		return fmt.Errorf("failed to create recordings directory: %w", err)
	}

	if c.Audit.Enabled {
		if err := os.MkdirAll(filepath.Dir(c.Audit.Path), 0700); err != nil {
			return fmt.Errorf("failed to create audit directory: %w", err)
		}
	}

	if c.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(c.Logging.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	return nil
}

// RecordingsDir returns the directory holding recorded sessions.
func (c *Config) RecordingsDir() string {
	return filepath.Join(c.Storage.DataDir, "recordings")
}
